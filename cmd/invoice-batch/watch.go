package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/invoice-ocr/internal/async"
	"github.com/joseph-ayodele/invoice-ocr/internal/common"
	"github.com/joseph-ayodele/invoice-ocr/internal/entity"
	"github.com/joseph-ayodele/invoice-ocr/internal/ingest"
)

var (
	watchInitial  bool
	watchDebounce time.Duration
	watchWorkers  int
)

type watchResult struct {
	Path   string                `json:"path"`
	Record *entity.InvoiceRecord `json:"record,omitempty"`
	Error  *entity.ItemError     `json:"error,omitempty"`
}

var watchCmd = &cobra.Command{
	Use:   "watch <dir>...",
	Short: "Recognize invoice images as they appear in directories",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		svc, err := newService(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = svc.Close() }()

		events, errs, err := ingest.Watch(ctx, ingest.WatchConfig{
			Roots:       args,
			SkipHidden:  true,
			InitialScan: watchInitial,
			Debounce:    watchDebounce,
		}, logger)
		if err != nil {
			return err
		}
		logger.Info("watching", zap.Strings("roots", args))

		var outMu sync.Mutex
		q := async.NewQueue(func(ctx context.Context, job async.Job) error {
			out := watchResult{Path: filepath.Clean(job.Path)}
			data, err := os.ReadFile(job.Path)
			if err == nil {
				out.Record, err = svc.Recognize(ctx, data)
			}
			if err != nil {
				out.Error = &entity.ItemError{Code: common.CodeOf(err), Message: err.Error()}
			}
			outMu.Lock()
			defer outMu.Unlock()
			if werr := writeJSON(cmd.OutOrStdout(), out); werr != nil {
				return werr
			}
			return err
		}, logger, async.WithWorkers(watchWorkers), async.WithProcessTimeout(cfg.Batch.ItemTimeout))
		defer func() { _ = q.Shutdown(context.Background()) }()

		for {
			select {
			case <-ctx.Done():
				return nil
			case err, ok := <-errs:
				if !ok {
					errs = nil
					continue
				}
				logger.Warn("watch error", zap.Error(err))
			case path, ok := <-events:
				if !ok {
					return nil
				}
				if err := q.Enqueue(ctx, async.Job{Path: path}); err != nil {
					logger.Warn("watch enqueue failed", zap.String("path", path), zap.Error(err))
				}
			}
		}
	},
}

func init() {
	watchCmd.Flags().BoolVar(&watchInitial, "initial", false, "also recognize images already present")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 500*time.Millisecond, "wait for writes to settle")
	watchCmd.Flags().IntVar(&watchWorkers, "workers", 2, "images recognized concurrently")
	rootCmd.AddCommand(watchCmd)
}
