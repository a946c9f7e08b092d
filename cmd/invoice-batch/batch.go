package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/invoice-ocr/internal/batch"
	"github.com/joseph-ayodele/invoice-ocr/internal/export"
	"github.com/joseph-ayodele/invoice-ocr/internal/ingest"
	"github.com/joseph-ayodele/invoice-ocr/internal/manifest"
)

var (
	batchDir        string
	batchManifest   string
	batchParallel   int
	batchItemTO     time.Duration
	batchDeadline   time.Duration
	batchXLSX       string
	batchSkipHidden bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Recognize every image of a directory or manifest",
	RunE: func(cmd *cobra.Command, args []string) error {
		if (batchDir == "") == (batchManifest == "") {
			return eris.New("exactly one of --dir and --manifest is required")
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		req, err := buildRequest(cmd)
		if err != nil {
			return err
		}

		svc, err := newService(ctx)
		if err != nil {
			return err
		}
		defer func() {
			if err := svc.Close(); err != nil {
				logger.Warn("close service", zap.Error(err))
			}
		}()

		res, err := svc.RecognizeBatch(ctx, req)
		if err != nil {
			return err
		}
		logger.Info("batch finished",
			zap.String("batch_id", res.BatchID),
			zap.String("state", string(res.State)),
			zap.Int("succeeded", res.Stats.Succeeded),
			zap.Int("failed", res.Stats.Failed),
			zap.Int("timed_out", res.Stats.TimedOut),
		)

		if batchXLSX != "" {
			data, err := export.BatchXLSX(res)
			if err != nil {
				return err
			}
			if err := os.WriteFile(batchXLSX, data, 0o644); err != nil {
				return eris.Wrapf(err, "write %s", batchXLSX)
			}
			logger.Info("workbook written", zap.String("path", batchXLSX))
		}
		return writeJSON(cmd.OutOrStdout(), res)
	},
}

func buildRequest(cmd *cobra.Command) (batch.Request, error) {
	var req batch.Request
	if batchManifest != "" {
		m, err := manifest.Load(batchManifest)
		if err != nil {
			return req, err
		}
		if req, err = m.Request(); err != nil {
			return req, err
		}
	} else {
		files, _, err := ingest.ScanDirectory(cmd.Context(), batchDir, ingest.ScanOptions{
			SkipHidden: batchSkipHidden,
			MaxFiles:   cfg.Batch.MaxBatchSize,
		}, logger)
		if err != nil {
			return req, err
		}
		if req.Items, err = ingest.Items(files); err != nil {
			return req, err
		}
	}

	// flags override the manifest
	if cmd.Flags().Changed("parallel") {
		req.ParallelCount = batchParallel
	}
	if cmd.Flags().Changed("item-timeout") {
		req.ItemTimeout = batchItemTO
	}
	if cmd.Flags().Changed("deadline") {
		req.OverallDeadline = batchDeadline
	}
	return req, nil
}

func init() {
	f := batchCmd.Flags()
	f.StringVar(&batchDir, "dir", "", "directory of invoice images")
	f.StringVar(&batchManifest, "manifest", "", "batch manifest JSON file")
	f.IntVar(&batchParallel, "parallel", 0, "concurrent recognitions (1-10)")
	f.DurationVar(&batchItemTO, "item-timeout", 0, "per-image timeout")
	f.DurationVar(&batchDeadline, "deadline", 0, "overall batch deadline")
	f.StringVar(&batchXLSX, "xlsx", "", "also write the results to this XLSX file")
	f.BoolVar(&batchSkipHidden, "skip-hidden", true, "skip hidden files and directories")
	rootCmd.AddCommand(batchCmd)
}
