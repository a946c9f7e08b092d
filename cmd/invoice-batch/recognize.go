package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/invoice-ocr/internal/entity"
)

var recognizeCmd = &cobra.Command{
	Use:   "recognize <image-file|url>",
	Short: "Recognize a single invoice image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		svc, err := newService(ctx)
		if err != nil {
			return err
		}
		defer func() {
			if err := svc.Close(); err != nil {
				logger.Warn("close service", zap.Error(err))
			}
		}()

		src := args[0]
		var rec *entity.InvoiceRecord
		if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
			rec, err = svc.RecognizeURL(ctx, src)
		} else {
			data, rerr := os.ReadFile(src)
			if rerr != nil {
				return eris.Wrapf(rerr, "read %s", src)
			}
			rec, err = svc.Recognize(ctx, data)
		}
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), rec)
	},
}

func init() {
	rootCmd.AddCommand(recognizeCmd)
}
