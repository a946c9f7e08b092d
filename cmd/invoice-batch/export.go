package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/invoice-ocr/internal/export"
)

var (
	exportBatchID string
	exportLimit   int
	exportOut     string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export archived records to an XLSX workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		svc, err := newService(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = svc.Close() }()

		records := svc.Records()
		if records == nil {
			return eris.New("export needs a record store: set store.driver and store.dsn")
		}
		data, err := export.NewService(records, logger).RecordsXLSX(ctx, exportBatchID, exportLimit)
		if err != nil {
			return err
		}
		if err := os.WriteFile(exportOut, data, 0o644); err != nil {
			return eris.Wrapf(err, "write %s", exportOut)
		}
		logger.Info("export written", zap.String("path", exportOut), zap.Int("bytes", len(data)))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportBatchID, "batch", "", "only records of this batch")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 500, "most recent records to export when no batch is given")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "invoices.xlsx", "output file")
	rootCmd.AddCommand(exportCmd)
}
