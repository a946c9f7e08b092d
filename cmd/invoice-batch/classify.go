package main

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/invoice-ocr/internal/classify"
	"github.com/joseph-ayodele/invoice-ocr/internal/entity"
)

var classifyRegions bool

var classifyCmd = &cobra.Command{
	Use:   "classify [text|-]",
	Short: "Classify recognized text; reads stdin when no text is given",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var input []byte
		if len(args) == 1 && args[0] != "-" {
			input = []byte(args[0])
		} else {
			b, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return eris.Wrap(err, "read stdin")
			}
			input = b
		}

		c := classify.New()
		var cands []entity.InvoiceTypeCandidate
		if classifyRegions {
			var regions []entity.TextRegion
			if err := json.Unmarshal(input, &regions); err != nil {
				return eris.Wrap(err, "decode regions")
			}
			cands = c.ClassifyRegions(regions)
		} else {
			cands = c.Classify(strings.TrimSpace(string(input)))
		}
		return writeJSON(cmd.OutOrStdout(), cands)
	},
}

func init() {
	classifyCmd.Flags().BoolVar(&classifyRegions, "regions", false, "input is a JSON array of text regions")
	rootCmd.AddCommand(classifyCmd)
}
