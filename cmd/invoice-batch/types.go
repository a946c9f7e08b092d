package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/invoice-ocr/constants"
)

var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "List supported invoice type codes",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CODE\tNAME\tREQUIRED")
		for _, t := range constants.InvoiceTypes() {
			req := make([]string, len(t.Required))
			for i, f := range t.Required {
				req[i] = string(f)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", t.Code, t.Name, strings.Join(req, ","))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(typesCmd)
}
