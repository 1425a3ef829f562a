package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"forensic_audit/pkg/core/calc"
	"forensic_audit/pkg/core/report"
)

var benfordCmd = &cobra.Command{
	Use:   "benford FILE",
	Short: "Run the Benford first-digit test on line-item amounts",
	Long: `Collects every line-item amount from a statements table or document
and compares their leading digits with Benford's law.`,
	Args: cobra.ExactArgs(1),
	RunE: runBenford,
}

func init() {
	benfordCmd.Flags().StringVarP(&outputFormat, "format", "f", "json", "output format: json or markdown")
}

func runBenford(cmd *cobra.Command, args []string) error {
	if outputFormat != "json" && outputFormat != "markdown" {
		return fmt.Errorf("unknown format %q", outputFormat)
	}

	// Zero-filled amounts fall below 1 and are not counted, so filling only
	// keeps partial statements from failing the scoring step.
	settings.Extraction.FillMissing = true
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := runFile(cmd, a.Pipeline, args[0])
	if err != nil {
		return err
	}
	return writeBenford(cmd.OutOrStdout(), calc.FirstDigitTest(calc.LineItemValues(res.Records)), outputFormat)
}

func writeBenford(w io.Writer, r calc.BenfordResult, format string) error {
	if format == "markdown" {
		_, err := io.WriteString(w, report.BenfordMarkdown(r))
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
