package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flowcheck/flowcheck/internal/guardian"
	"github.com/flowcheck/flowcheck/internal/output"
)

// newScanCmd creates the scan command.
func newScanCmd() *cobra.Command {
	var jsonOutput bool
	var showSanitized bool

	cmd := &cobra.Command{
		Use:   "scan [text]",
		Short: "Scan text for secrets, PII, and injection patterns",
		Long: `Scan text for secrets, PII, and prompt-injection patterns before
sharing it. Text is read from the arguments, or from stdin when no
arguments are given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var text string
			if len(args) > 0 {
				text = strings.Join(args, " ")
			} else {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read stdin: %w", err)
				}
				text = string(data)
			}
			if text == "" {
				return fmt.Errorf("nothing to scan")
			}

			report := guardian.NewScanner().Scan(text)

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}

			w := output.New(cmd.OutOrStdout())
			printReport(w, report, showSanitized)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the report as JSON")
	cmd.Flags().BoolVar(&showSanitized, "sanitized", false, "Print the sanitized text")

	return cmd
}

func printReport(w *output.Writer, report guardian.Report, showSanitized bool) {
	san := report.Sanitization
	if san.SecretsDetected || san.PIIDetected {
		w.Warningf("redacted %d sensitive items", len(san.RedactedItems))
		for _, item := range san.RedactedItems {
			w.Field(string(item.Type), fmt.Sprintf("line %d (%d chars)", item.Line, item.OriginalLength))
		}
	} else {
		w.Success("no secrets or PII detected")
	}

	inj := report.Injection
	if inj.IsSafe {
		w.Success("no injection patterns detected")
	} else {
		w.Warningf("injection risk %.2f", inj.RiskScore)
		for _, m := range inj.Matches {
			w.Field(string(m.Type), fmt.Sprintf("line %d: %s", m.Line, m.MatchedText))
		}
	}

	if showSanitized {
		w.Newline()
		w.Println(san.SanitizedText)
	}
}
