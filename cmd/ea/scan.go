package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/engine"
	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/output"
	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/policy"
	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/render"
)

// exitCodePolicy is returned when findings breach a fail_on_severity threshold.
const exitCodePolicy = 2

func newScanCmd(opts *globalOptions) *cobra.Command {
	var (
		reportFmt   string
		outputPath  string
		skipStorage bool
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Report internet-exposed rules and publicly readable containers",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := setup(cmd, opts)
			if err != nil {
				return err
			}

			scanOpts := d.scanOptions(opts)
			scanOpts.SkipStorage = skipStorage
			res, err := d.newEngine().Scan(cmd.Context(), scanOpts)
			if err != nil {
				return fmt.Errorf("scan failed: %w", err)
			}
			report := res.Report

			if outputPath != "" {
				if err := render.WriteJSONFile(outputPath, report); err != nil {
					return err
				}
			}

			w := cmd.OutOrStdout()
			switch engine.ReportFormat(reportFmt) {
			case engine.ReportFormatJSON:
				if err := render.WriteJSON(w, report); err != nil {
					return fmt.Errorf("encode report: %w", err)
				}
			case engine.ReportFormatTable:
				render.RenderScanSummary(w, report)
				fmt.Fprintln(w)
				output.RenderTable(w, report.Findings, output.TableOptions{
					Colored:        !opts.noColor && !color.NoColor,
					IncludeDomain:  true,
					IncludeAccount: len(report.Accounts) > 1,
					ScopeLabel:     scopeLabel(report.Provider),
				})
			default:
				return fmt.Errorf("unknown --report %q: want table or json", reportFmt)
			}

			if policy.ShouldFailAny(report.Findings, d.policy) {
				return &exitError{code: exitCodePolicy}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&reportFmt, "report", "table", "Output format: table or json")
	cmd.Flags().StringVar(&outputPath, "output", "", "Also write the full JSON report to this path")
	cmd.Flags().BoolVar(&skipStorage, "skip-storage", false, "Do not enumerate storage accounts and containers")
	return cmd
}
