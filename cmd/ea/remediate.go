package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/inventory"
	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/models"
	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/output"
	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/remediation"
	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/render"
)

func newRemediateCmd(opts *globalOptions) *cobra.Command {
	var (
		ranges     []string
		ledgerPath string
		summaryOut string
	)

	cmd := &cobra.Command{
		Use:   "remediate",
		Short: "Scan, then interactively restrict exposed rules and public containers",
		Long: `remediate runs a scan and walks the operator through each class of finding.

Exposed rules can be updated to the trusted ranges, deleted, or skipped.
Public containers can get time-limited read tokens, have public access
disabled at the storage-account level, or both. Delete and immediate
securing require typing the confirmation token.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := setup(cmd, opts)
			if err != nil {
				return err
			}

			preset, err := remediation.ParseOperatorRanges(strings.Join(ranges, ","))
			if err != nil {
				return fmt.Errorf("--ranges: %w", err)
			}

			if ledgerPath == "" {
				ledgerPath = d.cfg.Output.LedgerPath
			}
			ledger, err := remediation.OpenLedger(ledgerPath)
			if err != nil {
				return err
			}
			defer ledger.Close()

			if summaryOut == "" {
				summaryOut = d.cfg.Output.SummaryPath
			}

			token := d.cfg.Advisor.ConfirmationToken
			w := cmd.OutOrStdout()
			eng := d.newEngine()
			scanOpts := d.scanOptions(opts)

			flow := remediation.NewFlow(remediation.FlowConfig{
				Scan: func(ctx context.Context) (inventory.Session, *models.ScanReport, error) {
					res, err := eng.Scan(ctx, scanOpts)
					if err != nil {
						return nil, nil, err
					}
					output.RenderTable(w, res.Report.Findings, output.TableOptions{
						Colored:        !opts.noColor && !color.NoColor,
						IncludeAccount: len(res.Report.Accounts) > 1,
						ScopeLabel:     scopeLabel(res.Report.Provider),
					})
					fmt.Fprintln(w)
					return res.Session, res.Report, nil
				},
				Rules:        remediation.NewRuleDispatcher(d.provider, d.logger, token),
				Storage:      remediation.NewStorageRemediator(d.provider, ledger, d.logger, token),
				Prompter:     remediation.NewIOPrompter(cmd.InOrStdin(), w),
				Logger:       d.logger,
				ConfirmToken: token,
				Ranges:       preset,
				ExpiryDays:   d.cfg.Advisor.DefaultExpiryDays,
			})

			result, runErr := flow.Run(cmd.Context())
			if flow.Report() == nil {
				return fmt.Errorf("remediation failed: %w", runErr)
			}

			fmt.Fprintln(w)
			render.RenderRemediationSummary(w, result)
			if summaryOut != "" {
				if err := render.WriteJSONFile(summaryOut, result); err != nil {
					return err
				}
			}

			switch {
			case runErr == nil:
				return nil
			case errors.Is(runErr, remediation.ErrAborted):
				return &exitError{code: 130, err: runErr}
			default:
				return fmt.Errorf("remediation stopped: %w", runErr)
			}
		},
	}

	cmd.Flags().StringSliceVar(&ranges, "ranges", nil, "Trusted CIDRs to use instead of inferring them (comma separated)")
	cmd.Flags().StringVar(&ledgerPath, "ledger", "", "File receiving issued read tokens (default from config)")
	cmd.Flags().StringVar(&summaryOut, "summary-out", "", "Write the remediation summary as JSON to this path")
	return cmd
}
