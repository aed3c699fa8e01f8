package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/config"
	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/inventory"
	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/logs"
	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/policy"
)

// DoctorResult is the structured output of ea doctor. It can be serialised to
// JSON via --format=json or rendered as a human-readable table (default).
type DoctorResult struct {
	Provider struct {
		Name          string `json:"name"`
		Authenticated bool   `json:"authenticated"`
		Identity      string `json:"identity,omitempty"`
		AccountsOK    bool   `json:"accounts_ok"`
		Accounts      int    `json:"accounts"`
		Error         string `json:"error,omitempty"`
	} `json:"provider"`

	Config struct {
		Path    string   `json:"path"`
		Present bool     `json:"present"`
		Valid   bool     `json:"valid"`
		Errors  []string `json:"errors,omitempty"`
	} `json:"config"`

	Policy struct {
		Path    string   `json:"path,omitempty"`
		Present bool     `json:"present"`
		Valid   bool     `json:"valid"`
		Errors  []string `json:"errors,omitempty"`
	} `json:"policy"`

	OverallHealthy bool `json:"overall_healthy"`
}

func newDoctorCmd(opts *globalOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check credentials, config and policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logs.New(cmd.ErrOrStderr(), opts.verbose, opts.noColor)

			loader := config.NewDefaultLoader(opts.configPath)
			cfg, cfgErr := loader.Load()
			if cfgErr != nil {
				cfg = config.Default()
			}

			provider, provErr := buildProvider(opts, cfg, logger)
			result, err := runDoctor(cmd.Context(), doctorInputs{
				providerName: opts.provider,
				provider:     provider,
				providerErr:  provErr,
				configPath:   loader.ConfigPath(),
				configErr:    cfgErr,
				policyPath:   opts.policyPath,
			}, cmd.OutOrStdout(), format)
			if err != nil {
				return err
			}
			if !result.OverallHealthy {
				return &exitError{code: 1}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "table", `Output format: "table" or "json"`)
	return cmd
}

// doctorInputs is what the command resolved before any check ran.
type doctorInputs struct {
	providerName string
	provider     inventory.Provider
	providerErr  error
	configPath   string
	configErr    error
	policyPath   string
}

// runDoctor collects all diagnostic results, renders them to w in the
// requested format, and returns the result.
// The returned error covers only rendering failures. Callers must inspect
// result.OverallHealthy to decide the exit status.
func runDoctor(ctx context.Context, in doctorInputs, w io.Writer, format string) (DoctorResult, error) {
	result := collectDoctorResult(ctx, in)

	switch format {
	case "json":
		if err := json.NewEncoder(w).Encode(result); err != nil {
			return result, fmt.Errorf("encode doctor result: %w", err)
		}
	default:
		renderDoctorTable(result, w)
	}
	return result, nil
}

// collectDoctorResult runs all checks and populates a DoctorResult.
func collectDoctorResult(ctx context.Context, in doctorInputs) DoctorResult {
	var result DoctorResult

	// Provider: construct → authenticate → list accounts.
	result.Provider.Name = in.providerName
	switch {
	case in.providerErr != nil:
		result.Provider.Error = in.providerErr.Error()
	case in.provider == nil:
		result.Provider.Error = "no provider"
	default:
		result.Provider.Name = in.provider.Name()
		sess, err := in.provider.Authenticate(ctx)
		if err != nil {
			result.Provider.Error = err.Error()
			break
		}
		result.Provider.Authenticated = true
		result.Provider.Identity = sess.Identity()
		accounts, err := in.provider.ListAccounts(ctx, sess)
		if err != nil {
			result.Provider.Error = err.Error()
			break
		}
		result.Provider.AccountsOK = true
		result.Provider.Accounts = len(accounts)
	}

	// Config: the loader already treats a missing file as defaults.
	result.Config.Path = in.configPath
	if _, err := os.Stat(in.configPath); err == nil {
		result.Config.Present = true
	} else if !errors.Is(err, fs.ErrNotExist) {
		result.Config.Present = true
		result.Config.Errors = []string{err.Error()}
	}
	if in.configErr != nil {
		result.Config.Errors = append(result.Config.Errors, in.configErr.Error())
	}
	result.Config.Valid = len(result.Config.Errors) == 0

	// Policy: explicit path or ./ea.yaml, both optional unless named.
	path := in.policyPath
	if path == "" {
		path = policy.DefaultPolicyFile
	}
	result.Policy.Path = path
	_, statErr := os.Stat(path)
	switch {
	case statErr == nil:
		result.Policy.Present = true
		cfg, err := policy.LoadPolicy(path)
		if err != nil {
			result.Policy.Errors = []string{err.Error()}
			break
		}
		for _, e := range policy.Validate(cfg, allRuleIDs()) {
			result.Policy.Errors = append(result.Policy.Errors, e.Error())
		}
		result.Policy.Valid = len(result.Policy.Errors) == 0
	case in.policyPath != "" || !errors.Is(statErr, fs.ErrNotExist):
		result.Policy.Present = true
		result.Policy.Errors = []string{statErr.Error()}
	}

	result.OverallHealthy = result.Provider.Authenticated &&
		result.Provider.AccountsOK &&
		result.Config.Valid &&
		(!result.Policy.Present || result.Policy.Valid)

	return result
}

// renderDoctorTable writes the human-readable diagnostic output from result to w.
func renderDoctorTable(result DoctorResult, w io.Writer) {
	fmt.Fprintln(w, "Environment Diagnostics")

	fmt.Fprintf(w, "\nProvider (%s):\n", result.Provider.Name)
	if !result.Provider.Authenticated {
		doctorPrint(w, "Credentials", "FAIL", result.Provider.Error)
		doctorPrint(w, "Accounts", "FAIL", "skipped")
	} else {
		doctorPrint(w, "Credentials", "OK", result.Provider.Identity)
		if result.Provider.AccountsOK {
			doctorPrint(w, "Accounts", "OK", fmt.Sprintf("%d visible", result.Provider.Accounts))
		} else {
			doctorPrint(w, "Accounts", "FAIL", result.Provider.Error)
		}
	}

	fmt.Fprintln(w, "\nConfig:")
	if result.Config.Present {
		doctorPrint(w, "Config file", "YES", result.Config.Path)
	} else {
		doctorPrint(w, "Config file", "Not found (defaults)", result.Config.Path)
	}
	if result.Config.Valid {
		doctorPrint(w, "Config valid", "OK", "")
	} else {
		for _, e := range result.Config.Errors {
			doctorPrint(w, "Config valid", "FAIL", e)
		}
	}

	fmt.Fprintln(w, "\nPolicy:")
	if !result.Policy.Present {
		doctorPrint(w, result.Policy.Path+" present", "Not found (optional)", "")
		return
	}
	doctorPrint(w, result.Policy.Path+" present", "YES", "")
	if result.Policy.Valid {
		doctorPrint(w, "Policy valid", "OK", "")
	} else {
		for _, e := range result.Policy.Errors {
			doctorPrint(w, "Policy valid", "FAIL", e)
		}
	}
}

// doctorPrint writes a single diagnostic check line to w.
// When detail is non-empty it is appended in parentheses.
func doctorPrint(w io.Writer, label, status, detail string) {
	if detail != "" {
		fmt.Fprintf(w, "  %s: %s (%s)\n", label, status, detail)
	} else {
		fmt.Fprintf(w, "  %s: %s\n", label, status)
	}
}
