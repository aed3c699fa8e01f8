package remediation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/inventory"
	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/models"
)

// State is a node of the remediation flow.
type State string

const (
	StateScanning                   State = "Scanning"
	StateAwaitingRangeInput         State = "AwaitingRangeInput"
	StateAwaitingRuleAction         State = "AwaitingRuleAction"
	StateApplyingRuleAction         State = "ApplyingRuleAction"
	StateAwaitingStorageAction      State = "AwaitingStorageAction"
	StateAwaitingExpiryChoice       State = "AwaitingExpiryChoice"
	StateAwaitingSecureConfirmation State = "AwaitingSecureConfirmation"
	StateApplyingStorageAction      State = "ApplyingStorageAction"
	StateDone                       State = "Done"
)

// ScanFunc produces the session and report a remediation run acts on.
type ScanFunc func(ctx context.Context) (inventory.Session, *models.ScanReport, error)

// FlowConfig wires a Flow.
type FlowConfig struct {
	Scan     ScanFunc
	Rules    *RuleDispatcher
	Storage  *StorageRemediator
	Prompter Prompter
	Logger   *slog.Logger

	// ConfirmToken is shown in gate prompts. It must match the token the
	// dispatcher and remediator were built with.
	ConfirmToken string

	// Ranges pre-supplies trusted ranges and bypasses inference and the
	// range prompt.
	Ranges []string

	// ExpiryDays is used for an empty expiry answer. Zero or an unlisted
	// value falls back to DefaultExpiryDays.
	ExpiryDays int
}

// Flow is the remediation state machine. Every transition out of an
// Awaiting* state is gated by validated operator input; invalid input keeps
// the flow in the same state.
type Flow struct {
	cfg   FlowConfig
	state State
	trace []State

	session         inventory.Session
	report          *models.ScanReport
	ruleFindings    []models.Finding
	storageFindings []models.Finding
	ranges          []string

	ruleAction    RuleAction
	storageAction StorageAction
	confirmation  string
	expiryDays    int
	tokensIssued  bool

	result models.RemediationResult
}

// NewFlow returns a flow positioned at StateScanning.
func NewFlow(cfg FlowConfig) *Flow {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.ConfirmToken == "" {
		cfg.ConfirmToken = DefaultConfirmToken
	}
	return &Flow{
		cfg:    cfg,
		state:  StateScanning,
		result: models.RemediationResult{RunID: uuid.NewString()},
	}
}

// State returns the current state.
func (f *Flow) State() State { return f.state }

// Trace returns every state entered so far, in order.
func (f *Flow) Trace() []State { return append([]State(nil), f.trace...) }

// Report returns the scan report, or nil before scanning completes.
func (f *Flow) Report() *models.ScanReport { return f.report }

// Run drives the flow to StateDone. The returned result is never nil. The
// error is non-nil only for an *inventory.AuthError, ErrAborted, or context
// cancellation.
func (f *Flow) Run(ctx context.Context) (*models.RemediationResult, error) {
	for f.state != StateDone {
		f.trace = append(f.trace, f.state)
		if err := ctx.Err(); err != nil {
			return &f.result, err
		}
		next, err := f.step(ctx)
		if errors.Is(err, io.EOF) {
			f.result.Note(fmt.Sprintf("aborted by operator in %s", f.state))
			f.state = StateDone
			f.trace = append(f.trace, StateDone)
			return &f.result, ErrAborted
		}
		if err != nil {
			return &f.result, err
		}
		f.state = next
	}
	f.trace = append(f.trace, StateDone)
	return &f.result, nil
}

func (f *Flow) step(ctx context.Context) (State, error) {
	switch f.state {
	case StateScanning:
		return f.scan(ctx)
	case StateAwaitingRangeInput:
		return f.awaitRanges(ctx)
	case StateAwaitingRuleAction:
		return f.awaitRuleAction(ctx)
	case StateApplyingRuleAction:
		return f.applyRuleAction(ctx)
	case StateAwaitingStorageAction:
		return f.awaitStorageAction(ctx)
	case StateAwaitingExpiryChoice:
		return f.awaitExpiry(ctx)
	case StateAwaitingSecureConfirmation:
		return f.awaitSecureConfirmation(ctx)
	case StateApplyingStorageAction:
		return f.applyStorageAction(ctx)
	}
	return StateDone, fmt.Errorf("unknown flow state %q", f.state)
}

func (f *Flow) scan(ctx context.Context) (State, error) {
	sess, report, err := f.cfg.Scan(ctx)
	if err != nil {
		return StateDone, err
	}
	f.session = sess
	f.report = report

	for _, fd := range report.Findings {
		switch fd.ResourceType {
		case models.ResourceNetworkRule:
			f.ruleFindings = append(f.ruleFindings, fd)
		case models.ResourceStorageContainer:
			f.storageFindings = append(f.storageFindings, fd)
		}
	}
	f.result.RuleFindings = len(f.ruleFindings)
	f.result.StorageFindings = len(f.storageFindings)

	f.ranges = report.TrustedRanges
	if len(f.cfg.Ranges) > 0 {
		f.ranges = f.cfg.Ranges
	}
	f.result.TrustedRanges = append([]string(nil), f.ranges...)

	f.cfg.Prompter.Say(fmt.Sprintf("Found %d exposed rule(s) and %d public container(s).",
		len(f.ruleFindings), len(f.storageFindings)))

	if len(f.ruleFindings) == 0 {
		return f.storagePhase(), nil
	}
	if len(f.ranges) == 0 {
		return StateAwaitingRangeInput, nil
	}
	f.cfg.Prompter.Say("Trusted ranges: " + strings.Join(f.ranges, ", "))
	return StateAwaitingRuleAction, nil
}

func (f *Flow) awaitRanges(ctx context.Context) (State, error) {
	answer, err := f.cfg.Prompter.Ask(ctx,
		"No trusted ingress ranges detected. Enter CIDRs (comma separated), or leave blank to skip rule fixes:")
	if err != nil {
		return f.state, err
	}
	ranges, err := ParseOperatorRanges(answer)
	if err != nil {
		f.cfg.Prompter.Say(err.Error())
		return StateAwaitingRangeInput, nil
	}
	if len(ranges) == 0 {
		f.ruleAction = RuleActionSkip
		f.result.RuleAction = string(RuleActionSkip)
		f.result.Note("no trusted ranges supplied; update and delete unavailable, rule fixes skipped")
		f.cfg.Logger.Warn("rule fixes skipped: no trusted ranges", "findings", len(f.ruleFindings))
		return f.storagePhase(), nil
	}
	f.ranges = ranges
	f.result.TrustedRanges = append([]string(nil), ranges...)
	return StateAwaitingRuleAction, nil
}

func (f *Flow) awaitRuleAction(ctx context.Context) (State, error) {
	answer, err := f.cfg.Prompter.Ask(ctx,
		fmt.Sprintf("%d exposed rule(s): [U]pdate source to trusted ranges, [D]elete rules, [S]kip?", len(f.ruleFindings)))
	if err != nil {
		return f.state, err
	}
	action, err := ParseRuleAction(answer)
	if err != nil {
		f.cfg.Prompter.Say(err.Error())
		return StateAwaitingRuleAction, nil
	}
	f.ruleAction = action

	if action == RuleActionDelete {
		token, err := f.askConfirmation(ctx,
			fmt.Sprintf("Type %s to delete %d rule(s):", f.cfg.ConfirmToken, len(f.ruleFindings)))
		if err != nil {
			return f.state, err
		}
		f.confirmation = token
	}
	return StateApplyingRuleAction, nil
}

// confirmAttempts bounds how often a mismatched confirmation is re-asked
// before the destructive action is cancelled.
const confirmAttempts = 3

// askConfirmation re-prompts on a mismatch and returns the last answer once
// attempts run out; the executor then refuses it with ErrNotConfirmed.
func (f *Flow) askConfirmation(ctx context.Context, question string) (string, error) {
	var answer string
	for left := confirmAttempts; left > 0; left-- {
		var err error
		answer, err = f.cfg.Prompter.Ask(ctx, question)
		if err != nil {
			return "", err
		}
		if answer == f.cfg.ConfirmToken {
			return answer, nil
		}
		if left > 1 {
			f.cfg.Prompter.Say(fmt.Sprintf("Confirmation must be exactly %s (%d attempt(s) left).", f.cfg.ConfirmToken, left-1))
		}
	}
	return answer, nil
}

func (f *Flow) applyRuleAction(ctx context.Context) (State, error) {
	err := f.cfg.Rules.Apply(ctx, f.session, RuleRequest{
		Findings:     f.ruleFindings,
		Ranges:       f.ranges,
		Action:       f.ruleAction,
		Confirmation: f.confirmation,
	}, &f.result)
	f.confirmation = ""
	switch {
	case errors.Is(err, ErrNotConfirmed):
		f.cfg.Prompter.Say("Delete cancelled; no rules were changed.")
	case err != nil:
		return StateDone, err
	}
	return f.storagePhase(), nil
}

func (f *Flow) storagePhase() State {
	if len(f.storageFindings) == 0 {
		return StateDone
	}
	return StateAwaitingStorageAction
}

func (f *Flow) awaitStorageAction(ctx context.Context) (State, error) {
	answer, err := f.cfg.Prompter.Ask(ctx,
		fmt.Sprintf("%d public container(s): [G]enerate access tokens then secure, Secure [I]mmediately, [S]kip?", len(f.storageFindings)))
	if err != nil {
		return f.state, err
	}
	action, err := ParseStorageAction(answer)
	if err != nil {
		f.cfg.Prompter.Say(err.Error())
		return StateAwaitingStorageAction, nil
	}
	f.storageAction = action
	f.result.StorageAction = string(action)

	switch action {
	case StorageActionGenerateThenSecure:
		return StateAwaitingExpiryChoice, nil
	case StorageActionSecureImmediately:
		return StateAwaitingSecureConfirmation, nil
	}
	f.result.Note(fmt.Sprintf("storage remediation skipped; %d finding(s) reported only", len(f.storageFindings)))
	return StateDone, nil
}

func (f *Flow) awaitExpiry(ctx context.Context) (State, error) {
	def := DefaultExpiryDays
	if ValidExpiryDays(f.cfg.ExpiryDays) {
		def = f.cfg.ExpiryDays
	}
	answer, err := f.cfg.Prompter.Ask(ctx, fmt.Sprintf("Token expiry in days [7/30/90] (default %d):", def))
	if err != nil {
		return f.state, err
	}
	f.expiryDays = ParseExpiryDays(answer)
	if strings.TrimSpace(answer) == "" {
		f.expiryDays = def
	}
	return StateApplyingStorageAction, nil
}

func (f *Flow) awaitSecureConfirmation(ctx context.Context) (State, error) {
	if f.storageAction == StorageActionSecureImmediately {
		token, err := f.askConfirmation(ctx,
			fmt.Sprintf("Type %s to disable public access on the affected storage accounts:", f.cfg.ConfirmToken))
		if err != nil {
			return f.state, err
		}
		f.confirmation = token
		return StateApplyingStorageAction, nil
	}

	answer, err := f.cfg.Prompter.Ask(ctx, "Disable public access on the affected storage accounts now? [y/n]")
	if err != nil {
		return f.state, err
	}
	yes, err := ParseYesNo(answer)
	if err != nil {
		f.cfg.Prompter.Say(err.Error())
		return StateAwaitingSecureConfirmation, nil
	}
	if !yes {
		f.result.Note("public access left enabled after token issuance")
		return StateDone, nil
	}
	return StateApplyingStorageAction, nil
}

func (f *Flow) applyStorageAction(ctx context.Context) (State, error) {
	st := f.cfg.Storage

	if f.storageAction == StorageActionGenerateThenSecure && !f.tokensIssued {
		f.tokensIssued = true
		if err := st.IssueTokens(ctx, f.session, f.storageFindings, f.expiryDays, &f.result); err != nil {
			return StateDone, err
		}
		if st.ledger != nil && st.ledger.Path() != "" {
			f.cfg.Prompter.Say(fmt.Sprintf("%d token(s) written to %s", f.result.TokensIssued, st.ledger.Path()))
		}
		return StateAwaitingSecureConfirmation, nil
	}

	var err error
	if f.storageAction == StorageActionSecureImmediately {
		err = st.SecureImmediately(ctx, f.session, f.storageFindings, f.confirmation, &f.result)
		f.confirmation = ""
	} else {
		err = st.SecureAccounts(ctx, f.session, f.storageFindings, &f.result)
	}
	switch {
	case errors.Is(err, ErrNotConfirmed):
		f.cfg.Prompter.Say("Secure cancelled; public access unchanged.")
	case err != nil:
		return StateDone, err
	}
	return StateDone, nil
}
