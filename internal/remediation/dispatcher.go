package remediation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/inventory"
	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/models"
)

// RuleBackend is the subset of a provider the rule dispatcher mutates.
type RuleBackend interface {
	SetActiveAccount(ctx context.Context, s inventory.Session, accountID string) error
	UpdateRuleGroup(ctx context.Context, s inventory.Session, group models.NetworkRuleGroup) error
	DeleteRule(ctx context.Context, s inventory.Session, group models.NetworkRuleGroup, ruleName string) error
}

// RuleRequest is one dispatch of an operator-selected action.
type RuleRequest struct {
	Findings []models.Finding
	Ranges   []string
	Action   RuleAction
	// Confirmation is the operator's answer to the delete gate.
	Confirmation string
}

// RuleDispatcher applies Update, Delete or Skip to network rule findings.
//
// Each rule group touched in a run is tracked as a working copy. A change is
// built on a clone of the working copy and committed to it only after the
// provider reports success, so a failed write leaves the rule exactly as it
// was. Each finding is acted on at most once per dispatcher.
type RuleDispatcher struct {
	backend      RuleBackend
	logger       *slog.Logger
	confirmToken string

	working map[string]*models.NetworkRuleGroup
	acted   map[string]struct{}
}

// NewRuleDispatcher returns a dispatcher. An empty confirmToken selects
// DefaultConfirmToken; a nil logger discards output.
func NewRuleDispatcher(backend RuleBackend, logger *slog.Logger, confirmToken string) *RuleDispatcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if confirmToken == "" {
		confirmToken = DefaultConfirmToken
	}
	return &RuleDispatcher{
		backend:      backend,
		logger:       logger,
		confirmToken: confirmToken,
		working:      make(map[string]*models.NetworkRuleGroup),
		acted:        make(map[string]struct{}),
	}
}

// WorkingGroup returns the committed local state of a group touched by this
// dispatcher, or false if it was never touched.
func (d *RuleDispatcher) WorkingGroup(accountID, groupID string) (models.NetworkRuleGroup, bool) {
	g, ok := d.working[groupKey(accountID, groupID)]
	if !ok {
		return models.NetworkRuleGroup{}, false
	}
	return g.Clone(), true
}

// Apply runs req against the provider and folds every per-rule outcome into
// result. Provider failures are recorded and the batch continues; only an
// *inventory.AuthError is returned. A delete whose confirmation does not
// match returns ErrNotConfirmed before any provider call.
func (d *RuleDispatcher) Apply(ctx context.Context, s inventory.Session, req RuleRequest, result *models.RemediationResult) error {
	result.RuleAction = string(req.Action)

	switch req.Action {
	case RuleActionSkip:
		result.Note(fmt.Sprintf("rule fixes skipped; %d finding(s) reported only", len(req.Findings)))
		return nil
	case RuleActionUpdate, RuleActionDelete:
	default:
		return &ValidationError{Input: string(req.Action), Reason: "unknown rule action"}
	}

	if len(req.Ranges) == 0 {
		result.RuleAction = string(RuleActionSkip)
		result.Note(fmt.Sprintf("%s unavailable without trusted ranges; rule fixes skipped", req.Action))
		return nil
	}
	if req.Action == RuleActionDelete && req.Confirmation != d.confirmToken {
		result.Note("delete cancelled: confirmation token did not match")
		return ErrNotConfirmed
	}

	result.TrustedRanges = append([]string(nil), req.Ranges...)
	if req.Action == RuleActionUpdate {
		result.TrustedRangesUsed = len(req.Ranges)
	}

	scope := &accountScope{sessions: d.backend, session: s}
	for _, f := range req.Findings {
		if f.Rule == nil || f.Group == nil {
			continue
		}
		if _, done := d.acted[f.ID]; done {
			continue
		}
		d.acted[f.ID] = struct{}{}

		if err := scope.use(ctx, f.Group.AccountID); err != nil {
			return err
		}

		var err error
		switch req.Action {
		case RuleActionUpdate:
			err = d.update(ctx, s, f, req.Ranges)
		case RuleActionDelete:
			err = d.delete(ctx, s, f)
		}
		if err != nil {
			if inventory.IsAuthError(err) {
				return err
			}
			d.logger.Error("rule remediation failed",
				"action", req.Action,
				"account", f.Group.AccountID,
				"group", f.Group.Name,
				"rule", f.Rule.Name,
				"error", err,
			)
			result.RecordFailure(models.ItemFailure{
				Operation: string(req.Action) + "_rule",
				AccountID: f.Group.AccountID,
				Resource:  f.ResourceID,
				Error:     err.Error(),
			})
			continue
		}
		d.logger.Info("rule remediated",
			"action", req.Action,
			"account", f.Group.AccountID,
			"group", f.Group.Name,
			"rule", f.Rule.Name,
		)
		result.RulesFixed++
	}
	return nil
}

func (d *RuleDispatcher) update(ctx context.Context, s inventory.Session, f models.Finding, ranges []string) error {
	work := d.workingFor(*f.Group)
	candidate := work.Clone()
	idx := candidate.RuleIndex(f.Rule.Name)
	if idx < 0 {
		return inventory.NewProviderError("update_rule", f.ResourceID, fmt.Errorf("rule no longer present in %s", work.Name))
	}
	candidate.Rules[idx].Sources = append([]string(nil), ranges...)

	if err := d.backend.UpdateRuleGroup(ctx, s, candidate); err != nil {
		return err
	}
	*work = candidate
	return nil
}

func (d *RuleDispatcher) delete(ctx context.Context, s inventory.Session, f models.Finding) error {
	work := d.workingFor(*f.Group)
	idx := work.RuleIndex(f.Rule.Name)
	if idx < 0 {
		return inventory.NewProviderError("delete_rule", f.ResourceID, fmt.Errorf("rule no longer present in %s", work.Name))
	}
	if err := d.backend.DeleteRule(ctx, s, work.Clone(), f.Rule.Name); err != nil {
		return err
	}
	candidate := work.Clone()
	candidate.Rules = append(candidate.Rules[:idx], candidate.Rules[idx+1:]...)
	*work = candidate
	return nil
}

func (d *RuleDispatcher) workingFor(g models.NetworkRuleGroup) *models.NetworkRuleGroup {
	key := groupKey(g.AccountID, g.ID)
	if w, ok := d.working[key]; ok {
		return w
	}
	w := g.Clone()
	d.working[key] = &w
	return &w
}

func groupKey(accountID, groupID string) string {
	return accountID + "|" + groupID
}
