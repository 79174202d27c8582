package assess

import "github.com/trustlane/kestrel/internal/domain"

// Policy maps an assessment to the recommended action. The mapping is a
// pure function of level plus forcing indicators; it never de-escalates.
type Policy struct{}

// NewPolicy creates the decision policy.
func NewPolicy() *Policy { return &Policy{} }

// Decide returns the action for an assessment. High risk blocks, medium
// goes to manual review, low and minimal auto-approve. A forcing
// indicator (new device, or a degraded assessment) escalates the action
// exactly one tier toward Block.
func (p *Policy) Decide(a *domain.RiskAssessment, fv *domain.FeatureVector) domain.Action {
	var action domain.Action
	switch a.Level {
	case domain.LevelHigh:
		action = domain.ActionBlock
	case domain.LevelMedium:
		action = domain.ActionManualReview
	default:
		action = domain.ActionAutoApprove
	}

	forcing := a.Degraded
	if fv != nil && fv.Norm(domain.FeatureNewDevice) == 1 {
		forcing = true
	}
	if forcing {
		action = action.Escalate()
	}
	return action
}
