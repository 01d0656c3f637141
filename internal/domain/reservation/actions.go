package reservation

// ActionDefinition describes one action an operator can take on a booking in
// its current state. RequiresValidation marks actions whose commit must be
// preceded by the overlap/token re-checks.
type ActionDefinition struct {
	ID                 string `json:"id"`
	Label              string `json:"label"`
	TargetStatus       Status `json:"target_status"`
	IsDestructive      bool   `json:"is_destructive"`
	RequiresValidation bool   `json:"requires_validation"`
}

// Action identifiers.
const (
	ActionAccept        = "accept"
	ActionRejectDeposit = "reject_deposit"
	ActionVerifyDeposit = "verify_deposit"
	ActionCancel        = "cancel"
	ActionFinish        = "finish"
)

var (
	actionAccept = ActionDefinition{
		ID:                 ActionAccept,
		Label:              "Accept request and ask for deposit",
		TargetStatus:       StatusPendingDeposit,
		RequiresValidation: true,
	}
	actionRejectDeposit = ActionDefinition{
		ID:           ActionRejectDeposit,
		Label:        "Reject deposit evidence and request again",
		TargetStatus: StatusPendingDeposit,
	}
	actionVerifyDeposit = ActionDefinition{
		ID:                 ActionVerifyDeposit,
		Label:              "Verify deposit and confirm",
		TargetStatus:       StatusConfirmed,
		RequiresValidation: true,
	}
	actionCancel = ActionDefinition{
		ID:            ActionCancel,
		Label:         "Cancel booking",
		TargetStatus:  StatusCancelled,
		IsDestructive: true,
	}
	actionFinish = ActionDefinition{
		ID:           ActionFinish,
		Label:        "Mark as finished",
		TargetStatus: StatusFinished,
	}
)

// AvailableActions returns the set of legal actions for a booking in the
// given status. hasDepositEvidence gates evidence rejection; isPast gates
// finishing. Destructive actions (cancel) are always legal regardless of
// isPast.
func AvailableActions(status Status, hasDepositEvidence, isPast bool) []ActionDefinition {
	switch status {
	case StatusPending:
		return []ActionDefinition{actionAccept, actionCancel}
	case StatusPendingDeposit:
		actions := []ActionDefinition{actionVerifyDeposit}
		if hasDepositEvidence {
			actions = append(actions, actionRejectDeposit)
		}
		return append(actions, actionCancel)
	case StatusConfirmed:
		actions := []ActionDefinition{actionCancel}
		if isPast {
			actions = append(actions, actionFinish)
		}
		return actions
	default:
		// paid_deposit (legacy), cancelled, finished: nothing is legal.
		return nil
	}
}

// ActionForTarget finds the available action whose target matches the
// requested status, or false if the requested status is not reachable right
// now.
func ActionForTarget(status Status, hasDepositEvidence, isPast bool, target Status) (ActionDefinition, bool) {
	for _, a := range AvailableActions(status, hasDepositEvidence, isPast) {
		if a.TargetStatus == target {
			return a, true
		}
	}
	return ActionDefinition{}, false
}
