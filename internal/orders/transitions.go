package orders

import (
	"github.com/ordena-app/ordena-backend/pkg/enums"
	pkgerrors "github.com/ordena-app/ordena-backend/pkg/errors"
)

// Action is a lifecycle operation requested against an order.
type Action string

const (
	ActionSubmit   Action = "submit"
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
	ActionDecline  Action = "decline"
	ActionComplete Action = "complete"
)

type transition struct {
	From []enums.OrderStatus
	To   enums.OrderStatus
}

func (t transition) allows(from enums.OrderStatus) bool {
	for _, s := range t.From {
		if s == from {
			return true
		}
	}
	return false
}

// transitions is the single source of truth for the order lifecycle.
// Reject intentionally loops back to draft so the customer can amend and
// resubmit; decline is reachable before validation and is terminal.
var transitions = map[Action]transition{
	ActionSubmit: {
		From: []enums.OrderStatus{enums.OrderStatusDraft},
		To:   enums.OrderStatusPendingValidation,
	},
	ActionApprove: {
		From: []enums.OrderStatus{enums.OrderStatusPendingValidation},
		To:   enums.OrderStatusValidated,
	},
	ActionReject: {
		From: []enums.OrderStatus{enums.OrderStatusPendingValidation, enums.OrderStatusValidated},
		To:   enums.OrderStatusDraft,
	},
	ActionDecline: {
		From: []enums.OrderStatus{enums.OrderStatusDraft, enums.OrderStatusPendingValidation},
		To:   enums.OrderStatusDeclined,
	},
	ActionComplete: {
		From: []enums.OrderStatus{enums.OrderStatusValidated},
		To:   enums.OrderStatusCompleted,
	},
}

// resolveTransition returns the source and target statuses for an action.
func resolveTransition(action Action) (transition, error) {
	tr, ok := transitions[action]
	if !ok {
		return transition{}, pkgerrors.New(pkgerrors.CodeValidation, "unknown order action")
	}
	return tr, nil
}

// eventForAction maps a lifecycle action to the event emitted on success.
func eventForAction(action Action) enums.OutboxEventType {
	switch action {
	case ActionSubmit:
		return enums.EventOrderSubmitted
	case ActionApprove:
		return enums.EventOrderApproved
	case ActionReject:
		return enums.EventOrderRejected
	case ActionDecline:
		return enums.EventOrderDeclined
	case ActionComplete:
		return enums.EventOrderCompleted
	default:
		return ""
	}
}
