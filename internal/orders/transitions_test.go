package orders

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ordena-app/ordena-backend/pkg/enums"
)

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		action Action
		from   []enums.OrderStatus
		to     enums.OrderStatus
	}{
		{ActionSubmit, []enums.OrderStatus{enums.OrderStatusDraft}, enums.OrderStatusPendingValidation},
		{ActionApprove, []enums.OrderStatus{enums.OrderStatusPendingValidation}, enums.OrderStatusValidated},
		{ActionReject, []enums.OrderStatus{enums.OrderStatusPendingValidation, enums.OrderStatusValidated}, enums.OrderStatusDraft},
		{ActionDecline, []enums.OrderStatus{enums.OrderStatusDraft, enums.OrderStatusPendingValidation}, enums.OrderStatusDeclined},
		{ActionComplete, []enums.OrderStatus{enums.OrderStatusValidated}, enums.OrderStatusCompleted},
	}
	for _, tc := range cases {
		tr, err := resolveTransition(tc.action)
		require.NoError(t, err)
		require.Equal(t, tc.from, tr.From, "action %s", tc.action)
		require.Equal(t, tc.to, tr.To, "action %s", tc.action)
	}
}

func TestTransitionRejectsOtherStatuses(t *testing.T) {
	all := []enums.OrderStatus{
		enums.OrderStatusDraft,
		enums.OrderStatusPendingValidation,
		enums.OrderStatusValidated,
		enums.OrderStatusCompleted,
		enums.OrderStatusDeclined,
		enums.OrderStatusConsolidated,
	}
	for action, tr := range transitions {
		for _, status := range all {
			expected := false
			for _, from := range tr.From {
				if from == status {
					expected = true
				}
			}
			require.Equal(t, expected, tr.allows(status), "action %s from %s", action, status)
		}
	}
}

func TestUnknownActionRejected(t *testing.T) {
	_, err := resolveTransition(Action("archive"))
	require.Error(t, err)
}

func TestTerminalStatusesHaveNoOutgoingTransitions(t *testing.T) {
	for _, status := range []enums.OrderStatus{
		enums.OrderStatusCompleted,
		enums.OrderStatusDeclined,
		enums.OrderStatusConsolidated,
	} {
		require.True(t, status.IsTerminal())
		for action, tr := range transitions {
			require.False(t, tr.allows(status), "terminal status %s reachable via %s", status, action)
		}
	}
}

func TestEveryActionHasAnEvent(t *testing.T) {
	for action := range transitions {
		require.NotEmpty(t, eventForAction(action), "action %s has no event", action)
	}
}
