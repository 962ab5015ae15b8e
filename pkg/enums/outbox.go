package enums

// OutboxEventType is the canonical event_type stored in outbox_events.
type OutboxEventType string

const (
	EventOrderSubmitted   OutboxEventType = "order.submitted"
	EventOrderApproved    OutboxEventType = "order.approved"
	EventOrderRejected    OutboxEventType = "order.rejected"
	EventOrderDeclined    OutboxEventType = "order.declined"
	EventOrderCompleted   OutboxEventType = "order.completed"
	EventConsolidationRun OutboxEventType = "consolidation.run"
)

// OutboxAggregateType identifies the aggregate an event belongs to.
type OutboxAggregateType string

const (
	AggregateOrder             OutboxAggregateType = "order"
	AggregateConsolidatedOrder OutboxAggregateType = "consolidated_order"
)
