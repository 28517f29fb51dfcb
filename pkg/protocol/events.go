package protocol

// Conversation event names published on the bus.
const (
	EventMessage         = "message"
	EventStatus          = "status"
	EventAgent           = "agent"
	EventQueue           = "queue"
	EventQueueProtection = "queue.protection"
	EventTeamTask        = "team.task.changed"
	EventResolvePartial  = "resolve.partial"
	EventResolveFailed   = "resolve.failed"
)

// Agent event subtypes (in payload.type).
const (
	AgentEventTurnStarted   = "turn.started"
	AgentEventTurnCompleted = "turn.completed"
	AgentEventText          = "text"
	AgentEventReasoning     = "reasoning"
	AgentEventSystem        = "system"
	AgentEventError         = "error"
)

// Queue protection subtypes (in payload.type).
const (
	ProtectionQueueOverflow  = "queue_overflow"
	ProtectionBranchOverflow = "branch_overflow"
)

// Turn finish reasons.
const (
	FinishDone      = "done"
	FinishError     = "error"
	FinishCancelled = "cancelled"
	FinishTimeout   = "timeout"
)
