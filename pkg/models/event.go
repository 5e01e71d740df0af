package models

import "time"

// AgentEventType is one of the 13 event types the Executor publishes.
type AgentEventType string

const (
	EventStateChange         AgentEventType = "state_change"
	EventPlanCreated         AgentEventType = "plan_created"
	EventStepStarted         AgentEventType = "step_started"
	EventStepCompleted       AgentEventType = "step_completed"
	EventToolCalled          AgentEventType = "tool_called"
	EventToolResult          AgentEventType = "tool_result"
	EventActionClassified    AgentEventType = "action_classified"
	EventApprovalRequested   AgentEventType = "approval_requested"
	EventApprovalReceived    AgentEventType = "approval_received"
	EventKillSwitchTriggered AgentEventType = "kill_switch_triggered"
	EventBudgetExceeded      AgentEventType = "budget_exceeded"
	EventError               AgentEventType = "error"
	EventCompleted           AgentEventType = "completed"
	EventCancelled           AgentEventType = "cancelled"
)

// Terminal reports whether t closes a subscription.
func (t AgentEventType) Terminal() bool {
	switch t {
	case EventCompleted, EventCancelled, EventError:
		return true
	default:
		return false
	}
}

// AgentEvent is the unified event record broadcast over the event bus.
// Exactly one of the typed payloads in Data is meaningful for a given Type;
// Data is left as `any` so the bus stays decoupled from payload schemas.
type AgentEvent struct {
	Type      AgentEventType `json:"type"`
	SessionID string         `json:"session_id"`
	Timestamp time.Time      `json:"timestamp"`
	Data      any            `json:"data,omitempty"`
}

// NewEvent stamps the current time onto a new AgentEvent.
func NewEvent(t AgentEventType, sessionID string, data any) AgentEvent {
	return AgentEvent{Type: t, SessionID: sessionID, Timestamp: time.Now(), Data: data}
}

// StateChangeData is the payload for EventStateChange.
type StateChangeData struct {
	From SessionState `json:"from"`
	To   SessionState `json:"to"`
}

// PlanCreatedData is the payload for EventPlanCreated.
type PlanCreatedData struct {
	Plan *Plan `json:"plan"`
}

// StepEventData is the payload for EventStepStarted/EventStepCompleted.
type StepEventData struct {
	Step *PlanStep `json:"step"`
}

// ToolCalledData is the payload for EventToolCalled.
type ToolCalledData struct {
	Call ToolCall `json:"call"`
}

// ToolResultData is the payload for EventToolResult.
type ToolResultData struct {
	Result ToolResult `json:"result"`
}

// ActionClassifiedData is the payload for EventActionClassified.
type ActionClassifiedData struct {
	Classification ActionClassification `json:"classification"`
}

// ApprovalRequestedData is the payload for EventApprovalRequested.
type ApprovalRequestedData struct {
	RequestID string                `json:"request_id"`
	StepID    string                `json:"step_id"`
	Classification ActionClassification `json:"classification"`
}

// ApprovalReceivedData is the payload for EventApprovalReceived.
type ApprovalReceivedData struct {
	Result ApprovalResult `json:"result"`
}

// ErrorData is the payload for EventError and EventKillSwitchTriggered.
type ErrorData struct {
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
}

// BudgetExceededData is the payload for EventBudgetExceeded.
type BudgetExceededData struct {
	UsedInput  int `json:"used_input"`
	UsedOutput int `json:"used_output"`
	MaxTotal   int `json:"max_total"`
}
