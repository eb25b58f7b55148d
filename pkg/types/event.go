package types

import "time"

// RunEventType defines the type of event emitted while a run progresses.
type RunEventType string

const (
	EventTypeRunStarted     RunEventType = "run_started"     // EventTypeRunStarted is emitted once the roster size is known.
	EventTypeClientStarted  RunEventType = "client_started"  // EventTypeClientStarted is emitted when a client enters the sequencer.
	EventTypeStageStarted   RunEventType = "stage_started"   // EventTypeStageStarted is emitted before a stage runs.
	EventTypeStageCompleted RunEventType = "stage_completed" // EventTypeStageCompleted is emitted after a stage succeeds.
	EventTypeStageSkipped   RunEventType = "stage_skipped"   // EventTypeStageSkipped is emitted when a best-effort stage fails and the sequence moves on.
	EventTypeStageFailed    RunEventType = "stage_failed"    // EventTypeStageFailed is emitted when a stage exhausts its budget.
	EventTypeClientFinished RunEventType = "client_finished" // EventTypeClientFinished is emitted once the client's outcome is recorded.
	EventTypeClientStuck    RunEventType = "client_stuck"    // EventTypeClientStuck is emitted when the roster loop force-skips a row.
	EventTypeControl        RunEventType = "control"         // EventTypeControl is emitted when an operator command changes the run state.
	EventTypeProgress       RunEventType = "progress"        // EventTypeProgress carries attempted/total counts and the ETA.
	EventTypeRunFinished    RunEventType = "run_finished"    // EventTypeRunFinished is emitted after the last client.
)

// RunEvent is a progress notification from the engine.
type RunEvent struct {
	Time time.Time

	// Error contains the failure for failure events.
	Error error

	// Client is the record the event concerns, if any.
	Client *ClientRecord

	Type    RunEventType
	Stage   string
	Message string

	Attempted int
	Total     int
	ETA       string
}

// EventEmitter receives run events. Implementations must not block.
type EventEmitter func(*RunEvent)

// NewClientStartedEvent creates a client started event.
func NewClientStartedEvent(client *ClientRecord) *RunEvent {
	return &RunEvent{Type: EventTypeClientStarted, Client: client, Time: time.Now()}
}

// NewStageStartedEvent creates a stage started event.
func NewStageStartedEvent(client *ClientRecord, stage string) *RunEvent {
	return &RunEvent{Type: EventTypeStageStarted, Client: client, Stage: stage, Time: time.Now()}
}

// NewStageCompletedEvent creates a stage completed event.
func NewStageCompletedEvent(client *ClientRecord, stage string) *RunEvent {
	return &RunEvent{Type: EventTypeStageCompleted, Client: client, Stage: stage, Time: time.Now()}
}

// NewStageSkippedEvent creates an event for a best-effort stage that did not complete.
func NewStageSkippedEvent(client *ClientRecord, stage string, err error) *RunEvent {
	return &RunEvent{Type: EventTypeStageSkipped, Client: client, Stage: stage, Error: err, Time: time.Now()}
}

// NewStageFailedEvent creates a stage failed event.
func NewStageFailedEvent(client *ClientRecord, stage string, err error) *RunEvent {
	return &RunEvent{Type: EventTypeStageFailed, Client: client, Stage: stage, Error: err, Time: time.Now()}
}

// NewClientFinishedEvent creates a client finished event.
func NewClientFinishedEvent(client *ClientRecord) *RunEvent {
	return &RunEvent{Type: EventTypeClientFinished, Client: client, Time: time.Now()}
}

// NewClientStuckEvent creates an event for a force-skipped roster row.
func NewClientStuckEvent(client *ClientRecord, reason string) *RunEvent {
	return &RunEvent{Type: EventTypeClientStuck, Client: client, Message: reason, Time: time.Now()}
}

// NewControlEvent creates an event describing an operator command.
func NewControlEvent(message string) *RunEvent {
	return &RunEvent{Type: EventTypeControl, Message: message, Time: time.Now()}
}

// NewProgressEvent creates a progress event.
func NewProgressEvent(attempted, total int, eta string) *RunEvent {
	return &RunEvent{Type: EventTypeProgress, Attempted: attempted, Total: total, ETA: eta, Time: time.Now()}
}

// NewRunStartedEvent creates a run started event.
func NewRunStartedEvent(total int) *RunEvent {
	return &RunEvent{Type: EventTypeRunStarted, Total: total, Time: time.Now()}
}

// NewRunFinishedEvent creates a run finished event.
func NewRunFinishedEvent(attempted, total int, err error) *RunEvent {
	return &RunEvent{Type: EventTypeRunFinished, Attempted: attempted, Total: total, Error: err, Time: time.Now()}
}

// IsFailure returns true for events that report a failure.
func (e *RunEvent) IsFailure() bool {
	return e.Type == EventTypeStageFailed || e.Type == EventTypeClientStuck ||
		(e.Type == EventTypeRunFinished && e.Error != nil)
}
