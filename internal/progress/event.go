package progress

import "time"

// Stage names a phase of a network operation.
type Stage string

// Stages reported by git --progress plus keel's own lifecycle stages.
const (
	StageStarting    Stage = "starting"
	StageEnumerating Stage = "enumerating"
	StageCounting    Stage = "counting"
	StageCompressing Stage = "compressing"
	StageReceiving   Stage = "receiving"
	StageResolving   Stage = "resolving"
	StageWriting     Stage = "writing"
	StageUpdating    Stage = "updating"
	StageComplete    Stage = "complete"
	StageFailed      Stage = "failed"
	StageCancelled   Stage = "cancelled"
)

// Terminal reports whether the stage ends an operation. Terminal events
// bypass the throttle.
func (s Stage) Terminal() bool {
	return s == StageComplete || s == StageFailed || s == StageCancelled
}

// Counters are the numbers attached to a progress event. Zero means unknown.
type Counters struct {
	Current int64 `json:"current,omitempty"`
	Total   int64 `json:"total,omitempty"`
	Percent int   `json:"percent,omitempty"`
}

// Event is what the UI receives.
type Event struct {
	OperationID string    `json:"operation_id"`
	Stage       Stage     `json:"stage"`
	Counters    Counters  `json:"counters"`
	Message     string    `json:"message,omitempty"`
	Time        time.Time `json:"time"`
}

// Sink consumes progress events. Send must not block for long; it runs on
// the goroutine driving the git process.
type Sink interface {
	Send(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// Send calls f(ev).
func (f SinkFunc) Send(ev Event) {
	f(ev)
}

type nopSink struct{}

func (nopSink) Send(Event) {}
