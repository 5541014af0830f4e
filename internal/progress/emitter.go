package progress

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mrz1836/keel/internal/clock"
	"github.com/mrz1836/keel/internal/constants"
)

// Emitter delivers progress events to a Sink, at most one per operation per
// interval. Terminal stages are always delivered.
type Emitter struct {
	registry *Registry
	sink     Sink
	clock    clock.Clock
	interval time.Duration
	logger   zerolog.Logger

	mu   sync.Mutex
	last map[string]time.Time
}

// EmitterOption configures an Emitter.
type EmitterOption func(*Emitter)

// WithClock sets the time source used for throttling.
func WithClock(c clock.Clock) EmitterOption {
	return func(e *Emitter) {
		e.clock = c
	}
}

// WithInterval sets the throttle interval. Zero or negative disables throttling.
func WithInterval(d time.Duration) EmitterOption {
	return func(e *Emitter) {
		e.interval = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) EmitterOption {
	return func(e *Emitter) {
		e.logger = logger
	}
}

// NewEmitter returns an Emitter writing to sink. A nil sink discards events.
func NewEmitter(registry *Registry, sink Sink, opts ...EmitterOption) *Emitter {
	if sink == nil {
		sink = nopSink{}
	}
	e := &Emitter{
		registry: registry,
		sink:     sink,
		clock:    clock.RealClock{},
		interval: constants.DefaultProgressThrottle,
		logger:   zerolog.Nop(),
		last:     make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the cancellation registry the emitter cleans up.
func (e *Emitter) Registry() *Registry {
	return e.registry
}

// Emit sends a progress event for operation id unless the throttle drops it.
// It reports whether the event was delivered.
func (e *Emitter) Emit(id string, stage Stage, c Counters) bool {
	return e.emit(id, stage, c, "")
}

func (e *Emitter) emit(id string, stage Stage, c Counters, msg string) bool {
	now := e.clock.Now()

	e.mu.Lock()
	if !stage.Terminal() && e.interval > 0 {
		if last, ok := e.last[id]; ok && now.Sub(last) < e.interval {
			e.mu.Unlock()
			return false
		}
	}
	e.last[id] = now
	e.mu.Unlock()

	e.sink.Send(Event{
		OperationID: id,
		Stage:       stage,
		Counters:    c,
		Message:     msg,
		Time:        now,
	})
	return true
}

// Cleanup drops the throttle state and the registry entry for id. Safe to
// call repeatedly.
func (e *Emitter) Cleanup(id string) {
	e.mu.Lock()
	delete(e.last, id)
	e.mu.Unlock()

	if e.registry != nil {
		e.registry.Remove(id)
	}
}

// Begin registers an operation and returns its scope guard. An empty id is
// replaced with a generated one. An id still owned by a running operation
// gets a generated suffix, so the two never share a token or cleanup; read
// the final id from Operation.ID. Callers must defer Close.
func (e *Emitter) Begin(id string) *Operation {
	if id == "" {
		id = uuid.NewString()
	}
	if e.registry == nil {
		e.logger.Debug().Str("operation_id", id).Msg("operation started")
		return &Operation{id: id, emitter: e, token: &Token{id: id}}
	}

	tok, ok := e.registry.Claim(id)
	for !ok {
		requested := id
		id = requested + "-" + uuid.NewString()[:8]
		e.logger.Warn().Str("requested_id", requested).Str("operation_id", id).Msg("operation id already in use")
		tok, ok = e.registry.Claim(id)
	}
	e.logger.Debug().Str("operation_id", id).Msg("operation started")
	return &Operation{id: id, emitter: e, token: tok}
}

// Operation is the scope of one network operation: its id, its cancellation
// token and its progress stream.
type Operation struct {
	id       string
	token    *Token
	emitter  *Emitter
	finished atomic.Bool
	once     sync.Once
}

// ID returns the operation id.
func (o *Operation) ID() string {
	return o.id
}

// Token returns the cancellation token.
func (o *Operation) Token() *Token {
	return o.token
}

// Canceled reports whether the operation was canceled.
func (o *Operation) Canceled() bool {
	return o.token.Canceled()
}

// Emit forwards a non-terminal event through the throttle.
func (o *Operation) Emit(stage Stage, c Counters) bool {
	return o.emitter.Emit(o.id, stage, c)
}

// Transfer is the per-line callback for a running git process. It emits the
// parsed progress and returns false once the operation has been canceled,
// which stops the process.
func (o *Operation) Transfer(line string) bool {
	if o.token.Canceled() {
		return false
	}
	if stage, c, ok := ParseLine(line); ok {
		o.emitter.Emit(o.id, stage, c)
	}
	return !o.token.Canceled()
}

// Finish emits the terminal event. Only the first call has an effect.
func (o *Operation) Finish(stage Stage, msg string) {
	if !stage.Terminal() || !o.finished.CompareAndSwap(false, true) {
		return
	}
	o.emitter.emit(o.id, stage, Counters{}, msg)
}

// Close releases the operation's bookkeeping exactly once.
func (o *Operation) Close() {
	o.once.Do(func() {
		o.emitter.Cleanup(o.id)
		o.emitter.logger.Debug().Str("operation_id", o.id).Msg("operation closed")
	})
}
