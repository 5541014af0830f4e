// Package signal translates Ctrl+C into cooperative cancellation for keel CLI commands.
//
// The first SIGINT/SIGTERM runs the registered interrupt callbacks, which flip
// cancellation flags of in-flight network operations. A second signal cancels
// the handler context outright.
//
// Import rules:
//   - CAN import: std lib only
//   - MUST NOT import: internal packages (to avoid circular dependencies)
package signal

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// Handler listens for interrupt signals on behalf of one CLI command.
type Handler struct {
	ctx         context.Context //nolint:containedctx // handler owns the context lifecycle
	cancel      context.CancelFunc
	interrupted chan struct{}
	done        chan struct{}
	sigChan     chan os.Signal

	mu        sync.Mutex
	callbacks []func()
	count     int
	stopOnce  sync.Once
}

// NewHandler creates a signal handler that listens for SIGINT and SIGTERM.
//
//	h := signal.NewHandler(ctx)
//	defer h.Stop()
//	h.OnInterrupt(func() { registry.Cancel(opID) })
func NewHandler(parent context.Context) *Handler {
	ctx, cancel := context.WithCancel(parent)
	h := &Handler{
		ctx:         ctx,
		cancel:      cancel,
		interrupted: make(chan struct{}),
		done:        make(chan struct{}),
		// Buffer of 1 ensures signal.Notify doesn't drop signals if handler is busy.
		sigChan: make(chan os.Signal, 1),
	}

	signal.Notify(h.sigChan, syscall.SIGINT, syscall.SIGTERM)
	go h.listen()

	return h
}

// Context returns the context that is canceled on the second signal or Stop.
func (h *Handler) Context() context.Context {
	return h.ctx
}

// Interrupted returns a channel that closes when the first signal is received.
func (h *Handler) Interrupted() <-chan struct{} {
	return h.interrupted
}

// OnInterrupt registers fn to run when the first signal arrives. If a signal
// was already received, fn runs immediately.
func (h *Handler) OnInterrupt(fn func()) {
	h.mu.Lock()
	if h.count > 0 {
		h.mu.Unlock()
		fn()
		return
	}
	h.callbacks = append(h.callbacks, fn)
	h.mu.Unlock()
}

// Stop cleans up the signal handler and stops listening for signals.
func (h *Handler) Stop() {
	h.stopOnce.Do(func() {
		signal.Stop(h.sigChan)
		close(h.done)
		h.cancel()
	})
}

func (h *Handler) handleSignal() {
	h.mu.Lock()
	h.count++
	n := h.count
	callbacks := h.callbacks
	h.callbacks = nil
	h.mu.Unlock()

	switch n {
	case 1:
		close(h.interrupted)
		for _, fn := range callbacks {
			fn()
		}
	case 2:
		h.cancel()
	}
}

func (h *Handler) listen() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case <-h.done:
			return
		case <-h.sigChan:
			h.handleSignal()
		}
	}
}
