// Package progress carries long-running network operations from the git
// subprocess to the UI: throttled progress events going out and user
// cancellation coming back in.
package progress

import (
	"sync"
	"sync/atomic"
)

// Token is the cancellation flag of one operation. It is shared by the
// registry, the emitter and the transfer callback polling it.
type Token struct {
	id       string
	canceled atomic.Bool

	// claimed marks a token owned by a running operation. Guarded by the
	// registry mutex.
	claimed bool
}

// ID returns the operation id the token was registered under.
func (t *Token) ID() string {
	return t.id
}

// Cancel sets the flag. Calling it more than once has no further effect.
func (t *Token) Cancel() {
	t.canceled.Store(true)
}

// Canceled reports whether Cancel was called.
func (t *Token) Canceled() bool {
	return t.canceled.Load()
}

// Registry maps operation ids to live tokens. Create one per process and
// pass it by handle.
type Registry struct {
	mu     sync.Mutex
	tokens map[string]*Token
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tokens: make(map[string]*Token)}
}

// Register returns the token for id, creating it if needed.
func (r *Registry) Register(id string) *Token {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tok, ok := r.tokens[id]; ok {
		return tok
	}
	tok := &Token{id: id}
	r.tokens[id] = tok
	return tok
}

// Claim hands the token for id to a starting operation. A token registered
// ahead of time is adopted, so a cancel sent before the operation began
// still applies. It returns false when a running operation already owns id.
func (r *Registry) Claim(id string) (*Token, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tok, ok := r.tokens[id]
	if !ok {
		tok = &Token{id: id}
		r.tokens[id] = tok
	}
	if tok.claimed {
		return nil, false
	}
	tok.claimed = true
	return tok, true
}

// Cancel flags the operation. It returns true whenever id is registered,
// including repeated calls, and false for unknown or removed ids.
func (r *Registry) Cancel(id string) bool {
	r.mu.Lock()
	tok, ok := r.tokens[id]
	r.mu.Unlock()

	if !ok {
		return false
	}
	tok.Cancel()
	return true
}

// Get returns the token registered under id.
func (r *Registry) Get(id string) (*Token, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tok, ok := r.tokens[id]
	return tok, ok
}

// Remove forgets id. Removing an unknown id is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.tokens, id)
	r.mu.Unlock()
}

// IDs lists the registered operation ids in no particular order.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.tokens))
	for id := range r.tokens {
		ids = append(ids, id)
	}
	return ids
}
