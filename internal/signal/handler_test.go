package signal

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_FirstSignal_RunsCallbacksOnly(t *testing.T) {
	h := NewHandler(context.Background())
	defer h.Stop()

	var calls atomic.Int32
	h.OnInterrupt(func() { calls.Add(1) })
	h.OnInterrupt(func() { calls.Add(1) })

	h.handleSignal()

	assert.Equal(t, int32(2), calls.Load())
	assert.NoError(t, h.Context().Err(), "first signal must not cancel the context")

	select {
	case <-h.Interrupted():
	default:
		t.Fatal("interrupted channel should be closed after signal")
	}
}

func TestHandler_SecondSignal_CancelsContext(t *testing.T) {
	h := NewHandler(context.Background())
	defer h.Stop()

	var calls atomic.Int32
	h.OnInterrupt(func() { calls.Add(1) })

	h.handleSignal()
	h.handleSignal()
	h.handleSignal()

	require.Error(t, h.Context().Err())
	assert.Equal(t, context.Canceled, h.Context().Err())
	assert.Equal(t, int32(1), calls.Load(), "callbacks run exactly once")
}

func TestHandler_OnInterruptAfterSignal_RunsImmediately(t *testing.T) {
	h := NewHandler(context.Background())
	defer h.Stop()

	h.handleSignal()

	ran := false
	h.OnInterrupt(func() { ran = true })
	assert.True(t, ran)
}

func TestHandler_Stop_IsIdempotent(t *testing.T) {
	h := NewHandler(context.Background())

	h.Stop()
	h.Stop()

	assert.Error(t, h.Context().Err())
}

func TestHandler_ParentContextCancelled(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	h := NewHandler(parent)
	defer h.Stop()

	cancel()

	assert.Error(t, h.Context().Err())
}

func TestHandler_InterruptedChannelNotClosedInitially(t *testing.T) {
	h := NewHandler(context.Background())
	defer h.Stop()

	select {
	case <-h.Interrupted():
		t.Fatal("interrupted channel should be open initially")
	default:
	}
}

func TestHandler_ListenProcessesRepeatedSignals(t *testing.T) {
	h := NewHandler(context.Background())
	defer h.Stop()

	h.sigChan <- nil
	h.sigChan <- nil

	require.Eventually(t, func() bool {
		return h.Context().Err() != nil
	}, time.Second, 5*time.Millisecond)

	select {
	case <-h.Interrupted():
	default:
		t.Fatal("interrupted channel should be closed after signal")
	}
}
