package engine

import (
	"context"

	"github.com/mrz1836/keel/internal/opstate"
	"github.com/mrz1836/keel/internal/repo"
)

// mutate runs fn under the write guard. Once the guard is held fn sees a
// context that ignores the caller's cancellation, so a started git command
// always runs to completion.
func mutate[T any](ctx context.Context, c *repo.Coordinator, fn func(context.Context, *repo.Repository) (T, error)) (T, error) {
	return repo.WithWrite(ctx, c, func(r *repo.Repository) (T, error) {
		return fn(context.WithoutCancel(ctx), r)
	})
}

// OperationState reports which operation, if any, is suspended.
func (e *Engine) OperationState(ctx context.Context, c *repo.Coordinator) (opstate.State, error) {
	return repo.WithRead(ctx, c, func(rd repo.Reader) (opstate.State, error) {
		return rd.OperationState(), nil
	})
}

// RebaseProgress returns the progress of a suspended rebase, or nil when no
// rebase is in progress.
func (e *Engine) RebaseProgress(ctx context.Context, c *repo.Coordinator) (*opstate.RebaseState, error) {
	return repo.WithRead(ctx, c, func(rd repo.Reader) (*opstate.RebaseState, error) {
		return rd.OperationState().Rebase, nil
	})
}
