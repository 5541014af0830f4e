package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mrz1836/keel/internal/repo"
)

// openCoordinator opens dir with default options and closes it with the test.
func openCoordinator(t *testing.T, dir string) *repo.Coordinator {
	t.Helper()
	r, err := repo.Open(context.Background(), dir, repo.DefaultOptions())
	require.NoError(t, err)
	c := repo.NewCoordinator(r)
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c
}

func state(t *testing.T, e *Engine, c *repo.Coordinator) string {
	t.Helper()
	st, err := e.OperationState(context.Background(), c)
	require.NoError(t, err)
	return string(st.Kind)
}
