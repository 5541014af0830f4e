// Package ctxutil provides context helpers shared by entry points.
package ctxutil

import "context"

// Canceled returns the context's error once it is done, nil before.
// Long-running loops call it at the top of each iteration.
func Canceled(ctx context.Context) error {
	return ctx.Err()
}
