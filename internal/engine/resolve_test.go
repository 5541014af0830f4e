package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	keelerrors "github.com/mrz1836/keel/internal/errors"
	"github.com/mrz1836/keel/internal/opstate"
	"github.com/mrz1836/keel/internal/testutil"
)

func TestResolve_OursRoundTrip(t *testing.T) {
	ctx := context.Background()
	r := testutil.NewConflictRepo(t)
	e := New()
	c := openCoordinator(t, r.Dir)

	_, err := e.Merge(ctx, c, "feature", MergeOptions{})
	require.NoError(t, err)

	require.NoError(t, e.ResolveWithVersion(ctx, c, "conflict.txt", Ours))
	assert.Equal(t, "ours\n", r.ReadFile("conflict.txt"))
	assert.Empty(t, r.Unmerged())

	res, err := e.MergeContinue(ctx, c)
	require.NoError(t, err)
	assert.True(t, res.Success)

	files, err := e.ConflictedFiles(ctx, c)
	require.NoError(t, err)
	assert.Empty(t, files)
	assert.Equal(t, string(opstate.None), state(t, e, c))
}

func TestResolve_MarkUnresolvedRestoresMarkers(t *testing.T) {
	ctx := context.Background()
	r := testutil.NewConflictRepo(t)
	e := New()
	c := openCoordinator(t, r.Dir)

	_, err := e.Merge(ctx, c, "feature", MergeOptions{})
	require.NoError(t, err)
	require.NoError(t, e.ResolveWithVersion(ctx, c, "conflict.txt", Ours))
	require.Empty(t, r.Unmerged())

	require.NoError(t, e.MarkUnresolved(ctx, c, "conflict.txt"))
	assert.Equal(t, []string{"conflict.txt"}, r.Unmerged())
	content := r.ReadFile("conflict.txt")
	assert.True(t, strings.HasPrefix(content, "<<<<<<<"), content)
	assert.Contains(t, content, "theirs")

	// The restored conflict can be resolved the other way.
	require.NoError(t, e.ResolveWithVersion(ctx, c, "conflict.txt", Theirs))
	assert.Equal(t, "theirs\n", r.ReadFile("conflict.txt"))
}

func TestResolve_CustomAndMark(t *testing.T) {
	ctx := context.Background()
	r := testutil.NewConflictRepo(t)
	e := New()
	c := openCoordinator(t, r.Dir)

	_, err := e.Merge(ctx, c, "feature", MergeOptions{})
	require.NoError(t, err)

	require.NoError(t, e.ResolveWithCustom(ctx, c, "conflict.txt", []byte("ours and theirs\n")))
	assert.Equal(t, "ours and theirs\n", r.ReadFile("conflict.txt"))
	assert.Empty(t, r.Unmerged())

	require.NoError(t, e.MarkUnresolved(ctx, c, "conflict.txt"))
	r.WriteFile("conflict.txt", "edited by hand\n")
	require.NoError(t, e.MarkResolved(ctx, c, "conflict.txt"))
	assert.Empty(t, r.Unmerged())

	res, err := e.MergeContinue(ctx, c)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "edited by hand", r.Git("show", "HEAD:conflict.txt"))
}

func TestResolve_DeleteModify(t *testing.T) {
	ctx := context.Background()
	r := testutil.NewRepo(t)
	r.CommitFile("doc.txt", "base\n", "base")
	r.Git("checkout", "-q", "-b", "feature")
	r.Git("rm", "-q", "doc.txt")
	r.Git("commit", "-q", "-m", "delete")
	r.Git("checkout", "-q", "main")
	r.CommitFile("doc.txt", "changed\n", "modify")

	e := New()
	c := openCoordinator(t, r.Dir)
	_, err := e.Merge(ctx, c, "feature", MergeOptions{})
	require.NoError(t, err)

	require.NoError(t, e.ResolveWithVersion(ctx, c, "doc.txt", Theirs))
	assert.NoFileExists(t, r.Path("doc.txt"))

	require.NoError(t, e.MarkUnresolved(ctx, c, "doc.txt"))
	assert.Equal(t, "changed\n", r.ReadFile("doc.txt"))
	assert.Equal(t, []string{"doc.txt"}, r.Unmerged())

	require.NoError(t, e.ResolveWithVersion(ctx, c, "doc.txt", Ours))
	res, err := e.MergeContinue(ctx, c)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "changed", r.Git("show", "HEAD:doc.txt"))
}

func TestResolve_Errors(t *testing.T) {
	ctx := context.Background()
	r := testutil.NewConflictRepo(t)
	r.CommitFile("clean.txt", "clean\n", "clean")
	e := New()
	c := openCoordinator(t, r.Dir)

	err := e.ResolveWithVersion(ctx, c, "conflict.txt", Ours)
	require.ErrorIs(t, err, keelerrors.ErrNotConflicted)

	_, err = e.Merge(ctx, c, "feature", MergeOptions{})
	require.NoError(t, err)

	err = e.ResolveWithVersion(ctx, c, "clean.txt", Ours)
	require.ErrorIs(t, err, keelerrors.ErrNotConflicted)

	err = e.ResolveWithCustom(ctx, c, "../outside.txt", []byte("x"))
	require.ErrorIs(t, err, keelerrors.ErrInvalidArgument)

	err = e.MarkResolved(ctx, c, "")
	require.ErrorIs(t, err, keelerrors.ErrEmptyValue)

	err = e.ResolveWithVersion(ctx, c, "conflict.txt", "base")
	require.ErrorIs(t, err, keelerrors.ErrInvalidArgument)
}

func TestResolver_WithHeldGuard(t *testing.T) {
	ctx := context.Background()
	r := testutil.NewConflictRepo(t)
	e := New()
	c := openCoordinator(t, r.Dir)

	_, err := e.Merge(ctx, c, "feature", MergeOptions{})
	require.NoError(t, err)

	g, err := c.Write(ctx)
	require.NoError(t, err)
	rs := e.Resolver(g)
	require.NoError(t, rs.WithVersion(ctx, "conflict.txt", Theirs))
	require.NoError(t, rs.MarkUnresolved(ctx, "conflict.txt"))
	require.NoError(t, rs.MarkResolved(ctx, "conflict.txt"))
	g.Release()

	files, err := e.ConflictedFiles(ctx, c)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.True(t, files[0].Resolved)
}
