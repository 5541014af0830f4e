package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/keel/internal/git"
	"github.com/mrz1836/keel/internal/testutil"
)

func TestParseConflictHints(t *testing.T) {
	output := `Auto-merging a.txt
CONFLICT (content): Merge conflict in a.txt
CONFLICT (modify/delete): b.txt deleted in feature and modified in HEAD.  Version HEAD of b.txt left in tree.
CONFLICT (rename/rename): old.txt renamed to x.txt in HEAD and to y.txt in feature.
CONFLICT (rename/delete): c.txt renamed to d.txt in HEAD, but deleted in feature.
CONFLICT (add/add): Merge conflict in e.txt
warning: Cannot merge binary files: f.bin (HEAD vs. feature)`

	hints := parseConflictHints(output)
	require.Len(t, hints, 6)

	want := []ConflictType{
		ConflictContent,
		ConflictDeleteModify,
		ConflictRenameRename,
		ConflictRenameModify,
		ConflictAddAdd,
		ConflictBinary,
	}
	for i, typ := range want {
		assert.Equal(t, typ, hints[i].typ, hints[i].text)
	}
	assert.Equal(t, "f.bin", hints[5].text)
}

func TestStageType(t *testing.T) {
	tests := []struct {
		name  string
		entry git.UnmergedEntry
		want  ConflictType
	}{
		{"all three", git.UnmergedEntry{BaseHash: "a", OursHash: "b", TheirsHash: "c"}, ConflictContent},
		{"no base", git.UnmergedEntry{OursHash: "b", TheirsHash: "c"}, ConflictAddAdd},
		{"theirs deleted", git.UnmergedEntry{BaseHash: "a", OursHash: "b"}, ConflictDeleteModify},
		{"ours deleted", git.UnmergedEntry{BaseHash: "a", TheirsHash: "c"}, ConflictDeleteModify},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, stageType(tc.entry))
		})
	}
}

func TestIsBinary(t *testing.T) {
	assert.False(t, isBinary([]byte("plain text\n")))
	assert.True(t, isBinary([]byte{'a', 0, 'b'}))

	late := make([]byte, sniffLen+10)
	for i := range late {
		late[i] = 'x'
	}
	late[sniffLen+5] = 0
	assert.False(t, isBinary(late), "NUL beyond the sniff window is ignored")
}

func TestConflictedFiles_Types(t *testing.T) {
	ctx := context.Background()

	t.Run("delete modify", func(t *testing.T) {
		r := testutil.NewRepo(t)
		r.CommitFile("doc.txt", "base\n", "base")
		r.Git("checkout", "-q", "-b", "feature")
		r.Git("rm", "-q", "doc.txt")
		r.Git("commit", "-q", "-m", "delete")
		r.Git("checkout", "-q", "main")
		r.CommitFile("doc.txt", "changed\n", "modify")

		e := New()
		c := openCoordinator(t, r.Dir)
		res, err := e.Merge(ctx, c, "feature", MergeOptions{})
		require.NoError(t, err)
		require.False(t, res.Success)
		require.Len(t, res.Conflicts, 1)
		assert.Equal(t, ConflictDeleteModify, res.Conflicts[0].Type)
	})

	t.Run("add add", func(t *testing.T) {
		r := testutil.NewRepo(t)
		r.CommitFile("readme.txt", "base\n", "base")
		r.Git("checkout", "-q", "-b", "feature")
		r.CommitFile("new.txt", "feature\n", "add on feature")
		r.Git("checkout", "-q", "main")
		r.CommitFile("new.txt", "main\n", "add on main")

		e := New()
		c := openCoordinator(t, r.Dir)
		res, err := e.Merge(ctx, c, "feature", MergeOptions{})
		require.NoError(t, err)
		require.Len(t, res.Conflicts, 1)
		assert.Equal(t, ConflictAddAdd, res.Conflicts[0].Type)
	})

	t.Run("binary", func(t *testing.T) {
		r := testutil.NewRepo(t)
		r.CommitFile("blob.bin", "base\x00data", "base")
		r.Git("checkout", "-q", "-b", "feature")
		r.CommitFile("blob.bin", "feature\x00data", "feature")
		r.Git("checkout", "-q", "main")
		r.CommitFile("blob.bin", "main\x00data", "main")

		e := New()
		c := openCoordinator(t, r.Dir)
		res, err := e.Merge(ctx, c, "feature", MergeOptions{})
		require.NoError(t, err)
		require.Len(t, res.Conflicts, 1)
		assert.Equal(t, ConflictBinary, res.Conflicts[0].Type)

		files, err := e.ConflictedFiles(ctx, c)
		require.NoError(t, err)
		require.Len(t, files, 1)
		assert.Equal(t, ConflictBinary, files[0].Type)
	})
}

func TestConflictedFiles_TracksResolution(t *testing.T) {
	ctx := context.Background()
	r := testutil.NewConflictRepo(t)
	r.Git("checkout", "-q", "feature")
	r.CommitFile("other.txt", "feature\n", "feature other")
	r.Git("checkout", "-q", "main")
	r.CommitFile("other.txt", "main\n", "main other")

	e := New()
	c := openCoordinator(t, r.Dir)

	res, err := e.Merge(ctx, c, "feature", MergeOptions{})
	require.NoError(t, err)
	require.Len(t, res.Conflicts, 2)

	require.NoError(t, e.ResolveWithVersion(ctx, c, "other.txt", Ours))

	files, err := e.ConflictedFiles(ctx, c)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, ConflictedFile{Path: "conflict.txt", Type: ConflictContent}, files[0])
	assert.Equal(t, ConflictedFile{Path: "other.txt", Type: ConflictAddAdd, Resolved: true}, files[1])

	require.NoError(t, e.MergeAbort(ctx, c))
	files, err = e.ConflictedFiles(ctx, c)
	require.NoError(t, err)
	assert.Empty(t, files)
}
