package opstate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	shaA = "1111111111111111111111111111111111111111"
	shaB = "2222222222222222222222222222222222222222"
)

// writeSentinels lays out files relative to a fake git dir. A trailing "/"
// creates a directory.
func writeSentinels(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if name[len(name)-1] == '/' {
			require.NoError(t, os.MkdirAll(path, 0o750))
			continue
		}
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	return dir
}

func TestDetect_Fixtures(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		hints Hints
		want  State
	}{
		{
			name:  "clean",
			files: map[string]string{"HEAD": "ref: refs/heads/main\n"},
			want:  State{Kind: None},
		},
		{
			name: "merge with branch name",
			files: map[string]string{
				"MERGE_HEAD": shaA + "\n",
				"MERGE_MSG":  "Merge branch 'feature'\n\n# Conflicts:\n#\tconflict.txt\n",
			},
			want: State{Kind: Merging, Merge: &MergeState{Branch: "feature", Head: shaA}},
		},
		{
			name: "merge remote-tracking branch into current",
			files: map[string]string{
				"MERGE_HEAD": shaA + "\n",
				"MERGE_MSG":  "Merge remote-tracking branch 'origin/main' into topic\n",
			},
			want: State{Kind: Merging, Merge: &MergeState{Branch: "origin/main", Head: shaA}},
		},
		{
			name: "merge without message falls back to hash",
			files: map[string]string{
				"MERGE_HEAD": shaA + "\n",
			},
			want: State{Kind: Merging, Merge: &MergeState{Branch: shaA, Head: shaA}},
		},
		{
			name: "merge backend rebase",
			files: map[string]string{
				"rebase-merge/msgnum":      "2\n",
				"rebase-merge/end":         "3\n",
				"rebase-merge/head-name":   "refs/heads/topic\n",
				"rebase-merge/onto":        shaB + "\n",
				"rebase-merge/stopped-sha": shaA + "\n",
				"rebase-merge/done":        "pick aaa one\npick " + shaA + " two\n",
				"MERGE_HEAD":               shaA,
			},
			hints: Hints{OntoName: "main"},
			want: State{Kind: Rebasing, Rebase: &RebaseState{
				Onto:            shaB,
				OntoName:        "main",
				CurrentStep:     2,
				TotalSteps:      3,
				PausedSubAction: SubActionPick,
				HeadName:        "topic",
				StoppedCommit:   shaA,
				Backend:         BackendMerge,
			}},
		},
		{
			name: "interactive edit stop",
			files: map[string]string{
				"rebase-merge/msgnum":      "1\n",
				"rebase-merge/end":         "2\n",
				"rebase-merge/head-name":   "detached HEAD\n",
				"rebase-merge/interactive": "",
				"rebase-merge/done":        "p aaa one\n",
				"rebase-merge/amend":       shaA,
			},
			want: State{Kind: Rebasing, Rebase: &RebaseState{
				CurrentStep:     1,
				TotalSteps:      2,
				PausedSubAction: SubActionEdit,
				Interactive:     true,
				Backend:         BackendMerge,
			}},
		},
		{
			name: "abbreviated break",
			files: map[string]string{
				"rebase-merge/done": "pick aaa one\nb\n",
			},
			want: State{Kind: Rebasing, Rebase: &RebaseState{
				PausedSubAction: SubActionBreak,
				Backend:         BackendMerge,
			}},
		},
		{
			name: "apply backend",
			files: map[string]string{
				"rebase-apply/next":      "3\n",
				"rebase-apply/last":      "4\n",
				"rebase-apply/head-name": "refs/heads/topic\n",
				"rebase-apply/onto":      shaB + "\n",
			},
			want: State{Kind: Rebasing, Rebase: &RebaseState{
				Onto:        shaB,
				CurrentStep: 3,
				TotalSteps:  4,
				HeadName:    "topic",
				Backend:     BackendApply,
			}},
		},
		{
			name: "am session is not a rebase",
			files: map[string]string{
				"rebase-apply/applying": "",
				"rebase-apply/next":     "1\n",
			},
			want: State{Kind: None},
		},
		{
			name: "garbage counters are absent",
			files: map[string]string{
				"rebase-merge/msgnum": "two\n",
				"rebase-merge/end":    "-1\n",
				"rebase-merge/done":   "frobnicate aaa\n",
			},
			want: State{Kind: Rebasing, Rebase: &RebaseState{Backend: BackendMerge}},
		},
		{
			name: "empty rebase dir",
			files: map[string]string{
				"rebase-merge/": "",
			},
			want: State{Kind: Rebasing, Rebase: &RebaseState{Backend: BackendMerge}},
		},
		{
			name: "cherry-pick with sequencer",
			files: map[string]string{
				"CHERRY_PICK_HEAD": shaA + "\n",
				"sequencer/todo":   "pick " + shaA + " one\npick bbb two\n# comment\npick ccc three\n",
			},
			want: State{Kind: CherryPicking, CherryPick: &CherryPickState{Commit: shaA, Remaining: 2}},
		},
		{
			name: "single revert",
			files: map[string]string{
				"REVERT_HEAD": shaB + "\n",
			},
			want: State{Kind: Reverting, Revert: &RevertState{Commit: shaB}},
		},
		{
			name: "bisect with detached head",
			files: map[string]string{
				"BISECT_LOG": "git bisect start\n",
				"HEAD":       shaA + "\n",
			},
			hints: Hints{BisectStepsRemaining: 3},
			want:  State{Kind: Bisecting, Bisect: &BisectState{CurrentCommit: shaA, StepsRemaining: 3}},
		},
		{
			name: "bisect no-checkout",
			files: map[string]string{
				"BISECT_LOG":  "git bisect start\n",
				"BISECT_HEAD": shaB + "\n",
				"HEAD":        "ref: refs/heads/main\n",
			},
			want: State{Kind: Bisecting, Bisect: &BisectState{CurrentCommit: shaB}},
		},
		{
			name: "bisect on branch has no current commit",
			files: map[string]string{
				"BISECT_LOG": "",
				"HEAD":       "ref: refs/heads/main\n",
			},
			want: State{Kind: Bisecting, Bisect: &BisectState{}},
		},
		{
			name: "merge beats cherry-pick and bisect",
			files: map[string]string{
				"MERGE_HEAD":       shaA,
				"CHERRY_PICK_HEAD": shaB,
				"BISECT_LOG":       "",
			},
			want: State{Kind: Merging, Merge: &MergeState{Branch: shaA, Head: shaA}},
		},
		{
			name: "cherry-pick beats revert",
			files: map[string]string{
				"CHERRY_PICK_HEAD": shaA,
				"REVERT_HEAD":      shaB,
			},
			want: State{Kind: CherryPicking, CherryPick: &CherryPickState{Commit: shaA}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gitDir := writeSentinels(t, tt.files)

			got := DetectWithHints(gitDir, tt.hints)

			assert.Equal(t, tt.want, got)
			assert.True(t, got.Equal(tt.want))
		})
	}
}

func TestDetect_MissingGitDir(t *testing.T) {
	assert.Equal(t, State{Kind: None}, Detect(filepath.Join(t.TempDir(), "missing")))
}

func TestState_InProgress(t *testing.T) {
	assert.False(t, State{Kind: None}.InProgress())
	assert.False(t, State{}.InProgress())
	assert.True(t, State{Kind: Bisecting, Bisect: &BisectState{}}.InProgress())
}

func TestState_Equal(t *testing.T) {
	a := State{Kind: Rebasing, Rebase: &RebaseState{CurrentStep: 1, TotalSteps: 3}}
	b := State{Kind: Rebasing, Rebase: &RebaseState{CurrentStep: 1, TotalSteps: 3}}
	c := State{Kind: Rebasing, Rebase: &RebaseState{CurrentStep: 2, TotalSteps: 3}}

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(State{Kind: None}))
	assert.True(t, State{Kind: None}.Equal(State{Kind: None}))
}

func TestParseSubAction(t *testing.T) {
	tests := map[string]SubAction{
		"pick": SubActionPick, "p": SubActionPick,
		"edit": SubActionEdit, "e": SubActionEdit,
		"reword": SubActionReword, "r": SubActionReword,
		"squash": SubActionSquash, "s": SubActionSquash,
		"fixup": SubActionFixup, "f": SubActionFixup,
		"exec": SubActionExec, "x": SubActionExec,
		"break": SubActionBreak, "b": SubActionBreak,
		"drop": SubActionDrop, "d": SubActionDrop,
		"label": SubActionNone,
	}
	for word, want := range tests {
		t.Run(word, func(t *testing.T) {
			assert.Equal(t, want, parseSubAction(word))
		})
	}
}
