package engine

import (
	"fmt"
	"strings"

	keelerrors "github.com/mrz1836/keel/internal/errors"
)

// ConflictType describes why a path could not be merged.
type ConflictType string

// Conflict types.
const (
	ConflictContent      ConflictType = "content"
	ConflictDeleteModify ConflictType = "delete_modify"
	ConflictAddAdd       ConflictType = "add_add"
	ConflictRenameRename ConflictType = "rename_rename"
	ConflictRenameModify ConflictType = "rename_modify"
	ConflictBinary       ConflictType = "binary"
)

// ConflictedFile is one path of the current conflict set.
type ConflictedFile struct {
	Path     string       `json:"path"`
	Type     ConflictType `json:"type"`
	Resolved bool         `json:"resolved"`
}

// MergeKind is how a successful merge was recorded.
type MergeKind string

// Merge kinds.
const (
	MergeFastForward MergeKind = "fast_forward"
	MergeUpToDate    MergeKind = "up_to_date"
	MergeCommit      MergeKind = "merge_commit"
	MergeSquashed    MergeKind = "squashed"
	MergeNoCommit    MergeKind = "no_commit"
)

// MergeOptions tune Merge and Pull.
type MergeOptions struct {
	NoFF     bool   `json:"no_ff,omitempty"`
	FFOnly   bool   `json:"ff_only,omitempty"`
	Squash   bool   `json:"squash,omitempty"`
	NoCommit bool   `json:"no_commit,omitempty"`
	Message  string `json:"message,omitempty"`
}

// MergeResult is the outcome of a merge, merge continue or pull.
type MergeResult struct {
	Success   bool             `json:"success"`
	Kind      MergeKind        `json:"kind,omitempty"`
	Conflicts []ConflictedFile `json:"conflicts,omitempty"`
	Message   string           `json:"message,omitempty"`
}

// RebaseResult is the outcome of a rebase step. Stopped means the rebase
// paused on an edit or break instruction without conflicts.
type RebaseResult struct {
	Success     bool             `json:"success"`
	UpToDate    bool             `json:"up_to_date,omitempty"`
	Stopped     bool             `json:"stopped,omitempty"`
	CurrentStep int              `json:"current_step,omitempty"`
	TotalSteps  int              `json:"total_steps,omitempty"`
	Conflicts   []ConflictedFile `json:"conflicts,omitempty"`
	Message     string           `json:"message,omitempty"`
}

// CherryPickResult is the outcome of a cherry-pick step.
type CherryPickResult struct {
	Success   bool             `json:"success"`
	Commits   []string         `json:"commits,omitempty"`
	Applied   int              `json:"applied"`
	Conflicts []ConflictedFile `json:"conflicts,omitempty"`
	Message   string           `json:"message,omitempty"`
}

// RevertResult is the outcome of a revert step.
type RevertResult struct {
	Success   bool             `json:"success"`
	Commits   []string         `json:"commits,omitempty"`
	Conflicts []ConflictedFile `json:"conflicts,omitempty"`
	Message   string           `json:"message,omitempty"`
}

// ResetMode selects what reset rewrites.
type ResetMode string

// Reset modes.
const (
	ResetSoft  ResetMode = "soft"
	ResetMixed ResetMode = "mixed"
	ResetHard  ResetMode = "hard"
)

// ParseResetMode validates a reset mode name.
func ParseResetMode(s string) (ResetMode, error) {
	switch m := ResetMode(strings.ToLower(s)); m {
	case ResetSoft, ResetMixed, ResetHard:
		return m, nil
	case "":
		return ResetMixed, nil
	}
	return "", fmt.Errorf("%w: reset mode %q", keelerrors.ErrInvalidArgument, s)
}

// ResetResult is the outcome of a reset.
type ResetResult struct {
	Mode   ResetMode `json:"mode"`
	Target string    `json:"target"`
	Head   string    `json:"head"`
}

// Side picks one version of a conflicted path. During a rebase "ours" is the
// branch being rebased onto and "theirs" the commit being replayed.
type Side string

// Conflict sides.
const (
	Ours   Side = "ours"
	Theirs Side = "theirs"
)

// ParseSide validates a side name.
func ParseSide(s string) (Side, error) {
	switch side := Side(strings.ToLower(s)); side {
	case Ours, Theirs:
		return side, nil
	}
	return "", fmt.Errorf("%w: side %q", keelerrors.ErrInvalidArgument, s)
}

// OperationError is a hard failure: git exited non-zero for a reason other
// than conflicts. Output is git's diagnostic text, verbatim.
type OperationError struct {
	Op       string
	Args     []string
	ExitCode int
	Output   string
}

func (e *OperationError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("%s failed (exit %d)", e.Op, e.ExitCode)
	}
	return fmt.Sprintf("%s failed (exit %d): %s", e.Op, e.ExitCode, e.Output)
}

// Unwrap lets errors.Is match ErrGitOperation.
func (e *OperationError) Unwrap() error {
	return keelerrors.ErrGitOperation
}
