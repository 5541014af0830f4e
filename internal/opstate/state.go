// Package opstate infers which multi-step git operation is suspended in a
// repository by reading the sentinel files git leaves in its control
// directory.
//
// The detector never fails. Optional details that cannot be read or parsed
// are reported as absent (zero values), and an unreadable control directory
// reports Kind None. Git or the user's own terminal may rewrite these files at
// any moment, so a State is a snapshot and is never persisted.
package opstate

// Kind names the suspended operation.
type Kind string

// Operation kinds, in detection priority order after None.
const (
	None          Kind = "none"
	Rebasing      Kind = "rebasing"
	Merging       Kind = "merging"
	CherryPicking Kind = "cherry_picking"
	Reverting     Kind = "reverting"
	Bisecting     Kind = "bisecting"
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	return string(k)
}

// SubAction is the todo command a rebase paused on.
type SubAction string

// Rebase todo commands.
const (
	SubActionNone   SubAction = ""
	SubActionPick   SubAction = "pick"
	SubActionEdit   SubAction = "edit"
	SubActionReword SubAction = "reword"
	SubActionSquash SubAction = "squash"
	SubActionFixup  SubAction = "fixup"
	SubActionExec   SubAction = "exec"
	SubActionBreak  SubAction = "break"
	SubActionDrop   SubAction = "drop"
)

// Backend is the rebase implementation that wrote the state directory.
type Backend string

// Rebase backends.
const (
	BackendMerge Backend = "merge"
	BackendApply Backend = "apply"
)

// State is a tagged union: Kind selects which one of the variant pointers is
// set. All variant pointers are nil when Kind is None.
type State struct {
	Kind       Kind             `json:"kind"`
	Merge      *MergeState      `json:"merge,omitempty"`
	Rebase     *RebaseState     `json:"rebase,omitempty"`
	CherryPick *CherryPickState `json:"cherry_pick,omitempty"`
	Revert     *RevertState     `json:"revert,omitempty"`
	Bisect     *BisectState     `json:"bisect,omitempty"`
}

// MergeState describes a merge waiting for conflict resolution.
type MergeState struct {
	// Branch is the merged-in branch as named in MERGE_MSG. It falls back to
	// the MERGE_HEAD hash when the message names no branch.
	Branch string `json:"branch,omitempty"`
	Head   string `json:"head,omitempty"`
}

// RebaseState describes a suspended rebase. Steps are 1-based; 0 is absent.
type RebaseState struct {
	Onto            string    `json:"onto,omitempty"`
	OntoName        string    `json:"onto_name,omitempty"`
	CurrentStep     int       `json:"current_step,omitempty"`
	TotalSteps      int       `json:"total_steps,omitempty"`
	PausedSubAction SubAction `json:"paused_sub_action,omitempty"`
	HeadName        string    `json:"head_name,omitempty"`
	StoppedCommit   string    `json:"stopped_commit,omitempty"`
	Interactive     bool      `json:"interactive,omitempty"`
	Backend         Backend   `json:"backend"`
}

// CherryPickState describes a suspended cherry-pick.
type CherryPickState struct {
	Commit string `json:"commit,omitempty"`
	// Remaining counts the commits queued after the current one.
	Remaining int `json:"remaining,omitempty"`
}

// RevertState describes a suspended revert.
type RevertState struct {
	Commit    string `json:"commit,omitempty"`
	Remaining int    `json:"remaining,omitempty"`
}

// BisectState describes a bisect session.
type BisectState struct {
	CurrentCommit  string `json:"current_commit,omitempty"`
	StepsRemaining int    `json:"steps_remaining,omitempty"`
}

// Hints carry facts the control directory does not record, remembered by
// the process that started the operation.
type Hints struct {
	// OntoName is the branch name a rebase was started against. Git only
	// records the resolved hash.
	OntoName string

	// BisectStepsRemaining is the estimate git printed on the last bisect step.
	BisectStepsRemaining int
}

// InProgress reports whether any operation is suspended.
func (s State) InProgress() bool {
	return s.Kind != None && s.Kind != ""
}

// Equal reports whether two snapshots describe the same state.
func (s State) Equal(o State) bool {
	if s.Kind != o.Kind {
		return false
	}
	return eqPtr(s.Merge, o.Merge) &&
		eqPtr(s.Rebase, o.Rebase) &&
		eqPtr(s.CherryPick, o.CherryPick) &&
		eqPtr(s.Revert, o.Revert) &&
		eqPtr(s.Bisect, o.Bisect)
}

func eqPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
