package engine

import "strings"

// Output markers. Git prints these on stdout or stderr depending on version
// and command, so translators always read the combined output.
//
//nolint:gochecknoglobals // immutable marker tables
var (
	conflictMarkers = []string{
		"CONFLICT (",
		"Automatic merge failed",
		"could not apply",
		"could not revert",
		"after resolving the conflicts",
	}

	upToDateMarkers = []string{
		"Already up to date",
		"Already up-to-date",
		"is up to date",
	}

	emptyMarkers = []string{
		"now empty",
		"nothing to commit",
		"No changes",
	}
)

func containsAny(output string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(output, m) {
			return true
		}
	}
	return false
}

// outcome is the coarse result of one git invocation.
type outcome int

const (
	outcomeSucceeded outcome = iota
	outcomeConflicted
	outcomeStopped
	outcomeEmpty
	outcomeFailed
)

func (o outcome) String() string {
	switch o {
	case outcomeSucceeded:
		return "succeeded"
	case outcomeConflicted:
		return "conflicted"
	case outcomeStopped:
		return "stopped"
	case outcomeEmpty:
		return "empty"
	case outcomeFailed:
		return "failed"
	}
	return "unknown"
}

// observation is everything a translator may look at. Unmerged is only
// meaningful after a non-zero exit, and InProgress reflects the control
// directory after the command returned.
type observation struct {
	ExitCode   int
	Output     string
	Unmerged   bool
	InProgress bool
}

// conflicted applies the conflict contract: a non-zero exit together with a
// conflict marker in the output, or unmerged index entries left by an
// operation that is now suspended. Unmerged entries alone do not count when
// git refused to start, since those belong to an earlier conflict.
func (o observation) conflicted() bool {
	if o.ExitCode == 0 {
		return false
	}
	return containsAny(o.Output, conflictMarkers) || (o.Unmerged && o.InProgress)
}

// classifyMerge translates a merge, merge commit or pull.
func classifyMerge(o observation, opts MergeOptions) (outcome, MergeKind) {
	if o.ExitCode != 0 {
		if o.conflicted() {
			return outcomeConflicted, ""
		}
		return outcomeFailed, ""
	}

	switch {
	case containsAny(o.Output, upToDateMarkers):
		return outcomeSucceeded, MergeUpToDate
	case opts.Squash || strings.Contains(o.Output, "Squash commit"):
		return outcomeSucceeded, MergeSquashed
	case opts.NoCommit || strings.Contains(o.Output, "stopped before committing"):
		return outcomeSucceeded, MergeNoCommit
	case strings.Contains(o.Output, "Fast-forward"):
		return outcomeSucceeded, MergeFastForward
	}
	return outcomeSucceeded, MergeCommit
}

// classifyRebase translates rebase and its continue and skip forms. A zero
// exit that leaves the rebase in progress is an edit or break stop.
func classifyRebase(o observation) outcome {
	if o.ExitCode == 0 {
		if o.InProgress {
			return outcomeStopped
		}
		return outcomeSucceeded
	}
	switch {
	case o.conflicted():
		return outcomeConflicted
	case o.InProgress && containsAny(o.Output, emptyMarkers):
		return outcomeEmpty
	}
	return outcomeFailed
}

// classifySequencer translates cherry-pick and revert and their continue
// forms.
func classifySequencer(o observation) outcome {
	if o.ExitCode == 0 {
		return outcomeSucceeded
	}
	switch {
	case o.conflicted():
		return outcomeConflicted
	case o.InProgress && containsAny(o.Output, emptyMarkers):
		return outcomeEmpty
	}
	return outcomeFailed
}
