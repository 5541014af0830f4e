package errors

import "errors"

// hint is the user-facing text attached to a sentinel.
type hint struct {
	sentinel error
	message  string
	action   string
}

// hints is searched in order with errors.Is, so wrapped sentinels match.
// More specific sentinels come before the ones they may wrap.
//
//nolint:gochecknoglobals // lookup table
var hints = []hint{
	{ErrHookRejected, "A repository hook rejected the operation.",
		"Review the hook output above, fix the reported problem and retry."},
	{ErrUnresolvedConflicts, "There are still unresolved conflicts.",
		"Resolve every conflicted file with 'keel resolve' or 'keel mark', then continue."},
	{ErrNotConflicted, "That file is not currently conflicted.",
		"Run 'keel conflicts' to list the files that need resolution."},
	{ErrNoOperationInProgress, "No merge, rebase, cherry-pick or revert is in progress.",
		"Run 'keel state' to inspect the repository."},
	{ErrOperationInProgress, "Another operation is already in progress.",
		"Continue or abort the suspended operation first."},
	{ErrOperationCanceled, "Operation was canceled.", ""},
	{ErrPushAuthFailed, "The remote rejected your credentials.",
		"Check your SSH keys or credential helper for this remote."},
	{ErrPushNetworkFailed, "Could not reach the remote.",
		"Check your network connection and run the command again."},
	{ErrPushRejected, "The remote rejected the update because it contains work you do not have.",
		"Pull or fetch and integrate the remote changes, then push again."},
	{ErrRemoteNotFound, "The remote repository or ref was not found.",
		"Verify the remote name and URL with 'git remote -v'."},
	{ErrGitOperation, "git reported an error.",
		"Review the git output above."},
	{ErrNotGitRepo, "Not inside a git working tree.",
		"Pass --repo with a path inside a git working tree."},
	{ErrConfigNil, "Configuration is not loaded.",
		"Check that ~/.keel/config.yaml and .keel/config.yaml are valid YAML."},
	{ErrEmptyValue, "A required value is missing.", ""},
	{ErrInvalidArgument, "Invalid argument.",
		"Run the command with --help to see its usage."},
}

func lookup(err error) (hint, bool) {
	for _, h := range hints {
		if errors.Is(err, h.sentinel) {
			return h, true
		}
	}
	return hint{}, false
}

// UserMessage returns a friendly message for known errors and err.Error()
// for everything else.
func UserMessage(err error) string {
	message, _ := Actionable(err)
	return message
}

// Actionable is UserMessage plus a suggested next step. The action is empty
// when there is nothing useful to suggest.
func Actionable(err error) (message, action string) {
	if err == nil {
		return "", ""
	}
	h, ok := lookup(err)
	if !ok {
		return err.Error(), ""
	}
	return h.message, h.action
}
