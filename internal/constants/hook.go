package constants

// Hook names understood by the hook gate.
const (
	HookPreCommit        = "pre-commit"
	HookPrepareCommitMsg = "prepare-commit-msg"
	HookCommitMsg        = "commit-msg"
	HookPrePush          = "pre-push"
	HookPreRebase        = "pre-rebase"
	HookPostMerge        = "post-merge"
	HookPostCheckout     = "post-checkout"
	HookPostRewrite      = "post-rewrite"
	HookPostCommit       = "post-commit"
)

// MaxHookOutputLength caps the hook output carried in a rejection error.
const MaxHookOutputLength = 4096
