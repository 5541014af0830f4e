package constants

// Log and configuration file names.
const (
	// CLILogFileName is the name of the rotating log file under ~/.keel/logs.
	CLILogFileName = "keel.log"

	// GlobalConfigName is the name of the configuration file in ~/.keel and .keel.
	GlobalConfigName = "config.yaml"
)

// Control-directory entries written by git while an operation is suspended.
// Paths are relative to the git directory.
const (
	RebaseMergeDir    = "rebase-merge"
	RebaseApplyDir    = "rebase-apply"
	MergeHead         = "MERGE_HEAD"
	MergeMsg          = "MERGE_MSG"
	CherryPickHead    = "CHERRY_PICK_HEAD"
	RevertHead        = "REVERT_HEAD"
	BisectLog         = "BISECT_LOG"
	BisectHead        = "BISECT_HEAD"
	HeadFile          = "HEAD"
	SequencerDir      = "sequencer"
	SequencerTodo     = "todo"
	RebaseMsgNum      = "msgnum"
	RebaseEnd         = "end"
	RebaseNext        = "next"
	RebaseLast        = "last"
	RebaseHeadName    = "head-name"
	RebaseOnto        = "onto"
	RebaseStoppedSHA  = "stopped-sha"
	RebaseDone        = "done"
	RebaseInteractive = "interactive"
	RebaseAmend       = "amend"
	RebaseApplying    = "applying"
)
