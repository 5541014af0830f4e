package opstate

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/mrz1836/keel/internal/constants"
)

// Detect reads the control directory gitDir and reports the suspended
// operation, if any.
func Detect(gitDir string) State {
	return DetectWithHints(gitDir, Hints{})
}

// DetectWithHints is Detect with caller-remembered details merged in.
//
// Priority is fixed and the first match wins: rebase state directory,
// MERGE_HEAD, CHERRY_PICK_HEAD, REVERT_HEAD, BISECT_LOG.
func DetectWithHints(gitDir string, hints Hints) State {
	if info, err := os.Stat(gitDir); err != nil || !info.IsDir() {
		return State{Kind: None}
	}

	if rs := detectRebase(gitDir); rs != nil {
		rs.OntoName = hints.OntoName
		return State{Kind: Rebasing, Rebase: rs}
	}

	if exists(filepath.Join(gitDir, constants.MergeHead)) {
		head, _ := readFirstLine(filepath.Join(gitDir, constants.MergeHead))
		return State{Kind: Merging, Merge: detectMerge(gitDir, head)}
	}

	if exists(filepath.Join(gitDir, constants.CherryPickHead)) {
		commit, _ := readFirstLine(filepath.Join(gitDir, constants.CherryPickHead))
		return State{Kind: CherryPicking, CherryPick: &CherryPickState{
			Commit:    commit,
			Remaining: sequencerRemaining(gitDir),
		}}
	}

	if exists(filepath.Join(gitDir, constants.RevertHead)) {
		commit, _ := readFirstLine(filepath.Join(gitDir, constants.RevertHead))
		return State{Kind: Reverting, Revert: &RevertState{
			Commit:    commit,
			Remaining: sequencerRemaining(gitDir),
		}}
	}

	if exists(filepath.Join(gitDir, constants.BisectLog)) {
		return State{Kind: Bisecting, Bisect: &BisectState{
			CurrentCommit:  bisectCurrent(gitDir),
			StepsRemaining: hints.BisectStepsRemaining,
		}}
	}

	return State{Kind: None}
}

func detectRebase(gitDir string) *RebaseState {
	mergeDir := filepath.Join(gitDir, constants.RebaseMergeDir)
	if isDir(mergeDir) {
		rs := &RebaseState{
			Backend:     BackendMerge,
			CurrentStep: readInt(filepath.Join(mergeDir, constants.RebaseMsgNum)),
			TotalSteps:  readInt(filepath.Join(mergeDir, constants.RebaseEnd)),
			Interactive: exists(filepath.Join(mergeDir, constants.RebaseInteractive)),
		}
		fillCommon(rs, mergeDir)
		rs.StoppedCommit, _ = readFirstLine(filepath.Join(mergeDir, constants.RebaseStoppedSHA))
		rs.PausedSubAction = lastDoneAction(filepath.Join(mergeDir, constants.RebaseDone))
		if exists(filepath.Join(mergeDir, constants.RebaseAmend)) {
			rs.PausedSubAction = SubActionEdit
		}
		return rs
	}

	applyDir := filepath.Join(gitDir, constants.RebaseApplyDir)
	// rebase-apply is shared with git am; "applying" marks an am session.
	if isDir(applyDir) && !exists(filepath.Join(applyDir, constants.RebaseApplying)) {
		rs := &RebaseState{
			Backend:     BackendApply,
			CurrentStep: readInt(filepath.Join(applyDir, constants.RebaseNext)),
			TotalSteps:  readInt(filepath.Join(applyDir, constants.RebaseLast)),
		}
		fillCommon(rs, applyDir)
		return rs
	}

	return nil
}

func fillCommon(rs *RebaseState, dir string) {
	rs.Onto, _ = readFirstLine(filepath.Join(dir, constants.RebaseOnto))
	if name, ok := readFirstLine(filepath.Join(dir, constants.RebaseHeadName)); ok && name != "detached HEAD" {
		rs.HeadName = strings.TrimPrefix(name, "refs/heads/")
	}
}

// lastDoneAction returns the command of the last executed todo line.
func lastDoneAction(path string) SubAction {
	lines, ok := readLines(path)
	if !ok {
		return SubActionNone
	}
	for i := len(lines) - 1; i >= 0; i-- {
		fields := strings.Fields(lines[i])
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		return parseSubAction(fields[0])
	}
	return SubActionNone
}

func parseSubAction(word string) SubAction {
	switch strings.ToLower(word) {
	case "p", "pick":
		return SubActionPick
	case "e", "edit":
		return SubActionEdit
	case "r", "reword":
		return SubActionReword
	case "s", "squash":
		return SubActionSquash
	case "f", "fixup":
		return SubActionFixup
	case "x", "exec":
		return SubActionExec
	case "b", "break":
		return SubActionBreak
	case "d", "drop":
		return SubActionDrop
	}
	return SubActionNone
}

var mergeMsgBranch = regexp.MustCompile(`^Merge (?:remote-tracking )?(?:branch|tag) '([^']+)'`)

func detectMerge(gitDir, head string) *MergeState {
	ms := &MergeState{Head: head, Branch: head}
	if msg, ok := readFirstLine(filepath.Join(gitDir, constants.MergeMsg)); ok {
		if m := mergeMsgBranch.FindStringSubmatch(msg); m != nil {
			ms.Branch = m[1]
		}
	}
	return ms
}

// sequencerRemaining counts the queued picks after the current one. The
// sequencer keeps the stopped commit at the top of its todo list.
func sequencerRemaining(gitDir string) int {
	lines, ok := readLines(filepath.Join(gitDir, constants.SequencerDir, constants.SequencerTodo))
	if !ok {
		return 0
	}
	n := 0
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return n - 1
}

func bisectCurrent(gitDir string) string {
	if sha, ok := readFirstLine(filepath.Join(gitDir, constants.BisectHead)); ok {
		return sha
	}
	head, ok := readFirstLine(filepath.Join(gitDir, constants.HeadFile))
	if !ok || strings.HasPrefix(head, "ref:") {
		return ""
	}
	return head
}

func readFirstLine(path string) (string, bool) {
	f, err := os.Open(path) //#nosec G304 -- path is built from the git dir
	if err != nil {
		return "", false
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return "", false
	}
	line := strings.TrimSpace(scanner.Text())
	return line, line != ""
}

func readLines(path string) ([]string, bool) {
	data, err := os.ReadFile(path) //#nosec G304 -- path is built from the git dir
	if err != nil {
		return nil, false
	}
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n"), true
}

func readInt(path string) int {
	s, ok := readFirstLine(path)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
