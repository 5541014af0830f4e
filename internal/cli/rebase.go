package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrz1836/keel/internal/engine"
	"github.com/mrz1836/keel/internal/errors"
	"github.com/mrz1836/keel/internal/opstate"
)

// RebaseFlags holds flags specific to the rebase command.
type RebaseFlags struct {
	sequenceFlags

	// Todo is a file with interactive rebase instructions.
	Todo string
	// Progress prints the progress of a suspended rebase.
	Progress bool
}

// AddRebaseCommand adds the rebase command.
func AddRebaseCommand(root *cobra.Command, a *app) {
	flags := &RebaseFlags{}
	cmd := &cobra.Command{
		Use:   "rebase <onto>",
		Short: "Replay the current branch onto another commit",
		Long: `Replay the current branch onto <onto>. Commits that become empty are
skipped. A conflict suspends the rebase until --continue, --skip or --abort.

With --todo the rebase is interactive: the file lists one instruction per
line in git's todo format (pick, edit, reword, squash, fixup, drop, exec,
break and their one-letter forms). Lines starting with # are ignored.

Examples:
  keel rebase main
  keel rebase main --todo plan.txt
  keel rebase --continue
  keel rebase --progress`,
		Args: func(cmd *cobra.Command, args []string) error {
			if flags.Progress {
				return cobra.NoArgs(cmd, args)
			}
			return flags.args(1, 1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			switch {
			case flags.Progress:
				return report(a, a.svc.GetRebaseProgress(ctx, a.repoPath), renderRebaseProgress)
			case flags.Continue:
				return report(a, a.svc.RebaseContinue(ctx, a.repoPath), renderRebase)
			case flags.Skip:
				return report(a, a.svc.RebaseSkip(ctx, a.repoPath), renderRebase)
			case flags.Abort:
				return abortResponse(a, a.svc.RebaseAbort(ctx, a.repoPath), "rebase")
			}

			if flags.Todo == "" {
				return report(a, a.svc.Rebase(ctx, a.repoPath, args[0]), renderRebase)
			}
			todo, err := readTodoFile(flags.Todo)
			if err != nil {
				return err
			}
			return report(a, a.svc.InteractiveRebase(ctx, a.repoPath, args[0], todo), renderRebase)
		},
	}

	flags.add(cmd, true)
	cmd.Flags().StringVar(&flags.Todo, "todo", "", "interactive rebase instructions file")
	cmd.Flags().BoolVar(&flags.Progress, "progress", false, "show the progress of a suspended rebase")
	cmd.MarkFlagsMutuallyExclusive("progress", "continue", "skip", "abort", "todo")

	root.AddCommand(cmd)
}

func renderRebaseProgress(w io.Writer, s *outputStyles, st *opstate.RebaseState) {
	if st == nil {
		_, _ = fmt.Fprintln(w, s.success.Render("no rebase in progress"))
		return
	}
	renderState(w, s, opstate.State{Kind: opstate.Rebasing, Rebase: st})
}

//nolint:gochecknoglobals // immutable lookup table
var todoActions = map[string]opstate.SubAction{
	"p": opstate.SubActionPick, "pick": opstate.SubActionPick,
	"e": opstate.SubActionEdit, "edit": opstate.SubActionEdit,
	"r": opstate.SubActionReword, "reword": opstate.SubActionReword,
	"s": opstate.SubActionSquash, "squash": opstate.SubActionSquash,
	"f": opstate.SubActionFixup, "fixup": opstate.SubActionFixup,
	"x": opstate.SubActionExec, "exec": opstate.SubActionExec,
	"b": opstate.SubActionBreak, "break": opstate.SubActionBreak,
	"d": opstate.SubActionDrop, "drop": opstate.SubActionDrop,
}

func readTodoFile(path string) ([]engine.TodoLine, error) {
	f, err := os.Open(path) //#nosec G304 -- path is supplied by the user on purpose
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open todo file %s", path)
	}
	defer func() { _ = f.Close() }()
	return parseTodo(f)
}

// parseTodo reads git's todo format. Anything after the commit on a pick
// style line is the subject and ignored.
func parseTodo(r io.Reader) ([]engine.TodoLine, error) {
	var todo []engine.TodoLine
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		word, rest, _ := strings.Cut(line, " ")
		action, ok := todoActions[strings.ToLower(word)]
		if !ok {
			return nil, errors.NewExitCode2Error(fmt.Errorf("%w: todo line %d: unknown action %q", errors.ErrInvalidArgument, lineNo, word))
		}
		rest = strings.TrimSpace(rest)

		entry := engine.TodoLine{Action: action}
		switch action {
		case opstate.SubActionExec:
			entry.Arg = rest
		case opstate.SubActionBreak:
		default:
			entry.Commit, _, _ = strings.Cut(rest, " ")
		}
		todo = append(todo, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read todo")
	}
	return todo, nil
}
