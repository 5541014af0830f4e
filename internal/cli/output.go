package cli

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mrz1836/keel/internal/engine"
	"github.com/mrz1836/keel/internal/errors"
	"github.com/mrz1836/keel/internal/opstate"
	"github.com/mrz1836/keel/internal/progress"
	"github.com/mrz1836/keel/internal/service"
)

// outputStyles contains styling for text output.
type outputStyles struct {
	header   lipgloss.Style
	key      lipgloss.Style
	success  lipgloss.Style
	warning  lipgloss.Style
	failure  lipgloss.Style
	resolved lipgloss.Style
	dim      lipgloss.Style
}

func newOutputStyles() *outputStyles {
	return &outputStyles{
		header: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00D7FF")),
		key: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00D7FF")),
		success: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF87")),
		warning: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD700")),
		failure: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF5F5F")),
		resolved: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF87")),
		dim: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")),
	}
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// report writes a service response. In json mode the whole envelope is
// printed and a failure returns ErrJSONErrorOutput so Execute stays quiet.
// In text mode text renders the payload and a failure returns the
// CommandError for Execute to print.
func report[T any](a *app, resp service.Response[T], text func(io.Writer, *outputStyles, T)) error {
	if a.jsonOutput() {
		if err := writeJSON(a.out, resp); err != nil {
			return err
		}
		if !resp.OK {
			return fmt.Errorf("%w: %w", errors.ErrJSONErrorOutput, resp.Error)
		}
		return nil
	}
	if !resp.OK {
		return resp.Error
	}
	text(a.out, newOutputStyles(), resp.Data)
	return nil
}

// printError renders err for a human on w.
func printError(w io.Writer, err error) {
	styles := newOutputStyles()

	var cmdErr *service.CommandError
	if !stderrors.As(err, &cmdErr) {
		msg, action := errors.Actionable(err)
		cmdErr = &service.CommandError{Message: msg, Action: action}
		if msg != err.Error() {
			cmdErr.Output = err.Error()
		}
	}

	_, _ = fmt.Fprintln(w, styles.failure.Render("Error: ")+cmdErr.Message)
	if cmdErr.Hook != "" {
		_, _ = fmt.Fprintln(w, styles.dim.Render("hook: ")+cmdErr.Hook)
	}
	if out := strings.TrimSpace(cmdErr.Output); out != "" {
		_, _ = fmt.Fprintln(w, styles.dim.Render(indent(out)))
	}
	if cmdErr.Action != "" {
		_, _ = fmt.Fprintln(w, styles.warning.Render("→ ")+cmdErr.Action)
	}
}

func indent(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = "  " + line
	}
	return strings.Join(lines, "\n")
}

// formatProgress renders one progress event as "Receiving 45% (9/20)".
func formatProgress(s *outputStyles, ev progress.Event) string {
	var b strings.Builder
	b.WriteString(s.key.Render(cases.Title(language.English).String(string(ev.Stage))))
	c := ev.Counters
	if c.Percent > 0 {
		fmt.Fprintf(&b, " %d%%", c.Percent)
	}
	switch {
	case c.Total > 0:
		fmt.Fprintf(&b, " (%d/%d)", c.Current, c.Total)
	case c.Current > 0:
		fmt.Fprintf(&b, " (%d)", c.Current)
	}
	if ev.Message != "" {
		b.WriteString(": " + ev.Message)
	}
	return b.String()
}

// describeState is the one-line summary used by `state` and `watch`.
func describeState(st opstate.State) string {
	switch st.Kind {
	case opstate.Merging:
		if st.Merge != nil && st.Merge.Branch != "" {
			return "merging " + st.Merge.Branch
		}
		return "merging"
	case opstate.Rebasing:
		r := st.Rebase
		if r == nil {
			return "rebasing"
		}
		desc := "rebasing"
		if r.HeadName != "" {
			desc += " " + strings.TrimPrefix(r.HeadName, "refs/heads/")
		}
		if onto := firstNonEmpty(r.OntoName, shortSHA(r.Onto)); onto != "" {
			desc += " onto " + onto
		}
		if r.TotalSteps > 0 {
			desc += fmt.Sprintf(" (%d/%d)", r.CurrentStep, r.TotalSteps)
		}
		if r.PausedSubAction != opstate.SubActionNone {
			desc += ", paused on " + string(r.PausedSubAction)
		}
		return desc
	case opstate.CherryPicking:
		if st.CherryPick == nil {
			return "cherry-picking"
		}
		return sequencerDesc("cherry-picking", st.CherryPick.Commit, st.CherryPick.Remaining)
	case opstate.Reverting:
		if st.Revert == nil {
			return "reverting"
		}
		return sequencerDesc("reverting", st.Revert.Commit, st.Revert.Remaining)
	case opstate.Bisecting:
		desc := "bisecting"
		if st.Bisect != nil && st.Bisect.CurrentCommit != "" {
			desc += " at " + shortSHA(st.Bisect.CurrentCommit)
		}
		return desc
	default:
		return "no operation in progress"
	}
}

func sequencerDesc(verb, commit string, remaining int) string {
	desc := verb
	if commit != "" {
		desc += " " + shortSHA(commit)
	}
	if remaining > 0 {
		desc += fmt.Sprintf(" (%d more queued)", remaining)
	}
	return desc
}

func renderState(w io.Writer, s *outputStyles, st opstate.State) {
	if !st.InProgress() {
		_, _ = fmt.Fprintln(w, s.success.Render(describeState(st)))
		return
	}
	_, _ = fmt.Fprintln(w, s.warning.Render(describeState(st)))
}

func renderConflicts(w io.Writer, s *outputStyles, files []engine.ConflictedFile) {
	if len(files) == 0 {
		_, _ = fmt.Fprintln(w, s.success.Render("no conflicts"))
		return
	}
	for _, f := range files {
		mark := s.failure.Render("U")
		if f.Resolved {
			mark = s.resolved.Render("R")
		}
		_, _ = fmt.Fprintf(w, "%s %s %s\n", mark, f.Path, s.dim.Render("("+string(f.Type)+")"))
	}
}

// renderOutcome prints the common tail of every operation result.
func renderOutcome(w io.Writer, s *outputStyles, success bool, summary string, conflicts []engine.ConflictedFile, msg string) {
	switch {
	case success:
		_, _ = fmt.Fprintln(w, s.success.Render(summary))
	case len(conflicts) > 0:
		_, _ = fmt.Fprintln(w, s.warning.Render(summary))
		renderConflicts(w, s, conflicts)
		_, _ = fmt.Fprintln(w, s.dim.Render("resolve the files above, then continue"))
	default:
		_, _ = fmt.Fprintln(w, s.warning.Render(summary))
	}
	if msg != "" && !success {
		_, _ = fmt.Fprintln(w, s.dim.Render(indent(msg)))
	}
}

func renderMerge(w io.Writer, s *outputStyles, res *engine.MergeResult) {
	summary := "merge stopped with conflicts"
	if res.Success {
		summary = "merge complete"
		if res.Kind != "" {
			summary += ": " + strings.ReplaceAll(string(res.Kind), "_", " ")
		}
	}
	renderOutcome(w, s, res.Success, summary, res.Conflicts, res.Message)
}

func renderRebase(w io.Writer, s *outputStyles, res *engine.RebaseResult) {
	var summary string
	switch {
	case res.Success && res.UpToDate:
		summary = "already up to date"
	case res.Success:
		summary = fmt.Sprintf("rebase complete (%d/%d)", res.CurrentStep, res.TotalSteps)
	case res.Stopped:
		summary = fmt.Sprintf("rebase stopped at step %d/%d", res.CurrentStep, res.TotalSteps)
	default:
		summary = fmt.Sprintf("rebase stopped with conflicts at step %d/%d", res.CurrentStep, res.TotalSteps)
	}
	renderOutcome(w, s, res.Success, summary, res.Conflicts, res.Message)
}

func renderCherryPick(w io.Writer, s *outputStyles, res *engine.CherryPickResult) {
	summary := fmt.Sprintf("cherry-pick stopped with conflicts after %d applied", res.Applied)
	if res.Success {
		summary = fmt.Sprintf("cherry-pick complete: %d applied", res.Applied)
	}
	renderOutcome(w, s, res.Success, summary, res.Conflicts, res.Message)
}

func renderRevert(w io.Writer, s *outputStyles, res *engine.RevertResult) {
	summary := "revert stopped with conflicts"
	if res.Success {
		summary = "revert complete"
	}
	renderOutcome(w, s, res.Success, summary, res.Conflicts, res.Message)
}

func renderReset(w io.Writer, s *outputStyles, res *engine.ResetResult) {
	_, _ = fmt.Fprintf(w, "%s %s\n", s.success.Render(string(res.Mode)+" reset to"), shortSHA(res.Target))
}

func renderDone(msg string) func(io.Writer, *outputStyles, service.Empty) {
	return func(w io.Writer, s *outputStyles, _ service.Empty) {
		_, _ = fmt.Fprintln(w, s.success.Render(msg))
	}
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
