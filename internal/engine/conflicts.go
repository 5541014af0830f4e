package engine

import (
	"bytes"
	"context"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/mrz1836/keel/internal/git"
	"github.com/mrz1836/keel/internal/repo"
)

// sniffLen matches git's own binary detection window.
const sniffLen = 8000

// enrichConcurrency bounds parallel blob loads while sniffing for binaries.
const enrichConcurrency = 4

var (
	conflictLine = regexp.MustCompile(`CONFLICT \(([^)]+)\):(.*)`)
	binaryLine   = regexp.MustCompile(`Cannot merge binary files: (.+?) \(`)
)

type outputHint struct {
	typ  ConflictType
	text string
}

// parseConflictHints extracts per-path conflict kinds from merge output.
func parseConflictHints(output string) []outputHint {
	var hints []outputHint
	for _, line := range strings.Split(output, "\n") {
		if m := binaryLine.FindStringSubmatch(line); m != nil {
			hints = append(hints, outputHint{typ: ConflictBinary, text: m[1]})
			continue
		}
		m := conflictLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		var typ ConflictType
		switch kind := strings.ToLower(m[1]); {
		case kind == "rename/rename":
			typ = ConflictRenameRename
		case strings.HasPrefix(kind, "rename/"):
			typ = ConflictRenameModify
		case kind == "modify/delete" || kind == "delete/modify":
			typ = ConflictDeleteModify
		case kind == "add/add":
			typ = ConflictAddAdd
		case kind == "binary":
			typ = ConflictBinary
		default:
			typ = ConflictContent
		}
		hints = append(hints, outputHint{typ: typ, text: m[2]})
	}
	return hints
}

// stageType classifies a path from which index stages exist.
func stageType(e git.UnmergedEntry) ConflictType {
	switch {
	case !e.HasBase() && e.HasOurs() && e.HasTheirs():
		return ConflictAddAdd
	case e.HasBase() && (!e.HasOurs() || !e.HasTheirs()):
		return ConflictDeleteModify
	}
	return ConflictContent
}

func isBinary(data []byte) bool {
	if len(data) > sniffLen {
		data = data[:sniffLen]
	}
	return bytes.IndexByte(data, 0) >= 0
}

// classifyConflicts types every unmerged entry from index stages, output
// hints and binary sniffing. Rename hints win over stage shapes; binary
// content only refines a plain content conflict.
func classifyConflicts(ctx context.Context, rd repo.Reader, entries []git.UnmergedEntry, output string) ([]ConflictedFile, error) {
	hints := parseConflictHints(output)
	files := make([]ConflictedFile, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichConcurrency)

	for i, entry := range entries {
		typ := stageType(entry)
		for _, h := range hints {
			if !strings.Contains(h.text, entry.Path) {
				continue
			}
			if h.typ != ConflictContent {
				typ = h.typ
			}
			break
		}
		files[i] = ConflictedFile{Path: entry.Path, Type: typ}

		if typ != ConflictContent && typ != ConflictAddAdd {
			continue
		}
		g.Go(func() error {
			tw, err := rd.ThreeWay(gctx, entry.Path)
			if err != nil {
				return err
			}
			if isBinary(tw.Base) || isBinary(tw.Ours) || isBinary(tw.Theirs) {
				files[i].Type = ConflictBinary
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

// conflictsAfter types the conflicts left by a command and remembers them as
// the repository's conflict set.
func (e *Engine) conflictsAfter(ctx context.Context, r *repo.Repository, entries []git.UnmergedEntry, output string) ([]ConflictedFile, error) {
	files, err := classifyConflicts(ctx, r, entries, output)
	if err != nil {
		return nil, err
	}
	e.remember(r.WorkDir(), entries, files)
	r.Logger().Info().Int("conflicts", len(files)).Msg("operation stopped on conflicts")
	return files, nil
}

// ConflictedFiles lists the current conflict set. Paths resolved since the
// operation stopped are included with Resolved set while the operation is
// still in progress.
func (e *Engine) ConflictedFiles(ctx context.Context, c *repo.Coordinator) ([]ConflictedFile, error) {
	return repo.WithRead(ctx, c, func(rd repo.Reader) ([]ConflictedFile, error) {
		return e.listConflicts(ctx, rd)
	})
}

func (e *Engine) listConflicts(ctx context.Context, rd repo.Reader) ([]ConflictedFile, error) {
	entries, err := rd.UnmergedEntries(ctx)
	if err != nil {
		return nil, err
	}
	files, err := classifyConflicts(ctx, rd, entries, "")
	if err != nil {
		return nil, err
	}

	memory := e.rememberedSet(rd.WorkDir())
	unmerged := make(map[string]bool, len(files))
	for i, f := range files {
		unmerged[f.Path] = true
		// The type seen when the operation stopped carries output hints.
		if rc, ok := memory[f.Path]; ok && rc.typ != "" {
			files[i].Type = rc.typ
		}
	}

	if rd.OperationState().InProgress() {
		for path, rc := range memory {
			if !unmerged[path] {
				files = append(files, ConflictedFile{Path: path, Type: rc.typ, Resolved: true})
			}
		}
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}
