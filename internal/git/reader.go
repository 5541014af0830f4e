package git

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	gitindex "github.com/go-git/go-git/v5/plumbing/format/index"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/rs/zerolog"
)

// UnmergedEntry is one conflicted path with the index stages present for it.
// Stage 1 is the merge base, stage 2 ours, stage 3 theirs.
type UnmergedEntry struct {
	Path       string
	BaseHash   string
	OursHash   string
	TheirsHash string

	// Octal file modes per stage, as git prints them ("100644").
	BaseMode   string
	OursMode   string
	TheirsMode string
}

// IndexInfo renders the entry in the format read by
// `git update-index --index-info`, restoring its unmerged stages. The first
// line removes any merged entry for the path.
func (u UnmergedEntry) IndexInfo() string {
	var b strings.Builder
	fmt.Fprintf(&b, "0 %s\t%s\n", strings.Repeat("0", 40), u.Path)
	if u.HasBase() {
		fmt.Fprintf(&b, "%s %s 1\t%s\n", u.BaseMode, u.BaseHash, u.Path)
	}
	if u.HasOurs() {
		fmt.Fprintf(&b, "%s %s 2\t%s\n", u.OursMode, u.OursHash, u.Path)
	}
	if u.HasTheirs() {
		fmt.Fprintf(&b, "%s %s 3\t%s\n", u.TheirsMode, u.TheirsHash, u.Path)
	}
	return b.String()
}

// HasBase reports whether stage 1 is present.
func (u UnmergedEntry) HasBase() bool { return u.BaseHash != "" }

// HasOurs reports whether stage 2 is present.
func (u UnmergedEntry) HasOurs() bool { return u.OursHash != "" }

// HasTheirs reports whether stage 3 is present.
func (u UnmergedEntry) HasTheirs() bool { return u.TheirsHash != "" }

// ThreeWay holds the blob contents of a conflicted path. A nil slice means
// that side has no version of the file.
type ThreeWay struct {
	Base   []byte
	Ours   []byte
	Theirs []byte
}

// Reader answers read-only repository questions from the object database and
// index without spawning git. When go-git cannot parse the index (newer
// index extensions) it falls back to the git executable.
//
// go-git repositories are not safe for concurrent use, so calls are serialized.
type Reader struct {
	mu     sync.Mutex
	repo   *gitlib.Repository
	exec   *Executor
	logger zerolog.Logger
}

// OpenReader opens the repository whose working tree is workDir.
func OpenReader(workDir string, exec *Executor, logger zerolog.Logger) (*Reader, error) {
	repo, err := gitlib.PlainOpenWithOptions(workDir, &gitlib.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", workDir, err)
	}
	return &Reader{repo: repo, exec: exec, logger: logger}, nil
}

// UnmergedEntries lists conflicted paths, sorted by path.
func (r *Reader) UnmergedEntries(ctx context.Context) ([]UnmergedEntry, error) {
	r.mu.Lock()
	idx, err := r.repo.Storer.Index()
	r.mu.Unlock()
	if err != nil {
		r.logger.Debug().Err(err).Msg("native index read failed, using git ls-files")
		return r.unmergedFromCLI(ctx)
	}
	return unmergedFromIndex(idx), nil
}

// Index stages as stored on disk. go-git's named constants start at 1
// (Merged == AncestorMode), but decoded entries carry 0 when merged.
const (
	stageMerged gitindex.Stage = 0
	stageBase   gitindex.Stage = 1
	stageOurs   gitindex.Stage = 2
	stageTheirs gitindex.Stage = 3
)

func unmergedFromIndex(idx *gitindex.Index) []UnmergedEntry {
	byPath := make(map[string]*UnmergedEntry)
	for _, e := range idx.Entries {
		if e.Stage == stageMerged {
			continue
		}
		u, ok := byPath[e.Name]
		if !ok {
			u = &UnmergedEntry{Path: e.Name}
			byPath[e.Name] = u
		}
		mode := fmt.Sprintf("%o", uint32(e.Mode))
		switch e.Stage {
		case stageBase:
			u.BaseHash, u.BaseMode = e.Hash.String(), mode
		case stageOurs:
			u.OursHash, u.OursMode = e.Hash.String(), mode
		case stageTheirs:
			u.TheirsHash, u.TheirsMode = e.Hash.String(), mode
		}
	}
	return sortedEntries(byPath)
}

// unmergedFromCLI parses `git ls-files -u -z`: "<mode> <hash> <stage>\t<path>\0".
func (r *Reader) unmergedFromCLI(ctx context.Context) ([]UnmergedEntry, error) {
	out, err := r.exec.Query(ctx, "ls-files", "-u", "-z")
	if err != nil {
		return nil, err
	}
	return parseLsFilesUnmerged(out), nil
}

func parseLsFilesUnmerged(out string) []UnmergedEntry {
	byPath := make(map[string]*UnmergedEntry)
	for _, rec := range strings.Split(out, "\x00") {
		meta, path, ok := strings.Cut(rec, "\t")
		if !ok {
			continue
		}
		fields := strings.Fields(meta)
		if len(fields) != 3 {
			continue
		}
		stage, err := strconv.Atoi(fields[2])
		if err != nil {
			continue
		}
		u, ok := byPath[path]
		if !ok {
			u = &UnmergedEntry{Path: path}
			byPath[path] = u
		}
		switch stage {
		case 1:
			u.BaseHash, u.BaseMode = fields[1], fields[0]
		case 2:
			u.OursHash, u.OursMode = fields[1], fields[0]
		case 3:
			u.TheirsHash, u.TheirsMode = fields[1], fields[0]
		}
	}
	return sortedEntries(byPath)
}

func sortedEntries(byPath map[string]*UnmergedEntry) []UnmergedEntry {
	entries := make([]UnmergedEntry, 0, len(byPath))
	for _, u := range byPath {
		entries = append(entries, *u)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries
}

// ThreeWay loads the base, ours and theirs blobs of a conflicted path.
func (r *Reader) ThreeWay(ctx context.Context, path string) (*ThreeWay, error) {
	entries, err := r.UnmergedEntries(ctx)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.Path != path {
			continue
		}
		tw := &ThreeWay{}
		if tw.Base, err = r.blob(e.BaseHash); err != nil {
			return nil, err
		}
		if tw.Ours, err = r.blob(e.OursHash); err != nil {
			return nil, err
		}
		if tw.Theirs, err = r.blob(e.TheirsHash); err != nil {
			return nil, err
		}
		return tw, nil
	}
	return nil, fmt.Errorf("%s has no unmerged stages: %w", path, ErrNoStages)
}

// ErrNoStages is returned by ThreeWay for a path without unmerged entries.
var ErrNoStages = errors.New("no unmerged stages")

func (r *Reader) blob(hash string) ([]byte, error) {
	if hash == "" {
		return nil, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	b, err := object.GetBlob(r.repo.Storer, plumbing.NewHash(hash))
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", hash, err)
	}
	rc, err := b.Reader()
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", hash, err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", hash, err)
	}
	if data == nil {
		data = []byte{}
	}
	return data, nil
}

// CurrentBranch returns the short name of the checked-out branch, or "" when
// HEAD is detached. An unborn branch is reported by name.
func (r *Reader) CurrentBranch() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ref, err := r.repo.Reference(plumbing.HEAD, false)
	if err != nil {
		return "", fmt.Errorf("read HEAD: %w", err)
	}
	if ref.Type() == plumbing.SymbolicReference && ref.Target().IsBranch() {
		return ref.Target().Short(), nil
	}
	return "", nil
}

// HeadHash returns the commit HEAD points at, or "" on an unborn branch.
func (r *Reader) HeadHash() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ref, err := r.repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}
	return ref.Hash().String(), nil
}

// BranchAt returns the branch whose tip is hash, or "" when none is. Ties go
// to the alphabetically first name.
func (r *Reader) BranchAt(hash string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	iter, err := r.repo.Branches()
	if err != nil {
		return "", fmt.Errorf("list branches: %w", err)
	}
	defer iter.Close()

	var names []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		if ref.Hash().String() == hash {
			names = append(names, ref.Name().Short())
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("list branches: %w", err)
	}
	if len(names) == 0 {
		return "", nil
	}
	sort.Strings(names)
	return names[0], nil
}

// ResolveRevision turns a branch, tag or abbreviated hash into a full hash.
func (r *Reader) ResolveRevision(ctx context.Context, rev string) (string, error) {
	r.mu.Lock()
	h, err := r.repo.ResolveRevision(plumbing.Revision(rev))
	r.mu.Unlock()
	if err == nil {
		return h.String(), nil
	}
	// go-git does not understand every revision syntax git does.
	return r.exec.Query(ctx, "rev-parse", "--verify", "--quiet", rev+"^{commit}")
}
