// Package remote runs keel's network operations: fetch, push and pull.
//
// Each operation holds the repository's write guard, streams git's
// --progress output through a progress.Operation and honors its
// cancellation token by killing the git process. Exactly one terminal
// progress event is emitted per operation.
package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mrz1836/keel/internal/constants"
	"github.com/mrz1836/keel/internal/engine"
	keelerrors "github.com/mrz1836/keel/internal/errors"
	"github.com/mrz1836/keel/internal/git"
	"github.com/mrz1836/keel/internal/hook"
	"github.com/mrz1836/keel/internal/progress"
	"github.com/mrz1836/keel/internal/repo"
)

// zeroSHA stands for a ref that does not exist on one side of a push.
const zeroSHA = "0000000000000000000000000000000000000000"

// FetchOptions configures Fetch.
type FetchOptions struct {
	// Remote defaults to the configured remote.
	Remote string
	// Prune deletes remote-tracking refs that no longer exist upstream.
	Prune bool
	// OperationID identifies the operation for progress and cancellation.
	// A new id is generated when empty.
	OperationID string
}

// PushOptions configures Push.
type PushOptions struct {
	Remote string
	// Branch defaults to the checked-out branch.
	Branch string
	// SetUpstream records the pushed branch as upstream.
	SetUpstream bool
	// ForceWithLease overwrites the remote branch if it still points where
	// the local remote-tracking ref says it does.
	ForceWithLease bool
	OperationID    string
}

// PullOptions configures Pull. Merge.Message is ignored; pull writes its
// own merge message.
type PullOptions struct {
	Remote string
	// Branch defaults to the upstream of the checked-out branch.
	Branch      string
	Merge       engine.MergeOptions
	OperationID string
}

// FetchResult is the outcome of a successful fetch.
type FetchResult struct {
	OperationID string `json:"operation_id"`
	Remote      string `json:"remote"`
	Message     string `json:"message,omitempty"`
}

// PushResult is the outcome of a successful push.
type PushResult struct {
	OperationID string `json:"operation_id"`
	Remote      string `json:"remote"`
	Branch      string `json:"branch"`
	Upstream    string `json:"upstream,omitempty"`
	UpToDate    bool   `json:"up_to_date,omitempty"`
}

// PullResult is the outcome of a pull. Merge may describe conflicts.
type PullResult struct {
	OperationID string              `json:"operation_id"`
	Remote      string              `json:"remote"`
	Merge       *engine.MergeResult `json:"merge"`
}

// Syncer is the network surface used by the command layer and the
// auto-fetch poller.
type Syncer interface {
	Fetch(ctx context.Context, c *repo.Coordinator, opts FetchOptions) (*FetchResult, error)
	Push(ctx context.Context, c *repo.Coordinator, opts PushOptions) (*PushResult, error)
	Pull(ctx context.Context, c *repo.Coordinator, opts PullOptions) (*PullResult, error)
}

// Compile-time interface check.
var _ Syncer = (*Service)(nil)

// Service implements Syncer.
type Service struct {
	engine  *engine.Engine
	emitter *progress.Emitter
	remote  string
	logger  zerolog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithDefaultRemote sets the remote used when options leave it empty.
func WithDefaultRemote(name string) Option {
	return func(s *Service) {
		if name != "" {
			s.remote = name
		}
	}
}

// NewService returns a Service. Pull translates its merge through eng.
func NewService(eng *engine.Engine, emitter *progress.Emitter, opts ...Option) *Service {
	s := &Service{
		engine:  eng,
		emitter: emitter,
		remote:  constants.DefaultRemote,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch downloads objects and refs from a remote.
func (s *Service) Fetch(ctx context.Context, c *repo.Coordinator, opts FetchOptions) (*FetchResult, error) {
	remote := s.remoteName(opts.Remote)
	op := s.emitter.Begin(opts.OperationID)
	defer op.Close()
	op.Emit(progress.StageStarting, progress.Counters{})

	res, err := repo.WithWrite(ctx, c, func(r *repo.Repository) (*git.Result, error) {
		args := []string{"fetch", "--progress"}
		if opts.Prune {
			args = append(args, "--prune")
		}
		args = append(args, remote)
		return s.transfer(ctx, r, op, args...)
	})
	if err = s.settle(op, "fetch", res, err); err != nil {
		return nil, err
	}
	return &FetchResult{OperationID: op.ID(), Remote: remote, Message: firstLine(res.Combined())}, nil
}

// Push uploads a branch after the pre-push hook accepts it.
func (s *Service) Push(ctx context.Context, c *repo.Coordinator, opts PushOptions) (*PushResult, error) {
	remote := s.remoteName(opts.Remote)
	op := s.emitter.Begin(opts.OperationID)
	defer op.Close()
	op.Emit(progress.StageStarting, progress.Counters{})

	var branch string
	res, err := repo.WithWrite(ctx, c, func(r *repo.Repository) (*git.Result, error) {
		var err error
		if branch, err = pushBranch(r, opts.Branch); err != nil {
			return nil, err
		}
		if err := s.prePush(ctx, r, remote, branch); err != nil {
			return nil, err
		}

		args := []string{"push", "--progress"}
		if opts.SetUpstream {
			args = append(args, "--set-upstream")
		}
		if opts.ForceWithLease {
			args = append(args, "--force-with-lease")
		}
		ref := "refs/heads/" + branch
		args = append(args, remote, ref+":"+ref)
		return s.transfer(ctx, r, op, args...)
	})
	if err = s.settle(op, "push", res, err); err != nil {
		return nil, err
	}

	result := &PushResult{
		OperationID: op.ID(),
		Remote:      remote,
		Branch:      branch,
		UpToDate:    strings.Contains(res.Combined(), "Everything up-to-date"),
	}
	if opts.SetUpstream {
		result.Upstream = remote + "/" + branch
	}
	return result, nil
}

// Pull fetches and merges into the current branch. Conflicts are reported
// in the result and leave the merge in progress.
//
// Only the fetch can be canceled. Once the merge starts it runs to the end.
func (s *Service) Pull(ctx context.Context, c *repo.Coordinator, opts PullOptions) (*PullResult, error) {
	remote := s.remoteName(opts.Remote)
	op := s.emitter.Begin(opts.OperationID)
	defer op.Close()
	op.Emit(progress.StageStarting, progress.Counters{})

	mergeOpts := opts.Merge
	mergeOpts.Message = ""

	merge, err := repo.WithWrite(ctx, c, func(r *repo.Repository) (*engine.MergeResult, error) {
		if st := r.OperationState(); st.InProgress() {
			return nil, fmt.Errorf("%w: %s", keelerrors.ErrOperationInProgress, st.Kind)
		}

		args := []string{"fetch", "--progress", remote}
		target := "@{upstream}"
		if opts.Branch != "" {
			args = append(args, strings.TrimPrefix(opts.Branch, "refs/heads/"))
			target = "FETCH_HEAD"
		}
		res, err := s.transfer(ctx, r, op, args...)
		if err != nil {
			return nil, err
		}
		if !res.Success() {
			return nil, git.RemoteError("pull", res)
		}
		if op.Canceled() {
			return nil, keelerrors.ErrOperationCanceled
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		op.Emit(progress.StageUpdating, progress.Counters{})
		return s.engine.MergeHeld(ctx, r, "pull", target, mergeOpts)
	})
	if err = s.settle(op, "pull", nil, err); err != nil {
		return nil, err
	}
	return &PullResult{OperationID: op.ID(), Remote: remote, Merge: merge}, nil
}

// transfer runs a progress-reporting git command wired to op.
func (s *Service) transfer(ctx context.Context, r *repo.Repository, op *progress.Operation, args ...string) (*git.Result, error) {
	if op.Canceled() {
		return nil, keelerrors.ErrOperationCanceled
	}
	r.Logger().Info().Str("operation_id", op.ID()).Strs("args", args).Msg("starting network operation")
	return r.Executor().RunWith(ctx, git.RunOptions{OnProgress: op.Transfer}, args...)
}

// settle converts the outcome into an error and emits the terminal event.
// res may be nil when err already carries the outcome.
func (s *Service) settle(op *progress.Operation, name string, res *git.Result, err error) error {
	if err == nil && res != nil && !res.Success() {
		err = git.RemoteError(name, res)
	}

	switch {
	case err == nil:
		op.Finish(progress.StageComplete, "")
		s.logger.Info().Str("operation_id", op.ID()).Str("op", name).Msg("network operation finished")
	case errors.Is(err, keelerrors.ErrOperationCanceled) || errors.Is(err, context.Canceled):
		op.Finish(progress.StageCancelled, keelerrors.UserMessage(keelerrors.ErrOperationCanceled))
		s.logger.Info().Str("operation_id", op.ID()).Str("op", name).Msg("network operation canceled")
		if !errors.Is(err, keelerrors.ErrOperationCanceled) {
			err = fmt.Errorf("%s: %w: %w", name, keelerrors.ErrOperationCanceled, err)
		}
	default:
		op.Finish(progress.StageFailed, firstLine(err.Error()))
		s.logger.Warn().Err(err).Str("operation_id", op.ID()).Str("op", name).Msg("network operation failed")
	}
	return err
}

// prePush runs the pre-push hook with the ref line git itself would send.
func (s *Service) prePush(ctx context.Context, r *repo.Repository, remote, branch string) error {
	gate := r.Gate()
	if !gate.Enabled() {
		return nil
	}

	ref := "refs/heads/" + branch
	localSHA, err := r.ResolveRef(ctx, ref)
	if err != nil {
		return fmt.Errorf("%w: branch %q has no commits", keelerrors.ErrInvalidArgument, branch)
	}
	remoteSHA, err := r.ResolveRef(ctx, "refs/remotes/"+remote+"/"+branch)
	if err != nil {
		remoteSHA = zeroSHA
	}
	url, err := r.Executor().Query(ctx, "remote", "get-url", remote)
	if err != nil {
		url = remote
	}

	stdin := fmt.Sprintf("%s %s %s %s\n", ref, localSHA, ref, remoteSHA)
	return gate.Check(ctx, hook.PrePush, []string{remote, url}, stdin)
}

func pushBranch(r *repo.Repository, branch string) (string, error) {
	if branch != "" {
		return strings.TrimPrefix(branch, "refs/heads/"), nil
	}
	current, err := r.CurrentBranch()
	if err != nil {
		return "", err
	}
	if current == "" {
		return "", fmt.Errorf("%w: HEAD is detached, name a branch to push", keelerrors.ErrInvalidArgument)
	}
	return current, nil
}

func (s *Service) remoteName(name string) string {
	if name != "" {
		return name
	}
	return s.remote
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
