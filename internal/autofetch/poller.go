// Package autofetch keeps remote-tracking refs of active repositories fresh
// by fetching them on a fixed interval in the background.
package autofetch

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mrz1836/keel/internal/constants"
	"github.com/mrz1836/keel/internal/ctxutil"
	"github.com/mrz1836/keel/internal/remote"
	"github.com/mrz1836/keel/internal/repo"
)

// Round summarizes one fetch pass over the active repositories.
type Round struct {
	Fetched int `json:"fetched"`
	Failed  int `json:"failed"`
}

// Poller fetches every active repository of a cache on each tick.
type Poller struct {
	cache       *repo.Cache
	syncer      remote.Syncer
	interval    time.Duration
	concurrency int
	logger      zerolog.Logger
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval sets the time between two rounds.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithConcurrency bounds the number of parallel fetches in one round.
func WithConcurrency(n int) Option {
	return func(p *Poller) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Poller) {
		p.logger = logger
	}
}

// New returns a Poller over cache using syncer for the network work.
func New(cache *repo.Cache, syncer remote.Syncer, opts ...Option) *Poller {
	p := &Poller{
		cache:       cache,
		syncer:      syncer,
		interval:    constants.DefaultAutoFetchInterval,
		concurrency: constants.DefaultAutoFetchConcurrency,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run fetches once immediately and then on every tick until ctx ends.
// It returns nil on cancellation.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info().
		Dur("interval", p.interval).
		Int("concurrency", p.concurrency).
		Msg("auto-fetch started")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.FetchAll(ctx)
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("auto-fetch stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// FetchAll runs one round. A failing repository is logged and does not stop
// the others.
func (p *Poller) FetchAll(ctx context.Context) Round {
	paths := p.cache.ActivePaths()
	if len(paths) == 0 || ctxutil.Canceled(ctx) != nil {
		return Round{}
	}

	var fetched, failed atomic.Int64

	g := new(errgroup.Group)
	g.SetLimit(p.concurrency)
	for _, path := range paths {
		g.Go(func() error {
			if ctxutil.Canceled(ctx) != nil {
				return nil
			}
			log := p.logger.With().Str("repo", path).Logger()

			coord, ok := p.cache.Lookup(ctx, path)
			if !ok {
				log.Debug().Msg("repository closed before fetch")
				return nil
			}
			res, err := p.syncer.Fetch(ctx, coord, remote.FetchOptions{})
			if err != nil {
				failed.Add(1)
				log.Warn().Err(err).Msg("background fetch failed")
				return nil
			}
			fetched.Add(1)
			log.Debug().Str("remote", res.Remote).Msg("background fetch complete")
			return nil
		})
	}
	_ = g.Wait()

	round := Round{Fetched: int(fetched.Load()), Failed: int(failed.Load())}
	p.logger.Debug().
		Int("fetched", round.Fetched).
		Int("failed", round.Failed).
		Msg("auto-fetch round finished")
	return round
}
