package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/alexanderramin/bookable/internal/domain"
	"golang.org/x/sync/singleflight"
)

// DefaultPollInterval is how often a watching session refetches the form.
const DefaultPollInterval = 5 * time.Second

// ApplyFunc folds a fetched server copy into local state.
type ApplyFunc func(ctx context.Context, server *domain.FormConfig) error

// Poller periodically fetches the server copy of a form and applies it.
// Overlapping polls share one fetch.
type Poller struct {
	fetch    Fetcher
	apply    ApplyFunc
	interval time.Duration
	logger   *slog.Logger

	group singleflight.Group
}

func NewPoller(fetch Fetcher, apply ApplyFunc, interval time.Duration, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Poller{fetch: fetch, apply: apply, interval: interval, logger: logger}
}

// NewSessionPoller polls the session's own form and syncs it into the session.
func NewSessionPoller(s *EditorSession, interval time.Duration, logger *slog.Logger) *Poller {
	return NewPoller(s.Fetcher(), s.Sync, interval, logger)
}

// Poll fetches and applies once. Concurrent callers wait for the poll
// already in progress and share its result.
func (p *Poller) Poll(ctx context.Context) error {
	_, err, shared := p.group.Do("sync", func() (any, error) {
		server, err := p.fetch.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		return nil, p.apply(ctx, server)
	})
	if shared {
		p.logger.Debug("poll shared with in-flight request")
	}
	return err
}

// Run polls on every tick until ctx is done. Poll failures are logged and
// the loop continues. A non-positive interval disables polling.
func (p *Poller) Run(ctx context.Context) error {
	if p.interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := p.Poll(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				p.logger.Warn("poll failed", "error", err)
			}
		}
	}
}
