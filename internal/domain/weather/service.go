package weather

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/kalinga/kalinga/internal/platform/timer"
)

// idleFactor times maxAge is how long a location stays watched without
// being requested.
const idleFactor = 5

type entry struct {
	loc       Location
	cond      *Conditions
	requested time.Time
}

// Service caches conditions per watched location. A location becomes
// watched on its first successful request, is refreshed on the cron
// schedule and is dropped once nobody has asked for it for a while.
type Service struct {
	mu      sync.RWMutex
	fetcher Fetcher
	clock   timer.Clock
	maxAge  time.Duration
	watched map[string]*entry
	logger  zerolog.Logger
}

func NewService(fetcher Fetcher, clock timer.Clock, maxAge time.Duration, logger zerolog.Logger) *Service {
	return &Service{
		fetcher: fetcher,
		clock:   clock,
		maxAge:  maxAge,
		watched: make(map[string]*entry),
		logger:  logger.With().Str("component", "weather").Logger(),
	}
}

// Current serves a cached reading younger than maxAge, otherwise fetches.
// A failed fetch never replaces a good cached reading.
func (s *Service) Current(ctx context.Context, loc Location) (*Conditions, error) {
	k := loc.key()
	now := s.clock.Now()
	s.mu.Lock()
	var cached *Conditions
	if e, ok := s.watched[k]; ok {
		e.requested = now
		cached = e.cond
	}
	s.mu.Unlock()
	if cached != nil && now.Sub(cached.FetchedAt) < s.maxAge {
		return cached, nil
	}
	return s.fetch(ctx, k, loc, now)
}

// fetch stores a successful reading. requested is zero for refreshes, which
// keep the entry's last request time.
func (s *Service) fetch(ctx context.Context, k string, loc Location, requested time.Time) (*Conditions, error) {
	cond, err := s.fetcher.Current(ctx, loc)
	if err != nil {
		s.logger.Warn().Err(err).Str("location", k).Msg("weather fetch failed")
		return nil, err
	}
	cond.FetchedAt = s.clock.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.watched[k]
	if !ok {
		if requested.IsZero() {
			// evicted while the refresh was in flight
			return cond, nil
		}
		e = &entry{loc: loc}
		s.watched[k] = e
	}
	e.cond = cond
	if !requested.IsZero() {
		e.requested = requested
	}
	return cond, nil
}

// Refresh drops locations idle for longer than idleFactor*maxAge and
// re-fetches the rest.
func (s *Service) Refresh(ctx context.Context) {
	cutoff := s.clock.Now().Add(-idleFactor * s.maxAge)
	s.mu.Lock()
	locs := make(map[string]Location, len(s.watched))
	for k, e := range s.watched {
		if e.requested.Before(cutoff) {
			delete(s.watched, k)
			s.logger.Debug().Str("location", k).Msg("weather location evicted")
			continue
		}
		locs[k] = e.loc
	}
	s.mu.Unlock()
	for k, loc := range locs {
		if ctx.Err() != nil {
			return
		}
		_, _ = s.fetch(ctx, k, loc, time.Time{})
	}
}

// Watched is the number of locations kept fresh.
func (s *Service) Watched() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.watched)
}

func (s *Service) Schedule(c *cron.Cron, spec string) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		s.Refresh(context.Background())
	})
}
