package triage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/kalinga/kalinga/internal/platform/timer"
	"github.com/kalinga/kalinga/internal/platform/websocket"
)

// Topic carries a summary event every time cohorts are regenerated.
const Topic = "triage"

// Service owns the current generation cycle. Regenerating replaces every
// cohort at once; readers always see a complete snapshot.
type Service struct {
	mu         sync.RWMutex
	gen        *Generator
	facilities []Facility
	clock      timer.Clock
	snap       Snapshot
	pub        websocket.EventPublisher
	logger     zerolog.Logger
}

func NewService(gen *Generator, facilities []Facility, clock timer.Clock, logger zerolog.Logger) *Service {
	s := &Service{
		gen:        gen,
		facilities: facilities,
		clock:      clock,
		logger:     logger.With().Str("component", "triage").Logger(),
	}
	s.Regenerate(context.Background())
	return s
}

// SetPublisher attaches an optional event publisher.
func (s *Service) SetPublisher(p websocket.EventPublisher) {
	s.pub = p
}

func (s *Service) Facilities() []Facility {
	return s.facilities
}

// Snapshot returns the current generation cycle.
func (s *Service) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Regenerate draws a fresh set of cohorts and swaps it in.
func (s *Service) Regenerate(ctx context.Context) Snapshot {
	s.mu.Lock()
	snap := Snapshot{Cohorts: s.gen.Generate(s.facilities), GeneratedAt: s.clock.Now()}
	s.snap = snap
	s.mu.Unlock()

	s.logger.Debug().Int("patients", snap.PatientCount()).Msg("cohorts regenerated")
	if s.pub != nil {
		s.publish(ctx, snap)
	}
	return snap
}

func (s *Service) publish(ctx context.Context, snap Snapshot) {
	counts := make(map[Level]int, len(Levels))
	for _, c := range snap.Cohorts {
		for l, n := range c.LevelCounts {
			counts[l] += n
		}
	}
	data, _ := json.Marshal(map[string]interface{}{"patients": snap.PatientCount(), "levelCounts": counts})
	err := s.pub.Publish(ctx, websocket.Event{
		Type:         "cohorts.regenerated",
		Topic:        Topic,
		ResourceType: "Cohort",
		Timestamp:    snap.GeneratedAt,
		Data:         data,
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("publish regeneration event")
	}
}

// Schedule registers periodic regeneration on c using a cron spec such as
// "@every 60s".
func (s *Service) Schedule(c *cron.Cron, spec string) (cron.EntryID, error) {
	id, err := c.AddFunc(spec, func() { s.Regenerate(context.Background()) })
	if err != nil {
		return 0, fmt.Errorf("schedule cohort regeneration %q: %w", spec, err)
	}
	return id, nil
}

// Assessment is the answer to a one-off classification request.
type Assessment struct {
	Level                 Level  `json:"level"`
	RecommendedSpecialist string `json:"recommendedSpecialist"`
}

func (s *Service) Assess(v Vitals) Assessment {
	l := Classify(v)
	return Assessment{Level: l, RecommendedSpecialist: Recommend(v, l)}
}
