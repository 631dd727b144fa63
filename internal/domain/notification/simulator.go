package notification

import (
	"context"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/kalinga/kalinga/internal/platform/timer"
)

// The simulated incoming report.
const (
	SimulatedTitle   = "New Triage Report"
	SimulatedMessage = "A new triage report needs your review."
)

// Simulator feeds a synthetic report into the service at uniformly random
// intervals in [Min, Max).
type Simulator struct {
	svc    *Service
	clock  timer.Clock
	rng    *rand.Rand
	min    time.Duration
	max    time.Duration
	logger zerolog.Logger
}

func NewSimulator(svc *Service, clock timer.Clock, rng *rand.Rand, min, max time.Duration, logger zerolog.Logger) *Simulator {
	return &Simulator{svc: svc, clock: clock, rng: rng, min: min, max: max, logger: logger}
}

// Start runs the loop until ctx is cancelled or the handle is stopped.
// A failed delivery is logged and the loop carries on.
func (s *Simulator) Start(ctx context.Context) *timer.Handle {
	s.logger.Info().Dur("min", s.min).Dur("max", s.max).Msg("notification simulator started")
	return timer.Jittered(ctx, s.clock, s.rng, s.min, s.max, func(ctx context.Context) {
		n, err := s.svc.Receive(ctx, Draft{Title: SimulatedTitle, Message: SimulatedMessage})
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Warn().Err(err).Msg("simulated notification dropped")
			}
			return
		}
		s.logger.Debug().Int("id", n.ID).Msg("simulated notification delivered")
	})
}
