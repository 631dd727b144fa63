package course

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kalinga/kalinga/internal/platform/timer"
	"github.com/kalinga/kalinga/internal/platform/websocket"
)

// DwellTopic is the websocket topic that carries a learner's countdown.
func DwellTopic(learnerID string) string {
	return "dwell:" + learnerID
}

type dwellKey struct {
	learner string
	course  int
	section string
	index   int
}

type dwellStart struct {
	key dwellKey
	at  time.Time
}

// DwellGate tracks the timed item a learner is currently on and runs at most
// one visible countdown per learner. Entering another item forgets the
// previous one and cancels its countdown.
type DwellGate struct {
	mu       sync.Mutex
	clock    timer.Clock
	started  map[string]dwellStart
	active   map[string]*timer.Handle
	pub      websocket.EventPublisher
	logger   zerolog.Logger
	parent   context.Context
	shutdown context.CancelFunc
}

func NewDwellGate(clock timer.Clock, pub websocket.EventPublisher, logger zerolog.Logger) *DwellGate {
	ctx, cancel := context.WithCancel(context.Background())
	return &DwellGate{
		clock:    clock,
		started:  make(map[string]dwellStart),
		active:   make(map[string]*timer.Handle),
		pub:      pub,
		logger:   logger,
		parent:   ctx,
		shutdown: cancel,
	}
}

// Enter restarts the dwell window for an item and, with a publisher, starts
// pushing one tick per second to the learner's topic.
func (g *DwellGate) Enter(k dwellKey, seconds int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.started[k.learner] = dwellStart{key: k, at: g.clock.Now()}
	// Ticks never take g.mu, so stopping under the lock cannot deadlock.
	if prev := g.active[k.learner]; prev != nil {
		prev.Stop()
		delete(g.active, k.learner)
	}
	if g.pub == nil || seconds <= 0 {
		return
	}
	g.active[k.learner] = timer.Countdown(g.parent, g.clock, seconds, func(remaining int) {
		g.publishTick(k, remaining)
	})
}

// Remaining returns the whole seconds left before the item may complete. An
// item that is not the learner's current one has its full window outstanding.
func (g *DwellGate) Remaining(k dwellKey, seconds int) int {
	if seconds <= 0 {
		return 0
	}
	g.mu.Lock()
	cur, ok := g.started[k.learner]
	g.mu.Unlock()
	if !ok || cur.key != k {
		return seconds
	}
	left := time.Duration(seconds)*time.Second - g.clock.Now().Sub(cur.at)
	if left <= 0 {
		return 0
	}
	// Round partial seconds up so zero means truly elapsed.
	return int((left + time.Second - 1) / time.Second)
}

// Leave forgets an item and stops the learner's countdown.
func (g *DwellGate) Leave(k dwellKey) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if cur, ok := g.started[k.learner]; !ok || cur.key != k {
		return
	}
	delete(g.started, k.learner)
	if h := g.active[k.learner]; h != nil {
		h.Stop()
		delete(g.active, k.learner)
	}
}

// Close stops every running countdown.
func (g *DwellGate) Close() {
	g.shutdown()
	g.mu.Lock()
	handles := make([]*timer.Handle, 0, len(g.active))
	for _, h := range g.active {
		handles = append(handles, h)
	}
	g.active = make(map[string]*timer.Handle)
	g.mu.Unlock()
	for _, h := range handles {
		h.Stop()
	}
}

func (g *DwellGate) publishTick(k dwellKey, remaining int) {
	data, _ := json.Marshal(map[string]interface{}{
		"courseId":  k.course,
		"section":   k.section,
		"index":     k.index,
		"remaining": remaining,
	})
	err := g.pub.Publish(g.parent, websocket.Event{
		Type:         "dwell.tick",
		Topic:        DwellTopic(k.learner),
		ResourceType: "CourseItem",
		ResourceID:   fmt.Sprintf("%d/%s/%d", k.course, k.section, k.index),
		Timestamp:    g.clock.Now(),
		Data:         data,
	})
	if err != nil {
		g.logger.Warn().Err(err).Str("learner", k.learner).Msg("publish dwell tick")
	}
}
