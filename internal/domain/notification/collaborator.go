package notification

import (
	"context"
	"sync"
	"time"

	"github.com/kalinga/kalinga/internal/platform/timer"
)

// Collaborator is the notification backend the feed is read from and
// mutated through.
type Collaborator interface {
	FetchAll(ctx context.Context) ([]Notification, error)
	MarkAllRead(ctx context.Context) ([]Notification, error)
	MarkRead(ctx context.Context, id int) (*Notification, error)
	Delete(ctx context.Context, id int) error
	Create(ctx context.Context, d Draft) (*Notification, error)
}

// ---------------------------------------------------------------------------
// Mock collaborator
// ---------------------------------------------------------------------------

// Mock call latencies before scaling.
const (
	FetchLatency       = 200 * time.Millisecond
	MarkAllReadLatency = 150 * time.Millisecond
	DeleteLatency      = 150 * time.Millisecond
	MarkReadLatency    = 120 * time.Millisecond
	CreateLatency      = 100 * time.Millisecond
)

// SeedNotifications is the feed a fresh mock starts with.
func SeedNotifications(now time.Time) []Notification {
	return []Notification{
		{ID: 1, Title: "New Report Submitted", Message: "ER Unit filed a new triage report for review.", Time: "2 mins ago", CreatedAt: now.Add(-2 * time.Minute)},
		{ID: 2, Title: "Personnel Update", Message: "Nurse Clara has been reassigned to Center 3.", Time: "15 mins ago", CreatedAt: now.Add(-15 * time.Minute)},
		{ID: 3, Title: "Training Module Released", Message: "New CPR Certification module is now available.", Time: "1 hour ago", Read: true, CreatedAt: now.Add(-time.Hour)},
	}
}

// MockCollaborator keeps the feed in memory and answers after a fixed
// latency. A scale of 0 answers immediately.
type MockCollaborator struct {
	mu     sync.Mutex
	items  []Notification
	nextID int
	clock  timer.Clock
	scale  float64
}

func NewMockCollaborator(clock timer.Clock, scale float64) *MockCollaborator {
	return &MockCollaborator{
		items:  SeedNotifications(clock.Now()),
		nextID: 4,
		clock:  clock,
		scale:  scale,
	}
}

func (m *MockCollaborator) wait(ctx context.Context, d time.Duration) error {
	return timer.Sleep(ctx, m.clock, time.Duration(float64(d)*m.scale))
}

func (m *MockCollaborator) snapshot() []Notification {
	out := make([]Notification, len(m.items))
	copy(out, m.items)
	return out
}

func (m *MockCollaborator) FetchAll(ctx context.Context) ([]Notification, error) {
	if err := m.wait(ctx, FetchLatency); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot(), nil
}

func (m *MockCollaborator) MarkAllRead(ctx context.Context) ([]Notification, error) {
	if err := m.wait(ctx, MarkAllReadLatency); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		m.items[i].Read = true
	}
	return m.snapshot(), nil
}

func (m *MockCollaborator) MarkRead(ctx context.Context, id int) (*Notification, error) {
	if err := m.wait(ctx, MarkReadLatency); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].ID == id {
			m.items[i].Read = true
			n := m.items[i]
			return &n, nil
		}
	}
	return nil, ErrNotFound
}

// Delete of an unknown id succeeds, as the feed already lacks it.
func (m *MockCollaborator) Delete(ctx context.Context, id int) error {
	if err := m.wait(ctx, DeleteLatency); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.items[:0]
	for _, n := range m.items {
		if n.ID != id {
			kept = append(kept, n)
		}
	}
	m.items = kept
	return nil
}

// Create prepends a new unread notification.
func (m *MockCollaborator) Create(ctx context.Context, d Draft) (*Notification, error) {
	if err := m.wait(ctx, CreateLatency); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := Notification{
		ID:        m.nextID,
		Title:     d.Title,
		Message:   d.Message,
		Time:      d.Time,
		CreatedAt: m.clock.Now().UTC(),
	}
	if n.Title == "" {
		n.Title = "New notification"
	}
	if n.Time == "" {
		n.Time = "Just now"
	}
	m.nextID++
	m.items = append([]Notification{n}, m.items...)
	return &n, nil
}
