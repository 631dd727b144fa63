package notification

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/kalinga/kalinga/internal/platform/timer"
	"github.com/kalinga/kalinga/internal/platform/websocket"
)

// Service fronts the collaborator and raises toasts for new items.
type Service struct {
	collab Collaborator
	pub    websocket.EventPublisher
	clock  timer.Clock
	logger zerolog.Logger
}

func NewService(collab Collaborator, pub websocket.EventPublisher, clock timer.Clock, logger zerolog.Logger) *Service {
	return &Service{
		collab: collab,
		pub:    pub,
		clock:  clock,
		logger: logger.With().Str("component", "notification").Logger(),
	}
}

// failed logs collaborator errors other than a plain miss.
func (s *Service) failed(op string, err error) error {
	if err != nil && !errors.Is(err, ErrNotFound) {
		s.logger.Warn().Err(err).Str("op", op).Msg("notification collaborator call failed")
	}
	return err
}

func (s *Service) List(ctx context.Context) ([]Notification, error) {
	items, err := s.collab.FetchAll(ctx)
	if err != nil {
		return nil, s.failed("fetch", err)
	}
	if items == nil {
		items = []Notification{}
	}
	return items, nil
}

func (s *Service) MarkAllRead(ctx context.Context) ([]Notification, error) {
	items, err := s.collab.MarkAllRead(ctx)
	return items, s.failed("mark-all-read", err)
}

func (s *Service) MarkRead(ctx context.Context, id int) (*Notification, error) {
	n, err := s.collab.MarkRead(ctx, id)
	return n, s.failed("mark-read", err)
}

func (s *Service) Delete(ctx context.Context, id int) error {
	return s.failed("delete", s.collab.Delete(ctx, id))
}

// Receive adds a notification to the feed and pushes a toast for it.
func (s *Service) Receive(ctx context.Context, d Draft) (*Notification, error) {
	n, err := s.collab.Create(ctx, d)
	if err != nil {
		return nil, s.failed("create", err)
	}
	s.toast(ctx, *n)
	return n, nil
}

func (s *Service) toast(ctx context.Context, n Notification) {
	if s.pub == nil {
		return
	}
	data, _ := json.Marshal(Toast{Message: n.Title + ": " + n.Message, Notification: n})
	err := s.pub.Publish(ctx, websocket.Event{
		Type:         "notification.created",
		Topic:        Topic,
		ResourceType: "Notification",
		ResourceID:   strconv.Itoa(n.ID),
		Timestamp:    s.clock.Now(),
		Data:         data,
	})
	if err != nil {
		s.logger.Warn().Err(err).Int("id", n.ID).Msg("publish toast")
	}
}
