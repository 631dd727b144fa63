// Package notification keeps the shared notification feed, talks to the
// notification collaborator and runs the incoming-report simulator.
package notification

import (
	"errors"
	"time"
)

// Topic carries toast events to connected clients.
const Topic = "notifications"

var (
	ErrNotFound    = errors.New("notification not found")
	ErrUnavailable = errors.New("notification service unavailable")
)

type Notification struct {
	ID        int       `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Time      string    `json:"time"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// Draft is the payload for a new notification. Empty fields get defaults.
type Draft struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Time    string `json:"time,omitempty"`
}

// Toast is pushed to the notifications topic when an item arrives.
type Toast struct {
	Message      string       `json:"message"`
	Notification Notification `json:"notification"`
}
