package notification

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// RemoteCollaborator calls a notification REST API. Calls are not retried.
type RemoteCollaborator struct {
	client *resty.Client
}

func NewRemoteCollaborator(baseURL string, timeout time.Duration) *RemoteCollaborator {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &RemoteCollaborator{client: client}
}

func check(resp *resty.Response, err error, what string) error {
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, what, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.IsError() {
		return fmt.Errorf("%w: %s: status %d", ErrUnavailable, what, resp.StatusCode())
	}
	return nil
}

func (r *RemoteCollaborator) FetchAll(ctx context.Context) ([]Notification, error) {
	var out []Notification
	resp, err := r.client.R().SetContext(ctx).SetResult(&out).Get("/notifications")
	if err := check(resp, err, "load notifications"); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *RemoteCollaborator) MarkAllRead(ctx context.Context) ([]Notification, error) {
	var out []Notification
	resp, err := r.client.R().SetContext(ctx).SetResult(&out).Post("/notifications/mark-all-read")
	if err := check(resp, err, "mark all read"); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *RemoteCollaborator) MarkRead(ctx context.Context, id int) (*Notification, error) {
	var out Notification
	resp, err := r.client.R().SetContext(ctx).SetResult(&out).
		SetPathParam("id", strconv.Itoa(id)).
		Post("/notifications/{id}/mark-read")
	if err := check(resp, err, "mark read"); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *RemoteCollaborator) Delete(ctx context.Context, id int) error {
	resp, err := r.client.R().SetContext(ctx).
		SetPathParam("id", strconv.Itoa(id)).
		Delete("/notifications/{id}")
	return check(resp, err, "delete")
}

func (r *RemoteCollaborator) Create(ctx context.Context, d Draft) (*Notification, error) {
	var out Notification
	resp, err := r.client.R().SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(d).SetResult(&out).
		Post("/notifications")
	if err := check(resp, err, "create"); err != nil {
		return nil, err
	}
	return &out, nil
}
