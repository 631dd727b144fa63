package notification

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/kalinga/kalinga/internal/platform/timer"
)

func newTestHandler() (*Handler, *echo.Echo) {
	clock := timer.NewFake(epoch)
	svc := NewService(NewMockCollaborator(clock, 0), nil, clock, zerolog.Nop())
	return NewHandler(svc), echo.New()
}

func TestHandler_ListAndMarkAllRead(t *testing.T) {
	h, e := newTestHandler()

	rec := httptest.NewRecorder()
	if err := h.List(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var items []Notification
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 seed notifications, got %d", len(items))
	}

	rec = httptest.NewRecorder()
	if err := h.MarkAllRead(e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	items = nil
	json.Unmarshal(rec.Body.Bytes(), &items)
	for _, n := range items {
		if !n.Read {
			t.Errorf("notification %d still unread", n.ID)
		}
	}
}

func TestHandler_MarkReadUnknown(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("42")

	var he *echo.HTTPError
	if err := h.MarkRead(c); !errors.As(err, &he) || he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestHandler_Delete(t *testing.T) {
	h, e := newTestHandler()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues("1")
	if err := h.Delete(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c = e.NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("x")
	var he *echo.HTTPError
	if err := h.Delete(c); !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}
