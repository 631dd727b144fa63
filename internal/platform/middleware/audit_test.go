package middleware

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/kalinga/kalinga/internal/platform/auth"
)

type mockRecorder struct {
	mu      sync.Mutex
	entries []AuditEntry
	err     error
}

func (m *mockRecorder) RecordAccess(entry AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return m.err
}

func (m *mockRecorder) last() AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[len(m.entries)-1]
}

func (m *mockRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func newTestContext(method, path string, opts ...func(*http.Request)) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, path, nil)
	for _, opt := range opts {
		opt(req)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func withLearner(id string, roles ...string) func(*http.Request) {
	return func(req *http.Request) {
		*req = *req.WithContext(auth.WithUser(req.Context(), id, roles...))
	}
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func TestAudit_ItemCompletion(t *testing.T) {
	rec := &mockRecorder{}
	c, _ := newTestContext(http.MethodPost, "/api/v1/courses/3/items/general/0/complete",
		withLearner("learner-1", auth.RolePersonnel))
	c.Set("request_id", "req-9")

	if err := Audit(zerolog.Nop(), rec)(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.count() != 1 {
		t.Fatalf("expected 1 entry, got %d", rec.count())
	}
	e := rec.last()
	if e.LearnerID != "learner-1" || e.Action != "create" {
		t.Errorf("unexpected entry: %+v", e)
	}
	if e.Resource != "courses" || e.ResourceID != "3" {
		t.Errorf("expected courses/3, got %s/%s", e.Resource, e.ResourceID)
	}
	if e.RequestID != "req-9" || e.StatusCode != http.StatusOK {
		t.Errorf("expected request id and status, got %+v", e)
	}
	if len(e.Roles) != 1 || e.Roles[0] != auth.RolePersonnel {
		t.Errorf("expected personnel role, got %v", e.Roles)
	}
}

func TestAudit_SkipsReads(t *testing.T) {
	rec := &mockRecorder{}
	c, _ := newTestContext(http.MethodGet, "/api/v1/grades", withLearner("learner-1"))

	if err := Audit(zerolog.Nop(), rec)(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.count() != 0 {
		t.Errorf("expected reads to be skipped, got %d entries", rec.count())
	}
}

func TestAudit_SkipsPublicAndNonAPIPaths(t *testing.T) {
	rec := &mockRecorder{}
	for _, path := range []string{"/api/v1/auth/login", "/health", "/ws"} {
		c, _ := newTestContext(http.MethodPost, path)
		if err := Audit(zerolog.Nop(), rec)(okHandler)(c); err != nil {
			t.Fatalf("%s: unexpected error: %v", path, err)
		}
	}
	if rec.count() != 0 {
		t.Errorf("expected no entries, got %d", rec.count())
	}
}

func TestAudit_RecordsHTTPErrorStatus(t *testing.T) {
	rec := &mockRecorder{}
	c, _ := newTestContext(http.MethodDelete, "/api/v1/certificates/2", withLearner("learner-1"))

	h := Audit(zerolog.Nop(), rec)(func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "course not found")
	})
	if err := h(c); err == nil {
		t.Fatal("expected handler error to propagate")
	}
	e := rec.last()
	if e.Action != "delete" || e.StatusCode != http.StatusNotFound {
		t.Errorf("expected delete/404, got %s/%d", e.Action, e.StatusCode)
	}
}

func TestAudit_RecorderErrorDoesNotBreakRequest(t *testing.T) {
	var buf bytes.Buffer
	rec := &mockRecorder{err: errors.New("disk full")}
	c, httpRec := newTestContext(http.MethodPut, "/api/v1/assessments/results/1/quiz", withLearner("admin-1", auth.RoleAdmin))

	if err := Audit(zerolog.New(&buf), rec)(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if httpRec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", httpRec.Code)
	}
	if !strings.Contains(buf.String(), "failed to record audit entry") {
		t.Errorf("expected recorder failure to be logged, got %s", buf.String())
	}
	if !strings.Contains(buf.String(), `"action":"update"`) {
		t.Errorf("expected the audit line to still be written, got %s", buf.String())
	}
}

func TestHttpMethodToAction(t *testing.T) {
	tests := map[string]string{
		http.MethodGet:    "",
		http.MethodHead:   "",
		http.MethodPost:   "create",
		http.MethodPut:    "update",
		http.MethodPatch:  "update",
		http.MethodDelete: "delete",
	}
	for method, want := range tests {
		if got := httpMethodToAction(method); got != want {
			t.Errorf("httpMethodToAction(%s) = %q, want %q", method, got, want)
		}
	}
}

func TestExtractResource(t *testing.T) {
	tests := []struct {
		path, resource, id string
	}{
		{"/api/v1/courses/3/items/general/0/complete", "courses", "3"},
		{"/api/v1/notifications/read-all", "notifications", "read-all"},
		{"/api/v1/certificates", "certificates", ""},
		{"/api/v1/", "unknown", ""},
	}
	for _, tt := range tests {
		resource, id := extractResource(tt.path)
		if resource != tt.resource || id != tt.id {
			t.Errorf("extractResource(%q) = %q, %q; want %q, %q", tt.path, resource, id, tt.resource, tt.id)
		}
	}
}

func TestAuditRecorderFunc(t *testing.T) {
	var got AuditEntry
	f := AuditRecorderFunc(func(e AuditEntry) error {
		got = e
		return nil
	})
	if err := f.RecordAccess(AuditEntry{LearnerID: "x"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.LearnerID != "x" {
		t.Errorf("expected entry to be passed through, got %+v", got)
	}
}
