package assessment

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/kalinga/kalinga/internal/domain/course"
	"github.com/kalinga/kalinga/internal/platform/auth"
	"github.com/kalinga/kalinga/internal/platform/validation"
)

func newTestHandler(t *testing.T) (*Handler, *Service, *echo.Echo) {
	svc, _, _ := newTestService(t, &stubCompleter{})
	e := echo.New()
	e.Validator = validation.New()
	return NewHandler(svc, zerolog.Nop()), svc, e
}

func request(e *echo.Echo, method, body string, names, values []string) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, "/", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, "/", nil)
	}
	req = req.WithContext(auth.WithUser(req.Context(), "u1", auth.RolePersonnel))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames(names...)
	c.SetParamValues(values...)
	return c, rec
}

func statusOf(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return 0
}

func TestHandler_GetQuestionsHidesAnswers(t *testing.T) {
	h, _, e := newTestHandler(t)
	c, rec := request(e, http.MethodGet, "", []string{"id", "type"}, []string{"1", "final-assessment"})
	if err := h.GetQuestions(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(rec.Body.String(), `"answer"`) {
		t.Errorf("answers leaked: %s", rec.Body.String())
	}
	var body struct {
		Type      string            `json:"type"`
		Questions []course.Question `json:"questions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Type != "final" || len(body.Questions) != 5 {
		t.Errorf("unexpected body %+v", body)
	}
}

func TestHandler_BadAssessmentType(t *testing.T) {
	h, _, e := newTestHandler(t)
	c, _ := request(e, http.MethodGet, "", []string{"id", "type"}, []string{"1", "midterm"})
	if got := statusOf(h.GetQuestions(c)); got != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", got)
	}
}

func TestHandler_SubmitAnswers(t *testing.T) {
	h, _, e := newTestHandler(t)
	c, rec := request(e, http.MethodPost, `{"answers":[1,1,1,1,1]}`, []string{"id", "type"}, []string{"1", "quiz"})
	if err := h.SubmitAnswers(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var out Outcome
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Total != 5 {
		t.Errorf("expected 5 questions graded, got %d", out.Total)
	}

	c, _ = request(e, http.MethodPost, `{}`, []string{"id", "type"}, []string{"1", "quiz"})
	if got := statusOf(h.SubmitAnswers(c)); got != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for missing answers, got %d", got)
	}

	c, _ = request(e, http.MethodPost, `{"answers":[1]}`, []string{"id", "type"}, []string{"1", "quiz"})
	if got := statusOf(h.SubmitAnswers(c)); got != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for short answers, got %d", got)
	}

	c, _ = request(e, http.MethodPost, `{"answers":[1]}`, []string{"id", "type"}, []string{"5", "quiz"})
	if got := statusOf(h.SubmitAnswers(c)); got != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for an empty question set, got %d", got)
	}
}

func TestHandler_GetResultMissingIsNull(t *testing.T) {
	h, _, e := newTestHandler(t)
	c, rec := request(e, http.MethodGet, "", []string{"courseId", "type"}, []string{"1", "final"})
	if err := h.GetResult(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "null" {
		t.Errorf("expected null, got %s", got)
	}
}

func TestHandler_ClaimRequiresFinal(t *testing.T) {
	h, svc, e := newTestHandler(t)
	c, _ := request(e, http.MethodPost, "", []string{"courseId"}, []string{"1"})
	if got := statusOf(h.ClaimCertificate(c)); got != http.StatusConflict {
		t.Errorf("expected 409, got %d", got)
	}

	if _, err := svc.RecordResult(c.Request().Context(), "u1", 1, course.Final, 85); err != nil {
		t.Fatal(err)
	}
	c, rec := request(e, http.MethodPost, "", []string{"courseId"}, []string{"1"})
	if err := h.ClaimCertificate(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"changed":true`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}

	c, rec = request(e, http.MethodDelete, "", []string{"courseId"}, []string{"1"})
	if err := h.RevokeCertificate(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}

func TestHandler_ExportGrades(t *testing.T) {
	h, _, e := newTestHandler(t)
	c, rec := request(e, http.MethodGet, "", nil, nil)
	if err := h.ExportGrades(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != xlsxMIME {
		t.Errorf("unexpected content type %q", ct)
	}
	if rec.Body.Len() == 0 {
		t.Error("expected workbook bytes")
	}
}
