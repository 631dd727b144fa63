package course

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strconv"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/kalinga/kalinga/internal/platform/auth"
	"github.com/kalinga/kalinga/internal/platform/progress"
)

func learnerContext(e *echo.Echo, req *http.Request, learner string) (echo.Context, *httptest.ResponseRecorder) {
	req = req.WithContext(auth.WithUser(req.Context(), learner, auth.RolePersonnel))
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func itemContext(e *echo.Echo, method, learner string, id int, section string, index int) (echo.Context, *httptest.ResponseRecorder) {
	c, rec := learnerContext(e, httptest.NewRequest(method, "/", nil), learner)
	c.SetParamNames("id", "section", "index")
	c.SetParamValues(strconv.Itoa(id), section, strconv.Itoa(index))
	return c, rec
}

func expectHTTPError(t *testing.T, err error, code int) *echo.HTTPError {
	t.Helper()
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected HTTPError %d, got %v", code, err)
	}
	if he.Code != code {
		t.Fatalf("expected status %d, got %d (%v)", code, he.Code, he.Message)
	}
	return he
}

func TestHandler_ListCourses(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc, zerolog.Nop())
	e := echo.New()
	c, rec := learnerContext(e, httptest.NewRequest(http.MethodGet, "/", nil), "u1")

	if err := h.ListCourses(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got []courseSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 12 {
		t.Fatalf("expected 12 courses, got %d", len(got))
	}
	if got[0].ItemCount != 20 {
		t.Errorf("expected course 1 to have 20 items, got %d", got[0].ItemCount)
	}
}

func TestHandler_OpenLockedShowsMessage(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc, zerolog.Nop())
	e := echo.New()

	c, _ := itemContext(e, http.MethodPost, "u1", 1, progress.HelpfulMaterials, 2)
	he := expectHTTPError(t, h.OpenItem(c), http.StatusConflict)
	if he.Message != MsgSectionLocked {
		t.Errorf("expected section message, got %v", he.Message)
	}

	c, _ = itemContext(e, http.MethodPost, "u1", 1, progress.GeneralInfo, 1)
	he = expectHTTPError(t, h.OpenItem(c), http.StatusConflict)
	if he.Message != MsgItemLocked {
		t.Errorf("expected item message, got %v", he.Message)
	}
}

func TestHandler_OpenAndComplete(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc, zerolog.Nop())
	e := echo.New()

	c, rec := itemContext(e, http.MethodPost, "u1", 1, progress.GeneralInfo, 0)
	if err := h.OpenItem(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var opened OpenResult
	if err := json.Unmarshal(rec.Body.Bytes(), &opened); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if opened.Route != "/modules/1/info/welcome-message" {
		t.Errorf("unexpected route %q", opened.Route)
	}

	c, rec = itemContext(e, http.MethodPost, "u1", 1, progress.GeneralInfo, 0)
	if err := h.CompleteItem(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var done CompleteResult
	if err := json.Unmarshal(rec.Body.Bytes(), &done); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !done.AlreadyCompleted {
		t.Error("expected info page to be completed on open")
	}
}

func TestHandler_BadParams(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc, zerolog.Nop())
	e := echo.New()

	c, _ := learnerContext(e, httptest.NewRequest(http.MethodGet, "/", nil), "u1")
	c.SetParamNames("id")
	c.SetParamValues("abc")
	expectHTTPError(t, h.GetCourse(c), http.StatusBadRequest)

	c, _ = learnerContext(e, httptest.NewRequest(http.MethodGet, "/", nil), "u1")
	c.SetParamNames("id")
	c.SetParamValues("99")
	expectHTTPError(t, h.GetCourse(c), http.StatusNotFound)

	c, _ = itemContext(e, http.MethodPost, "u1", 1, "appendix", 0)
	expectHTTPError(t, h.OpenItem(c), http.StatusNotFound)
}

func multipartRequest(t *testing.T, fileName, contentType string, body []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="`+fileName+`"`)
	hdr.Set("Content-Type", contentType)
	part, err := w.CreatePart(hdr)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	part.Write(body)
	w.Close()
	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

func TestHandler_SubmitActivity(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc, zerolog.Nop())
	e := echo.New()
	f.finishSection(t, "u1", f.c1, progress.GeneralInfo)
	f.finishSection(t, "u1", f.c1, progress.HelpfulMaterials)
	for i := 0; i < 6; i++ {
		f.finish(t, "u1", f.c1, progress.TrainingMaterials, i)
	}
	slug := f.c1.Items(progress.TrainingMaterials)[6].Slug

	submit := func(name, ct string, body []byte) (*httptest.ResponseRecorder, error) {
		c, rec := learnerContext(e, multipartRequest(t, name, ct, body), "u1")
		c.SetParamNames("id", "slug")
		c.SetParamValues("1", slug)
		return rec, h.SubmitActivity(c)
	}

	_, err := submit("clip.gif", "image/gif", []byte("GIF89a"))
	expectHTTPError(t, err, http.StatusUnsupportedMediaType)

	big := make([]byte, 10*1024*1024+1)
	_, err = submit("huge.pdf", "application/pdf", big)
	expectHTTPError(t, err, http.StatusRequestEntityTooLarge)

	rec, err := submit("answers.docx", "application/octet-stream", []byte("PK"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	c, rec := learnerContext(e, httptest.NewRequest(http.MethodGet, "/", nil), "u1")
	c.SetParamNames("id", "slug")
	c.SetParamValues("1", slug)
	if err := h.DownloadSubmission(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Body.String() != "PK" {
		t.Errorf("unexpected file body %q", rec.Body.String())
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "application/vnd.openxmlformats-officedocument.wordprocessingml.document" {
		t.Errorf("unexpected content type %q", ct)
	}
}

func TestHandler_SubmitActivityLocked(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc, zerolog.Nop())
	e := echo.New()
	slug := f.c1.Items(progress.TrainingMaterials)[6].Slug

	c, _ := learnerContext(e, multipartRequest(t, "a.pdf", "application/pdf", []byte("%PDF")), "u1")
	c.SetParamNames("id", "slug")
	c.SetParamValues("1", slug)
	expectHTTPError(t, h.SubmitActivity(c), http.StatusConflict)

	c, _ = learnerContext(e, httptest.NewRequest(http.MethodGet, "/", nil), "u1")
	c.SetParamNames("id", "slug")
	c.SetParamValues("1", slug)
	expectHTTPError(t, h.GetSubmission(c), http.StatusNotFound)
}
