package course

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/kalinga/kalinga/internal/platform/auth"
	"github.com/kalinga/kalinga/internal/platform/blobstore"
)

type Handler struct {
	svc    *Service
	logger zerolog.Logger
}

func NewHandler(svc *Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/courses", auth.RequireRole(auth.RolePersonnel))
	g.GET("", h.ListCourses)
	g.GET("/:id", h.GetCourse)
	g.GET("/:id/access", h.GetAccess)
	g.POST("/:id/items/:section/:index/open", h.OpenItem)
	g.GET("/:id/items/:section/:index/dwell", h.GetDwell)
	g.POST("/:id/items/:section/:index/complete", h.CompleteItem)
	g.POST("/:id/activities/:slug", h.SubmitActivity)
	g.GET("/:id/activities/:slug", h.GetSubmission)
	g.GET("/:id/activities/:slug/file", h.DownloadSubmission)
}

type courseSummary struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	ItemCount int    `json:"itemCount"`
}

func (h *Handler) ListCourses(c echo.Context) error {
	list := h.svc.Catalog().List()
	out := make([]courseSummary, 0, len(list))
	for _, co := range list {
		out = append(out, courseSummary{ID: co.ID, Title: co.Title, ItemCount: co.ItemCount()})
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) GetCourse(c echo.Context) error {
	id, err := courseID(c)
	if err != nil {
		return err
	}
	out, err := h.svc.Outline(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()), id)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) GetAccess(c echo.Context) error {
	id, err := courseID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.Access(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()), id)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) OpenItem(c echo.Context) error {
	id, section, index, err := itemParams(c)
	if err != nil {
		return err
	}
	res, err := h.svc.Open(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()), id, section, index)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) GetDwell(c echo.Context) error {
	id, section, index, err := itemParams(c)
	if err != nil {
		return err
	}
	rem, err := h.svc.DwellRemaining(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()), id, section, index)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]int{"remaining": rem})
}

func (h *Handler) CompleteItem(c echo.Context) error {
	id, section, index, err := itemParams(c)
	if err != nil {
		return err
	}
	res, err := h.svc.Complete(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()), id, section, index)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

// SubmitActivity accepts a multipart upload in the "file" field.
func (h *Handler) SubmitActivity(c echo.Context) error {
	id, err := courseID(c)
	if err != nil {
		return err
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Please select a file to upload.")
	}
	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "could not read uploaded file")
	}
	defer f.Close()

	meta := blobstore.Metadata{
		FileName:    fh.Filename,
		ContentType: blobstore.NormalizeContentType(fh.Header.Get("Content-Type"), fh.Filename),
		Size:        fh.Size,
	}
	ctx := c.Request().Context()
	res, err := h.svc.SubmitActivity(ctx, auth.UserIDFromContext(ctx), id, c.Param("slug"), meta, f)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *Handler) GetSubmission(c echo.Context) error {
	id, err := courseID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	sub, err := h.svc.Submission(ctx, auth.UserIDFromContext(ctx), id, c.Param("slug"))
	if err != nil {
		return h.httpError(err)
	}
	if sub == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no submission for this activity")
	}
	return c.JSON(http.StatusOK, sub)
}

func (h *Handler) DownloadSubmission(c echo.Context) error {
	id, err := courseID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	rc, meta, err := h.svc.SubmissionFile(ctx, auth.UserIDFromContext(ctx), id, c.Param("slug"))
	if err != nil {
		return h.httpError(err)
	}
	defer rc.Close()
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", meta.FileName))
	return c.Stream(http.StatusOK, meta.ContentType, rc)
}

func courseID(c echo.Context) (int, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid course id")
	}
	return id, nil
}

func itemParams(c echo.Context) (int, string, int, error) {
	id, err := courseID(c)
	if err != nil {
		return 0, "", 0, err
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return 0, "", 0, echo.NewHTTPError(http.StatusBadRequest, "invalid item index")
	}
	return id, c.Param("section"), index, nil
}

func (h *Handler) httpError(err error) error {
	switch {
	case errors.Is(err, ErrCourseNotFound), errors.Is(err, ErrItemNotFound), errors.Is(err, blobstore.ErrBlobNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrSectionLocked):
		return echo.NewHTTPError(http.StatusConflict, MsgSectionLocked)
	case errors.Is(err, ErrItemLocked):
		return echo.NewHTTPError(http.StatusConflict, MsgItemLocked)
	case errors.Is(err, ErrDwellPending):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrNotActivity), errors.Is(err, blobstore.ErrMissingFileName):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, blobstore.ErrFileTooLarge):
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "File size must be less than 10MB.")
	case errors.Is(err, blobstore.ErrInvalidContentType):
		return echo.NewHTTPError(http.StatusUnsupportedMediaType, "Please upload a PDF, image, video, or Word document.")
	}
	h.logger.Error().Err(err).Msg("course request failed")
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
}
