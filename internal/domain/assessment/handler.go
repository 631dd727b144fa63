package assessment

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/kalinga/kalinga/internal/domain/course"
	"github.com/kalinga/kalinga/internal/platform/auth"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	svc    *Service
	logger zerolog.Logger
}

func NewHandler(svc *Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	personnel := auth.RequireRole(auth.RolePersonnel)

	a := api.Group("/courses/:id/assessments", personnel)
	a.GET("/:type", h.GetQuestions)
	a.POST("/:type", h.SubmitAnswers)

	r := api.Group("/assessments/results", personnel)
	r.GET("/:courseId/:type", h.GetResult)
	r.PUT("/:courseId/:type", h.PutResult, auth.RequireRole(auth.RoleAdmin))

	g := api.Group("/grades", personnel)
	g.GET("", h.GetGrades)
	g.GET("/export.xlsx", h.ExportGrades)

	c := api.Group("/certificates", personnel)
	c.GET("", h.ListCertificates)
	c.POST("/:courseId/claim", h.ClaimCertificate)
	c.DELETE("/:courseId", h.RevokeCertificate)
}

func (h *Handler) GetQuestions(c echo.Context) error {
	id, t, err := params(c, "id")
	if err != nil {
		return err
	}
	qs, err := h.svc.Questions(id, t)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"courseId":  id,
		"type":      t,
		"questions": qs,
	})
}

func (h *Handler) SubmitAnswers(c echo.Context) error {
	id, t, err := params(c, "id")
	if err != nil {
		return err
	}
	var req SubmitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	out, err := h.svc.Submit(ctx, auth.UserIDFromContext(ctx), id, t, req.Answers)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) GetResult(c echo.Context) error {
	id, t, err := params(c, "courseId")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	r, err := h.svc.ReadResult(ctx, auth.UserIDFromContext(ctx), id, t)
	if err != nil {
		return h.httpError(err)
	}
	// A missing result is a valid answer, not an error.
	return c.JSON(http.StatusOK, r)
}

// PutResult records a score directly. Admins only.
func (h *Handler) PutResult(c echo.Context) error {
	id, t, err := params(c, "courseId")
	if err != nil {
		return err
	}
	var req RecordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	learner := c.QueryParam("learner")
	if learner == "" {
		learner = auth.UserIDFromContext(c.Request().Context())
	}
	r, err := h.svc.RecordResult(c.Request().Context(), learner, id, t, *req.Score)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) GetGrades(c echo.Context) error {
	ctx := c.Request().Context()
	grades, err := h.svc.Report(ctx, auth.UserIDFromContext(ctx))
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, grades)
}

func (h *Handler) ExportGrades(c echo.Context) error {
	ctx := c.Request().Context()
	grades, err := h.svc.Report(ctx, auth.UserIDFromContext(ctx))
	if err != nil {
		return h.httpError(err)
	}
	data, err := ExportReport(grades)
	if err != nil {
		return h.httpError(err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="grades.xlsx"`)
	return c.Blob(http.StatusOK, xlsxMIME, data)
}

func (h *Handler) ListCertificates(c echo.Context) error {
	ctx := c.Request().Context()
	certs, err := h.svc.Certificates(ctx, auth.UserIDFromContext(ctx))
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, certs)
}

func (h *Handler) ClaimCertificate(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("courseId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid course id")
	}
	ctx := c.Request().Context()
	claimed, err := h.svc.Claim(ctx, auth.UserIDFromContext(ctx), id)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"claimed": true, "changed": claimed})
}

func (h *Handler) RevokeCertificate(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("courseId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid course id")
	}
	ctx := c.Request().Context()
	if err := h.svc.Revoke(ctx, auth.UserIDFromContext(ctx), id); err != nil {
		return h.httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func params(c echo.Context, idParam string) (int, course.AssessmentType, error) {
	id, err := strconv.Atoi(c.Param(idParam))
	if err != nil {
		return 0, "", echo.NewHTTPError(http.StatusBadRequest, "invalid course id")
	}
	t, ok := course.ParseAssessmentType(c.Param("type"))
	if !ok {
		return 0, "", echo.NewHTTPError(http.StatusBadRequest, ErrUnknownType.Error())
	}
	return id, t, nil
}

func (h *Handler) httpError(err error) error {
	switch {
	case errors.Is(err, course.ErrCourseNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNoQuestions), errors.Is(err, ErrAnswerCount), errors.Is(err, ErrScoreRange):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrNotEligible):
		return echo.NewHTTPError(http.StatusConflict, "You need to pass the Final (≥ 80%) to claim a certificate.")
	}
	h.logger.Error().Err(err).Msg("assessment request failed")
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
}
