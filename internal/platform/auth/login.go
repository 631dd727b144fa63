package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/kalinga/kalinga/internal/platform/progress"
)

// LoginFlags persists the per-learner login flag.
type LoginFlags interface {
	Do(ctx context.Context, learnerID string, fn func(tx *progress.Tx) error) error
	LoggedIn(ctx context.Context, learnerID string) (bool, error)
}

// Issuer signs session tokens.
type Issuer struct {
	Key    []byte
	Issuer string
	TTL    time.Duration
	Now    func() time.Time
}

func (i *Issuer) Issue(learnerID, role string) (string, time.Time, error) {
	now := time.Now
	if i.Now != nil {
		now = i.Now
	}
	issued := now()
	exp := issued.Add(i.TTL)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   learnerID,
			Issuer:    i.Issuer,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Roles: []string{role},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.Key)
	if err != nil {
		return "", time.Time{}, err
	}
	return tok, exp, nil
}

// LoginRequest is the mock login body. There is no password check; the
// login is a session marker, not an identity proof.
type LoginRequest struct {
	LearnerID string `json:"learnerId" validate:"required,max=64"`
	Role      string `json:"role" validate:"required,oneof=admin responder personnel"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Redirect  string    `json:"redirect"`
}

type LoginHandler struct {
	issuer *Issuer
	flags  LoginFlags
	logger zerolog.Logger
}

func NewLoginHandler(issuer *Issuer, flags LoginFlags, logger zerolog.Logger) *LoginHandler {
	return &LoginHandler{issuer: issuer, flags: flags, logger: logger}
}

// RegisterRoutes mounts login on the public group and logout on the
// authenticated one.
func (h *LoginHandler) RegisterRoutes(public, api *echo.Group) {
	public.POST("/auth/login", h.Login)
	api.POST("/auth/logout", h.Logout)
}

func (h *LoginHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	tok, exp, err := h.issuer.Issue(req.LearnerID, req.Role)
	if err != nil {
		h.logger.Error().Err(err).Msg("sign session token")
		return echo.NewHTTPError(http.StatusInternalServerError, "could not issue token")
	}
	ctx := c.Request().Context()
	if err := h.flags.Do(ctx, req.LearnerID, func(tx *progress.Tx) error { return tx.SetLoggedIn(true) }); err != nil {
		h.logger.Error().Err(err).Str("learner", req.LearnerID).Msg("set login flag")
		return echo.NewHTTPError(http.StatusInternalServerError, "could not start session")
	}
	return c.JSON(http.StatusOK, LoginResponse{Token: tok, ExpiresAt: exp, Redirect: "/dashboard"})
}

func (h *LoginHandler) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	learner := UserIDFromContext(ctx)
	if err := h.flags.Do(ctx, learner, func(tx *progress.Tx) error { return tx.SetLoggedIn(false) }); err != nil {
		h.logger.Error().Err(err).Str("learner", learner).Msg("clear login flag")
		return echo.NewHTTPError(http.StatusInternalServerError, "could not end session")
	}
	return c.JSON(http.StatusOK, map[string]string{"redirect": "/login"})
}

// RequireLogin is the route guard: a valid token is not enough, the
// learner's persisted login flag must also be set. Unauthenticated requests
// are told where to go.
func RequireLogin(flags LoginFlags, logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if IsPublicPath(c.Path()) {
				return next(c)
			}
			learner := UserIDFromContext(c.Request().Context())
			ok := false
			if learner != "" {
				var err error
				ok, err = flags.LoggedIn(c.Request().Context(), learner)
				if err != nil {
					logger.Warn().Err(err).Str("learner", learner).Msg("read login flag")
				}
			}
			if !ok {
				return c.JSON(http.StatusUnauthorized, map[string]string{"redirect": "/login"})
			}
			return next(c)
		}
	}
}
