// Package web hosts the plain HTTP surface: account registration and
// login, which mint the bearer tokens the real-time endpoint consumes.
package web

import (
	gerrors "errors"
	"log/slog"
	"net/http"

	"courier/auth"
	"courier/errors"
	"courier/services"

	"github.com/labstack/echo/v4"
)

type AuthHandler struct {
	authService services.IAuthService
	log         *slog.Logger
}

func NewAuthHandler(authService services.IAuthService, log *slog.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, log: log}
}

func (h *AuthHandler) Register(e *echo.Echo) {
	e.POST("/auth/register", h.handleRegister)
	e.POST("/auth/login", h.handleLogin)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (h *AuthHandler) handleRegister(c echo.Context) error {
	var req auth.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}

	token, err := h.authService.Register(req.Email, req.DisplayLabel, req.Password)
	if err != nil {
		return mapAuthError(err)
	}
	return c.JSON(http.StatusCreated, tokenResponse{Token: string(token)})
}

func (h *AuthHandler) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}

	token, err := h.authService.Login(req.Email, req.Password)
	if err != nil {
		return mapAuthError(err)
	}
	return c.JSON(http.StatusOK, tokenResponse{Token: string(token)})
}

func mapAuthError(err error) *echo.HTTPError {
	switch {
	case gerrors.Is(err, errors.ErrUserAlreadyExists):
		return echo.NewHTTPError(http.StatusConflict, errors.ErrUserAlreadyExists.Error())
	case gerrors.Is(err, errors.ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, errors.ErrInvalidCredentials.Error())
	case gerrors.Is(err, errors.ErrInvalidPassword):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
