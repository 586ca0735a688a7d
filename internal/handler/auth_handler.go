package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"jobmatch-service/internal/account"
	"jobmatch-service/internal/model"
	"jobmatch-service/pkg/logger"
)

func (h *Handler) issueToken(c echo.Context, status int, user *model.User) error {
	token, err := h.JWT.GenerateToken(user)
	if err != nil {
		logger.FromContext(c).Error("Failed to generate token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
	}
	return c.JSON(status, echo.Map{"token": token, "user": user})
}

// RegisterUser creates an account and logs it in.
func (h *Handler) RegisterUser(c echo.Context) error {
	var req account.RegisterInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, err)
	}

	user, err := h.Accounts.Register(c.Request().Context(), req)
	if err != nil {
		return respondError(c, "Registration failed", err)
	}
	return h.issueToken(c, http.StatusCreated, user)
}

func (h *Handler) Login(c echo.Context) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, err)
	}

	user, err := h.Accounts.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return respondError(c, "Login failed", err)
	}
	return h.issueToken(c, http.StatusOK, user)
}
