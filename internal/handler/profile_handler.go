package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"jobmatch-service/internal/account"
	"jobmatch-service/internal/model"
)

func (h *Handler) GetProfile(c echo.Context) error {
	user, err := h.Accounts.Get(c.Request().Context(), session(c))
	if err != nil {
		return respondError(c, "Profile not loaded", err)
	}
	return c.JSON(http.StatusOK, user)
}

func (h *Handler) UpdateProfile(c echo.Context) error {
	var req account.ProfileUpdate
	if err := c.Bind(&req); err != nil {
		return badRequest(c, err)
	}
	user, err := h.Accounts.UpdateProfile(c.Request().Context(), session(c), req)
	if err != nil {
		return respondError(c, "Profile not updated", err)
	}
	return c.JSON(http.StatusOK, user)
}

func (h *Handler) SetLocation(c echo.Context) error {
	var req struct {
		model.Location
		Radius float64 `json:"radius"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, err)
	}
	user, err := h.Accounts.SetLocation(c.Request().Context(), session(c), req.Location, req.Radius)
	if err != nil {
		return respondError(c, "Location not updated", err)
	}
	return c.JSON(http.StatusOK, user)
}

func (h *Handler) AddSkill(c echo.Context) error {
	var req struct {
		Skill string `json:"skill"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, err)
	}
	user, err := h.Accounts.AddSkill(c.Request().Context(), session(c), req.Skill)
	if err != nil {
		return respondError(c, "Skill not added", err)
	}
	return c.JSON(http.StatusOK, user)
}

func (h *Handler) RemoveSkill(c echo.Context) error {
	user, err := h.Accounts.RemoveSkill(c.Request().Context(), session(c), c.Param("skill"))
	if err != nil {
		return respondError(c, "Skill not removed", err)
	}
	return c.JSON(http.StatusOK, user)
}

// SetAvailability accepts either dated entries or the weekly day-keyed shape.
func (h *Handler) SetAvailability(c echo.Context) error {
	var req struct {
		Availability model.Availability      `json:"availability"`
		Weekly       map[string][]model.Slot `json:"weekly"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, err)
	}

	ctx := c.Request().Context()
	var (
		user *model.User
		err  error
	)
	if req.Weekly != nil {
		user, err = h.Accounts.SetWeeklyAvailability(ctx, session(c), req.Weekly)
	} else {
		user, err = h.Accounts.SetAvailability(ctx, session(c), req.Availability)
	}
	if err != nil {
		return respondError(c, "Availability not updated", err)
	}
	return c.JSON(http.StatusOK, user)
}

func (h *Handler) AddPortfolioItem(c echo.Context) error {
	var req model.PortfolioItem
	if err := c.Bind(&req); err != nil {
		return badRequest(c, err)
	}
	user, err := h.Accounts.AddPortfolioItem(c.Request().Context(), session(c), req)
	if err != nil {
		return respondError(c, "Portfolio item not added", err)
	}
	return c.JSON(http.StatusCreated, user)
}

func (h *Handler) RemovePortfolioItem(c echo.Context) error {
	user, err := h.Accounts.RemovePortfolioItem(c.Request().Context(), session(c), c.Param("id"))
	if err != nil {
		return respondError(c, "Portfolio item not removed", err)
	}
	return c.JSON(http.StatusOK, user)
}

func (h *Handler) ChangeSubscription(c echo.Context) error {
	var req struct {
		Subscription model.Subscription `json:"subscription"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, err)
	}
	user, err := h.Accounts.ChangeSubscription(c.Request().Context(), session(c), req.Subscription)
	if err != nil {
		return respondError(c, "Subscription not changed", err)
	}
	return c.JSON(http.StatusOK, user)
}
