package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"jobmatch-service/internal/engagement"
	"jobmatch-service/internal/model"
)

// contractView adds the derived pay figures to a contract.
type contractView struct {
	model.Contract
	HoursWorked float64 `json:"hoursWorked"`
	TotalPay    float64 `json:"totalPay"`
}

func viewContract(c model.Contract) contractView {
	return contractView{
		Contract:    c,
		HoursWorked: engagement.HoursWorked(c),
		TotalPay:    engagement.TotalPay(c),
	}
}

func (h *Handler) Apply(c echo.Context) error {
	app, err := h.Ledger.Apply(c.Request().Context(), session(c), c.Param("id"))
	if err != nil {
		return respondError(c, "Application not filed", err)
	}
	return c.JSON(http.StatusCreated, app)
}

func (h *Handler) PlaceBid(c echo.Context) error {
	var req struct {
		Amount  float64 `json:"amount"`
		Message string  `json:"message"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, err)
	}
	bid, err := h.Ledger.PlaceBid(c.Request().Context(), session(c), c.Param("id"), req.Amount, req.Message)
	if err != nil {
		return respondError(c, "Bid not placed", err)
	}
	return c.JSON(http.StatusCreated, bid)
}

func (h *Handler) ListApplications(c echo.Context) error {
	apps, err := h.Ledger.ListApplications(c.Request().Context(), session(c))
	if err != nil {
		return respondError(c, "Applications not listed", err)
	}
	return c.JSON(http.StatusOK, apps)
}

func (h *Handler) AcceptApplication(c echo.Context) error {
	contract, err := h.Ledger.AcceptApplication(c.Request().Context(), session(c), c.Param("id"))
	if err != nil {
		return respondError(c, "Application not accepted", err)
	}
	return c.JSON(http.StatusCreated, viewContract(*contract))
}

func (h *Handler) RejectApplication(c echo.Context) error {
	app, err := h.Ledger.RejectApplication(c.Request().Context(), session(c), c.Param("id"))
	if err != nil {
		return respondError(c, "Application not rejected", err)
	}
	return c.JSON(http.StatusOK, app)
}

func (h *Handler) ListBids(c echo.Context) error {
	bids, err := h.Ledger.ListBids(c.Request().Context(), session(c))
	if err != nil {
		return respondError(c, "Bids not listed", err)
	}
	return c.JSON(http.StatusOK, bids)
}

func (h *Handler) AcceptBid(c echo.Context) error {
	contract, err := h.Ledger.AcceptBid(c.Request().Context(), session(c), c.Param("id"))
	if err != nil {
		return respondError(c, "Bid not accepted", err)
	}
	return c.JSON(http.StatusCreated, viewContract(*contract))
}

func (h *Handler) RejectBid(c echo.Context) error {
	bid, err := h.Ledger.RejectBid(c.Request().Context(), session(c), c.Param("id"))
	if err != nil {
		return respondError(c, "Bid not rejected", err)
	}
	return c.JSON(http.StatusOK, bid)
}

func (h *Handler) ListContracts(c echo.Context) error {
	contracts, err := h.Ledger.ListContracts(c.Request().Context(), session(c))
	if err != nil {
		return respondError(c, "Contracts not listed", err)
	}
	views := make([]contractView, len(contracts))
	for i, ct := range contracts {
		views[i] = viewContract(ct)
	}
	return c.JSON(http.StatusOK, views)
}

func (h *Handler) ClockIn(c echo.Context) error {
	contract, err := h.Ledger.ClockIn(c.Request().Context(), session(c), c.Param("id"))
	if err != nil {
		return respondError(c, "Clock-in refused", err)
	}
	return c.JSON(http.StatusOK, viewContract(*contract))
}

func (h *Handler) ClockOut(c echo.Context) error {
	contract, err := h.Ledger.ClockOut(c.Request().Context(), session(c), c.Param("id"))
	if err != nil {
		return respondError(c, "Clock-out refused", err)
	}
	return c.JSON(http.StatusOK, viewContract(*contract))
}

// ContractDocument serves the agreement as a downloadable text file.
func (h *Handler) ContractDocument(c echo.Context) error {
	id := c.Param("id")
	doc, err := h.Ledger.ContractDocument(c.Request().Context(), session(c), id)
	if err != nil {
		return respondError(c, "Contract document not rendered", err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="contract-`+id+`.txt"`)
	return c.String(http.StatusOK, doc)
}

func (h *Handler) SubmitReview(c echo.Context) error {
	var req struct {
		Rating int    `json:"rating"`
		Text   string `json:"text"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, err)
	}
	review, err := h.Ratings.SubmitReview(c.Request().Context(), session(c), c.Param("id"), req.Rating, req.Text)
	if err != nil {
		return respondError(c, "Review not recorded", err)
	}
	return c.JSON(http.StatusCreated, review)
}

func (h *Handler) ListNotifications(c echo.Context) error {
	unread := c.QueryParam("unread") == "true"
	notes, err := h.Notifications.List(c.Request().Context(), session(c), unread)
	if err != nil {
		return respondError(c, "Notifications not listed", err)
	}
	return c.JSON(http.StatusOK, notes)
}

func (h *Handler) MarkNotificationRead(c echo.Context) error {
	n, err := h.Notifications.MarkRead(c.Request().Context(), session(c), c.Param("id"))
	if err != nil {
		return respondError(c, "Notification not updated", err)
	}
	return c.JSON(http.StatusOK, n)
}
