package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"jobmatch-service/internal/jobs"
	"jobmatch-service/internal/match"
	"jobmatch-service/internal/model"
	"jobmatch-service/pkg/logger"
)

// SearchJobs runs the matcher for the calling seeker.
func (h *Handler) SearchJobs(c echo.Context) error {
	f := match.Filters{
		Text:       c.QueryParam("q"),
		JobType:    model.JobType(c.QueryParam("type")),
		ExactDates: c.QueryParam("exact") == "true",
	}
	if f.JobType != "" && !f.JobType.Valid() {
		return respondError(c, "Invalid job type filter", fmt.Errorf("job type %q: %w", f.JobType, model.ErrInvalidInput))
	}
	if raw := c.QueryParam("radius"); raw != "" {
		radius, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return respondError(c, "Invalid radius filter", fmt.Errorf("radius %q: %w", raw, model.ErrInvalidInput))
		}
		f.RadiusKm = radius
	}

	res, err := h.Jobs.Search(c.Request().Context(), session(c), f)
	if err != nil {
		return respondError(c, "Search failed", err)
	}
	logger.FromContext(c).Info("Jobs searched",
		zap.Int("matched", len(res.Hits)),
		zap.Int("scanned", res.Total))
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) GetJob(c echo.Context) error {
	job, err := h.Jobs.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, "Job not found", err)
	}
	return c.JSON(http.StatusOK, job)
}

func (h *Handler) PostJob(c echo.Context) error {
	var req jobs.PostInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, err)
	}
	job, err := h.Jobs.PostJob(c.Request().Context(), session(c), req)
	if err != nil {
		return respondError(c, "Job not posted", err)
	}
	return c.JSON(http.StatusCreated, job)
}

func (h *Handler) DeleteJob(c echo.Context) error {
	if err := h.Jobs.DeleteJob(c.Request().Context(), session(c), c.Param("id")); err != nil {
		return respondError(c, "Job not deleted", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListEmployerJobs(c echo.Context) error {
	list, err := h.Jobs.ListByEmployer(c.Request().Context(), session(c))
	if err != nil {
		return respondError(c, "Jobs not listed", err)
	}
	return c.JSON(http.StatusOK, list)
}
