package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"jobmatch-service/internal/account"
	"jobmatch-service/internal/engagement"
	"jobmatch-service/internal/jobs"
	mid "jobmatch-service/internal/middleware"
	"jobmatch-service/internal/model"
	"jobmatch-service/internal/notify"
	"jobmatch-service/internal/rating"
	"jobmatch-service/pkg/jwtutil"
	"jobmatch-service/pkg/logger"
)

// Handler serves the marketplace API.
type Handler struct {
	ServiceName   string
	Accounts      *account.Service
	Jobs          *jobs.Service
	Ledger        *engagement.Ledger
	Ratings       *rating.Aggregator
	Notifications *notify.Sink
	JWT           *jwtutil.JWTUtil
}

// Register mounts every route on e. /health and /metrics are mounted by the
// caller.
func (h *Handler) Register(e *echo.Echo) {
	e.GET("/health", h.HealthCheck)

	auth := e.Group("/api/auth")
	auth.POST("/register", h.RegisterUser)
	auth.POST("/login", h.Login)

	api := e.Group("/api", mid.AuthMiddleware(h.JWT))

	me := api.Group("/me")
	me.GET("", h.GetProfile)
	me.PUT("", h.UpdateProfile)
	me.PUT("/location", h.SetLocation)
	me.POST("/skills", h.AddSkill)
	me.DELETE("/skills/:skill", h.RemoveSkill)
	me.PUT("/availability", h.SetAvailability)
	me.POST("/portfolio", h.AddPortfolioItem)
	me.DELETE("/portfolio/:id", h.RemovePortfolioItem)
	me.PUT("/subscription", h.ChangeSubscription)

	api.GET("/jobs/search", h.SearchJobs)
	api.GET("/jobs/:id", h.GetJob)
	api.POST("/jobs", h.PostJob)
	api.DELETE("/jobs/:id", h.DeleteJob)
	api.GET("/employer/jobs", h.ListEmployerJobs)

	api.POST("/jobs/:id/apply", h.Apply)
	api.POST("/jobs/:id/bids", h.PlaceBid)

	api.GET("/applications", h.ListApplications)
	api.POST("/applications/:id/accept", h.AcceptApplication)
	api.POST("/applications/:id/reject", h.RejectApplication)

	api.GET("/bids", h.ListBids)
	api.POST("/bids/:id/accept", h.AcceptBid)
	api.POST("/bids/:id/reject", h.RejectBid)

	api.GET("/contracts", h.ListContracts)
	api.POST("/contracts/:id/clock-in", h.ClockIn)
	api.POST("/contracts/:id/clock-out", h.ClockOut)
	api.GET("/contracts/:id/document", h.ContractDocument)
	api.POST("/contracts/:id/review", h.SubmitReview)

	api.GET("/notifications", h.ListNotifications)
	api.POST("/notifications/:id/read", h.MarkNotificationRead)
}

// HealthCheck handles the health check endpoint
func (h *Handler) HealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"status":  "healthy",
		"service": h.ServiceName,
	})
}

func session(c echo.Context) model.Session {
	sess, _ := mid.SessionFromContext(c)
	return sess
}

// statusFor maps core errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, model.ErrForbidden), errors.Is(err, model.ErrQuotaExceeded):
		return http.StatusForbidden
	case errors.Is(err, model.ErrDuplicateApplication),
		errors.Is(err, model.ErrAlreadyReviewed),
		errors.Is(err, model.ErrEmailTaken),
		errors.Is(err, model.ErrInvalidState),
		errors.Is(err, model.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, model.ErrInvalidRating), errors.Is(err, model.ErrInvalidAmount):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the error body for err and logs it at a level that
// matches its status.
func respondError(c echo.Context, msg string, err error) error {
	log := logger.FromContext(c)
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error(msg, zap.Error(err))
		return c.JSON(status, echo.Map{"error": "internal server error"})
	}
	log.Warn(msg, zap.Int("status", status), zap.Error(err))
	return c.JSON(status, echo.Map{"error": err.Error()})
}

func badRequest(c echo.Context, err error) error {
	logger.FromContext(c).Warn("Invalid request data", zap.Error(err))
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
}
