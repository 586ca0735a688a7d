package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	promclient "github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap/zaptest"

	"jobmatch-service/internal/account"
	"jobmatch-service/internal/engagement"
	"jobmatch-service/internal/jobs"
	"jobmatch-service/internal/match"
	"jobmatch-service/internal/model"
	"jobmatch-service/internal/notify"
	"jobmatch-service/internal/rating"
	"jobmatch-service/internal/store"
	"jobmatch-service/pkg/clock"
	"jobmatch-service/pkg/config"
	"jobmatch-service/pkg/jwtutil"
	"jobmatch-service/prometheus"
)

type server struct {
	t     *testing.T
	e     *echo.Echo
	clock *clock.Fake
}

func newServer(t *testing.T) *server {
	t.Helper()
	st := store.NewMemory()
	clk := clock.NewFake(time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC))
	metrics := prometheus.NewMetrics("test", promclient.NewRegistry())
	log := zaptest.NewLogger(t)
	sink := notify.NewSink(st, nil, clk, log, metrics)

	h := &Handler{
		ServiceName:   "jobmatch-service",
		Accounts:      account.NewService(st, clk, log, metrics, 10),
		Jobs:          jobs.NewService(st, match.NewEngine(log, metrics), jobs.Quotas{model.SubscriptionFree: 3}, clk, log),
		Ledger:        engagement.NewLedger(st, sink, clk, log, metrics),
		Ratings:       rating.NewAggregator(st, sink, clk, log, metrics),
		Notifications: sink,
		JWT:           jwtutil.NewJWTUtil(&config.JWTConfig{SigningKey: "test-key", ExpirationHours: 1}),
	}
	e := echo.New()
	h.Register(e)
	return &server{t: t, e: e, clock: clk}
}

func (s *server) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			s.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, want, rec.Body.String())
	}
}

type authResponse struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

func (s *server) register(name, email string, typ model.UserType) authResponse {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/auth/register", "", account.RegisterInput{
		Name: name, Email: email, Password: "secret123", Type: typ,
	})
	expectStatus(s.t, rec, http.StatusCreated)
	return decode[authResponse](s.t, rec)
}

var mondayShift = model.Schedule{
	Kind: model.ScheduleRecurring,
	Days: []model.ScheduleDay{{Weekday: "monday", Slots: []model.Slot{{Start: "09:00", End: "17:00"}}}},
}

func TestHealthCheck(t *testing.T) {
	s := newServer(t)
	rec := s.do(http.MethodGet, "/health", "", nil)
	expectStatus(t, rec, http.StatusOK)
	body := decode[map[string]string](t, rec)
	if body["status"] != "healthy" || body["service"] != "jobmatch-service" {
		t.Errorf("unexpected health body %v", body)
	}
}

func TestAuthFlow(t *testing.T) {
	s := newServer(t)
	reg := s.register("Sam", "sam@example.com", model.UserTypeSeeker)
	if reg.Token == "" || reg.User.ID == "" {
		t.Fatalf("register returned %+v", reg)
	}

	rec := s.do(http.MethodPost, "/api/auth/register", "", account.RegisterInput{
		Name: "Sam", Email: "SAM@example.com", Password: "secret123", Type: model.UserTypeSeeker,
	})
	expectStatus(t, rec, http.StatusConflict)

	rec = s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "sam@example.com", "password": "wrong"})
	expectStatus(t, rec, http.StatusUnauthorized)

	rec = s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "sam@example.com", "password": "secret123"})
	expectStatus(t, rec, http.StatusOK)
	login := decode[authResponse](t, rec)

	rec = s.do(http.MethodGet, "/api/me", login.Token, nil)
	expectStatus(t, rec, http.StatusOK)
	if me := decode[model.User](t, rec); me.Email != "sam@example.com" {
		t.Errorf("profile email = %q", me.Email)
	}
	if strings.Contains(rec.Body.String(), "secret123") || strings.Contains(rec.Body.String(), "password") {
		t.Errorf("profile leaks credentials: %s", rec.Body.String())
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newServer(t)
	expectStatus(t, s.do(http.MethodGet, "/api/me", "", nil), http.StatusUnauthorized)
	expectStatus(t, s.do(http.MethodGet, "/api/jobs/search", "garbage", nil), http.StatusUnauthorized)
}

func TestRegisterRejectsBadInput(t *testing.T) {
	s := newServer(t)
	rec := s.do(http.MethodPost, "/api/auth/register", "", account.RegisterInput{
		Name: "X", Email: "not-an-email", Password: "secret123", Type: model.UserTypeSeeker,
	})
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestProfileEndpoints(t *testing.T) {
	s := newServer(t)
	seeker := s.register("Sam", "sam@example.com", model.UserTypeSeeker)

	rec := s.do(http.MethodPost, "/api/me/skills", seeker.Token, map[string]string{"skill": " Coffee "})
	expectStatus(t, rec, http.StatusOK)
	if u := decode[model.User](t, rec); len(u.Skills) != 1 || u.Skills[0] != "coffee" {
		t.Errorf("skills = %v", u.Skills)
	}

	rec = s.do(http.MethodPut, "/api/me/availability", seeker.Token, map[string]interface{}{
		"weekly": map[string][]model.Slot{"monday": {{Start: "09:00", End: "12:00"}}},
	})
	expectStatus(t, rec, http.StatusOK)
	if u := decode[model.User](t, rec); len(u.Availability) == 0 {
		t.Error("weekly availability produced no dated entries")
	}

	rec = s.do(http.MethodPut, "/api/me/subscription", seeker.Token, map[string]string{"subscription": "platinum"})
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestMarketplaceFlow(t *testing.T) {
	s := newServer(t)
	employer := s.register("Coffee House", "boss@example.com", model.UserTypeEmployer)
	seeker := s.register("Sam", "sam@example.com", model.UserTypeSeeker)

	post := jobs.PostInput{
		Title: "Barista", Type: model.JobTypePartTime, Salary: 12,
		Skills: []string{"coffee"}, Schedule: mondayShift,
	}
	expectStatus(t, s.do(http.MethodPost, "/api/jobs", seeker.Token, post), http.StatusForbidden)

	rec := s.do(http.MethodPost, "/api/jobs", employer.Token, post)
	expectStatus(t, rec, http.StatusCreated)
	job := decode[model.Job](t, rec)

	rec = s.do(http.MethodGet, "/api/jobs/search?q=barista&type=part-time", seeker.Token, nil)
	expectStatus(t, rec, http.StatusOK)
	res := decode[match.Result](t, rec)
	if len(res.Hits) != 1 || res.Hits[0].Job.ID != job.ID {
		t.Fatalf("search hits = %+v", res.Hits)
	}
	expectStatus(t, s.do(http.MethodGet, "/api/jobs/search?radius=abc", seeker.Token, nil), http.StatusBadRequest)

	rec = s.do(http.MethodPost, "/api/jobs/"+job.ID+"/apply", seeker.Token, nil)
	expectStatus(t, rec, http.StatusCreated)
	app := decode[model.Application](t, rec)
	expectStatus(t, s.do(http.MethodPost, "/api/jobs/"+job.ID+"/apply", seeker.Token, nil), http.StatusConflict)

	rec = s.do(http.MethodGet, "/api/applications", employer.Token, nil)
	expectStatus(t, rec, http.StatusOK)
	if apps := decode[[]model.Application](t, rec); len(apps) != 1 {
		t.Fatalf("employer sees %d applications", len(apps))
	}

	expectStatus(t, s.do(http.MethodPost, "/api/applications/"+app.ID+"/accept", seeker.Token, nil), http.StatusForbidden)
	rec = s.do(http.MethodPost, "/api/applications/"+app.ID+"/accept", employer.Token, nil)
	expectStatus(t, rec, http.StatusCreated)
	contract := decode[contractView](t, rec)
	if contract.Status != model.ContractActive || contract.Rate != 12 {
		t.Fatalf("contract = %+v", contract.Contract)
	}
	expectStatus(t, s.do(http.MethodPost, "/api/applications/"+app.ID+"/accept", employer.Token, nil), http.StatusConflict)

	expectStatus(t, s.do(http.MethodPost, "/api/contracts/"+contract.ID+"/clock-in", seeker.Token, nil), http.StatusOK)
	s.clock.Advance(2*time.Hour + 30*time.Minute)
	rec = s.do(http.MethodPost, "/api/contracts/"+contract.ID+"/clock-out", seeker.Token, nil)
	expectStatus(t, rec, http.StatusOK)
	done := decode[contractView](t, rec)
	if done.HoursWorked != 2.5 || done.TotalPay != 30 {
		t.Errorf("hours = %v pay = %v, want 2.5 and 30", done.HoursWorked, done.TotalPay)
	}

	rec = s.do(http.MethodGet, "/api/contracts/"+contract.ID+"/document", seeker.Token, nil)
	expectStatus(t, rec, http.StatusOK)
	if !strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMETextPlain) {
		t.Errorf("document content type = %q", rec.Header().Get(echo.HeaderContentType))
	}
	if !strings.Contains(rec.Body.String(), "Barista") {
		t.Errorf("document does not name the job:\n%s", rec.Body.String())
	}

	review := map[string]interface{}{"rating": 6, "text": "great"}
	expectStatus(t, s.do(http.MethodPost, "/api/contracts/"+contract.ID+"/review", employer.Token, review), http.StatusUnprocessableEntity)
	review["rating"] = 5
	expectStatus(t, s.do(http.MethodPost, "/api/contracts/"+contract.ID+"/review", employer.Token, review), http.StatusCreated)
	expectStatus(t, s.do(http.MethodPost, "/api/contracts/"+contract.ID+"/review", employer.Token, review), http.StatusConflict)

	rec = s.do(http.MethodGet, "/api/me", seeker.Token, nil)
	if me := decode[model.User](t, rec); me.Rating != 5 || me.ReviewCount != 1 {
		t.Errorf("seeker rating = %v over %d reviews", me.Rating, me.ReviewCount)
	}

	rec = s.do(http.MethodGet, "/api/notifications?unread=true", seeker.Token, nil)
	expectStatus(t, rec, http.StatusOK)
	notes := decode[[]model.Notification](t, rec)
	if len(notes) == 0 {
		t.Fatal("seeker has no notifications")
	}
	expectStatus(t, s.do(http.MethodPost, "/api/notifications/"+notes[0].ID+"/read", seeker.Token, nil), http.StatusOK)
	expectStatus(t, s.do(http.MethodPost, "/api/notifications/"+notes[0].ID+"/read", employer.Token, nil), http.StatusForbidden)
}

func TestBidFlow(t *testing.T) {
	s := newServer(t)
	employer := s.register("Coffee House", "boss@example.com", model.UserTypeEmployer)
	seeker := s.register("Sam", "sam@example.com", model.UserTypeSeeker)

	rec := s.do(http.MethodPost, "/api/jobs", employer.Token, jobs.PostInput{
		Title: "Barista", Type: model.JobTypePartTime, Salary: 12, Schedule: mondayShift,
	})
	expectStatus(t, rec, http.StatusCreated)
	job := decode[model.Job](t, rec)

	expectStatus(t, s.do(http.MethodPost, "/api/jobs/"+job.ID+"/bids", seeker.Token, map[string]interface{}{"amount": 0}), http.StatusUnprocessableEntity)
	rec = s.do(http.MethodPost, "/api/jobs/"+job.ID+"/bids", seeker.Token, map[string]interface{}{"amount": 15, "message": "experienced"})
	expectStatus(t, rec, http.StatusCreated)
	bid := decode[model.Bid](t, rec)

	rec = s.do(http.MethodPost, "/api/bids/"+bid.ID+"/accept", employer.Token, nil)
	expectStatus(t, rec, http.StatusCreated)
	if c := decode[contractView](t, rec); c.Rate != 15 || c.Source != model.SourceBid {
		t.Errorf("bid contract = %+v", c.Contract)
	}

	rec = s.do(http.MethodGet, "/api/contracts", seeker.Token, nil)
	expectStatus(t, rec, http.StatusOK)
	if list := decode[[]contractView](t, rec); len(list) != 1 {
		t.Errorf("seeker has %d contracts", len(list))
	}
}

func TestPostingQuota(t *testing.T) {
	s := newServer(t)
	employer := s.register("Coffee House", "boss@example.com", model.UserTypeEmployer)
	post := jobs.PostInput{Title: "Barista", Type: model.JobTypePartTime, Salary: 12, Schedule: mondayShift}
	for i := 0; i < 3; i++ {
		expectStatus(t, s.do(http.MethodPost, "/api/jobs", employer.Token, post), http.StatusCreated)
	}
	expectStatus(t, s.do(http.MethodPost, "/api/jobs", employer.Token, post), http.StatusForbidden)

	rec := s.do(http.MethodGet, "/api/employer/jobs", employer.Token, nil)
	expectStatus(t, rec, http.StatusOK)
	list := decode[[]model.Job](t, rec)
	if len(list) != 3 {
		t.Fatalf("employer lists %d jobs", len(list))
	}

	expectStatus(t, s.do(http.MethodDelete, "/api/jobs/"+list[0].ID, employer.Token, nil), http.StatusNoContent)
	expectStatus(t, s.do(http.MethodGet, "/api/jobs/"+list[0].ID, employer.Token, nil), http.StatusNotFound)
	expectStatus(t, s.do(http.MethodPost, "/api/jobs", employer.Token, post), http.StatusCreated)
}
