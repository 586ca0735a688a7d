package engagement

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap/zaptest"

	"jobmatch-service/internal/model"
	"jobmatch-service/internal/notify"
	"jobmatch-service/internal/store"
	"jobmatch-service/pkg/clock"
	"jobmatch-service/prometheus"
)

type fixture struct {
	ctx      context.Context
	store    *store.Memory
	clock    *clock.Fake
	metrics  *prometheus.Metrics
	ledger   *Ledger
	seeker   model.Session
	employer model.Session
	rival    model.Session
	job      *model.Job
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx:      context.Background(),
		store:    store.NewMemory(),
		clock:    clock.NewFake(time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)),
		metrics:  prometheus.NewMetrics("test", promclient.NewRegistry()),
		seeker:   model.Session{UserID: "seeker-1", Type: model.UserTypeSeeker},
		employer: model.Session{UserID: "employer-1", Type: model.UserTypeEmployer},
		rival:    model.Session{UserID: "employer-2", Type: model.UserTypeEmployer},
	}
	log := zaptest.NewLogger(t)
	sink := notify.NewSink(f.store, notify.NopPublisher{}, f.clock, log, f.metrics)
	f.ledger = NewLedger(f.store, sink, f.clock, log, f.metrics)

	f.job = &model.Job{
		ID:         "job-1",
		EmployerID: f.employer.UserID,
		Title:      "Barista",
		Company:    "Coffee House",
		Type:       model.JobTypePartTime,
		Salary:     12,
		Location:   "Kuala Lumpur",
		Schedule: model.Schedule{
			Kind: model.ScheduleRecurring,
			Days: []model.ScheduleDay{{Weekday: "saturday", Slots: []model.Slot{{Start: "08:00", End: "16:00"}}}},
		},
	}
	err := f.store.Atomic(f.ctx, func(tx store.Tx) error {
		for _, u := range []*model.User{
			{ID: f.seeker.UserID, Type: model.UserTypeSeeker, Name: "Sam", Email: "sam@example.com",
				Availability: model.Availability{{Date: "2025-01-11"}, {Date: "2025-01-13"}}},
			{ID: f.employer.UserID, Type: model.UserTypeEmployer, Name: "Coffee House", Email: "boss@example.com"},
			{ID: f.rival.UserID, Type: model.UserTypeEmployer, Name: "Rival", Email: "rival@example.com"},
		} {
			if err := tx.CreateUser(f.ctx, u); err != nil {
				return err
			}
		}
		return tx.CreateJob(f.ctx, f.job)
	})
	if err != nil {
		t.Fatalf("seed fixture: %v", err)
	}
	return f
}

func (f *fixture) notifications(t *testing.T, userID string) []model.Notification {
	t.Helper()
	notes, err := f.store.ListNotifications(f.ctx, store.NotificationFilter{UserID: userID})
	if err != nil {
		t.Fatal(err)
	}
	return notes
}

func TestApply(t *testing.T) {
	f := newFixture(t)

	app, err := f.ledger.Apply(f.ctx, f.seeker, f.job.ID)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if app.Status != model.StatusPending || app.SeekerID != f.seeker.UserID {
		t.Fatalf("Apply() = %+v", app)
	}

	notes := f.notifications(t, f.employer.UserID)
	if len(notes) != 1 || notes[0].Message != "Sam applied for Barista" || notes[0].Type != model.NotificationInfo {
		t.Fatalf("employer notifications = %+v", notes)
	}

	_, err = f.ledger.Apply(f.ctx, f.seeker, f.job.ID)
	if !errors.Is(err, model.ErrDuplicateApplication) {
		t.Fatalf("second Apply() error = %v, want ErrDuplicateApplication", err)
	}
	if got := len(f.notifications(t, f.employer.UserID)); got != 1 {
		t.Fatalf("duplicate apply raised a notification: %d total", got)
	}

	if got := testutil.ToFloat64(f.metrics.EngagementCounter.WithLabelValues("apply", prometheus.OutcomeRejected)); got != 1 {
		t.Fatalf("rejected apply count = %v, want 1", got)
	}
}

func TestApplyRequiresSeeker(t *testing.T) {
	f := newFixture(t)
	if _, err := f.ledger.Apply(f.ctx, f.employer, f.job.ID); !errors.Is(err, model.ErrForbidden) {
		t.Fatalf("Apply() by employer error = %v, want ErrForbidden", err)
	}
	if _, err := f.ledger.Apply(f.ctx, f.seeker, "missing"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("Apply() to missing job error = %v, want ErrNotFound", err)
	}
}

func TestAcceptApplication(t *testing.T) {
	f := newFixture(t)
	app, err := f.ledger.Apply(f.ctx, f.seeker, f.job.ID)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := f.ledger.AcceptApplication(f.ctx, f.rival, app.ID); !errors.Is(err, model.ErrForbidden) {
		t.Fatalf("AcceptApplication() by rival error = %v, want ErrForbidden", err)
	}

	contract, err := f.ledger.AcceptApplication(f.ctx, f.employer, app.ID)
	if err != nil {
		t.Fatalf("AcceptApplication() error = %v", err)
	}
	if contract.Status != model.ContractActive || contract.Rate != 12 || contract.Source != model.SourceApplication {
		t.Fatalf("contract = %+v", contract)
	}
	if contract.EmployerID != f.employer.UserID || contract.SeekerID != f.seeker.UserID {
		t.Fatalf("contract parties = %+v", contract)
	}

	stored, _ := f.store.GetApplication(f.ctx, app.ID)
	if stored.Status != model.StatusAccepted {
		t.Fatalf("application status = %s", stored.Status)
	}

	notes := f.notifications(t, f.seeker.UserID)
	if len(notes) != 1 || notes[0].Message != "Your application for Barista has been accepted!" || notes[0].Type != model.NotificationSuccess {
		t.Fatalf("seeker notifications = %+v", notes)
	}

	// 2025-01-11 is a Saturday, which the job works; the Monday stays free.
	seeker, _ := f.store.GetUser(f.ctx, f.seeker.UserID)
	if !seeker.Availability[0].Booked || seeker.Availability[1].Booked {
		t.Fatalf("roster after accept = %+v", seeker.Availability)
	}

	if _, err := f.ledger.AcceptApplication(f.ctx, f.employer, app.ID); !errors.Is(err, model.ErrInvalidState) {
		t.Fatalf("second AcceptApplication() error = %v, want ErrInvalidState", err)
	}
	if _, err := f.ledger.RejectApplication(f.ctx, f.employer, app.ID); !errors.Is(err, model.ErrInvalidState) {
		t.Fatalf("RejectApplication() after accept error = %v, want ErrInvalidState", err)
	}
}

func TestContractRateIsSnapshot(t *testing.T) {
	f := newFixture(t)
	app, _ := f.ledger.Apply(f.ctx, f.seeker, f.job.ID)
	contract, err := f.ledger.AcceptApplication(f.ctx, f.employer, app.ID)
	if err != nil {
		t.Fatal(err)
	}

	// Remove the posting and re-post it at a new salary under the same id.
	err = f.store.Atomic(f.ctx, func(tx store.Tx) error {
		if err := tx.DeleteJob(f.ctx, f.job.ID); err != nil {
			return err
		}
		repost := f.job.Clone()
		repost.Salary = 99
		return tx.CreateJob(f.ctx, &repost)
	})
	if err != nil {
		t.Fatal(err)
	}

	stored, _ := f.store.GetContract(f.ctx, contract.ID)
	if stored.Rate != 12 {
		t.Fatalf("contract rate = %v, want 12", stored.Rate)
	}
}

func TestRejectApplication(t *testing.T) {
	f := newFixture(t)
	app, _ := f.ledger.Apply(f.ctx, f.seeker, f.job.ID)

	got, err := f.ledger.RejectApplication(f.ctx, f.employer, app.ID)
	if err != nil {
		t.Fatalf("RejectApplication() error = %v", err)
	}
	if got.Status != model.StatusRejected {
		t.Fatalf("status = %s", got.Status)
	}
	notes := f.notifications(t, f.seeker.UserID)
	if len(notes) != 1 || notes[0].Message != "Your application for Barista was not accepted this time." {
		t.Fatalf("seeker notifications = %+v", notes)
	}
	contracts, _ := f.ledger.ListContracts(f.ctx, f.seeker)
	if len(contracts) != 0 {
		t.Fatalf("rejection created contracts: %+v", contracts)
	}
}

func TestPlaceBidRejectsInvalidAmounts(t *testing.T) {
	f := newFixture(t)
	for _, amount := range []float64{0, -5, math.NaN(), math.Inf(1), math.Inf(-1)} {
		if _, err := f.ledger.PlaceBid(f.ctx, f.seeker, f.job.ID, amount, ""); !errors.Is(err, model.ErrInvalidAmount) {
			t.Errorf("PlaceBid(%v) error = %v, want ErrInvalidAmount", amount, err)
		}
	}
	bids, err := f.ledger.ListBids(f.ctx, f.seeker)
	if err != nil {
		t.Fatal(err)
	}
	if len(bids) != 0 {
		t.Fatalf("invalid amounts stored bids: %+v", bids)
	}
}

func TestBidLifecycleAndPay(t *testing.T) {
	f := newFixture(t)

	if _, err := f.ledger.PlaceBid(f.ctx, f.seeker, f.job.ID, 0, "cheap"); !errors.Is(err, model.ErrInvalidAmount) {
		t.Fatalf("PlaceBid(0) error = %v, want ErrInvalidAmount", err)
	}

	bid, err := f.ledger.PlaceBid(f.ctx, f.seeker, f.job.ID, 15, "I have 3 years experience")
	if err != nil {
		t.Fatalf("PlaceBid() error = %v", err)
	}
	notes := f.notifications(t, f.employer.UserID)
	if len(notes) != 1 || notes[0].Message != "Sam placed a bid on Barista" {
		t.Fatalf("employer notifications = %+v", notes)
	}

	contract, err := f.ledger.AcceptBid(f.ctx, f.employer, bid.ID)
	if err != nil {
		t.Fatalf("AcceptBid() error = %v", err)
	}
	if contract.Rate != 15 || contract.Source != model.SourceBid || contract.SourceID != bid.ID {
		t.Fatalf("contract = %+v", contract)
	}

	if _, err := f.ledger.ClockOut(f.ctx, f.seeker, contract.ID); !errors.Is(err, model.ErrInvalidState) {
		t.Fatalf("ClockOut() before ClockIn error = %v, want ErrInvalidState", err)
	}

	if _, err := f.ledger.ClockIn(f.ctx, f.seeker, contract.ID); err != nil {
		t.Fatalf("ClockIn() error = %v", err)
	}
	if _, err := f.ledger.ClockIn(f.ctx, f.seeker, contract.ID); !errors.Is(err, model.ErrInvalidState) {
		t.Fatalf("second ClockIn() error = %v, want ErrInvalidState", err)
	}

	f.clock.Advance(8 * time.Hour)
	done, err := f.ledger.ClockOut(f.ctx, f.seeker, contract.ID)
	if err != nil {
		t.Fatalf("ClockOut() error = %v", err)
	}
	if done.Status != model.ContractCompleted {
		t.Fatalf("status = %s", done.Status)
	}
	if got := HoursWorked(*done); got != 8 {
		t.Fatalf("HoursWorked() = %v, want 8", got)
	}
	if got := TotalPay(*done); got != 120 {
		t.Fatalf("TotalPay() = %v, want 120", got)
	}

	employerNotes := f.notifications(t, f.employer.UserID)
	last := employerNotes[len(employerNotes)-1]
	if last.Message != "Sam clocked out of Barista after 8.00 hours" {
		t.Fatalf("clock-out notification = %q", last.Message)
	}

	if _, err := f.ledger.ClockOut(f.ctx, f.seeker, contract.ID); !errors.Is(err, model.ErrInvalidState) {
		t.Fatalf("second ClockOut() error = %v, want ErrInvalidState", err)
	}
}

func TestRejectBid(t *testing.T) {
	f := newFixture(t)
	bid, _ := f.ledger.PlaceBid(f.ctx, f.seeker, f.job.ID, 10, "")
	got, err := f.ledger.RejectBid(f.ctx, f.employer, bid.ID)
	if err != nil || got.Status != model.StatusRejected {
		t.Fatalf("RejectBid() = %+v, %v", got, err)
	}
	if _, err := f.ledger.AcceptBid(f.ctx, f.employer, bid.ID); !errors.Is(err, model.ErrInvalidState) {
		t.Fatalf("AcceptBid() after reject error = %v, want ErrInvalidState", err)
	}
	notes := f.notifications(t, f.seeker.UserID)
	if len(notes) != 1 || notes[0].Message != "Your bid for Barista was not accepted." {
		t.Fatalf("seeker notifications = %+v", notes)
	}
}

func TestClockInMissingContract(t *testing.T) {
	f := newFixture(t)
	if _, err := f.ledger.ClockIn(f.ctx, f.seeker, "nope"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("ClockIn() error = %v, want ErrNotFound", err)
	}
}

func TestClockInOtherSeeker(t *testing.T) {
	f := newFixture(t)
	app, _ := f.ledger.Apply(f.ctx, f.seeker, f.job.ID)
	contract, _ := f.ledger.AcceptApplication(f.ctx, f.employer, app.ID)

	other := model.Session{UserID: "seeker-2", Type: model.UserTypeSeeker}
	if _, err := f.ledger.ClockIn(f.ctx, other, contract.ID); !errors.Is(err, model.ErrForbidden) {
		t.Fatalf("ClockIn() by other seeker error = %v, want ErrForbidden", err)
	}
}

func TestHoursWorkedRounding(t *testing.T) {
	in := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	out := in.Add(2*time.Hour + 20*time.Minute)
	c := model.Contract{ClockIn: &in, ClockOut: &out, Rate: 12.5}

	if got := HoursWorked(c); got != 2.33 {
		t.Fatalf("HoursWorked() = %v, want 2.33", got)
	}
	if got := TotalPay(c); got != 29.13 {
		t.Fatalf("TotalPay() = %v, want 29.13", got)
	}
	if got := HoursWorked(model.Contract{ClockIn: &in}); got != 0 {
		t.Fatalf("HoursWorked() without clock-out = %v, want 0", got)
	}
	if got := TotalPay(model.Contract{Rate: 10}); got != 0 {
		t.Fatalf("TotalPay() without hours = %v, want 0", got)
	}
}

func TestListings(t *testing.T) {
	f := newFixture(t)
	err := f.store.Atomic(f.ctx, func(tx store.Tx) error {
		return tx.CreateJob(f.ctx, &model.Job{ID: "job-2", EmployerID: f.rival.UserID, Title: "Driver"})
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.ledger.Apply(f.ctx, f.seeker, f.job.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.ledger.Apply(f.ctx, f.seeker, "job-2"); err != nil {
		t.Fatal(err)
	}

	mine, _ := f.ledger.ListApplications(f.ctx, f.seeker)
	if len(mine) != 2 {
		t.Fatalf("seeker sees %d applications, want 2", len(mine))
	}
	onMyJobs, _ := f.ledger.ListApplications(f.ctx, f.employer)
	if len(onMyJobs) != 1 || onMyJobs[0].JobID != f.job.ID {
		t.Fatalf("employer sees %+v", onMyJobs)
	}

	nobody := model.Session{UserID: "employer-3", Type: model.UserTypeEmployer}
	none, err := f.ledger.ListBids(f.ctx, nobody)
	if err != nil || len(none) != 0 {
		t.Fatalf("employer without jobs sees %+v, %v", none, err)
	}
}

func TestContractDocument(t *testing.T) {
	f := newFixture(t)
	bid, _ := f.ledger.PlaceBid(f.ctx, f.seeker, f.job.ID, 15, "")
	contract, _ := f.ledger.AcceptBid(f.ctx, f.employer, bid.ID)
	_, _ = f.ledger.ClockIn(f.ctx, f.seeker, contract.ID)
	f.clock.Advance(4 * time.Hour)
	_, _ = f.ledger.ClockOut(f.ctx, f.seeker, contract.ID)

	doc, err := f.ledger.ContractDocument(f.ctx, f.employer, contract.ID)
	if err != nil {
		t.Fatalf("ContractDocument() error = %v", err)
	}
	for _, want := range []string{
		"JOB CONTRACT AGREEMENT",
		"Contract ID: " + contract.ID,
		"Position: Barista",
		"Company: Coffee House",
		"Rate/hour: 15.00",
		"Hours Worked: 4.00",
		"Total Payment: 60.00",
		"This contract is generated by JobMatch platform.",
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("document missing %q:\n%s", want, doc)
		}
	}

	if _, err := f.ledger.ContractDocument(f.ctx, f.rival, contract.ID); !errors.Is(err, model.ErrForbidden) {
		t.Fatalf("ContractDocument() by outsider error = %v, want ErrForbidden", err)
	}
}
