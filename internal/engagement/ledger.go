package engagement

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"jobmatch-service/internal/model"
	"jobmatch-service/internal/notify"
	"jobmatch-service/internal/schedule"
	"jobmatch-service/internal/store"
	"jobmatch-service/pkg/clock"
	"jobmatch-service/prometheus"
)

// Ledger drives applications, bids and contracts through their lifecycles.
// Every mutating call is one store transaction; notifications raised by it
// are published only after that transaction commits.
type Ledger struct {
	store   store.Store
	sink    *notify.Sink
	clock   clock.Clock
	log     *zap.Logger
	metrics *prometheus.Metrics
}

func NewLedger(st store.Store, sink *notify.Sink, clk clock.Clock, log *zap.Logger, metrics *prometheus.Metrics) *Ledger {
	return &Ledger{store: st, sink: sink, clock: clk, log: log, metrics: metrics}
}

// outcome classifies an operation result for metrics.
func outcome(err error) string {
	switch {
	case err == nil:
		return prometheus.OutcomeSuccess
	case isRejection(err):
		return prometheus.OutcomeRejected
	default:
		return prometheus.OutcomeError
	}
}

func isRejection(err error) bool {
	for _, target := range []error{
		model.ErrNotFound, model.ErrInvalidState, model.ErrDuplicateApplication,
		model.ErrForbidden, model.ErrInvalidAmount, model.ErrInvalidInput, model.ErrConflict,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// finish records metrics and logs the result of a ledger operation.
func (l *Ledger) finish(op string, err error, fields ...zap.Field) {
	l.metrics.RecordEngagement(op, outcome(err))
	switch {
	case err == nil:
		l.log.Info("Ledger operation completed", append(fields, zap.String("operation", op))...)
	case isRejection(err):
		l.log.Warn("Ledger operation rejected", append(fields, zap.String("operation", op), zap.Error(err))...)
	default:
		l.log.Error("Ledger operation failed", append(fields, zap.String("operation", op), zap.Error(err))...)
	}
}

// Apply files a pending application from the seeker for jobID.
func (l *Ledger) Apply(ctx context.Context, sess model.Session, jobID string) (*model.Application, error) {
	var (
		app   *model.Application
		notes []*model.Notification
	)
	err := sess.Require(model.UserTypeSeeker)
	if err == nil {
		err = l.store.Atomic(ctx, func(tx store.Tx) error {
			job, err := tx.GetJob(ctx, jobID)
			if err != nil {
				return err
			}
			seeker, err := tx.GetUser(ctx, sess.UserID)
			if err != nil {
				return err
			}

			if _, err := tx.FindApplication(ctx, jobID, sess.UserID); err == nil {
				return model.ErrDuplicateApplication
			} else if !errors.Is(err, model.ErrNotFound) {
				return err
			}

			app = &model.Application{
				ID:        uuid.NewString(),
				JobID:     job.ID,
				SeekerID:  seeker.ID,
				Status:    model.StatusPending,
				AppliedAt: l.clock.Now(),
			}
			if err := tx.CreateApplication(ctx, app); err != nil {
				return err
			}

			n, err := l.sink.Notify(ctx, tx, job.EmployerID,
				fmt.Sprintf("%s applied for %s", seeker.Name, job.Title),
				model.NotificationInfo,
				notify.Data{"job_id": job.ID, "application_id": app.ID})
			if err != nil {
				return err
			}
			notes = append(notes, n)
			return nil
		})
	}
	l.finish("apply", err, zap.String("job_id", jobID), zap.String("seeker_id", sess.UserID))
	if err != nil {
		return nil, err
	}
	l.sink.Deliver(ctx, notes...)
	return app, nil
}

// PlaceBid records a pending bid. Seekers may bid on the same job more than once.
func (l *Ledger) PlaceBid(ctx context.Context, sess model.Session, jobID string, amount float64, message string) (*model.Bid, error) {
	var (
		bid   *model.Bid
		notes []*model.Notification
	)
	err := sess.Require(model.UserTypeSeeker)
	if err == nil && (!(amount > 0) || math.IsInf(amount, 1)) {
		err = fmt.Errorf("amount %v: %w", amount, model.ErrInvalidAmount)
	}
	if err == nil {
		err = l.store.Atomic(ctx, func(tx store.Tx) error {
			job, err := tx.GetJob(ctx, jobID)
			if err != nil {
				return err
			}
			seeker, err := tx.GetUser(ctx, sess.UserID)
			if err != nil {
				return err
			}

			bid = &model.Bid{
				ID:        uuid.NewString(),
				JobID:     job.ID,
				SeekerID:  seeker.ID,
				Amount:    amount,
				Message:   message,
				Status:    model.StatusPending,
				CreatedAt: l.clock.Now(),
			}
			if err := tx.CreateBid(ctx, bid); err != nil {
				return err
			}

			n, err := l.sink.Notify(ctx, tx, job.EmployerID,
				fmt.Sprintf("%s placed a bid on %s", seeker.Name, job.Title),
				model.NotificationInfo,
				notify.Data{"job_id": job.ID, "bid_id": bid.ID})
			if err != nil {
				return err
			}
			notes = append(notes, n)
			return nil
		})
	}
	l.finish("place_bid", err, zap.String("job_id", jobID), zap.String("seeker_id", sess.UserID))
	if err != nil {
		return nil, err
	}
	l.sink.Deliver(ctx, notes...)
	return bid, nil
}

// ownedJob loads jobID and checks that the employer session owns it.
func ownedJob(ctx context.Context, tx store.Tx, sess model.Session, jobID string) (*model.Job, error) {
	job, err := tx.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.EmployerID != sess.UserID {
		return nil, fmt.Errorf("job %s is owned by another employer: %w", jobID, model.ErrForbidden)
	}
	return job, nil
}

// openContract creates an active contract whose rate is a snapshot taken now,
// and marks matching roster days of the seeker as booked.
func (l *Ledger) openContract(ctx context.Context, tx store.Tx, job *model.Job, seekerID string, source model.ContractSource, sourceID string, rate float64) (*model.Contract, error) {
	c := &model.Contract{
		ID:         uuid.NewString(),
		JobID:      job.ID,
		SeekerID:   seekerID,
		EmployerID: job.EmployerID,
		Source:     source,
		SourceID:   sourceID,
		Status:     model.ContractActive,
		StartDate:  l.clock.Now(),
		Rate:       rate,
	}
	if err := tx.CreateContract(ctx, c); err != nil {
		return nil, err
	}

	if err := l.bookRoster(ctx, tx, job, seekerID); err != nil {
		return nil, err
	}
	return c, nil
}

// bookRoster is best effort: a vanished or concurrently edited profile is
// logged and skipped.
func (l *Ledger) bookRoster(ctx context.Context, tx store.Tx, job *model.Job, seekerID string) error {
	seeker, err := tx.GetUser(ctx, seekerID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			l.log.Warn("Seeker missing while booking roster", zap.String("seeker_id", seekerID))
			return nil
		}
		return err
	}

	booked, marked := schedule.MarkBooked(job.Schedule, seeker.Availability)
	if marked == 0 {
		return nil
	}
	seeker.Availability = booked
	if err := tx.UpdateUser(ctx, seeker); err != nil {
		if errors.Is(err, model.ErrConflict) {
			l.log.Warn("Skipped roster booking after concurrent profile update", zap.String("seeker_id", seekerID))
			return nil
		}
		return err
	}
	l.log.Debug("Booked roster days", zap.String("seeker_id", seekerID), zap.Int("days", marked))
	return nil
}

// AcceptApplication accepts a pending application on one of the caller's
// jobs and opens a contract at the job's posted salary.
func (l *Ledger) AcceptApplication(ctx context.Context, sess model.Session, appID string) (*model.Contract, error) {
	var (
		contract *model.Contract
		notes    []*model.Notification
	)
	err := sess.Require(model.UserTypeEmployer)
	if err == nil {
		err = l.store.Atomic(ctx, func(tx store.Tx) error {
			app, err := tx.GetApplication(ctx, appID)
			if err != nil {
				return err
			}
			job, err := ownedJob(ctx, tx, sess, app.JobID)
			if err != nil {
				return err
			}
			if app.Status != model.StatusPending {
				return fmt.Errorf("application %s is %s: %w", appID, app.Status, model.ErrInvalidState)
			}

			app.Status = model.StatusAccepted
			if err := tx.UpdateApplication(ctx, app); err != nil {
				return err
			}

			contract, err = l.openContract(ctx, tx, job, app.SeekerID, model.SourceApplication, app.ID, job.Salary)
			if err != nil {
				return err
			}

			n, err := l.sink.Notify(ctx, tx, app.SeekerID,
				fmt.Sprintf("Your application for %s has been accepted!", job.Title),
				model.NotificationSuccess,
				notify.Data{"job_id": job.ID, "application_id": app.ID, "contract_id": contract.ID})
			if err != nil {
				return err
			}
			notes = append(notes, n)
			return nil
		})
	}
	l.finish("accept_application", err, zap.String("application_id", appID), zap.String("employer_id", sess.UserID))
	if err != nil {
		return nil, err
	}
	l.sink.Deliver(ctx, notes...)
	return contract, nil
}

// RejectApplication declines a pending application.
func (l *Ledger) RejectApplication(ctx context.Context, sess model.Session, appID string) (*model.Application, error) {
	var (
		app   *model.Application
		notes []*model.Notification
	)
	err := sess.Require(model.UserTypeEmployer)
	if err == nil {
		err = l.store.Atomic(ctx, func(tx store.Tx) error {
			var err error
			app, err = tx.GetApplication(ctx, appID)
			if err != nil {
				return err
			}
			job, err := ownedJob(ctx, tx, sess, app.JobID)
			if err != nil {
				return err
			}
			if app.Status != model.StatusPending {
				return fmt.Errorf("application %s is %s: %w", appID, app.Status, model.ErrInvalidState)
			}

			app.Status = model.StatusRejected
			if err := tx.UpdateApplication(ctx, app); err != nil {
				return err
			}

			n, err := l.sink.Notify(ctx, tx, app.SeekerID,
				fmt.Sprintf("Your application for %s was not accepted this time.", job.Title),
				model.NotificationInfo,
				notify.Data{"job_id": job.ID, "application_id": app.ID})
			if err != nil {
				return err
			}
			notes = append(notes, n)
			return nil
		})
	}
	l.finish("reject_application", err, zap.String("application_id", appID), zap.String("employer_id", sess.UserID))
	if err != nil {
		return nil, err
	}
	l.sink.Deliver(ctx, notes...)
	return app, nil
}

// AcceptBid accepts a pending bid and opens a contract at the bid amount.
func (l *Ledger) AcceptBid(ctx context.Context, sess model.Session, bidID string) (*model.Contract, error) {
	var (
		contract *model.Contract
		notes    []*model.Notification
	)
	err := sess.Require(model.UserTypeEmployer)
	if err == nil {
		err = l.store.Atomic(ctx, func(tx store.Tx) error {
			bid, err := tx.GetBid(ctx, bidID)
			if err != nil {
				return err
			}
			job, err := ownedJob(ctx, tx, sess, bid.JobID)
			if err != nil {
				return err
			}
			if bid.Status != model.StatusPending {
				return fmt.Errorf("bid %s is %s: %w", bidID, bid.Status, model.ErrInvalidState)
			}

			bid.Status = model.StatusAccepted
			if err := tx.UpdateBid(ctx, bid); err != nil {
				return err
			}

			contract, err = l.openContract(ctx, tx, job, bid.SeekerID, model.SourceBid, bid.ID, bid.Amount)
			if err != nil {
				return err
			}

			n, err := l.sink.Notify(ctx, tx, bid.SeekerID,
				fmt.Sprintf("Your bid for %s has been accepted!", job.Title),
				model.NotificationSuccess,
				notify.Data{"job_id": job.ID, "bid_id": bid.ID, "contract_id": contract.ID})
			if err != nil {
				return err
			}
			notes = append(notes, n)
			return nil
		})
	}
	l.finish("accept_bid", err, zap.String("bid_id", bidID), zap.String("employer_id", sess.UserID))
	if err != nil {
		return nil, err
	}
	l.sink.Deliver(ctx, notes...)
	return contract, nil
}

// RejectBid declines a pending bid.
func (l *Ledger) RejectBid(ctx context.Context, sess model.Session, bidID string) (*model.Bid, error) {
	var (
		bid   *model.Bid
		notes []*model.Notification
	)
	err := sess.Require(model.UserTypeEmployer)
	if err == nil {
		err = l.store.Atomic(ctx, func(tx store.Tx) error {
			var err error
			bid, err = tx.GetBid(ctx, bidID)
			if err != nil {
				return err
			}
			job, err := ownedJob(ctx, tx, sess, bid.JobID)
			if err != nil {
				return err
			}
			if bid.Status != model.StatusPending {
				return fmt.Errorf("bid %s is %s: %w", bidID, bid.Status, model.ErrInvalidState)
			}

			bid.Status = model.StatusRejected
			if err := tx.UpdateBid(ctx, bid); err != nil {
				return err
			}

			n, err := l.sink.Notify(ctx, tx, bid.SeekerID,
				fmt.Sprintf("Your bid for %s was not accepted.", job.Title),
				model.NotificationInfo,
				notify.Data{"job_id": job.ID, "bid_id": bid.ID})
			if err != nil {
				return err
			}
			notes = append(notes, n)
			return nil
		})
	}
	l.finish("reject_bid", err, zap.String("bid_id", bidID), zap.String("employer_id", sess.UserID))
	if err != nil {
		return nil, err
	}
	l.sink.Deliver(ctx, notes...)
	return bid, nil
}
