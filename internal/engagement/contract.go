package engagement

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"jobmatch-service/internal/model"
	"jobmatch-service/internal/notify"
	"jobmatch-service/internal/store"
)

// seekerContract loads a contract and checks the caller is its seeker.
func seekerContract(ctx context.Context, tx store.Tx, sess model.Session, id string) (*model.Contract, error) {
	c, err := tx.GetContract(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.SeekerID != sess.UserID {
		return nil, fmt.Errorf("contract %s belongs to another seeker: %w", id, model.ErrForbidden)
	}
	return c, nil
}

// ClockIn starts the work period of an active contract.
func (l *Ledger) ClockIn(ctx context.Context, sess model.Session, contractID string) (*model.Contract, error) {
	var contract *model.Contract
	err := sess.Require(model.UserTypeSeeker)
	if err == nil {
		err = l.store.Atomic(ctx, func(tx store.Tx) error {
			c, err := seekerContract(ctx, tx, sess, contractID)
			if err != nil {
				return err
			}
			if c.Status != model.ContractActive || c.ClockIn != nil {
				return fmt.Errorf("contract %s cannot be clocked in: %w", contractID, model.ErrInvalidState)
			}

			now := l.clock.Now()
			c.ClockIn = &now
			if err := tx.UpdateContract(ctx, c); err != nil {
				return err
			}
			contract = c
			return nil
		})
	}
	l.finish("clock_in", err, zap.String("contract_id", contractID), zap.String("seeker_id", sess.UserID))
	if err != nil {
		return nil, err
	}
	return contract, nil
}

// ClockOut ends the work period, completes the contract and tells the
// employer how many hours were worked.
func (l *Ledger) ClockOut(ctx context.Context, sess model.Session, contractID string) (*model.Contract, error) {
	var (
		contract *model.Contract
		notes    []*model.Notification
	)
	err := sess.Require(model.UserTypeSeeker)
	if err == nil {
		err = l.store.Atomic(ctx, func(tx store.Tx) error {
			c, err := seekerContract(ctx, tx, sess, contractID)
			if err != nil {
				return err
			}
			if c.ClockIn == nil || c.ClockOut != nil {
				return fmt.Errorf("contract %s cannot be clocked out: %w", contractID, model.ErrInvalidState)
			}

			now := l.clock.Now()
			c.ClockOut = &now
			c.Status = model.ContractCompleted
			if err := tx.UpdateContract(ctx, c); err != nil {
				return err
			}
			contract = c

			title := c.JobID
			if job, err := tx.GetJob(ctx, c.JobID); err == nil {
				title = job.Title
			}
			name := c.SeekerID
			if seeker, err := tx.GetUser(ctx, c.SeekerID); err == nil {
				name = seeker.Name
			}

			n, err := l.sink.Notify(ctx, tx, c.EmployerID,
				fmt.Sprintf("%s clocked out of %s after %.2f hours", name, title, HoursWorked(*c)),
				model.NotificationInfo,
				notify.Data{"job_id": c.JobID, "contract_id": c.ID})
			if err != nil {
				return err
			}
			notes = append(notes, n)
			return nil
		})
	}
	l.finish("clock_out", err, zap.String("contract_id", contractID), zap.String("seeker_id", sess.UserID))
	if err != nil {
		return nil, err
	}
	l.sink.Deliver(ctx, notes...)
	return contract, nil
}

// HoursWorked is the clocked duration in hours rounded to two decimals, or 0
// when the contract has not been clocked in and out.
func HoursWorked(c model.Contract) float64 {
	if c.ClockIn == nil || c.ClockOut == nil {
		return 0
	}
	return round2(c.ClockOut.Sub(*c.ClockIn).Hours())
}

// TotalPay is HoursWorked times the contract rate, rounded to two decimals.
// The rate is treated as hourly regardless of the job type.
func TotalPay(c model.Contract) float64 {
	hours := HoursWorked(c)
	if hours == 0 {
		return 0
	}
	return round2(hours * c.Rate)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Get returns a contract visible to the caller.
func (l *Ledger) Get(ctx context.Context, sess model.Session, contractID string) (*model.Contract, error) {
	c, err := l.store.GetContract(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if c.SeekerID != sess.UserID && c.EmployerID != sess.UserID {
		return nil, fmt.Errorf("contract %s: %w", contractID, model.ErrForbidden)
	}
	return c, nil
}

// ContractDocument renders the plain-text agreement for a contract. Either
// party may request it.
func (l *Ledger) ContractDocument(ctx context.Context, sess model.Session, contractID string) (string, error) {
	c, err := l.Get(ctx, sess, contractID)
	if err != nil {
		return "", err
	}
	job, err := l.store.GetJob(ctx, c.JobID)
	if err != nil {
		return "", fmt.Errorf("load job for contract %s: %w", contractID, err)
	}
	employer, err := l.store.GetUser(ctx, c.EmployerID)
	if err != nil {
		return "", fmt.Errorf("load employer for contract %s: %w", contractID, err)
	}
	seeker, err := l.store.GetUser(ctx, c.SeekerID)
	if err != nil {
		return "", fmt.Errorf("load seeker for contract %s: %w", contractID, err)
	}
	return renderDocument(*c, *job, *employer, *seeker), nil
}

const dateTimeLayout = "2006-01-02 15:04 MST"

func renderDocument(c model.Contract, job model.Job, employer, seeker model.User) string {
	var b strings.Builder
	line := func(format string, args ...interface{}) {
		fmt.Fprintf(&b, format+"\n", args...)
	}

	line("JOB CONTRACT AGREEMENT")
	line("======================")
	line("")
	line("Contract ID: %s", c.ID)
	line("Date: %s", c.StartDate.Format("2006-01-02"))
	line("")
	line("EMPLOYER:")
	line("Name: %s", employer.Name)
	line("Email: %s", employer.Email)
	line("")
	line("EMPLOYEE:")
	line("Name: %s", seeker.Name)
	line("Email: %s", seeker.Email)
	line("Phone: %s", seeker.Phone)
	line("")
	line("JOB DETAILS:")
	line("Position: %s", job.Title)
	line("Company: %s", job.Company)
	line("Type: %s", job.Type)
	line("Location: %s", job.Location)
	line("Rate/hour: %.2f", c.Rate)
	line("Start Date: %s", c.StartDate.Format("2006-01-02"))
	line("")
	line("WORK RECORD:")
	if c.ClockIn != nil {
		line("Clock In: %s", c.ClockIn.Format(dateTimeLayout))
	} else {
		line("Clock In: -")
	}
	if c.ClockOut != nil {
		line("Clock Out: %s", c.ClockOut.Format(dateTimeLayout))
	} else {
		line("Clock Out: -")
	}
	line("Hours Worked: %.2f", HoursWorked(c))
	line("Total Payment: %.2f", TotalPay(c))
	line("Status: %s", c.Status)
	line("")
	line("This contract is generated by JobMatch platform.")
	return b.String()
}

// ListApplications returns the seeker's own applications, or for an employer
// the applications on their jobs.
func (l *Ledger) ListApplications(ctx context.Context, sess model.Session) ([]model.Application, error) {
	f, err := l.engagementFilter(ctx, sess)
	if err != nil {
		return nil, err
	}
	return l.store.ListApplications(ctx, f)
}

// ListBids mirrors ListApplications for bids.
func (l *Ledger) ListBids(ctx context.Context, sess model.Session) ([]model.Bid, error) {
	f, err := l.engagementFilter(ctx, sess)
	if err != nil {
		return nil, err
	}
	return l.store.ListBids(ctx, f)
}

// ListContracts returns contracts where the caller is either party.
func (l *Ledger) ListContracts(ctx context.Context, sess model.Session) ([]model.Contract, error) {
	if sess.UserID == "" {
		return nil, fmt.Errorf("no active session: %w", model.ErrForbidden)
	}
	return l.store.ListContracts(ctx, store.ContractFilter{Party: sess.UserID})
}

func (l *Ledger) engagementFilter(ctx context.Context, sess model.Session) (store.EngagementFilter, error) {
	switch {
	case sess.UserID == "":
		return store.EngagementFilter{}, fmt.Errorf("no active session: %w", model.ErrForbidden)
	case sess.Type == model.UserTypeSeeker:
		return store.EngagementFilter{SeekerID: sess.UserID}, nil
	}

	jobs, err := l.store.ListJobs(ctx, store.JobFilter{EmployerID: sess.UserID})
	if err != nil {
		return store.EngagementFilter{}, err
	}
	ids := make([]string, 0, len(jobs))
	for _, j := range jobs {
		ids = append(ids, j.ID)
	}
	return store.EngagementFilter{JobIDs: ids}, nil
}
