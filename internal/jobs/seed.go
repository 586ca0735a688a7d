package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"jobmatch-service/internal/model"
	"jobmatch-service/internal/store"
)

type demoEmployer struct {
	name, email string
	location    model.Location
}

var demoEmployers = []demoEmployer{
	{"Coffee House", "demo-employer1@jobmatch.local", model.Location{Lat: 3.1390, Lng: 101.6869, Address: "Kuala Lumpur"}},
	{"Quick Delivery Co", "demo-employer2@jobmatch.local", model.Location{Lat: 3.1073, Lng: 101.6067, Address: "Petaling Jaya"}},
}

func slots(start, end string) []model.Slot {
	return []model.Slot{{Start: start, End: end}}
}

func weekly(start, end string, days ...string) model.Schedule {
	s := model.Schedule{Kind: model.ScheduleRecurring}
	for _, d := range days {
		s.Days = append(s.Days, model.ScheduleDay{Weekday: d, Slots: slots(start, end)})
	}
	return s
}

// demoJobs returns the starter postings keyed to demoEmployers by index.
func demoJobs() []struct {
	employer int
	job      model.Job
} {
	return []struct {
		employer int
		job      model.Job
	}{
		{0, model.Job{
			Title: "Barista", Company: "Coffee House", Type: model.JobTypePartTime, Salary: 12,
			Location: "Kuala Lumpur", Lat: 3.1390, Lng: 101.6869,
			Description: "Looking for friendly barista for weekend shifts",
			Skills:      []string{"customer-service", "coffee-making"},
			Schedule:    weekly("08:00", "16:00", "saturday", "sunday"),
		}},
		{1, model.Job{
			Title: "Delivery Driver", Company: "Quick Delivery Co", Type: model.JobTypeFullTime, Salary: 2500,
			Location: "Petaling Jaya", Lat: 3.1073, Lng: 101.6067,
			Description: "Full-time delivery driver needed",
			Skills:      []string{"driving", "navigation"},
			Schedule:    weekly("09:00", "18:00", "monday", "tuesday", "wednesday", "thursday", "friday"),
		}},
		{0, model.Job{
			Title: "Retail Assistant", Company: "Fashion Store", Type: model.JobTypePartTime, Salary: 10,
			Location: "Subang Jaya", Lat: 3.0441, Lng: 101.5866,
			Description: "Part-time retail assistant for evening shifts",
			Skills:      []string{"customer-service", "sales"},
			Schedule:    weekly("16:00", "22:00", "monday", "wednesday", "friday"),
		}},
	}
}

// SeedDemoJobs loads the demo employers and their postings into an empty
// marketplace, returning how many jobs were created. It does nothing when
// any job already exists. Both demo employers log in with password.
func (s *Service) SeedDemoJobs(ctx context.Context, password string) (int, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("hash demo password: %w", err)
	}

	created := 0
	err = s.store.Atomic(ctx, func(tx store.Tx) error {
		existing, err := tx.CountJobs(ctx, store.JobFilter{})
		if err != nil {
			return err
		}
		if existing > 0 {
			return nil
		}

		ids := make([]string, len(demoEmployers))
		for i, d := range demoEmployers {
			u, err := tx.FindUserByEmail(ctx, d.email)
			if err == nil {
				ids[i] = u.ID
				continue
			}
			if !errors.Is(err, model.ErrNotFound) {
				return err
			}
			u = &model.User{
				ID:           uuid.NewString(),
				Type:         model.UserTypeEmployer,
				Name:         d.name,
				Email:        d.email,
				Password:     string(hash),
				Location:     d.location,
				Radius:       10,
				Subscription: model.SubscriptionEnterprise,
				CreatedAt:    s.clock.Now(),
			}
			if err := tx.CreateUser(ctx, u); err != nil {
				return err
			}
			ids[i] = u.ID
		}

		for _, demo := range demoJobs() {
			job := demo.job
			job.ID = uuid.NewString()
			job.EmployerID = ids[demo.employer]
			job.Posted = s.clock.Now()
			if err := tx.CreateJob(ctx, &job); err != nil {
				return err
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.log.Info("Demo data seeded", zap.Int("jobs", created))
	return created, nil
}
