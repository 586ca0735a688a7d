package jobs

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"jobmatch-service/internal/match"
	"jobmatch-service/internal/model"
	"jobmatch-service/internal/schedule"
	"jobmatch-service/internal/store"
	"jobmatch-service/pkg/clock"
)

// Quotas maps a subscription tier to the number of live postings an
// employer may hold. A missing tier or a value of 0 means unlimited.
type Quotas map[model.Subscription]int

type PostInput struct {
	Title       string         `json:"title"`
	Company     string         `json:"company"`
	Type        model.JobType  `json:"type"`
	Salary      float64        `json:"salary"`
	Location    string         `json:"location"`
	Lat         *float64       `json:"lat"`
	Lng         *float64       `json:"lng"`
	Description string         `json:"description"`
	Skills      []string       `json:"skills"`
	Schedule    model.Schedule `json:"schedule"`
}

type Service struct {
	store  store.Store
	engine *match.Engine
	quotas Quotas
	clock  clock.Clock
	log    *zap.Logger
}

func NewService(st store.Store, engine *match.Engine, quotas Quotas, clk clock.Clock, log *zap.Logger) *Service {
	return &Service{store: st, engine: engine, quotas: quotas, clock: clk, log: log}
}

// PostJob publishes a job for the calling employer, subject to their tier's
// posting quota. Coordinates default to the employer's profile location.
func (s *Service) PostJob(ctx context.Context, sess model.Session, in PostInput) (*model.Job, error) {
	if err := sess.Require(model.UserTypeEmployer); err != nil {
		return nil, err
	}
	if err := validatePost(in); err != nil {
		s.log.Warn("Rejected job posting", zap.String("employer_id", sess.UserID), zap.Error(err))
		return nil, err
	}

	var job *model.Job
	err := s.store.Atomic(ctx, func(tx store.Tx) error {
		employer, err := tx.GetUser(ctx, sess.UserID)
		if err != nil {
			return err
		}

		if limit := s.quotas[employer.Subscription]; limit > 0 {
			count, err := tx.CountJobs(ctx, store.JobFilter{EmployerID: employer.ID})
			if err != nil {
				return err
			}
			if count >= int64(limit) {
				return fmt.Errorf("%s tier allows %d postings: %w", employer.Subscription, limit, model.ErrQuotaExceeded)
			}
		}

		job = &model.Job{
			ID:          uuid.NewString(),
			EmployerID:  employer.ID,
			Title:       strings.TrimSpace(in.Title),
			Company:     strings.TrimSpace(in.Company),
			Type:        in.Type,
			Salary:      in.Salary,
			Location:    strings.TrimSpace(in.Location),
			Lat:         employer.Location.Lat,
			Lng:         employer.Location.Lng,
			Description: strings.TrimSpace(in.Description),
			Skills:      normalizeSkills(in.Skills),
			Schedule:    in.Schedule.Clone(),
			Posted:      s.clock.Now(),
		}
		if in.Lat != nil && in.Lng != nil {
			job.Lat, job.Lng = *in.Lat, *in.Lng
		}
		if job.Company == "" {
			job.Company = employer.Name
		}
		if job.Location == "" {
			job.Location = employer.Location.Address
		}
		return tx.CreateJob(ctx, job)
	})
	if err != nil {
		s.log.Warn("Job not posted", zap.String("employer_id", sess.UserID), zap.Error(err))
		return nil, err
	}

	s.log.Info("Job posted",
		zap.String("job_id", job.ID),
		zap.String("employer_id", job.EmployerID),
		zap.String("title", job.Title))
	return job, nil
}

func validatePost(in PostInput) error {
	switch {
	case strings.TrimSpace(in.Title) == "":
		return fmt.Errorf("title is required: %w", model.ErrInvalidInput)
	case !in.Type.Valid():
		return fmt.Errorf("job type %q: %w", in.Type, model.ErrInvalidInput)
	case !(in.Salary >= 0) || math.IsInf(in.Salary, 1):
		return fmt.Errorf("salary must be a non-negative number: %w", model.ErrInvalidInput)
	case (in.Lat == nil) != (in.Lng == nil):
		return fmt.Errorf("lat and lng must be given together: %w", model.ErrInvalidInput)
	}
	if in.Lat != nil && (*in.Lat < -90 || *in.Lat > 90 || *in.Lng < -180 || *in.Lng > 180) {
		return fmt.Errorf("coordinates out of range: %w", model.ErrInvalidInput)
	}
	return schedule.Validate(in.Schedule)
}

func normalizeSkills(skills []string) []string {
	out := make([]string, 0, len(skills))
	seen := make(map[string]bool, len(skills))
	for _, s := range skills {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// DeleteJob removes one of the caller's postings.
func (s *Service) DeleteJob(ctx context.Context, sess model.Session, jobID string) error {
	if err := sess.Require(model.UserTypeEmployer); err != nil {
		return err
	}
	err := s.store.Atomic(ctx, func(tx store.Tx) error {
		job, err := tx.GetJob(ctx, jobID)
		if err != nil {
			return err
		}
		if job.EmployerID != sess.UserID {
			return fmt.Errorf("job %s is owned by another employer: %w", jobID, model.ErrForbidden)
		}
		return tx.DeleteJob(ctx, jobID)
	})
	if err != nil {
		s.log.Warn("Job not deleted", zap.String("job_id", jobID), zap.Error(err))
		return err
	}
	s.log.Info("Job deleted", zap.String("job_id", jobID), zap.String("employer_id", sess.UserID))
	return nil
}

func (s *Service) Get(ctx context.Context, jobID string) (*model.Job, error) {
	return s.store.GetJob(ctx, jobID)
}

// ListByEmployer returns the caller's postings.
func (s *Service) ListByEmployer(ctx context.Context, sess model.Session) ([]model.Job, error) {
	if err := sess.Require(model.UserTypeEmployer); err != nil {
		return nil, err
	}
	return s.store.ListJobs(ctx, store.JobFilter{EmployerID: sess.UserID})
}

// Search runs the match engine for the calling seeker over every posting.
func (s *Service) Search(ctx context.Context, sess model.Session, f match.Filters) (match.Result, error) {
	if err := sess.Require(model.UserTypeSeeker); err != nil {
		return match.Result{}, err
	}
	seeker, err := s.store.GetUser(ctx, sess.UserID)
	if err != nil {
		return match.Result{}, err
	}
	all, err := s.store.ListJobs(ctx, store.JobFilter{})
	if err != nil {
		return match.Result{}, err
	}
	return s.engine.Search(*seeker, all, f), nil
}
