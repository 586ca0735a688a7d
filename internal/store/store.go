package store

import (
	"context"

	"jobmatch-service/internal/model"
)

// JobFilter narrows job listings. Zero values match everything.
type JobFilter struct {
	EmployerID string
}

// EngagementFilter narrows application and bid listings. A nil JobIDs means
// no job constraint; an empty non-nil slice matches nothing.
type EngagementFilter struct {
	JobIDs   []string
	SeekerID string
}

type ContractFilter struct {
	SeekerID   string
	EmployerID string
	// Party matches contracts where the user is either seeker or employer.
	Party string
}

type NotificationFilter struct {
	UserID     string
	UnreadOnly bool
}

// Reader is the read side shared by a store and its transactions. Results
// are copies; mutating them never changes stored state.
type Reader interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
	FindUserByEmail(ctx context.Context, email string) (*model.User, error)

	GetJob(ctx context.Context, id string) (*model.Job, error)
	ListJobs(ctx context.Context, f JobFilter) ([]model.Job, error)
	CountJobs(ctx context.Context, f JobFilter) (int64, error)

	GetApplication(ctx context.Context, id string) (*model.Application, error)
	FindApplication(ctx context.Context, jobID, seekerID string) (*model.Application, error)
	ListApplications(ctx context.Context, f EngagementFilter) ([]model.Application, error)

	GetBid(ctx context.Context, id string) (*model.Bid, error)
	ListBids(ctx context.Context, f EngagementFilter) ([]model.Bid, error)

	GetContract(ctx context.Context, id string) (*model.Contract, error)
	ListContracts(ctx context.Context, f ContractFilter) ([]model.Contract, error)

	ListReviewsFor(ctx context.Context, userID string) ([]model.Review, error)

	GetNotification(ctx context.Context, id string) (*model.Notification, error)
	ListNotifications(ctx context.Context, f NotificationFilter) ([]model.Notification, error)
}

// Tx is a unit of work. Updates are guarded by the row version: an update
// whose Version no longer matches the stored row fails with
// model.ErrConflict, and a successful update increments Version in place.
type Tx interface {
	Reader

	CreateUser(ctx context.Context, u *model.User) error
	UpdateUser(ctx context.Context, u *model.User) error

	CreateJob(ctx context.Context, j *model.Job) error
	DeleteJob(ctx context.Context, id string) error

	CreateApplication(ctx context.Context, a *model.Application) error
	UpdateApplication(ctx context.Context, a *model.Application) error

	CreateBid(ctx context.Context, b *model.Bid) error
	UpdateBid(ctx context.Context, b *model.Bid) error

	CreateContract(ctx context.Context, c *model.Contract) error
	UpdateContract(ctx context.Context, c *model.Contract) error

	CreateReview(ctx context.Context, r *model.Review) error

	CreateNotification(ctx context.Context, n *model.Notification) error
	UpdateNotification(ctx context.Context, n *model.Notification) error
}

// Store persists marketplace state. Atomic runs fn as one all-or-nothing
// unit: if fn returns an error nothing it wrote is kept.
type Store interface {
	Reader
	Atomic(ctx context.Context, fn func(tx Tx) error) error
}
