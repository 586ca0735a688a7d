package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"jobmatch-service/internal/model"
	"jobmatch-service/internal/store"
	"jobmatch-service/prometheus"
)

// Models lists every table the store owns, in migration order.
var Models = []interface{}{
	&model.User{},
	&model.Job{},
	&model.Application{},
	&model.Bid{},
	&model.Contract{},
	&model.Review{},
	&model.Notification{},
}

// Store is the PostgreSQL-backed store.Store. Reads outside Atomic run on
// the pooled connection; Atomic runs inside one database transaction.
type Store struct {
	*queries
}

func New(db *gorm.DB, metrics *prometheus.Metrics, log *zap.Logger) *Store {
	return &Store{queries: &queries{db: db, metrics: metrics, log: log}}
}

// Migrate creates or updates the schema.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(Models...); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}
	return nil
}

func (s *Store) Atomic(ctx context.Context, fn func(tx store.Tx) error) error {
	defer s.metrics.TrackStoreOperation("transaction")(time.Now())
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&queries{db: tx, metrics: s.metrics, log: s.log, locking: true})
	})
}

// queries implements store.Tx on top of a *gorm.DB, which is either the pool
// or an open transaction. Inside a transaction single-row reads take a row
// lock so the version check rarely has to fail.
type queries struct {
	db      *gorm.DB
	metrics *prometheus.Metrics
	log     *zap.Logger
	locking bool
}

func translate(err error, kind, id string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s %s: %w", kind, id, model.ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s %s: %w", kind, id, model.ErrConflict)
	default:
		return fmt.Errorf("%s %s: %w", kind, id, err)
	}
}

func first[T any](ctx context.Context, q *queries, op, kind, id string, where ...interface{}) (*T, error) {
	defer q.metrics.TrackStoreOperation(op)(time.Now())
	var row T
	db := q.db.WithContext(ctx)
	if q.locking {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := db.Where(where[0], where[1:]...).First(&row).Error; err != nil {
		return nil, translate(err, kind, id)
	}
	return &row, nil
}

// updateVersioned writes every column of row where the stored version still
// equals *version, then bumps *version.
func updateVersioned(ctx context.Context, q *queries, op, kind, id string, row interface{}, version *int) error {
	defer q.metrics.TrackStoreOperation(op)(time.Now())
	expected := *version
	*version = expected + 1

	res := q.db.WithContext(ctx).Model(row).
		Where("version = ?", expected).
		Select("*").
		Updates(row)
	if res.Error != nil {
		*version = expected
		return translate(res.Error, kind, id)
	}
	if res.RowsAffected == 0 {
		*version = expected
		var count int64
		if err := q.db.WithContext(ctx).Model(row).Where("id = ?", id).Count(&count).Error; err != nil {
			return translate(err, kind, id)
		}
		if count == 0 {
			return fmt.Errorf("%s %s: %w", kind, id, model.ErrNotFound)
		}
		q.log.Warn("Optimistic lock conflict",
			zap.String("entity", kind),
			zap.String("id", id),
			zap.Int("expected_version", expected))
		return fmt.Errorf("%s %s: %w", kind, id, model.ErrConflict)
	}
	return nil
}

func (q *queries) create(ctx context.Context, op, kind, id string, row interface{}) error {
	defer q.metrics.TrackStoreOperation(op)(time.Now())
	return translate(q.db.WithContext(ctx).Create(row).Error, kind, id)
}

func (q *queries) GetUser(ctx context.Context, id string) (*model.User, error) {
	return first[model.User](ctx, q, "get_user", "user", id, "id = ?", id)
}

func (q *queries) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return first[model.User](ctx, q, "find_user_by_email", "user with email", email, "LOWER(email) = LOWER(?)", email)
}

func (q *queries) GetJob(ctx context.Context, id string) (*model.Job, error) {
	return first[model.Job](ctx, q, "get_job", "job", id, "id = ?", id)
}

func (q *queries) jobQuery(ctx context.Context, f store.JobFilter) *gorm.DB {
	db := q.db.WithContext(ctx).Model(&model.Job{})
	if f.EmployerID != "" {
		db = db.Where("employer_id = ?", f.EmployerID)
	}
	return db
}

func (q *queries) ListJobs(ctx context.Context, f store.JobFilter) ([]model.Job, error) {
	defer q.metrics.TrackStoreOperation("list_jobs")(time.Now())
	jobs := []model.Job{}
	if err := q.jobQuery(ctx, f).Order("seq").Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

func (q *queries) CountJobs(ctx context.Context, f store.JobFilter) (int64, error) {
	defer q.metrics.TrackStoreOperation("count_jobs")(time.Now())
	var n int64
	if err := q.jobQuery(ctx, f).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count jobs: %w", err)
	}
	return n, nil
}

func (q *queries) GetApplication(ctx context.Context, id string) (*model.Application, error) {
	return first[model.Application](ctx, q, "get_application", "application", id, "id = ?", id)
}

func (q *queries) FindApplication(ctx context.Context, jobID, seekerID string) (*model.Application, error) {
	return first[model.Application](ctx, q, "find_application", "application for job", jobID,
		"job_id = ? AND seeker_id = ?", jobID, seekerID)
}

func engagementQuery(db *gorm.DB, f store.EngagementFilter) *gorm.DB {
	if f.SeekerID != "" {
		db = db.Where("seeker_id = ?", f.SeekerID)
	}
	if f.JobIDs != nil {
		db = db.Where("job_id IN ?", f.JobIDs)
	}
	return db
}

func (q *queries) ListApplications(ctx context.Context, f store.EngagementFilter) ([]model.Application, error) {
	defer q.metrics.TrackStoreOperation("list_applications")(time.Now())
	apps := []model.Application{}
	if f.JobIDs != nil && len(f.JobIDs) == 0 {
		return apps, nil
	}
	db := engagementQuery(q.db.WithContext(ctx), f)
	if err := db.Order("applied_at, id").Find(&apps).Error; err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return apps, nil
}

func (q *queries) GetBid(ctx context.Context, id string) (*model.Bid, error) {
	return first[model.Bid](ctx, q, "get_bid", "bid", id, "id = ?", id)
}

func (q *queries) ListBids(ctx context.Context, f store.EngagementFilter) ([]model.Bid, error) {
	defer q.metrics.TrackStoreOperation("list_bids")(time.Now())
	bids := []model.Bid{}
	if f.JobIDs != nil && len(f.JobIDs) == 0 {
		return bids, nil
	}
	db := engagementQuery(q.db.WithContext(ctx), f)
	if err := db.Order("created_at, id").Find(&bids).Error; err != nil {
		return nil, fmt.Errorf("list bids: %w", err)
	}
	return bids, nil
}

func (q *queries) GetContract(ctx context.Context, id string) (*model.Contract, error) {
	return first[model.Contract](ctx, q, "get_contract", "contract", id, "id = ?", id)
}

func (q *queries) ListContracts(ctx context.Context, f store.ContractFilter) ([]model.Contract, error) {
	defer q.metrics.TrackStoreOperation("list_contracts")(time.Now())
	db := q.db.WithContext(ctx)
	if f.SeekerID != "" {
		db = db.Where("seeker_id = ?", f.SeekerID)
	}
	if f.EmployerID != "" {
		db = db.Where("employer_id = ?", f.EmployerID)
	}
	if f.Party != "" {
		db = db.Where("seeker_id = ? OR employer_id = ?", f.Party, f.Party)
	}
	contracts := []model.Contract{}
	if err := db.Order("start_date, id").Find(&contracts).Error; err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}
	return contracts, nil
}

func (q *queries) ListReviewsFor(ctx context.Context, userID string) ([]model.Review, error) {
	defer q.metrics.TrackStoreOperation("list_reviews")(time.Now())
	reviews := []model.Review{}
	if err := q.db.WithContext(ctx).Where("to_user_id = ?", userID).Order("created_at, id").Find(&reviews).Error; err != nil {
		return nil, fmt.Errorf("list reviews for %s: %w", userID, err)
	}
	return reviews, nil
}

func (q *queries) GetNotification(ctx context.Context, id string) (*model.Notification, error) {
	return first[model.Notification](ctx, q, "get_notification", "notification", id, "id = ?", id)
}

func (q *queries) ListNotifications(ctx context.Context, f store.NotificationFilter) ([]model.Notification, error) {
	defer q.metrics.TrackStoreOperation("list_notifications")(time.Now())
	db := q.db.WithContext(ctx)
	if f.UserID != "" {
		db = db.Where("user_id = ?", f.UserID)
	}
	if f.UnreadOnly {
		db = db.Where("is_read = ?", false)
	}
	notes := []model.Notification{}
	if err := db.Order("sent_at, id").Find(&notes).Error; err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notes, nil
}

func (q *queries) CreateUser(ctx context.Context, u *model.User) error {
	u.Version = 1
	err := q.create(ctx, "create_user", "user", u.ID, u)
	if errors.Is(err, model.ErrConflict) {
		return fmt.Errorf("user email %s: %w", u.Email, model.ErrEmailTaken)
	}
	return err
}

func (q *queries) UpdateUser(ctx context.Context, u *model.User) error {
	return updateVersioned(ctx, q, "update_user", "user", u.ID, u, &u.Version)
}

func (q *queries) CreateJob(ctx context.Context, j *model.Job) error {
	return q.create(ctx, "create_job", "job", j.ID, j)
}

func (q *queries) DeleteJob(ctx context.Context, id string) error {
	defer q.metrics.TrackStoreOperation("delete_job")(time.Now())
	res := q.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Job{})
	if res.Error != nil {
		return translate(res.Error, "job", id)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("job %s: %w", id, model.ErrNotFound)
	}
	return nil
}

func (q *queries) CreateApplication(ctx context.Context, a *model.Application) error {
	a.Version = 1
	err := q.create(ctx, "create_application", "application", a.ID, a)
	if errors.Is(err, model.ErrConflict) {
		return fmt.Errorf("application for job %s: %w", a.JobID, model.ErrDuplicateApplication)
	}
	return err
}

func (q *queries) UpdateApplication(ctx context.Context, a *model.Application) error {
	return updateVersioned(ctx, q, "update_application", "application", a.ID, a, &a.Version)
}

func (q *queries) CreateBid(ctx context.Context, b *model.Bid) error {
	b.Version = 1
	return q.create(ctx, "create_bid", "bid", b.ID, b)
}

func (q *queries) UpdateBid(ctx context.Context, b *model.Bid) error {
	return updateVersioned(ctx, q, "update_bid", "bid", b.ID, b, &b.Version)
}

func (q *queries) CreateContract(ctx context.Context, c *model.Contract) error {
	c.Version = 1
	return q.create(ctx, "create_contract", "contract", c.ID, c)
}

func (q *queries) UpdateContract(ctx context.Context, c *model.Contract) error {
	return updateVersioned(ctx, q, "update_contract", "contract", c.ID, c, &c.Version)
}

func (q *queries) CreateReview(ctx context.Context, r *model.Review) error {
	err := q.create(ctx, "create_review", "review", r.ID, r)
	if errors.Is(err, model.ErrConflict) {
		return fmt.Errorf("review for contract %s: %w", r.ContractID, model.ErrAlreadyReviewed)
	}
	return err
}

func (q *queries) CreateNotification(ctx context.Context, n *model.Notification) error {
	n.Version = 1
	return q.create(ctx, "create_notification", "notification", n.ID, n)
}

func (q *queries) UpdateNotification(ctx context.Context, n *model.Notification) error {
	return updateVersioned(ctx, q, "update_notification", "notification", n.ID, n, &n.Version)
}
