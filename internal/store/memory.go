package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"jobmatch-service/internal/model"
)

// table keeps rows keyed by id plus their insertion order.
type table[T any] struct {
	rows  map[string]T
	order []string
}

func newTable[T any]() *table[T] {
	return &table[T]{rows: make(map[string]T)}
}

func (t *table[T]) clone(cp func(T) T) *table[T] {
	out := &table[T]{
		rows:  make(map[string]T, len(t.rows)),
		order: append([]string(nil), t.order...),
	}
	for id, row := range t.rows {
		out.rows[id] = cp(row)
	}
	return out
}

func (t *table[T]) insert(id string, row T) {
	if _, exists := t.rows[id]; !exists {
		t.order = append(t.order, id)
	}
	t.rows[id] = row
}

func (t *table[T]) remove(id string) {
	delete(t.rows, id)
	for i, v := range t.order {
		if v == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			return
		}
	}
}

func (t *table[T]) each(fn func(T)) {
	for _, id := range t.order {
		fn(t.rows[id])
	}
}

func same[T any](v T) T { return v }

type memData struct {
	users         *table[model.User]
	jobs          *table[model.Job]
	applications  *table[model.Application]
	bids          *table[model.Bid]
	contracts     *table[model.Contract]
	reviews       *table[model.Review]
	notifications *table[model.Notification]
}

func newMemData() *memData {
	return &memData{
		users:         newTable[model.User](),
		jobs:          newTable[model.Job](),
		applications:  newTable[model.Application](),
		bids:          newTable[model.Bid](),
		contracts:     newTable[model.Contract](),
		reviews:       newTable[model.Review](),
		notifications: newTable[model.Notification](),
	}
}

func (d *memData) clone() *memData {
	return &memData{
		users:         d.users.clone(model.User.Clone),
		jobs:          d.jobs.clone(model.Job.Clone),
		applications:  d.applications.clone(same[model.Application]),
		bids:          d.bids.clone(same[model.Bid]),
		contracts:     d.contracts.clone(model.Contract.Clone),
		reviews:       d.reviews.clone(same[model.Review]),
		notifications: d.notifications.clone(model.Notification.Clone),
	}
}

// Memory is the in-process store. A single mutex owns all state; Atomic
// stages writes on a copy and swaps it in only when the callback succeeds.
type Memory struct {
	mu   sync.RWMutex
	data *memData
}

func NewMemory() *Memory {
	return &Memory{data: newMemData()}
}

func (m *Memory) Atomic(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	staged := &memTx{data: m.data.clone()}
	if err := fn(staged); err != nil {
		return err
	}
	m.data = staged.data
	return nil
}

func (m *Memory) view() *memTx {
	return &memTx{data: m.data}
}

func (m *Memory) GetUser(ctx context.Context, id string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view().GetUser(ctx, id)
}

func (m *Memory) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view().FindUserByEmail(ctx, email)
}

func (m *Memory) GetJob(ctx context.Context, id string) (*model.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view().GetJob(ctx, id)
}

func (m *Memory) ListJobs(ctx context.Context, f JobFilter) ([]model.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view().ListJobs(ctx, f)
}

func (m *Memory) CountJobs(ctx context.Context, f JobFilter) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view().CountJobs(ctx, f)
}

func (m *Memory) GetApplication(ctx context.Context, id string) (*model.Application, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view().GetApplication(ctx, id)
}

func (m *Memory) FindApplication(ctx context.Context, jobID, seekerID string) (*model.Application, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view().FindApplication(ctx, jobID, seekerID)
}

func (m *Memory) ListApplications(ctx context.Context, f EngagementFilter) ([]model.Application, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view().ListApplications(ctx, f)
}

func (m *Memory) GetBid(ctx context.Context, id string) (*model.Bid, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view().GetBid(ctx, id)
}

func (m *Memory) ListBids(ctx context.Context, f EngagementFilter) ([]model.Bid, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view().ListBids(ctx, f)
}

func (m *Memory) GetContract(ctx context.Context, id string) (*model.Contract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view().GetContract(ctx, id)
}

func (m *Memory) ListContracts(ctx context.Context, f ContractFilter) ([]model.Contract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view().ListContracts(ctx, f)
}

func (m *Memory) ListReviewsFor(ctx context.Context, userID string) ([]model.Review, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view().ListReviewsFor(ctx, userID)
}

func (m *Memory) GetNotification(ctx context.Context, id string) (*model.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view().GetNotification(ctx, id)
}

func (m *Memory) ListNotifications(ctx context.Context, f NotificationFilter) ([]model.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view().ListNotifications(ctx, f)
}

// memTx operates on a snapshot of memData. The owning Memory holds the lock.
type memTx struct {
	data *memData
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, model.ErrNotFound)
}

func (t *memTx) GetUser(_ context.Context, id string) (*model.User, error) {
	u, ok := t.data.users.rows[id]
	if !ok {
		return nil, notFound("user", id)
	}
	u = u.Clone()
	return &u, nil
}

func (t *memTx) FindUserByEmail(_ context.Context, email string) (*model.User, error) {
	for _, id := range t.data.users.order {
		u := t.data.users.rows[id]
		if strings.EqualFold(u.Email, email) {
			u = u.Clone()
			return &u, nil
		}
	}
	return nil, notFound("user with email", email)
}

func (t *memTx) GetJob(_ context.Context, id string) (*model.Job, error) {
	j, ok := t.data.jobs.rows[id]
	if !ok {
		return nil, notFound("job", id)
	}
	j = j.Clone()
	return &j, nil
}

func (t *memTx) ListJobs(_ context.Context, f JobFilter) ([]model.Job, error) {
	out := []model.Job{}
	t.data.jobs.each(func(j model.Job) {
		if f.EmployerID != "" && j.EmployerID != f.EmployerID {
			return
		}
		out = append(out, j.Clone())
	})
	return out, nil
}

func (t *memTx) CountJobs(ctx context.Context, f JobFilter) (int64, error) {
	jobs, err := t.ListJobs(ctx, f)
	return int64(len(jobs)), err
}

func (t *memTx) GetApplication(_ context.Context, id string) (*model.Application, error) {
	a, ok := t.data.applications.rows[id]
	if !ok {
		return nil, notFound("application", id)
	}
	return &a, nil
}

func (t *memTx) FindApplication(_ context.Context, jobID, seekerID string) (*model.Application, error) {
	for _, id := range t.data.applications.order {
		a := t.data.applications.rows[id]
		if a.JobID == jobID && a.SeekerID == seekerID {
			return &a, nil
		}
	}
	return nil, notFound("application for job", jobID)
}

func matchEngagement(f EngagementFilter, jobID, seekerID string) bool {
	if f.SeekerID != "" && seekerID != f.SeekerID {
		return false
	}
	if f.JobIDs == nil {
		return true
	}
	for _, id := range f.JobIDs {
		if id == jobID {
			return true
		}
	}
	return false
}

func (t *memTx) ListApplications(_ context.Context, f EngagementFilter) ([]model.Application, error) {
	out := []model.Application{}
	t.data.applications.each(func(a model.Application) {
		if matchEngagement(f, a.JobID, a.SeekerID) {
			out = append(out, a)
		}
	})
	return out, nil
}

func (t *memTx) GetBid(_ context.Context, id string) (*model.Bid, error) {
	b, ok := t.data.bids.rows[id]
	if !ok {
		return nil, notFound("bid", id)
	}
	return &b, nil
}

func (t *memTx) ListBids(_ context.Context, f EngagementFilter) ([]model.Bid, error) {
	out := []model.Bid{}
	t.data.bids.each(func(b model.Bid) {
		if matchEngagement(f, b.JobID, b.SeekerID) {
			out = append(out, b)
		}
	})
	return out, nil
}

func (t *memTx) GetContract(_ context.Context, id string) (*model.Contract, error) {
	c, ok := t.data.contracts.rows[id]
	if !ok {
		return nil, notFound("contract", id)
	}
	c = c.Clone()
	return &c, nil
}

func (t *memTx) ListContracts(_ context.Context, f ContractFilter) ([]model.Contract, error) {
	out := []model.Contract{}
	t.data.contracts.each(func(c model.Contract) {
		if f.SeekerID != "" && c.SeekerID != f.SeekerID {
			return
		}
		if f.EmployerID != "" && c.EmployerID != f.EmployerID {
			return
		}
		if f.Party != "" && c.SeekerID != f.Party && c.EmployerID != f.Party {
			return
		}
		out = append(out, c.Clone())
	})
	return out, nil
}

func (t *memTx) ListReviewsFor(_ context.Context, userID string) ([]model.Review, error) {
	out := []model.Review{}
	t.data.reviews.each(func(r model.Review) {
		if r.ToUserID == userID {
			out = append(out, r)
		}
	})
	return out, nil
}

func (t *memTx) GetNotification(_ context.Context, id string) (*model.Notification, error) {
	n, ok := t.data.notifications.rows[id]
	if !ok {
		return nil, notFound("notification", id)
	}
	n = n.Clone()
	return &n, nil
}

func (t *memTx) ListNotifications(_ context.Context, f NotificationFilter) ([]model.Notification, error) {
	out := []model.Notification{}
	t.data.notifications.each(func(n model.Notification) {
		if f.UserID != "" && n.UserID != f.UserID {
			return
		}
		if f.UnreadOnly && n.Read {
			return
		}
		out = append(out, n.Clone())
	})
	return out, nil
}

func (t *memTx) CreateUser(_ context.Context, u *model.User) error {
	if _, exists := t.data.users.rows[u.ID]; exists {
		return fmt.Errorf("user %s: %w", u.ID, model.ErrConflict)
	}
	for _, existing := range t.data.users.rows {
		if strings.EqualFold(existing.Email, u.Email) {
			return fmt.Errorf("user email %s: %w", u.Email, model.ErrEmailTaken)
		}
	}
	u.Version = 1
	t.data.users.insert(u.ID, u.Clone())
	return nil
}

func (t *memTx) UpdateUser(_ context.Context, u *model.User) error {
	current, ok := t.data.users.rows[u.ID]
	if !ok {
		return notFound("user", u.ID)
	}
	if current.Version != u.Version {
		return fmt.Errorf("user %s: %w", u.ID, model.ErrConflict)
	}
	u.Version++
	t.data.users.insert(u.ID, u.Clone())
	return nil
}

func (t *memTx) CreateJob(_ context.Context, j *model.Job) error {
	if _, exists := t.data.jobs.rows[j.ID]; exists {
		return fmt.Errorf("job %s: %w", j.ID, model.ErrConflict)
	}
	t.data.jobs.insert(j.ID, j.Clone())
	return nil
}

func (t *memTx) DeleteJob(_ context.Context, id string) error {
	if _, ok := t.data.jobs.rows[id]; !ok {
		return notFound("job", id)
	}
	t.data.jobs.remove(id)
	return nil
}

func (t *memTx) CreateApplication(_ context.Context, a *model.Application) error {
	for _, existing := range t.data.applications.rows {
		if existing.JobID == a.JobID && existing.SeekerID == a.SeekerID {
			return fmt.Errorf("application for job %s: %w", a.JobID, model.ErrDuplicateApplication)
		}
	}
	a.Version = 1
	t.data.applications.insert(a.ID, *a)
	return nil
}

func (t *memTx) UpdateApplication(_ context.Context, a *model.Application) error {
	current, ok := t.data.applications.rows[a.ID]
	if !ok {
		return notFound("application", a.ID)
	}
	if current.Version != a.Version {
		return fmt.Errorf("application %s: %w", a.ID, model.ErrConflict)
	}
	a.Version++
	t.data.applications.insert(a.ID, *a)
	return nil
}

func (t *memTx) CreateBid(_ context.Context, b *model.Bid) error {
	if _, exists := t.data.bids.rows[b.ID]; exists {
		return fmt.Errorf("bid %s: %w", b.ID, model.ErrConflict)
	}
	b.Version = 1
	t.data.bids.insert(b.ID, *b)
	return nil
}

func (t *memTx) UpdateBid(_ context.Context, b *model.Bid) error {
	current, ok := t.data.bids.rows[b.ID]
	if !ok {
		return notFound("bid", b.ID)
	}
	if current.Version != b.Version {
		return fmt.Errorf("bid %s: %w", b.ID, model.ErrConflict)
	}
	b.Version++
	t.data.bids.insert(b.ID, *b)
	return nil
}

func (t *memTx) CreateContract(_ context.Context, c *model.Contract) error {
	if _, exists := t.data.contracts.rows[c.ID]; exists {
		return fmt.Errorf("contract %s: %w", c.ID, model.ErrConflict)
	}
	c.Version = 1
	t.data.contracts.insert(c.ID, c.Clone())
	return nil
}

func (t *memTx) UpdateContract(_ context.Context, c *model.Contract) error {
	current, ok := t.data.contracts.rows[c.ID]
	if !ok {
		return notFound("contract", c.ID)
	}
	if current.Version != c.Version {
		return fmt.Errorf("contract %s: %w", c.ID, model.ErrConflict)
	}
	c.Version++
	t.data.contracts.insert(c.ID, c.Clone())
	return nil
}

func (t *memTx) CreateReview(_ context.Context, r *model.Review) error {
	for _, existing := range t.data.reviews.rows {
		if existing.ContractID == r.ContractID {
			return fmt.Errorf("review for contract %s: %w", r.ContractID, model.ErrAlreadyReviewed)
		}
	}
	t.data.reviews.insert(r.ID, *r)
	return nil
}

func (t *memTx) CreateNotification(_ context.Context, n *model.Notification) error {
	if _, exists := t.data.notifications.rows[n.ID]; exists {
		return fmt.Errorf("notification %s: %w", n.ID, model.ErrConflict)
	}
	n.Version = 1
	t.data.notifications.insert(n.ID, n.Clone())
	return nil
}

func (t *memTx) UpdateNotification(_ context.Context, n *model.Notification) error {
	current, ok := t.data.notifications.rows[n.ID]
	if !ok {
		return notFound("notification", n.ID)
	}
	if current.Version != n.Version {
		return fmt.Errorf("notification %s: %w", n.ID, model.ErrConflict)
	}
	n.Version++
	t.data.notifications.insert(n.ID, n.Clone())
	return nil
}
