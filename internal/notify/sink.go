package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"jobmatch-service/internal/model"
	"jobmatch-service/internal/store"
	"jobmatch-service/pkg/clock"
	"jobmatch-service/prometheus"
)

// Data names the entities a notification refers to, e.g. {"job_id": ...}.
type Data map[string]string

// Publisher fans committed notifications out to other systems.
type Publisher interface {
	Publish(ctx context.Context, n model.Notification) error
	Close() error
}

// NopPublisher drops every notification.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, model.Notification) error { return nil }
func (NopPublisher) Close() error                                      { return nil }

// Sink records user notifications. Notify appends inside the caller's
// transaction; Deliver publishes after that transaction has committed.
type Sink struct {
	store     store.Store
	publisher Publisher
	clock     clock.Clock
	log       *zap.Logger
	metrics   *prometheus.Metrics
}

func NewSink(st store.Store, pub Publisher, clk clock.Clock, log *zap.Logger, metrics *prometheus.Metrics) *Sink {
	if pub == nil {
		pub = NopPublisher{}
	}
	return &Sink{store: st, publisher: pub, clock: clk, log: log, metrics: metrics}
}

// Notify appends a notification for userID within tx.
func (s *Sink) Notify(ctx context.Context, tx store.Tx, userID, message string, typ model.NotificationType, data Data) (*model.Notification, error) {
	var payload datatypes.JSON
	if len(data) > 0 {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encode notification data: %w", err)
		}
		payload = b
	}

	n := &model.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Message:   message,
		Type:      typ,
		Timestamp: s.clock.Now(),
		Data:      payload,
	}
	if err := tx.CreateNotification(ctx, n); err != nil {
		return nil, fmt.Errorf("store notification for %s: %w", userID, err)
	}
	return n, nil
}

// Deliver publishes committed notifications. Publishing failures are logged
// and never undo the committed operation.
func (s *Sink) Deliver(ctx context.Context, notes ...*model.Notification) {
	for _, n := range notes {
		if n == nil {
			continue
		}
		s.metrics.RecordNotification(string(n.Type))
		if err := s.publisher.Publish(ctx, *n); err != nil {
			s.log.Warn("Failed to publish notification",
				zap.String("notification_id", n.ID),
				zap.String("user_id", n.UserID),
				zap.Error(err))
		}
	}
}

// List returns the user's notifications in the order they were raised.
func (s *Sink) List(ctx context.Context, sess model.Session, unreadOnly bool) ([]model.Notification, error) {
	if sess.UserID == "" {
		return nil, fmt.Errorf("no active session: %w", model.ErrForbidden)
	}
	return s.store.ListNotifications(ctx, store.NotificationFilter{UserID: sess.UserID, UnreadOnly: unreadOnly})
}

// MarkRead flags one of the caller's notifications as read.
func (s *Sink) MarkRead(ctx context.Context, sess model.Session, id string) (*model.Notification, error) {
	var out *model.Notification
	err := s.store.Atomic(ctx, func(tx store.Tx) error {
		n, err := tx.GetNotification(ctx, id)
		if err != nil {
			return err
		}
		if n.UserID != sess.UserID {
			return fmt.Errorf("notification %s belongs to another user: %w", id, model.ErrForbidden)
		}
		if !n.Read {
			n.Read = true
			if err := tx.UpdateNotification(ctx, n); err != nil {
				return err
			}
		}
		out = n
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
