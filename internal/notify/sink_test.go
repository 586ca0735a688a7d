package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap/zaptest"

	"jobmatch-service/internal/model"
	"jobmatch-service/internal/store"
	"jobmatch-service/pkg/clock"
	"jobmatch-service/prometheus"
)

type recordingPublisher struct {
	mu   sync.Mutex
	got  []model.Notification
	fail error
}

func (r *recordingPublisher) Publish(_ context.Context, n model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
	return r.fail
}

func (r *recordingPublisher) Close() error { return nil }

func newSink(t *testing.T, pub Publisher) (*Sink, *store.Memory, *prometheus.Metrics) {
	t.Helper()
	st := store.NewMemory()
	m := prometheus.NewMetrics("test", promclient.NewRegistry())
	clk := clock.NewFake(time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC))
	return NewSink(st, pub, clk, zaptest.NewLogger(t), m), st, m
}

func TestNotifyIsTransactional(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	sink, st, _ := newSink(t, pub)

	boom := errors.New("boom")
	err := st.Atomic(ctx, func(tx store.Tx) error {
		if _, err := sink.Notify(ctx, tx, "u1", "hello", model.NotificationInfo, nil); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Atomic() error = %v", err)
	}

	notes, _ := st.ListNotifications(ctx, store.NotificationFilter{UserID: "u1"})
	if len(notes) != 0 {
		t.Fatalf("notification survived rollback: %+v", notes)
	}
}

func TestNotifyAndDeliver(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	sink, st, m := newSink(t, pub)

	var n *model.Notification
	err := st.Atomic(ctx, func(tx store.Tx) error {
		var err error
		n, err = sink.Notify(ctx, tx, "u1", "Sam applied for Barista", model.NotificationInfo, Data{"job_id": "j1"})
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	sink.Deliver(ctx, n)

	if len(pub.got) != 1 || pub.got[0].Message != "Sam applied for Barista" {
		t.Fatalf("published = %+v", pub.got)
	}
	var data Data
	if err := json.Unmarshal(pub.got[0].Data, &data); err != nil || data["job_id"] != "j1" {
		t.Fatalf("data = %s (%v)", pub.got[0].Data, err)
	}
	if got := testutil.ToFloat64(m.NotificationsCounter.WithLabelValues("info")); got != 1 {
		t.Fatalf("notification counter = %v, want 1", got)
	}
	if !n.Timestamp.Equal(time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("timestamp = %v", n.Timestamp)
	}
}

func TestDeliverSwallowsPublishErrors(t *testing.T) {
	pub := &recordingPublisher{fail: errors.New("broker down")}
	sink, _, _ := newSink(t, pub)
	sink.Deliver(context.Background(), &model.Notification{ID: "n1", Type: model.NotificationSuccess})
	if len(pub.got) != 1 {
		t.Fatalf("publish attempts = %d, want 1", len(pub.got))
	}
}

func TestListAndMarkRead(t *testing.T) {
	ctx := context.Background()
	sink, st, _ := newSink(t, nil)

	var ids []string
	_ = st.Atomic(ctx, func(tx store.Tx) error {
		for _, msg := range []string{"first", "second"} {
			n, err := sink.Notify(ctx, tx, "u1", msg, model.NotificationInfo, nil)
			if err != nil {
				return err
			}
			ids = append(ids, n.ID)
		}
		_, err := sink.Notify(ctx, tx, "u2", "other", model.NotificationInfo, nil)
		return err
	})

	owner := model.Session{UserID: "u1", Type: model.UserTypeSeeker}
	if _, err := sink.MarkRead(ctx, model.Session{UserID: "u2", Type: model.UserTypeSeeker}, ids[0]); !errors.Is(err, model.ErrForbidden) {
		t.Fatalf("MarkRead by stranger error = %v, want ErrForbidden", err)
	}
	n, err := sink.MarkRead(ctx, owner, ids[0])
	if err != nil || !n.Read {
		t.Fatalf("MarkRead() = %+v, %v", n, err)
	}

	all, _ := sink.List(ctx, owner, false)
	if len(all) != 2 || all[0].Message != "first" {
		t.Fatalf("List(all) = %+v", all)
	}
	unread, _ := sink.List(ctx, owner, true)
	if len(unread) != 1 || unread[0].Message != "second" {
		t.Fatalf("List(unread) = %+v", unread)
	}
}

func TestRoutingKey(t *testing.T) {
	if got := RoutingKey(model.Notification{Type: model.NotificationSuccess}); got != "notification.success" {
		t.Fatalf("RoutingKey() = %q", got)
	}
}
