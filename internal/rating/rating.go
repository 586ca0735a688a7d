package rating

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"jobmatch-service/internal/model"
	"jobmatch-service/internal/notify"
	"jobmatch-service/internal/store"
	"jobmatch-service/pkg/clock"
	"jobmatch-service/prometheus"
)

// Aggregator accepts employer reviews of completed contracts and keeps each
// seeker's average rating in step with the reviews that target them.
type Aggregator struct {
	store   store.Store
	sink    *notify.Sink
	clock   clock.Clock
	log     *zap.Logger
	metrics *prometheus.Metrics
}

func NewAggregator(st store.Store, sink *notify.Sink, clk clock.Clock, log *zap.Logger, metrics *prometheus.Metrics) *Aggregator {
	return &Aggregator{store: st, sink: sink, clock: clk, log: log, metrics: metrics}
}

// SubmitReview records the employer's review of a completed contract.
func (a *Aggregator) SubmitReview(ctx context.Context, sess model.Session, contractID string, rating int, text string) (*model.Review, error) {
	log := a.log.With(zap.String("contract_id", contractID), zap.String("reviewer_id", sess.UserID))

	if rating < 1 || rating > 5 {
		log.Warn("Rejected review with out-of-range rating", zap.Int("rating", rating))
		a.metrics.RecordEngagement("review", prometheus.OutcomeRejected)
		return nil, fmt.Errorf("rating %d: %w", rating, model.ErrInvalidRating)
	}

	var (
		review *model.Review
		notes  []*model.Notification
	)
	err := a.store.Atomic(ctx, func(tx store.Tx) error {
		c, err := tx.GetContract(ctx, contractID)
		if err != nil {
			return err
		}
		if c.Reviewed {
			return fmt.Errorf("contract %s: %w", contractID, model.ErrAlreadyReviewed)
		}
		if c.Status != model.ContractCompleted {
			return fmt.Errorf("contract %s is %s: %w", contractID, c.Status, model.ErrInvalidState)
		}
		if c.EmployerID != sess.UserID {
			return fmt.Errorf("only the contract's employer may review it: %w", model.ErrForbidden)
		}

		review = &model.Review{
			ID:         uuid.NewString(),
			ContractID: c.ID,
			FromUserID: sess.UserID,
			ToUserID:   c.SeekerID,
			Rating:     rating,
			Text:       text,
			CreatedAt:  a.clock.Now(),
		}
		if err := tx.CreateReview(ctx, review); err != nil {
			return err
		}

		c.Reviewed = true
		if err := tx.UpdateContract(ctx, c); err != nil {
			return err
		}

		if err := recompute(ctx, tx, c.SeekerID); err != nil {
			return err
		}

		employerName := sess.UserID
		if employer, err := tx.GetUser(ctx, sess.UserID); err == nil {
			employerName = employer.Name
		}
		n, err := a.sink.Notify(ctx, tx, c.SeekerID,
			fmt.Sprintf("%s left you a %d-star review!", employerName, rating),
			model.NotificationInfo,
			notify.Data{"contract_id": c.ID, "review_id": review.ID})
		if err != nil {
			return err
		}
		notes = append(notes, n)
		return nil
	})

	if err != nil {
		a.metrics.RecordEngagement("review", outcome(err))
		log.Warn("Review not recorded", zap.Error(err))
		return nil, err
	}

	a.metrics.RecordEngagement("review", prometheus.OutcomeSuccess)
	a.metrics.RecordReview(rating)
	log.Info("Review recorded", zap.Int("rating", rating), zap.String("seeker_id", review.ToUserID))
	a.sink.Deliver(ctx, notes...)
	return review, nil
}

// recompute sets the user's rating to the mean of every review targeting
// them, rounded to one decimal, and reviewCount to their number. The user row
// must be locked before the reviews are listed.
func recompute(ctx context.Context, tx store.Tx, userID string) error {
	user, err := tx.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	reviews, err := tx.ListReviewsFor(ctx, userID)
	if err != nil {
		return err
	}

	ratings := make([]int, len(reviews))
	for i, r := range reviews {
		ratings[i] = r.Rating
	}
	user.Rating = Mean(ratings)
	user.ReviewCount = len(reviews)
	return tx.UpdateUser(ctx, user)
}

// Mean is the average rating rounded to one decimal, or 0 for no ratings.
func Mean(ratings []int) float64 {
	if len(ratings) == 0 {
		return 0
	}
	sum := 0
	for _, r := range ratings {
		sum += r
	}
	return math.Round(float64(sum)/float64(len(ratings))*10) / 10
}

func outcome(err error) string {
	switch {
	case err == nil:
		return prometheus.OutcomeSuccess
	case isDomainError(err):
		return prometheus.OutcomeRejected
	default:
		return prometheus.OutcomeError
	}
}

func isDomainError(err error) bool {
	for _, target := range []error{
		model.ErrNotFound, model.ErrAlreadyReviewed, model.ErrInvalidState,
		model.ErrForbidden, model.ErrConflict,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
