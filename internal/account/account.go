package account

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"jobmatch-service/internal/model"
	"jobmatch-service/internal/schedule"
	"jobmatch-service/internal/store"
	"jobmatch-service/pkg/clock"
	"jobmatch-service/prometheus"
)

// DefaultLocation is assigned to new accounts until they set their own.
var DefaultLocation = model.Location{Lat: 3.1390, Lng: 101.6869, Address: "Kuala Lumpur"}

type RegisterInput struct {
	Name     string         `json:"name"`
	Email    string         `json:"email"`
	Phone    string         `json:"phone"`
	Password string         `json:"password"`
	Type     model.UserType `json:"type"`
}

type ProfileUpdate struct {
	Name  *string `json:"name"`
	Phone *string `json:"phone"`
}

type Service struct {
	store         store.Store
	clock         clock.Clock
	log           *zap.Logger
	metrics       *prometheus.Metrics
	defaultRadius float64
	bcryptCost    int
}

func NewService(st store.Store, clk clock.Clock, log *zap.Logger, metrics *prometheus.Metrics, defaultRadiusKm float64) *Service {
	return &Service{
		store:         st,
		clock:         clk,
		log:           log,
		metrics:       metrics,
		defaultRadius: defaultRadiusKm,
		bcryptCost:    bcrypt.DefaultCost,
	}
}

// Register creates a seeker or employer account with marketplace defaults.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	if err := validateRegistration(in); err != nil {
		s.metrics.RecordAuth("register", prometheus.OutcomeRejected)
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		s.metrics.RecordAuth("register", prometheus.OutcomeError)
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		ID:           uuid.NewString(),
		Type:         in.Type,
		Name:         in.Name,
		Email:        in.Email,
		Phone:        strings.TrimSpace(in.Phone),
		Password:     string(hash),
		Location:     DefaultLocation,
		Radius:       s.defaultRadius,
		Skills:       []string{},
		Availability: model.Availability{},
		Portfolio:    []model.PortfolioItem{},
		Subscription: model.SubscriptionFree,
		CreatedAt:    s.clock.Now(),
	}

	err = s.store.Atomic(ctx, func(tx store.Tx) error {
		if _, err := tx.FindUserByEmail(ctx, in.Email); err == nil {
			return fmt.Errorf("email %s: %w", in.Email, model.ErrEmailTaken)
		} else if !errors.Is(err, model.ErrNotFound) {
			return err
		}
		return tx.CreateUser(ctx, user)
	})
	if err != nil {
		if errors.Is(err, model.ErrEmailTaken) {
			s.metrics.RecordAuth("register", prometheus.OutcomeRejected)
			s.log.Warn("Registration with existing email", zap.String("email", in.Email))
		} else {
			s.metrics.RecordAuth("register", prometheus.OutcomeError)
			s.log.Error("Failed to create user", zap.String("email", in.Email), zap.Error(err))
		}
		return nil, err
	}

	s.metrics.RecordAuth("register", prometheus.OutcomeSuccess)
	s.log.Info("User registered",
		zap.String("user_id", user.ID),
		zap.String("type", string(user.Type)))
	return user, nil
}

func validateRegistration(in RegisterInput) error {
	switch {
	case in.Name == "":
		return fmt.Errorf("name is required: %w", model.ErrInvalidInput)
	case in.Email == "":
		return fmt.Errorf("email is required: %w", model.ErrInvalidInput)
	case len(in.Password) < 6:
		return fmt.Errorf("password must be at least 6 characters: %w", model.ErrInvalidInput)
	case !in.Type.Valid():
		return fmt.Errorf("account type %q: %w", in.Type, model.ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return fmt.Errorf("email %q: %w", in.Email, model.ErrInvalidInput)
	}
	return nil
}

// Login checks the credentials and returns the matching account.
func (s *Service) Login(ctx context.Context, email, password string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			s.metrics.RecordAuth("login", prometheus.OutcomeRejected)
			s.log.Warn("Login for unknown email", zap.String("email", email))
			return nil, model.ErrInvalidCredentials
		}
		s.metrics.RecordAuth("login", prometheus.OutcomeError)
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		s.metrics.RecordAuth("login", prometheus.OutcomeRejected)
		s.log.Warn("Invalid password", zap.String("email", email))
		return nil, model.ErrInvalidCredentials
	}

	s.metrics.RecordAuth("login", prometheus.OutcomeSuccess)
	s.log.Info("User logged in", zap.String("user_id", user.ID))
	return user, nil
}

// Get returns the caller's profile.
func (s *Service) Get(ctx context.Context, sess model.Session) (*model.User, error) {
	if sess.UserID == "" {
		return nil, fmt.Errorf("no active session: %w", model.ErrForbidden)
	}
	return s.store.GetUser(ctx, sess.UserID)
}

// mutate applies fn to the caller's profile inside one transaction.
func (s *Service) mutate(ctx context.Context, sess model.Session, op string, fn func(u *model.User) error) (*model.User, error) {
	if sess.UserID == "" {
		return nil, fmt.Errorf("no active session: %w", model.ErrForbidden)
	}
	var out *model.User
	err := s.store.Atomic(ctx, func(tx store.Tx) error {
		u, err := tx.GetUser(ctx, sess.UserID)
		if err != nil {
			return err
		}
		if err := fn(u); err != nil {
			return err
		}
		if err := tx.UpdateUser(ctx, u); err != nil {
			return err
		}
		out = u
		return nil
	})
	if err != nil {
		s.log.Warn("Profile update rejected", zap.String("operation", op), zap.String("user_id", sess.UserID), zap.Error(err))
		return nil, err
	}
	s.log.Info("Profile updated", zap.String("operation", op), zap.String("user_id", sess.UserID))
	return out, nil
}

func (s *Service) UpdateProfile(ctx context.Context, sess model.Session, in ProfileUpdate) (*model.User, error) {
	return s.mutate(ctx, sess, "update_profile", func(u *model.User) error {
		if in.Name != nil {
			name := strings.TrimSpace(*in.Name)
			if name == "" {
				return fmt.Errorf("name must not be empty: %w", model.ErrInvalidInput)
			}
			u.Name = name
		}
		if in.Phone != nil {
			u.Phone = strings.TrimSpace(*in.Phone)
		}
		return nil
	})
}

// SetLocation updates the caller's position and, when radiusKm > 0, their
// search radius.
func (s *Service) SetLocation(ctx context.Context, sess model.Session, loc model.Location, radiusKm float64) (*model.User, error) {
	if loc.Lat < -90 || loc.Lat > 90 || loc.Lng < -180 || loc.Lng > 180 {
		return nil, fmt.Errorf("coordinates %v,%v out of range: %w", loc.Lat, loc.Lng, model.ErrInvalidInput)
	}
	if radiusKm < 0 {
		return nil, fmt.Errorf("radius %v: %w", radiusKm, model.ErrInvalidInput)
	}
	return s.mutate(ctx, sess, "set_location", func(u *model.User) error {
		u.Location = loc
		if radiusKm > 0 {
			u.Radius = radiusKm
		}
		return nil
	})
}

// NormalizeSkill trims and lowercases a skill tag.
func NormalizeSkill(skill string) string {
	return strings.ToLower(strings.TrimSpace(skill))
}

// AddSkill adds a skill tag; adding an existing tag is a no-op.
func (s *Service) AddSkill(ctx context.Context, sess model.Session, skill string) (*model.User, error) {
	skill = NormalizeSkill(skill)
	if skill == "" {
		return nil, fmt.Errorf("skill must not be empty: %w", model.ErrInvalidInput)
	}
	return s.mutate(ctx, sess, "add_skill", func(u *model.User) error {
		if !u.HasSkill(skill) {
			u.Skills = append(u.Skills, skill)
		}
		return nil
	})
}

func (s *Service) RemoveSkill(ctx context.Context, sess model.Session, skill string) (*model.User, error) {
	skill = NormalizeSkill(skill)
	return s.mutate(ctx, sess, "remove_skill", func(u *model.User) error {
		kept := u.Skills[:0]
		for _, existing := range u.Skills {
			if existing != skill {
				kept = append(kept, existing)
			}
		}
		u.Skills = kept
		return nil
	})
}

// SetAvailability replaces the caller's roster.
func (s *Service) SetAvailability(ctx context.Context, sess model.Session, avail model.Availability) (*model.User, error) {
	if err := schedule.ValidateAvailability(avail); err != nil {
		return nil, err
	}
	if avail == nil {
		avail = model.Availability{}
	}
	return s.mutate(ctx, sess, "set_availability", func(u *model.User) error {
		u.Availability = avail.Clone()
		return nil
	})
}

// SetWeeklyAvailability accepts the day-keyed roster shape and stores it as
// dated entries starting from today.
func (s *Service) SetWeeklyAvailability(ctx context.Context, sess model.Session, days map[string][]model.Slot) (*model.User, error) {
	avail, err := schedule.AvailabilityFromWeekdays(days, s.clock.Now())
	if err != nil {
		return nil, err
	}
	return s.SetAvailability(ctx, sess, avail)
}

func (s *Service) AddPortfolioItem(ctx context.Context, sess model.Session, item model.PortfolioItem) (*model.User, error) {
	item.Title = strings.TrimSpace(item.Title)
	item.Description = strings.TrimSpace(item.Description)
	if item.Title == "" || item.Description == "" {
		return nil, fmt.Errorf("portfolio item needs a title and description: %w", model.ErrInvalidInput)
	}
	item.ID = uuid.NewString()
	return s.mutate(ctx, sess, "add_portfolio_item", func(u *model.User) error {
		u.Portfolio = append(u.Portfolio, item)
		return nil
	})
}

func (s *Service) RemovePortfolioItem(ctx context.Context, sess model.Session, itemID string) (*model.User, error) {
	return s.mutate(ctx, sess, "remove_portfolio_item", func(u *model.User) error {
		for i, item := range u.Portfolio {
			if item.ID == itemID {
				u.Portfolio = append(u.Portfolio[:i], u.Portfolio[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("portfolio item %s: %w", itemID, model.ErrNotFound)
	})
}

// ChangeSubscription switches the caller's tier. No payment is taken.
func (s *Service) ChangeSubscription(ctx context.Context, sess model.Session, tier model.Subscription) (*model.User, error) {
	if !tier.Valid() {
		return nil, fmt.Errorf("subscription %q: %w", tier, model.ErrInvalidInput)
	}
	return s.mutate(ctx, sess, "change_subscription", func(u *model.User) error {
		u.Subscription = tier
		return nil
	})
}
