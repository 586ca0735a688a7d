package model

import (
	"time"

	"github.com/lib/pq"
)

type UserType string

const (
	UserTypeSeeker   UserType = "seeker"
	UserTypeEmployer UserType = "employer"
)

func (t UserType) Valid() bool {
	return t == UserTypeSeeker || t == UserTypeEmployer
}

type Subscription string

const (
	SubscriptionFree       Subscription = "free"
	SubscriptionPro        Subscription = "pro"
	SubscriptionEnterprise Subscription = "enterprise"
)

func (s Subscription) Valid() bool {
	switch s {
	case SubscriptionFree, SubscriptionPro, SubscriptionEnterprise:
		return true
	}
	return false
}

type Location struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address,omitempty"`
}

// Slot is a time-of-day window in "HH:MM" form.
type Slot struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// AvailabilityDay is one dated entry of a seeker's roster. Date uses the
// "2006-01-02" layout.
type AvailabilityDay struct {
	Date   string `json:"date"`
	Slots  []Slot `json:"slots"`
	Booked bool   `json:"booked,omitempty"`
}

type Availability []AvailabilityDay

func (a Availability) Clone() Availability {
	if a == nil {
		return nil
	}
	out := make(Availability, len(a))
	for i, d := range a {
		out[i] = d
		out[i].Slots = append([]Slot(nil), d.Slots...)
	}
	return out
}

type PortfolioItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Duration    string `json:"duration,omitempty"`
}

type User struct {
	ID           string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Type         UserType        `json:"type" gorm:"type:varchar(16);not null;index"`
	Name         string          `json:"name" gorm:"not null"`
	Email        string          `json:"email" gorm:"uniqueIndex;not null"`
	Phone        string          `json:"phone"`
	Password     string          `json:"-" gorm:"not null"`
	Location     Location        `json:"location" gorm:"serializer:json"`
	Radius       float64         `json:"radius"`
	Skills       pq.StringArray  `json:"skills" gorm:"type:text[]"`
	Availability Availability    `json:"availability" gorm:"serializer:json"`
	Portfolio    []PortfolioItem `json:"portfolio" gorm:"serializer:json"`
	Subscription Subscription    `json:"subscription" gorm:"type:varchar(16);default:'free'"`
	Rating       float64         `json:"rating"`
	ReviewCount  int             `json:"reviewCount"`
	Version      int             `json:"-" gorm:"not null;default:1"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"-"`
}

// Clone returns a deep copy so callers never share slices with the store.
func (u User) Clone() User {
	u.Skills = append(pq.StringArray(nil), u.Skills...)
	u.Availability = u.Availability.Clone()
	u.Portfolio = append([]PortfolioItem(nil), u.Portfolio...)
	return u
}

func (u User) HasSkill(skill string) bool {
	for _, s := range u.Skills {
		if s == skill {
			return true
		}
	}
	return false
}
