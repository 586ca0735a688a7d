package model

import (
	"time"

	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

type Application struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	JobID     string    `json:"jobId" gorm:"type:varchar(36);not null;uniqueIndex:idx_application_job_seeker"`
	SeekerID  string    `json:"seekerId" gorm:"type:varchar(36);not null;uniqueIndex:idx_application_job_seeker"`
	Status    Status    `json:"status" gorm:"type:varchar(16);not null"`
	AppliedAt time.Time `json:"appliedAt"`
	Version   int       `json:"-" gorm:"not null;default:1"`
}

type Bid struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	JobID     string    `json:"jobId" gorm:"type:varchar(36);not null;index"`
	SeekerID  string    `json:"seekerId" gorm:"type:varchar(36);not null;index"`
	Amount    float64   `json:"amount"`
	Message   string    `json:"message"`
	Status    Status    `json:"status" gorm:"type:varchar(16);not null"`
	CreatedAt time.Time `json:"createdAt"`
	Version   int       `json:"-" gorm:"not null;default:1"`
}

type ContractSource string

const (
	SourceApplication ContractSource = "application"
	SourceBid         ContractSource = "bid"
)

type ContractStatus string

const (
	ContractActive    ContractStatus = "active"
	ContractCompleted ContractStatus = "completed"
)

type Contract struct {
	ID         string         `json:"id" gorm:"primaryKey;type:varchar(36)"`
	JobID      string         `json:"jobId" gorm:"type:varchar(36);not null;index"`
	SeekerID   string         `json:"seekerId" gorm:"type:varchar(36);not null;index"`
	EmployerID string         `json:"employerId" gorm:"type:varchar(36);not null;index"`
	Source     ContractSource `json:"source" gorm:"type:varchar(16);not null"`
	SourceID   string         `json:"sourceId" gorm:"type:varchar(36);not null"`
	Status     ContractStatus `json:"status" gorm:"type:varchar(16);not null"`
	StartDate  time.Time      `json:"startDate"`
	Rate       float64        `json:"rate"`
	ClockIn    *time.Time     `json:"clockIn,omitempty"`
	ClockOut   *time.Time     `json:"clockOut,omitempty"`
	Reviewed   bool           `json:"reviewed"`
	Version    int            `json:"-" gorm:"not null;default:1"`
}

func (c Contract) Clone() Contract {
	if c.ClockIn != nil {
		t := *c.ClockIn
		c.ClockIn = &t
	}
	if c.ClockOut != nil {
		t := *c.ClockOut
		c.ClockOut = &t
	}
	return c
}

type Review struct {
	ID         string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ContractID string    `json:"contractId" gorm:"type:varchar(36);not null;uniqueIndex"`
	FromUserID string    `json:"fromUserId" gorm:"type:varchar(36);not null"`
	ToUserID   string    `json:"toUserId" gorm:"type:varchar(36);not null;index"`
	Rating     int       `json:"rating"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"createdAt"`
}

type NotificationType string

const (
	NotificationInfo    NotificationType = "info"
	NotificationSuccess NotificationType = "success"
	NotificationWarning NotificationType = "warning"
	NotificationError   NotificationType = "error"
)

type Notification struct {
	ID        string           `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID    string           `json:"userId" gorm:"type:varchar(36);not null;index"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type" gorm:"type:varchar(16);not null"`
	Read      bool             `json:"read" gorm:"column:is_read"`
	Timestamp time.Time        `json:"timestamp" gorm:"column:sent_at;index"`
	Data      datatypes.JSON   `json:"data,omitempty"`
	Version   int              `json:"-" gorm:"not null;default:1"`
}

func (n Notification) Clone() Notification {
	n.Data = append(datatypes.JSON(nil), n.Data...)
	return n
}
