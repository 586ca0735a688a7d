package model

import (
	"time"

	"github.com/lib/pq"
)

type JobType string

const (
	JobTypePartTime JobType = "part-time"
	JobTypeFullTime JobType = "full-time"
)

func (t JobType) Valid() bool {
	return t == JobTypePartTime || t == JobTypeFullTime
}

type ScheduleKind string

const (
	ScheduleRecurring ScheduleKind = "recurring"
	ScheduleSpecific  ScheduleKind = "specific"
)

// ScheduleDay names either a weekday (recurring schedules) or a calendar
// date in "2006-01-02" form (specific schedules).
type ScheduleDay struct {
	Weekday string `json:"weekday,omitempty"`
	Date    string `json:"date,omitempty"`
	Slots   []Slot `json:"slots"`
}

type Schedule struct {
	Kind ScheduleKind  `json:"kind"`
	Days []ScheduleDay `json:"days"`
}

func (s Schedule) Clone() Schedule {
	days := make([]ScheduleDay, len(s.Days))
	for i, d := range s.Days {
		days[i] = d
		days[i].Slots = append([]Slot(nil), d.Slots...)
	}
	s.Days = days
	return s
}

type Job struct {
	ID          string         `json:"id" gorm:"primaryKey;type:varchar(36)"`
	EmployerID  string         `json:"employerId" gorm:"type:varchar(36);not null;index"`
	Title       string         `json:"title" gorm:"not null"`
	Company     string         `json:"company"`
	Type        JobType        `json:"type" gorm:"type:varchar(16);not null"`
	Salary      float64        `json:"salary"`
	Location    string         `json:"location"`
	Lat         float64        `json:"lat"`
	Lng         float64        `json:"lng"`
	Description string         `json:"description"`
	Skills      pq.StringArray `json:"skills" gorm:"type:text[]"`
	Schedule    Schedule       `json:"schedule" gorm:"serializer:json"`
	Posted      time.Time      `json:"posted" gorm:"index"`
	// Seq is assigned by the database on insert and fixes listing order.
	Seq int64 `json:"-" gorm:"autoIncrement;uniqueIndex"`
}

func (j Job) Clone() Job {
	j.Skills = append(pq.StringArray(nil), j.Skills...)
	j.Schedule = j.Schedule.Clone()
	return j
}
