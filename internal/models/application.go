package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Status string

const (
	StatusApplied   Status = "Applied"
	StatusInterview Status = "Interview"
	StatusRejected  Status = "Rejected"
	StatusOffered   Status = "Offered"
	StatusWithdrawn Status = "Withdrawn"

	// StatusUnknown is the dashboard bucket for values outside the enum.
	// It is never accepted on write.
	StatusUnknown Status = "Unknown"
)

// Statuses lists the accepted values in display order.
var Statuses = []Status{StatusApplied, StatusInterview, StatusRejected, StatusOffered, StatusWithdrawn}

var statusColors = map[Status]string{
	StatusApplied:   "blue",
	StatusInterview: "yellow",
	StatusRejected:  "red",
	StatusOffered:   "green",
	StatusWithdrawn: "gray",
}

// ParseStatus canonicalizes s case-insensitively. ok is false when s is not
// one of the five application statuses.
func ParseStatus(s string) (Status, bool) {
	s = strings.TrimSpace(s)
	for _, st := range Statuses {
		if strings.EqualFold(s, string(st)) {
			return st, true
		}
	}
	return "", false
}

func (s Status) Valid() bool {
	_, ok := statusColors[s]
	return ok
}

// Color is the badge color used by dashboards; unknown values are gray.
func (s Status) Color() string {
	if c, ok := statusColors[s]; ok {
		return c
	}
	return "gray"
}

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

func ParseDate(s string) (datatypes.Date, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return datatypes.Date{}, err
	}
	return datatypes.Date(t), nil
}

func FormatDate(d datatypes.Date) string {
	t := time.Time(d)
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(DateLayout)
}

// Application is one tracked job application. Records are namespaced by
// OwnerID; every store query filters on it.
type Application struct {
	ID          string         `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID     string         `gorm:"size:36;index:idx_applications_owner_created,priority:1" json:"-"`
	Company     string         `json:"company"`
	Role        string         `json:"role"`
	Location    string         `json:"location"`
	Status      Status         `gorm:"size:16;index" json:"status"`
	AppliedDate datatypes.Date `json:"-"`
	Notes       string         `gorm:"type:text" json:"notes,omitempty"`
	ResumeURL   string         `json:"resume_url,omitempty"`
	CreatedAt   time.Time      `gorm:"<-:create;index:idx_applications_owner_created,priority:2" json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func (a *Application) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

func (a Application) MarshalJSON() ([]byte, error) {
	type plain Application
	return json.Marshal(struct {
		plain
		AppliedDate string `json:"applied_date"`
	}{plain(a), FormatDate(a.AppliedDate)})
}
