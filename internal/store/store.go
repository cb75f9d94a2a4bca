// Package store persists application records. Every operation is scoped to
// an owner id; a record owned by someone else behaves as if it did not exist.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/zaqqye/applytrack/internal/models"
	"github.com/zaqqye/applytrack/internal/pagination"
)

var ErrNotFound = errors.New("application not found")

// SortColumns maps the public sort keys to stored field names. The names are
// the same in SQL and MongoDB.
var SortColumns = map[string]string{
	"created_at":   "created_at",
	"updated_at":   "updated_at",
	"applied_date": "applied_date",
	"company":      "company",
	"role":         "role",
	"status":       "status",
}

type ApplicationStore interface {
	Create(ctx context.Context, ownerID string, app *models.Application) error
	Get(ctx context.Context, ownerID, id string) (models.Application, error)
	Update(ctx context.Context, ownerID, id string, patch ApplicationPatch) (models.Application, error)
	Delete(ctx context.Context, ownerID, id string) error
	List(ctx context.Context, ownerID string, q ListQuery) ([]models.Application, int64, error)
	// Snapshot returns every record of the owner, newest first.
	Snapshot(ctx context.Context, ownerID string) ([]models.Application, error)
}

type ListQuery struct {
	pagination.Params
	Status models.Status
	Text   string // matched against company, role and location
}

// ApplicationPatch carries the fields of an edit; nil fields are left alone.
type ApplicationPatch struct {
	Company     *string
	Role        *string
	Location    *string
	Status      *models.Status
	AppliedDate *datatypes.Date
	Notes       *string
	ResumeURL   *string
}

func (p ApplicationPatch) Empty() bool {
	return p.Company == nil && p.Role == nil && p.Location == nil && p.Status == nil &&
		p.AppliedDate == nil && p.Notes == nil && p.ResumeURL == nil
}

// Apply copies the set fields onto app.
func (p ApplicationPatch) Apply(app *models.Application) {
	if p.Company != nil {
		app.Company = *p.Company
	}
	if p.Role != nil {
		app.Role = *p.Role
	}
	if p.Location != nil {
		app.Location = *p.Location
	}
	if p.Status != nil {
		app.Status = *p.Status
	}
	if p.AppliedDate != nil {
		app.AppliedDate = *p.AppliedDate
	}
	if p.Notes != nil {
		app.Notes = *p.Notes
	}
	if p.ResumeURL != nil {
		app.ResumeURL = *p.ResumeURL
	}
}

// fields returns the set fields keyed by column name.
func (p ApplicationPatch) fields() map[string]interface{} {
	m := map[string]interface{}{}
	if p.Company != nil {
		m["company"] = *p.Company
	}
	if p.Role != nil {
		m["role"] = *p.Role
	}
	if p.Location != nil {
		m["location"] = *p.Location
	}
	if p.Status != nil {
		m["status"] = *p.Status
	}
	if p.AppliedDate != nil {
		m["applied_date"] = *p.AppliedDate
	}
	if p.Notes != nil {
		m["notes"] = *p.Notes
	}
	if p.ResumeURL != nil {
		m["resume_url"] = *p.ResumeURL
	}
	return m
}

// nextUpdatedAt returns a timestamp strictly after prev, truncated to the
// precision the backend stores.
func nextUpdatedAt(prev time.Time, precision time.Duration) time.Time {
	now := time.Now().UTC().Truncate(precision)
	if !now.After(prev) {
		now = prev.Add(precision)
	}
	return now
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
