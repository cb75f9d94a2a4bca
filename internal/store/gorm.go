package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zaqqye/applytrack/internal/models"
)

// Postgres keeps microseconds.
const sqlPrecision = time.Microsecond

type GormStore struct {
	db *gorm.DB
}

func NewGorm(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Create(ctx context.Context, ownerID string, app *models.Application) error {
	now := time.Now().UTC().Truncate(sqlPrecision)
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	app.OwnerID = ownerID
	app.CreatedAt = now
	app.UpdatedAt = now
	return s.db.WithContext(ctx).Create(app).Error
}

func (s *GormStore) Get(ctx context.Context, ownerID, id string) (models.Application, error) {
	return s.get(s.db.WithContext(ctx), ownerID, id)
}

func (s *GormStore) get(tx *gorm.DB, ownerID, id string) (models.Application, error) {
	var app models.Application
	if !validID(id) {
		return app, ErrNotFound
	}
	err := tx.Where("owner_id = ? AND id = ?", ownerID, id).First(&app).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return app, ErrNotFound
	}
	return app, err
}

func (s *GormStore) Update(ctx context.Context, ownerID, id string, patch ApplicationPatch) (models.Application, error) {
	var app models.Application
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		// Row lock so concurrent edits see each other's updated_at.
		app, err = s.get(tx.Clauses(clause.Locking{Strength: "UPDATE"}), ownerID, id)
		if err != nil {
			return err
		}
		fields := patch.fields()
		fields["updated_at"] = nextUpdatedAt(app.UpdatedAt, sqlPrecision)
		res := tx.Model(&models.Application{}).
			Where("owner_id = ? AND id = ?", ownerID, id).
			Updates(fields)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		patch.Apply(&app)
		app.UpdatedAt = fields["updated_at"].(time.Time)
		return nil
	})
	return app, err
}

func (s *GormStore) Delete(ctx context.Context, ownerID, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	res := s.db.WithContext(ctx).
		Where("owner_id = ? AND id = ?", ownerID, id).
		Delete(&models.Application{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) List(ctx context.Context, ownerID string, q ListQuery) ([]models.Application, int64, error) {
	base := s.filtered(s.db.WithContext(ctx), ownerID, q)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	listQ := s.filtered(s.db.WithContext(ctx), ownerID, q).Order(q.Order()).Order("id")
	if !q.All {
		listQ = listQ.Offset(q.Offset()).Limit(q.Limit)
	}
	apps := []models.Application{}
	if err := listQ.Find(&apps).Error; err != nil {
		return nil, 0, err
	}
	return apps, total, nil
}

func (s *GormStore) filtered(tx *gorm.DB, ownerID string, q ListQuery) *gorm.DB {
	tx = tx.Model(&models.Application{}).Where("owner_id = ?", ownerID)
	if q.Status != "" {
		tx = tx.Where("status = ?", q.Status)
	}
	if text := strings.TrimSpace(q.Text); text != "" {
		like := "%" + strings.ToLower(text) + "%"
		tx = tx.Where("LOWER(company) LIKE ? OR LOWER(role) LIKE ? OR LOWER(location) LIKE ?", like, like, like)
	}
	return tx
}

func (s *GormStore) Snapshot(ctx context.Context, ownerID string) ([]models.Application, error) {
	apps := []models.Application{}
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").Order("id DESC").
		Find(&apps).Error
	return apps, err
}
