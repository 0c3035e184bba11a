package repository

import (
	"context"

	"github.com/stackpilot/stackpilot/services/integration/db"
	"github.com/stackpilot/stackpilot/services/integration/model"
	"gorm.io/gorm/clause"
)

type CrossUser interface {
	Upsert(context.Context, *model.CrossPlatformUser) error
	ListActiveByCompany(ctx context.Context, companyID string) ([]model.CrossPlatformUser, error)
	DeactivateMissing(ctx context.Context, companyID string, keepEmails []string) error
}

type CrossUserSQL struct {
	db db.Database
}

func NewCrossUserSQL(db db.Database) CrossUser {
	return CrossUserSQL{
		db: db,
	}
}

// Upsert replaces the computed blocks wholesale; a correlation run owns the
// entire row for its (company, email) key.
func (s CrossUserSQL) Upsert(ctx context.Context, user *model.CrossPlatformUser) error {
	tx := s.db.Orm.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "company_id"}, {Name: "primary_email"},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				"platforms", "ghost_status", "security_risks", "license_waste",
				"is_active", "last_sync_at", "updated_at",
			}),
		}).
		Create(user)

	return tx.Error
}

func (s CrossUserSQL) ListActiveByCompany(ctx context.Context, companyID string) ([]model.CrossPlatformUser, error) {
	var users []model.CrossPlatformUser

	tx := s.db.Orm.WithContext(ctx).
		Find(&users, "company_id = ? AND is_active = ?", companyID, true)
	if tx.Error != nil {
		return nil, tx.Error
	}

	return users, nil
}

// DeactivateMissing retires correlated identities whose email was absent from
// the current run's input set.
func (s CrossUserSQL) DeactivateMissing(ctx context.Context, companyID string, keepEmails []string) error {
	tx := s.db.Orm.WithContext(ctx).
		Model(&model.CrossPlatformUser{}).
		Where("company_id = ?", companyID)
	if len(keepEmails) > 0 {
		tx = tx.Where("primary_email NOT IN ?", keepEmails)
	}

	return tx.Update("is_active", false).Error
}
