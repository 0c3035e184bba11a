package repository

import (
	"context"

	"github.com/stackpilot/stackpilot/pkg/source"
	"github.com/stackpilot/stackpilot/services/integration/db"
	"github.com/stackpilot/stackpilot/services/integration/model"
	"gorm.io/gorm/clause"
)

type PlatformUser interface {
	UpsertBatch(context.Context, []model.PlatformUser) error
	ListActiveByCompany(ctx context.Context, companyID string) ([]model.PlatformUser, error)
	ListActiveOfType(ctx context.Context, companyID string, appType source.Type) ([]model.PlatformUser, error)
	DeactivateMissing(ctx context.Context, companyID string, appType source.Type, keepExternalIDs []string) error
}

type PlatformUserSQL struct {
	db db.Database
}

func NewPlatformUserSQL(db db.Database) PlatformUser {
	return PlatformUserSQL{
		db: db,
	}
}

func (s PlatformUserSQL) UpsertBatch(ctx context.Context, users []model.PlatformUser) error {
	if len(users) == 0 {
		return nil
	}

	tx := s.db.Orm.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "company_id"}, {Name: "app_type"}, {Name: "external_id"},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				"email", "display_name", "is_admin", "suspended", "two_factor_enrolled",
				"site_admin", "license_tier", "attached_policies", "last_activity_at",
				"is_active", "updated_at",
			}),
		}).
		Create(&users)

	return tx.Error
}

func (s PlatformUserSQL) ListActiveByCompany(ctx context.Context, companyID string) ([]model.PlatformUser, error) {
	var users []model.PlatformUser

	tx := s.db.Orm.WithContext(ctx).
		Find(&users, "company_id = ? AND is_active = ?", companyID, true)
	if tx.Error != nil {
		return nil, tx.Error
	}

	return users, nil
}

func (s PlatformUserSQL) ListActiveOfType(ctx context.Context, companyID string, appType source.Type) ([]model.PlatformUser, error) {
	var users []model.PlatformUser

	tx := s.db.Orm.WithContext(ctx).
		Find(&users, "company_id = ? AND app_type = ? AND is_active = ?", companyID, appType, true)
	if tx.Error != nil {
		return nil, tx.Error
	}

	return users, nil
}

// DeactivateMissing soft-deletes users of the vendor that the latest fetch no
// longer returned, so removed accounts drop out of correlation on the next run.
func (s PlatformUserSQL) DeactivateMissing(ctx context.Context, companyID string, appType source.Type, keepExternalIDs []string) error {
	tx := s.db.Orm.WithContext(ctx).
		Model(&model.PlatformUser{}).
		Where("company_id = ? AND app_type = ?", companyID, appType)
	if len(keepExternalIDs) > 0 {
		tx = tx.Where("external_id NOT IN ?", keepExternalIDs)
	}

	return tx.Update("is_active", false).Error
}
