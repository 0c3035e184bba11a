package repository

import (
	"context"
	"errors"

	"github.com/stackpilot/stackpilot/pkg/source"
	"github.com/stackpilot/stackpilot/services/integration/db"
	"github.com/stackpilot/stackpilot/services/integration/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrCredentialNotFound = errors.New("credential set not found")

type Credential interface {
	Upsert(context.Context, *model.CredentialSet) error
	Get(ctx context.Context, companyID string, appType source.Type, appName string) (*model.CredentialSet, error)
	ListByCompany(ctx context.Context, companyID string) ([]model.CredentialSet, error)
	Deactivate(ctx context.Context, companyID string, appType source.Type) error
}

type CredentialSQL struct {
	db db.Database
}

func NewCredentialSQL(db db.Database) Credential {
	return CredentialSQL{
		db: db,
	}
}

// Upsert stores a credential set keyed by (company, app type, app name);
// saving the same key twice updates the one existing row.
func (c CredentialSQL) Upsert(ctx context.Context, cred *model.CredentialSet) error {
	tx := c.db.Orm.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "company_id"}, {Name: "app_type"}, {Name: "app_name"},
			},
			DoUpdates: clause.AssignmentColumns([]string{"fields", "is_active", "created_by", "updated_at"}),
		}).
		Create(cred)

	return tx.Error
}

func (c CredentialSQL) Get(ctx context.Context, companyID string, appType source.Type, appName string) (*model.CredentialSet, error) {
	var cred model.CredentialSet

	tx := c.db.Orm.WithContext(ctx).
		Where("company_id = ? AND app_type = ? AND is_active = ?", companyID, appType, true)
	if appName != "" {
		tx = tx.Where("app_name = ?", appName)
	}

	if err := tx.First(&cred).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCredentialNotFound
		}
		return nil, err
	}

	return &cred, nil
}

func (c CredentialSQL) ListByCompany(ctx context.Context, companyID string) ([]model.CredentialSet, error) {
	var creds []model.CredentialSet

	tx := c.db.Orm.WithContext(ctx).
		Find(&creds, "company_id = ? AND is_active = ?", companyID, true)
	if tx.Error != nil {
		return nil, tx.Error
	}

	return creds, nil
}

// Deactivate soft-deletes every credential set for the vendor.
func (c CredentialSQL) Deactivate(ctx context.Context, companyID string, appType source.Type) error {
	return c.db.Orm.WithContext(ctx).
		Model(&model.CredentialSet{}).
		Where("company_id = ? AND app_type = ?", companyID, appType).
		Update("is_active", false).Error
}
