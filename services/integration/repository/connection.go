package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stackpilot/stackpilot/pkg/source"
	"github.com/stackpilot/stackpilot/services/integration/db"
	"github.com/stackpilot/stackpilot/services/integration/model"
	"gorm.io/gorm/clause"
)

type Connection interface {
	Upsert(context.Context, *model.ServiceConnection) error
	ListActive(ctx context.Context, companyID string) ([]model.ServiceConnection, error)
	ListActiveOfType(ctx context.Context, companyID string, appType source.Type) ([]model.ServiceConnection, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status source.ConnectionStatus, syncError string) error
	MarkSynced(ctx context.Context, id uuid.UUID, at time.Time) error
	ListCompanies(ctx context.Context) ([]string, error)
}

type ConnectionSQL struct {
	db db.Database
}

func NewConnectionSQL(db db.Database) Connection {
	return ConnectionSQL{
		db: db,
	}
}

func (s ConnectionSQL) Upsert(ctx context.Context, conn *model.ServiceConnection) error {
	tx := s.db.Orm.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "company_id"}, {Name: "app_type"}, {Name: "external_account_id"},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				"account_name", "tokens", "scope", "status", "is_active", "sync_error", "updated_at",
			}),
		}).
		Create(conn)

	return tx.Error
}

func (s ConnectionSQL) ListActive(ctx context.Context, companyID string) ([]model.ServiceConnection, error) {
	var connections []model.ServiceConnection

	tx := s.db.Orm.WithContext(ctx).
		Find(&connections, "company_id = ? AND is_active = ?", companyID, true)
	if tx.Error != nil {
		return nil, tx.Error
	}

	return connections, nil
}

func (s ConnectionSQL) ListActiveOfType(ctx context.Context, companyID string, appType source.Type) ([]model.ServiceConnection, error) {
	var connections []model.ServiceConnection

	tx := s.db.Orm.WithContext(ctx).
		Find(&connections, "company_id = ? AND app_type = ? AND is_active = ?", companyID, appType, true)
	if tx.Error != nil {
		return nil, tx.Error
	}

	return connections, nil
}

// ListCompanies returns every company holding at least one active connection.
func (s ConnectionSQL) ListCompanies(ctx context.Context) ([]string, error) {
	var companies []string

	tx := s.db.Orm.WithContext(ctx).
		Model(&model.ServiceConnection{}).
		Where("is_active = ?", true).
		Distinct().
		Pluck("company_id", &companies)
	if tx.Error != nil {
		return nil, tx.Error
	}

	return companies, nil
}

// Deactivate soft-deletes one connection.
func (s ConnectionSQL) Deactivate(ctx context.Context, id uuid.UUID) error {
	return s.db.Orm.WithContext(ctx).
		Model(&model.ServiceConnection{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_active": false,
			"status":    source.ConnectionStatusDisconnected,
		}).Error
}

func (s ConnectionSQL) UpdateStatus(ctx context.Context, id uuid.UUID, status source.ConnectionStatus, syncError string) error {
	return s.db.Orm.WithContext(ctx).
		Model(&model.ServiceConnection{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     status,
			"sync_error": syncError,
		}).Error
}

func (s ConnectionSQL) MarkSynced(ctx context.Context, id uuid.UUID, at time.Time) error {
	return s.db.Orm.WithContext(ctx).
		Model(&model.ServiceConnection{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":       source.ConnectionStatusConnected,
			"sync_error":   "",
			"last_sync_at": at,
		}).Error
}
