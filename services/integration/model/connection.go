package model

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/stackpilot/stackpilot/pkg/source"
	"gorm.io/datatypes"
)

// ServiceConnection is a validated, live link to a vendor account, distinct
// from the raw stored credential. Tokens holds a vault-sealed JSON bundle.
type ServiceConnection struct {
	ID        uuid.UUID   `gorm:"primaryKey;type:uuid;default:uuid_generate_v4()"`
	CompanyID string      `gorm:"index:idx_connection_company_account,unique,priority:1;not null"`
	AppType   source.Type `gorm:"index:idx_connection_company_account,unique,priority:2;not null"`

	ExternalAccountID string `gorm:"index:idx_connection_company_account,unique,priority:3;not null"`
	AccountName       string

	Tokens datatypes.JSON `gorm:"default:'{}'"`
	Scope  string

	Status    source.ConnectionStatus `gorm:"not null;default:'pending'"`
	IsActive  bool                    `gorm:"not null;default:true"`
	SyncError string

	LastSyncAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt sql.NullTime `gorm:"index"`
}

func (ServiceConnection) TableName() string {
	return "service_connections"
}
