package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// CrossPlatformUser is one correlated identity per distinct email per company,
// rebuilt wholesale on each correlation run. The three computed blocks are
// stored as JSON documents.
type CrossPlatformUser struct {
	ID           uuid.UUID `gorm:"primaryKey;type:uuid;default:uuid_generate_v4()"`
	CompanyID    string    `gorm:"index:idx_cross_user_email,unique,priority:1;not null"`
	PrimaryEmail string    `gorm:"index:idx_cross_user_email,unique,priority:2;not null"`

	Platforms     datatypes.JSON `gorm:"default:'{}'"`
	GhostStatus   datatypes.JSON `gorm:"default:'{}'"`
	SecurityRisks datatypes.JSON `gorm:"default:'{}'"`
	LicenseWaste  datatypes.JSON `gorm:"default:'{}'"`

	IsActive   bool `gorm:"not null;default:true"`
	LastSyncAt time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (CrossPlatformUser) TableName() string {
	return "cross_platform_users"
}
