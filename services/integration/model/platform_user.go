package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/stackpilot/stackpilot/pkg/source"
	"gorm.io/datatypes"
)

// PlatformUser is one normalized identity pulled from a vendor directory.
// Email may be empty (AWS IAM users and GitHub members frequently have none);
// such users are excluded from email correlation.
type PlatformUser struct {
	ID        uuid.UUID   `gorm:"primaryKey;type:uuid;default:uuid_generate_v4()"`
	CompanyID string      `gorm:"index:idx_platform_user_identity,unique,priority:1;not null"`
	AppType   source.Type `gorm:"index:idx_platform_user_identity,unique,priority:2;not null"`

	ExternalID  string `gorm:"index:idx_platform_user_identity,unique,priority:3;not null"`
	Email       string `gorm:"index"`
	DisplayName string

	IsAdmin   bool
	Suspended bool

	// TwoFactorEnrolled is only populated for Google Workspace, the one
	// vendor that reports 2FA enrollment.
	TwoFactorEnrolled *bool

	// SiteAdmin is GitHub's instance-level admin flag.
	SiteAdmin bool

	// LicenseTier is the vendor seat tier where it affects cost (Zoom).
	LicenseTier string

	// AttachedPolicies holds AWS IAM policy names used for admin detection.
	AttachedPolicies datatypes.JSON `gorm:"default:'[]'"`

	LastActivityAt *time.Time
	IsActive       bool `gorm:"not null;default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (PlatformUser) TableName() string {
	return "platform_users"
}
