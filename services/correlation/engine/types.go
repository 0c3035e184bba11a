package engine

import (
	"time"
)

// PlatformPresence is one platform's view of a correlated identity.
type PlatformPresence struct {
	ExternalID        string     `json:"externalId"`
	DisplayName       string     `json:"displayName"`
	IsAdmin           bool       `json:"isAdmin"`
	Suspended         bool       `json:"suspended"`
	TwoFactorEnrolled *bool      `json:"twoFactorEnrolled,omitempty"`
	SiteAdmin         bool       `json:"siteAdmin,omitempty"`
	LicenseTier       string     `json:"licenseTier,omitempty"`
	AttachedPolicies  []string   `json:"attachedPolicies,omitempty"`
	LastActivityAt    *time.Time `json:"lastActivityAt"`

	// MatchScore is 1 for an exact email match and the name-similarity
	// confidence for fuzzy-joined entries.
	MatchScore float64 `json:"matchScore"`
}

type GhostStatus struct {
	IsGhost                bool     `json:"isGhost"`
	NeverLoggedInPlatforms []string `json:"neverLoggedInPlatforms"`
	AvgDaysInactive        float64  `json:"avgDaysInactive"`
}

type SecurityRisks struct {
	RiskScore           int      `json:"riskScore"`
	AdminWithout2FA     []string `json:"adminWithout2FA"`
	SuspendedWithAccess []string `json:"suspendedWithAccess"`
	Findings            []string `json:"findings"`
}

type LicenseWaste struct {
	TotalMonthlyCost float64  `json:"totalMonthlyCost"`
	WastedCost       float64  `json:"wastedCost"`
	WastedPlatforms  []string `json:"wastedPlatforms"`
	Recommendations  []string `json:"recommendations"`
}

// CorrelatedUser is one identity joined across platforms by email, with the
// three computed blocks.
type CorrelatedUser struct {
	PrimaryEmail  string
	Platforms     map[string]PlatformPresence
	GhostStatus   GhostStatus
	SecurityRisks SecurityRisks
	LicenseWaste  LicenseWaste
}
