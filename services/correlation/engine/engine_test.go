package engine

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackpilot/stackpilot/pkg/source"
	"github.com/stackpilot/stackpilot/services/integration/model"
)

func boolPtr(b bool) *bool {
	return &b
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func TestCorrelateExactEmail(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	recent := now.Add(-5 * 24 * time.Hour)

	users := []model.PlatformUser{
		{
			AppType:           source.TypeGoogleWorkspace,
			ExternalID:        "g-1",
			Email:             "alice@co.com",
			DisplayName:       "Alice Smith",
			IsAdmin:           true,
			TwoFactorEnrolled: boolPtr(false),
		},
		{
			AppType:        source.TypeSlack,
			ExternalID:     "U123",
			Email:          "Alice@co.com",
			DisplayName:    "Alice Smith",
			LastActivityAt: timePtr(recent),
		},
	}

	result := Correlate(users, now)
	require.Len(t, result, 1)

	alice := result[0]
	assert.Equal(t, "alice@co.com", alice.PrimaryEmail)
	require.Len(t, alice.Platforms, 2)
	assert.Contains(t, alice.Platforms, "google-workspace")
	assert.Contains(t, alice.Platforms, "slack")
	assert.Equal(t, 1.0, alice.Platforms["slack"].MatchScore)

	assert.True(t, alice.GhostStatus.IsGhost)
	assert.Equal(t, []string{"google-workspace"}, alice.GhostStatus.NeverLoggedInPlatforms)

	assert.Equal(t, 25, alice.SecurityRisks.RiskScore)
	assert.Equal(t, []string{"google-workspace"}, alice.SecurityRisks.AdminWithout2FA)

	assert.Equal(t, 20.0, alice.LicenseWaste.TotalMonthlyCost)
	assert.Equal(t, 12.0, alice.LicenseWaste.WastedCost)
	assert.Equal(t, []string{"google-workspace"}, alice.LicenseWaste.WastedPlatforms)
	assert.Equal(t, []string{"Remove unused Google Workspace license"}, alice.LicenseWaste.Recommendations)
}

func TestCorrelateSkipsEmaillessUsers(t *testing.T) {
	now := time.Now()

	users := []model.PlatformUser{
		{AppType: source.TypeAWS, ExternalID: "iam-1", DisplayName: "deploy-bot"},
	}

	result := Correlate(users, now)
	assert.Empty(t, result)
}

func TestCorrelateFuzzyAttachesSingleCandidate(t *testing.T) {
	now := time.Now()

	users := []model.PlatformUser{
		{
			AppType:     source.TypeGithub,
			ExternalID:  "gh-1",
			Email:       "bob@co.com",
			DisplayName: "Bob Johnson",
		},
		{
			AppType:     source.TypeAWS,
			ExternalID:  "iam-bob",
			DisplayName: "Bob Johnsun",
		},
	}

	result := Correlate(users, now)
	require.Len(t, result, 1)

	bob := result[0]
	require.Contains(t, bob.Platforms, "aws")
	assert.Less(t, bob.Platforms["aws"].MatchScore, 1.0)
	assert.GreaterOrEqual(t, bob.Platforms["aws"].MatchScore, fuzzyMatchThreshold)
}

func TestCorrelateFuzzyBailsOnAmbiguity(t *testing.T) {
	now := time.Now()

	users := []model.PlatformUser{
		{AppType: source.TypeGithub, ExternalID: "gh-1", Email: "a@co.com", DisplayName: "Sam Jones"},
		{AppType: source.TypeSlack, ExternalID: "U1", Email: "b@co.com", DisplayName: "Sam Jones"},
		{AppType: source.TypeAWS, ExternalID: "iam-sam", DisplayName: "Sam Jones"},
	}

	result := Correlate(users, now)
	require.Len(t, result, 2)
	for _, entry := range result {
		assert.NotContains(t, entry.Platforms, "aws")
	}
}

func TestCorrelateFuzzyDoesNotOverwriteTakenSlot(t *testing.T) {
	now := time.Now()

	users := []model.PlatformUser{
		{AppType: source.TypeAWS, ExternalID: "iam-1", Email: "carol@co.com", DisplayName: "Carol White"},
		{AppType: source.TypeAWS, ExternalID: "iam-2", DisplayName: "Carol White"},
	}

	result := Correlate(users, now)
	require.Len(t, result, 1)
	assert.Equal(t, "iam-1", result[0].Platforms["aws"].ExternalID)
}

func TestGhostStatusInactivityAverage(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	platforms := map[string]PlatformPresence{
		"slack":  {LastActivityAt: timePtr(now.Add(-100 * 24 * time.Hour))},
		"github": {LastActivityAt: timePtr(now.Add(-120 * 24 * time.Hour))},
	}

	status := computeGhostStatus(platforms, now)
	assert.True(t, status.IsGhost)
	assert.Empty(t, status.NeverLoggedInPlatforms)
	assert.InDelta(t, 110, status.AvgDaysInactive, 0.01)
}

func TestGhostStatusActiveUser(t *testing.T) {
	now := time.Now()

	platforms := map[string]PlatformPresence{
		"slack": {LastActivityAt: timePtr(now.Add(-2 * 24 * time.Hour))},
		"zoom":  {LastActivityAt: timePtr(now.Add(-10 * 24 * time.Hour))},
	}

	status := computeGhostStatus(platforms, now)
	assert.False(t, status.IsGhost)
}

func TestSecurityRiskScoreCap(t *testing.T) {
	policies, err := json.Marshal([]string{"AdministratorAccess"})
	require.NoError(t, err)

	now := time.Now()
	users := []model.PlatformUser{
		{
			AppType:           source.TypeGoogleWorkspace,
			ExternalID:        "g-1",
			Email:             "root@co.com",
			IsAdmin:           true,
			TwoFactorEnrolled: boolPtr(false),
			Suspended:         true,
		},
		{
			AppType:    source.TypeGithub,
			ExternalID: "gh-1",
			Email:      "root@co.com",
			IsAdmin:    true,
			SiteAdmin:  true,
			Suspended:  true,
		},
		{
			AppType:    source.TypeSlack,
			ExternalID: "U1",
			Email:      "root@co.com",
			IsAdmin:    true,
			Suspended:  true,
		},
		{
			AppType:          source.TypeAWS,
			ExternalID:       "iam-1",
			Email:            "root@co.com",
			IsAdmin:          true,
			AttachedPolicies: policies,
		},
		{
			AppType:    source.TypeZoom,
			ExternalID: "z-1",
			Email:      "root@co.com",
			IsAdmin:    true,
			Suspended:  true,
		},
	}

	result := Correlate(users, now)
	require.Len(t, result, 1)
	assert.Equal(t, riskScoreCap, result[0].SecurityRisks.RiskScore)
}

func TestSecurityRiskSuspendedNeedsActiveAccessElsewhere(t *testing.T) {
	platforms := map[string]PlatformPresence{
		"slack": {Suspended: true},
	}

	risks := computeSecurityRisks(platforms)
	assert.Empty(t, risks.SuspendedWithAccess)
	assert.Zero(t, risks.RiskScore)
}

func TestSecurityRisk2FARequiresTrackedEnrollment(t *testing.T) {
	platforms := map[string]PlatformPresence{
		"github": {IsAdmin: true},
	}

	risks := computeSecurityRisks(platforms)
	assert.Empty(t, risks.AdminWithout2FA)
}

func TestLicenseWasteZoomTiers(t *testing.T) {
	now := time.Now()

	licensed := map[string]PlatformPresence{
		"zoom": {LicenseTier: "licensed"},
	}
	basic := map[string]PlatformPresence{
		"zoom": {LicenseTier: "basic", LastActivityAt: timePtr(now)},
	}

	assert.Equal(t, 20.0, computeLicenseWaste(licensed).TotalMonthlyCost)
	assert.Equal(t, 20.0, computeLicenseWaste(licensed).WastedCost)

	waste := computeLicenseWaste(basic)
	assert.Equal(t, 15.0, waste.TotalMonthlyCost)
	assert.Zero(t, waste.WastedCost)
}

func TestLicenseWasteIgnoresUsageBilledPlatforms(t *testing.T) {
	platforms := map[string]PlatformPresence{
		"aws":     {},
		"datadog": {},
	}

	waste := computeLicenseWaste(platforms)
	assert.Zero(t, waste.TotalMonthlyCost)
	assert.Zero(t, waste.WastedCost)
	assert.Empty(t, waste.WastedPlatforms)
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, similarity("alice", "alice"))
	assert.Equal(t, 0.0, similarity("", "alice"))
	assert.InDelta(t, 0.8, similarity("alice", "alicx"), 0.01)
}
