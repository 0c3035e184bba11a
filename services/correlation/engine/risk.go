package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/stackpilot/stackpilot/pkg/source"
)

// Risk points per rule. Rules are independent and additive; the total is
// clamped to 100.
const (
	riskAdminWithout2FA     = 25
	riskSuspendedWithAccess = 20
	riskGithubSiteAdmin     = 10
	riskGithubSuspendedElse = 15
	riskSlackAdmin          = 10
	riskAWSAdmin            = 20
	riskScoreCap            = 100
)

func computeSecurityRisks(platforms map[string]PlatformPresence) SecurityRisks {
	risks := SecurityRisks{}
	score := 0

	names := make([]string, 0, len(platforms))
	for name := range platforms {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		presence := platforms[name]

		// 2FA enrollment is only tracked by Google Workspace.
		if presence.IsAdmin && presence.TwoFactorEnrolled != nil && !*presence.TwoFactorEnrolled {
			score += riskAdminWithout2FA
			risks.AdminWithout2FA = append(risks.AdminWithout2FA, name)
			risks.Findings = append(risks.Findings, fmt.Sprintf("admin on %s without 2FA", name))
		}

		if presence.Suspended && hasActiveAccessElsewhere(platforms, name) {
			points := riskSuspendedWithAccess
			if name == source.TypeGithub.String() {
				points = riskGithubSuspendedElse
			}
			score += points
			risks.SuspendedWithAccess = append(risks.SuspendedWithAccess, name)
			risks.Findings = append(risks.Findings, fmt.Sprintf("suspended on %s with active access elsewhere", name))
		}

		switch name {
		case source.TypeGithub.String():
			if presence.SiteAdmin {
				score += riskGithubSiteAdmin
				risks.Findings = append(risks.Findings, "github site admin")
			}
		case source.TypeSlack.String():
			if presence.IsAdmin {
				score += riskSlackAdmin
				risks.Findings = append(risks.Findings, "slack workspace admin")
			}
		case source.TypeAWS.String():
			if hasAdminPolicy(presence.AttachedPolicies) {
				score += riskAWSAdmin
				risks.Findings = append(risks.Findings, "aws admin policy attached")
			}
		}
	}

	if score > riskScoreCap {
		score = riskScoreCap
	}
	risks.RiskScore = score

	return risks
}

func hasActiveAccessElsewhere(platforms map[string]PlatformPresence, except string) bool {
	for name, presence := range platforms {
		if name == except {
			continue
		}
		if !presence.Suspended {
			return true
		}
	}
	return false
}

func hasAdminPolicy(policies []string) bool {
	for _, name := range policies {
		if strings.Contains(name, "Admin") || strings.Contains(name, "PowerUser") {
			return true
		}
	}
	return false
}
