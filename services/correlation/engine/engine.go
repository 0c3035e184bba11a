// Package engine joins platform identities across vendor directories by
// email and computes ghost status, security risk and license waste per
// correlated user.
//
// The pass is deterministic and O(total users): every platform's user list is
// fully materialized before the map is built, then each entry is enriched
// synchronously.
package engine

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/stackpilot/stackpilot/services/integration/model"
)

// fuzzyMatchThreshold is the minimum name-similarity confidence at which an
// email-less identity may join an existing entry, and only when exactly one
// entry clears it.
const fuzzyMatchThreshold = 0.85

// Correlate builds one CorrelatedUser per distinct email across the given
// platform users. Users without an email stay out of the map unless the
// fuzzy name fallback finds exactly one confident candidate.
func Correlate(users []model.PlatformUser, now time.Time) []CorrelatedUser {
	byEmail := make(map[string]*CorrelatedUser)
	var withoutEmail []model.PlatformUser

	for _, u := range users {
		if u.Email == "" {
			withoutEmail = append(withoutEmail, u)
			continue
		}

		email := strings.ToLower(u.Email)
		entry, ok := byEmail[email]
		if !ok {
			entry = &CorrelatedUser{
				PrimaryEmail: email,
				Platforms:    make(map[string]PlatformPresence),
			}
			byEmail[email] = entry
		}
		entry.Platforms[u.AppType.String()] = presenceOf(u, 1.0)
	}

	for _, u := range withoutEmail {
		attachFuzzy(byEmail, u)
	}

	result := make([]CorrelatedUser, 0, len(byEmail))
	for _, entry := range byEmail {
		entry.GhostStatus = computeGhostStatus(entry.Platforms, now)
		entry.SecurityRisks = computeSecurityRisks(entry.Platforms)
		entry.LicenseWaste = computeLicenseWaste(entry.Platforms)
		result = append(result, *entry)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].PrimaryEmail < result[j].PrimaryEmail
	})

	return result
}

// attachFuzzy joins an email-less user to the single entry whose display name
// clears the similarity threshold. Ambiguity (zero or several candidates)
// leaves the user out of correlation.
func attachFuzzy(byEmail map[string]*CorrelatedUser, u model.PlatformUser) {
	if u.DisplayName == "" {
		return
	}
	name := strings.ToLower(u.DisplayName)

	var match *CorrelatedUser
	var score float64
	for _, entry := range byEmail {
		for _, presence := range entry.Platforms {
			s := similarity(name, strings.ToLower(presence.DisplayName))
			if s < fuzzyMatchThreshold {
				continue
			}
			if match != nil && match != entry {
				// ambiguous; bail out
				return
			}
			match = entry
			if s > score {
				score = s
			}
		}
	}

	if match == nil {
		return
	}
	if _, taken := match.Platforms[u.AppType.String()]; taken {
		return
	}
	match.Platforms[u.AppType.String()] = presenceOf(u, score)
}

func presenceOf(u model.PlatformUser, matchScore float64) PlatformPresence {
	return PlatformPresence{
		ExternalID:        u.ExternalID,
		DisplayName:       u.DisplayName,
		IsAdmin:           u.IsAdmin,
		Suspended:         u.Suspended,
		TwoFactorEnrolled: u.TwoFactorEnrolled,
		SiteAdmin:         u.SiteAdmin,
		LicenseTier:       u.LicenseTier,
		AttachedPolicies:  policyNames(u),
		LastActivityAt:    u.LastActivityAt,
		MatchScore:        matchScore,
	}
}

func policyNames(u model.PlatformUser) []string {
	if len(u.AttachedPolicies) == 0 {
		return nil
	}
	var names []string
	if err := json.Unmarshal(u.AttachedPolicies, &names); err != nil {
		return nil
	}
	return names
}
