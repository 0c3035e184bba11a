package engine

import (
	"sort"
	"time"
)

// ghostInactivityDays is the mean days-since-activity beyond which a user
// counts as a ghost even when every platform has seen a login.
const ghostInactivityDays = 90

func computeGhostStatus(platforms map[string]PlatformPresence, now time.Time) GhostStatus {
	status := GhostStatus{}

	var totalDays float64
	var withActivity int

	for name, presence := range platforms {
		if presence.LastActivityAt == nil {
			status.NeverLoggedInPlatforms = append(status.NeverLoggedInPlatforms, name)
			continue
		}
		totalDays += now.Sub(*presence.LastActivityAt).Hours() / 24
		withActivity++
	}
	sort.Strings(status.NeverLoggedInPlatforms)

	if withActivity > 0 {
		status.AvgDaysInactive = totalDays / float64(withActivity)
	}

	status.IsGhost = len(status.NeverLoggedInPlatforms) > 0 ||
		(withActivity > 0 && status.AvgDaysInactive > ghostInactivityDays)

	return status
}
