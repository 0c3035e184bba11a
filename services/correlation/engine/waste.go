package engine

import (
	"fmt"
	"sort"

	"github.com/stackpilot/stackpilot/pkg/source"
)

// Per-seat monthly cost per platform. AWS and Datadog are usage-billed and
// carry no per-seat cost here.
const (
	costGoogleWorkspace = 12
	costGithub          = 4
	costSlack           = 8
	costZoomBasic       = 15
	costZoomLicensed    = 20
)

var platformLabels = map[string]string{
	source.TypeGoogleWorkspace.String(): "Google Workspace",
	source.TypeGithub.String():          "GitHub",
	source.TypeSlack.String():           "Slack",
	source.TypeZoom.String():            "Zoom",
	source.TypeAWS.String():             "AWS",
	source.TypeDatadog.String():         "Datadog",
}

func seatCost(name string, presence PlatformPresence) float64 {
	switch name {
	case source.TypeGoogleWorkspace.String():
		return costGoogleWorkspace
	case source.TypeGithub.String():
		return costGithub
	case source.TypeSlack.String():
		return costSlack
	case source.TypeZoom.String():
		if presence.LicenseTier == "licensed" {
			return costZoomLicensed
		}
		return costZoomBasic
	default:
		return 0
	}
}

// computeLicenseWaste sums the seat costs of every platform the user is on;
// a seat counts as wasted when the platform shows no activity timestamp.
func computeLicenseWaste(platforms map[string]PlatformPresence) LicenseWaste {
	waste := LicenseWaste{}

	names := make([]string, 0, len(platforms))
	for name := range platforms {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		presence := platforms[name]
		cost := seatCost(name, presence)
		waste.TotalMonthlyCost += cost

		if cost > 0 && presence.LastActivityAt == nil {
			waste.WastedCost += cost
			waste.WastedPlatforms = append(waste.WastedPlatforms, name)

			label := platformLabels[name]
			if label == "" {
				label = name
			}
			waste.Recommendations = append(waste.Recommendations,
				fmt.Sprintf("Remove unused %s license", label))
		}
	}

	return waste
}
