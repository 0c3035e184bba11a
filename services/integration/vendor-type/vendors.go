package vendor_type

import (
	"fmt"

	"github.com/stackpilot/stackpilot/pkg/source"
	"github.com/stackpilot/stackpilot/services/integration/vendor-type/aws"
	"github.com/stackpilot/stackpilot/services/integration/vendor-type/datadog"
	"github.com/stackpilot/stackpilot/services/integration/vendor-type/github"
	"github.com/stackpilot/stackpilot/services/integration/vendor-type/googleworkspace"
	"github.com/stackpilot/stackpilot/services/integration/vendor-type/interfaces"
	"github.com/stackpilot/stackpilot/services/integration/vendor-type/slack"
	"github.com/stackpilot/stackpilot/services/integration/vendor-type/zoom"
)

// Vendors is the registry of supported platforms.
var Vendors = map[source.Type]interfaces.VendorCreator{
	source.TypeAWS:             aws.CreateAWSVendor,
	source.TypeSlack:           slack.CreateSlackVendor,
	source.TypeZoom:            zoom.CreateZoomVendor,
	source.TypeGithub:          github.CreateGithubVendor,
	source.TypeGoogleWorkspace: googleworkspace.CreateGoogleWorkspaceVendor,
	source.TypeDatadog:         datadog.CreateDatadogVendor,
}

func Get(t source.Type) (interfaces.Vendor, error) {
	creator, ok := Vendors[t]
	if !ok {
		return nil, fmt.Errorf("unsupported app type: %s", t)
	}
	return creator()
}
