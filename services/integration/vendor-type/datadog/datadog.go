package datadog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/stackpilot/stackpilot/pkg/source"
	"github.com/stackpilot/stackpilot/services/integration/model"
	"github.com/stackpilot/stackpilot/services/integration/vendor-type/interfaces"
)

const (
	defaultSite = "datadoghq.com"
	pageSize    = 100
)

type DatadogVendor struct{}

func CreateDatadogVendor() (interfaces.Vendor, error) {
	return &DatadogVendor{}, nil
}

func (v *DatadogVendor) Type() source.Type {
	return source.TypeDatadog
}

func (v *DatadogVendor) RequiredFields() []string {
	return []string{"apiKey", "appKey"}
}

func (v *DatadogVendor) FormatWarnings(fields map[string]string) []string {
	var warnings []string
	if key := fields["apiKey"]; key != "" && len(key) != 32 {
		warnings = append(warnings, "apiKey is not 32 characters long")
	}
	return warnings
}

// baseURL derives the API endpoint from the site field. A site carrying an
// explicit scheme is used verbatim.
func baseURL(fields map[string]string) string {
	site := fields["site"]
	if site == "" {
		site = defaultSite
	}
	if strings.Contains(site, "://") {
		return site
	}
	return "https://api." + site
}

type validateResponse struct {
	Valid bool `json:"valid"`
}

func (v *DatadogVendor) Connect(ctx context.Context, fields map[string]string) (*interfaces.Account, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL(fields)+"/api/v1/validate", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("DD-API-KEY", fields["apiKey"])

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("validate api key failed, status: %d", resp.StatusCode)
	}

	var out validateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if !out.Valid {
		return nil, fmt.Errorf("api key is not valid")
	}

	site := fields["site"]
	if site == "" {
		site = defaultSite
	}

	return &interfaces.Account{
		ExternalID: site,
		Name:       "datadog " + site,
	}, nil
}

type ddUser struct {
	ID         string `json:"id"`
	Attributes struct {
		Email      string `json:"email"`
		Name       string `json:"name"`
		Handle     string `json:"handle"`
		Status     string `json:"status"`
		Disabled   bool   `json:"disabled"`
		ModifiedAt string `json:"modified_at"`
	} `json:"attributes"`
	Relationships struct {
		Roles struct {
			Data []struct {
				ID string `json:"id"`
			} `json:"data"`
		} `json:"roles"`
	} `json:"relationships"`
}

type usersResponse struct {
	Data []ddUser `json:"data"`
}

type rolesResponse struct {
	Data []struct {
		ID         string `json:"id"`
		Attributes struct {
			Name string `json:"name"`
		} `json:"attributes"`
	} `json:"data"`
}

func (v *DatadogVendor) FetchUsers(ctx context.Context, access interfaces.Access) ([]model.PlatformUser, error) {
	adminRoles, err := fetchAdminRoleIDs(ctx, access.Fields)
	if err != nil {
		return nil, err
	}

	var users []model.PlatformUser
	pageNumber := 0
	for {
		page, err := listUsersPage(ctx, access.Fields, pageNumber)
		if err != nil {
			return nil, err
		}
		if len(page.Data) == 0 {
			break
		}

		for _, u := range page.Data {
			isAdmin := false
			for _, role := range u.Relationships.Roles.Data {
				if adminRoles[role.ID] {
					isAdmin = true
					break
				}
			}

			users = append(users, model.PlatformUser{
				CompanyID:      access.CompanyID,
				AppType:        source.TypeDatadog,
				ExternalID:     u.ID,
				Email:          u.Attributes.Email,
				DisplayName:    u.Attributes.Name,
				IsAdmin:        isAdmin,
				Suspended:      u.Attributes.Disabled,
				LastActivityAt: parseModifiedAt(u.Attributes.ModifiedAt),
				IsActive:       true,
			})
		}

		// A short page is the last one; total_count is not always present.
		if len(page.Data) < pageSize {
			break
		}
		pageNumber++
	}

	return users, nil
}

func listUsersPage(ctx context.Context, fields map[string]string, pageNumber int) (*usersResponse, error) {
	params := url.Values{
		"page[size]":   {fmt.Sprintf("%d", pageSize)},
		"page[number]": {fmt.Sprintf("%d", pageNumber)},
	}

	var page usersResponse
	if err := getJSON(ctx, fields, "/api/v2/users?"+params.Encode(), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func fetchAdminRoleIDs(ctx context.Context, fields map[string]string) (map[string]bool, error) {
	var roles rolesResponse
	if err := getJSON(ctx, fields, "/api/v2/roles", &roles); err != nil {
		return nil, err
	}

	admin := make(map[string]bool)
	for _, role := range roles.Data {
		if strings.Contains(strings.ToLower(role.Attributes.Name), "admin") {
			admin[role.ID] = true
		}
	}
	return admin, nil
}

func getJSON(ctx context.Context, fields map[string]string, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL(fields)+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("DD-API-KEY", fields["apiKey"])
	req.Header.Set("DD-APPLICATION-KEY", fields["appKey"])

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s failed, status: %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func parseModifiedAt(value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil
	}
	return &t
}
