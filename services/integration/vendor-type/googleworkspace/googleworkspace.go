package googleworkspace

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stackpilot/stackpilot/pkg/source"
	"github.com/stackpilot/stackpilot/services/integration/model"
	"github.com/stackpilot/stackpilot/services/integration/vendor-type/interfaces"
	"golang.org/x/oauth2/google"
	admin "google.golang.org/api/admin/directory/v1"
	"google.golang.org/api/option"
)

const defaultCustomer = "my_customer"

// serviceAccountKey is the subset of the key file the connect flow requires
// to be present before it even tries the live API.
type serviceAccountKey struct {
	Type        string `json:"type"`
	ProjectID   string `json:"project_id"`
	PrivateKey  string `json:"private_key"`
	ClientEmail string `json:"client_email"`
}

type GoogleWorkspaceVendor struct{}

func CreateGoogleWorkspaceVendor() (interfaces.Vendor, error) {
	return &GoogleWorkspaceVendor{}, nil
}

func (v *GoogleWorkspaceVendor) Type() source.Type {
	return source.TypeGoogleWorkspace
}

func (v *GoogleWorkspaceVendor) RequiredFields() []string {
	return []string{"serviceAccountKey", "adminEmail"}
}

func (v *GoogleWorkspaceVendor) FormatWarnings(fields map[string]string) []string {
	var warnings []string
	var key serviceAccountKey
	if raw := fields["serviceAccountKey"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &key); err == nil && key.Type != "service_account" {
			warnings = append(warnings, "serviceAccountKey type is not service_account")
		}
	}
	return warnings
}

func (v *GoogleWorkspaceVendor) directoryService(ctx context.Context, fields map[string]string) (*admin.Service, error) {
	raw := []byte(fields["serviceAccountKey"])

	var key serviceAccountKey
	if err := json.Unmarshal(raw, &key); err != nil {
		return nil, fmt.Errorf("service account key is not valid JSON: %w", err)
	}
	if key.Type != "service_account" || key.ProjectID == "" || key.PrivateKey == "" || key.ClientEmail == "" {
		return nil, fmt.Errorf("service account key is missing required fields")
	}

	cfg, err := google.JWTConfigFromJSON(raw,
		admin.AdminDirectoryUserReadonlyScope,
	)
	if err != nil {
		return nil, fmt.Errorf("parse service account key: %w", err)
	}
	// Directory reads require impersonating a workspace admin.
	cfg.Subject = fields["adminEmail"]

	svc, err := admin.NewService(ctx, option.WithHTTPClient(cfg.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("new directory service: %w", err)
	}
	return svc, nil
}

func (v *GoogleWorkspaceVendor) customer(fields map[string]string) string {
	if c := fields["customerId"]; c != "" {
		return c
	}
	return defaultCustomer
}

func (v *GoogleWorkspaceVendor) Connect(ctx context.Context, fields map[string]string) (*interfaces.Account, error) {
	svc, err := v.directoryService(ctx, fields)
	if err != nil {
		return nil, err
	}

	// One-user listing doubles as the live permission check.
	res, err := svc.Users.List().Customer(v.customer(fields)).MaxResults(1).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list directory users: %w", err)
	}

	externalID := v.customer(fields)
	if len(res.Users) > 0 && res.Users[0].CustomerId != "" {
		externalID = res.Users[0].CustomerId
	}

	return &interfaces.Account{
		ExternalID: externalID,
		Name:       fields["adminEmail"],
	}, nil
}

func (v *GoogleWorkspaceVendor) FetchUsers(ctx context.Context, access interfaces.Access) ([]model.PlatformUser, error) {
	svc, err := v.directoryService(ctx, access.Fields)
	if err != nil {
		return nil, err
	}

	var users []model.PlatformUser
	call := svc.Users.List().Customer(v.customer(access.Fields)).MaxResults(500)
	err = call.Pages(ctx, func(page *admin.Users) error {
		for _, u := range page.Users {
			enrolled := u.IsEnrolledIn2Sv
			users = append(users, model.PlatformUser{
				CompanyID:         access.CompanyID,
				AppType:           source.TypeGoogleWorkspace,
				ExternalID:        u.Id,
				Email:             u.PrimaryEmail,
				DisplayName:       fullName(u),
				IsAdmin:           u.IsAdmin || u.IsDelegatedAdmin,
				Suspended:         u.Suspended,
				TwoFactorEnrolled: &enrolled,
				LastActivityAt:    parseLastLogin(u.LastLoginTime),
				IsActive:          true,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list directory users: %w", err)
	}

	return users, nil
}

func fullName(u *admin.User) string {
	if u.Name != nil && u.Name.FullName != "" {
		return u.Name.FullName
	}
	return u.PrimaryEmail
}

// parseLastLogin maps the directory's epoch sentinel for never-logged-in
// accounts to a nil timestamp.
func parseLastLogin(value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil || t.Unix() <= 0 {
		return nil
	}
	return &t
}
