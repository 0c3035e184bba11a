package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/stackpilot/stackpilot/pkg/source"
	"github.com/stackpilot/stackpilot/services/integration/model"
	"github.com/stackpilot/stackpilot/services/integration/vendor-type/interfaces"
	"golang.org/x/oauth2"
)

const (
	authorizeURL = "https://slack.com/oauth/v2/authorize"
	tokenURL     = "https://slack.com/api/oauth.v2.access"
	usersListURL = "https://slack.com/api/users.list"

	// botScopes is what the app asks for; directory reads only.
	botScopes = "users:read,users:read.email,team:read"
)

type SlackVendor struct{}

func CreateSlackVendor() (interfaces.Vendor, error) {
	return &SlackVendor{}, nil
}

func (v *SlackVendor) Type() source.Type {
	return source.TypeSlack
}

func (v *SlackVendor) RequiredFields() []string {
	return []string{"clientId", "clientSecret"}
}

func (v *SlackVendor) FormatWarnings(map[string]string) []string {
	return nil
}

func (v *SlackVendor) oauthConfig(fields map[string]string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     fields["clientId"],
		ClientSecret: fields["clientSecret"],
		RedirectURL:  fields["redirectUri"],
		Endpoint: oauth2.Endpoint{
			AuthURL:  authorizeURL,
			TokenURL: tokenURL,
		},
	}
}

func (v *SlackVendor) AuthorizeURL(state string, fields map[string]string) string {
	cfg := v.oauthConfig(fields)
	return cfg.AuthCodeURL(state, oauth2.SetAuthURLParam("scope", botScopes))
}

func (v *SlackVendor) Exchange(ctx context.Context, code string, fields map[string]string) (*interfaces.Account, error) {
	tok, err := v.oauthConfig(fields).Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange oauth code: %w", err)
	}

	account := &interfaces.Account{
		Scope: stringExtra(tok, "scope"),
		Tokens: map[string]any{
			"access_token": tok.AccessToken,
		},
	}

	// The v2 access response carries the workspace identity alongside the
	// token.
	if team, ok := tok.Extra("team").(map[string]any); ok {
		account.ExternalID, _ = team["id"].(string)
		account.Name, _ = team["name"].(string)
	}
	if account.ExternalID == "" {
		return nil, fmt.Errorf("oauth response carried no team id")
	}

	return account, nil
}

func (v *SlackVendor) Connect(context.Context, map[string]string) (*interfaces.Account, error) {
	return nil, interfaces.ErrOAuthOnly
}

type member struct {
	ID       string `json:"id"`
	RealName string `json:"real_name"`
	Deleted  bool   `json:"deleted"`
	IsAdmin  bool   `json:"is_admin"`
	IsOwner  bool   `json:"is_owner"`
	IsBot    bool   `json:"is_bot"`
	Updated  int64  `json:"updated"`
	Profile  struct {
		Email string `json:"email"`
	} `json:"profile"`
}

type usersListResponse struct {
	OK               bool     `json:"ok"`
	Error            string   `json:"error"`
	Members          []member `json:"members"`
	ResponseMetadata struct {
		NextCursor string `json:"next_cursor"`
	} `json:"response_metadata"`
}

func (v *SlackVendor) FetchUsers(ctx context.Context, access interfaces.Access) ([]model.PlatformUser, error) {
	token, _ := access.Tokens["access_token"].(string)
	if token == "" {
		return nil, fmt.Errorf("connection has no access token")
	}

	var users []model.PlatformUser
	cursor := ""
	for {
		page, err := listUsersPage(ctx, token, cursor)
		if err != nil {
			return nil, err
		}

		for _, m := range page.Members {
			if m.IsBot || m.ID == "USLACKBOT" {
				continue
			}

			var lastActivity *time.Time
			if m.Updated > 0 {
				t := time.Unix(m.Updated, 0).UTC()
				lastActivity = &t
			}

			users = append(users, model.PlatformUser{
				CompanyID:      access.CompanyID,
				AppType:        source.TypeSlack,
				ExternalID:     m.ID,
				Email:          m.Profile.Email,
				DisplayName:    m.RealName,
				IsAdmin:        m.IsAdmin || m.IsOwner,
				Suspended:      m.Deleted,
				LastActivityAt: lastActivity,
				IsActive:       true,
			})
		}

		cursor = page.ResponseMetadata.NextCursor
		if cursor == "" {
			break
		}
	}

	return users, nil
}

func listUsersPage(ctx context.Context, token, cursor string) (*usersListResponse, error) {
	params := url.Values{"limit": {"200"}}
	if cursor != "" {
		params.Set("cursor", cursor)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, usersListURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("users.list failed, status: %d", resp.StatusCode)
	}

	var page usersListResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if !page.OK {
		return nil, fmt.Errorf("users.list failed: %s", page.Error)
	}

	return &page, nil
}

func stringExtra(tok *oauth2.Token, key string) string {
	s, _ := tok.Extra(key).(string)
	return s
}
