package zoom

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/stackpilot/stackpilot/pkg/source"
	"github.com/stackpilot/stackpilot/services/integration/model"
	"github.com/stackpilot/stackpilot/services/integration/vendor-type/interfaces"
	"golang.org/x/oauth2"
)

const (
	authorizeURL = "https://zoom.us/oauth/authorize"
	tokenURL     = "https://zoom.us/oauth/token"
	apiBaseURL   = "https://api.zoom.us/v2"

	// Zoom seat types: 1 basic, 2 licensed, 3 on-prem.
	licensedType = 2
)

type ZoomVendor struct{}

func CreateZoomVendor() (interfaces.Vendor, error) {
	return &ZoomVendor{}, nil
}

func (v *ZoomVendor) Type() source.Type {
	return source.TypeZoom
}

func (v *ZoomVendor) RequiredFields() []string {
	return []string{"clientId", "clientSecret"}
}

func (v *ZoomVendor) FormatWarnings(map[string]string) []string {
	return nil
}

func (v *ZoomVendor) oauthConfig(fields map[string]string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     fields["clientId"],
		ClientSecret: fields["clientSecret"],
		RedirectURL:  fields["redirectUri"],
		Endpoint: oauth2.Endpoint{
			AuthURL:   authorizeURL,
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

func (v *ZoomVendor) AuthorizeURL(state string, fields map[string]string) string {
	return v.oauthConfig(fields).AuthCodeURL(state)
}

func (v *ZoomVendor) Exchange(ctx context.Context, code string, fields map[string]string) (*interfaces.Account, error) {
	tok, err := v.oauthConfig(fields).Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange oauth code: %w", err)
	}

	// The token response has no account identity; ask the API.
	me, err := getSelf(ctx, tok.AccessToken)
	if err != nil {
		return nil, err
	}

	tokens := map[string]any{
		"access_token":  tok.AccessToken,
		"refresh_token": tok.RefreshToken,
	}
	if !tok.Expiry.IsZero() {
		tokens["expiry"] = tok.Expiry.Format(time.RFC3339)
	}

	scope, _ := tok.Extra("scope").(string)

	return &interfaces.Account{
		ExternalID: me.AccountID,
		Name:       me.Email,
		Scope:      scope,
		Tokens:     tokens,
	}, nil
}

func (v *ZoomVendor) Connect(context.Context, map[string]string) (*interfaces.Account, error) {
	return nil, interfaces.ErrOAuthOnly
}

type zoomUser struct {
	ID            string `json:"id"`
	AccountID     string `json:"account_id"`
	Email         string `json:"email"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Type          int    `json:"type"`
	Status        string `json:"status"`
	RoleName      string `json:"role_name"`
	LastLoginTime string `json:"last_login_time"`
}

type usersResponse struct {
	Users         []zoomUser `json:"users"`
	PageNumber    int        `json:"page_number"`
	PageCount     int        `json:"page_count"`
	NextPageToken string     `json:"next_page_token"`
}

func (v *ZoomVendor) FetchUsers(ctx context.Context, access interfaces.Access) ([]model.PlatformUser, error) {
	token, _ := access.Tokens["access_token"].(string)
	if token == "" {
		return nil, fmt.Errorf("connection has no access token")
	}

	var users []model.PlatformUser
	pageToken := ""
	for {
		page, err := listUsersPage(ctx, token, pageToken)
		if err != nil {
			return nil, err
		}

		for _, u := range page.Users {
			tier := "basic"
			if u.Type >= licensedType {
				tier = "licensed"
			}

			role := strings.ToLower(u.RoleName)

			users = append(users, model.PlatformUser{
				CompanyID:      access.CompanyID,
				AppType:        source.TypeZoom,
				ExternalID:     u.ID,
				Email:          u.Email,
				DisplayName:    strings.TrimSpace(u.FirstName + " " + u.LastName),
				IsAdmin:        strings.Contains(role, "admin") || strings.Contains(role, "owner"),
				Suspended:      u.Status == "inactive",
				LicenseTier:    tier,
				LastActivityAt: parseLastLogin(u.LastLoginTime),
				IsActive:       true,
			})
		}

		pageToken = page.NextPageToken
		if pageToken == "" {
			break
		}
	}

	return users, nil
}

func listUsersPage(ctx context.Context, token, pageToken string) (*usersResponse, error) {
	params := url.Values{"page_size": {strconv.Itoa(300)}}
	if pageToken != "" {
		params.Set("next_page_token", pageToken)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiBaseURL+"/users?"+params.Encode(), nil)
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
		return nil, fmt.Errorf("list users failed, status: %d", resp.StatusCode)
	}

	var page usersResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &page, nil
}

func getSelf(ctx context.Context, token string) (*zoomUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiBaseURL+"/users/me", nil)
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
		return nil, fmt.Errorf("get self failed, status: %d", resp.StatusCode)
	}

	var me zoomUser
	if err := json.NewDecoder(resp.Body).Decode(&me); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &me, nil
}

func parseLastLogin(value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil
	}
	return &t
}
