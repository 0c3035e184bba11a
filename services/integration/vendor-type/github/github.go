package github

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/google/go-github/v55/github"
	"github.com/stackpilot/stackpilot/pkg/source"
	"github.com/stackpilot/stackpilot/services/integration/model"
	"github.com/stackpilot/stackpilot/services/integration/vendor-type/interfaces"
	"golang.org/x/oauth2"
)

var tokenPattern = regexp.MustCompile(`^(ghp_|github_pat_)`)

type GithubVendor struct{}

func CreateGithubVendor() (interfaces.Vendor, error) {
	return &GithubVendor{}, nil
}

func (v *GithubVendor) Type() source.Type {
	return source.TypeGithub
}

func (v *GithubVendor) RequiredFields() []string {
	return []string{"token", "organization"}
}

func (v *GithubVendor) FormatWarnings(fields map[string]string) []string {
	var warnings []string
	if token := fields["token"]; token != "" && !tokenPattern.MatchString(token) {
		warnings = append(warnings, "token does not look like a GitHub personal access token")
	}
	return warnings
}

func (v *GithubVendor) client(ctx context.Context, token string) *github.Client {
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	return github.NewClient(oauth2.NewClient(ctx, ts))
}

// Connect is a whoami-style PAT validation against the live API.
func (v *GithubVendor) Connect(ctx context.Context, fields map[string]string) (*interfaces.Account, error) {
	client := v.client(ctx, fields["token"])

	me, _, err := client.Users.Get(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("validate token: %w", err)
	}

	org := fields["organization"]
	if _, _, err := client.Organizations.Get(ctx, org); err != nil {
		return nil, fmt.Errorf("get organization %s: %w", org, err)
	}

	return &interfaces.Account{
		ExternalID: strconv.FormatInt(me.GetID(), 10),
		Name:       org,
	}, nil
}

func (v *GithubVendor) FetchUsers(ctx context.Context, access interfaces.Access) ([]model.PlatformUser, error) {
	client := v.client(ctx, access.Fields["token"])
	org := access.Fields["organization"]

	var users []model.PlatformUser
	opts := &github.ListMembersOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	}
	for {
		members, resp, err := client.Organizations.ListMembers(ctx, org, opts)
		if err != nil {
			return nil, fmt.Errorf("list members of %s: %w", org, err)
		}

		for _, member := range members {
			// The member listing carries no email or suspension data; the
			// per-user lookup does.
			full, _, err := client.Users.Get(ctx, member.GetLogin())
			if err != nil {
				return nil, fmt.Errorf("get user %s: %w", member.GetLogin(), err)
			}

			users = append(users, model.PlatformUser{
				CompanyID:   access.CompanyID,
				AppType:     source.TypeGithub,
				ExternalID:  strconv.FormatInt(full.GetID(), 10),
				Email:       full.GetEmail(),
				DisplayName: full.GetLogin(),
				SiteAdmin:   full.GetSiteAdmin(),
				Suspended:   full.SuspendedAt != nil,
				IsActive:    true,
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return users, nil
}
