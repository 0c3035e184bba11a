package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/stackpilot/stackpilot/pkg/source"
	"github.com/stackpilot/stackpilot/services/integration/model"
	"github.com/stackpilot/stackpilot/services/integration/vendor-type/interfaces"
)

var accessKeyPattern = regexp.MustCompile(`^(AKIA|ASIA)[A-Z0-9]{16}$`)

type AWSVendor struct{}

func CreateAWSVendor() (interfaces.Vendor, error) {
	return &AWSVendor{}, nil
}

func (v *AWSVendor) Type() source.Type {
	return source.TypeAWS
}

func (v *AWSVendor) RequiredFields() []string {
	return []string{"accessKey", "secretKey", "region"}
}

func (v *AWSVendor) FormatWarnings(fields map[string]string) []string {
	var warnings []string
	if key := fields["accessKey"]; key != "" && !accessKeyPattern.MatchString(key) {
		warnings = append(warnings, "accessKey does not look like an AWS access key ID")
	}
	return warnings
}

func (v *AWSVendor) sdkConfig(ctx context.Context, fields map[string]string) (awssdk.Config, error) {
	region := fields["region"]
	if region == "" {
		region = "us-east-1"
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(fields["accessKey"], fields["secretKey"], ""),
		),
	)
	if err != nil {
		return awssdk.Config{}, fmt.Errorf("load sdk config: %w", err)
	}
	return cfg, nil
}

// Connect verifies the key pair against the live API before any connection
// record is created; the account id comes from STS, not from user input.
func (v *AWSVendor) Connect(ctx context.Context, fields map[string]string) (*interfaces.Account, error) {
	cfg, err := v.sdkConfig(ctx, fields)
	if err != nil {
		return nil, err
	}

	identity, err := sts.NewFromConfig(cfg).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, fmt.Errorf("get caller identity: %w", err)
	}

	return &interfaces.Account{
		ExternalID: awssdk.ToString(identity.Account),
		Name:       awssdk.ToString(identity.Arn),
	}, nil
}

func (v *AWSVendor) FetchUsers(ctx context.Context, access interfaces.Access) ([]model.PlatformUser, error) {
	cfg, err := v.sdkConfig(ctx, access.Fields)
	if err != nil {
		return nil, err
	}
	client := iam.NewFromConfig(cfg)

	var users []model.PlatformUser
	paginator := iam.NewListUsersPaginator(client, &iam.ListUsersInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list iam users: %w", err)
		}

		for _, u := range page.Users {
			policies, err := attachedPolicyNames(ctx, client, awssdk.ToString(u.UserName))
			if err != nil {
				return nil, err
			}
			policiesJSON, err := json.Marshal(policies)
			if err != nil {
				return nil, err
			}

			// IAM users carry no email, so they sit out of email
			// correlation.
			users = append(users, model.PlatformUser{
				CompanyID:        access.CompanyID,
				AppType:          source.TypeAWS,
				ExternalID:       awssdk.ToString(u.UserId),
				DisplayName:      awssdk.ToString(u.UserName),
				IsAdmin:          isAdminPolicySet(policies),
				AttachedPolicies: policiesJSON,
				LastActivityAt:   u.PasswordLastUsed,
				IsActive:         true,
			})
		}
	}

	return users, nil
}

func attachedPolicyNames(ctx context.Context, client *iam.Client, userName string) ([]string, error) {
	var names []string
	paginator := iam.NewListAttachedUserPoliciesPaginator(client, &iam.ListAttachedUserPoliciesInput{
		UserName: awssdk.String(userName),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list attached policies for %s: %w", userName, err)
		}
		for _, policy := range page.AttachedPolicies {
			names = append(names, awssdk.ToString(policy.PolicyName))
		}
	}
	return names, nil
}

func isAdminPolicySet(policies []string) bool {
	for _, name := range policies {
		if strings.Contains(name, "Admin") || strings.Contains(name, "PowerUser") {
			return true
		}
	}
	return false
}
