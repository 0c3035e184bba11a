package interfaces

import (
	"context"

	"github.com/stackpilot/stackpilot/pkg/source"
	"github.com/stackpilot/stackpilot/services/integration/model"
)

// Account is the vendor account a successful connect or token exchange
// resolves to.
type Account struct {
	ExternalID string
	Name       string
	Scope      string

	// Tokens is the raw token bundle for OAuth vendors; the caller seals it
	// before it touches storage. Nil for API-key vendors.
	Tokens map[string]any
}

// Access carries everything a vendor call needs: the decrypted credential
// fields and, for OAuth vendors, the opened token bundle of the connection.
type Access struct {
	CompanyID string
	Fields    map[string]string
	Tokens    map[string]any
}

// Vendor is the per-platform capability set. Adding a platform means one
// implementation plus one registry entry.
type Vendor interface {
	Type() source.Type

	// RequiredFields is the static credential schema; missing fields are a
	// validation error.
	RequiredFields() []string

	// FormatWarnings reports advisory format mismatches. They never reject.
	FormatWarnings(fields map[string]string) []string

	// Connect validates the credential fields against the live API and
	// resolves the vendor account.
	Connect(ctx context.Context, fields map[string]string) (*Account, error)

	// FetchUsers pulls the vendor directory as normalized platform users.
	FetchUsers(ctx context.Context, access Access) ([]model.PlatformUser, error)
}

// OAuthVendor is implemented by vendors whose connect flow goes through a
// browser redirect instead of a direct credential check.
type OAuthVendor interface {
	Vendor

	// AuthorizeURL builds the vendor authorize endpoint with the CSRF state
	// token bound in.
	AuthorizeURL(state string, fields map[string]string) string

	// Exchange swaps the callback code for tokens and resolves the account.
	Exchange(ctx context.Context, code string, fields map[string]string) (*Account, error)
}

// VendorCreator builds a vendor implementation for the registry.
type VendorCreator func() (Vendor, error)
