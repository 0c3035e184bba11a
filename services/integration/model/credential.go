package model

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/stackpilot/stackpilot/pkg/source"
	"github.com/stackpilot/stackpilot/pkg/vault"
	"gorm.io/datatypes"
)

// CredentialSet is the encrypted, company-scoped secret bundle for one vendor
// integration. Sensitive fields are stored as vault.EncryptedValue triples,
// the rest (region, workspace domain, ...) as plaintext JSON strings.
type CredentialSet struct {
	ID        uuid.UUID   `gorm:"primaryKey;type:uuid;default:uuid_generate_v4()"`
	CompanyID string      `gorm:"index:idx_credential_company_app,unique,priority:1;not null"`
	AppType   source.Type `gorm:"index:idx_credential_company_app,unique,priority:2;not null"`
	AppName   string      `gorm:"index:idx_credential_company_app,unique,priority:3;not null"`

	Fields   datatypes.JSON `gorm:"default:'{}'"`
	IsActive bool           `gorm:"not null;default:true"`

	CreatedBy string

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt sql.NullTime `gorm:"index"`
}

func (CredentialSet) TableName() string {
	return "credential_sets"
}

// CredentialFields is the decoded Fields column: field name to either an
// EncryptedValue object or a raw JSON string.
type CredentialFields map[string]json.RawMessage

func (c *CredentialSet) DecodeFields() (CredentialFields, error) {
	fields := make(CredentialFields)
	if len(c.Fields) == 0 {
		return fields, nil
	}
	if err := json.Unmarshal(c.Fields, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func (c *CredentialSet) EncodeFields(fields CredentialFields) error {
	bytes, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	c.Fields = bytes
	return nil
}

// AsEncrypted decodes a single field value as an EncryptedValue triple. The
// second return is false for plaintext (non-sensitive or legacy) values.
func (f CredentialFields) AsEncrypted(name string) (vault.EncryptedValue, bool) {
	raw, ok := f[name]
	if !ok {
		return vault.EncryptedValue{}, false
	}
	var v vault.EncryptedValue
	if err := json.Unmarshal(raw, &v); err != nil {
		return vault.EncryptedValue{}, false
	}
	if !v.IsWellFormed() {
		return vault.EncryptedValue{}, false
	}
	return v, true
}

// AsPlain decodes a single field value as a plaintext string.
func (f CredentialFields) AsPlain(name string) (string, bool) {
	raw, ok := f[name]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}
