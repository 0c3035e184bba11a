package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/stackpilot/stackpilot/pkg/source"
	"github.com/stackpilot/stackpilot/pkg/vault"
	"github.com/stackpilot/stackpilot/services/integration/model"
	"github.com/stackpilot/stackpilot/services/integration/repository"
	"github.com/stackpilot/stackpilot/services/integration/vendor-type/interfaces"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// sensitiveMarkers classifies a credential field as secret by case-insensitive
// substring match on its name.
var sensitiveMarkers = []string{"secret", "key", "token", "password"}

func IsSensitiveField(name string) bool {
	lower := strings.ToLower(name)
	for _, marker := range sensitiveMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// ValidationResult reports presence errors and advisory format warnings.
type ValidationResult struct {
	IsValid       bool
	MissingFields []string
	Warnings      []string
}

type Credential struct {
	tracer  trace.Tracer
	repo    repository.Credential
	sealer  *vault.Sealer
	vendors map[source.Type]interfaces.VendorCreator
	logger  *zap.Logger
}

func NewCredential(
	repo repository.Credential,
	sealer *vault.Sealer,
	vendors map[source.Type]interfaces.VendorCreator,
	logger *zap.Logger,
) Credential {
	return Credential{
		tracer:  otel.GetTracerProvider().Tracer("integration.service.credential"),
		repo:    repo,
		sealer:  sealer,
		vendors: vendors,
		logger:  logger.Named("service").Named("credential"),
	}
}

// Validate checks the fields against the vendor's static schema. Only
// presence is enforced; format mismatches come back as warnings.
func (h Credential) Validate(appType source.Type, fields map[string]string) (ValidationResult, error) {
	creator, ok := h.vendors[appType]
	if !ok {
		return ValidationResult{}, errors.New("unsupported app type: " + appType.String())
	}
	vendor, err := creator()
	if err != nil {
		return ValidationResult{}, err
	}

	result := ValidationResult{IsValid: true}
	for _, name := range vendor.RequiredFields() {
		if fields[name] == "" {
			result.MissingFields = append(result.MissingFields, name)
		}
	}
	if len(result.MissingFields) > 0 {
		result.IsValid = false
	}

	result.Warnings = vendor.FormatWarnings(fields)
	for _, warning := range result.Warnings {
		h.logger.Warn("credential format warning",
			zap.String("appType", appType.String()),
			zap.String("warning", warning))
	}

	return result, nil
}

// Save validates, seals every sensitive field and upserts the credential set
// keyed by (company, app type, app name).
func (h Credential) Save(ctx context.Context, companyID string, appType source.Type, appName string, fields map[string]string, userID string) (*model.CredentialSet, error) {
	ctx, span := h.tracer.Start(ctx, "save-credentials")
	defer span.End()

	validation, err := h.Validate(appType, fields)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if !validation.IsValid {
		return nil, &ValidationError{MissingFields: validation.MissingFields}
	}

	encoded := make(model.CredentialFields, len(fields))
	for name, value := range fields {
		if IsSensitiveField(name) {
			sealed, err := h.sealer.Seal(value)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return nil, err
			}
			raw, err := json.Marshal(sealed)
			if err != nil {
				return nil, err
			}
			encoded[name] = raw
		} else {
			raw, err := json.Marshal(value)
			if err != nil {
				return nil, err
			}
			encoded[name] = raw
		}
	}

	cred := &model.CredentialSet{
		CompanyID: companyID,
		AppType:   appType,
		AppName:   appName,
		IsActive:  true,
		CreatedBy: userID,
	}
	if err := cred.EncodeFields(encoded); err != nil {
		return nil, err
	}

	if err := h.repo.Upsert(ctx, cred); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	h.logger.Info("credentials saved",
		zap.String("companyId", companyID),
		zap.String("appType", appType.String()),
		zap.String("appName", appName))

	return cred, nil
}

// GetDecrypted fetches the credential set and opens each field individually.
// A malformed or undecryptable field is skipped with a warning instead of
// failing the whole fetch; nil is returned when nothing usable remains.
func (h Credential) GetDecrypted(ctx context.Context, companyID string, appType source.Type, appName string) (map[string]string, error) {
	ctx, span := h.tracer.Start(ctx, "get-decrypted-credentials")
	defer span.End()

	cred, err := h.repo.Get(ctx, companyID, appType, appName)
	if err != nil {
		if errors.Is(err, repository.ErrCredentialNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	fields, err := cred.DecodeFields()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	decrypted := make(map[string]string)
	failed := 0
	for name := range fields {
		if sealed, ok := fields.AsEncrypted(name); ok {
			plaintext, err := h.sealer.Open(sealed)
			if err != nil {
				failed++
				h.logger.Warn("skipping undecryptable credential field",
					zap.String("companyId", companyID),
					zap.String("appType", appType.String()),
					zap.String("field", name),
					zap.Error(err))
				continue
			}
			decrypted[name] = plaintext
			continue
		}

		if plain, ok := fields.AsPlain(name); ok {
			decrypted[name] = plain
			continue
		}

		failed++
		h.logger.Warn("skipping malformed credential field",
			zap.String("companyId", companyID),
			zap.String("appType", appType.String()),
			zap.String("field", name))
	}

	if len(decrypted) == 0 && failed > 0 {
		return nil, nil
	}

	return decrypted, nil
}

// Has reports whether an active credential set exists at all.
func (h Credential) Has(ctx context.Context, companyID string, appType source.Type) (bool, error) {
	_, err := h.repo.Get(ctx, companyID, appType, "")
	if errors.Is(err, repository.ErrCredentialNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
