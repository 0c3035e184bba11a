package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

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

// ConnectResult is what the smart-connect flow hands back: either a live
// connection, an oauth redirect, or the state explaining why neither exists.
type ConnectResult struct {
	State       source.ConnectState
	RedirectURL string
	Connection  *model.ServiceConnection
	Reason      string
}

// DisconnectResult reports a best-effort teardown. Partial failures land in
// Errors; the call never aborts on the first one.
type DisconnectResult struct {
	CredentialsDeactivated bool
	ConnectionsDeleted     int
	Errors                 []string
}

type Connect struct {
	tracer      trace.Tracer
	credentials Credential
	connections repository.Connection
	sealer      *vault.Sealer
	vendors     map[source.Type]interfaces.VendorCreator
	credRepo    repository.Credential
	logger      *zap.Logger
	now         func() time.Time
}

func NewConnect(
	credentials Credential,
	credRepo repository.Credential,
	connections repository.Connection,
	sealer *vault.Sealer,
	vendors map[source.Type]interfaces.VendorCreator,
	logger *zap.Logger,
) Connect {
	return Connect{
		tracer:      otel.GetTracerProvider().Tracer("integration.service.connect"),
		credentials: credentials,
		credRepo:    credRepo,
		connections: connections,
		sealer:      sealer,
		vendors:     vendors,
		logger:      logger.Named("service").Named("connect"),
		now:         time.Now,
	}
}

func (h Connect) vendor(appType source.Type) (interfaces.Vendor, error) {
	creator, ok := h.vendors[appType]
	if !ok {
		return nil, fmt.Errorf("unsupported app type: %s", appType)
	}
	return creator()
}

// Status reports the smart-connect state for one (company, app type) pair.
func (h Connect) Status(ctx context.Context, companyID string, appType source.Type) (ConnectResult, error) {
	ctx, span := h.tracer.Start(ctx, "connect-status")
	defer span.End()

	connections, err := h.connections.ListActiveOfType(ctx, companyID, appType)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ConnectResult{}, err
	}
	if len(connections) > 0 {
		return ConnectResult{State: source.ConnectStateConnected, Connection: &connections[0]}, nil
	}

	hasCreds, err := h.credentials.Has(ctx, companyID, appType)
	if err != nil {
		return ConnectResult{}, err
	}
	if !hasCreds {
		return ConnectResult{State: source.ConnectStateSetupRequired}, nil
	}

	fields, err := h.credentials.GetDecrypted(ctx, companyID, appType, "")
	if err != nil {
		return ConnectResult{}, err
	}
	if fields == nil {
		return ConnectResult{
			State:  source.ConnectStateCredentialsInvalid,
			Reason: "stored credentials could not be decrypted",
		}, nil
	}

	vendor, err := h.vendor(appType)
	if err != nil {
		return ConnectResult{}, err
	}
	var missing []string
	for _, name := range vendor.RequiredFields() {
		if fields[name] == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return ConnectResult{
			State:  source.ConnectStateCredentialsInvalid,
			Reason: (&ValidationError{MissingFields: missing}).Error(),
		}, nil
	}

	return ConnectResult{State: source.ConnectStateAvailable}, nil
}

// Connect moves an available service to connected: an oauth redirect URL for
// redirect vendors, a live credential check plus connection record for the
// rest. Every vendor is verified against its API before a record is written.
func (h Connect) Connect(ctx context.Context, companyID string, appType source.Type) (ConnectResult, error) {
	ctx, span := h.tracer.Start(ctx, "connect")
	defer span.End()

	status, err := h.Status(ctx, companyID, appType)
	if err != nil {
		return ConnectResult{}, err
	}
	switch status.State {
	case source.ConnectStateConnected:
		return status, nil
	case source.ConnectStateSetupRequired, source.ConnectStateCredentialsInvalid:
		return status, nil
	}

	fields, err := h.credentials.GetDecrypted(ctx, companyID, appType, "")
	if err != nil {
		return ConnectResult{}, err
	}

	vendor, err := h.vendor(appType)
	if err != nil {
		return ConnectResult{}, err
	}

	if oauthVendor, ok := vendor.(interfaces.OAuthVendor); ok {
		state, err := EncodeStateToken(companyID, appType, h.now())
		if err != nil {
			return ConnectResult{}, err
		}
		return ConnectResult{
			State:       source.ConnectStateAvailable,
			RedirectURL: oauthVendor.AuthorizeURL(state, fields),
		}, nil
	}

	account, err := vendor.Connect(ctx, fields)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.logger.Warn("vendor connect failed",
			zap.String("companyId", companyID),
			zap.String("appType", appType.String()),
			zap.Error(err))
		return ConnectResult{
			State:  source.ConnectStateCredentialsInvalid,
			Reason: err.Error(),
		}, nil
	}

	conn, err := h.saveConnection(ctx, companyID, appType, account)
	if err != nil {
		return ConnectResult{}, err
	}

	return ConnectResult{State: source.ConnectStateConnected, Connection: conn}, nil
}

// HandleOAuthCallback finishes a redirect flow: state verification, code
// exchange, sealed token storage.
func (h Connect) HandleOAuthCallback(ctx context.Context, appType source.Type, state, code string) (*model.ServiceConnection, error) {
	ctx, span := h.tracer.Start(ctx, "oauth-callback")
	defer span.End()

	token, err := DecodeStateToken(state, appType, h.now())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	fields, err := h.credentials.GetDecrypted(ctx, token.CompanyID, appType, "")
	if err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, ErrCredentialNotFound
	}

	vendor, err := h.vendor(appType)
	if err != nil {
		return nil, err
	}
	oauthVendor, ok := vendor.(interfaces.OAuthVendor)
	if !ok {
		return nil, fmt.Errorf("%s does not use the oauth flow", appType)
	}

	account, err := oauthVendor.Exchange(ctx, code, fields)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	return h.saveConnection(ctx, token.CompanyID, appType, account)
}

func (h Connect) saveConnection(ctx context.Context, companyID string, appType source.Type, account *interfaces.Account) (*model.ServiceConnection, error) {
	conn := &model.ServiceConnection{
		CompanyID:         companyID,
		AppType:           appType,
		ExternalAccountID: account.ExternalID,
		AccountName:       account.Name,
		Scope:             account.Scope,
		Status:            source.ConnectionStatusConnected,
		IsActive:          true,
	}

	if len(account.Tokens) > 0 {
		sealed, err := h.sealer.SealMap(account.Tokens)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(sealed)
		if err != nil {
			return nil, err
		}
		conn.Tokens = raw
	}

	if err := h.connections.Upsert(ctx, conn); err != nil {
		return nil, err
	}

	h.logger.Info("service connected",
		zap.String("companyId", companyID),
		zap.String("appType", appType.String()),
		zap.String("account", account.ExternalID))

	return conn, nil
}

// Disconnect soft-deletes the credential set and every connection for the
// vendor. Failures are collected, not thrown: a stuck connection row must not
// keep the rest of the teardown from happening.
func (h Connect) Disconnect(ctx context.Context, companyID string, appType source.Type) DisconnectResult {
	ctx, span := h.tracer.Start(ctx, "disconnect")
	defer span.End()

	result := DisconnectResult{}

	if err := h.credRepo.Deactivate(ctx, companyID, appType); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("credentials: %s", err))
	} else {
		result.CredentialsDeactivated = true
	}

	connections, err := h.connections.ListActiveOfType(ctx, companyID, appType)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("list connections: %s", err))
		return result
	}

	for _, conn := range connections {
		if err := h.connections.Deactivate(ctx, conn.ID); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("connection %s: %s", conn.ID, err))
			continue
		}
		result.ConnectionsDeleted++
	}

	h.logger.Info("service disconnected",
		zap.String("companyId", companyID),
		zap.String("appType", appType.String()),
		zap.Int("connectionsDeleted", result.ConnectionsDeleted),
		zap.Int("errors", len(result.Errors)))

	return result
}
