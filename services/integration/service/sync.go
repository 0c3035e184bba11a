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
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SyncReport summarizes one company-wide user sync. Per-vendor failures are
// isolated: they land in Failed with the connection marked, and the other
// vendors proceed.
type SyncReport struct {
	Synced map[source.Type]int
	Failed map[source.Type]string
}

type UserSync struct {
	tracer      trace.Tracer
	credentials Credential
	connections repository.Connection
	users       repository.PlatformUser
	sealer      *vault.Sealer
	vendors     map[source.Type]interfaces.VendorCreator
	logger      *zap.Logger
}

func NewUserSync(
	credentials Credential,
	connections repository.Connection,
	users repository.PlatformUser,
	sealer *vault.Sealer,
	vendors map[source.Type]interfaces.VendorCreator,
	logger *zap.Logger,
) UserSync {
	return UserSync{
		tracer:      otel.GetTracerProvider().Tracer("integration.service.usersync"),
		credentials: credentials,
		connections: connections,
		users:       users,
		sealer:      sealer,
		vendors:     vendors,
		logger:      logger.Named("service").Named("usersync"),
	}
}

// SyncCompany pulls the directory of every connected vendor in parallel and
// upserts the normalized users. The fan-out is fixed-width: one goroutine per
// active connection.
func (h UserSync) SyncCompany(ctx context.Context, companyID string) (SyncReport, error) {
	ctx, span := h.tracer.Start(ctx, "sync-company")
	defer span.End()

	connections, err := h.connections.ListActive(ctx, companyID)
	if err != nil {
		return SyncReport{}, err
	}

	report := SyncReport{
		Synced: make(map[source.Type]int),
		Failed: make(map[source.Type]string),
	}

	type outcome struct {
		appType source.Type
		count   int
		err     error
	}
	results := make([]outcome, len(connections))

	g, gctx := errgroup.WithContext(ctx)
	for i, conn := range connections {
		i, conn := i, conn
		g.Go(func() error {
			count, err := h.syncConnection(gctx, conn)
			results[i] = outcome{appType: conn.AppType, count: count, err: err}
			// Vendor failures are recorded, never propagated: one failed
			// platform must not cancel its siblings.
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	for _, r := range results {
		if r.err != nil {
			report.Failed[r.appType] = r.err.Error()
			continue
		}
		report.Synced[r.appType] = r.count
	}

	return report, nil
}

func (h UserSync) syncConnection(ctx context.Context, conn model.ServiceConnection) (int, error) {
	logger := h.logger.With(
		zap.String("companyId", conn.CompanyID),
		zap.String("appType", conn.AppType.String()))

	if err := h.connections.UpdateStatus(ctx, conn.ID, source.ConnectionStatusSyncing, ""); err != nil {
		return 0, err
	}

	count, err := h.pullAndStore(ctx, conn)
	if err != nil {
		// The failure is recorded on the connection whether the pull or the
		// store phase broke; a connection must never stay in syncing.
		logger.Error("vendor sync failed", zap.Error(err))
		if dbErr := h.connections.UpdateStatus(ctx, conn.ID, source.ConnectionStatusError, err.Error()); dbErr != nil {
			logger.Error("failed to mark connection failed", zap.Error(dbErr))
		}
		return 0, err
	}

	logger.Info("vendor sync finished", zap.Int("users", count))
	return count, nil
}

func (h UserSync) pullAndStore(ctx context.Context, conn model.ServiceConnection) (int, error) {
	users, err := h.fetchUsers(ctx, conn)
	if err != nil {
		return 0, err
	}

	if err := h.users.UpsertBatch(ctx, users); err != nil {
		return 0, err
	}

	keep := make([]string, 0, len(users))
	for _, u := range users {
		keep = append(keep, u.ExternalID)
	}
	if err := h.users.DeactivateMissing(ctx, conn.CompanyID, conn.AppType, keep); err != nil {
		return 0, err
	}

	if err := h.connections.MarkSynced(ctx, conn.ID, time.Now()); err != nil {
		return 0, err
	}

	return len(users), nil
}

func (h UserSync) fetchUsers(ctx context.Context, conn model.ServiceConnection) ([]model.PlatformUser, error) {
	creator, ok := h.vendors[conn.AppType]
	if !ok {
		return nil, fmt.Errorf("unsupported app type: %s", conn.AppType)
	}
	vendor, err := creator()
	if err != nil {
		return nil, err
	}

	fields, err := h.credentials.GetDecrypted(ctx, conn.CompanyID, conn.AppType, "")
	if err != nil {
		return nil, err
	}
	if fields == nil {
		fields = map[string]string{}
	}

	access := interfaces.Access{
		CompanyID: conn.CompanyID,
		Fields:    fields,
	}

	if len(conn.Tokens) > 0 && string(conn.Tokens) != "{}" {
		var sealed vault.EncryptedValue
		if err := json.Unmarshal(conn.Tokens, &sealed); err != nil {
			return nil, fmt.Errorf("decode sealed tokens: %w", err)
		}
		tokens, err := h.sealer.OpenMap(sealed)
		if err != nil {
			return nil, fmt.Errorf("open sealed tokens: %w", err)
		}
		access.Tokens = tokens
	}

	return vendor.FetchUsers(ctx, access)
}
