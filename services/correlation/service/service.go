package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/stackpilot/stackpilot/services/correlation/engine"
	"github.com/stackpilot/stackpilot/services/integration/model"
	"github.com/stackpilot/stackpilot/services/integration/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type Correlation struct {
	tracer     trace.Tracer
	users      repository.PlatformUser
	crossUsers repository.CrossUser
	logger     *zap.Logger
	now        func() time.Time
}

func NewCorrelation(
	users repository.PlatformUser,
	crossUsers repository.CrossUser,
	logger *zap.Logger,
) Correlation {
	return Correlation{
		tracer:     otel.GetTracerProvider().Tracer("correlation.service"),
		users:      users,
		crossUsers: crossUsers,
		logger:     logger.Named("service").Named("correlation"),
		now:        time.Now,
	}
}

// RunCompany recomputes the whole correlated identity set for one company.
// Any failure aborts the run without partial upserts for the remaining
// entries; the next scheduled run recomputes everything anyway.
func (h Correlation) RunCompany(ctx context.Context, companyID string) (int, error) {
	ctx, span := h.tracer.Start(ctx, "run-company")
	defer span.End()

	users, err := h.users.ListActiveByCompany(ctx, companyID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	correlated := engine.Correlate(users, h.now())

	keepEmails := make([]string, 0, len(correlated))
	for _, entry := range correlated {
		row, err := h.toModel(companyID, entry)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return 0, err
		}
		if err := h.crossUsers.Upsert(ctx, row); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return 0, err
		}
		keepEmails = append(keepEmails, entry.PrimaryEmail)
	}

	// Identities whose email vanished from every platform are retired, not
	// kept as history.
	if err := h.crossUsers.DeactivateMissing(ctx, companyID, keepEmails); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	h.logger.Info("correlation run finished",
		zap.String("companyId", companyID),
		zap.Int("platformUsers", len(users)),
		zap.Int("correlatedUsers", len(correlated)))

	return len(correlated), nil
}

func (h Correlation) toModel(companyID string, entry engine.CorrelatedUser) (*model.CrossPlatformUser, error) {
	platforms, err := json.Marshal(entry.Platforms)
	if err != nil {
		return nil, err
	}
	ghost, err := json.Marshal(entry.GhostStatus)
	if err != nil {
		return nil, err
	}
	risks, err := json.Marshal(entry.SecurityRisks)
	if err != nil {
		return nil, err
	}
	waste, err := json.Marshal(entry.LicenseWaste)
	if err != nil {
		return nil, err
	}

	return &model.CrossPlatformUser{
		CompanyID:     companyID,
		PrimaryEmail:  entry.PrimaryEmail,
		Platforms:     platforms,
		GhostStatus:   ghost,
		SecurityRisks: risks,
		LicenseWaste:  waste,
		IsActive:      true,
		LastSyncAt:    h.now(),
	}, nil
}
