package sync

import (
	"context"
	"time"

	"github.com/stackpilot/stackpilot/pkg/utils"
	"github.com/stackpilot/stackpilot/services/integration/repository"
	"github.com/stackpilot/stackpilot/services/integration/service"
	"go.uber.org/zap"
)

// UserSyncer pulls vendor directories for one company.
type UserSyncer interface {
	SyncCompany(ctx context.Context, companyID string) (service.SyncReport, error)
}

// Correlator rebuilds one company's correlated identity set.
type Correlator interface {
	RunCompany(ctx context.Context, companyID string) (int, error)
}

// Scheduler drives the periodic background work: user sync for every company
// with at least one active connection, and a correlation rebuild after each
// sync round. The two timers are independent so a slow correlation never
// starves the sync loop.
type Scheduler struct {
	syncSvc        UserSyncer
	correlationSvc Correlator
	connections    repository.Connection

	syncInterval        time.Duration
	correlationInterval time.Duration

	logger *zap.Logger
}

func NewScheduler(
	syncSvc UserSyncer,
	correlationSvc Correlator,
	connections repository.Connection,
	syncInterval time.Duration,
	correlationInterval time.Duration,
	logger *zap.Logger,
) *Scheduler {
	return &Scheduler{
		syncSvc:             syncSvc,
		correlationSvc:      correlationSvc,
		connections:         connections,
		syncInterval:        syncInterval,
		correlationInterval: correlationInterval,
		logger:              logger.Named("scheduler"),
	}
}

func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("scheduler started",
		zap.Duration("sync_interval", s.syncInterval),
		zap.Duration("correlation_interval", s.correlationInterval))

	utils.EnsureRunGoroutine(func() {
		s.runSyncLoop(ctx)
	})
	utils.EnsureRunGoroutine(func() {
		s.runCorrelationLoop(ctx)
	})
}

func (s *Scheduler) runSyncLoop(ctx context.Context) {
	ticker := time.NewTicker(s.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sync loop stopped")
			return
		case <-ticker.C:
			s.syncAll(ctx)
		}
	}
}

func (s *Scheduler) runCorrelationLoop(ctx context.Context) {
	ticker := time.NewTicker(s.correlationInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("correlation loop stopped")
			return
		case <-ticker.C:
			s.correlateAll(ctx)
		}
	}
}

// syncAll runs one sync round. A failing company is logged and skipped, the
// round always visits every company.
func (s *Scheduler) syncAll(ctx context.Context) {
	companies, err := s.connections.ListCompanies(ctx)
	if err != nil {
		s.logger.Error("listing companies for sync", zap.Error(err))
		return
	}

	for _, companyID := range companies {
		report, err := s.syncSvc.SyncCompany(ctx, companyID)
		if err != nil {
			s.logger.Error("company sync failed",
				zap.String("company_id", companyID),
				zap.Error(err))
			continue
		}

		s.logger.Info("company synced",
			zap.String("company_id", companyID),
			zap.Int("vendors_synced", len(report.Synced)),
			zap.Int("vendors_failed", len(report.Failed)))
	}
}

func (s *Scheduler) correlateAll(ctx context.Context) {
	companies, err := s.connections.ListCompanies(ctx)
	if err != nil {
		s.logger.Error("listing companies for correlation", zap.Error(err))
		return
	}

	for _, companyID := range companies {
		count, err := s.correlationSvc.RunCompany(ctx, companyID)
		if err != nil {
			s.logger.Error("company correlation failed",
				zap.String("company_id", companyID),
				zap.Error(err))
			continue
		}

		s.logger.Info("company correlated",
			zap.String("company_id", companyID),
			zap.Int("users", count))
	}
}
