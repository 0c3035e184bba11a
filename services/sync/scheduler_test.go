package sync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stackpilot/stackpilot/pkg/source"
	"github.com/stackpilot/stackpilot/services/integration/model"
	"github.com/stackpilot/stackpilot/services/integration/service"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeCompanyLister struct {
	companies []string
}

func (f *fakeCompanyLister) Upsert(context.Context, *model.ServiceConnection) error { return nil }

func (f *fakeCompanyLister) ListActive(context.Context, string) ([]model.ServiceConnection, error) {
	return nil, nil
}

func (f *fakeCompanyLister) ListActiveOfType(context.Context, string, source.Type) ([]model.ServiceConnection, error) {
	return nil, nil
}

func (f *fakeCompanyLister) Deactivate(context.Context, uuid.UUID) error { return nil }

func (f *fakeCompanyLister) UpdateStatus(context.Context, uuid.UUID, source.ConnectionStatus, string) error {
	return nil
}

func (f *fakeCompanyLister) MarkSynced(context.Context, uuid.UUID, time.Time) error { return nil }

func (f *fakeCompanyLister) ListCompanies(context.Context) ([]string, error) {
	return f.companies, nil
}

type fakeSyncer struct {
	mu     sync.Mutex
	calls  []string
	errFor map[string]error
}

func (f *fakeSyncer) SyncCompany(_ context.Context, companyID string) (service.SyncReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, companyID)
	if err := f.errFor[companyID]; err != nil {
		return service.SyncReport{}, err
	}
	return service.SyncReport{}, nil
}

func (f *fakeSyncer) called() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakeCorrelator struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeCorrelator) RunCompany(_ context.Context, companyID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, companyID)
	return 0, nil
}

func (f *fakeCorrelator) called() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func newTestScheduler(syncer *fakeSyncer, correlator *fakeCorrelator, companies ...string) *Scheduler {
	return NewScheduler(
		syncer,
		correlator,
		&fakeCompanyLister{companies: companies},
		10*time.Millisecond,
		10*time.Millisecond,
		zap.NewNop(),
	)
}

func TestSchedulerTicksBothLoops(t *testing.T) {
	syncer := &fakeSyncer{}
	correlator := &fakeCorrelator{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	newTestScheduler(syncer, correlator, "acme").Run(ctx)

	assert.Eventually(t, func() bool {
		return len(syncer.called()) > 0 && len(correlator.called()) > 0
	}, time.Second, 5*time.Millisecond)

	assert.Contains(t, syncer.called(), "acme")
	assert.Contains(t, correlator.called(), "acme")
}

func TestSchedulerStopsOnContextCancel(t *testing.T) {
	syncer := &fakeSyncer{}
	correlator := &fakeCorrelator{}

	ctx, cancel := context.WithCancel(context.Background())
	newTestScheduler(syncer, correlator, "acme").Run(ctx)

	assert.Eventually(t, func() bool {
		return len(syncer.called()) > 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	// An already fired tick may still land; the count must settle after that.
	time.Sleep(30 * time.Millisecond)
	settled := len(syncer.called())
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, len(syncer.called()))
}

func TestSchedulerSyncRoundSkipsFailingCompany(t *testing.T) {
	syncer := &fakeSyncer{errFor: map[string]error{"broken": errors.New("vendor down")}}
	correlator := &fakeCorrelator{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	newTestScheduler(syncer, correlator, "broken", "acme").Run(ctx)

	assert.Eventually(t, func() bool {
		calls := syncer.called()
		return contains(calls, "broken") && contains(calls, "acme")
	}, time.Second, 5*time.Millisecond)
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
