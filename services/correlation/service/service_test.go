package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stackpilot/stackpilot/pkg/source"
	"github.com/stackpilot/stackpilot/services/integration/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePlatformUserRepo struct {
	users []model.PlatformUser
}

func (f *fakePlatformUserRepo) UpsertBatch(context.Context, []model.PlatformUser) error {
	return nil
}

func (f *fakePlatformUserRepo) ListActiveByCompany(_ context.Context, companyID string) ([]model.PlatformUser, error) {
	var out []model.PlatformUser
	for _, u := range f.users {
		if u.CompanyID == companyID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakePlatformUserRepo) ListActiveOfType(context.Context, string, source.Type) ([]model.PlatformUser, error) {
	return nil, nil
}

func (f *fakePlatformUserRepo) DeactivateMissing(context.Context, string, source.Type, []string) error {
	return nil
}

type fakeCrossUserRepo struct {
	mu   sync.Mutex
	rows map[string]*model.CrossPlatformUser

	// beforeUpsert runs outside the lock so a test can stall one run's write
	// while another run proceeds.
	beforeUpsert func(row *model.CrossPlatformUser)
}

func newFakeCrossUserRepo() *fakeCrossUserRepo {
	return &fakeCrossUserRepo{rows: make(map[string]*model.CrossPlatformUser)}
}

func crossKey(companyID, email string) string {
	return companyID + "|" + email
}

func (f *fakeCrossUserRepo) Upsert(_ context.Context, row *model.CrossPlatformUser) error {
	if f.beforeUpsert != nil {
		f.beforeUpsert(row)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[crossKey(row.CompanyID, row.PrimaryEmail)] = row
	return nil
}

func (f *fakeCrossUserRepo) ListActiveByCompany(_ context.Context, companyID string) ([]model.CrossPlatformUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.CrossPlatformUser
	for _, row := range f.rows {
		if row.CompanyID == companyID && row.IsActive {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (f *fakeCrossUserRepo) DeactivateMissing(_ context.Context, companyID string, keepEmails []string) error {
	keep := make(map[string]bool, len(keepEmails))
	for _, email := range keepEmails {
		keep[email] = true
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.CompanyID == companyID && !keep[row.PrimaryEmail] {
			row.IsActive = false
		}
	}
	return nil
}

func (f *fakeCrossUserRepo) get(companyID, email string) *model.CrossPlatformUser {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[crossKey(companyID, email)]
}

func timePtr(t time.Time) *time.Time { return &t }

func slackUser(companyID, email string) model.PlatformUser {
	return model.PlatformUser{
		CompanyID:      companyID,
		AppType:        source.TypeSlack,
		ExternalID:     "U1",
		Email:          email,
		DisplayName:    "Alice Smith",
		LastActivityAt: timePtr(time.Now().Add(-24 * time.Hour)),
		IsActive:       true,
	}
}

func TestRunCompanyPrunesVanishedEmails(t *testing.T) {
	userRepo := &fakePlatformUserRepo{users: []model.PlatformUser{
		slackUser("acme", "alice@acme.com"),
	}}
	crossRepo := newFakeCrossUserRepo()
	require.NoError(t, crossRepo.Upsert(context.Background(), &model.CrossPlatformUser{
		CompanyID:    "acme",
		PrimaryEmail: "gone@acme.com",
		IsActive:     true,
	}))

	svc := NewCorrelation(userRepo, crossRepo, zap.NewNop())

	count, err := svc.RunCompany(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	assert.True(t, crossRepo.get("acme", "alice@acme.com").IsActive)
	assert.False(t, crossRepo.get("acme", "gone@acme.com").IsActive)
}

// Overlapping runs for the same company are not mutually excluded: each run
// rebuilds rows wholesale and the last write wins, even when a run holding
// older input finishes after a newer one. The next scheduled run reconverges.
func TestRunCompanyOverlappingRunsLastWriterWins(t *testing.T) {
	userRepo := &fakePlatformUserRepo{users: []model.PlatformUser{
		slackUser("acme", "alice@acme.com"),
	}}
	crossRepo := newFakeCrossUserRepo()

	tOld := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tNew := tOld.Add(time.Hour)

	stale := NewCorrelation(userRepo, crossRepo, zap.NewNop())
	stale.now = func() time.Time { return tOld }
	fresh := NewCorrelation(userRepo, crossRepo, zap.NewNop())
	fresh.now = func() time.Time { return tNew }

	freshDone := make(chan struct{})
	crossRepo.beforeUpsert = func(row *model.CrossPlatformUser) {
		// Hold only the stale run's write until the fresh run has landed.
		if row.LastSyncAt.Equal(tOld) {
			<-freshDone
		}
	}

	staleDone := make(chan error, 1)
	go func() {
		_, err := stale.RunCompany(context.Background(), "acme")
		staleDone <- err
	}()

	_, err := fresh.RunCompany(context.Background(), "acme")
	require.NoError(t, err)
	close(freshDone)
	require.NoError(t, <-staleDone)

	row := crossRepo.get("acme", "alice@acme.com")
	require.NotNil(t, row)
	assert.True(t, row.LastSyncAt.Equal(tOld))
}
