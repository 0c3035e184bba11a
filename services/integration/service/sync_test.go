package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stackpilot/stackpilot/pkg/source"
	"github.com/stackpilot/stackpilot/services/integration/model"
)

func TestSyncCompanyIsolatesVendorFailures(t *testing.T) {
	credRepo := newFakeCredentialRepo()
	connRepo := newFakeConnectionRepo()
	userRepo := newFakePlatformUserRepo()
	sealer := testSealer(t)

	github := &fakeVendor{
		typ:      source.TypeGithub,
		required: []string{"token"},
		users: []model.PlatformUser{
			{CompanyID: "acme", AppType: source.TypeGithub, ExternalID: "gh-1", Email: "a@co.com"},
			{CompanyID: "acme", AppType: source.TypeGithub, ExternalID: "gh-2", Email: "b@co.com"},
		},
	}
	slack := &fakeVendor{
		typ:      source.TypeSlack,
		required: []string{"clientId"},
		fetchErr: errors.New("rate limited"),
	}
	registry := registryOf(github, slack)

	credentialSvc := NewCredential(credRepo, sealer, registry, zap.NewNop())
	_, err := credentialSvc.Save(context.Background(), "acme", source.TypeGithub, "", map[string]string{"token": "ghp_x"}, "u-1")
	require.NoError(t, err)

	ghConn := &model.ServiceConnection{CompanyID: "acme", AppType: source.TypeGithub, ExternalAccountID: "acme-org", IsActive: true}
	slConn := &model.ServiceConnection{CompanyID: "acme", AppType: source.TypeSlack, ExternalAccountID: "T123", IsActive: true}
	require.NoError(t, connRepo.Upsert(context.Background(), ghConn))
	require.NoError(t, connRepo.Upsert(context.Background(), slConn))

	svc := NewUserSync(credentialSvc, connRepo, userRepo, sealer, registry, zap.NewNop())

	report, err := svc.SyncCompany(context.Background(), "acme")
	require.NoError(t, err)

	assert.Equal(t, 2, report.Synced[source.TypeGithub])
	assert.Equal(t, "rate limited", report.Failed[source.TypeSlack])
	assert.NotContains(t, report.Synced, source.TypeSlack)

	assert.Len(t, userRepo.upserted, 2)
	assert.Equal(t, []string{"gh-1", "gh-2"}, userRepo.deactivated[source.TypeGithub])

	assert.Equal(t, source.ConnectionStatusConnected, connRepo.conns[ghConn.ID].Status)
	assert.NotNil(t, connRepo.conns[ghConn.ID].LastSyncAt)
	assert.Equal(t, source.ConnectionStatusError, connRepo.conns[slConn.ID].Status)
	assert.Equal(t, "rate limited", connRepo.conns[slConn.ID].SyncError)
}

func TestSyncCompanyStoreFailureMarksConnectionError(t *testing.T) {
	credRepo := newFakeCredentialRepo()
	connRepo := newFakeConnectionRepo()
	userRepo := newFakePlatformUserRepo()
	userRepo.upsertErr = errors.New("deadlock detected")
	sealer := testSealer(t)

	github := &fakeVendor{
		typ:      source.TypeGithub,
		required: []string{"token"},
		users: []model.PlatformUser{
			{CompanyID: "acme", AppType: source.TypeGithub, ExternalID: "gh-1", Email: "a@co.com"},
		},
	}
	registry := registryOf(github)

	credentialSvc := NewCredential(credRepo, sealer, registry, zap.NewNop())
	_, err := credentialSvc.Save(context.Background(), "acme", source.TypeGithub, "", map[string]string{"token": "ghp_x"}, "u-1")
	require.NoError(t, err)

	conn := &model.ServiceConnection{CompanyID: "acme", AppType: source.TypeGithub, ExternalAccountID: "acme-org", IsActive: true}
	require.NoError(t, connRepo.Upsert(context.Background(), conn))

	svc := NewUserSync(credentialSvc, connRepo, userRepo, sealer, registry, zap.NewNop())

	report, err := svc.SyncCompany(context.Background(), "acme")
	require.NoError(t, err)

	assert.Equal(t, "deadlock detected", report.Failed[source.TypeGithub])
	assert.Equal(t, source.ConnectionStatusError, connRepo.conns[conn.ID].Status)
	assert.Equal(t, "deadlock detected", connRepo.conns[conn.ID].SyncError)
}

func TestSyncCompanyNoConnections(t *testing.T) {
	registry := registryOf()
	credentialSvc := NewCredential(newFakeCredentialRepo(), testSealer(t), registry, zap.NewNop())
	svc := NewUserSync(credentialSvc, newFakeConnectionRepo(), newFakePlatformUserRepo(), testSealer(t), registry, zap.NewNop())

	report, err := svc.SyncCompany(context.Background(), "acme")
	require.NoError(t, err)
	assert.Empty(t, report.Synced)
	assert.Empty(t, report.Failed)
}
