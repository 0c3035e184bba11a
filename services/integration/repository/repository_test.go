package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	idocker "github.com/stackpilot/stackpilot/pkg/dockertest"
	"github.com/stackpilot/stackpilot/pkg/source"
	"github.com/stackpilot/stackpilot/services/integration/db"
	"github.com/stackpilot/stackpilot/services/integration/model"
)

type RepositorySuite struct {
	suite.Suite

	orm *gorm.DB

	credentials Credential
	connections Connection
	users       PlatformUser
	crossUsers  CrossUser
}

func (s *RepositorySuite) SetupSuite() {
	s.orm = idocker.StartupPostgreSQL(s.T())

	database := db.NewDatabase(s.orm)
	s.Require().NoError(database.Initialize())

	s.credentials = NewCredentialSQL(database)
	s.connections = NewConnectionSQL(database)
	s.users = NewPlatformUserSQL(database)
	s.crossUsers = NewCrossUserSQL(database)
}

func (s *RepositorySuite) SetupTest() {
	for _, table := range []string{"credential_sets", "service_connections", "platform_users", "cross_platform_users"} {
		s.Require().NoError(s.orm.Exec("DELETE FROM " + table).Error)
	}
}

func (s *RepositorySuite) TestCredentialUpsertIsIdempotent() {
	ctx := context.Background()
	require := s.Require()

	cred := &model.CredentialSet{
		CompanyID: "acme",
		AppType:   source.TypeGithub,
		Fields:    []byte(`{"token":"t"}`),
		IsActive:  true,
		CreatedBy: "u-1",
	}
	require.NoError(s.credentials.Upsert(ctx, cred))

	again := &model.CredentialSet{
		CompanyID: "acme",
		AppType:   source.TypeGithub,
		Fields:    []byte(`{"token":"t2"}`),
		IsActive:  true,
		CreatedBy: "u-2",
	}
	require.NoError(s.credentials.Upsert(ctx, again))

	list, err := s.credentials.ListByCompany(ctx, "acme")
	require.NoError(err)
	require.Len(list, 1)

	got, err := s.credentials.Get(ctx, "acme", source.TypeGithub, "")
	require.NoError(err)
	s.Contains(string(got.Fields), "t2")
}

func (s *RepositorySuite) TestCredentialDeactivateHidesFromGet() {
	ctx := context.Background()
	require := s.Require()

	require.NoError(s.credentials.Upsert(ctx, &model.CredentialSet{
		CompanyID: "acme",
		AppType:   source.TypeSlack,
		Fields:    []byte(`{}`),
		IsActive:  true,
	}))

	require.NoError(s.credentials.Deactivate(ctx, "acme", source.TypeSlack))

	_, err := s.credentials.Get(ctx, "acme", source.TypeSlack, "")
	s.ErrorIs(err, ErrCredentialNotFound)
}

func (s *RepositorySuite) TestConnectionLifecycle() {
	ctx := context.Background()
	require := s.Require()

	conn := &model.ServiceConnection{
		CompanyID:         "acme",
		AppType:           source.TypeZoom,
		ExternalAccountID: "z-1",
		Status:            source.ConnectionStatusConnected,
		IsActive:          true,
	}
	require.NoError(s.connections.Upsert(ctx, conn))

	active, err := s.connections.ListActive(ctx, "acme")
	require.NoError(err)
	require.Len(active, 1)

	at := time.Now().UTC().Truncate(time.Second)
	require.NoError(s.connections.MarkSynced(ctx, active[0].ID, at))

	companies, err := s.connections.ListCompanies(ctx)
	require.NoError(err)
	s.Equal([]string{"acme"}, companies)

	require.NoError(s.connections.Deactivate(ctx, active[0].ID))

	active, err = s.connections.ListActive(ctx, "acme")
	require.NoError(err)
	s.Empty(active)
}

func (s *RepositorySuite) TestPlatformUserDeactivateMissing() {
	ctx := context.Background()
	require := s.Require()

	require.NoError(s.users.UpsertBatch(ctx, []model.PlatformUser{
		{CompanyID: "acme", AppType: source.TypeGithub, ExternalID: "gh-1", Email: "a@co.com", IsActive: true},
		{CompanyID: "acme", AppType: source.TypeGithub, ExternalID: "gh-2", Email: "b@co.com", IsActive: true},
	}))

	require.NoError(s.users.DeactivateMissing(ctx, "acme", source.TypeGithub, []string{"gh-1"}))

	active, err := s.users.ListActiveOfType(ctx, "acme", source.TypeGithub)
	require.NoError(err)
	require.Len(active, 1)
	s.Equal("gh-1", active[0].ExternalID)
}

func (s *RepositorySuite) TestCrossUserUpsertReplacesBlocks() {
	ctx := context.Background()
	require := s.Require()

	require.NoError(s.crossUsers.Upsert(ctx, &model.CrossPlatformUser{
		CompanyID:    "acme",
		PrimaryEmail: "a@co.com",
		Platforms:    []byte(`{"github":{}}`),
		GhostStatus:  []byte(`{"isGhost":false}`),
		IsActive:     true,
		LastSyncAt:   time.Now(),
	}))
	require.NoError(s.crossUsers.Upsert(ctx, &model.CrossPlatformUser{
		CompanyID:    "acme",
		PrimaryEmail: "a@co.com",
		Platforms:    []byte(`{"github":{},"slack":{}}`),
		GhostStatus:  []byte(`{"isGhost":true}`),
		IsActive:     true,
		LastSyncAt:   time.Now(),
	}))

	list, err := s.crossUsers.ListActiveByCompany(ctx, "acme")
	require.NoError(err)
	require.Len(list, 1)
	s.Contains(string(list[0].Platforms), "slack")
	s.Contains(string(list[0].GhostStatus), "true")
}

func (s *RepositorySuite) TestCrossUserDeactivateMissing() {
	ctx := context.Background()
	require := s.Require()

	for _, email := range []string{"a@co.com", "b@co.com"} {
		require.NoError(s.crossUsers.Upsert(ctx, &model.CrossPlatformUser{
			CompanyID:    "acme",
			PrimaryEmail: email,
			Platforms:    []byte(`{}`),
			IsActive:     true,
			LastSyncAt:   time.Now(),
		}))
	}

	require.NoError(s.crossUsers.DeactivateMissing(ctx, "acme", []string{"a@co.com"}))

	list, err := s.crossUsers.ListActiveByCompany(ctx, "acme")
	require.NoError(err)
	require.Len(list, 1)
	s.Equal("a@co.com", list[0].PrimaryEmail)
}

func TestRepositorySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	suite.Run(t, new(RepositorySuite))
}
