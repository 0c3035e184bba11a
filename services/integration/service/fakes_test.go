package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stackpilot/stackpilot/pkg/source"
	"github.com/stackpilot/stackpilot/services/integration/model"
	"github.com/stackpilot/stackpilot/services/integration/repository"
	"github.com/stackpilot/stackpilot/services/integration/vendor-type/interfaces"
)

type fakeCredentialRepo struct {
	sets          map[string]*model.CredentialSet
	upsertErr     error
	deactivateErr error
}

func newFakeCredentialRepo() *fakeCredentialRepo {
	return &fakeCredentialRepo{sets: make(map[string]*model.CredentialSet)}
}

func credKey(companyID string, appType source.Type, appName string) string {
	return fmt.Sprintf("%s|%s|%s", companyID, appType, appName)
}

func (f *fakeCredentialRepo) Upsert(_ context.Context, cred *model.CredentialSet) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	if cred.ID == uuid.Nil {
		cred.ID = uuid.New()
	}
	f.sets[credKey(cred.CompanyID, cred.AppType, cred.AppName)] = cred
	return nil
}

func (f *fakeCredentialRepo) Get(_ context.Context, companyID string, appType source.Type, appName string) (*model.CredentialSet, error) {
	if appName != "" {
		if cred, ok := f.sets[credKey(companyID, appType, appName)]; ok && cred.IsActive {
			return cred, nil
		}
		return nil, repository.ErrCredentialNotFound
	}
	for _, cred := range f.sets {
		if cred.CompanyID == companyID && cred.AppType == appType && cred.IsActive {
			return cred, nil
		}
	}
	return nil, repository.ErrCredentialNotFound
}

func (f *fakeCredentialRepo) ListByCompany(_ context.Context, companyID string) ([]model.CredentialSet, error) {
	var out []model.CredentialSet
	for _, cred := range f.sets {
		if cred.CompanyID == companyID && cred.IsActive {
			out = append(out, *cred)
		}
	}
	return out, nil
}

func (f *fakeCredentialRepo) Deactivate(_ context.Context, companyID string, appType source.Type) error {
	if f.deactivateErr != nil {
		return f.deactivateErr
	}
	for _, cred := range f.sets {
		if cred.CompanyID == companyID && cred.AppType == appType {
			cred.IsActive = false
		}
	}
	return nil
}

type fakeConnectionRepo struct {
	conns         map[uuid.UUID]*model.ServiceConnection
	upsertErr     error
	deactivateErr map[uuid.UUID]error
}

func newFakeConnectionRepo() *fakeConnectionRepo {
	return &fakeConnectionRepo{
		conns:         make(map[uuid.UUID]*model.ServiceConnection),
		deactivateErr: make(map[uuid.UUID]error),
	}
}

func (f *fakeConnectionRepo) Upsert(_ context.Context, conn *model.ServiceConnection) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	if conn.ID == uuid.Nil {
		conn.ID = uuid.New()
	}
	stored := *conn
	f.conns[conn.ID] = &stored
	return nil
}

func (f *fakeConnectionRepo) ListActive(_ context.Context, companyID string) ([]model.ServiceConnection, error) {
	var out []model.ServiceConnection
	for _, conn := range f.conns {
		if conn.CompanyID == companyID && conn.IsActive {
			out = append(out, *conn)
		}
	}
	return out, nil
}

func (f *fakeConnectionRepo) ListActiveOfType(_ context.Context, companyID string, appType source.Type) ([]model.ServiceConnection, error) {
	var out []model.ServiceConnection
	for _, conn := range f.conns {
		if conn.CompanyID == companyID && conn.AppType == appType && conn.IsActive {
			out = append(out, *conn)
		}
	}
	return out, nil
}

func (f *fakeConnectionRepo) Deactivate(_ context.Context, id uuid.UUID) error {
	if err := f.deactivateErr[id]; err != nil {
		return err
	}
	if conn, ok := f.conns[id]; ok {
		conn.IsActive = false
		conn.Status = source.ConnectionStatusDisconnected
	}
	return nil
}

func (f *fakeConnectionRepo) UpdateStatus(_ context.Context, id uuid.UUID, status source.ConnectionStatus, syncError string) error {
	if conn, ok := f.conns[id]; ok {
		conn.Status = status
		conn.SyncError = syncError
	}
	return nil
}

func (f *fakeConnectionRepo) MarkSynced(_ context.Context, id uuid.UUID, at time.Time) error {
	if conn, ok := f.conns[id]; ok {
		conn.Status = source.ConnectionStatusConnected
		conn.SyncError = ""
		conn.LastSyncAt = &at
	}
	return nil
}

func (f *fakeConnectionRepo) ListCompanies(_ context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, conn := range f.conns {
		if conn.IsActive && !seen[conn.CompanyID] {
			seen[conn.CompanyID] = true
			out = append(out, conn.CompanyID)
		}
	}
	return out, nil
}

type fakePlatformUserRepo struct {
	upserted    []model.PlatformUser
	deactivated map[source.Type][]string
	upsertErr   error
}

func newFakePlatformUserRepo() *fakePlatformUserRepo {
	return &fakePlatformUserRepo{deactivated: make(map[source.Type][]string)}
}

func (f *fakePlatformUserRepo) UpsertBatch(_ context.Context, users []model.PlatformUser) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserted = append(f.upserted, users...)
	return nil
}

func (f *fakePlatformUserRepo) ListActiveByCompany(_ context.Context, companyID string) ([]model.PlatformUser, error) {
	var out []model.PlatformUser
	for _, u := range f.upserted {
		if u.CompanyID == companyID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakePlatformUserRepo) ListActiveOfType(_ context.Context, companyID string, appType source.Type) ([]model.PlatformUser, error) {
	var out []model.PlatformUser
	for _, u := range f.upserted {
		if u.CompanyID == companyID && u.AppType == appType {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakePlatformUserRepo) DeactivateMissing(_ context.Context, _ string, appType source.Type, keepExternalIDs []string) error {
	f.deactivated[appType] = keepExternalIDs
	return nil
}

type fakeVendor struct {
	typ        source.Type
	required   []string
	warnings   []string
	account    *interfaces.Account
	connectErr error
	users      []model.PlatformUser
	fetchErr   error
}

func (f *fakeVendor) Type() source.Type {
	return f.typ
}

func (f *fakeVendor) RequiredFields() []string {
	return f.required
}

func (f *fakeVendor) FormatWarnings(map[string]string) []string {
	return f.warnings
}

func (f *fakeVendor) Connect(context.Context, map[string]string) (*interfaces.Account, error) {
	if f.connectErr != nil {
		return nil, f.connectErr
	}
	return f.account, nil
}

func (f *fakeVendor) FetchUsers(context.Context, interfaces.Access) ([]model.PlatformUser, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.users, nil
}

type fakeOAuthVendor struct {
	fakeVendor
	exchanged   *interfaces.Account
	exchangeErr error
}

func (f *fakeOAuthVendor) AuthorizeURL(state string, fields map[string]string) string {
	return "https://auth.example.com/authorize?client_id=" + fields["clientId"] + "&state=" + state
}

func (f *fakeOAuthVendor) Exchange(context.Context, string, map[string]string) (*interfaces.Account, error) {
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return f.exchanged, nil
}

func registryOf(vendors ...interfaces.Vendor) map[source.Type]interfaces.VendorCreator {
	registry := make(map[source.Type]interfaces.VendorCreator, len(vendors))
	for _, v := range vendors {
		v := v
		registry[v.Type()] = func() (interfaces.Vendor, error) {
			return v, nil
		}
	}
	return registry
}
