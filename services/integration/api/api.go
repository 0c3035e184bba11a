package api

import (
	"github.com/labstack/echo/v4"
	"github.com/stackpilot/stackpilot/services/integration/api/credentials"
	"github.com/stackpilot/stackpilot/services/integration/api/integrations"
	"github.com/stackpilot/stackpilot/services/integration/repository"
	"github.com/stackpilot/stackpilot/services/integration/service"
	"go.uber.org/zap"
)

type API struct {
	logger        *zap.Logger
	credentialSvc service.Credential
	connectSvc    service.Connect
	syncSvc       service.UserSync
	credRepo      repository.Credential
	connRepo      repository.Connection
}

func New(
	logger *zap.Logger,
	credentialSvc service.Credential,
	connectSvc service.Connect,
	syncSvc service.UserSync,
	credRepo repository.Credential,
	connRepo repository.Connection,
) *API {
	return &API{
		logger:        logger.Named("api"),
		credentialSvc: credentialSvc,
		connectSvc:    connectSvc,
		syncSvc:       syncSvc,
		credRepo:      credRepo,
		connRepo:      connRepo,
	}
}

func (api *API) Register(e *echo.Echo) {
	cred := credentials.New(api.credentialSvc, api.credRepo, api.logger)
	integ := integrations.New(api.connectSvc, api.syncSvc, api.connRepo, api.logger)

	cred.Register(e.Group("/api/v1/credentials"))
	integ.Register(e.Group("/api/v1/integrations"))
}
