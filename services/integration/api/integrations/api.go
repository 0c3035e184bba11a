package integrations

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/stackpilot/stackpilot/pkg/source"
	"github.com/stackpilot/stackpilot/services/integration/api/entity"
	"github.com/stackpilot/stackpilot/services/integration/repository"
	"github.com/stackpilot/stackpilot/services/integration/service"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type API struct {
	connectSvc  service.Connect
	syncSvc     service.UserSync
	connections repository.Connection
	tracer      trace.Tracer
	logger      *zap.Logger
}

func New(
	connectSvc service.Connect,
	syncSvc service.UserSync,
	connections repository.Connection,
	logger *zap.Logger,
) API {
	return API{
		connectSvc:  connectSvc,
		syncSvc:     syncSvc,
		connections: connections,
		tracer:      otel.GetTracerProvider().Tracer("integration.http.integrations"),
		logger:      logger.Named("integrations"),
	}
}

// List godoc
//
//	@Summary		List connections
//	@Description	List active connections for a company.
//	@Tags			integrations
//	@Produce		json
//	@Param			companyId	path		string	true	"Company ID"
//	@Success		200			{object}	entity.Response
//	@Router			/api/v1/integrations/{companyId} [get]
func (h API) List(c echo.Context) error {
	ctx, span := h.tracer.Start(c.Request().Context(), "list-connections")
	defer span.End()

	companyID := c.Param("companyId")
	if companyID == "" {
		return c.JSON(http.StatusBadRequest, entity.Fail("company id is required"))
	}

	conns, err := h.connections.ListActive(ctx, companyID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		h.logger.Error("listing connections", zap.Error(err))

		return c.JSON(http.StatusInternalServerError, entity.Fail("failed to list connections"))
	}

	items := make([]entity.Connection, 0, len(conns))
	for _, conn := range conns {
		items = append(items, entity.NewConnection(conn))
	}

	return c.JSON(http.StatusOK, entity.OK(items))
}

// Status godoc
//
//	@Summary		Connection status
//	@Description	Report the connect state of one app for a company without side effects.
//	@Tags			integrations
//	@Produce		json
//	@Param			companyId	path		string	true	"Company ID"
//	@Param			appType		path		string	true	"App type"
//	@Success		200			{object}	entity.Response
//	@Router			/api/v1/integrations/{companyId}/{appType}/status [get]
func (h API) Status(c echo.Context) error {
	ctx, span := h.tracer.Start(c.Request().Context(), "connection-status")
	defer span.End()

	companyID := c.Param("companyId")
	appType, err := source.ParseType(c.Param("appType"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, entity.Fail(err.Error()))
	}

	result, err := h.connectSvc.Status(ctx, companyID, appType)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		h.logger.Error("connection status", zap.Error(err))

		return c.JSON(http.StatusInternalServerError, entity.Fail("failed to resolve connection status"))
	}

	return c.JSON(http.StatusOK, entity.OK(entity.StatusResponse{
		AppType: appType,
		State:   result.State,
		Reason:  result.Reason,
	}))
}

// Connect godoc
//
//	@Summary		Smart connect
//	@Description	Connect a company to an app. Answers with a live connection, an oauth redirect url, or the state blocking the connection.
//	@Tags			integrations
//	@Accept			json
//	@Produce		json
//	@Param			request	body		entity.ConnectRequest	true	"connect request"
//	@Success		200		{object}	entity.Response
//	@Router			/api/v1/integrations/connect [post]
func (h API) Connect(c echo.Context) error {
	ctx, span := h.tracer.Start(c.Request().Context(), "connect")
	defer span.End()

	var req entity.ConnectRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, entity.Fail(err.Error()))
	}

	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, entity.Fail(err.Error()))
	}

	result, err := h.connectSvc.Connect(ctx, req.CompanyID, req.AppType)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		h.logger.Error("connect", zap.String("app_type", req.AppType.String()), zap.Error(err))

		return c.JSON(http.StatusInternalServerError, entity.Fail("failed to connect"))
	}

	return c.JSON(http.StatusOK, entity.OK(newConnectResponse(result)))
}

// OAuthCallback godoc
//
//	@Summary		OAuth callback
//	@Description	Complete an oauth flow. The state token carries the company the flow was started for.
//	@Tags			integrations
//	@Produce		json
//	@Param			appType	path		string	true	"App type"
//	@Param			code	query		string	true	"Authorization code"
//	@Param			state	query		string	true	"State token"
//	@Success		200		{object}	entity.Response
//	@Router			/api/v1/integrations/oauth/{appType}/callback [get]
func (h API) OAuthCallback(c echo.Context) error {
	ctx, span := h.tracer.Start(c.Request().Context(), "oauth-callback")
	defer span.End()

	appType, err := source.ParseType(c.Param("appType"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, entity.Fail(err.Error()))
	}

	code := c.QueryParam("code")
	state := c.QueryParam("state")
	if code == "" || state == "" {
		return c.JSON(http.StatusBadRequest, entity.Fail("code and state are required"))
	}

	conn, err := h.connectSvc.HandleOAuthCallback(ctx, appType, state, code)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		if errors.Is(err, service.ErrInvalidStateToken) {
			return c.JSON(http.StatusBadRequest, entity.Fail("invalid or expired state token"))
		}

		h.logger.Error("oauth callback", zap.String("app_type", appType.String()), zap.Error(err))

		return c.JSON(http.StatusBadGateway, entity.Fail("oauth exchange failed"))
	}

	view := entity.NewConnection(*conn)

	return c.JSON(http.StatusOK, entity.OK(view))
}

// Disconnect godoc
//
//	@Summary		Disconnect
//	@Description	Best-effort teardown of an app for a company. Partial failures are reported, not fatal.
//	@Tags			integrations
//	@Produce		json
//	@Param			companyId	path		string	true	"Company ID"
//	@Param			appType		path		string	true	"App type"
//	@Success		200			{object}	entity.Response
//	@Router			/api/v1/integrations/{companyId}/{appType} [delete]
func (h API) Disconnect(c echo.Context) error {
	ctx, span := h.tracer.Start(c.Request().Context(), "disconnect")
	defer span.End()

	companyID := c.Param("companyId")
	appType, err := source.ParseType(c.Param("appType"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, entity.Fail(err.Error()))
	}

	result := h.connectSvc.Disconnect(ctx, companyID, appType)

	return c.JSON(http.StatusOK, entity.OK(entity.DisconnectResponse{
		CredentialsDeactivated: result.CredentialsDeactivated,
		ConnectionsDeleted:     result.ConnectionsDeleted,
		Errors:                 result.Errors,
	}))
}

// Sync godoc
//
//	@Summary		Trigger user sync
//	@Description	Run a user sync for every active connection of the company. Vendor failures are isolated per connection.
//	@Tags			integrations
//	@Produce		json
//	@Param			companyId	path		string	true	"Company ID"
//	@Success		200			{object}	entity.Response
//	@Router			/api/v1/integrations/{companyId}/sync [post]
func (h API) Sync(c echo.Context) error {
	ctx, span := h.tracer.Start(c.Request().Context(), "sync-company")
	defer span.End()

	companyID := c.Param("companyId")
	if companyID == "" {
		return c.JSON(http.StatusBadRequest, entity.Fail("company id is required"))
	}

	report, err := h.syncSvc.SyncCompany(ctx, companyID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		h.logger.Error("sync company", zap.String("company_id", companyID), zap.Error(err))

		return c.JSON(http.StatusInternalServerError, entity.Fail("failed to sync company"))
	}

	return c.JSON(http.StatusOK, entity.OK(entity.SyncResponse{
		Synced: report.Synced,
		Failed: report.Failed,
	}))
}

func newConnectResponse(result service.ConnectResult) entity.ConnectResponse {
	resp := entity.ConnectResponse{
		State:       result.State,
		RedirectURL: result.RedirectURL,
		Reason:      result.Reason,
	}
	if result.Connection != nil {
		view := entity.NewConnection(*result.Connection)
		resp.Connection = &view
	}

	return resp
}

func (h API) Register(g *echo.Group) {
	g.POST("/connect", h.Connect)
	g.GET("/oauth/:appType/callback", h.OAuthCallback)
	g.GET("/:companyId", h.List)
	g.GET("/:companyId/:appType/status", h.Status)
	g.DELETE("/:companyId/:appType", h.Disconnect)
	g.POST("/:companyId/sync", h.Sync)
}
