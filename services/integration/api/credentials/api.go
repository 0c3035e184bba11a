package credentials

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
	credentialSvc service.Credential
	credRepo      repository.Credential
	tracer        trace.Tracer
	logger        *zap.Logger
}

func New(
	credentialSvc service.Credential,
	credRepo repository.Credential,
	logger *zap.Logger,
) API {
	return API{
		credentialSvc: credentialSvc,
		credRepo:      credRepo,
		tracer:        otel.GetTracerProvider().Tracer("integration.http.credentials"),
		logger:        logger.Named("credentials"),
	}
}

// Save godoc
//
//	@Summary		Store credentials
//	@Description	Validate and store a credential set for an app, encrypting sensitive fields.
//	@Tags			credentials
//	@Accept			json
//	@Produce		json
//	@Param			request	body		entity.SaveCredentialRequest	true	"credential set"
//	@Success		200		{object}	entity.Response
//	@Router			/api/v1/credentials [post]
func (h API) Save(c echo.Context) error {
	ctx, span := h.tracer.Start(c.Request().Context(), "save-credential")
	defer span.End()

	var req entity.SaveCredentialRequest
	if err := c.Bind(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return c.JSON(http.StatusBadRequest, entity.Fail(err.Error()))
	}

	if err := c.Validate(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return c.JSON(http.StatusBadRequest, entity.Fail(err.Error()))
	}

	result, err := h.credentialSvc.Validate(req.AppType, req.Fields)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return c.JSON(http.StatusBadRequest, entity.Fail(err.Error()))
	}

	cred, err := h.credentialSvc.Save(ctx, req.CompanyID, req.AppType, req.AppName, req.Fields, req.CreatedBy)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		var verr *service.ValidationError
		if errors.As(err, &verr) {
			return c.JSON(http.StatusBadRequest, entity.Fail(verr.Error()))
		}

		h.logger.Error("saving credential set", zap.Error(err))

		return c.JSON(http.StatusInternalServerError, entity.Fail("failed to store credentials"))
	}

	return c.JSON(http.StatusOK, entity.OK(entity.SaveCredentialResponse{
		ID:       cred.ID.String(),
		Warnings: result.Warnings,
	}))
}

// List godoc
//
//	@Summary		List credentials
//	@Description	List stored credential sets for a company, redacted to field names only.
//	@Tags			credentials
//	@Produce		json
//	@Param			companyId	path		string	true	"Company ID"
//	@Success		200			{object}	entity.Response
//	@Router			/api/v1/credentials/{companyId} [get]
func (h API) List(c echo.Context) error {
	ctx, span := h.tracer.Start(c.Request().Context(), "list-credentials")
	defer span.End()

	companyID := c.Param("companyId")
	if companyID == "" {
		return c.JSON(http.StatusBadRequest, entity.Fail("company id is required"))
	}

	creds, err := h.credRepo.ListByCompany(ctx, companyID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		h.logger.Error("listing credential sets", zap.Error(err))

		return c.JSON(http.StatusInternalServerError, entity.Fail("failed to list credentials"))
	}

	items := make([]entity.Credential, 0, len(creds))
	for _, cred := range creds {
		items = append(items, entity.NewCredential(cred))
	}

	return c.JSON(http.StatusOK, entity.OK(items))
}

// Delete godoc
//
//	@Summary		Delete credentials
//	@Description	Deactivate the credential set for a company and app type.
//	@Tags			credentials
//	@Produce		json
//	@Param			companyId	path		string	true	"Company ID"
//	@Param			appType		path		string	true	"App type"
//	@Success		200			{object}	entity.Response
//	@Router			/api/v1/credentials/{companyId}/{appType} [delete]
func (h API) Delete(c echo.Context) error {
	ctx, span := h.tracer.Start(c.Request().Context(), "delete-credential")
	defer span.End()

	companyID := c.Param("companyId")
	appType, err := source.ParseType(c.Param("appType"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, entity.Fail(err.Error()))
	}

	if err := h.credRepo.Deactivate(ctx, companyID, appType); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		h.logger.Error("deactivating credential set", zap.Error(err))

		return c.JSON(http.StatusInternalServerError, entity.Fail("failed to delete credentials"))
	}

	return c.JSON(http.StatusOK, entity.OK(nil))
}

func (h API) Register(g *echo.Group) {
	g.POST("", h.Save)
	g.GET("/:companyId", h.List)
	g.DELETE("/:companyId/:appType", h.Delete)
}
