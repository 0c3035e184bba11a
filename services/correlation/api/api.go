package api

import (
	"context"
	"errors"
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"
	"github.com/stackpilot/stackpilot/services/correlation/service"
	"github.com/stackpilot/stackpilot/services/integration/model"
	"github.com/stackpilot/stackpilot/services/integration/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type API struct {
	correlationSvc service.Correlation
	crossUsers     repository.CrossUser
	tracer         trace.Tracer
	logger         *zap.Logger
}

func New(
	correlationSvc service.Correlation,
	crossUsers repository.CrossUser,
	logger *zap.Logger,
) *API {
	return &API{
		correlationSvc: correlationSvc,
		crossUsers:     crossUsers,
		tracer:         otel.GetTracerProvider().Tracer("correlation.http"),
		logger:         logger.Named("api"),
	}
}

// Run godoc
//
//	@Summary		Run correlation
//	@Description	Rebuild the cross-platform identity table for a company from its synced platform users.
//	@Tags			correlation
//	@Produce		json
//	@Param			companyId	path		string	true	"Company ID"
//	@Success		200			{object}	Response
//	@Router			/api/v1/correlation/{companyId}/run [post]
func (h *API) Run(c echo.Context) error {
	ctx, span := h.tracer.Start(c.Request().Context(), "run-correlation")
	defer span.End()

	companyID := c.Param("companyId")
	if companyID == "" {
		return c.JSON(http.StatusBadRequest, fail("company id is required"))
	}

	count, err := h.correlationSvc.RunCompany(ctx, companyID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		h.logger.Error("correlation run", zap.String("company_id", companyID), zap.Error(err))

		return c.JSON(http.StatusInternalServerError, fail("correlation run failed"))
	}

	return c.JSON(http.StatusOK, ok(RunResponse{CorrelatedUsers: count}))
}

// Users godoc
//
//	@Summary		Correlated users
//	@Description	List every correlated identity for a company.
//	@Tags			dashboard
//	@Produce		json
//	@Param			companyId	path		string	true	"Company ID"
//	@Success		200			{object}	Response
//	@Router			/api/v1/dashboard/{companyId}/users [get]
func (h *API) Users(c echo.Context) error {
	ctx, span := h.tracer.Start(c.Request().Context(), "dashboard-users")
	defer span.End()

	users, err := h.listDecoded(ctx, c.Param("companyId"))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return c.JSON(http.StatusInternalServerError, fail("failed to load correlated users"))
	}

	return c.JSON(http.StatusOK, ok(users))
}

// Summary godoc
//
//	@Summary		Company summary
//	@Description	Aggregate ghost, risk and license-waste totals for a company.
//	@Tags			dashboard
//	@Produce		json
//	@Param			companyId	path		string	true	"Company ID"
//	@Success		200			{object}	Response
//	@Router			/api/v1/dashboard/{companyId}/summary [get]
func (h *API) Summary(c echo.Context) error {
	ctx, span := h.tracer.Start(c.Request().Context(), "dashboard-summary")
	defer span.End()

	users, err := h.listDecoded(ctx, c.Param("companyId"))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return c.JSON(http.StatusInternalServerError, fail("failed to load correlated users"))
	}

	summary := Summary{
		TotalUsers:     len(users),
		PlatformCounts: make(map[string]int),
	}
	for _, user := range users {
		if user.GhostStatus.IsGhost {
			summary.GhostUsers++
		}
		if user.SecurityRisks.RiskScore > 0 {
			summary.UsersAtRisk++
		}
		summary.TotalMonthlyCost += user.LicenseWaste.TotalMonthlyCost
		summary.WastedCost += user.LicenseWaste.WastedCost
		for platform := range user.Platforms {
			summary.PlatformCounts[platform]++
		}
		if summary.LastSyncAt == nil || user.LastSyncAt.After(*summary.LastSyncAt) {
			at := user.LastSyncAt
			summary.LastSyncAt = &at
		}
	}

	return c.JSON(http.StatusOK, ok(summary))
}

// Ghosts godoc
//
//	@Summary		Ghost users
//	@Description	List identities flagged as ghosts, most inactive first.
//	@Tags			dashboard
//	@Produce		json
//	@Param			companyId	path		string	true	"Company ID"
//	@Success		200			{object}	Response
//	@Router			/api/v1/dashboard/{companyId}/ghosts [get]
func (h *API) Ghosts(c echo.Context) error {
	ctx, span := h.tracer.Start(c.Request().Context(), "dashboard-ghosts")
	defer span.End()

	users, err := h.listDecoded(ctx, c.Param("companyId"))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return c.JSON(http.StatusInternalServerError, fail("failed to load correlated users"))
	}

	ghosts := make([]CorrelatedUser, 0)
	for _, user := range users {
		if user.GhostStatus.IsGhost {
			ghosts = append(ghosts, user)
		}
	}
	sort.Slice(ghosts, func(i, j int) bool {
		return ghosts[i].GhostStatus.AvgDaysInactive > ghosts[j].GhostStatus.AvgDaysInactive
	})

	return c.JSON(http.StatusOK, ok(ghosts))
}

// Risks godoc
//
//	@Summary		Security risks
//	@Description	List identities carrying security-risk findings, highest score first.
//	@Tags			dashboard
//	@Produce		json
//	@Param			companyId	path		string	true	"Company ID"
//	@Success		200			{object}	Response
//	@Router			/api/v1/dashboard/{companyId}/risks [get]
func (h *API) Risks(c echo.Context) error {
	ctx, span := h.tracer.Start(c.Request().Context(), "dashboard-risks")
	defer span.End()

	users, err := h.listDecoded(ctx, c.Param("companyId"))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return c.JSON(http.StatusInternalServerError, fail("failed to load correlated users"))
	}

	risky := make([]CorrelatedUser, 0)
	for _, user := range users {
		if user.SecurityRisks.RiskScore > 0 {
			risky = append(risky, user)
		}
	}
	sort.Slice(risky, func(i, j int) bool {
		return risky[i].SecurityRisks.RiskScore > risky[j].SecurityRisks.RiskScore
	})

	return c.JSON(http.StatusOK, ok(risky))
}

// Waste godoc
//
//	@Summary		License waste
//	@Description	List identities with wasted paid seats, most expensive first.
//	@Tags			dashboard
//	@Produce		json
//	@Param			companyId	path		string	true	"Company ID"
//	@Success		200			{object}	Response
//	@Router			/api/v1/dashboard/{companyId}/waste [get]
func (h *API) Waste(c echo.Context) error {
	ctx, span := h.tracer.Start(c.Request().Context(), "dashboard-waste")
	defer span.End()

	users, err := h.listDecoded(ctx, c.Param("companyId"))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return c.JSON(http.StatusInternalServerError, fail("failed to load correlated users"))
	}

	wasteful := make([]CorrelatedUser, 0)
	for _, user := range users {
		if user.LicenseWaste.WastedCost > 0 {
			wasteful = append(wasteful, user)
		}
	}
	sort.Slice(wasteful, func(i, j int) bool {
		return wasteful[i].LicenseWaste.WastedCost > wasteful[j].LicenseWaste.WastedCost
	})

	return c.JSON(http.StatusOK, ok(wasteful))
}

// listDecoded loads and decodes every active identity. Rows whose stored JSON
// no longer decodes are skipped with a warning instead of failing the page.
func (h *API) listDecoded(ctx context.Context, companyID string) ([]CorrelatedUser, error) {
	if companyID == "" {
		return nil, errors.New("company id is required")
	}

	rows, err := h.crossUsers.ListActiveByCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}

	return h.decode(rows), nil
}

func (h *API) decode(rows []model.CrossPlatformUser) []CorrelatedUser {
	users := make([]CorrelatedUser, 0, len(rows))
	for _, row := range rows {
		user, err := newCorrelatedUser(row)
		if err != nil {
			h.logger.Warn("decoding correlated user",
				zap.String("company_id", row.CompanyID),
				zap.String("email", row.PrimaryEmail),
				zap.Error(err))
			continue
		}
		users = append(users, user)
	}

	return users
}

func (h *API) Register(e *echo.Echo) {
	e.POST("/api/v1/correlation/:companyId/run", h.Run)

	g := e.Group("/api/v1/dashboard/:companyId")
	g.GET("/users", h.Users)
	g.GET("/summary", h.Summary)
	g.GET("/ghosts", h.Ghosts)
	g.GET("/risks", h.Risks)
	g.GET("/waste", h.Waste)
}
