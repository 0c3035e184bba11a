package integration

import (
	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"github.com/stackpilot/stackpilot/pkg/httpserver"
	"github.com/stackpilot/stackpilot/pkg/koanf"
	"github.com/stackpilot/stackpilot/pkg/postgres"
	"github.com/stackpilot/stackpilot/pkg/vault"
	correlationapi "github.com/stackpilot/stackpilot/services/correlation/api"
	correlation "github.com/stackpilot/stackpilot/services/correlation/service"
	"github.com/stackpilot/stackpilot/services/integration/api"
	"github.com/stackpilot/stackpilot/services/integration/config"
	"github.com/stackpilot/stackpilot/services/integration/db"
	"github.com/stackpilot/stackpilot/services/integration/repository"
	"github.com/stackpilot/stackpilot/services/integration/service"
	vendor_type "github.com/stackpilot/stackpilot/services/integration/vendor-type"
	"go.uber.org/zap"
)

func Command() *cobra.Command {
	cnf := koanf.Provide("integration", config.ServiceConfig{})

	cmd := &cobra.Command{
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := zap.NewProduction()
			if err != nil {
				return err
			}

			logger = logger.Named("integration")

			sealer, err := vault.NewSealer(cnf.EncryptionKey)
			if err != nil {
				logger.Error("invalid encryption key", zap.Error(err))
				return err
			}

			orm, err := postgres.NewClient(&postgres.Config{
				Host:    cnf.Postgres.Host,
				Port:    cnf.Postgres.Port,
				User:    cnf.Postgres.Username,
				Passwd:  cnf.Postgres.Password,
				DB:      cnf.Postgres.DB,
				SSLMode: cnf.Postgres.SSLMode,
			}, logger.Named("postgres"))
			if err != nil {
				return err
			}

			database := db.NewDatabase(orm)
			if err := database.Initialize(); err != nil {
				return err
			}

			cmd.SilenceUsage = true

			credRepo := repository.NewCredentialSQL(database)
			connRepo := repository.NewConnectionSQL(database)
			userRepo := repository.NewPlatformUserSQL(database)
			crossRepo := repository.NewCrossUserSQL(database)

			credentialSvc := service.NewCredential(credRepo, sealer, vendor_type.Vendors, logger)
			connectSvc := service.NewConnect(credentialSvc, credRepo, connRepo, sealer, vendor_type.Vendors, logger)
			syncSvc := service.NewUserSync(credentialSvc, connRepo, userRepo, sealer, vendor_type.Vendors, logger)
			correlationSvc := correlation.NewCorrelation(userRepo, crossRepo, logger)

			return httpserver.RegisterAndStart(logger, cnf.Http.Address, &routes{
				integration: api.New(logger, credentialSvc, connectSvc, syncSvc, credRepo, connRepo),
				correlation: correlationapi.New(correlationSvc, crossRepo, logger),
			})
		},
	}

	return cmd
}

type routes struct {
	integration *api.API
	correlation *correlationapi.API
}

func (r *routes) Register(e *echo.Echo) {
	r.integration.Register(e)
	r.correlation.Register(e)
}
