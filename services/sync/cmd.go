package sync

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/stackpilot/stackpilot/pkg/koanf"
	"github.com/stackpilot/stackpilot/pkg/postgres"
	"github.com/stackpilot/stackpilot/pkg/vault"
	correlation "github.com/stackpilot/stackpilot/services/correlation/service"
	"github.com/stackpilot/stackpilot/services/integration/db"
	"github.com/stackpilot/stackpilot/services/integration/repository"
	"github.com/stackpilot/stackpilot/services/integration/service"
	vendor_type "github.com/stackpilot/stackpilot/services/integration/vendor-type"
	"go.uber.org/zap"
)

type SchedulerConfig struct {
	Postgres koanf.Postgres `json:"postgres,omitempty" koanf:"postgres"`

	EncryptionKey string `json:"encryption_key,omitempty" koanf:"encryption_key"`

	SyncInterval        time.Duration `json:"sync_interval,omitempty" koanf:"sync_interval"`
	CorrelationInterval time.Duration `json:"correlation_interval,omitempty" koanf:"correlation_interval"`
}

func Command() *cobra.Command {
	cnf := koanf.Provide("sync", SchedulerConfig{
		SyncInterval:        6 * time.Hour,
		CorrelationInterval: 6 * time.Hour,
	})

	cmd := &cobra.Command{
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			logger, err := zap.NewProduction()
			if err != nil {
				return err
			}

			logger = logger.Named("sync")

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
			syncSvc := service.NewUserSync(credentialSvc, connRepo, userRepo, sealer, vendor_type.Vendors, logger)
			correlationSvc := correlation.NewCorrelation(userRepo, crossRepo, logger)

			scheduler := NewScheduler(syncSvc, correlationSvc, connRepo,
				cnf.SyncInterval, cnf.CorrelationInterval, logger)
			scheduler.Run(ctx)

			<-ctx.Done()

			return nil
		},
	}

	return cmd
}
