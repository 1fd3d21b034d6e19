package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"healthflow/internal/config"
	"healthflow/internal/constants"
	"healthflow/internal/logger"
	"healthflow/internal/processing"
	"healthflow/pkg/bootstrap"
	"healthflow/pkg/logging"
)

var (
	configFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "background-worker",
		Short: "Background worker for patient event processing",
		Long:  "Consumes patient events from RabbitMQ, records processing outcomes, and republishes processed events for analytics",
		RunE:  serveCmd().RunE,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (required)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(pendingCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(earlyLog *logging.EarlyLog) (*config.Config, error) {
	if configFile == "" {
		configFile = os.Getenv("CONFIG_FILE")
		if configFile == "" {
			earlyLog.Error("Config file is required. Use --config flag or CONFIG_FILE environment variable")
			return nil, fmt.Errorf("config file is required")
		}
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		earlyLog.Error("Failed to load config: %v", err)
		return nil, err
	}
	return cfg, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the background worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			earlyLog := logging.NewEarlyLog()

			cfg, err := loadConfig(earlyLog)
			if err != nil {
				return err
			}

			log, err := logger.New(cfg.Logging.Level)
			if err != nil {
				earlyLog.Error("Failed to init logger: %v", err)
				return err
			}
			defer log.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			log.InfowCtx(ctx, "Starting Background Worker")

			app := NewApp(cfg, log)
			if err := app.Initialize(ctx); err != nil {
				log.Fatalf("Failed to initialize application: %v", err)
			}

			log.InfowCtx(ctx, "Background worker running")
			if err := app.Run(ctx); err != nil && err != context.Canceled {
				log.ErrorwCtx(ctx, "Service stopped with error", "error", err)
				return err
			}
			log.InfowCtx(ctx, "Shutdown complete")
			return nil
		},
	}
}

func pendingCmd() *cobra.Command {
	var limit int64

	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List processing records that have not reached a terminal status",
		RunE: func(cmd *cobra.Command, args []string) error {
			earlyLog := logging.NewEarlyLog()

			cfg, err := loadConfig(earlyLog)
			if err != nil {
				return err
			}

			log := logger.NopLogger()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			connector := bootstrap.NewDatabaseConnector(cfg, log)
			mongoClient, err := connector.InitMongoDB(ctx)
			if err != nil {
				earlyLog.Error("Failed to connect to MongoDB: %v", err)
				return err
			}
			defer mongoClient.Disconnect(ctx)

			dbName := cfg.Database.MongoDB.Database
			if dbName == "" {
				dbName = constants.DefaultMongoDBName
			}
			repo := processing.NewRepository(mongoClient.Database(dbName), log)

			events, err := repo.GetPendingEvents(ctx, limit)
			if err != nil {
				earlyLog.Error("Failed to fetch pending events: %v", err)
				return err
			}

			count, err := repo.GetPendingCount(ctx)
			if err != nil {
				earlyLog.Error("Failed to count pending events: %v", err)
				return err
			}

			out, err := json.MarshalIndent(map[string]interface{}{
				"count":  count,
				"events": events,
			}, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().Int64Var(&limit, "limit", int64(constants.DefaultPendingLimit), "Maximum number of records to list")
	return cmd
}
