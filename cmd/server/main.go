package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/payhub/approval-engine/internal/application/service"
	"github.com/payhub/approval-engine/internal/config"
	"github.com/payhub/approval-engine/internal/infrastructure/external/lark"
	"github.com/payhub/approval-engine/internal/infrastructure/persistence/repository"
	httpserver "github.com/payhub/approval-engine/internal/interfaces/http"
	"github.com/payhub/approval-engine/pkg/database"
	"github.com/payhub/approval-engine/pkg/utils"
)

func main() {
	// Load configuration
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting PayHub Approval Engine",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	// Initialize database
	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Initialize repositories
	templateRepo := repository.NewSQLiteTemplateRepository(db, logger)
	instanceRepo := repository.NewSQLiteInstanceRepository(db, logger)
	paymentRepo := repository.NewSQLitePaymentRepository(db, logger)
	userRepo := repository.NewSQLiteUserRepository(db, logger)

	kvLogger := utils.NewKVLogger(logger)

	// Initialize services
	templateCache := service.NewTemplateCache(cfg.Engine.TemplateCacheTTL)
	templateService := service.NewTemplateService(templateRepo, templateCache, kvLogger)

	var workflowOpts []service.WorkflowOption
	if cfg.Lark.Enabled {
		larkClient := lark.NewClient(lark.Config{
			AppID:     cfg.Lark.AppID,
			AppSecret: cfg.Lark.AppSecret,
		}, logger)
		messenger := lark.NewMessenger(larkClient, logger)
		notifier := service.NewNotificationService(userRepo, messenger, kvLogger)
		workflowOpts = append(workflowOpts, service.WithNotifier(notifier))
		logger.Info("Lark notifications enabled")
	}

	workflowService := service.NewWorkflowService(
		instanceRepo,
		templateRepo,
		paymentRepo,
		userRepo,
		templateService,
		db,
		kvLogger,
		workflowOpts...,
	)

	reportService := service.NewReportService(workflowService, kvLogger)

	// Initialize HTTP server
	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, workflowService, templateService, reportService, kvLogger)

	// Run until interrupted
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logger.Fatal("HTTP server failed", zap.Error(err))
	}

	logger.Info("Shutdown complete")
}
