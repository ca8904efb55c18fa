package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/novandria/bankgateway/internal"
	"github.com/novandria/bankgateway/internal/core/events"
	"github.com/novandria/bankgateway/internal/envelope"
	"github.com/novandria/bankgateway/internal/gateway"
	orderpg "github.com/novandria/bankgateway/internal/order/postgres"
	"github.com/novandria/bankgateway/internal/payment"
	paymentpg "github.com/novandria/bankgateway/internal/payment/postgres"
	"github.com/novandria/bankgateway/internal/payment/rediscache"
	"github.com/novandria/bankgateway/internal/transport"
	"github.com/novandria/bankgateway/internal/transport/rest"
	"github.com/novandria/bankgateway/pkg/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server that serves checkout, notification and return-leg endpoints`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config *internal.Config
	DB     *sql.DB
	Router *chi.Mux
	Logger *slog.Logger

	PaymentHandler *payment.Handler
	WebhookHandler *payment.WebhookHandler
	ReturnHandler  *payment.ReturnHandler
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	rest.RegisterAllRoutes(deps.Router, deps.DB, deps.PaymentHandler, deps.WebhookHandler, deps.ReturnHandler, deps.Logger)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	slog.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      deps.Router,
		ReadTimeout:  deps.Config.Server.ReadTimeout,
		WriteTimeout: deps.Config.Server.WriteTimeout,
		IdleTimeout:  deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		slog.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
		if err := deps.DB.Close(); err != nil {
			slog.Error("Database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	slog.Info("Server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	env := "development"
	if config.Observability.Logging.Format == "json" {
		env = "production"
	}
	logger.Init(env)
	log := logger.L()

	gormDB, sqlDB, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	codec, err := envelope.NewCodecFromConfig(config.Gateway)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize envelope codec: %w", err)
	}

	var sessionStore payment.SessionStore
	if config.Redis.Enabled {
		sessionStore = rediscache.NewSessionStore(config.Redis.Addr, "bankgateway")
		log.Info("using redis session store", "addr", config.Redis.Addr)
	} else {
		sessionStore = paymentpg.NewSessionStore(gormDB)
	}

	orderRepo := orderpg.NewOrderRepository(gormDB)
	eventBus := events.NewEventBus(log)

	sessionService := payment.NewSessionService(sessionStore, log)
	gatewayClient := gateway.NewClient(config.Gateway, log)
	paymentService := payment.NewService(codec, gatewayClient, sessionService, orderRepo, config.Gateway, log)
	reconciler := payment.NewReconciler(orderRepo, eventBus, log)

	payment.NewEventHandler(log).RegisterEventHandlers(eventBus)

	baseHandler := transport.NewBaseHandler(log)

	return &Dependencies{
		Config:         config,
		DB:             sqlDB,
		Router:         chi.NewRouter(),
		Logger:         log,
		PaymentHandler: payment.NewHandler(baseHandler, paymentService, log),
		WebhookHandler: payment.NewWebhookHandler(baseHandler, codec, reconciler, log),
		ReturnHandler:  payment.NewReturnHandler(baseHandler, sessionService, reconciler, log),
	}, nil
}

// initDB opens the database and layers GORM over the same connection. The
// sqlite driver backs test-mode and local development.
func initDB(cfg internal.DatabaseConfig) (*gorm.DB, *sql.DB, error) {
	if cfg.Driver == "sqlite" {
		gormDB, err := gorm.Open(sqlite.Open(cfg.Source), &gorm.Config{})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		sqlDB, err := gormDB.DB()
		if err != nil {
			return nil, nil, err
		}
		return gormDB, sqlDB, nil
	}

	dbConn, err := sqlx.Connect("pgx", cfg.Source)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: dbConn.DB}), &gorm.Config{})
	if err != nil {
		_ = dbConn.Close()
		return nil, nil, fmt.Errorf("failed to layer gorm over db connection: %w", err)
	}

	return gormDB, dbConn.DB, nil
}
