package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/softeno/permission-template/internal"
	"github.com/softeno/permission-template/internal/auth"
	"github.com/softeno/permission-template/internal/core/events"
	"github.com/softeno/permission-template/internal/external"
	"github.com/softeno/permission-template/internal/messaging"
	"github.com/softeno/permission-template/internal/metrics"
	"github.com/softeno/permission-template/internal/permission"
	permissionPostgres "github.com/softeno/permission-template/internal/permission/postgres"
	"github.com/softeno/permission-template/internal/transport"
	"github.com/softeno/permission-template/internal/transport/rest"
	"github.com/softeno/permission-template/internal/transport/swagger"
	"github.com/softeno/permission-template/pkg/logger"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

var specFile string

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config   *internal.Config
	DB       *sqlx.DB
	Gorm     *gorm.DB
	Router   *chi.Mux
	Routes   rest.Routes
	Producer *messaging.Producer
	Bus      *events.EventBus
	Logger   *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	rest.RegisterAllRoutes(deps.Router, deps.Routes, deps.Logger)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr, "security_enabled", deps.Config.Security.Enabled)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
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
		deps.Logger.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
		deps.close(ctx)
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			deps.Logger.Error("Server failed to start", "error", err)
			deps.close(context.Background())
			os.Exit(1)
		}
	}

	deps.Logger.Info("Server stopped")
}

// close drains pending event deliveries before closing the producer they
// write to.
func (d *Dependencies) close(ctx context.Context) {
	if d.Bus != nil {
		if err := d.Bus.Drain(ctx); err != nil {
			d.Logger.Error("Event bus drain error", "error", err)
		}
	}
	if d.Producer != nil {
		if err := d.Producer.Close(); err != nil {
			d.Logger.Error("Kafka producer close error", "error", err)
		}
	}
	if err := d.DB.Close(); err != nil {
		d.Logger.Error("Database close error", "error", err)
	}
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.Configure(config.Server.Env, config.Observability.Logging.Level, config.Observability.Logging.Format)

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := initGorm(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	deps := &Dependencies{
		Config: config,
		DB:     db,
		Gorm:   gormDB,
		Router: chi.NewRouter(),
		Logger: log,
	}

	eventBus := events.NewEventBus(log)
	deps.Bus = eventBus
	if config.Kafka.Enabled {
		deps.Producer = messaging.NewProducer(config.Kafka, log)
		messaging.RegisterEventHandlers(eventBus, deps.Producer)
	}

	var registry *metrics.Registry
	var recorder permission.Recorder
	if config.Observability.Metrics.Enabled {
		registry = metrics.NewRegistry()
		recorder = registry
	}

	base := transport.NewBaseHandler(log)

	permissionRepo := permissionPostgres.NewPermissionRepository(gormDB)
	permissionService := permission.NewService(permissionRepo, eventBus, recorder, log)

	authHandler, err := newAuthHandler(base, config.Security)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize auth: %w", err)
	}

	spec, err := swagger.LoadSpec(context.Background(), specFile)
	if err != nil {
		// docs are optional; the API still serves without them
		log.Warn("openapi document not loaded", "path", specFile, "error", err)
		spec = nil
	}

	deps.Routes = rest.Routes{
		Health:       rest.NewHealthHandler(db.DB),
		Auth:         authHandler,
		Permission:   permission.NewHandler(base, permissionService),
		External:     external.NewHandler(base, external.NewClient(config.External, log)),
		Metrics:      registry,
		MetricsPath:  config.Observability.Metrics.Path,
		Spec:         spec,
		RequiredRole: config.Security.RequiredRole,
		Origins:      config.Server.Origins(),
	}

	return deps, nil
}

// newAuthHandler returns a handler with no verifier when security is off.
func newAuthHandler(base *transport.BaseHandler, cfg internal.SecurityConfig) (*auth.Handler, error) {
	if !cfg.Enabled {
		return auth.NewHandler(base, nil), nil
	}
	verifier, err := auth.NewVerifier(cfg)
	if err != nil {
		return nil, err
	}
	return auth.NewHandler(base, verifier), nil
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// verify connection; close underlying *sql.DB on failure
	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}

// initGorm shares the sqlx pool with gorm.
func initGorm(db *sqlx.DB) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
		TranslateError: true,
		Logger:         gormLogger.Default.LogMode(gormLogger.Warn),
	})
}

func init() {
	httpServerCmd.Flags().StringVar(&specFile, "openapi", "./api/openapi.yml", "OpenAPI document served at /openapi.yml")
}
