package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OFFIS-RIT/rulegraph/backend/internal/db"
	"github.com/OFFIS-RIT/rulegraph/backend/internal/queue"
	mid "github.com/OFFIS-RIT/rulegraph/backend/internal/server/middleware"
	"github.com/OFFIS-RIT/rulegraph/backend/internal/util"
	"github.com/OFFIS-RIT/rulegraph/backend/pkg/builder"
	"github.com/OFFIS-RIT/rulegraph/backend/pkg/logger"
	"github.com/OFFIS-RIT/rulegraph/backend/pkg/service"
	pgxstore "github.com/OFFIS-RIT/rulegraph/backend/pkg/store/pgx"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/go-playground/validator"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

func NewValidator() *CustomValidator {
	return &CustomValidator{validator: validator.New()}
}

func Init() {
	e := echo.New()
	e.Validator = NewValidator()

	jwksUrl := util.GetEnv("AUTH_URL") + "/jwks"
	k, err := keyfunc.NewDefault([]string{jwksUrl})
	if err != nil {
		logger.Fatal("Failed to load jwks keys", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbURL := util.GetEnv("DATABASE_URL")
	if util.GetEnvBool("MIGRATE_ON_START", false) {
		if err := db.Migrate(dbURL); err != nil {
			logger.Fatal("Failed to migrate database", "err", err)
		}
	}

	conn, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", "err", err)
	}
	defer conn.Close()

	storage := pgxstore.NewStorageWithConnection(
		conn,
		pgxstore.WithQueryTimeout(util.GetEnvDuration("DB_QUERY_TIMEOUT", 10*time.Second)),
	)

	que := queue.Init(ctx)
	defer que.Close()
	pubCh, err := que.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer pubCh.Close()

	exchange := util.GetEnvString("GRAPH_EXCHANGE", queue.DefaultExchange)
	if err := queue.SetupExchange(pubCh, exchange); err != nil {
		logger.Fatal("Failed to declare exchange", "err", err)
	}
	publisher, err := queue.NewPublisher(pubCh, exchange)
	if err != nil {
		logger.Fatal("Failed to create publisher", "err", err)
	}

	graphs, err := service.New(service.Params{
		Builder:   builder.New(builder.Params{Storage: storage, Scopes: storage}),
		Access:    storage,
		CacheSize: util.GetEnvInt("GRAPH_CACHE_SIZE", service.DefaultCacheSize),
		Notifier:  publisher,
	})
	if err != nil {
		logger.Fatal("Failed to create graph service", "err", err)
	}

	subCh, err := que.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer subCh.Close()
	go func() {
		if err := queue.Consume(ctx, subCh, exchange, publisher.Origin(), graphs); err != nil {
			logger.Error("[Queue] Invalidation consumer stopped", "err", err)
		}
	}()

	e.Use(mid.AppContextMiddleware(&mid.App{
		Graphs:         graphs,
		Key:            k.Keyfunc,
		MasterAPIKey:   util.GetEnv("MASTER_API_KEY"),
		MasterUserID:   util.GetEnv("MASTER_USER_ID"),
		MasterUserRole: util.GetEnv("MASTER_USER_ROLE"),
	}))
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())

	RegisterRoutes(e)

	go func() {
		port := util.GetEnvString("PORT", "8080")
		logger.Info("Starting server", "port", port)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}
