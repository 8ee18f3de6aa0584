package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/legitrack/relnet/backend/internal/queue"
	mid "github.com/legitrack/relnet/backend/internal/server/middleware"
	"github.com/legitrack/relnet/backend/internal/util"
	"github.com/legitrack/relnet/backend/pkg/layout"
	"github.com/legitrack/relnet/backend/pkg/logger"
	"github.com/legitrack/relnet/backend/pkg/network"
	"github.com/legitrack/relnet/backend/pkg/store"
	"github.com/legitrack/relnet/backend/pkg/store/memory"
	neo "github.com/legitrack/relnet/backend/pkg/store/neo4j"
	pgstore "github.com/legitrack/relnet/backend/pkg/store/pgx"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/go-playground/validator"
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

// New builds the echo instance serving app.
func New(app *mid.App) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = &CustomValidator{validator: validator.New()}
	e.JSONSerializer = JSONSerializer{}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("1M"))

	RegisterRoutes(e)
	return e
}

func openStorage(ctx context.Context) store.Storage {
	backend := util.GetEnvString("STORE_BACKEND", "postgres")
	switch backend {
	case "memory":
		path := util.GetEnv("SEED_FILE")
		if path == "" {
			logger.Warn("[Server] Memory store without SEED_FILE, serving an empty network")
			return memory.New()
		}
		s, err := memory.LoadSeed(path)
		if err != nil {
			logger.Fatal("Failed to load seed file", "path", path, "err", err)
		}
		return s
	case "neo4j":
		s, err := neo.Connect(ctx, util.GetEnv("NEO4J_URL"), util.GetEnv("NEO4J_USER"), util.GetEnv("NEO4J_PASS"))
		if err != nil {
			logger.Fatal("Failed to connect to Neo4j", "err", err)
		}
		return s
	default:
		databaseURL := util.GetEnv("DATABASE_URL")
		if util.GetEnvBool("RUN_MIGRATIONS", false) {
			if err := pgstore.Migrate(util.GetEnvString("MIGRATIONS_DIR", "migrations"), databaseURL); err != nil {
				logger.Fatal("Failed to run migrations", "err", err)
			}
		}
		s, err := pgstore.Connect(ctx, databaseURL)
		if err != nil {
			logger.Fatal("Failed to connect to database", "err", err)
		}
		return s
	}
}

func Init() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storage := openStorage(ctx)
	defer storage.Close(context.Background())

	svc := network.NewService(storage, storage, network.ServiceOptions{
		CacheTTL: util.GetEnvSeconds("NETWORK_CACHE_TTL_SECONDS", network.DefaultCacheTTL),
		Lookup: store.LookupOptions{
			ChunkSize: int(util.GetEnvNumeric("CATALOG_CHUNK_SIZE", store.DefaultLookupChunkSize)),
			Parallel:  int(util.GetEnvNumeric("CATALOG_PARALLEL", store.DefaultLookupParallel)),
			Retries:   int(util.GetEnvNumeric("CATALOG_RETRIES", store.DefaultLookupRetries)),
		},
	})

	layoutCfg, err := layout.LoadConfig(util.GetEnv("LAYOUT_CONFIG"))
	if err != nil {
		logger.Fatal("Failed to load layout config", "err", err)
	}
	views := layout.NewRegistry(layoutCfg)

	app := &mid.App{
		Network: svc,
		Views:   views,
		Limiter: mid.NewRateLimiter(
			util.GetEnvNumeric("RATE_LIMIT_RPS", 10),
			int(util.GetEnvNumeric("RATE_LIMIT_BURST", 20)),
		),
		MasterAPIKey:   util.GetEnv("MASTER_API_KEY"),
		MasterUserRole: util.GetEnv("MASTER_USER_ROLE"),
	}
	app.MasterUserID, _ = strconv.ParseInt(util.GetEnv("MASTER_USER_ID"), 10, 64)

	if authURL := util.GetEnv("AUTH_URL"); authURL != "" {
		k, err := keyfunc.NewDefault([]string{authURL + "/jwks"})
		if err != nil {
			logger.Fatal("Failed to load jwks keys", "err", err)
		}
		app.Keyfunc = k.Keyfunc
	} else {
		logger.Warn("[Server] AUTH_URL not set, only the master API key is accepted")
	}

	if queue.Configured() {
		que := queue.Init()
		defer que.Close()
		ch, err := que.Channel()
		if err != nil {
			logger.Fatal("Failed to open channel", "err", err)
		}
		go func() {
			if err := queue.ConsumeRefresh(ctx, ch, svc); err != nil {
				logger.Error("[Server] Refresh consumer stopped", "err", err)
			}
		}()
	}

	e := New(app)

	go func() {
		port := util.GetEnvString("PORT", "8080")
		logger.Info("Starting server", "port", port, "store", util.GetEnvString("STORE_BACKEND", "postgres"))
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	views.Close()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}
