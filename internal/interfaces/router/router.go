package router

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"brickshare-backend/internal/application/emails"
	"brickshare-backend/internal/application/finalize"
	"brickshare-backend/internal/application/forecast"
	healthsvc "brickshare-backend/internal/application/health"
	"brickshare-backend/internal/application/intake"
	"brickshare-backend/internal/application/ledger"
	"brickshare-backend/internal/application/notifications"
	"brickshare-backend/internal/application/portfolio"
	"brickshare-backend/internal/application/properties"
	"brickshare-backend/internal/application/settlement"
	"brickshare-backend/internal/config"
	"brickshare-backend/internal/infrastructure/database"
	"brickshare-backend/internal/infrastructure/events"
	"brickshare-backend/internal/infrastructure/locks"
	"brickshare-backend/internal/infrastructure/metrics"
	apphandler "brickshare-backend/internal/interfaces/handlers/applications"
	healthhandler "brickshare-backend/internal/interfaces/handlers/health"
	portfoliohandler "brickshare-backend/internal/interfaces/handlers/portfolio"
	prophandler "brickshare-backend/internal/interfaces/handlers/properties"
	settlehandler "brickshare-backend/internal/interfaces/handlers/settlement"
	"brickshare-backend/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type gormDBPinger struct {
	db *gorm.DB
}

func (g *gormDBPinger) Ping() error {
	if g == nil || g.db == nil {
		return nil
	}
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Deps are the long-lived pieces the entry points need after the app is built.
type Deps struct {
	DB      *gorm.DB
	Rdb     *redis.Client
	Sweep   *settlement.Service
	OnSweep func(ctx context.Context, result *settlement.SweepResult)

	closers []io.Closer
}

// Close releases the broker connection, Redis and the database pool.
func (d *Deps) Close() {
	for _, c := range d.closers {
		if err := c.Close(); err != nil {
			log.Warn().Err(err).Msg("Close failed")
		}
	}
}

var openDatabase = database.Open

func openRedis(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	return redis.NewClient(opt), nil
}

func CreateApp(cfg *config.Config) (*fiber.App, *Deps, error) {
	deps := &Deps{}

	if cfg.DatabaseURL == "" {
		return nil, nil, fmt.Errorf("database URL is not configured for env %q", cfg.Env)
	}
	db, err := openDatabase(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	deps.DB = db
	if sqlDB, err := db.DB(); err == nil {
		deps.closers = append(deps.closers, sqlDB)
	}
	if cfg.AutoMigrate {
		if err := database.AutoMigrate(db); err != nil {
			deps.Close()
			return nil, nil, fmt.Errorf("auto migrate: %w", err)
		}
	}

	var locker locks.Locker = locks.NewLocalLocker()
	if cfg.RedisURL != "" {
		rdb, err := openRedis(cfg.RedisURL)
		if err != nil {
			deps.Close()
			return nil, nil, err
		}
		deps.Rdb = rdb
		deps.closers = append(deps.closers, rdb)
		locker = &locks.RedisLocker{Rdb: rdb}
	}

	collector := &healthsvc.Collector{Rdb: deps.Rdb, DB: &gormDBPinger{db: db}}
	var publisher events.Publisher = events.Nop{}
	if cfg.AMQPURL != "" {
		amqpPub, err := events.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			deps.Close()
			return nil, nil, err
		}
		publisher = amqpPub
		collector.Broker = amqpPub
		deps.closers = append([]io.Closer{amqpPub}, deps.closers...)
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler(deps.Rdb),
		EnableTrustedProxyCheck: true,
	})

	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix: cfg.FrontendURLEndsWith,
		DevPassword:   cfg.DevPassword,
	}))
	app.Use(middleware.Tracing())
	app.Use(middleware.HealthMarker(deps.Rdb))
	app.Use(middleware.RouteLogger())

	hh := &healthhandler.Handlers{Collector: collector, HealthAdminKey: cfg.HealthAdminKey}
	app.Get("/", hh.Dashboard)
	app.Get("/reset", hh.Reset)
	app.Get("/health/json", hh.JSON)
	app.Get("/health/errors", hh.Errors)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	guard := &ledger.Guard{Locker: locker, LeaseTTL: cfg.LockTTL}
	dispatcher := &notifications.Dispatcher{
		DB:     db,
		Sender: &emails.BrevoClient{APIKey: cfg.SendinblueAPIKey, MailFrom: cfg.MailFrom},
	}

	sweep := &settlement.Service{
		DB:          db,
		Guard:       guard,
		Concurrency: cfg.SweepConcurrency,
		Dispatcher:  dispatcher,
		Publisher:   publisher,
	}
	deps.Sweep = sweep
	deps.OnSweep = func(ctx context.Context, result *settlement.SweepResult) {
		summary := map[string]interface{}{
			"started_at":        result.StartedAt,
			"duration":          result.Duration,
			"properties":        result.PropertiesScanned,
			"tranches_settled":  result.TranchesSettled,
			"tranches_funded":   result.TranchesFunded,
			"tranches_unfunded": result.TranchesUnfunded,
			"failures":          result.Failures,
		}
		if err := healthsvc.RecordSweep(ctx, deps.Rdb, summary); err != nil {
			log.Warn().Err(err).Msg("Failed to record sweep summary")
		}
	}

	// Applications
	ah := &apphandler.Handlers{Service: &intake.Service{DB: db, Guard: guard}}
	ag := app.Group("/api/v1/applications")
	ag.Post("/commit-application", middleware.RateLimit(middleware.RateLimitConfig{
		PerSecond: cfg.CommitRatePerSecond,
		Burst:     cfg.CommitBurst,
		KeyFunc:   apphandler.RateLimitKey,
	}), ah.CommitApplication)

	// Settlement (operator only)
	sh := &settlehandler.Handlers{
		Sweep: sweep,
		Finalize: &finalize.Service{
			DB:         db,
			Guard:      guard,
			Dispatcher: dispatcher,
			Publisher:  publisher,
		},
		OnSweep: deps.OnSweep,
	}
	sg := app.Group("/api/v1/settlement", middleware.RequireAdminKey(cfg.AdminKeyHash))
	sg.Post("/run-sweep", sh.RunSweep)
	sg.Post("/properties/:id/settle", sh.SettleProperty)
	sg.Post("/finalize", sh.FinalizeProperty)

	// Properties
	ph := &prophandler.Handlers{
		Service:         &properties.Service{DB: db},
		ForecastService: &forecast.Service{DB: db},
	}
	pg := app.Group("/api/v1/properties")
	pg.Get("/", ph.ListProperties)
	pg.Get("/:id", ph.GetProperty)
	pg.Get("/:id/audit", ph.AuditTrail)
	pg.Get("/:id/forecast", ph.Forecast)

	// Portfolio
	poh := &portfoliohandler.Handlers{Service: &portfolio.Service{DB: db}}
	pog := app.Group("/api/v1/portfolio/:user_id")
	pog.Get("/investments", poh.Investments)
	pog.Get("/applications", poh.Applications)
	pog.Get("/transactions", poh.Transactions)
	pog.Get("/wallet", poh.Wallet)

	return app, deps, nil
}

func Handler(app *fiber.App) http.Handler {
	return adaptor.FiberApp(app)
}
