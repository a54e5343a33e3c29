package routes

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/mfs-pay/mfs_pay/internal/auth"
	"github.com/mfs-pay/mfs_pay/internal/config"
	"github.com/mfs-pay/mfs_pay/internal/identity"
	"github.com/mfs-pay/mfs_pay/internal/ledger"
	"github.com/mfs-pay/mfs_pay/internal/middleware"
	"github.com/mfs-pay/mfs_pay/internal/notification"
	"github.com/mfs-pay/mfs_pay/internal/payments"
	"github.com/mfs-pay/mfs_pay/internal/reports"
	"github.com/mfs-pay/mfs_pay/internal/requests"
)

// Deps aggregates shared dependencies required to wire routes. DB, Cache and
// Notifier are optional; Store overrides the store chosen from DB.
type Deps struct {
	Cfg      config.Config
	DB       *pgxpool.Pool
	Cache    *redis.Client
	Store    ledger.Store
	Notifier notification.Notifier
	Logger   *slog.Logger
}

// Services exposes the wired domain services to callers outside the HTTP layer.
type Services struct {
	Store    ledger.Store
	Engine   *payments.Engine
	Resolver *requests.Resolver
	Reports  *reports.Service
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) (*Services, error) {
	// Enforce DB/Redis presence outside of dev, even though config also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil && d.Store == nil {
			return nil, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return nil, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	// Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	// Credentials are only allowed with an explicit origin list.
	origins := strings.Join(d.Cfg.CORSOrigins, ",")
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     "GET,POST,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization,Idempotency-Key,X-Request-ID",
		AllowCredentials: origins != "" && origins != "*",
	}))
	app.Use(middleware.Audit(d.Logger))

	store := d.Store
	if store == nil {
		if d.DB != nil {
			pg := ledger.NewPostgresStore(d.DB)
			ctx, cancel := context.WithTimeout(context.Background(), d.Cfg.StoreTimeout)
			err := pg.Migrate(ctx)
			cancel()
			if err != nil {
				return nil, fmt.Errorf("migrate ledger schema: %w", err)
			}
			store = pg
		} else {
			d.Logger.Warn("no DATABASE_URL configured, using in-memory ledger")
			store = ledger.NewInMemory()
		}
	}

	notifier := d.Notifier
	if notifier == nil {
		notifier = notification.NewLoggerNotifier(d.Logger)
	}

	// Services and handlers
	hasher := auth.BcryptHasher{Cost: d.Cfg.PINHashCost}
	tokens := auth.NewTokenService(d.Cfg.JWTSecret, d.Cfg.TokenTTL)
	authSvc := auth.NewService(store, hasher, tokens, d.Cfg.StoreTimeout)
	identitySvc := identity.NewService(store, hasher, d.Cfg.StoreTimeout)
	engine := payments.NewEngine(store, d.Cfg.Fees, hasher, notifier, d.Cfg.StoreTimeout, d.Logger)
	resolver := requests.NewResolver(engine, notifier, d.Logger)
	reportSvc := reports.NewService(store, d.Cfg.StoreTimeout)

	authHandler := auth.NewHandler(authSvc)
	identityHandler := identity.NewHandler(identitySvc)
	paymentHandler := payments.NewHandler(engine)
	requestHandler := requests.NewHandler(resolver)
	reportHandler := reports.NewHandler(reportSvc)

	api := app.Group("/api/v1")
	RegisterHealthRoutes(app, api, d)

	// Public routes
	RegisterIdentityRoutes(api, identityHandler)
	RegisterAuthRoutes(api, authHandler, middleware.LoginRateLimit(d.Cache, d.Cfg.LoginRateLimit))
	RegisterHistoryRoutes(api, reportHandler)

	// Protected routes carry the auth handler per route so unknown paths
	// under /api/v1 still fall through to 404.
	authn := middleware.JWTAuth(tokens, store)
	idem := middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)
	RegisterAccountRoutes(api, identityHandler, authn)
	RegisterPaymentRoutes(api, paymentHandler, authn, idem)
	RegisterRequestRoutes(api, requestHandler, authn, idem)
	RegisterReportRoutes(api, reportHandler, authn)

	return &Services{Store: store, Engine: engine, Resolver: resolver, Reports: reportSvc}, nil
}
