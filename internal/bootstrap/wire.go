package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/baechuer/orgdocs/services/auth-service/internal/application/auth"
	"github.com/baechuer/orgdocs/services/auth-service/internal/audit"
	"github.com/baechuer/orgdocs/services/auth-service/internal/config"
	"github.com/baechuer/orgdocs/services/auth-service/internal/domain"
	"github.com/baechuer/orgdocs/services/auth-service/internal/infrastructure/db/postgres"
	"github.com/baechuer/orgdocs/services/auth-service/internal/infrastructure/email"
	"github.com/baechuer/orgdocs/services/auth-service/internal/infrastructure/memory"
	rabbitmq_pub "github.com/baechuer/orgdocs/services/auth-service/internal/infrastructure/messaging/rabbitmq"
	"github.com/baechuer/orgdocs/services/auth-service/internal/infrastructure/mongo"
	"github.com/baechuer/orgdocs/services/auth-service/internal/infrastructure/oauth"
	"github.com/baechuer/orgdocs/services/auth-service/internal/infrastructure/redis"
	"github.com/baechuer/orgdocs/services/auth-service/internal/infrastructure/security"
	"github.com/baechuer/orgdocs/services/auth-service/internal/logger"
	http_handlers "github.com/baechuer/orgdocs/services/auth-service/internal/transport/http/handlers"
	"github.com/baechuer/orgdocs/services/auth-service/internal/transport/http/middleware"
	"github.com/baechuer/orgdocs/services/auth-service/internal/transport/http/response"
	"github.com/baechuer/orgdocs/services/auth-service/internal/transport/http/router"
)

/*
========================
 Public entry (prod)
========================
*/

func NewServer() (*http.Server, func(), error) {
	return NewServerWithDeps(DefaultDeps())
}

// NewServerWithDeps allows injecting dependencies for testing
func NewServerWithDeps(deps Deps) (*http.Server, func(), error) {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return nil, nil, err
	}

	app, err := NewApp(context.Background(), cfg, deps)
	if err != nil {
		return nil, nil, err
	}

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      app.Handler,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}
	return srv, app.Close, nil
}

/*
========================
 Dependency injection
========================
*/

type Deps struct {
	LoadConfig func() (*config.Config, error)

	OpenPostgres func(dsn string, debug bool) (*sql.DB, error)

	OpenMongo func(ctx context.Context, uri, database string) (*mongo.Client, error)

	NewRedis func(addr, password string, db int) *redis.Client

	NewPublisher func(url, exchange string, codeTTL time.Duration, lg zerolog.Logger) (*rabbitmq_pub.Publisher, error)

	// NewIdentity returns nil when Google sign-in cannot be offered.
	NewIdentity func(cfg *config.Config) (auth.IdentityVerifier, func(), error)
}

func DefaultDeps() Deps {
	return Deps{
		LoadConfig:   config.Load,
		OpenPostgres: config.NewDB,
		OpenMongo:    mongo.New,
		NewRedis:     redis.New,
		NewPublisher: rabbitmq_pub.NewPublisher,
		NewIdentity:  googleIdentity,
	}
}

// App is the assembled service. The HTTP server and the admin tool both
// build one.
type App struct {
	Config  *config.Config
	Users   auth.UserRepo
	Service *auth.Service
	Handler http.Handler

	cleanupFns []func()
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() {
	runCleanup(a.cleanupFns)
	a.cleanupFns = nil
}

/*
========================
 Core bootstrap logic
========================
*/

func NewApp(ctx context.Context, cfg *config.Config, deps Deps) (*App, error) {
	deps = withDefaults(deps)
	lg := logger.Component("bootstrap")
	app := &App{Config: cfg}

	fail := func(err error) (*App, error) {
		app.Close()
		return nil, err
	}

	pingers := map[string]http_handlers.Pinger{}

	// 1) mongo, shared by the credential store and the code store
	var mc *mongo.Client
	if cfg.StoreDriver == config.DriverMongo || cfg.OTPDriver == config.DriverMongo {
		c, err := deps.OpenMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return fail(fmt.Errorf("mongo: %w", err))
		}
		app.cleanupFns = append(app.cleanupFns, func() {
			cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = c.Close(cctx)
		})
		if err := c.EnsureIndexes(ctx); err != nil {
			return fail(fmt.Errorf("mongo indexes: %w", err))
		}
		mc = c
		pingers["mongo"] = c
		lg.Info().Str("database", cfg.MongoDatabase).Msg("mongo connected")
	}

	// 2) credential store
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		db, err := deps.OpenPostgres(cfg.DBAddr, cfg.DBDebug)
		if err != nil {
			return fail(fmt.Errorf("postgres: %w", err))
		}
		app.cleanupFns = append(app.cleanupFns, func() { _ = db.Close() })
		if err := postgres.Migrate(ctx, db); err != nil {
			return fail(fmt.Errorf("postgres migrate: %w", err))
		}
		repo := postgres.NewUserRepo(db)
		app.Users = repo
		pingers["postgres"] = repo
	case config.DriverMongo:
		app.Users = mongo.NewUserRepo(mc)
	default:
		lg.Warn().Msg("using in-memory credential store; data is lost on restart")
		repo := memory.NewUserRepo()
		app.Users = repo
		pingers["store"] = repo
	}

	// 3) redis: code store and rate limiting
	var rc *redis.Client
	if cfg.RedisAddr != "" {
		c := deps.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := c.Ping(ctx); err != nil {
			_ = c.Close()
			if cfg.OTPDriver == config.DriverRedis {
				return fail(fmt.Errorf("redis: %w", err))
			}
			lg.Warn().Err(err).Msg("redis unavailable; rate limiting disabled")
		} else {
			rc = c
			app.cleanupFns = append(app.cleanupFns, func() { _ = c.Close() })
			pingers["redis"] = c
			lg.Info().Msg("redis connected")
		}
	}

	var codes auth.CodeStore
	switch cfg.OTPDriver {
	case config.DriverRedis:
		codes = redis.NewCodeStore(rc, cfg.OTPTTL)
	case config.DriverMongo:
		codes = mongo.NewCodeStore(mc, cfg.OTPTTL)
	default:
		codes = memory.NewCodeStore(cfg.OTPTTL)
	}

	// 4) code delivery
	var notifier auth.CodeNotifier
	switch cfg.Notifier {
	case config.NotifierRabbitMQ:
		pub, err := deps.NewPublisher(cfg.Rabbit.URL, cfg.Rabbit.Exchange, cfg.OTPTTL, logger.Component("rabbitmq"))
		if err != nil {
			return fail(fmt.Errorf("rabbitmq: %w", err))
		}
		app.cleanupFns = append(app.cleanupFns, func() { _ = pub.Close() })
		notifier = pub
	case config.NotifierLog:
		lg.Warn().Msg("verification codes are logged, not delivered")
		notifier = memory.NewLogNotifier(logger.Logger)
	default:
		notifier = email.NewSMTPNotifier(SMTPConfig(cfg.SMTP, cfg.OTPTTL), logger.Logger)
	}

	// 5) google sign-in (optional)
	identity, closeIdentity, err := deps.NewIdentity(cfg)
	if err != nil {
		if !cfg.IsDev() {
			return fail(fmt.Errorf("google sign-in: %w", err))
		}
		lg.Warn().Err(err).Msg("google sign-in unavailable; /oauth/login disabled")
		identity = nil
	}
	if closeIdentity != nil {
		app.cleanupFns = append(app.cleanupFns, closeIdentity)
	}

	// 6) security + service
	lg.Info().Str("issuer", cfg.JWTIssuer).Msg("initializing jwt issuer")
	hasher := security.NewBcryptHasher(cfg.BcryptCost)
	tokens := security.NewJWTIssuer(cfg.JWTSecret, cfg.JWTIssuer)

	svc := auth.NewService(app.Users, hasher, tokens, codes, notifier, identity, auth.Config{
		SessionTTL:      cfg.SessionTokenTTL,
		OAuthSessionTTL: cfg.OAuthSessionTokenTTL,
		ResetTokenTTL:   cfg.ResetTokenTTL,
		EmailDomains:    cfg.AllowedEmailDomains,
	}).WithAudit(audit.New(logger.Component("audit")).Record)
	app.Service = svc

	// 7) seed admin
	if cfg.SeedAdminEmail != "" {
		u, created, err := svc.EnsureAdmin(ctx, cfg.SeedAdminEmail, cfg.SeedAdminPassword)
		if err != nil {
			return fail(fmt.Errorf("seed admin: %w", err))
		}
		lg.Info().Str("user_id", u.ID).Bool("created", created).Msg("admin account ensured")
	}

	// 8) handlers + middleware
	writeErr := response.ErrorWriter(cfg.IsDev())

	global := []router.Middleware{middleware.RequestID, middleware.AccessLog}
	if cfg.MetricsEnabled {
		global = append(global, middleware.Metrics)
	}
	if len(cfg.CORSOrigins) > 0 {
		global = append(global, middleware.CORS(cfg.CORSOrigins))
	}

	// rate limit (fail-open)
	var limiter middleware.RateLimiter
	if rc != nil {
		limiter = redis.NewFixedWindowLimiter(rc)
	}
	limit := func(routeKey string) router.Middleware {
		n := cfg.RateLimitMax
		if routeKey == "verify_code" {
			n = cfg.RateLimitVerifyCode
		}
		return middleware.RateLimitFixedWindow(limiter, middleware.FixedWindowConfig{
			RouteKey: routeKey,
			Limit:    n,
			Window:   cfg.RateLimitWindow,
		}, writeErr)
	}

	rd := router.Deps{
		Health:  http_handlers.NewHealthHandler(pingers),
		Auth:    http_handlers.NewAuthHandler(svc, writeErr),
		AuthMW:  middleware.Auth(tokens, writeErr),
		AdminMW: middleware.RequireAtLeast(string(domain.RoleAdmin), writeErr),
		Global:  global,
		Limit:   limit,
	}
	if cfg.MetricsEnabled {
		rd.Metrics = promhttp.Handler()
	}

	// 9) router
	mux, err := router.New(rd)
	if err != nil {
		return fail(err)
	}
	app.Handler = mux

	return app, nil
}

// googleIdentity builds the Google ID token verifier when a client id is set.
func googleIdentity(cfg *config.Config) (auth.IdentityVerifier, func(), error) {
	if cfg.GoogleClientID == "" {
		return nil, nil, nil
	}
	v, err := oauth.NewGoogleVerifier(cfg.GoogleClientID, cfg.GoogleJWKSURL, logger.Component("google"))
	if err != nil {
		return nil, nil, err
	}
	return v, v.Close, nil
}

/*
========================
 helpers
========================
*/

// SMTPConfig maps the environment block onto the notifier's settings.
func SMTPConfig(s config.SMTP, codeTTL time.Duration) email.SMTPConfig {
	return email.SMTPConfig{
		Host:     s.Host,
		Port:     s.Port,
		Username: s.Username,
		Password: s.Password,
		From:     s.From,
		Timeout:  s.Timeout,
		Insecure: s.Insecure,
		CodeTTL:  codeTTL,
	}
}

func withDefaults(d Deps) Deps {
	def := DefaultDeps()
	if d.OpenPostgres == nil {
		d.OpenPostgres = def.OpenPostgres
	}
	if d.OpenMongo == nil {
		d.OpenMongo = def.OpenMongo
	}
	if d.NewRedis == nil {
		d.NewRedis = def.NewRedis
	}
	if d.NewPublisher == nil {
		d.NewPublisher = def.NewPublisher
	}
	if d.NewIdentity == nil {
		d.NewIdentity = def.NewIdentity
	}
	return d
}

func runCleanup(fns []func()) {
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}
