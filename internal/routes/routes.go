package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/agrolens/agrolens_auth/internal/auth"
	"github.com/agrolens/agrolens_auth/internal/config"
	"github.com/agrolens/agrolens_auth/internal/identity"
	"github.com/agrolens/agrolens_auth/internal/metrics"
	"github.com/agrolens/agrolens_auth/internal/middleware"
	"github.com/agrolens/agrolens_auth/internal/notification"
	"github.com/agrolens/agrolens_auth/internal/otp"
	"github.com/agrolens/agrolens_auth/internal/security"
	"github.com/agrolens/agrolens_auth/internal/session"
	"github.com/agrolens/agrolens_auth/internal/verification"
)

// Deps aggregates shared dependencies required to wire routes. OTP and
// Mailer override the gateway and welcome mailer built from Cfg.
type Deps struct {
	Cfg      config.Config
	DB       *pgxpool.Pool
	Cache    *redis.Client
	Logger   *slog.Logger
	Registry *prometheus.Registry
	OTP      otp.Gateway
	Mailer   notification.Notifier
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	if d.Registry == nil {
		d.Registry = prometheus.NewRegistry()
	}

	gateway, err := buildGateway(d)
	if err != nil {
		return err
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	if d.Cfg.IsDev() && d.Cfg.AppEnv != "test" {
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)
	RegisterMetricsRoute(app, d.Registry)

	var (
		identityRepo identity.Repository
		redeemer     verification.Redeemer
		revoked      session.RevocationList
	)
	if d.DB != nil {
		identityRepo = identity.NewPostgresRepository(d.DB)
	} else {
		identityRepo = identity.NewMemoryRepository()
	}
	if d.Cache != nil {
		redeemer = verification.NewRedisRedeemer(d.Cache)
		revoked = session.NewRedisRevocationList(d.Cache)
	} else {
		redeemer = verification.NewMemoryRedeemer()
		revoked = session.NewMemoryRevocationList()
	}

	authMetrics := metrics.New(d.Registry)
	proofs := verification.NewIssuer(d.Cfg.AuthSecret, d.Cfg.ProofTTL)
	sessions := session.NewIssuer(d.Cfg.AuthSecret, d.Cfg.SessionTTL)
	identitySvc := identity.NewService(identityRepo, security.NewHasher(d.Cfg.BcryptCost), proofs, redeemer,
		identity.Policy{MinPasswordLength: d.Cfg.PasswordMinLength, DefaultCountry: d.Cfg.DefaultCountry}, d.Logger)

	mailer := d.Mailer
	if mailer == nil && d.Cfg.MailEnabled() {
		mailer = notification.NewSMTPNotifier(notification.SMTPConfig{
			Host:     d.Cfg.SMTPHost,
			Port:     d.Cfg.SMTPPort,
			Username: d.Cfg.SMTPUsername,
			Password: d.Cfg.SMTPPassword,
			From:     d.Cfg.SMTPFrom,
		})
	}

	authSvc := auth.NewService(auth.Deps{
		Identities: identitySvc,
		OTP:        gateway,
		Proofs:     proofs,
		Sessions:   sessions,
		Revoked:    revoked,
		Mailer:     mailer,
		Metrics:    authMetrics,
		AppName:    d.Cfg.AppName,
		Logger:     d.Logger,
	})
	cookie := session.CookieConfig{Name: d.Cfg.SessionCookieName, Secure: d.Cfg.CookieSecure}
	authHandler := auth.NewHandler(authSvc, cookie)

	guard := middleware.RouteGuard(middleware.GuardConfig{
		Cookie:     cookie,
		Sessions:   sessions,
		Revoked:    revoked,
		Identities: identityRepo,
		Metrics:    authMetrics,
		Logger:     d.Logger,
	})

	app.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterAuthRoutes(app, authHandler, AuthMiddleware{
		Guard:       guard,
		RateLimit:   middleware.LoginRateLimit(d.Cache, d.Cfg.LoginRatePerMin, d.Cfg.DefaultCountry, d.Logger),
		Idempotency: middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger),
	})
	return nil
}

func buildGateway(d Deps) (otp.Gateway, error) {
	if d.OTP != nil {
		return d.OTP, nil
	}
	switch d.Cfg.OTPProvider {
	case "http":
		return otp.NewHTTPProvider(otp.HTTPConfig{
			BaseURL:   d.Cfg.OTPHTTPBaseURL,
			Account:   d.Cfg.OTPHTTPAccount,
			Token:     d.Cfg.OTPHTTPToken,
			ServiceID: d.Cfg.OTPHTTPService,
			TTL:       d.Cfg.OTPTTL,
		}, nil), nil
	case "local":
		if d.Cache == nil {
			return nil, fmt.Errorf("OTP_PROVIDER=local requires redis")
		}
		return otp.NewLocalProvider(d.Cache, notification.NewLoggerNotifier(d.Logger), otp.LocalConfig{
			TTL:         d.Cfg.OTPTTL,
			MaxAttempts: d.Cfg.OTPMaxAttempts,
			AppName:     d.Cfg.AppName,
		}, d.Logger), nil
	default:
		return nil, fmt.Errorf("unknown OTP provider %q", d.Cfg.OTPProvider)
	}
}
