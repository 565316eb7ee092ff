package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"eventhub/approval"
	"eventhub/auth"
	"eventhub/config"
	"eventhub/database"
	"eventhub/handlers"
	"eventhub/identity"
	"eventhub/logging"
	"eventhub/mail"
	"eventhub/metrics"
	"eventhub/realtime"
	"eventhub/session"
	"eventhub/tournament"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	mailTimeout     = 15 * time.Second
	shutdownTimeout = 10 * time.Second
)

// bootstrap loads configuration and opens the logger and database shared by
// every command.
func bootstrap() (*config.Config, *zap.Logger, *gorm.DB, error) {
	envFile := config.LoadDotenv()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create logger: %w", err)
	}
	if envFile != "" {
		logger.Info("loaded environment file", zap.String("path", envFile))
	}

	db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open database: %w", err)
	}
	if err := database.SeedSuperAdmin(db, cfg.SuperAdminEmail, cfg.SuperAdminPassword, logger); err != nil {
		return nil, nil, nil, fmt.Errorf("seed super admin: %w", err)
	}
	return cfg, logger, db, nil
}

func newMailer(cfg *config.Config, logger *zap.Logger) mail.Dispatcher {
	if cfg.SMTPHost == "" {
		return mail.NewLogDispatcher(logger)
	}
	return mail.NewSMTPDispatcher(mail.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		User:     cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
	})
}

func newCounter(cfg *config.Config, logger *zap.Logger) realtime.Counter {
	if cfg.RedisAddr == "" {
		return &realtime.MemoryCounter{}
	}
	counter, err := realtime.NewRedisCounter(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Warn("redis unavailable, counting connections in memory", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		return &realtime.MemoryCounter{}
	}
	logger.Info("counting connections in redis", zap.String("addr", cfg.RedisAddr))
	return counter
}

func serve() error {
	cfg, logger, db, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync()

	clock := clockwork.NewRealClock()
	tokens, err := session.NewService(cfg.JWTSecret, cfg.SessionTTL, clock)
	if err != nil {
		return err
	}

	m := metrics.New()
	direct := newMailer(cfg, logger)
	async := mail.NewAsync(direct, mailTimeout, logger)

	ids := identity.NewStore(db, clock)
	gate := approval.NewGate(db, clock, logger)
	broker := auth.NewBroker(db, ids, gate, tokens,
		auth.NewGoogleVerifier(cfg.GoogleTokenInfoURL, cfg.GoogleClientID),
		async, clock, logger,
		auth.Options{
			OTPTTL:            cfg.OTPTTL,
			OTPResendInterval: cfg.OTPResendInterval,
			Observer:          m,
		})

	counter := newCounter(cfg, logger)
	if c, ok := counter.(*realtime.RedisCounter); ok {
		defer c.Close()
	}
	hub := realtime.NewHub(realtime.DefaultConfig(), counter, m.Connections(), logger)

	engine := tournament.NewEngine(db, clock, logger, hub)
	engine.OnGenerated(m.MatchesGenerated)

	router := handlers.NewRouter(handlers.Deps{
		Broker:       broker,
		Tokens:       tokens,
		Identity:     ids,
		Gate:         gate,
		Engine:       engine,
		Mailer:       async,
		Direct:       direct,
		Realtime:     hub,
		Counter:      hub,
		Metrics:      m,
		Logger:       logger,
		CORSOrigins:  cfg.CORSOrigins,
		SecureCookie: cfg.CookieSecure,
		LegacyLogin:  cfg.LegacyLoginEnabled,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go hub.Run(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("port", cfg.ServerPort),
			zap.String("database", cfg.DatabaseDriver),
			zap.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
