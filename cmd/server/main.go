package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"

	"github.com/abhishek00112233/LMS-Backend/internal/config"
	"github.com/abhishek00112233/LMS-Backend/internal/db"
	"github.com/abhishek00112233/LMS-Backend/internal/goroutine"
	httpHandlers "github.com/abhishek00112233/LMS-Backend/internal/http/handlers"
	httpRouter "github.com/abhishek00112233/LMS-Backend/internal/http/router"
	"github.com/abhishek00112233/LMS-Backend/internal/logger"
	"github.com/abhishek00112233/LMS-Backend/internal/mail"
	"github.com/abhishek00112233/LMS-Backend/internal/pkg/clock"
	"github.com/abhishek00112233/LMS-Backend/internal/pkg/hash"
	"github.com/abhishek00112233/LMS-Backend/internal/repository"
	"github.com/abhishek00112233/LMS-Backend/internal/service"
)

// stores groups what the server needs from the persistence layer.
type stores struct {
	accounts service.AccountRepository
	outbox   service.OutboxRepository
	health   httpHandlers.Pinger
	close    func()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("main: load config: %v", err)
	}
	logger.Init(cfg.LogLevel, cfg.Env)

	st, err := openStores(ctx, cfg)
	if err != nil {
		logger.Log.Fatalf("main: open store: %v", err)
	}
	defer st.close()

	mailer, err := newMailer(cfg)
	if err != nil {
		logger.Log.Fatalf("main: configure mailer: %v", err)
	}

	clk := clock.New()
	authService := service.NewAuthService(
		st.accounts,
		hash.NewBcrypt(cfg.BcryptCost),
		hash.NewHMAC(cfg.OTPSecret),
		mail.NewOTPTemplate(cfg.OTPTTL),
		service.WithClock(clk),
		service.WithOTPTTL(cfg.OTPTTL),
	)

	dispatcherCfg := service.DefaultNotificationConfig()
	dispatcherCfg.PollInterval = cfg.Outbox.PollInterval
	dispatcherCfg.BatchSize = cfg.Outbox.BatchSize
	dispatcherCfg.MaxAttempts = cfg.Outbox.MaxAttempts
	dispatcherCfg.Retries = cfg.Outbox.Retries
	notificationService := service.NewNotificationService(st.outbox, mailer, clk, dispatcherCfg)
	goroutine.SafeGoWithContext(ctx, notificationService.Run)

	engine := httpRouter.SetupRouter(
		cfg,
		httpHandlers.NewAuthHandler(authService),
		httpHandlers.NewHealthHandler(st.health),
	)

	server := &http.Server{
		Addr:    cfg.Addr(),
		Handler: engine,
	}

	goroutine.SafeGo(func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Log.WithError(err).Error("main: http server shutdown")
		}
	})

	logger.Log.WithFields(map[string]interface{}{
		"addr":  cfg.Addr(),
		"store": cfg.StoreDriver,
		"mail":  cfg.Mail.Driver,
	}).Info("main: http server started")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Log.Fatalf("main: http server: %v", err)
	}
	logger.Log.Info("main: http server stopped")
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.StoreDriver == "memory" {
		logger.Log.Warn("main: using the in-memory store, data is lost on restart")
		mem := repository.NewMemoryStore()
		return &stores{accounts: mem, outbox: mem, health: mem, close: func() {}}, nil
	}

	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		safeClose(dbConn)
		return nil, err
	}

	return &stores{
		accounts: repository.NewAccountRepository(dbConn),
		outbox:   repository.NewOutboxRepository(dbConn),
		health:   dbConn,
		close:    func() { safeClose(dbConn) },
	}, nil
}

func newMailer(cfg *config.Config) (mail.Mailer, error) {
	if cfg.Mail.Driver == "log" {
		return mail.NewLogMailer(logger.Log), nil
	}
	return mail.NewSMTP(mail.SMTPConfig{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		From:     cfg.Mail.From,
	})
}

func safeClose(conn *sqlx.DB) {
	if err := conn.Close(); err != nil {
		logger.Log.WithError(err).Error("main: close database")
	}
}
