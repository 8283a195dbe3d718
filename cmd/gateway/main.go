package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	api "github.com/mind-engage/mindengage-academy/internal/api/http"
	"github.com/mind-engage/mindengage-academy/internal/auth"
	"github.com/mind-engage/mindengage-academy/internal/config"
	"github.com/mind-engage/mindengage-academy/internal/course"
	"github.com/mind-engage/mindengage-academy/internal/db"
	"github.com/mind-engage/mindengage-academy/internal/exam"
	"github.com/mind-engage/mindengage-academy/internal/logger"
	"github.com/mind-engage/mindengage-academy/internal/metrics"
	"github.com/mind-engage/mindengage-academy/internal/rbac"
	"github.com/mind-engage/mindengage-academy/internal/store"
	syncx "github.com/mind-engage/mindengage-academy/internal/sync"
	"github.com/mind-engage/mindengage-academy/internal/tracing"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		panic(err)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFile)
	os.Exit(exitCode(log, run(cfg, log)))
}

// exitCode flushes the log before the process exits, since os.Exit skips
// deferred calls.
func exitCode(log *zap.Logger, err error) int {
	code := 0
	if err != nil {
		log.Error("gateway stopped", zap.Error(err))
		code = 1
	}
	_ = log.Sync()
	return code
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Init()
	if cfg.TracingEnabled {
		shutdown, err := tracing.Init("mindengage-academy", cfg.TracingEndpoint)
		if err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(sctx)
		}()
	}

	// --- DB ---
	driver, err := db.ParseDriver(cfg.DBDriver)
	if err != nil {
		return err
	}
	octx, cancel := context.WithTimeout(ctx, 10*time.Second)
	dbh, err := db.Open(octx, driver, cfg.DBDSN)
	cancel()
	if err != nil {
		return err
	}
	defer dbh.Close()

	sqlStore := store.NewSQLStore(dbh, driver)
	guard := store.NewGuarded(sqlStore, log.Named("policy"))
	events := syncx.NewEventRepo(dbh, string(cfg.Mode))

	// --- Exam sessions ---
	sessions := exam.NewManager(guard, exam.Options{Logger: log.Named("exam"), Events: events}, cfg.SessionIdleTTL)
	defer sessions.Close()

	// --- Auth ---
	tokens := auth.NewAuthService(cfg.AuthHMACSecret)
	var login *auth.Service
	if cfg.EnableLocalAuth {
		login = auth.NewService(tokens, guard, auth.NewLimiter(cfg.LoginRatePerMin, nil), log.Named("auth"))
	}

	sweeper, err := startSweeper(cfg.SessionSweepSpec, sessions, login, log.Named("sweeper"))
	if err != nil {
		return err
	}
	defer sweeper.Stop()

	router := api.NewRouter(api.Deps{
		Log:    log.Named("http"),
		Tokens: tokens,
		Login:  login,
		Roles: func(ctx context.Context, id string) (rbac.Role, error) {
			a, err := sqlStore.GetAccount(ctx, id)
			return a.Role, err
		},
		ClaimFallback: cfg.Mode == config.ModeOffline,
		Courses:       course.NewService(guard),
		Authoring:     exam.NewAuthoring(guard),
		Sessions:      sessions,
		Records:       guard,
		Accounts:      guard,
		Events:        events,
		CORSOrigins:   cfg.CORSOrigins(),
		Ready:         dbh.PingContext,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("mode", string(cfg.Mode)),
			zap.String("db", string(driver)))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}
