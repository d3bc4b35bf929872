package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	api "github.com/Dajus/daal-sub000/internal/api/http"
	auth "github.com/Dajus/daal-sub000/internal/auth/middleware"
	"github.com/Dajus/daal-sub000/internal/config"
	"github.com/Dajus/daal-sub000/internal/db"
	"github.com/Dajus/daal-sub000/internal/events"
	"github.com/Dajus/daal-sub000/internal/locks"
	"github.com/Dajus/daal-sub000/internal/logging"
	"github.com/Dajus/daal-sub000/internal/storage"
	"github.com/Dajus/daal-sub000/internal/training"
)

func main() {
	// `gateway hash-password` prints a bcrypt hash for ADMIN_PASS_HASH
	if len(os.Args) > 1 && os.Args[1] == "hash-password" {
		if err := hashPassword(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("gateway stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- DB ---
	driver, err := db.ParseDriver(cfg.DBDriver)
	if err != nil {
		return err
	}
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	dbh, err := db.Open(openCtx, driver, cfg.DBDSN)
	cancel()
	if err != nil {
		return fmt.Errorf("db open: %w", err)
	}
	defer dbh.Close()

	// --- keyed locks: Redis when shared between instances ---
	var locker locks.Locker = locks.NewLocal()
	if cfg.RedisURL != "" {
		rl, err := locks.NewRedisFromURL(ctx, cfg.RedisURL, cfg.LockTTL)
		if err != nil {
			return err
		}
		defer rl.Close()
		locker = rl
		log.Info("using redis locks")
	}

	evs := events.NewRepo(dbh)
	svc := training.NewService(training.NewSQLStore(dbh), training.Options{
		Locker:         locker,
		Events:         evs,
		Logger:         log,
		TimeLimitGrace: cfg.TimeLimitGrace,
	})
	if cfg.AdminUser != "" && cfg.AdminPassHash != "" {
		if err := svc.EnsureSuperAdmin(ctx, cfg.AdminUser, cfg.AdminPassHash); err != nil {
			return fmt.Errorf("seed super admin: %w", err)
		}
	}

	bs, err := storage.NewFSStore(cfg.BlobBasePath)
	if err != nil {
		return fmt.Errorf("blob store: %w", err)
	}

	router := api.NewRouter(api.Deps{
		Service:     svc,
		Auth:        auth.NewAuthService(cfg.AuthSecret, cfg.StudentTokenTTL, cfg.AdminTokenTTL),
		Blobs:       bs,
		DB:          dbh,
		Events:      evs,
		Logger:      log,
		CORSOrigins: cfg.CORSOrigins(),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.HTTPAddr, "mode", cfg.Mode, "db", driver)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	log.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

func hashPassword() error {
	fmt.Fprint(os.Stderr, "password: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return err
	}
	pw := strings.TrimRight(line, "\r\n")
	if len(pw) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	h, err := training.HashPassword(pw)
	if err != nil {
		return err
	}
	fmt.Println(h)
	return nil
}
