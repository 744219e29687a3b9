package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"kakeibo/internal/amqp"
	"kakeibo/internal/auth"
	"kakeibo/internal/backend"
	"kakeibo/internal/cache"
	"kakeibo/internal/categories"
	"kakeibo/internal/cli"
	"kakeibo/internal/editor"
	apphttp "kakeibo/internal/http"
	"kakeibo/internal/ledger"
	"kakeibo/internal/log"
	"kakeibo/internal/session"
	"kakeibo/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	be := cli.OpenBackend(ctx, logger, cfg)
	defer func() {
		if be.Cleanup != nil {
			if err := be.Cleanup(); err != nil {
				logger.Error("Backend cleanup failed", "error", err)
			}
		}
	}()

	provider, err := auth.New(be.Store, auth.Config{
		Secret:      []byte(cfg.AuthJWTSecret),
		TTL:         cfg.AuthSessionTTL,
		SessionFile: cfg.AuthSessionFile,
		BcryptCost:  cfg.AuthBcryptCost,
	}, auth.WithLogger(logger.WithComponent(log.ComponentAuth)))
	if err != nil {
		logger.Error("Failed to initialize session provider", "error", err)
		os.Exit(1)
	}

	repoOpts := []ledger.Option{ledger.WithLogger(logger.WithComponent(log.ComponentLedger))}
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			// Change fan-out is optional; the ledger works without it.
			logger.Warn("AMQP unavailable, ledger changes will not be published", "error", err)
		} else {
			defer client.Close()
			var notifier store.ChangeNotifier = client
			repoOpts = append(repoOpts, ledger.WithNotifier(notifier))
			logger.Info("Publishing ledger changes", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}
	repo := ledger.NewRepository(be.Store, provider, repoOpts...)

	loader := session.NewLoader(provider, repo,
		session.WithProfiles(be.Store),
		session.WithLogger(logger.WithComponent(log.ComponentSession)),
		session.WithLoadTimeout(time.Minute),
	)
	loader.OnChange(func(st session.State) {
		logger.Info("Session state changed", "state", st.String())
	})

	cats := categories.NewManager()
	ed := editor.New(repo, cats, cfg.DefaultCurrency)
	loader.OnChange(func(st session.State) {
		if st == session.SignedOut {
			ed.Close()
		}
	})

	cacheManager := cache.NewManager(5*time.Minute, logger.WithComponent(log.ComponentCache))
	cacheManager.Register(provider.Tokens())

	pinger, _ := be.Store.(backend.Pinger)
	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Auth:       provider,
		Sessions:   loader,
		Ledger:     repo,
		Editor:     ed,
		Categories: cats,
		Pinger:     pinger,
		Logger:     logger.WithComponent(log.ComponentHTTP),
		Currency:   cfg.DefaultCurrency,
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting kakeibo server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return ignoreCanceled(loader.Run(gctx))
	})
	g.Go(func() error {
		return ignoreCanceled(cacheManager.Run(gctx))
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", "error", err)
	}
	loader.Wait()
	logger.Info("Server stopped gracefully")
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
