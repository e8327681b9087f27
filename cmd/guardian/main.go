package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"guardian/internal/authz"
	"guardian/internal/config"
	"guardian/internal/db"
	"guardian/internal/detector"
	"guardian/internal/media"
	"guardian/internal/observability/logging"
	"guardian/internal/observability/metrics"
	impl "guardian/internal/service/impl"
	"guardian/internal/store"
	"guardian/internal/tokencipher"
	transport "guardian/internal/transport/http"
)

func main() {
	config.LoadDotEnv()

	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "dev"
	}

	logger := logging.NewLogger(logging.Config{
		ServiceName: "guardian",
		Environment: env,
		Level:       os.Getenv("LOG_LEVEL"),
	})

	slog.SetDefault(logger)
	metrics.MustRegister("guardian")

	logger.Info("starting service")

	cfg := config.Load()

	gdb, err := db.OpenGorm(db.Config{DSN: cfg.DatabaseURL, LogSQL: cfg.LogSQL})
	if err != nil {
		logger.Error("gorm open", "error", err)
		os.Exit(1)
	}

	st := store.New(gdb)
	if cfg.AutoMigrate {
		if err := st.AutoMigrate(context.Background()); err != nil {
			logger.Error("auto migrate", "error", err)
			os.Exit(1)
		}
	}

	cipher, err := tokencipher.New([]byte(cfg.PairingSecret))
	if err != nil {
		logger.Error("pairing cipher", "error", err)
		os.Exit(1)
	}

	ms, err := media.New(cfg.MediaRoot)
	if err != nil {
		logger.Error("media store", "error", err)
		os.Exit(1)
	}

	var labels []string
	if cfg.DetectorLabels != "" {
		if labels, err = detector.LoadLabels(cfg.DetectorLabels); err != nil {
			logger.Error("detector labels", "path", cfg.DetectorLabels, "error", err)
			os.Exit(1)
		}
	}
	model := detector.NewModel(detector.NewRemoteBackend(cfg.DetectorURL, cfg.DetectorTimeout), labels)
	detOpts := detector.Options{
		Weights:       cfg.DetectorWeights,
		ConfThreshold: cfg.DetectorConf,
		IoUThreshold:  cfg.DetectorIoU,
		MaxDetections: cfg.DetectorMaxDet,
		Device:        cfg.DetectorDevice,
	}

	pw := impl.NewPasswordServiceArgon2id()
	ts := impl.NewTokenServiceHS256(impl.TokenConfig{
		Issuer:     cfg.Issuer,
		Audience:   cfg.Audience,
		AccessTTL:  cfg.AccessTTL,
		RefreshTTL: cfg.RefreshTTL,
		SigningKey: []byte(cfg.SigningKey),
	}, st)
	pairing := impl.NewPairingServiceImpl(st, cipher)
	inbox := impl.NewInboxServiceImpl(st, ms)

	router := transport.NewRouter(transport.Services{
		Accounts:  impl.NewAccountServiceImpl(st, pw, ts, pairing, ms),
		Tokens:    ts,
		Pairing:   pairing,
		Usage:     impl.NewUsageServiceImpl(st, ms),
		Screening: impl.NewScreeningServiceImpl(st, ms, model, inbox, detOpts),
		Inbox:     inbox,
	}, authz.NewHMACValidator([]byte(cfg.SigningKey), cfg.Issuer, cfg.Audience), transport.Options{
		TrustProxy:         cfg.TrustProxy,
		CORSOrigins:        cfg.CORSOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		MaxUploadBytes:     cfg.MaxUploadBytes,
		RequestTimeout:     cfg.DetectorTimeout + 30*time.Second,
		MediaRoot:          ms.Root(),
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", "error", err)
		}
	}()

	slog.Info("guardian listening",
		"addr", srv.Addr,
		"issuer", cfg.Issuer,
		"media_root", ms.Root(),
		"detector_url", cfg.DetectorURL,
		"labels", len(labels),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("stopped")
}
