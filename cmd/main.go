package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mstgnz/idpay/handler"
	"github.com/mstgnz/idpay/infra/config"
	"github.com/mstgnz/idpay/infra/logger"
	"github.com/mstgnz/idpay/infra/middle"
	"github.com/mstgnz/idpay/infra/opensearch"
	"github.com/mstgnz/idpay/infra/session"
	"github.com/mstgnz/idpay/infra/storage"
	"github.com/mstgnz/idpay/infra/validate"
	"github.com/mstgnz/idpay/provider"
	"github.com/mstgnz/idpay/router"
	v1 "github.com/mstgnz/idpay/router/v1"

	// Gateways register themselves with the provider registry
	_ "github.com/mstgnz/idpay/provider/idpay"
)

func init() {
	// Load Env
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}
	// init conf
	_ = config.App()
	validate.CustomValidate()
}

func main() {
	cfg := config.GetAppConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Config Error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// OpenSearch is optional; the service runs with console logging only
	var (
		osClient *opensearch.Client
		osLogger *opensearch.Logger
	)
	if cfg.EnableLogging {
		client, err := opensearch.NewClient(cfg)
		if err != nil {
			log.Printf("Failed to initialize OpenSearch client: %v", err)
			log.Println("Continuing without OpenSearch logging...")
		} else {
			osClient = client
			osLogger = opensearch.NewLogger(client)
		}
	}

	if osLogger != nil {
		logger.InitGlobalLogger(osLogger)
	} else {
		logger.InitGlobalLogger(nil)
	}

	store, err := storage.Open(cfg)
	if err != nil {
		logger.Fatal("Failed to open storage", err, logger.LogContext{
			Fields: map[string]any{"driver": cfg.DBDriver},
		})
	}
	defer store.Close()

	sessions, err := newSessionBackend(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize session backend", err, logger.LogContext{
			Fields: map[string]any{"driver": cfg.SessionDriver},
		})
	}

	var mirrors []provider.LogMirror
	if osLogger != nil {
		mirrors = append(mirrors, paymentLogMirror(osLogger))
	}

	host := &provider.Host{
		Purchases: store,
		Profiles:  store,
		Logs:      store,
		Finalizer: storage.NewFinalizer(store),
		Links:     provider.StaticLinks{BaseURL: cfg.BaseURL, SiteURL: cfg.PublicSiteURL},
	}

	services := v1.Services{
		Purchases: store,
		Profiles:  store,
		Logs:      store,
		Registry:  provider.DefaultRegistry,
		Host:      host,
		Sessions:  sessions,
		Processor: provider.NewCallbackProcessor(store, mirrors...),
		Validate:  config.App().Validator,
	}

	var osPinger handler.Pinger
	if osClient != nil {
		osPinger = osClient
		services.Search = osLogger
	}
	health := handler.NewHealthHandler(store, sessions, osPinger, provider.DefaultRegistry)

	rateLimiter := middle.NewRateLimiter(cfg.RateLimitPerMinute)
	rateLimiter.StartCleanup(ctx)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router.New(services, rateLimiter, health),
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 60 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", err)
		}
	}()

	logger.Info("API is running", logger.LogContext{
		Fields: map[string]any{
			"port":       cfg.Port,
			"providers":  provider.DefaultRegistry.GetProviderNames(),
			"db_driver":  store.Driver(),
			"sessions":   cfg.SessionDriver,
			"opensearch": osLogger != nil,
		},
	})

	// Block until a signal is received
	<-ctx.Done()

	logger.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", err)
	}
}

// newSessionBackend returns the backend that keeps redirect leases between checkout and callback
func newSessionBackend(ctx context.Context, cfg *config.AppConfig) (session.Backend, error) {
	if cfg.SessionDriver == "redis" {
		backend := session.NewRedisBackend(session.NewRedisClient(cfg), "")
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := backend.Ping(pingCtx); err != nil {
			return nil, fmt.Errorf("redis unreachable at %s: %w", cfg.RedisAddr, err)
		}
		return backend, nil
	}

	backend := session.NewMemoryBackend(10000)
	backend.StartCleanup(ctx, time.Minute)
	return backend, nil
}

// paymentLogMirror ships every stored payment log to OpenSearch
func paymentLogMirror(osLogger *opensearch.Logger) provider.LogMirror {
	return provider.LogMirrorFunc(func(ctx context.Context, entry provider.PaymentLog) error {
		return osLogger.LogPaymentEvent(ctx, opensearch.PaymentLog{
			Timestamp:         entry.CreatedAt,
			Provider:          entry.ProviderID,
			TransactionID:     entry.TransactionID,
			GatewayID:         entry.GatewayID,
			RequestKey:        entry.RequestKey,
			PurchaseRequestID: entry.PurchaseRequestID,
			LogType:           string(entry.LogType),
			LogMessage:        entry.LogMessage,
			LogDetails:        entry.LogDetails,
		})
	})
}
