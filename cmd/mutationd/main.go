// Package main runs the mutation layer as a standalone service: it exposes
// the co-signer callback route and Prometheus metrics over HTTP while host
// applications drive mutations through the facade.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/Verse-Network/mutation_layer/auth"
	"github.com/Verse-Network/mutation_layer/cache"
	"github.com/Verse-Network/mutation_layer/internal/config"
	"github.com/Verse-Network/mutation_layer/ledger"
	"github.com/Verse-Network/mutation_layer/mutation"
	"github.com/Verse-Network/mutation_layer/ops"
	"github.com/Verse-Network/mutation_layer/pkg/logger"
)

func main() {
	addr := flag.String("addr", ":8090", "HTTP listen address")
	configPath := flag.String("config", "config.yaml", "Path to config file")
	flag.Parse()

	if v := os.Getenv("MUTATIOND_ADDR"); v != "" {
		*addr = v
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Default("mutationd").WithError(err).Error("load configuration")
		os.Exit(1)
	}

	log := logger.New("mutationd", logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	client, err := ledger.NewClient(ledger.ClientConfig{
		RPCURL:    cfg.Ledger.RPCURL,
		NetworkID: cfg.Ledger.NetworkID,
		Timeout:   cfg.Ledger.Timeout,
	})
	if err != nil {
		log.WithError(err).Error("create ledger client")
		os.Exit(1)
	}

	executor := ledger.NewExecutor(ledger.ExecutorConfig{
		Node:               client,
		BroadcastPerSecond: cfg.Ledger.BroadcastPerSecond,
		BroadcastBurst:     cfg.Ledger.BroadcastBurst,
		ConfirmationWait:   cfg.Ledger.ConfirmationWait,
		PollInterval:       cfg.Ledger.PollInterval,
	})

	store, err := buildStore(cfg, log)
	if err != nil {
		log.WithError(err).Error("create cache store")
		os.Exit(1)
	}
	coherence := cache.NewAdapter(cache.AdapterConfig{
		Store:      store,
		DefaultTTL: cfg.Cache.DefaultTTL,
	})

	chain := auth.NewChainExecutor(executor, log, buildProviders(cfg)...)

	facade, err := mutation.NewFacade(mutation.FacadeConfig{
		Status:    client,
		Chain:     chain,
		Coherence: coherence,
		Logger:    log,
	})
	if err != nil {
		log.WithError(err).Error("create mutation facade")
		os.Exit(1)
	}

	router := mux.NewRouter()
	router.PathPrefix("/cosigner/").Handler(auth.NewCallbackHandler(facade, log).Router())
	router.Handle("/metrics", ledger.MetricsHandler()).Methods(http.MethodGet)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	server := &http.Server{
		Addr:         *addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.WithFields(logger.Fields{"addr": *addr}).Info("mutation layer listening")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.WithError(err).Error("server error")
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("server shutdown")
	}
}

// buildStore selects the cache backend from config.
func buildStore(cfg *config.Config, log *logger.Logger) (cache.Store, error) {
	if cfg.Cache.Backend == "redis" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return cache.NewRedisStore(ctx, cache.RedisConfig{
			Addr: cfg.Cache.RedisAddr,
			DB:   cfg.Cache.RedisDB,
		})
	}
	log.Debug("using in-memory cache store")
	return cache.NewMemoryStore(), nil
}

// buildProviders assembles the signing providers the configuration enables.
func buildProviders(cfg *config.Config) []auth.Provider {
	var providers []auth.Provider

	if secret := os.Getenv("LOCAL_MASTER_SECRET"); secret != "" {
		providers = append(providers, auth.NewLocalKeyProvider(auth.LocalKeyConfig{
			Account:      os.Getenv("LOCAL_ACCOUNT"),
			MasterSecret: []byte(secret),
			NetworkID:    cfg.Ledger.NetworkID,
			Authorities:  []ops.Authority{ops.AuthorityPosting},
		}))
	}

	if cfg.Bridge.URL != "" {
		providers = append(providers, auth.NewExtensionProvider(auth.ExtensionConfig{
			BridgeURL: cfg.Bridge.URL,
			NetworkID: cfg.Ledger.NetworkID,
			Timeout:   cfg.Bridge.Timeout,
		}))
	}

	if cfg.CoSigner.BaseURL != "" {
		providers = append(providers, auth.NewCoSignerProvider(auth.CoSignerConfig{
			BaseURL:     cfg.CoSigner.BaseURL,
			AppID:       cfg.CoSigner.AppID,
			AppSecret:   []byte(cfg.CoSigner.AppSecret),
			CallbackURL: cfg.CoSigner.CallbackURL,
			Timeout:     cfg.CoSigner.Timeout,
		}))
	}

	return providers
}
