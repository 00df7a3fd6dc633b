package main

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lacchain/trustlist/pkg/chain"
	"github.com/lacchain/trustlist/pkg/config"
	"github.com/lacchain/trustlist/pkg/didsync"
	"github.com/lacchain/trustlist/pkg/extsource"
	"github.com/lacchain/trustlist/pkg/obslog"
	"github.com/lacchain/trustlist/pkg/pdsync"
	"github.com/lacchain/trustlist/pkg/registry"
	"github.com/lacchain/trustlist/pkg/scheduler"
	"github.com/lacchain/trustlist/pkg/server"
	"github.com/lacchain/trustlist/pkg/verify"
)

func main() {
	logger := obslog.New("trustlistd")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid config: %v", err)
	}

	dbClient, err := registry.NewClient(cfg.DatabaseURL,
		registry.WithLogger(obslog.New("registry")),
		registry.WithPool(cfg.DatabaseMaxOpenConns, cfg.DatabaseMaxIdleConns, cfg.DatabaseIdleTime, cfg.DatabaseLifetime),
	)
	if err != nil {
		logger.Fatalf("connect to database: %v", err)
	}
	defer dbClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := dbClient.MigrateUp(ctx); err != nil {
		logger.Fatalf("apply migrations: %v", err)
	}

	repos := registry.NewRepositories(dbClient)

	chainClients, err := buildChainClients(cfg)
	if err != nil {
		logger.Fatalf("build chain clients: %v", err)
	}
	defer func() {
		for _, c := range chainClients {
			c.Close()
		}
	}()

	registries, err := buildSchedulerRegistries(cfg, chainClients, repos, logger)
	if err != nil {
		logger.Fatalf("wire trusted registries: %v", err)
	}

	sched := scheduler.New(registries, cfg.SweepStartupDelay, cfg.SweepPeriod, cfg.SweepRetryPeriod, obslog.New("scheduler"))
	go sched.Run(ctx)

	verifier := verify.New(repos.PublicKeys, obslog.New("verify"))
	httpServer := server.New(repos, verifier, cfg, obslog.New("server"))

	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.Handler()}
	go func() {
		logger.Printf("metrics listening on %s", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("metrics server error: %v", err)
		}
	}()

	apiServer := &http.Server{Addr: ":" + cfg.ListenPort, Handler: httpServer}
	go func() {
		logger.Printf("api listening on :%s", cfg.ListenPort)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("api server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Printf("shutting down")
	cancel()
	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())
	defer shutdownCancel()
	_ = apiServer.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)
}

// buildChainClients constructs one chain.Client per distinct chain id
// referenced by RPC_CONNECTION_<chainId>, keyed by that chain id string.
func buildChainClients(cfg *config.Config) (map[string]*chain.Client, error) {
	clients := make(map[string]*chain.Client, len(cfg.RPCConnections))
	for chainIDStr, url := range cfg.RPCConnections {
		chainID, ok := new(big.Int).SetString(chainIDStr, 10)
		if !ok {
			return nil, fmt.Errorf("invalid chain id %q", chainIDStr)
		}
		c, err := chain.NewClient(url, chainID)
		if err != nil {
			return nil, fmt.Errorf("connect to chain %s at %s: %w", chainIDStr, url, err)
		}
		clients[chainIDStr] = c
	}
	return clients, nil
}

// buildSchedulerRegistries assembles one scheduler.Registry per configured
// Trusted Registry, wiring its Public Directory and DID registry sync
// workers to the right chain clients and, when configured, an external
// HTTP directory worker.
func buildSchedulerRegistries(cfg *config.Config, chainClients map[string]*chain.Client, repos *registry.Repositories, logger *log.Logger) ([]scheduler.Registry, error) {
	var out []scheduler.Registry

	for _, tr := range cfg.TrustedRegistries {
		pdChain, ok := chainClients[tr.PDChainID]
		if !ok {
			return nil, fmt.Errorf("registry %d: no chain client for pdChainId %q", tr.Index, tr.PDChainID)
		}
		cotChain, ok := chainClients[tr.CoTChainID]
		if !ok {
			return nil, fmt.Errorf("registry %d: no chain client for cotChainId %q", tr.Index, tr.CoTChainID)
		}

		pdWorker := pdsync.New(pdChain, tr.PDAddress, tr.PDChainID, repos, obslog.New(fmt.Sprintf("pdsync[%d]", tr.Index)))
		didWorker := didsync.New(cotChain, tr.CoTAddress, repos, obslog.New(fmt.Sprintf("didsync[%d]", tr.Index)))

		reg := scheduler.Registry{
			Index:   tr.Index,
			PdSync:  pdWorker,
			DidSync: didWorker,
			Dids:    repos.Dids,
		}

		for _, es := range cfg.ExternalSources {
			if es.Index != tr.Index {
				continue
			}
			reg.ExtSource = extsource.New(es.URL, repos, obslog.New(fmt.Sprintf("extsource[%d]", tr.Index)))
		}

		out = append(out, reg)
	}

	return out, nil
}
