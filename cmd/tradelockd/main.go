package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tradelock/config"
	"tradelock/core/state"
	"tradelock/native/common"
	"tradelock/native/escrow"
	"tradelock/native/swap"
	"tradelock/observability"
	"tradelock/observability/logging"
	"tradelock/rpc"
	"tradelock/storage"
)

func main() {
	configPath := flag.String("config", "./config.toml", "path to the config file")
	env := flag.String("env", "", "deployment environment label")
	flag.Parse()

	logger := logging.Setup("tradelockd", *env)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		logger.Error("failed to open state database", "dir", cfg.DataDir, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	manager := state.NewManager(db)
	pauses := common.NewStaticPauses(cfg.PausedModules)
	emitter := observability.NewMeteredEmitter(nil)

	custodianEngine := swap.NewEngine()
	custodianEngine.SetState(manager)
	custodianEngine.SetEmitter(emitter)
	custodianEngine.SetPauses(pauses)

	listingEngine := swap.NewListingEngine()
	listingEngine.SetState(manager)
	listingEngine.SetEmitter(emitter)
	listingEngine.SetPauses(pauses)

	escrowEngine := escrow.NewEngine()
	escrowEngine.SetState(manager)
	escrowEngine.SetEmitter(emitter)
	escrowEngine.SetPauses(pauses)

	rpcServer := rpc.NewServer(custodianEngine, listingEngine, escrowEngine, logger)

	httpServer := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           rpcServer,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var metricsServer *http.Server
	if cfg.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:              cfg.MetricsAddress,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("metrics listening", "addr", cfg.MetricsAddress)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	go func() {
		logger.Info("rpc listening", "addr", cfg.RPCAddress, "network", cfg.NetworkName)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("rpc server stopped", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("rpc shutdown", "error", err)
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			logger.Error("metrics shutdown", "error", err)
		}
	}
}
