package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/uhyunpark/hookorder/params"
	"github.com/uhyunpark/hookorder/pkg/api"
	"github.com/uhyunpark/hookorder/pkg/storage"
	"github.com/uhyunpark/hookorder/pkg/util"
)

func main() {
	configPath := flag.String("config", "", "YAML config file")
	envPath := flag.String("env", "", ".env file (default: ./.env)")
	flag.Parse()

	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv(*envPath)
	if *configPath != "" {
		var err error
		if cfg, err = params.LoadFile(*configPath, *envPath); err != nil {
			log.Fatalf("config: %v", err)
		}
	}
	if err := cfg.ValidateServer(); err != nil {
		log.Fatalf("config: %v", err)
	}

	logFile := cfg.Log.File
	if logFile == "" {
		logFile = "data/orderbook.log"
	}
	logger, err := util.NewLoggerWithFile(logFile, cfg.Log.Level)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", logFile)

	store, err := storage.NewPebbleStore(cfg.Server.DataDir)
	if err != nil {
		sugar.Fatalw("store_open_failed", "dir", cfg.Server.DataDir, "err", err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := api.NewServer(store, api.Config{
		ChainID:        cfg.Network.ChainID,
		MinValidity:    cfg.Server.MinValidity,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, logger, util.RealClock{})

	sugar.Infow("orderbook_starting",
		"chain_id", cfg.Network.ChainID,
		"network", params.NetworkName(cfg.Network.ChainID),
		"data_dir", cfg.Server.DataDir)

	if err := server.Start(ctx, cfg.Server.Addr); err != nil {
		sugar.Errorw("api_server_failed", "err", err)
	}
	sugar.Info("orderbook_stopped")
}
