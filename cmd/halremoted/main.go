package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/kay54068/halremote/internal/api/rest"
	"github.com/kay54068/halremote/internal/api/websocket"
	"github.com/kay54068/halremote/internal/config"
	"github.com/kay54068/halremote/internal/halremote"
	"github.com/kay54068/halremote/internal/pins"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger.Info("Config loaded successfully")

	// Load the pin table and build the container
	loader, err := pins.NewTableLoader(cfg.Pins.SearchPaths)
	if err != nil {
		logger.Fatal("Failed to create pin table loader", zap.Error(err))
	}

	table, err := loader.Load(cfg.Pins.Table)
	if err != nil {
		logger.Fatal("Failed to load pin table", zap.Error(err))
	}

	container, err := pins.Build(table)
	if err != nil {
		logger.Fatal("Failed to build pin container", zap.Error(err))
	}

	logger.Info("Pin table loaded",
		zap.String("table", cfg.Pins.Table),
		zap.Int("pins", len(container.Pins())))

	// Remote component
	component := halremote.NewRemoteComponent(
		halremote.Config{
			Name:            cfg.Component.Name,
			HalrcmdURI:      cfg.Component.HalrcmdURI,
			HalrcompURI:     cfg.Component.HalrcompURI,
			HeartbeatPeriod: cfg.Component.HeartbeatPeriod,
		},
		container,
		halremote.NewZmqTransport(logger),
		logger,
	)
	defer component.Close()

	// WebSocket hub with the live pin feed
	wsHub := websocket.NewHub(logger)
	go wsHub.Run()
	detach := wsHub.PublishComponent(component, container)
	defer detach()

	// REST API server
	restServer := rest.NewServer(cfg, component, container, logger, wsHub)
	if err := restServer.Start(); err != nil {
		logger.Fatal("Failed to start REST API", zap.Error(err))
	}

	// Connect to the remote HAL instance
	component.SetReady(true)

	logger.Info("halremoted started successfully")

	// Graceful shutdown on signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	logger.Info("Shutdown signal received")

	component.SetReady(false)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := restServer.Shutdown(ctx); err != nil {
		logger.Error("Shutdown failed", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("halremoted stopped successfully")
}
