package main

import (
	"flag"
	"log"

	"github.com/kay54068/halremote/internal/config"
	"github.com/kay54068/halremote/internal/halremote"
	"github.com/kay54068/halremote/internal/pins"
	"github.com/kay54068/halremote/internal/tui"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	loader, err := pins.NewTableLoader(cfg.Pins.SearchPaths)
	if err != nil {
		log.Fatalf("Failed to create pin table loader: %v", err)
	}

	table, err := loader.Load(cfg.Pins.Table)
	if err != nil {
		log.Fatalf("Failed to load pin table: %v", err)
	}

	container, err := pins.Build(table)
	if err != nil {
		log.Fatalf("Failed to build pin container: %v", err)
	}

	app := tui.NewApp(cfg, container)
	logger := app.Logger()
	defer logger.Sync()

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

	app.SetComponent(component)

	if err := app.Run(); err != nil {
		log.Fatalf("UI failed: %v", err)
	}
}
