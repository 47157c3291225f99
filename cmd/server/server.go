package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"hati/internal/config"
	"hati/internal/engine"
	"hati/internal/ledger"
	hatiNet "hati/internal/net"
)

func main() {
	configPath := flag.String("config", "", "Path to a TOML config file (optional)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to load config")
	}
	seeds, err := cfg.Seeds()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid seed balances")
	}

	// Setup the TCP server and the matching engine.
	exch := engine.New(ledger.New(cfg.BaseAsset, cfg.QuoteAsset, seeds))
	srv := hatiNet.New(cfg.Address, cfg.Port, cfg.Workers, exch)
	exch.SetReporter(srv)

	go srv.Run(ctx)
	// Block on running the server.
	<-ctx.Done()
}
