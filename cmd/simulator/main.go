package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/AdakHaddad/capdash/internal/config"
	"github.com/AdakHaddad/capdash/internal/mqttconn"
	"github.com/AdakHaddad/capdash/internal/publisher"
	"github.com/AdakHaddad/capdash/internal/telemetry"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if err := config.Load(); err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	seed := config.SimSeed()
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	gen := telemetry.NewGenerator(telemetry.Mode(config.DeviceMode()), seed)

	schema, err := telemetry.SchemaByName(config.TelemetrySchema())
	if err != nil {
		log.Fatal().Err(err).Msg("bad telemetry schema")
	}

	conn := mqttconn.NewManager(mqttconn.Config{
		Host:      config.BrokerHost(),
		Port:      config.BrokerPort(),
		Transport: config.Transport(),
		WSPath:    config.WebSocketPath(),
		Username:  config.Username(),
		Password:  config.Password(),
		ClientID:  fmt.Sprintf("d02-sim-%d", time.Now().UnixNano()),
	}, log.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := conn.Connect(ctx); err != nil {
		conn.Disconnect()
		log.Fatal().Err(err).Msg("initial connect failed")
	}

	loop := publisher.New(publisher.Config{
		Topic:    config.TelemetryTopic(),
		QoS:      config.QoS(),
		Interval: config.PublishInterval(),
	}, gen, schema, conn, log.Logger)

	stats, err := loop.Run(ctx)
	if err != nil {
		log.Error().Err(err).
			Uint64("sent", stats.Sent).Uint64("failed", stats.Failed).
			Msg("simulator stopped")
		os.Exit(1)
	}
	log.Info().
		Uint64("sent", stats.Sent).Uint64("failed", stats.Failed).
		Msg("simulator stopped")
}
