// Subscriber checks that telemetry reaches the broker's WebSocket listener,
// the transport the web dashboard uses. Payloads are printed as UTF-8 text
// verbatim, with no transformation.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/AdakHaddad/capdash/internal/config"
	"github.com/AdakHaddad/capdash/internal/mqttconn"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if err := config.Load(); err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	transport := config.Transport()
	if transport != "ws" && transport != "wss" {
		transport = "ws"
	}
	port := config.BrokerPort()
	if port == 1883 {
		port = 8080 // mosquitto's default WebSocket listener
	}

	conn := mqttconn.NewManager(mqttconn.Config{
		Host:      config.BrokerHost(),
		Port:      port,
		Transport: transport,
		WSPath:    config.WebSocketPath(),
		Username:  config.Username(),
		Password:  config.Password(),
		ClientID:  fmt.Sprintf("d02-sub-%d", time.Now().UnixNano()),
	}, log.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer conn.Disconnect()

	if err := conn.Connect(ctx); err != nil {
		log.Fatal().Err(err).Msg("websocket connect failed")
	}

	var received atomic.Uint64
	handler := func(_ mqtt.Client, msg mqtt.Message) {
		n := received.Add(1)
		log.Info().
			Uint64("n", n).
			Str("topic", msg.Topic()).
			Str("payload", string(msg.Payload())).
			Msg("message")
	}

	topic := config.TelemetryTopic()
	if err := conn.Subscribe(topic, config.QoS(), handler); err != nil {
		log.Fatal().Err(err).Msg("subscribe failed")
	}

	log.Info().Str("topic", topic).Msg("subscribed; Ctrl+C to stop")
	<-ctx.Done()
	log.Info().Uint64("received", received.Load()).Msg("subscriber stopped")
}
