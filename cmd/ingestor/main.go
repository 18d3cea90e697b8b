package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/AdakHaddad/capdash/internal/cloud"
	"github.com/AdakHaddad/capdash/internal/config"
	"github.com/AdakHaddad/capdash/internal/database"
	"github.com/AdakHaddad/capdash/internal/mqttconn"
	"github.com/AdakHaddad/capdash/internal/service"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if err := config.Load(); err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	db, err := database.Connect()
	if err != nil {
		log.Fatal().Err(err).Msg("db connect failed")
	}
	defer db.Close()

	svcs := service.New(db, log.Logger)
	svcs.Telemetry.SetDevice(1, "d02")

	if config.UseCloudServices() {
		var snsClient *cloud.SNSClient
		if arn := config.SNSTopicArn(); arn != "" {
			if snsClient, err = cloud.NewSNSClient(config.AWSRegion(), arn); err != nil {
				log.Fatal().Err(err).Msg("sns client failed")
			}
		}
		s3Client, err := cloud.NewS3Client(config.AWSRegion(), config.S3Bucket())
		if err != nil {
			log.Fatal().Err(err).Msg("s3 client failed")
		}
		svcs.Telemetry.EnableCloud(snsClient, s3Client)
		log.Info().Msg("cloud alerting and archival enabled")
	}

	conn := mqttconn.NewManager(mqttconn.Config{
		Host:      config.BrokerHost(),
		Port:      config.BrokerPort(),
		Transport: config.Transport(),
		WSPath:    config.WebSocketPath(),
		Username:  config.Username(),
		Password:  config.Password(),
		ClientID:  fmt.Sprintf("d02-ingest-%d", time.Now().UnixNano()),
	}, log.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := conn.Connect(ctx); err != nil {
		conn.Disconnect()
		log.Fatal().Err(err).Msg("mqtt connect failed")
	}
	defer conn.Disconnect()

	handler := func(_ mqtt.Client, msg mqtt.Message) {
		if err := svcs.Telemetry.FromMQTT(msg.Topic(), msg.Payload()); err != nil {
			log.Error().Err(err).Msg("ingest failed")
		}
	}

	topic := config.TelemetryTopic()
	if err := conn.Subscribe(topic, config.QoS(), handler); err != nil {
		log.Fatal().Err(err).Msg("subscribe failed")
	}

	log.Info().Str("topic", topic).Msg("ingestor running; Ctrl+C to stop")
	<-ctx.Done()
	log.Info().Msg("ingestor stopped")
}
