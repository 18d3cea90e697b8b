package service

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/AdakHaddad/capdash/internal/cloud"
	"github.com/AdakHaddad/capdash/internal/domain"
	"github.com/AdakHaddad/capdash/internal/repository"
	"github.com/AdakHaddad/capdash/internal/telemetry"
)

// Water below this fraction of a full tank (averaged across both sensors)
// raises an alert.
const lowWaterLevel = 0.3

const alertCooldown = 15 * time.Minute

// archiveBatch raw payloads are buffered before each S3 upload; at the
// device's 5 s cadence that is ten minutes of traffic per object.
const archiveBatch = 120

type Services struct {
	Repos     *repository.Repos
	Telemetry *TelemetryService
}

func New(db *sqlx.DB, logger zerolog.Logger) *Services {
	repos := repository.New(db)
	return &Services{
		Repos: repos,
		Telemetry: &TelemetryService{
			store:  repos,
			logger: logger.With().Str("component", "ingest").Logger(),
		},
	}
}

// ReadingStore is the slice of the repository the ingest path needs.
type ReadingStore interface {
	InsertReading(*domain.TelemetryReading) error
}

// TelemetryService turns raw MQTT payloads into stored readings. Cloud
// alerting and archival stay nil unless enabled.
type TelemetryService struct {
	store  ReadingStore
	logger zerolog.Logger

	deviceID   int64
	deviceName string

	sns *cloud.SNSClient
	s3  *cloud.S3Client

	mu        sync.Mutex
	lastAlert time.Time
	pending   []byte
	buffered  int
}

// SetDevice fixes which device the ingested topic belongs to.
func (s *TelemetryService) SetDevice(id int64, name string) {
	s.deviceID = id
	s.deviceName = name
}

// EnableCloud attaches the SNS and S3 clients; either may be nil.
func (s *TelemetryService) EnableCloud(sns *cloud.SNSClient, s3 *cloud.S3Client) {
	s.sns = sns
	s.s3 = s3
}

// FromMQTT accepts either wire schema: the rich nested frame or the flat
// dashboard frame. Safe for concurrent message handlers.
func (s *TelemetryService) FromMQTT(topic string, payload []byte) error {
	row, waterFrac, err := s.decode(payload)
	if err != nil {
		return fmt.Errorf("ingest %s: %w", topic, err)
	}
	if err := s.store.InsertReading(row); err != nil {
		return fmt.Errorf("ingest %s: %w", topic, err)
	}

	s.maybeAlert(waterFrac)
	s.archive(payload)
	return nil
}

// decode returns the flattened row plus the water level as a fraction of a
// full tank, which is what the alert threshold is defined on.
func (s *TelemetryService) decode(payload []byte) (*domain.TelemetryReading, float64, error) {
	if snap, err := (telemetry.RichSchema{}).Decode(payload); err == nil {
		flat := telemetry.Flatten(snap)
		row := &domain.TelemetryReading{
			DeviceID:       s.deviceID,
			ReceivedAt:     time.Now().UTC(),
			Tick:           int64(snap.Tick),
			Mode:           string(snap.Mode),
			AirTemp:        snap.AirTemperature,
			AirHumidity:    snap.AirHumidity,
			Pressure:       snap.Pressure,
			SoilTemp:       float64(flat.SoilTemp),
			SoilMoisture:   flat.SoilHumidity,
			WaterLevel:     float64(flat.WaterLevel),
			PumpIrrigation: snap.Pump[0],
			PumpSuction:    snap.Pump[1],
		}
		return row, float64(flat.WaterLevel) / 100, nil
	}

	rec, err := (telemetry.FlatSchema{}).Decode(payload)
	if err != nil {
		return nil, 0, err
	}
	tick, _ := strconv.ParseInt(rec.Timestamp, 10, 64)
	row := &domain.TelemetryReading{
		DeviceID:     s.deviceID,
		ReceivedAt:   time.Now().UTC(),
		Tick:         tick,
		Mode:         string(telemetry.ModeAuto),
		AirTemp:      float64(rec.AirTemp),
		AirHumidity:  float64(rec.AirHumidity),
		Pressure:     rec.Pressure,
		SoilTemp:     float64(rec.SoilTemp),
		SoilMoisture: rec.SoilHumidity,
		WaterLevel:   float64(rec.WaterLevel),
	}
	return row, float64(rec.WaterLevel) / 100, nil
}

func (s *TelemetryService) maybeAlert(waterFrac float64) {
	if s.sns == nil || waterFrac >= lowWaterLevel {
		return
	}
	s.mu.Lock()
	due := time.Since(s.lastAlert) > alertCooldown
	if due {
		s.lastAlert = time.Now()
	}
	s.mu.Unlock()
	if !due {
		return
	}
	if err := s.sns.SendLowWaterAlert(s.deviceName, waterFrac*100); err != nil {
		s.logger.Error().Err(err).Msg("low water alert failed")
	} else {
		s.logger.Info().Float64("level_pct", waterFrac*100).Msg("low water alert sent")
	}
}

func (s *TelemetryService) archive(payload []byte) {
	if s.s3 == nil {
		return
	}
	s.mu.Lock()
	s.pending = append(s.pending, payload...)
	s.pending = append(s.pending, '\n')
	s.buffered++
	var batch []byte
	if s.buffered >= archiveBatch {
		batch = s.pending
		s.pending = nil
		s.buffered = 0
	}
	s.mu.Unlock()

	if batch == nil {
		return
	}
	key, err := s.s3.UploadArchive(s.deviceName, batch)
	if err != nil {
		s.logger.Error().Err(err).Msg("archive upload failed")
		return
	}
	s.logger.Info().Str("key", key).Msg("archived telemetry batch")
}
