package service

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AdakHaddad/capdash/internal/domain"
	"github.com/AdakHaddad/capdash/internal/telemetry"
)

type fakeStore struct {
	rows []*domain.TelemetryReading
	err  error
}

func (s *fakeStore) InsertReading(rd *domain.TelemetryReading) error {
	s.rows = append(s.rows, rd)
	return s.err
}

func newTestService(store *fakeStore) *TelemetryService {
	svc := &TelemetryService{store: store, logger: zerolog.Nop()}
	svc.SetDevice(1, "d02")
	return svc
}

func TestFromMQTTRichPayload(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store)

	gen := telemetry.NewGenerator(telemetry.ModeAuto, 42)
	snap := gen.Generate(7)
	payload, err := telemetry.RichSchema{}.Encode(snap)
	require.NoError(t, err)

	require.NoError(t, svc.FromMQTT("d02/telemetry", payload))
	require.Len(t, store.rows, 1)

	row := store.rows[0]
	assert.EqualValues(t, 1, row.DeviceID)
	assert.EqualValues(t, 7, row.Tick)
	assert.Equal(t, "AUTO", row.Mode)
	assert.Equal(t, snap.AirTemperature, row.AirTemp)
	assert.Equal(t, snap.Pressure, row.Pressure)
	assert.Equal(t, snap.Pump[0], row.PumpIrrigation)
}

func TestFromMQTTFlatPayload(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store)

	payload := []byte(`{"pressure":1001,"soilTemp":24,"soilHumidity":82,` +
		`"waterLevel":61,"airTemp":27,"airHumidity":64,"timestamp":"4711"}`)

	require.NoError(t, svc.FromMQTT("devices/stm32-01/telemetry", payload))
	require.Len(t, store.rows, 1)

	row := store.rows[0]
	assert.EqualValues(t, 4711, row.Tick)
	assert.Equal(t, 1001, row.Pressure)
	assert.Equal(t, 82, row.SoilMoisture)
	assert.Equal(t, 61.0, row.WaterLevel)
}

func TestFromMQTTGarbageRejected(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store)

	err := svc.FromMQTT("d02/telemetry", []byte("POMPA"))
	assert.Error(t, err)
	assert.Empty(t, store.rows)
}
