package repository

import (
	"github.com/jmoiron/sqlx"

	"github.com/AdakHaddad/capdash/internal/domain"
)

type Repos struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Repos { return &Repos{db: db} }

func (r *Repos) ListDevices() ([]domain.Device, error) {
	var out []domain.Device
	err := r.db.Select(&out, `SELECT id, name, mode FROM devices ORDER BY id`)
	return out, err
}

func (r *Repos) InsertReading(rd *domain.TelemetryReading) error {
	_, err := r.db.Exec(`INSERT INTO telemetry_readings
		(device_id, received_at, tick, mode, air_temp, air_humidity, pressure,
		 soil_temp, soil_moisture, water_level, pump_irrigation, pump_suction)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		rd.DeviceID, rd.ReceivedAt, rd.Tick, rd.Mode, rd.AirTemp, rd.AirHumidity,
		rd.Pressure, rd.SoilTemp, rd.SoilMoisture, rd.WaterLevel,
		rd.PumpIrrigation, rd.PumpSuction)
	return err
}

func (r *Repos) LatestReading(deviceID int64) (*domain.TelemetryReading, error) {
	var out domain.TelemetryReading
	err := r.db.Get(&out, `SELECT * FROM telemetry_readings
		WHERE device_id = $1 ORDER BY received_at DESC LIMIT 1`, deviceID)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Repos) RecentReadings(deviceID int64, hours int) ([]domain.TelemetryReading, error) {
	var out []domain.TelemetryReading
	err := r.db.Select(&out, `SELECT * FROM telemetry_readings
		WHERE device_id = $1 AND received_at > now() - ($2 || ' hours')::interval
		ORDER BY received_at DESC`, deviceID, hours)
	return out, err
}
