package domain

import "time"

type Device struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
	Mode string `db:"mode" json:"mode"`
}

// TelemetryReading is one ingested snapshot, flattened to per-bank values
// the dashboard queries want.
type TelemetryReading struct {
	ID             int64     `db:"id" json:"id"`
	DeviceID       int64     `db:"device_id" json:"device_id"`
	ReceivedAt     time.Time `db:"received_at" json:"received_at"`
	Tick           int64     `db:"tick" json:"tick"`
	Mode           string    `db:"mode" json:"mode"`
	AirTemp        float64   `db:"air_temp" json:"air_temp"`
	AirHumidity    float64   `db:"air_humidity" json:"air_humidity"`
	Pressure       int       `db:"pressure" json:"pressure"`
	SoilTemp       float64   `db:"soil_temp" json:"soil_temp"`
	SoilMoisture   int       `db:"soil_moisture" json:"soil_moisture"`
	WaterLevel     float64   `db:"water_level" json:"water_level"`
	PumpIrrigation bool      `db:"pump_irrigation" json:"pump_irrigation"`
	PumpSuction    bool      `db:"pump_suction" json:"pump_suction"`
}
