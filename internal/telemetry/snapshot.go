package telemetry

// Mode is the operating mode the controller reports with every snapshot.
type Mode string

const (
	ModeAuto     Mode = "AUTO"
	ModeManual   Mode = "MANUAL"
	ModeSchedule Mode = "SCHEDULE"
)

// Sensor and actuator counts are fixed by the d02 board layout.
const (
	SoilProbes   = 3 // DS18B20 soil temperature probes
	SoilSensors  = 3 // capacitive soil moisture sensors
	WaterSensors = 2 // tank level sensors
	Valves       = 3
	Pumps        = 2
)

// ProbeDisconnected is what a DS18B20 reports when no sensor answers on the
// bus. It must reach the wire exactly as -127.00.
const ProbeDisconnected = -127.00

// TickMillis mirrors the controller's publish cadence; the rich schema's ts
// field is a millisecond counter derived from it.
const TickMillis = 5000

// Snapshot is one point-in-time bundle of sensor and actuator readings.
// It is created fresh per tick and discarded after serialization.
type Snapshot struct {
	Tick            uint64
	Mode            Mode
	AirTemperature  float64 // °C, quantized to 2 decimals
	Pressure        int     // hPa
	AirHumidity     float64 // %RH, quantized to 1 decimal
	SoilTemperature [SoilProbes]float64
	SoilMoisture    [SoilSensors]int // percent
	WaterLevel      [WaterSensors]float64
	Valve           [Valves]bool
	Pump            [Pumps]bool
}
