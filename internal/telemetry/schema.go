package telemetry

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Schema converts snapshots into one of the device's two wire formats.
// Which one is in use is a configuration concern; both share the same
// generator model.
type Schema interface {
	Name() string
	Encode(Snapshot) ([]byte, error)
}

// SchemaByName maps the TELEMETRY_SCHEMA config value to a strategy.
func SchemaByName(name string) (Schema, error) {
	switch name {
	case "rich":
		return RichSchema{}, nil
	case "flat":
		return FlatSchema{}, nil
	default:
		return nil, fmt.Errorf("unknown telemetry schema %q", name)
	}
}

// f2 and f1 pin the decimal places a reading is written with, so the
// sentinel goes out as -127.00 and tank levels as e.g. 1.3.
type f2 float64

func (f f2) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(float64(f), 'f', 2, 64)), nil
}

func (f *f2) UnmarshalJSON(b []byte) error {
	v, err := strconv.ParseFloat(string(b), 64)
	*f = f2(v)
	return err
}

type f1 float64

func (f f1) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(float64(f), 'f', 1, 64)), nil
}

func (f *f1) UnmarshalJSON(b []byte) error {
	v, err := strconv.ParseFloat(string(b), 64)
	*f = f1(v)
	return err
}

// richPayload is the STM32's native JSON frame. Field order here fixes the
// key order on the wire.
type richPayload struct {
	TS      int64  `json:"ts"`
	Mode    string `json:"mode"`
	BME     bmeEnv `json:"bme"`
	DS18B20 []f2   `json:"ds18b20"`
	Soil    []int  `json:"soil"`
	Water   []f1   `json:"water"`
	Valve   []int  `json:"valve"`
	Pump    []int  `json:"pump"`
}

type bmeEnv struct {
	T f2  `json:"t"`
	P int `json:"p"`
	H f1  `json:"h"`
}

// RichSchema is the nested frame the backend consumes on d02/telemetry.
type RichSchema struct{}

func (RichSchema) Name() string { return "rich" }

func (RichSchema) Encode(s Snapshot) ([]byte, error) {
	p := richPayload{
		TS:   int64(s.Tick) * TickMillis,
		Mode: string(s.Mode),
		BME: bmeEnv{
			T: f2(s.AirTemperature),
			P: s.Pressure,
			H: f1(s.AirHumidity),
		},
		DS18B20: make([]f2, SoilProbes),
		Soil:    append([]int(nil), s.SoilMoisture[:]...),
		Water:   make([]f1, WaterSensors),
		Valve:   boolsToInts(s.Valve[:]),
		Pump:    boolsToInts(s.Pump[:]),
	}
	for i, v := range s.SoilTemperature {
		p.DS18B20[i] = f2(v)
	}
	for i, v := range s.WaterLevel {
		p.Water[i] = f1(v)
	}
	return json.Marshal(p)
}

// Decode is the inverse of Encode; a snapshot survives the wire unchanged
// because the generator already quantizes to wire precision.
func (RichSchema) Decode(data []byte) (Snapshot, error) {
	var p richPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return Snapshot{}, fmt.Errorf("decode rich telemetry: %w", err)
	}
	if len(p.DS18B20) != SoilProbes || len(p.Soil) != SoilSensors ||
		len(p.Water) != WaterSensors || len(p.Valve) != Valves || len(p.Pump) != Pumps {
		return Snapshot{}, fmt.Errorf("rich telemetry frame has wrong cardinality")
	}
	s := Snapshot{
		Tick:           uint64(p.TS) / TickMillis,
		Mode:           Mode(p.Mode),
		AirTemperature: float64(p.BME.T),
		Pressure:       p.BME.P,
		AirHumidity:    float64(p.BME.H),
	}
	for i, v := range p.DS18B20 {
		s.SoilTemperature[i] = float64(v)
	}
	copy(s.SoilMoisture[:], p.Soil)
	for i, v := range p.Water {
		s.WaterLevel[i] = float64(v)
	}
	for i, v := range p.Valve {
		s.Valve[i] = v != 0
	}
	for i, v := range p.Pump {
		s.Pump[i] = v != 0
	}
	return s, nil
}

// FlatRecord is the simplified frame used by the dashboard integration: one
// integer per quantity and the raw tick counter as a string.
type FlatRecord struct {
	Pressure     int    `json:"pressure"`
	SoilTemp     int    `json:"soilTemp"`
	SoilHumidity int    `json:"soilHumidity"`
	WaterLevel   int    `json:"waterLevel"`
	AirTemp      int    `json:"airTemp"`
	AirHumidity  int    `json:"airHumidity"`
	Timestamp    string `json:"timestamp"`
}

// FlatSchema flattens a snapshot by averaging each sensor bank; disconnected
// probes are excluded from the soil temperature average.
type FlatSchema struct{}

func (FlatSchema) Name() string { return "flat" }

func (FlatSchema) Encode(s Snapshot) ([]byte, error) {
	return json.Marshal(Flatten(s))
}

func (FlatSchema) Decode(data []byte) (FlatRecord, error) {
	var r FlatRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return FlatRecord{}, fmt.Errorf("decode flat telemetry: %w", err)
	}
	return r, nil
}

func Flatten(s Snapshot) FlatRecord {
	soilT, n := 0.0, 0
	for _, v := range s.SoilTemperature {
		if v != ProbeDisconnected {
			soilT += v
			n++
		}
	}
	if n > 0 {
		soilT /= float64(n)
	}
	soilH := 0
	for _, v := range s.SoilMoisture {
		soilH += v
	}
	level := 0.0
	for _, v := range s.WaterLevel {
		level += v
	}
	return FlatRecord{
		Pressure:     s.Pressure,
		SoilTemp:     int(soilT),
		SoilHumidity: soilH / SoilSensors,
		WaterLevel:   int(level / WaterSensors / tankFull * 100),
		AirTemp:      int(s.AirTemperature),
		AirHumidity:  int(s.AirHumidity),
		Timestamp:    strconv.FormatUint(s.Tick, 10),
	}
}

func boolsToInts(bs []bool) []int {
	out := make([]int, len(bs))
	for i, b := range bs {
		if b {
			out[i] = 1
		}
	}
	return out
}
