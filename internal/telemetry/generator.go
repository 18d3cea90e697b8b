package telemetry

import (
	"math"
	"math/rand"
)

// Environment model constants. Ticks are publish intervals, not seconds.
const (
	dayTicks         = 288 // one diurnal cycle
	irrigationWindow = 100 // soil moisture cycle length
	wateredTicks     = 20  // leading slice of the window that counts as "just watered"
	refillCycle      = 120 // water tank drain/refill cycle length
	tankFull         = 2.0 // meters

	pumpIrrigationP = 0.10
	pumpSuctionP    = 0.05
)

// Generator synthesizes temporally coherent readings for the d02 controller.
// Generate is a pure function of (seed, tick): each tick derives its own
// random stream, so the same seed always reproduces the same run and any
// tick can be generated in isolation.
type Generator struct {
	mode Mode
	seed int64
}

func NewGenerator(mode Mode, seed int64) *Generator {
	return &Generator{mode: mode, seed: seed}
}

// Generate never fails; any non-negative tick yields clamped, well-formed
// readings already quantized to their wire precision.
func (g *Generator) Generate(tick uint64) Snapshot {
	rng := rand.New(rand.NewSource(g.seed ^ int64(tick*0x9e3779b97f4a7c15)))

	day := float64(tick%dayTicks) / dayTicks
	airT := 26 + 1.5*math.Sin(2*math.Pi*day) + (rng.Float64() - 0.5)
	airT = round2(clamp(airT, 24, 28))

	// Humidity runs against temperature: hotter air reads drier.
	hum := 80 - (airT-25)*2 + (rng.Float64()*10 - 5)
	hum = round1(clamp(hum, 30, 90))

	pressure := 1000 + int(math.Round(3*math.Sin(2*math.Pi*day))) + rng.Intn(5) - 2

	s := Snapshot{
		Tick:           tick,
		Mode:           g.mode,
		AirTemperature: airT,
		Pressure:       pressure,
		AirHumidity:    hum,
	}

	// Probe 0 lost its sensor long ago; the sentinel must never be jittered.
	s.SoilTemperature[0] = ProbeDisconnected
	for i := 1; i < SoilProbes; i++ {
		s.SoilTemperature[i] = round2(clamp(airT-2+(rng.Float64()*2-1), 20, 30))
	}

	for i := 0; i < SoilSensors; i++ {
		s.SoilMoisture[i] = soilMoisture(tick, rng)
	}

	// Tank drains roughly linearly until the refill at the cycle boundary.
	frac := float64(tick%refillCycle) / refillCycle
	for i := 0; i < WaterSensors; i++ {
		level := tankFull*(1-frac) + (rng.Float64()*0.2 - 0.1)
		s.WaterLevel[i] = round1(math.Max(level, 0))
	}

	// Valves report closed; the board only opens them on explicit commands,
	// which this simulation does not receive.

	// Independent draw per pump per tick, no cross-tick memory.
	s.Pump[0] = rng.Float64() < pumpIrrigationP
	s.Pump[1] = rng.Float64() < pumpSuctionP

	return s
}

// soilMoisture follows the irrigation cycle: a high band right after
// watering, then a decay with jitter until the next window.
func soilMoisture(tick uint64, rng *rand.Rand) int {
	w := int(tick % irrigationWindow)
	if w < wateredTicks {
		return clampInt(80+rng.Intn(11), 0, 100)
	}
	return clampInt(80-w+rng.Intn(11)-5, 20, 100)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
