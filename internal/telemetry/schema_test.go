package telemetry

import (
	"encoding/json"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaByName(t *testing.T) {
	rich, err := SchemaByName("rich")
	require.NoError(t, err)
	assert.Equal(t, "rich", rich.Name())

	flat, err := SchemaByName("flat")
	require.NoError(t, err)
	assert.Equal(t, "flat", flat.Name())

	_, err = SchemaByName("protobuf")
	assert.Error(t, err)
}

func TestRichKeyOrderAndFormatting(t *testing.T) {
	gen := NewGenerator(ModeAuto, 42)
	out, err := RichSchema{}.Encode(gen.Generate(0))
	require.NoError(t, err)

	s := string(out)
	assert.True(t, strings.HasPrefix(s, `{"ts":0,"mode":"AUTO","bme":{"t":`), s)

	// stable key order on the wire
	keys := []string{`"ts"`, `"mode"`, `"bme"`, `"ds18b20"`, `"soil"`, `"water"`, `"valve"`, `"pump"`}
	last := -1
	for _, k := range keys {
		idx := strings.Index(s, k)
		require.Greater(t, idx, last, "key %s out of order in %s", k, s)
		last = idx
	}

	// the sentinel keeps its two decimals exactly
	assert.Contains(t, s, `"ds18b20":[-127.00,`)
}

func TestRichCardinalities(t *testing.T) {
	gen := NewGenerator(ModeSchedule, 5)
	for _, tick := range []uint64{0, 1, 99, 100, 12345, 1000000} {
		out, err := RichSchema{}.Encode(gen.Generate(tick))
		require.NoError(t, err)

		var frame struct {
			DS18B20 []json.Number `json:"ds18b20"`
			Soil    []int         `json:"soil"`
			Water   []json.Number `json:"water"`
			Valve   []int         `json:"valve"`
			Pump    []int         `json:"pump"`
		}
		require.NoError(t, json.Unmarshal(out, &frame))
		assert.Len(t, frame.DS18B20, 3)
		assert.Len(t, frame.Soil, 3)
		assert.Len(t, frame.Water, 2)
		assert.Len(t, frame.Valve, 3)
		assert.Len(t, frame.Pump, 2)

		for _, v := range frame.Soil {
			assert.GreaterOrEqual(t, v, 0)
			assert.LessOrEqual(t, v, 100)
		}
		for _, n := range frame.Water {
			v, err := n.Float64()
			require.NoError(t, err)
			assert.GreaterOrEqual(t, v, 0.0)
		}
	}
}

func TestRichRoundTrip(t *testing.T) {
	gen := NewGenerator(ModeManual, 77)
	for _, tick := range []uint64{0, 1, 20, 555, 100000, 1000000} {
		snap := gen.Generate(tick)
		out, err := RichSchema{}.Encode(snap)
		require.NoError(t, err)

		got, err := RichSchema{}.Decode(out)
		require.NoError(t, err)
		assert.Equal(t, snap, got, "tick %d", tick)
	}
}

func TestRichDecodeRejectsWrongCardinality(t *testing.T) {
	_, err := RichSchema{}.Decode([]byte(
		`{"ts":0,"mode":"AUTO","bme":{"t":25.00,"p":1000,"h":60.0},` +
			`"ds18b20":[-127.00],"soil":[80,80,80],"water":[1.0,1.0],"valve":[0,0,0],"pump":[0,0]}`))
	assert.Error(t, err)
}

func TestFlatSchema(t *testing.T) {
	gen := NewGenerator(ModeAuto, 42)
	snap := gen.Generate(12345)

	out, err := FlatSchema{}.Encode(snap)
	require.NoError(t, err)

	rec, err := FlatSchema{}.Decode(out)
	require.NoError(t, err)

	assert.Equal(t, strconv.FormatUint(snap.Tick, 10), rec.Timestamp)
	assert.Equal(t, snap.Pressure, rec.Pressure)
	assert.Equal(t, int(snap.AirTemperature), rec.AirTemp)
	assert.GreaterOrEqual(t, rec.WaterLevel, 0)
	assert.LessOrEqual(t, rec.WaterLevel, 105) // jitter can push a full tank past nominal

	// the disconnected probe must not drag the average down
	assert.Greater(t, rec.SoilTemp, 0)
}
