package bme280

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// datasheet trimming example plus typical humidity constants
var testCalib = Calibration{
	T1: 27504, T2: 26435, T3: -1000,
	P1: 36477, P2: -10685, P3: 3024, P4: 2855, P5: 140, P6: -7, P7: 15500, P8: -14600, P9: 6000,
	H1: 75, H2: 362, H3: 0, H4: 313, H5: 50, H6: 30,
}

func TestCompensateTemperature(t *testing.T) {
	c := testCalib

	celsius, fine := c.CompensateTemperature(519888)

	assert.Equal(t, FineTemperature(128422), fine)
	assert.Equal(t, 25.08, celsius)
}

func TestCompensateTemperatureBelowZero(t *testing.T) {
	c := testCalib

	celsius, fine := c.CompensateTemperature(400000)

	// the final >>8 floors negative values
	assert.Equal(t, FineTemperature(-64736), fine)
	assert.Equal(t, -12.64, celsius)
}

func TestCompensatePressure(t *testing.T) {
	c := testCalib

	hPa := c.CompensatePressure(415148, 128422)

	// 25767233 Pa/256
	assert.Equal(t, 25767233.0/25600, hPa)
	assert.InDelta(t, 100653.27, hPa*100, 0.05)
}

func TestCompensatePressureDegenerate(t *testing.T) {
	c := testCalib
	c.P1 = 0

	assert.Zero(t, c.CompensatePressure(415148, 128422))
	assert.Zero(t, c.CompensatePressure(0, 0))
}

func TestCompensateHumidity(t *testing.T) {
	c := testCalib

	tests := []struct {
		raw  int32
		want float64
	}{
		{raw: 30000, want: 54.9970703125},
		{raw: 25000, want: 27.076171875},
		{raw: 0, want: 0},
		{raw: 65535, want: 100},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, c.CompensateHumidity(tt.raw, 128422), "raw %d", tt.raw)
	}
}

func TestCompensateHumidityRange(t *testing.T) {
	calibs := []Calibration{testCalib, {H1: 255, H2: 32767, H3: 255, H4: 2047, H5: -2048, H6: 127}, {H2: -32768, H4: -2048, H5: 2047, H6: -128}}
	fines := []FineTemperature{-500000, -76800, 0, 76800, 128422, 500000}

	for _, c := range calibs {
		for _, fine := range fines {
			for raw := int32(0); raw <= 0xFFFF; raw += 97 {
				h := c.CompensateHumidity(raw, fine)
				require.GreaterOrEqual(t, h, 0.0)
				require.LessOrEqual(t, h, 100.0)
			}
		}
	}
}

func TestCompensateIsPure(t *testing.T) {
	c := testCalib
	raw := RawSample{Pressure: 415148, Temperature: 519888, Humidity: 30000}

	m1, f1 := c.Compensate(raw)
	m2, f2 := c.Compensate(raw)

	assert.Equal(t, m1, m2)
	assert.Equal(t, f1, f2)
	assert.Equal(t, testCalib, c)
}

func TestCompensateOrder(t *testing.T) {
	c := testCalib
	raw := RawSample{Pressure: 415148, Temperature: 519888, Humidity: 30000}

	m, fine := c.Compensate(raw)

	assert.Equal(t, FineTemperature(128422), fine)
	assert.Equal(t, Measurement{
		Temperature: 25.08,
		Pressure:    25767233.0 / 25600,
		Humidity:    54.9970703125,
	}, m)

	// a zero t_fine gives a different, wrong, result
	assert.NotEqual(t, m.Pressure, c.CompensatePressure(raw.Pressure, 0))
	assert.NotEqual(t, m.Humidity, c.CompensateHumidity(raw.Humidity, 0))
}
