package bme280

// FineTemperature is t_fine, the fixed point intermediate produced by
// temperature compensation and consumed by pressure and humidity
// compensation. It is not a temperature. The zero value does not come from a
// real reading: pressure or humidity compensated with it is wrong.
type FineTemperature int32

// RawSample is one burst of uncompensated ADC values.
type RawSample struct {
	Pressure    int32 // 20 bit
	Temperature int32 // 20 bit
	Humidity    int32 // 16 bit
}

// Measurement is a compensated reading.
type Measurement struct {
	Temperature float64 // °C
	Pressure    float64 // hPa
	Humidity    float64 // %RH
}

// decodeRaw unpacks the 8 byte block at 0xF7: press msb/lsb/xlsb,
// temp msb/lsb/xlsb, hum msb/lsb.
func decodeRaw(b []byte) RawSample {
	return RawSample{
		Pressure:    int32(b[0])<<12 | int32(b[1])<<4 | int32(b[2])>>4,
		Temperature: int32(b[3])<<12 | int32(b[4])<<4 | int32(b[5])>>4,
		Humidity:    int32(b[6])<<8 | int32(b[7]),
	}
}

// Compensate converts a raw sample, temperature first so pressure and
// humidity use the t_fine of the same burst.
func (c *Calibration) Compensate(raw RawSample) (Measurement, FineTemperature) {
	t, fine := c.CompensateTemperature(raw.Temperature)

	return Measurement{
		Temperature: t,
		Pressure:    c.CompensatePressure(raw.Pressure, fine),
		Humidity:    c.CompensateHumidity(raw.Humidity, fine),
	}, fine
}

// CompensateTemperature returns the temperature in °C with 0.01 °C
// resolution and the t_fine carried into the other two formulas.
//
// Datasheet 4.2.3, BME280_compensate_T_int32.
func (c *Calibration) CompensateTemperature(raw int32) (float64, FineTemperature) {
	t1, t2, t3 := int32(c.T1), int32(c.T2), int32(c.T3)

	var1 := (((raw >> 3) - (t1 << 1)) * t2) >> 11
	var2 := (((((raw >> 4) - t1) * ((raw >> 4) - t1)) >> 12) * t3) >> 14
	fine := var1 + var2

	return float64((fine*5+128)>>8) / 100, FineTemperature(fine)
}

// CompensatePressure returns the pressure in hPa. The integer result is Pa
// in Q24.8, hence the division by 256*100.
//
// A zero divisor only happens with corrupted calibration; the datasheet
// returns 0 in that case and so does this.
//
// Datasheet 4.2.3, BME280_compensate_P_int64.
func (c *Calibration) CompensatePressure(raw int32, fine FineTemperature) float64 {
	var var1, var2, p int64

	var1 = int64(fine) - 128000
	var2 = var1 * var1 * int64(c.P6)
	var2 += (var1 * int64(c.P5)) << 17
	var2 += int64(c.P4) << 35
	var1 = ((var1 * var1 * int64(c.P3)) >> 8) + ((var1 * int64(c.P2)) << 12)
	var1 = (((int64(1) << 47) + var1) * int64(c.P1)) >> 33
	if var1 == 0 {
		lg.Debug("pressure: zero divisor, calibration is degenerate")
		return 0
	}

	p = 1048576 - int64(raw)
	p = (((p << 31) - var2) * 3125) / var1
	var1 = (int64(c.P9) * (p >> 13) * (p >> 13)) >> 25
	var2 = (int64(c.P8) * p) >> 19
	p = ((p + var1 + var2) >> 8) + (int64(c.P7) << 4)

	return float64(p) / 25600
}

// CompensateHumidity returns the relative humidity in %, always within
// [0, 100]. The integer result is %RH in Q22.10.
//
// Datasheet 4.2.3, bme280_compensate_H_int32. x is t_fine-76800 and must be
// the same value in all three places it appears in the first expression.
func (c *Calibration) CompensateHumidity(raw int32, fine FineTemperature) float64 {
	h1, h2, h3 := int32(c.H1), int32(c.H2), int32(c.H3)
	h4, h5, h6 := int32(c.H4), int32(c.H5), int32(c.H6)

	x := int32(fine) - 76800

	// Go shifts bind tighter than additions, unlike C: keep the parentheses.
	v := (((raw << 14) - (h4 << 20) - (h5 * x)) + 16384) >> 15
	scale := ((x * h6) >> 10) * (((x * h3) >> 11) + 32768)
	scale = (((scale >> 10) + 2097152) * h2) + 8192
	v *= scale >> 14
	v -= ((((v >> 15) * (v >> 15)) >> 7) * h1) >> 4

	switch {
	case v < 0:
		v = 0
	case v > 419430400:
		v = 419430400
	}

	return float64(v>>12) / 1024
}
