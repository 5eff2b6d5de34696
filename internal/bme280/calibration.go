package bme280

import (
	"encoding/binary"
)

// Calibration holds the factory trimming parameters burned into the device
// NVM. It is read once by Init and never changes afterwards.
type Calibration struct {
	T1 uint16
	T2 int16
	T3 int16

	P1 uint16
	P2 int16
	P3 int16
	P4 int16
	P5 int16
	P6 int16
	P7 int16
	P8 int16
	P9 int16

	H1 uint8
	H2 int16
	H3 uint8
	H4 int16
	H5 int16
	H6 int8
}

// loadCalibration reads the three calibration bursts: 0x88..0x9F, 0xA1 and
// 0xE1..0xE7.
func (d *Dev) loadCalibration() (Calibration, error) {
	var c Calibration

	tp, err := d.readReg(regCalibTP, calibTPLen)
	if err != nil {
		return c, err
	}

	h1, err := d.readReg(regCalibH1, 1)
	if err != nil {
		return c, err
	}

	h, err := d.readReg(regCalibH2, calibHLen)
	if err != nil {
		return c, err
	}

	c.decodeTempPress(tp)
	c.decodeHumidity(h1[0], h)

	lg.Debugf("dig_T1..T3: %d %d %d", c.T1, c.T2, c.T3)
	lg.Debugf("dig_P1..P9: %d %d %d %d %d %d %d %d %d", c.P1, c.P2, c.P3, c.P4, c.P5, c.P6, c.P7, c.P8, c.P9)
	lg.Debugf("dig_H1..H6: %d %d %d %d %d %d", c.H1, c.H2, c.H3, c.H4, c.H5, c.H6)

	return c, nil
}

// decodeTempPress decodes the 24 byte block at 0x88: twelve little endian
// words, T1 and P1 unsigned, the rest two's complement.
func (c *Calibration) decodeTempPress(b []byte) {
	word := func(i int) uint16 { return binary.LittleEndian.Uint16(b[2*i:]) }

	c.T1 = word(0)
	c.T2 = int16(word(1))
	c.T3 = int16(word(2))
	c.P1 = word(3)
	c.P2 = int16(word(4))
	c.P3 = int16(word(5))
	c.P4 = int16(word(6))
	c.P5 = int16(word(7))
	c.P6 = int16(word(8))
	c.P7 = int16(word(9))
	c.P8 = int16(word(10))
	c.P9 = int16(word(11))
}

// decodeHumidity decodes dig_H1 (register 0xA1) and the 7 byte block read
// from 0xE1, so b[0] is 0xE1 and b[6] is 0xE7.
func (c *Calibration) decodeHumidity(h1 byte, b []byte) {
	c.H1 = h1
	c.H2 = humidityH2(b)
	c.H3 = humidityH3(b)
	c.H4 = humidityH4(b)
	c.H5 = humidityH5(b)
	c.H6 = humidityH6(b)
}

// humidityH2 is dig_H2: 0xE1 holds [7:0], 0xE2 holds [15:8].
func humidityH2(b []byte) int16 {
	return int16(binary.LittleEndian.Uint16(b[0:2]))
}

// humidityH3 is dig_H3: 0xE3 holds [7:0].
func humidityH3(b []byte) uint8 {
	return b[2]
}

// humidityH4 is dig_H4: 0xE4 holds [11:4], 0xE5[3:0] holds [3:0].
func humidityH4(b []byte) int16 {
	return int16(int8(b[3]))<<4 | int16(b[4]&0x0F)
}

// humidityH5 is dig_H5: 0xE6 holds [11:4], 0xE5[7:4] holds [3:0].
func humidityH5(b []byte) int16 {
	return int16(int8(b[5]))<<4 | int16(b[4]>>4)
}

// humidityH6 is dig_H6: 0xE7 holds [7:0].
func humidityH6(b []byte) int8 {
	return int8(b[6])
}
