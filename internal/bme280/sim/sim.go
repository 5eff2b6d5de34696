// Package sim emulates the BME280 register file behind a bme280.Bus so the
// driver can run without hardware.
package sim

import (
	"encoding/binary"
	"errors"
	"sync"

	"github.com/egregors/hkenv/internal/bme280"
)

var ErrClosed = errors.New("sim: bus closed")

// Datasheet sample trimming values, section 8.1 style, with typical humidity
// constants. With RawTemperature and RawPressure they give 25.08 °C and
// 1006.53 hPa.
var DefaultCalibration = bme280.Calibration{
	T1: 27504, T2: 26435, T3: -1000,
	P1: 36477, P2: -10685, P3: 3024, P4: 2855, P5: 140, P6: -7, P7: 15500, P8: -14600, P9: 6000,
	H1: 75, H2: 362, H3: 0, H4: 313, H5: 50, H6: 30,
}

const (
	RawTemperature int32 = 519888
	RawPressure    int32 = 415148
	RawHumidity    int32 = 30000
)

// Device is a simulated sensor. Reads past the end of the register file are
// short, as on the wire.
type Device struct {
	mu     sync.Mutex
	regs   [256]byte
	writes []Write
	limit  int
	err    error
	closed bool
}

// Write is a register write seen by the device.
type Write struct {
	Reg   byte
	Value byte
}

// New returns a BME280 with DefaultCalibration and the default raw sample
// loaded.
func New() *Device {
	d := &Device{limit: -1}
	d.regs[0xD0] = bme280.ChipID
	d.SetCalibration(DefaultCalibration)
	d.SetRaw(bme280.RawSample{
		Pressure:    RawPressure,
		Temperature: RawTemperature,
		Humidity:    RawHumidity,
	})

	return d
}

// SetCalibration encodes c into the NVM registers with the datasheet layout.
func (d *Device) SetCalibration(c bme280.Calibration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	words := []uint16{
		c.T1, uint16(c.T2), uint16(c.T3),
		c.P1, uint16(c.P2), uint16(c.P3), uint16(c.P4), uint16(c.P5),
		uint16(c.P6), uint16(c.P7), uint16(c.P8), uint16(c.P9),
	}
	for i, w := range words {
		binary.LittleEndian.PutUint16(d.regs[0x88+2*i:], w)
	}

	d.regs[0xA1] = c.H1
	binary.LittleEndian.PutUint16(d.regs[0xE1:], uint16(c.H2))
	d.regs[0xE3] = c.H3
	d.regs[0xE4] = byte(c.H4 >> 4)
	d.regs[0xE5] = byte(c.H4&0x0F) | byte(c.H5&0x0F)<<4
	d.regs[0xE6] = byte(c.H5 >> 4)
	d.regs[0xE7] = byte(c.H6)
}

// SetRaw loads the data registers 0xF7..0xFE.
func (d *Device) SetRaw(r bme280.RawSample) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.regs[0xF7] = byte(r.Pressure >> 12)
	d.regs[0xF8] = byte(r.Pressure >> 4)
	d.regs[0xF9] = byte(r.Pressure<<4) & 0xF0
	d.regs[0xFA] = byte(r.Temperature >> 12)
	d.regs[0xFB] = byte(r.Temperature >> 4)
	d.regs[0xFC] = byte(r.Temperature<<4) & 0xF0
	d.regs[0xFD] = byte(r.Humidity >> 8)
	d.regs[0xFE] = byte(r.Humidity)
}

// SetReg overrides a single register.
func (d *Device) SetReg(reg, value byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.regs[reg] = value
}

// LimitReads caps every following read to n bytes; n < 0 removes the cap.
func (d *Device) LimitReads(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.limit = n
}

// Fail makes every following bus call return err; nil restores the device.
func (d *Device) Fail(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.err = err
}

// Writes returns the register writes in order.
func (d *Device) Writes() []Write {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]Write(nil), d.writes...)
}

func (d *Device) ReadRegBytes(reg byte, n int) ([]byte, int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.check(); err != nil {
		return nil, 0, err
	}

	c := min(n, len(d.regs)-int(reg))
	if d.limit >= 0 {
		c = min(c, d.limit)
	}

	buf := make([]byte, n)
	copy(buf, d.regs[int(reg):int(reg)+c])

	return buf, c, nil
}

func (d *Device) WriteRegU8(reg, value byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.check(); err != nil {
		return err
	}

	d.regs[reg] = value
	d.writes = append(d.writes, Write{Reg: reg, Value: value})

	return nil
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.closed = true

	return nil
}

func (d *Device) check() error {
	if d.closed {
		return ErrClosed
	}

	return d.err
}
