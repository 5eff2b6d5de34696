// Package bme280 drives a Bosch BME280 temperature, pressure and humidity
// sensor over I²C and converts its raw ADC codes with the fixed point
// compensation formulas of the datasheet.
//
// Datasheet:
// https://www.bosch-sensortec.com/media/boschsensortec/downloads/datasheets/bst-bme280-ds002.pdf
package bme280

import (
	"fmt"

	"github.com/d2r2/go-logger"
)

var lg = logger.NewPackageLogger("bme280", logger.InfoLevel)

// Bus is an I²C connection already bound to the device address.
// *i2c.I2C from github.com/d2r2/go-i2c satisfies it.
type Bus interface {
	ReadRegBytes(reg byte, n int) ([]byte, int, error)
	WriteRegU8(reg byte, value byte) error
}

// Dev is a BME280 handle. It is not safe for concurrent use: the carried
// t_fine is shared by every read, callers must serialize access.
type Dev struct {
	bus   Bus
	opts  opts
	calib Calibration
	fine  FineTemperature
	ready bool
}

func New(bus Bus, options ...Option) *Dev {
	d := &Dev{
		bus:  bus,
		opts: defaultOpts(),
	}

	for _, opt := range options {
		opt(&d.opts)
	}

	return d
}

// Init checks the chip id, loads the calibration and writes the control
// registers. Calibration is read again on every call.
func (d *Dev) Init() error {
	d.ready = false

	id, err := d.readReg(regChipID, 1)
	if err != nil {
		return err
	}
	if id[0] != ChipID {
		return fmt.Errorf("%w: chip id 0x%02X, want 0x%02X", ErrDeviceNotFound, id[0], ChipID)
	}

	calib, err := d.loadCalibration()
	if err != nil {
		return err
	}
	if calib.P1 == 0 {
		lg.Warning("dig_P1 is zero, pressure will read 0")
	}

	// ctrl_hum only takes effect after a write to ctrl_meas, and config
	// writes may be ignored in normal mode, so ctrl_meas goes last.
	if err = d.writeReg(regCtrlHum, d.opts.ctrlHum()); err != nil {
		return err
	}
	if err = d.writeReg(regConfig, d.opts.config()); err != nil {
		return err
	}
	if err = d.writeReg(regCtrlMes, d.opts.ctrlMeas()); err != nil {
		return err
	}

	d.calib = calib
	d.fine = 0
	d.ready = true

	return nil
}

// ReadTemperature returns the temperature in °C.
func (d *Dev) ReadTemperature() (float64, error) {
	raw, err := d.ReadRaw()
	if err != nil {
		return 0, err
	}

	t, fine := d.calib.CompensateTemperature(raw.Temperature)
	d.fine = fine

	return t, nil
}

// ReadPressure returns the pressure in hPa. The temperature of the same
// burst is compensated first to refresh t_fine.
func (d *Dev) ReadPressure() (float64, error) {
	raw, err := d.ReadRaw()
	if err != nil {
		return 0, err
	}

	_, d.fine = d.calib.CompensateTemperature(raw.Temperature)

	return d.calib.CompensatePressure(raw.Pressure, d.fine), nil
}

// ReadHumidity returns the relative humidity in %. The temperature of the
// same burst is compensated first to refresh t_fine.
func (d *Dev) ReadHumidity() (float64, error) {
	raw, err := d.ReadRaw()
	if err != nil {
		return 0, err
	}

	_, d.fine = d.calib.CompensateTemperature(raw.Temperature)

	return d.calib.CompensateHumidity(raw.Humidity, d.fine), nil
}

// Sense returns all three values from a single burst.
func (d *Dev) Sense() (Measurement, error) {
	raw, err := d.ReadRaw()
	if err != nil {
		return Measurement{}, err
	}

	var m Measurement
	m, d.fine = d.calib.Compensate(raw)

	return m, nil
}

// ReadRaw reads the 8 data registers in one burst so all values belong to
// the same conversion.
func (d *Dev) ReadRaw() (RawSample, error) {
	if !d.ready {
		return RawSample{}, ErrNotInitialized
	}

	b, err := d.readReg(regData, dataLen)
	if err != nil {
		return RawSample{}, err
	}

	raw := decodeRaw(b)
	lg.Debugf("raw: p=%d t=%d h=%d", raw.Pressure, raw.Temperature, raw.Humidity)

	return raw, nil
}

// Calibration returns the constants loaded by the last successful Init.
func (d *Dev) Calibration() Calibration {
	return d.calib
}

// FineTemperature returns the t_fine of the last compensated reading.
func (d *Dev) FineTemperature() FineTemperature {
	return d.fine
}

// Status reports the measuring and im_update bits of the status register.
func (d *Dev) Status() (measuring, updating bool, err error) {
	b, err := d.readReg(regStatus, 1)
	if err != nil {
		return false, false, err
	}

	return b[0]&0x08 != 0, b[0]&0x01 != 0, nil
}

func (d *Dev) readReg(reg byte, n int) ([]byte, error) {
	b, got, err := d.bus.ReadRegBytes(reg, n)
	if err != nil {
		return nil, &TransportError{Reg: reg, Want: n, Got: got, Err: err}
	}
	if got < n || len(b) < n {
		return nil, &TransportError{Reg: reg, Want: n, Got: got}
	}

	return b, nil
}

func (d *Dev) writeReg(reg, value byte) error {
	if err := d.bus.WriteRegU8(reg, value); err != nil {
		return &TransportError{Reg: reg, Want: 1, Err: err}
	}

	return nil
}
