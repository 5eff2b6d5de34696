//go:build linux

package sensors

import (
	"fmt"
	"sync"

	"github.com/d2r2/go-bsbmp"
	"github.com/d2r2/go-i2c"

	"github.com/egregors/hkenv/internal/bme280"
	"github.com/egregors/hkenv/log"
)

// BSBMP is a climate sensor backed by github.com/d2r2/go-bsbmp. It is kept
// as a second opinion for the native driver on real hardware.
type BSBMP struct {
	mu     sync.Mutex
	conn   *i2c.I2C
	sensor *bsbmp.BMP
}

func NewBSBMP(addr uint8, bus int) (*BSBMP, error) {
	log.Info.Println("make go-bsbmp BME280 sensor")

	conn, err := i2c.NewI2C(addr, bus)
	if err != nil {
		return nil, fmt.Errorf("can't open i2c-%d at 0x%02X: %w", bus, addr, err)
	}

	sensor, err := bsbmp.NewBMP(bsbmp.BME280, conn)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	id, err := sensor.ReadSensorID()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if id != bme280.ChipID {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: chip id 0x%02X", bme280.ErrDeviceNotFound, id)
	}

	return &BSBMP{conn: conn, sensor: sensor}, nil
}

func (b *BSBMP) CurrentTemperature() (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, err := b.sensor.ReadTemperatureC(bsbmp.ACCURACY_STANDARD)
	if err != nil {
		return 0, err
	}

	return float64(t), nil
}

func (b *BSBMP) CurrentHumidity() (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, h, err := b.sensor.ReadHumidityRH(bsbmp.ACCURACY_STANDARD)
	if err != nil {
		return 0, err
	}

	return float64(h), nil
}

// CurrentPressure returns hPa, go-bsbmp reports Pa.
func (b *BSBMP) CurrentPressure() (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, err := b.sensor.ReadPressurePa(bsbmp.ACCURACY_STANDARD)
	if err != nil {
		return 0, err
	}

	return float64(p) / 100, nil
}

func (b *BSBMP) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.conn.Close()
}
