package sensors

import (
	"errors"
	"sync"

	"github.com/egregors/hkenv/internal/bme280"
	"github.com/egregors/hkenv/internal/bus"
	"github.com/egregors/hkenv/log"
)

// BME280 is a climate sensor backed by the native driver. The driver carries
// t_fine between reads, so every call is serialized here.
type BME280 struct {
	mu     sync.Mutex
	conn   bus.Conn
	dev    *bme280.Dev
	reinit bool
}

func NewBME280(conn bus.Conn, opts ...bme280.Option) (*BME280, error) {
	log.Info.Println("make BME280 sensor")

	dev := bme280.New(conn, opts...)
	if err := dev.Init(); err != nil {
		return nil, err
	}

	c := dev.Calibration()
	log.Debg.Printf("calibration: %+v", c)

	return &BME280{conn: conn, dev: dev}, nil
}

func (b *BME280) CurrentTemperature() (float64, error) {
	m, err := b.Current()
	if err != nil {
		return 0, err
	}

	return m.Temperature, nil
}

func (b *BME280) CurrentHumidity() (float64, error) {
	m, err := b.Current()
	if err != nil {
		return 0, err
	}

	return m.Humidity, nil
}

func (b *BME280) CurrentPressure() (float64, error) {
	m, err := b.Current()
	if err != nil {
		return 0, err
	}

	return m.Pressure, nil
}

// Current reads all values from one burst. After a bus failure the device
// is initialized again on the next call, since it may have been power
// cycled and lost its control registers.
func (b *BME280) Current() (bme280.Measurement, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.reinit {
		log.Warn.Println("re-init BME280 after bus failure")
		if err := b.dev.Init(); err != nil {
			return bme280.Measurement{}, err
		}
		b.reinit = false
	}

	m, err := b.dev.Sense()
	if err != nil {
		var terr *bme280.TransportError
		if errors.As(err, &terr) {
			b.reinit = true
		}

		return bme280.Measurement{}, err
	}

	return m, nil
}

// Calibration returns the constants read from the device.
func (b *BME280) Calibration() bme280.Calibration {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.dev.Calibration()
}

func (b *BME280) Close() error {
	return b.conn.Close()
}
