// Package bus opens the I²C transport the BME280 driver talks through.
package bus

import (
	"fmt"

	"github.com/egregors/hkenv/internal/bme280"
	"github.com/egregors/hkenv/internal/bme280/sim"
)

const (
	TransportI2C    = "i2c"
	TransportPeriph = "periph"
	TransportSim    = "sim"
)

// Conn is a device-bound bus that must be closed after use.
type Conn interface {
	bme280.Bus
	Close() error
}

type Opts struct {
	Transport string
	Bus       int    // /dev/i2c-N for the i2c transport
	BusName   string // periph registry name, "" picks the first bus
	Addr      uint8
}

// Open returns a connection to the device at o.Addr.
func Open(o Opts) (Conn, error) {
	switch o.Transport {
	case TransportI2C, "":
		return NewI2C(o.Addr, o.Bus)
	case TransportPeriph:
		return NewPeriph(o.BusName, o.Addr)
	case TransportSim:
		return sim.New(), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", o.Transport)
	}
}
