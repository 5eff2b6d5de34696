package bus

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// Periph adapts a periph.io I²C device to bme280.Bus.
type Periph struct {
	bus i2c.BusCloser
	dev *i2c.Dev
}

func NewPeriph(name string, addr uint8) (*Periph, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("can't init periph host: %w", err)
	}

	b, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("can't open I²C bus %q: %w", name, err)
	}

	return newPeriph(b, addr), nil
}

func newPeriph(b i2c.BusCloser, addr uint8) *Periph {
	return &Periph{
		bus: b,
		dev: &i2c.Dev{Bus: b, Addr: uint16(addr)},
	}
}

// ReadRegBytes writes the register address and reads n bytes in one
// transaction. periph reports failures as errors, never as short counts.
func (p *Periph) ReadRegBytes(reg byte, n int) ([]byte, int, error) {
	buf := make([]byte, n)
	if err := p.dev.Tx([]byte{reg}, buf); err != nil {
		return nil, 0, err
	}

	return buf, n, nil
}

func (p *Periph) WriteRegU8(reg, value byte) error {
	return p.dev.Tx([]byte{reg, value}, nil)
}

func (p *Periph) Close() error {
	return p.bus.Close()
}
