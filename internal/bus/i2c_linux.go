//go:build linux

package bus

import (
	"fmt"

	"github.com/d2r2/go-i2c"
)

// NewI2C opens /dev/i2c-<bus> bound to addr.
//
// check if your device really has address 0x77 (it could be 0x76)
// use util: 'i2cdetect -y 1' to find out
func NewI2C(addr uint8, bus int) (Conn, error) {
	conn, err := i2c.NewI2C(addr, bus)
	if err != nil {
		return nil, fmt.Errorf("can't open i2c-%d at 0x%02X: %w", bus, addr, err)
	}

	return conn, nil
}
