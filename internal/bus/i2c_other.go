//go:build !linux

package bus

import "errors"

var errNoI2CDev = errors.New("i2c-dev transport is only available on linux")

func NewI2C(_ uint8, _ int) (Conn, error) {
	return nil, errNoI2CDev
}
