package bme280

import (
	"errors"
	"fmt"
)

var (
	ErrDeviceNotFound = errors.New("bme280: device not found")
	ErrNotInitialized = errors.New("bme280: device is not initialized")
)

// TransportError is returned when the bus fails or returns fewer bytes than
// requested. A partial calibration read would corrupt every measurement, so
// it is never retried.
type TransportError struct {
	Reg  byte
	Want int
	Got  int
	Err  error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("bme280: can't access register 0x%02X: %s", e.Reg, e.Err.Error())
	}

	return fmt.Sprintf("bme280: short read at register 0x%02X: got %d of %d bytes", e.Reg, e.Got, e.Want)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
