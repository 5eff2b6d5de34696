package bme280

import (
	"fmt"
	"time"
)

type opts struct {
	temperature Oversampling
	pressure    Oversampling
	humidity    Oversampling
	mode        Mode
	filter      Filter
	standby     Standby
}

// defaults give ctrl_hum=0x01, ctrl_meas=0x27, config=0x00.
func defaultOpts() opts {
	return opts{
		temperature: Sampling1X,
		pressure:    Sampling1X,
		humidity:    Sampling1X,
		mode:        Normal,
		filter:      FilterOff,
		standby:     Standby0_5ms,
	}
}

func (o opts) ctrlHum() byte {
	return byte(o.humidity) & 0x07
}

func (o opts) ctrlMeas() byte {
	return (byte(o.temperature)&0x07)<<5 | (byte(o.pressure)&0x07)<<2 | byte(o.mode)&0x03
}

func (o opts) config() byte {
	return (byte(o.standby)&0x07)<<5 | (byte(o.filter)&0x07)<<2
}

type Option func(o *opts)

func WithOversampling(temperature, pressure, humidity Oversampling) Option {
	return func(o *opts) {
		o.temperature = temperature
		o.pressure = pressure
		o.humidity = humidity
	}
}

func WithMode(m Mode) Option {
	return func(o *opts) {
		o.mode = m
	}
}

func WithFilter(f Filter) Option {
	return func(o *opts) {
		o.filter = f
	}
}

func WithStandby(s Standby) Option {
	return func(o *opts) {
		o.standby = s
	}
}

// ParseOversampling maps a sample count (0 means skipped) to its register value.
func ParseOversampling(n int) (Oversampling, error) {
	switch n {
	case 0:
		return Skipped, nil
	case 1:
		return Sampling1X, nil
	case 2:
		return Sampling2X, nil
	case 4:
		return Sampling4X, nil
	case 8:
		return Sampling8X, nil
	case 16:
		return Sampling16X, nil
	default:
		return Skipped, fmt.Errorf("unsupported oversampling x%d", n)
	}
}

// ParseFilter maps an IIR coefficient (0 means off) to its register value.
func ParseFilter(n int) (Filter, error) {
	switch n {
	case 0:
		return FilterOff, nil
	case 2:
		return Filter2, nil
	case 4:
		return Filter4, nil
	case 8:
		return Filter8, nil
	case 16:
		return Filter16, nil
	default:
		return FilterOff, fmt.Errorf("unsupported filter coefficient %d", n)
	}
}

var standbyDurations = map[time.Duration]Standby{
	500 * time.Microsecond:   Standby0_5ms,
	62500 * time.Microsecond: Standby62_5ms,
	125 * time.Millisecond:   Standby125ms,
	250 * time.Millisecond:   Standby250ms,
	500 * time.Millisecond:   Standby500ms,
	time.Second:              Standby1000ms,
	10 * time.Millisecond:    Standby10ms,
	20 * time.Millisecond:    Standby20ms,
}

// ParseStandby maps a t_standby duration from the datasheet table to its
// register value.
func ParseStandby(d time.Duration) (Standby, error) {
	s, ok := standbyDurations[d]
	if !ok {
		return Standby0_5ms, fmt.Errorf("unsupported standby duration %v", d)
	}

	return s, nil
}
