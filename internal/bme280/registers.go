package bme280

// Device addresses. SDO pulled low selects 0x76, high selects 0x77.
const (
	AddrPrimary   uint8 = 0x76
	AddrSecondary uint8 = 0x77
)

// ChipID is the content of regChipID on every BME280.
const ChipID byte = 0x60

// Register map, see datasheet section 5.3 "Memory map".
const (
	regCalibTP = 0x88 // dig_T1..dig_P9, 24 bytes
	regCalibH1 = 0xA1 // dig_H1
	regChipID  = 0xD0
	regCalibH2 = 0xE1 // dig_H2..dig_H6, 7 bytes
	regCtrlHum = 0xF2
	regStatus  = 0xF3
	regCtrlMes = 0xF4
	regConfig  = 0xF5
	regData    = 0xF7 // press_msb..hum_lsb, 8 bytes
)

const (
	calibTPLen = 24
	calibHLen  = 7
	dataLen    = 8
)

// Oversampling is the osrs_x field value of the control registers.
type Oversampling byte

const (
	Skipped Oversampling = iota
	Sampling1X
	Sampling2X
	Sampling4X
	Sampling8X
	Sampling16X
)

// Mode is the mode[1:0] field of ctrl_meas.
type Mode byte

const (
	Sleep  Mode = 0x00
	Forced Mode = 0x01
	Normal Mode = 0x03
)

// Filter is the IIR filter coefficient, filter[2:0] of config.
type Filter byte

const (
	FilterOff Filter = iota
	Filter2
	Filter4
	Filter8
	Filter16
)

// Standby is the inactive duration between measurements in normal mode,
// t_sb[2:0] of config.
type Standby byte

const (
	Standby0_5ms Standby = iota
	Standby62_5ms
	Standby125ms
	Standby250ms
	Standby500ms
	Standby1000ms
	Standby10ms
	Standby20ms
)
