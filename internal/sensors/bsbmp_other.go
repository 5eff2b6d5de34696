//go:build !linux

package sensors

import "errors"

var errNoBSBMP = errors.New("go-bsbmp backend is only available on linux")

type BSBMP struct{}

func NewBSBMP(_ uint8, _ int) (*BSBMP, error) {
	return nil, errNoBSBMP
}

func (b *BSBMP) CurrentTemperature() (float64, error) { return 0, errNoBSBMP }

func (b *BSBMP) CurrentHumidity() (float64, error) { return 0, errNoBSBMP }

func (b *BSBMP) CurrentPressure() (float64, error) { return 0, errNoBSBMP }

func (b *BSBMP) Close() error { return nil }
