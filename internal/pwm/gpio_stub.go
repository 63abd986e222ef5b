//go:build !linux

package pwm

import "fmt"

func openGPIO(cfg Config, pin int) (output, error) {
	return nil, fmt.Errorf("pwm: gpio unsupported on this platform")
}
