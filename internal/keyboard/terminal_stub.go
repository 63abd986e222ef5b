//go:build !linux

package keyboard

import (
	"fmt"

	"ledimmer/internal/brightness"
)

type Terminal struct{}

func Open(path string) (*Terminal, error) {
	return nil, fmt.Errorf("keyboard: raw terminal input unsupported on this platform")
}

func (t *Terminal) Poll() ([]brightness.Key, error) {
	return nil, fmt.Errorf("keyboard: unsupported")
}

func (t *Terminal) Close() error { return nil }
