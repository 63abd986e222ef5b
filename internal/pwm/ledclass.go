package pwm

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	log "github.com/sirupsen/logrus"
)

// ledClass drives an LED through /sys/class/leds/<name>/brightness. The
// kernel driver owns the switching frequency, so SetFrequencyHz only
// validates its argument.
type ledClass struct {
	path          string
	maxBrightness uint64
}

func openLEDClass(cfg Config, pin int) (output, error) {
	maxB, err := readInt(filepath.Join(cfg.LEDPath, "max_brightness"))
	if err != nil {
		return nil, fmt.Errorf("pwm: led %s: %w", cfg.LEDPath, err)
	}
	if maxB <= 0 {
		return nil, fmt.Errorf("pwm: led %s: invalid max_brightness %d", cfg.LEDPath, maxB)
	}
	l := &ledClass{path: cfg.LEDPath, maxBrightness: uint64(maxB)}

	// Detach any kernel trigger (heartbeat, mmc0, ...) so brightness sticks.
	trigger := filepath.Join(cfg.LEDPath, "trigger")
	if _, err := os.Stat(trigger); err == nil {
		if err := writeSysfs(trigger, "none"); err != nil {
			return nil, fmt.Errorf("pwm: led %s: clear trigger: %w", cfg.LEDPath, err)
		}
	}
	if err := l.write(0); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"pin": pin, "led": cfg.LEDPath, "max_brightness": maxB}).Debug("led class output claimed")
	return l, nil
}

func (l *ledClass) write(v uint64) error {
	if err := writeSysfs(filepath.Join(l.path, "brightness"), strconv.FormatUint(v, 10)); err != nil {
		return fmt.Errorf("pwm: led %s: %w", l.path, err)
	}
	return nil
}

func (l *ledClass) SetFrequencyHz(hz int) error {
	if hz <= 0 {
		return fmt.Errorf("pwm: invalid frequency %d", hz)
	}
	return nil
}

func (l *ledClass) SetDutyPercent(p float64) error {
	return l.write(dutyToUnits(p, l.maxBrightness))
}

func (l *ledClass) Disable() error { return l.write(0) }

func (l *ledClass) Close() error { return l.write(0) }
