//go:build linux

package pwm

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/warthog618/go-gpiocdev"
)

const gpioConsumer = "ledimmer"

// openGPIO requests BCM GPIO pin as an output (initially low) through the
// Linux GPIO character device and drives it with software PWM.
func openGPIO(cfg Config, pin int) (output, error) {
	// On Pi, line names are "GPIO4", "GPIO18", etc.
	lineName := fmt.Sprintf("GPIO%d", pin)

	var chipCandidates []string
	if cfg.GPIOChip != "" {
		chipCandidates = []string{cfg.GPIOChip}
	} else {
		var dev []string
		entries, _ := os.ReadDir("/dev")
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), "gpiochip") {
				dev = append(dev, filepath.Join("/dev", e.Name()))
			}
		}
		chipCandidates = gpioChipCandidates(boardModel(), dev)
	}

	var lastErr error
	for _, chipPath := range chipCandidates {
		chip, err := gpiocdev.NewChip(chipPath, gpiocdev.WithConsumer(gpioConsumer))
		if err != nil {
			lastErr = err
			continue
		}
		offset, err := chip.FindLine(lineName)
		if err != nil {
			_ = chip.Close()
			lastErr = err
			continue
		}
		line, err := chip.RequestLine(offset, gpiocdev.AsOutput(0))
		if err != nil {
			_ = chip.Close()
			lastErr = err
			continue
		}
		log.WithFields(log.Fields{"chip": chipPath, "line": lineName, "offset": offset}).Debug("gpio line requested")
		return newSoftPWM(&gpiodLine{chip: chip, line: line}), nil
	}
	if lastErr != nil {
		return nil, fmt.Errorf("pwm: gpio line %q not found (or busy): %w", lineName, lastErr)
	}
	return nil, fmt.Errorf("pwm: gpio line %q not found", lineName)
}

type gpiodLine struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

func (g *gpiodLine) SetValue(v int) error { return g.line.SetValue(v) }

// Release drives the line low, returns it to input and frees the request.
func (g *gpiodLine) Release() error {
	_ = g.line.SetValue(0)
	err := errors.Join(g.line.Reconfigure(gpiocdev.AsInput), g.line.Close())
	return errors.Join(err, g.chip.Close())
}

// digitalLine is the part of a GPIO request the software PWM needs.
type digitalLine interface {
	SetValue(v int) error
	Release() error
}

// softPWM toggles a digital line from a goroutine. Duty 0 and 100 hold the
// line steady; anything in between alternates high and low once per period.
type softPWM struct {
	line digitalLine

	mu     sync.Mutex
	period time.Duration
	duty   float64
	err    error

	stop chan struct{}
	done chan struct{}
}

func newSoftPWM(line digitalLine) *softPWM {
	return &softPWM{line: line, period: time.Second / 50}
}

func (s *softPWM) SetFrequencyHz(hz int) error {
	if hz <= 0 {
		return fmt.Errorf("pwm: invalid frequency %d", hz)
	}
	s.mu.Lock()
	s.period = time.Second / time.Duration(hz)
	s.mu.Unlock()
	return nil
}

func (s *softPWM) SetDutyPercent(p float64) error {
	if p < 0 {
		p = 0
	} else if p > 100 {
		p = 100
	}
	s.mu.Lock()
	s.duty = p
	err := s.err
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if s.stop == nil {
		s.stop = make(chan struct{})
		s.done = make(chan struct{})
		go s.run(s.stop, s.done)
	}
	return nil
}

func (s *softPWM) split() (high, low time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	high = time.Duration(float64(s.period) * s.duty / 100)
	return high, s.period - high
}

func (s *softPWM) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	log.WithError(err).Error("software pwm stopped")
}

func (s *softPWM) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	t := time.NewTimer(0)
	defer t.Stop()
	<-t.C

	wait := func(d time.Duration) bool {
		t.Reset(d)
		select {
		case <-t.C:
			return true
		case <-stop:
			return false
		}
	}

	for {
		high, low := s.split()
		if high > 0 {
			if err := s.line.SetValue(1); err != nil {
				s.fail(err)
				return
			}
			if !wait(high) {
				return
			}
		}
		if low > 0 {
			if err := s.line.SetValue(0); err != nil {
				s.fail(err)
				return
			}
			if !wait(low) {
				return
			}
		}
	}
}

// Disable stops the toggling goroutine and leaves the line low.
func (s *softPWM) Disable() error {
	if s.stop != nil {
		close(s.stop)
		<-s.done
		s.stop = nil
		s.done = nil
	}
	return s.line.SetValue(0)
}

func (s *softPWM) Close() error {
	return errors.Join(s.Disable(), s.line.Release())
}
