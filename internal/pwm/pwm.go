// Package pwm drives an LED through a PWM-capable output.
//
// A Host claims pins as outputs and hands out PWM channels for them. Three
// backends are available:
//   - "gpio": software PWM on a GPIO line via the Linux GPIO character device.
//   - "sysfs": a hardware PWM channel under /sys/class/pwm.
//   - "ledclass": an LED exposed under /sys/class/leds (brightness only).
package pwm

import (
	"errors"
	"fmt"
	"math"

	log "github.com/sirupsen/logrus"
)

const (
	BackendGPIO     = "gpio"
	BackendSysfs    = "sysfs"
	BackendLEDClass = "ledclass"
)

type Config struct {
	Backend string

	// SysfsBase is the root of the PWM class tree.
	SysfsBase string
	// Chip selects a pwmchip by name (e.g. "pwmchip0"). Empty picks the first
	// chip exposing Channel.
	Chip    string
	Channel int

	// GPIOChip selects a GPIO character device by name (e.g. "gpiochip0").
	// Empty searches all chips for the line.
	GPIOChip string

	// LEDPath is the LED class directory, e.g. /sys/class/leds/led0.
	LEDPath string
}

// output is a claimed pin. Duty is expressed in percent (0..100).
//
// Close releases the claim and should leave the LED off.
type output interface {
	SetFrequencyHz(hz int) error
	SetDutyPercent(p float64) error
	Disable() error
	Close() error
}

var openOutputFn = openOutput

func openOutput(cfg Config, pin int) (output, error) {
	switch cfg.Backend {
	case BackendGPIO:
		return openGPIO(cfg, pin)
	case BackendSysfs:
		return openSysfs(cfg, pin)
	case BackendLEDClass:
		return openLEDClass(cfg, pin)
	default:
		return nil, fmt.Errorf("pwm: unknown backend %q", cfg.Backend)
	}
}

// Host tracks the pins claimed as outputs so they can be released together.
//
// Not safe for concurrent use.
type Host struct {
	cfg     Config
	outputs map[int]output
	order   []int
}

func NewHost(cfg Config) (*Host, error) {
	switch cfg.Backend {
	case BackendGPIO, BackendSysfs, BackendLEDClass:
	case "":
		cfg.Backend = BackendGPIO
	default:
		return nil, fmt.Errorf("pwm: unknown backend %q", cfg.Backend)
	}
	if cfg.SysfsBase == "" {
		cfg.SysfsBase = "/sys/class/pwm"
	}
	if cfg.LEDPath == "" {
		cfg.LEDPath = "/sys/class/leds/led0"
	}
	if cfg.Channel < 0 {
		return nil, fmt.Errorf("pwm: invalid channel %d", cfg.Channel)
	}
	return &Host{cfg: cfg, outputs: make(map[int]output)}, nil
}

// SetupOutput claims pin as an output. Claiming an already claimed pin is a
// no-op.
func (h *Host) SetupOutput(pin int) error {
	if pin < 0 {
		return fmt.Errorf("pwm: invalid pin %d", pin)
	}
	if _, ok := h.outputs[pin]; ok {
		return nil
	}
	out, err := openOutputFn(h.cfg, pin)
	if err != nil {
		return err
	}
	h.outputs[pin] = out
	h.order = append(h.order, pin)
	log.WithFields(log.Fields{"backend": h.cfg.Backend, "pin": pin}).Debug("pin claimed as output")
	return nil
}

// PWM returns a PWM channel on a pin previously claimed with SetupOutput.
func (h *Host) PWM(pin, freqHz int) (*PWM, error) {
	out, ok := h.outputs[pin]
	if !ok {
		return nil, fmt.Errorf("pwm: pin %d not set up as output", pin)
	}
	if freqHz <= 0 {
		return nil, fmt.Errorf("pwm: invalid frequency %d", freqHz)
	}
	return &PWM{pin: pin, freqHz: freqHz, out: out}, nil
}

// Cleanup releases every claimed pin, most recent first. It is safe to call
// more than once.
func (h *Host) Cleanup() error {
	var errs []error
	for i := len(h.order) - 1; i >= 0; i-- {
		pin := h.order[i]
		if err := h.outputs[pin].Close(); err != nil {
			errs = append(errs, fmt.Errorf("pwm: release pin %d: %w", pin, err))
		}
		delete(h.outputs, pin)
	}
	if len(h.order) > 0 {
		log.WithField("pins", h.order).Debug("pins released")
	}
	h.order = nil
	return errors.Join(errs...)
}

// PWM is a started or stopped PWM signal on one pin.
type PWM struct {
	pin     int
	freqHz  int
	out     output
	running bool
	duty    int
}

func clampDuty(duty int) int {
	if duty < 0 {
		return 0
	}
	if duty > 100 {
		return 100
	}
	return duty
}

func (p *PWM) Pin() int { return p.pin }

func (p *PWM) FrequencyHz() int { return p.freqHz }

// Duty returns the last duty cycle written, in percent.
func (p *PWM) Duty() int { return p.duty }

func (p *PWM) Running() bool { return p.running }

// Start sets the frequency and begins output at duty percent.
func (p *PWM) Start(duty int) error {
	if err := p.out.SetFrequencyHz(p.freqHz); err != nil {
		return fmt.Errorf("pwm: set frequency on pin %d: %w", p.pin, err)
	}
	p.running = true
	if err := p.SetDutyCycle(duty); err != nil {
		return err
	}
	log.WithFields(log.Fields{"pin": p.pin, "freq_hz": p.freqHz, "duty": p.duty}).Info("pwm started")
	return nil
}

// SetDutyCycle updates the duty cycle. Out of range values are clamped.
func (p *PWM) SetDutyCycle(duty int) error {
	if !p.running {
		return fmt.Errorf("pwm: pin %d not started", p.pin)
	}
	duty = clampDuty(duty)
	if err := p.out.SetDutyPercent(float64(duty)); err != nil {
		return fmt.Errorf("pwm: set duty on pin %d: %w", p.pin, err)
	}
	p.duty = duty
	return nil
}

// Stop halts the signal and leaves the pin low. Stopping a stopped PWM is a
// no-op.
func (p *PWM) Stop() error {
	if !p.running {
		return nil
	}
	p.running = false
	err := errors.Join(p.out.SetDutyPercent(0), p.out.Disable())
	if err != nil {
		return fmt.Errorf("pwm: stop pin %d: %w", p.pin, err)
	}
	p.duty = 0
	log.WithField("pin", p.pin).Info("pwm stopped")
	return nil
}

// dutyToUnits scales a percentage onto [0, full].
func dutyToUnits(p float64, full uint64) uint64 {
	if p <= 0 {
		return 0
	}
	if p >= 100 {
		return full
	}
	v := uint64(math.Round(float64(full) * (p / 100.0)))
	if v > full {
		v = full
	}
	return v
}
