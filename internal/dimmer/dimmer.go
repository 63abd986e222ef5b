// Package dimmer runs the keyboard-to-LED control loop and owns the startup
// and shutdown ordering of the input and output hardware.
package dimmer

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"ledimmer/internal/brightness"
)

const (
	// LEDPin is the BCM GPIO the LED is wired to.
	LEDPin = 4
	// FrequencyHz is the PWM frequency the LED is driven at.
	FrequencyHz = 50

	DefaultPollInterval = 10 * time.Millisecond
)

// Input supplies key presses without blocking.
type Input interface {
	Poll() ([]brightness.Key, error)
	Close() error
}

// Output is a PWM signal driving the LED.
type Output interface {
	Start(duty int) error
	SetDutyCycle(duty int) error
	Stop() error
}

// Host claims and releases output pins.
type Host interface {
	SetupOutput(pin int) error
	Output(pin, freqHz int) (Output, error)
	Cleanup() error
}

// Observer is told about processed keys and duty cycle pushes.
type Observer interface {
	KeyPressed(k brightness.Key)
	DutyPushed(level brightness.Level)
}

// State is the lifecycle stage of a Dimmer.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Option configures a Dimmer.
type Option func(*Dimmer)

// WithPollInterval sets the pause between polls. Non-positive values keep
// DefaultPollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(dm *Dimmer) {
		if d > 0 {
			dm.pollInterval = d
		}
	}
}

// WithObserver reports keys and duty cycle pushes to o.
func WithObserver(o Observer) Option {
	return func(dm *Dimmer) { dm.observer = o }
}

type nopObserver struct{}

func (nopObserver) KeyPressed(brightness.Key)   {}
func (nopObserver) DutyPushed(brightness.Level) {}

// Dimmer wires an Input to an Output through a brightness.Controller.
//
// Not safe for concurrent use.
type Dimmer struct {
	openInput    func() (Input, error)
	host         Host
	pollInterval time.Duration
	observer     Observer
	sleep        func(ctx context.Context, d time.Duration) error

	state    State
	input    Input
	output   Output
	ctl      *brightness.Controller
	released bool
}

// New returns an idle Dimmer. openInput is called by Start.
func New(openInput func() (Input, error), host Host, opts ...Option) *Dimmer {
	d := &Dimmer{
		openInput:    openInput,
		host:         host,
		pollInterval: DefaultPollInterval,
		observer:     nopObserver{},
		sleep:        sleepCtx,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// State returns the current lifecycle stage.
func (d *Dimmer) State() State { return d.state }

// Level returns the current brightness, or Initial before Start.
func (d *Dimmer) Level() brightness.Level {
	if d.ctl == nil {
		return brightness.Initial
	}
	return d.ctl.Level()
}

// Start claims the input, configures the LED pin and starts PWM at full
// brightness, in that order. On failure everything already claimed is
// released and the dimmer never enters StateRunning.
func (d *Dimmer) Start() error {
	if d.state != StateIdle || d.released {
		return fmt.Errorf("dimmer: cannot start from state %s", d.state)
	}

	in, err := d.openInput()
	if err != nil {
		return d.abortStart(fmt.Errorf("dimmer: open input: %w", err))
	}
	d.input = in

	if err := d.host.SetupOutput(LEDPin); err != nil {
		return d.abortStart(fmt.Errorf("dimmer: set up pin %d: %w", LEDPin, err))
	}

	out, err := d.host.Output(LEDPin, FrequencyHz)
	if err != nil {
		return d.abortStart(fmt.Errorf("dimmer: create pwm: %w", err))
	}
	if err := out.Start(int(brightness.Initial)); err != nil {
		return d.abortStart(fmt.Errorf("dimmer: start pwm: %w", err))
	}
	d.output = out

	d.ctl = brightness.New(d, brightness.Initial)
	d.state = StateRunning
	log.WithFields(log.Fields{
		"pin":     LEDPin,
		"freq_hz": FrequencyHz,
		"level":   int(brightness.Initial),
	}).Info("dimmer running")
	return nil
}

func (d *Dimmer) abortStart(err error) error {
	if rerr := d.release(); rerr != nil {
		log.WithError(rerr).Warn("release after failed start")
	}
	return err
}

// SetDutyCycle forwards a controller tick to the output.
func (d *Dimmer) SetDutyCycle(duty int) error {
	if err := d.output.SetDutyCycle(duty); err != nil {
		return err
	}
	d.observer.DutyPushed(brightness.Clamp(duty))
	return nil
}

// Run polls for keys and refreshes the LED until escape is pressed, the
// input fails, or ctx is done. Shutdown runs in every case before Run
// returns. Run returns nil only when escape ended the loop and the
// hardware was released cleanly.
func (d *Dimmer) Run(ctx context.Context) error {
	if d.state != StateRunning {
		return fmt.Errorf("dimmer: cannot run from state %s", d.state)
	}
	for {
		keys, err := d.input.Poll()
		if err != nil {
			return errors.Join(fmt.Errorf("dimmer: poll input: %w", err), d.Shutdown())
		}
		if d.process(keys) {
			log.WithField("level", int(d.ctl.Level())).Info("escape pressed, shutting down")
			return d.Shutdown()
		}
		if err := d.ctl.Tick(); err != nil {
			return errors.Join(fmt.Errorf("dimmer: push duty cycle: %w", err), d.Shutdown())
		}
		if err := d.sleep(ctx, d.pollInterval); err != nil {
			log.WithError(err).Info("interrupted, shutting down")
			return errors.Join(err, d.Shutdown())
		}
	}
}

// process feeds keys to the controller and reports whether escape was seen.
// Keys after the escape are dropped.
func (d *Dimmer) process(keys []brightness.Key) bool {
	for _, k := range keys {
		d.observer.KeyPressed(k)
		if d.ctl.OnEvent(k) {
			return true
		}
	}
	return false
}

// Shutdown stops PWM, releases the pins and restores the input, in that
// order. Only the first call does any work.
func (d *Dimmer) Shutdown() error {
	if d.released {
		return nil
	}
	err := d.release()
	d.state = StateTerminated
	log.Info("dimmer terminated")
	return err
}

func (d *Dimmer) release() error {
	d.released = true
	var errs []error
	if d.output != nil {
		if err := d.output.Stop(); err != nil {
			log.WithError(err).Warn("stop pwm failed")
			errs = append(errs, fmt.Errorf("dimmer: stop pwm: %w", err))
		}
	}
	if err := d.host.Cleanup(); err != nil {
		log.WithError(err).Warn("pin cleanup failed")
		errs = append(errs, fmt.Errorf("dimmer: cleanup pins: %w", err))
	}
	if d.input != nil {
		if err := d.input.Close(); err != nil {
			log.WithError(err).Warn("input teardown failed")
			errs = append(errs, fmt.Errorf("dimmer: close input: %w", err))
		}
	}
	return errors.Join(errs...)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
