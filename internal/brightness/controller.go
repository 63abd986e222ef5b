package brightness

import (
	log "github.com/sirupsen/logrus"
)

// Sink receives the duty cycle on every tick.
type Sink interface {
	SetDutyCycle(duty int) error
}

// Controller owns the current level and pushes it to a Sink.
//
// Not safe for concurrent use; it is driven by a single polling loop.
type Controller struct {
	sink   Sink
	level  Level
	exited bool
}

// New returns a Controller at initial, clamped to [Min, Max].
func New(sink Sink, initial Level) *Controller {
	return &Controller{sink: sink, level: Clamp(int(initial))}
}

func (c *Controller) Level() Level { return c.level }

func (c *Controller) Exited() bool { return c.exited }

// OnEvent applies one key. It returns true once an escape has been seen;
// from then on every key is ignored.
func (c *Controller) OnEvent(key Key) bool {
	if c.exited {
		return true
	}
	prev := c.level
	c.level, c.exited = Apply(c.level, key)
	if c.level != prev {
		log.WithFields(log.Fields{
			"key":   key,
			"from":  int(prev),
			"level": int(c.level),
		}).Debug("brightness changed")
	}
	return c.exited
}

// OnEvents applies keys in order and stops at the first escape.
func (c *Controller) OnEvents(keys []Key) bool {
	for _, k := range keys {
		if c.OnEvent(k) {
			return true
		}
	}
	return c.exited
}

// Tick pushes the current level to the sink, whether or not it changed.
func (c *Controller) Tick() error {
	return c.sink.SetDutyCycle(int(c.level))
}
