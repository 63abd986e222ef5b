// Package brightness holds the LED brightness state and the rules for
// changing it in response to key presses.
package brightness

// Level is an LED duty cycle in percent. Values produced by this package are
// always within [Min, Max].
type Level int

const (
	Min     Level = 0
	Max     Level = 100
	Initial Level = Max
	// StepSize is the change applied by a single UP or DOWN key.
	StepSize = 10
)

// Key is a decoded key press.
type Key int

const (
	KeyOther Key = iota
	KeyUp
	KeyDown
	KeyEscape
)

func (k Key) String() string {
	switch k {
	case KeyUp:
		return "up"
	case KeyDown:
		return "down"
	case KeyEscape:
		return "escape"
	default:
		return "other"
	}
}

// Clamp bounds v into [Min, Max].
func Clamp(v int) Level {
	if v < int(Min) {
		return Min
	}
	if v > int(Max) {
		return Max
	}
	return Level(v)
}

// Apply returns the level that results from a single key. exit is true for
// KeyEscape, in which case the level is returned unchanged.
func Apply(level Level, key Key) (next Level, exit bool) {
	switch key {
	case KeyDown:
		return Clamp(int(level) - StepSize), false
	case KeyUp:
		return Clamp(int(level) + StepSize), false
	case KeyEscape:
		return level, true
	default:
		return level, false
	}
}

// Step folds a batch of keys into level. Processing stops at the first
// KeyEscape; keys after it are not applied.
func Step(level Level, keys []Key) (next Level, exit bool) {
	next = level
	for _, k := range keys {
		if next, exit = Apply(next, k); exit {
			return next, true
		}
	}
	return next, false
}
