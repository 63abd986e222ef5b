// Package keyboard reads key presses from a terminal in raw mode.
package keyboard

import "ledimmer/internal/brightness"

const esc = 0x1b

// Decode turns raw terminal bytes into keys.
//
// Cursor keys arrive as CSI (ESC [ x) or SS3 (ESC O x) sequences depending on
// the terminal's cursor key mode; both are accepted. Any other escape
// sequence decodes to a single KeyOther, as does ESC followed by a printable
// byte (an Alt chord). An ESC that ends the buffer or precedes a control byte
// is the escape key.
func Decode(b []byte) []brightness.Key {
	keys, _ := decode(b, true)
	return keys
}

// decode is Decode for a buffer that may end partway through a sequence.
// Unless atEnd is set, a trailing ESC, ESC [ or ESC O (with any parameter
// bytes) is returned unconsumed as rest so the caller can prepend it to the
// next read.
func decode(b []byte, atEnd bool) (keys []brightness.Key, rest []byte) {
	for i := 0; i < len(b); {
		if b[i] != esc {
			keys = append(keys, brightness.KeyOther)
			i++
			continue
		}
		if i+1 >= len(b) {
			if !atEnd {
				return keys, b[i:]
			}
			keys = append(keys, brightness.KeyEscape)
			i++
			continue
		}
		next := b[i+1]
		if next != '[' && next != 'O' {
			if isPrintable(next) {
				keys = append(keys, brightness.KeyOther)
				i += 2
				continue
			}
			keys = append(keys, brightness.KeyEscape)
			i++
			continue
		}
		key, n, complete := decodeSequence(b[i+2:])
		if !complete && !atEnd {
			return keys, b[i:]
		}
		keys = append(keys, key)
		i += 2 + n
	}
	return keys, nil
}

func isPrintable(c byte) bool { return c >= 0x20 && c < 0x7f }

// decodeSequence parses the tail of a CSI/SS3 sequence: optional parameter
// bytes (0x30-0x3f) followed by one final byte. It returns the key, the
// number of bytes consumed and whether the final byte was present.
func decodeSequence(b []byte) (brightness.Key, int, bool) {
	n := 0
	for n < len(b) && b[n] >= 0x30 && b[n] <= 0x3f {
		n++
	}
	if n >= len(b) {
		return brightness.KeyOther, n, false
	}
	final := b[n]
	n++
	if n > 1 {
		// Modified or numbered keys (ESC [ 1 ; 5 A, ESC [ 5 ~) are not ours.
		return brightness.KeyOther, n, true
	}
	switch final {
	case 'A':
		return brightness.KeyUp, n, true
	case 'B':
		return brightness.KeyDown, n, true
	default:
		return brightness.KeyOther, n, true
	}
}
