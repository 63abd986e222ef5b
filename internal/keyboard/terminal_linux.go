//go:build linux

package keyboard

import (
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"ledimmer/internal/brightness"
)

// EscapeTimeout is how long a trailing ESC waits for the rest of a cursor
// sequence before it counts as the escape key.
const EscapeTimeout = 50 * time.Millisecond

// Terminal is a tty in raw mode whose reads never block.
type Terminal struct {
	path  string
	fd    int
	saved *unix.Termios
	buf   []byte

	// carry holds an escape sequence split across reads.
	carry      []byte
	carrySince time.Time
	now        func() time.Time
}

// Open claims the terminal at path and switches it to raw mode. Close puts
// the previous settings back.
func Open(path string) (*Terminal, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NOCTTY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("keyboard: open %s: %w", path, err)
	}

	// If anything below fails, close fd.
	ok := false
	defer func() {
		if !ok {
			_ = unix.Close(fd)
		}
	}()

	saved, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return nil, fmt.Errorf("keyboard: %s is not a terminal: %w", path, err)
	}

	raw := *saved
	raw.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	raw.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	raw.Cflag &^= unix.CSIZE | unix.PARENB
	raw.Cflag |= unix.CS8
	// OPOST stays on so log lines written to the same tty keep their newlines.

	// Return immediately with whatever is queued, possibly nothing.
	raw.Cc[unix.VMIN] = 0
	raw.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, &raw); err != nil {
		return nil, fmt.Errorf("keyboard: set raw mode: %w", err)
	}

	ok = true
	log.WithField("device", path).Debug("terminal in raw mode")
	return &Terminal{path: path, fd: fd, saved: saved, buf: make([]byte, 256), now: time.Now}, nil
}

// Poll returns the keys pressed since the previous call. An empty result is
// normal when nothing was typed. A sequence cut off at the end of a read is
// held back until the next read completes it or EscapeTimeout passes.
func (t *Terminal) Poll() ([]brightness.Key, error) {
	if t.fd < 0 {
		return nil, fmt.Errorf("keyboard: terminal closed")
	}
	var pending []byte
	for {
		n, err := unix.Read(t.fd, t.buf)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			if errors.Is(err, unix.EAGAIN) {
				break
			}
			return nil, fmt.Errorf("keyboard: read %s: %w", t.path, err)
		}
		if n <= 0 {
			break
		}
		pending = append(pending, t.buf[:n]...)
		if n < len(t.buf) {
			break
		}
	}
	if len(pending) == 0 {
		if len(t.carry) == 0 || t.now().Sub(t.carrySince) < EscapeTimeout {
			return nil, nil
		}
		keys := Decode(t.carry)
		t.carry = nil
		return keys, nil
	}
	if len(t.carry) > 0 {
		pending = append(append([]byte(nil), t.carry...), pending...)
	}
	keys, rest := decode(pending, false)
	t.carry = rest
	if len(rest) > 0 {
		t.carrySince = t.now()
	}
	return keys, nil
}

// Close restores the terminal settings and releases the device. Calling it
// again is a no-op.
func (t *Terminal) Close() error {
	if t.fd < 0 {
		return nil
	}
	var errs []error
	if t.saved != nil {
		if err := unix.IoctlSetTermios(t.fd, unix.TCSETS, t.saved); err != nil {
			errs = append(errs, fmt.Errorf("keyboard: restore terminal: %w", err))
		}
	}
	if err := unix.Close(t.fd); err != nil {
		errs = append(errs, fmt.Errorf("keyboard: close %s: %w", t.path, err))
	}
	t.fd = -1
	log.WithField("device", t.path).Debug("terminal restored")
	return errors.Join(errs...)
}
