//go:build linux

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func openPTY(t *testing.T) (int, string) {
	t.Helper()
	master, err := unix.Open("/dev/ptmx", unix.O_RDWR|unix.O_NOCTTY|unix.O_CLOEXEC, 0)
	if err != nil {
		t.Skipf("no pty support: %v", err)
	}
	t.Cleanup(func() { _ = unix.Close(master) })
	if err := unix.IoctlSetPointerInt(master, unix.TIOCSPTLCK, 0); err != nil {
		t.Skipf("unlockpt: %v", err)
	}
	n, err := unix.IoctlGetInt(master, unix.TIOCGPTN)
	if err != nil {
		t.Skipf("ptsname: %v", err)
	}
	slave := fmt.Sprintf("/dev/pts/%d", n)
	if _, err := os.Stat(slave); err != nil {
		t.Skipf("devpts not mounted: %v", err)
	}
	return master, slave
}

func TestRun_EscapeExitsZero(t *testing.T) {
	master, slave := openPTY(t)

	dir := t.TempDir()
	led := filepath.Join(dir, "led0")
	require.NoError(t, os.MkdirAll(led, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(led, "max_brightness"), []byte("255\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(led, "brightness"), nil, 0o644))

	cfg := fmt.Sprintf("input:\n  device: %s\noutput:\n  backend: ledclass\n  led_path: %s\n", slave, led)
	path := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))

	// Keep pressing escape until run returns; the first press that reaches
	// the raw terminal ends the loop.
	stop := make(chan struct{})
	pressed := make(chan struct{})
	go func() {
		defer close(pressed)
		tick := time.NewTicker(20 * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-stop:
				return
			case <-tick.C:
				_, _ = unix.Write(master, []byte{0x1b})
			}
		}
	}()

	code := run([]string{"-c", path})
	close(stop)
	<-pressed

	assert.Equal(t, 0, code)
	b, err := os.ReadFile(filepath.Join(led, "brightness"))
	require.NoError(t, err)
	// Attribute writes do not truncate: the final "0" lands over the "255"
	// written at start.
	assert.Equal(t, "055", string(b))
}
