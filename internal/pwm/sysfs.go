package pwm

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
)

// sysfsPWM drives a hardware PWM channel via /sys/class/pwm.
//
// On Raspberry Pi the channel only exists once a PWM overlay is enabled
// (e.g. dtoverlay=pwm). The overlay decides which header pin the channel is
// routed to; the pin passed to openSysfs is only used for logging.
type sysfsPWM struct {
	chipPath string // <base>/pwmchipN
	pwmPath  string // <base>/pwmchipN/pwmM
	channel  int
	exported bool

	periodNS uint64
	enabled  bool
}

var (
	// exportWait bounds how long we wait for the pwmM node after export.
	exportWait = 500 * time.Millisecond
	// sysfsSettle bounds retries of writes that fail while udev adjusts
	// permissions on freshly exported nodes.
	sysfsSettle = 2 * time.Second
)

func openSysfs(cfg Config, pin int) (output, error) {
	chipPath, err := findPWMChip(cfg.SysfsBase, cfg.Chip, cfg.Channel)
	if err != nil {
		return nil, err
	}
	d := &sysfsPWM{
		chipPath: chipPath,
		channel:  cfg.Channel,
		pwmPath:  filepath.Join(chipPath, fmt.Sprintf("pwm%d", cfg.Channel)),
	}
	if err := d.ensureExported(); err != nil {
		return nil, err
	}
	// Start disabled; period and duty are written by Start.
	if err := d.writeBool("enable", false); err != nil {
		_ = d.unexport()
		return nil, fmt.Errorf("pwm: disable %s: %w", d.pwmPath, err)
	}
	log.WithFields(log.Fields{"pin": pin, "chip": chipPath, "channel": cfg.Channel}).Debug("sysfs pwm channel exported")
	return d, nil
}

func findPWMChip(base, chip string, channel int) (string, error) {
	if chip != "" {
		p := filepath.Join(base, chip)
		n, err := readInt(filepath.Join(p, "npwm"))
		if err != nil {
			return "", fmt.Errorf("pwm: read %s npwm: %w", chip, err)
		}
		if channel >= n {
			return "", fmt.Errorf("pwm: %s has %d channels, want channel %d", chip, n, channel)
		}
		return p, nil
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		return "", fmt.Errorf("pwm: read %s: %w", base, err)
	}
	// In sysfs, pwmchipN entries are commonly symlinks, not directories.
	var names []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "pwmchip") {
			names = append(names, e.Name())
		}
	}
	sort.Slice(names, func(i, j int) bool { return chipIndex(names[i]) < chipIndex(names[j]) })

	for _, name := range names {
		p := filepath.Join(base, name)
		n, err := readInt(filepath.Join(p, "npwm"))
		if err != nil || channel >= n {
			continue
		}
		return p, nil
	}
	return "", fmt.Errorf("pwm: no pwmchip with channel %d under %s (is the pwm overlay enabled?)", channel, base)
}

func chipIndex(name string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(name, "pwmchip"))
	if err != nil {
		return int(^uint(0) >> 1)
	}
	return n
}

func (d *sysfsPWM) ensureExported() error {
	if _, err := os.Stat(d.pwmPath); err == nil {
		return nil
	}
	if err := writeSysfs(filepath.Join(d.chipPath, "export"), strconv.Itoa(d.channel)); err != nil {
		// Exported by someone else in the meantime.
		if _, statErr := os.Stat(d.pwmPath); statErr == nil {
			return nil
		}
		return fmt.Errorf("pwm: export channel %d: %w", d.channel, err)
	}
	d.exported = true

	deadline := time.Now().Add(exportWait)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(d.pwmPath); err == nil {
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	if _, err := os.Stat(d.pwmPath); err != nil {
		return fmt.Errorf("pwm: %s not created after export: %w", d.pwmPath, err)
	}
	return nil
}

func (d *sysfsPWM) unexport() error {
	if !d.exported {
		return nil
	}
	d.exported = false
	return writeSysfs(filepath.Join(d.chipPath, "unexport"), strconv.Itoa(d.channel))
}

func (d *sysfsPWM) SetFrequencyHz(hz int) error {
	if hz <= 0 {
		return fmt.Errorf("pwm: invalid frequency %d", hz)
	}
	periodNS := uint64(1_000_000_000 / hz)
	if periodNS == 0 {
		periodNS = 1
	}

	// Disable before changing period (common sysfs requirement). The duty
	// must not exceed the new period, so clear it first.
	if err := d.Disable(); err != nil {
		return err
	}
	if err := d.writeUint("duty_cycle", 0); err != nil {
		return err
	}
	if err := d.writeUint("period", periodNS); err != nil {
		return err
	}
	d.periodNS = periodNS
	return nil
}

func (d *sysfsPWM) SetDutyPercent(p float64) error {
	if d.periodNS == 0 {
		return fmt.Errorf("pwm: period not set")
	}
	if err := d.writeUint("duty_cycle", dutyToUnits(p, d.periodNS)); err != nil {
		return err
	}
	if !d.enabled {
		if err := d.writeBool("enable", true); err != nil {
			return err
		}
		d.enabled = true
	}
	return nil
}

func (d *sysfsPWM) Disable() error {
	if err := d.writeBool("enable", false); err != nil {
		return err
	}
	d.enabled = false
	return nil
}

func (d *sysfsPWM) Close() error {
	// Best-effort: leave the LED dark even if the channel stays exported.
	var errs []error
	if d.periodNS > 0 {
		errs = append(errs, d.writeUint("duty_cycle", 0))
	}
	errs = append(errs, d.Disable(), d.unexport())
	return errors.Join(errs...)
}

func (d *sysfsPWM) writeUint(name string, v uint64) error {
	return writeSysfs(filepath.Join(d.pwmPath, name), strconv.FormatUint(v, 10))
}

func (d *sysfsPWM) writeBool(name string, v bool) error {
	val := "0"
	if v {
		val = "1"
	}
	return writeSysfs(filepath.Join(d.pwmPath, name), val)
}

// writeSysfs writes value to a sysfs attribute.
//
// The file is opened O_WRONLY without O_TRUNC/O_CREATE: some attributes reject
// truncation flags even when the mode bits allow writes. Right after export
// the kernel creates new files and udev may adjust permissions
// asynchronously, so EACCES/ENOENT are retried for a short while.
func writeSysfs(path string, value string) error {
	deadline := time.Now().Add(sysfsSettle)
	for {
		err := writeOnce(path, value)
		if err == nil {
			return nil
		}
		if time.Now().Before(deadline) && isRetryableSysfsErr(err) {
			time.Sleep(25 * time.Millisecond)
			continue
		}
		return err
	}
}

func writeOnce(path, value string) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	_, werr := f.WriteString(value)
	return errors.Join(werr, f.Close())
}

func isRetryableSysfsErr(err error) bool {
	return os.IsPermission(err) || os.IsNotExist(err) || errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) || errors.Is(err, syscall.ENOENT)
}

func readInt(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	s := strings.TrimSpace(string(b))
	if s == "" {
		return 0, fmt.Errorf("%s: empty", path)
	}
	return strconv.Atoi(s)
}
