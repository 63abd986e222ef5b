package pwm

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shortSysfsTimeouts(t *testing.T) {
	t.Helper()
	oldExport, oldSettle := exportWait, sysfsSettle
	exportWait = 20 * time.Millisecond
	sysfsSettle = 0
	t.Cleanup(func() {
		exportWait = oldExport
		sysfsSettle = oldSettle
	})
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}

// takeAttr returns the attribute value and empties the file. writeSysfs does
// not truncate, so the next write starts from a clean file.
func takeAttr(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(path, 0))
	return strings.TrimSpace(string(b))
}

// fakePWMChip builds <base>/<name> with npwm and an already exported pwm0.
func fakePWMChip(t *testing.T, base, name string, npwm string) string {
	t.Helper()
	chip := filepath.Join(base, name)
	writeFile(t, filepath.Join(chip, "npwm"), npwm)
	writeFile(t, filepath.Join(chip, "export"), "")
	writeFile(t, filepath.Join(chip, "unexport"), "")
	for _, attr := range []string{"period", "duty_cycle", "enable"} {
		writeFile(t, filepath.Join(chip, "pwm0", attr), "")
	}
	return chip
}

func TestFindPWMChip_AcceptsSymlinkedPWMChip(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "pwm")
	require.NoError(t, os.MkdirAll(base, 0o755))

	// A real pwmchip directory somewhere else, symlinked as pwmchip0.
	realChip := filepath.Join(dir, "realchip0")
	writeFile(t, filepath.Join(realChip, "npwm"), "2\n")
	link := filepath.Join(base, "pwmchip0")
	require.NoError(t, os.Symlink(realChip, link))

	chipPath, err := findPWMChip(base, "", 0)
	require.NoError(t, err)
	assert.Equal(t, link, chipPath)
}

func TestFindPWMChip_SkipsChipsWithoutChannel(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "pwmchip0", "npwm"), "1\n")
	writeFile(t, filepath.Join(base, "pwmchip10", "npwm"), "2\n")
	writeFile(t, filepath.Join(base, "pwmchip2", "npwm"), "2\n")

	chipPath, err := findPWMChip(base, "", 1)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "pwmchip2"), chipPath)

	_, err = findPWMChip(base, "", 5)
	assert.ErrorContains(t, err, "no pwmchip with channel 5")
}

func TestFindPWMChip_NamedChip(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "pwmchip3", "npwm"), "2\n")

	chipPath, err := findPWMChip(base, "pwmchip3", 1)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "pwmchip3"), chipPath)

	_, err = findPWMChip(base, "pwmchip3", 2)
	assert.EqualError(t, err, "pwm: pwmchip3 has 2 channels, want channel 2")
}

func TestSysfsPWM_StartDutyStop(t *testing.T) {
	shortSysfsTimeouts(t)
	base := t.TempDir()
	chip := fakePWMChip(t, base, "pwmchip0", "2\n")
	pwm0 := filepath.Join(chip, "pwm0")

	h, err := NewHost(Config{Backend: BackendSysfs, SysfsBase: base})
	require.NoError(t, err)
	require.NoError(t, h.SetupOutput(4))
	assert.Equal(t, "0", takeAttr(t, filepath.Join(pwm0, "enable")))

	p, err := h.PWM(4, 50)
	require.NoError(t, err)
	require.NoError(t, p.Start(100))
	assert.Equal(t, "20000000", takeAttr(t, filepath.Join(pwm0, "period")))
	assert.Equal(t, "20000000", takeAttr(t, filepath.Join(pwm0, "duty_cycle")))
	assert.Equal(t, "1", takeAttr(t, filepath.Join(pwm0, "enable")))

	require.NoError(t, p.SetDutyCycle(90))
	assert.Equal(t, "18000000", takeAttr(t, filepath.Join(pwm0, "duty_cycle")))
	// Already enabled: no further write.
	assert.Equal(t, "", takeAttr(t, filepath.Join(pwm0, "enable")))

	require.NoError(t, p.Stop())
	assert.Equal(t, "0", takeAttr(t, filepath.Join(pwm0, "enable")))

	// pwm0 pre-existed, so we did not export it and must not unexport it.
	require.NoError(t, h.Cleanup())
	assert.Equal(t, "", takeAttr(t, filepath.Join(chip, "unexport")))
	assert.Equal(t, "", takeAttr(t, filepath.Join(chip, "export")))
}

func TestSysfsPWM_ExportTimesOut(t *testing.T) {
	shortSysfsTimeouts(t)
	base := t.TempDir()
	chip := filepath.Join(base, "pwmchip0")
	writeFile(t, filepath.Join(chip, "npwm"), "1\n")
	writeFile(t, filepath.Join(chip, "export"), "")

	_, err := openSysfs(Config{SysfsBase: base}, 4)
	assert.ErrorContains(t, err, "not created after export")
	assert.Equal(t, "0", takeAttr(t, filepath.Join(chip, "export")))
}

func TestSysfsPWM_CloseUnexportsWhatItExported(t *testing.T) {
	shortSysfsTimeouts(t)
	base := t.TempDir()
	chip := fakePWMChip(t, base, "pwmchip0", "1\n")

	d := &sysfsPWM{chipPath: chip, pwmPath: filepath.Join(chip, "pwm0"), exported: true}
	require.NoError(t, d.SetFrequencyHz(1000))
	require.NoError(t, d.Close())
	assert.Equal(t, "0", takeAttr(t, filepath.Join(chip, "unexport")))
	assert.False(t, d.exported)
}

func TestSysfsPWM_DutyBeforePeriod(t *testing.T) {
	d := &sysfsPWM{}
	assert.EqualError(t, d.SetDutyPercent(10), "pwm: period not set")
	assert.Error(t, d.SetFrequencyHz(0))
}
