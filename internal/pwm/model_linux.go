//go:build linux

package pwm

import (
	"os"
	"strings"
)

// Common device-tree model paths across Pi distros.
var modelPaths = []string{
	"/sys/firmware/devicetree/base/model",
	"/proc/device-tree/model",
}

func boardModel() string {
	for _, p := range modelPaths {
		b, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		return strings.Trim(strings.TrimSpace(string(b)), "\x00")
	}
	return ""
}

// gpioChipCandidates lists the character devices to search for the header
// lines. Pi 5 kernels expose the header on gpiochip4 (older ones) or
// gpiochip0, earlier boards on gpiochip0.
func gpioChipCandidates(model string, dev []string) []string {
	preferred := []string{"/dev/gpiochip0", "/dev/gpiochip4"}
	if strings.Contains(model, "Raspberry Pi 5") {
		preferred = []string{"/dev/gpiochip4", "/dev/gpiochip0"}
	}
	seen := make(map[string]bool)
	var out []string
	for _, p := range append(preferred, dev...) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
