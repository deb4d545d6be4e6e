package socketio

import (
	"os"
	"strings"

	"github.com/edumarques81/stellar-playerswitch/internal/domain/status"
	"github.com/edumarques81/stellar-playerswitch/internal/version"
)

const cpuInfoPath = "/proc/cpuinfo"

// SystemInfo describes the device for the UI's about page.
type SystemInfo struct {
	Host          string `json:"host"`
	Hardware      string `json:"hardware"`
	Version       string `json:"version"`
	BuildDate     string `json:"builddate,omitempty"`
	ActiveService string `json:"activeService"`
	Output        string `json:"output"`
	USBDAC        bool   `json:"usbDac"`
}

// GetSystemInfo combines host details with the current player status.
func GetSystemInfo(snap status.Snapshot) SystemInfo {
	v := version.GetInfo()
	info := SystemInfo{
		Hardware:      "unknown",
		Version:       v.Version,
		BuildDate:     v.BuildTime,
		ActiveService: snap.ActiveService,
		Output:        string(snap.AlsaState),
		USBDAC:        snap.USBDAC,
	}

	if hostname, err := os.Hostname(); err == nil {
		info.Host = hostname
	}
	if data, err := os.ReadFile(cpuInfoPath); err == nil {
		if model := parseCPUModel(string(data)); model != "" {
			info.Hardware = model
		}
	}
	return info
}

// parseCPUModel returns the "Model" line of /proc/cpuinfo, which names the
// board on ARM devices.
func parseCPUModel(cpuinfo string) string {
	for _, line := range strings.Split(cpuinfo, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if ok && strings.TrimSpace(key) == "Model" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
