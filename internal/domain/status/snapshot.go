// Package status reads the system status snapshot published by the status
// monitor and derives a best-effort status when the monitor is not running.
package status

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rs/zerolog/log"
)

// AlsaState is the selected ALSA output path.
type AlsaState string

const (
	AlsaUSB     AlsaState = "usb"
	AlsaI2S     AlsaState = "i2s"
	AlsaUnknown AlsaState = "unknown"
)

// Snapshot is the device status as published by the status monitor.
type Snapshot struct {
	ActiveService          string    `json:"active_service"`
	AlsaState              AlsaState `json:"alsa_state"`
	USBDAC                 bool      `json:"usb_dac"`
	Volume                 string    `json:"volume"`
	Muted                  bool      `json:"muted"`
	VolumeControlAvailable bool      `json:"volume_control_available"`
	MuteControlAvailable   bool      `json:"mute_control_available"`
	Timestamp              int64     `json:"timestamp,omitempty"`
	Source                 string    `json:"source,omitempty"`

	// Missing lists required fields that were absent from the file.
	Missing []string `json:"-"`
	// controlsReported is false when the monitor omitted control availability.
	controlsReported bool
}

// Complete reports whether every required field was present.
func (s Snapshot) Complete() bool {
	return len(s.Missing) == 0
}

// HasActiveService reports whether the active_service field was present.
func (s Snapshot) HasActiveService() bool {
	for _, m := range s.Missing {
		if m == "active_service" {
			return false
		}
	}
	return true
}

// rawSnapshot mirrors Snapshot with optional fields so absent keys can be
// told apart from zero values.
type rawSnapshot struct {
	ActiveService          *string `json:"active_service"`
	AlsaState              *string `json:"alsa_state"`
	USBDAC                 *bool   `json:"usb_dac"`
	Volume                 *string `json:"volume"`
	Muted                  *bool   `json:"muted"`
	VolumeControlAvailable *bool   `json:"volume_control_available"`
	MuteControlAvailable   *bool   `json:"mute_control_available"`
	Timestamp              *int64  `json:"timestamp"`
	Source                 *string `json:"source"`
}

// Reader loads the snapshot file.
type Reader struct {
	path   string
	maxAge time.Duration
	now    func() time.Time
}

// NewReader creates a reader for the snapshot at path. Files whose
// modification time is older than maxAge are treated as absent; a zero
// maxAge disables the staleness check.
func NewReader(path string, maxAge time.Duration) *Reader {
	return &Reader{
		path:   path,
		maxAge: maxAge,
		now:    time.Now,
	}
}

// Path returns the snapshot file path.
func (r *Reader) Path() string {
	return r.path
}

// Read returns the snapshot and true when the file exists, is fresh and is a
// JSON object. Missing, stale, unreadable or malformed files yield false.
// Absent fields are recorded in Snapshot.Missing rather than failing the read.
func (r *Reader) Read() (Snapshot, bool) {
	info, err := os.Stat(r.path)
	if err != nil {
		return Snapshot{}, false
	}
	if r.maxAge > 0 {
		if age := r.now().Sub(info.ModTime()); age >= r.maxAge {
			log.Debug().Str("file", r.path).Dur("age", age).Msg("Status snapshot is stale")
			return Snapshot{}, false
		}
	}

	data, err := os.ReadFile(r.path)
	if err != nil || len(data) == 0 {
		return Snapshot{}, false
	}
	return decode(data)
}

// decode converts raw JSON into a Snapshot, tolerating absent fields.
func decode(data []byte) (Snapshot, bool) {
	var raw rawSnapshot
	if err := json.Unmarshal(data, &raw); err != nil {
		return Snapshot{}, false
	}

	snap := Snapshot{AlsaState: AlsaUnknown}
	if raw.ActiveService != nil {
		snap.ActiveService = *raw.ActiveService
	} else {
		snap.Missing = append(snap.Missing, "active_service")
	}
	if raw.AlsaState != nil {
		snap.AlsaState = parseAlsaState(*raw.AlsaState)
	} else {
		snap.Missing = append(snap.Missing, "alsa_state")
	}
	if raw.USBDAC != nil {
		snap.USBDAC = *raw.USBDAC
	} else {
		snap.Missing = append(snap.Missing, "usb_dac")
	}
	if raw.Volume != nil {
		snap.Volume = *raw.Volume
	} else {
		snap.Missing = append(snap.Missing, "volume")
	}
	if raw.Muted != nil {
		snap.Muted = *raw.Muted
	} else {
		snap.Missing = append(snap.Missing, "muted")
	}
	if raw.VolumeControlAvailable != nil {
		snap.VolumeControlAvailable = *raw.VolumeControlAvailable
		snap.controlsReported = true
	}
	if raw.MuteControlAvailable != nil {
		snap.MuteControlAvailable = *raw.MuteControlAvailable
	}
	if raw.Timestamp != nil {
		snap.Timestamp = *raw.Timestamp
	}
	if raw.Source != nil {
		snap.Source = *raw.Source
	}
	return snap, true
}

func parseAlsaState(s string) AlsaState {
	switch AlsaState(s) {
	case AlsaUSB, AlsaI2S:
		return AlsaState(s)
	default:
		return AlsaUnknown
	}
}
