package status

import (
	"bufio"
	"context"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-playerswitch/internal/domain/players"
	"github.com/edumarques81/stellar-playerswitch/internal/infra/process"
)

// Snapshot sources.
const (
	SourceMonitor  = "monitor"
	SourceFallback = "fallback"
)

const defaultVolume = "100%"

// Paths locates the files consulted by the fallback probe.
type Paths struct {
	OutputFile string // File holding the selected output ("USB" or "I2S")
	USBDACPath string // Exists when a USB DAC is attached
}

// Service answers status queries. It prefers the monitor snapshot and falls
// back to probing the process table when the snapshot is unusable.
type Service struct {
	reader   *Reader
	runner   process.Runner
	registry *players.Registry
	paths    Paths
}

// NewService creates a status service.
func NewService(reader *Reader, runner process.Runner, registry *players.Registry, paths Paths) *Service {
	return &Service{
		reader:   reader,
		runner:   runner,
		registry: registry,
		paths:    paths,
	}
}

// Reader returns the underlying snapshot reader.
func (s *Service) Reader() *Reader {
	return s.reader
}

// Current returns the best available status.
func (s *Service) Current(ctx context.Context) Snapshot {
	if snap, ok := s.reader.Read(); ok {
		if snap.Complete() {
			return normalize(snap)
		}
		log.Warn().Strs("missing", snap.Missing).Msg("Status snapshot is missing fields, using fallback")
	}
	return s.probe(ctx)
}

// normalize applies control-availability rules to a monitor snapshot.
func normalize(snap Snapshot) Snapshot {
	if snap.AlsaState == AlsaUSB && !snap.USBDAC {
		// USB output selected without a DAC attached: nothing to control.
		snap.Volume = defaultVolume
		snap.VolumeControlAvailable = false
		snap.MuteControlAvailable = false
		snap.Muted = false
	} else if !snap.controlsReported {
		snap.VolumeControlAvailable = true
		snap.MuteControlAvailable = true
	}
	snap.Source = SourceMonitor
	return snap
}

// probe derives status without the monitor. Mixer state is not probed, so
// controls are reported unavailable.
func (s *Service) probe(ctx context.Context) Snapshot {
	snap := Snapshot{
		ActiveService: s.activeFromProcessTable(ctx),
		AlsaState:     s.alsaState(),
		USBDAC:        fileExists(s.paths.USBDACPath),
		Volume:        defaultVolume,
		Source:        SourceFallback,
	}
	return snap
}

// activeFromProcessTable returns the key of the first running player process.
func (s *Service) activeFromProcessTable(ctx context.Context) string {
	res, err := s.runner.Run(ctx, "ps", "-eo", "comm")
	if err != nil || !res.OK() {
		log.Warn().Err(err).Int("exit", res.ExitCode).Msg("Process table scan failed")
		return ""
	}

	scanner := bufio.NewScanner(strings.NewReader(res.Stdout))
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if e, ok := s.registry.LookupProcess(name); ok {
			return e.Key
		}
	}
	return ""
}

func (s *Service) alsaState() AlsaState {
	if s.paths.OutputFile == "" {
		return AlsaUnknown
	}
	data, err := os.ReadFile(s.paths.OutputFile)
	if err != nil {
		return AlsaUnknown
	}
	switch strings.ToUpper(strings.TrimSpace(string(data))) {
	case "USB":
		return AlsaUSB
	case "I2S":
		return AlsaI2S
	default:
		return AlsaUnknown
	}
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
