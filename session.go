// Package ecephys ingests extracellular electrophysiology acquisition
// outputs (spike times, mean waveforms, LFP, running speed, stimulus
// tables) and prepares them for serialization into a standardized
// container file.
package ecephys

import (
	"fmt"
	"strings"
	"time"
)

// Channel is one recording site on a probe.
type Channel struct {
	ID                      int64   `json:"id"`
	ProbeID                 int64   `json:"probe_id"`
	LocalIndex              int64   `json:"local_index"`
	ProbeVerticalPosition   float64 `json:"probe_vertical_position"`
	ProbeHorizontalPosition float64 `json:"probe_horizontal_position"`
	ValidData               bool    `json:"valid_data"`
}

// Unit is one sorted unit. ID is session-wide unique; LocalIndex is the
// probe-scoped index the spike sorter assigned.
type Unit struct {
	ID         int64 `json:"id"`
	LocalIndex int64 `json:"local_index"`
}

// ProbeLFP names the input arrays for one probe's LFP subsampling and
// the standalone file its data is written to.
type ProbeLFP struct {
	InputDataPath       string `json:"input_data_path"`
	InputTimestampsPath string `json:"input_timestamps_path"`
	InputChannelsPath   string `json:"input_channels_path"`
	OutputPath          string `json:"output_path"`
}

// Probe describes one probe's channels, units, and raw data paths.
type Probe struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	Channels          []Channel `json:"channels"`
	Units             []Unit    `json:"units"`
	SpikeTimesPath    string    `json:"spike_times_path"`
	SpikeClustersPath string    `json:"spike_clusters_path"`
	MeanWaveformsPath string    `json:"mean_waveforms_path"`
	LFP               ProbeLFP  `json:"lfp"`
}

// RunningSpeedPaths names the running speed input arrays.
type RunningSpeedPaths struct {
	RunningSpeedPath           string `json:"running_speed_path"`
	RunningSpeedTimestampsPath string `json:"running_speed_timestamps_path"`
}

// Session is the root aggregate for one master-file write.
type Session struct {
	ID                int64
	StartTime         time.Time
	StimulusTablePath string
	Probes            []Probe
	RunningSpeed      RunningSpeedPaths
}

// RunningSpeed holds running speed samples; the association between
// timestamps and values is positional.
type RunningSpeed struct {
	Timestamps []float64
	Values     []float64
}

// Waveform is one unit's mean waveform, row-major samples x channels.
// After peak-channel selection Channels is 1.
type Waveform struct {
	Samples  int
	Channels int
	Data     []float64
}

// Validate checks required fields and per-probe invariants before any
// file is touched.
func (s *Session) Validate() error {
	if s.StartTime.IsZero() {
		return fmt.Errorf("session start time is required")
	}
	if strings.TrimSpace(s.StimulusTablePath) == "" {
		return fmt.Errorf("stimulus table path is required")
	}
	if strings.TrimSpace(s.RunningSpeed.RunningSpeedPath) == "" ||
		strings.TrimSpace(s.RunningSpeed.RunningSpeedTimestampsPath) == "" {
		return fmt.Errorf("running speed paths are required")
	}
	if len(s.Probes) == 0 {
		return fmt.Errorf("at least one probe is required")
	}
	for i := range s.Probes {
		if err := s.Probes[i].Validate(); err != nil {
			return fmt.Errorf("probe %d: %w", s.Probes[i].ID, err)
		}
	}
	return nil
}

// Validate checks one probe's required fields, the one-row-per
// (probe_id, local_index) channel invariant, and that local unit indices
// map bijectively onto global unit ids.
func (p *Probe) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("probe name is required")
	}
	for _, path := range []struct{ name, value string }{
		{"spike_times_path", p.SpikeTimesPath},
		{"spike_clusters_path", p.SpikeClustersPath},
		{"mean_waveforms_path", p.MeanWaveformsPath},
		{"lfp.input_data_path", p.LFP.InputDataPath},
		{"lfp.input_timestamps_path", p.LFP.InputTimestampsPath},
		{"lfp.input_channels_path", p.LFP.InputChannelsPath},
		{"lfp.output_path", p.LFP.OutputPath},
	} {
		if strings.TrimSpace(path.value) == "" {
			return fmt.Errorf("%s is required", path.name)
		}
	}

	seenLocal := make(map[int64]struct{}, len(p.Channels))
	for _, ch := range p.Channels {
		if ch.ProbeID != p.ID {
			return fmt.Errorf("channel %d carries probe_id %d", ch.ID, ch.ProbeID)
		}
		if _, ok := seenLocal[ch.LocalIndex]; ok {
			return fmt.Errorf("duplicate channel local_index %d", ch.LocalIndex)
		}
		seenLocal[ch.LocalIndex] = struct{}{}
	}

	if _, err := localToGlobalUnitMap(p.Units); err != nil {
		return err
	}
	return nil
}

// LocalToGlobalUnitMap maps probe-local unit indices to global unit ids.
func (p *Probe) LocalToGlobalUnitMap() map[int64]int64 {
	m, _ := localToGlobalUnitMap(p.Units)
	return m
}

func localToGlobalUnitMap(units []Unit) (map[int64]int64, error) {
	m := make(map[int64]int64, len(units))
	seenGlobal := make(map[int64]struct{}, len(units))
	for _, u := range units {
		if _, ok := m[u.LocalIndex]; ok {
			return nil, fmt.Errorf("unit local_index %d appears twice", u.LocalIndex)
		}
		if _, ok := seenGlobal[u.ID]; ok {
			return nil, fmt.Errorf("unit id %d appears twice", u.ID)
		}
		m[u.LocalIndex] = u.ID
		seenGlobal[u.ID] = struct{}{}
	}
	return m, nil
}
