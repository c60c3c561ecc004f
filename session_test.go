package ecephys

import (
	"strings"
	"testing"
	"time"
)

func validSession() Session {
	return Session{
		ID:                715093703,
		StartTime:         time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		StimulusTablePath: "stim_table.csv",
		RunningSpeed: RunningSpeedPaths{
			RunningSpeedPath:           "running_speed.npy",
			RunningSpeedTimestampsPath: "running_speed_timestamps.npy",
		},
		Probes: []Probe{validProbe()},
	}
}

func validProbe() Probe {
	return Probe{
		ID:   810755797,
		Name: "probeA",
		Channels: []Channel{
			{ID: 1000, ProbeID: 810755797, LocalIndex: 0},
			{ID: 1001, ProbeID: 810755797, LocalIndex: 1},
		},
		Units: []Unit{
			{ID: 5000, LocalIndex: 0},
			{ID: 5001, LocalIndex: 1},
		},
		SpikeTimesPath:    "spike_times.npy",
		SpikeClustersPath: "spike_clusters.npy",
		MeanWaveformsPath: "mean_waveforms.npy",
		LFP: ProbeLFP{
			InputDataPath:       "lfp.dat",
			InputTimestampsPath: "lfp_timestamps.npy",
			InputChannelsPath:   "lfp_channels.npy",
			OutputPath:          "probe_810755797_lfp.nwb",
		},
	}
}

func TestSessionValidate(t *testing.T) {
	s := validSession()
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate() on valid session: %v", err)
	}

	// id presence is the input schema's concern; 0 is a legitimate id
	s.ID = 0
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate() must accept session id 0: %v", err)
	}
}

func TestSessionValidateRequiredFields(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Session)
		want   string
	}{
		{"missing start time", func(s *Session) { s.StartTime = time.Time{} }, "start time"},
		{"missing stimulus table", func(s *Session) { s.StimulusTablePath = " " }, "stimulus table"},
		{"missing running speed", func(s *Session) { s.RunningSpeed.RunningSpeedPath = "" }, "running speed"},
		{"no probes", func(s *Session) { s.Probes = nil }, "at least one probe"},
	}
	for _, tc := range cases {
		s := validSession()
		tc.mutate(&s)
		err := s.Validate()
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: got %v, want error containing %q", tc.name, err, tc.want)
		}
	}
}

func TestProbeValidateChannelInvariants(t *testing.T) {
	p := validProbe()
	p.Channels[1].ProbeID = 999
	if err := p.Validate(); err == nil || !strings.Contains(err.Error(), "probe_id") {
		t.Fatalf("expected foreign probe_id error, got %v", err)
	}

	p = validProbe()
	p.Channels[1].LocalIndex = 0
	if err := p.Validate(); err == nil || !strings.Contains(err.Error(), "local_index") {
		t.Fatalf("expected duplicate local_index error, got %v", err)
	}
}

func TestProbeValidateUnitBijection(t *testing.T) {
	p := validProbe()
	p.Units[1].LocalIndex = 0
	if err := p.Validate(); err == nil || !strings.Contains(err.Error(), "local_index") {
		t.Fatalf("expected duplicate unit local_index error, got %v", err)
	}

	p = validProbe()
	p.Units[1].ID = 5000
	if err := p.Validate(); err == nil || !strings.Contains(err.Error(), "appears twice") {
		t.Fatalf("expected duplicate unit id error, got %v", err)
	}
}

func TestLocalToGlobalUnitMap(t *testing.T) {
	p := validProbe()
	m := p.LocalToGlobalUnitMap()
	if len(m) != 2 || m[0] != 5000 || m[1] != 5001 {
		t.Fatalf("unit map: got %v", m)
	}
}
