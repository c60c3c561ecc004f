package pipeline

import (
	"time"

	"go.uber.org/zap"

	ecephys "ecephys-nwb"
)

// Options configures one session's master-file write.
type Options struct {
	OutputPath        string                    `json:"output_path"`
	SessionID         int64                     `json:"session_id"`
	SessionStartTime  time.Time                 `json:"session_start_time"`
	StimulusTablePath string                    `json:"stimulus_table_path"`
	Probes            []ecephys.Probe           `json:"probes"`
	RunningSpeed      ecephys.RunningSpeedPaths `json:"running_speed"`

	Logger *zap.Logger `json:"-"`
}

// Session collects the validated session aggregate from Options.
func (o *Options) Session() ecephys.Session {
	return ecephys.Session{
		ID:                o.SessionID,
		StartTime:         o.SessionStartTime,
		StimulusTablePath: o.StimulusTablePath,
		Probes:            o.Probes,
		RunningSpeed:      o.RunningSpeed,
	}
}

// ProbeOutput names the standalone LFP file written for one probe.
type ProbeOutput struct {
	ID      int64  `json:"id"`
	NWBPath string `json:"nwb_path"`
}

// Result returns generated output paths.
type Result struct {
	NWBPath      string        `json:"nwb_path"`
	ProbeOutputs []ProbeOutput `json:"probe_outputs"`
}
