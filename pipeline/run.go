// Package pipeline assembles one session's acquisition outputs into a
// master container file plus one standalone LFP file per probe, linked
// by reference.
package pipeline

import (
	"fmt"
	"strconv"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	ecephys "ecephys-nwb"
	"ecephys-nwb/nwb"
)

// Run executes the full session write. Probes are processed in input
// order; a failure at any point aborts the whole session, possibly
// leaving a partial master file behind. Per-probe LFP file handles stay
// open from linking until after the master file is persisted and are
// released on every exit path.
func Run(opts Options) (res *Result, err error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	session := opts.Session()
	if err := session.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session: %w", err)
	}
	if opts.OutputPath == "" {
		return nil, fmt.Errorf("output path is required")
	}

	file := nwb.NewFile(strconv.FormatInt(opts.SessionID, 10), "EcephysSession", opts.SessionStartTime)

	stimulusTable, err := ecephys.ReadStimulusTable(opts.StimulusTablePath, nil)
	if err != nil {
		return nil, fmt.Errorf("read stimulus table: %w", err)
	}
	// Start times stand in for full presentation timestamps until the
	// stimulus table module emits them.
	startTimes, err := stimulusTable.Float64Column("start_time")
	if err != nil {
		return nil, fmt.Errorf("stimulus table: %w", err)
	}
	if err := file.SetStimulusTimestamps(startTimes); err != nil {
		return nil, err
	}
	file.SetStimulusPresentations(stimulusTable)

	var (
		channelTables []*nwb.Table
		unitTables    []*nwb.Table
		spikeTimes    = make(map[int64][]float64)
		meanWaveforms = make(map[int64][]float64)
		probeOutputs  []ProbeOutput
	)

	for _, probe := range opts.Probes {
		log.Info("found probe", zap.Int64("id", probe.ID), zap.String("name", probe.Name))

		groupName := strconv.FormatInt(probe.ID, 10)
		if err := file.AddDevice(groupName); err != nil {
			return nil, err
		}
		if err := file.AddElectrodeGroup(nwb.ElectrodeGroup{
			Name:     groupName,
			Location: probe.Name,
			Device:   groupName,
		}); err != nil {
			return nil, err
		}

		channelTable, err := ecephys.PrepareProbewiseChannelTable(
			ecephys.ChannelTableFromChannels(probe.Channels), groupName,
		)
		if err != nil {
			return nil, fmt.Errorf("probe %d channel table: %w", probe.ID, err)
		}
		channelTables = append(channelTables, channelTable)
		unitTables = append(unitTables, ecephys.UnitTableFromUnits(probe.Units))

		localToGlobal := probe.LocalToGlobalUnitMap()
		probeSpikes, err := ecephys.ReadSpikeTimesToDictionary(log, probe.SpikeTimesPath, probe.SpikeClustersPath, localToGlobal)
		if err != nil {
			return nil, fmt.Errorf("probe %d spike times: %w", probe.ID, err)
		}
		for unit, times := range probeSpikes {
			spikeTimes[unit] = times
		}

		probeWaveforms, err := ecephys.ReadWaveformsToDictionary(log, probe.MeanWaveformsPath, localToGlobal, nil)
		if err != nil {
			return nil, fmt.Errorf("probe %d waveforms: %w", probe.ID, err)
		}
		for unit, waveform := range probeWaveforms {
			meanWaveforms[unit] = waveform.Data
		}

		lfpPath, err := WriteProbeLFPDataFile(probe.ID, opts.SessionStartTime, probe.LFP)
		if err != nil {
			return nil, fmt.Errorf("probe %d lfp file: %w", probe.ID, err)
		}
		probeOutputs = append(probeOutputs, ProbeOutput{ID: probe.ID, NWBPath: lfpPath})
	}

	electrodes, err := ecephys.ConcatChannelTables(channelTables)
	if err != nil {
		return nil, err
	}
	file.SetElectrodes(electrodes)

	units, err := ecephys.ConcatUnitTables(unitTables)
	if err != nil {
		return nil, err
	}
	if err := ecephys.AddRaggedDataToTable(units, spikeTimes, "spike_times", "times (s) of detected spiking events"); err != nil {
		return nil, err
	}
	if err := ecephys.AddRaggedDataToTable(units, meanWaveforms, "waveform_mean", "mean waveforms on peak channels (and over samples)"); err != nil {
		return nil, err
	}
	file.SetUnits(units)

	runningSpeed, err := ecephys.ReadRunningSpeed(opts.RunningSpeed.RunningSpeedPath, opts.RunningSpeed.RunningSpeedTimestampsPath)
	if err != nil {
		return nil, err
	}
	if err := file.AddAcquisition(&nwb.TimeSeries{
		Name:       "running_speed",
		Unit:       "cm/s",
		Data:       runningSpeed.Values,
		Timestamps: runningSpeed.Timestamps,
	}); err != nil {
		return nil, err
	}

	channelIndexMap, err := buildChannelIndexMap(electrodes)
	if err != nil {
		return nil, err
	}

	// Sub-file handles stay open until the master file is written so
	// every link is resolved against a live source. Callers get either a
	// result or an error, never both.
	probeIOs := make([]*nwb.IO, 0, len(opts.Probes))
	defer func() {
		for _, io := range probeIOs {
			err = multierr.Append(err, io.Close())
		}
		if err != nil {
			res = nil
		}
	}()

	for _, probe := range opts.Probes {
		log.Info("linking lfp file", zap.Int64("probe", probe.ID))

		sub, err := nwb.Open(probe.LFP.OutputPath)
		if err != nil {
			return nil, fmt.Errorf("probe %d lfp file: %w", probe.ID, err)
		}
		probeIOs = append(probeIOs, sub)

		lfpChannels, err := ecephys.ReadLFPChannelIndices(probe.LFP.InputChannelsPath)
		if err != nil {
			return nil, fmt.Errorf("probe %d: %w", probe.ID, err)
		}
		indices := make([]int, 0, len(lfpChannels))
		for _, local := range lfpChannels {
			row, ok := channelIndexMap[probeChannelKey{probe.ID, local}]
			if !ok {
				return nil, fmt.Errorf("probe %d: lfp channel local index %d missing from electrode table", probe.ID, local)
			}
			indices = append(indices, row)
		}

		region, err := file.CreateElectrodeTableRegion(
			fmt.Sprintf("probe_%d_electrodes", probe.ID),
			indices,
			fmt.Sprintf("channels on probe %d", probe.ID),
		)
		if err != nil {
			return nil, err
		}
		if err := file.AddLinkedLFP(sub, probe.ID, region); err != nil {
			return nil, err
		}
	}

	if err := file.Write(opts.OutputPath); err != nil {
		return nil, fmt.Errorf("write master file: %w", err)
	}

	return &Result{NWBPath: opts.OutputPath, ProbeOutputs: probeOutputs}, nil
}

type probeChannelKey struct {
	probeID    int64
	localIndex int64
}

// buildChannelIndexMap maps (probe_id, probe-local channel index) to the
// channel's row position in the master electrode table.
func buildChannelIndexMap(electrodes *nwb.Table) (map[probeChannelKey]int, error) {
	probeIDs, err := electrodes.Int64Column("probe_id")
	if err != nil {
		return nil, err
	}
	localIndices, err := electrodes.Int64Column("local_index")
	if err != nil {
		return nil, err
	}
	m := make(map[probeChannelKey]int, len(probeIDs))
	for row := range probeIDs {
		m[probeChannelKey{probeIDs[row], localIndices[row]}] = row
	}
	return m, nil
}
