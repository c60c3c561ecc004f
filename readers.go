package ecephys

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"ecephys-nwb/nwb"
)

// StimulusTableRenames is applied to stimulus table columns when no
// rename map is supplied.
var StimulusTableRenames = map[string]string{
	"Start": "start_time",
	"End":   "stop_time",
}

// ReadSpikeTimesToDictionary reads per-spike times and per-spike unit
// assignments into a lookup keyed by unit id, each group sorted
// ascending. When localToGlobal is supplied, keys are remapped to global
// unit ids; spikes whose local unit is absent from the map are dropped
// with a warning. Both arrays must have equal length.
func ReadSpikeTimesToDictionary(log *zap.Logger, spikeTimesPath, spikeUnitsPath string, localToGlobal map[int64]int64) (map[int64][]float64, error) {
	if log == nil {
		log = zap.NewNop()
	}
	times, _, err := readNpyFloats(spikeTimesPath)
	if err != nil {
		return nil, fmt.Errorf("load spike times: %w", err)
	}
	units, _, err := readNpyInts(spikeUnitsPath)
	if err != nil {
		return nil, fmt.Errorf("load spike units: %w", err)
	}
	if len(times) != len(units) {
		return nil, fmt.Errorf("spike times (%d) and spike units (%d) differ in length", len(times), len(units))
	}

	grouped := make(map[int64][]float64)
	for i, unit := range units {
		grouped[unit] = append(grouped[unit], times[i])
	}

	locals := make([]int64, 0, len(grouped))
	for local := range grouped {
		locals = append(locals, local)
	}
	sort.Slice(locals, func(i, j int) bool { return locals[i] < locals[j] })

	out := make(map[int64][]float64, len(grouped))
	for _, local := range locals {
		unitTimes := grouped[local]
		sort.Float64s(unitTimes)
		if localToGlobal == nil {
			out[local] = unitTimes
			continue
		}
		global, ok := localToGlobal[local]
		if !ok {
			log.Warn("unable to find unit while reading spike times", zap.Int64("local_unit", local))
			continue
		}
		out[global] = unitTimes
	}
	return out, nil
}

// ReadWaveformsToDictionary reads a units x samples x channels waveform
// array into a lookup keyed by unit id. When peakChannels is supplied
// only the vector at each unit's peak channel is kept; otherwise the
// full samples x channels slice is kept. Units absent from localToGlobal
// are dropped with a warning.
func ReadWaveformsToDictionary(log *zap.Logger, waveformsPath string, localToGlobal map[int64]int64, peakChannels map[int64]int) (map[int64]*Waveform, error) {
	if log == nil {
		log = zap.NewNop()
	}
	data, shape, err := readNpyFloats(waveformsPath)
	if err != nil {
		return nil, fmt.Errorf("load waveforms: %w", err)
	}
	if len(shape) != 3 {
		return nil, fmt.Errorf("waveforms must be units x samples x channels, got shape %v", shape)
	}
	nUnits, nSamples, nChannels := shape[0], shape[1], shape[2]

	out := make(map[int64]*Waveform, nUnits)
	for local := 0; local < nUnits; local++ {
		unitID := int64(local)
		if localToGlobal != nil {
			global, ok := localToGlobal[unitID]
			if !ok {
				log.Warn("unable to find unit while reading waveforms", zap.Int64("local_unit", unitID))
				continue
			}
			unitID = global
		}

		base := local * nSamples * nChannels
		if peakChannels != nil {
			peak, ok := peakChannels[unitID]
			if !ok {
				return nil, fmt.Errorf("no peak channel for unit %d", unitID)
			}
			if peak < 0 || peak >= nChannels {
				return nil, fmt.Errorf("peak channel %d for unit %d outside %d channels", peak, unitID, nChannels)
			}
			vec := make([]float64, nSamples)
			for s := 0; s < nSamples; s++ {
				vec[s] = data[base+s*nChannels+peak]
			}
			out[unitID] = &Waveform{Samples: nSamples, Channels: 1, Data: vec}
			continue
		}
		full := make([]float64, nSamples*nChannels)
		copy(full, data[base:base+nSamples*nChannels])
		out[unitID] = &Waveform{Samples: nSamples, Channels: nChannels, Data: full}
	}
	return out, nil
}

// ReadRunningSpeed reads running speed values and their sample
// timestamps. The association is positional; lengths are deliberately
// not validated here.
func ReadRunningSpeed(valuesPath, timestampsPath string) (RunningSpeed, error) {
	values, _, err := readNpyFloats(valuesPath)
	if err != nil {
		return RunningSpeed{}, fmt.Errorf("load running speed values: %w", err)
	}
	timestamps, _, err := readNpyFloats(timestampsPath)
	if err != nil {
		return RunningSpeed{}, fmt.Errorf("load running speed timestamps: %w", err)
	}
	return RunningSpeed{Timestamps: timestamps, Values: values}, nil
}

// ReadLFPChannelIndices reads the probe-local channel subset retained by
// LFP subsampling.
func ReadLFPChannelIndices(path string) ([]int64, error) {
	channels, _, err := readNpyInts(path)
	if err != nil {
		return nil, fmt.Errorf("load lfp channels: %w", err)
	}
	return channels, nil
}

// ReadStimulusTable loads the session's stimulus table and applies
// column renames (defaulting to StimulusTableRenames). Only CSV input is
// recognized; any other extension is a fatal format error.
func ReadStimulusTable(path string, renames map[string]string) (*nwb.Table, error) {
	if renames == nil {
		renames = StimulusTableRenames
	}
	if ext := filepath.Ext(path); ext != ".csv" {
		return nil, fmt.Errorf("unrecognized stimulus table extension: %s", ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read stimulus table %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("stimulus table %s is empty", path)
	}

	header := rows[0]
	table := nwb.NewTable("stimulus_presentations")
	for col, name := range header {
		values := make([]any, 0, len(rows)-1)
		for _, row := range rows[1:] {
			if col >= len(row) {
				return nil, fmt.Errorf("stimulus table %s: short row", path)
			}
			values = append(values, inferCell(row[col]))
		}
		if err := table.AddColumn(name, "", values); err != nil {
			return nil, err
		}
	}
	table.RenameColumns(renames)
	return table, nil
}

// inferCell parses numeric cells as float64 and leaves the rest as text.
func inferCell(cell string) any {
	if v, err := strconv.ParseFloat(cell, 64); err == nil {
		return v
	}
	return cell
}
