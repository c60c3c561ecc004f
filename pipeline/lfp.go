package pipeline

import (
	"fmt"
	"strconv"
	"time"

	ecephys "ecephys-nwb"
	"ecephys-nwb/nwb"
)

// WriteProbeLFPDataFile writes one probe's standalone container file
// holding a single compressed LFP series, and returns its path. The
// file becomes the durable target of the master file's LFP link.
func WriteProbeLFPDataFile(probeID int64, sessionStartTime time.Time, lfp ecephys.ProbeLFP) (string, error) {
	channels, err := ecephys.ReadLFPChannelIndices(lfp.InputChannelsPath)
	if err != nil {
		return "", err
	}

	data, timestamps, numSamples, err := ecephys.ContinuousFile{
		DataPath:       lfp.InputDataPath,
		TimestampsPath: lfp.InputTimestampsPath,
		TotalChannels:  len(channels),
	}.Load()
	if err != nil {
		return "", err
	}

	file := nwb.NewFile(strconv.FormatInt(probeID, 10), "EcephysProbe", sessionStartTime)
	if err := file.AddAcquisition(&nwb.TimeSeries{
		Name:       nwb.SubsampledLFPName,
		Data:       data,
		Timestamps: timestamps,
		Shape:      []int{numSamples, len(channels)},
		Compressed: true,
	}); err != nil {
		return "", err
	}
	if err := file.Write(lfp.OutputPath); err != nil {
		return "", fmt.Errorf("write lfp file for probe %d: %w", probeID, err)
	}
	return lfp.OutputPath, nil
}
