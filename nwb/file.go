// Package nwb assembles and persists standardized neurophysiology
// container files. A File is built in memory (devices, electrode groups,
// dynamic tables, time series, region references, cross-file links) and
// serialized in one pass; datasets are compressed on disk. Sub-files are
// linked by reference, never by copy: the link is resolved against an
// open read handle at link time and dereferenced again at read time.
package nwb

import (
	"fmt"
	"time"
)

// FormatVersion identifies the on-disk layout written by this package.
const FormatVersion = "2.0"

// ElectrodeGroup is the acquisition-hardware grouping channels belong to,
// one per probe.
type ElectrodeGroup struct {
	Name        string
	Description string
	Location    string
	Device      string
}

// TimeSeries is one named series of samples. Shape describes Data for
// multi-dimensional series (e.g. samples x channels, row-major); a nil
// Shape means Data is one-dimensional. Compressed series are stored
// snappy-encoded.
type TimeSeries struct {
	Name       string
	Unit       string
	Data       []float64
	Timestamps []float64
	Shape      []int
	Compressed bool
}

// RegionRef is a named reference to a subset of rows of a table.
type RegionRef struct {
	Name        string
	Table       string
	Description string
	Indices     []int
}

// LinkedSeries references a dataset stored in another file. NumSamples
// and NumValues are captured from the source at link time so a broken
// link is detectable when dereferenced.
type LinkedSeries struct {
	Name       string
	FilePath   string
	Dataset    string
	Region     string
	NumSamples int
	NumValues  int
}

// File is an in-memory container file under assembly.
type File struct {
	Identifier         string
	SessionDescription string
	SessionStartTime   time.Time

	devices               []string
	groups                []ElectrodeGroup
	electrodes            *Table
	units                 *Table
	stimulusPresentations *Table
	acquisitions          []*TimeSeries
	regions               []*RegionRef
	links                 []*LinkedSeries
}

// NewFile returns an empty container file.
func NewFile(identifier, sessionDescription string, sessionStartTime time.Time) *File {
	return &File{
		Identifier:         identifier,
		SessionDescription: sessionDescription,
		SessionStartTime:   sessionStartTime,
	}
}

// AddDevice registers an acquisition device by name.
func (f *File) AddDevice(name string) error {
	for _, d := range f.devices {
		if d == name {
			return fmt.Errorf("device %q already present", name)
		}
	}
	f.devices = append(f.devices, name)
	return nil
}

// AddElectrodeGroup registers an electrode group. Its device must have
// been added first.
func (f *File) AddElectrodeGroup(g ElectrodeGroup) error {
	found := false
	for _, d := range f.devices {
		if d == g.Device {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("electrode group %q references unknown device %q", g.Name, g.Device)
	}
	for _, have := range f.groups {
		if have.Name == g.Name {
			return fmt.Errorf("electrode group %q already present", g.Name)
		}
	}
	f.groups = append(f.groups, g)
	return nil
}

// SetElectrodes assigns the global electrode table.
func (f *File) SetElectrodes(t *Table) { f.electrodes = t }

// Electrodes returns the global electrode table, or nil.
func (f *File) Electrodes() *Table { return f.electrodes }

// SetUnits assigns the global unit table.
func (f *File) SetUnits(t *Table) { f.units = t }

// Units returns the global unit table, or nil.
func (f *File) Units() *Table { return f.units }

// SetStimulusPresentations assigns the stimulus presentation table.
func (f *File) SetStimulusPresentations(t *Table) { f.stimulusPresentations = t }

// SetStimulusTimestamps records stimulus onset times as an acquisition
// series.
func (f *File) SetStimulusTimestamps(timestamps []float64) error {
	return f.AddAcquisition(&TimeSeries{Name: "stimulus_timestamps", Timestamps: timestamps})
}

// AddAcquisition appends a named time series. Names are unique per file.
func (f *File) AddAcquisition(ts *TimeSeries) error {
	if ts.Name == "" {
		return fmt.Errorf("acquisition series requires a name")
	}
	for _, have := range f.acquisitions {
		if have.Name == ts.Name {
			return fmt.Errorf("acquisition %q already present", ts.Name)
		}
	}
	f.acquisitions = append(f.acquisitions, ts)
	return nil
}

// CreateElectrodeTableRegion creates a named region reference over the
// electrode table. The table must already be assigned and every index
// must fall inside it.
func (f *File) CreateElectrodeTableRegion(name string, indices []int, description string) (*RegionRef, error) {
	if f.electrodes == nil {
		return nil, fmt.Errorf("region %q: electrode table is not set", name)
	}
	for _, r := range f.regions {
		if r.Name == name {
			return nil, fmt.Errorf("region %q already present", name)
		}
	}
	n := f.electrodes.Len()
	for _, idx := range indices {
		if idx < 0 || idx >= n {
			return nil, fmt.Errorf("region %q: row index %d outside electrode table of %d rows", name, idx, n)
		}
	}
	region := &RegionRef{
		Name:        name,
		Table:       "electrodes",
		Description: description,
		Indices:     append([]int(nil), indices...),
	}
	f.regions = append(f.regions, region)
	return region, nil
}

// AddLinkedLFP attaches a per-probe LFP series whose data lives in sub,
// an open handle on the probe's standalone LFP file. The source dataset
// is resolved through the handle now; a closed handle fails immediately.
// The handle must stay open until the master file write completes.
func (f *File) AddLinkedLFP(sub *IO, probeID int64, region *RegionRef) error {
	info, err := sub.AcquisitionInfo(SubsampledLFPName)
	if err != nil {
		return fmt.Errorf("link lfp for probe %d: %w", probeID, err)
	}
	name := fmt.Sprintf("probe_%d_lfp_data", probeID)
	for _, have := range f.links {
		if have.Name == name {
			return fmt.Errorf("linked series %q already present", name)
		}
	}
	f.links = append(f.links, &LinkedSeries{
		Name:       name,
		FilePath:   sub.Path(),
		Dataset:    SubsampledLFPName,
		Region:     region.Name,
		NumSamples: info.NumSamples,
		NumValues:  info.NumValues,
	})
	return nil
}

// SubsampledLFPName is the dataset name carried by per-probe LFP files.
const SubsampledLFPName = "subsampled_lfp_data"
