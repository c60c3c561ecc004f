package nwb

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrClosed is returned when a read handle is used after Close.
var ErrClosed = errors.New("nwb: file handle is closed")

const schemaDDL = `
CREATE TABLE nwb_meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE devices (
	name TEXT PRIMARY KEY
);
CREATE TABLE electrode_groups (
	name TEXT PRIMARY KEY,
	description TEXT NOT NULL,
	location TEXT NOT NULL,
	device TEXT NOT NULL REFERENCES devices(name)
);
CREATE TABLE dynamic_tables (
	name TEXT PRIMARY KEY,
	index_name TEXT NOT NULL,
	ids BLOB NOT NULL
);
CREATE TABLE dynamic_columns (
	table_name TEXT NOT NULL REFERENCES dynamic_tables(name),
	position INTEGER NOT NULL,
	name TEXT NOT NULL,
	description TEXT NOT NULL,
	ragged INTEGER NOT NULL,
	payload BLOB NOT NULL,
	ragged_index BLOB,
	PRIMARY KEY (table_name, name)
);
CREATE TABLE acquisitions (
	name TEXT PRIMARY KEY,
	unit TEXT NOT NULL,
	shape TEXT NOT NULL,
	compression TEXT NOT NULL,
	num_samples INTEGER NOT NULL,
	num_values INTEGER NOT NULL,
	data BLOB,
	timestamps BLOB
);
CREATE TABLE region_refs (
	name TEXT PRIMARY KEY,
	table_name TEXT NOT NULL,
	description TEXT NOT NULL,
	indices BLOB NOT NULL
);
CREATE TABLE links (
	name TEXT PRIMARY KEY,
	file_path TEXT NOT NULL,
	dataset TEXT NOT NULL,
	region TEXT NOT NULL REFERENCES region_refs(name),
	num_samples INTEGER NOT NULL,
	num_values INTEGER NOT NULL
);
`

// Write serializes the file to path, replacing any existing file. Parent
// directories are created. A failed write may leave a partial file
// behind; callers treat the write as all-or-nothing.
func (f *File) Write(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("replace %s: %w", path, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer db.Close()

	if _, err := db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("initialize %s: %w", path, err)
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := f.writeMeta(tx); err != nil {
		return err
	}
	if err := f.writeStructure(tx); err != nil {
		return err
	}
	for _, ts := range f.acquisitions {
		if err := writeAcquisition(tx, ts); err != nil {
			return err
		}
	}
	for name, tbl := range map[string]*Table{
		"electrodes":             f.electrodes,
		"units":                  f.units,
		"stimulus_presentations": f.stimulusPresentations,
	} {
		if tbl == nil {
			continue
		}
		if err := writeTable(tx, name, tbl); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (f *File) writeMeta(tx *sql.Tx) error {
	meta := map[string]string{
		"format_version":      FormatVersion,
		"identifier":          f.Identifier,
		"session_description": f.SessionDescription,
		"session_start_time":  f.SessionStartTime.UTC().Format(time.RFC3339),
	}
	for k, v := range meta {
		if _, err := tx.Exec(`INSERT INTO nwb_meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("write meta %s: %w", k, err)
		}
	}
	return nil
}

func (f *File) writeStructure(tx *sql.Tx) error {
	for _, d := range f.devices {
		if _, err := tx.Exec(`INSERT INTO devices (name) VALUES (?)`, d); err != nil {
			return fmt.Errorf("write device %s: %w", d, err)
		}
	}
	for _, g := range f.groups {
		if _, err := tx.Exec(
			`INSERT INTO electrode_groups (name, description, location, device) VALUES (?, ?, ?, ?)`,
			g.Name, g.Description, g.Location, g.Device,
		); err != nil {
			return fmt.Errorf("write electrode group %s: %w", g.Name, err)
		}
	}
	for _, r := range f.regions {
		indices := make([]int64, len(r.Indices))
		for i, idx := range r.Indices {
			indices[i] = int64(idx)
		}
		if _, err := tx.Exec(
			`INSERT INTO region_refs (name, table_name, description, indices) VALUES (?, ?, ?, ?)`,
			r.Name, r.Table, r.Description, encodeInts(indices),
		); err != nil {
			return fmt.Errorf("write region %s: %w", r.Name, err)
		}
	}
	for _, l := range f.links {
		if _, err := tx.Exec(
			`INSERT INTO links (name, file_path, dataset, region, num_samples, num_values) VALUES (?, ?, ?, ?, ?, ?)`,
			l.Name, l.FilePath, l.Dataset, l.Region, l.NumSamples, l.NumValues,
		); err != nil {
			return fmt.Errorf("write link %s: %w", l.Name, err)
		}
	}
	return nil
}

func writeAcquisition(tx *sql.Tx, ts *TimeSeries) error {
	compression := compressionNone
	if ts.Compressed {
		compression = compressionSnappy
	}
	shape, err := json.Marshal(ts.Shape)
	if err != nil {
		return err
	}
	data, err := encodeFloats(ts.Data, compression)
	if err != nil {
		return fmt.Errorf("encode %s data: %w", ts.Name, err)
	}
	timestamps, err := encodeFloats(ts.Timestamps, compression)
	if err != nil {
		return fmt.Errorf("encode %s timestamps: %w", ts.Name, err)
	}
	numSamples := len(ts.Timestamps)
	if _, err := tx.Exec(
		`INSERT INTO acquisitions (name, unit, shape, compression, num_samples, num_values, data, timestamps)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ts.Name, ts.Unit, string(shape), compression, numSamples, len(ts.Data), data, timestamps,
	); err != nil {
		return fmt.Errorf("write acquisition %s: %w", ts.Name, err)
	}
	return nil
}

func writeTable(tx *sql.Tx, name string, t *Table) error {
	ids := t.IDs()
	if ids == nil {
		ids = make([]int64, t.Len())
		for i := range ids {
			ids[i] = int64(i)
		}
	}
	if _, err := tx.Exec(
		`INSERT INTO dynamic_tables (name, index_name, ids) VALUES (?, ?, ?)`,
		name, t.IndexName(), encodeInts(ids),
	); err != nil {
		return fmt.Errorf("write table %s: %w", name, err)
	}
	for pos, colName := range t.ColumnNames() {
		col, _ := t.Column(colName)
		var payload, raggedIndex []byte
		var err error
		if col.Ragged {
			payload, err = encodeFloats(col.FlatValues, compressionSnappy)
			if err != nil {
				return fmt.Errorf("encode table %s column %s: %w", name, colName, err)
			}
			raggedIndex = encodeInts(col.Index)
		} else {
			payload, err = json.Marshal(col.Values)
			if err != nil {
				return fmt.Errorf("encode table %s column %s: %w", name, colName, err)
			}
		}
		ragged := 0
		if col.Ragged {
			ragged = 1
		}
		if _, err := tx.Exec(
			`INSERT INTO dynamic_columns (table_name, position, name, description, ragged, payload, ragged_index)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			name, pos, colName, col.Description, ragged, payload, raggedIndex,
		); err != nil {
			return fmt.Errorf("write table %s column %s: %w", name, colName, err)
		}
	}
	return nil
}

// IO is an open read handle on a container file.
type IO struct {
	path string
	db   *sql.DB
}

// Open opens path for reading and verifies it is a container file.
func Open(path string) (*IO, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	var version string
	if err := db.QueryRow(`SELECT value FROM nwb_meta WHERE key = 'format_version'`).Scan(&version); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s is not a container file: %w", path, err)
	}
	return &IO{path: path, db: db}, nil
}

// Path returns the file path this handle was opened on.
func (io *IO) Path() string { return io.path }

// Close releases the handle. Further reads return ErrClosed.
func (io *IO) Close() error {
	if io.db == nil {
		return nil
	}
	err := io.db.Close()
	io.db = nil
	return err
}

// Meta returns one metadata value by key.
func (io *IO) Meta(key string) (string, error) {
	if io.db == nil {
		return "", ErrClosed
	}
	var value string
	if err := io.db.QueryRow(`SELECT value FROM nwb_meta WHERE key = ?`, key).Scan(&value); err != nil {
		return "", fmt.Errorf("read meta %s: %w", key, err)
	}
	return value, nil
}

// SeriesInfo describes a stored acquisition series without loading it.
type SeriesInfo struct {
	Name        string
	Unit        string
	Shape       []int
	Compression string
	NumSamples  int
	NumValues   int
}

// AcquisitionInfo returns metadata for a named acquisition series.
func (io *IO) AcquisitionInfo(name string) (*SeriesInfo, error) {
	if io.db == nil {
		return nil, ErrClosed
	}
	info := &SeriesInfo{Name: name}
	var shape string
	err := io.db.QueryRow(
		`SELECT unit, shape, compression, num_samples, num_values FROM acquisitions WHERE name = ?`, name,
	).Scan(&info.Unit, &shape, &info.Compression, &info.NumSamples, &info.NumValues)
	if err != nil {
		return nil, fmt.Errorf("acquisition %s: %w", name, err)
	}
	if err := json.Unmarshal([]byte(shape), &info.Shape); err != nil {
		return nil, fmt.Errorf("acquisition %s shape: %w", name, err)
	}
	return info, nil
}

// Acquisition loads a named acquisition series, decompressing as needed.
func (io *IO) Acquisition(name string) (*TimeSeries, error) {
	if io.db == nil {
		return nil, ErrClosed
	}
	var (
		unit, shape, compression string
		data, timestamps         []byte
	)
	err := io.db.QueryRow(
		`SELECT unit, shape, compression, data, timestamps FROM acquisitions WHERE name = ?`, name,
	).Scan(&unit, &shape, &compression, &data, &timestamps)
	if err != nil {
		return nil, fmt.Errorf("acquisition %s: %w", name, err)
	}
	ts := &TimeSeries{Name: name, Unit: unit, Compressed: compression == compressionSnappy}
	if err := json.Unmarshal([]byte(shape), &ts.Shape); err != nil {
		return nil, fmt.Errorf("acquisition %s shape: %w", name, err)
	}
	if ts.Data, err = decodeFloats(data, compression); err != nil {
		return nil, fmt.Errorf("acquisition %s data: %w", name, err)
	}
	if ts.Timestamps, err = decodeFloats(timestamps, compression); err != nil {
		return nil, fmt.Errorf("acquisition %s timestamps: %w", name, err)
	}
	return ts, nil
}

// Table loads a named dynamic table.
func (io *IO) Table(name string) (*Table, error) {
	if io.db == nil {
		return nil, ErrClosed
	}
	var (
		indexName string
		idsBlob   []byte
	)
	if err := io.db.QueryRow(
		`SELECT index_name, ids FROM dynamic_tables WHERE name = ?`, name,
	).Scan(&indexName, &idsBlob); err != nil {
		return nil, fmt.Errorf("table %s: %w", name, err)
	}
	ids, err := decodeInts(idsBlob)
	if err != nil {
		return nil, fmt.Errorf("table %s ids: %w", name, err)
	}
	t := NewTable(name)
	t.SetIDs(indexName, ids)

	rows, err := io.db.Query(
		`SELECT name, description, ragged, payload, ragged_index
		 FROM dynamic_columns WHERE table_name = ? ORDER BY position`, name,
	)
	if err != nil {
		return nil, fmt.Errorf("table %s columns: %w", name, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			colName, description string
			ragged               int
			payload, raggedIndex []byte
		)
		if err := rows.Scan(&colName, &description, &ragged, &payload, &raggedIndex); err != nil {
			return nil, err
		}
		if ragged != 0 {
			values, err := decodeFloats(payload, compressionSnappy)
			if err != nil {
				return nil, fmt.Errorf("table %s column %s: %w", name, colName, err)
			}
			index, err := decodeInts(raggedIndex)
			if err != nil {
				return nil, fmt.Errorf("table %s column %s index: %w", name, colName, err)
			}
			if err := t.AddRaggedColumn(colName, description, values, index); err != nil {
				return nil, err
			}
			continue
		}
		var values []any
		if err := json.Unmarshal(payload, &values); err != nil {
			return nil, fmt.Errorf("table %s column %s: %w", name, colName, err)
		}
		if err := t.AddColumn(colName, description, values); err != nil {
			return nil, err
		}
	}
	return t, rows.Err()
}

// Region loads a named region reference.
func (io *IO) Region(name string) (*RegionRef, error) {
	if io.db == nil {
		return nil, ErrClosed
	}
	r := &RegionRef{Name: name}
	var indices []byte
	if err := io.db.QueryRow(
		`SELECT table_name, description, indices FROM region_refs WHERE name = ?`, name,
	).Scan(&r.Table, &r.Description, &indices); err != nil {
		return nil, fmt.Errorf("region %s: %w", name, err)
	}
	raw, err := decodeInts(indices)
	if err != nil {
		return nil, fmt.Errorf("region %s indices: %w", name, err)
	}
	r.Indices = make([]int, len(raw))
	for i, v := range raw {
		r.Indices[i] = int(v)
	}
	return r, nil
}

// Links lists the file's cross-file dataset links.
func (io *IO) Links() ([]*LinkedSeries, error) {
	if io.db == nil {
		return nil, ErrClosed
	}
	rows, err := io.db.Query(`SELECT name, file_path, dataset, region, num_samples, num_values FROM links ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var links []*LinkedSeries
	for rows.Next() {
		l := &LinkedSeries{}
		if err := rows.Scan(&l.Name, &l.FilePath, &l.Dataset, &l.Region, &l.NumSamples, &l.NumValues); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// LinkedSeries dereferences a named link: the source file is opened at
// its recorded path and the dataset loaded from it. A missing source
// file or a dataset that no longer matches the link is a broken link.
func (io *IO) LinkedSeries(name string) (*TimeSeries, error) {
	if io.db == nil {
		return nil, ErrClosed
	}
	l := &LinkedSeries{}
	if err := io.db.QueryRow(
		`SELECT file_path, dataset, num_samples, num_values FROM links WHERE name = ?`, name,
	).Scan(&l.FilePath, &l.Dataset, &l.NumSamples, &l.NumValues); err != nil {
		return nil, fmt.Errorf("link %s: %w", name, err)
	}
	sub, err := Open(l.FilePath)
	if err != nil {
		return nil, fmt.Errorf("link %s is broken: %w", name, err)
	}
	defer sub.Close()
	ts, err := sub.Acquisition(l.Dataset)
	if err != nil {
		return nil, fmt.Errorf("link %s is broken: %w", name, err)
	}
	if len(ts.Timestamps) != l.NumSamples || len(ts.Data) != l.NumValues {
		return nil, fmt.Errorf("link %s is broken: source dataset %s changed shape", name, l.Dataset)
	}
	ts.Name = name
	return ts, nil
}
