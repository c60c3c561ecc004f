package lims

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"
)

// SessionRecord is one row of the released session listing.
type SessionRecord struct {
	ID                int64  `json:"id" parquet:"name=id, type=INT64"`
	SpecimenID        int64  `json:"specimen_id" parquet:"name=specimen_id, type=INT64"`
	SessionType       string `json:"session_type" parquet:"name=session_type, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	DateOfAcquisition string `json:"date_of_acquisition" parquet:"name=date_of_acquisition, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	ProbeCount        int64  `json:"probe_count" parquet:"name=probe_count, type=INT64"`
	UnitCount         int64  `json:"unit_count" parquet:"name=unit_count, type=INT64"`
}

var sessionsCSVHeader = []string{
	"id", "specimen_id", "session_type", "date_of_acquisition", "probe_count", "unit_count",
}

// WriteSessions persists a session listing to path, as CSV or Parquet
// depending on the extension.
func WriteSessions(path string, sessions []SessionRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		return writeSessionsCSV(path, sessions)
	case ".parquet":
		return writeSessionsParquet(path, sessions)
	default:
		return fmt.Errorf("unsupported sessions format %q (expected .csv|.parquet)", ext)
	}
}

// ReadSessions loads a previously written session listing from path.
func ReadSessions(path string) ([]SessionRecord, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		return readSessionsCSV(path)
	case ".parquet":
		return readSessionsParquet(path)
	default:
		return nil, fmt.Errorf("unsupported sessions format %q (expected .csv|.parquet)", ext)
	}
}

func writeSessionsCSV(path string, sessions []SessionRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(sessionsCSVHeader); err != nil {
		return err
	}
	for _, s := range sessions {
		row := []string{
			strconv.FormatInt(s.ID, 10),
			strconv.FormatInt(s.SpecimenID, 10),
			s.SessionType,
			s.DateOfAcquisition,
			strconv.FormatInt(s.ProbeCount, 10),
			strconv.FormatInt(s.UnitCount, 10),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func readSessionsCSV(path string) ([]SessionRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read sessions csv %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sessions csv %s is empty", path)
	}

	sessions := make([]SessionRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) != len(sessionsCSVHeader) {
			return nil, fmt.Errorf("sessions csv %s: row %d has %d fields, want %d", path, i+1, len(row), len(sessionsCSVHeader))
		}
		var (
			s    SessionRecord
			errs [4]error
		)
		s.ID, errs[0] = strconv.ParseInt(row[0], 10, 64)
		s.SpecimenID, errs[1] = strconv.ParseInt(row[1], 10, 64)
		s.SessionType = row[2]
		s.DateOfAcquisition = row[3]
		s.ProbeCount, errs[2] = strconv.ParseInt(row[4], 10, 64)
		s.UnitCount, errs[3] = strconv.ParseInt(row[5], 10, 64)
		for _, err := range errs {
			if err != nil {
				return nil, fmt.Errorf("sessions csv %s: row %d: %w", path, i+1, err)
			}
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

func writeSessionsParquet(path string, sessions []SessionRecord) error {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return err
	}
	pw, err := writer.NewParquetWriter(fw, new(SessionRecord), 4)
	if err != nil {
		return err
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, s := range sessions {
		if err := pw.Write(s); err != nil {
			_ = pw.WriteStop()
			_ = fw.Close()
			return err
		}
	}
	if err := pw.WriteStop(); err != nil {
		_ = fw.Close()
		return err
	}
	return fw.Close()
}

func readSessionsParquet(path string) ([]SessionRecord, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, err
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(SessionRecord), 4)
	if err != nil {
		return nil, fmt.Errorf("read sessions parquet %s: %w", path, err)
	}
	defer pr.ReadStop()

	sessions := make([]SessionRecord, pr.GetNumRows())
	if len(sessions) == 0 {
		return nil, nil
	}
	if err := pr.Read(&sessions); err != nil {
		return nil, fmt.Errorf("read sessions parquet %s: %w", path, err)
	}
	return sessions, nil
}
