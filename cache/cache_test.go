package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ecephys-nwb/lims"
	"ecephys-nwb/nwb"
)

type fakeFetch struct {
	sessions     []lims.SessionRecord
	sessionCalls int
	dataCalls    int
}

func (f *fakeFetch) GetSessions(destination string) ([]lims.SessionRecord, error) {
	f.sessionCalls++
	if err := lims.WriteSessions(destination, f.sessions); err != nil {
		return nil, err
	}
	return f.sessions, nil
}

func (f *fakeFetch) GetSessionData(destination string, sessionID int64) (string, error) {
	f.dataCalls++
	file := nwb.NewFile("715093703", "EcephysSession", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	if err := file.Write(destination); err != nil {
		return "", err
	}
	return destination, nil
}

func testListing() []lims.SessionRecord {
	return []lims.SessionRecord{
		{ID: 715093703, SpecimenID: 699733581, SessionType: "brain_observatory_1.1", DateOfAcquisition: "2019-01-19", ProbeCount: 6, UnitCount: 884},
	}
}

func TestGetSessionsFetchesOnceThenHitsCache(t *testing.T) {
	fetch := &fakeFetch{sessions: testListing()}
	c := NewSessionCache(t.TempDir(), fetch)

	first, err := c.GetSessions()
	if err != nil {
		t.Fatalf("GetSessions() error: %v", err)
	}
	if len(first) != 1 || first[0].ID != 715093703 {
		t.Fatalf("listing: %+v", first)
	}
	if fetch.sessionCalls != 1 {
		t.Fatalf("fetch calls after miss: got %d", fetch.sessionCalls)
	}

	second, err := c.GetSessions()
	if err != nil {
		t.Fatalf("GetSessions() on warm cache: %v", err)
	}
	if fetch.sessionCalls != 1 {
		t.Fatalf("warm cache must not refetch, got %d calls", fetch.sessionCalls)
	}
	if len(second) != 1 || second[0] != first[0] {
		t.Fatalf("warm listing: %+v", second)
	}
}

func TestGetSessionDataFetchesOnceThenHitsCache(t *testing.T) {
	fetch := &fakeFetch{}
	c := NewSessionCache(t.TempDir(), fetch)

	io, err := c.GetSessionData(715093703)
	if err != nil {
		t.Fatalf("GetSessionData() error: %v", err)
	}
	if got, err := io.Meta("identifier"); err != nil || got != "715093703" {
		t.Fatalf("identifier: got %q err %v", got, err)
	}
	if err := io.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if fetch.dataCalls != 1 {
		t.Fatalf("fetch calls after miss: got %d", fetch.dataCalls)
	}

	io, err = c.GetSessionData(715093703)
	if err != nil {
		t.Fatalf("GetSessionData() on warm cache: %v", err)
	}
	defer io.Close()
	if fetch.dataCalls != 1 {
		t.Fatalf("warm cache must not refetch, got %d calls", fetch.dataCalls)
	}
	if io.Path() != c.SessionDataPath(715093703) {
		t.Fatalf("handle path: got %q", io.Path())
	}
}

func TestCachePathTemplates(t *testing.T) {
	dir := t.TempDir()
	c := NewSessionCache(dir, &fakeFetch{})

	if got := c.SessionsPath(); got != filepath.Join(dir, "sessions.csv") {
		t.Fatalf("sessions path: got %q", got)
	}
	c.SessionsFormat = "parquet"
	if got := c.SessionsPath(); got != filepath.Join(dir, "sessions.parquet") {
		t.Fatalf("parquet sessions path: got %q", got)
	}
	want := filepath.Join(dir, "session_715093703", "session_715093703.nwb")
	if got := c.SessionDataPath(715093703); got != want {
		t.Fatalf("session data path: got %q want %q", got, want)
	}
}

func TestManifestWrittenOnFirstUse(t *testing.T) {
	dir := t.TempDir()
	c := NewSessionCache(dir, &fakeFetch{sessions: testListing()})

	if _, err := c.GetSessions(); err != nil {
		t.Fatalf("GetSessions() error: %v", err)
	}

	buf, err := os.ReadFile(filepath.Join(dir, "ecephys_project_manifest.json"))
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var m struct {
		Version string            `json:"manifest_version"`
		Paths   map[string]string `json:"paths"`
	}
	if err := json.Unmarshal(buf, &m); err != nil {
		t.Fatalf("decode manifest: %v", err)
	}
	if m.Version != ManifestVersion {
		t.Fatalf("manifest version: got %q", m.Version)
	}
	if m.Paths["session_nwb"] != "session_%d/session_%d.nwb" {
		t.Fatalf("manifest paths: %+v", m.Paths)
	}
}
