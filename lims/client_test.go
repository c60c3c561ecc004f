package lims

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGetWriteNWBInputs(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/input_jsons" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		gotQuery = r.URL.RawQuery
		_ = json.NewEncoder(w).Encode(map[string]any{
			"output_path": "/out/session.nwb",
			"session_id":  715093703,
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	inputs, err := client.GetWriteNWBInputs(715093703, "EcephysNwbStrategy", "EPHYS_WRITE_NWB_QUEUE", "/out")
	if err != nil {
		t.Fatalf("GetWriteNWBInputs() error: %v", err)
	}
	if inputs["output_path"] != "/out/session.nwb" {
		t.Fatalf("inputs: %+v", inputs)
	}
	for _, want := range []string{
		"object_id=715093703",
		"object_class=EcephysSession",
		"strategy_class=EcephysNwbStrategy",
		"job_queue_name=EPHYS_WRITE_NWB_QUEUE",
	} {
		if !strings.Contains(gotQuery, want) {
			t.Fatalf("query %q missing %q", gotQuery, want)
		}
	}
}

func TestGetWriteNWBInputsErrorPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "no such session"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.GetWriteNWBInputs(1, "", "", "")
	if err == nil || !strings.Contains(err.Error(), "bad request uri") {
		t.Fatalf("expected bad request error, got %v", err)
	}
	if !strings.Contains(err.Error(), "no such session") {
		t.Fatalf("error should carry the server message, got %v", err)
	}
	if !strings.Contains(err.Error(), srv.URL) {
		t.Fatalf("error should carry the request uri, got %v", err)
	}
}

func TestGetWriteNWBInputsKeepsErrorKeyAmongOthers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":       "advisory only",
			"output_path": "/out/session.nwb",
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	inputs, err := client.GetWriteNWBInputs(1, "", "", "")
	if err != nil {
		t.Fatalf("multi-key payload must not be fatal, got %v", err)
	}
	if inputs["output_path"] != "/out/session.nwb" {
		t.Fatalf("inputs: %+v", inputs)
	}
}

func TestGetWriteNWBInputsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.GetWriteNWBInputs(1, "", "", "")
	if err == nil || !strings.Contains(err.Error(), "unexpected status") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func testSessions() []SessionRecord {
	return []SessionRecord{
		{ID: 715093703, SpecimenID: 699733581, SessionType: "brain_observatory_1.1", DateOfAcquisition: "2019-01-19", ProbeCount: 6, UnitCount: 884},
		{ID: 719161530, SpecimenID: 703279284, SessionType: "functional_connectivity", DateOfAcquisition: "2019-01-08", ProbeCount: 5, UnitCount: 755},
	}
}

func TestGetSessionsWritesListing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ecephys_sessions.json" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(testSessions())
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "sessions.csv")
	client := NewClient(srv.URL)
	sessions, err := client.GetSessions(dest)
	if err != nil {
		t.Fatalf("GetSessions() error: %v", err)
	}
	if len(sessions) != 2 || sessions[0].ID != 715093703 {
		t.Fatalf("sessions: %+v", sessions)
	}

	reread, err := ReadSessions(dest)
	if err != nil {
		t.Fatalf("ReadSessions() error: %v", err)
	}
	if len(reread) != 2 || reread[1] != sessions[1] {
		t.Fatalf("reread listing: %+v", reread)
	}
}

func TestGetSessionData(t *testing.T) {
	payload := []byte("container bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ecephys_sessions/715093703/download" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "session_715093703", "session_715093703.nwb")
	client := NewClient(srv.URL)
	path, err := client.GetSessionData(dest, 715093703)
	if err != nil {
		t.Fatalf("GetSessionData() error: %v", err)
	}
	if path != dest {
		t.Fatalf("path: got %q", path)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read downloaded file: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("downloaded bytes: got %q", got)
	}
}
