// Package lims talks to the lab-information system over HTTP: module
// input queries, session listings, and session data downloads.
package lims

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// DefaultHost is the lab-information system reachable from the internal
// network.
const DefaultHost = "http://lims2"

// Client issues requests against one LIMS host.
type Client struct {
	Host       string
	HTTPClient *http.Client
}

// NewClient returns a client for host, falling back to DefaultHost.
func NewClient(host string) *Client {
	if host == "" {
		host = DefaultHost
	}
	return &Client{
		Host:       host,
		HTTPClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// GetWriteNWBInputs fetches the write_ecephys_nwb input document for one
// session from LIMS. A single-key {"error": ...} payload is fatal and
// reported with the offending request URI.
func (c *Client) GetWriteNWBInputs(sessionID int64, strategy, jobQueue, outputRoot string) (map[string]any, error) {
	uri := fmt.Sprintf(
		"%s/input_jsons?object_id=%d&object_class=EcephysSession&strategy_class=%s&job_queue_name=%s&output_directory=%s",
		c.Host, sessionID,
		url.QueryEscape(strategy), url.QueryEscape(jobQueue), url.QueryEscape(outputRoot),
	)
	resp, err := c.httpClient().Get(uri)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", uri, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("query %s: unexpected status %s", uri, resp.Status)
	}

	var data map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode response from %s: %w", uri, err)
	}
	if len(data) == 1 {
		if msg, ok := data["error"]; ok {
			return nil, fmt.Errorf("bad request uri: %s (%v)", uri, msg)
		}
	}
	return data, nil
}

// GetSessions downloads the released session listing, writes it to
// destination (CSV or Parquet, switched on the extension), and returns
// the parsed records.
func (c *Client) GetSessions(destination string) ([]SessionRecord, error) {
	uri := fmt.Sprintf("%s/ecephys_sessions.json", c.Host)
	resp, err := c.httpClient().Get(uri)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", uri, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("query %s: unexpected status %s", uri, resp.Status)
	}

	var sessions []SessionRecord
	if err := json.NewDecoder(resp.Body).Decode(&sessions); err != nil {
		return nil, fmt.Errorf("decode response from %s: %w", uri, err)
	}
	if err := WriteSessions(destination, sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// GetSessionData downloads one session's container file to destination
// and returns that path.
func (c *Client) GetSessionData(destination string, sessionID int64) (string, error) {
	uri := fmt.Sprintf("%s/ecephys_sessions/%d/download", c.Host, sessionID)
	resp, err := c.httpClient().Get(uri)
	if err != nil {
		return "", fmt.Errorf("query %s: %w", uri, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("query %s: unexpected status %s", uri, resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
		return "", err
	}
	f, err := os.Create(destination)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("download session %d: %w", sessionID, err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return destination, nil
}
