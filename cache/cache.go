// Package cache manages on-disk paths for remotely fetched session
// listings and session container files. Fetching is delegated to an
// injected capability; anything already on disk is reused without
// refetching.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"ecephys-nwb/lims"
	"ecephys-nwb/nwb"
)

// ManifestVersion tags the path template used by this cache layout.
const ManifestVersion = "0.1.0"

const manifestName = "ecephys_project_manifest.json"

// FetchAPI is the remote-fetch capability injected into the cache. Any
// implementation of these two methods is substitutable.
type FetchAPI interface {
	GetSessions(destination string) ([]lims.SessionRecord, error)
	GetSessionData(destination string, sessionID int64) (string, error)
}

// SessionCache resolves cache paths under one base directory and fetches
// on miss.
type SessionCache struct {
	Dir            string
	SessionsFormat string // csv|parquet, defaults to csv

	fetch FetchAPI
}

// NewSessionCache returns a cache rooted at dir, fetching through api.
func NewSessionCache(dir string, api FetchAPI) *SessionCache {
	return &SessionCache{Dir: dir, fetch: api}
}

type manifest struct {
	Version string            `json:"manifest_version"`
	Paths   map[string]string `json:"paths"`
}

// SessionsPath is the on-disk location of the session listing.
func (c *SessionCache) SessionsPath() string {
	ext := "csv"
	if c.SessionsFormat == "parquet" {
		ext = "parquet"
	}
	return filepath.Join(c.Dir, "sessions."+ext)
}

// SessionDataPath is the on-disk location of one session's container file.
func (c *SessionCache) SessionDataPath(sessionID int64) string {
	name := fmt.Sprintf("session_%d", sessionID)
	return filepath.Join(c.Dir, name, name+".nwb")
}

// GetSessions returns the session listing, fetching it on first use.
func (c *SessionCache) GetSessions() ([]lims.SessionRecord, error) {
	if err := c.writeManifest(); err != nil {
		return nil, err
	}
	path := c.SessionsPath()
	if _, err := os.Stat(path); err == nil {
		return lims.ReadSessions(path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return c.fetch.GetSessions(path)
}

// GetSessionData returns an open read handle on one session's container
// file, fetching the file on first use. The caller closes the handle.
func (c *SessionCache) GetSessionData(sessionID int64) (*nwb.IO, error) {
	if err := c.writeManifest(); err != nil {
		return nil, err
	}
	path := c.SessionDataPath(sessionID)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if _, err := c.fetch.GetSessionData(path, sessionID); err != nil {
			return nil, fmt.Errorf("fetch session %d: %w", sessionID, err)
		}
	} else if err != nil {
		return nil, err
	}
	return nwb.Open(path)
}

// writeManifest records the cache layout version once per base dir.
func (c *SessionCache) writeManifest() error {
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(c.Dir, manifestName)
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	m := manifest{
		Version: ManifestVersion,
		Paths: map[string]string{
			"sessions":    filepath.Base(c.SessionsPath()),
			"session_nwb": "session_%d/session_%d.nwb",
		},
	}
	buf, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0o644)
}
