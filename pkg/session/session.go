/*
Package session owns the authentication lifecycle against the vendor
cloud: the multi-round interactive login, silent refresh-token renewal,
token expiry tracking and persistence of the issued session across
process runs.

The entry point is [Manager.EnsureValid]; everything else in the client
builds request headers from the session it maintains.
*/
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// sessionFileName is the fixed-name file inside the cache directory that
// holds the persisted session.
const sessionFileName = "user_data.json"

// expiryMargin is subtracted from the token lifetime so a fetch never
// starts with a token about to lapse mid-run.
const expiryMargin = 5 * time.Minute

// Session is the issued credential set. A Session is either absent or
// structurally complete; partially populated sessions are never persisted
// or used to build request headers.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Subject      string    `json:"subject"`
	Expiration   time.Time `json:"expiration"`
}

// Complete reports whether the session carries every required field.
// The refresh token is optional: only the newer auth flow issues one.
func (s *Session) Complete() bool {
	return s != nil && s.AccessToken != "" && s.Subject != "" && !s.Expiration.IsZero()
}

// Expired reports whether the access token must be considered invalid,
// applying the expiry margin.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.Expiration.Add(-expiryMargin))
}

// Refreshable reports whether silent renewal is possible.
func (s *Session) Refreshable() bool {
	return s.RefreshToken != ""
}

// load reads a persisted session from dir. A missing file or a
// structurally incomplete session yields (nil, nil): both mean "never
// logged in" to the caller.
func load(dir string) (*Session, error) {
	path := filepath.Join(dir, sessionFileName)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading session file: %w", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		// A corrupt session file is recoverable by logging in again.
		return nil, nil
	}
	if !s.Complete() {
		return nil, nil
	}
	return &s, nil
}

// save persists a session to dir atomically. Only complete sessions may
// be saved.
func save(dir string, s *Session) error {
	if !s.Complete() {
		return fmt.Errorf("refusing to persist incomplete session")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating session directory: %w", err)
	}
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, sessionFileName)
	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("persisting session: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("persisting session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("persisting session: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("persisting session: %w", err)
	}
	return nil
}
