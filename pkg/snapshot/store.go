/*
Package snapshot implements an append-only, file-backed store of fetched
API payloads, one directory per resource kind.

Every successful fetch is passed through [Store.Record], which compares it
against the most recently recorded payload for its kind and writes a new
artifact only when the content differs. Artifacts are never overwritten or
deleted. The current head artifact of each kind is tracked in a small
manifest file rather than by filesystem metadata ordering.

Per-item child artifacts (individual trip details) are write-once: see
[Store.Child].
*/
package snapshot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ErrNoSnapshot is returned by Latest when a kind has never been
// recorded.
var ErrNoSnapshot = errors.New("no snapshot recorded")

// Comparison selects how Record decides freshness for a kind.
type Comparison int

const (
	// CompareBytes treats any byte difference as fresh data.
	CompareBytes Comparison = iota
	// CompareCanonical parses both payloads as JSON and compares their
	// structure, ignoring key order. Use for endpoints whose encoder
	// reorders fields between otherwise identical responses.
	CompareCanonical
)

// Kind identifies one resource category and its freshness policy.
type Kind struct {
	Name    string
	Compare Comparison
}

// StorageError wraps snapshot I/O failures. A fetch whose result cannot
// be durably recorded must not be reported fresh, so these are fatal for
// the affected resource.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("snapshot %s %s: %s", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

const manifestName = "HEAD"

// Store is a snapshot store rooted at a single cache directory.
type Store struct {
	root string

	mu  sync.Mutex
	seq uint64
}

// New returns a Store rooted at dir, creating it if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &StorageError{Op: "mkdir", Path: dir, Err: err}
	}
	return &Store{root: dir}, nil
}

// Root returns the store's cache directory.
func (s *Store) Root() string { return s.root }

func (s *Store) kindDir(kind Kind) string {
	return filepath.Join(s.root, kind.Name)
}

// headPath returns the artifact path recorded in the kind's manifest, or
// "" if the manifest does not exist.
func (s *Store) headPath(kind Kind) (string, error) {
	manifest := filepath.Join(s.kindDir(kind), manifestName)
	name, err := os.ReadFile(manifest)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", &StorageError{Op: "read", Path: manifest, Err: err}
	}
	head := strings.TrimSpace(string(name))
	if head == "" {
		return "", nil
	}
	return filepath.Join(s.kindDir(kind), head), nil
}

// Latest returns the most recently recorded snapshot for kind, or
// ErrNoSnapshot if none exists.
func (s *Store) Latest(kind Kind) ([]byte, error) {
	head, err := s.headPath(kind)
	if err != nil {
		return nil, err
	}
	if head == "" {
		return nil, ErrNoSnapshot
	}
	data, err := os.ReadFile(head)
	if err != nil {
		return nil, &StorageError{Op: "read", Path: head, Err: err}
	}
	return data, nil
}

// Record compares data against the latest snapshot for kind using the
// kind's comparison policy. Fresh data is written to a new uniquely named
// artifact and becomes the new head; stale data is not written. Reports
// whether the data was fresh.
func (s *Store) Record(kind Kind, data []byte) (bool, error) {
	previous, err := s.Latest(kind)
	if err != nil && !errors.Is(err, ErrNoSnapshot) {
		return false, err
	}
	if previous != nil && equal(kind.Compare, previous, data) {
		return false, nil
	}

	dir := s.kindDir(kind)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, &StorageError{Op: "mkdir", Path: dir, Err: err}
	}
	name := s.artifactName(kind)
	if err := writeAtomic(filepath.Join(dir, name), data); err != nil {
		return false, err
	}
	if err := writeAtomic(filepath.Join(dir, manifestName), []byte(name+"\n")); err != nil {
		return false, err
	}
	return true, nil
}

// artifactName produces a unique name for a new artifact. The sequence
// counter keeps names distinct even when two writes land within the
// timestamp's resolution.
func (s *Store) artifactName(kind Kind) string {
	s.mu.Lock()
	s.seq++
	n := s.seq
	s.mu.Unlock()
	return fmt.Sprintf("%s-%s-%04d", kind.Name, time.Now().UTC().Format("2006-01-02T15:04:05.000000000Z"), n)
}

// Child returns the immutable per-item artifact for id, fetching and
// recording it on first use. Once an artifact exists for an id, fetch is
// never invoked again for it. Reports whether fetch ran.
func (s *Store) Child(kind Kind, id string, fetch func() ([]byte, error)) ([]byte, bool, error) {
	if len(id) < 4 {
		return nil, false, fmt.Errorf("snapshot child id %q too short", id)
	}
	dir := filepath.Join(s.kindDir(kind), id[0:2], id[2:4])
	path := filepath.Join(dir, id)

	data, err := os.ReadFile(path)
	if err == nil {
		return data, false, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, false, &StorageError{Op: "read", Path: path, Err: err}
	}

	data, err = fetch()
	if err != nil {
		return nil, false, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, false, &StorageError{Op: "mkdir", Path: dir, Err: err}
	}
	if err := writeAtomic(path, data); err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// writeAtomic writes data to path via a temporary file and rename, so a
// crash never leaves a partially written artifact behind.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return &StorageError{Op: "create", Path: dir, Err: err}
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return &StorageError{Op: "write", Path: tmp.Name(), Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &StorageError{Op: "close", Path: tmp.Name(), Err: err}
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return &StorageError{Op: "rename", Path: path, Err: err}
	}
	return nil
}
