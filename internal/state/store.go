package state

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// StoreVersion is the current version of the snapshot file format.
const StoreVersion = 1

var (
	storeEncMode cbor.EncMode
	storeDecMode cbor.DecMode
)

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}
	storeEncMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create snapshot CBOR encoder mode: %v", err))
	}

	// Nested field values must come back as map[string]any, not map[any]any
	decOpts := cbor.DecOptions{
		DupMapKey:      cbor.DupMapKeyQuiet,
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}
	storeDecMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create snapshot CBOR decoder mode: %v", err))
	}
}

// storeFile is the on-disk layout.
type storeFile struct {
	Version   int         `cbor:"version"`
	SavedAt   time.Time   `cbor:"saved_at"`
	Snapshots []*Snapshot `cbor:"snapshots"`
}

// Store persists the most recent snapshot of each resource so a restarted
// engine diffs against the last known state.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore creates a store backed by path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Save atomically replaces the stored snapshots.
func (s *Store) Save(snaps []*Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := storeEncMode.Marshal(storeFile{
		Version:   StoreVersion,
		SavedAt:   time.Now(),
		Snapshots: snaps,
	})
	if err != nil {
		return fmt.Errorf("failed to encode snapshots: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to save state file: %w", err)
	}
	return nil
}

// Load reads the stored snapshots. A missing file yields no snapshots and
// no error.
func (s *Store) Load() ([]*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var file storeFile
	if err := storeDecMode.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to decode state file: %w", err)
	}
	if file.Version != StoreVersion {
		return nil, fmt.Errorf("unsupported state file version %d", file.Version)
	}

	for _, snap := range file.Snapshots {
		for _, fields := range snap.Entities {
			for k, v := range fields {
				fields[k] = normalize(v)
			}
		}
	}
	return file.Snapshots, nil
}

// Clear removes the state file.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
