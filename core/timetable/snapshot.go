package timetable

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// SnapshotVersion is bumped whenever the persisted layout of State changes.
// Snapshots written with another version are discarded on load.
const SnapshotVersion = 1

// DefaultSlot is the cache slot holding the timetable snapshot.
const DefaultSlot = "timetable-storage"

var (
	ErrCacheMiss       = errors.New("cache slot is empty")
	ErrSnapshotVersion = errors.New("unsupported snapshot version")
)

// Cache is a durable key-value slot store.
type Cache interface {
	// Get returns ErrCacheMiss when nothing is stored under slot.
	Get(ctx context.Context, slot string) ([]byte, error)
	Put(ctx context.Context, slot string, data []byte) error
	// Delete is a no-op for empty slots.
	Delete(ctx context.Context, slot string) error
}

type Snapshot struct {
	Version       int               `json:"version"`
	Revision      string            `json:"revision"`
	MainTimetable State             `json:"mainTimetable"`
	Pinned        *TeacherTimetable `json:"teacherTimetable,omitempty"`
	SavedAt       time.Time         `json:"savedAt"`
}

func EncodeSnapshot(snap Snapshot) ([]byte, error) {
	data, err := json.Marshal(snap)
	return data, errors.Wrap(err, "encoding snapshot")
}

// DecodeSnapshot rejects snapshots of another version with ErrSnapshotVersion.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, errors.Wrap(err, "decoding snapshot")
	}
	if snap.Version != SnapshotVersion {
		return Snapshot{}, errors.Wrapf(ErrSnapshotVersion, "got %d, want %d", snap.Version, SnapshotVersion)
	}
	return snap, nil
}

// PersistError reports that the state changed in memory but could not be written to the cache.
type PersistError struct {
	Op  string
	Err error
}

func (e *PersistError) Error() string {
	return "timetable " + e.Op + ": changes may not be saved: " + e.Err.Error()
}

func (e *PersistError) Unwrap() error { return e.Err }

// IsPersistError checks if an error is a *PersistError.
func IsPersistError(err error) bool {
	var pe *PersistError
	return errors.As(err, &pe)
}
