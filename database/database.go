package database

import (
	"fmt"
	"time"

	"github.com/samber/lo"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"golang.org/x/xerrors"

	"github.com/aquasecurity/nvd-release-builder/nvd"
)

var (
	ErrMalformedRecord   = xerrors.New("malformed record")
	ErrDuplicateRecord   = xerrors.New("duplicate record")
	ErrTimestampMismatch = xerrors.New("snapshot timestamp mismatch")
	ErrRecordNotFound    = xerrors.New("record not found")
)

// MalformedRecordError is returned when a record file can't be decoded.
type MalformedRecordError struct {
	Path string
	Err  error
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("%s %s: %v", ErrMalformedRecord, e.Path, e.Err)
}

func (e *MalformedRecordError) Unwrap() error {
	return e.Err
}

func (e *MalformedRecordError) Is(target error) bool {
	return target == ErrMalformedRecord
}

// Loader produces the records of a snapshot keyed by CVE-ID.
type Loader interface {
	Load() (map[string]nvd.Record, error)
}

// Database is the set of CVE records at a given snapshot timestamp.
// It must not be modified after construction.
type Database struct {
	records   map[string]nvd.Record
	timestamp time.Time
}

func New(records map[string]nvd.Record, timestamp time.Time) *Database {
	if records == nil {
		records = map[string]nvd.Record{}
	}
	return &Database{
		records:   records,
		timestamp: timestamp,
	}
}

// FromSnapshot loads the records of the checked out snapshot.
// The UTC date of snapshotTimestamp must equal the calendar date of expected, otherwise
// ErrTimestampMismatch is returned without loading anything.
func FromSnapshot(expected, snapshotTimestamp time.Time, loader Loader) (*Database, error) {
	if !sameDate(expected, snapshotTimestamp) {
		return nil, xerrors.Errorf("the checked out snapshot is at %s but %s was requested: %w",
			snapshotTimestamp.Format(time.RFC3339), expected.Format(time.DateOnly), ErrTimestampMismatch)
	}

	records, err := loader.Load()
	if err != nil {
		return nil, xerrors.Errorf("unable to load records: %w", err)
	}
	return New(records, snapshotTimestamp), nil
}

func (db *Database) Timestamp() time.Time {
	return db.timestamp
}

func (db *Database) Len() int {
	return len(db.records)
}

// Get returns the record for the given CVE-ID.
func (db *Database) Get(id string) (nvd.Record, error) {
	r, ok := db.records[id]
	if !ok {
		return nvd.Record{}, xerrors.Errorf("%s: %w", id, ErrRecordNotFound)
	}
	return r, nil
}

// Records returns all records in no particular order.
func (db *Database) Records() []nvd.Record {
	return lo.Values(db.records)
}

// IDs returns all CVE-IDs in ascending order.
func (db *Database) IDs() []string {
	ids := maps.Keys(db.records)
	slices.Sort(ids)
	return ids
}

// sameDate compares the calendar date of expected, in its own location,
// with the UTC date of the snapshot.
func sameDate(expected, snapshot time.Time) bool {
	y1, m1, d1 := expected.Date()
	y2, m2, d2 := snapshot.UTC().Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
