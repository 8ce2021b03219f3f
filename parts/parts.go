// Package parts implements the in-memory part table backing an ODF
// container. A part is a named sequence of bytes, such as "content.xml"
// or "Pictures/a.jpg". Each tracked part is in exactly one of three
// states: Absent (known to exist at the source but not fetched yet),
// Loaded (bytes held in memory), or Deleted (explicitly removed, which
// is different from never having been tracked at all).
//
// A Store is an ordinary map with no locking. A Container owns its
// Store exclusively; callers needing concurrency should keep one
// container per goroutine.
package parts

import (
	"sort"
	"strings"
)

// State is the lifecycle state of a single part.
type State int

const (
	// Absent means the part has never been fetched from the source,
	// or is not tracked at all.
	Absent State = iota

	// Loaded means the part's bytes are held in memory.
	Loaded

	// Deleted means the part was explicitly removed. Reads of a
	// deleted part must fail; it is a tombstone, not a missing key.
	Deleted
)

// entry is the record kept per tracked part.
type entry struct {
	state State
	data  []byte

	// modification time of the source file, in whole seconds. Only
	// set for parts read from a folder source; zero for parts set
	// directly by the caller or read from a zip archive.
	mtime int64

	// hasMtime distinguishes a recorded zero mtime from no record.
	// A part with no mtime on record was stored explicitly and is
	// never refreshed from the source.
	hasMtime bool
}

// Store tracks the parts of one container.
type Store struct {
	entries map[string]*entry
}

// NewStore returns a new, empty part table.
func NewStore() *Store {
	return &Store{entries: make(map[string]*entry)}
}

// Normalize rewrites a part name to the canonical slash form used as
// the map key. All backslashes become forward slashes and redundant
// repeated slashes collapse. A trailing slash is preserved, since it
// marks a directory placeholder entry.
func Normalize(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	for strings.Contains(name, "//") {
		name = strings.ReplaceAll(name, "//", "/")
	}
	return strings.TrimPrefix(name, "/")
}

// State reports the state of the named part. Untracked names are
// Absent.
func (s *Store) State(name string) State {
	e, ok := s.entries[name]
	if !ok {
		return Absent
	}
	return e.state
}

// Bytes returns the cached bytes of a Loaded part, or nil for any
// other state.
func (s *Store) Bytes(name string) []byte {
	e, ok := s.entries[name]
	if !ok || e.state != Loaded {
		return nil
	}
	return e.data
}

// Mtime returns the source modification time recorded for the named
// part. The second return is false when the part was stored without a
// timestamp, meaning it was set explicitly and must never be refreshed
// from the source.
func (s *Store) Mtime(name string) (int64, bool) {
	e, ok := s.entries[name]
	if !ok {
		return 0, false
	}
	return e.mtime, e.hasMtime
}

// Set stores data as the part's bytes with no source timestamp. An
// explicit value always wins over the source until changed or deleted.
func (s *Store) Set(name string, data []byte) {
	s.entries[name] = &entry{state: Loaded, data: data}
}

// Load stores data as the part's bytes along with the source file
// modification time it was read at.
func (s *Store) Load(name string, data []byte, mtime int64) {
	s.entries[name] = &entry{state: Loaded, data: data, mtime: mtime, hasMtime: true}
}

// Delete tombstones the named part. The name stays tracked so that a
// later read can tell "deleted" apart from "never present".
func (s *Store) Delete(name string) {
	s.entries[name] = &entry{state: Deleted}
}

// Names returns every tracked part name in sorted order, tombstones
// included. Callers writing a package out must filter on State.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.entries))
	for k := range s.entries {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep, independent copy of the table. Byte buffers
// are duplicated so that mutating the clone can never show through to
// the original.
func (s *Store) Clone() *Store {
	out := NewStore()
	for k, e := range s.entries {
		dup := &entry{state: e.state, mtime: e.mtime, hasMtime: e.hasMtime}
		if e.data != nil {
			dup.data = make([]byte, len(e.data))
			copy(dup.data, e.data)
		}
		out.entries[k] = dup
	}
	return out
}
