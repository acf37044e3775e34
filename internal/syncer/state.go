package syncer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tildaslashalef/vaultsync/internal/loggy"
)

// stateTime marshals as RFC 3339 but also accepts the zone-less
// isoformat strings the earlier Python tooling wrote
// (e.g. "2026-02-21T17:56:01.123456").
type stateTime struct {
	time.Time
}

func (t stateTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time)
}

func (t *stateTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t.Time = parsed
		return nil
	}

	// Python's datetime.isoformat() carries no offset; it was recorded
	// in local time.
	parsed, err := time.ParseInLocation("2006-01-02T15:04:05.999999999", s, time.Local)
	if err != nil {
		return fmt.Errorf("unrecognized timestamp %q", s)
	}
	t.Time = parsed
	return nil
}

// StateEntry records that a specific (source,target) path combination has
// been successfully reconciled at least once. Its presence is what lets
// the differ tell "target never existed" apart from "target was deleted
// after being synced".
type StateEntry struct {
	Hash     string    `json:"hash"`
	Mtime    float64   `json:"mtime"` // unix seconds of the winning file at sync time
	LastSync stateTime `json:"last_sync"`
}

// stateDocument is the on-disk shape of the state file. Older files may
// miss either map; missing keys are treated as "never synced".
type stateDocument struct {
	Files    map[string]StateEntry `json:"files"`
	LastSync map[string]stateTime  `json:"last_sync"`
}

// StateStore is the single durable entity of the sync engine: a mapping
// from "<source>:<target>" keys to the last-known synced content. It is
// held in memory during a pass and flushed to disk once per pass; there is
// no protection against concurrent writers.
type StateStore struct {
	path     string
	files    map[string]StateEntry
	lastSync map[string]time.Time
	logger   *loggy.Logger
}

// LoadStateStore reads the state file at path. An unreadable or corrupt
// file degrades to an empty store: everything then looks newly discovered,
// which costs one round of redundant copies but never loses data.
// Entries are decoded one at a time so a single malformed value drops
// only itself, never its siblings.
func LoadStateStore(path string, logger *loggy.Logger) *StateStore {
	store := &StateStore{
		path:     path,
		files:    make(map[string]StateEntry),
		lastSync: make(map[string]time.Time),
		logger:   logger,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("Could not read state file, starting empty", "path", path, "error", err)
		}
		return store
	}

	var doc struct {
		Files    map[string]json.RawMessage `json:"files"`
		LastSync map[string]json.RawMessage `json:"last_sync"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		logger.Warn("Could not parse state file, starting empty", "path", path, "error", err)
		return store
	}

	for key, raw := range doc.Files {
		var entry StateEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			logger.Warn("Skipping malformed state entry", "key", key, "error", err)
			continue
		}
		store.files[key] = entry
	}

	for key, raw := range doc.LastSync {
		var t stateTime
		if err := json.Unmarshal(raw, &t); err != nil {
			logger.Warn("Skipping malformed last-sync timestamp", "key", key, "error", err)
			continue
		}
		store.lastSync[key] = t.Time
	}

	logger.Debug("Loaded sync state", "path", path, "entries", len(store.files))
	return store
}

// Save writes the store back to disk, creating the parent directory if
// needed.
func (s *StateStore) Save() error {
	doc := stateDocument{
		Files:    s.files,
		LastSync: make(map[string]stateTime, len(s.lastSync)),
	}
	for key, t := range s.lastSync {
		doc.LastSync[key] = stateTime{t}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("writing state file: %w", err)
	}

	return nil
}

// stateKey builds the map key for a (source,target) path pair.
func stateKey(source, target string) string {
	return source + ":" + target
}

// Has reports whether the pair of paths has been reconciled before.
func (s *StateStore) Has(source, target string) bool {
	_, ok := s.files[stateKey(source, target)]
	return ok
}

// Get returns the entry for a path pair, if present.
func (s *StateStore) Get(source, target string) (StateEntry, bool) {
	entry, ok := s.files[stateKey(source, target)]
	return entry, ok
}

// Put upserts the entry for a path pair with the winning file's hash and
// mtime, stamping the current wall clock as the sync time.
func (s *StateStore) Put(source, target, hash string, mtime time.Time) {
	s.files[stateKey(source, target)] = StateEntry{
		Hash:     hash,
		Mtime:    float64(mtime.UnixNano()) / float64(time.Second),
		LastSync: stateTime{time.Now()},
	}
}

// Delete removes the entry for a path pair. Called on any delete action so
// that a later re-creation of either side is classified as newly
// discovered rather than compared against stale hash data.
func (s *StateStore) Delete(source, target string) {
	delete(s.files, stateKey(source, target))
}

// TouchPair records the time a pair was last driven through a pass.
func (s *StateStore) TouchPair(pairKey string) {
	s.lastSync[pairKey] = time.Now()
}

// LastSyncTimes returns a copy of the per-pair last-sync timestamps.
func (s *StateStore) LastSyncTimes() map[string]time.Time {
	out := make(map[string]time.Time, len(s.lastSync))
	for k, v := range s.lastSync {
		out[k] = v
	}
	return out
}

// Len returns the number of file entries in the store.
func (s *StateStore) Len() int {
	return len(s.files)
}
