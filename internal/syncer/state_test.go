package syncer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tildaslashalef/vaultsync/internal/loggy"
)

func TestStateStoreRoundtrip(t *testing.T) {
	logger := loggy.NewNoopLogger()
	path := filepath.Join(t.TempDir(), "state", "sync_state.json")

	store := LoadStateStore(path, logger)
	assert.Equal(t, 0, store.Len(), "fresh store should be empty")

	mtime := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	store.Put("/repo/docs/a.md", "/vault/a.md", "abc123", mtime)
	store.TouchPair("thalamus-ai/synaptica:production")
	require.NoError(t, store.Save())

	reloaded := LoadStateStore(path, logger)
	assert.Equal(t, 1, reloaded.Len())
	assert.True(t, reloaded.Has("/repo/docs/a.md", "/vault/a.md"))

	entry, ok := reloaded.Get("/repo/docs/a.md", "/vault/a.md")
	require.True(t, ok)
	assert.Equal(t, "abc123", entry.Hash)
	assert.InDelta(t, float64(mtime.Unix()), entry.Mtime, 0.001)
	assert.False(t, entry.LastSync.IsZero())

	times := reloaded.LastSyncTimes()
	assert.Contains(t, times, "thalamus-ai/synaptica:production")
}

func TestStateStoreCorruptFile(t *testing.T) {
	logger := loggy.NewNoopLogger()
	path := filepath.Join(t.TempDir(), "sync_state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	store := LoadStateStore(path, logger)
	assert.Equal(t, 0, store.Len(), "corrupt state should degrade to empty")

	// Saving over the corrupt file must produce a parseable document again
	store.Put("/s", "/t", "h", time.Now())
	require.NoError(t, store.Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Contains(t, doc, "files")
	assert.Contains(t, doc, "last_sync")
}

func TestStateStoreMissingMaps(t *testing.T) {
	logger := loggy.NewNoopLogger()
	path := filepath.Join(t.TempDir(), "sync_state.json")

	// Older state files may carry only the files map
	require.NoError(t, os.WriteFile(path, []byte(`{"files": {"/s:/t": {"hash": "h", "mtime": 1700000000.5}}}`), 0644))

	store := LoadStateStore(path, logger)
	assert.Equal(t, 1, store.Len())
	assert.True(t, store.Has("/s", "/t"))
	assert.Empty(t, store.LastSyncTimes())
}

func TestStateStorePythonWrittenFile(t *testing.T) {
	logger := loggy.NewNoopLogger()
	path := filepath.Join(t.TempDir(), "sync_state.json")

	// The earlier Python tooling wrote datetime.isoformat() timestamps
	// with no timezone offset; those files must stay loadable as-is.
	require.NoError(t, os.WriteFile(path, []byte(`{
  "files": {
    "/repo/docs/a.md:/vault/a.md": {
      "hash": "5eb63bbbe01eeed093cb22bb8f5acdc3",
      "mtime": 1700000000.123456,
      "last_sync": "2026-02-21T17:56:01.123456"
    },
    "/repo/docs/b.md:/vault/b.md": {
      "hash": "abc123",
      "mtime": 1700000001.0,
      "last_sync": "2026-02-21T17:56:02"
    }
  },
  "last_sync": {
    "thalamus-ai/synaptica:production": "2026-02-21T17:56:03.500000"
  }
}`), 0644))

	store := LoadStateStore(path, logger)
	assert.Equal(t, 2, store.Len())
	assert.True(t, store.Has("/repo/docs/a.md", "/vault/a.md"))
	assert.True(t, store.Has("/repo/docs/b.md", "/vault/b.md"))

	entry, ok := store.Get("/repo/docs/a.md", "/vault/a.md")
	require.True(t, ok)
	assert.Equal(t, "5eb63bbbe01eeed093cb22bb8f5acdc3", entry.Hash)
	assert.False(t, entry.LastSync.IsZero())
	assert.Equal(t, 123456000, entry.LastSync.Nanosecond(),
		"sub-second precision should survive the isoformat parse")

	times := store.LastSyncTimes()
	require.Contains(t, times, "thalamus-ai/synaptica:production")
	assert.False(t, times["thalamus-ai/synaptica:production"].IsZero())
}

func TestStateStoreSkipsMalformedEntry(t *testing.T) {
	logger := loggy.NewNoopLogger()
	path := filepath.Join(t.TempDir(), "sync_state.json")

	require.NoError(t, os.WriteFile(path, []byte(`{
  "files": {
    "/good:/entry": {"hash": "h", "mtime": 1700000000.0, "last_sync": "2026-02-21T17:56:01"},
    "/bad:/entry": {"hash": "h", "mtime": "not-a-number"}
  },
  "last_sync": {
    "good/pair:production": "2026-02-21T17:56:01",
    "bad/pair:production": "neither rfc3339 nor isoformat"
  }
}`), 0644))

	store := LoadStateStore(path, logger)
	assert.Equal(t, 1, store.Len(), "a malformed entry drops only itself")
	assert.True(t, store.Has("/good", "/entry"))
	assert.False(t, store.Has("/bad", "/entry"))

	times := store.LastSyncTimes()
	assert.Contains(t, times, "good/pair:production")
	assert.NotContains(t, times, "bad/pair:production")
}

func TestStateStoreDelete(t *testing.T) {
	logger := loggy.NewNoopLogger()
	store := LoadStateStore(filepath.Join(t.TempDir(), "state.json"), logger)

	store.Put("/s", "/t", "h", time.Now())
	require.True(t, store.Has("/s", "/t"))

	store.Delete("/s", "/t")
	assert.False(t, store.Has("/s", "/t"))

	// Deleting a missing entry is a no-op
	store.Delete("/s", "/t")
	assert.Equal(t, 0, store.Len())
}

func TestStateKeyDistinguishesDirection(t *testing.T) {
	logger := loggy.NewNoopLogger()
	store := LoadStateStore(filepath.Join(t.TempDir(), "state.json"), logger)

	store.Put("/a", "/b", "h", time.Now())
	assert.True(t, store.Has("/a", "/b"))
	assert.False(t, store.Has("/b", "/a"), "keys are ordered pairs, not sets")
}
