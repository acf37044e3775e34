package syncer

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tildaslashalef/vaultsync/internal/loggy"
)

func TestExecuteCopyToVault(t *testing.T) {
	pair := newTestPair(t)
	mtime := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	src := writeDoc(t, pair.SourceDir, "nested/guide.md", "content", mtime)
	dst := filepath.Join(pair.TargetDir, "nested", "guide.md")

	state := emptyState(t)
	exec := NewExecutor(state, false, loggy.NewNoopLogger())

	err := exec.Execute(Change{
		RelPath:    "nested/guide.md",
		SourcePath: src,
		TargetPath: dst,
		Action:     ActionCopyToVault,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))

	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(mtime), "copy should preserve the source mtime")

	entry, ok := state.Get(src, dst)
	require.True(t, ok, "successful copy should record a state entry")
	assert.Equal(t, Fingerprint(src), entry.Hash)
}

func TestExecuteCopyToRepo(t *testing.T) {
	pair := newTestPair(t)
	mtime := time.Now().Add(-time.Minute)
	dst := writeDoc(t, pair.TargetDir, "guide.md", "vault edit", mtime)
	src := filepath.Join(pair.SourceDir, "guide.md")

	state := emptyState(t)
	exec := NewExecutor(state, false, loggy.NewNoopLogger())

	err := exec.Execute(Change{
		RelPath:    "guide.md",
		SourcePath: src,
		TargetPath: dst,
		Action:     ActionCopyToRepo,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(src)
	require.NoError(t, err)
	assert.Equal(t, "vault edit", string(data))

	// State is keyed (source, target) regardless of copy direction, and
	// records the winning vault-side content
	entry, ok := state.Get(src, dst)
	require.True(t, ok)
	assert.Equal(t, Fingerprint(dst), entry.Hash)
}

func TestExecuteDelete(t *testing.T) {
	pair := newTestPair(t)
	now := time.Now()
	src := writeDoc(t, pair.SourceDir, "doomed.md", "x", now)
	dst := writeDoc(t, pair.TargetDir, "doomed.md", "x", now)

	state := emptyState(t)
	state.Put(src, dst, "x-hash", now)
	exec := NewExecutor(state, false, loggy.NewNoopLogger())

	err := exec.Execute(Change{RelPath: "doomed.md", SourcePath: src, TargetPath: dst, Action: ActionDeleteTarget})
	require.NoError(t, err)

	assert.NoFileExists(t, dst)
	assert.FileExists(t, src)
	assert.False(t, state.Has(src, dst),
		"deletion should drop the state entry so re-creation counts as new")
}

func TestExecuteDeleteSource(t *testing.T) {
	pair := newTestPair(t)
	now := time.Now()
	src := writeDoc(t, pair.SourceDir, "doomed.md", "x", now)
	dst := filepath.Join(pair.TargetDir, "doomed.md")

	state := emptyState(t)
	state.Put(src, dst, "x-hash", now)
	exec := NewExecutor(state, false, loggy.NewNoopLogger())

	err := exec.Execute(Change{RelPath: "doomed.md", SourcePath: src, TargetPath: dst, Action: ActionDeleteSource})
	require.NoError(t, err)

	assert.NoFileExists(t, src)
	assert.False(t, state.Has(src, dst))
}

func TestExecuteDryRun(t *testing.T) {
	pair := newTestPair(t)
	now := time.Now()
	src := writeDoc(t, pair.SourceDir, "guide.md", "content", now)
	staleTarget := writeDoc(t, pair.TargetDir, "stale.md", "stale", now)

	state := emptyState(t)
	state.Put(filepath.Join(pair.SourceDir, "stale.md"), staleTarget, "h", now)
	exec := NewExecutor(state, true, loggy.NewNoopLogger())

	require.NoError(t, exec.Execute(Change{
		RelPath:    "guide.md",
		SourcePath: src,
		TargetPath: filepath.Join(pair.TargetDir, "guide.md"),
		Action:     ActionCopyToVault,
	}))
	require.NoError(t, exec.Execute(Change{
		RelPath:    "stale.md",
		SourcePath: filepath.Join(pair.SourceDir, "stale.md"),
		TargetPath: staleTarget,
		Action:     ActionDeleteTarget,
	}))

	assert.NoFileExists(t, filepath.Join(pair.TargetDir, "guide.md"))
	assert.FileExists(t, staleTarget)
	assert.Equal(t, 1, state.Len(), "dry run must not touch the state store")
}

func TestExecuteConflictLeavesBothSides(t *testing.T) {
	pair := newTestPair(t)
	now := time.Now()
	src := writeDoc(t, pair.SourceDir, "clash.md", "mine", now)
	dst := writeDoc(t, pair.TargetDir, "clash.md", "theirs", now)

	state := emptyState(t)
	exec := NewExecutor(state, false, loggy.NewNoopLogger())

	err := exec.Execute(Change{RelPath: "clash.md", SourcePath: src, TargetPath: dst, Action: ActionConflict})
	require.NoError(t, err)

	srcData, _ := os.ReadFile(src)
	dstData, _ := os.ReadFile(dst)
	assert.Equal(t, "mine", string(srcData))
	assert.Equal(t, "theirs", string(dstData))
	assert.Equal(t, 0, state.Len())
}

func TestExecuteUnknownAction(t *testing.T) {
	exec := NewExecutor(emptyState(t), false, loggy.NewNoopLogger())

	err := exec.Execute(Change{RelPath: "x.md", Action: Action(99)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unhandled action")
}
