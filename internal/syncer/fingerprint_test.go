package syncer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprint(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "doc.md")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0644))

	// Known MD5 of "hello world"
	assert.Equal(t, "5eb63bbbe01eeed093cb22bb8f5acdc3", Fingerprint(path))
}

func TestFingerprintContentOnly(t *testing.T) {
	dir := t.TempDir()

	a := filepath.Join(dir, "a.md")
	b := filepath.Join(dir, "nested", "b.md")
	require.NoError(t, os.WriteFile(a, []byte("same bytes"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Dir(b), 0755))
	require.NoError(t, os.WriteFile(b, []byte("same bytes"), 0644))

	assert.Equal(t, Fingerprint(a), Fingerprint(b),
		"identical content at different paths should fingerprint equal")

	require.NoError(t, os.WriteFile(b, []byte("different bytes"), 0644))
	assert.NotEqual(t, Fingerprint(a), Fingerprint(b))
}

func TestFingerprintUnreadable(t *testing.T) {
	dir := t.TempDir()

	assert.Equal(t, "", Fingerprint(filepath.Join(dir, "missing.md")),
		"missing file should yield an empty fingerprint")

	// A directory cannot be hashed either
	assert.Equal(t, "", Fingerprint(dir))
}
