package knowledge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadTargets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
targets:
  thalamus-ai/synaptica:production:
    name: "Synaptica Docs"
    description: "Curated production docs"
  thalamus-ai/scratchpad:development:
    skip: true
`), 0644))

	targets, err := LoadTargets(path)
	require.NoError(t, err)
	require.Len(t, targets, 2)

	assert.Equal(t, "Synaptica Docs", targets["thalamus-ai/synaptica:production"].Name)
	assert.Equal(t, "Curated production docs", targets["thalamus-ai/synaptica:production"].Description)
	assert.True(t, targets["thalamus-ai/scratchpad:development"].Skip)
}

func TestLoadTargetsEmptyPath(t *testing.T) {
	targets, err := LoadTargets("")
	require.NoError(t, err)
	assert.Nil(t, targets, "no targets file means no overrides")
}

func TestLoadTargetsMissingFile(t *testing.T) {
	_, err := LoadTargets(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err, "an explicitly configured file must exist")
}

func TestLoadTargetsMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.yaml")
	require.NoError(t, os.WriteFile(path, []byte("targets: [not a map"), 0644))

	_, err := LoadTargets(path)
	assert.Error(t, err)
}
