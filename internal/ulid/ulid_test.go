package ulid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	id := Generate()

	// Verify it contains a valid timestamp close to now
	now := time.Now()
	idTime := id.Time()
	timeDiff := now.Sub(idTime).Seconds()
	assert.True(t, timeDiff < 1.0, "ULID timestamp should be close to now")
}

func TestGenerateWithPrefix(t *testing.T) {
	prefixes := []string{PrefixRun, PrefixPair, PrefixUpload, "custom"}

	for _, prefix := range prefixes {
		id := GenerateWithPrefix(prefix)

		assert.Equal(t, prefix, id.Prefix(), "Prefix should match the provided value")
		assert.Contains(t, id.String(), prefix+PrefixSeparator,
			"String representation should contain the prefix")
	}
}

func TestParse(t *testing.T) {
	// Test parsing a raw ULID
	rawULID := Generate()
	parsedRaw, err := Parse(rawULID.String())
	require.NoError(t, err)
	assert.Equal(t, rawULID, parsedRaw)

	// Test parsing a prefixed ULID
	prefixedULID := GenerateWithPrefix(PrefixRun)
	parsedPrefixed, err := Parse(prefixedULID.String())
	require.NoError(t, err)
	assert.Equal(t, prefixedULID, parsedPrefixed)
	assert.Equal(t, PrefixRun, parsedPrefixed.Prefix())

	// Test parsing an invalid ULID
	_, err = Parse("invalid-ulid")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	id := Generate()
	assert.True(t, Validate(id.String()), "Valid ULID should be valid")

	prefixedID := GenerateWithPrefix(PrefixPair)
	assert.True(t, Validate(prefixedID.String()), "Valid prefixed ULID should be valid")

	assert.False(t, Validate("invalid"), "Invalid ULID should be invalid")
	assert.False(t, Validate("run-invalid"), "Invalid prefixed ULID should be invalid")
	assert.False(t, Validate(""), "Empty string should be invalid")
}

func TestIDHelpers(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		prefix string
	}{
		{name: "run id", id: RunID(), prefix: PrefixRun},
		{name: "pair id", id: PairID(), prefix: PrefixPair},
		{name: "upload id", id: UploadID(), prefix: PrefixUpload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, Validate(tt.id))

			parsed, err := Parse(tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.prefix, parsed.Prefix())
		})
	}
}

func TestMonotonicOrdering(t *testing.T) {
	// IDs generated in sequence must sort in generation order so log
	// lines can be correlated by run ID.
	prev := Generate()
	for i := 0; i < 100; i++ {
		next := Generate()
		assert.True(t, prev.ULID.Compare(next.ULID) < 0,
			"ULIDs should be strictly increasing")
		prev = next
	}
}
