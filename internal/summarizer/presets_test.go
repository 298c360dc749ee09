package summarizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPresets(t *testing.T) {
	p, err := LoadPresets()
	require.NoError(t, err)
	assert.Equal(t, 150, p.TargetWords(""))
	assert.Equal(t, 60, p.TargetWords(" Short "))
	assert.Equal(t, 300, p.TargetWords("long"))
	assert.Equal(t, 150, p.TargetWords("epic"))
	assert.Equal(t, []string{"short", "medium", "long"}, p.Names())
}

func TestParsePresetsRejectsMissingDefault(t *testing.T) {
	_, err := ParsePresets([]byte("default: huge\nlengths:\n  short:\n    words: 10\n"))
	assert.Error(t, err)
}

func TestParsePresetsRejectsNonPositiveWords(t *testing.T) {
	_, err := ParsePresets([]byte("default: short\nlengths:\n  short:\n    words: 0\n"))
	assert.Error(t, err)
}

func TestPresetsOverride(t *testing.T) {
	p, err := LoadPresets()
	require.NoError(t, err)

	o := p.Override("LONG", 0)
	assert.Equal(t, 300, o.TargetWords(""))
	assert.Equal(t, 150, p.TargetWords(""), "original is untouched")

	o = p.Override("unknown", 90)
	assert.Equal(t, 90, o.TargetWords(""))
	assert.Equal(t, 60, o.TargetWords("short"))
}
