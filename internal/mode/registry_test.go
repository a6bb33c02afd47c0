package mode

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

const sampleCatalog = `modes:
  balanced:
    description: "steady hands"
    instructions:
      - "Size positions moderately."
      - "Cut losers early."
  aggressive:
    instructions:
      - "Press winning trades."
`

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "modes.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewRegistryLoadsCatalog(t *testing.T) {
	r, err := NewRegistry(writeCatalog(t, sampleCatalog))

	assert.NoError(t, err)
	assert.Equal(t, []string{"aggressive", "balanced"}, r.Names())

	m, err := r.Mode("balanced")
	assert.NoError(t, err)
	assert.Equal(t, "balanced", m.ID)
	assert.Equal(t, "steady hands", m.Description)
	assert.Len(t, m.Instructions, 2)
}

func TestRegistryModeLookupIsCaseInsensitive(t *testing.T) {
	r, err := NewRegistry(writeCatalog(t, sampleCatalog))
	assert.NoError(t, err)

	m, err := r.Mode("  Balanced ")
	assert.NoError(t, err)
	assert.Equal(t, "balanced", m.ID)
}

func TestRegistryUnknownMode(t *testing.T) {
	r, err := NewRegistry(writeCatalog(t, sampleCatalog))
	assert.NoError(t, err)

	_, err = r.Mode("reckless")
	assert.True(t, errors.Is(err, ErrUnknownMode))
}

func TestNewRegistryRejectsMissingInstructions(t *testing.T) {
	_, err := NewRegistry(writeCatalog(t, "modes:\n  broken:\n    description: \"no body\"\n"))

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "modes config invalid")
}

func TestNewRegistryRejectsUnknownKeys(t *testing.T) {
	_, err := NewRegistry(writeCatalog(t, sampleCatalog+"extras:\n  x: 1\n"))

	assert.Error(t, err)
}

func TestNewRegistryRequiresPath(t *testing.T) {
	_, err := NewRegistry("  ")
	assert.Error(t, err)
}

func TestNewRegistryMissingFile(t *testing.T) {
	_, err := NewRegistry(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestReloadKeepsPreviousCatalogOnFailure(t *testing.T) {
	path := writeCatalog(t, sampleCatalog)
	r, err := NewRegistry(path)
	assert.NoError(t, err)
	before := r.Snapshot()

	// Corrupt the file, then reload by hand so the test does not depend
	// on fsnotify delivery timing.
	assert.NoError(t, os.WriteFile(path, []byte("modes: {}\n"), 0o644))
	assert.Error(t, r.reload())

	after := r.Snapshot()
	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, []string{"aggressive", "balanced"}, r.Names())
}

func TestReloadPicksUpNewModes(t *testing.T) {
	path := writeCatalog(t, sampleCatalog)
	r, err := NewRegistry(path)
	assert.NoError(t, err)
	before := r.Snapshot()

	updated := sampleCatalog + "  conservative:\n    instructions:\n      - \"Prefer holding.\"\n"
	assert.NoError(t, os.WriteFile(path, []byte(updated), 0o644))
	assert.NoError(t, r.reload())

	after := r.Snapshot()
	assert.Equal(t, before.Version+1, after.Version)
	assert.Contains(t, r.Names(), "conservative")
}

func TestPromptBlock(t *testing.T) {
	m := Mode{ID: "balanced", Description: "steady hands", Instructions: []string{"Size positions moderately.", ""}}

	block := m.PromptBlock()

	assert.Contains(t, block, "## Trading Mode: balanced (steady hands)")
	assert.Contains(t, block, "- Size positions moderately.")
	assert.Equal(t, "", Mode{ID: "empty"}.PromptBlock())
}
