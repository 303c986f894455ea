package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSeeds(t *testing.T) {
	t.Parallel()

	seeds, err := DefaultSeeds()
	require.NoError(t, err)
	require.NotEmpty(t, seeds)
	assert.Equal(t, "cachyos", seeds[0].ID)
}

func TestParseSeedsRejectsDuplicates(t *testing.T) {
	t.Parallel()

	_, err := ParseSeeds([]byte("seeds:\n  - {id: a}\n  - {id: a}\n"))
	require.Error(t, err)

	_, err = ParseSeeds([]byte("seeds:\n  - {id: ''}\n"))
	require.Error(t, err)

	_, err = ParseSeeds([]byte("seeds: [\n"))
	require.Error(t, err)
}

func TestBuildFallback(t *testing.T) {
	t.Parallel()

	seeds := []Seed{{ID: "ubuntu", Name: "Ubuntu"}, {ID: "debian"}, {ID: "fedora", Name: "Fedora"}}
	got := BuildFallback(seeds, 2, "https://distrowatch.com/")
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Rank)
	assert.Equal(t, 2, got[1].Rank)
	assert.Equal(t, "debian", got[1].DisplayName)
	assert.Equal(t, "https://distrowatch.com/table.php?distribution=ubuntu", got[0].DetailURL)

	assert.Len(t, BuildFallback(seeds, 10, "https://distrowatch.com"), 3)
	assert.Empty(t, BuildFallback(seeds, 0, "https://distrowatch.com"))
}
