package extract

import (
	_ "embed"
	"fmt"
	"net/url"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/distro-catalog-crawler/internal/catalog"
)

//go:embed seeds.yaml
var seedsYAML []byte

// Seed is one fallback distribution identifier.
type Seed struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

type seedFile struct {
	Seeds []Seed `yaml:"seeds"`
}

// DefaultSeeds decodes the embedded seed list.
func DefaultSeeds() ([]Seed, error) {
	return ParseSeeds(seedsYAML)
}

// ParseSeeds decodes a seed list document, rejecting blank or duplicate ids.
func ParseSeeds(data []byte) ([]Seed, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode seeds: %w", err)
	}
	seen := make(map[string]struct{}, len(f.Seeds))
	for i, s := range f.Seeds {
		id := strings.TrimSpace(s.ID)
		if id == "" {
			return nil, fmt.Errorf("seed %d: empty id", i)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("seed %d: duplicate id %q", i, id)
		}
		seen[id] = struct{}{}
	}
	return f.Seeds, nil
}

// BuildFallback turns seeds into ranked entries with sequential ranks, truncated to limit.
func BuildFallback(seeds []Seed, limit int, baseURL string) []catalog.RankedEntry {
	if limit <= 0 {
		return nil
	}
	if len(seeds) > limit {
		seeds = seeds[:limit]
	}
	base := strings.TrimSuffix(baseURL, "/")
	entries := make([]catalog.RankedEntry, 0, len(seeds))
	for i, s := range seeds {
		name := s.Name
		if name == "" {
			name = s.ID
		}
		entries = append(entries, catalog.RankedEntry{
			Rank:        i + 1,
			DisplayName: name,
			Identifier:  s.ID,
			DetailURL:   base + "/table.php?distribution=" + url.QueryEscape(s.ID),
		})
	}
	return entries
}
