package extract

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/distro-catalog-crawler/internal/catalog"
)

const (
	partName     = `<h1>Debian GNU/Linux</h1>`
	partCategory = `<ul><li><b>OS Type:</b> <a href="search.php?ostype=Linux">Linux</a></li>
<li><b>Category:</b> <a href="search.php?category=Desktop">Desktop</a>, <a href="search.php?category=Live+Medium">Live Medium</a>, <a href="search.php?category=Server">Server</a></li></ul>`
	partRelease = `<table class="Info"><tr><th class="Info">Release Date</th><td class="Date">2025-11-17</td></tr></table>`
	partPop     = `<div class="TablesTitle">Popularity (hits per day): 12 months: 3 (1,003), 6 months: 3 (1,050), 3 months: 2 (1,120), <b>4 weeks: 2 (1,234)</b>, 1 week: 3 (1,110)</div>`
	partRating  = `<div><a href="dwres.php?resource=ratings&distro=debian">Average visitor rating</a>: <b>8.79</b>/10 from 300 review(s).</div>`
)

func detailPage(parts ...string) []byte {
	return []byte("<html><body>" + strings.Join(parts, "\n") + "</body></html>")
}

func TestDetailParseFull(t *testing.T) {
	t.Parallel()

	rec, ok := NewDetailExtractor(DefaultMarkers(), nil).Parse(detailPage(partName, partCategory, partRelease, partPop, partRating), "debian")
	require.True(t, ok)
	assert.Equal(t, "debian", rec.Identifier)
	assert.Equal(t, "Debian GNU/Linux", rec.DisplayName)
	require.NotNil(t, rec.Category)
	assert.Equal(t, "Desktop, Live Medium, Server", *rec.Category)
	require.NotNil(t, rec.ReleaseDate)
	assert.Equal(t, "17/11/2025", rec.ReleaseDate.String())
	assert.Equal(t, catalog.NewDate(2025, time.November, 17), *rec.ReleaseDate)
	require.NotNil(t, rec.PopularityRank)
	assert.Equal(t, 2, *rec.PopularityRank)
	require.NotNil(t, rec.PopularityHitsPerDay)
	assert.Equal(t, 1234, *rec.PopularityHitsPerDay)
	require.NotNil(t, rec.Rating)
	assert.InDelta(t, 8.79, *rec.Rating, 1e-9)
}

func TestDetailParseMissingHeading(t *testing.T) {
	t.Parallel()

	rec, ok := NewDetailExtractor(DefaultMarkers(), nil).Parse(detailPage(partCategory, partRelease), "debian")
	assert.False(t, ok)
	assert.Nil(t, rec)
}

func TestDetailParseEachFieldIndependent(t *testing.T) {
	t.Parallel()

	d := NewDetailExtractor(DefaultMarkers(), nil)
	cases := []struct {
		name  string
		parts []string
		check func(t *testing.T, rec *catalog.DistroRecord)
	}{
		{
			name:  "no category",
			parts: []string{partName, partRelease, partPop, partRating},
			check: func(t *testing.T, rec *catalog.DistroRecord) {
				assert.Nil(t, rec.Category)
				assert.NotNil(t, rec.ReleaseDate)
				assert.NotNil(t, rec.PopularityRank)
				assert.NotNil(t, rec.Rating)
			},
		},
		{
			name:  "no release date",
			parts: []string{partName, partCategory, partPop, partRating},
			check: func(t *testing.T, rec *catalog.DistroRecord) {
				assert.Nil(t, rec.ReleaseDate)
				assert.NotNil(t, rec.Category)
				assert.NotNil(t, rec.PopularityHitsPerDay)
				assert.NotNil(t, rec.Rating)
			},
		},
		{
			name:  "no popularity",
			parts: []string{partName, partCategory, partRelease, partRating},
			check: func(t *testing.T, rec *catalog.DistroRecord) {
				assert.Nil(t, rec.PopularityRank)
				assert.Nil(t, rec.PopularityHitsPerDay)
				assert.NotNil(t, rec.Category)
				assert.NotNil(t, rec.ReleaseDate)
				assert.NotNil(t, rec.Rating)
			},
		},
		{
			name:  "no rating",
			parts: []string{partName, partCategory, partRelease, partPop},
			check: func(t *testing.T, rec *catalog.DistroRecord) {
				assert.Nil(t, rec.Rating)
				assert.NotNil(t, rec.Category)
				assert.NotNil(t, rec.ReleaseDate)
				assert.NotNil(t, rec.PopularityRank)
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rec, ok := d.Parse(detailPage(tc.parts...), "debian")
			require.True(t, ok)
			assert.Equal(t, "Debian GNU/Linux", rec.DisplayName)
			tc.check(t, rec)
		})
	}
}

func TestDetailParseMalformedValues(t *testing.T) {
	t.Parallel()

	page := detailPage(
		partName,
		`<table><tr><th>Release Date</th><td class="Date">unknown</td></tr></table>`,
		`<div><a href="ratings">Average visitor rating</a>: <b>n/a</b></div>`,
	)
	rec, ok := NewDetailExtractor(DefaultMarkers(), nil).Parse(page, "debian")
	require.True(t, ok)
	assert.Nil(t, rec.ReleaseDate)
	assert.Nil(t, rec.Rating)
}

func TestDetailParseRatingOutOfRange(t *testing.T) {
	t.Parallel()

	page := detailPage(partName, `<div><a href="ratings">Average visitor rating</a>: <b>11.5</b></div>`)
	rec, ok := NewDetailExtractor(DefaultMarkers(), nil).Parse(page, "debian")
	require.True(t, ok)
	assert.Nil(t, rec.Rating)
}

func TestDetailParseCommaDecimalRating(t *testing.T) {
	t.Parallel()

	page := detailPage(partName, `<p><a href="ratings">Average visitor rating</a></p>: <b>7,5</b>`)
	rec, ok := NewDetailExtractor(DefaultMarkers(), nil).Parse(page, "debian")
	require.True(t, ok)
	require.NotNil(t, rec.Rating)
	assert.InDelta(t, 7.5, *rec.Rating, 1e-9)
}

func TestDetailParseLocalizedMarkers(t *testing.T) {
	t.Parallel()

	markers := Markers{
		CategoryLabel:    "Categoria",
		ReleaseDateLabel: "Data de Lançamento",
		PopularityPhrase: "4 semanas",
		RatingLabel:      "Avaliação média",
	}
	page := detailPage(
		`<h1>Linux Mint</h1>`,
		`<ul><li><b>Categoria:</b> <a href="#">Desktop</a></li></ul>`,
		`<table><tr><th>Data de Lançamento</th><td class="Date">2024-08-02</td></tr></table>`,
		`<div>Popularidade: 4 semanas: 21 (603)</div>`,
	)
	rec, ok := NewDetailExtractor(markers, nil).Parse(page, "mint")
	require.True(t, ok)
	require.NotNil(t, rec.Category)
	assert.Equal(t, "Desktop", *rec.Category)
	require.NotNil(t, rec.ReleaseDate)
	assert.Equal(t, "02/08/2024", rec.ReleaseDate.String())
	require.NotNil(t, rec.PopularityRank)
	assert.Equal(t, 21, *rec.PopularityRank)
	assert.Equal(t, 603, *rec.PopularityHitsPerDay)
	assert.Nil(t, rec.Rating)
}

func TestDetailParseDotThousandsSeparator(t *testing.T) {
	t.Parallel()

	page := detailPage(partName, `<span>4 weeks: 7 (2.345)</span>`)
	rec, ok := NewDetailExtractor(DefaultMarkers(), nil).Parse(page, "debian")
	require.True(t, ok)
	require.NotNil(t, rec.PopularityHitsPerDay)
	assert.Equal(t, 2345, *rec.PopularityHitsPerDay)
}

func TestProbeRecoversPanics(t *testing.T) {
	t.Parallel()

	d := NewDetailExtractor(DefaultMarkers(), nil)
	got := probe(d, "debian", "boom", func() *string { panic("markup exploded") })
	assert.Nil(t, got)
}

func TestDetailParseIdempotent(t *testing.T) {
	t.Parallel()

	d := NewDetailExtractor(DefaultMarkers(), nil)
	page := detailPage(partName, partCategory, partRelease, partPop, partRating)
	a, _ := d.Parse(page, "debian")
	b, _ := d.Parse(page, "debian")
	assert.Equal(t, a, b)
}
