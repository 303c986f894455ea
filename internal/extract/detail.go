package extract

import (
	"bytes"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/distro-catalog-crawler/internal/catalog"
)

// DetailExtractor parses a single distribution page.
type DetailExtractor struct {
	markers    Markers
	popularity *regexp.Regexp
	logger     *zap.Logger
}

// NewDetailExtractor builds a DetailExtractor for the given markers.
func NewDetailExtractor(markers Markers, logger *zap.Logger) *DetailExtractor {
	markers = markers.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DetailExtractor{
		markers:    markers,
		popularity: regexp.MustCompile(regexp.QuoteMeta(markers.PopularityPhrase) + `:\s*(\d+)\s*\(([\d.,]+)\)`),
		logger:     logger,
	}
}

// Parse builds a record from html. It reports false only when the page has no
// first-level heading; every other field is probed independently and left nil
// when absent or malformed.
func (d *DetailExtractor) Parse(html []byte, identifier string) (*catalog.DistroRecord, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, false
	}
	name := strings.TrimSpace(doc.Find("h1").First().Text())
	if name == "" {
		return nil, false
	}

	rec := &catalog.DistroRecord{
		Identifier:  identifier,
		DisplayName: name,
	}
	rec.Category = probe(d, identifier, "category", func() *string { return categoryOf(doc, d.markers.CategoryLabel) })
	rec.ReleaseDate = probe(d, identifier, "release_date", func() *catalog.Date { return releaseDateOf(doc, d.markers.ReleaseDateLabel) })
	pop := probe(d, identifier, "popularity", func() *popularity { return popularityOf(doc, d.markers.PopularityPhrase, d.popularity) })
	if pop != nil {
		rec.PopularityRank = &pop.rank
		rec.PopularityHitsPerDay = &pop.hits
	}
	rec.Rating = probe(d, identifier, "rating", func() *float64 { return ratingOf(doc, d.markers.RatingLabel) })
	return rec, true
}

// probe runs fn, turning a panic into a nil field.
func probe[T any](d *DetailExtractor, identifier, field string, fn func() *T) (out *T) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Warn("field probe panicked",
				zap.String("id", identifier),
				zap.String("field", field),
				zap.Any("panic", r),
			)
			out = nil
		}
	}()
	out = fn()
	if out == nil {
		d.logger.Debug("field absent", zap.String("id", identifier), zap.String("field", field))
	}
	return out
}

func categoryOf(doc *goquery.Document, label string) *string {
	var category *string
	doc.Find("li").EachWithBreak(func(_ int, li *goquery.Selection) bool {
		if !strings.Contains(li.Find("b").First().Text(), label) {
			return true
		}
		var tags []string
		li.Find("a").Each(func(_ int, a *goquery.Selection) {
			if t := strings.TrimSpace(a.Text()); t != "" {
				tags = append(tags, t)
			}
		})
		if len(tags) > 0 {
			joined := strings.Join(tags, ", ")
			category = &joined
		}
		return false
	})
	return category
}

func releaseDateOf(doc *goquery.Document, label string) *catalog.Date {
	var date *catalog.Date
	doc.Find("th").EachWithBreak(func(_ int, th *goquery.Selection) bool {
		if !strings.Contains(th.Text(), label) {
			return true
		}
		cell := th.Closest("tr").Find("td.Date").First()
		if cell.Length() == 0 {
			cell = th.NextAllFiltered("td").First()
		}
		if parsed, err := catalog.ParseISODate(cell.Text()); err == nil {
			date = &parsed
		}
		return false
	})
	return date
}

type popularity struct {
	rank int
	hits int
}

func popularityOf(doc *goquery.Document, phrase string, pattern *regexp.Regexp) *popularity {
	var found *popularity
	doc.Find("*").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		owns := s.Contents().FilterFunction(func(_ int, c *goquery.Selection) bool {
			return goquery.NodeName(c) == "#text" && strings.Contains(c.Text(), phrase)
		}).Length() > 0
		if !owns {
			return true
		}
		m := pattern.FindStringSubmatch(s.Text())
		if m == nil {
			return true
		}
		rank, err := strconv.Atoi(m[1])
		if err != nil || rank <= 0 {
			return true
		}
		hits, err := strconv.Atoi(strings.NewReplacer(",", "", ".", "").Replace(m[2]))
		if err != nil || hits < 0 {
			return true
		}
		found = &popularity{rank: rank, hits: hits}
		return false
	})
	return found
}

func ratingOf(doc *goquery.Document, label string) *float64 {
	var rating *float64
	doc.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if !strings.Contains(a.Text(), label) {
			return true
		}
		b := a.NextAllFiltered("b").First()
		if b.Length() == 0 {
			b = a.Parent().NextAllFiltered("b").First()
		}
		raw := strings.ReplaceAll(strings.TrimSpace(b.Text()), ",", ".")
		v, err := strconv.ParseFloat(raw, 64)
		if err == nil && !math.IsNaN(v) && v >= 0 && v <= 10 {
			rating = &v
		}
		return false
	})
	return rating
}
