package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/distro-catalog-crawler/internal/catalog"
)

var identifierPattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

// RankingExtractor parses the popularity page.
type RankingExtractor struct {
	base    *url.URL
	markers Markers
	logger  *zap.Logger
}

// NewRankingExtractor builds an extractor resolving relative links against baseURL.
func NewRankingExtractor(baseURL string, markers Markers, logger *zap.Logger) (*RankingExtractor, error) {
	base, err := url.Parse(baseURL)
	if err != nil || !base.IsAbs() {
		return nil, fmt.Errorf("ranking base url %q must be absolute", baseURL)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RankingExtractor{base: base, markers: markers.withDefaults(), logger: logger}, nil
}

// Parse returns up to limit entries in strictly increasing rank order with
// unique identifiers. A page without the labelled ranking table yields an
// empty slice; Parse never fails.
func (r *RankingExtractor) Parse(html []byte, limit int) []catalog.RankedEntry {
	if limit <= 0 {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		r.logger.Warn("ranking page unreadable", zap.Error(err))
		return nil
	}

	table := r.rankingTable(doc)
	if table.Length() == 0 {
		r.logger.Warn("ranking table not found", zap.String("header", r.markers.RankingHeader))
		return nil
	}

	var (
		entries  []catalog.RankedEntry
		seen     = make(map[string]struct{})
		lastRank int
	)
	table.Find("tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		entry, ok := r.parseRow(row)
		if !ok {
			return true
		}
		if entry.Rank <= lastRank {
			return true
		}
		if _, dup := seen[entry.Identifier]; dup {
			return true
		}
		seen[entry.Identifier] = struct{}{}
		lastRank = entry.Rank
		entries = append(entries, entry)
		return len(entries) < limit
	})
	return entries
}

// rankingTable returns the innermost table holding a header cell with the
// ranking label.
func (r *RankingExtractor) rankingTable(doc *goquery.Document) *goquery.Selection {
	header := doc.Find("th, td").FilterFunction(func(_ int, s *goquery.Selection) bool {
		if s.Find("table").Length() > 0 {
			return false
		}
		return strings.Contains(s.Text(), r.markers.RankingHeader)
	}).First()
	return header.Closest("table")
}

func (r *RankingExtractor) parseRow(row *goquery.Selection) (catalog.RankedEntry, bool) {
	rankCell := row.ChildrenFiltered("th.phr1").First()
	if rankCell.Length() == 0 {
		rankCell = row.ChildrenFiltered("th, td").First()
	}
	rank, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(rankCell.Text()), "."))
	if err != nil || rank <= 0 {
		return catalog.RankedEntry{}, false
	}

	nameCell := rankCell.NextAllFiltered("td.phr2").First()
	if nameCell.Length() == 0 {
		nameCell = rankCell.NextAllFiltered("td").First()
	}
	link := nameCell.Find("a[href]").First()
	href, _ := link.Attr("href")
	name := strings.TrimSpace(link.Text())
	if href == "" || name == "" {
		return catalog.RankedEntry{}, false
	}

	detailURL, identifier, ok := r.resolve(href)
	if !ok {
		return catalog.RankedEntry{}, false
	}
	return catalog.RankedEntry{
		Rank:        rank,
		DisplayName: name,
		Identifier:  identifier,
		DetailURL:   detailURL,
	}, true
}

// resolve turns an href into an absolute detail URL and its identifier, taken
// from the distribution query parameter or the last path segment.
func (r *RankingExtractor) resolve(href string) (string, string, bool) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", "", false
	}
	abs := r.base.ResolveReference(ref)

	identifier := abs.Query().Get("distribution")
	if identifier == "" {
		identifier = path.Base(strings.TrimSuffix(abs.Path, "/"))
	}
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	if !identifierPattern.MatchString(identifier) {
		return "", "", false
	}
	return abs.String(), identifier, true
}
