package catalog

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the day/month/year layout used for release dates in snapshots.
const DateLayout = "02/01/2006"

// ISODateLayout is the layout the catalog site prints release dates in.
const ISODateLayout = "2006-01-02"

// RankedEntry is one row of the ranking page.
type RankedEntry struct {
	Rank        int    `json:"rank"`
	DisplayName string `json:"name"`
	Identifier  string `json:"id"`
	DetailURL   string `json:"url"`
}

// Date is a calendar date serialized as dd/mm/yyyy.
type Date struct {
	t time.Time
}

// NewDate builds a Date at UTC midnight.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseISODate parses a YYYY-MM-DD string.
func ParseISODate(raw string) (Date, error) {
	t, err := time.Parse(ISODateLayout, strings.TrimSpace(raw))
	if err != nil {
		return Date{}, fmt.Errorf("parse iso date %q: %w", raw, err)
	}
	return Date{t: t}, nil
}

// Time returns the date as a UTC timestamp at midnight.
func (d Date) Time() time.Time {
	return d.t
}

// String renders the date as dd/mm/yyyy.
func (d Date) String() string {
	return d.t.Format(DateLayout)
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode date: %w", err)
	}
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return fmt.Errorf("parse date %q: %w", raw, err)
	}
	d.t = t
	return nil
}

// DistroRecord is the structured result of one detail page. Every optional
// field is independently nullable.
type DistroRecord struct {
	Identifier           string   `json:"id"`
	DisplayName          string   `json:"name"`
	Category             *string  `json:"category"`
	ReleaseDate          *Date    `json:"release_date"`
	PopularityRank       *int     `json:"popularity_rank"`
	PopularityHitsPerDay *int     `json:"popularity_hits"`
	Rating               *float64 `json:"rating"`
}

// SnapshotMetadata describes how a snapshot was produced.
type SnapshotMetadata struct {
	Source         string  `json:"source"`
	Scraper        string  `json:"scraper"`
	Version        string  `json:"version"`
	RunID          string  `json:"run_id,omitempty"`
	LimitRequested int     `json:"limit_requested"`
	Attempted      int     `json:"attempted"`
	SuccessRate    float64 `json:"success_rate"`
	FallbackUsed   bool    `json:"fallback_used"`
	Partial        bool    `json:"partial"`
}

// Snapshot is the persisted batch result of one pipeline run.
type Snapshot struct {
	ScrapedAt time.Time        `json:"scraped_at"`
	ScrapedBy string           `json:"scraped_by,omitempty"`
	Total     int              `json:"total"`
	Records   []DistroRecord   `json:"distros"`
	Metadata  SnapshotMetadata `json:"metadata"`
}

// NewSnapshot assembles a snapshot, deriving the total and success rate from
// the records and the number of ranked entries attempted.
func NewSnapshot(scrapedAt time.Time, records []DistroRecord, attempted int, meta SnapshotMetadata) Snapshot {
	if records == nil {
		records = []DistroRecord{}
	}
	meta.Attempted = attempted
	meta.SuccessRate = 0
	if attempted > 0 {
		meta.SuccessRate = float64(len(records)) / float64(attempted)
	}
	return Snapshot{
		ScrapedAt: scrapedAt,
		Total:     len(records),
		Records:   records,
		Metadata:  meta,
	}
}

// Status summarizes the latest snapshot for the status interface.
type Status struct {
	Available bool       `json:"available"`
	ScrapedAt *time.Time `json:"scraped_at,omitempty"`
	Total     int        `json:"total"`
}

// StatusOf derives a Status from a snapshot.
func StatusOf(s Snapshot) Status {
	scrapedAt := s.ScrapedAt
	return Status{
		Available: true,
		ScrapedAt: &scrapedAt,
		Total:     s.Total,
	}
}

// ProxyScheme is the egress protocol of a proxy candidate.
type ProxyScheme string

// Supported proxy schemes.
const (
	SchemeHTTP   ProxyScheme = "http"
	SchemeSOCKS4 ProxyScheme = "socks4"
	SchemeSOCKS5 ProxyScheme = "socks5"
)

// Valid reports whether the scheme is one of the supported values.
func (s ProxyScheme) Valid() bool {
	switch s {
	case SchemeHTTP, SchemeSOCKS4, SchemeSOCKS5:
		return true
	default:
		return false
	}
}

// ProxyCandidate is one third-party egress endpoint.
type ProxyCandidate struct {
	Scheme  ProxyScheme `json:"scheme"`
	Address string      `json:"address"`
}

// String renders the candidate as scheme://host:port.
func (p ProxyCandidate) String() string {
	return string(p.Scheme) + "://" + p.Address
}

// FetchRequest captures everything needed to fetch one page.
type FetchRequest struct {
	URL     string
	Timeout time.Duration
	// Proxies, when non-nil and non-empty, is tried before the direct attempt.
	Proxies ProxyRotator
}

// FetchResponse is returned by a Fetcher.
type FetchResponse struct {
	URL        string
	StatusCode int
	Body       []byte
	Egress     string
	Attempts   int
	Duration   time.Duration
}
