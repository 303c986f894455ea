// Package extract turns catalog HTML into ranked entries and distribution
// records. Extractors never fail a whole page for a single missing field; the
// literal labels they match on are configurable Markers because the site
// changes its markup without notice.
package extract
