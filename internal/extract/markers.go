package extract

// Markers are the literal strings matched against catalog markup.
type Markers struct {
	RankingHeader    string
	CategoryLabel    string
	ReleaseDateLabel string
	PopularityPhrase string
	RatingLabel      string
}

// DefaultMarkers returns the labels currently printed by the English catalog.
func DefaultMarkers() Markers {
	return Markers{
		RankingHeader:    "Last 1 month",
		CategoryLabel:    "Category",
		ReleaseDateLabel: "Release Date",
		PopularityPhrase: "4 weeks",
		RatingLabel:      "Average visitor rating",
	}
}

// withDefaults fills empty markers from DefaultMarkers.
func (m Markers) withDefaults() Markers {
	d := DefaultMarkers()
	if m.RankingHeader == "" {
		m.RankingHeader = d.RankingHeader
	}
	if m.CategoryLabel == "" {
		m.CategoryLabel = d.CategoryLabel
	}
	if m.ReleaseDateLabel == "" {
		m.ReleaseDateLabel = d.ReleaseDateLabel
	}
	if m.PopularityPhrase == "" {
		m.PopularityPhrase = d.PopularityPhrase
	}
	if m.RatingLabel == "" {
		m.RatingLabel = d.RatingLabel
	}
	return m
}
