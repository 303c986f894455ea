package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T {
	return &v
}

func TestSnapshotRoundTrip(t *testing.T) {
	t.Parallel()

	release := NewDate(2025, time.November, 17)
	records := []DistroRecord{
		{
			Identifier:           "ubuntu",
			DisplayName:          "Ubuntu",
			Category:             ptr("Beginners, Desktop, Server"),
			ReleaseDate:          &release,
			PopularityRank:       ptr(21),
			PopularityHitsPerDay: ptr(603),
			Rating:               ptr(7.25),
		},
		{
			Identifier:  "debian",
			DisplayName: "Debian",
		},
	}
	snap := NewSnapshot(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), records, 3, SnapshotMetadata{
		Source:         "distrowatch.com",
		Scraper:        "colly",
		Version:        "1.0.0",
		LimitRequested: 3,
	})

	data, err := json.Marshal(snap)
	require.NoError(t, err)
	require.Contains(t, string(data), `"release_date":"17/11/2025"`)
	require.Contains(t, string(data), `"rating":null`)

	var decoded Snapshot
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, snap, decoded)
}

func TestNewSnapshotDerivesTotals(t *testing.T) {
	t.Parallel()

	snap := NewSnapshot(time.Unix(0, 0).UTC(), []DistroRecord{{Identifier: "a"}, {Identifier: "b"}}, 4, SnapshotMetadata{})
	require.Equal(t, 2, snap.Total)
	require.Len(t, snap.Records, snap.Total)
	require.InDelta(t, 0.5, snap.Metadata.SuccessRate, 1e-9)
	require.Equal(t, 4, snap.Metadata.Attempted)

	empty := NewSnapshot(time.Unix(0, 0).UTC(), nil, 0, SnapshotMetadata{})
	require.Equal(t, 0, empty.Total)
	require.NotNil(t, empty.Records)
	require.Zero(t, empty.Metadata.SuccessRate)
}

func TestParseISODate(t *testing.T) {
	t.Parallel()

	d, err := ParseISODate(" 2025-11-17 ")
	require.NoError(t, err)
	require.Equal(t, "17/11/2025", d.String())

	_, err = ParseISODate("17 Nov 2025")
	require.Error(t, err)
}

func TestErrorClassification(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	fetchErr := fmt.Errorf("detail: %w", &FetchError{URL: "https://example.com", Egress: "direct", Err: cause})
	require.ErrorIs(t, fetchErr, ErrTransport)
	require.ErrorIs(t, fetchErr, cause)
	require.NotErrorIs(t, fetchErr, ErrPersistence)

	statusErr := &FetchError{URL: "https://example.com", Egress: "direct", StatusCode: 403}
	require.Contains(t, statusErr.Error(), "status 403")

	persistErr := &PersistenceError{Path: "/tmp/x.json", Err: cause}
	require.ErrorIs(t, persistErr, ErrPersistence)
	require.ErrorIs(t, persistErr, cause)
}

func TestProxyScheme(t *testing.T) {
	t.Parallel()

	require.True(t, SchemeSOCKS4.Valid())
	require.False(t, ProxyScheme("https").Valid())
	require.Equal(t, "socks5://1.2.3.4:1080", ProxyCandidate{Scheme: SchemeSOCKS5, Address: "1.2.3.4:1080"}.String())
}
