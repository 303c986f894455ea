package system

import (
	"testing"
	"time"

	"github.com/JakeFAU/distro-catalog-crawler/internal/catalog"
)

var _ catalog.Clock = (*Clock)(nil)

// TestClockNowUTC ensures snapshot timestamps are always UTC.
func TestClockNowUTC(t *testing.T) {
	t.Parallel()

	clk := New()
	before := time.Now().UTC().Add(-time.Second)
	got := clk.Now()
	after := time.Now().UTC().Add(time.Second)

	if got.Location() != time.UTC {
		t.Fatalf("expected UTC location, got %v", got.Location())
	}
	if got.Before(before) || got.After(after) {
		t.Fatalf("expected %v to be between %v and %v", got, before, after)
	}
}
