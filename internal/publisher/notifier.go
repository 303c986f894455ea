// Package publisher announces persisted snapshots to downstream consumers.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JakeFAU/distro-catalog-crawler/internal/catalog"
)

// SnapshotEvent is the notification payload for a persisted snapshot.
type SnapshotEvent struct {
	RunID        string    `json:"run_id"`
	ScrapedAt    time.Time `json:"scraped_at"`
	Total        int       `json:"total"`
	Attempted    int       `json:"attempted"`
	SuccessRate  float64   `json:"success_rate"`
	FallbackUsed bool      `json:"fallback_used"`
	Partial      bool      `json:"partial"`
	Source       string    `json:"source"`
	Location     string    `json:"location,omitempty"`
}

// Notifier is a catalog.SnapshotSink that publishes a SnapshotEvent.
type Notifier struct {
	publisher catalog.Publisher
	topic     string
	location  string
}

// NewNotifier builds a Notifier. location is an optional pointer to where
// consumers can read the full snapshot.
func NewNotifier(publisher catalog.Publisher, topic, location string) (*Notifier, error) {
	if publisher == nil {
		return nil, errors.New("publisher is required")
	}
	if topic == "" {
		return nil, errors.New("topic is required")
	}
	return &Notifier{publisher: publisher, topic: topic, location: location}, nil
}

// EventFor summarizes a snapshot.
func EventFor(s catalog.Snapshot) SnapshotEvent {
	return SnapshotEvent{
		RunID:        s.Metadata.RunID,
		ScrapedAt:    s.ScrapedAt,
		Total:        s.Total,
		Attempted:    s.Metadata.Attempted,
		SuccessRate:  s.Metadata.SuccessRate,
		FallbackUsed: s.Metadata.FallbackUsed,
		Partial:      s.Metadata.Partial,
		Source:       s.Metadata.Source,
	}
}

// Save publishes the event for snapshot.
func (n *Notifier) Save(ctx context.Context, snapshot catalog.Snapshot) error {
	event := EventFor(snapshot)
	event.Location = n.location
	if _, err := n.publisher.Publish(ctx, n.topic, event); err != nil {
		return fmt.Errorf("notify %s: %w", n.topic, err)
	}
	return nil
}
