package publisher_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/distro-catalog-crawler/internal/catalog"
	"github.com/JakeFAU/distro-catalog-crawler/internal/publisher"
	"github.com/JakeFAU/distro-catalog-crawler/internal/publisher/memory"
)

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, string, any) (string, error) {
	return "", errors.New("unavailable")
}

func TestNotifierPublishesEvent(t *testing.T) {
	t.Parallel()

	mem := memory.New()
	n, err := publisher.NewNotifier(mem, "distro-snapshots", "gs://bucket/distros.json")
	require.NoError(t, err)

	snap := catalog.NewSnapshot(time.Date(2025, 11, 20, 0, 0, 0, 0, time.UTC), []catalog.DistroRecord{{Identifier: "mint"}}, 2, catalog.SnapshotMetadata{
		RunID:        "run-9",
		Source:       "distrowatch.com",
		FallbackUsed: true,
	})
	require.NoError(t, n.Save(context.Background(), snap))

	msgs := mem.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "distro-snapshots", msgs[0].Topic)
	event, ok := msgs[0].Payload.(publisher.SnapshotEvent)
	require.True(t, ok)
	assert.Equal(t, "run-9", event.RunID)
	assert.Equal(t, 1, event.Total)
	assert.Equal(t, 2, event.Attempted)
	assert.InDelta(t, 0.5, event.SuccessRate, 1e-9)
	assert.True(t, event.FallbackUsed)
	assert.Equal(t, "gs://bucket/distros.json", event.Location)
}

func TestNotifierPropagatesErrors(t *testing.T) {
	t.Parallel()

	n, err := publisher.NewNotifier(failingPublisher{}, "topic", "")
	require.NoError(t, err)
	err = n.Save(context.Background(), catalog.Snapshot{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "topic")
}

func TestNewNotifierValidation(t *testing.T) {
	t.Parallel()

	_, err := publisher.NewNotifier(nil, "topic", "")
	require.Error(t, err)
	_, err = publisher.NewNotifier(memory.New(), "", "")
	require.Error(t, err)
}
