package catalog

import (
	"context"
	"time"
)

// Fetcher retrieves raw HTML, optionally rotating through proxies.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// ProxyRotator hands out proxy candidates in rotation order.
type ProxyRotator interface {
	Next() (ProxyCandidate, bool)
	Len() int
}

// SnapshotStore is the durable home of the latest snapshot.
type SnapshotStore interface {
	Save(ctx context.Context, snapshot Snapshot) error
	Load(ctx context.Context) (Snapshot, error)
	Clear(ctx context.Context) error
}

// SnapshotSink receives a copy of every persisted snapshot on a best-effort basis.
type SnapshotSink interface {
	Save(ctx context.Context, snapshot Snapshot) error
}

// Publisher pushes notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
