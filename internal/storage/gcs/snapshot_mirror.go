// Package gcs mirrors snapshots into a Google Cloud Storage bucket.
package gcs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/JakeFAU/distro-catalog-crawler/internal/catalog"
)

// Config captures the parameters required to connect to GCS.
type Config struct {
	Bucket string
	Object string
}

// SnapshotMirror uploads each snapshot to a fixed object in a bucket.
type SnapshotMirror struct {
	client *storage.Client
	bucket string
	object string
}

// New creates a GCS-backed snapshot mirror.
func New(client *storage.Client, cfg Config) (*SnapshotMirror, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	object := strings.TrimSpace(cfg.Object)
	if object == "" {
		object = "distros_scraped.json"
	}
	return &SnapshotMirror{
		client: client,
		bucket: cfg.Bucket,
		object: object,
	}, nil
}

// URI returns the gs:// location snapshots are mirrored to.
func (m *SnapshotMirror) URI() string {
	return fmt.Sprintf("gs://%s/%s", m.bucket, m.object)
}

// Save uploads the snapshot as JSON.
func (m *SnapshotMirror) Save(ctx context.Context, snapshot catalog.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	writer := m.client.Bucket(m.bucket).Object(m.object).NewWriter(ctx)
	writer.ContentType = "application/json"
	writer.Metadata = map[string]string{
		"run_id":     snapshot.Metadata.RunID,
		"total":      fmt.Sprint(snapshot.Total),
		"scraped_at": snapshot.ScrapedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return nil
}
