package gcs_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/JakeFAU/distro-catalog-crawler/internal/catalog"
	"github.com/JakeFAU/distro-catalog-crawler/internal/storage/gcs"
)

// newTestMirror creates a mirror pointed at a fake GCS JSON API.
func newTestMirror(t *testing.T, handler http.Handler) *gcs.SnapshotMirror {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := storage.NewClient(context.Background(), option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	mirror, err := gcs.New(client, gcs.Config{Bucket: "test-bucket", Object: "distros.json"})
	require.NoError(t, err)
	return mirror
}

func TestSnapshotMirrorSave(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/upload/storage/v1/b/test-bucket/o")
		assert.Equal(t, "distros.json", r.URL.Query().Get("name"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), `"scraped_at":"2025-11-20T12:00:00Z"`)
		assert.Contains(t, string(body), `"id":"debian"`)

		fmt.Fprintln(w, `{ "name": "distros.json", "bucket": "test-bucket" }`)
	})

	mirror := newTestMirror(t, handler)
	snap := catalog.NewSnapshot(
		time.Date(2025, 11, 20, 12, 0, 0, 0, time.UTC),
		[]catalog.DistroRecord{{Identifier: "debian", DisplayName: "Debian"}},
		1,
		catalog.SnapshotMetadata{Source: "distrowatch.com", RunID: "run-1"},
	)
	require.NoError(t, mirror.Save(context.Background(), snap))
	assert.Equal(t, "gs://test-bucket/distros.json", mirror.URI())
}

func TestSnapshotMirrorSaveError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	mirror := newTestMirror(t, handler)
	err := mirror.Save(context.Background(), catalog.NewSnapshot(time.Now(), nil, 0, catalog.SnapshotMetadata{}))
	assert.Error(t, err)
}

func TestNewValidation(t *testing.T) {
	_, err := gcs.New(nil, gcs.Config{Bucket: "b"})
	assert.Error(t, err)

	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	defer client.Close()

	_, err = gcs.New(client, gcs.Config{})
	assert.Error(t, err)

	mirror, err := gcs.New(client, gcs.Config{Bucket: "b"})
	require.NoError(t, err)
	assert.Equal(t, "gs://b/distros_scraped.json", mirror.URI())
}
