package s3_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docbench/internal/config"
	"docbench/internal/port"
	s3storage "docbench/internal/storage/s3"
)

// fakeS3 records path-style PUT and DELETE requests.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[r.URL.Path] = body
		w.Header().Set("ETag", `"etag-1"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodDelete:
		f.deleted = append(f.deleted, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestStorage(t *testing.T) (port.ObjectStorage, *fakeS3, string) {
	t.Helper()
	fake := &fakeS3{objects: map[string][]byte{}}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	store, err := s3storage.NewS3Client(context.Background(), &config.S3Config{
		Region:    "us-east-1",
		Endpoint:  server.URL,
		AccessKey: "test",
		SecretKey: "test",
	})
	require.NoError(t, err)
	return store, fake, server.URL
}

func TestS3Client_Upload(t *testing.T) {
	store, fake, _ := newTestStorage(t)

	out, err := store.Upload(context.Background(), port.UploadInput{
		Bucket:      "flags",
		Key:         "finetune/abc/invoice.pdf",
		Body:        bytes.NewReader([]byte("%PDF-1.4")),
		ContentType: "application/pdf",
		Size:        8,
	})
	require.NoError(t, err)
	assert.Equal(t, `"etag-1"`, out.ETag)
	assert.Contains(t, out.Location, "/flags/finetune/abc/invoice.pdf")
	assert.Contains(t, string(fake.objects["/flags/finetune/abc/invoice.pdf"]), "%PDF-1.4")
}

func TestS3Client_Delete(t *testing.T) {
	store, fake, _ := newTestStorage(t)
	require.NoError(t, store.Delete(context.Background(), "flags", "a/b.pdf"))
	assert.Equal(t, []string{"/flags/a/b.pdf"}, fake.deleted)
}

func TestS3Client_PresignGetURL(t *testing.T) {
	store, _, base := newTestStorage(t)
	u, err := store.PresignGetURL(context.Background(), "flags", "a/b.pdf", 15*time.Minute)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, base+"/flags/a/b.pdf?"))
	assert.Contains(t, u, "X-Amz-Expires=900")
}
