package port

import (
	"context"
	"io"
	"time"
)

// UploadInput describes a flagged document to store.
type UploadInput struct {
	Bucket      string
	Key         string
	Body        io.Reader
	ContentType string
	Size        int64
}

// UploadOutput reports where the object landed.
type UploadOutput struct {
	Location string
	ETag     string
}

// ObjectStorage keeps the original files of flagged documents so that a
// later training job can reach them.
type ObjectStorage interface {
	Upload(ctx context.Context, input UploadInput) (*UploadOutput, error)
	Delete(ctx context.Context, bucket, key string) error
	PresignGetURL(ctx context.Context, bucket, key string, expiry time.Duration) (string, error)
}
