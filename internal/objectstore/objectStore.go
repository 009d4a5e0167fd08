package objectstore

import (
	"context"
	"io"
	"time"
)

// ObjectStore abstracts the durable blob backend. Compose concatenates
// already-stored objects server side, in the given order, into a new object.
type ObjectStore interface {
	Put(ctx context.Context, key string, data io.Reader, size int64) error
	GetReader(ctx context.Context, key string) (io.ReadCloser, error)
	Compose(ctx context.Context, sourceKeys []string, targetKey string) error
	Stat(ctx context.Context, key string) (size int64, err error)
	Remove(ctx context.Context, keys ...string) error
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}
