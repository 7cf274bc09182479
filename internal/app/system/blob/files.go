package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dalemusser/waffle/pantry/storage"
)

// Files adapts a waffle storage backend to Store.
type Files struct {
	store  storage.Store
	expiry time.Duration
}

// New wraps store. expiry bounds presigned download URLs; zero uses 15 minutes.
func New(store storage.Store, expiry time.Duration) *Files {
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	return &Files{store: store, expiry: expiry}
}

// Backend names the underlying storage backend ("local", "s3", ...).
func (f *Files) Backend() string { return f.store.Backend() }

// Local returns the on-disk backend when files are served by this process.
func (f *Files) Local() (*storage.Local, bool) {
	l, ok := f.store.(*storage.Local)
	return l, ok
}

// Put writes r to key, replacing any existing object.
func (f *Files) Put(ctx context.Context, key string, r io.Reader, _ int64, contentType string) error {
	if !validKey(key) {
		return ErrInvalidKey
	}
	if err := f.store.Put(ctx, key, r, &storage.PutOptions{ContentType: contentType}); err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Missing objects are not an error.
func (f *Files) Delete(ctx context.Context, key string) error {
	if !validKey(key) {
		return ErrInvalidKey
	}
	if err := f.store.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// URL returns a presigned download URL, or the backend's public URL when it
// cannot presign (local disk).
func (f *Files) URL(ctx context.Context, key string) (string, error) {
	if !validKey(key) {
		return "", ErrInvalidKey
	}
	u, err := f.store.PresignedURL(ctx, key, &storage.PresignOptions{Expires: f.expiry})
	if errors.Is(err, storage.ErrPresignNotSupported) {
		if u = f.store.URL(key); u == "" {
			return "", fmt.Errorf("no url for %s: %w", key, err)
		}
		return u, nil
	}
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return u, nil
}
