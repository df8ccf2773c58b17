// Package objectstore archives recording audio and voiceover assets in a
// NATS JetStream object store bucket.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nats-io/nats.go"
)

// DefaultBucket is the bucket name used when config does not override it.
const DefaultBucket = "PARLO_AUDIO"

const mimeMetadataKey = "mime_type"

// ErrObjectNotFound means the requested key has no stored object.
var ErrObjectNotFound = errors.New("object not found")

// BlobStore is a keyed audio blob archive backed by one JetStream bucket.
type BlobStore struct {
	bucket string
	store  nats.ObjectStore
}

// Connect dials a NATS server and opens its JetStream context.
func Connect(url, name string) (*nats.Conn, nats.JetStreamContext, error) {
	conn, err := nats.Connect(url, nats.Name(name))
	if err != nil {
		return nil, nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open JetStream context: %w", err)
	}
	return conn, js, nil
}

// New creates the bucket or binds to it when it already exists.
func New(js nats.JetStreamContext, bucket string) (*BlobStore, error) {
	store, err := js.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      bucket,
		Description: fmt.Sprintf("parlo audio archive (%s)", bucket),
		Storage:     nats.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		if !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
			return nil, fmt.Errorf("create object store bucket %q: %w", bucket, err)
		}
		store, err = js.ObjectStore(bucket)
		if err != nil {
			return nil, fmt.Errorf("bind to object store bucket %q: %w", bucket, err)
		}
	}

	return &BlobStore{bucket: bucket, store: store}, nil
}

// Upload stores one blob under key, recording its MIME type as metadata.
func (b *BlobStore) Upload(_ context.Context, key string, data []byte, mimeType string) error {
	_, err := b.store.Put(&nats.ObjectMeta{
		Name:     key,
		Metadata: map[string]string{mimeMetadataKey: mimeType},
	}, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("put object %q to bucket %q: %w", key, b.bucket, err)
	}
	return nil
}

// Download retrieves one blob and its stored MIME type.
func (b *BlobStore) Download(_ context.Context, key string) ([]byte, string, error) {
	obj, err := b.store.Get(key)
	if err != nil {
		if errors.Is(err, nats.ErrObjectNotFound) {
			return nil, "", fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, "", fmt.Errorf("get object %q from bucket %q: %w", key, b.bucket, err)
	}

	info, err := obj.Info()
	if err != nil {
		_ = obj.Close()
		return nil, "", fmt.Errorf("stat object %q: %w", key, err)
	}

	data, readErr := io.ReadAll(obj)
	closeErr := obj.Close()
	if readErr != nil {
		return nil, "", fmt.Errorf("read object %q: %w", key, readErr)
	}
	if closeErr != nil {
		return nil, "", fmt.Errorf("close object %q: %w", key, closeErr)
	}
	return data, info.Metadata[mimeMetadataKey], nil
}

// Delete removes one blob; deleting a missing key reports ErrObjectNotFound.
func (b *BlobStore) Delete(_ context.Context, key string) error {
	if err := b.store.Delete(key); err != nil {
		if errors.Is(err, nats.ErrObjectNotFound) {
			return fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return fmt.Errorf("delete object %q from bucket %q: %w", key, b.bucket, err)
	}
	return nil
}
