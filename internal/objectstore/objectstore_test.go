package objectstore_test

import (
	"context"
	"testing"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"

	"github.com/parlo-dev/parlo/internal/objectstore"
)

func startTestServer(t *testing.T) (*server.Server, *nats.Conn) {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1 // random port
	opts.JetStream = true
	opts.StoreDir = t.TempDir()
	natsServer := test.RunServer(&opts)

	conn, err := nats.Connect(natsServer.ClientURL())
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		natsServer.Shutdown()
	})
	return natsServer, conn
}

func newTestStore(t *testing.T) *objectstore.BlobStore {
	t.Helper()

	_, conn := startTestServer(t)
	js, err := conn.JetStream()
	require.NoError(t, err)

	store, err := objectstore.New(js, "test-audio")
	require.NoError(t, err)
	return store
}

func TestUploadDownloadRoundtrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	blob := []byte("RIFF....WAVEfmt fake audio payload")
	require.NoError(t, store.Upload(ctx, "rec-1", blob, "audio/wav"))

	data, mimeType, err := store.Download(ctx, "rec-1")
	require.NoError(t, err)
	require.Equal(t, blob, data)
	require.Equal(t, "audio/wav", mimeType)
}

func TestDownloadMissingKey(t *testing.T) {
	store := newTestStore(t)

	_, _, err := store.Download(context.Background(), "nope")
	require.ErrorIs(t, err, objectstore.ErrObjectNotFound)
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upload(ctx, "rec-1", []byte("x"), "audio/wav"))
	require.NoError(t, store.Delete(ctx, "rec-1"))

	_, _, err := store.Download(ctx, "rec-1")
	require.ErrorIs(t, err, objectstore.ErrObjectNotFound)

	require.ErrorIs(t, store.Delete(ctx, "rec-1"), objectstore.ErrObjectNotFound)
}

func TestUploadOverwritesExistingKey(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upload(ctx, "rec-1", []byte("first"), "audio/wav"))
	require.NoError(t, store.Upload(ctx, "rec-1", []byte("second"), "audio/mpeg"))

	data, mimeType, err := store.Download(ctx, "rec-1")
	require.NoError(t, err)
	require.Equal(t, []byte("second"), data)
	require.Equal(t, "audio/mpeg", mimeType)
}

func TestNewBindsToExistingBucket(t *testing.T) {
	_, conn := startTestServer(t)
	js, err := conn.JetStream()
	require.NoError(t, err)

	first, err := objectstore.New(js, "shared")
	require.NoError(t, err)
	require.NoError(t, first.Upload(context.Background(), "k", []byte("v"), "audio/wav"))

	second, err := objectstore.New(js, "shared")
	require.NoError(t, err)

	data, _, err := second.Download(context.Background(), "k")
	require.NoError(t, err)
	require.Equal(t, []byte("v"), data)
}
