package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func echoHandler() Handler {
	return HandlerFunc(func(_ context.Context, req Request) Response {
		return Response{OK: true, State: "idle", Message: req.Command, DurationMS: 1500, SizeBytes: 4096}
	})
}

func startServer(t *testing.T) (string, context.CancelFunc) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "parlo.sock")
	ctx, cancel := context.WithCancel(context.Background())

	listener, err := Acquire(ctx, path, 200*time.Millisecond, 1)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = Serve(ctx, listener, echoHandler())
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return path, cancel
}

func TestSendRoundtrip(t *testing.T) {
	path, _ := startServer(t)

	resp, err := Send(context.Background(), path, Request{Command: "status"}, time.Second)
	require.NoError(t, err)
	require.True(t, resp.OK)
	require.Equal(t, "status", resp.Message)
	require.Equal(t, int64(1500), resp.DurationMS)
	require.Equal(t, int64(4096), resp.SizeBytes)
}

func TestServeMultipleRequestsPerConnection(t *testing.T) {
	path, _ := startServer(t)

	conn, err := net.Dial("unix", path)
	require.NoError(t, err)
	defer conn.Close()

	encoder := json.NewEncoder(conn)
	reader := bufio.NewReader(conn)

	for _, command := range []string{"status", "pause", "resume"} {
		require.NoError(t, encoder.Encode(Request{Command: command}))

		line, err := reader.ReadBytes('\n')
		require.NoError(t, err)

		var resp Response
		require.NoError(t, json.Unmarshal(line, &resp))
		require.True(t, resp.OK)
		require.Equal(t, command, resp.Message)
	}
}

func TestAcquireRejectsLiveOwner(t *testing.T) {
	path, _ := startServer(t)

	_, err := Acquire(context.Background(), path, 200*time.Millisecond, 0)
	require.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestAcquireReclaimsStaleSocket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parlo.sock")

	addr, err := net.ResolveUnixAddr("unix", path)
	require.NoError(t, err)
	listener, err := net.ListenUnix("unix", addr)
	require.NoError(t, err)
	listener.SetUnlinkOnClose(false)
	require.NoError(t, listener.Close()) // leaves the path behind with no listener

	reclaimed, err := Acquire(context.Background(), path, 200*time.Millisecond, 1)
	require.NoError(t, err)
	_ = reclaimed.Close()
}

func TestProbe(t *testing.T) {
	path, cancel := startServer(t)

	alive, err := Probe(context.Background(), path, time.Second)
	require.NoError(t, err)
	require.True(t, alive)

	cancel()
	require.Eventually(t, func() bool {
		alive, err := Probe(context.Background(), path, 200*time.Millisecond)
		return err == nil && !alive
	}, 2*time.Second, 50*time.Millisecond)
}
