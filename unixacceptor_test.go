package air

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUnixAcceptorBindsSocket(t *testing.T) {
	a := New()
	a.UnixAddress = filepath.Join(t.TempDir(), "air.sock")

	ua, err := newUnixAcceptor(a)
	require.NoError(t, err)
	defer ua.Close()

	_, err = os.Stat(a.UnixAddress)
	require.NoError(t, err)
	assert.Equal(t, "unix", ua.Addr().Network())
}

func TestNewUnixAcceptorRemovesStaleSocketFile(t *testing.T) {
	a := New()
	a.UnixAddress = filepath.Join(t.TempDir(), "air.sock")

	require.NoError(t, os.WriteFile(a.UnixAddress, []byte("stale"), 0o644))

	ua, err := newUnixAcceptor(a)
	require.NoError(t, err)
	defer ua.Close()
}

func TestUnixAcceptorCloseRemovesSocketFile(t *testing.T) {
	a := New()
	a.UnixAddress = filepath.Join(t.TempDir(), "air.sock")

	ua, err := newUnixAcceptor(a)
	require.NoError(t, err)

	require.NoError(t, ua.Close())

	_, err = os.Stat(a.UnixAddress)
	assert.True(t, os.IsNotExist(err))
}

func TestUnixAcceptorHoldingsReportsCleartextScheme(t *testing.T) {
	a := New()
	a.UnixAddress = filepath.Join(t.TempDir(), "air.sock")

	ua, err := newUnixAcceptor(a)
	require.NoError(t, err)
	defer ua.Close()

	hs := ua.Holdings()
	require.Len(t, hs, 1)
	assert.Equal(t, "http", hs[0].Scheme)
	assert.Contains(t, hs[0].Versions, "HTTP/1.1")
}

func TestUnixAcceptorServeHandlesCleartextRequests(t *testing.T) {
	a := New()
	a.UnixAddress = filepath.Join(t.TempDir(), "air.sock")

	ua, err := newUnixAcceptor(a)
	require.NoError(t, err)

	hs := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("hello"))
		}),
	}

	done := make(chan error, 1)
	go func() {
		done <- ua.serve(hs)
	}()
	defer hs.Close()

	client := &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				return net.Dial("unix", a.UnixAddress)
			},
		},
	}

	resp, err := client.Get("http://unix/")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))
}

func TestUnixAcceptorAcceptClassifiesCleartextRequest(t *testing.T) {
	a := New()
	a.UnixAddress = filepath.Join(t.TempDir(), "air.sock")

	ua, err := newUnixAcceptor(a)
	require.NoError(t, err)
	defer ua.Close()

	acceptedCh := make(chan Accepted, 1)
	errCh := make(chan error, 1)
	go func() {
		accepted, err := ua.Accept(context.Background())
		if err != nil {
			errCh <- err
			return
		}
		acceptedCh <- accepted
	}()

	conn, err := net.Dial("unix", a.UnixAddress)
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte("GET / HTTP/1.1\r\nHost: example.com\r\n\r\n"))
	require.NoError(t, err)

	select {
	case accepted := <-acceptedCh:
		assert.Equal(t, "HTTP/1.1", accepted.Version)
		assert.Equal(t, "http", accepted.Scheme)
	case err := <-errCh:
		t.Fatalf("Accept failed: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Accept")
	}
}
