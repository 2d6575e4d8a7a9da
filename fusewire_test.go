package air

import (
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFusewireDisabledWithZeroTimeout(t *testing.T) {
	f := newFusewire(0)
	c1, c2 := net.Pipe()
	defer c2.Close()

	f.trackConnState(c1, http.StateIdle)
	assert.Empty(t, f.conns)
}

func TestFusewireTracksIdleAndClearsOnActive(t *testing.T) {
	f := newFusewire(time.Minute)
	c1, c2 := net.Pipe()
	defer c2.Close()

	f.trackConnState(c1, http.StateIdle)
	assert.Len(t, f.conns, 1)

	f.trackConnState(c1, http.StateActive)
	assert.Empty(t, f.conns)
}

func TestFusewireClearsOnClosedAndHijacked(t *testing.T) {
	f := newFusewire(time.Minute)
	c1, c2 := net.Pipe()
	defer c2.Close()

	f.trackConnState(c1, http.StateIdle)
	f.trackConnState(c1, http.StateClosed)
	assert.Empty(t, f.conns)

	f.trackConnState(c1, http.StateIdle)
	f.trackConnState(c1, http.StateHijacked)
	assert.Empty(t, f.conns)
}

func TestFusewireSweepClosesConnectionsPastIdleTimeout(t *testing.T) {
	f := newFusewire(time.Millisecond)
	c1, c2 := net.Pipe()
	defer c2.Close()

	f.conns[c1] = time.Now().Add(-time.Hour)

	f.Sweep()

	assert.Empty(t, f.conns)

	_, err := c1.Write([]byte("x"))
	assert.Error(t, err)
}

func TestFusewireSweepLeavesFreshConnectionsAlone(t *testing.T) {
	f := newFusewire(time.Hour)
	c1, c2 := net.Pipe()
	defer c1.Close()
	defer c2.Close()

	f.conns[c1] = time.Now()
	f.Sweep()

	require.Len(t, f.conns, 1)
}

func TestFusewireSweepDisabledWithZeroTimeout(t *testing.T) {
	f := newFusewire(0)
	c1, c2 := net.Pipe()
	defer c1.Close()
	defer c2.Close()

	f.conns[c1] = time.Now().Add(-time.Hour)
	f.Sweep()

	assert.Len(t, f.conns, 1)
}
