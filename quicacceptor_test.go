package air

import (
	"context"
	"crypto/tls"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewQUICAcceptorRequiresTLSWhenUnconfigured(t *testing.T) {
	a := New()
	a.Address = "127.0.0.1:0"

	_, err := newQUICAcceptor(a, nil)
	require.Error(t, err)
	assert.Equal(t, errQUICRequiresTLS, err)
}

func TestNewQUICAcceptorAcceptsExplicitTLSConfig(t *testing.T) {
	a := New()
	a.Address = "127.0.0.1:0"
	a.TLSConfig = &tls.Config{Certificates: []tls.Certificate{{Certificate: [][]byte{{0}}}}}

	qa, err := newQUICAcceptor(a, nil)
	require.NoError(t, err)
	assert.Equal(t, a.Address, qa.server.Addr)
	assert.NotSame(t, a.TLSConfig, qa.server.TLSConfig)
}

func TestNewQUICAcceptorRequiresBothCertAndKeyFiles(t *testing.T) {
	a := New()
	a.Address = "127.0.0.1:0"
	a.TLSCertFile = "cert.pem"

	_, err := newQUICAcceptor(a, nil)
	require.Error(t, err)
	assert.Equal(t, errQUICRequiresTLS, err)
}

func TestQUICAcceptorShutdownClosesServer(t *testing.T) {
	a := New()
	a.Address = "127.0.0.1:0"
	a.TLSConfig = &tls.Config{Certificates: []tls.Certificate{{Certificate: [][]byte{{0}}}}}

	qa, err := newQUICAcceptor(a, nil)
	require.NoError(t, err)

	assert.NoError(t, qa.shutdown(context.Background()))
}
