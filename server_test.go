package air

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerLoopServeAndShutdown(t *testing.T) {
	a := New()
	a.Address = "localhost:0"

	errCh := make(chan error, 1)
	go func() { errCh <- a.Serve() }()

	require.Eventually(t, func() bool {
		return len(a.Addresses()) == 1
	}, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, a.Shutdown(ctx))
	assert.NoError(t, <-errCh)
}

func TestServerLoopCloseIsImmediate(t *testing.T) {
	a := New()
	a.Address = "localhost:0"

	go a.Serve()
	require.Eventually(t, func() bool {
		return len(a.Addresses()) == 1
	}, time.Second, 5*time.Millisecond)

	assert.NoError(t, a.Close())
}

func TestHyperHandlerDispatchPregasShortCircuitsRouter(t *testing.T) {
	a := New()

	a.Pregases = []Handler{HandlerFunc(func(req *Request, depot *Depot, res *Response, flow *FlowCtrl) {
		res.WriteString("from pregas")
	})}
	a.GET("/", WrapFunc(func(req *Request, res *Response) error {
		return res.WriteString("from goal")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	a.ServeHTTP(rec, req)

	assert.Equal(t, "from pregas", rec.Body.String())
}

func TestHyperHandlerDispatchRecoversPanicAsInternalServerError(t *testing.T) {
	a := New()
	a.GET("/", WrapFunc(func(req *Request, res *Response) error {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	a.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHyperHandlerDispatchCatcherOnlyRunsWhenUnstamped(t *testing.T) {
	a := New()
	a.GET("/", WrapFunc(func(req *Request, res *Response) error {
		res.SetStatus(http.StatusTeapot)
		return res.WriteString("I'm a teapot")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	a.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "I'm a teapot", rec.Body.String())
}
