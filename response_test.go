package air

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseResetDefaults(t *testing.T) {
	a := New()
	req := newTestRequest("GET", "/")
	rec := httptest.NewRecorder()

	res := newResponse(a)
	res.reset(a, req, rec)

	assert.Equal(t, a, res.Air)
	assert.Equal(t, req, res.Request)
	assert.Zero(t, res.StatusCode)
	assert.True(t, res.Body.IsNone())
	assert.False(t, res.Stamped())
}

func TestResponseStampedByStatus(t *testing.T) {
	res := newTestResponse(newTestRequest("GET", "/"))
	assert.False(t, res.Stamped())
	res.SetStatus(http.StatusFound)
	assert.True(t, res.Stamped())
}

func TestResponseStampedByBody(t *testing.T) {
	res := newTestResponse(newTestRequest("GET", "/"))
	assert.False(t, res.Stamped())
	require.NoError(t, res.WriteString("hi"))
	assert.True(t, res.Stamped())
}

func TestResponseWriteStringSetsContentType(t *testing.T) {
	res := newTestResponse(newTestRequest("GET", "/"))
	require.NoError(t, res.WriteString("hi"))
	assert.Equal(t, "text/plain; charset=utf-8", res.Header.Get("Content-Type"))
	assert.Equal(t, "hi", string(res.Body.Once()))
}

func TestResponseWriteJSON(t *testing.T) {
	res := newTestResponse(newTestRequest("GET", "/"))
	require.NoError(t, res.WriteJSON(map[string]string{"foo": "bar"}))
	assert.Equal(t, "application/json; charset=utf-8", res.Header.Get("Content-Type"))
	assert.JSONEq(t, `{"foo":"bar"}`, string(res.Body.Once()))
}

func TestResponseSetContentTypeIfAbsentDoesNotOverwrite(t *testing.T) {
	res := newTestResponse(newTestRequest("GET", "/"))
	res.Header.Set("Content-Type", "application/custom")
	require.NoError(t, res.WriteString("hi"))
	assert.Equal(t, "application/custom", res.Header.Get("Content-Type"))
}

func TestResponseSetErrorWrapsPlainError(t *testing.T) {
	res := newTestResponse(newTestRequest("GET", "/"))
	res.SetError(assertError("boom"))
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	assert.Equal(t, BodyError, res.Body.Kind())
}

func TestResponseSetErrorKeepsStatusError(t *testing.T) {
	res := newTestResponse(newTestRequest("GET", "/"))
	res.SetError(ErrForbidden)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
}

func TestResponseSetErrorIncludesDetailInDebugMode(t *testing.T) {
	a := New()
	a.DebugMode = true
	req := newTestRequest("GET", "/")
	res := newResponse(a)
	res.reset(a, req, nil)

	res.SetError(assertError("boom"))

	se, ok := res.Body.Error().(*StatusError)
	require.True(t, ok)
	assert.Equal(t, "boom", se.Detail)
}

func TestResponseRedirect(t *testing.T) {
	res := newTestResponse(newTestRequest("GET", "/"))
	require.NoError(t, res.Redirect(http.StatusFound, "/elsewhere"))
	assert.Equal(t, http.StatusFound, res.StatusCode)
	assert.Equal(t, "/elsewhere", res.Header.Get("Location"))
}

func TestResponseCommitWritesOnce(t *testing.T) {
	req := newTestRequest("GET", "/")
	rec := httptest.NewRecorder()
	res := newResponse(nil)
	res.reset(nil, req, rec)

	res.SetStatus(http.StatusCreated)
	res.commit()
	res.SetStatus(http.StatusOK)
	res.commit()

	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestResponseWriteOutWritesBody(t *testing.T) {
	req := newTestRequest("GET", "/")
	rec := httptest.NewRecorder()
	res := newResponse(nil)
	res.reset(nil, req, rec)

	require.NoError(t, res.WriteString("hello"))
	require.NoError(t, res.writeOut())
	assert.Equal(t, "hello", rec.Body.String())
}

func TestResponseDeferRunsLIFO(t *testing.T) {
	res := newTestResponse(newTestRequest("GET", "/"))

	var order []int
	res.Defer(func() { order = append(order, 1) })
	res.Defer(func() { order = append(order, 2) })
	res.runDeferred()

	assert.Equal(t, []int{2, 1}, order)
}

func TestResponseCookies(t *testing.T) {
	req := newTestRequest("GET", "/")
	rec := httptest.NewRecorder()
	res := newResponse(nil)
	res.reset(nil, req, rec)

	res.AddCookie(&http.Cookie{Name: "a", Value: "1"})
	res.RemoveCookie("b")
	res.commit()

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)
}

type assertError string

func (e assertError) Error() string { return string(e) }
