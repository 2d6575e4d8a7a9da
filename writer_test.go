package air

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsWriterAdaptsScribe(t *testing.T) {
	req := newTestRequest("GET", "/")
	res := newTestResponse(req)

	w := AsWriter(TextPlain("hi"))
	require.NoError(t, w.Write(req, newDepot(), res))
	assert.Equal(t, "hi", string(res.Body.Once()))
}

func TestTextVariantsSetContentType(t *testing.T) {
	cases := []struct {
		scribe Scribe
		ct     string
	}{
		{TextPlain("a"), "text/plain; charset=utf-8"},
		{TextHTML("a"), "text/html; charset=utf-8"},
		{TextXML("a"), "application/xml; charset=utf-8"},
		{TextJS("a"), "application/javascript; charset=utf-8"},
		{TextCSS("a"), "text/css; charset=utf-8"},
	}

	for _, c := range cases {
		req := newTestRequest("GET", "/")
		res := newTestResponse(req)
		require.NoError(t, c.scribe.Render(res))
		assert.Equal(t, c.ct, res.Header.Get("Content-Type"))
	}
}

func TestJSONScribeRendersEncodedValue(t *testing.T) {
	req := newTestRequest("GET", "/")
	res := newTestResponse(req)

	require.NoError(t, JSON{Value: map[string]int{"n": 1}}.Render(res))
	assert.Contains(t, string(res.Body.Once()), `"n":1`)
}

func TestRedirectScribeSetsLocationAndStatus(t *testing.T) {
	req := newTestRequest("GET", "/")
	res := newTestResponse(req)

	require.NoError(t, RedirectTo(302, "/elsewhere").Render(res))
	assert.Equal(t, 302, res.StatusCode)
	assert.Equal(t, "/elsewhere", res.Header.Get("Location"))
}

func TestStatusErrorRendersAsError(t *testing.T) {
	req := newTestRequest("GET", "/")
	res := newTestResponse(req)

	require.NoError(t, ErrForbidden.Render(res))
	assert.Equal(t, 403, res.StatusCode)
	assert.Equal(t, BodyError, res.Body.Kind())
}

func TestNamedFileWriteServesFileContents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hello.html")
	require.NoError(t, os.WriteFile(path, []byte("<h1>hi</h1>"), 0o644))

	req := newTestRequest("GET", "/hello.html")
	res := newTestResponse(req)

	nf := NamedFile{Path: path}
	require.NoError(t, nf.Write(req, newDepot(), res))
	assert.Equal(t, "<h1>hi</h1>", string(res.Body.Once()))
	assert.Equal(t, "text/html; charset=utf-8", res.Header.Get("Content-Type"))
}

func TestNamedFileWriteMissingFileIsNotFound(t *testing.T) {
	req := newTestRequest("GET", "/missing.html")
	res := newTestResponse(req)

	nf := NamedFile{Path: filepath.Join(t.TempDir(), "missing.html")}
	err := nf.Write(req, newDepot(), res)
	require.Error(t, err)

	se, ok := err.(*StatusError)
	require.True(t, ok)
	assert.Equal(t, 404, se.Code)
}

func TestMimeTypeByExt(t *testing.T) {
	assert.Equal(t, "text/html; charset=utf-8", mimeTypeByExt(".html"))
	assert.Equal(t, "application/javascript; charset=utf-8", mimeTypeByExt(".js"))
	assert.Equal(t, "image/png", mimeTypeByExt(".png"))
	assert.Equal(t, "application/octet-stream", mimeTypeByExt(".bin"))
}

func TestResultWriterPrefersSuccess(t *testing.T) {
	req := newTestRequest("GET", "/")
	res := newTestResponse(req)

	rw := ResultWriter{Success: AsWriter(TextPlain("ok")), Failure: AsWriter(TextPlain("fail"))}
	require.NoError(t, rw.Write(req, newDepot(), res))
	assert.Equal(t, "ok", string(res.Body.Once()))
}

func TestResultWriterFallsBackToFailure(t *testing.T) {
	req := newTestRequest("GET", "/")
	res := newTestResponse(req)

	rw := ResultWriter{Failure: AsWriter(TextPlain("fail"))}
	require.NoError(t, rw.Write(req, newDepot(), res))
	assert.Equal(t, "fail", string(res.Body.Once()))
}

func TestWriteResultWrapsPlainErrorAsInternalServerError(t *testing.T) {
	w := WriteResult(nil, assertError("boom"))

	req := newTestRequest("GET", "/")
	res := newTestResponse(req)
	require.NoError(t, w.Write(req, newDepot(), res))
	assert.Equal(t, 500, res.StatusCode)
}

func TestWriteResultPreservesStatusError(t *testing.T) {
	w := WriteResult(nil, ErrForbidden)

	req := newTestRequest("GET", "/")
	res := newTestResponse(req)
	require.NoError(t, w.Write(req, newDepot(), res))
	assert.Equal(t, 403, res.StatusCode)
}

func TestWriterHandlerAdaptsEndpointFunc(t *testing.T) {
	h := WriterHandler(func(req *Request, depot *Depot) (Writer, error) {
		return AsWriter(TextPlain("from handler")), nil
	})

	req := newTestRequest("GET", "/")
	res := newTestResponse(req)
	h.Handle(req, newDepot(), res, newFlowCtrl(nil))

	assert.Equal(t, "from handler", string(res.Body.Once()))
}

func TestWriterHandlerSetsErrorOnFailure(t *testing.T) {
	h := WriterHandler(func(req *Request, depot *Depot) (Writer, error) {
		return nil, ErrBadRequest
	})

	req := newTestRequest("GET", "/")
	res := newTestResponse(req)
	h.Handle(req, newDepot(), res, newFlowCtrl(nil))

	assert.Equal(t, 400, res.StatusCode)
}
