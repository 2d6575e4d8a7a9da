package air

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCofferGetOutsideAssetRootMisses(t *testing.T) {
	a := New()
	a.CofferAssetRoot = t.TempDir()
	c := newCoffer(a)

	_, ok := c.get("/somewhere/else/test.html")
	assert.False(t, ok)
}

func TestCofferGetReadsAndCachesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.html"), []byte(`<a href="/">Go Home</a>`), 0o644))

	a := New()
	a.CofferAssetRoot = dir
	a.CofferAssetExts = []string{".html"}
	c := newCoffer(a)

	name, err := filepath.Abs(filepath.Join(dir, "test.html"))
	require.NoError(t, err)

	b1, ok := c.get(name)
	require.True(t, ok)
	assert.Equal(t, `<a href="/">Go Home</a>`, string(b1))

	b2, ok := c.get(name)
	require.True(t, ok)
	assert.Equal(t, b1, b2)
}

func TestCofferGetRejectsUnlistedExtension(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.ext"), []byte("data"), 0o644))

	a := New()
	a.CofferAssetRoot = dir
	a.CofferAssetExts = []string{".html"}
	c := newCoffer(a)

	name, err := filepath.Abs(filepath.Join(dir, "test.ext"))
	require.NoError(t, err)

	_, ok := c.get(name)
	assert.False(t, ok)
}

func TestCofferGetMissingFileMisses(t *testing.T) {
	dir := t.TempDir()

	a := New()
	a.CofferAssetRoot = dir
	a.CofferAssetExts = []string{".html"}
	c := newCoffer(a)

	name, err := filepath.Abs(filepath.Join(dir, "nonexistent.html"))
	require.NoError(t, err)

	_, ok := c.get(name)
	assert.False(t, ok)
}

func TestCofferGetMinifiesWhenEnabled(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.html"), []byte("<!DOCTYPE html>"), 0o644))

	a := New()
	a.CofferAssetRoot = dir
	a.CofferAssetExts = []string{".html"}
	a.MinifierEnabled = true
	a.MinifierMIMETypes = []string{"text/html"}
	c := newCoffer(a)

	name, err := filepath.Abs(filepath.Join(dir, "test.html"))
	require.NoError(t, err)

	b, ok := c.get(name)
	require.True(t, ok)
	assert.Equal(t, "<!doctype html>", string(b))
}

func TestCofferGetGzipsWhenEnabled(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.html"), []byte("<a href=\"/\">Go Home</a>"), 0o644))

	a := New()
	a.CofferAssetRoot = dir
	a.CofferAssetExts = []string{".html"}
	a.GzipEnabled = true
	a.GzipMIMETypes = []string{"text/html"}
	c := newCoffer(a)

	name, err := filepath.Abs(filepath.Join(dir, "test.html"))
	require.NoError(t, err)

	_, ok := c.get(name)
	require.True(t, ok)

	ai, ok := c.assets.Load(name)
	require.True(t, ok)
	a2 := ai.(*asset)
	assert.NotZero(t, a2.gzippedContentChecksum)
}
