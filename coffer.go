package air

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/fsnotify/fsnotify"
)

// Coffer is the in-memory asset cache backing NamedFile, trading memory
// for disk I/O on repeated reads of the same file, grounded on the
// teacher's coffer and wired to VictoriaMetrics/fastcache.
type Coffer struct {
	a *Air

	cacheOnce sync.Once
	cache     *fastcache.Cache

	assets  sync.Map
	watcher *fsnotify.Watcher
}

// newCoffer returns a *Coffer for a. The filesystem watcher is started
// here; the fastcache instance is built lazily, on first use.
func newCoffer(a *Air) *Coffer {
	c := &Coffer{a: a}

	if w, err := fsnotify.NewWatcher(); err == nil {
		c.watcher = w
		go c.watch()
	} else {
		a.Logger().Errorf("air: build coffer watcher: %v", err)
	}

	return c
}

func (c *Coffer) watch() {
	for {
		select {
		case e, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if ai, ok := c.assets.Load(e.Name); ok {
				a := ai.(*asset)
				c.assets.Delete(a.name)
				c.cache.Del(a.contentChecksum[:])
				c.cache.Del(a.gzippedContentChecksum[:])
			}
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			c.a.Logger().Errorf("air: coffer watcher error: %v", err)
		}
	}
}

// asset is a cached binary asset file.
type asset struct {
	name                   string
	mimeType               string
	modTime                time.Time
	minified               bool
	contentChecksum        [sha256.Size]byte
	gzippedContentChecksum [sha256.Size]byte
}

// get returns the (possibly minified) content of the file at name,
// indexing it into the cache on first access. The second return is false
// when name falls outside CofferAssetRoot/CofferAssetExts.
func (c *Coffer) get(name string) ([]byte, bool) {
	c.cacheOnce.Do(func() {
		c.cache = fastcache.New(c.a.CofferMaxMemoryBytes)
	})

	if ai, ok := c.assets.Load(name); ok {
		a := ai.(*asset)
		return c.cache.Get(nil, a.contentChecksum[:]), true
	}

	root, err := filepath.Abs(c.a.CofferAssetRoot)
	if err != nil || !strings.HasPrefix(name, root) {
		return nil, false
	}

	ext := filepath.Ext(name)
	if !containsStringFold(c.a.CofferAssetExts, ext) {
		return nil, false
	}

	fi, err := os.Stat(name)
	if err != nil {
		return nil, false
	}

	b, err := os.ReadFile(name)
	if err != nil {
		return nil, false
	}

	mt := mime.TypeByExtension(ext)
	if mt != "" {
		if parsed, _, err := mime.ParseMediaType(mt); err == nil {
			mt = parsed
		}

		if c.a.MinifierEnabled && containsString(c.a.MinifierMIMETypes, mt) {
			if m := c.a.minifierInstance(); m != nil {
				if minified, err := m.minify(mt, b); err == nil {
					b = minified
				}
			}
		}
	}

	a := &asset{name: name, mimeType: mt, modTime: fi.ModTime(), contentChecksum: sha256.Sum256(b)}
	c.cache.Set(a.contentChecksum[:], b)

	if c.a.GzipEnabled && containsString(c.a.GzipMIMETypes, mt) {
		buf := &bytes.Buffer{}
		level := c.a.GzipCompressionLevel
		if level == 0 {
			level = gzip.DefaultCompression
		}
		if gw, err := gzip.NewWriterLevel(buf, level); err == nil {
			if _, err := gw.Write(b); err == nil && gw.Close() == nil {
				a.gzippedContentChecksum = sha256.Sum256(buf.Bytes())
				c.cache.Set(a.gzippedContentChecksum[:], buf.Bytes())
			}
		}
	}

	if c.watcher != nil {
		c.watcher.Add(name)
	}

	c.assets.Store(name, a)
	return b, true
}

func containsStringFold(ss []string, s string) bool {
	for _, v := range ss {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
