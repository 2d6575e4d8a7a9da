package air

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"golang.org/x/text/language"
)

// i18n is the locale manager backing Request.LocalizedString, grounded on
// the teacher's i18n and wired to BurntSushi/toml for locale files and
// fsnotify for hot reload when I18nEnabled and I18nLocaleRoot's contents
// change on disk.
type i18n struct {
	a *Air

	mutex   sync.RWMutex
	locales map[string]map[string]string
	matcher language.Matcher

	loadOnce sync.Once
	watcher  *fsnotify.Watcher
}

// newI18n returns an *i18n for a. Locale files are loaded lazily on first
// localize call.
func newI18n(a *Air) *i18n {
	return &i18n{a: a, locales: map[string]map[string]string{}}
}

// localize returns the localized string for key, choosing the locale that
// best matches acceptLanguage (an Accept-Language header value), falling
// back to a.I18nLocaleBase and finally to key itself.
func (i *i18n) localize(acceptLanguage, key string) string {
	i.loadOnce.Do(i.load)

	i.mutex.RLock()
	defer i.mutex.RUnlock()

	if i.matcher != nil {
		t, _ := language.MatchStrings(i.matcher, acceptLanguage)
		if l, ok := i.locales[t.String()]; ok {
			if v, ok := l[key]; ok {
				return v
			}
		}
	}

	if l, ok := i.locales[i.a.I18nLocaleBase]; ok {
		if v, ok := l[key]; ok {
			return v
		}
	}

	return key
}

// load parses every "*.toml" file under a.I18nLocaleRoot into a locale
// keyed by its filename (minus extension, e.g. "en-US.toml" -> "en-US"),
// and starts watching the directory for changes.
func (i *i18n) load() {
	root, err := filepath.Abs(i.a.I18nLocaleRoot)
	if err != nil {
		i.a.Logger().Errorf("air: resolve i18n locale root: %v", err)
		return
	}

	files, err := filepath.Glob(filepath.Join(root, "*.toml"))
	if err != nil {
		i.a.Logger().Errorf("air: glob i18n locale files: %v", err)
		return
	}

	locales := make(map[string]map[string]string, len(files))
	tags := make([]language.Tag, 0, len(files))
	for _, f := range files {
		b, err := os.ReadFile(f)
		if err != nil {
			i.a.Logger().Errorf("air: read locale file %s: %v", f, err)
			continue
		}

		l := map[string]string{}
		if err := toml.Unmarshal(b, &l); err != nil {
			i.a.Logger().Errorf("air: parse locale file %s: %v", f, err)
			continue
		}

		name := strings.TrimSuffix(filepath.Base(f), ".toml")
		t, err := language.Parse(name)
		if err != nil {
			i.a.Logger().Errorf("air: parse locale name %s: %v", name, err)
			continue
		}

		locales[t.String()] = l
		tags = append(tags, t)
	}

	i.mutex.Lock()
	i.locales = locales
	if len(tags) > 0 {
		i.matcher = language.NewMatcher(tags)
	}
	i.mutex.Unlock()

	if w, err := fsnotify.NewWatcher(); err == nil {
		i.watcher = w
		if err := w.Add(root); err == nil {
			go i.watch()
		}
	}
}

// watch reloads the locale set whenever the watched directory changes.
func (i *i18n) watch() {
	for {
		select {
		case _, ok := <-i.watcher.Events:
			if !ok {
				return
			}
			i.loadOnce = sync.Once{}
			i.loadOnce.Do(i.load)
		case err, ok := <-i.watcher.Errors:
			if !ok {
				return
			}
			i.a.Logger().Errorf("air: i18n watcher error: %v", err)
		}
	}
}
