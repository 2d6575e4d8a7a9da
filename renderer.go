package air

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// renderer parses and executes the HTML templates under
// RendererTemplateRoot, grounded on the teacher's renderer and wired to
// html/template plus fsnotify for hot reload.
type renderer struct {
	a *Air

	mutex           sync.RWMutex
	template        *template.Template
	templateFuncMap template.FuncMap

	parseOnce sync.Once
	watcher   *fsnotify.Watcher
}

// newRenderer returns a *renderer for a.
func newRenderer(a *Air) *renderer {
	return &renderer{
		a:        a,
		template: template.New("template"),
		templateFuncMap: template.FuncMap{
			"strlen":  strlen,
			"strcat":  strcat,
			"substr":  substr,
			"timefmt": timefmt,
		},
	}
}

// SetTemplateFunc registers f under name in the template func map. It must
// be called before the first template is rendered.
func (r *renderer) SetTemplateFunc(name string, f interface{}) {
	r.templateFuncMap[name] = f
}

// render executes the named template into w with data.
func (r *renderer) render(w io.Writer, name string, data interface{}) error {
	r.parseOnce.Do(func() {
		if err := r.parseTemplates(); err != nil {
			r.a.Logger().Errorf("air: parse templates: %v", err)
		}
		if r.a.RendererTemplateWatched {
			go r.watch()
		}
	})

	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.template.ExecuteTemplate(w, name, data)
}

// parseTemplates parses all template files under RendererTemplateRoot
// whose extension is one of RendererTemplateExts.
//
// e.g. a.RendererTemplateRoot == "templates" && a.RendererTemplateExts ==
// []string{".html"}
//
//	templates/
//	  index.html
//	  login.html
//
//	templates/parts/
//	  header.html
//
// parses into "index.html", "login.html" and "parts/header.html".
func (r *renderer) parseTemplates() error {
	root := filepath.Clean(r.a.RendererTemplateRoot)
	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	dirs, err := walkDirs(root)
	if err != nil {
		return err
	}

	var filenames []string
	for _, dir := range dirs {
		for _, ext := range r.a.RendererTemplateExts {
			fns, err := filepath.Glob(filepath.Join(dir, "*"+ext))
			if err != nil {
				return err
			}
			filenames = append(filenames, fns...)
		}
	}

	t := template.New("template").Funcs(r.templateFuncMap)

	start := len(root) + 1
	if root == "." {
		start = 0
	}

	for _, filename := range filenames {
		b, err := os.ReadFile(filename)
		if err != nil {
			return err
		}

		if r.a.MinifierEnabled && containsString(r.a.MinifierMIMETypes, "text/html") {
			if m := r.a.minifierInstance(); m != nil {
				if minified, err := m.minify("text/html", b); err == nil {
					b = minified
				}
			}
		}

		name := filepath.ToSlash(filename[start:])
		if _, err := t.New(name).Parse(string(b)); err != nil {
			return err
		}
	}

	r.mutex.Lock()
	r.template = t
	r.mutex.Unlock()

	return nil
}

// watch reloads the templates whenever a watched file changes.
func (r *renderer) watch() {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		r.a.Logger().Errorf("air: build renderer watcher: %v", err)
		return
	}
	r.watcher = w

	root := filepath.Clean(r.a.RendererTemplateRoot)
	if dirs, err := walkDirs(root); err == nil {
		for _, dir := range dirs {
			w.Add(dir)
		}
	}

	for {
		select {
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Create == fsnotify.Create {
				if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
					w.Add(event.Name)
				}
			}
			if err := r.parseTemplates(); err != nil {
				r.a.Logger().Errorf("air: reparse templates: %v", err)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			r.a.Logger().Errorf("air: renderer watcher error: %v", err)
		}
	}
}

// walkDirs walks all subdirs of root recursively, root included.
func walkDirs(root string) ([]string, error) {
	var dirs []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			dirs = append(dirs, path)
		}
		return nil
	})
	return dirs, err
}

// Template is the Scribe that renders a named HTML template through a's
// Renderer, the spec's templated-body Scribe.
type Template struct {
	Name string
	Data interface{}
}

// Render implements the Scribe interface.
func (t Template) Render(res *Response) error {
	if res.Air == nil {
		return ErrInternalServerError.WithCause(fmt.Errorf("air: response has no Air"))
	}

	buf := &bytes.Buffer{}
	if err := res.Air.rendererInstance().render(buf, t.Name, t.Data); err != nil {
		return ErrInternalServerError.WithCause(err)
	}

	res.setContentTypeIfAbsent("text/html; charset=utf-8")
	return res.WriteBody(buf.Bytes())
}

// strlen returns the number of chars in s.
func strlen(s string) int {
	return len([]rune(s))
}

// strcat returns s concatenated with ss in order.
func strcat(s string, ss ...string) string {
	var b strings.Builder
	b.WriteString(s)
	for _, x := range ss {
		b.WriteString(x)
	}
	return b.String()
}

// substr returns the substring of s from rune index i up to, but not
// including, rune index j.
func substr(s string, i, j int) string {
	rs := []rune(s)
	return string(rs[i:j])
}

// timefmt returns t formatted according to layout.
func timefmt(t time.Time, layout string) string {
	return t.Format(layout)
}
