// Package assets resolves the admin editor bundle from the asset manifest
// the front-end build writes. Decoded manifests are cached per path and
// dropped when the file changes on disk.
package assets

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// EditorBundle is the manifest entry of the proposed-date editor script.
const EditorBundle = "propose-draft-date.js"

// EditorHandle names the editor bundle tag.
const EditorHandle = "propose-draft-date"

var cssPattern = regexp.MustCompile(`\.css(\?.*)?$`)

// IsCSS reports whether uri points at a stylesheet.
func IsCSS(uri string) bool {
	return cssPattern.MatchString(uri)
}

type manifestEntry struct {
	resolved string
	assets   map[string]string
}

// Manifests caches decoded asset manifests. Construct one per process and
// pass it to whoever renders asset tags.
type Manifests struct {
	mu       sync.Mutex
	entries  map[string]manifestEntry
	readFile func(string) ([]byte, error)
}

// NewManifests creates an empty cache.
func NewManifests() *Manifests {
	return &Manifests{
		entries:  make(map[string]manifestEntry),
		readFile: os.ReadFile,
	}
}

// fallbackPath is where a committed manifest lives when the build output
// is missing: two directories up, same file name.
func fallbackPath(path string) string {
	return filepath.Join(filepath.Dir(filepath.Dir(path)), filepath.Base(path))
}

// Load returns the decoded manifest at path, or at its fallback location.
// It returns nil when neither file exists or the file cannot be decoded;
// such results are not cached.
func (m *Manifests) Load(path string) map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[path]; ok {
		return e.assets
	}

	resolved := path
	if _, err := os.Stat(resolved); err != nil {
		resolved = fallbackPath(path)
		if _, err := os.Stat(resolved); err != nil {
			slog.Debug("asset manifest not found", "path", path)
			return nil
		}
	}

	data, err := m.readFile(resolved)
	if err != nil || len(data) == 0 {
		slog.Debug("asset manifest unreadable", "path", resolved, "error", err)
		return nil
	}
	var assets map[string]string
	if err := json.Unmarshal(data, &assets); err != nil {
		slog.Debug("asset manifest invalid", "path", resolved, "error", err)
		return nil
	}

	m.entries[path] = manifestEntry{resolved: resolved, assets: assets}
	return assets
}

// Resource returns the URL of asset in the manifest at path.
func (m *Manifests) Resource(path, asset string) (string, bool) {
	uri, ok := m.Load(path)[asset]
	if !ok || uri == "" {
		return "", false
	}
	return uri, true
}

// Invalidate drops every cached manifest read from or looked up at name.
func (m *Manifests) Invalidate(name string) {
	name = filepath.Clean(name)
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, e := range m.entries {
		if filepath.Clean(key) == name || filepath.Clean(e.resolved) == name || fallbackPath(key) == name {
			delete(m.entries, key)
		}
	}
}

// Watch invalidates cached manifests when the files at paths, or their
// fallbacks, change. It returns once the watcher is set up; the watcher
// stops with ctx.
func (m *Manifests) Watch(ctx context.Context, paths ...string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create manifest watcher: %w", err)
	}

	watched := 0
	seen := make(map[string]bool)
	for _, p := range paths {
		for _, dir := range []string{filepath.Dir(p), filepath.Dir(fallbackPath(p))} {
			if seen[dir] {
				continue
			}
			seen[dir] = true
			if err := w.Add(dir); err != nil {
				slog.Debug("manifest watch skipped", "dir", dir, "error", err)
				continue
			}
			watched++
		}
	}
	if watched == 0 {
		w.Close()
		return fmt.Errorf("watch manifests: no directory could be watched")
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
					m.Invalidate(ev.Name)
					slog.Debug("asset manifest changed", "path", ev.Name, "op", ev.Op.String())
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.Warn("manifest watch error", "error", err)
			}
		}
	}()
	return nil
}

// Asset is a resolved bundle ready to be emitted as a tag.
type Asset struct {
	Handle string
	URL    string
	IsCSS  bool
}

// Register resolves target from the manifest at manifestPath. Relative
// URLs are joined to staticURL. The boolean is false when the manifest or
// the entry is missing; callers skip the asset then.
func (m *Manifests) Register(manifestPath, target, handle, staticURL string) (Asset, bool) {
	uri, ok := m.Resource(manifestPath, target)
	if !ok {
		slog.Debug("asset not in manifest", "asset", target, "manifest", manifestPath)
		return Asset{}, false
	}
	if !strings.Contains(uri, "//") {
		uri = strings.TrimRight(staticURL, "/") + "/" + strings.TrimLeft(uri, "/")
	}
	return Asset{Handle: handle, URL: uri, IsCSS: IsCSS(uri)}, true
}

// Tag renders the asset as a stylesheet link or a deferred script.
func (a Asset) Tag() template.HTML {
	url := template.HTMLEscapeString(a.URL)
	id := template.HTMLEscapeString(a.Handle)
	if a.IsCSS {
		return template.HTML(`<link rel="stylesheet" id="` + id + `-css" href="` + url + `">`)
	}
	return template.HTML(`<script id="` + id + `-js" src="` + url + `" defer></script>`)
}
