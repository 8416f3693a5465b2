// Package web embeds the built frontend (dist/) and serves it as a
// single-page application.
//
// The committed dist/ holds a placeholder shell; frontend builds replace it.
package web

import (
	"embed"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"regexp"
	"strings"
)

//go:embed all:dist
var distFS embed.FS

// clientRoutes are the paths rendered by the frontend router.
var clientRoutes = []*regexp.Regexp{
	regexp.MustCompile(`^/$`),
	regexp.MustCompile(`^/sign-(in|up)$`),
	regexp.MustCompile(`^/interview$`),
	regexp.MustCompile(`^/interview/[^/]+$`),
	regexp.MustCompile(`^/interview/[^/]+/feedback$`),
}

// isClientRoute reports whether p is rendered by the frontend router.
func isClientRoute(p string) bool {
	p = strings.TrimSuffix(p, "/")
	if p == "" {
		p = "/"
	}
	for _, re := range clientRoutes {
		if re.MatchString(p) {
			return true
		}
	}
	return false
}

// SPAHandler serves files from dist/ and index.html for client routes.
// Fingerprinted assets under /assets/ are cached; the shell is not.
// Anything else is a 404, so a missing asset or API path never renders
// the shell.
func SPAHandler() http.Handler {
	subFS, err := fs.Sub(distFS, "dist")
	if err != nil {
		panic("web: failed to create sub filesystem: " + err.Error())
	}
	fileServer := http.FileServer(http.FS(subFS))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		name := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
		if name != "" && name != "index.html" && exists(subFS, name) {
			if strings.HasPrefix(name, "assets/") {
				w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
			}
			fileServer.ServeHTTP(w, r)
			return
		}

		if !isClientRoute(r.URL.Path) {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Cache-Control", "no-cache")
		http.ServeFileFS(w, r, subFS, "index.html")
	})
}

func exists(fsys fs.FS, name string) bool {
	f, err := fsys.Open(name)
	if err != nil {
		return false
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			slog.Debug("web: failed to close embedded file", "path", name, "error", closeErr)
		}
	}()
	info, err := f.Stat()
	return err == nil && !info.IsDir()
}
