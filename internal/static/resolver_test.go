package static

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	docerrors "github.com/conneroisu/docsite/internal/errors"
	"github.com/conneroisu/docsite/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	testutils.WriteFile(t, root, "index.html", "<html><body>home</body></html>")
	testutils.WriteFile(t, root, "docs/index.html", "<html><body>docs</body></html>")
	testutils.WriteFile(t, root, "docs/button.html", "<html><body>button</body></html>")
	testutils.WriteFile(t, root, "assets/app.js", "console.log('hi')")
	testutils.WriteFile(t, root, "assets/site.css", "body{}")
	testutils.WriteFile(t, root, "assets/runtime.wasm", "\x00asm")
	testutils.WriteFile(t, root, ".env", "SECRET=1")
	testutils.WriteFile(t, root, ".well-known/security.txt", "contact: x")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0755))
	return root
}

func serve(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNew(t *testing.T) {
	t.Run("missing root", func(t *testing.T) {
		_, err := New(filepath.Join(t.TempDir(), "missing"), Options{})
		require.Error(t, err)
		assert.True(t, errors.Is(err, docerrors.ErrContentRootMissing))
	})

	t.Run("root is a file", func(t *testing.T) {
		root := t.TempDir()
		testutils.WriteFile(t, root, "file.txt", "x")
		_, err := New(filepath.Join(root, "file.txt"), Options{})
		assert.True(t, errors.Is(err, docerrors.ErrContentRootMissing))
	})

	t.Run("defaults index file", func(t *testing.T) {
		r, err := New(t.TempDir(), Options{})
		require.NoError(t, err)
		assert.Equal(t, "index.html", r.opts.IndexFile)
	})
}

func TestResolver_ServeHTTP(t *testing.T) {
	root := newTestRoot(t)
	r, err := New(root, Options{MimeTypes: map[string]string{".wasm": "application/wasm"}})
	require.NoError(t, err)

	tests := []struct {
		name        string
		method      string
		target      string
		status      int
		body        string
		contentType string
		location    string
		allow       string
	}{
		{name: "root index", target: "/", status: http.StatusOK, body: "home", contentType: "text/html; charset=utf-8"},
		{name: "directory index", target: "/docs/", status: http.StatusOK, body: "docs"},
		{name: "directory without slash redirects", target: "/docs", status: http.StatusMovedPermanently, location: "/docs/"},
		{name: "directory redirect keeps query", target: "/docs?tab=api", status: http.StatusMovedPermanently, location: "/docs/?tab=api"},
		{name: "page", target: "/docs/button.html", status: http.StatusOK, body: "button"},
		{name: "javascript", target: "/assets/app.js", status: http.StatusOK, body: "console.log"},
		{name: "css", target: "/assets/site.css", status: http.StatusOK, contentType: "text/css; charset=utf-8"},
		{name: "registered wasm type", target: "/assets/runtime.wasm", status: http.StatusOK, contentType: "application/wasm"},
		{name: "file with trailing slash redirects", target: "/assets/app.js/", status: http.StatusMovedPermanently, location: "/assets/app.js"},
		{name: "missing file", target: "/nope.html", status: http.StatusNotFound},
		{name: "missing nested", target: "/docs/nope/", status: http.StatusNotFound},
		{name: "directory without index", target: "/empty/", status: http.StatusNotFound},
		{name: "directory without index no slash", target: "/empty", status: http.StatusNotFound},
		{name: "dotfile hidden", target: "/.env", status: http.StatusNotFound},
		{name: "dot directory hidden", target: "/.well-known/security.txt", status: http.StatusNotFound},
		{name: "traversal stays in root", target: "/../../etc/passwd", status: http.StatusNotFound},
		{name: "file as directory", target: "/assets/app.js/x", status: http.StatusNotFound},
		{name: "post to existing page not allowed", method: http.MethodPost, target: "/", status: http.StatusMethodNotAllowed, allow: "GET, HEAD"},
		{name: "post to missing path", method: http.MethodPost, target: "/missing", status: http.StatusNotFound},
		{name: "options to missing path", method: http.MethodOptions, target: "/docs/nope/", status: http.StatusNotFound},
		{name: "delete to directory without index", method: http.MethodDelete, target: "/empty/", status: http.StatusNotFound},
		{name: "head", method: http.MethodHead, target: "/docs/", status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			rec := serve(t, r, method, tt.target)

			assert.Equal(t, tt.status, rec.Code)
			if tt.body != "" {
				assert.Contains(t, rec.Body.String(), tt.body)
			}
			if tt.contentType != "" {
				assert.Equal(t, tt.contentType, rec.Header().Get("Content-Type"))
			}
			if tt.location != "" {
				assert.Equal(t, tt.location, rec.Header().Get("Location"))
			}
			if tt.allow != "" {
				assert.Equal(t, tt.allow, rec.Header().Get("Allow"))
			}
		})
	}
}

func TestResolver_RedirectEscapesDirectoryNames(t *testing.T) {
	root := t.TempDir()
	testutils.WriteFile(t, root, "a?b/index.html", "query")
	testutils.WriteFile(t, root, "c#d/index.html", "fragment")
	testutils.WriteFile(t, root, "100%/index.html", "percent")
	testutils.WriteFile(t, root, "guides/x?y/index.html", "nested")

	r, err := New(root, Options{})
	require.NoError(t, err)

	tests := []struct {
		target   string
		location string
		body     string
	}{
		{target: "/a%3Fb", location: "/a%3Fb/", body: "query"},
		{target: "/c%23d", location: "/c%23d/", body: "fragment"},
		{target: "/100%25", location: "/100%25/", body: "percent"},
		{target: "/guides/x%3Fy", location: "/guides/x%3Fy/", body: "nested"},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := serve(t, r, http.MethodGet, tt.target)
			require.Equal(t, http.StatusMovedPermanently, rec.Code)
			require.Equal(t, tt.location, rec.Header().Get("Location"))

			followed := serve(t, r, http.MethodGet, rec.Header().Get("Location"))
			assert.Equal(t, http.StatusOK, followed.Code)
			assert.Contains(t, followed.Body.String(), tt.body)
		})
	}
}

func TestResolver_NeverListsDirectories(t *testing.T) {
	root := t.TempDir()
	testutils.WriteFile(t, root, "components/a.html", "a")
	testutils.WriteFile(t, root, "components/b.html", "b")

	r, err := New(root, Options{})
	require.NoError(t, err)

	rec := serve(t, r, http.MethodGet, "/components/")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotContains(t, rec.Body.String(), "a.html")
	assert.NotContains(t, rec.Body.String(), "b.html")
}

func TestResolver_TraversalNeverEscapesRoot(t *testing.T) {
	parent := t.TempDir()
	testutils.WriteFile(t, parent, "secret.txt", "top secret")
	root := filepath.Join(parent, "site")
	testutils.WriteFile(t, root, "index.html", "home")
	testutils.WriteFile(t, root, "docs/index.html", "docs")

	r, err := New(root, Options{})
	require.NoError(t, err)

	for _, target := range testutils.TraversalPaths {
		t.Run(target, func(t *testing.T) {
			assert.False(t, r.Exists(target))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.URL.Path = target
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			assert.NotContains(t, rec.Body.String(), "top secret")
		})
	}
}

func TestResolver_CustomIndexAndDotfiles(t *testing.T) {
	root := t.TempDir()
	testutils.WriteFile(t, root, "guide/README.html", "readme")
	testutils.WriteFile(t, root, ".well-known/security.txt", "contact")

	r, err := New(root, Options{IndexFile: "README.html", AllowDotfiles: true})
	require.NoError(t, err)

	rec := serve(t, r, http.MethodGet, "/guide/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "readme", rec.Body.String())

	rec = serve(t, r, http.MethodGet, "/.well-known/security.txt")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestResolver_Exists(t *testing.T) {
	r, err := New(newTestRoot(t), Options{})
	require.NoError(t, err)

	assert.True(t, r.Exists("/"))
	assert.True(t, r.Exists("/docs/"))
	assert.True(t, r.Exists("/docs"))
	assert.True(t, r.Exists("docs/button.html"))
	assert.False(t, r.Exists("/empty/"))
	assert.False(t, r.Exists("/nope"))
	assert.False(t, r.Exists("/.env"))
}
