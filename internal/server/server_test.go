package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/conneroisu/docsite/internal/config"
	docerrors "github.com/conneroisu/docsite/internal/errors"
	"github.com/conneroisu/docsite/internal/livereload"
	"github.com/conneroisu/docsite/internal/testutils"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const notFoundPage = "<html><body><h1>Lost?</h1></body></html>"

var siteFiles = map[string]string{
	"index.html":              "<html><body>home</body></html>",
	"docs/button/index.html":  "<html><body>button docs</body></html>",
	"404/index.html":          notFoundPage,
	"assets/app.css":          "body{}",
	"empty/notes.txt":         "directory without index",
	".env":                    "SECRET=1",
	"playground/runtime.wasm": "\x00asm",
}

func testConfig(t *testing.T, root string, overrides map[string]any) *config.Config {
	t.Helper()
	v := viper.New()
	v.Set("content.root", root)
	v.Set("server.host", "127.0.0.1")
	v.Set("server.port", 0)
	for k, val := range overrides {
		v.Set(k, val)
	}
	cfg, err := config.LoadFrom(v)
	require.NoError(t, err)
	return cfg
}

func newTestServer(t *testing.T, overrides map[string]any) (*Server, string) {
	t.Helper()
	root := testutils.WriteSite(t, siteFiles)
	srv, err := New(testConfig(t, root, overrides), testutils.DiscardLogger())
	require.NoError(t, err)
	return srv, root
}

func TestNew_MissingRoot(t *testing.T) {
	cfg := testConfig(t, filepath.Join(t.TempDir(), "nope"), nil)
	_, err := New(cfg, testutils.DiscardLogger())
	require.Error(t, err)
	assert.ErrorIs(t, err, docerrors.ErrContentRootMissing)
}

func TestHandler(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	h := srv.Handler()

	tests := []struct {
		name     string
		path     string
		status   int
		body     string
		location string
	}{
		{name: "root index", path: "/", status: http.StatusOK, body: "<html><body>home</body></html>"},
		{name: "nested index", path: "/docs/button/", status: http.StatusOK, body: "<html><body>button docs</body></html>"},
		{name: "directory redirect", path: "/docs/button", status: http.StatusMovedPermanently, location: "/docs/button/"},
		{name: "asset", path: "/assets/app.css", status: http.StatusOK, body: "body{}"},
		{name: "missing file", path: "/does/not/exist", status: http.StatusNotFound, body: notFoundPage},
		{name: "directory without index", path: "/empty/", status: http.StatusNotFound, body: notFoundPage},
		{name: "dotfile hidden", path: "/.env", status: http.StatusNotFound, body: notFoundPage},
		{name: "traversal cleaned", path: "/../../etc/passwd", status: http.StatusMovedPermanently, location: "/etc/passwd"},
		{name: "outside root", path: "/etc/passwd", status: http.StatusNotFound, body: notFoundPage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, config.DefaultIsolationValue, rec.Header().Get(config.DefaultIsolationHeader))
			assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
			if tt.body != "" {
				assert.Equal(t, tt.body, rec.Body.String())
			}
			if tt.location != "" {
				assert.Equal(t, tt.location, rec.Header().Get("Location"))
			}
			if tt.status == http.StatusNotFound {
				assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
			}
		})
	}
}

func TestHandler_OtherMethods(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	h := srv.Handler()

	tests := []struct {
		name   string
		method string
		path   string
		status int
		body   string
	}{
		{name: "post to missing path", method: http.MethodPost, path: "/missing", status: http.StatusNotFound, body: notFoundPage},
		{name: "options to missing path", method: http.MethodOptions, path: "/missing", status: http.StatusNotFound, body: notFoundPage},
		{name: "put to directory without index", method: http.MethodPut, path: "/empty/", status: http.StatusNotFound, body: notFoundPage},
		{name: "post to existing page", method: http.MethodPost, path: "/", status: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, config.DefaultIsolationValue, rec.Header().Get(config.DefaultIsolationHeader))
			if tt.body != "" {
				assert.Equal(t, tt.body, rec.Body.String())
			} else {
				assert.Equal(t, "GET, HEAD", rec.Header().Get("Allow"))
			}
		})
	}
}

func TestHandler_EscapedDirectoryRedirect(t *testing.T) {
	root := testutils.WriteSite(t, map[string]string{
		"404/index.html":      notFoundPage,
		"what?/index.html":    "<html><body>question</body></html>",
		"notes#1/index.html":  "<html><body>hash</body></html>",
		"docs/50%/index.html": "<html><body>percent</body></html>",
	})
	srv, err := New(testConfig(t, root, nil), testutils.DiscardLogger())
	require.NoError(t, err)
	h := srv.Handler()

	for _, target := range []string{"/what%3F", "/notes%231", "/docs/50%25"} {
		t.Run(target, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
			require.Equal(t, http.StatusMovedPermanently, rec.Code)
			location := rec.Header().Get("Location")
			assert.Equal(t, target+"/", location)

			followed := httptest.NewRecorder()
			h.ServeHTTP(followed, httptest.NewRequest(http.MethodGet, location, nil))
			assert.Equal(t, http.StatusOK, followed.Code)
			assert.NotEqual(t, notFoundPage, followed.Body.String())
		})
	}
}

func TestHandler_WasmContentType(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/playground/runtime.wasm", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/wasm", rec.Header().Get("Content-Type"))
}

func TestHandler_ExtraIsolationHeaders(t *testing.T) {
	srv, _ := newTestServer(t, map[string]any{
		"isolation.extra_headers": []map[string]string{
			{"name": "Cross-Origin-Embedder-Policy", "value": "require-corp"},
		},
	})

	for _, p := range []string{"/", "/missing"} {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, p, nil))
		assert.Equal(t, "same-origin", rec.Header().Get("Cross-Origin-Opener-Policy"), p)
		assert.Equal(t, "require-corp", rec.Header().Get("Cross-Origin-Embedder-Policy"), p)
	}
}

func TestHandler_MissingFallbackIsInternalError(t *testing.T) {
	srv, root := newTestServer(t, nil)
	require.NoError(t, os.RemoveAll(filepath.Join(root, "404")))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "same-origin", rec.Header().Get("Cross-Origin-Opener-Policy"))

	// existing pages are unaffected
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandler_FallbackReadPerRequest(t *testing.T) {
	srv, root := newTestServer(t, nil)
	require.NoError(t, os.WriteFile(filepath.Join(root, "404", "index.html"), []byte("rebuilt"), 0o644))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "rebuilt", rec.Body.String())
}

func TestHandler_CustomFallbackPage(t *testing.T) {
	srv, root := newTestServer(t, map[string]any{"content.not_found_page": "errors/missing.html"})
	require.NoError(t, os.MkdirAll(filepath.Join(root, "errors"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "errors", "missing.html"), []byte("custom"), 0o644))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "custom", rec.Body.String())
}

func TestHealth(t *testing.T) {
	srv, root := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, HealthPath, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "same-origin", rec.Header().Get("Cross-Origin-Opener-Policy"))

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.Healthy())
	assert.Equal(t, root, status.ContentRoot)
	assert.Equal(t, "/404/index.html", status.Fallback)
	assert.NotEmpty(t, status.Version)

	require.NoError(t, os.Remove(filepath.Join(root, "404", "index.html")))

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, HealthPath, nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, StatusUnhealthy, status.Status)
	assert.NotEqual(t, "ok", status.Checks["fallback"])

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, HealthPath, nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestListen_OnlyOnce(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	assert.Nil(t, srv.Addr())
	assert.Empty(t, srv.URL())

	ctx := context.Background()
	require.NoError(t, srv.Listen(ctx))
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	assert.NotNil(t, srv.Addr())
	assert.True(t, strings.HasPrefix(srv.URL(), "http://127.0.0.1:"))
	assert.ErrorIs(t, srv.Listen(ctx), docerrors.ErrAlreadyListening)
}

func TestServe_PortFromEnvironment(t *testing.T) {
	port := testutils.FreePort(t)
	t.Setenv("PORT", fmt.Sprint(port))

	v := viper.New()
	require.NoError(t, config.BindEnvironment(v))
	v.Set("content.root", testutils.WriteSite(t, siteFiles))
	v.Set("server.host", "127.0.0.1")
	cfg, err := config.LoadFrom(v)
	require.NoError(t, err)
	require.Equal(t, port, cfg.Server.Port)

	srv, err := New(cfg, testutils.DiscardLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	require.NoError(t, srv.Listen(ctx))
	go func() { done <- srv.Serve(ctx) }()

	assert.Equal(t, port, srv.Addr().(*net.TCPAddr).Port)

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/", port))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServe_ConcurrentRequests(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, srv.Listen(ctx))
	go func() { _ = srv.Serve(ctx) }()

	base := srv.URL()
	client := &http.Client{Timeout: 10 * time.Second}

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			path, wantStatus, wantBody := "/docs/button/", http.StatusOK, "<html><body>button docs</body></html>"
			if i%2 == 1 {
				path, wantStatus, wantBody = fmt.Sprintf("/missing-%d", i), http.StatusNotFound, notFoundPage
			}

			resp, err := client.Get(base + path)
			if !assert.NoError(t, err) {
				return
			}
			defer resp.Body.Close()
			body, err := io.ReadAll(resp.Body)
			assert.NoError(t, err)
			assert.Equal(t, wantStatus, resp.StatusCode, path)
			assert.Equal(t, wantBody, string(body), path)
			assert.Equal(t, "same-origin", resp.Header.Get("Cross-Origin-Opener-Policy"))
		}(i)
	}
	wg.Wait()
}

func TestServe_LiveReload(t *testing.T) {
	srv, root := newTestServer(t, map[string]any{
		"development.live_reload":    true,
		"development.watch_debounce": 50 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, srv.Listen(ctx))
	go func() { _ = srv.Serve(ctx) }()

	// pages, including the fallback, carry the script
	for _, p := range []string{"/", "/missing"} {
		resp, err := http.Get(srv.URL() + p)
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		assert.Contains(t, string(body), livereload.Snippet, p)
	}

	dialCtx, dialCancel := context.WithTimeout(ctx, 5*time.Second)
	defer dialCancel()
	wsURL := "ws" + strings.TrimPrefix(srv.URL(), "http") + livereload.SocketPath
	conn, resp, err := websocket.Dial(dialCtx, wsURL, nil)
	require.NoError(t, err)
	defer conn.CloseNow()
	assert.Equal(t, "same-origin", resp.Header.Get("Cross-Origin-Opener-Policy"))

	require.Eventually(t, func() bool { return srv.hub.ClientCount() == 1 }, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		srv.mutex.Lock()
		defer srv.mutex.Unlock()
		return srv.watcher != nil
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte("<html><body>changed</body></html>"), 0o644))

	readCtx, readCancel := context.WithTimeout(ctx, 10*time.Second)
	defer readCancel()
	var msg livereload.Message
	require.NoError(t, wsjson.Read(readCtx, conn, &msg))
	assert.Equal(t, "reload", msg.Type)
}
