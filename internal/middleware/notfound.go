package middleware

import (
	"bufio"
	"io/fs"
	"mime"
	"net"
	"net/http"
	"path"
	"strconv"
	"strings"

	docerrors "github.com/conneroisu/docsite/internal/errors"
	"github.com/conneroisu/docsite/internal/logging"
)

// ErrorHandler answers a request whose handling failed with err.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// DefaultErrorHandler logs err and answers 500.
func DefaultErrorHandler(logger logging.Logger) ErrorHandler {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Error(r.Context(), err, "request failed",
			"method", r.Method,
			"path", logging.SanitizeForLog(r.URL.Path),
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// headers describing a body that the fallback document replaces
var contentHeaders = []string{
	"Content-Length",
	"Content-Encoding",
	"Content-Range",
	"Content-Type",
	"ETag",
	"Last-Modified",
	"X-Content-Type-Options",
}

// NotFound runs the rest of the pipeline and, when it answers 404, replaces
// the body with the fallback document read from fsys. The status stays 404.
// The fallback is read on every 404; if it cannot be read, onError handles
// the request instead.
func NotFound(fsys fs.FS, page string, onError ErrorHandler) Middleware {
	page = strings.TrimPrefix(path.Clean("/"+page), "/")

	contentType := mime.TypeByExtension(path.Ext(page))
	if contentType == "" {
		contentType = "text/html; charset=utf-8"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			nw := &notFoundWriter{ResponseWriter: w}
			next.ServeHTTP(nw, r)

			if !nw.intercepted {
				return
			}

			body, err := fs.ReadFile(fsys, page)
			if err != nil {
				onError(w, r, &docerrors.FallbackError{Path: page, Err: err})
				return
			}

			header := w.Header()
			for _, name := range contentHeaders {
				header.Del(name)
			}
			header.Set("Content-Type", contentType)
			header.Set("Content-Length", strconv.Itoa(len(body)))
			w.WriteHeader(http.StatusNotFound)

			if r.Method != http.MethodHead {
				_, _ = w.Write(body)
			}
		})
	}
}

// notFoundWriter holds back a 404 and discards its body so the fallback
// document can be written in its place. Every other status passes through.
type notFoundWriter struct {
	http.ResponseWriter
	intercepted bool
	wroteHeader bool
}

func (w *notFoundWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	if code == http.StatusNotFound {
		w.intercepted = true
		return
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *notFoundWriter) Write(p []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	if w.intercepted {
		return len(p), nil
	}
	return w.ResponseWriter.Write(p)
}

func (w *notFoundWriter) Flush() {
	if w.intercepted {
		return
	}
	_ = http.NewResponseController(w.ResponseWriter).Flush()
}

func (w *notFoundWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return http.NewResponseController(w.ResponseWriter).Hijack()
}

func (w *notFoundWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
