package livereload

import (
	"bufio"
	"bytes"
	"mime"
	"net"
	"net/http"
	"strconv"
)

// Snippet is inserted into HTML pages.
const Snippet = `<script src="` + ScriptPath + `"></script>`

var closingBody = []byte("</body>")

// Inject adds the reload script to HTML responses with status 200 or 404.
// The script goes before the last </body>, or at the end when there is none.
// Every other response passes through untouched.
func Inject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		iw := &injectWriter{ResponseWriter: w, head: r.Method == http.MethodHead}
		next.ServeHTTP(iw, r)
		iw.finish()
	})
}

// InjectHTML returns page with the reload script inserted.
func InjectHTML(page []byte) []byte {
	out := make([]byte, 0, len(page)+len(Snippet))
	if i := bytes.LastIndex(bytes.ToLower(page), closingBody); i >= 0 {
		out = append(out, page[:i]...)
		out = append(out, Snippet...)
		return append(out, page[i:]...)
	}
	out = append(out, page...)
	return append(out, Snippet...)
}

type injectWriter struct {
	http.ResponseWriter
	head        bool
	status      int
	wroteHeader bool
	buffering   bool
	buf         bytes.Buffer
}

func (w *injectWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	w.status = code

	if (code == http.StatusOK || code == http.StatusNotFound) && isHTML(w.Header().Get("Content-Type")) &&
		w.Header().Get("Content-Encoding") == "" {
		w.buffering = true
		return
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *injectWriter) Write(p []byte) (int, error) {
	if !w.wroteHeader {
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", http.DetectContentType(p))
		}
		w.WriteHeader(http.StatusOK)
	}
	if w.buffering {
		return w.buf.Write(p)
	}
	return w.ResponseWriter.Write(p)
}

func (w *injectWriter) finish() {
	if !w.buffering {
		return
	}

	header := w.Header()
	header.Del("ETag")
	if w.head {
		header.Del("Content-Length")
		w.ResponseWriter.WriteHeader(w.status)
		return
	}

	body := InjectHTML(w.buf.Bytes())
	header.Set("Content-Length", strconv.Itoa(len(body)))
	w.ResponseWriter.WriteHeader(w.status)
	_, _ = w.ResponseWriter.Write(body)
}

func (w *injectWriter) Flush() {
	if w.buffering {
		return
	}
	_ = http.NewResponseController(w.ResponseWriter).Flush()
}

func (w *injectWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return http.NewResponseController(w.ResponseWriter).Hijack()
}

func (w *injectWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func isHTML(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "text/html"
}
