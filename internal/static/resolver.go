// Package static maps request paths onto files under a content root.
//
// A Resolver serves regular files with their extension-derived content type,
// resolves directories to their index document, and never generates a
// directory listing: a directory without an index document is reported as
// not found, exactly like a missing file. Dotfiles are hidden unless allowed.
// Not-found responses carry a plain 404; substituting the site's own error
// page is left to middleware.NotFound.
package static

import (
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"

	docerrors "github.com/conneroisu/docsite/internal/errors"
)

// Options controls how a Resolver maps paths to files.
type Options struct {
	// IndexFile is served for directory paths. Defaults to index.html.
	IndexFile string

	// AllowDotfiles exposes files and directories whose name starts with '.'.
	AllowDotfiles bool

	// MimeTypes registers extra extension to content-type mappings,
	// keyed by extension including the leading dot.
	MimeTypes map[string]string
}

// Resolver is an http.Handler serving the files below root.
type Resolver struct {
	root string
	dir  http.Dir
	opts Options
}

// resolution is the outcome of mapping a URL path onto the content root.
type resolution struct {
	file     http.File
	info     fs.FileInfo
	redirect string
}

// New creates a resolver for root. The root must be an existing directory.
func New(root string, opts Options) (*Resolver, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", docerrors.ErrContentRootMissing, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", docerrors.ErrContentRootMissing, root)
	}

	if opts.IndexFile == "" {
		opts.IndexFile = "index.html"
	}

	for ext, contentType := range opts.MimeTypes {
		if err := mime.AddExtensionType(ext, contentType); err != nil {
			return nil, fmt.Errorf("registering content type for %s: %w", ext, err)
		}
	}

	return &Resolver{
		root: root,
		dir:  http.Dir(root),
		opts: opts,
	}, nil
}

// Root returns the directory the resolver serves.
func (r *Resolver) Root() string {
	return r.root
}

// FS returns the content root as an fs.FS.
func (r *Resolver) FS() fs.FS {
	return os.DirFS(r.root)
}

// ServeHTTP serves the file for req.URL.Path or answers 404. Methods other
// than GET and HEAD get 405 only for paths that resolve; a missing path is
// 404 whatever the method.
func (r *Resolver) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	res, err := r.resolve(req.URL.Path)
	if err != nil {
		r.serveError(w, err)
		return
	}

	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		if res.file != nil {
			res.file.Close()
		}
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	if res.redirect != "" {
		target := res.redirect
		if req.URL.RawQuery != "" {
			target += "?" + req.URL.RawQuery
		}
		http.Redirect(w, req, target, http.StatusMovedPermanently)
		return
	}

	defer res.file.Close()
	http.ServeContent(w, req, res.info.Name(), res.info.ModTime(), res.file)
}

// Exists reports whether urlPath would be served with a success status,
// following directory-to-index resolution.
func (r *Resolver) Exists(urlPath string) bool {
	res, err := r.resolve(urlPath)
	if err != nil {
		return false
	}
	if res.file != nil {
		res.file.Close()
	}
	return true
}

func (r *Resolver) resolve(urlPath string) (*resolution, error) {
	if !strings.HasPrefix(urlPath, "/") {
		urlPath = "/" + urlPath
	}
	name := path.Clean(urlPath)

	if !r.opts.AllowDotfiles && hasDotSegment(name) {
		return nil, fs.ErrNotExist
	}

	f, err := r.dir.Open(name)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	if !info.IsDir() {
		if strings.HasSuffix(urlPath, "/") {
			f.Close()
			return &resolution{redirect: escapePath(name)}, nil
		}
		return &resolution{file: f, info: info}, nil
	}
	f.Close()

	// Directories only resolve through their index document.
	indexName := path.Join(name, r.opts.IndexFile)
	index, err := r.dir.Open(indexName)
	if err != nil {
		return nil, fs.ErrNotExist
	}
	indexInfo, err := index.Stat()
	if err != nil || indexInfo.IsDir() {
		index.Close()
		return nil, fs.ErrNotExist
	}

	if !strings.HasSuffix(urlPath, "/") {
		index.Close()
		return &resolution{redirect: escapePath(name + "/")}, nil
	}

	return &resolution{file: index, info: indexInfo}, nil
}

func (r *Resolver) serveError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	case errors.Is(err, fs.ErrPermission):
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
	default:
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// escapePath turns a cleaned file system path back into an absolute URL path
// so names containing '?', '#' or '%' survive the redirect.
func escapePath(name string) string {
	return (&url.URL{Path: name}).EscapedPath()
}

func hasDotSegment(name string) bool {
	for _, segment := range strings.Split(name, "/") {
		if strings.HasPrefix(segment, ".") && segment != "." {
			return true
		}
	}
	return false
}
