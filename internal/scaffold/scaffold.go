// Package scaffold creates a minimal servable content root.
package scaffold

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/conneroisu/docsite/internal/config"
	"gopkg.in/yaml.v3"
)

// ErrExists is returned when generation would overwrite files and Force is
// not set.
var ErrExists = errors.New("refusing to overwrite existing files")

// Options controls generation.
type Options struct {
	// Root is the content root to create.
	Root string
	// ConfigFile, when set, receives a config pointing at Root.
	ConfigFile string
	// SiteName appears in page titles and on the home page.
	SiteName string
	// Force overwrites existing files.
	Force bool
}

// Result lists the files written, relative paths joined onto Root or the
// config path as given.
type Result struct {
	Files []string
}

type file struct {
	path string
	data []byte
}

// Generate writes the starter pages, stylesheet and optional config. Nothing
// is written if any target exists and Force is unset.
func Generate(ctx context.Context, opts Options) (*Result, error) {
	if opts.Root == "" {
		return nil, errors.New("content root is required")
	}
	if opts.SiteName == "" {
		opts.SiteName = TitleFromSlug(filepath.Base(absOrSelf(opts.Root)))
	}

	files, err := render(ctx, opts)
	if err != nil {
		return nil, err
	}

	if !opts.Force {
		var existing []string
		for _, f := range files {
			if _, err := os.Lstat(f.path); err == nil {
				existing = append(existing, f.path)
			}
		}
		if len(existing) > 0 {
			return nil, fmt.Errorf("%w: %s (use --force)", ErrExists, strings.Join(existing, ", "))
		}
	}

	result := &Result{}
	for _, f := range files {
		if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
			return result, fmt.Errorf("creating directory for %s: %w", f.path, err)
		}
		if err := os.WriteFile(f.path, f.data, 0o644); err != nil {
			return result, fmt.Errorf("writing %s: %w", f.path, err)
		}
		result.Files = append(result.Files, f.path)
	}
	return result, nil
}

func render(ctx context.Context, opts Options) ([]file, error) {
	home := Page{Title: "Home", Body: homeBody(opts.SiteName)}
	start := Page{Slug: "getting-started", Body: gettingStartedBody()}
	notFound := Page{Slug: "404", Title: "Not Found", Body: notFoundBody()}
	nav := []Page{home, start}

	var files []file
	for _, page := range []Page{home, start, notFound} {
		var buf bytes.Buffer
		if err := Render(ctx, &buf, opts.SiteName, page, nav); err != nil {
			return nil, fmt.Errorf("rendering %s: %w", page.Path(), err)
		}
		files = append(files, file{
			path: filepath.Join(opts.Root, filepath.FromSlash(page.Path())),
			data: buf.Bytes(),
		})
	}

	files = append(files, file{
		path: filepath.Join(opts.Root, "assets", "site.css"),
		data: []byte(stylesheet),
	})

	if opts.ConfigFile != "" {
		data, err := configFor(opts)
		if err != nil {
			return nil, err
		}
		files = append(files, file{path: opts.ConfigFile, data: data})
	}
	return files, nil
}

// starterConfig is the subset of config.Config written by init.
type starterConfig struct {
	Server  starterServer  `yaml:"server"`
	Content starterContent `yaml:"content"`
}

type starterServer struct {
	Port int `yaml:"port"`
}

type starterContent struct {
	Root         string `yaml:"root"`
	NotFoundPage string `yaml:"not_found_page"`
}

func configFor(opts Options) ([]byte, error) {
	root := opts.Root
	if rel, err := filepath.Rel(filepath.Dir(absOrSelf(opts.ConfigFile)), absOrSelf(opts.Root)); err == nil {
		root = filepath.ToSlash(rel)
	}

	data, err := yaml.Marshal(starterConfig{
		Server:  starterServer{Port: config.DefaultPort},
		Content: starterContent{Root: root, NotFoundPage: config.DefaultNotFoundPage},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return data, nil
}

func absOrSelf(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
