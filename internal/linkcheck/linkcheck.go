// Package linkcheck finds references between pages of a content root that
// would not resolve when served.
package linkcheck

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/conneroisu/docsite/internal/logging"
	"golang.org/x/net/html"
)

// Resolver answers whether a URL path would be served successfully.
type Resolver interface {
	Exists(urlPath string) bool
}

// BrokenLink is a reference from Page to a Target that does not resolve.
type BrokenLink struct {
	Page   string `json:"page" yaml:"page"`
	Target string `json:"target" yaml:"target"`
	Line   int    `json:"line,omitempty" yaml:"line,omitempty"`
}

// Report summarizes one run over a content root.
type Report struct {
	ContentRoot     string        `json:"content_root" yaml:"content_root"`
	FallbackPage    string        `json:"fallback_page" yaml:"fallback_page"`
	FallbackPresent bool          `json:"fallback_present" yaml:"fallback_present"`
	PagesScanned    int           `json:"pages_scanned" yaml:"pages_scanned"`
	LinksChecked    int           `json:"links_checked" yaml:"links_checked"`
	Broken          []BrokenLink  `json:"broken" yaml:"broken"`
	Duration        time.Duration `json:"duration" yaml:"duration"`
}

// OK reports whether the content root is servable with no broken links.
func (r *Report) OK() bool {
	return r.FallbackPresent && len(r.Broken) == 0
}

// Checker walks the HTML pages of a content root.
type Checker struct {
	fsys     fs.FS
	resolver Resolver
	fallback string
	root     string
	logger   logging.Logger
}

// New creates a checker over fsys, whose paths are checked against resolver.
// fallback is the not-found document, relative to the root.
func New(root string, fsys fs.FS, resolver Resolver, fallback string, logger logging.Logger) *Checker {
	return &Checker{
		fsys:     fsys,
		resolver: resolver,
		fallback: strings.TrimPrefix(path.Clean("/"+fallback), "/"),
		root:     root,
		logger:   logger.WithComponent("linkcheck"),
	}
}

// Run scans every .html file below the root. Hidden directories are skipped.
func (c *Checker) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{
		ContentRoot:  c.root,
		FallbackPage: c.fallback,
		Broken:       []BrokenLink{},
	}

	if info, err := fs.Stat(c.fsys, c.fallback); err == nil && !info.IsDir() {
		report.FallbackPresent = true
	}

	err := fs.WalkDir(c.fsys, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if name != "." && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(path.Ext(name), ".html") && !strings.EqualFold(path.Ext(name), ".htm") {
			return nil
		}

		broken, checked, err := c.checkPage(name)
		if err != nil {
			c.logger.Warn(ctx, err, "skipping unparsable page", "page", name)
			return nil
		}
		report.PagesScanned++
		report.LinksChecked += checked
		report.Broken = append(report.Broken, broken...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", c.root, err)
	}

	sort.SliceStable(report.Broken, func(i, j int) bool {
		if report.Broken[i].Page != report.Broken[j].Page {
			return report.Broken[i].Page < report.Broken[j].Page
		}
		return report.Broken[i].Line < report.Broken[j].Line
	})
	report.Duration = time.Since(start)
	return report, nil
}

func (c *Checker) checkPage(name string) ([]BrokenLink, int, error) {
	data, err := fs.ReadFile(c.fsys, name)
	if err != nil {
		return nil, 0, fmt.Errorf("reading %s: %w", name, err)
	}
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("parsing %s: %w", name, err)
	}

	pageURL := "/" + name
	base := &url.URL{Path: pageURL}

	var broken []BrokenLink
	checked := 0
	seen := make(map[string]bool)

	for _, ref := range ExtractReferences(doc) {
		target, ok := localTarget(base, ref)
		if !ok || seen[target] {
			continue
		}
		seen[target] = true
		checked++
		if !c.resolver.Exists(target) {
			broken = append(broken, BrokenLink{
				Page:   pageURL,
				Target: target,
				Line:   lineOf(data, ref),
			})
		}
	}
	return broken, checked, nil
}

// referenceAttrs lists, per element, the attributes holding a URL.
var referenceAttrs = map[string][]string{
	"a":      {"href"},
	"link":   {"href"},
	"area":   {"href"},
	"script": {"src"},
	"img":    {"src"},
	"iframe": {"src"},
	"source": {"src"},
	"video":  {"src", "poster"},
	"audio":  {"src"},
	"embed":  {"src"},
	"track":  {"src"},
}

// ExtractReferences returns the URL-valued attributes of doc in document
// order.
func ExtractReferences(doc *html.Node) []string {
	var refs []string

	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if attrs, ok := referenceAttrs[n.Data]; ok {
				for _, a := range n.Attr {
					for _, want := range attrs {
						if a.Namespace == "" && a.Key == want {
							refs = append(refs, strings.TrimSpace(a.Val))
						}
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}

	traverse(doc)
	return refs
}

// localTarget resolves ref against base and reports whether it points into
// the content root.
func localTarget(base *url.URL, ref string) (string, bool) {
	if ref == "" || strings.HasPrefix(ref, "#") {
		return "", false
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	if u.Scheme != "" || u.Host != "" || u.Opaque != "" {
		return "", false
	}
	if u.Path == "" {
		return "", false
	}

	resolved := base.ResolveReference(u)
	return resolved.Path, true
}

func lineOf(data []byte, ref string) int {
	i := bytes.Index(data, []byte(ref))
	if i < 0 {
		return 0
	}
	return bytes.Count(data[:i], []byte("\n")) + 1
}
