package scaffold

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Page is one generated HTML document.
type Page struct {
	// Slug is the directory the page lives in; empty for the home page.
	Slug string
	// Title overrides the title derived from Slug.
	Title string
	Body  templ.Component
}

// Path returns the page's file path relative to the content root.
func (p Page) Path() string {
	if p.Slug == "" {
		return "index.html"
	}
	return p.Slug + "/index.html"
}

// URL returns the path the page is served at.
func (p Page) URL() string {
	if p.Slug == "" {
		return "/"
	}
	return "/" + p.Slug + "/"
}

// DisplayTitle returns Title, or the slug title-cased.
func (p Page) DisplayTitle() string {
	if p.Title != "" {
		return p.Title
	}
	return TitleFromSlug(p.Slug)
}

var titleCaser = cases.Title(language.English)

// TitleFromSlug turns "getting-started" into "Getting Started".
func TitleFromSlug(slug string) string {
	words := strings.FieldsFunc(slug, func(r rune) bool {
		return r == '-' || r == '_' || r == '/'
	})
	return titleCaser.String(strings.Join(words, " "))
}

// layout wraps the page body from the context children in the site shell.
func layout(site, title, stylesheet string, nav []Page) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := write(w,
			"<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n",
			"<meta charset=\"utf-8\">\n",
			"<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n",
			"<title>", templ.EscapeString(title), " | ", templ.EscapeString(site), "</title>\n",
			"<link rel=\"stylesheet\" href=\"", templ.EscapeString(stylesheet), "\">\n",
			"</head>\n<body>\n<header>\n<nav>\n",
		); err != nil {
			return err
		}
		for _, p := range nav {
			if err := write(w, "<a href=\"", templ.EscapeString(p.URL()), "\">",
				templ.EscapeString(p.DisplayTitle()), "</a>\n"); err != nil {
				return err
			}
		}
		if err := write(w, "</nav>\n</header>\n<main>\n"); err != nil {
			return err
		}
		if err := templ.GetChildren(ctx).Render(ctx, w); err != nil {
			return err
		}
		return write(w, "</main>\n</body>\n</html>\n")
	})
}

func homeBody(site string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return write(w,
			"<h1>", templ.EscapeString(site), "</h1>\n",
			"<p>Documentation and tutorials for the component library.</p>\n",
			"<p><a href=\"/getting-started/\">Start here</a></p>\n",
		)
	})
}

func gettingStartedBody() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return write(w,
			"<h1>Getting Started</h1>\n",
			"<p>Replace these pages with the output of your documentation build.</p>\n",
			"<p>Every directory needs an <code>index.html</code> to be reachable.</p>\n",
		)
	})
}

func notFoundBody() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return write(w,
			"<h1>Page not found</h1>\n",
			"<p>The page you asked for does not exist.</p>\n",
			"<p><a href=\"/\">Back to the home page</a></p>\n",
		)
	})
}

// Render renders page inside the site layout.
func Render(ctx context.Context, w io.Writer, site string, page Page, nav []Page) error {
	return layout(site, page.DisplayTitle(), "/assets/site.css", nav).
		Render(templ.WithChildren(ctx, page.Body), w)
}

func write(w io.Writer, parts ...string) error {
	for _, part := range parts {
		if _, err := io.WriteString(w, part); err != nil {
			return err
		}
	}
	return nil
}

const stylesheet = `:root {
  color-scheme: light dark;
  font-family: system-ui, sans-serif;
}

body {
  margin: 0 auto;
  max-width: 48rem;
  padding: 1rem;
}

header nav a {
  margin-right: 1rem;
}
`
