package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

// ErrorSuggestion represents a suggestion for fixing an error
type ErrorSuggestion struct {
	Title       string
	Description string
	Command     string
	Example     string
}

// ServerStartError generates suggestions for listener failures
func ServerStartError(err error, port int) []ErrorSuggestion {
	suggestions := []ErrorSuggestion{}

	errStr := err.Error()

	if strings.Contains(errStr, "address already in use") || strings.Contains(errStr, "bind") {
		suggestions = append(suggestions,
			ErrorSuggestion{
				Title:       "Port already in use",
				Description: fmt.Sprintf("Port %d is already being used by another process", port),
				Command:     fmt.Sprintf("lsof -i :%d", port),
			},
			ErrorSuggestion{
				Title:       "Use a different port",
				Description: "Start the server on a different port",
				Command:     fmt.Sprintf("PORT=%d docsite serve", port+1),
			},
		)
	}

	if strings.Contains(errStr, "permission denied") {
		suggestions = append(suggestions, ErrorSuggestion{
			Title:       "Permission denied",
			Description: "You don't have permission to bind to this port",
		})

		if port < 1024 {
			suggestions = append(suggestions, ErrorSuggestion{
				Title:       "Use unprivileged port",
				Description: "Ports below 1024 require root privileges",
				Command:     "PORT=8080 docsite serve",
			})
		}
	}

	return suggestions
}

// ConfigurationError generates suggestions for configuration issues
func ConfigurationError(configError string, configPath string) []ErrorSuggestion {
	suggestions := []ErrorSuggestion{
		{
			Title:       "Check configuration file",
			Description: "Verify your config file exists and has valid syntax",
			Command:     "cat " + configPath,
		},
		{
			Title:       "Validate configuration",
			Description: "Use the config validate command to check for issues",
			Command:     "docsite config validate",
		},
	}

	if strings.Contains(configError, "yaml") || strings.Contains(configError, "unmarshal") ||
		strings.Contains(configError, "decoding") {
		suggestions = append(suggestions, ErrorSuggestion{
			Title:       "Fix YAML syntax",
			Description: "There's a syntax or type error in your YAML configuration",
			Example:     "server:\n  port: 8080",
		})
	}

	return suggestions
}

// ContentRootError generates suggestions when the content root is unusable
func ContentRootError(err error, root string) []ErrorSuggestion {
	suggestions := []ErrorSuggestion{
		{
			Title:       "Build the site",
			Description: "The content root must contain the published site build",
		},
		{
			Title:       "Point docsite at the build output",
			Description: "Pass the directory as an argument or set it in the config",
			Command:     "docsite serve ./site/build",
			Example:     "content:\n  root: ./site/build",
		},
	}

	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, ErrContentRootMissing) {
		suggestions = append(suggestions, ErrorSuggestion{
			Title:       "Scaffold a starter site",
			Description: fmt.Sprintf("%s does not exist yet", root),
			Command:     "docsite init " + root,
		})
	}

	return suggestions
}

// FallbackMissingError generates suggestions when the 404 page the server
// answers unknown paths with is absent from the content root.
func FallbackMissingError(page, root string) []ErrorSuggestion {
	return []ErrorSuggestion{
		{
			Title:       "Add a 404 page to the build",
			Description: fmt.Sprintf("%s must exist below %s; until it does unknown paths are answered with 500", page, root),
		},
		{
			Title:       "Point at the page your build emits",
			Description: "Set content.not_found_page relative to the content root",
			Example:     "content:\n  not_found_page: 404.html",
		},
	}
}

// BrokenLinksError generates suggestions for a content root with links
// that do not resolve.
func BrokenLinksError(count int) []ErrorSuggestion {
	suggestions := []ErrorSuggestion{
		{
			Title:       "Fix or remove the broken links",
			Description: fmt.Sprintf("%d local links point at paths docsite would answer with 404", count),
		},
		{
			Title:       "Link to directories with a trailing slash",
			Description: "Directories are served through their index document",
			Example:     "<a href=\"/docs/button/\">Button</a>",
		},
	}
	return suggestions
}

// FormatSuggestions formats suggestions into a user-friendly string
func FormatSuggestions(title string, suggestions []ErrorSuggestion) string {
	if len(suggestions) == 0 {
		return title
	}

	var output strings.Builder
	output.WriteString(title + "\n\n")
	output.WriteString("Suggestions:\n")

	for i, suggestion := range suggestions {
		output.WriteString(fmt.Sprintf("  %d. %s\n", i+1, suggestion.Title))
		if suggestion.Description != "" {
			output.WriteString(fmt.Sprintf("     %s\n", suggestion.Description))
		}
		if suggestion.Command != "" {
			output.WriteString(fmt.Sprintf("     Run: %s\n", suggestion.Command))
		}
		if suggestion.Example != "" {
			output.WriteString(fmt.Sprintf("     Example: %s\n", suggestion.Example))
		}
		output.WriteString("\n")
	}

	return output.String()
}

// EnhancedError wraps an error with suggestions
type EnhancedError struct {
	OriginalError error
	Title         string
	Suggestions   []ErrorSuggestion
}

// Error implements the error interface
func (e *EnhancedError) Error() string {
	if e.OriginalError != nil {
		return FormatSuggestions(e.Title+": "+e.OriginalError.Error(), e.Suggestions)
	}
	return FormatSuggestions(e.Title, e.Suggestions)
}

// Unwrap returns the original error
func (e *EnhancedError) Unwrap() error {
	return e.OriginalError
}

// NewEnhancedError creates a new enhanced error with suggestions
func NewEnhancedError(title string, originalError error, suggestions []ErrorSuggestion) *EnhancedError {
	return &EnhancedError{
		OriginalError: originalError,
		Title:         title,
		Suggestions:   suggestions,
	}
}
