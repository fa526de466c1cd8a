package config

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	writeIssues := func(title string, issues []ValidationError) {
		if len(issues) == 0 {
			return
		}
		builder.WriteString(title + ":\n")
		for _, issue := range issues {
			builder.WriteString(fmt.Sprintf("  - %s: %s\n", issue.Field, issue.Message))
			for _, suggestion := range issue.Suggestions {
				builder.WriteString(fmt.Sprintf("      hint: %s\n", suggestion))
			}
		}
	}

	writeIssues("Validation errors", vr.Errors)
	writeIssues("Validation warnings", vr.Warnings)

	return builder.String()
}

func (vr *ValidationResult) addError(field string, value interface{}, msg string, suggestions ...string) {
	vr.Errors = append(vr.Errors, ValidationError{Field: field, Value: value, Message: msg, Suggestions: suggestions})
}

func (vr *ValidationResult) addWarning(field string, value interface{}, msg string, suggestions ...string) {
	vr.Warnings = append(vr.Warnings, ValidationError{Field: field, Value: value, Message: msg, Suggestions: suggestions})
}

// ValidateConfigWithDetails performs comprehensive validation with detailed feedback
func ValidateConfigWithDetails(config *Config) *ValidationResult {
	result := &ValidationResult{
		Valid:    true,
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
	}

	validateServerConfigDetails(&config.Server, result)
	validateContentConfigDetails(&config.Content, result)
	validateIsolationConfigDetails(&config.Isolation, result)
	validateLoggingConfigDetails(&config.Logging, result)
	validateDevelopmentConfigDetails(&config.Development, result)

	result.Valid = !result.HasErrors()

	return result
}

// CheckContentRoot reports, as warnings, a content root or fallback document
// that is missing on disk. Kept separate from ValidateConfigWithDetails so
// loading a config never touches the filesystem.
func CheckContentRoot(config *Config, result *ValidationResult) {
	root, err := config.ResolveContentRoot()
	if err != nil {
		result.addWarning("content.root", config.Content.Root, err.Error())
		return
	}

	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		result.addWarning("content.root", root, "content root does not exist or is not a directory",
			"Build the site before serving it",
			"Run 'docsite init "+config.Content.Root+"' to scaffold a starter root")
		return
	}

	fallback := filepath.Join(root, filepath.FromSlash(config.Content.NotFoundPage))
	if _, err := os.Stat(fallback); err != nil {
		result.addWarning("content.not_found_page", fallback, "fallback document is missing; 404 responses will fail with 500",
			"Add a 404 page to the site build")
	}
}

func validateServerConfigDetails(config *ServerConfig, result *ValidationResult) {
	// Port 0 lets the system assign a port, which tests rely on.
	if config.Port < 0 || config.Port > 65535 {
		result.addError("server.port", config.Port,
			fmt.Sprintf("port %d is not in valid range 0-65535", config.Port),
			"Use a port between 1024-65535 for non-privileged access",
			"Set PORT in the environment to override the default of 8080")
	} else if config.Port > 0 && config.Port < 1024 {
		result.addWarning("server.port", config.Port, "port below 1024 requires elevated privileges")
	}

	if config.Host != "" {
		dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\", " "}
		for _, char := range dangerousChars {
			if strings.Contains(config.Host, char) {
				result.addError("server.host", config.Host,
					fmt.Sprintf("host contains dangerous character: %q", char),
					"Use 'localhost' for local development",
					"Leave empty or use '0.0.0.0' to bind to all interfaces")
				break
			}
		}
	}

	validEnvs := []string{"development", "production", "testing"}
	if config.Environment != "" && !contains(validEnvs, config.Environment) {
		result.addWarning("server.environment", config.Environment, "unknown environment type",
			"Use one of: "+strings.Join(validEnvs, ", "))
	}

	if config.MaxConnections < 0 {
		result.addError("server.max_connections", config.MaxConnections,
			"max_connections cannot be negative", "Use 0 for no limit")
	}

	if config.ReadHeaderTimeout < 0 {
		result.addError("server.read_header_timeout", config.ReadHeaderTimeout, "timeout cannot be negative")
	}
}

func validateContentConfigDetails(config *ContentConfig, result *ValidationResult) {
	if config.Root == "" {
		result.addError("content.root", config.Root, "content root cannot be empty",
			"Point content.root at the published site build directory")
	}

	if err := validateRelativePath(config.NotFoundPage); err != nil {
		result.addError("content.not_found_page", config.NotFoundPage, err.Error(),
			"Use a path relative to the content root, e.g. 404/index.html")
	}

	if strings.ContainsAny(config.IndexFile, `/\`) || config.IndexFile == ".." {
		result.addError("content.index_file", config.IndexFile, "index file must be a bare file name")
	}

	for _, m := range config.MimeTypes {
		if !strings.HasPrefix(m.Ext, ".") || len(m.Ext) < 2 {
			result.addError("content.mime_types", m.Ext, "extension must start with '.'")
			continue
		}
		if _, _, err := mime.ParseMediaType(m.Type); err != nil {
			result.addError("content.mime_types", m.Type, fmt.Sprintf("invalid media type: %v", err))
		}
	}
}

func validateIsolationConfigDetails(config *IsolationConfig, result *ValidationResult) {
	for _, h := range config.Headers() {
		if h.Name == "" {
			result.addError("isolation.header", h.Name, "header name cannot be empty")
			continue
		}
		if strings.ContainsAny(h.Name, " \t\r\n:") {
			result.addError("isolation.header", h.Name, "header name contains invalid characters")
			continue
		}
		if strings.ContainsAny(h.Value, "\r\n") {
			result.addError("isolation.header", h.Value, "header value cannot contain line breaks")
		}
		if http.CanonicalHeaderKey(h.Name) == "Content-Type" {
			result.addError("isolation.header", h.Name, "isolation headers cannot override Content-Type")
		}
	}
}

func validateLoggingConfigDetails(config *LoggingConfig, result *ValidationResult) {
	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, strings.ToLower(config.Level)) {
		result.addError("logging.level", config.Level, "unknown log level",
			"Use one of: "+strings.Join(validLevels, ", "))
	}

	validFormats := []string{"text", "json"}
	if !contains(validFormats, strings.ToLower(config.Format)) {
		result.addError("logging.format", config.Format, "unknown log format",
			"Use one of: "+strings.Join(validFormats, ", "))
	}
}

func validateDevelopmentConfigDetails(config *DevelopmentConfig, result *ValidationResult) {
	if config.WatchDebounce < 0 {
		result.addError("development.watch_debounce", config.WatchDebounce, "debounce cannot be negative")
	}
	for _, pattern := range config.WatchIgnore {
		if _, err := path.Match(pattern, ""); err != nil {
			result.addError("development.watch_ignore", pattern, "invalid glob pattern",
				"Patterns use path.Match syntax, e.g. '*.map' or 'drafts/*'")
		}
	}
}

// validateRelativePath validates a path that must stay inside the content root
func validateRelativePath(p string) error {
	if p == "" {
		return fmt.Errorf("empty path")
	}

	cleanPath := filepath.Clean(filepath.FromSlash(p))

	if filepath.IsAbs(cleanPath) || strings.HasPrefix(p, "/") {
		return fmt.Errorf("path must be relative to the content root: %s", p)
	}

	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path contains traversal: %s", p)
	}

	return nil
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
