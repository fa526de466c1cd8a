// Package internal contains the core implementation packages for docsite.
//
// This package follows Go's internal package convention, making these
// packages unavailable for import by external modules while providing
// all the core functionality for the docsite CLI tool.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - config: Viper-backed configuration with PORT handling and validation
//   - errors: Typed errors and remediation suggestions for the CLI
//   - logging: Structured logging on log/slog with request correlation
//   - static: Content-root resolver with directory-to-index resolution
//   - middleware: Request ID, access log, recovery, isolation header and 404 fallback
//   - server: Listener lifecycle, health endpoint and graceful shutdown
//   - watcher: File system monitoring with debouncing
//   - livereload: WebSocket hub and HTML script injection
//   - linkcheck: Broken-link detection across the content root
//   - scaffold: Starter site generation with templ components
//   - version: Build metadata
//   - testutils: Helpers shared by the test suites
//
// # Request Flow
//
// Every request passes through one middleware chain before reaching the
// resolver:
//
//	RequestID -> AccessLog -> Recover -> Isolation -> [LiveReload] -> NotFound -> mux -> Resolver
//
// The isolation header is set before any handler writes, so redirects,
// fallback pages and error responses all carry it. NotFound swaps the body
// of every 404 for the site's own page and keeps the status.
//
// # Testing Strategy
//
//   - Unit tests with testify in every package
//   - Property tests with gopter behind the "property" build tag
//   - End-to-end tests behind the "integration" build tag
package internal
