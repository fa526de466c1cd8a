// Package testutils holds helpers shared by the docsite test suites: content
// roots on disk, quiet loggers, free ports and file-system assertions.
package testutils

import (
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/conneroisu/docsite/internal/logging"
	"github.com/stretchr/testify/require"
)

// WriteFile writes content to name, a slash-separated path under root,
// creating parent directories.
func WriteFile(t testing.TB, root, name, content string) string {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	return full
}

// WriteSite creates a temporary content root holding files, keyed by
// slash-separated path.
func WriteSite(t testing.TB, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		WriteFile(t, root, name, content)
	}
	return root
}

// DiscardLogger returns a logger that only reports errors, to nowhere.
func DiscardLogger() logging.Logger {
	return logging.NewLogger(&logging.LoggerConfig{Level: logging.LevelError, Output: io.Discard})
}

// FreePort returns a loopback TCP port that was free a moment ago.
func FreePort(t testing.TB) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

// TraversalPaths are request paths that try to leave the content root.
var TraversalPaths = []string{
	"/../secret.txt",
	"/../../secret.txt",
	"/docs/../../secret.txt",
	"/./../secret.txt",
	"..\\secret.txt",
	"....//secret.txt",
	"/..%2Fsecret.txt",
	"/%2e%2e/secret.txt",
}

// AssertFilePermissions checks the permission bits of path.
func AssertFilePermissions(t testing.TB, path string, expectedMode os.FileMode) {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)

	actualMode := info.Mode().Perm()
	require.Equal(t, expectedMode, actualMode,
		"File %s has incorrect permissions: got %o, want %o", path, actualMode, expectedMode)
}

// WaitForFileChange waits for a file to be modified (useful for testing file watchers)
func WaitForFileChange(
	t testing.TB,
	filePath string,
	originalModTime time.Time,
	timeout time.Duration,
) {
	t.Helper()
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		info, err := os.Stat(filePath)
		if err == nil && info.ModTime().After(originalModTime) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("File %s was not modified within %v", filePath, timeout)
}
