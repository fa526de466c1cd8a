package server

import (
	"encoding/json"
	"io/fs"
	"net/http"
	"os"
	"time"

	"github.com/conneroisu/docsite/internal/version"
)

// Health states reported by HealthStatus.Status.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// HealthStatus is the JSON body served at HealthPath.
type HealthStatus struct {
	Status      string            `json:"status" yaml:"status"`
	ContentRoot string            `json:"content_root" yaml:"content_root"`
	Fallback    string            `json:"fallback" yaml:"fallback"`
	Version     string            `json:"version" yaml:"version"`
	Timestamp   time.Time         `json:"timestamp" yaml:"timestamp"`
	Checks      map[string]string `json:"checks,omitempty" yaml:"checks,omitempty"`
}

// Healthy reports whether every check passed.
func (h HealthStatus) Healthy() bool {
	return h.Status == StatusHealthy
}

// Health checks that the content root and the fallback document are
// readable.
func (s *Server) Health() HealthStatus {
	status := HealthStatus{
		Status:      StatusHealthy,
		ContentRoot: s.root,
		Fallback:    s.cfg.NotFoundURLPath(),
		Version:     version.Get().Short(),
		Timestamp:   time.Now().UTC(),
		Checks:      map[string]string{},
	}

	if info, err := os.Stat(s.root); err != nil {
		status.Checks["content_root"] = err.Error()
	} else if !info.IsDir() {
		status.Checks["content_root"] = "not a directory"
	} else {
		status.Checks["content_root"] = "ok"
	}

	if _, err := fs.ReadFile(s.resolver.FS(), trimSlash(s.cfg.NotFoundURLPath())); err != nil {
		status.Checks["fallback"] = err.Error()
	} else {
		status.Checks["fallback"] = "ok"
	}

	for _, result := range status.Checks {
		if result != "ok" {
			status.Status = StatusUnhealthy
		}
	}
	return status
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	health := s.Health()
	code := http.StatusOK
	if !health.Healthy() {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	if r.Method == http.MethodHead {
		return
	}
	if err := json.NewEncoder(w).Encode(health); err != nil {
		s.logger.Warn(r.Context(), err, "encoding health response")
	}
}

func trimSlash(p string) string {
	for len(p) > 0 && p[0] == '/' {
		p = p[1:]
	}
	return p
}
