package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestViper(t *testing.T) *viper.Viper {
	t.Helper()
	t.Setenv("PORT", "")
	t.Setenv("DOCSITE_SERVER_PORT", "")

	v := viper.New()
	require.NoError(t, BindEnvironment(v))
	return v
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name         string
		setup        func(t *testing.T, v *viper.Viper)
		expectError  bool
		expectedPort int
	}{
		{
			name:         "defaults",
			setup:        func(t *testing.T, v *viper.Viper) {},
			expectedPort: 8080,
		},
		{
			name: "PORT environment variable",
			setup: func(t *testing.T, v *viper.Viper) {
				t.Setenv("PORT", "9000")
			},
			expectedPort: 9000,
		},
		{
			name: "prefixed environment variable",
			setup: func(t *testing.T, v *viper.Viper) {
				t.Setenv("DOCSITE_SERVER_PORT", "9100")
			},
			expectedPort: 9100,
		},
		{
			name: "PORT wins over prefixed variable",
			setup: func(t *testing.T, v *viper.Viper) {
				t.Setenv("PORT", "9000")
				t.Setenv("DOCSITE_SERVER_PORT", "9100")
			},
			expectedPort: 9000,
		},
		{
			name: "explicit override wins over PORT",
			setup: func(t *testing.T, v *viper.Viper) {
				t.Setenv("PORT", "9000")
				v.Set("server.port", 3000)
			},
			expectedPort: 3000,
		},
		{
			name: "invalid port type",
			setup: func(t *testing.T, v *viper.Viper) {
				v.Set("server.port", "invalid_port")
			},
			expectError: true,
		},
		{
			name: "port out of range",
			setup: func(t *testing.T, v *viper.Viper) {
				t.Setenv("PORT", "70000")
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newTestViper(t)
			tt.setup(t, v)

			config, err := LoadFrom(v)

			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, config)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, config)
			assert.Equal(t, tt.expectedPort, config.Server.Port)
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	config, err := LoadFrom(newTestViper(t))
	require.NoError(t, err)

	assert.Equal(t, "build", config.Content.Root)
	assert.Equal(t, "404/index.html", config.Content.NotFoundPage)
	assert.Equal(t, "index.html", config.Content.IndexFile)
	assert.False(t, config.Content.AllowDotfiles)
	assert.Equal(t, "Cross-Origin-Opener-Policy", config.Isolation.Header)
	assert.Equal(t, "same-origin", config.Isolation.Value)
	assert.Equal(t, "info", config.Logging.Level)
	assert.Equal(t, "text", config.Logging.Format)
	assert.Equal(t, 10*time.Second, config.Server.ReadHeaderTimeout)
	assert.Equal(t, 300*time.Millisecond, config.Development.WatchDebounce)
	assert.False(t, config.Development.LiveReload)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, ".docsite.yml")
	content := `
server:
  host: 127.0.0.1
  port: 4000
  max_connections: 64
content:
  root: ./site
  not_found_page: errors/404.html
  mime_types:
    - ext: .wasm
      type: application/wasm
isolation:
  extra_headers:
    - name: Cross-Origin-Embedder-Policy
      value: require-corp
development:
  live_reload: true
  watch_debounce: 50ms
  watch_ignore:
    - "*.map"
    - drafts/*
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0644))

	v := newTestViper(t)
	v.SetConfigFile(cfgPath)
	require.NoError(t, v.ReadInConfig())

	config, err := LoadFrom(v)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:4000", config.Server.Addr())
	assert.Equal(t, 64, config.Server.MaxConnections)
	assert.Equal(t, "./site", config.Content.Root)
	assert.Equal(t, "/errors/404.html", config.NotFoundURLPath())
	require.Len(t, config.Content.MimeTypes, 1)
	assert.Equal(t, MimeMapping{Ext: ".wasm", Type: "application/wasm"}, config.Content.MimeTypes[0])
	assert.True(t, config.Development.LiveReload)
	assert.Equal(t, 50*time.Millisecond, config.Development.WatchDebounce)
	assert.Equal(t, []string{"*.map", "drafts/*"}, config.Development.WatchIgnore)

	headers := config.Isolation.Headers()
	require.Len(t, headers, 2)
	assert.Equal(t, Header{Name: "Cross-Origin-Opener-Policy", Value: "same-origin"}, headers[0])
	assert.Equal(t, Header{Name: "Cross-Origin-Embedder-Policy", Value: "require-corp"}, headers[1])
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, ".docsite.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("server:\n  port: 4000\n"), 0644))

	v := newTestViper(t)
	t.Setenv("PORT", "9000")
	t.Setenv("DOCSITE_CONTENT_ROOT", "/srv/site")
	v.SetConfigFile(cfgPath)
	require.NoError(t, v.ReadInConfig())

	config, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, 9000, config.Server.Port)
	assert.Equal(t, "/srv/site", config.Content.Root)
}

func TestResolveContentRoot(t *testing.T) {
	cfg := &Config{Content: ContentConfig{Root: "site/build"}}
	root, err := cfg.ResolveContentRoot()
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(root))
	assert.Equal(t, "build", filepath.Base(root))

	_, err = (&Config{}).ResolveContentRoot()
	assert.Error(t, err)
}
