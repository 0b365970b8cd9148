package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amaumene/gostremiodebrid/internal/config"
	"github.com/amaumene/gostremiodebrid/internal/constants"
)

func newTestApp(t *testing.T) *app {
	t.Helper()
	t.Setenv("LOG_LEVEL", "error")
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	require.NoError(t, cfg.Validate())

	a, err := newApp(cfg)
	require.NoError(t, err)
	t.Cleanup(a.close)
	return a
}

func TestAppRoutes(t *testing.T) {
	a := newTestApp(t)

	tests := []struct {
		path     string
		wantCode int
		contains string
	}{
		{"/health", http.StatusOK, `"database":"ok"`},
		{"/manifest.json", http.StatusOK, constants.AddonID},
		{"/stream/movie/tt1.json", http.StatusOK, "Kindly configure"},
		{"/metrics", http.StatusOK, "gostremio_http_requests_total"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			a.server.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Contains(t, w.Body.String(), tt.contains)
		})
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, constants.AddonVersion+"\n", out.String())
}
