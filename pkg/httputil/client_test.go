package httputil

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			assert.Equal(t, "secret", r.Header.Get("X-Token"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"name":"value"}`))
		case "/bad":
			_, _ = w.Write([]byte(`not json`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := NewHTTPClient(5 * time.Second)

	t.Run("decodes body", func(t *testing.T) {
		var out struct{ Name string }
		err := GetJSON(context.Background(), client, srv.URL+"/ok", http.Header{"X-Token": {"secret"}}, &out)
		require.NoError(t, err)
		assert.Equal(t, "value", out.Name)
	})

	t.Run("status error", func(t *testing.T) {
		var out struct{}
		err := GetJSON(context.Background(), client, srv.URL+"/missing", nil, &out)
		var se *StatusError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, http.StatusNotFound, se.StatusCode)
	})

	t.Run("decode error", func(t *testing.T) {
		var out struct{}
		err := GetJSON(context.Background(), client, srv.URL+"/bad", nil, &out)
		assert.ErrorContains(t, err, "failed to decode response")
	})
}
