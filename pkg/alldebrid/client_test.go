package alldebrid

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientUploadMagnets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/magnet/upload", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "test-agent", r.PostForm.Get("agent"))
		assert.Equal(t, []string{"magnet:?xt=urn:btih:abc"}, r.PostForm["magnets[]"])
		_, _ = io.WriteString(w, `{"status":"success","data":{"magnets":[{"id":7,"hash":"abc","ready":true}]}}`)
	}))
	defer srv.Close()

	c := NewClientWithURL(srv.URL, "test-agent")
	resp, err := c.UploadMagnets(context.Background(), "key", []string{"magnet:?xt=urn:btih:abc"})
	require.NoError(t, err)
	require.Len(t, resp.Uploaded(), 1)
	assert.True(t, resp.Uploaded()[0].Ready)
	assert.Equal(t, int64(7), resp.Uploaded()[0].ID)
}

func TestClientUploadFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/magnet/upload/file", r.URL.Path)
		file, header, err := r.FormFile("files[]")
		if assert.NoError(t, err) {
			data, _ := io.ReadAll(file)
			file.Close()
			assert.Equal(t, "file.torrent", header.Filename)
			assert.Equal(t, "d4:infoe", string(data))
		}
		_, _ = io.WriteString(w, `{"status":"success","data":{"files":[{"id":9,"hash":"def","ready":false}]}}`)
	}))
	defer srv.Close()

	c := NewClientWithURL(srv.URL, "agent")
	resp, err := c.UploadFile(context.Background(), "key", []byte("d4:infoe"))
	require.NoError(t, err)
	require.Len(t, resp.Uploaded(), 1)
	assert.False(t, resp.Uploaded()[0].Ready)
}

func TestClientAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status":"error","error":{"code":"AUTH_BAD_APIKEY","message":"The auth apikey is invalid"}}`)
	}))
	defer srv.Close()

	c := NewClientWithURL(srv.URL, "agent")
	_, err := c.UnlockLink(context.Background(), "bad", "https://alldebrid.com/f/x")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "AUTH_BAD_APIKEY", apiErr.Code)
}

func TestClientFilesAndStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/magnet/files":
			assert.Equal(t, "7", r.URL.Query().Get("id[]"))
			_, _ = io.WriteString(w, `{"status":"success","data":{"magnets":[{"id":7,"ready":true,"links":[{"link":"https://alldebrid.com/f/1","filename":"a.mkv","size":10}]}]}}`)
		case "/magnet/status":
			_, _ = io.WriteString(w, `{"status":"success","data":{"magnets":[{"id":7,"hash":"abc","size":100,"downloaded":50,"downloadSpeed":1024}]}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClientWithURL(srv.URL, "agent")
	files, err := c.GetMagnetFiles(context.Background(), "key", 7)
	require.NoError(t, err)
	require.Len(t, files.Data.Magnets, 1)
	assert.Equal(t, "a.mkv", files.Data.Magnets[0].Links[0].Filename)

	status, err := c.MagnetStatuses(context.Background(), "key")
	require.NoError(t, err)
	assert.Equal(t, int64(50), status.Data.Magnets[0].Downloaded)
}
