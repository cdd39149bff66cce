package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEndpoints(t *testing.T) {
	tests := []struct {
		name    string
		base    string
		o       Override
		want    Endpoints
		wantErr bool
	}{
		{
			name: "http base",
			base: "http://127.0.0.1:23333/",
			want: Endpoints{
				Base:   "http://127.0.0.1:23333",
				API:    "http://127.0.0.1:23333/api",
				Health: "http://127.0.0.1:23333/api/health",
				Upload: "http://127.0.0.1:23333/api/upload",
				Socket: "ws://127.0.0.1:23333/ws",
			},
		},
		{
			name: "https uses wss",
			base: "https://chat.example.com",
			want: Endpoints{
				Base:   "https://chat.example.com",
				API:    "https://chat.example.com/api",
				Health: "https://chat.example.com/api/health",
				Upload: "https://chat.example.com/api/upload",
				Socket: "wss://chat.example.com/ws",
			},
		},
		{
			name: "empty base uses default",
			base: "",
			want: Endpoints{
				Base:   DefaultBaseURL,
				API:    DefaultBaseURL + "/api",
				Health: DefaultBaseURL + "/api/health",
				Upload: DefaultBaseURL + "/api/upload",
				Socket: "ws://127.0.0.1:23333/ws",
			},
		},
		{
			name: "overrides win",
			base: "http://localhost:8080",
			o:    Override{Health: "http://localhost:8080/healthz", Socket: "ws://localhost:9090/chat"},
			want: Endpoints{
				Base:   "http://localhost:8080",
				API:    "http://localhost:8080/api",
				Health: "http://localhost:8080/healthz",
				Upload: "http://localhost:8080/api/upload",
				Socket: "ws://localhost:9090/chat",
			},
		},
		{name: "bad scheme", base: "ftp://host", wantErr: true},
		{name: "no host", base: "localhost", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewEndpoints(tt.base, tt.o)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	ep, err := NewEndpoints(srv.URL, Override{})
	require.NoError(t, err)
	return NewClient(ep, nil, srv.Client(), nil)
}

func TestProbe(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   bool
	}{
		{"ok", http.StatusOK, true},
		{"no content", http.StatusNoContent, true},
		{"server error", http.StatusServiceUnavailable, false},
		{"not found", http.StatusNotFound, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/health", r.URL.Path)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			assert.Equal(t, tt.want, newTestClient(t, srv).Probe(context.Background()))
		})
	}
}

func TestProbeUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	c := newTestClient(t, srv)
	srv.Close()
	assert.False(t, c.Probe(context.Background()))
}

func TestSetEndpointsRetargetsProbe(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer up.Close()

	c := newTestClient(t, down)
	assert.False(t, c.Probe(context.Background()))

	ep, err := NewEndpoints(up.URL, Override{})
	require.NoError(t, err)
	c.SetEndpoints(ep)
	assert.Equal(t, ep, c.Endpoints())
	assert.True(t, c.Probe(context.Background()))
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func TestUploadSendsMultipartFiles(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "notes.md", []byte("# notes\nhello\n"))
	b := writeFile(t, dir, "data.csv", []byte("a,b\n1,2\n"))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/upload", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		var files []UploadedFile
		for _, fh := range r.MultipartForm.File["file"] {
			f, err := fh.Open()
			require.NoError(t, err)
			body, _ := io.ReadAll(f)
			f.Close()
			files = append(files, UploadedFile{Name: fh.Filename, Content: string(body), Size: fh.Size})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"status": "success", "files": files})
	}))
	defer srv.Close()

	got, err := newTestClient(t, srv).Upload(context.Background(), []string{a, b})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "notes.md", got[0].Name)
	assert.Equal(t, "# notes\nhello\n", got[0].Content)
	assert.Equal(t, int64(14), got[0].Size)
	assert.Equal(t, "data.csv", got[1].Name)
}

func TestUploadReportsServerError(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "a.txt", []byte("text"))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"status":"error","error":"file too large"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Upload(context.Background(), []string{p})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file too large")
}

func TestUploadRejectsBinaryBeforeSending(t *testing.T) {
	dir := t.TempDir()
	png := writeFile(t, dir, "logo.png", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01"))

	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Upload(context.Background(), []string{png})
	assert.ErrorIs(t, err, ErrNotText)
	assert.False(t, called)
}

func TestCheckText(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, CheckText(writeFile(t, dir, "main.go", []byte("package main\n"))))
	assert.NoError(t, CheckText(writeFile(t, dir, "cfg.json", []byte(`{"a":1}`))))
	assert.ErrorIs(t, CheckText(writeFile(t, dir, "latin1.txt", []byte{'c', 'a', 'f', 0xe9})), ErrNotText)
	assert.Error(t, CheckText(filepath.Join(dir, "missing.txt")))
}
