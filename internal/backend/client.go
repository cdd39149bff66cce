package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// ErrNotText is returned for files the server would refuse because they are
// not UTF-8 text.
var ErrNotText = errors.New("file is not UTF-8 text")

// HTTPDoer is satisfied by *http.Client and by the CLI's logging client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// UploadedFile is one file as returned by the upload endpoint.
type UploadedFile struct {
	Name    string `json:"name"`
	Content string `json:"content"`
	Size    int64  `json:"size"`
}

type uploadResponse struct {
	Status string         `json:"status"`
	Files  []UploadedFile `json:"files"`
	Error  string         `json:"error"`
}

// Client calls the server's HTTP endpoints.
type Client struct {
	mu        sync.RWMutex
	endpoints Endpoints
	doer      HTTPDoer
	rest      *resty.Client
	log       *zap.Logger
}

// NewClient builds a client. doer is used for probes; uploads go through
// resty over httpClient (nil means http.DefaultClient).
func NewClient(ep Endpoints, doer HTTPDoer, httpClient *http.Client, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if doer == nil {
		doer = httpClient
	}
	rest := resty.NewWithClient(httpClient).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "webchat-cli")
	return &Client{endpoints: ep, doer: doer, rest: rest, log: log}
}

// Endpoints returns the URLs this client talks to.
func (c *Client) Endpoints() Endpoints {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.endpoints
}

// SetEndpoints retargets later probes and uploads.
func (c *Client) SetEndpoints(ep Endpoints) {
	c.mu.Lock()
	c.endpoints = ep
	c.mu.Unlock()
}

// Probe reports whether the health endpoint answers 2xx. Transport errors
// count as unhealthy.
func (c *Client) Probe(ctx context.Context) bool {
	health := c.Endpoints().Health
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, health, nil)
	if err != nil {
		c.log.Warn("health probe request", zap.Error(err))
		return false
	}
	resp, err := c.doer.Do(req)
	if err != nil {
		c.log.Debug("health probe failed", zap.String("url", health), zap.Error(err))
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	c.log.Debug("health probe", zap.Int("status", resp.StatusCode), zap.Bool("healthy", ok))
	return ok
}

// CheckText returns ErrNotText (wrapped) when the file at path is not UTF-8 text.
func CheckText(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		return fmt.Errorf("%s: %w", filepath.Base(path), ErrNotText)
	}
	for mt := mimetype.Detect(data); mt != nil; mt = mt.Parent() {
		if mt.Is("text/plain") {
			return nil
		}
	}
	return fmt.Errorf("%s: %w", filepath.Base(path), ErrNotText)
}

// Upload posts the files as one multipart request (field "file") and returns
// the server's view of them.
func (c *Client) Upload(ctx context.Context, paths []string) ([]UploadedFile, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	for _, p := range paths {
		if err := CheckText(p); err != nil {
			return nil, err
		}
	}

	var result uploadResponse
	req := c.rest.R().
		SetContext(ctx).
		SetResult(&result).
		SetError(&result)
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", p, err)
		}
		defer f.Close()
		req.SetFileReader("file", filepath.Base(p), f)
	}

	url := c.Endpoints().Upload
	c.log.Debug("uploading files", zap.Strings("paths", paths), zap.String("url", url))
	resp, err := req.Post(url)
	if err != nil {
		return nil, fmt.Errorf("upload failed: %w", err)
	}
	if resp.IsError() {
		msg := result.Error
		if msg == "" {
			msg = "upload failed"
		}
		return nil, fmt.Errorf("%s (status %d)", msg, resp.StatusCode())
	}
	return result.Files, nil
}
