package utils

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
)

// HTTPClient interface for testing
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// DefaultHTTPClient is the default HTTP client
type DefaultHTTPClient struct{ Timeout time.Duration }

// Do implements the HTTPClient interface
func (c *DefaultHTTPClient) Do(req *http.Request) (*http.Response, error) {
	client := &http.Client{Timeout: c.Timeout}
	return client.Do(req)
}

const maxLogSize = 1024

// LogBodyContent reads and logs a body, returning a fresh reader over the
// same bytes. Large bodies are truncated in the log.
func LogBodyContent(body io.ReadCloser, label string) io.ReadCloser {
	if body == nil {
		LogDebug(fmt.Sprintf("  -> %s: <nil>", label))
		return nil
	}

	bodyBytes, err := io.ReadAll(body)
	body.Close()

	if err != nil {
		LogDebug(fmt.Sprintf("  -> %s: <error reading: %v>", label, err))
		return io.NopCloser(bytes.NewReader([]byte{}))
	}

	if len(bodyBytes) == 0 {
		LogDebug(fmt.Sprintf("  -> %s: <empty>", label))
		return io.NopCloser(bytes.NewReader(bodyBytes))
	}

	bodyStr := string(bodyBytes)
	if len(bodyStr) > maxLogSize {
		bodyStr = bodyStr[:maxLogSize] + "... (truncated)"
	}

	LogDebug(fmt.Sprintf("  -> %s: %s", label, bodyStr))
	return io.NopCloser(bytes.NewReader(bodyBytes))
}

// VerboseHTTPClient wraps another HTTPClient and logs each exchange.
type VerboseHTTPClient struct{ Inner HTTPClient }

func (v *VerboseHTTPClient) Do(req *http.Request) (*http.Response, error) {
	inner := v.Inner
	if inner == nil {
		inner = &DefaultHTTPClient{}
	}
	return logExchange(req, inner.Do)
}

// VerboseTransport is the RoundTripper form of VerboseHTTPClient, for
// clients that need an *http.Client.
type VerboseTransport struct{ Inner http.RoundTripper }

func (v *VerboseTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	inner := v.Inner
	if inner == nil {
		inner = http.DefaultTransport
	}
	return logExchange(req, inner.RoundTrip)
}

func logExchange(req *http.Request, do func(*http.Request) (*http.Response, error)) (*http.Response, error) {
	LogDebug(fmt.Sprintf("HTTP %s %s", req.Method, req.URL.String()))
	LogHeaders("request", req.Header)
	if isMultipart(req.Header.Get("Content-Type")) {
		LogDebug(fmt.Sprintf("  -> request body: <multipart, %d bytes>", req.ContentLength))
	} else {
		req.Body = LogBodyContent(req.Body, "request body")
	}

	resp, err := do(req)
	if err != nil {
		LogDebug(fmt.Sprintf("  -> error: %v", err))
		return nil, err
	}
	LogDebug(fmt.Sprintf("  -> %d %s", resp.StatusCode, http.StatusText(resp.StatusCode)))
	LogHeaders("response", resp.Header)
	resp.Body = LogBodyContent(resp.Body, "response body")
	return resp, nil
}

func isMultipart(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(contentType), "multipart/")
}

// GetHTTPClientWithTimeout returns a logging client with the given timeout.
func GetHTTPClientWithTimeout(timeout time.Duration) HTTPClient {
	return &VerboseHTTPClient{Inner: &DefaultHTTPClient{Timeout: timeout}}
}

// NewStdHTTPClient returns an *http.Client with logging on every request.
func NewStdHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout, Transport: &VerboseTransport{}}
}

var sensitiveHeaders = map[string]struct{}{
	"authorization":       {},
	"proxy-authorization": {},
	"www-authenticate":    {},
	"cookie":              {},
	"set-cookie":          {},
	"x-api-key":           {},
	"api-key":             {},
	"x-auth-token":        {},
	"x-access-token":      {},
	"x-csrf-token":        {},
}

// LogHeaders logs hdr in key order with credential-bearing values redacted.
func LogHeaders(kind string, hdr http.Header) {
	if len(hdr) == 0 {
		return
	}
	keys := make([]string, 0, len(hdr))
	for k := range hdr {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		_, isSensitive := sensitiveHeaders[strings.ToLower(k)]
		for _, v := range hdr.Values(k) {
			if isSensitive {
				LogDebug(fmt.Sprintf("  %s header: %s: [REDACTED]", kind, k))
			} else {
				LogDebug(fmt.Sprintf("  %s header: %s: %s", kind, k, v))
			}
		}
	}
}
