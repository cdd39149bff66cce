// Package backend talks to the chat server's plain HTTP surface: the health
// probe and the file upload endpoint. It also derives every endpoint URL,
// the socket included, from a single base URL.
package backend

import (
	"fmt"
	"net/url"
	"strings"
)

// DefaultBaseURL is where a locally started chat server listens.
const DefaultBaseURL = "http://127.0.0.1:23333"

// Endpoints groups the server URLs the client needs.
type Endpoints struct {
	Base   string
	API    string
	Health string
	Upload string
	Socket string
}

// Override replaces individual endpoint URLs. Empty fields keep the derived value.
type Override struct {
	Health string
	Upload string
	Socket string
}

// NewEndpoints derives the endpoints from base (http or https).
func NewEndpoints(base string, o Override) (Endpoints, error) {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return Endpoints{}, fmt.Errorf("invalid server url %q: %w", base, err)
	}
	if u.Host == "" {
		return Endpoints{}, fmt.Errorf("invalid server url %q: missing host", base)
	}

	wsScheme := "ws"
	switch strings.ToLower(u.Scheme) {
	case "http":
	case "https":
		wsScheme = "wss"
	default:
		return Endpoints{}, fmt.Errorf("invalid server url %q: scheme must be http or https", base)
	}

	ep := Endpoints{
		Base:   base,
		API:    base + "/api",
		Health: base + "/api/health",
		Upload: base + "/api/upload",
		Socket: (&url.URL{Scheme: wsScheme, Host: u.Host, Path: "/ws"}).String(),
	}
	if o.Health != "" {
		ep.Health = o.Health
	}
	if o.Upload != "" {
		ep.Upload = o.Upload
	}
	if o.Socket != "" {
		ep.Socket = o.Socket
	}
	return ep, nil
}
