package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/brettbedarf/webvfs/config"
	"github.com/brettbedarf/webvfs/internal/util"
)

type HTTPMethod = string

const (
	HTTPMethodGet  HTTPMethod = "GET"
	HTTPMethodPost HTTPMethod = "POST"
)

// MaxFetchSize caps the body read from a single HTTP source
const MaxFetchSize = 64 * config.MB

// ErrTooLarge is returned when a body exceeds MaxFetchSize
var ErrTooLarge = errors.New("http source exceeds maximum size")

// HTTPClient is the subset of *http.Client used by HTTP sources
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPSource contains http-specific source fields
type HTTPSource struct {
	URL     string            `json:"url"`
	Method  HTTPMethod        `json:"method,omitempty"` // Default is GET
	Headers map[string]string `json:"headers,omitempty"`

	client HTTPClient
}

// RegisterHTTP registers the http source type on r. A nil client means
// http.DefaultClient.
func RegisterHTTP(r *Registry, client HTTPClient) {
	if client == nil {
		client = http.DefaultClient
	}
	r.Register(HTTPAdapterType, func(raw []byte) (Source, error) {
		var src HTTPSource
		if err := json.Unmarshal(raw, &src); err != nil {
			return nil, err
		}
		u, err := validateURL(src.URL)
		if err != nil {
			return nil, err
		}
		src.URL = u
		src.Method = strings.ToUpper(util.Or(src.Method, HTTPMethodGet))
		switch src.Method {
		case HTTPMethodGet, HTTPMethodPost:
		default:
			return nil, fmt.Errorf("unsupported http method %q", src.Method)
		}
		src.client = client
		return &src, nil
	})
}

func validateURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("http source has no url")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid url %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid url %q: missing host", raw)
	}
	if u.User != nil {
		return "", fmt.Errorf("invalid url %q: user info is not allowed", raw)
	}
	return u.String(), nil
}

// Fetch requests the URL and returns the body of a 2xx response
func (h *HTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, h.Method, h.URL, nil)
	if err != nil {
		return nil, err
	}
	// Add custom headers
	for k, v := range h.Headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s %s: %s", h.Method, h.URL, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxFetchSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxFetchSize {
		return nil, fmt.Errorf("%s: %w", h.URL, ErrTooLarge)
	}
	return data, nil
}
