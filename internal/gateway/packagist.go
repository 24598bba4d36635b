// Package gateway provides gateways to the Packagist registry and the GitHub API,
// abstracting away the underlying HTTP, REST and GraphQL clients.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/naka-gawa/branch-usage-checker/internal/domain"
)

// DefaultRegistryURL is the public Packagist instance.
const DefaultRegistryURL = "https://packagist.org"

var (
	// ErrNotFound is returned when the registry has no such package.
	ErrNotFound = errors.New("package not found")

	// ErrMalformedPayload is returned when a response body does not have the expected shape.
	ErrMalformedPayload = errors.New("malformed payload")
)

// StatusError is returned for any non-success HTTP status.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string { return fmt.Sprintf("HTTP %d", e.Code) }

// StatsSeries is the monthly download series of one branch as returned by the registry.
// Values has been flattened but not yet checked against Labels.
type StatsSeries struct {
	Labels []string
	Values []float64
}

// Fetcher defines the behavior of a gateway for fetching information from the registry.
type Fetcher interface {
	FetchMetadata(ctx context.Context, id domain.PackageIdentity) (*domain.PackageMetadata, error)
	FetchBranchStats(ctx context.Context, id domain.PackageIdentity, branch, from string) (*StatsSeries, error)
}

// PackagistGateway is the concrete implementation of the Fetcher interface.
// It is safe for concurrent use.
type PackagistGateway struct {
	httpClient *http.Client
	baseURL    string
	logger     *log.Logger
}

// NewPackagistGateway creates a gateway for the registry at baseURL.
// Every request is bounded by timeout.
func NewPackagistGateway(baseURL string, timeout time.Duration, logger *log.Logger) *PackagistGateway {
	if baseURL == "" {
		baseURL = DefaultRegistryURL
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &PackagistGateway{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		logger:     logger,
	}
}

// PackageURL returns the registry page of the package, anchored at branch when it is not empty.
func PackageURL(baseURL string, id domain.PackageIdentity, branch string) string {
	u := fmt.Sprintf("%s/packages/%s/%s", strings.TrimSuffix(baseURL, "/"), id.Vendor, id.Package)
	if branch != "" {
		u += "#" + branch
	}
	return u
}

// BaseURL returns the registry root the gateway talks to.
func (g *PackagistGateway) BaseURL() string { return g.baseURL }

type packagePayload struct {
	Package struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		Time        string          `json:"time"`
		Type        string          `json:"type"`
		Repository  string          `json:"repository"`
		Language    string          `json:"language"`
		Versions    json.RawMessage `json:"versions"`
	} `json:"package"`
}

type statsPayload struct {
	Labels []string        `json:"labels"`
	Values json.RawMessage `json:"values"`
}

// FetchMetadata retrieves the package document.
//
// Returns ErrNotFound on HTTP 404, *StatusError for any other failure status
// and ErrMalformedPayload when the body cannot be decoded or versions is not a mapping.
func (g *PackagistGateway) FetchMetadata(ctx context.Context, id domain.PackageIdentity) (*domain.PackageMetadata, error) {
	endpoint := fmt.Sprintf("%s/packages/%s/%s.json", g.baseURL, id.Vendor, id.Package)

	var payload packagePayload
	if err := g.getJSON(ctx, endpoint, &payload); err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}

	versions, err := versionKeys(payload.Package.Versions)
	if err != nil {
		return nil, err
	}

	p := payload.Package
	return &domain.PackageMetadata{
		Name:        p.Name,
		Description: p.Description,
		Time:        p.Time,
		Type:        p.Type,
		Repository:  p.Repository,
		Language:    p.Language,
		Versions:    versions,
	}, nil
}

// FetchBranchStats retrieves the monthly download series of a branch since from.
func (g *PackagistGateway) FetchBranchStats(ctx context.Context, id domain.PackageIdentity, branch, from string) (*StatsSeries, error) {
	q := url.Values{}
	q.Set("average", "monthly")
	q.Set("from", from)
	endpoint := fmt.Sprintf("%s/packages/%s/%s/stats/%s.json?%s", g.baseURL, id.Vendor, id.Package, branch, q.Encode())

	var payload statsPayload
	if err := g.getJSON(ctx, endpoint, &payload); err != nil {
		return nil, err
	}

	values, err := flattenValues(payload.Values)
	if err != nil {
		return nil, err
	}
	return &StatsSeries{Labels: payload.Labels, Values: values}, nil
}

func (g *PackagistGateway) getJSON(ctx context.Context, endpoint string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	g.logger.Debug("registry response", "url", endpoint, "status", resp.StatusCode, "elapsed", time.Since(start).Round(time.Millisecond))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}

// versionKeys returns the keys of the versions mapping. An absent, null or
// empty-list value means no versions.
func versionKeys(raw json.RawMessage) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	if raw[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err == nil && len(list) == 0 {
			return nil, nil
		}
	}

	var versions map[string]json.RawMessage
	if err := json.Unmarshal(raw, &versions); err != nil {
		return nil, fmt.Errorf("%w: versions is not a mapping", ErrMalformedPayload)
	}

	keys := make([]string, 0, len(versions))
	for k := range versions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// flattenValues accepts the shapes the stats endpoint has used over time:
// a list of lists, a flat list, or an object of lists keyed by version.
func flattenValues(raw json.RawMessage) ([]float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var nested [][]float64
	if err := json.Unmarshal(raw, &nested); err == nil {
		var out []float64
		for _, inner := range nested {
			out = append(out, inner...)
		}
		return out, nil
	}

	var flat []float64
	if err := json.Unmarshal(raw, &flat); err == nil {
		return flat, nil
	}

	var keyed map[string][]float64
	if err := json.Unmarshal(raw, &keyed); err == nil {
		keys := make([]string, 0, len(keyed))
		for k := range keyed {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var out []float64
		for _, k := range keys {
			out = append(out, keyed[k]...)
		}
		return out, nil
	}

	return nil, fmt.Errorf("%w: unexpected values shape", ErrMalformedPayload)
}
