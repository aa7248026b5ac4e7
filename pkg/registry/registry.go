// Package registry provides thin metadata clients for public package
// registries. The source locator consults them when an identifier names a
// registry package rather than a repository: each client answers one
// question, "where does this package say its source lives".
//
// Clients share the evidence fetcher, so registry lookups get the same
// caching, retry, and single-flight behavior as every other probe.
package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/reportpath/reportpath/pkg/fetch"
	"github.com/reportpath/reportpath/pkg/purl"
)

var (
	// ErrNotFound is returned when the registry does not know the package.
	ErrNotFound = errors.New("package not found in registry")

	// ErrUnavailable is returned when the registry could not be consulted
	// (rate limit, outage, network failure after retries).
	ErrUnavailable = errors.New("registry unavailable")
)

// Project is the slice of registry metadata the locator cares about.
type Project struct {
	Name       string
	Repository string            // declared source repository URL, "" if none
	Homepage   string            // homepage URL, "" if none
	BugTracker string            // issue tracker URL, "" if none
	URLs       map[string]string // every labeled URL the registry exposes
}

// Lookuper is implemented by each registry client.
type Lookuper interface {
	// Registry returns a short lowercase name for logs and evidence.
	Registry() string

	// Lookup fetches project metadata for pkg. Returns ErrNotFound when
	// the registry does not know the package and ErrUnavailable when the
	// registry could not be reached.
	Lookup(ctx context.Context, pkg purl.Package) (*Project, error)
}

// Client provides the shared fetch-and-decode step for all registry clients.
// It maps fetch outcomes onto the package's sentinel errors so callers only
// ever branch on ErrNotFound / ErrUnavailable.
type Client struct {
	fetcher *fetch.Fetcher
}

// NewClient wraps the shared fetcher for registry use.
func NewClient(f *fetch.Fetcher) *Client {
	return &Client{fetcher: f}
}

// GetJSON fetches url and decodes the body into v.
func (c *Client) GetJSON(ctx context.Context, url string, v any) error {
	res, err := c.fetcher.GetJSON(ctx, url, v)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return c.check(res)
}

// Get fetches url and returns the raw result with registry error mapping.
func (c *Client) Get(ctx context.Context, url string) (*fetch.Result, error) {
	res, err := c.fetcher.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := c.check(res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) check(res *fetch.Result) error {
	switch res.Status {
	case fetch.StatusOK:
		return nil
	case fetch.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, res.URL)
	default:
		return fmt.Errorf("%w: %s (%s)", ErrUnavailable, res.URL, res.Status)
	}
}
