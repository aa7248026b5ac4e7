// Package librariesio looks up package metadata through the libraries.io
// API. It covers ecosystems without a dedicated client (maven, golang) and
// serves as a second opinion when the primary registry declares no
// repository. Requests require an API key.
package librariesio

import (
	"context"
	"fmt"
	"net/url"

	"github.com/reportpath/reportpath/pkg/fetch"
	"github.com/reportpath/reportpath/pkg/purl"
	"github.com/reportpath/reportpath/pkg/registry"
)

// platforms maps purl ecosystems onto libraries.io platform names.
var platforms = map[purl.Ecosystem]string{
	purl.EcosystemNPM:      "npm",
	purl.EcosystemPyPI:     "pypi",
	purl.EcosystemGem:      "rubygems",
	purl.EcosystemCargo:    "cargo",
	purl.EcosystemComposer: "packagist",
	purl.EcosystemMaven:    "maven",
	purl.EcosystemGo:       "go",
}

type Client struct {
	*registry.Client
	baseURL string
	apiKey  string
}

func NewClient(f *fetch.Fetcher, apiKey string) *Client {
	return &Client{
		Client:  registry.NewClient(f),
		baseURL: "https://libraries.io/api",
		apiKey:  apiKey,
	}
}

func (c *Client) Registry() string { return "libraries.io" }

// Supports reports whether libraries.io covers the package's ecosystem and
// the client is configured with an API key.
func (c *Client) Supports(eco purl.Ecosystem) bool {
	_, ok := platforms[eco]
	return ok && c.apiKey != ""
}

func (c *Client) Lookup(ctx context.Context, pkg purl.Package) (*registry.Project, error) {
	platform, ok := platforms[pkg.Ecosystem]
	if !ok {
		return nil, fmt.Errorf("%w: no libraries.io platform for %s", registry.ErrNotFound, pkg.Ecosystem)
	}

	var data projectResponse
	u := fmt.Sprintf("%s/%s/%s?api_key=%s",
		c.baseURL, platform, url.PathEscape(pkg.RegistryName()), url.QueryEscape(c.apiKey))
	if err := c.GetJSON(ctx, u, &data); err != nil {
		return nil, err
	}

	urls := map[string]string{}
	if data.RepositoryURL != "" {
		urls["Repository"] = data.RepositoryURL
	}
	if data.Homepage != "" {
		urls["Homepage"] = data.Homepage
	}

	return &registry.Project{
		Name:       data.Name,
		Repository: registry.NormalizeRepoURL(data.RepositoryURL),
		Homepage:   data.Homepage,
		URLs:       urls,
	}, nil
}

type projectResponse struct {
	Name          string `json:"name"`
	RepositoryURL string `json:"repository_url"`
	Homepage      string `json:"homepage"`
}
