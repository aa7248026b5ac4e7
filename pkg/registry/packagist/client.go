// Package packagist looks up Composer package metadata on packagist.org.
package packagist

import (
	"context"
	"fmt"

	"github.com/reportpath/reportpath/pkg/fetch"
	"github.com/reportpath/reportpath/pkg/purl"
	"github.com/reportpath/reportpath/pkg/registry"
)

type Client struct {
	*registry.Client
	baseURL string
}

func NewClient(f *fetch.Fetcher) *Client {
	return &Client{
		Client:  registry.NewClient(f),
		baseURL: "https://packagist.org",
	}
}

func (c *Client) Registry() string { return "packagist" }

// Lookup fetches metadata for a vendor/name Composer package.
func (c *Client) Lookup(ctx context.Context, pkg purl.Package) (*registry.Project, error) {
	var data packageResponse
	if err := c.GetJSON(ctx, fmt.Sprintf("%s/packages/%s.json", c.baseURL, pkg.RegistryName()), &data); err != nil {
		return nil, err
	}

	urls := map[string]string{}
	if data.Package.Repository != "" {
		urls["Repository"] = data.Package.Repository
	}

	return &registry.Project{
		Name:       data.Package.Name,
		Repository: registry.NormalizeRepoURL(data.Package.Repository),
		URLs:       urls,
	}, nil
}

type packageResponse struct {
	Package packageInfo `json:"package"`
}

type packageInfo struct {
	Name       string `json:"name"`
	Repository string `json:"repository"`
}
