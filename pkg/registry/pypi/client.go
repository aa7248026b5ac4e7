// Package pypi looks up package metadata on the Python Package Index.
package pypi

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
		baseURL: "https://pypi.org/pypi",
	}
}

func (c *Client) Registry() string { return "pypi" }

// Lookup fetches the JSON metadata for pkg. Names are already PEP 503
// normalized by purl parsing.
func (c *Client) Lookup(ctx context.Context, pkg purl.Package) (*registry.Project, error) {
	var data apiResponse
	if err := c.GetJSON(ctx, fmt.Sprintf("%s/%s/json", c.baseURL, pkg.RegistryName()), &data); err != nil {
		return nil, err
	}

	urls := make(map[string]string, len(data.Info.ProjectURLs)+1)
	for k, v := range data.Info.ProjectURLs {
		if s, ok := v.(string); ok && s != "" {
			urls[k] = s
		}
	}
	if data.Info.HomePage != "" {
		urls["Homepage"] = data.Info.HomePage
	}

	var tracker string
	for _, key := range []string{"Bug Tracker", "Issue Tracker", "Issues", "Tracker"} {
		if urls[key] != "" {
			tracker = urls[key]
			break
		}
	}

	return &registry.Project{
		Name:       data.Info.Name,
		Repository: registry.PickRepository(urls, data.Info.HomePage),
		Homepage:   data.Info.HomePage,
		BugTracker: tracker,
		URLs:       urls,
	}, nil
}

type apiResponse struct {
	Info apiInfo `json:"info"`
}

type apiInfo struct {
	Name        string         `json:"name"`
	ProjectURLs map[string]any `json:"project_urls"`
	HomePage    string         `json:"home_page"`
}
