// Package npm looks up package metadata on the npm registry.
package npm

import (
	"context"

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
		baseURL: "https://registry.npmjs.org",
	}
}

func (c *Client) Registry() string { return "npm" }

// Lookup fetches the packument for pkg. Scoped packages
// (pkg:npm/@scope/name) are passed through with the scope intact.
func (c *Client) Lookup(ctx context.Context, pkg purl.Package) (*registry.Project, error) {
	var data packument
	if err := c.GetJSON(ctx, c.baseURL+"/"+pkg.RegistryName(), &data); err != nil {
		return nil, err
	}

	urls := map[string]string{}
	if u := extractField(data.Repository, "url"); u != "" {
		urls["Repository"] = u
	}
	if data.Homepage != "" {
		urls["Homepage"] = data.Homepage
	}
	bugs := extractField(data.Bugs, "url")
	if bugs != "" {
		urls["Bugs"] = bugs
	}

	return &registry.Project{
		Name:       data.Name,
		Repository: registry.NormalizeRepoURL(extractField(data.Repository, "url")),
		Homepage:   data.Homepage,
		BugTracker: bugs,
		URLs:       urls,
	}, nil
}

// extractField handles npm's loose schema where repository/bugs may be a
// bare string or an object.
func extractField(v any, field string) string {
	switch val := v.(type) {
	case string:
		return val
	case map[string]any:
		if s, ok := val[field].(string); ok {
			return s
		}
	}
	return ""
}

type packument struct {
	Name       string `json:"name"`
	Repository any    `json:"repository"`
	Homepage   string `json:"homepage"`
	Bugs       any    `json:"bugs"`
}
