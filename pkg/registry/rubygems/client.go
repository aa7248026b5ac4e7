// Package rubygems looks up gem metadata on rubygems.org.
package rubygems

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
		baseURL: "https://rubygems.org/api/v1",
	}
}

func (c *Client) Registry() string { return "rubygems" }

func (c *Client) Lookup(ctx context.Context, pkg purl.Package) (*registry.Project, error) {
	var data gemResponse
	if err := c.GetJSON(ctx, fmt.Sprintf("%s/gems/%s.json", c.baseURL, pkg.RegistryName()), &data); err != nil {
		return nil, err
	}

	urls := map[string]string{}
	for k, v := range map[string]string{
		"Source":      data.SourceCodeURI,
		"Homepage":    data.HomepageURI,
		"Bug Tracker": data.BugTrackerURI,
		"Changelog":   data.ChangelogURI,
	} {
		if v != "" {
			urls[k] = v
		}
	}

	repo := registry.NormalizeRepoURL(data.SourceCodeURI)
	if repo == "" {
		repo = registry.PickRepository(urls, data.HomepageURI)
	}

	return &registry.Project{
		Name:       data.Name,
		Repository: repo,
		Homepage:   data.HomepageURI,
		BugTracker: data.BugTrackerURI,
		URLs:       urls,
	}, nil
}

type gemResponse struct {
	Name          string `json:"name"`
	SourceCodeURI string `json:"source_code_uri"`
	HomepageURI   string `json:"homepage_uri"`
	BugTrackerURI string `json:"bug_tracker_uri"`
	ChangelogURI  string `json:"changelog_uri"`
}
