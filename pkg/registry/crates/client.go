// Package crates looks up crate metadata on crates.io.
package crates

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
		baseURL: "https://crates.io/api/v1",
	}
}

func (c *Client) Registry() string { return "crates" }

func (c *Client) Lookup(ctx context.Context, pkg purl.Package) (*registry.Project, error) {
	var data crateResponse
	if err := c.GetJSON(ctx, fmt.Sprintf("%s/crates/%s", c.baseURL, pkg.RegistryName()), &data); err != nil {
		return nil, err
	}

	urls := map[string]string{}
	if data.Crate.Repository != "" {
		urls["Repository"] = data.Crate.Repository
	}
	if data.Crate.Homepage != "" {
		urls["Homepage"] = data.Crate.Homepage
	}

	return &registry.Project{
		Name:       data.Crate.Name,
		Repository: registry.NormalizeRepoURL(data.Crate.Repository),
		Homepage:   data.Crate.Homepage,
		URLs:       urls,
	}, nil
}

type crateResponse struct {
	Crate crateInfo `json:"crate"`
}

type crateInfo struct {
	Name       string `json:"name"`
	Repository string `json:"repository"`
	Homepage   string `json:"homepage"`
}
