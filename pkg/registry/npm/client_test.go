package npm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/reportpath/reportpath/pkg/cache"
	"github.com/reportpath/reportpath/pkg/fetch"
	"github.com/reportpath/reportpath/pkg/purl"
	"github.com/reportpath/reportpath/pkg/registry"
)

func testClient(baseURL string) *Client {
	c := NewClient(fetch.New(cache.NewNullCache()))
	c.baseURL = baseURL
	return c
}

func TestLookupRepositoryObject(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/left-pad" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{
			"name": "left-pad",
			"repository": {"type": "git", "url": "git+https://github.com/stevemao/left-pad.git"},
			"homepage": "https://github.com/stevemao/left-pad#readme",
			"bugs": {"url": "https://github.com/stevemao/left-pad/issues"}
		}`))
	}))
	defer server.Close()

	pkg, _ := purl.Parse("pkg:npm/left-pad")
	proj, err := testClient(server.URL).Lookup(context.Background(), pkg)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if proj.Repository != "https://github.com/stevemao/left-pad" {
		t.Errorf("Repository = %q, want normalized git+ URL", proj.Repository)
	}
	if proj.BugTracker != "https://github.com/stevemao/left-pad/issues" {
		t.Errorf("BugTracker = %q", proj.BugTracker)
	}
}

func TestLookupScopedPackage(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"name": "@babel/core", "repository": "https://github.com/babel/babel"}`))
	}))
	defer server.Close()

	pkg, err := purl.Parse("pkg:npm/@babel/core")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	proj, err := testClient(server.URL).Lookup(context.Background(), pkg)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if gotPath != "/@babel/core" {
		t.Errorf("request path = %q, want scope preserved", gotPath)
	}
	if proj.Repository != "https://github.com/babel/babel" {
		t.Errorf("Repository = %q (string repository form)", proj.Repository)
	}
}

func TestLookupNotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	pkg, _ := purl.Parse("pkg:npm/nope")
	_, err := testClient(server.URL).Lookup(context.Background(), pkg)
	if !errors.Is(err, registry.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
