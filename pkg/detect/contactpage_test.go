package detect

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/reportpath/reportpath/pkg/check"
)

func TestContactPageScrape(t *testing.T) {
	page := `<html><body>
		<a href="mailto:security@acme.example?subject=report">Contact us</a>
		<p>Or reach maintainers[at]acme.example for anything else.</p>
		<a href="https://acme.example/vulnerability-disclosure">Disclosure policy</a>
		<a href="https://acme.example/blog">Blog</a>
		<script>var hidden = "nobody@tracker.example";</script>
	</body></html>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/acme/widget" {
			w.Write([]byte(page))
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	d := &ContactPage{Policy: check.DefaultPolicy(), baseURL: server.URL}
	res, err := d.Probe(context.Background(), ghLoc, testFetcher())
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}

	byTarget := map[string]check.Candidate{}
	for _, c := range res.Candidates {
		byTarget[c.Target] = c
	}

	email, ok := byTarget["security@acme.example"]
	if !ok {
		t.Fatalf("mailto address missing from %+v", res.Candidates)
	}
	if email.Kind != check.ChannelEmail || email.Confidence != check.DefaultPolicy().Email {
		t.Errorf("email candidate = %+v", email)
	}

	if _, ok := byTarget["maintainers@acme.example"]; !ok {
		t.Errorf("obfuscated address missing from %+v", res.Candidates)
	}

	link, ok := byTarget["https://acme.example/vulnerability-disclosure"]
	if !ok {
		t.Fatalf("disclosure link missing from %+v", res.Candidates)
	}
	if link.Kind != check.ChannelContactURL || link.Confidence != check.DefaultPolicy().ScrapedSecurityURL {
		t.Errorf("link candidate = %+v", link)
	}

	if _, ok := byTarget["https://acme.example/blog"]; ok {
		t.Error("non-security link should not produce a candidate")
	}
	if _, ok := byTarget["nobody@tracker.example"]; ok {
		t.Error("script content should not be scraped")
	}
}

func TestContactPageMissing(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	d := &ContactPage{Policy: check.DefaultPolicy(), baseURL: server.URL}
	res, err := d.Probe(context.Background(), ghLoc, testFetcher())
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if len(res.Candidates) != 0 {
		t.Errorf("candidates = %+v, want none", res.Candidates)
	}
}

func TestFallbackKnownHost(t *testing.T) {
	d := &Fallback{Policy: check.DefaultPolicy()}
	res, err := d.Probe(context.Background(), ghLoc, nil)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if len(res.Candidates) != 1 {
		t.Fatalf("candidates = %+v, want 1", res.Candidates)
	}
	c := res.Candidates[0]
	if c.Kind != check.ChannelIssueTracker || c.Target != "https://github.com/acme/widget/issues" {
		t.Errorf("candidate = %+v", c)
	}
}

func TestFallbackUnknownHost(t *testing.T) {
	d := &Fallback{Policy: check.DefaultPolicy()}
	res, err := d.Probe(context.Background(), check.Location{Host: "example.com", Owner: "a", Repo: "b"}, nil)
	if err != nil || len(res.Candidates) != 0 {
		t.Errorf("res = %+v, err = %v; want empty", res, err)
	}
}

func TestDefaultSetOrder(t *testing.T) {
	ds := Default(Options{})
	want := []string{
		check.DetectorSecurityPolicy,
		check.DetectorAdvisoryPlatform,
		check.DetectorDisclosureRegistry,
		check.DetectorContactPage,
		check.DetectorFallback,
	}
	if len(ds) != len(want) {
		t.Fatalf("len = %d, want %d", len(ds), len(want))
	}
	for i, d := range ds {
		if d.Name() != want[i] {
			t.Errorf("detector[%d] = %q, want %q", i, d.Name(), want[i])
		}
	}
}
