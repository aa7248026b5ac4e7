package detect

import (
	"bytes"
	"context"
	"strings"

	"golang.org/x/net/html"

	"github.com/reportpath/reportpath/pkg/check"
	"github.com/reportpath/reportpath/pkg/contact"
	"github.com/reportpath/reportpath/pkg/fetch"
)

// ContactPage scrapes the project page for contact signals: mailto links,
// visible email addresses (including obfuscated ones), and links that look
// like reporting instructions. Everything it finds is low confidence; it
// enriches stronger detectors rather than competing with them.
type ContactPage struct {
	Policy check.Policy

	baseURL string // test override, replaces "https://"+loc.Host
}

func (d *ContactPage) Name() string { return check.DetectorContactPage }

func (d *ContactPage) Probe(ctx context.Context, loc check.Location, f *fetch.Fetcher) (check.ProbeResult, error) {
	url := d.baseURL
	if url == "" {
		url = "https://" + loc.Host
	}
	url += "/" + loc.Owner + "/" + loc.Repo

	res, err := f.Get(ctx, url)
	if err != nil {
		return check.ProbeResult{}, err
	}
	if !res.OK() {
		return check.ProbeResult{}, nil
	}

	text := pageText(res.Body)
	if text == "" {
		return check.ProbeResult{}, nil
	}

	ev := check.EvidenceFrom(res)
	var out check.ProbeResult
	for _, found := range contact.Extract(text) {
		c := check.Candidate{
			Detector: check.DetectorContactPage,
			Location: loc,
			Target:   found.Value,
			Name:     found.Name,
			Evidence: []check.Evidence{ev},
		}
		switch found.Kind {
		case contact.KindEmail:
			c.Kind = check.ChannelEmail
			c.Confidence = d.Policy.Email
		case contact.KindAdvisoryForm:
			c.Kind = check.ChannelAdvisoryPlatform
			c.Confidence = d.Policy.ScrapedSecurityURL
		case contact.KindTidelift:
			c.Kind = check.ChannelDisclosureRegistry
			c.Name = "Tidelift Security"
			c.Confidence = d.Policy.DisclosureRegistry
		case contact.KindURL:
			c.Kind = check.ChannelContactURL
			if found.SecurityRelated {
				c.Confidence = d.Policy.ScrapedSecurityURL
			} else {
				continue // arbitrary harvested links are noise at page scope
			}
		}
		out.Candidates = append(out.Candidates, c)
	}
	return out, nil
}

// pageText flattens an HTML document into the text the extractor consumes:
// visible text plus href targets, with mailto: links unwrapped. Script and
// style bodies are dropped. Returns "" for content that does not parse as
// HTML at all.
func pageText(body []byte) string {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				href := strings.TrimSpace(attr.Val)
				if rest, ok := strings.CutPrefix(href, "mailto:"); ok {
					// Strip subject/body query parameters.
					addr, _, _ := strings.Cut(rest, "?")
					b.WriteString(addr)
				} else {
					b.WriteString(href)
				}
				b.WriteByte('\n')
			}
		case html.TextNode:
			b.WriteString(n.Data)
			b.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return b.String()
}
