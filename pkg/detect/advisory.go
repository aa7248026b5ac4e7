package detect

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/reportpath/reportpath/pkg/check"
	"github.com/reportpath/reportpath/pkg/fetch"
)

// AdvisoryPlatform asks GitHub whether private vulnerability reporting is
// enabled for a repository. The REST endpoint answers authoritatively; when
// it does not (older repos, anonymous rate limits), the public advisories
// page is scraped for the "Report a vulnerability" affordance.
type AdvisoryPlatform struct {
	Token  string
	Policy check.Policy

	// apiBase and webBase override the live endpoints in tests.
	apiBase string
	webBase string
}

func (d *AdvisoryPlatform) Name() string { return check.DetectorAdvisoryPlatform }

func (d *AdvisoryPlatform) Probe(ctx context.Context, loc check.Location, f *fetch.Fetcher) (check.ProbeResult, error) {
	if !loc.IsGitHub() {
		return check.ProbeResult{}, nil
	}

	api := d.apiBase
	if api == "" {
		api = "https://api.github.com"
	}
	web := d.webBase
	if web == "" {
		web = "https://github.com"
	}

	var out check.ProbeResult
	d.repoNotes(ctx, api, loc, f, &out)
	d.ownerEmail(ctx, api, loc, f, &out)

	form := fmt.Sprintf("%s/%s/%s/security/advisories/new", web, loc.Owner, loc.Repo)

	var status struct {
		Enabled bool `json:"enabled"`
	}
	res, err := f.Do(ctx, fetch.Request{
		URL:     fmt.Sprintf("%s/repos/%s/%s/private-vulnerability-reporting", api, loc.Owner, loc.Repo),
		Headers: d.headers(),
	})
	if err != nil {
		return out, err
	}
	if res.OK() {
		if jsonErr := json.Unmarshal(res.Body, &status); jsonErr == nil && status.Enabled {
			out.Candidates = append(out.Candidates, d.candidate(form, loc, res))
		}
		return out, nil
	}

	// REST said nothing useful; look for the reporting affordance on the
	// public advisories page instead.
	page, err := f.Get(ctx, fmt.Sprintf("%s/%s/%s/security/advisories", web, loc.Owner, loc.Repo))
	if err != nil {
		return out, err
	}
	if page.OK() && strings.Contains(string(page.Body), "Report a vulnerability") {
		out.Candidates = append(out.Candidates, d.candidate(form, loc, page))
	}
	return out, nil
}

func (d *AdvisoryPlatform) candidate(form string, loc check.Location, res *fetch.Result) check.Candidate {
	return check.Candidate{
		Kind:       check.ChannelAdvisoryPlatform,
		Target:     form,
		Detector:   check.DetectorAdvisoryPlatform,
		Location:   loc,
		Confidence: d.Policy.AdvisoryPlatform,
		Evidence:   []check.Evidence{check.EvidenceFrom(res)},
	}
}

// repoNotes fetches repository metadata and records conditions a reporter
// should know about: forks, archived repositories, and renames.
func (d *AdvisoryPlatform) repoNotes(ctx context.Context, api string, loc check.Location, f *fetch.Fetcher, out *check.ProbeResult) {
	var meta struct {
		FullName string `json:"full_name"`
		Fork     bool   `json:"fork"`
		Archived bool   `json:"archived"`
	}
	res, err := f.Do(ctx, fetch.Request{
		URL:     fmt.Sprintf("%s/repos/%s/%s", api, loc.Owner, loc.Repo),
		Headers: d.headers(),
	})
	if err != nil || !res.OK() {
		return
	}
	if json.Unmarshal(res.Body, &meta) != nil {
		return
	}
	if meta.Fork {
		out.Notes = append(out.Notes, fmt.Sprintf("repository %s/%s is a fork", loc.Owner, loc.Repo))
	}
	if meta.Archived {
		out.Notes = append(out.Notes, fmt.Sprintf("repository %s/%s is archived", loc.Owner, loc.Repo))
	}
	if meta.FullName != "" && !strings.EqualFold(meta.FullName, loc.Owner+"/"+loc.Repo) {
		out.Notes = append(out.Notes, fmt.Sprintf("repository %s/%s has moved to %s", loc.Owner, loc.Repo, meta.FullName))
	}
}

// ownerEmail surfaces a public email address on the repository owner's
// profile. Uncommon, but when present it is a real maintainer contact.
func (d *AdvisoryPlatform) ownerEmail(ctx context.Context, api string, loc check.Location, f *fetch.Fetcher, out *check.ProbeResult) {
	var profile struct {
		Login string `json:"login"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	res, err := f.Do(ctx, fetch.Request{
		URL:     fmt.Sprintf("%s/users/%s", api, loc.Owner),
		Headers: d.headers(),
	})
	if err != nil || !res.OK() {
		return
	}
	if json.Unmarshal(res.Body, &profile) != nil || profile.Email == "" {
		return
	}
	name := profile.Name
	if name == "" {
		name = profile.Login
	}
	out.Candidates = append(out.Candidates, check.Candidate{
		Kind:       check.ChannelEmail,
		Target:     profile.Email,
		Name:       name,
		Detector:   check.DetectorAdvisoryPlatform,
		Location:   loc,
		Confidence: d.Policy.Email,
		Evidence:   []check.Evidence{check.EvidenceFrom(res)},
	})
}

func (d *AdvisoryPlatform) headers() map[string]string {
	h := map[string]string{
		"Accept":               "application/vnd.github+json",
		"X-GitHub-Api-Version": "2022-11-28",
	}
	if d.Token != "" {
		h["Authorization"] = "Bearer " + d.Token
	}
	return h
}
