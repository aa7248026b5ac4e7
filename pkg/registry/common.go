package registry

import (
	"sort"
	"strings"
)

var repoURLReplacer = strings.NewReplacer(
	"git@github.com:", "https://github.com/",
	"git://github.com/", "https://github.com/",
	"git@gitlab.com:", "https://gitlab.com/",
)

// NormalizeRepoURL converts the repository URL formats registries hand out
// (git@, git://, git+ prefixes, .git suffixes) to canonical HTTPS form.
// Returns empty string if raw is empty.
func NormalizeRepoURL(raw string) string {
	if raw == "" {
		return ""
	}
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "git+")
	s = repoURLReplacer.Replace(s)
	s = strings.TrimSuffix(s, "/")
	return strings.TrimSuffix(s, ".git")
}

// repoURLKeys is the preference order for labeled project URLs when a
// registry has no dedicated repository field.
var repoURLKeys = []string{"Source", "Source Code", "Repository", "Code", "GitHub", "Homepage"}

// PickRepository chooses the most repository-like URL from labeled project
// URLs, preferring well-known labels, then any URL on a code host, then the
// homepage. Returns "" when nothing matches.
func PickRepository(urls map[string]string, homepage string) string {
	isRepo := func(u string) bool {
		u = strings.ToLower(u)
		return strings.Contains(u, "github.com/") ||
			strings.Contains(u, "gitlab.com/") ||
			strings.Contains(u, "codeberg.org/")
	}

	for _, key := range repoURLKeys {
		if u := urls[key]; u != "" && isRepo(u) {
			return NormalizeRepoURL(u)
		}
	}
	keys := make([]string, 0, len(urls))
	for k := range urls {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if isRepo(urls[k]) {
			return NormalizeRepoURL(urls[k])
		}
	}
	if isRepo(homepage) {
		return NormalizeRepoURL(homepage)
	}
	return ""
}
