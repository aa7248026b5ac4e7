// Package contact extracts disclosure contacts (emails, URLs, advisory
// forms) from free text such as security policies, readmes and gemspecs.
//
// Extraction is shared by every detector that reads file or page content,
// so the heuristics live in one place: [at]-obfuscated addresses are
// de-obfuscated, "Name <addr>" pairs keep the name, and URLs pointing at
// changelogs, issue lists, tags, licenses or bare profiles are ignored.
package contact

import (
	"regexp"
	"strings"
)

// Kind classifies an extracted contact.
type Kind int

const (
	// KindEmail is a plain email address.
	KindEmail Kind = iota
	// KindURL is a link that may describe how to report vulnerabilities.
	KindURL
	// KindAdvisoryForm is a direct link to a platform's private
	// vulnerability-reporting form (".../security/advisories/new").
	KindAdvisoryForm
	// KindTidelift marks a Tidelift reference; reports for covered
	// packages go through security@tidelift.com.
	KindTidelift
)

// Found is one contact extracted from text.
type Found struct {
	Kind  Kind
	Value string
	Name  string // optional display name for emails ("Jane Doe <jane@...>")
	// SecurityRelated is set for URLs whose text mentions security,
	// vulnerability or reporting; these deserve higher confidence than
	// an arbitrary harvested link.
	SecurityRelated bool
}

var (
	namedEmailRE = regexp.MustCompile(`(?i)([a-z][a-z .'-]*[a-z])\s*<([\w.+-]+(?:@|\[at\])[\w-]+\.[\w.-]+)>`)
	bareEmailRE  = regexp.MustCompile(`[\w.+-]+@[\w-]+\.[\w.-]*\w`)
	urlRE        = regexp.MustCompile(`https?://[^\s<>()\[\]{}"'` + "`" + `]+`)

	advisoryFormRE = regexp.MustCompile(`/security/advisories/new/?$`)
	securityWordRE = regexp.MustCompile(`(?i)security|vulnerab|disclos|reporting`)

	ignoreURLs = []*regexp.Regexp{
		regexp.MustCompile(`(?i)/CHANGELOG\.md$`),
		regexp.MustCompile(`/(issues|releases|tags)/?$`),
		regexp.MustCompile(`(?i)^https?://github\.com/[^/]+/?$`),       // bare profile
		regexp.MustCompile(`(?i)^https?://github\.com/[^/]+/[^/]+/?$`), // bare repo page
		regexp.MustCompile(`(?i)/licen[sc]es?(/|\.|$)`),
		regexp.MustCompile(`(?i)^https?://(www\.)?(shields\.io|img\.shields\.io|badge)`),
	}
)

// Extract finds contacts in text. Results are deduplicated by value and
// returned in discovery order.
func Extract(text string) []Found {
	var out []Found
	seen := map[string]bool{}

	add := func(f Found) {
		key := strings.ToLower(f.Value)
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, f)
	}

	// Names first, so the bare-email pass doesn't strip them.
	for _, m := range namedEmailRE.FindAllStringSubmatch(text, -1) {
		add(Found{
			Kind:  KindEmail,
			Name:  strings.TrimSpace(m[1]),
			Value: deobfuscate(m[2]),
		})
	}

	for _, email := range bareEmailRE.FindAllString(deobfuscate(text), -1) {
		add(Found{Kind: KindEmail, Value: email})
	}

	for _, raw := range urlRE.FindAllString(text, -1) {
		u := trimURL(raw)
		switch {
		case advisoryFormRE.MatchString(u):
			add(Found{Kind: KindAdvisoryForm, Value: u, SecurityRelated: true})
		case strings.Contains(u, "tidelift.com"):
			add(Found{Kind: KindTidelift, Value: "security@tidelift.com"})
		case ignored(u):
			// changelogs, tag lists, badges, bare profiles
		default:
			add(Found{Kind: KindURL, Value: u, SecurityRelated: securityWordRE.MatchString(u)})
		}
	}

	if strings.Contains(text, "tidelift.com") {
		add(Found{Kind: KindTidelift, Value: "security@tidelift.com"})
	}

	return out
}

// Emails returns just the email addresses found in text.
func Emails(text string) []string {
	var out []string
	for _, f := range Extract(text) {
		if f.Kind == KindEmail {
			out = append(out, f.Value)
		}
	}
	return out
}

func deobfuscate(s string) string {
	s = strings.ReplaceAll(s, "[at]", "@")
	s = strings.ReplaceAll(s, " [dot] ", ".")
	return s
}

// trimURL removes punctuation that regularly trails URLs in prose and
// markdown.
func trimURL(u string) string {
	return strings.TrimRight(u, ".,;:!?*_")
}

func ignored(u string) bool {
	for _, re := range ignoreURLs {
		if re.MatchString(u) {
			return true
		}
	}
	return false
}
