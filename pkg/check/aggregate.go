package check

import (
	"net/url"
	"sort"
	"strings"
)

// trackingParams are stripped from candidate URLs before deduplication so
// two detectors finding the same page through different referrers collapse.
var trackingParams = map[string]bool{
	"ref":          true,
	"ref_src":      true,
	"source":       true,
	"utm_campaign": true,
	"utm_content":  true,
	"utm_medium":   true,
	"utm_source":   true,
	"utm_term":     true,
}

// normalizeTarget computes the dedup key for a candidate target:
// emails are lower-cased; URLs get a lower-case scheme and host, tracking
// query parameters removed, and trailing slash trimmed.
func normalizeTarget(target string) string {
	t := strings.TrimSpace(target)
	if !strings.Contains(t, "://") {
		return strings.ToLower(t)
	}

	u, err := url.Parse(t)
	if err != nil {
		return strings.ToLower(t)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for param := range q {
		if trackingParams[strings.ToLower(param)] {
			q.Del(param)
		}
	}
	u.RawQuery = q.Encode()

	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}

// better reports whether a should replace b for the same dedup key:
// higher confidence wins, then higher location trust, then the fixed
// detector priority order.
func better(a, b Candidate) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	if a.Location.Trust != b.Location.Trust {
		return a.Location.Trust > b.Location.Trust
	}
	return rankOf(a.Detector) < rankOf(b.Detector)
}

// merge combines a losing duplicate into the kept candidate: evidence
// accumulates and a missing display name is filled in.
func merge(keep, other Candidate) Candidate {
	keep.Evidence = append(keep.Evidence, other.Evidence...)
	if keep.Name == "" {
		keep.Name = other.Name
	}
	return keep
}

// aggregate deduplicates and ranks candidates. The ranking is total and
// deterministic: confidence descending, fallback-kind always last, ties
// broken by detector priority and finally by target string.
func aggregate(candidates []Candidate, maxCandidates int) (ranked []Candidate, confirmed bool) {
	byKey := make(map[string]Candidate)
	var order []string // insertion order keeps iteration deterministic

	for _, c := range candidates {
		key := normalizeTarget(c.Target)
		if key == "" {
			continue
		}
		existing, ok := byKey[key]
		switch {
		case !ok:
			byKey[key] = c
			order = append(order, key)
		case better(c, existing):
			byKey[key] = merge(c, existing)
		default:
			byKey[key] = merge(existing, c)
		}
	}

	ranked = make([]Candidate, 0, len(order))
	for _, key := range order {
		ranked = append(ranked, byKey[key])
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		aFallback := a.Kind == ChannelIssueTracker
		bFallback := b.Kind == ChannelIssueTracker
		if aFallback != bFallback {
			return bFallback // fallback sorts last regardless of score
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.Location.Trust != b.Location.Trust {
			return a.Location.Trust > b.Location.Trust
		}
		if ra, rb := rankOf(a.Detector), rankOf(b.Detector); ra != rb {
			return ra < rb
		}
		return a.Target < b.Target
	})

	for _, c := range ranked {
		if c.Kind != ChannelIssueTracker {
			confirmed = true
			break
		}
	}

	if maxCandidates > 0 && len(ranked) > maxCandidates {
		ranked = ranked[:maxCandidates]
	}
	return ranked, confirmed
}
