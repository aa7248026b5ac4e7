package registry

import "testing"

func TestNormalizeRepoURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"https://github.com/pallets/flask", "https://github.com/pallets/flask"},
		{"https://github.com/pallets/flask.git", "https://github.com/pallets/flask"},
		{"git+https://github.com/user/repo.git", "https://github.com/user/repo"},
		{"git@github.com:user/repo.git", "https://github.com/user/repo"},
		{"git://github.com/user/repo", "https://github.com/user/repo"},
		{"git@gitlab.com:group/project.git", "https://gitlab.com/group/project"},
		{"https://github.com/user/repo/", "https://github.com/user/repo"},
	}
	for _, tt := range tests {
		if got := NormalizeRepoURL(tt.in); got != tt.want {
			t.Errorf("NormalizeRepoURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPickRepositoryPrefersSourceLabel(t *testing.T) {
	urls := map[string]string{
		"Homepage": "https://github.com/org/homepage",
		"Source":   "https://github.com/org/real",
	}
	if got := PickRepository(urls, ""); got != "https://github.com/org/real" {
		t.Errorf("PickRepository = %q, want the Source URL", got)
	}
}

func TestPickRepositorySkipsNonCodeHosts(t *testing.T) {
	urls := map[string]string{
		"Source":        "https://example.com/project",
		"Documentation": "https://docs.example.com",
	}
	if got := PickRepository(urls, "https://gitlab.com/group/project"); got != "https://gitlab.com/group/project" {
		t.Errorf("PickRepository = %q, want homepage fallback", got)
	}
}

func TestPickRepositoryDeterministicAcrossUnknownLabels(t *testing.T) {
	urls := map[string]string{
		"Mirror":  "https://github.com/org/mirror",
		"Funding": "https://example.com/fund",
		"Clone":   "https://github.com/org/clone",
	}
	want := PickRepository(urls, "")
	for j := 0; j < 10; j++ {
		if got := PickRepository(urls, ""); got != want {
			t.Fatalf("PickRepository varies: %q vs %q", got, want)
		}
	}
	if want != "https://github.com/org/clone" {
		t.Errorf("PickRepository = %q, want alphabetically first code-host URL", want)
	}
}

func TestPickRepositoryEmpty(t *testing.T) {
	if got := PickRepository(nil, ""); got != "" {
		t.Errorf("PickRepository(nil) = %q, want empty", got)
	}
}
