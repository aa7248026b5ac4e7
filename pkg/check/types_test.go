package check

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestResultDurationSerializesAsNanoseconds(t *testing.T) {
	r := Result{Duration: 1500 * time.Millisecond}

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"duration_ns":1500000000`) {
		t.Errorf("json = %s, want duration_ns in nanoseconds", data)
	}
}

func TestCandidateDisplay(t *testing.T) {
	tests := []struct {
		name string
		c    Candidate
		want string
	}{
		{
			name: "named email",
			c:    Candidate{Kind: ChannelEmail, Target: "sec@x.example", Name: "Sec Team"},
			want: "Sec Team <sec@x.example>",
		},
		{
			name: "bare email",
			c:    Candidate{Kind: ChannelEmail, Target: "sec@x.example"},
			want: "sec@x.example",
		},
		{
			name: "fallback",
			c:    Candidate{Kind: ChannelIssueTracker, Target: "https://github.com/a/b/issues"},
			want: "Public issue tracker <https://github.com/a/b/issues> (last resort)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.c.Display(); got != tt.want {
				t.Errorf("Display() = %q, want %q", got, tt.want)
			}
		})
	}
}
