package version

import (
	"strings"
	"testing"
	"time"
)

func TestBuildAge(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		buildDate string
		want      string
	}{
		{"unknown", "unknown"},
		{"2025-06-15T11:30:00Z", "30 minutes ago"},
		{"2025-06-15T07:00:00Z", "5 hours ago"},
		{"2025-06-12T12:00:00Z", "3 days ago"},
		{"2025-03-17T12:00:00Z", "3 months ago"},
		{"2023-06-15T12:00:00Z", "2 years ago"},
	}

	for _, tt := range tests {
		t.Run(tt.buildDate, func(t *testing.T) {
			if got := buildAge(tt.buildDate, now); got != tt.want {
				t.Errorf("buildAge(%q) = %q, want %q", tt.buildDate, got, tt.want)
			}
		})
	}
}

func TestInfoString(t *testing.T) {
	info := Info{
		Version:   "v1.2.0",
		Commit:    "0123456789abcdef",
		BuildDate: "2025-06-15T11:30:00Z",
		GoVersion: "go1.24.4",
		Platform:  "linux/amd64",
	}

	got := info.String()
	if !strings.Contains(got, "pluginhub v1.2.0") || !strings.Contains(got, "commit 0123456789ab,") {
		t.Errorf("String() = %q", got)
	}
}
