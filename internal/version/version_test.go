package version

import (
	"strings"
	"testing"
)

func TestGet_LdflagsWin(t *testing.T) {
	oldV, oldC, oldD := Version, Commit, VCSDirty
	t.Cleanup(func() { Version, Commit, VCSDirty = oldV, oldC, oldD })

	dirty := false
	Version, Commit, VCSDirty = "v1.2.3", "abc123", &dirty

	info := Get()
	if info.Version != "v1.2.3" || info.Commit != "abc123" {
		t.Fatalf("info = %+v", info)
	}
	if info.VCSDirty == nil || *info.VCSDirty {
		t.Fatalf("VCSDirty = %v, want stamped false", info.VCSDirty)
	}
	if info.GoVersion == "" {
		t.Fatal("GoVersion should come from build info")
	}
}

func TestInfoString(t *testing.T) {
	dirty := true
	s := Info{
		Version:   "v0.4.0",
		Commit:    "0123456789abcdef",
		BuildDate: "2026-01-02T03:04:05Z",
		GoVersion: "go1.24.11",
		VCSDirty:  &dirty,
	}.String()

	for _, want := range []string{"contentctl v0.4.0", "commit 0123456789ab,", "dirty", "built 2026-01-02T03:04:05Z", "go1.24.11"} {
		if !strings.Contains(s, want) {
			t.Errorf("String() = %q, missing %q", s, want)
		}
	}
	if got := (Info{Version: "dev", Commit: "none"}).String(); got != "contentctl dev (commit none)" {
		t.Errorf("minimal String() = %q", got)
	}
}
