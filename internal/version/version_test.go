package version_test

import (
	"strings"
	"testing"

	"keygate/internal/version"
)

func TestString(t *testing.T) {
	t.Parallel()

	got := version.String()
	if !strings.Contains(got, version.Version) {
		t.Errorf("String() = %q, want it to contain %q", got, version.Version)
	}
	if !strings.Contains(got, version.Commit) {
		t.Errorf("String() = %q, want it to contain %q", got, version.Commit)
	}
	if !strings.Contains(got, version.BuildDate) {
		t.Errorf("String() = %q, want it to contain %q", got, version.BuildDate)
	}
}
