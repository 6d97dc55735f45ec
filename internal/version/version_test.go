package version

import (
	"strings"
	"testing"
)

func TestInfoDefaults(t *testing.T) {
	v, c, d := Info()
	if v == "" || c == "" || d == "" {
		t.Fatalf("expected non-empty version info, got v=%q c=%q d=%q", v, c, d)
	}
}

func TestAccessorsMatchInfo(t *testing.T) {
	v, c, d := Info()
	if GetVersion() != v {
		t.Errorf("GetVersion=%q does not match Info version %q", GetVersion(), v)
	}
	if GetCommit() != c {
		t.Errorf("GetCommit=%q does not match Info commit %q", GetCommit(), c)
	}
	if GetDate() != d {
		t.Errorf("GetDate=%q does not match Info date %q", GetDate(), d)
	}
}

func TestStringFormat(t *testing.T) {
	s := String()
	for _, part := range []string{"version=", "commit=", "date="} {
		if !strings.Contains(s, part) {
			t.Errorf("String()=%q should contain %q", s, part)
		}
	}
}
