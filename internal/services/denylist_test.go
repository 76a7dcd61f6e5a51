package services

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDenylist_CaseFoldedExactMatch(t *testing.T) {
	d := NewDenylist("Blocked", "  ", "STRASSE")

	for _, in := range []string{"blocked", "BLOCKED", "bLoCkEd", "strasse"} {
		if !d.Contains(in) {
			t.Fatalf("expected %q to be blocked", in)
		}
	}
	for _, in := range []string{"blocked1", "unblocked", "block", ""} {
		if d.Contains(in) {
			t.Fatalf("expected %q to be allowed (exact match only)", in)
		}
	}
	if d.Len() != 2 {
		t.Fatalf("Len = %d; want 2", d.Len())
	}
}

func TestDenylist_NilAndZeroBlockNothing(t *testing.T) {
	var nilList *Denylist
	if nilList.Contains("anything") || nilList.Len() != 0 {
		t.Fatalf("nil denylist must block nothing")
	}
	if (&Denylist{}).Contains("anything") {
		t.Fatalf("zero denylist must block nothing")
	}
}

func TestLoadDenylist_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deny.txt")
	body := "# comment\n\nfirst\n  Second  \n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	d, err := LoadDenylist(path, "inline")
	if err != nil {
		t.Fatalf("LoadDenylist: %v", err)
	}
	for _, in := range []string{"first", "second", "inline"} {
		if !d.Contains(in) {
			t.Fatalf("expected %q to be blocked", in)
		}
	}
	if d.Contains("# comment") || d.Len() != DefaultDenylist().Len()+3 {
		t.Fatalf("comments must be skipped; Len=%d", d.Len())
	}
}

func TestLoadDenylist_NoPathAndMissingFile(t *testing.T) {
	d, err := LoadDenylist("", "x")
	if err != nil || !d.Contains("x") {
		t.Fatalf("LoadDenylist without path = %v, %v", d, err)
	}
	if _, err := LoadDenylist(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestDefaultDenylist_Embedded(t *testing.T) {
	d := DefaultDenylist()
	if d.Len() == 0 {
		t.Fatalf("built-in denylist is empty")
	}
	if !d.Contains("Faggot") || !d.Contains("NIGGER") {
		t.Fatalf("built-in terms must match case-insensitively")
	}
	if d.Contains("alice") {
		t.Fatalf("ordinary usernames must be allowed")
	}
}

func TestLoadDenylist_ExtendsDefaults(t *testing.T) {
	d, err := LoadDenylist("", "extra")
	if err != nil {
		t.Fatalf("LoadDenylist: %v", err)
	}
	if !d.Contains("extra") || !d.Contains("kike") {
		t.Fatalf("configured terms must add to the built-in list")
	}
}
