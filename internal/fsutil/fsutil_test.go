package fsutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"report.pdf", "report.pdf"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\bob\Desktop\photo.jpg`, "photo.jpg"},
		{"/abs/path/notes.txt", "notes.txt"},
		{"照片.jpg", "照片.jpg"},
		{"résumé final.docx", "résumé final.docx"},
		{".bashrc", "bashrc"},
		{"...", "unnamed"},
		{"..", "unnamed"},
		{"", "unnamed"},
		{"foo/..", "foo"},
		{"a\x00b.txt", "ab.txt"},
		{"what?.txt", "what_.txt"},
		{"CON.txt", "_CON.txt"},
		{"  spaced  ", "spaced"},
		{"tab\tname.txt", "tab name.txt"},
		{"\u200b", "unnamed"},
	}
	for _, tt := range tests {
		if got := SanitizeName(tt.in); got != tt.want {
			t.Errorf("SanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeNameTransliterates(t *testing.T) {
	// The last segment is empty, so the whole input is folded.
	got := SanitizeName("Café/")
	if got != "Cafe" {
		t.Errorf("expected Cafe, got %q", got)
	}
}

func TestSanitizeNameAlwaysFlat(t *testing.T) {
	root := t.TempDir()
	inputs := []string{
		"../../etc/passwd", "..\\..\\windows\\system.ini", "/", "a/b/c", "./.", "....//",
		"%2e%2e%2fsecret", "x/../../y", "\x00", "日本/../..", strings.Repeat("a", 400) + ".txt",
	}
	for _, in := range inputs {
		name := SanitizeName(in)
		abs, err := JoinWithinRoot(root, name)
		if err != nil {
			t.Errorf("SanitizeName(%q) = %q: join failed: %v", in, name, err)
			continue
		}
		if filepath.Dir(abs) != filepath.Clean(root) {
			t.Errorf("SanitizeName(%q) = %q escapes root: %s", in, name, abs)
		}
		if len(name) > maxNameBytes {
			t.Errorf("SanitizeName(%q) too long: %d bytes", in, len(name))
		}
	}
}

func TestSanitizeNameTruncateKeepsExt(t *testing.T) {
	long := strings.Repeat("é", 200) + ".jpeg"
	got := SanitizeName(long)
	if len(got) > maxNameBytes {
		t.Fatalf("expected <= %d bytes, got %d", maxNameBytes, len(got))
	}
	if !strings.HasSuffix(got, ".jpeg") {
		t.Errorf("expected .jpeg suffix, got %q", got)
	}
}

func TestCheckName(t *testing.T) {
	ok := []string{"a.txt", "照片.jpg", "x(1).jpg"}
	for _, n := range ok {
		if err := CheckName(n); err != nil {
			t.Errorf("CheckName(%q): unexpected %v", n, err)
		}
	}
	bad := []string{"", ".", "..", "../a", "a/b", `a\b`, ".hidden", "a\x00", "\xff"}
	for _, n := range bad {
		if err := CheckName(n); !errors.Is(err, ErrInvalidName) {
			t.Errorf("CheckName(%q): expected ErrInvalidName, got %v", n, err)
		}
	}
}

func TestDisambiguate(t *testing.T) {
	tests := []struct {
		name string
		n    int
		want string
	}{
		{"photo.jpg", 0, "photo.jpg"},
		{"photo.jpg", 1, "photo(1).jpg"},
		{"photo.jpg", 12, "photo(12).jpg"},
		{"README", 2, "README(2)"},
		{"archive.tar.gz", 1, "archive.tar(1).gz"},
	}
	for _, tt := range tests {
		if got := Disambiguate(tt.name, tt.n); got != tt.want {
			t.Errorf("Disambiguate(%q, %d) = %q, want %q", tt.name, tt.n, got, tt.want)
		}
	}
	long := strings.Repeat("b", maxNameBytes-4) + ".txt"
	if got := Disambiguate(long, 7); len(got) > maxNameBytes || !strings.HasSuffix(got, "(7).txt") {
		t.Errorf("unexpected long disambiguation %q (%d bytes)", got, len(got))
	}
}

func TestJoinWithinRoot(t *testing.T) {
	root := t.TempDir()
	abs, err := JoinWithinRoot(root, "a.txt")
	if err != nil {
		t.Fatal(err)
	}
	if abs != filepath.Join(root, "a.txt") {
		t.Errorf("unexpected path %s", abs)
	}
	for _, bad := range []string{"..", "../x", "sub/x", ""} {
		if _, err := JoinWithinRoot(root, bad); err == nil {
			t.Errorf("JoinWithinRoot(%q): expected error", bad)
		}
	}
}

func writeFile(t *testing.T, p, body string) {
	t.Helper()
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func names(ents []Entry) []string {
	out := make([]string, 0, len(ents))
	for _, e := range ents {
		out = append(out, e.Name)
	}
	return out
}

func TestListFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "hello")
	writeFile(t, filepath.Join(root, ".hidden"), "secret")
	if err := os.Mkdir(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(root, "sub", "inner.txt"), "nested")

	got := ListFiles(root, false)
	if len(got) != 1 || got[0].Name != "a.txt" {
		t.Fatalf("expected [a.txt], got %v", names(got))
	}
	if got[0].Size != 5 {
		t.Errorf("expected size 5, got %d", got[0].Size)
	}
}

func TestListFilesMatchesDownloadRule(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("backslash is a separator on windows")
	}
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "ok.txt"), "x")
	writeFile(t, filepath.Join(root, `a\b.txt`), "x")
	writeFile(t, filepath.Join(root, "bad\xff.txt"), "x")

	got := ListFiles(root, false)
	if len(got) != 1 || got[0].Name != "ok.txt" {
		t.Fatalf("expected [ok.txt], got %v", names(got))
	}
	for _, e := range got {
		if _, err := Stat(root, e.Name, false); err != nil {
			t.Errorf("listed %q cannot be resolved: %v", e.Name, err)
		}
	}
}

func TestListFilesMissingRoot(t *testing.T) {
	got := ListFiles(filepath.Join(t.TempDir(), "gone"), false)
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil listing, got %v", got)
	}
}

func TestListFilesSymlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	root := t.TempDir()
	outside := t.TempDir()
	writeFile(t, filepath.Join(root, "real.txt"), "in")
	writeFile(t, filepath.Join(outside, "secret.txt"), "out")
	if err := os.Symlink(filepath.Join(root, "real.txt"), filepath.Join(root, "inside-link.txt")); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(filepath.Join(outside, "secret.txt"), filepath.Join(root, "outside-link.txt")); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(outside, filepath.Join(root, "dir-link")); err != nil {
		t.Fatal(err)
	}

	got := names(ListFiles(root, false))
	if strings.Join(got, ",") != "real.txt" {
		t.Errorf("without follow: expected [real.txt], got %v", got)
	}
	got = names(ListFiles(root, true))
	if strings.Join(got, ",") != "inside-link.txt,real.txt" {
		t.Errorf("with follow: expected [inside-link.txt real.txt], got %v", got)
	}
}

func TestStat(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "hello")
	writeFile(t, filepath.Join(root, ".hidden"), "secret")
	if err := os.Mkdir(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	if _, err := Stat(root, "a.txt", false); err != nil {
		t.Errorf("a.txt: unexpected %v", err)
	}
	if _, err := Stat(root, "sub", false); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("sub: expected ErrNotExist, got %v", err)
	}
	if _, err := Stat(root, "missing.txt", false); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("missing: expected ErrNotExist, got %v", err)
	}
	if _, err := Stat(root, ".hidden", false); !errors.Is(err, ErrInvalidName) {
		t.Errorf(".hidden: expected ErrInvalidName, got %v", err)
	}
	if _, err := Stat(root, "../a.txt", false); !errors.Is(err, ErrInvalidName) {
		t.Errorf("traversal: expected ErrInvalidName, got %v", err)
	}
}

func TestOpen(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "hello")
	f, ent, err := Open(root, "a.txt", false)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if ent.Size != 5 {
		t.Errorf("expected size 5, got %d", ent.Size)
	}
	if _, _, err := Open(root, "nope.txt", false); err == nil {
		t.Error("expected error for missing file")
	}
}
