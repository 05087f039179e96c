package fileset

import (
	"os"
	"path/filepath"
	"testing"
)

func makeTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, f := range []string{
		"src/main.c",
		"src/util.c",
		"src/util.h",
		"src/sub/deep.c",
		"doc/readme.txt",
	} {
		p := filepath.Join(dir, filepath.FromSlash(f))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := os.WriteFile(p, []byte(f), 0o644); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	return filepath.ToSlash(dir)
}

func locals(files []File) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Local
	}
	return out
}

func TestListExpand(t *testing.T) {
	dir := makeTree(t)
	tests := []struct {
		name    string
		pattern string
		base    string
		want    []string
	}{
		{"single level", "src/*.c", "", []string{"src/main.c", "src/util.c"}},
		{"any depth", "src/**/*.c", "", []string{"src/main.c", "src/sub/deep.c", "src/util.c"}},
		{"with base", "*.h", "src", []string{"util.h"}},
		{"question mark", "src/util.?", "", []string{"src/util.c", "src/util.h"}},
		{"no match", "src/*.go", "", nil},
		{"missing dir", "none/*.c", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files, err := List(tt.pattern, tt.base, "", dir, true)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got := locals(files)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("[%d] got %s, want %s", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestListNoExpand(t *testing.T) {
	files, err := List("src/*.c", "base", "acc", "/work", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("got %d files, want 1", len(files))
	}
	if files[0].Base != "/work/acc/base" || files[0].Local != "src/*.c" {
		t.Errorf("got %+v", files[0])
	}
}

func TestFileParts(t *testing.T) {
	f := File{Base: "/work", Local: "src/sub/deep.c"}
	if f.Abs() != "/work/src/sub/deep.c" {
		t.Errorf("Abs = %s", f.Abs())
	}
	if f.Name() != "deep.c" || f.NameNoExt() != "deep" || f.Ext() != ".c" || f.Dir() != "src/sub" {
		t.Errorf("parts = %s %s %s %s", f.Name(), f.NameNoExt(), f.Ext(), f.Dir())
	}
}

func TestRootAbsoluteReplaces(t *testing.T) {
	if got := Root("/work", "/abs", "sub"); got != "/abs/sub" {
		t.Errorf("Root = %s", got)
	}
	if got := Root("/work", "", ""); got != "/work" {
		t.Errorf("Root = %s", got)
	}
}

func TestBadPattern(t *testing.T) {
	if _, err := List("src/[", "", "", t.TempDir(), true); err == nil {
		t.Fatal("expected error for malformed pattern")
	}
}
