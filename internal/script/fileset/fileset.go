// Package fileset resolves wildcard path templates to file lists.
//
// A template is a slash separated path relative to a base directory. Each
// segment may use the path.Match wildcards; a segment "**" matches any number
// of directories, including none.
package fileset

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// File is one resolved entry of a fileset.
type File struct {
	Base  string // absolute slash path of the base directory
	Local string // slash path relative to Base
}

// Abs returns the absolute slash path of the file.
func (f File) Abs() string { return path.Join(f.Base, f.Local) }

// Native returns the absolute path in the operating system's notation.
func (f File) Native() string { return filepath.FromSlash(f.Abs()) }

// Name returns the last element of the path.
func (f File) Name() string { return path.Base(f.Local) }

// NameNoExt returns the last element without its extension.
func (f File) NameNoExt() string {
	n := f.Name()
	return strings.TrimSuffix(n, path.Ext(n))
}

// Ext returns the extension including the dot.
func (f File) Ext() string { return path.Ext(f.Local) }

// Dir returns the directory of Local, "." for files directly below Base.
func (f File) Dir() string { return path.Dir(f.Local) }

func (f File) String() string { return f.Local }

// HasWildcard reports whether p contains a path.Match meta character.
func HasWildcard(p string) bool {
	return strings.ContainsAny(p, "*?[")
}

// Root joins currDir, access and base the way List does. Absolute elements
// replace what precedes them.
func Root(currDir, access, base string) string {
	root := slash(currDir)
	for _, p := range []string{access, base} {
		if p == "" {
			continue
		}
		p = slash(p)
		if isAbs(p) {
			root = p
		} else {
			root = path.Join(root, p)
		}
	}
	return path.Clean(root)
}

// List resolves pattern below the root built from currDir, access and base.
// Without expand a single entry holding the unresolved pattern is returned.
// With expand every regular file matching the pattern is returned in
// lexical order; a pattern without wildcards yields itself whether or not
// the file exists.
func List(pattern, base, access, currDir string, expand bool) ([]File, error) {
	root := Root(currDir, access, base)
	pattern = strings.TrimPrefix(slash(pattern), "./")
	if isAbs(pattern) {
		root, pattern = splitAbs(pattern)
	}
	if !expand || !HasWildcard(pattern) {
		return []File{{Base: root, Local: path.Clean(pattern)}}, nil
	}

	want := strings.Split(path.Clean(pattern), "/")
	for _, seg := range want {
		if _, err := path.Match(seg, ""); err != nil {
			return nil, fmt.Errorf("fileset pattern %q: %w", pattern, err)
		}
	}

	start, prefix := fixedPrefix(root, want)
	var out []File
	err := filepath.WalkDir(filepath.FromSlash(start), func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == filepath.FromSlash(start) && os.IsNotExist(err) {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(filepath.FromSlash(root), p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if match(want[prefix:], strings.Split(rel, "/")[prefix:]) {
			out = append(out, File{Base: root, Local: rel})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Local < out[j].Local })
	return out, nil
}

// fixedPrefix returns the directory to start walking from: root extended by
// the leading pattern segments without wildcards.
func fixedPrefix(root string, segs []string) (string, int) {
	n := 0
	for n < len(segs)-1 && !HasWildcard(segs[n]) {
		n++
	}
	return path.Join(append([]string{root}, segs[:n]...)...), n
}

// match reports whether name segments match pattern segments.
func match(pat, name []string) bool {
	for len(pat) > 0 {
		if pat[0] == "**" {
			for i := 0; i <= len(name); i++ {
				if match(pat[1:], name[i:]) {
					return true
				}
			}
			return false
		}
		if len(name) == 0 {
			return false
		}
		if ok, _ := path.Match(pat[0], name[0]); !ok {
			return false
		}
		pat, name = pat[1:], name[1:]
	}
	return len(name) == 0
}

func slash(p string) string { return strings.ReplaceAll(p, "\\", "/") }

func isAbs(p string) bool {
	return strings.HasPrefix(p, "/") || filepath.VolumeName(p) != ""
}

// splitAbs separates the fixed directory part of an absolute pattern.
func splitAbs(p string) (string, string) {
	segs := strings.Split(p, "/")
	n := 0
	for n < len(segs)-1 && !HasWildcard(segs[n]) {
		n++
	}
	dir := strings.Join(segs[:n], "/")
	if dir == "" {
		dir = "/"
	}
	return path.Clean(dir), strings.Join(segs[n:], "/")
}
