package loader

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// GlobRequired is Glob for mandatory inputs: an empty result is a
// *NoMatchError.
func GlobRequired(pattern string) ([]string, error) {
	paths, err := Glob(pattern)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, &NoMatchError{Pattern: pattern}
	}
	return paths, nil
}

// Glob expands a file pattern. In addition to filepath.Match syntax, a "**"
// path segment matches zero or more directories, so "raw/**/*.xlsx" finds
// workbooks at any depth below raw/. Results are sorted and contain files only.
func Glob(pattern string) ([]string, error) {
	if !strings.Contains(pattern, "**") {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("loader: glob %q: %w", pattern, err)
		}
		return filesOnly(matches), nil
	}

	pattern = filepath.ToSlash(filepath.Clean(pattern))
	segs := strings.Split(pattern, "/")
	fixed := 0
	for fixed < len(segs) && !hasMeta(segs[fixed]) {
		fixed++
	}
	root := strings.Join(segs[:fixed], "/")
	if root == "" {
		root = "."
		if strings.HasPrefix(pattern, "/") {
			root = "/"
		}
	}
	rest := segs[fixed:]

	var out []string
	err := filepath.WalkDir(filepath.FromSlash(root), func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(filepath.FromSlash(root), p)
		if err != nil {
			return err
		}
		ok, err := matchSegments(rest, strings.Split(filepath.ToSlash(rel), "/"))
		if err != nil {
			return err
		}
		if ok {
			out = append(out, p)
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loader: glob %q: %w", pattern, err)
	}
	sort.Strings(out)
	return out, nil
}

func matchSegments(pat, path []string) (bool, error) {
	for len(pat) > 0 {
		if pat[0] == "**" {
			for i := 0; i <= len(path); i++ {
				ok, err := matchSegments(pat[1:], path[i:])
				if err != nil || ok {
					return ok, err
				}
			}
			return false, nil
		}
		if len(path) == 0 {
			return false, nil
		}
		ok, err := filepath.Match(pat[0], path[0])
		if err != nil || !ok {
			return false, err
		}
		pat, path = pat[1:], path[1:]
	}
	return len(path) == 0, nil
}

func hasMeta(s string) bool {
	return strings.ContainsAny(s, `*?[\`)
}

func filesOnly(paths []string) []string {
	out := paths[:0]
	for _, p := range paths {
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}
