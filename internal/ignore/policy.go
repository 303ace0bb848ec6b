package ignore

import (
	"os"
	"path/filepath"
	"strings"
)

// FileName is the gikignore file name looked up at a workspace's root and
// in nested directories, mirroring git's per-directory .gitignore lookup.
const FileName = ".gikignore"

// DefaultExcludes are always-ignored directories, independent of any
// .gikignore file. They protect kernel-owned state and common VCS/build
// directories from being swept into a base by accident.
var DefaultExcludes = []string{
	".git/",
	".guided/",
	".gik/",
	"node_modules/",
	".venv/",
	"vendor/",
	"dist/",
	"build/",
	"target/",
	"__pycache__/",
}

// DefaultBinaryExtensions lists file extensions treated as binary and
// excluded from a base regardless of .gikignore contents.
var DefaultBinaryExtensions = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".bmp": {}, ".ico": {}, ".webp": {},
	".pdf": {}, ".zip": {}, ".tar": {}, ".gz": {}, ".7z": {}, ".rar": {},
	".exe": {}, ".dll": {}, ".so": {}, ".dylib": {}, ".bin": {}, ".o": {}, ".a": {},
	".woff": {}, ".woff2": {}, ".ttf": {}, ".eot": {},
	".mp3": {}, ".mp4": {}, ".mov": {}, ".avi": {}, ".wav": {},
	".db": {}, ".sqlite": {},
}

// IsBinaryExtension reports whether path's extension is in the default
// binary extension filter.
func IsBinaryExtension(path string) bool {
	_, ok := DefaultBinaryExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// LoadWorkspaceMatcher builds a Matcher for a workspace root: it applies
// DefaultExcludes, then layers in every .gikignore file found from the
// root down to leaf directories (nested files scoped to their own
// subtree, matching git's semantics).
func LoadWorkspaceMatcher(root string) (*Matcher, error) {
	m := New()
	for _, pattern := range DefaultExcludes {
		m.AddPattern(pattern)
	}

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			rel = ""
		}
		if m.Match(rel, true) {
			return filepath.SkipDir
		}

		candidate := filepath.Join(path, FileName)
		if _, statErr := os.Stat(candidate); statErr == nil {
			if loadErr := m.AddFromFile(candidate, filepath.ToSlash(rel)); loadErr != nil {
				return loadErr
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return m, nil
}
