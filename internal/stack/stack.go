// Package stack scans a workspace for its language, framework, and
// dependency fingerprint: it walks the tree respecting ignore rules,
// parses every recognized manifest file in parallel, and aggregates the
// results into the Summary that Scan returns. The Summary is not written
// to disk by this package.
package stack

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	gikerrors "github.com/guided-indexing/gik/internal/errors"
	"github.com/guided-indexing/gik/internal/ignore"
)

// Dependency is one manifest-declared dependency.
type Dependency struct {
	Name     string
	Version  string
	Manifest string // path to the manifest that declared it, relative to root
}

// Stats summarizes the scanned workspace's size.
type Stats struct {
	FileCount      int
	ManifestCount  int
	TotalSizeBytes int64
}

// Summary is the aggregate stack fingerprint: detected languages,
// frameworks, dependencies, and basic file stats.
type Summary struct {
	Languages    []string
	Frameworks   []string
	Dependencies []Dependency
	Files        []string
	Stats        Stats
}

// manifestParser parses one manifest file's contents into partial scan
// results. manifestName is matched against a file's base name.
type manifestParser struct {
	manifestName string
	parse        func(path string, data []byte) (langs, frameworks []string, deps []Dependency, err error)
}

var manifestParsers = []manifestParser{
	{"go.mod", parseGoMod},
	{"package.json", parsePackageJSON},
	{"Cargo.toml", parseCargoToml},
	{"requirements.txt", parseRequirementsTxt},
	{"pyproject.toml", parsePyprojectToml},
	{"Gemfile", parseGemfile},
	{"pom.xml", parsePomXML},
	{"build.gradle", parseGradle},
	{"build.gradle.kts", parseGradle},
	{"composer.json", parseComposerJSON},
	{"environment.yml", parseCondaEnvironmentYAML},
	{"environment.yaml", parseCondaEnvironmentYAML},
}

func manifestParserFor(base string) (manifestParser, bool) {
	for _, p := range manifestParsers {
		if p.manifestName == base {
			return p, true
		}
	}
	return manifestParser{}, false
}

// Scan walks root, respecting .gikignore and the default excludes, and
// parses every recognized manifest concurrently across a worker pool
// sized to available cores.
func Scan(ctx context.Context, root string) (Summary, error) {
	matcher, err := ignore.LoadWorkspaceMatcher(root)
	if err != nil {
		return Summary{}, gikerrors.Wrap(gikerrors.KindStackScanFailed, err)
	}

	var files []string
	var manifestPaths []string
	var stats Stats

	walkErr := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if matcher.Match(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if matcher.Match(rel, false) || ignore.IsBinaryExtension(rel) {
			return nil
		}

		info, infoErr := d.Info()
		if infoErr == nil {
			stats.TotalSizeBytes += info.Size()
		}
		stats.FileCount++
		files = append(files, rel)

		if _, ok := manifestParserFor(filepath.Base(rel)); ok {
			manifestPaths = append(manifestPaths, rel)
		}
		return nil
	})
	if walkErr != nil {
		return Summary{}, gikerrors.Wrap(gikerrors.KindStackScanFailed, walkErr)
	}

	stats.ManifestCount = len(manifestPaths)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	var mu sync.Mutex
	languages := make(map[string]bool)
	frameworks := make(map[string]bool)
	var deps []Dependency

	for _, relPath := range manifestPaths {
		relPath := relPath
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			parser, ok := manifestParserFor(filepath.Base(relPath))
			if !ok {
				return nil
			}
			data, readErr := os.ReadFile(filepath.Join(root, relPath))
			if readErr != nil {
				return nil
			}
			langs, fws, manifestDeps, parseErr := parser.parse(relPath, data)
			if parseErr != nil {
				return nil
			}

			mu.Lock()
			for _, l := range langs {
				languages[l] = true
			}
			for _, f := range fws {
				frameworks[f] = true
			}
			deps = append(deps, manifestDeps...)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Summary{}, gikerrors.Wrap(gikerrors.KindStackScanFailed, err)
	}

	languages = mergeExtensionLanguages(files, languages)

	return Summary{
		Languages:    sortedKeys(languages),
		Frameworks:   sortedKeys(frameworks),
		Dependencies: sortDependencies(deps),
		Files:        files,
		Stats:        stats,
	}, nil
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortDependencies(deps []Dependency) []Dependency {
	sort.Slice(deps, func(i, j int) bool {
		if deps[i].Name != deps[j].Name {
			return deps[i].Name < deps[j].Name
		}
		return deps[i].Manifest < deps[j].Manifest
	})
	return deps
}

// extensionLanguages supplements manifest-derived languages with a
// lightweight extension scan, so a project is still fingerprinted even
// when it carries no recognized manifest (or one written in a language
// the manifest parsers don't cover).
var extensionLanguages = map[string]string{
	".go": "go", ".ts": "typescript", ".tsx": "typescript", ".js": "javascript",
	".jsx": "javascript", ".py": "python", ".rb": "ruby", ".rs": "rust",
	".java": "java", ".kt": "kotlin", ".cs": "csharp", ".php": "php",
	".c": "c", ".h": "c", ".cpp": "cpp", ".hpp": "cpp", ".sql": "sql",
}

func mergeExtensionLanguages(files []string, languages map[string]bool) map[string]bool {
	for _, f := range files {
		ext := strings.ToLower(filepath.Ext(f))
		if lang, ok := extensionLanguages[ext]; ok {
			languages[lang] = true
		}
	}
	return languages
}
