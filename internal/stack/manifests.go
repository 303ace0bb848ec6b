package stack

import (
	"encoding/json"
	"regexp"
	"strings"

	"golang.org/x/mod/modfile"
	"gopkg.in/yaml.v3"
)

func frameworkFromDepNames(names []string) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(fw string) {
		if !seen[fw] {
			seen[fw] = true
			out = append(out, fw)
		}
	}
	for _, n := range names {
		switch {
		case strings.Contains(n, "gin-gonic/gin"):
			add("gin")
		case strings.Contains(n, "gofiber/fiber"):
			add("fiber")
		case n == "react" || n == "react-dom":
			add("react")
		case n == "next":
			add("nextjs")
		case strings.HasPrefix(n, "@angular/"):
			add("angular")
		case n == "vue":
			add("vue")
		case n == "express":
			add("express")
		case strings.HasPrefix(n, "@nestjs/"):
			add("nestjs")
		case n == "django":
			add("django")
		case n == "flask":
			add("flask")
		case n == "fastapi":
			add("fastapi")
		case n == "rails":
			add("rails")
		case strings.HasPrefix(n, "org.springframework"):
			add("spring")
		case n == "laravel/framework":
			add("laravel")
		case strings.Contains(n, "axum"):
			add("axum")
		case strings.Contains(n, "actix-web"):
			add("actix")
		}
	}
	return out
}

func parseGoMod(_ string, data []byte) ([]string, []string, []Dependency, error) {
	f, err := modfile.Parse("go.mod", data, nil)
	if err != nil {
		return nil, nil, nil, err
	}
	var deps []Dependency
	var names []string
	for _, r := range f.Require {
		deps = append(deps, Dependency{Name: r.Mod.Path, Version: r.Mod.Version, Manifest: "go.mod"})
		names = append(names, r.Mod.Path)
	}
	return []string{"go"}, frameworkFromDepNames(names), deps, nil
}

type packageJSON struct {
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

func parsePackageJSON(path string, data []byte) ([]string, []string, []Dependency, error) {
	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, nil, nil, err
	}
	var deps []Dependency
	var names []string
	for name, version := range pkg.Dependencies {
		deps = append(deps, Dependency{Name: name, Version: version, Manifest: path})
		names = append(names, name)
	}
	for name, version := range pkg.DevDependencies {
		deps = append(deps, Dependency{Name: name, Version: version, Manifest: path})
		names = append(names, name)
	}
	langs := []string{"javascript"}
	if _, hasTS := pkg.DevDependencies["typescript"]; hasTS {
		langs = append(langs, "typescript")
	}
	return langs, frameworkFromDepNames(names), deps, nil
}

var cargoDepLineRe = regexp.MustCompile(`(?m)^([A-Za-z0-9_-]+)\s*=\s*"?([^"\n]*)"?`)

func parseCargoToml(path string, data []byte) ([]string, []string, []Dependency, error) {
	text := string(data)
	inDeps := false
	var deps []Dependency
	var names []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "[") {
			inDeps = trimmed == "[dependencies]" || strings.HasPrefix(trimmed, "[dependencies.")
			continue
		}
		if !inDeps || trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		m := cargoDepLineRe.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		deps = append(deps, Dependency{Name: m[1], Version: strings.TrimSpace(m[2]), Manifest: path})
		names = append(names, m[1])
	}
	return []string{"rust"}, frameworkFromDepNames(names), deps, nil
}

var requirementLineRe = regexp.MustCompile(`^([A-Za-z0-9_.-]+)\s*([=<>!~]+.*)?$`)

func parseRequirementsTxt(path string, data []byte) ([]string, []string, []Dependency, error) {
	var deps []Dependency
	var names []string
	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "-") {
			continue
		}
		m := requirementLineRe.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		version := strings.TrimSpace(m[2])
		deps = append(deps, Dependency{Name: m[1], Version: version, Manifest: path})
		names = append(names, strings.ToLower(m[1]))
	}
	return []string{"python"}, frameworkFromDepNames(names), deps, nil
}

type pyprojectFile struct {
	Project struct {
		Dependencies []string `yaml:"dependencies"`
	} `yaml:"project"`
	Tool struct {
		Poetry struct {
			Dependencies map[string]interface{} `yaml:"dependencies"`
		} `yaml:"poetry"`
	} `yaml:"tool"`
}

func parsePyprojectToml(path string, data []byte) ([]string, []string, []Dependency, error) {
	// pyproject.toml is TOML, not YAML; a line scan of the
	// [tool.poetry.dependencies] table avoids pulling in a dedicated TOML
	// parser for one manifest. The [project] dependencies array is not read.
	var deps []Dependency
	var names []string
	inDeps := false
	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "[tool.poetry.dependencies]") {
			inDeps = true
			continue
		}
		if strings.HasPrefix(trimmed, "[") {
			inDeps = false
			continue
		}
		if !inDeps || trimmed == "" {
			continue
		}
		parts := strings.SplitN(trimmed, "=", 2)
		if len(parts) != 2 {
			continue
		}
		name := strings.TrimSpace(parts[0])
		if name == "python" {
			continue
		}
		version := strings.Trim(strings.TrimSpace(parts[1]), `"'`)
		deps = append(deps, Dependency{Name: name, Version: version, Manifest: path})
		names = append(names, strings.ToLower(name))
	}
	return []string{"python"}, frameworkFromDepNames(names), deps, nil
}

var gemfileLineRe = regexp.MustCompile(`^gem\s+['"]([^'"]+)['"](?:\s*,\s*['"]([^'"]+)['"])?`)

func parseGemfile(path string, data []byte) ([]string, []string, []Dependency, error) {
	var deps []Dependency
	var names []string
	for _, line := range strings.Split(string(data), "\n") {
		m := gemfileLineRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		deps = append(deps, Dependency{Name: m[1], Version: m[2], Manifest: path})
		names = append(names, m[1])
	}
	return []string{"ruby"}, frameworkFromDepNames(names), deps, nil
}

var pomDependencyRe = regexp.MustCompile(`(?s)<dependency>\s*<groupId>([^<]+)</groupId>\s*<artifactId>([^<]+)</artifactId>(?:\s*<version>([^<]+)</version>)?`)

func parsePomXML(path string, data []byte) ([]string, []string, []Dependency, error) {
	var deps []Dependency
	var names []string
	for _, m := range pomDependencyRe.FindAllStringSubmatch(string(data), -1) {
		name := m[1] + ":" + m[2]
		deps = append(deps, Dependency{Name: name, Version: m[3], Manifest: path})
		names = append(names, name)
	}
	return []string{"java"}, frameworkFromDepNames(names), deps, nil
}

var gradleDependencyRe = regexp.MustCompile(`(?:implementation|api|compile|testImplementation)\s*[\(\s]['"]([^:'"]+):([^:'"]+):?([^'"]*)['"]`)

func parseGradle(path string, data []byte) ([]string, []string, []Dependency, error) {
	var deps []Dependency
	var names []string
	for _, m := range gradleDependencyRe.FindAllStringSubmatch(string(data), -1) {
		name := m[1] + ":" + m[2]
		deps = append(deps, Dependency{Name: name, Version: m[3], Manifest: path})
		names = append(names, name)
	}
	langs := []string{"java"}
	if strings.HasSuffix(path, ".kts") {
		langs = []string{"kotlin"}
	}
	return langs, frameworkFromDepNames(names), deps, nil
}

type composerJSON struct {
	Require map[string]string `json:"require"`
}

func parseComposerJSON(path string, data []byte) ([]string, []string, []Dependency, error) {
	var c composerJSON
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, nil, nil, err
	}
	var deps []Dependency
	var names []string
	for name, version := range c.Require {
		if name == "php" {
			continue
		}
		deps = append(deps, Dependency{Name: name, Version: version, Manifest: path})
		names = append(names, name)
	}
	return []string{"php"}, frameworkFromDepNames(names), deps, nil
}

type condaEnvironmentYAML struct {
	Dependencies []interface{} `yaml:"dependencies"`
}

func parseCondaEnvironmentYAML(path string, data []byte) ([]string, []string, []Dependency, error) {
	var env condaEnvironmentYAML
	if err := yaml.Unmarshal(data, &env); err != nil {
		return nil, nil, nil, err
	}
	var deps []Dependency
	var names []string
	for _, raw := range env.Dependencies {
		spec, ok := raw.(string)
		if !ok {
			continue
		}
		name, version := spec, ""
		if idx := strings.IndexAny(spec, "=<>!"); idx > 0 {
			name = spec[:idx]
			version = spec[idx:]
		}
		name = strings.TrimSpace(name)
		if name == "python" || name == "pip" {
			continue
		}
		deps = append(deps, Dependency{Name: name, Version: version, Manifest: path})
		names = append(names, strings.ToLower(name))
	}
	return []string{"python"}, frameworkFromDepNames(names), deps, nil
}
