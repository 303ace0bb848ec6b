package stack

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestScan_DetectsGoModuleAndFramework(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "go.mod", "module example.com/app\n\ngo 1.22\n\nrequire github.com/gin-gonic/gin v1.9.1\n")
	writeFile(t, root, "main.go", "package main\nfunc main() {}\n")

	summary, err := Scan(context.Background(), root)
	require.NoError(t, err)

	assert.Contains(t, summary.Languages, "go")
	assert.Contains(t, summary.Frameworks, "gin")
	require.Len(t, summary.Dependencies, 1)
	assert.Equal(t, "github.com/gin-gonic/gin", summary.Dependencies[0].Name)
	assert.Equal(t, 1, summary.Stats.ManifestCount)
}

func TestScan_DetectsPackageJSONReactStack(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "package.json", `{"dependencies": {"react": "18.2.0", "next": "14.0.0"}, "devDependencies": {"typescript": "5.0.0"}}`)
	writeFile(t, root, "src/app/page.tsx", "export default function Page() { return null }\n")

	summary, err := Scan(context.Background(), root)
	require.NoError(t, err)

	assert.Contains(t, summary.Languages, "javascript")
	assert.Contains(t, summary.Languages, "typescript")
	assert.Contains(t, summary.Frameworks, "react")
	assert.Contains(t, summary.Frameworks, "nextjs")
}

func TestScan_RespectsGikignore(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gikignore", "vendor_src/\n")
	writeFile(t, root, "vendor_src/ignored.go", "package vendor\n")
	writeFile(t, root, "main.go", "package main\n")

	summary, err := Scan(context.Background(), root)
	require.NoError(t, err)

	for _, f := range summary.Files {
		assert.NotContains(t, f, "vendor_src/")
	}
}

func TestParseRequirementsTxt_ExtractsNamesAndVersions(t *testing.T) {
	langs, _, deps, err := parseRequirementsTxt("requirements.txt", []byte("flask==2.3.0\n# comment\ndjango>=4.0\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"python"}, langs)
	require.Len(t, deps, 2)
	assert.Equal(t, "flask", deps[0].Name)
}

func TestParseCondaEnvironmentYAML_SkipsPythonAndPip(t *testing.T) {
	yamlDoc := "name: test-env\ndependencies:\n  - python=3.11\n  - pip\n  - numpy=1.26\n"
	_, _, deps, err := parseCondaEnvironmentYAML("environment.yml", []byte(yamlDoc))
	require.NoError(t, err)
	require.Len(t, deps, 1)
	assert.Equal(t, "numpy", deps[0].Name)
}
