package extract

import (
	"regexp"
	"strings"
)

// PythonExtractor extracts functions, classes, and constants from Python
// source, with Django/Flask framework detection.
type PythonExtractor struct{}

func (PythonExtractor) Language() Language { return LangPython }

func (PythonExtractor) DetectFramework(path, text string) FrameworkHint {
	switch {
	case strings.Contains(path, "/views.py") || strings.Contains(path, "/models.py") || strings.Contains(path, "/urls.py"):
		return FrameworkDjango
	case containsAny(text, "from django", "import django"):
		return FrameworkDjango
	case containsAny(text, "from flask import", "Flask(__name__)"):
		return FrameworkFlask
	default:
		return FrameworkNone
	}
}

var (
	pyFuncRe  = regexp.MustCompile(`(?m)^[ \t]*(?:async\s+)?def\s+([a-zA-Z_][a-zA-Z0-9_]*)\s*\(`)
	pyClassRe = regexp.MustCompile(`(?m)^class\s+([a-zA-Z_][a-zA-Z0-9_]*)\s*[:(]`)
	pyConstRe = regexp.MustCompile(`(?m)^([A-Z][A-Z0-9_]*)\s*=`)
)

func (e PythonExtractor) ExtractSymbols(path, text string) []SymbolCandidate {
	framework := e.DetectFramework(path, text)
	var symbols []SymbolCandidate
	for _, m := range pyFuncRe.FindAllStringSubmatch(text, -1) {
		symbols = append(symbols, newSymbol("function", m[1], LangPython, path, framework))
	}
	for _, m := range pyClassRe.FindAllStringSubmatch(text, -1) {
		symbols = append(symbols, newSymbol("class", m[1], LangPython, path, framework))
	}
	for _, m := range pyConstRe.FindAllStringSubmatch(text, -1) {
		symbols = append(symbols, newSymbol("constant", m[1], LangPython, path, framework))
	}
	return symbols
}

func (PythonExtractor) ExtractRelations(path, text string) []RelationCandidate {
	var relations []RelationCandidate
	for _, m := range pyImportRe.FindAllStringSubmatch(text, -1) {
		target := m[1]
		if target == "" {
			target = m[2]
		}
		relations = append(relations, RelationCandidate{FromFile: path, ToRaw: target, Kind: "imports"})
	}
	return relations
}

var pyImportRe = regexp.MustCompile(`(?m)^(?:from\s+([a-zA-Z_][a-zA-Z0-9_.]*)\s+import|import\s+([a-zA-Z_][a-zA-Z0-9_.]*))`)
