package extract

import (
	"regexp"
	"strings"
)

// JSTSExtractor extracts functions, classes, interfaces, type aliases,
// React/shadcn/Angular symbols, and import relations from JavaScript and
// TypeScript source. It is registered under both LangJS and LangTS since
// the two share every extraction rule except the TypeScript-only
// interface/type-alias pass.
type JSTSExtractor struct{}

func (JSTSExtractor) Language() Language { return LangTS }

func isTypeScript(path string) bool {
	return strings.HasSuffix(path, ".ts") || strings.HasSuffix(path, ".tsx")
}

func isJSXTSX(path string) bool {
	return strings.HasSuffix(path, ".jsx") || strings.HasSuffix(path, ".tsx")
}

func isPascalCase(name string) bool {
	if name == "" {
		return false
	}
	r := []rune(name)
	if !('A' <= r[0] && r[0] <= 'Z') {
		return false
	}
	for _, c := range r[1:] {
		if 'a' <= c && c <= 'z' {
			return true
		}
	}
	return false
}

var httpMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "PATCH": true,
	"DELETE": true, "HEAD": true, "OPTIONS": true,
}

// DetectFramework checks, in order, Angular decorators, Next.js route
// conventions, shadcn/ui imports, generic React usage, Express, and a
// broader Angular-core import check.
func (JSTSExtractor) DetectFramework(path, text string) FrameworkHint {
	switch {
	case containsAny(text, "@Component(", "@NgModule("):
		return FrameworkAngular
	case (strings.Contains(path, "/app/") && strings.Contains(path, "/api/")) ||
		strings.Contains(path, "/pages/api/") ||
		containsAny(text, "from 'next'", `from "next"`):
		return FrameworkNextJS
	case strings.Contains(text, "@/components/ui/"):
		return FrameworkShadcn
	case containsAny(text, "from 'react'", `from "react"`, "import React", "React.Component", "useState", "useEffect") ||
		(isJSXTSX(path) && strings.Contains(text, "return (")):
		return FrameworkReact
	case containsAny(text, "express()", "from 'express'", `from "express"`):
		return FrameworkExpress
	case containsAny(text, "@angular/core", "@angular/common"):
		return FrameworkAngular
	default:
		return FrameworkNone
	}
}

var (
	jsFunctionDeclRe = regexp.MustCompile(`(?:export\s+)?(?:async\s+)?function\s+([A-Za-z_$][A-Za-z0-9_$]*)\s*\(`)
	jsArrowConstRe   = regexp.MustCompile(`(?:export\s+)?const\s+([A-Za-z_$][A-Za-z0-9_$]*)\s*(?::[^=]+)?=\s*(?:async\s*)?\(`)
	jsClassRe        = regexp.MustCompile(`(?:export\s+)?(?:default\s+)?class\s+([A-Za-z_$][A-Za-z0-9_$]*)`)
	tsInterfaceRe    = regexp.MustCompile(`(?:export\s+)?interface\s+([A-Za-z_$][A-Za-z0-9_$]*)`)
	tsTypeAliasRe    = regexp.MustCompile(`(?:export\s+)?type\s+([A-Za-z_$][A-Za-z0-9_$]*)\s*=`)
	angularDecoratorRe = regexp.MustCompile(`@(Component|Injectable|NgModule|Directive|Pipe)\s*\(`)
	shadcnImportRe   = regexp.MustCompile(`from\s+['"]@/components/ui/([a-zA-Z0-9_-]+)['"]`)
	importFromRe     = regexp.MustCompile(`(?:import|export)\s+(?:[\w{}*,\s]+\s+from\s+)?['"]([^'"]+)['"]`)
	requireRe        = regexp.MustCompile(`require\(\s*['"]([^'"]+)['"]\s*\)`)
	jsxClassNameRe   = regexp.MustCompile(`className\s*=\s*["']([^"'{]+)["']`)
	jsCallRe         = regexp.MustCompile(`([A-Za-z_$][A-Za-z0-9_$]*)\s*\(`)
)

// jsCallSkip is the set of keywords a call-shaped `name(` can follow
// without actually being a function call.
var jsCallSkip = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "catch": true,
	"function": true, "typeof": true, "instanceof": true, "return": true,
	"do": true, "else": true, "try": true, "finally": true, "delete": true,
	"void": true, "yield": true, "await": true, "with": true, "in": true, "of": true,
}

// jsDeclPrefixes are the keywords that, immediately before a `name(` match,
// mean name is being declared rather than called.
var jsDeclPrefixes = []string{"function", "class", "interface"}

// ExtractSymbols follows the same ordering as the knowledge-graph
// extractor this was derived from: React components first (so a
// PascalCase function is classified as a component rather than a plain
// function when the framework warrants it), then shadcn components,
// Angular decorator symbols, Angular routes, plain functions, classes,
// and (TypeScript only) interfaces and type aliases.
func (e JSTSExtractor) ExtractSymbols(path, text string) []SymbolCandidate {
	framework := e.DetectFramework(path, text)
	lang := LangJS
	if isTypeScript(path) {
		lang = LangTS
	}
	var symbols []SymbolCandidate
	seen := make(map[string]bool)

	add := func(kind, name string) {
		key := kind + ":" + name
		if seen[key] {
			return
		}
		seen[key] = true
		symbols = append(symbols, newSymbol(kind, name, lang, path, framework))
	}

	isReactish := framework == FrameworkReact || framework == FrameworkNextJS || framework == FrameworkShadcn || isJSXTSX(path)

	for _, m := range jsFunctionDeclRe.FindAllStringSubmatch(text, -1) {
		name := m[1]
		if httpMethods[name] {
			add("endpoint_handler", name)
			continue
		}
		if isReactish && isPascalCase(name) {
			add("react_component", name)
			continue
		}
		add("function", name)
	}
	for _, m := range jsArrowConstRe.FindAllStringSubmatch(text, -1) {
		name := m[1]
		if isReactish && isPascalCase(name) {
			add("react_component", name)
			continue
		}
		add("function", name)
	}

	if framework == FrameworkShadcn || strings.Contains(text, "@/components/ui") {
		for _, m := range shadcnImportRe.FindAllStringSubmatch(text, -1) {
			add("shadcn_component", m[1])
		}
	}

	if framework == FrameworkAngular || strings.Contains(text, "@Component(") {
		for _, m := range angularDecoratorRe.FindAllStringSubmatch(text, -1) {
			add("angular_"+strings.ToLower(m[1]), m[1])
		}
	}

	for _, m := range jsClassRe.FindAllStringSubmatch(text, -1) {
		add("class", m[1])
	}

	if isTypeScript(path) {
		for _, m := range tsInterfaceRe.FindAllStringSubmatch(text, -1) {
			add("interface", m[1])
		}
		for _, m := range tsTypeAliasRe.FindAllStringSubmatch(text, -1) {
			add("type_alias", m[1])
		}
	}

	return symbols
}

// ExtractRelations surfaces className usage (JSX/React files), shadcn
// component usage, plain import/require targets, and function-call sites
// as unresolved relation candidates.
func (e JSTSExtractor) ExtractRelations(path, text string) []RelationCandidate {
	var relations []RelationCandidate

	for _, m := range importFromRe.FindAllStringSubmatch(text, -1) {
		relations = append(relations, RelationCandidate{FromFile: path, ToRaw: m[1], Kind: "imports"})
	}
	for _, m := range requireRe.FindAllStringSubmatch(text, -1) {
		relations = append(relations, RelationCandidate{FromFile: path, ToRaw: m[1], Kind: "requires"})
	}
	for _, m := range shadcnImportRe.FindAllStringSubmatch(text, -1) {
		relations = append(relations, RelationCandidate{FromFile: path, ToRaw: m[1], Kind: "uses", Props: map[string]string{"component": m[1]}})
	}

	framework := e.DetectFramework(path, text)
	if isJSXTSX(path) || framework == FrameworkReact || framework == FrameworkNextJS || framework == FrameworkShadcn {
		relations = append(relations, extractClassNameRelations(path, text)...)
	}

	relations = append(relations, extractCallRelations(path, text)...)

	return relations
}

// extractClassNameRelations emits an unresolved usesClass relation for
// every JSX className value, one per class token, referencing a wildcard
// CSS symbol id since the defining stylesheet isn't known at extraction
// time (same convention as HTMLExtractor.ExtractRelations).
func extractClassNameRelations(path, text string) []RelationCandidate {
	var relations []RelationCandidate
	seen := make(map[string]bool)
	for _, m := range jsxClassNameRe.FindAllStringSubmatch(text, -1) {
		for _, cls := range strings.Fields(m[1]) {
			if cls == "" || seen[cls] {
				continue
			}
			seen[cls] = true
			relations = append(relations, RelationCandidate{
				FromFile: path,
				ToRaw:    "sym:css:*:styleClass:" + cls,
				Kind:     "usesClass",
				Props:    map[string]string{"className": cls, "unresolved": "true"},
			})
		}
	}
	return relations
}

// extractCallRelations emits an unresolved calls relation for every
// `name(` call site, skipping control-flow keywords and declaration
// sites (`function name(`, `class name(`, `interface name(`).
func extractCallRelations(path, text string) []RelationCandidate {
	var relations []RelationCandidate
	seen := make(map[string]bool)
	for _, idx := range jsCallRe.FindAllStringSubmatchIndex(text, -1) {
		name := text[idx[2]:idx[3]]
		if jsCallSkip[name] || seen[name] {
			continue
		}
		prefix := strings.TrimRight(text[:idx[0]], " \t")
		declared := false
		for _, kw := range jsDeclPrefixes {
			if strings.HasSuffix(prefix, kw) {
				declared = true
				break
			}
		}
		if declared {
			continue
		}
		seen[name] = true
		relations = append(relations, RelationCandidate{FromFile: path, ToRaw: name, Kind: "calls"})
	}
	return relations
}
