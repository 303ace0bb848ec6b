package extract

import (
	"regexp"
	"strings"
)

// CSSExtractor extracts class selectors, id selectors, custom
// properties, and (when Tailwind is detected) @tailwind directives
// from CSS/SCSS source.
type CSSExtractor struct{}

func (CSSExtractor) Language() Language { return LangCSS }

var (
	cssVarRe       = regexp.MustCompile(`--([a-zA-Z][a-zA-Z0-9_-]*)\s*:`)
	cssApplyRe     = regexp.MustCompile(`@apply\s+([^;]+);`)
	cssLayerRe     = regexp.MustCompile(`@layer\s+(base|components|utilities)`)
	cssClassRe     = regexp.MustCompile(`\.([a-zA-Z_][a-zA-Z0-9_-]*)`)
	cssIDRe        = regexp.MustCompile(`#([a-zA-Z_][a-zA-Z0-9_-]*)(?:\s*[:{>,\[\s]|$)`)
	cssTailwindDir = regexp.MustCompile(`@tailwind\s+([a-zA-Z]+)`)
)

var cssPseudoSkip = map[string]bool{
	"hover": true, "focus": true, "active": true, "before": true,
	"after": true, "first-child": true, "last-child": true, "not": true,
}

func (CSSExtractor) DetectFramework(_ string, text string) FrameworkHint {
	if containsAny(text, "@tailwind", "@apply") || cssLayerRe.MatchString(text) {
		return FrameworkTailwind
	}
	return FrameworkNone
}

func (e CSSExtractor) ExtractSymbols(path, text string) []SymbolCandidate {
	framework := e.DetectFramework(path, text)
	var symbols []SymbolCandidate

	seenClass := make(map[string]bool)
	appliedClasses := make(map[string]bool)
	for _, m := range cssApplyRe.FindAllStringSubmatch(text, -1) {
		for _, cls := range strings.Fields(m[1]) {
			appliedClasses[cls] = true
		}
	}
	for _, m := range cssClassRe.FindAllStringSubmatch(text, -1) {
		name := m[1]
		if seenClass[name] || cssPseudoSkip[name] {
			continue
		}
		seenClass[name] = true
		sym := newSymbol("styleClass", name, LangCSS, path, framework)
		props := map[string]string{"selector": "." + name, "selectorType": "class"}
		if framework == FrameworkTailwind && appliedClasses[name] {
			props["usedInApply"] = "true"
		}
		sym.Props = props
		symbols = append(symbols, sym)
	}

	seenID := make(map[string]bool)
	for _, m := range cssIDRe.FindAllStringSubmatch(text, -1) {
		name := m[1]
		if seenID[name] {
			continue
		}
		seenID[name] = true
		sym := newSymbol("styleId", name, LangCSS, path, framework)
		sym.Props = map[string]string{"selector": "#" + name, "selectorType": "id"}
		symbols = append(symbols, sym)
	}

	seenVar := make(map[string]bool)
	for _, m := range cssVarRe.FindAllStringSubmatch(text, -1) {
		name := m[1]
		if seenVar[name] {
			continue
		}
		seenVar[name] = true
		sym := newSymbol("cssVariable", name, LangCSS, path, framework)
		sym.Props = map[string]string{"variable": "--" + name}
		symbols = append(symbols, sym)
	}

	if framework == FrameworkTailwind {
		seenDir := make(map[string]bool)
		for _, m := range cssTailwindDir.FindAllStringSubmatch(text, -1) {
			name := m[1]
			if seenDir[name] {
				continue
			}
			seenDir[name] = true
			sym := newSymbol("tailwindDirective", name, LangCSS, path, FrameworkTailwind)
			sym.Props = map[string]string{"directive": "@tailwind " + name}
			symbols = append(symbols, sym)
		}
	}

	return symbols
}

func (CSSExtractor) ExtractRelations(string, string) []RelationCandidate { return nil }
