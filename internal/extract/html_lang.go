package extract

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// HTMLExtractor extracts a document/partial root symbol, semantic
// sections and anchor ids, and className usage relations from HTML
// source, with Angular template detection.
type HTMLExtractor struct{}

func (HTMLExtractor) Language() Language { return LangHTML }

var (
	htmlSectionIDRe = regexp.MustCompile(`<(section|article|aside|header|footer|main|nav)\s+[^>]*id\s*=\s*["']([^"']+)["']`)
	htmlElementIDRe = regexp.MustCompile(`<[a-zA-Z][a-zA-Z0-9]*\s+[^>]*id\s*=\s*["']([^"']+)["']`)
	htmlClassAttrRe = regexp.MustCompile(`class\s*=\s*["']([^"']+)["']`)
	htmlTemplateRe  = regexp.MustCompile(`<%|%>|\{\{|\}\}|\{%|%\}`)
)

func isTemplateFile(path, text string) bool {
	if containsAny(path, ".ejs", ".hbs", ".handlebars", ".njk", ".twig") {
		return true
	}
	return htmlTemplateRe.MatchString(text)
}

func isPartialOrLayout(path string) bool {
	lower := strings.ToLower(path)
	return containsAny(lower, "partial", "layout", "template", "_", "component")
}

func (HTMLExtractor) DetectFramework(path, text string) FrameworkHint {
	switch {
	case containsAny(text, "*ngIf", "*ngFor", "[(ngModel)]"):
		return FrameworkAngular
	case isTemplateFile(path, text):
		return FrameworkGeneric
	default:
		return FrameworkNone
	}
}

func (e HTMLExtractor) ExtractSymbols(path, text string) []SymbolCandidate {
	framework := e.DetectFramework(path, text)
	var symbols []SymbolCandidate

	hasHTMLTag := containsAny(text, "<html", "<!DOCTYPE")
	hasBody := strings.Contains(text, "<body")
	kind := "htmlTemplate"
	if isPartialOrLayout(path) || !(hasHTMLTag || hasBody) {
		kind = "htmlPartial"
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if name == "" {
		name = "index"
	}
	root := newSymbol(kind, name, LangHTML, path, framework)
	root.Props = map[string]string{"isDocument": strconv.FormatBool(hasHTMLTag), "hasBody": strconv.FormatBool(hasBody)}
	symbols = append(symbols, root)

	sectionIDs := make(map[string]bool)
	for _, m := range htmlSectionIDRe.FindAllStringSubmatch(text, -1) {
		tag, id := m[1], m[2]
		if sectionIDs[id] {
			continue
		}
		sectionIDs[id] = true
		sym := newSymbol("htmlSection", id, LangHTML, path, framework)
		sym.Props = map[string]string{"tagName": tag, "elementId": id}
		symbols = append(symbols, sym)
	}

	seenAnchor := make(map[string]bool)
	for _, m := range htmlElementIDRe.FindAllStringSubmatch(text, -1) {
		id := m[1]
		if sectionIDs[id] || seenAnchor[id] {
			continue
		}
		seenAnchor[id] = true
		sym := newSymbol("htmlAnchor", id, LangHTML, path, framework)
		sym.Props = map[string]string{"elementId": id}
		symbols = append(symbols, sym)
	}

	return symbols
}

// ExtractRelations emits an unresolved usesClass relation for every
// className attribute value found, referencing a wildcard CSS symbol
// id since the defining stylesheet is not known at extraction time.
func (HTMLExtractor) ExtractRelations(path, text string) []RelationCandidate {
	var relations []RelationCandidate
	seen := make(map[string]bool)
	for _, m := range htmlClassAttrRe.FindAllStringSubmatch(text, -1) {
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
