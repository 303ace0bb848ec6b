package extract

import (
	"regexp"
	"strings"
)

// RubyExtractor extracts classes, modules, methods, and constants from
// Ruby source, with Rails framework detection.
type RubyExtractor struct{}

func (RubyExtractor) Language() Language { return LangRuby }

func (RubyExtractor) DetectFramework(path, text string) FrameworkHint {
	switch {
	case containsAny(path, "/app/controllers/", "/app/models/", "/app/views/"):
		return FrameworkRails
	case containsAny(text, "< ApplicationController", "< ActiveRecord::Base", "Rails.application"):
		return FrameworkRails
	default:
		return FrameworkNone
	}
}

var (
	rbClassRe  = regexp.MustCompile(`class\s+([A-Z][a-zA-Z0-9_]*)`)
	rbModuleRe = regexp.MustCompile(`module\s+([A-Z][a-zA-Z0-9_]*)`)
	rbMethodRe = regexp.MustCompile(`def\s+(?:self\.)?([a-zA-Z_][a-zA-Z0-9_]*[!?]?)`)
	rbConstRe  = regexp.MustCompile(`([A-Z][A-Z0-9_]*)\s*=`)
)

func (e RubyExtractor) ExtractSymbols(path, text string) []SymbolCandidate {
	framework := e.DetectFramework(path, text)
	var symbols []SymbolCandidate
	for _, m := range rbClassRe.FindAllStringSubmatch(text, -1) {
		symbols = append(symbols, newSymbol("class", m[1], LangRuby, path, framework))
	}
	for _, m := range rbModuleRe.FindAllStringSubmatch(text, -1) {
		symbols = append(symbols, newSymbol("module", m[1], LangRuby, path, framework))
	}
	for _, m := range rbMethodRe.FindAllStringSubmatch(text, -1) {
		symbols = append(symbols, newSymbol("method", m[1], LangRuby, path, framework))
	}
	for _, m := range rbConstRe.FindAllStringSubmatch(text, -1) {
		if strings.Contains(m[0], "class") || strings.Contains(m[0], "module") {
			continue
		}
		symbols = append(symbols, newSymbol("constant", m[1], LangRuby, path, framework))
	}
	return symbols
}

func (RubyExtractor) ExtractRelations(string, string) []RelationCandidate { return nil }
