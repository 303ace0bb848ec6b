package extract

import "strings"

func newSymbol(kind, name string, lang Language, path string, framework FrameworkHint) SymbolCandidate {
	return SymbolCandidate{Kind: kind, Name: name, Language: lang, File: path, Framework: framework}
}

func containsAny(text string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}
