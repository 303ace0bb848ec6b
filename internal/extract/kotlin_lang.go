package extract

import "regexp"

// KotlinExtractor extracts classes, objects, interfaces, and functions
// from Kotlin source, with Spring framework detection.
type KotlinExtractor struct{}

func (KotlinExtractor) Language() Language { return LangKotlin }

func (KotlinExtractor) DetectFramework(_ string, text string) FrameworkHint {
	if containsAny(text, "@RestController", "@Controller", "@Service", "org.springframework") {
		return FrameworkSpring
	}
	return FrameworkNone
}

var (
	ktClassRe = regexp.MustCompile(`(?:abstract\s+|open\s+|sealed\s+|data\s+|inner\s+)?class\s+([A-Z][a-zA-Z0-9_]*)`)
	ktObjRe   = regexp.MustCompile(`object\s+([A-Z][a-zA-Z0-9_]*)`)
	ktIfaceRe = regexp.MustCompile(`interface\s+([A-Z][a-zA-Z0-9_]*)`)
	ktFuncRe  = regexp.MustCompile(`(?:suspend\s+)?(?:private\s+|public\s+|internal\s+|protected\s+)?fun\s+([a-zA-Z_][a-zA-Z0-9_]*)\s*\(`)
)

func (e KotlinExtractor) ExtractSymbols(path, text string) []SymbolCandidate {
	framework := e.DetectFramework(path, text)
	var symbols []SymbolCandidate
	for _, m := range ktClassRe.FindAllStringSubmatch(text, -1) {
		symbols = append(symbols, newSymbol("class", m[1], LangKotlin, path, framework))
	}
	for _, m := range ktObjRe.FindAllStringSubmatch(text, -1) {
		symbols = append(symbols, newSymbol("object", m[1], LangKotlin, path, framework))
	}
	for _, m := range ktIfaceRe.FindAllStringSubmatch(text, -1) {
		symbols = append(symbols, newSymbol("interface", m[1], LangKotlin, path, framework))
	}
	for _, m := range ktFuncRe.FindAllStringSubmatch(text, -1) {
		symbols = append(symbols, newSymbol("function", m[1], LangKotlin, path, framework))
	}
	return symbols
}

func (KotlinExtractor) ExtractRelations(string, string) []RelationCandidate { return nil }
