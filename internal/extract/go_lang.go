package extract

import "regexp"

// GoExtractor extracts functions, structs, interfaces, type aliases, and
// constants from Go source.
type GoExtractor struct{}

func (GoExtractor) Language() Language { return LangGo }

func (GoExtractor) DetectFramework(_ string, text string) FrameworkHint {
	switch {
	case containsAny(text, "github.com/gin-gonic/gin"):
		return FrameworkGin
	case containsAny(text, "github.com/gofiber/fiber"):
		return FrameworkFiber
	default:
		return FrameworkNone
	}
}

var (
	goFuncRe      = regexp.MustCompile(`func\s+(?:\([^)]+\)\s+)?([a-zA-Z_][a-zA-Z0-9_]*)\s*\(`)
	goStructRe    = regexp.MustCompile(`type\s+([A-Z][a-zA-Z0-9_]*)\s+struct\b`)
	goInterfaceRe = regexp.MustCompile(`type\s+([A-Z][a-zA-Z0-9_]*)\s+interface\b`)
	goTypeRe      = regexp.MustCompile(`type\s+([A-Z][a-zA-Z0-9_]*)\s+([a-zA-Z][a-zA-Z0-9_\[\]\.]*)`)
	goConstRe     = regexp.MustCompile(`const\s+([A-Z][a-zA-Z0-9_]*)\s*=`)
)

func (e GoExtractor) ExtractSymbols(path, text string) []SymbolCandidate {
	framework := e.DetectFramework(path, text)
	var symbols []SymbolCandidate

	for _, m := range goFuncRe.FindAllStringSubmatch(text, -1) {
		symbols = append(symbols, newSymbol("function", m[1], LangGo, path, framework))
	}
	for _, m := range goStructRe.FindAllStringSubmatch(text, -1) {
		symbols = append(symbols, newSymbol("struct", m[1], LangGo, path, framework))
	}
	for _, m := range goInterfaceRe.FindAllStringSubmatch(text, -1) {
		symbols = append(symbols, newSymbol("interface", m[1], LangGo, path, framework))
	}
	for _, m := range goTypeRe.FindAllStringSubmatch(text, -1) {
		if m[2] == "struct" || m[2] == "interface" {
			continue
		}
		symbols = append(symbols, newSymbol("type", m[1], LangGo, path, framework))
	}
	for _, m := range goConstRe.FindAllStringSubmatch(text, -1) {
		symbols = append(symbols, newSymbol("constant", m[1], LangGo, path, framework))
	}

	return symbols
}

func (GoExtractor) ExtractRelations(string, string) []RelationCandidate { return nil }
