package extract

import "regexp"

// SQLExtractor extracts tables, views, functions, procedures, and
// indexes from SQL DDL. No framework conventions apply.
type SQLExtractor struct{}

func (SQLExtractor) Language() Language                         { return LangSQL }
func (SQLExtractor) DetectFramework(string, string) FrameworkHint { return FrameworkNone }

var (
	sqlTableRe = regexp.MustCompile(`(?i)CREATE\s+TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?(?:` + "`" + `?[a-zA-Z_][a-zA-Z0-9_]*` + "`" + `?\.)?` + "`" + `?([a-zA-Z_][a-zA-Z0-9_]*)` + "`" + `?`)
	sqlViewRe  = regexp.MustCompile(`(?i)CREATE\s+(?:OR\s+REPLACE\s+)?VIEW\s+(?:` + "`" + `?[a-zA-Z_][a-zA-Z0-9_]*` + "`" + `?\.)?` + "`" + `?([a-zA-Z_][a-zA-Z0-9_]*)` + "`" + `?`)
	sqlFuncRe  = regexp.MustCompile(`(?i)CREATE\s+(?:OR\s+REPLACE\s+)?FUNCTION\s+(?:` + "`" + `?[a-zA-Z_][a-zA-Z0-9_]*` + "`" + `?\.)?` + "`" + `?([a-zA-Z_][a-zA-Z0-9_]*)` + "`" + `?`)
	sqlProcRe  = regexp.MustCompile(`(?i)CREATE\s+(?:OR\s+REPLACE\s+)?PROCEDURE\s+(?:` + "`" + `?[a-zA-Z_][a-zA-Z0-9_]*` + "`" + `?\.)?` + "`" + `?([a-zA-Z_][a-zA-Z0-9_]*)` + "`" + `?`)
	sqlIdxRe   = regexp.MustCompile(`(?i)CREATE\s+(?:UNIQUE\s+)?INDEX\s+(?:IF\s+NOT\s+EXISTS\s+)?` + "`" + `?([a-zA-Z_][a-zA-Z0-9_]*)` + "`" + `?`)
)

func (SQLExtractor) ExtractSymbols(path, text string) []SymbolCandidate {
	var symbols []SymbolCandidate
	for _, m := range sqlTableRe.FindAllStringSubmatch(text, -1) {
		symbols = append(symbols, newSymbol("table", m[1], LangSQL, path, FrameworkNone))
	}
	for _, m := range sqlViewRe.FindAllStringSubmatch(text, -1) {
		symbols = append(symbols, newSymbol("view", m[1], LangSQL, path, FrameworkNone))
	}
	for _, m := range sqlFuncRe.FindAllStringSubmatch(text, -1) {
		symbols = append(symbols, newSymbol("function", m[1], LangSQL, path, FrameworkNone))
	}
	for _, m := range sqlProcRe.FindAllStringSubmatch(text, -1) {
		symbols = append(symbols, newSymbol("procedure", m[1], LangSQL, path, FrameworkNone))
	}
	for _, m := range sqlIdxRe.FindAllStringSubmatch(text, -1) {
		symbols = append(symbols, newSymbol("index", m[1], LangSQL, path, FrameworkNone))
	}
	return symbols
}

func (SQLExtractor) ExtractRelations(string, string) []RelationCandidate { return nil }
