package extract

import (
	"regexp"
	"strconv"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownExtractor extracts ATX/setext headings as symbols and link
// targets as relations; Markdown carries no framework convention.
type MarkdownExtractor struct{}

func (MarkdownExtractor) Language() Language                          { return LangMarkdown }
func (MarkdownExtractor) DetectFramework(string, string) FrameworkHint { return FrameworkNone }

var mdParser = goldmark.New().Parser()

// ExtractSymbols walks the goldmark AST for heading nodes rather than
// regex-scanning lines, so nesting inside blockquotes, lists, and fenced
// code (which must not be treated as headings) is handled by the parser
// instead of a hand-rolled exception list.
func (MarkdownExtractor) ExtractSymbols(path, mdText string) []SymbolCandidate {
	src := []byte(mdText)
	doc := mdParser.Parse(text.NewReader(src))

	var symbols []SymbolCandidate
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		sym := newSymbol("heading", headingText(h, src), LangMarkdown, path, FrameworkNone)
		sym.Props = map[string]string{"level": strconv.Itoa(h.Level)}
		symbols = append(symbols, sym)
		return ast.WalkSkipChildren, nil
	})
	return symbols
}

func headingText(h *ast.Heading, src []byte) string {
	var out []byte
	_ = ast.Walk(h, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if t, ok := n.(*ast.Text); ok {
			out = append(out, t.Text(src)...)
		}
		return ast.WalkContinue, nil
	})
	return string(out)
}

// mdLinkRe matches inline links `[text](target)`; link-as-relation
// extraction stays regex-based per the rest of the Markdown extractor,
// since the AST walker is only needed for heading nesting.
var mdLinkRe = regexp.MustCompile(`\[[^\]]*\]\(([^)\s]+)(?:\s+"[^"]*")?\)`)

func (MarkdownExtractor) ExtractRelations(path, mdText string) []RelationCandidate {
	var relations []RelationCandidate
	for _, m := range mdLinkRe.FindAllStringSubmatch(mdText, -1) {
		relations = append(relations, RelationCandidate{
			FromFile: path,
			ToRaw:    m[1],
			Kind:     "links",
		})
	}
	return relations
}
