// Package kg orchestrates a full-rebuild sync of a branch's knowledge
// graph: it walks every KG-eligible source, runs the extractor registered
// for that file's language, and converts the resulting symbol/relation
// candidates into nodes and edges using the id conventions fixed by the
// spec (file:, doc:, endpoint:, sym:).
package kg

import (
	"path"
	"regexp"
	"strings"

	"github.com/guided-indexing/gik/internal/extract"
	"github.com/guided-indexing/gik/internal/kgstore"
)

// KGEligibleBases names the bases whose sources participate in KG sync.
var KGEligibleBases = []string{"code", "docs"}

// Source is one file's content as seen by the sync routine. Base
// determines whether it becomes a file: or doc: node.
type Source struct {
	Base string
	Path string
	Text string
}

// Warning is a non-fatal problem observed during sync: missing text, a
// failed import resolution, or a route file with no detected HTTP
// methods. Sync collects these but never fails because of them.
type Warning struct {
	Path    string
	Message string
}

// Result is the outcome of a full sync.
type Result struct {
	NodeCount int
	EdgeCount int
	Warnings  []Warning
}

var httpMethodNames = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "PATCH": true,
	"DELETE": true, "HEAD": true, "OPTIONS": true,
}

var (
	appRouterRe   = regexp.MustCompile(`(?:^|/)app/api/.+/route\.(ts|tsx|js|jsx)$`)
	pagesRouterRe = regexp.MustCompile(`(?:^|/)pages/api/.+\.(ts|tsx|js|jsx)$`)
)

// isRouteFile reports whether path matches the App Router or Pages Router
// API-route convention.
func isRouteFile(p string) bool {
	return appRouterRe.MatchString(p) || pagesRouterRe.MatchString(p)
}

// deriveRoute turns a route file path into its HTTP route, stripping the
// app/api or pages/api prefix and the trailing /route.ext or .ext suffix.
func deriveRoute(p string) string {
	trimmed := p
	switch {
	case strings.Contains(trimmed, "app/api/"):
		trimmed = trimmed[strings.Index(trimmed, "app/api/")+len("app/api/"):]
		trimmed = strings.TrimSuffix(trimmed, path.Base(trimmed))
		trimmed = strings.TrimSuffix(trimmed, "/")
	case strings.Contains(trimmed, "pages/api/"):
		trimmed = trimmed[strings.Index(trimmed, "pages/api/")+len("pages/api/"):]
		trimmed = strings.TrimSuffix(trimmed, path.Ext(trimmed))
		trimmed = strings.TrimSuffix(trimmed, "/index")
	}
	if !strings.HasPrefix(trimmed, "/") {
		trimmed = "/" + trimmed
	}
	return "/api/" + strings.TrimPrefix(trimmed, "/")
}

func fileNodeID(base, normalizedPath string) string {
	if base == "docs" {
		return "doc:" + normalizedPath
	}
	return "file:" + normalizedPath
}

func symbolID(lang extract.Language, filePath, kind, name string, index int) string {
	id := "sym:" + string(lang) + ":" + filePath + ":" + kind + ":" + name
	if index > 0 {
		id += "#" + itoa(index)
	}
	return id
}

// symbolKinds is every concrete Node.Kind a symbol (as opposed to a file:,
// doc:, or endpoint: node) can carry: one per extractor's newSymbol/add
// call, including the angular_* kinds derived from a decorator name and
// the endpoint_handler kind a non-route file's handler keeps when it
// isn't folded into an endpoint: node. There is no single generic "symbol"
// kind string anywhere in the sync output.
var symbolKinds = map[string]bool{
	"class": true, "constant": true, "cssVariable": true, "enum": true,
	"function": true, "heading": true, "htmlAnchor": true, "htmlSection": true,
	"htmlTemplate": true, "htmlPartial": true,
	"index": true, "interface": true, "macro": true, "method": true,
	"module": true, "namespace": true, "object": true, "procedure": true,
	"record": true, "struct": true, "styleClass": true, "styleId": true,
	"table": true, "tailwindDirective": true, "trait": true, "type": true,
	"type_alias": true, "typedef": true, "view": true,
	"react_component": true, "shadcn_component": true, "endpoint_handler": true,
	"angular_component": true, "angular_injectable": true, "angular_ngmodule": true,
	"angular_directive": true, "angular_pipe": true,
}

// IsSymbolKind reports whether kind is one of the concrete kinds a symbol
// node (sync'd from an extractor's SymbolCandidate) can carry. Callers
// that need "every symbol node" (as opposed to "every endpoint node")
// should use this instead of comparing against a literal kind string,
// since sync never stamps a node's Kind with the generic word "symbol".
func IsSymbolKind(kind string) bool {
	return symbolKinds[kind]
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

// SyncBranch performs a full rebuild: the store is cleared, then every
// source is re-extracted and the resulting nodes/edges are written, and
// stats are recomputed.
func SyncBranch(store *kgstore.Store, registry *extract.Registry, sources []Source) (Result, error) {
	if err := store.Clear(); err != nil {
		return Result{}, err
	}

	var nodes []kgstore.Node
	var edges []kgstore.Edge
	var warnings []Warning

	for _, src := range sources {
		normalized := path.Clean(strings.ReplaceAll(src.Path, `\`, "/"))
		if src.Text == "" {
			warnings = append(warnings, Warning{Path: normalized, Message: "missing text"})
			continue
		}

		fNode := fileNodeID(src.Base, normalized)
		kind := "file"
		if src.Base == "docs" {
			kind = "doc"
		}
		nodes = append(nodes, kgstore.Node{ID: fNode, Kind: kind, Name: path.Base(normalized)})

		extractor, ok := registry.For(normalized)
		if !ok {
			continue
		}

		symbols := extractor.ExtractSymbols(normalized, src.Text)
		nameCount := make(map[string]int)
		routeMethods := 0

		for _, sym := range symbols {
			if sym.Kind == "endpoint_handler" && isRouteFile(normalized) {
				method := sym.Name
				if !httpMethodNames[method] {
					continue
				}
				route := deriveRoute(normalized)
				endpointID := "endpoint:" + method + ":" + route
				nodes = append(nodes, kgstore.Node{
					ID: endpointID, Kind: "endpoint", Name: method + " " + route,
					Framework: string(sym.Framework),
				})
				edges = append(edges, kgstore.Edge{From: fNode, To: endpointID, Kind: "definesEndpoint"})
				routeMethods++
				continue
			}

			key := sym.Kind + ":" + sym.Name
			index := nameCount[key]
			nameCount[key] = index + 1

			symID := symbolID(sym.Language, normalized, sym.Kind, sym.Name, index)
			nodes = append(nodes, kgstore.Node{
				ID: symID, Kind: sym.Kind, Name: sym.Name,
				Framework: string(sym.Framework), Props: sym.Props,
			})
			edges = append(edges, kgstore.Edge{From: fNode, To: symID, Kind: "defines"})
		}

		if isRouteFile(normalized) && routeMethods == 0 {
			warnings = append(warnings, Warning{Path: normalized, Message: "no HTTP methods detected in route file"})
		}

		for _, rel := range extractor.ExtractRelations(normalized, src.Text) {
			if rel.ToRaw == "" {
				warnings = append(warnings, Warning{Path: normalized, Message: "failed import resolution"})
				continue
			}
			edges = append(edges, kgstore.Edge{
				From: fNode, To: rel.ToRaw, Kind: rel.Kind, Props: rel.Props,
			})
		}
	}

	if err := store.AppendNodes(nodes); err != nil {
		return Result{}, err
	}
	if err := store.AppendEdges(edges); err != nil {
		return Result{}, err
	}
	stats := kgstore.ComputeStats(len(nodes), len(edges))
	if err := store.WriteStats(stats); err != nil {
		return Result{}, err
	}

	return Result{NodeCount: len(nodes), EdgeCount: len(edges), Warnings: warnings}, nil
}
