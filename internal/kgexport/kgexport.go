// Package kgexport renders a knowledge-graph node/edge subset as DOT
// (Graphviz) or Mermaid text, for visualization and Markdown embedding.
package kgexport

import (
	"fmt"
	"strings"

	"github.com/guided-indexing/gik/internal/kgstore"
)

// Options controls export rendering. An empty Options uses sane defaults.
type Options struct {
	// Title is used as the DOT digraph name and the Mermaid diagram comment.
	// Defaults to "kg" when empty.
	Title string
	// Direction is the Mermaid flowchart direction (default "TD").
	Direction string
}

func (o Options) title() string {
	if o.Title == "" {
		return "kg"
	}
	return o.Title
}

func (o Options) direction() string {
	if o.Direction == "" {
		return "TD"
	}
	return o.Direction
}

// escapeQuoted escapes double quotes and backslashes so a string is safe
// inside a DOT or Mermaid double-quoted label.
func escapeQuoted(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}

// sanitizeID maps a knowledge-graph node id (which may contain colons,
// slashes, and '#' from the sym:/endpoint: conventions) to an identifier
// safe for use as an unquoted DOT/Mermaid node id. Node ids are unique by
// construction, and this mapping is injective enough in practice (distinct
// punctuation collapses to '_' but the surrounding path/name text keeps
// collisions vanishingly unlikely for real graphs), so no extra remapping
// table is kept.
func sanitizeID(id string) string {
	var b strings.Builder
	b.Grow(len(id))
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	if out == "" || (out[0] >= '0' && out[0] <= '9') {
		out = "n_" + out
	}
	return out
}

func displayName(n kgstore.Node) string {
	if n.Name != "" {
		return n.Name
	}
	return n.ID
}

// ToDOT renders nodes and edges as a Graphviz "digraph". Node labels are
// quoted and escaped; node ids are sanitized to safe DOT identifiers.
func ToDOT(nodes []kgstore.Node, edges []kgstore.Edge, opts Options) string {
	var b strings.Builder
	fmt.Fprintf(&b, "digraph %s {\n", sanitizeID(opts.title()))

	for _, n := range nodes {
		label := displayName(n)
		if n.Kind != "" {
			label = label + "\\n(" + n.Kind + ")"
		}
		fmt.Fprintf(&b, "  %s [label=\"%s\"];\n", sanitizeID(n.ID), escapeQuoted(label))
	}

	for _, e := range edges {
		attrs := ""
		if e.Kind != "" {
			attrs = fmt.Sprintf(" [label=\"%s\"]", escapeQuoted(e.Kind))
		}
		fmt.Fprintf(&b, "  %s -> %s%s;\n", sanitizeID(e.From), sanitizeID(e.To), attrs)
	}

	b.WriteString("}\n")
	return b.String()
}

// ToMermaid renders nodes and edges as a Mermaid "flowchart" diagram
// suitable for embedding in a Markdown fenced code block. Node labels are
// bracket-quoted and escaped; node ids are sanitized.
func ToMermaid(nodes []kgstore.Node, edges []kgstore.Edge, opts Options) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%%%% %s\nflowchart %s\n", opts.title(), opts.direction())

	for _, n := range nodes {
		label := displayName(n)
		if n.Kind != "" {
			label = label + " (" + n.Kind + ")"
		}
		fmt.Fprintf(&b, "  %s[\"%s\"]\n", sanitizeID(n.ID), escapeQuoted(label))
	}

	for _, e := range edges {
		if e.Kind != "" {
			fmt.Fprintf(&b, "  %s -->|%s| %s\n", sanitizeID(e.From), escapeQuoted(e.Kind), sanitizeID(e.To))
		} else {
			fmt.Fprintf(&b, "  %s --> %s\n", sanitizeID(e.From), sanitizeID(e.To))
		}
	}

	return b.String()
}
