package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLanguageForPath(t *testing.T) {
	cases := map[string]Language{
		"main.go":         LangGo,
		"index.ts":        LangTS,
		"component.tsx":   LangTS,
		"app.js":          LangJS,
		"widget.jsx":      LangJS,
		"script.py":       LangPython,
		"model.rb":        LangRuby,
		"Program.cs":      LangCSharp,
		"Main.java":       LangJava,
		"util.c":          LangC,
		"util.hpp":        LangCpp,
		"migration.sql":   LangSQL,
		"helper.php":      LangPHP,
		"Service.kt":      LangKotlin,
		"lib.rs":          LangRust,
		"README.md":       LangMarkdown,
		"styles.css":      LangCSS,
		"index.html":      LangHTML,
		"unknown.xyz":     LangUnknown,
	}
	for path, want := range cases {
		assert.Equal(t, want, LanguageForPath(path), path)
	}
}

func TestRegistry_ResolvesEveryLanguage(t *testing.T) {
	r := NewRegistry()
	for _, path := range []string{
		"main.go", "index.ts", "app.js", "script.py", "model.rb",
		"Program.cs", "Main.java", "util.c", "util.hpp", "migration.sql",
		"helper.php", "Service.kt", "lib.rs", "README.md", "styles.css", "index.html",
	} {
		_, ok := r.For(path)
		assert.True(t, ok, path)
	}
	_, ok := r.For("binary.exe")
	assert.False(t, ok)
}

func TestGoExtractor_ExtractsFunctionsStructsAndConstants(t *testing.T) {
	src := `package main

import "github.com/gin-gonic/gin"

type Server struct{}

type Handler interface { Handle() }

const MAX_RETRIES = 3

func NewServer() *Server { return &Server{} }
`
	e := GoExtractor{}
	assert.Equal(t, FrameworkGin, e.DetectFramework("main.go", src))
	symbols := e.ExtractSymbols("main.go", src)

	var kinds []string
	for _, s := range symbols {
		kinds = append(kinds, s.Kind+":"+s.Name)
	}
	assert.Contains(t, kinds, "struct:Server")
	assert.Contains(t, kinds, "interface:Handler")
	assert.Contains(t, kinds, "constant:MAX_RETRIES")
	assert.Contains(t, kinds, "function:NewServer")
}

func TestJSTSExtractor_DetectsReactComponentsAndFramework(t *testing.T) {
	src := `import React from 'react'

export function Card() {
  return (<div className="card">hi</div>)
}
`
	e := JSTSExtractor{}
	assert.Equal(t, FrameworkReact, e.DetectFramework("Card.tsx", src))
	symbols := e.ExtractSymbols("Card.tsx", src)
	found := false
	for _, s := range symbols {
		if s.Kind == "react_component" && s.Name == "Card" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestJSTSExtractor_ExtractsInterfacesOnlyForTypeScript(t *testing.T) {
	src := `export interface User { id: string }
export type ID = string
`
	e := JSTSExtractor{}
	tsSymbols := e.ExtractSymbols("types.ts", src)
	jsSymbols := e.ExtractSymbols("types.js", src)

	hasInterface := func(symbols []SymbolCandidate) bool {
		for _, s := range symbols {
			if s.Kind == "interface" {
				return true
			}
		}
		return false
	}
	assert.True(t, hasInterface(tsSymbols))
	assert.False(t, hasInterface(jsSymbols))
}

func TestPythonExtractor_DetectsDjangoFromPath(t *testing.T) {
	e := PythonExtractor{}
	assert.Equal(t, FrameworkDjango, e.DetectFramework("app/views.py", ""))
	assert.Equal(t, FrameworkFlask, e.DetectFramework("app.py", "from flask import Flask"))
}

func TestCSSExtractor_DetectsTailwindAndMarksAppliedClasses(t *testing.T) {
	src := `.btn { color: red; }
.btn-primary { @apply btn bg-blue-500 text-white; }
@tailwind base;
`
	e := CSSExtractor{}
	assert.Equal(t, FrameworkTailwind, e.DetectFramework("styles.css", src))
	symbols := e.ExtractSymbols("styles.css", src)

	var usedInApply bool
	for _, s := range symbols {
		if s.Kind == "styleClass" && s.Name == "btn" {
			usedInApply = s.Props["usedInApply"] == "true"
		}
	}
	assert.True(t, usedInApply)
}

func TestHTMLExtractor_ExtractsSectionsAndClassUsage(t *testing.T) {
	src := `<!DOCTYPE html><html><body><section id="hero" class="hero-banner">hi</section></body></html>`
	e := HTMLExtractor{}
	symbols := e.ExtractSymbols("index.html", src)

	var hasSection bool
	for _, s := range symbols {
		if s.Kind == "htmlSection" && s.Name == "hero" {
			hasSection = true
		}
	}
	assert.True(t, hasSection)

	relations := e.ExtractRelations("index.html", src)
	assert.NotEmpty(t, relations)
	assert.Equal(t, "usesClass", relations[0].Kind)
}

func TestMarkdownExtractor_ExtractsHeadingsWithLevel(t *testing.T) {
	src := "# Title\n\n## Subsection\n"
	e := MarkdownExtractor{}
	symbols := e.ExtractSymbols("README.md", src)
	assert.Len(t, symbols, 2)
	assert.Equal(t, "1", symbols[0].Props["level"])
	assert.Equal(t, "2", symbols[1].Props["level"])
}

func TestJSTSExtractor_ExtractsClassNameUsage(t *testing.T) {
	src := `import React from 'react'

export function Card() {
  return (<div className="card shadow-lg">hi</div>)
}
`
	e := JSTSExtractor{}
	relations := e.ExtractRelations("Card.tsx", src)

	var classNames []string
	for _, r := range relations {
		if r.Kind == "usesClass" {
			classNames = append(classNames, r.Props["className"])
		}
	}
	assert.ElementsMatch(t, []string{"card", "shadow-lg"}, classNames)
}

func TestJSTSExtractor_SkipsClassNameUsageOutsideReactish(t *testing.T) {
	src := `export function render() {
  return '<div className="card">hi</div>'
}
`
	e := JSTSExtractor{}
	relations := e.ExtractRelations("render.js", src)
	for _, r := range relations {
		assert.NotEqual(t, "usesClass", r.Kind)
	}
}

func TestJSTSExtractor_ExtractsFunctionCalls(t *testing.T) {
	src := `function loadUser(id) {
  const data = fetchUser(id)
  if (data) {
    return normalize(data)
  }
  return null
}
`
	e := JSTSExtractor{}
	relations := e.ExtractRelations("user.ts", src)

	var calls []string
	for _, r := range relations {
		if r.Kind == "calls" {
			calls = append(calls, r.ToRaw)
		}
	}
	assert.Contains(t, calls, "fetchUser")
	assert.Contains(t, calls, "normalize")
	assert.NotContains(t, calls, "loadUser")
	assert.NotContains(t, calls, "if")
}

func TestJSTSExtractor_CallsSkipClassDeclaration(t *testing.T) {
	src := `class Widget(props) {}
`
	e := JSTSExtractor{}
	relations := e.ExtractRelations("widget.js", src)
	for _, r := range relations {
		if r.Kind == "calls" {
			assert.NotEqual(t, "Widget", r.ToRaw)
		}
	}
}
