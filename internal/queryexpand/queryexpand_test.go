package queryexpand

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpand_SubstitutesAbstractTerms(t *testing.T) {
	e := New()
	variants := e.Expand("How is the project architecture organized?")

	assert.Contains(t, variants, "How is the project architecture organized?")
	found := false
	for _, v := range variants {
		if v == "How is the project structure organized?" {
			found = true
		}
	}
	assert.True(t, found, "expected a structure substitution, got %v", variants)
}

func TestExpandWithStack_AddsFrameworkTerms(t *testing.T) {
	e := New()
	stack := StackSummary{Languages: []string{"TypeScript"}, Frameworks: []string{"React"}}
	variants := e.ExpandWithStack("Where are the components?", stack)

	found := false
	for _, v := range variants {
		if v == "Where are the components? tsx" {
			found = true
		}
	}
	assert.True(t, found, "expected a react stack-aware variant, got %v", variants)
}

func TestExpandWithStack_CapsTotalVariants(t *testing.T) {
	e := &Expander{MaxVariants: 2}
	stack := StackSummary{Frameworks: []string{"react", "angular", "vue", "django"}}
	variants := e.ExpandWithStack("How is the architecture organized?", stack)

	assert.LessOrEqual(t, len(variants), 2)
}

func TestExpand_EmptyQueryReturnsNil(t *testing.T) {
	e := New()
	assert.Nil(t, e.Expand("   "))
}

func TestIsExhaustiveIntent(t *testing.T) {
	assert.True(t, IsExhaustiveIntent("list all endpoints"))
	assert.True(t, IsExhaustiveIntent("Every function in the repo"))
	assert.True(t, IsExhaustiveIntent("quais todas as rotas da API"))
	assert.False(t, IsExhaustiveIntent("how does auth work"))
}
