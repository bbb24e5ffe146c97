package syntax

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func span(start, end int) TextRange {
	return TextRange{StartByte: start, EndByte: end, End: Position{Column: end}, Start: Position{Column: start}}
}

func TestTextRange_Contains(t *testing.T) {
	block := span(10, 40)

	tests := []struct {
		name  string
		inner TextRange
		want  bool
	}{
		{"strictly inside", span(12, 20), true},
		{"same span", span(10, 40), true},
		{"shares start", span(10, 15), true},
		{"starts before", span(5, 20), false},
		{"ends after", span(30, 41), false},
		{"disjoint", span(50, 60), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, block.Contains(tt.inner))
		})
	}
}

func TestTextRange_Text(t *testing.T) {
	src := []byte("class Greeter {}")

	assert.Equal(t, "Greeter", span(6, 13).Text(src))
	assert.Equal(t, "", span(6, 99).Text(src))
	assert.Equal(t, 7, span(6, 13).Len())
}

func TestTextRange_StructuralEquality(t *testing.T) {
	a := IdentifierBlockRange{Identifier: span(1, 2), Block: span(0, 5)}
	b := IdentifierBlockRange{Identifier: span(1, 2), Block: span(0, 5)}
	assert.True(t, a == b)
}

func TestMatch_Named(t *testing.T) {
	m := Match{Captures: []Capture{
		{Index: 0, Name: "param.type", Range: span(0, 3)},
		{Index: 1, Name: "param.value", Range: span(4, 5)},
		{Index: 0, Name: "param.type", Range: span(7, 10)},
	}}
	assert.Len(t, m.Named("param.type"), 2)
	assert.Empty(t, m.Named("returnType"))
}

func TestGrammarSource_Dynamic(t *testing.T) {
	assert.False(t, GrammarSource{Name: "java"}.Dynamic())
	assert.True(t, GrammarSource{Name: "kotlin", Library: "kotlin.so"}.Dynamic())
}
