package table

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderIncludesHeadersAndCells(t *testing.T) {
	out := Render(
		[]string{"ID", "Title"},
		[][]string{{"12", "八分"}, {"7"}},
		[]Alignment{AlignRight},
	)

	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "TITLE")
	assert.Contains(t, out, "八分")
	assert.Contains(t, out, "12")
	assert.True(t, strings.HasPrefix(out, "╭"))
}

func TestRenderWithoutColumns(t *testing.T) {
	assert.Empty(t, Render(nil, [][]string{{"x"}}, nil))
}
