package position_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/walteh/t4gen/pkg/position"
)

func TestLocation_Advance(t *testing.T) {
	tests := []struct {
		name     string
		start    position.Location
		text     string
		wantLine int
		wantCol  int
	}{
		{
			name:     "empty text",
			start:    position.Start("a.tt"),
			text:     "",
			wantLine: 1,
			wantCol:  1,
		},
		{
			name:     "single line",
			start:    position.Start("a.tt"),
			text:     "hello",
			wantLine: 1,
			wantCol:  6,
		},
		{
			name:     "newline resets column",
			start:    position.New("a.tt", 3, 7),
			text:     "ab\ncd",
			wantLine: 4,
			wantCol:  3,
		},
		{
			name:     "crlf is one line break",
			start:    position.Start("a.tt"),
			text:     "a\r\nb\rc",
			wantLine: 3,
			wantCol:  2,
		},
		{
			name:     "multibyte runes count once",
			start:    position.Start("a.tt"),
			text:     "héllo",
			wantLine: 1,
			wantCol:  6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.start.Advance(tt.text)
			assert.Equal(t, tt.wantLine, got.Line, "line")
			assert.Equal(t, tt.wantCol, got.Column, "column")
			assert.Equal(t, tt.start.File, got.File, "file")
		})
	}
}

func TestLocation_Equality(t *testing.T) {
	a := position.New("x.tt", 2, 3)
	b := position.New("x.tt", 1, 3).AddLine().AddCols(2)

	assert.Equal(t, a, b)
	assert.True(t, a == b)
	assert.NotEqual(t, a, a.WithFile("y.tt"))
	assert.True(t, position.Empty.IsEmpty())
	assert.False(t, position.Empty.HasFile())
	assert.Equal(t, "[x.tt (2,3)]", a.String())
}
