package media_test

import (
	"testing"

	"github.com/castorhq/castor/internal/media"
	"github.com/stretchr/testify/assert"
)

func Test_NormalizeKeywords(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"whitespace only", "   \t ", ""},
		{"single keyword", "golang", "golang"},
		{"dedup and case fold preserving order", "a, A ,b#b;c", "a,b,c"},
		{"mixed separators", "cats dogs#birds;fish,horses", "cats,dogs,birds,fish,horses"},
		{"fullwidth comma", "旅行，美食，旅行", "旅行,美食"},
		{"runs of separators collapse", "a,,;;  ##b", "a,b"},
		{"leading and trailing separators", "#a,b,", "a,b"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, media.NormalizeKeywords(tt.input))
		})
	}
}

func Test_ParseKeywords_OrderPreserved(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"zebra", "apple", "mango"}, media.ParseKeywords("Zebra apple;MANGO zebra"))
	assert.Empty(t, media.ParseKeywords(""))
}
