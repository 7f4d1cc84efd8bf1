package markup

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeadingExtractor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		selector string
		html     string
		want     string
	}{
		{
			name: "single heading",
			html: `<html><body><h1>  Example Domain </h1><p>text</p></body></html>`,
			want: "Example Domain",
		},
		{
			name: "multiple headings are concatenated",
			html: `<h1>Part one</h1><div><h1>Part two</h1></div>`,
			want: "Part onePart two",
		},
		{
			name: "missing heading",
			html: `<html><body><h2>Not it</h2></body></html>`,
			want: "",
		},
		{
			name:     "custom selector",
			selector: "#title",
			html:     `<h1>ignored</h1><span id="title">Custom</span>`,
			want:     "Custom",
		},
		{
			name: "nested markup",
			html: `<h1><a href="/">Home</a> <em>page</em></h1>`,
			want: "Home page",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := NewHeadingExtractor(tc.selector).ExtractText([]byte(tc.html))
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestNewHeadingExtractorDefaultsSelector(t *testing.T) {
	t.Parallel()

	require.Equal(t, DefaultSelector, NewHeadingExtractor("  ").Selector())
	require.Equal(t, "main h1", NewHeadingExtractor("main h1").Selector())
}
