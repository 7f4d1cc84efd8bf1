package grounding

import (
	"fmt"
	"strings"
)

// RenderContext formats results as the grounding context: one labeled block
// per source, in order, separated by a blank line. No results yield "".
func RenderContext(results []SourceResult) string {
	blocks := make([]string, 0, len(results))
	for i, r := range results {
		blocks = append(blocks, fmt.Sprintf(
			"Source %d: %s\nStatic Content: \"%s\"\nDynamic Content: \"%s\"",
			i+1, r.URL, r.StaticText, r.DynamicText,
		))
	}
	return strings.Join(blocks, "\n\n")
}
