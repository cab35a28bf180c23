package ai

import (
	"fmt"
	"sort"
	"strings"

	"github.com/RixGem/progresspath/internal/models"
)

// batchContract states the exact output shape the parser accepts. The
// model is told to emit a bare array so the bracket isolation in the
// parser is a fallback, not the expected path.
const batchContract = `You are a quote curator for a language-learning app.
Respond with ONLY a JSON array of objects, no surrounding prose, no markdown fences.
Each object has these fields:
- "text" (string, required): the quote itself, in its original language
- "author" (string, required): who said or wrote it
- "languageCode" (string, required): ISO 639-1 code of the quote's language
- "translation" (string, optional): English translation; omit it for English quotes
- "category" (string, optional): a one-word theme such as motivation, wisdom, learning`

// BuildBatchPrompt composes the system contract with the per-batch user
// instruction: exact item count, language mix and category weighting.
func BuildBatchPrompt(req models.GenerationRequest) string {
	var b strings.Builder
	b.WriteString(batchContract)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Produce exactly %d quotes.", req.BatchSize)

	if len(req.LanguageDistribution) > 0 {
		b.WriteString(" Language mix: ")
		b.WriteString(formatWeights(req.LanguageDistribution, "quote(s) in"))
		b.WriteString(".")
	}

	if len(req.CategoryWeights) > 0 {
		b.WriteString(" Favor these themes: ")
		b.WriteString(formatWeights(req.CategoryWeights, "x"))
		b.WriteString(".")
	}

	return b.String()
}

// formatWeights renders a weight map deterministically, keys sorted, so
// identical requests build identical prompts.
func formatWeights(weights map[string]int, unit string) string {
	keys := make([]string, 0, len(weights))
	for k := range weights {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%d %s %s", weights[k], unit, k))
	}
	return strings.Join(parts, ", ")
}
