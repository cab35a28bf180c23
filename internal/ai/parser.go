package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/RixGem/progresspath/internal/models"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ParseQuoteBatch turns one raw model response into validated content
// items. Validation is atomic per batch: a short array or a single bad
// item rejects the whole response so the generator can retry it.
func ParseQuoteBatch(raw string, expected int) ([]models.ContentItem, error) {
	payload := isolateArray(stripFences(raw))

	var items []models.ContentItem
	if err := json.Unmarshal([]byte(payload), &items); err != nil {
		return nil, &ParseError{Reason: "response is not a JSON array", Err: err}
	}

	if len(items) < expected {
		return nil, &ValidationError{
			Reason: fmt.Sprintf("got %d items, requested %d", len(items), expected),
		}
	}

	// A model that over-delivers is fine; the contract is exactly
	// `expected` items per batch.
	items = items[:expected]

	for i := range items {
		if err := normalizeItem(&items[i]); err != nil {
			return nil, &ValidationError{
				Reason: fmt.Sprintf("item %d: %v", i, err),
			}
		}
	}

	return items, nil
}

// stripFences removes an optional markdown code fence around the payload
// (Gemini wraps JSON in ```json fences more often than not).
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// isolateArray cuts the text down to the first top-level array when the
// model added prose around it. Without brackets the text is returned
// as-is and left to the JSON decoder.
func isolateArray(s string) string {
	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start == -1 || end == -1 || end < start {
		return s
	}
	return s[start : end+1]
}

// normalizeItem trims and checks the required fields, lower-cases the
// language code and applies the translation invariant: nil exactly when
// the quote is already in the canonical language.
func normalizeItem(item *models.ContentItem) error {
	item.Text = strings.TrimSpace(item.Text)
	item.Author = strings.TrimSpace(item.Author)
	item.LanguageCode = strings.ToLower(strings.TrimSpace(item.LanguageCode))
	item.Category = strings.TrimSpace(item.Category)

	if err := validate.Struct(item); err != nil {
		var fields []string
		for _, fe := range err.(validator.ValidationErrors) {
			fields = append(fields, fe.Field())
		}
		return fmt.Errorf("missing required field(s): %s", strings.Join(fields, ", "))
	}

	if item.LanguageCode == models.CanonicalLanguage {
		item.Translation = nil
		return nil
	}

	if item.Translation != nil {
		t := strings.TrimSpace(*item.Translation)
		if t == "" {
			item.Translation = nil
		} else {
			item.Translation = &t
		}
	}

	return nil
}
