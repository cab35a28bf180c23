package models

import "time"

// CanonicalLanguage is the language quotes are displayed in without a
// translation. Items in any other language carry an optional translation.
const CanonicalLanguage = "en"

// ContentItem is a validated, not-yet-persisted quote produced by the
// response parser. Translation is nil exactly when LanguageCode is the
// canonical language.
type ContentItem struct {
	Text         string  `json:"text" validate:"required"`
	Author       string  `json:"author" validate:"required"`
	LanguageCode string  `json:"languageCode" validate:"required"`
	Translation  *string `json:"translation,omitempty"`
	Category     string  `json:"category,omitempty"`
}

// QuoteRow is a ContentItem plus storage-assigned identity.
type QuoteRow struct {
	ID           int64     `json:"id"`
	DayID        string    `json:"day_id"`
	Text         string    `json:"text"`
	Author       string    `json:"author"`
	LanguageCode string    `json:"language_code"`
	Translation  *string   `json:"translation,omitempty"`
	Category     string    `json:"category,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// GenerationRequest holds the ephemeral parameters for one batch call.
type GenerationRequest struct {
	BatchSize            int
	LanguageDistribution map[string]int
	CategoryWeights      map[string]int
}

// BatchResult aggregates one batch: the validated items and how many
// attempts it took to get them (0 items after all attempts = abandoned).
type BatchResult struct {
	Items    []ContentItem
	Attempts int
}

// RunSummary is the terminal record of one refresh run, cached for the
// status endpoint.
type RunSummary struct {
	Success       bool      `json:"success"`
	Timestamp     time.Time `json:"timestamp"`
	DurationMs    int64     `json:"durationMs"`
	Generated     int       `json:"generated,omitempty"`
	DeletedCount  int64     `json:"deletedCount"`
	InsertedCount int       `json:"insertedCount"`
	Partial       bool      `json:"partial,omitempty"`
	Error         string    `json:"error,omitempty"`
	FailurePoint  string    `json:"failurePoint,omitempty"`
}

// DayID returns the day identifier for t, as stored in daily_quotes.
func DayID(t time.Time) string {
	return t.Format("2006-01-02")
}
