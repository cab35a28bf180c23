package generate

import (
	"context"
	"errors"
	"time"

	"github.com/RixGem/progresspath/internal/ai"
	"github.com/RixGem/progresspath/internal/logger"
	"github.com/RixGem/progresspath/internal/models"
)

// ErrNoItems is returned when every batch in the run was abandoned.
// Any non-zero total is a success, possibly partial.
var ErrNoItems = errors.New("generation produced no items: every batch failed")

// TextGenerator is the generative-service call for one batch. Implemented
// by ai.GeminiClient; substituted in tests.
type TextGenerator interface {
	GenerateBatch(ctx context.Context, req models.GenerationRequest) (string, error)
}

// Options tune one generation run.
type Options struct {
	// TargetCount is the total number of items to aim for.
	TargetCount int
	// BatchSize is the fixed per-call item count. It is never adapted
	// to earlier shortfalls.
	BatchSize int
	// MaxRetries is the number of retries after the first attempt of a
	// batch; a batch is abandoned after MaxRetries+1 total attempts.
	MaxRetries int
	// InitialRetryDelay seeds the exponential backoff:
	// delay = InitialRetryDelay * 2^failedAttempts.
	InitialRetryDelay time.Duration
	// BatchPause is the fixed pause between successive batches, to stay
	// under upstream rate limits.
	BatchPause time.Duration

	LanguageDistribution map[string]int
	CategoryWeights      map[string]int

	// Sleep is the delay function; defaults to time.Sleep. Tests inject
	// a recorder to run the full backoff path without waiting.
	Sleep func(time.Duration)
}

// Generator produces up to TargetCount validated items by issuing
// sequential bounded batches. Batches are independent: a failed batch
// contributes zero items and its shortfall is never requested again
// from a later batch.
type Generator struct {
	client TextGenerator
	opts   Options
}

// Result is the aggregate of one run, in batch completion order.
type Result struct {
	Items         []models.ContentItem
	Batches       int
	FailedBatches int
}

// Partial reports whether some batches were abandoned.
func (r *Result) Partial() bool {
	return r.FailedBatches > 0
}

func New(client TextGenerator, opts Options) *Generator {
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}
	return &Generator{client: client, opts: opts}
}

// Generate runs all batches sequentially and aggregates their items.
// It fails only when every batch yields zero items.
func (g *Generator) Generate(ctx context.Context) (*Result, error) {
	log := logger.Get()

	numBatches := (g.opts.TargetCount + g.opts.BatchSize - 1) / g.opts.BatchSize
	result := &Result{Batches: numBatches}

	for i := 0; i < numBatches; i++ {
		if i > 0 && g.opts.BatchPause > 0 {
			g.opts.Sleep(g.opts.BatchPause)
		}

		size := g.opts.BatchSize
		if remaining := g.opts.TargetCount - i*g.opts.BatchSize; remaining < size {
			size = remaining
		}

		batch := g.generateBatch(ctx, i, size)
		if len(batch.Items) == 0 {
			result.FailedBatches++
			continue
		}

		result.Items = append(result.Items, batch.Items...)
		log.Info().
			Int("batch", i+1).
			Int("of", numBatches).
			Int("items", len(batch.Items)).
			Int("attempts", batch.Attempts).
			Msg("Batch completed")
	}

	if len(result.Items) == 0 {
		return nil, ErrNoItems
	}

	if result.Partial() {
		log.Warn().
			Int("generated", len(result.Items)).
			Int("target", g.opts.TargetCount).
			Int("failed_batches", result.FailedBatches).
			Msg("Generation finished short of target; abandoned batches are not re-requested")
	}

	return result, nil
}

// generateBatch runs one batch through the retry loop. Transport,
// parse and validation failures are all treated the same: the batch is
// retried with exponential backoff until the attempt budget runs out.
func (g *Generator) generateBatch(ctx context.Context, index, size int) models.BatchResult {
	log := logger.Get()

	req := models.GenerationRequest{
		BatchSize:            size,
		LanguageDistribution: g.opts.LanguageDistribution,
		CategoryWeights:      g.opts.CategoryWeights,
	}

	var lastErr error
	for attempt := 0; attempt <= g.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := g.opts.InitialRetryDelay << (attempt - 1)
			log.Debug().
				Int("batch", index+1).
				Int("attempt", attempt+1).
				Dur("backoff", delay).
				Msg("Retrying batch after backoff")
			g.opts.Sleep(delay)
		}

		raw, err := g.client.GenerateBatch(ctx, req)
		if err != nil {
			lastErr = err
			log.Warn().Err(err).
				Int("batch", index+1).
				Int("attempt", attempt+1).
				Msg("Batch call failed")
			continue
		}

		items, err := ai.ParseQuoteBatch(raw, size)
		if err != nil {
			lastErr = err
			log.Warn().Err(err).
				Int("batch", index+1).
				Int("attempt", attempt+1).
				Msg("Batch response rejected")
			continue
		}

		return models.BatchResult{Items: items, Attempts: attempt + 1}
	}

	log.Error().Err(lastErr).
		Int("batch", index+1).
		Int("attempts", g.opts.MaxRetries+1).
		Msg("Batch abandoned")

	return models.BatchResult{Attempts: g.opts.MaxRetries + 1}
}
