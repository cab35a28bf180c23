package refresh

import (
	"context"
	"fmt"
	"time"

	"github.com/RixGem/progresspath/internal/cache"
	"github.com/RixGem/progresspath/internal/config"
	"github.com/RixGem/progresspath/internal/generate"
	"github.com/RixGem/progresspath/internal/logger"
	"github.com/RixGem/progresspath/internal/models"
	"github.com/RixGem/progresspath/internal/store"
)

// State is the orchestrator's position in one run.
type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateGenerating State = "generating"
	StateReplacing  State = "replacing"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// Failure points, reported in the run summary.
const (
	FailureConfig     = "config"
	FailureGeneration = "generation"
	FailureStorage    = "storage"
)

// RunError carries where a failed run stopped.
type RunError struct {
	Point string
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("refresh failed at %s: %v", e.Point, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// ItemGenerator is the generation phase; implemented by
// generate.Generator.
type ItemGenerator interface {
	Generate(ctx context.Context) (*generate.Result, error)
}

// DayReplacer is the storage phase; implemented by store.QuoteStore.
type DayReplacer interface {
	ReplaceDay(ctx context.Context, dayID string, items []models.ContentItem) (*store.ReplaceResult, error)
	ListOtherDays(ctx context.Context, dayID string) ([]models.QuoteRow, error)
}

// DatasetArchiver snapshots outgoing rows before deletion; implemented
// by archive.Archiver.
type DatasetArchiver interface {
	ArchiveDataset(ctx context.Context, dayID string, rows []models.QuoteRow) error
}

// Pipeline sequences Validate → Generate → Replace. Its one hard
// invariant: storage is never touched unless generation produced at
// least one item, so a completely failed generation leaves yesterday's
// dataset in place.
type Pipeline struct {
	cfg       *config.Config
	generator ItemGenerator
	store     DayReplacer
	archiver  DatasetArchiver       // optional
	summaries cache.RunSummaryCache // optional
	now       func() time.Time
	state     State
}

func NewPipeline(cfg *config.Config, gen ItemGenerator, st DayReplacer, arch DatasetArchiver, summaries cache.RunSummaryCache) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		generator: gen,
		store:     st,
		archiver:  arch,
		summaries: summaries,
		now:       time.Now,
		state:     StateIdle,
	}
}

// State returns the pipeline's current state. Runs are sequential; the
// invoking scheduler must not overlap them.
func (p *Pipeline) State() State {
	return p.state
}

// Run executes one refresh cycle and always returns a terminal summary.
// The error is non-nil exactly when the summary is a failure.
func (p *Pipeline) Run(ctx context.Context) (*models.RunSummary, error) {
	log := logger.Get()
	start := p.now()
	log.Info().Msg("Starting daily quote refresh")

	p.state = StateValidating
	if err := p.cfg.RequireRefreshKeys(); err != nil {
		return p.fail(ctx, start, FailureConfig, err)
	}

	p.state = StateGenerating
	genResult, err := p.generator.Generate(ctx)
	if err != nil {
		return p.fail(ctx, start, FailureGeneration, err)
	}

	dayID := models.DayID(start)
	p.archiveOutgoing(ctx, dayID)

	p.state = StateReplacing
	replaceResult, err := p.store.ReplaceDay(ctx, dayID, genResult.Items)
	if err != nil {
		return p.fail(ctx, start, FailureStorage, err)
	}

	p.state = StateDone
	summary := &models.RunSummary{
		Success:       true,
		Timestamp:     p.now(),
		DurationMs:    p.now().Sub(start).Milliseconds(),
		Generated:     len(genResult.Items),
		DeletedCount:  replaceResult.DeletedCount,
		InsertedCount: replaceResult.InsertedCount,
		Partial:       genResult.Partial(),
	}
	p.record(ctx, summary)

	log.Info().
		Str("day_id", dayID).
		Int("generated", summary.Generated).
		Int64("deleted", summary.DeletedCount).
		Int("inserted", summary.InsertedCount).
		Bool("partial", summary.Partial).
		Int64("duration_ms", summary.DurationMs).
		Msg("Daily quote refresh completed")

	return summary, nil
}

// archiveOutgoing snapshots the rows the replace phase is about to
// delete. Best effort only: neither a store read failure nor an upload
// failure may block the refresh.
func (p *Pipeline) archiveOutgoing(ctx context.Context, dayID string) {
	if p.archiver == nil {
		return
	}
	log := logger.Get()

	rows, err := p.store.ListOtherDays(ctx, dayID)
	if err != nil {
		log.Warn().Err(err).Msg("Could not read outgoing dataset for archival; continuing without archive")
		return
	}
	if len(rows) == 0 {
		return
	}

	if err := p.archiver.ArchiveDataset(ctx, dayID, rows); err != nil {
		log.Warn().Err(err).Int("rows", len(rows)).Msg("Archival of outgoing dataset failed; continuing")
		return
	}
	log.Info().Int("rows", len(rows)).Msg("Archived outgoing dataset")
}

func (p *Pipeline) fail(ctx context.Context, start time.Time, point string, err error) (*models.RunSummary, error) {
	p.state = StateFailed
	runErr := &RunError{Point: point, Err: err}

	summary := &models.RunSummary{
		Success:      false,
		Timestamp:    p.now(),
		DurationMs:   p.now().Sub(start).Milliseconds(),
		Error:        err.Error(),
		FailurePoint: point,
	}
	p.record(ctx, summary)

	logger.Get().Error().Err(err).
		Str("failure_point", point).
		Int64("duration_ms", summary.DurationMs).
		Msg("Daily quote refresh failed")

	return summary, runErr
}

func (p *Pipeline) record(ctx context.Context, summary *models.RunSummary) {
	if p.summaries == nil {
		return
	}
	if err := p.summaries.RecordRun(ctx, *summary, p.cfg.StatusTTL); err != nil {
		logger.Get().Warn().Err(err).Msg("Could not record run summary")
	}
}
