package refresh

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/RixGem/progresspath/internal/cache"
	"github.com/RixGem/progresspath/internal/config"
	"github.com/RixGem/progresspath/internal/generate"
	"github.com/RixGem/progresspath/internal/logger"
	"github.com/RixGem/progresspath/internal/models"
	"github.com/RixGem/progresspath/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	_ = logger.Init(logger.Config{Level: "disabled", Output: "stdout"})
	os.Exit(m.Run())
}

type fakeGenerator struct {
	result *generate.Result
	err    error
	calls  int
}

func (f *fakeGenerator) Generate(ctx context.Context) (*generate.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

// fakeDayStore reproduces the replace semantics in memory: delete every
// row not tagged with dayID, then append the new items with fresh ids.
type fakeDayStore struct {
	rows         []models.QuoteRow
	nextID       int64
	replaceCalls int
	listCalls    int
	replaceErr   error
}

func (f *fakeDayStore) ReplaceDay(ctx context.Context, dayID string, items []models.ContentItem) (*store.ReplaceResult, error) {
	f.replaceCalls++
	if f.replaceErr != nil {
		return nil, f.replaceErr
	}

	var kept []models.QuoteRow
	var deleted int64
	for _, r := range f.rows {
		if r.DayID == dayID {
			kept = append(kept, r)
		} else {
			deleted++
		}
	}

	for _, item := range items {
		f.nextID++
		kept = append(kept, models.QuoteRow{
			ID:           f.nextID,
			DayID:        dayID,
			Text:         item.Text,
			Author:       item.Author,
			LanguageCode: item.LanguageCode,
			Translation:  item.Translation,
			Category:     item.Category,
			CreatedAt:    time.Now(),
		})
	}
	f.rows = kept

	return &store.ReplaceResult{
		DayID:         dayID,
		DeletedCount:  deleted,
		InsertedCount: len(items),
	}, nil
}

func (f *fakeDayStore) ListOtherDays(ctx context.Context, dayID string) ([]models.QuoteRow, error) {
	f.listCalls++
	var other []models.QuoteRow
	for _, r := range f.rows {
		if r.DayID != dayID {
			other = append(other, r)
		}
	}
	return other, nil
}

type fakeArchiver struct {
	datasets [][]models.QuoteRow
	err      error
}

func (f *fakeArchiver) ArchiveDataset(ctx context.Context, dayID string, rows []models.QuoteRow) error {
	f.datasets = append(f.datasets, rows)
	return f.err
}

func validConfig() *config.Config {
	return &config.Config{
		AIApiKey:      "key",
		DatabaseURL:   "postgres://localhost/progresspath",
		RefreshSecret: "secret",
		StatusTTL:     time.Hour,
	}
}

func generated(n int, failedBatches int) *generate.Result {
	items := make([]models.ContentItem, n)
	for i := range items {
		items[i] = models.ContentItem{Text: "Quote", Author: "Author", LanguageCode: "en"}
	}
	return &generate.Result{Items: items, Batches: n/5 + failedBatches, FailedBatches: failedBatches}
}

func seedRows(dayID string, n int) []models.QuoteRow {
	rows := make([]models.QuoteRow, n)
	for i := range rows {
		rows[i] = models.QuoteRow{
			ID:           int64(i + 1),
			DayID:        dayID,
			Text:         "Old quote",
			Author:       "Old author",
			LanguageCode: "en",
		}
	}
	return rows
}

func TestRunConfigFailureBlocksNetworkAndStorage(t *testing.T) {
	gen := &fakeGenerator{result: generated(10, 0)}
	st := &fakeDayStore{rows: seedRows("2026-08-22", 4)}
	summaries := cache.NewMockRunSummaryCache()

	p := NewPipeline(&config.Config{}, gen, st, nil, summaries)
	summary, err := p.Run(context.Background())

	require.Error(t, err)
	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, FailureConfig, runErr.Point)

	var missing *config.MissingConfigError
	assert.ErrorAs(t, err, &missing)

	assert.Equal(t, 0, gen.calls)
	assert.Equal(t, 0, st.replaceCalls)
	assert.Equal(t, 0, st.listCalls)
	assert.Len(t, st.rows, 4) // untouched

	assert.False(t, summary.Success)
	assert.Equal(t, FailureConfig, summary.FailurePoint)
	assert.Equal(t, StateFailed, p.State())
}

func TestRunTotalGenerationFailureLeavesStoreUntouched(t *testing.T) {
	gen := &fakeGenerator{err: generate.ErrNoItems}
	st := &fakeDayStore{rows: seedRows("2026-08-22", 4)}
	summaries := cache.NewMockRunSummaryCache()

	p := NewPipeline(validConfig(), gen, st, nil, summaries)
	summary, err := p.Run(context.Background())

	require.ErrorIs(t, err, generate.ErrNoItems)
	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, FailureGeneration, runErr.Point)

	// The key invariant: zero delete/insert calls, prior dataset intact.
	assert.Equal(t, 0, st.replaceCalls)
	assert.Len(t, st.rows, 4)

	assert.False(t, summary.Success)
	assert.Equal(t, StateFailed, p.State())
}

func TestRunSuccess(t *testing.T) {
	gen := &fakeGenerator{result: generated(10, 0)}
	st := &fakeDayStore{rows: seedRows("2026-08-22", 4)}
	summaries := cache.NewMockRunSummaryCache()

	p := NewPipeline(validConfig(), gen, st, nil, summaries)
	summary, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, summary.Success)
	assert.Equal(t, 10, summary.Generated)
	assert.Equal(t, int64(4), summary.DeletedCount)
	assert.Equal(t, 10, summary.InsertedCount)
	assert.False(t, summary.Partial)
	assert.Equal(t, StateDone, p.State())
	assert.Len(t, st.rows, 10)

	recorded, err := summaries.LastRun(context.Background())
	require.NoError(t, err)
	assert.True(t, recorded.Success)
	assert.Equal(t, 10, recorded.InsertedCount)
}

func TestRunPartialGenerationIsStillSuccess(t *testing.T) {
	gen := &fakeGenerator{result: generated(5, 1)}
	st := &fakeDayStore{}

	p := NewPipeline(validConfig(), gen, st, nil, nil)
	summary, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, summary.Success)
	assert.True(t, summary.Partial)
	assert.Equal(t, 5, summary.InsertedCount)
}

func TestRunStorageFailure(t *testing.T) {
	storeErr := &store.DatabaseError{Op: "delete", Err: errors.New("connection refused")}
	gen := &fakeGenerator{result: generated(10, 0)}
	st := &fakeDayStore{replaceErr: storeErr}
	summaries := cache.NewMockRunSummaryCache()

	p := NewPipeline(validConfig(), gen, st, nil, summaries)
	summary, err := p.Run(context.Background())

	require.Error(t, err)
	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, FailureStorage, runErr.Point)

	var dbErr *store.DatabaseError
	assert.ErrorAs(t, err, &dbErr)

	assert.False(t, summary.Success)
	assert.Equal(t, FailureStorage, summary.FailurePoint)
	assert.Equal(t, StateFailed, p.State())
}

func TestRunArchivesOutgoingRows(t *testing.T) {
	gen := &fakeGenerator{result: generated(10, 0)}
	st := &fakeDayStore{rows: seedRows("2026-08-22", 3)}
	arch := &fakeArchiver{}

	p := NewPipeline(validConfig(), gen, st, arch, nil)
	_, err := p.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, arch.datasets, 1)
	assert.Len(t, arch.datasets[0], 3)
}

func TestRunArchiveFailureDoesNotFailRun(t *testing.T) {
	gen := &fakeGenerator{result: generated(10, 0)}
	st := &fakeDayStore{rows: seedRows("2026-08-22", 3)}
	arch := &fakeArchiver{err: errors.New("bucket unavailable")}

	p := NewPipeline(validConfig(), gen, st, arch, nil)
	summary, err := p.Run(context.Background())

	require.NoError(t, err)
	assert.True(t, summary.Success)
	assert.Equal(t, StateDone, p.State())
}

func TestRunTwiceSameDayAppendsSecondDataset(t *testing.T) {
	// Re-running on the same calendar day is the documented contract,
	// not a bug: the second delete (day_id <> today) removes nothing
	// from the first run, and a second full set of rows is appended.
	gen := &fakeGenerator{result: generated(10, 0)}
	st := &fakeDayStore{rows: seedRows("2026-08-22", 4)}

	p := NewPipeline(validConfig(), gen, st, nil, nil)

	first, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), first.DeletedCount)
	assert.Len(t, st.rows, 10)

	second, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), second.DeletedCount)
	assert.Equal(t, 10, second.InsertedCount)
	assert.Len(t, st.rows, 20)
}
