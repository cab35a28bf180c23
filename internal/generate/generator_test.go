package generate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/RixGem/progresspath/internal/logger"
	"github.com/RixGem/progresspath/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	_ = logger.Init(logger.Config{Level: "disabled", Output: "stdout"})
	os.Exit(m.Run())
}

// scriptedClient plays back one canned response per call.
type scriptedClient struct {
	responses []scriptedResponse
	requests  []models.GenerationRequest
}

type scriptedResponse struct {
	text string
	err  error
}

func (s *scriptedClient) GenerateBatch(ctx context.Context, req models.GenerationRequest) (string, error) {
	s.requests = append(s.requests, req)
	if len(s.requests) > len(s.responses) {
		return "", fmt.Errorf("unexpected call %d", len(s.requests))
	}
	r := s.responses[len(s.requests)-1]
	return r.text, r.err
}

// quotesJSON renders n well-formed items.
func quotesJSON(n int) string {
	items := make([]string, n)
	for i := range items {
		items[i] = fmt.Sprintf(`{"text": "Quote %d.", "author": "Author %d", "languageCode": "en"}`, i, i)
	}
	return "[" + strings.Join(items, ",") + "]"
}

func testOptions() Options {
	return Options{
		TargetCount:       10,
		BatchSize:         5,
		MaxRetries:        3,
		InitialRetryDelay: 100 * time.Millisecond,
		BatchPause:        time.Second,
		Sleep:             func(time.Duration) {},
	}
}

func TestGenerateAllBatchesSucceedFirstAttempt(t *testing.T) {
	client := &scriptedClient{responses: []scriptedResponse{
		{text: quotesJSON(5)},
		{text: quotesJSON(5)},
	}}

	result, err := New(client, testOptions()).Generate(context.Background())
	require.NoError(t, err)

	assert.Len(t, result.Items, 10)
	assert.Equal(t, 2, result.Batches)
	assert.Equal(t, 0, result.FailedBatches)
	assert.False(t, result.Partial())
	assert.Len(t, client.requests, 2)

	for _, req := range client.requests {
		assert.Equal(t, 5, req.BatchSize)
	}
}

func TestGenerateRetriesWithExponentialBackoff(t *testing.T) {
	client := &scriptedClient{responses: []scriptedResponse{
		{err: errors.New("connection reset")}, // batch 1, attempt 1
		{text: "not json at all"},             // batch 1, attempt 2
		{text: quotesJSON(5)},                 // batch 1, attempt 3
		{text: quotesJSON(5)},                 // batch 2, attempt 1
	}}

	var delays []time.Duration
	opts := testOptions()
	opts.Sleep = func(d time.Duration) { delays = append(delays, d) }

	result, err := New(client, opts).Generate(context.Background())
	require.NoError(t, err)
	assert.Len(t, result.Items, 10)

	// Two backoffs (100ms, 200ms) inside batch 1, then the fixed pause
	// before batch 2.
	assert.Equal(t, []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		time.Second,
	}, delays)
}

func TestGenerateAbandonsBatchWithoutCatchUp(t *testing.T) {
	// Batch 1 succeeds; batch 2 is persistently malformed and burns all
	// MaxRetries+1 attempts. Its shortfall must not trigger any extra
	// batch.
	client := &scriptedClient{responses: []scriptedResponse{
		{text: quotesJSON(5)},
		{text: quotesJSON(2)}, // short batch: rejected as a whole
		{text: quotesJSON(2)},
		{text: quotesJSON(2)},
		{text: quotesJSON(2)},
	}}

	result, err := New(client, testOptions()).Generate(context.Background())
	require.NoError(t, err)

	assert.Len(t, result.Items, 5)
	assert.Equal(t, 1, result.FailedBatches)
	assert.True(t, result.Partial())
	// 1 call for batch 1, MaxRetries+1 for batch 2, nothing more.
	assert.Len(t, client.requests, 5)
}

func TestGenerateAbandonedItemsNeverAppear(t *testing.T) {
	client := &scriptedClient{responses: []scriptedResponse{
		{text: quotesJSON(2)}, // too short every time
		{text: quotesJSON(2)},
		{text: quotesJSON(2)},
		{text: quotesJSON(2)},
		{text: quotesJSON(5)},
	}}

	result, err := New(client, testOptions()).Generate(context.Background())
	require.NoError(t, err)

	// The abandoned batch delivered 2 items per attempt; none of them
	// may leak into the aggregate.
	assert.Len(t, result.Items, 5)
}

func TestGenerateFailsOnlyWhenEveryBatchFails(t *testing.T) {
	responses := make([]scriptedResponse, 8)
	for i := range responses {
		responses[i] = scriptedResponse{err: errors.New("503 service unavailable")}
	}
	client := &scriptedClient{responses: responses}

	result, err := New(client, testOptions()).Generate(context.Background())
	require.ErrorIs(t, err, ErrNoItems)
	assert.Nil(t, result)
	assert.Len(t, client.requests, 8)
}

func TestGenerateFinalBatchIsSmallerForUnevenTarget(t *testing.T) {
	client := &scriptedClient{responses: []scriptedResponse{
		{text: quotesJSON(5)},
		{text: quotesJSON(5)},
		{text: quotesJSON(2)},
	}}

	opts := testOptions()
	opts.TargetCount = 12

	result, err := New(client, opts).Generate(context.Background())
	require.NoError(t, err)

	assert.Len(t, result.Items, 12)
	require.Len(t, client.requests, 3)
	assert.Equal(t, 5, client.requests[0].BatchSize)
	assert.Equal(t, 5, client.requests[1].BatchSize)
	assert.Equal(t, 2, client.requests[2].BatchSize)
}

func TestGenerateBatchSizeNeverAdapts(t *testing.T) {
	// Even after a shortfall the next batch asks for the fixed size.
	client := &scriptedClient{responses: []scriptedResponse{
		{text: quotesJSON(0)},
		{text: quotesJSON(0)},
		{text: quotesJSON(0)},
		{text: quotesJSON(0)},
		{text: quotesJSON(5)},
	}}

	result, err := New(client, testOptions()).Generate(context.Background())
	require.NoError(t, err)
	assert.Len(t, result.Items, 5)

	for _, req := range client.requests {
		assert.Equal(t, 5, req.BatchSize)
	}
}
