package aggregator

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subaddon/internal/provider"
	"subaddon/models"
)

type countingProvider struct {
	name      string
	calls     int32
	candidate models.SubtitleCandidate
	delay     time.Duration
}

func (c *countingProvider) Name() string { return c.name }

func (c *countingProvider) SearchSubtitles(ctx context.Context, params models.SearchParams) ([]models.SubtitleCandidate, error) {
	atomic.AddInt32(&c.calls, 1)
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	return []models.SubtitleCandidate{c.candidate}, nil
}

func (c *countingProvider) DownloadSubtitle(ctx context.Context, fileID string) (string, error) {
	return "", nil
}

func (c *countingProvider) NormalizeLanguage(raw string) (string, bool) { return raw, true }

func TestSearch_FiltersToRequestedLanguages(t *testing.T) {
	reg := provider.NewRegistry()
	reg.Register(&countingProvider{name: "p1", candidate: models.SubtitleCandidate{
		FileID: "p1:1", LanguageCode: "eng", Provider: "p1",
	}})
	reg.Register(&countingProvider{name: "p2", candidate: models.SubtitleCandidate{
		FileID: "p2:1", LanguageCode: "fre", Provider: "p2",
	}})

	agg := New(reg)
	results, err := agg.Search(context.Background(), models.SearchParams{
		ImdbID: "tt123", Type: "movie", Languages: []string{"eng"},
	}, 0)
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, "eng", results[0].LanguageCode)
}

func TestSearch_ConcurrentIdenticalCallsDedupe(t *testing.T) {
	p := &countingProvider{name: "slow", delay: 50 * time.Millisecond, candidate: models.SubtitleCandidate{
		FileID: "slow:1", LanguageCode: "eng", Provider: "slow",
	}}
	reg := provider.NewRegistry()
	reg.Register(p)
	agg := New(reg)

	params := models.SearchParams{ImdbID: "tt111", Type: "episode", Season: 1, Episode: 1, Languages: []string{"eng"}}

	done := make(chan []models.SubtitleCandidate, 2)
	go func() {
		r, _ := agg.Search(context.Background(), params, 0)
		done <- r
	}()
	time.Sleep(5 * time.Millisecond)
	go func() {
		r, _ := agg.Search(context.Background(), params, 0)
		done <- r
	}()

	r1 := <-done
	r2 := <-done
	assert.Equal(t, r1, r2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&p.calls))
}

func TestSearch_CachedResultIsCopy(t *testing.T) {
	p := &countingProvider{name: "p", candidate: models.SubtitleCandidate{
		FileID: "p:1", LanguageCode: "eng", Provider: "p",
	}}
	reg := provider.NewRegistry()
	reg.Register(p)
	agg := New(reg)

	params := models.SearchParams{ImdbID: "tt1", Type: "movie", Languages: []string{"eng"}}
	first, err := agg.Search(context.Background(), params, 0)
	require.NoError(t, err)
	first[0].FileID = "mutated"

	second, err := agg.Search(context.Background(), params, 0)
	require.NoError(t, err)
	assert.Equal(t, "p:1", second[0].FileID)
	assert.Equal(t, int32(1), atomic.LoadInt32(&p.calls))
}
