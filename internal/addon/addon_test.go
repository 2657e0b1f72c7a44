package addon

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subaddon/internal/aggregator"
	"subaddon/internal/cachestore"
	"subaddon/internal/orchestrator"
	"subaddon/internal/provider"
	"subaddon/internal/translate"
	"subaddon/models"
)

type stubProvider struct {
	name      string
	candidate models.SubtitleCandidate
	download  string
	err       error
}

func (p *stubProvider) Name() string { return p.name }
func (p *stubProvider) SearchSubtitles(ctx context.Context, params models.SearchParams) ([]models.SubtitleCandidate, error) {
	return []models.SubtitleCandidate{p.candidate}, nil
}
func (p *stubProvider) DownloadSubtitle(ctx context.Context, fileID string) (string, error) {
	return p.download, p.err
}
func (p *stubProvider) NormalizeLanguage(raw string) (string, bool) { return raw, true }

type noopClient struct{}

func (noopClient) Generate(ctx context.Context, model, prompt string) (translate.GenerateResult, error) {
	return translate.GenerateResult{Text: ""}, nil
}
func (noopClient) GenerateStream(ctx context.Context, model, prompt string, onDelta func(string)) (translate.GenerateResult, error) {
	return translate.GenerateResult{}, nil
}
func (noopClient) OutputTokenCap(model string) int { return 8192 }

func newTestFacade(t *testing.T, opts Options) *Facade {
	t.Helper()
	reg := provider.NewRegistry()
	reg.Register(&stubProvider{
		name:      "os",
		candidate: models.SubtitleCandidate{FileID: "os:1", LanguageCode: "eng", Provider: "os"},
		download:  "1\n00:00:01,000 --> 00:00:02,000\nHello.\n",
	})
	agg := aggregator.New(reg)

	store := cachestore.New(afero.NewMemMapFs(), "/cache")
	require.NoError(t, store.EnsureDirs())
	engine := translate.New(noopClient{})
	orch := orchestrator.New(store, reg, engine)

	return New(agg, orch, reg, opts)
}

func TestListSubtitles_BuildsRealAndTranslatePseudoEntries(t *testing.T) {
	f := newTestFacade(t, Options{
		PublicBaseURL:   "http://localhost:8080",
		TargetLanguages: []string{"spa"},
	})

	result := f.ListSubtitles(context.Background(), models.SearchParams{
		ImdbID: "tt1", Type: "movie", Languages: []string{"eng"},
	}, 0)

	require.Len(t, result.Subtitles, 2)
	assert.Equal(t, "os:1", result.Subtitles[0].ID)
	assert.Equal(t, "eng", result.Subtitles[0].Lang)
	assert.Equal(t, "http://localhost:8080/subtitle/os:1/eng.srt", result.Subtitles[0].URL)

	pseudo := result.Subtitles[1]
	assert.Equal(t, "translate_os:1_to_spa", pseudo.ID)
	assert.Equal(t, "Make Spanish", pseudo.Lang)
	assert.Equal(t, "http://localhost:8080/translate/os:1/spa", pseudo.URL)
}

func TestListSubtitles_AppendsActionEntriesWhenEnabled(t *testing.T) {
	f := newTestFacade(t, Options{
		PublicBaseURL:         "http://host",
		EnableSyncAction:      true,
		EnableTranslateAction: true,
	})
	result := f.ListSubtitles(context.Background(), models.SearchParams{ImdbID: "tt1", Type: "movie", Languages: []string{"eng"}}, 0)

	var labels []string
	for _, e := range result.Subtitles {
		labels = append(labels, e.Lang)
	}
	assert.Contains(t, labels, "Sync Subtitles")
	assert.Contains(t, labels, "Translate SRT")
}

func TestDownloadSubtitle_UnknownProviderReturnsUnavailableSentinel(t *testing.T) {
	f := newTestFacade(t, Options{PublicBaseURL: "http://host"})
	out := f.DownloadSubtitle(context.Background(), "unknown:1")
	assert.Contains(t, out, "no longer available")
}

func TestDownloadSubtitle_RoutesToOwningProvider(t *testing.T) {
	f := newTestFacade(t, Options{PublicBaseURL: "http://host"})
	out := f.DownloadSubtitle(context.Background(), "os:1")
	assert.Contains(t, out, "Hello.")
}
