package orchestrator

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subaddon/internal/cachestore"
	"subaddon/internal/provider"
	"subaddon/internal/srt"
	"subaddon/internal/translate"
	"subaddon/models"
)

const fakeSourceSRT = `1
00:00:01,000 --> 00:00:02,000
This is the first line of a subtitle that needs to be long enough.

2
00:00:03,000 --> 00:00:04,000
This is the second line, also padded out so the source clears the minimum size threshold.
`

const fakeTranslatedSRT = `1
00:00:01,000 --> 00:00:02,000
Esta es la primera linea.

2
00:00:03,000 --> 00:00:04,000
Esta es la segunda linea.
`

type fakeProvider struct {
	name    string
	content string
	err     error
}

func (p *fakeProvider) Name() string { return p.name }
func (p *fakeProvider) SearchSubtitles(ctx context.Context, params models.SearchParams) ([]models.SubtitleCandidate, error) {
	return nil, nil
}
func (p *fakeProvider) DownloadSubtitle(ctx context.Context, fileID string) (string, error) {
	return p.content, p.err
}
func (p *fakeProvider) NormalizeLanguage(raw string) (string, bool) { return raw, true }

type fakeClient struct {
	release chan struct{}
	text    string
}

func (c *fakeClient) Generate(ctx context.Context, model, prompt string) (translate.GenerateResult, error) {
	if c.release != nil {
		<-c.release
	}
	return translate.GenerateResult{Text: c.text}, nil
}

func (c *fakeClient) GenerateStream(ctx context.Context, model, prompt string, onDelta func(string)) (translate.GenerateResult, error) {
	r, err := c.Generate(ctx, model, prompt)
	if onDelta != nil {
		onDelta(r.Text)
	}
	return r, err
}

func (c *fakeClient) OutputTokenCap(model string) int { return 8192 }

func newTestOrchestrator(t *testing.T, client translate.Client) (*Orchestrator, *provider.Registry) {
	t.Helper()
	store := cachestore.New(afero.NewMemMapFs(), "/cache")
	require.NoError(t, store.EnsureDirs())

	registry := provider.NewRegistry()
	registry.Register(&fakeProvider{name: "fake", content: fakeSourceSRT})

	engine := translate.New(client)
	return New(store, registry, engine), registry
}

func waitForFinalResult(t *testing.T, orch *Orchestrator, sourceFileID, targetLanguage string, cfg Config) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		out := orch.HandleTranslation(context.Background(), sourceFileID, targetLanguage, cfg)
		entries := srt.Parse(out)
		if len(entries) > 0 && !strings.Contains(out, "in progress") && !strings.Contains(out, "IN PROGRESS") {
			return out
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("translation did not complete in time")
	return ""
}

func TestHandleTranslation_FirstCallReturnsLoadingSentinel(t *testing.T) {
	orch, _ := newTestOrchestrator(t, &fakeClient{text: fakeTranslatedSRT})
	out := orch.HandleTranslation(context.Background(), "fake:movie1", "spa", Config{})
	assert.Contains(t, out, "in progress")
}

func TestHandleTranslation_EventuallyServesFinalTranslation(t *testing.T) {
	orch, _ := newTestOrchestrator(t, &fakeClient{text: fakeTranslatedSRT})
	out := waitForFinalResult(t, orch, "fake:movie2", "spa", Config{})
	entries := srt.Parse(out)
	require.Len(t, entries, 2)
	assert.Equal(t, "Esta es la primera linea.", entries[0].Text)
}

func TestHandleTranslation_ErrorEntryIsServedOnceThenDeleted(t *testing.T) {
	store := cachestore.New(afero.NewMemMapFs(), "/cache")
	require.NoError(t, store.EnsureDirs())
	registry := provider.NewRegistry()
	registry.Register(&fakeProvider{name: "fake", content: "", err: assertableErr{}})
	engine := translate.New(&fakeClient{text: fakeTranslatedSRT})
	orch := New(store, registry, engine)

	cacheKey := models.CacheKey("fake:badmovie", "spa", false, "")
	_ = store.Set(models.PartitionTranslation, cacheKey, models.CacheEntry{
		IsError:   true,
		ErrorType: models.ErrorTypeOther,
	}, 0)

	first := orch.HandleTranslation(context.Background(), "fake:badmovie", "spa", Config{})
	assert.Contains(t, first, "Select this subtitle again to retry")

	second := orch.HandleTranslation(context.Background(), "fake:badmovie", "spa", Config{})
	assert.Contains(t, second, "in progress")
}

func TestHandleTranslation_ConcurrencyCapPerUser(t *testing.T) {
	release := make(chan struct{})
	orch, _ := newTestOrchestrator(t, &fakeClient{text: fakeTranslatedSRT, release: release})

	cfg := Config{UserHash: "user1"}
	orch.HandleTranslation(context.Background(), "fake:a", "spa", cfg)
	orch.HandleTranslation(context.Background(), "fake:b", "fra", cfg)
	orch.HandleTranslation(context.Background(), "fake:c", "deu", cfg)

	limited := orch.HandleTranslation(context.Background(), "fake:d", "ita", cfg)
	assert.Contains(t, limited, "maximum number of simultaneous translations")

	close(release)
}

func TestHandleTranslation_BypassEntryWithNoConfigHashNeverServedToAnonymousCaller(t *testing.T) {
	store := cachestore.New(afero.NewMemMapFs(), "/cache")
	require.NoError(t, store.EnsureDirs())
	registry := provider.NewRegistry()
	registry.Register(&fakeProvider{name: "fake", content: fakeSourceSRT})
	engine := translate.New(&fakeClient{text: fakeTranslatedSRT})
	orch := New(store, registry, engine)

	cfg := Config{BypassEnabled: true}
	cacheKey := models.CacheKey("fake:bypassmovie", "spa", true, cfg.UserHash)
	require.NoError(t, store.Set(models.PartitionBypass, cacheKey, models.CacheEntry{
		Content: fakeTranslatedSRT,
	}, 0))

	out := orch.HandleTranslation(context.Background(), "fake:bypassmovie", "spa", cfg)
	assert.Contains(t, out, "in progress", "a bypass entry with no stored ConfigHash must never be served to an anonymous caller")
}

type assertableErr struct{}

func (assertableErr) Error() string { return "download failed" }
