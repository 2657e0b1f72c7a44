// Package addon implements the Addon Facade: the three stremio-style
// operations (list, download, translate) that sit in front of the Search
// Aggregator and Translation Orchestrator.
package addon

import (
	"context"
	"fmt"
	"strings"

	"subaddon/internal/aggregator"
	"subaddon/internal/language"
	"subaddon/internal/orchestrator"
	"subaddon/internal/provider"
	"subaddon/internal/srt"
	"subaddon/models"
)

// Entry is one addon listing row: {id, lang, url}.
type Entry struct {
	ID string `json:"id"`
	Lang string `json:"lang"`
	URL string `json:"url"`
}

// ListResult is the addon list endpoint's response body.
type ListResult struct {
	Subtitles []Entry `json:"subtitles"`
}

// Options configures facade-wide behavior that does not vary per request.
type Options struct {
	PublicBaseURL string
	TargetLanguages []string
	EnableSyncAction bool
	EnableTranslateAction bool
}

// Facade wires the aggregator and orchestrator into the three addon-facing operations.
type Facade struct {
	aggregator *aggregator.Aggregator
	orchestrator *orchestrator.Orchestrator
	registry *provider.Registry
	opts Options
}

func New(agg *aggregator.Aggregator, orch *orchestrator.Orchestrator, registry *provider.Registry, opts Options) *Facade {
	return &Facade{aggregator: agg, orchestrator: orch, registry: registry, opts: opts}
}

// ListSubtitles invokes the aggregator, builds real subtitle entries, appends one
// translate pseudo-entry per (real candidate, configured target language)
// pair, and appends the configured action pseudo-entries.
func (f *Facade) ListSubtitles(ctx context.Context, params models.SearchParams, quotaPerLanguage int) ListResult {
	candidates, err := f.aggregator.Search(ctx, params, quotaPerLanguage)
	if err != nil {
		candidates = nil
	}

	entries := make([]Entry, 0, len(candidates)*(1+len(f.opts.TargetLanguages))+2)
	for _, c := range candidates {
		entries = append(entries, Entry{
			ID: c.FileID,
			Lang: c.LanguageCode,
			URL: f.subtitleURL(c.FileID, c.LanguageCode),
		})
	}

	for _, target := range f.opts.TargetLanguages {
		for _, c := range candidates {
			entries = append(entries, Entry{
				ID: translatePseudoID(c.FileID, target),
				Lang: fmt.Sprintf("Make %s", language.DisplayName(target)),
				URL: f.translateURL(c.FileID, target),
			})
		}
	}

	if f.opts.EnableSyncAction {
		entries = append(entries, Entry{ID: "action:sync_subtitles", Lang: "Sync Subtitles", URL: f.opts.PublicBaseURL})
	}
	if f.opts.EnableTranslateAction {
		entries = append(entries, Entry{ID: "action:translate_srt", Lang: "Translate SRT", URL: f.opts.PublicBaseURL})
	}

	return ListResult{Subtitles: entries}
}

// DownloadSubtitle routes fileID to its owning provider by prefix and
// returns its content, or an unavailable-sentinel SRT on any failure.
func (f *Facade) DownloadSubtitle(ctx context.Context, fileID string) string {
	owner, ok := f.registry.Owner(fileID)
	if !ok {
		return srt.Sentinel(provider.SentinelUnavailable)
	}
	content, err := owner.DownloadSubtitle(ctx, fileID)
	if err != nil || strings.TrimSpace(content) == "" {
		return srt.Sentinel(provider.SentinelUnavailable)
	}
	return content
}

// Translate delegates to the orchestrator, which always returns a servable SRT.
func (f *Facade) Translate(ctx context.Context, sourceFileID, targetLanguage string, cfg orchestrator.Config) string {
	return f.orchestrator.HandleTranslation(ctx, sourceFileID, targetLanguage, cfg)
}

// translatePseudoID builds the opaque listing id for a translate pseudo-entry:
// translate_<fileId>_to_<targetLang>.
func translatePseudoID(fileID, targetLanguage string) string {
	return fmt.Sprintf("translate_%s_to_%s", fileID, targetLanguage)
}

func (f *Facade) subtitleURL(fileID, langCode string) string {
	return fmt.Sprintf("%s/subtitle/%s/%s.srt", strings.TrimRight(f.opts.PublicBaseURL, "/"), fileID, langCode)
}

func (f *Facade) translateURL(fileID, targetLanguage string) string {
	return fmt.Sprintf("%s/translate/%s/%s", strings.TrimRight(f.opts.PublicBaseURL, "/"), fileID, targetLanguage)
}
