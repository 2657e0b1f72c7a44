// Package aggregator implements the Search Aggregator: fan-out across
// enabled providers, completed/in-flight caching, language filtering
// (candidates arrive already normalized by their provider; any with an
// empty code are dropped), and optional score-backed ranking with a
// per-language quota.
//
// The parallel fan-out shape follows a sync.WaitGroup-joined
// goroutine-per-source fan-out; a provider that fails is logged and
// contributes no candidates instead of failing the whole aggregate.
package aggregator

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"subaddon/internal/provider"
	"subaddon/internal/score"
	"subaddon/models"
)

const (
	completedCacheSize = 5000
	completedCacheTTL = time.Hour
	inflightCacheSize = 200
	inflightCacheTTL = 5 * time.Second

	// DefaultQuotaListing is the per-language quota Search applies when
	// the caller passes none (the subtitle listing path).
	// DefaultQuotaTranslationSelector is the quota for the translation
	// source-selection path; no caller in this repository passes it.
	DefaultQuotaListing = 12
	DefaultQuotaTranslationSelector = 20
)

type inflightEntry struct {
	done chan struct{}
	result []models.SubtitleCandidate
}

// Aggregator fans a search out across every registered provider and ranks the results.
type Aggregator struct {
	registry *provider.Registry
	completed *lru.LRU[string, []models.SubtitleCandidate]

	mu sync.Mutex
	inflight map[string]*inflightEntry

	logger *slog.Logger
}

func New(registry *provider.Registry) *Aggregator {
	return &Aggregator{
		registry: registry,
		completed: lru.NewLRU[string, []models.SubtitleCandidate](completedCacheSize, nil, completedCacheTTL),
		inflight: make(map[string]*inflightEntry),
		logger: slog.Default().With("component", "aggregator"),
	}
}

// BuildSearchKey constructs the cache key for a search request.
func BuildSearchKey(params models.SearchParams) models.SearchKey {
	langs := make([]string, len(params.Languages))
	copy(langs, params.Languages)
	sort.Strings(langs)
	return models.SearchKey{
		ImdbID: params.ImdbID,
		Type: params.Type,
		Season: params.Season,
		Episode: params.Episode,
		Languages: strings.Join(langs, ","),
	}
}

func keyString(k models.SearchKey) string {
	return strings.Join([]string{k.ImdbID, k.Type, itoa(k.Season), itoa(k.Episode), k.Languages}, "|")
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Search fans a query out to every registered provider and returns a ranked,
// quota-enforced, language-filtered candidate list.
func (a *Aggregator) Search(ctx context.Context, params models.SearchParams, quotaPerLanguage int) ([]models.SubtitleCandidate, error) {
	key := keyString(BuildSearchKey(params))

	if cached, ok := a.completed.Get(key); ok {
		a.completed.Add(key, cached) // age-refreshed on hit
		return copyCandidates(cached), nil
	}

	a.mu.Lock()
	if entry, ok := a.inflight[key]; ok {
		a.mu.Unlock()
		<-entry.done
		return copyCandidates(entry.result), nil
	}
	entry := &inflightEntry{done: make(chan struct{})}
	a.inflight[key] = entry
	a.mu.Unlock()

	result := a.doSearch(ctx, params, quotaPerLanguage)

	a.completed.Add(key, result)
	entry.result = result
	close(entry.done)

	a.mu.Lock()
	delete(a.inflight, key)
	a.mu.Unlock()

	return copyCandidates(result), nil
}

func (a *Aggregator) doSearch(ctx context.Context, params models.SearchParams, quotaPerLanguage int) []models.SubtitleCandidate {
	providers := a.registry.All()
	type partial struct {
		candidates []models.SubtitleCandidate
	}
	results := make(chan partial, len(providers))

	var wg sync.WaitGroup
	for _, p := range providers {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, provider.DefaultSearchTimeout)
			defer cancel()
			candidates, err := p.SearchSubtitles(pctx, params)
			if err != nil {
				a.logger.Warn("provider search error", "provider", p.Name(), "error", err)
				results <- partial{}
				return
			}
			results <- partial{candidates: candidates}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	requestedLanguages := make(map[string]bool, len(params.Languages))
	for _, l := range params.Languages {
		requestedLanguages[l] = true
	}

	var all []models.SubtitleCandidate
	for r := range results {
		for _, c := range r.candidates {
			if c.LanguageCode == "" {
				continue
			}
			if len(requestedLanguages) > 0 && !requestedLanguages[c.LanguageCode] {
				continue
			}
			all = append(all, c)
		}
	}

	if params.StreamFilename != "" {
		for i := range all {
			all[i].MatchScore = score.Score(params.StreamFilename, all[i].ReleaseName)
		}
		if quotaPerLanguage <= 0 {
			quotaPerLanguage = DefaultQuotaListing
		}
		all = score.Rank(all, quotaPerLanguage)
	}

	return all
}

func copyCandidates(in []models.SubtitleCandidate) []models.SubtitleCandidate {
	out := make([]models.SubtitleCandidate, len(in))
	copy(out, in)
	return out
}
