// Package orchestrator implements the Translation Orchestrator: the
// per-cacheKey state machine: cache lookup, in-flight dedup, per-user
// concurrency caps, background translation, and synthesized sentinel
// SRTs for every non-final state.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"subaddon/internal/cachestore"
	"subaddon/internal/provider"
	"subaddon/internal/srt"
	"subaddon/internal/translate"
	"subaddon/models"
)

const (
	// MaxConcurrentTranslationsPerUser caps simultaneous background
	// translations per userHash.
	MaxConcurrentTranslationsPerUser = 3

	inflightTTL = 30 * time.Minute
	statusTTL = 10 * time.Minute

	inflightSize = 4096
	statusSize = 4096
)

// Config parameterizes one HandleTranslation call.
type Config struct {
	BypassEnabled bool
	UserHash string
	MinSubtitleSizeBytes int
	Model string
	ChunkBudget int
	Streaming bool
}

type future struct {
	done chan struct{}
}

type statusEntry struct {
	inProgress bool
	startedAt time.Time
	userHash string
}

// Orchestrator drives cache lookup, in-flight dedup, and background translation per cacheKey.
type Orchestrator struct {
	cache *cachestore.Store
	registry *provider.Registry
	engine *translate.Engine

	inflight *lru.LRU[string, *future]
	status *lru.LRU[string, *statusEntry]

	countsMu sync.Mutex
	counts map[string]int

	logger *slog.Logger
}

func New(cache *cachestore.Store, registry *provider.Registry, engine *translate.Engine) *Orchestrator {
	return &Orchestrator{
		cache: cache,
		registry: registry,
		engine: engine,
		inflight: lru.NewLRU[string, *future](inflightSize, nil, inflightTTL),
		status: lru.NewLRU[string, *statusEntry](statusSize, nil, statusTTL),
		counts: make(map[string]int),
		logger: slog.Default().With("component", "orchestrator"),
	}
}

// HandleTranslation runs the protocol and always returns a parseable
// SRT string — real, partial, loading, or a synthesized error/limit SRT.
// It never returns an error to its caller.
func (o *Orchestrator) HandleTranslation(ctx context.Context, sourceFileID, targetLanguage string, cfg Config) string {
	cacheKey := models.CacheKey(sourceFileID, targetLanguage, cfg.BypassEnabled, cfg.UserHash)
	partition := models.PartitionTranslation
	if cfg.BypassEnabled {
		partition = models.PartitionBypass
	}

	if content, ok := o.serveFromCache(partition, cacheKey, cfg.UserHash); ok {
		return content
	}

	if _, ok := o.inflight.Get(cacheKey); ok {
		if content, ok := o.serveFromCache(partition, cacheKey, cfg.UserHash); ok {
			return content
		}
		if partial, ok := o.cache.Get(models.PartitionPartial, cacheKey, cfg.UserHash); ok {
			return partial.Content
		}
		return srt.Sentinel(loadingMessage)
	}

	if o.countFor(cfg.UserHash) >= MaxConcurrentTranslationsPerUser {
		return srt.Sentinel(concurrencyLimitMessage)
	}

	o.incrementCount(cfg.UserHash)
	o.status.Add(cacheKey, &statusEntry{inProgress: true, startedAt: time.Now(), userHash: cfg.UserHash})
	f := &future{done: make(chan struct{})}
	o.inflight.Add(cacheKey, f)

	go o.runBackground(sourceFileID, targetLanguage, cacheKey, partition, cfg, f)

	return srt.Sentinel(loadingMessage)
}

// serveFromCache reads the owning partition and applies the error-entry
// one-shot auto-retry rule: an error entry is surfaced once, then deleted.
func (o *Orchestrator) serveFromCache(partition models.Partition, cacheKey, userHash string) (string, bool) {
	entry, ok := o.cache.Get(partition, cacheKey, userHash)
	if !ok {
		return "", false
	}
	if entry.IsError {
		_ = o.cache.Delete(partition, cacheKey)
		return srt.Sentinel(errorMessage(entry.ErrorType, entry.ErrorMessage)), true
	}
	return entry.Content, true
}

func (o *Orchestrator) countFor(userHash string) int {
	o.countsMu.Lock()
	defer o.countsMu.Unlock()
	return o.counts[userHash]
}

func (o *Orchestrator) incrementCount(userHash string) {
	o.countsMu.Lock()
	defer o.countsMu.Unlock()
	o.counts[userHash]++
}

func (o *Orchestrator) decrementCount(userHash string) {
	o.countsMu.Lock()
	defer o.countsMu.Unlock()
	if o.counts[userHash] > 0 {
		o.counts[userHash]--
	}
	if o.counts[userHash] == 0 {
		delete(o.counts, userHash)
	}
}

// runBackground performs the translation decoupled from the originating
// request: it is not cancelled when that request returns.
func (o *Orchestrator) runBackground(sourceFileID, targetLanguage, cacheKey string, partition models.Partition, cfg Config, f *future) {
	ctx := context.Background()
	traceID := uuid.NewString()
	runLog := o.logger.With("trace_id", traceID, "cache_key", cacheKey)
	defer func() {
		close(f.done)
		o.inflight.Remove(cacheKey)
		o.status.Remove(cacheKey)
		o.decrementCount(cfg.UserHash)
	}()

	owner, ok := o.registry.Owner(sourceFileID)
	if !ok {
		runLog.Warn("no provider owns source file id", "source_file_id", sourceFileID)
		o.storeError(partition, cacheKey, sourceFileID, targetLanguage, cfg.UserHash, &translate.Error{
			Type: models.ErrorTypeInvalidSource, Message: "no provider owns this source file id",
		})
		return
	}

	sourceContent, err := owner.DownloadSubtitle(ctx, sourceFileID)
	if err != nil {
		runLog.Warn("source download failed", "error", err)
		o.storeError(partition, cacheKey, sourceFileID, targetLanguage, cfg.UserHash, &translate.Error{
			Type: models.ErrorTypeOther, Message: err.Error(),
		})
		return
	}

	minSize := cfg.MinSubtitleSizeBytes
	if minSize <= 0 {
		minSize = 200
	}
	if len(sourceContent) < minSize {
		o.storeError(partition, cacheKey, sourceFileID, targetLanguage, cfg.UserHash, &translate.Error{
			Type: models.ErrorTypeInvalidSource, Message: "source subtitle below minimum size",
		})
		return
	}

	progress := o.progressWriter(cacheKey, sourceFileID, targetLanguage, cfg.UserHash)
	result, terr := o.engine.Translate(ctx, sourceContent, targetLanguage, translate.Options{
		Model: cfg.Model, ChunkBudget: cfg.ChunkBudget, Streaming: cfg.Streaming,
	}, progress)
	if terr != nil {
		o.storeError(partition, cacheKey, sourceFileID, targetLanguage, cfg.UserHash, terr)
		return
	}

	ttl := time.Duration(0)
	if partition == models.PartitionBypass {
		ttl = 12 * time.Hour
	}
	_ = o.cache.Set(partition, cacheKey, models.CacheEntry{
		Content: result,
		SourceFileID: sourceFileID,
		TargetLanguage: targetLanguage,
		ConfigHash: cfg.UserHash,
	}, ttl)
	_ = o.cache.Delete(models.PartitionPartial, cacheKey)
}

func (o *Orchestrator) storeError(partition models.Partition, cacheKey, sourceFileID, targetLanguage, userHash string, terr *translate.Error) {
	_ = o.cache.Set(partition, cacheKey, models.CacheEntry{
		SourceFileID: sourceFileID,
		TargetLanguage: targetLanguage,
		ConfigHash: userHash,
		IsError: true,
		ErrorType: terr.Type,
		ErrorMessage: terr.Message,
	}, 0)
	_ = o.cache.Delete(models.PartitionPartial, cacheKey)
}

// progressWriter persists partial translations to the PARTIAL partition.
// Every call here corresponds to one completed chunk (or, in streaming
// mode, one token delta of the current chunk); every call is written to
// PARTIAL immediately, with no throttling.
func (o *Orchestrator) progressWriter(cacheKey, sourceFileID, targetLanguage, userHash string) translate.Progress {
	return func(partialSRT string) {
		entries := srt.Parse(partialSRT)
		var content string
		if len(entries) == 0 {
			content = partialSRT + "\n\n(TRANSLATION IN PROGRESS)"
		} else {
			withTail := srt.AppendProgressTail(entries, progressTailMessage)
			content = srt.ToSRT(withTail)
		}
		_ = o.cache.Set(models.PartitionPartial, cacheKey, models.CacheEntry{
			Content: content,
			SourceFileID: sourceFileID,
			TargetLanguage: targetLanguage,
			ConfigHash: userHash,
		}, 0)
	}
}

const (
	loadingMessage = "Translation in progress. Reload this subtitle in a moment to check again."
	concurrencyLimitMessage = "You have reached the maximum number of simultaneous translations. Please wait for one to finish before starting another."
	progressTailMessage = "TRANSLATION IN PROGRESS / Reload this subtitle later to get more"
)

func errorMessage(errType models.ErrorType, detail string) string {
	switch errType {
	case models.ErrorTypeSafety:
		return "Translation was blocked by the safety filter. Select this subtitle again to retry."
	case models.ErrorTypeMaxTokens:
		return "Translation was truncated at the model's output limit. Select this subtitle again to retry."
	case models.ErrorType429:
		return "The translation service is rate-limited. Select this subtitle again to retry."
	case models.ErrorType503:
		return "The translation service is temporarily unavailable. Select this subtitle again to retry."
	case models.ErrorTypeInvalidSource:
		return "The source subtitle could not be translated. Select this subtitle again to retry with another source."
	default:
		return fmt.Sprintf("Translation failed (%s). Select this subtitle again to retry.", detail)
	}
}
