// Package translate implements the Translation Engine: token-budgeted
// chunking with context windows, sequential (optionally streaming) LLM
// calls, output cleanup, and reassembly.
package translate

import (
	"context"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"

	"subaddon/internal/srt"
	"subaddon/models"
)

const (
	// MinSourceBytes below which a source is rejected as INVALID_SOURCE.
	MinSourceBytes = 50

	chunkRetryAttempts = 3
	chunkRetryBaseDelay = 2 * time.Second

	interChunkDelayMin = 500 * time.Millisecond
	interChunkDelayMax = time.Second
)

// Progress receives the full-so-far translated SRT after every completed
// chunk (batch mode) or on every token delta (streaming mode).
type Progress func(partialSRT string)

// Options configures one Translate call.
type Options struct {
	Model string
	ChunkBudget int
	Streaming bool
}

type Engine struct {
	client Client
	logger *slog.Logger
	sleep func(time.Duration)
}

func New(client Client) *Engine {
	return &Engine{
		client: client,
		logger: slog.Default().With("component", "translate-engine"),
		sleep: time.Sleep,
	}
}

// Translate translates sourceSRT into targetLanguage, choosing single-shot
// or chunked mode by an input-size policy.
func (e *Engine) Translate(ctx context.Context, sourceSRT, targetLanguage string, opts Options, progress Progress) (string, *Error) {
	if len(sourceSRT) < MinSourceBytes {
		return "", &Error{Type: models.ErrorTypeInvalidSource, Message: "source subtitle is smaller than the minimum accepted size"}
	}

	entries := srt.Parse(sourceSRT)
	sourceTokens := EstimateTokens(sourceSRT)
	outputCap := e.client.OutputTokenCap(opts.Model)

	if !ShouldChunk(sourceTokens, outputCap) {
		result, translatedEntries, terr := e.translateSingleShot(ctx, sourceSRT, entries, targetLanguage, opts)
		if terr == nil {
			out := srt.ToSRT(srt.Reindex(translatedEntries))
			if progress != nil {
				progress(out)
			}
			return out, nil
		}
		if !terr.ShouldChunk {
			return "", terr
		}
		e.logger.Info("falling back to chunked mode after MAX_TOKENS", "chars", len(sourceSRT))
		_ = result
	}

	return e.translateChunked(ctx, entries, targetLanguage, opts, progress)
}

func (e *Engine) translateSingleShot(ctx context.Context, sourceSRT string, entries []srt.Entry, targetLanguage string, opts Options) (GenerateResult, []srt.Entry, *Error) {
	chunk := Chunk{Entries: entries}
	prompt := BuildPrompt(chunk, targetLanguage)

	result, err := e.generateWithRetry(ctx, opts.Model, prompt)
	if err != nil {
		return GenerateResult{}, nil, classifyOrDefault(err)
	}

	if classified := classify(result.FinishReason, nil); classified != nil && classified.Type == models.ErrorTypeMaxTokens {
		acceptPartial, needsSmaller := evaluateMaxTokens(len(sourceSRT), len(result.Text))
		if !acceptPartial {
			classified.NeedsSmallerChunks = needsSmaller
			return result, nil, classified
		}
	}

	cleaned := srt.Normalize(result.Text)
	translated := srt.Parse(cleaned)
	return result, translated, nil
}

func (e *Engine) translateChunked(ctx context.Context, entries []srt.Entry, targetLanguage string, opts Options, progress Progress) (string, *Error) {
	budget := opts.ChunkBudget
	if budget <= 0 {
		budget = DefaultChunkTokenBudget
	}
	chunks := Split(entries, budget)

	var translated []srt.Entry
	for i, chunk := range chunks {
		prompt := BuildPrompt(chunk, targetLanguage)

		var result GenerateResult
		var genErr error
		if opts.Streaming {
			result, genErr = e.client.GenerateStream(ctx, opts.Model, prompt, func(textSoFar string) {
				if progress == nil {
					return
				}
				partial := append(append([]srt.Entry{}, translated...), srt.Parse(textSoFar)...)
				progress(srt.ToSRT(srt.Reindex(partial)))
			})
		} else {
			result, genErr = e.generateWithRetry(ctx, opts.Model, prompt)
		}
		if genErr != nil {
			return "", classifyOrDefault(genErr)
		}

		sourceLen := 0
		for _, en := range chunk.Entries {
			sourceLen += len(en.Text)
		}
		if classified := classify(result.FinishReason, nil); classified != nil && classified.Type == models.ErrorTypeMaxTokens {
			acceptPartial, needsSmaller := evaluateMaxTokens(sourceLen, len(result.Text))
			if !acceptPartial {
				classified.NeedsSmallerChunks = needsSmaller
				return "", classified
			}
		}

		cleaned := srt.Normalize(result.Text)
		translated = append(translated, srt.Parse(cleaned)...)

		if progress != nil {
			progress(srt.ToSRT(srt.Reindex(append([]srt.Entry{}, translated...))))
		}

		if i < len(chunks)-1 {
			e.sleep(interChunkDelayMin + (interChunkDelayMax-interChunkDelayMin)/2)
		}
	}

	return srt.ToSRT(srt.Reindex(translated)), nil
}

func (e *Engine) generateWithRetry(ctx context.Context, model, prompt string) (GenerateResult, error) {
	var result GenerateResult
	err := retry.Do(
		func() error {
			r, err := e.client.Generate(ctx, model, prompt)
			if err != nil {
				if !isRetryable(err) {
					return retry.Unrecoverable(err)
				}
				return err
			}
			result = r
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(chunkRetryAttempts),
		retry.Delay(chunkRetryBaseDelay),
		retry.DelayType(retry.BackOffDelay),
	)
	return result, err
}

func isRetryable(err error) bool {
	classified := classify("", err)
	return classified != nil && (classified.Type == models.ErrorType429 || classified.Type == models.ErrorType503)
}

func classifyOrDefault(err error) *Error {
	if classified := classify("", err); classified != nil {
		return classified
	}
	return &Error{Type: models.ErrorTypeOther, Message: err.Error()}
}
