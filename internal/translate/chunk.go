package translate

import (
	"math"

	"subaddon/internal/srt"
)

const (
	// DefaultChunkTokenBudget is the target token count per chunk
	//
	DefaultChunkTokenBudget = 12000

	// chunkOverflowFactor: adding the next entry would exceed
	// 1.2×target before a chunk is closed.
	chunkOverflowFactor = 1.2

	// oversizeEntryFactor: a single entry exceeding 1.5×target becomes
	// its own lone chunk.
	oversizeEntryFactor = 1.5

	// chunkedModeTokenThreshold triggers chunked mode regardless of
	// output cap (≈25000).
	chunkedModeTokenThreshold = 25000

	// chunkedModeOutputCapFraction: exceeding output_cap × this
	// fraction also triggers chunked mode.
	chunkedModeOutputCapFraction = 0.4

	contextBefore = 6
	contextAfter  = 3
)

// EstimateTokens applies the engine's conservative token-count heuristic:
// ceil(len/3) × 1.1.
func EstimateTokens(text string) int {
	return int(math.Ceil(float64(len(text))/3.0) * 1.1)
}

// ShouldChunk decides single-shot vs chunked mode for a source text given
// the target model's output token cap.
func ShouldChunk(sourceTokens, outputCap int) bool {
	if sourceTokens > chunkedModeTokenThreshold {
		return true
	}
	return float64(sourceTokens) > float64(outputCap)*chunkedModeOutputCapFraction
}

// Chunk is one unit of sequential translation work: the entries to
// translate, plus surrounding context entries that must not themselves be
// translated.
type Chunk struct {
	Entries []srt.Entry
	Before  []srt.Entry
	After   []srt.Entry
}

// Split packs source entries into chunks using the greedy, token-budgeted
// packing protocol, then attaches before/after context
// windows drawn from the full source.
func Split(entries []srt.Entry, tokenBudget int) []Chunk {
	if tokenBudget <= 0 {
		tokenBudget = DefaultChunkTokenBudget
	}

	var groups [][]srt.Entry
	var current []srt.Entry
	currentTokens := 0

	flush := func() {
		if len(current) > 0 {
			groups = append(groups, current)
			current = nil
			currentTokens = 0
		}
	}

	for _, e := range entries {
		entryTokens := EstimateTokens(e.Text)

		if float64(entryTokens) > float64(tokenBudget)*oversizeEntryFactor {
			flush()
			groups = append(groups, []srt.Entry{e})
			continue
		}

		if currentTokens > 0 && float64(currentTokens+entryTokens) > float64(tokenBudget)*chunkOverflowFactor {
			flush()
		}
		current = append(current, e)
		currentTokens += entryTokens
	}
	flush()

	chunks := make([]Chunk, 0, len(groups))
	startIdx := 0
	for _, g := range groups {
		endIdx := startIdx + len(g)
		chunks = append(chunks, Chunk{
			Entries: g,
			Before:  contextWindow(entries, startIdx-contextBefore, startIdx),
			After:   contextWindow(entries, endIdx, endIdx+contextAfter),
		})
		startIdx = endIdx
	}
	return chunks
}

func contextWindow(entries []srt.Entry, from, to int) []srt.Entry {
	if from < 0 {
		from = 0
	}
	if to > len(entries) {
		to = len(entries)
	}
	if from >= to {
		return nil
	}
	return entries[from:to]
}
