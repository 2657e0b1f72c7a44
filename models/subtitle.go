package models

import "time"

// SubtitleCandidate is a discovered-but-not-downloaded subtitle as returned
// by the Search Aggregator. Its languageCode invariant (a valid
// 3-letter ISO-639-2 code, or dropped) is enforced by the provider layer
// before a candidate is ever constructed.
type SubtitleCandidate struct {
	// FileID is opaque and provider-prefixed (e.g. "os:12345", "subdl:abcde")
	// so the orchestrator and facade can route downloads back to the
	// owning provider by inspecting the prefix.
	FileID string

	Language string // raw, as reported by the provider
	LanguageCode string // normalized 3-letter ISO-639-2

	ReleaseName string // may be empty
	Downloads int
	Rating float64
	UploadDate time.Time

	Provider string // provider identity (registry key)

	// ProviderPrivateID is the provider's own identifier for this file,
	// opaque outside the provider that issued it.
	ProviderPrivateID string

	HearingImpaired bool
	ForeignPartsOnly bool
	MachineTranslated bool

	IsSeasonPack bool
	EpisodeRangeStart int // 0 if unknown
	EpisodeRangeEnd int // 0 if unknown

	// MatchScore is computed by the Match Scorer; transient, not
	// part of the provider's wire response.
	MatchScore int
}

// SearchParams describes a subtitle discovery request, used to build the
// SearchKey for the aggregator's in-flight dedup cache.
type SearchParams struct {
	ImdbID string
	Type string // "movie" | "episode"
	Season int
	Episode int
	Languages []string
	StreamFilename string // optional; when present, enables ranking + quota
}

// SearchKey is the cache key for a completed/in-flight search.
type SearchKey struct {
	ImdbID string
	Type string
	Season int
	Episode int
	Languages string // sorted, comma-joined languages
}
