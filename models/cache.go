package models

import "time"

// Partition names the three named cache partitions the cache store maintains.
type Partition string

const (
	PartitionTranslation Partition = "translations"
	PartitionBypass Partition = "translations_bypass"
	PartitionPartial Partition = "translations_partial"
)

// ErrorType enumerates the classified terminal translation errors that get
// materialized as error-typed cache entries.
type ErrorType string

const (
	ErrorType503 ErrorType = "503"
	ErrorType429 ErrorType = "429"
	ErrorTypeMaxTokens ErrorType = "MAX_TOKENS"
	ErrorTypeSafety ErrorType = "SAFETY"
	ErrorTypeInvalidSource ErrorType = "INVALID_SOURCE"
	ErrorTypeOther ErrorType = "other"
)

// CacheEntry is one persisted cache record.
type CacheEntry struct {
	Key string `json:"key"`
	Content string `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	SourceFileID string `json:"sourceFileId"`
	TargetLanguage string `json:"targetLanguage"`

	// ConfigHash must equal the owning userHash for bypass/partial
	// partitions; entries missing it in the bypass partition are treated
	// as cache misses for security.
	ConfigHash string `json:"configHash,omitempty"`

	IsError bool `json:"isError,omitempty"`
	ErrorType ErrorType `json:"errorType,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// Expired reports whether the entry's TTL has elapsed as of now.
func (e *CacheEntry) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && now.After(*e.ExpiresAt)
}

// CacheKey computes the cache key for a translation. When userScoped
// is true (bypass partition, or partial storage while bypass is active)
// the key is additionally scoped by userHash, defaulting to "anonymous"
// when absent.
func CacheKey(sourceFileID, targetLanguage string, userScoped bool, userHash string) string {
	base := sourceFileID + "_" + targetLanguage
	if !userScoped {
		return base
	}
	if userHash == "" {
		userHash = "anonymous"
	}
	return base + "__u_" + userHash
}
