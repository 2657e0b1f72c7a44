// Package provider defines the Provider Adapter contract and a
// registry of concrete implementations keyed by the provider tag used as
// the prefix of every fileId they issue.
//
// Modeled on a polymorphic source-adapter interface
// over pluggable external sources, constructed from config by a factory —
// generalized here to subtitle discovery instead of torrent scraping.
package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"subaddon/models"
)

// SentinelInvalid, SentinelUnavailable, and SentinelArchiveTooLarge are the
// sentinel SRT bodies a provider returns instead of erroring on download.
const (
	SentinelInvalid = "Subtitle content was invalid or too small to use."
	SentinelUnavailable = "This subtitle is no longer available from the provider."
	SentinelArchiveTooLarge = "The subtitle archive exceeded the maximum allowed size."
)

// Provider is the common contract every subtitle source implements.
// Search MUST NOT return an error to the aggregator for transport
// failures — it returns an empty list instead.
type Provider interface {
	// Name is the registry key and the fileId prefix this provider owns.
	Name() string
	SearchSubtitles(ctx context.Context, params models.SearchParams) ([]models.SubtitleCandidate, error)
	DownloadSubtitle(ctx context.Context, fileID string) (string, error)
	NormalizeLanguage(raw string) (string, bool)
}

// Registry looks up providers by name and routes a prefixed fileId back to
// its owning provider.
type Registry struct {
	mu sync.RWMutex
	providers map[string]Provider
	order []string
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := p.Name()
	if _, exists := r.providers[name]; !exists {
		r.order = append(r.order, name)
	}
	r.providers[name] = p
}

// Reload atomically replaces the registry's entire provider set, in the
// given order. A config change that disables a provider or edits its
// credentials takes effect on the next lookup without restarting the
// process; in-flight SearchSubtitles/DownloadSubtitle calls already
// holding a *Provider reference run to completion against the old
// instance.
func (r *Registry) Reload(providers []Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers = make(map[string]Provider, len(providers))
	r.order = make([]string, 0, len(providers))
	for _, p := range providers {
		name := p.Name()
		if _, exists := r.providers[name]; !exists {
			r.order = append(r.order, name)
		}
		r.providers[name] = p
	}
}

// All returns the registered providers in registration order.
func (r *Registry) All() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Provider, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.providers[name])
	}
	return out
}

func (r *Registry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// Owner resolves the owning provider for a prefixed fileId, e.g.
// "opensubtitles:12345" → the "opensubtitles" provider.
func (r *Registry) Owner(fileID string) (Provider, bool) {
	prefix, _, ok := splitFileID(fileID)
	if !ok {
		return nil, false
	}
	return r.Get(prefix)
}

func splitFileID(fileID string) (provider, id string, ok bool) {
	for i := 0; i < len(fileID); i++ {
		if fileID[i] == ':' {
			return fileID[:i], fileID[i+1:], true
		}
	}
	return "", "", false
}

// PrefixedID builds the opaque, provider-prefixed fileId a provider should
// hand back to the aggregator.
func PrefixedID(providerName, privateID string) string {
	return fmt.Sprintf("%s:%s", providerName, privateID)
}

// PrivateID strips a provider's prefix from a fileId it owns.
func PrivateID(fileID string) string {
	_, id, ok := splitFileID(fileID)
	if !ok {
		return fileID
	}
	return id
}

// DefaultSearchTimeout and DefaultDownloadTimeout are the per-call budgets
// applied when a provider's own config does not specify one.
const (
	DefaultSearchTimeout = 12 * time.Second
	DefaultDownloadTimeout = 18 * time.Second
)
