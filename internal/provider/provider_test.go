package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subaddon/models"
)

type stubProvider struct{ name string }

func (s *stubProvider) Name() string { return s.name }
func (s *stubProvider) SearchSubtitles(ctx context.Context, params models.SearchParams) ([]models.SubtitleCandidate, error) {
	return nil, nil
}
func (s *stubProvider) DownloadSubtitle(ctx context.Context, fileID string) (string, error) {
	return "", nil
}
func (s *stubProvider) NormalizeLanguage(raw string) (string, bool) { return "", false }

func TestRegistry_OwnerRoutesByPrefix(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubProvider{name: "opensubtitles"})
	r.Register(&stubProvider{name: "subdl"})

	fileID := PrefixedID("subdl", "abc123")
	owner, ok := r.Owner(fileID)
	require.True(t, ok)
	assert.Equal(t, "subdl", owner.Name())
	assert.Equal(t, "abc123", PrivateID(fileID))
}

func TestRegistry_OwnerUnknownPrefix(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubProvider{name: "opensubtitles"})
	_, ok := r.Owner("unknown:123")
	assert.False(t, ok)
}

func TestRegistry_AllPreservesRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubProvider{name: "a"})
	r.Register(&stubProvider{name: "b"})
	r.Register(&stubProvider{name: "c"})
	names := make([]string, 0, 3)
	for _, p := range r.All() {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"a", "b", "c"}, names)
}

func TestRegistry_ReloadReplacesProviderSet(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubProvider{name: "opensubtitles"})
	r.Register(&stubProvider{name: "subdl"})

	r.Reload([]Provider{&stubProvider{name: "subsource"}})

	_, ok := r.Get("opensubtitles")
	assert.False(t, ok, "reload must drop providers no longer in the new set")
	_, ok = r.Get("subdl")
	assert.False(t, ok, "reload must drop providers no longer in the new set")
	_, ok = r.Get("subsource")
	assert.True(t, ok, "reload must add providers newly present in the new set")
}

func TestRegistry_ReloadIsAtomicUnderConcurrentReads(t *testing.T) {
	r := NewRegistry()
	r.Reload([]Provider{&stubProvider{name: "opensubtitles"}})

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			r.All()
			r.Get("opensubtitles")
		}
		close(done)
	}()

	r.Reload([]Provider{&stubProvider{name: "opensubtitles"}, &stubProvider{name: "subdl"}})
	<-done

	_, ok := r.Get("subdl")
	assert.True(t, ok)
}
