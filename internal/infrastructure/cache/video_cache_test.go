package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recipetube/backend/internal/domain"
)

type failingBackend struct{}

func (failingBackend) Get(context.Context, domain.CacheNamespace, string) ([]byte, error) {
	return nil, errors.New("connection refused")
}
func (failingBackend) Set(context.Context, domain.CacheNamespace, string, []byte) error {
	return errors.New("connection refused")
}
func (failingBackend) Delete(context.Context, domain.CacheNamespace, string) error { return nil }
func (failingBackend) Clear(context.Context, domain.CacheNamespace) error          { return nil }

func TestVideoCache_Video(t *testing.T) {
	mem, clock := newTestCache()
	vc := NewVideoCache(mem, zerolog.Nop())
	ctx := context.Background()

	video := &domain.Video{ID: "abc", Title: "Curry", ChannelTitle: "Chef"}
	vc.SetVideo(ctx, video)

	got, ok := vc.GetVideo(ctx, "abc")
	require.True(t, ok)
	assert.Equal(t, video, got)

	clock.Advance(61 * time.Minute)
	_, ok = vc.GetVideo(ctx, "abc")
	assert.False(t, ok)
}

func TestVideoCache_SetVideoIgnoresMissingID(t *testing.T) {
	mem, _ := newTestCache()
	vc := NewVideoCache(mem, zerolog.Nop())

	vc.SetVideo(context.Background(), &domain.Video{Title: "no id"})
	vc.SetVideo(context.Background(), nil)

	assert.Equal(t, 0, mem.Size(domain.NamespaceVideo))
}

func TestVideoCache_Search(t *testing.T) {
	mem, clock := newTestCache()
	vc := NewVideoCache(mem, zerolog.Nop())
	ctx := context.Background()

	videos := []domain.Video{{ID: "v1"}, {ID: "v2"}}
	vc.SetSearch(ctx, "curry", videos)

	clock.Advance(4 * time.Minute)
	got, ok := vc.GetSearch(ctx, "curry")
	require.True(t, ok)
	assert.Equal(t, videos, got)

	clock.Advance(2 * time.Minute)
	_, ok = vc.GetSearch(ctx, "curry")
	assert.False(t, ok)
}

func TestVideoCache_EmptySearchIsAHit(t *testing.T) {
	mem, _ := newTestCache()
	vc := NewVideoCache(mem, zerolog.Nop())
	ctx := context.Background()

	vc.SetSearch(ctx, "nothing", nil)

	got, ok := vc.GetSearch(ctx, "nothing")
	require.True(t, ok)
	assert.Empty(t, got)
	assert.NotNil(t, got)
}

func TestVideoCache_CorruptEntryIsDropped(t *testing.T) {
	mem, _ := newTestCache()
	vc := NewVideoCache(mem, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, mem.Set(ctx, domain.NamespaceVideo, "bad", []byte("{not json")))

	_, ok := vc.GetVideo(ctx, "bad")
	assert.False(t, ok)
	assert.Equal(t, 0, mem.Size(domain.NamespaceVideo))
}

func TestVideoCache_BackendFailureIsAMiss(t *testing.T) {
	vc := NewVideoCache(failingBackend{}, zerolog.Nop())
	ctx := context.Background()

	vc.SetVideo(ctx, &domain.Video{ID: "abc"})
	_, ok := vc.GetVideo(ctx, "abc")
	assert.False(t, ok)

	_, ok = vc.GetSearch(ctx, "curry")
	assert.False(t, ok)
}

func TestVideoCache_Clear(t *testing.T) {
	mem, _ := newTestCache()
	vc := NewVideoCache(mem, zerolog.Nop())
	ctx := context.Background()

	vc.SetVideo(ctx, &domain.Video{ID: "abc"})
	vc.SetSearch(ctx, "curry", []domain.Video{{ID: "abc"}})

	require.NoError(t, vc.ClearSearches(ctx))
	_, ok := vc.GetSearch(ctx, "curry")
	assert.False(t, ok)
	_, ok = vc.GetVideo(ctx, "abc")
	assert.True(t, ok)

	require.NoError(t, vc.ClearVideos(ctx))
	_, ok = vc.GetVideo(ctx, "abc")
	assert.False(t, ok)
}
