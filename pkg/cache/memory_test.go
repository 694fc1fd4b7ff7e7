package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	type payload struct {
		Title string `json:"title"`
	}

	var got payload
	found, err := c.Get(ctx, "missing", &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Set(ctx, "story", payload{Title: "the black cat"}, time.Minute))
	found, err = c.Get(ctx, "story", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "the black cat", got.Title)
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	now := time.Now()
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", 1, time.Second))
	ok, _ := c.Exists(ctx, "k")
	assert.True(t, ok)

	now = now.Add(2 * time.Second)
	ok, _ = c.Exists(ctx, "k")
	assert.False(t, ok)

	ttl, _ := c.TTL(ctx, "k")
	assert.Equal(t, time.Duration(-2), ttl)
}

func TestMemoryCache_CounterAndPattern(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	for i := int64(1); i <= 3; i++ {
		n, err := c.Increment(ctx, "failed_login:whiskers")
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}

	ttl, _ := c.TTL(ctx, "failed_login:whiskers")
	assert.Equal(t, time.Duration(-1), ttl)
	require.NoError(t, c.Expire(ctx, "failed_login:whiskers", time.Minute))
	ttl, _ = c.TTL(ctx, "failed_login:whiskers")
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, c.Set(ctx, "stories:public:", []string{}, 0))
	require.NoError(t, c.Set(ctx, "stories:public:whiskers", []string{}, 0))
	require.NoError(t, c.DeletePattern(ctx, "stories:public:*"))

	ok, _ := c.Exists(ctx, "stories:public:whiskers")
	assert.False(t, ok)
	ok, _ = c.Exists(ctx, "failed_login:whiskers")
	assert.True(t, ok)

	require.NoError(t, c.Set(ctx, "text", "abc", 0))
	_, err := c.Increment(ctx, "text")
	assert.ErrorIs(t, err, ErrNotInteger)
}
