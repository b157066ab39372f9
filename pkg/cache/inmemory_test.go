package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_TypeMismatch(t *testing.T) {
	c := NewLocalCache(time.Minute, time.Minute)
	c.Set("k", 42, time.Minute)

	v, ok := Get[int](c, "k")
	assert.True(t, ok)
	assert.Equal(t, 42, v)

	_, ok = Get[string](c, "k")
	assert.False(t, ok)

	_, ok = Get[int](nil, "k")
	assert.False(t, ok)
}

func TestGetOrLoad(t *testing.T) {
	c := NewLocalCache(time.Minute, time.Minute)
	calls := 0
	load := func() (string, error) {
		calls++
		return "value", nil
	}

	v, err := GetOrLoad(c, "k", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, "value", v)

	v, err = GetOrLoad(c, "k", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, "value", v)
	assert.Equal(t, 1, calls)

	_, err = GetOrLoad(c, "other", time.Minute, func() (string, error) { return "", errors.New("boom") })
	assert.Error(t, err)
	_, found := c.Get("other")
	assert.False(t, found)
}

func TestAdd_OnlyFirstWins(t *testing.T) {
	c := NewLocalCache(time.Minute, time.Minute)

	assert.True(t, c.Add("event", 1, time.Minute))
	assert.False(t, c.Add("event", 2, time.Minute))
	v, ok := Get[int](c, "event")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	assert.True(t, c.Add("short", 1, time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	assert.True(t, c.Add("short", 2, time.Minute))
}
