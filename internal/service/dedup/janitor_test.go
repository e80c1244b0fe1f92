package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJanitor_PrunesOnSchedule(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(10 * time.Millisecond)
	for _, id := range []string{"wamid.1", "wamid.2", "mid.3"} {
		ok, err := s.MarkIfNew(ctx, id)
		require.NoError(t, err)
		require.True(t, ok)
	}

	j, err := StartJanitor(s, "@every 1s")
	require.NoError(t, err)
	require.NotNil(t, j)
	defer j.Stop()

	assert.Eventually(t, func() bool { return s.Len() == 0 }, 5*time.Second, 50*time.Millisecond)
}

func TestJanitor_KeepsLiveIDs(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Hour)
	_, err := s.MarkIfNew(ctx, "wamid.live")
	require.NoError(t, err)

	j, err := StartJanitor(s, "@every 1s")
	require.NoError(t, err)
	j.run()
	j.Stop()

	assert.Equal(t, 1, s.Len())
	ok, _ := s.MarkIfNew(ctx, "wamid.live")
	assert.False(t, ok)
}

func TestJanitor_RedisNeedsNone(t *testing.T) {
	s, _ := setupRedisStore(t)

	j, err := StartJanitor(s, "@hourly")
	require.NoError(t, err)
	assert.Nil(t, j)
	j.Stop()
}

func TestJanitor_InvalidSchedule(t *testing.T) {
	_, err := StartJanitor(NewMemoryStore(time.Hour), "every now and then")
	assert.Error(t, err)
}

func TestPostgresStore_RejectsSubMillisecondTTL(t *testing.T) {
	_, err := NewPostgresStore(context.Background(), "postgres://localhost/none", 500*time.Microsecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "below the 1ms")
}

func TestInterval(t *testing.T) {
	tests := []struct {
		ttl  time.Duration
		want string
	}{
		{24 * time.Hour, "86400000 milliseconds"},
		{1500 * time.Millisecond, "1500 milliseconds"},
		{250 * time.Millisecond, "250 milliseconds"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, interval(tt.ttl), "ttl %v", tt.ttl)
	}
}
