package notify

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interview-assistant-service/internal/models"
	"interview-assistant-service/internal/service/tts"
	"interview-assistant-service/internal/storage"
)

type stubSynth struct {
	err  error
	text string
}

func (s *stubSynth) Name() string { return "stub" }

func (s *stubSynth) Synthesize(ctx context.Context, text string) (*tts.Speech, error) {
	s.text = text
	if s.err != nil {
		return nil, s.err
	}
	return &tts.Speech{Audio: []byte("ID3 fake mp3 bytes"), ContentType: "audio/mpeg", Format: models.FormatMP3}, nil
}

func TestNotify_StoresUnderNotifications(t *testing.T) {
	store := storage.NewMemory("bucket")
	synth := &stubSynth{}
	dir := t.TempDir()
	n := New(store, synth, dir, time.Second)

	url, err := n.Notify(context.Background(), "  Your interview starts in five minutes  ")
	require.NoError(t, err)
	assert.Equal(t, "Your interview starts in five minutes", synth.text)

	keys := store.Keys()
	require.Len(t, keys, 1)
	assert.True(t, strings.HasPrefix(keys[0], storage.PrefixNotifications))
	assert.True(t, strings.HasSuffix(keys[0], ".mp3"))
	assert.Equal(t, store.PublicURL(keys[0]), url)

	_, ct, err := store.Object(keys[0])
	require.NoError(t, err)
	assert.Equal(t, "audio/mpeg", ct)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNotify_BlankText(t *testing.T) {
	n := New(storage.NewMemory("bucket"), &stubSynth{}, t.TempDir(), 0)
	_, err := n.Notify(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrBlankText)
}

func TestNotify_SynthesisError(t *testing.T) {
	store := storage.NewMemory("bucket")
	n := New(store, &stubSynth{err: tts.ErrRateLimited}, t.TempDir(), 0)

	_, err := n.Notify(context.Background(), "hello")
	assert.True(t, errors.Is(err, tts.ErrRateLimited))
	assert.Empty(t, store.Keys())
}
