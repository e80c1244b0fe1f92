// Package notify produces standalone spoken notifications: text is
// synthesized and stored under audio/notifications/ for clients to play.
package notify

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"interview-assistant-service/internal/models"
	"interview-assistant-service/internal/observability/logging"
	"interview-assistant-service/internal/service/tts"
	"interview-assistant-service/internal/storage"
)

// ErrBlankText is returned when there is nothing to announce.
var ErrBlankText = errors.New("notification text is blank")

// Notifier synthesizes and stores notifications.
type Notifier struct {
	store   storage.ObjectStore
	synth   tts.Synthesizer
	tempDir string
	timeout time.Duration
}

// New creates a Notifier. A zero timeout leaves calls unbounded.
func New(store storage.ObjectStore, synth tts.Synthesizer, tempDir string, timeout time.Duration) *Notifier {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Notifier{store: store, synth: synth, tempDir: tempDir, timeout: timeout}
}

// Notify speaks text and returns the public URL of the stored mp3.
func (n *Notifier) Notify(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrBlankText
	}
	logger := logging.WithComponent("notify")

	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	speech, err := n.synth.Synthesize(ctx, text)
	if err != nil {
		return "", fmt.Errorf("synthesize notification: %w", err)
	}

	path := filepath.Join(n.tempDir, uuid.NewString()+models.FormatMP3.Ext())
	if err := os.WriteFile(path, speech.Audio, 0o600); err != nil {
		return "", err
	}
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Warn().Err(err).Str("path", path).Msg("Failed to remove notification file")
		}
	}()

	key := storage.NewKey(storage.PrefixNotifications, models.FormatMP3.Ext())
	if err := n.store.Put(ctx, key, path, models.FormatMP3.ContentType()); err != nil {
		return "", fmt.Errorf("upload notification: %w", err)
	}

	url := n.store.PublicURL(key)
	logger.Debug().Str("key", key).Int("bytes", len(speech.Audio)).Msg("Notification stored")
	return url, nil
}
