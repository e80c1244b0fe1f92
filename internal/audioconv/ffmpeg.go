package audioconv

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"interview-assistant-service/internal/models"
)

// FFmpeg shells out to the ffmpeg binary.
type FFmpeg struct {
	bin     string
	timeout time.Duration
}

// NewFFmpeg creates a strategy using bin (default "ffmpeg").
func NewFFmpeg(bin string, timeout time.Duration) *FFmpeg {
	if bin == "" {
		bin = "ffmpeg"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &FFmpeg{bin: bin, timeout: timeout}
}

func (f *FFmpeg) Name() string { return "ffmpeg" }

func (f *FFmpeg) Convert(ctx context.Context, src, dst string, target Target) error {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, f.bin, f.args(src, dst, target)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg timed out after %s: %w", f.timeout, ctx.Err())
		}
		return fmt.Errorf("ffmpeg: %w: %s", err, tail(stderr.Bytes(), 512))
	}
	return nil
}

func (f *FFmpeg) args(src, dst string, target Target) []string {
	channels := target.Channels
	if channels <= 0 {
		channels = 1
	}
	rate := target.SampleRate
	if rate <= 0 {
		rate = 16000
	}
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", src,
		"-ac", strconv.Itoa(channels),
		"-ar", strconv.Itoa(rate),
	}
	switch target.Format {
	case models.FormatOGG:
		args = append(args, "-c:a", "libopus", "-f", "ogg")
	case models.FormatMP3:
		args = append(args, "-c:a", "libmp3lame", "-f", "mp3")
	default:
		args = append(args, "-c:a", "pcm_s16le", "-f", "wav")
	}
	return append(args, dst)
}

func tail(b []byte, n int) string {
	b = bytes.TrimSpace(b)
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return string(b)
}
