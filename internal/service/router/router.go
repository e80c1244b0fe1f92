// Package router turns inbound WhatsApp and Messenger webhook messages into
// interview pipeline invocations and sends the answers back on the channel
// they came from.
//
// Every message passes an atomic dedup gate before any work starts, so a
// redelivery that arrives while the first copy is still being processed is
// dropped. Failures never leave the router: the user gets an apology, or
// nothing if the apology cannot be sent either.
package router

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"interview-assistant-service/internal/audioconv"
	"interview-assistant-service/internal/channels"
	"interview-assistant-service/internal/models"
	"interview-assistant-service/internal/observability/logging"
	"interview-assistant-service/internal/observability/metrics"
	"interview-assistant-service/internal/service/dedup"
	"interview-assistant-service/internal/service/pipeline"
)

// ErrMediaTooSmall is returned when downloaded media is below the floor,
// which usually means the platform sent metadata instead of audio.
var ErrMediaTooSmall = errors.New("inbound media too small")

// Interviewer answers one request; *pipeline.Pipeline satisfies it.
type Interviewer interface {
	Process(ctx context.Context, req models.InterviewRequest) (*models.InterviewResponse, error)
}

// WhatsApp is the outbound surface of the WhatsApp adapter.
type WhatsApp interface {
	SendText(ctx context.Context, phoneNumberID, to, text string) error
	SendAudio(ctx context.Context, phoneNumberID, to, link string) error
	DownloadMedia(ctx context.Context, mediaID, dst string) (string, int64, error)
	CheckAudioURL(ctx context.Context, audioURL string) error
}

// Messenger is the outbound surface of the Messenger adapter.
type Messenger interface {
	SendText(ctx context.Context, recipientID, text string) error
	SendAudio(ctx context.Context, recipientID, audioURL string) error
	Download(ctx context.Context, attachmentURL, dst string) (string, int64, error)
}

// DeliveryPublisher receives one event per routed message.
type DeliveryPublisher interface {
	PublishDelivery(ctx context.Context, event models.DeliveryEvent) error
}

// Deps are the router collaborators. Events may be nil.
type Deps struct {
	Pipeline   Interviewer
	Dedup      dedup.Store
	WhatsApp   WhatsApp
	Messenger  Messenger
	Transcoder pipeline.Transcoder
	Events     DeliveryPublisher
}

// Config holds router tunables.
type Config struct {
	TempDir              string
	MinInboundMediaBytes int64
}

// Router routes inbound messages. Safe for concurrent use.
type Router struct {
	deps    Deps
	cfg     Config
	metrics *metrics.Metrics
}

// New creates a Router.
func New(deps Deps, cfg Config) *Router {
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	return &Router{deps: deps, cfg: cfg, metrics: metrics.DefaultMetrics}
}

// Route handles one webhook body. Messages are processed in order and one
// failing message never stops the rest.
func (r *Router) Route(ctx context.Context, raw []byte) {
	events, err := Normalize(raw)
	if err != nil {
		logger := logging.WithComponent("router")
		logger.Warn().Err(err).Msg("Dropping webhook body")
		return
	}
	for _, ev := range events {
		r.Handle(ctx, ev)
	}
}

// Handle runs one normalized message to a terminal state and returns it.
func (r *Router) Handle(ctx context.Context, ev models.InboundEvent) State {
	logger := logging.WithEvent(ev.MessageID, string(ev.Channel), ev.SenderID)
	lc := NewLifecycle(ev.MessageID)
	channel := strings.ToLower(string(ev.Channel))

	content := "text"
	if ev.IsAudio() {
		content = "audio"
	}
	r.metrics.RecordWebhookEvent(channel, content)

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error().Interface("panic", rec).Msg("Recovered while routing message")
			if lc.State() == StateRouted {
				_ = lc.Silent()
			}
		}
		r.finish(ctx, ev, lc, &logger)
	}()

	if ev.MessageID == "" {
		logger.Warn().Msg("Message has no id, dropping")
		r.metrics.RecordDedupDrop(channel, "missing_id")
		_ = lc.Drop()
		return lc.State()
	}

	isNew, err := r.deps.Dedup.MarkIfNew(ctx, ev.MessageID)
	if err != nil {
		logger.Error().Err(err).Msg("Dedup store unavailable, dropping message")
		r.metrics.RecordDedupDrop(channel, "store_error")
		_ = lc.Drop()
		return lc.State()
	}
	if !isNew {
		logger.Info().Msg("Duplicate delivery dropped")
		r.metrics.RecordDedupDrop(channel, "duplicate")
		_ = lc.Drop()
		return lc.State()
	}

	if err := lc.Route(); err != nil {
		logger.Error().Err(err).Msg("Illegal lifecycle transition")
		return lc.State()
	}

	if err := r.dispatch(ctx, ev, &logger); err != nil {
		logger.Error().Err(err).Msg("Failed to answer message")
		if sendErr := r.sendText(ctx, ev, channels.ApologyText); sendErr != nil {
			logger.Error().Err(sendErr).Msg("Failed to send apology")
			_ = lc.Silent()
		} else {
			_ = lc.ApologySent()
		}
		return lc.State()
	}
	_ = lc.Replied()
	return lc.State()
}

// dispatch converts panics into errors so the apology path still runs.
func (r *Router) dispatch(ctx context.Context, ev models.InboundEvent, logger *zerolog.Logger) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()

	req, err := r.buildRequest(ctx, ev, logger)
	if err != nil {
		return err
	}
	req.RequestID = ev.MessageID

	resp, err := r.deps.Pipeline.Process(ctx, req)
	if err != nil {
		return err
	}
	return r.reply(ctx, ev, resp, logger)
}

func (r *Router) buildRequest(ctx context.Context, ev models.InboundEvent, logger *zerolog.Logger) (models.InterviewRequest, error) {
	replyFormat := models.FormatMP3
	if ev.Channel == models.ChannelWhatsApp {
		replyFormat = models.FormatOGG
	}

	if ev.Text != nil {
		req := models.NewTextRequest(*ev.Text)
		req.ReplyFormat = replyFormat
		return req, nil
	}
	if ev.Audio == nil {
		return models.InterviewRequest{}, errors.New("message carries neither text nor audio")
	}

	path, format, err := r.fetchAudio(ctx, ev, logger)
	if err != nil {
		return models.InterviewRequest{}, err
	}
	req := models.NewAudioRequest(path, format)
	req.ReplyFormat = replyFormat
	return req, nil
}

// fetchAudio downloads the message audio and leaves a wav or mp3 file the
// pipeline accepts. The caller owns the returned path.
func (r *Router) fetchAudio(ctx context.Context, ev models.InboundEvent, logger *zerolog.Logger) (string, models.AudioFormat, error) {
	raw := filepath.Join(r.cfg.TempDir, uuid.NewString()+extFor(ev.Audio.MimeType))
	defer os.Remove(raw)

	var contentType string
	var size int64
	var err error
	switch ev.Channel {
	case models.ChannelWhatsApp:
		contentType, size, err = r.deps.WhatsApp.DownloadMedia(ctx, ev.Audio.MediaID, raw)
	case models.ChannelMessenger:
		contentType, size, err = r.deps.Messenger.Download(ctx, ev.Audio.URL, raw)
	default:
		err = fmt.Errorf("unknown channel %q", ev.Channel)
	}
	if err != nil {
		return "", "", fmt.Errorf("download audio: %w", err)
	}
	r.metrics.RecordAudioReceived(strings.ToLower(string(ev.Channel)), size)
	logger.Debug().Str("contentType", contentType).Int64("bytes", size).Msg("Inbound audio downloaded")

	if size < r.cfg.MinInboundMediaBytes {
		return "", "", fmt.Errorf("%w: %d bytes", ErrMediaTooSmall, size)
	}

	mt, _, _ := mime.ParseMediaType(contentType)
	if ev.Channel == models.ChannelMessenger && mt == models.FormatMP3.ContentType() {
		mp3 := filepath.Join(r.cfg.TempDir, uuid.NewString()+models.FormatMP3.Ext())
		if err := os.Rename(raw, mp3); err != nil {
			return "", "", err
		}
		return mp3, models.FormatMP3, nil
	}

	if r.deps.Transcoder == nil {
		return "", "", fmt.Errorf("no transcoder configured for %s audio", contentType)
	}
	wav := filepath.Join(r.cfg.TempDir, uuid.NewString()+models.FormatWAV.Ext())
	start := time.Now()
	if err := r.deps.Transcoder.Convert(ctx, raw, wav, audioconv.SpeechTarget); err != nil {
		os.Remove(wav)
		return "", "", fmt.Errorf("transcode inbound audio: %w", err)
	}
	logger.Debug().Dur("elapsed", time.Since(start)).Msg("Inbound audio transcoded")
	return wav, models.FormatWAV, nil
}

func (r *Router) reply(ctx context.Context, ev models.InboundEvent, resp *models.InterviewResponse, logger *zerolog.Logger) error {
	if err := r.sendText(ctx, ev, resp.AnswerText); err != nil {
		return err
	}
	if !resp.HasAudio() {
		return nil
	}

	if ev.Channel == models.ChannelWhatsApp {
		if err := r.deps.WhatsApp.CheckAudioURL(ctx, resp.AudioURL); err != nil {
			return err
		}
	}
	err := r.sendAudio(ctx, ev, resp.AudioURL)
	if err == nil {
		logger.Debug().Str("audioUrl", resp.AudioURL).Msg("Audio reply sent")
	}
	return err
}

func (r *Router) sendText(ctx context.Context, ev models.InboundEvent, text string) error {
	var err error
	switch ev.Channel {
	case models.ChannelWhatsApp:
		err = r.deps.WhatsApp.SendText(ctx, ev.PhoneNumberID, ev.SenderID, text)
	case models.ChannelMessenger:
		err = r.deps.Messenger.SendText(ctx, ev.SenderID, text)
	default:
		err = fmt.Errorf("unknown channel %q", ev.Channel)
	}
	r.metrics.RecordDelivery(strings.ToLower(string(ev.Channel)), "text", err)
	return err
}

func (r *Router) sendAudio(ctx context.Context, ev models.InboundEvent, audioURL string) error {
	var err error
	switch ev.Channel {
	case models.ChannelWhatsApp:
		err = r.deps.WhatsApp.SendAudio(ctx, ev.PhoneNumberID, ev.SenderID, audioURL)
	case models.ChannelMessenger:
		err = r.deps.Messenger.SendAudio(ctx, ev.SenderID, audioURL)
	default:
		err = fmt.Errorf("unknown channel %q", ev.Channel)
	}
	r.metrics.RecordDelivery(strings.ToLower(string(ev.Channel)), "audio", err)
	return err
}

func (r *Router) finish(ctx context.Context, ev models.InboundEvent, lc *Lifecycle, logger *zerolog.Logger) {
	state := lc.State()
	r.metrics.RecordEventOutcome(strings.ToLower(string(ev.Channel)), state.String())
	logger.Info().Str("state", state.String()).Msg("Message routed")

	if r.deps.Events == nil {
		return
	}
	event := models.DeliveryEvent{
		EventType: "message." + strings.ToLower(state.String()),
		MessageID: ev.MessageID,
		Channel:   ev.Channel,
		SenderID:  ev.SenderID,
		State:     state.String(),
		Timestamp: time.Now().UnixMilli(),
	}
	if err := r.deps.Events.PublishDelivery(context.WithoutCancel(ctx), event); err != nil {
		logger.Warn().Err(err).Msg("Failed to publish delivery event")
	}
}

func extFor(mimeType string) string {
	mt, _, _ := mime.ParseMediaType(mimeType)
	switch mt {
	case "audio/ogg", "audio/opus":
		return ".ogg"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/wav", "audio/x-wav", "audio/wave":
		return ".wav"
	case "audio/mp4", "audio/aac", "audio/x-m4a":
		return ".m4a"
	case "audio/amr":
		return ".amr"
	default:
		return ".bin"
	}
}
