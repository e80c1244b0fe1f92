package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"interview-assistant-service/internal/app"
	"interview-assistant-service/internal/config"
	"interview-assistant-service/internal/models"
	"interview-assistant-service/internal/notify"
	"interview-assistant-service/internal/observability/metrics"
	"interview-assistant-service/internal/service/pipeline"
)

const (
	maxWebhookBytes      = 1 << 20
	maxNotificationBytes = 64 << 10
	multipartOverhead    = 1 << 20
)

type handlers struct {
	app *app.Application
	cfg *config.Config
}

type errorBody struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorBody{Detail: detail})
}

// interview accepts exactly one of the audio, text or question form fields.
func (h *handlers) interview(w http.ResponseWriter, r *http.Request) {
	logger := log.With().Str("requestId", middleware.GetReqID(r.Context())).Logger()
	maxUpload := h.cfg.Limits.MaxUploadBytes

	r.Body = http.MaxBytesReader(w, r.Body, maxUpload+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge), strings.Contains(err.Error(), "request body too large"):
			writeDetail(w, http.StatusUnprocessableEntity, "File size exceeds 10 MB")
			return
		case errors.Is(err, http.ErrNotMultipart):
			if err := r.ParseForm(); err != nil {
				writeDetail(w, http.StatusUnprocessableEntity, "Invalid form body")
				return
			}
		default:
			writeDetail(w, http.StatusUnprocessableEntity, "Invalid form body")
			return
		}
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	text := strings.TrimSpace(r.FormValue("text"))
	question := strings.TrimSpace(r.FormValue("question"))
	file, header, fileErr := r.FormFile("audio")
	hasAudio := fileErr == nil
	if hasAudio {
		defer file.Close()
	}
	logger.Debug().
		Bool("audio", hasAudio).
		Str("text", text).
		Str("question", question).
		Msg("Parsed interview inputs")

	provided := 0
	for _, ok := range []bool{hasAudio, text != "", question != ""} {
		if ok {
			provided++
		}
	}
	switch {
	case provided == 0:
		writeDetail(w, http.StatusUnprocessableEntity, "Either audio file, text, or question input is required")
		return
	case provided > 1:
		writeDetail(w, http.StatusUnprocessableEntity, "Provide only one of audio file, text, or question")
		return
	}

	var req models.InterviewRequest
	if hasAudio {
		format, ok := models.ParseAudioFormat(filepath.Ext(header.Filename))
		if !ok || (format != models.FormatWAV && format != models.FormatMP3) {
			writeDetail(w, http.StatusUnprocessableEntity, "Only WAV or MP3 files are supported")
			return
		}
		if header.Size > maxUpload {
			writeDetail(w, http.StatusUnprocessableEntity, "File size exceeds 10 MB")
			return
		}
		path, err := h.saveUpload(file, format)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to save upload")
			writeDetail(w, http.StatusInternalServerError, "Processing error: "+err.Error())
			return
		}
		metrics.DefaultMetrics.RecordAudioReceived("direct", header.Size)
		req = models.NewAudioRequest(path, format)
	} else {
		input := text
		if input == "" {
			input = question
		}
		req = models.NewTextRequest(input)
	}
	req.RequestID = middleware.GetReqID(r.Context())

	// Processing outlives the client connection.
	resp, err := h.app.Interviewer.Process(context.WithoutCancel(r.Context()), req)
	if err != nil {
		status := http.StatusInternalServerError
		if pipeline.IsValidation(err) {
			status = http.StatusUnprocessableEntity
		}
		writeDetail(w, status, "Processing error: "+causeText(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"response": resp})
}

func (h *handlers) saveUpload(src io.Reader, format models.AudioFormat) (string, error) {
	path := filepath.Join(h.cfg.Service.TempDir, uuid.NewString()+format.Ext())
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	_, err = io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

func causeText(err error) string {
	var pe *pipeline.ProcessingError
	if errors.As(err, &pe) && pe.Cause != nil {
		return pe.Cause.Error()
	}
	return err.Error()
}

// verifyWebhook answers the Meta subscription handshake.
func (h *handlers) verifyWebhook(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	expected := h.cfg.Webhook.VerifyToken
	if mode != "subscribe" || expected == "" || token != expected {
		log.Warn().Str("mode", mode).Msg("Webhook verification rejected")
		writeDetail(w, http.StatusForbidden, "Verification failed")
		return
	}

	if n, err := strconv.ParseInt(challenge, 10, 64); err == nil {
		writeJSON(w, http.StatusOK, n)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(challenge))
}

// receiveWebhook acknowledges a delivery and routes it in the background.
func (h *handlers) receiveWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Unreadable body")
		return
	}
	if h.app.Validator != nil {
		if err := h.app.Validator.Validate(body); err != nil {
			log.Warn().Err(err).Msg("Rejected webhook envelope")
			writeDetail(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	ctx := context.WithoutCancel(r.Context())
	h.app.Go(func() {
		h.app.Router.Route(ctx, body)
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type notificationRequest struct {
	Text string `json:"text"`
}

func (h *handlers) notify(w http.ResponseWriter, r *http.Request) {
	var req notificationRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxNotificationBytes)).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Body must be JSON with a text field")
		return
	}

	url, err := h.app.Notifier.Notify(r.Context(), req.Text)
	if err != nil {
		if errors.Is(err, notify.ErrBlankText) {
			writeDetail(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		log.Error().Err(err).Msg("Notification failed")
		writeDetail(w, http.StatusInternalServerError, "Processing error: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"audio_url": url})
}

// requestLogger logs each request at debug with its chi request id.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("requestId", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("contentType", r.Header.Get("Content-Type")).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}
