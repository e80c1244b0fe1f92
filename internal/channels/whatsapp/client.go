// Package whatsapp sends replies through the WhatsApp Cloud API and
// downloads inbound media.
package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"interview-assistant-service/internal/channels"
)

const channelName = "whatsapp"

// ErrAudioUnavailable is returned when a reply audio URL cannot be fetched
// as audio.
var ErrAudioUnavailable = errors.New("reply audio is not fetchable")

// Client talks to the Graph API with a WhatsApp business token.
type Client struct {
	baseURL    string
	version    string
	token      string
	http       *http.Client
	checkTries int
	checkDelay time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithAudioCheck sets how often and how far apart reply audio URLs are
// probed before being sent.
func WithAudioCheck(retries int, delay time.Duration) Option {
	return func(c *Client) {
		if retries > 0 {
			c.checkTries = retries
		}
		c.checkDelay = delay
	}
}

// New creates a WhatsApp client.
func New(baseURL, version, token string, httpClient *http.Client, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = channels.NewHTTPClient(0)
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		version:    version,
		token:      token,
		http:       httpClient,
		checkTries: 3,
		checkDelay: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type textBody struct {
	Body string `json:"body"`
}

type audioBody struct {
	Link string `json:"link"`
}

type sendRequest struct {
	MessagingProduct string     `json:"messaging_product"`
	RecipientType    string     `json:"recipient_type"`
	To               string     `json:"to"`
	Type             string     `json:"type"`
	Text             *textBody  `json:"text,omitempty"`
	Audio            *audioBody `json:"audio,omitempty"`
}

// SendText sends a text message from phoneNumberID to the user.
func (c *Client) SendText(ctx context.Context, phoneNumberID, to, text string) error {
	return c.send(ctx, phoneNumberID, sendRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
		Text:             &textBody{Body: text},
	})
}

// SendAudio sends an audio message whose bytes WhatsApp fetches from link.
func (c *Client) SendAudio(ctx context.Context, phoneNumberID, to, link string) error {
	return c.send(ctx, phoneNumberID, sendRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "audio",
		Audio:            &audioBody{Link: link},
	})
}

func (c *Client) send(ctx context.Context, phoneNumberID string, req sendRequest) error {
	if phoneNumberID == "" {
		return &channels.DeliveryError{Channel: channelName, Cause: errors.New("missing phone number id")}
	}
	endpoint := fmt.Sprintf("%s/%s/%s/messages", c.baseURL, c.version, phoneNumberID)
	_, err := channels.PostJSON(ctx, c.http, channelName, endpoint, c.token, req)
	return err
}

type mediaInfo struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	FileSize int64  `json:"file_size"`
	ID       string `json:"id"`
}

// DownloadMedia resolves mediaID to its transient URL, then fetches the
// bytes into dst. It returns the media MIME type and size.
func (c *Client) DownloadMedia(ctx context.Context, mediaID, dst string) (string, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s/%s", c.baseURL, c.version, mediaID), nil)
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	data, err := channels.Do(c.http, channelName, req)
	if err != nil {
		return "", 0, fmt.Errorf("resolve media %s: %w", mediaID, err)
	}

	var info mediaInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return "", 0, fmt.Errorf("decode media %s: %w", mediaID, err)
	}
	if info.URL == "" {
		return "", 0, fmt.Errorf("media %s has no download url", mediaID)
	}

	contentType, n, err := channels.Download(ctx, c.http, channelName, info.URL, c.token, dst)
	if err != nil {
		return "", 0, fmt.Errorf("fetch media %s: %w", mediaID, err)
	}
	if info.MimeType != "" {
		contentType = info.MimeType
	}
	return contentType, n, nil
}

// CheckAudioURL probes audioURL with HEAD until it answers 200 with an
// audio content type, up to the configured number of attempts.
func (c *Client) CheckAudioURL(ctx context.Context, audioURL string) error {
	var lastErr error
	for attempt := 1; attempt <= c.checkTries; attempt++ {
		lastErr = c.head(ctx, audioURL)
		if lastErr == nil {
			return nil
		}
		log.Debug().Err(lastErr).Int("attempt", attempt).Str("url", audioURL).Msg("Reply audio not fetchable yet")
		if attempt == c.checkTries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.checkDelay):
		}
	}
	return fmt.Errorf("%w: %v", ErrAudioUnavailable, lastErr)
}

func (c *Client) head(ctx context.Context, audioURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, audioURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	mt, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if !strings.HasPrefix(mt, "audio/") {
		return fmt.Errorf("content type %q is not audio", resp.Header.Get("Content-Type"))
	}
	return nil
}
