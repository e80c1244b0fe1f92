// Package messenger sends replies through the Messenger Send API and
// fetches audio attachments.
package messenger

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"interview-assistant-service/internal/channels"
)

const channelName = "messenger"

// Client talks to the Graph API on behalf of one page.
type Client struct {
	baseURL string
	version string
	token   string
	http    *http.Client
}

// New creates a Messenger client. baseURL is the Graph API root, for
// example https://graph.facebook.com.
func New(baseURL, version, pageAccessToken string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = channels.NewHTTPClient(0)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		version: version,
		token:   pageAccessToken,
		http:    httpClient,
	}
}

type recipient struct {
	ID string `json:"id"`
}

type attachment struct {
	Type    string            `json:"type"`
	Payload attachmentPayload `json:"payload"`
}

type attachmentPayload struct {
	URL        string `json:"url"`
	IsReusable bool   `json:"is_reusable"`
}

type message struct {
	Text       string      `json:"text,omitempty"`
	Attachment *attachment `json:"attachment,omitempty"`
}

type sendRequest struct {
	Recipient     recipient `json:"recipient"`
	MessagingType string    `json:"messaging_type"`
	Message       message   `json:"message"`
}

// SendText replies to a user with plain text.
func (c *Client) SendText(ctx context.Context, recipientID, text string) error {
	return c.send(ctx, sendRequest{
		Recipient:     recipient{ID: recipientID},
		MessagingType: "RESPONSE",
		Message:       message{Text: text},
	})
}

// SendAudio replies with an audio attachment served from audioURL.
func (c *Client) SendAudio(ctx context.Context, recipientID, audioURL string) error {
	return c.send(ctx, sendRequest{
		Recipient:     recipient{ID: recipientID},
		MessagingType: "RESPONSE",
		Message: message{Attachment: &attachment{
			Type:    "audio",
			Payload: attachmentPayload{URL: audioURL, IsReusable: true},
		}},
	})
}

func (c *Client) send(ctx context.Context, req sendRequest) error {
	endpoint := fmt.Sprintf("%s/%s/me/messages?access_token=%s", c.baseURL, c.version, url.QueryEscape(c.token))
	_, err := channels.PostJSON(ctx, c.http, channelName, endpoint, "", req)
	return err
}

// Download fetches an attachment URL into dst and returns its content type.
func (c *Client) Download(ctx context.Context, attachmentURL, dst string) (string, int64, error) {
	return channels.Download(ctx, c.http, channelName, attachmentURL, "", dst)
}
