// Package channels holds what the Messenger and WhatsApp adapters share:
// the traced HTTP client, JSON posting and the delivery error type.
package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ApologyText is sent when a message could not be answered.
const ApologyText = "Sorry, I couldn't process your message. Please try again."

const maxErrorBody = 2048

// DeliveryError is returned when a channel API rejects a call.
type DeliveryError struct {
	Channel string
	Status  int
	Body    string
	Cause   error
}

func (e *DeliveryError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s delivery failed: %v", e.Channel, e.Cause)
	}
	return fmt.Sprintf("%s delivery failed: status %d: %s", e.Channel, e.Status, e.Body)
}

func (e *DeliveryError) Unwrap() error { return e.Cause }

// NewHTTPClient returns a client with tracing and a per-request timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// PostJSON posts payload to url and returns the response body. Non-2xx
// responses become *DeliveryError.
func PostJSON(ctx context.Context, client *http.Client, channel, url, bearer string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", channel, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", channel, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return Do(client, channel, req)
}

// Do executes req and reads the whole body.
func Do(client *http.Client, channel string, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, &DeliveryError{Channel: channel, Cause: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &DeliveryError{Channel: channel, Status: resp.StatusCode, Cause: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(data) > maxErrorBody {
			data = data[:maxErrorBody]
		}
		return nil, &DeliveryError{Channel: channel, Status: resp.StatusCode, Body: string(data)}
	}
	return data, nil
}

// Download streams a GET response into dst and returns its content type
// and size.
func Download(ctx context.Context, client *http.Client, channel, url, bearer, dst string) (string, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0, fmt.Errorf("create %s download: %w", channel, err)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", 0, &DeliveryError{Channel: channel, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", 0, &DeliveryError{Channel: channel, Status: resp.StatusCode, Body: string(data)}
	}

	f, err := os.Create(dst)
	if err != nil {
		return "", 0, err
	}
	n, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dst)
		return "", 0, fmt.Errorf("write %s download: %w", channel, err)
	}
	return resp.Header.Get("Content-Type"), n, nil
}
