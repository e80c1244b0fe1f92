package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_SendText(t *testing.T) {
	var got sendRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v19.0/1234/messages", r.URL.Path)
		assert.Equal(t, "Bearer wa-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"messages":[{"id":"wamid.out"}]}`))
	}))
	defer server.Close()

	c := New(server.URL, "v19.0", "wa-token", server.Client())
	require.NoError(t, c.SendText(context.Background(), "1234", "8490000", "Hi there"))

	assert.Equal(t, "whatsapp", got.MessagingProduct)
	assert.Equal(t, "8490000", got.To)
	assert.Equal(t, "text", got.Type)
	require.NotNil(t, got.Text)
	assert.Equal(t, "Hi there", got.Text.Body)
}

func TestClient_SendAudio(t *testing.T) {
	var got sendRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := New(server.URL, "v19.0", "tok", server.Client())
	require.NoError(t, c.SendAudio(context.Background(), "1234", "8490000", "https://cdn/reply.ogg"))
	assert.Equal(t, "audio", got.Type)
	require.NotNil(t, got.Audio)
	assert.Equal(t, "https://cdn/reply.ogg", got.Audio.Link)
}

func TestClient_Send_MissingPhoneNumber(t *testing.T) {
	c := New("http://unused", "v19.0", "tok", nil)
	assert.Error(t, c.SendText(context.Background(), "", "8490000", "hi"))
}

func TestClient_DownloadMedia(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/v19.0/media-1":
			json.NewEncoder(w).Encode(mediaInfo{URL: server.URL + "/blob/media-1", MimeType: "audio/ogg; codecs=opus", ID: "media-1"})
		case "/blob/media-1":
			w.Header().Set("Content-Type", "application/octet-stream")
			w.Write(make([]byte, 3000))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	c := New(server.URL, "v19.0", "tok", server.Client())
	ct, n, err := c.DownloadMedia(context.Background(), "media-1", filepath.Join(t.TempDir(), "in.ogg"))
	require.NoError(t, err)
	assert.Equal(t, "audio/ogg; codecs=opus", ct)
	assert.Equal(t, int64(3000), n)
}

func TestClient_DownloadMedia_UnknownID(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	c := New(server.URL, "v19.0", "tok", server.Client())
	_, _, err := c.DownloadMedia(context.Background(), "nope", filepath.Join(t.TempDir(), "in.ogg"))
	assert.Error(t, err)
}

func TestClient_CheckAudioURL(t *testing.T) {
	tests := []struct {
		name        string
		failFirst   int32
		contentType string
		wantErr     bool
		wantCalls   int32
	}{
		{"immediately ok", 0, "audio/ogg", false, 1},
		{"ok after retry", 2, "audio/mpeg", false, 3},
		{"never ok", 10, "audio/mpeg", true, 3},
		{"not audio", 0, "text/html", true, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodHead, r.Method)
				n := atomic.AddInt32(&calls, 1)
				if n <= tt.failFirst {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			c := New(server.URL, "v19.0", "tok", server.Client(), WithAudioCheck(3, time.Millisecond))
			err := c.CheckAudioURL(context.Background(), server.URL+"/reply.ogg")
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrAudioUnavailable))
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, atomic.LoadInt32(&calls))
		})
	}
}
