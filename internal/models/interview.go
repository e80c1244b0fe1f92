// Package models defines the data structures shared by the pipeline,
// the inbound router and the event publisher.
package models

import "strings"

// AudioFormat names an audio container on disk or in object storage.
type AudioFormat string

const (
	FormatWAV AudioFormat = "wav"
	FormatMP3 AudioFormat = "mp3"
	FormatOGG AudioFormat = "ogg"
)

// ContentType returns the MIME type used when uploading this format.
func (f AudioFormat) ContentType() string {
	switch f {
	case FormatWAV:
		return "audio/wav"
	case FormatMP3:
		return "audio/mpeg"
	case FormatOGG:
		return "audio/ogg"
	default:
		return "application/octet-stream"
	}
}

// Ext returns the file extension including the leading dot.
func (f AudioFormat) Ext() string {
	return "." + string(f)
}

// ParseAudioFormat maps a file extension or format name to an AudioFormat.
// Unknown values return ok=false.
func ParseAudioFormat(s string) (AudioFormat, bool) {
	switch strings.TrimPrefix(strings.ToLower(s), ".") {
	case "wav":
		return FormatWAV, true
	case "mp3":
		return FormatMP3, true
	case "ogg", "oga", "opus":
		return FormatOGG, true
	default:
		return "", false
	}
}

// AudioInput is a local audio file handed to the pipeline.
type AudioInput struct {
	Path   string
	Format AudioFormat
}

// InterviewRequest carries exactly one of Audio or Text.
type InterviewRequest struct {
	Audio *AudioInput
	Text  *string

	// ReplyFormat is the container the delivery channel needs for the
	// spoken reply. Empty means mp3.
	ReplyFormat AudioFormat

	// RequestID correlates logs and events; generated when empty.
	RequestID string
}

// NewTextRequest builds a text-only request.
func NewTextRequest(text string) InterviewRequest {
	return InterviewRequest{Text: &text}
}

// NewAudioRequest builds an audio request for a local file.
func NewAudioRequest(path string, format AudioFormat) InterviewRequest {
	return InterviewRequest{Audio: &AudioInput{Path: path, Format: format}}
}

// InterviewResponse is the result of one pipeline invocation.
type InterviewResponse struct {
	AnswerText string `json:"text"`
	AudioURL   string `json:"audio_url,omitempty"`
}

// HasAudio reports whether a spoken reply was produced.
func (r *InterviewResponse) HasAudio() bool {
	return r != nil && r.AudioURL != ""
}
