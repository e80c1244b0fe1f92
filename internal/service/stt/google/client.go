// Package google provides a Google Cloud Speech-to-Text job client built on
// long-running recognition with transcripts written to Cloud Storage.
package google

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"

	"interview-assistant-service/internal/models"
	"interview-assistant-service/internal/service/stt"
)

// Config holds Google STT configuration.
type Config struct {
	LanguageCode  string
	SampleRateHz  int
	AudioEncoding string
}

// DefaultConfig returns the default Google STT configuration.
func DefaultConfig() Config {
	return Config{
		LanguageCode:  "en-US",
		SampleRateHz:  16000,
		AudioEncoding: "LINEAR16",
	}
}

// Client implements stt.JobClient using Google Cloud Speech-to-Text.
type Client struct {
	client *speech.Client
	cfg    Config

	mu      sync.Mutex
	outputs map[string]string // operation name -> transcript gs:// uri
}

// New creates a new Google STT job client.
// Requires GOOGLE_APPLICATION_CREDENTIALS to be set.
func New(ctx context.Context, cfg Config) (*Client, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &Client{client: c, cfg: cfg, outputs: make(map[string]string)}, nil
}

func (c *Client) Name() string { return "google" }

// Submit starts LongRunningRecognize on a gs:// source and directs the
// transcript to <OutputBucket>/<Name>.json.
func (c *Client) Submit(ctx context.Context, spec stt.JobSpec) (*models.TranscriptionJob, error) {
	if spec.Format != models.FormatWAV {
		return nil, fmt.Errorf("google stt: unsupported media format %q", spec.Format)
	}
	lang := spec.LanguageCode
	if lang == "" {
		lang = c.cfg.LanguageCode
	}
	output := fmt.Sprintf("gs://%s/%s.json", spec.OutputBucket, spec.Name)

	op, err := c.client.LongRunningRecognize(ctx, &speechpb.LongRunningRecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:        parseAudioEncoding(c.cfg.AudioEncoding),
			SampleRateHertz: int32(c.cfg.SampleRateHz),
			LanguageCode:    lang,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Uri{Uri: spec.SourceURI},
		},
		OutputConfig: &speechpb.TranscriptOutputConfig{
			OutputType: &speechpb.TranscriptOutputConfig_GcsUri{GcsUri: output},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("long running recognize: %w", err)
	}

	c.mu.Lock()
	c.outputs[op.Name()] = output
	c.mu.Unlock()

	return &models.TranscriptionJob{JobID: op.Name(), SourceURI: spec.SourceURI, Status: models.JobInProgress}, nil
}

func (c *Client) Status(ctx context.Context, jobID string) (*models.TranscriptionJob, error) {
	op := c.client.LongRunningRecognizeOperation(jobID)
	resp, err := op.Poll(ctx)

	job := &models.TranscriptionJob{JobID: jobID, Status: models.JobInProgress}
	if !op.Done() {
		if err != nil {
			return nil, fmt.Errorf("poll operation %s: %w", jobID, err)
		}
		return job, nil
	}

	c.mu.Lock()
	output := c.outputs[jobID]
	delete(c.outputs, jobID)
	c.mu.Unlock()

	if err != nil {
		job.Status = models.JobFailed
		job.FailureReason = err.Error()
		return job, nil
	}
	if resp != nil {
		if st := resp.GetOutputError(); st != nil {
			job.Status = models.JobFailed
			job.FailureReason = st.GetMessage()
			return job, nil
		}
		if uri := resp.GetOutputConfig().GetGcsUri(); uri != "" {
			output = uri
		}
	}
	job.Status = models.JobCompleted
	job.ResultURI = output
	return job, nil
}

type gcsTranscript struct {
	Results []struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"results"`
}

// ParseTranscripts joins the top alternative of each result segment into a
// single transcript.
func (c *Client) ParseTranscripts(data []byte) ([]string, error) {
	return parseResults(data)
}

func parseResults(data []byte) ([]string, error) {
	var doc gcsTranscript
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}
	var parts []string
	for _, r := range doc.Results {
		if len(r.Alternatives) == 0 {
			continue
		}
		if t := strings.TrimSpace(r.Alternatives[0].Transcript); t != "" {
			parts = append(parts, t)
		}
	}
	if len(parts) == 0 {
		return []string{}, nil
	}
	return []string{strings.Join(parts, " ")}, nil
}

// Close releases the underlying client.
func (c *Client) Close() error {
	return c.client.Close()
}

// parseAudioEncoding converts a string encoding name to the protobuf enum.
func parseAudioEncoding(encoding string) speechpb.RecognitionConfig_AudioEncoding {
	switch encoding {
	case "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC
	case "AMR":
		return speechpb.RecognitionConfig_AMR
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS
	case "SPEEX_WITH_HEADER_BYTE":
		return speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS
	default:
		return speechpb.RecognitionConfig_LINEAR16
	}
}
