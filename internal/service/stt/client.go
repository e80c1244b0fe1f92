// Package stt defines the asynchronous transcription job client used by
// the interview pipeline. Providers live in subpackages.
package stt

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"interview-assistant-service/internal/models"
)

// JobSpec describes a transcription job to submit.
type JobSpec struct {
	Name         string
	SourceURI    string
	Format       models.AudioFormat
	LanguageCode string
	// OutputBucket is where the provider writes the transcript.
	OutputBucket string
}

// JobClient submits transcription jobs and reports their status.
type JobClient interface {
	// Name identifies the provider in logs and metrics.
	Name() string

	// Submit starts a job and returns its initial snapshot.
	Submit(ctx context.Context, spec JobSpec) (*models.TranscriptionJob, error)

	// Status fetches the current snapshot of a job.
	Status(ctx context.Context, jobID string) (*models.TranscriptionJob, error)

	// ParseTranscripts extracts transcripts from the provider's result
	// document. An empty slice means nothing was recognized.
	ParseTranscripts(data []byte) ([]string, error)
}

// NewJobName returns a unique job name.
func NewJobName() string {
	return "transcribe_" + uuid.NewString()
}

type awsTranscript struct {
	Results struct {
		Transcripts []struct {
			Transcript string `json:"transcript"`
		} `json:"transcripts"`
	} `json:"results"`
}

// ParseAWSTranscript reads results.transcripts[].transcript from an Amazon
// Transcribe output document.
func ParseAWSTranscript(data []byte) ([]string, error) {
	var doc awsTranscript
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}
	out := make([]string, 0, len(doc.Results.Transcripts))
	for _, t := range doc.Results.Transcripts {
		out = append(out, t.Transcript)
	}
	return out, nil
}

// EncodeAWSTranscript renders transcripts in the Amazon Transcribe output
// layout.
func EncodeAWSTranscript(jobName string, transcripts ...string) ([]byte, error) {
	type entry struct {
		Transcript string `json:"transcript"`
	}
	doc := struct {
		JobName string `json:"jobName"`
		Status  string `json:"status"`
		Results struct {
			Transcripts []entry `json:"transcripts"`
		} `json:"results"`
	}{JobName: jobName, Status: string(models.JobCompleted)}
	doc.Results.Transcripts = make([]entry, 0, len(transcripts))
	for _, t := range transcripts {
		doc.Results.Transcripts = append(doc.Results.Transcripts, entry{Transcript: t})
	}
	return json.Marshal(doc)
}
