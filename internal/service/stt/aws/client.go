// Package aws provides an Amazon Transcribe job client.
package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/transcribe"
	"github.com/aws/aws-sdk-go-v2/service/transcribe/types"

	"interview-assistant-service/internal/models"
	"interview-assistant-service/internal/service/stt"
)

// TranscribeAPI is the subset of the Transcribe client used here.
type TranscribeAPI interface {
	StartTranscriptionJob(ctx context.Context, params *transcribe.StartTranscriptionJobInput, optFns ...func(*transcribe.Options)) (*transcribe.StartTranscriptionJobOutput, error)
	GetTranscriptionJob(ctx context.Context, params *transcribe.GetTranscriptionJobInput, optFns ...func(*transcribe.Options)) (*transcribe.GetTranscriptionJobOutput, error)
}

// Client implements stt.JobClient on Amazon Transcribe.
type Client struct {
	api TranscribeAPI
}

// New wraps a Transcribe client.
func New(api TranscribeAPI) *Client {
	return &Client{api: api}
}

func (c *Client) Name() string { return "aws" }

func (c *Client) Submit(ctx context.Context, spec stt.JobSpec) (*models.TranscriptionJob, error) {
	in := &transcribe.StartTranscriptionJobInput{
		TranscriptionJobName: aws.String(spec.Name),
		Media:                &types.Media{MediaFileUri: aws.String(spec.SourceURI)},
		MediaFormat:          types.MediaFormat(spec.Format),
		LanguageCode:         types.LanguageCode(spec.LanguageCode),
		Settings:             &types.Settings{ShowAlternatives: aws.Bool(false)},
	}
	if spec.OutputBucket != "" {
		in.OutputBucketName = aws.String(spec.OutputBucket)
	}

	out, err := c.api.StartTranscriptionJob(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("start transcription job %s: %w", spec.Name, err)
	}
	if out.TranscriptionJob == nil {
		return &models.TranscriptionJob{JobID: spec.Name, SourceURI: spec.SourceURI, Status: models.JobInProgress}, nil
	}
	return toJob(out.TranscriptionJob), nil
}

func (c *Client) Status(ctx context.Context, jobID string) (*models.TranscriptionJob, error) {
	out, err := c.api.GetTranscriptionJob(ctx, &transcribe.GetTranscriptionJobInput{
		TranscriptionJobName: aws.String(jobID),
	})
	if err != nil {
		return nil, fmt.Errorf("get transcription job %s: %w", jobID, err)
	}
	if out.TranscriptionJob == nil {
		return nil, fmt.Errorf("transcription job %s: empty response", jobID)
	}
	return toJob(out.TranscriptionJob), nil
}

func (c *Client) ParseTranscripts(data []byte) ([]string, error) {
	return stt.ParseAWSTranscript(data)
}

func toJob(j *types.TranscriptionJob) *models.TranscriptionJob {
	job := &models.TranscriptionJob{
		JobID:  aws.ToString(j.TranscriptionJobName),
		Status: mapStatus(j.TranscriptionJobStatus),
	}
	if j.Media != nil {
		job.SourceURI = aws.ToString(j.Media.MediaFileUri)
	}
	switch job.Status {
	case models.JobCompleted:
		if j.Transcript != nil {
			job.ResultURI = aws.ToString(j.Transcript.TranscriptFileUri)
		}
	case models.JobFailed:
		job.FailureReason = aws.ToString(j.FailureReason)
		if job.FailureReason == "" {
			job.FailureReason = "Unknown"
		}
	}
	return job
}

func mapStatus(s types.TranscriptionJobStatus) models.JobStatus {
	switch s {
	case types.TranscriptionJobStatusCompleted:
		return models.JobCompleted
	case types.TranscriptionJobStatusFailed:
		return models.JobFailed
	default:
		// QUEUED and IN_PROGRESS both keep polling
		return models.JobInProgress
	}
}
