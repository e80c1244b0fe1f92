// Package mock provides a simulated transcription job client for local runs
// and tests. Jobs complete after a configurable number of polls and write an
// Amazon Transcribe style result document into the object store.
package mock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"interview-assistant-service/internal/models"
	"interview-assistant-service/internal/service/stt"
	"interview-assistant-service/internal/storage"
)

// DefaultUtterances are the transcripts simulated jobs produce, in turn.
var DefaultUtterances = []string{
	"What is a container?",
	"How does a Kubernetes deployment roll out a new version?",
	"Explain the difference between blue green and canary releases",
	"What is infrastructure as code?",
	"How would you debug a failing CI pipeline?",
}

// Behavior controls how simulated jobs progress.
type Behavior struct {
	// PollsUntilDone is the number of Status calls that report
	// IN_PROGRESS before the job becomes terminal.
	PollsUntilDone int
	// FailureReason makes jobs fail instead of complete.
	FailureReason string
	// Never keeps jobs in progress forever.
	Never bool
	// Transcripts overrides the produced transcripts; an empty non-nil
	// slice produces a document with no transcripts.
	Transcripts []string
	// ResultBucket writes the result URI against another bucket.
	ResultBucket string
	// HTTPSResult reports the result as an https path-style URL.
	HTTPSResult bool
	// SkipUpload reports completion without writing the document.
	SkipUpload bool
}

type job struct {
	spec  stt.JobSpec
	polls int
	done  *models.TranscriptionJob
}

// Client implements stt.JobClient without any cloud provider.
type Client struct {
	store    storage.ObjectStore
	behavior Behavior

	mu        sync.Mutex
	jobs      map[string]*job
	next      int
	submitted int
	statuses  int
}

// New creates a simulated client writing results to store.
func New(store storage.ObjectStore, behavior Behavior) *Client {
	return &Client{store: store, behavior: behavior, jobs: make(map[string]*job)}
}

func (c *Client) Name() string { return "mock" }

func (c *Client) Submit(ctx context.Context, spec stt.JobSpec) (*models.TranscriptionJob, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.jobs[spec.Name]; ok {
		return nil, fmt.Errorf("job %s already exists", spec.Name)
	}
	c.jobs[spec.Name] = &job{spec: spec}
	c.submitted++
	return &models.TranscriptionJob{JobID: spec.Name, SourceURI: spec.SourceURI, Status: models.JobInProgress}, nil
}

func (c *Client) Status(ctx context.Context, jobID string) (*models.TranscriptionJob, error) {
	c.mu.Lock()
	j, ok := c.jobs[jobID]
	c.statuses++
	if !ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("job %s not found", jobID)
	}
	if j.done != nil {
		snapshot := *j.done
		c.mu.Unlock()
		return &snapshot, nil
	}
	j.polls++
	if c.behavior.Never || j.polls <= c.behavior.PollsUntilDone {
		c.mu.Unlock()
		return &models.TranscriptionJob{JobID: jobID, SourceURI: j.spec.SourceURI, Status: models.JobInProgress}, nil
	}
	transcripts := c.behavior.Transcripts
	if transcripts == nil {
		transcripts = []string{DefaultUtterances[c.next%len(DefaultUtterances)]}
		c.next++
	}
	c.mu.Unlock()

	done, err := c.finish(ctx, j.spec, transcripts)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	j.done = done
	c.mu.Unlock()
	snapshot := *done
	return &snapshot, nil
}

func (c *Client) finish(ctx context.Context, spec stt.JobSpec, transcripts []string) (*models.TranscriptionJob, error) {
	out := &models.TranscriptionJob{JobID: spec.Name, SourceURI: spec.SourceURI}
	if c.behavior.FailureReason != "" {
		out.Status = models.JobFailed
		out.FailureReason = c.behavior.FailureReason
		return out, nil
	}

	key := spec.Name + ".json"
	if !c.behavior.SkipUpload {
		if err := c.upload(ctx, key, spec.Name, transcripts); err != nil {
			return nil, err
		}
	}

	bucket := spec.OutputBucket
	if c.behavior.ResultBucket != "" {
		bucket = c.behavior.ResultBucket
	}
	out.Status = models.JobCompleted
	if c.behavior.HTTPSResult {
		out.ResultURI = fmt.Sprintf("https://s3.ap-southeast-2.amazonaws.com/%s/%s", bucket, key)
	} else {
		out.ResultURI = fmt.Sprintf("s3://%s/%s", bucket, key)
	}
	return out, nil
}

func (c *Client) upload(ctx context.Context, key, jobName string, transcripts []string) error {
	data, err := stt.EncodeAWSTranscript(jobName, transcripts...)
	if err != nil {
		return err
	}
	dir, err := os.MkdirTemp("", "mockstt")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, key)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	return c.store.Put(ctx, key, path, "application/json")
}

func (c *Client) ParseTranscripts(data []byte) ([]string, error) {
	return stt.ParseAWSTranscript(data)
}

// Submitted returns how many jobs were submitted.
func (c *Client) Submitted() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitted
}

// StatusCalls returns how many times Status was called.
func (c *Client) StatusCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statuses
}
