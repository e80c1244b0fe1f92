package models

// JobStatus is the provider-agnostic state of a transcription job.
type JobStatus string

const (
	JobInProgress JobStatus = "IN_PROGRESS"
	JobCompleted  JobStatus = "COMPLETED"
	JobFailed     JobStatus = "FAILED"
)

// IsTerminal reports whether polling can stop.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// TranscriptionJob is a snapshot of an asynchronous speech-to-text job.
// ResultURI is set only when Status is COMPLETED and FailureReason only
// when Status is FAILED.
type TranscriptionJob struct {
	JobID         string
	SourceURI     string
	Status        JobStatus
	ResultURI     string
	FailureReason string
}
