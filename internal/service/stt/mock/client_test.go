package mock

import (
	"context"
	"testing"

	"interview-assistant-service/internal/models"
	"interview-assistant-service/internal/service/stt"
	"interview-assistant-service/internal/storage"
)

func submit(t *testing.T, c *Client, name string) {
	t.Helper()
	_, err := c.Submit(context.Background(), stt.JobSpec{
		Name:         name,
		SourceURI:    "s3://bucket/audio/x.wav",
		Format:       models.FormatWAV,
		OutputBucket: "bucket",
	})
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
}

func TestClient_CompletesAfterPolls(t *testing.T) {
	store := storage.NewMemory("bucket")
	c := New(store, Behavior{PollsUntilDone: 2, Transcripts: []string{"What is a container?"}})
	submit(t, c, "transcribe_1")

	for i := 0; i < 2; i++ {
		job, err := c.Status(context.Background(), "transcribe_1")
		if err != nil {
			t.Fatal(err)
		}
		if job.Status != models.JobInProgress {
			t.Fatalf("poll %d: expected IN_PROGRESS, got %s", i, job.Status)
		}
	}

	job, err := c.Status(context.Background(), "transcribe_1")
	if err != nil {
		t.Fatal(err)
	}
	if job.Status != models.JobCompleted {
		t.Fatalf("expected COMPLETED, got %s", job.Status)
	}
	if job.ResultURI != "s3://bucket/transcribe_1.json" {
		t.Errorf("unexpected result uri %s", job.ResultURI)
	}

	data, _, err := store.Object("transcribe_1.json")
	if err != nil {
		t.Fatalf("expected result document in store: %v", err)
	}
	got, err := c.ParseTranscripts(data)
	if err != nil || len(got) != 1 || got[0] != "What is a container?" {
		t.Errorf("ParseTranscripts() = %v, %v", got, err)
	}
	if c.Submitted() != 1 || c.StatusCalls() != 3 {
		t.Errorf("unexpected counters submitted=%d status=%d", c.Submitted(), c.StatusCalls())
	}
}

func TestClient_Failure(t *testing.T) {
	c := New(storage.NewMemory("bucket"), Behavior{FailureReason: "Unsupported media"})
	submit(t, c, "j")
	job, err := c.Status(context.Background(), "j")
	if err != nil {
		t.Fatal(err)
	}
	if job.Status != models.JobFailed || job.FailureReason != "Unsupported media" {
		t.Errorf("unexpected job %+v", job)
	}
}

func TestClient_Never(t *testing.T) {
	c := New(storage.NewMemory("bucket"), Behavior{Never: true})
	submit(t, c, "j")
	for i := 0; i < 10; i++ {
		job, err := c.Status(context.Background(), "j")
		if err != nil {
			t.Fatal(err)
		}
		if job.Status.IsTerminal() {
			t.Fatalf("expected job to stay in progress, got %s", job.Status)
		}
	}
}

func TestClient_ResultOverrides(t *testing.T) {
	c := New(storage.NewMemory("bucket"), Behavior{ResultBucket: "other", HTTPSResult: true})
	submit(t, c, "j")
	job, err := c.Status(context.Background(), "j")
	if err != nil {
		t.Fatal(err)
	}
	if job.ResultURI != "https://s3.ap-southeast-2.amazonaws.com/other/j.json" {
		t.Errorf("unexpected result uri %s", job.ResultURI)
	}
}

func TestClient_DuplicateSubmit(t *testing.T) {
	c := New(storage.NewMemory("bucket"), Behavior{})
	submit(t, c, "j")
	if _, err := c.Submit(context.Background(), stt.JobSpec{Name: "j"}); err == nil {
		t.Error("expected duplicate submit to fail")
	}
}

func TestClient_UnknownJob(t *testing.T) {
	c := New(storage.NewMemory("bucket"), Behavior{})
	if _, err := c.Status(context.Background(), "missing"); err == nil {
		t.Error("expected error for unknown job")
	}
}

func TestClient_CyclesDefaultUtterances(t *testing.T) {
	store := storage.NewMemory("bucket")
	c := New(store, Behavior{})
	submit(t, c, "a")
	submit(t, c, "b")
	if _, err := c.Status(context.Background(), "a"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Status(context.Background(), "b"); err != nil {
		t.Fatal(err)
	}
	da, _, _ := store.Object("a.json")
	db, _, _ := store.Object("b.json")
	ta, _ := c.ParseTranscripts(da)
	tb, _ := c.ParseTranscripts(db)
	if ta[0] != DefaultUtterances[0] || tb[0] != DefaultUtterances[1] {
		t.Errorf("expected cycling utterances, got %q and %q", ta[0], tb[0])
	}
}
