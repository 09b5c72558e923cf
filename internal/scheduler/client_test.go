package scheduler

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
)

type stubConfig struct {
	redisURL string
}

func (c stubConfig) GetRedisURL() string      { return c.redisURL }
func (c stubConfig) GetRedisTLSInsecure() bool { return false }
func (c stubConfig) GetAsynqQueueName() string { return "qualify" }
func (c stubConfig) GetAsynqConcurrency() int  { return 1 }

func TestClientEnqueuesLateAnswerScan(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewClient(stubConfig{redisURL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	payload := LateAnswerScanPayload{
		OrganizationID: "0a6423e1-9a77-4f29-b6d8-64c924e29de5",
		VisitorID:      "v-123",
		Message:        "we have about 40 people on the team",
	}
	if err := client.DispatchLateAnswerScan(context.Background(), payload); err != nil {
		t.Fatalf("DispatchLateAnswerScan: %v", err)
	}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: mr.Addr()})
	defer inspector.Close()

	tasks, err := inspector.ListPendingTasks("qualify")
	if err != nil {
		t.Fatalf("ListPendingTasks: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("pending tasks = %d, want 1", len(tasks))
	}
	if tasks[0].Type != TaskLateAnswerScan {
		t.Fatalf("task type = %s, want %s", tasks[0].Type, TaskLateAnswerScan)
	}

	parsed, err := ParseLateAnswerScanPayload(asynq.NewTask(tasks[0].Type, tasks[0].Payload))
	if err != nil {
		t.Fatalf("ParseLateAnswerScanPayload: %v", err)
	}
	if parsed != payload {
		t.Fatalf("payload round trip mismatch: %+v", parsed)
	}
}

func TestClientEnqueuesVoiceTranscript(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewClient(stubConfig{redisURL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	err = client.DispatchVoiceTranscript(context.Background(), VoiceTranscriptPayload{
		OrganizationID: "0a6423e1-9a77-4f29-b6d8-64c924e29de5",
		VisitorID:      "v-123",
	})
	if err != nil {
		t.Fatalf("DispatchVoiceTranscript: %v", err)
	}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: mr.Addr()})
	defer inspector.Close()

	tasks, err := inspector.ListPendingTasks("qualify")
	if err != nil {
		t.Fatalf("ListPendingTasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Type != TaskVoiceTranscript {
		t.Fatalf("voice transcript task not enqueued, got %d tasks", len(tasks))
	}
}

func TestNilClientDispatchIsNoop(t *testing.T) {
	var client *Client
	if err := client.DispatchLateAnswerScan(context.Background(), LateAnswerScanPayload{}); err != nil {
		t.Fatalf("nil client dispatch errored: %v", err)
	}
	if err := client.DispatchVoiceTranscript(context.Background(), VoiceTranscriptPayload{}); err != nil {
		t.Fatalf("nil client dispatch errored: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("nil client close errored: %v", err)
	}
}
