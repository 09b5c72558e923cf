package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"chatwidget_backend/internal/qualify/voice"
)

const TaskLateAnswerScan = "qualify.late_answer_scan"

const TaskVoiceTranscript = "qualify.voice_transcript"

// LateAnswerScanPayload carries one ordinary chat message to mine out-of-band.
type LateAnswerScanPayload struct {
	OrganizationID string `json:"organizationId"`
	VisitorID      string `json:"visitorId"`
	Message        string `json:"message"`
}

// VoiceTranscriptPayload carries a completed call transcript.
type VoiceTranscriptPayload struct {
	OrganizationID string                    `json:"organizationId"`
	VisitorID      string                    `json:"visitorId"`
	Messages       []voice.TranscriptMessage `json:"messages"`
}

func NewLateAnswerScanTask(payload LateAnswerScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLateAnswerScan, data), nil
}

func ParseLateAnswerScanPayload(task *asynq.Task) (LateAnswerScanPayload, error) {
	var payload LateAnswerScanPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return LateAnswerScanPayload{}, err
	}
	return payload, nil
}

func NewVoiceTranscriptTask(payload VoiceTranscriptPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskVoiceTranscript, data), nil
}

func ParseVoiceTranscriptPayload(task *asynq.Task) (VoiceTranscriptPayload, error) {
	var payload VoiceTranscriptPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return VoiceTranscriptPayload{}, err
	}
	return payload, nil
}
