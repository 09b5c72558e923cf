// Package transport defines the request and response DTOs for the qualify module.
package transport

// ChatTurn is one prior message of the widget conversation, newest last.
type ChatTurn struct {
	Role string `json:"role" validate:"required,oneof=visitor assistant"`
	Text string `json:"text" validate:"required"`
}

// InterceptRequest is the body for a single inbound chat message.
type InterceptRequest struct {
	VisitorID string     `json:"visitorId" validate:"required,min=1,max=200"`
	SessionID string     `json:"sessionId" validate:"omitempty,max=200"`
	Message   string     `json:"message" validate:"required,min=1,max=4000"`
	History   []ChatTurn `json:"history" validate:"omitempty,dive"`
}

// InterceptResponse tells the widget whether the qualifying flow owns the
// turn. When Intercepted is false the widget should route the message to
// normal chat.
type InterceptResponse struct {
	Intercepted bool   `json:"intercepted"`
	Reply       string `json:"reply,omitempty"`
}

// FormSubmitRequest is the body for the lead capture form.
type FormSubmitRequest struct {
	VisitorID string            `json:"visitorId" validate:"required,min=1,max=200"`
	SessionID string            `json:"sessionId" validate:"omitempty,max=200"`
	Fields    map[string]string `json:"fields" validate:"required"`
}

// FormSubmitResponse reports whether the submission started the question flow.
type FormSubmitResponse struct {
	StartedQualifying bool   `json:"startedQualifying"`
	FirstQuestion     string `json:"firstQuestion,omitempty"`
}

// StatusResponse is what the widget reads on load.
type StatusResponse struct {
	FormDone       bool   `json:"formDone"`
	QualifyingDone bool   `json:"qualifyingDone"`
	ShowForm       bool   `json:"showForm"`
	State          string `json:"state"`
}

// VoiceTranscriptMessage is one utterance of a completed voice call.
type VoiceTranscriptMessage struct {
	Role string `json:"role" validate:"required"`
	Text string `json:"text" validate:"required"`
}

// CallEndedRequest is the webhook body posted when a voice call finishes.
type CallEndedRequest struct {
	OrganizationID string                   `json:"organizationId" validate:"required,uuid"`
	VisitorID      string                   `json:"visitorId" validate:"required,min=1,max=200"`
	Messages       []VoiceTranscriptMessage `json:"messages" validate:"required,min=1,dive"`
}
