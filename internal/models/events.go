package models

// InterviewEvent is published once per pipeline invocation.
type InterviewEvent struct {
	EventType  string `json:"eventType"`
	RequestID  string `json:"requestId"`
	InputType  string `json:"inputType"`
	Timestamp  int64  `json:"timestamp"`
	DurationMs int64  `json:"durationMs"`
	AnswerLen  int    `json:"answerLength,omitempty"`
	AudioURL   string `json:"audioUrl,omitempty"`
	Stage      string `json:"stage,omitempty"`
	Error      string `json:"error,omitempty"`
}

// DeliveryEvent is published once an inbound message reaches a terminal
// routing state.
type DeliveryEvent struct {
	EventType string  `json:"eventType"`
	MessageID string  `json:"messageId"`
	Channel   Channel `json:"channel"`
	SenderID  string  `json:"senderId"`
	State     string  `json:"state"`
	Timestamp int64   `json:"timestamp"`
	Error     string  `json:"error,omitempty"`
}

const (
	EventInterviewCompleted = "interview.completed"
	EventInterviewFailed    = "interview.failed"
)
