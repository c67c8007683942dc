package proctor

import "github.com/google/uuid"

// MessageType names a proctoring channel message.
type MessageType string

// ─── Client → Server ────────────────────────────────────────────────

const (
	TypeHeartbeat    MessageType = "heartbeat"
	TypeAnswerUpdate MessageType = "answer_update"
	TypeTimeSync     MessageType = "time_sync"
	TypeRequestHelp  MessageType = "request_help"
)

// Inbound is a message sent by a connected client.
type Inbound struct {
	Type               MessageType `json:"type"`
	ItemID             string      `json:"item_id,omitempty"`
	AttemptedQuestions int         `json:"attempted_questions,omitempty"`
	Message            string      `json:"message,omitempty"`
	ClientTime         int64       `json:"client_time,omitempty"`
}

// ─── Server → Client ────────────────────────────────────────────────

const (
	TypeWelcome          MessageType = "welcome"
	TypeAnnouncement     MessageType = "announcement"
	TypeWarning          MessageType = "warning"
	TypeForceSubmit      MessageType = "force_submit"
	TypeUserDisconnected MessageType = "user_disconnected"
	TypeHelpRequest      MessageType = "help_request"
	TypeAttemptSubmitted MessageType = "attempt_submitted"
	TypeError            MessageType = "error"
)

// Message is the envelope of every server-originated message. Timestamp is
// epoch milliseconds and is always set.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp int64       `json:"timestamp"`

	ExamID    string `json:"exam_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	AttemptID string `json:"attempt_id,omitempty"`
	Message   string `json:"message,omitempty"`

	ItemID             string `json:"item_id,omitempty"`
	AttemptedQuestions int    `json:"attempted_questions,omitempty"`

	ServerTime       int64 `json:"server_time,omitempty"`
	ClientTime       int64 `json:"client_time,omitempty"`
	HeartbeatSeconds int   `json:"heartbeat_seconds,omitempty"`

	FinalScore *float64 `json:"final_score,omitempty"`
	Result     string   `json:"result,omitempty"`
	Reason     string   `json:"reason,omitempty"`
}

// Audience selects which connections of a room receive a command.
type Audience string

const (
	AudienceRoom     Audience = "room"
	AudienceUser     Audience = "user"
	AudienceProctors Audience = "proctors"
)

// Command is a server-initiated message addressed to part of an exam room.
// It is the unit published across instances by the relay.
type Command struct {
	ExamID   uuid.UUID `json:"exam_id"`
	Audience Audience  `json:"audience"`
	UserID   uuid.UUID `json:"user_id"`
	Message  Message   `json:"message"`
}
