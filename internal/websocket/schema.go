package websocket

import (
	"github.com/google/uuid"
	"github.com/stemsi/drivetest-backend/internal/exam"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionSelect  Action = "select"
	ActionAdvance Action = "advance"
	ActionRetreat Action = "retreat"
	ActionSubmit  Action = "submit"
	ActionPing    Action = "ping"
)

// Request is a client message. AnswerID is only read for select.
type Request struct {
	Action   Action    `json:"action"`
	AnswerID uuid.UUID `json:"answer_id,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState     Event = "state"
	EventCompleted Event = "completed"
	EventError     Event = "error"
	EventPong      Event = "pong"
)

// StateResponse carries the session view; sent on every tick and after each action.
type StateResponse struct {
	Event Event         `json:"event"`
	State exam.Snapshot `json:"state"`
}

// CompletedResponse is sent once when the session ends, including on timer expiry.
type CompletedResponse struct {
	Event       Event        `json:"event"`
	Result      *exam.Result `json:"result"`
	ReportError string       `json:"report_error,omitempty"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
