/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package quiz

// ConnID identifies one live client connection.
type ConnID string

// EventType names every outbound message a session can produce.
type EventType string

const (
	EventSessionCreated      EventType = "session_created"
	EventJoinConfirmed       EventType = "join_confirmed"
	EventParticipantsUpdated EventType = "participant_list_updated"
	EventRoundStarted        EventType = "round_started"
	EventTimerTick           EventType = "timer_tick"
	EventAnswerAccepted      EventType = "answer_accepted"
	EventRoundResults        EventType = "round_results"
	EventGameEnded           EventType = "game_ended"
	EventError               EventType = "error"
)

// Event is the envelope written to clients.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

// Emitter delivers events to connections. Sessions call it from their own
// goroutine, so implementations must not call back into the session.
type Emitter interface {
	Deliver(to []ConnID, ev Event)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(to []ConnID, ev Event)

func (f EmitterFunc) Deliver(to []ConnID, ev Event) {
	f(to, ev)
}

// Standing is one participant's line in a participant list or leaderboard.
type Standing struct {
	ID    ConnID `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
	Rank  int    `json:"rank,omitempty"`
}

// Snapshot is the state a client needs to render a session from scratch.
type Snapshot struct {
	Code             string     `json:"code"`
	Phase            Phase      `json:"phase"`
	QuestionIndex    int        `json:"questionIndex"`
	QuestionCount    int        `json:"questionCount"`
	SecondsRemaining int        `json:"secondsRemaining"`
	Participants     []Standing `json:"participants"`
	You              ConnID     `json:"you,omitempty"`
}

type ParticipantsPayload struct {
	Code         string     `json:"code"`
	Participants []Standing `json:"participants"`
}

type RoundStartedPayload struct {
	Question      QuestionView `json:"question"`
	QuestionIndex int          `json:"questionIndex"`
	QuestionCount int          `json:"questionCount"`
	Seconds       int          `json:"seconds"`
}

type TimerTickPayload struct {
	Seconds int `json:"seconds"`
}

type AnswerAcceptedPayload struct {
	QuestionIndex int `json:"questionIndex"`
	Option        int `json:"option"`
}

type RoundResultsPayload struct {
	Leaderboard   []Standing `json:"leaderboard"`
	CorrectIndex  int        `json:"correctAnswer"`
	Explanation   string     `json:"explanation"`
	QuestionIndex int        `json:"questionIndex"`
}

// Reasons carried by GameEndedPayload.
const (
	EndCompleted = "completed"
	EndHostLeft  = "host_left"
	EndIdle      = "idle"
	EndShutdown  = "shutdown"
)

type GameEndedPayload struct {
	Leaderboard []Standing `json:"leaderboard"`
	Reason      string     `json:"reason"`
}

type ErrorPayload struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// ErrorEvent converts a rejected action into the event sent back to the
// connection that issued it.
func ErrorEvent(err error) Event {
	return Event{
		Type: EventError,
		Data: ErrorPayload{
			Kind:    KindOf(err),
			Message: Reason(err),
		},
	}
}
