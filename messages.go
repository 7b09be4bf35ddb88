/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"bytes"
	"encoding/json"

	"github.com/Seednode/quizbox/quiz"
)

const (
	actionCreate  = "create_session"
	actionJoin    = "join_session"
	actionStart   = "start_game"
	actionSubmit  = "submit_answer"
	actionAdvance = "advance_round"
)

var (
	errMalformed       = &quiz.Error{Kind: quiz.KindValidation, Reason: "malformed message"}
	errUnknownAction   = &quiz.Error{Kind: quiz.KindValidation, Reason: "unknown message type"}
	errUnexpectedField = &quiz.Error{Kind: quiz.KindValidation, Reason: "unexpected field for message type"}
	errMissingCode     = &quiz.Error{Kind: quiz.KindValidation, Reason: "code is required"}
	errMissingOption   = &quiz.Error{Kind: quiz.KindValidation, Reason: "option is required"}
	errQuizSource      = &quiz.Error{Kind: quiz.KindValidation, Reason: "provide either questions or a topic"}
	errInSession       = &quiz.Error{Kind: quiz.KindState, Reason: "connection already belongs to a session"}
)

// ClientMessage is every request a client may send over the websocket.
type ClientMessage struct {
	Type      string          `json:"type"`
	Code      string          `json:"code,omitempty"`
	Name      string          `json:"name,omitempty"`
	Option    *int            `json:"option,omitempty"`
	Topic     string          `json:"topic,omitempty"`
	Questions []quiz.Question `json:"questions,omitempty"`
}

type field uint8

const (
	fieldCode field = 1 << iota
	fieldName
	fieldOption
	fieldTopic
	fieldQuestions
)

var allowedFields = map[string]field{
	actionCreate:  fieldTopic | fieldQuestions,
	actionJoin:    fieldCode | fieldName,
	actionStart:   fieldCode,
	actionSubmit:  fieldCode | fieldOption,
	actionAdvance: fieldCode,
}

func (m ClientMessage) present() field {
	var f field
	if m.Code != "" {
		f |= fieldCode
	}
	if m.Name != "" {
		f |= fieldName
	}
	if m.Option != nil {
		f |= fieldOption
	}
	if m.Topic != "" {
		f |= fieldTopic
	}
	if m.Questions != nil {
		f |= fieldQuestions
	}
	return f
}

// decodeClientMessage parses one frame and checks it carries exactly the
// fields its type needs. Name and question contents are left to the session.
func decodeClientMessage(data []byte) (ClientMessage, error) {
	var msg ClientMessage

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&msg); err != nil {
		return msg, errMalformed
	}
	if dec.More() {
		return msg, errMalformed
	}

	allowed, ok := allowedFields[msg.Type]
	if !ok {
		return msg, errUnknownAction
	}
	if msg.present()&^allowed != 0 {
		return msg, errUnexpectedField
	}

	switch msg.Type {
	case actionCreate:
		if (msg.Topic == "") == (msg.Questions == nil) {
			return msg, errQuizSource
		}
	case actionSubmit:
		if msg.Code == "" {
			return msg, errMissingCode
		}
		if msg.Option == nil {
			return msg, errMissingOption
		}
	case actionJoin, actionStart, actionAdvance:
		if msg.Code == "" {
			return msg, errMissingCode
		}
	}

	return msg, nil
}
