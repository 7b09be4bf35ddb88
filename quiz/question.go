/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package quiz

import (
	"encoding/json"
	"fmt"
	"strings"
)

// OptionCount is the number of answer options every question carries.
const OptionCount = 4

// Question is immutable once a session has been created with it.
type Question struct {
	Prompt       string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctAnswerIndex"`
	Explanation  string   `json:"explanation"`
}

// QuestionView is what participants see while a round is running.
type QuestionView struct {
	Prompt  string   `json:"question"`
	Options []string `json:"options"`
}

// UnmarshalJSON rejects questions that omit the correct answer index,
// which would otherwise silently decode as option 0.
func (q *Question) UnmarshalJSON(data []byte) error {
	var raw struct {
		Prompt       string   `json:"question"`
		Options      []string `json:"options"`
		CorrectIndex *int     `json:"correctAnswerIndex"`
		Explanation  string   `json:"explanation"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.CorrectIndex == nil {
		return fmt.Errorf("question %q: missing correctAnswerIndex", raw.Prompt)
	}

	*q = Question{
		Prompt:       raw.Prompt,
		Options:      raw.Options,
		CorrectIndex: *raw.CorrectIndex,
		Explanation:  raw.Explanation,
	}

	return nil
}

func (q Question) Validate() error {
	if strings.TrimSpace(q.Prompt) == "" {
		return fmt.Errorf("question text is empty")
	}
	if len(q.Options) != OptionCount {
		return fmt.Errorf("question %q: want %d options, got %d", q.Prompt, OptionCount, len(q.Options))
	}
	for i, o := range q.Options {
		if strings.TrimSpace(o) == "" {
			return fmt.Errorf("question %q: option %d is empty", q.Prompt, i)
		}
	}
	if q.CorrectIndex < 0 || q.CorrectIndex >= OptionCount {
		return fmt.Errorf("question %q: correct index %d out of range", q.Prompt, q.CorrectIndex)
	}

	return nil
}

func (q Question) view() QuestionView {
	return QuestionView{
		Prompt:  q.Prompt,
		Options: append([]string(nil), q.Options...),
	}
}

// ValidateQuestions checks a question list before a session is built from it.
func ValidateQuestions(questions []Question) error {
	if len(questions) == 0 {
		return ErrNoQuestions
	}
	for i, q := range questions {
		if err := q.Validate(); err != nil {
			return &Error{Kind: KindValidation, Reason: fmt.Sprintf("invalid question %d", i+1), Err: err}
		}
	}

	return nil
}
