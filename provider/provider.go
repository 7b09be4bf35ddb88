/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package provider generates question sets for new quiz sessions.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Seednode/quizbox/quiz"
)

// QuestionCount is the number of questions every provider must return.
const QuestionCount = 10

var (
	ErrEmptyTopic   = &quiz.Error{Kind: quiz.KindValidation, Reason: "topic is required"}
	ErrUnknownTopic = errors.New("unknown topic")
	ErrUnavailable  = errors.New("no content provider configured")
)

// Provider turns a topic into questions. Implementations do not need to
// validate their output; Generate does that.
type Provider interface {
	Generate(ctx context.Context, topic string) ([]quiz.Question, error)
}

// Generate asks p for a quiz on topic and enforces the content contract:
// exactly QuestionCount well-formed questions or a provider error.
func Generate(ctx context.Context, p Provider, topic string) ([]quiz.Question, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, ErrEmptyTopic
	}
	if p == nil {
		return nil, quiz.NewProviderError(ErrUnavailable)
	}

	questions, err := p.Generate(ctx, topic)
	if err != nil {
		return nil, quiz.NewProviderError(err)
	}
	if err := Validate(questions); err != nil {
		return nil, quiz.NewProviderError(err)
	}

	return questions, nil
}

func Validate(questions []quiz.Question) error {
	if len(questions) != QuestionCount {
		return fmt.Errorf("want %d questions, got %d", QuestionCount, len(questions))
	}
	for i, q := range questions {
		if err := q.Validate(); err != nil {
			return fmt.Errorf("question %d: %w", i+1, err)
		}
	}

	return nil
}

// Chain tries each provider in order, moving on only when one reports
// ErrUnknownTopic.
type Chain []Provider

func (c Chain) Generate(ctx context.Context, topic string) ([]quiz.Question, error) {
	for _, p := range c {
		questions, err := p.Generate(ctx, topic)
		if errors.Is(err, ErrUnknownTopic) {
			continue
		}
		return questions, err
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
}
