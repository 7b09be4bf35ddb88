/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package provider

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Seednode/quizbox/quiz"
	"gopkg.in/yaml.v3"
)

// Bank serves fixed question sets from a YAML file:
//
//	topics:
//	  - name: Geography
//	    questions:
//	      - question: Capital of France?
//	        options: [Paris, Rome, Oslo, Bern]
//	        correctAnswerIndex: 0
//	        explanation: Paris has been the capital since 987.
type Bank struct {
	topics map[string][]quiz.Question
}

type bankFile struct {
	Topics []struct {
		Name      string         `yaml:"name"`
		Questions []bankQuestion `yaml:"questions"`
	} `yaml:"topics"`
}

type bankQuestion struct {
	Question           string   `yaml:"question"`
	Options            []string `yaml:"options"`
	CorrectAnswerIndex *int     `yaml:"correctAnswerIndex"`
	Explanation        string   `yaml:"explanation"`
}

func LoadBank(path string) (*Bank, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open question bank: %w", err)
	}
	defer f.Close()

	return ReadBank(f)
}

// ReadBank parses and validates a bank. Every topic must hold exactly
// QuestionCount valid questions.
func ReadBank(r io.Reader) (*Bank, error) {
	var file bankFile

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse question bank: %w", err)
	}

	b := &Bank{topics: make(map[string][]quiz.Question, len(file.Topics))}

	for _, t := range file.Topics {
		key := topicKey(t.Name)
		if key == "" {
			return nil, fmt.Errorf("question bank: topic without a name")
		}
		if _, dup := b.topics[key]; dup {
			return nil, fmt.Errorf("question bank: duplicate topic %q", t.Name)
		}

		questions := make([]quiz.Question, 0, len(t.Questions))
		for i, q := range t.Questions {
			if q.CorrectAnswerIndex == nil {
				return nil, fmt.Errorf("question bank: topic %q question %d: missing correctAnswerIndex", t.Name, i+1)
			}
			questions = append(questions, quiz.Question{
				Prompt:       q.Question,
				Options:      q.Options,
				CorrectIndex: *q.CorrectAnswerIndex,
				Explanation:  q.Explanation,
			})
		}
		if err := Validate(questions); err != nil {
			return nil, fmt.Errorf("question bank: topic %q: %w", t.Name, err)
		}

		b.topics[key] = questions
	}

	return b, nil
}

func (b *Bank) Generate(_ context.Context, topic string) ([]quiz.Question, error) {
	questions, ok := b.topics[topicKey(topic)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
	}

	return append([]quiz.Question(nil), questions...), nil
}

func (b *Bank) Len() int {
	return len(b.topics)
}

func topicKey(topic string) string {
	return strings.ToLower(strings.TrimSpace(topic))
}
