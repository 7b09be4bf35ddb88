/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Seednode/quizbox/quiz"
	"github.com/rs/zerolog"
)

const systemPrompt = "You are a helpful education assistant that generates quizzes in strict JSON format."

const userPrompt = `Generate a quiz with exactly %d multiple-choice questions based on the following input: %q.
Each question must be in JSON format with the following schema:
{
  "question": "The question text",
  "options": ["Option 1", "Option 2", "Option 3", "Option 4"],
  "correctAnswerIndex": index (0-3),
  "explanation": "A brief explanation of the correct answer"
}
Return ONLY a JSON object of the form {"questions": [...]} containing these %d objects. No other text.`

// OpenAI talks to any OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	client  *http.Client
	apiKey  string
	baseURL string
	model   string
	log     zerolog.Logger
}

func NewOpenAI(apiKey, baseURL, model string, timeout time.Duration, log zerolog.Logger) *OpenAI {
	return &OpenAI{
		client:  &http.Client{Timeout: timeout},
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		log:     log,
	}
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (o *OpenAI) Generate(ctx context.Context, topic string) ([]quiz.Question, error) {
	body, err := json.Marshal(chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf(userPrompt, QuestionCount, topic, QuestionCount)},
		},
		ResponseFormat: responseFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	startTime := time.Now()

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	o.log.Debug().
		Str("model", o.model).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(startTime)).
		Msg("chat completion returned")

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, truncate(string(data), 200))
	}

	var chat chatResponse
	if err := json.Unmarshal(data, &chat); err != nil {
		return nil, fmt.Errorf("failed to parse API response: %w", err)
	}
	if chat.Error != nil {
		return nil, fmt.Errorf("API error: %s", chat.Error.Message)
	}
	if len(chat.Choices) == 0 {
		return nil, errors.New("empty response from model")
	}

	return parseQuestions(chat.Choices[0].Message.Content)
}

// parseQuestions accepts a bare array or an object wrapping it under
// "questions" or "quiz". Surplus questions are dropped.
func parseQuestions(content string) ([]quiz.Question, error) {
	content = stripFences(content)

	var questions []quiz.Question
	if strings.HasPrefix(content, "[") {
		if err := json.Unmarshal([]byte(content), &questions); err != nil {
			return nil, fmt.Errorf("model returned invalid JSON: %w", err)
		}
	} else {
		var wrapped struct {
			Questions []quiz.Question `json:"questions"`
			Quiz      []quiz.Question `json:"quiz"`
		}
		if err := json.Unmarshal([]byte(content), &wrapped); err != nil {
			return nil, fmt.Errorf("model returned invalid JSON: %w", err)
		}
		questions = wrapped.Questions
		if len(questions) == 0 {
			questions = wrapped.Quiz
		}
	}

	if len(questions) == 0 {
		return nil, errors.New("model returned no questions")
	}
	if len(questions) > QuestionCount {
		questions = questions[:QuestionCount]
	}

	return questions, nil
}

func stripFences(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
