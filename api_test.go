/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Seednode/quizbox/provider"
	"github.com/Seednode/quizbox/quiz"
	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
)

func postJSON(t *testing.T, url, body string) (*http.Response, []byte) {
	t.Helper()

	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return resp, data
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return resp, data
}

func TestGenerateQuiz(t *testing.T) {
	p := stubProvider(func(_ context.Context, topic string) ([]quiz.Question, error) {
		switch topic {
		case "broken":
			return nil, errors.New("upstream down")
		case "short":
			return sampleQuestions(provider.QuestionCount - 1), nil
		}
		return sampleQuestions(provider.QuestionCount), nil
	})

	ts := newTestServer(t, p)

	tests := []struct {
		name   string
		body   string
		status int
		err    string
	}{
		{"generated", `{"topic":"deserts"}`, http.StatusOK, ""},
		{"empty topic", `{"topic":"  "}`, http.StatusBadRequest, "topic is required"},
		{"missing topic", `{}`, http.StatusBadRequest, "topic is required"},
		{"unknown field", `{"subject":"deserts"}`, http.StatusBadRequest, "invalid request body"},
		{"not json", `deserts`, http.StatusBadRequest, "invalid request body"},
		{"provider failure", `{"topic":"broken"}`, http.StatusBadGateway, "failed to generate quiz"},
		{"too few questions", `{"topic":"short"}`, http.StatusBadGateway, "failed to generate quiz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := postJSON(t, ts.URL+"/api/generate-quiz", tt.body)
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d: %s", resp.StatusCode, tt.status, data)
			}
			if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
				t.Errorf("content type = %q", ct)
			}

			if tt.err != "" {
				var got errorResponse
				if err := json.Unmarshal(data, &got); err != nil {
					t.Fatalf("decode: %v", err)
				}
				if got.Error != tt.err {
					t.Errorf("error = %q, want %q", got.Error, tt.err)
				}
				return
			}

			var got generateResponse
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if diff := cmp.Diff(sampleQuestions(provider.QuestionCount), got.Questions); diff != "" {
				t.Errorf("questions mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGenerateQuizUnconfigured(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, data := postJSON(t, ts.URL+"/api/generate-quiz", `{"topic":"deserts"}`)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d: %s", resp.StatusCode, data)
	}
}

func TestGenerateQuizBodyLimit(t *testing.T) {
	ts := newTestServer(t, stubProvider(func(context.Context, string) ([]quiz.Question, error) {
		t.Error("provider called for an oversized body")
		return nil, nil
	}))

	body := `{"topic":"` + strings.Repeat("x", maxRequestSize) + `"}`

	resp, err := http.Post(ts.URL+"/api/generate-quiz", "application/json", bytes.NewReader([]byte(body)))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestSessionSnapshot(t *testing.T) {
	ts := newTestServer(t, nil)

	s, err := ts.gateway.registry.Create("host", sampleQuestions(3))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	resp, data := get(t, ts.URL+"/api/sessions/"+s.Code())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, data)
	}

	var got quiz.Snapshot
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}

	want := quiz.Snapshot{
		Code:          s.Code(),
		Phase:         quiz.PhaseLobby,
		QuestionIndex: -1,
		QuestionCount: 3,
		Participants:  []quiz.Standing{},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}

	resp, data = get(t, ts.URL+"/api/sessions/999999")
	if resp.StatusCode != http.StatusNotFound || !strings.Contains(string(data), "room not found") {
		t.Errorf("unknown session: %d %s", resp.StatusCode, data)
	}
}

func TestQRCode(t *testing.T) {
	ts := newTestServer(t, nil)

	s, err := ts.gateway.registry.Create("host", sampleQuestions(1))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	resp, data := get(t, ts.URL+"/qr/"+s.Code())
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("status = %d, content type = %q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Error("response is not a png")
	}
	if v := resp.Header.Get("Cross-Origin-Resource-Policy"); v != "" {
		t.Errorf("qr code cannot be embedded cross-origin: %q", v)
	}

	if resp, _ := get(t, ts.URL+"/qr/123"); resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown session: status = %d", resp.StatusCode)
	}
}

func TestJoinURL(t *testing.T) {
	cfg := testConfig()
	cfg.prefix = "/quiz"

	r := httptest.NewRequest(http.MethodGet, "/quiz/qr/123456", nil)
	r.Host = "play.example:8080"

	if got, want := joinURL(cfg, r, "123456"), "http://play.example:8080/quiz/?code=123456"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	r.Header.Set("X-Forwarded-Proto", "https")
	if got, want := joinURL(cfg, r, "123456"), "https://play.example:8080/quiz/?code=123456"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestServiceEndpoints(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, data := get(t, ts.URL+"/healthz")
	if resp.StatusCode != http.StatusOK || string(data) != "Ok\n" {
		t.Errorf("healthz: %d %q", resp.StatusCode, data)
	}

	resp, data = get(t, ts.URL+"/version")
	if resp.StatusCode != http.StatusOK || string(data) != "quizbox v"+releaseVersion+"\n" {
		t.Errorf("version: %d %q", resp.StatusCode, data)
	}
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
	if got, want := resp.Header.Get("Content-Security-Policy"), "default-src 'none'; frame-ancestors 'none'"; got != want {
		t.Errorf("content security policy = %q, want %q", got, want)
	}
	for _, h := range []string{"Cross-Origin-Embedder-Policy", "Cross-Origin-Resource-Policy", "Permissions-Policy"} {
		if v := resp.Header.Get(h); v != "" {
			t.Errorf("unexpected %s: %q", h, v)
		}
	}

	if resp, _ := get(t, ts.URL+"/debug/pprof/"); resp.StatusCode != http.StatusNotFound {
		t.Errorf("profiling exposed without --profile: %d", resp.StatusCode)
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, nil)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/generate-quiz", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Origin", "https://elsewhere.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("allow origin = %q", got)
	}
}

func TestBuildProvider(t *testing.T) {
	cfg := testConfig()

	p, err := buildProvider(cfg, zerolog.Nop())
	if err != nil || p != nil {
		t.Fatalf("unconfigured: %v, %v", p, err)
	}

	cfg.openAIKey = "sk-test"
	p, err = buildProvider(cfg, zerolog.Nop())
	if _, ok := p.(*provider.OpenAI); err != nil || !ok {
		t.Fatalf("api only: %T, %v", p, err)
	}

	cfg.questionBank = "/nonexistent/bank.yaml"
	if _, err := buildProvider(cfg, zerolog.Nop()); err == nil {
		t.Fatal("missing bank accepted")
	}
}
