/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"defaults", func(*Config) {}, ""},
		{"port too low", func(c *Config) { c.port = 0 }, "invalid port"},
		{"port too high", func(c *Config) { c.port = 65536 }, "invalid port"},
		{"cert without key", func(c *Config) { c.tlsCert = "cert.pem" }, "must be provided together"},
		{"key without cert", func(c *Config) { c.tlsKey = "key.pem" }, "must be provided together"},
		{"short rounds", func(c *Config) { c.roundDuration = 500 * time.Millisecond }, "invalid round duration"},
		{"no points", func(c *Config) { c.points = 0 }, "invalid points"},
		{"negative session timeout", func(c *Config) { c.sessionTimeout = -time.Second }, "invalid session timeout"},
		{"no provider timeout", func(c *Config) { c.providerTimeout = 0 }, "invalid provider timeout"},
		{"provider timeout outlasts pong wait", func(c *Config) { c.providerTimeout = defaultPongWait }, "invalid provider timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.modify(cfg)

			err := cfg.validate()
			switch {
			case tt.want == "" && err != nil:
				t.Fatalf("unexpected error: %v", err)
			case tt.want != "" && (err == nil || !strings.Contains(err.Error(), tt.want)):
				t.Fatalf("got %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestConfigScheme(t *testing.T) {
	cfg := testConfig()
	if cfg.scheme() != "http" {
		t.Errorf("scheme = %q", cfg.scheme())
	}

	cfg.tlsCert, cfg.tlsKey = "cert.pem", "key.pem"
	if cfg.scheme() != "https" {
		t.Errorf("scheme = %q", cfg.scheme())
	}
}

func TestNewCmdDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("QUIZBOX_OPENAI_API_KEY", "")

	cfg := &Config{}
	newCmd(cfg)

	want := Config{
		bind:            "0.0.0.0",
		corsOrigins:     []string{"*"},
		openAIModel:     "gpt-4o-mini",
		openAIURL:       "https://api.openai.com/v1",
		points:          100,
		port:            8080,
		providerTimeout: 45 * time.Second,
		roundDuration:   20 * time.Second,
		sessionTimeout:  60 * time.Minute,
	}
	if diff := cmp.Diff(want, *cfg, cmp.AllowUnexported(Config{})); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestNewCmdReadsEnvironment(t *testing.T) {
	t.Setenv("QUIZBOX_PORT", "9000")
	t.Setenv("QUIZBOX_ROUND_DURATION", "30s")
	t.Setenv("QUIZBOX_CORS_ORIGIN", "https://a.example,https://b.example")
	t.Setenv("OPENAI_API_KEY", "sk-from-env")

	cfg := &Config{}
	cmd := newCmd(cfg)

	if cfg.port != 9000 || cfg.roundDuration != 30*time.Second || cfg.openAIKey != "sk-from-env" {
		t.Errorf("env not applied: %+v", *cfg)
	}
	if diff := cmp.Diff([]string{"https://a.example", "https://b.example"}, cfg.corsOrigins); diff != "" {
		t.Errorf("cors origins mismatch (-want +got):\n%s", diff)
	}

	if err := cmd.ParseFlags([]string{"--port", "7000"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.port != 7000 {
		t.Errorf("flag did not override env: port = %d", cfg.port)
	}
}

func TestNewCmdRejectsInvalidConfig(t *testing.T) {
	cfg := &Config{}
	cmd := newCmd(cfg)
	cmd.SetArgs([]string{"--round-duration", "100ms"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "invalid round duration") {
		t.Fatalf("got %v", err)
	}
}
