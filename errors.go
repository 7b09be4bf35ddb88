/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"io"
	"net/http"
	"os"

	"github.com/Seednode/quizbox/quiz"
	"github.com/rs/zerolog"
)

func newLogger(cfg *Config, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stderr
	}

	level := zerolog.WarnLevel
	if cfg.verbose {
		level = zerolog.DebugLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: logDate}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(cfg *Config, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	securityHeaders(cfg, w)
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(v)
}

func writeError(cfg *Config, w http.ResponseWriter, status int, message string) {
	writeJSON(cfg, w, status, errorResponse{Error: message})
}

// statusFor maps a quiz error onto the HTTP status reported for it.
func statusFor(err error) int {
	switch quiz.KindOf(err) {
	case quiz.KindValidation:
		return http.StatusBadRequest
	case quiz.KindNotFound:
		return http.StatusNotFound
	case quiz.KindAuthorization:
		return http.StatusForbidden
	case quiz.KindState:
		return http.StatusConflict
	case quiz.KindProvider:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
