/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Seednode/quizbox/provider"
	"github.com/Seednode/quizbox/quiz"
	"github.com/julienschmidt/httprouter"
)

const maxRequestSize = 64 << 10

type generateRequest struct {
	Topic string `json:"topic"`
}

type generateResponse struct {
	Questions []quiz.Question `json:"questions"`
}

func serveGenerateQuiz(cfg *Config, g *Gateway) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestSize)

		var req generateRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(cfg, w, http.StatusBadRequest, "invalid request body")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), cfg.providerTimeout)
		defer cancel()

		questions, err := provider.Generate(ctx, g.provider, req.Topic)
		switch {
		case errors.Is(err, provider.ErrUnavailable):
			writeError(cfg, w, http.StatusServiceUnavailable, "quiz generation is not configured")
			return
		case err != nil:
			g.log.Warn().Err(err).Str("ip", realIP(r)).Msg("quiz generation failed")
			writeError(cfg, w, statusFor(err), quiz.Reason(err))
			return
		}

		writeJSON(cfg, w, http.StatusOK, generateResponse{Questions: questions})

		g.log.Info().
			Str("ip", realIP(r)).
			Str("topic", req.Topic).
			Dur("elapsed", time.Since(startTime)).
			Msg("served generated quiz")
	}
}

func serveSessionSnapshot(cfg *Config, g *Gateway) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		s, err := g.registry.Get(p.ByName("code"))
		if err != nil {
			writeError(cfg, w, statusFor(err), quiz.Reason(err))
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), actionTimeout)
		defer cancel()

		snapshot, err := s.Snapshot(ctx, "")
		if errors.Is(err, quiz.ErrSessionClosed) {
			err = quiz.ErrRoomNotFound
		}
		if err != nil {
			writeError(cfg, w, statusFor(err), quiz.Reason(err))
			return
		}

		writeJSON(cfg, w, http.StatusOK, snapshot)
	}
}
