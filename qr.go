/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http"
	"net/url"

	"github.com/Seednode/quizbox/quiz"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

const qrSize = 320

// joinURL is the address a participant scans to join the session.
func joinURL(cfg *Config, r *http.Request, code string) string {
	scheme := cfg.scheme()
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	u := url.URL{
		Scheme:   scheme,
		Host:     r.Host,
		Path:     cfg.prefix + "/",
		RawQuery: url.Values{"code": {code}}.Encode(),
	}

	return u.String()
}

func serveQRCode(cfg *Config, g *Gateway) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		code := p.ByName("code")

		if _, err := g.registry.Get(code); err != nil {
			writeError(cfg, w, statusFor(err), quiz.Reason(err))
			return
		}

		png, err := qrcode.Encode(joinURL(cfg, r, code), qrcode.Medium, qrSize)
		if err != nil {
			g.log.Error().Err(err).Str("code", code).Msg("qr generation failed")
			writeError(cfg, w, http.StatusInternalServerError, "qr generation failed")
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		securityHeaders(cfg, w)
		_, _ = w.Write(png)
	}
}
