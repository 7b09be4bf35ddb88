/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Seednode/quizbox/provider"
	"github.com/Seednode/quizbox/quiz"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	logDate string        = `2006-01-02T15:04:05.000-07:00`
	timeout time.Duration = 10 * time.Second
)

// securityHeaders covers responses that are never rendered as pages. The
// join QR code is meant to be embedded by a frontend on another origin, so
// no cross-origin resource policy is set.
func securityHeaders(cfg *Config, w http.ResponseWriter) {
	w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	if cfg.scheme() == "https" {
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
	}
}

func realIP(r *http.Request) string {
	host, port, _ := net.SplitHostPort(r.RemoteAddr)
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	} else if ip := r.Header.Get("X-Real-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	}
	if net.ParseIP(host) != nil && strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		return host + ":" + port
	}
	return host
}

func serveHealthCheck(cfg *Config, log zerolog.Logger) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)

		if _, err := w.Write([]byte("Ok\n")); err != nil {
			log.Debug().Err(err).Str("ip", realIP(r)).Msg("failed to write health check")
		}
	}
}

func serveVersion(cfg *Config, log zerolog.Logger) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)
		w.WriteHeader(http.StatusOK)

		written, err := w.Write([]byte("quizbox v" + releaseVersion + "\n"))
		if err != nil {
			log.Debug().Err(err).Str("ip", realIP(r)).Msg("failed to write version")

			return
		}

		log.Debug().
			Int("bytes", written).
			Str("ip", realIP(r)).
			Dur("elapsed", time.Since(startTime).Round(time.Microsecond)).
			Msg("served version")
	}
}

// buildProvider chains the question bank ahead of the API, skipping any
// that are not configured. It returns nil when neither is.
func buildProvider(cfg *Config, log zerolog.Logger) (provider.Provider, error) {
	var chain provider.Chain

	if cfg.questionBank != "" {
		bank, err := provider.LoadBank(cfg.questionBank)
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", cfg.questionBank).Int("topics", bank.Len()).Msg("loaded question bank")

		chain = append(chain, bank)
	}

	if cfg.openAIKey != "" {
		chain = append(chain, provider.NewOpenAI(cfg.openAIKey, cfg.openAIURL, cfg.openAIModel, cfg.providerTimeout, log))
	}

	switch len(chain) {
	case 0:
		log.Warn().Msg("no question bank or api key configured, quizzes must be supplied by clients")
		return nil, nil
	case 1:
		return chain[0], nil
	default:
		return chain, nil
	}
}

func sessionOptions(cfg *Config, log zerolog.Logger) quiz.Options {
	opts := quiz.DefaultOptions()
	opts.RoundDuration = cfg.roundDuration
	opts.Points = cfg.points
	opts.IdleTimeout = cfg.sessionTimeout
	opts.Logger = log

	return opts
}

func newRouter(cfg *Config, g *Gateway) http.Handler {
	cfg.prefix = strings.TrimSuffix(cfg.prefix, "/")

	mux := httprouter.New()

	mux.PanicHandler = func(w http.ResponseWriter, r *http.Request, i any) {
		g.log.Error().Interface("panic", i).Str("path", r.URL.Path).Msg("recovered from panic")

		writeError(cfg, w, http.StatusInternalServerError, "An error has occurred. Please try again.")
	}

	mux.GET(cfg.prefix+"/healthz", serveHealthCheck(cfg, g.log))

	mux.GET(cfg.prefix+"/version", serveVersion(cfg, g.log))

	mux.GET(cfg.prefix+"/ws", serveWebsocket(g))

	mux.POST(cfg.prefix+"/api/generate-quiz", serveGenerateQuiz(cfg, g))

	mux.GET(cfg.prefix+"/api/sessions/:code", serveSessionSnapshot(cfg, g))

	mux.GET(cfg.prefix+"/qr/:code", serveQRCode(cfg, g))

	if cfg.profile {
		registerProfileHandlers(cfg, mux)
	}

	return cors.New(cors.Options{
		AllowedOrigins: cfg.corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(mux)
}

func ServePage(ctx context.Context, cfg *Config, args []string) error {
	var err error

	timeZone := os.Getenv("TZ")
	if timeZone != "" {
		time.Local, err = time.LoadLocation(timeZone)
		if err != nil {
			return err
		}
	}

	log := newLogger(cfg, nil)

	log.Info().Str("version", releaseVersion).Msg("starting quizbox")

	p, err := buildProvider(cfg, log)
	if err != nil {
		return err
	}

	g := newGateway(cfg, sessionOptions(cfg, log), p)

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.bind, strconv.Itoa(cfg.port)),
		Handler:           newRouter(cfg, g),
		IdleTimeout:       10 * time.Minute,
		ReadTimeout:       timeout,
		ReadHeaderTimeout: timeout,
		WriteTimeout:      cfg.providerTimeout + timeout,
	}

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		log.Info().Msgf("listening on %s://%s%s/", cfg.scheme(), srv.Addr, cfg.prefix)

		var err error
		if cfg.tlsKey != "" && cfg.tlsCert != "" {
			err = srv.ListenAndServeTLS(cfg.tlsCert, cfg.tlsKey)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	eg.Go(func() error {
		return g.registry.Run(ctx)
	})

	eg.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		g.Close()

		log.Info().Msg("stopped quizbox")

		return err
	})

	return eg.Wait()
}
