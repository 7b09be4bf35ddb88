/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package quiz

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

const (
	codeMin   = 100000
	codeSpace = 900000

	endTimeout = time.Second
)

// Options configures every session a Registry creates.
type Options struct {
	RoundDuration time.Duration
	Points        int

	// IdleTimeout reclaims sessions that accepted no command for this long.
	// Zero disables reaping.
	IdleTimeout time.Duration

	Clock  clockwork.Clock
	Logger zerolog.Logger

	// IntN draws join codes; it must return a uniform value in [0, n).
	IntN func(n int) int
}

func DefaultOptions() Options {
	return Options{
		RoundDuration: 20 * time.Second,
		Points:        100,
		IdleTimeout:   60 * time.Minute,
		Clock:         clockwork.NewRealClock(),
		Logger:        zerolog.Nop(),
		IntN:          cryptoIntN,
	}
}

func cryptoIntN(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic("crypto/rand failure: " + err.Error())
	}
	return int(v.Int64())
}

// Registry owns every live session, keyed by join code.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session

	emitter Emitter
	opts    Options
	log     zerolog.Logger
}

func NewRegistry(emitter Emitter, opts Options) *Registry {
	defaults := DefaultOptions()
	if opts.Clock == nil {
		opts.Clock = defaults.Clock
	}
	if opts.IntN == nil {
		opts.IntN = defaults.IntN
	}
	if opts.RoundDuration <= 0 {
		opts.RoundDuration = defaults.RoundDuration
	}
	if opts.Points <= 0 {
		opts.Points = defaults.Points
	}

	return &Registry{
		sessions: make(map[string]*Session),
		emitter:  emitter,
		opts:     opts,
		log:      opts.Logger,
	}
}

// Create starts a session in the lobby with host as its only authority.
func (r *Registry) Create(host ConnID, questions []Question) (*Session, error) {
	if err := ValidateQuestions(questions); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	code, err := r.allocateLocked()
	if err != nil {
		return nil, err
	}

	s := newSession(code, host, questions, r.emitter, r.opts, r.Remove)
	r.sessions[code] = s

	r.log.Info().Str("code", code).Str("host", string(host)).Int("questions", len(questions)).Msg("session created")

	return s, nil
}

func (r *Registry) allocateLocked() (string, error) {
	if len(r.sessions) >= codeSpace {
		r.log.Error().Int("sessions", len(r.sessions)).Msg("no join codes left")
		return "", ErrCodeSpaceExhausted
	}

	for {
		code := strconv.Itoa(codeMin + r.opts.IntN(codeSpace))
		if _, exists := r.sessions[code]; !exists {
			return code, nil
		}
	}
}

func (r *Registry) Get(code string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[code]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return s, nil
}

// Remove stops and forgets the session. Removing an unknown code is a no-op.
func (r *Registry) Remove(code string) {
	r.mu.Lock()
	s, ok := r.sessions[code]
	delete(r.sessions, code)
	r.mu.Unlock()

	if !ok {
		return
	}

	s.Close()
	r.log.Info().Str("code", code).Msg("session removed")
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.sessions)
}

// Close ends and removes every session.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		r.shutdown(s, EndShutdown)
	}
}

// shutdown tells everyone in s that the game is over, then stops it. It
// must not be called from a session's own goroutine.
func (r *Registry) shutdown(s *Session, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), endTimeout)
	defer cancel()

	if err := s.end(ctx, reason); err != nil && !errors.Is(err, ErrSessionClosed) {
		r.log.Warn().Err(err).Str("code", s.code).Msg("failed to end session")
	}
	s.Close()
}

// Reap removes sessions idle since before cutoff and returns their codes.
func (r *Registry) Reap(cutoff time.Time) []string {
	r.mu.Lock()
	var stale []*Session
	for code, s := range r.sessions {
		if s.LastActive().Before(cutoff) {
			stale = append(stale, s)
			delete(r.sessions, code)
		}
	}
	r.mu.Unlock()

	codes := make([]string, 0, len(stale))
	for _, s := range stale {
		r.shutdown(s, EndIdle)
		codes = append(codes, s.code)
		r.log.Info().Str("code", s.code).Time("last_active", s.LastActive()).Msg("reaped idle session")
	}

	return codes
}

// Run reaps idle sessions every IdleTimeout/2 until ctx is cancelled.
func (r *Registry) Run(ctx context.Context) error {
	if r.opts.IdleTimeout <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := r.opts.Clock.NewTicker(r.opts.IdleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			r.Reap(r.opts.Clock.Now().Add(-r.opts.IdleTimeout))
		}
	}
}
