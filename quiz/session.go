/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package quiz runs live quiz sessions. Each session owns its state on a
// single goroutine; callers talk to it through blocking methods and receive
// its output through an Emitter.
package quiz

import (
	"context"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

// Phase is the session's position in its state machine.
type Phase string

const (
	PhaseLobby          Phase = "lobby"
	PhaseActiveQuestion Phase = "active_question"
	PhaseRoundResults   Phase = "round_results"
	PhaseEnded          Phase = "ended"
)

const maxNameLength = 32

// Participant is a joined, scored player. It lives exactly as long as the
// connection that created it.
type Participant struct {
	ID    ConnID
	Name  string
	Score int
}

// Session owns one quiz run. All state below the inbox is touched only by
// the run goroutine; callers talk to it through commands.
type Session struct {
	code      string
	host      ConnID
	questions []Question
	seconds   int
	points    int

	emitter Emitter
	log     zerolog.Logger
	opts    Options
	release func(code string)

	inbox  chan envelope
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	lastActive atomic.Int64

	phase        Phase
	index        int
	remaining    int
	participants map[ConnID]*Participant
	order        []ConnID
	answered     map[ConnID]bool
	stopTimer    context.CancelFunc
}

type command interface {
	apply(s *Session) reply
}

type envelope struct {
	cmd   command
	reply chan reply
}

type reply struct {
	snap Snapshot
	err  error
}

type joinCmd struct {
	conn ConnID
	name string
}

type leaveCmd struct {
	conn ConnID
}

type startCmd struct {
	conn ConnID
}

type submitCmd struct {
	conn   ConnID
	option int
}

type advanceCmd struct {
	conn ConnID
}

type snapshotCmd struct {
	conn ConnID
}

// tickCmd is posted by the round timer. index identifies the round it was
// started for, so ticks from a superseded timer are ignored.
type endCmd struct {
	reason string
}

type tickCmd struct {
	index int
}

func newSession(code string, host ConnID, questions []Question, emitter Emitter, opts Options, release func(string)) *Session {
	ctx, cancel := context.WithCancel(context.Background())

	seconds := int(opts.RoundDuration / time.Second)
	if seconds < 1 {
		seconds = 1
	}

	s := &Session{
		code:         code,
		host:         host,
		questions:    append([]Question(nil), questions...),
		seconds:      seconds,
		points:       opts.Points,
		emitter:      emitter,
		log:          opts.Logger.With().Str("code", code).Logger(),
		opts:         opts,
		release:      release,
		inbox:        make(chan envelope, 16),
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
		phase:        PhaseLobby,
		index:        -1,
		remaining:    seconds,
		participants: make(map[ConnID]*Participant),
		answered:     make(map[ConnID]bool),
	}
	s.touch()

	go s.run()

	return s
}

func (s *Session) Code() string {
	return s.code
}

func (s *Session) Host() ConnID {
	return s.host
}

// LastActive is the time the session last accepted a command.
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

// Done is closed once the session has stopped processing commands.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close stops the session and its timer. It does not wait for the run
// loop to exit and is safe to call from anywhere, including an Emitter.
func (s *Session) Close() {
	s.cancel()
}

// Join adds conn as a participant named name.
func (s *Session) Join(ctx context.Context, conn ConnID, name string) error {
	_, err := s.do(ctx, joinCmd{conn: conn, name: name})
	return err
}

// Leave removes conn from the session. Leaving as host ends the game.
func (s *Session) Leave(ctx context.Context, conn ConnID) error {
	_, err := s.do(ctx, leaveCmd{conn: conn})
	return err
}

// Start opens the first round. Only the host may call it.
func (s *Session) Start(ctx context.Context, conn ConnID) error {
	_, err := s.do(ctx, startCmd{conn: conn})
	return err
}

// Submit records conn's answer for the active round.
func (s *Session) Submit(ctx context.Context, conn ConnID, option int) error {
	_, err := s.do(ctx, submitCmd{conn: conn, option: option})
	return err
}

// Advance moves from round results to the next round, or ends the game
// after the last question. Only the host may call it.
func (s *Session) Advance(ctx context.Context, conn ConnID) error {
	_, err := s.do(ctx, advanceCmd{conn: conn})
	return err
}

// end finishes the game for everyone with reason, unless it already ended.
func (s *Session) end(ctx context.Context, reason string) error {
	_, err := s.do(ctx, endCmd{reason: reason})
	return err
}

// Snapshot returns the current state as seen by conn.
func (s *Session) Snapshot(ctx context.Context, conn ConnID) (Snapshot, error) {
	return s.do(ctx, snapshotCmd{conn: conn})
}

func (s *Session) do(ctx context.Context, cmd command) (Snapshot, error) {
	env := envelope{
		cmd:   cmd,
		reply: make(chan reply, 1),
	}

	select {
	case s.inbox <- env:
	case <-s.done:
		return Snapshot{}, ErrSessionClosed
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}

	select {
	case r := <-env.reply:
		return r.snap, r.err
	case <-s.done:
		select {
		case r := <-env.reply:
			return r.snap, r.err
		default:
			return Snapshot{}, ErrSessionClosed
		}
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

func (s *Session) run() {
	defer close(s.done)
	defer s.cancelTimer()

	for {
		select {
		case <-s.ctx.Done():
			return
		case env := <-s.inbox:
			r := env.cmd.apply(s)
			if env.reply != nil {
				env.reply <- r
			}
		}
	}
}

func (s *Session) touch() {
	s.lastActive.Store(s.opts.Clock.Now().UnixNano())
}

func (s *Session) audience() []ConnID {
	to := make([]ConnID, 0, len(s.order)+1)
	to = append(to, s.host)
	to = append(to, s.order...)
	return to
}

func (s *Session) broadcast(t EventType, data any) {
	s.emitter.Deliver(s.audience(), Event{Type: t, Data: data})
}

func (s *Session) unicast(conn ConnID, t EventType, data any) {
	s.emitter.Deliver([]ConnID{conn}, Event{Type: t, Data: data})
}

func (s *Session) snapshot(conn ConnID) Snapshot {
	snap := Snapshot{
		Code:             s.code,
		Phase:            s.phase,
		QuestionIndex:    s.index,
		QuestionCount:    len(s.questions),
		SecondsRemaining: s.remaining,
		Participants:     s.roster(),
		You:              conn,
	}
	return snap
}

func (c joinCmd) apply(s *Session) reply {
	name := strings.TrimSpace(c.name)
	switch {
	case name == "":
		return reply{err: ErrEmptyName}
	case utf8.RuneCountInString(name) > maxNameLength:
		return reply{err: ErrNameTooLong}
	case c.conn == s.host:
		return reply{err: ErrHostCannotJoin}
	case s.phase != PhaseLobby:
		return reply{err: ErrGameInProgress}
	}
	if _, ok := s.participants[c.conn]; ok {
		return reply{err: ErrAlreadyJoined}
	}

	s.touch()
	s.participants[c.conn] = &Participant{ID: c.conn, Name: name}
	s.order = append(s.order, c.conn)

	s.log.Info().Str("conn", string(c.conn)).Str("name", name).Int("participants", len(s.order)).Msg("participant joined")

	snap := s.snapshot(c.conn)
	s.unicast(c.conn, EventJoinConfirmed, snap)
	s.broadcast(EventParticipantsUpdated, ParticipantsPayload{Code: s.code, Participants: s.roster()})

	return reply{snap: snap}
}

func (c leaveCmd) apply(s *Session) reply {
	if c.conn == s.host {
		s.touch()
		s.log.Info().Str("phase", string(s.phase)).Msg("host left, ending session")

		s.cancelTimer()
		if s.phase != PhaseEnded {
			s.phase = PhaseEnded
			s.emitter.Deliver(append([]ConnID(nil), s.order...), Event{
				Type: EventGameEnded,
				Data: GameEndedPayload{Leaderboard: s.leaderboard(), Reason: EndHostLeft},
			})
		}
		if s.release != nil {
			s.release(s.code)
		}
		return reply{}
	}

	p, ok := s.participants[c.conn]
	if !ok {
		return reply{}
	}

	s.touch()
	delete(s.participants, c.conn)
	delete(s.answered, c.conn)
	for i, id := range s.order {
		if id == c.conn {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	s.log.Info().Str("conn", string(c.conn)).Str("name", p.Name).Int("participants", len(s.order)).Msg("participant left")

	s.broadcast(EventParticipantsUpdated, ParticipantsPayload{Code: s.code, Participants: s.roster()})

	return reply{}
}

func (c startCmd) apply(s *Session) reply {
	if c.conn != s.host {
		return reply{err: ErrNotAuthorized}
	}
	switch s.phase {
	case PhaseLobby:
	case PhaseEnded:
		return reply{err: ErrGameEnded}
	default:
		return reply{err: ErrGameInProgress}
	}

	s.touch()
	s.log.Info().Int("participants", len(s.order)).Int("questions", len(s.questions)).Msg("game started")
	s.beginRound(0)

	return reply{}
}

func (c submitCmd) apply(s *Session) reply {
	p, ok := s.participants[c.conn]
	if !ok {
		return reply{err: ErrNotParticipant}
	}
	if s.phase != PhaseActiveQuestion {
		return reply{err: ErrRoundNotActive}
	}
	if c.option < 0 || c.option >= OptionCount {
		return reply{err: ErrInvalidOption}
	}
	if s.answered[c.conn] {
		return reply{err: ErrAlreadyAnswered}
	}

	s.touch()
	s.answered[c.conn] = true
	if c.option == s.questions[s.index].CorrectIndex {
		p.Score += s.points
	}

	s.unicast(c.conn, EventAnswerAccepted, AnswerAcceptedPayload{QuestionIndex: s.index, Option: c.option})

	return reply{}
}

func (c advanceCmd) apply(s *Session) reply {
	if c.conn != s.host {
		return reply{err: ErrNotAuthorized}
	}
	switch s.phase {
	case PhaseRoundResults:
	case PhaseLobby:
		return reply{err: ErrGameNotStarted}
	case PhaseActiveQuestion:
		return reply{err: ErrRoundInProgress}
	default:
		return reply{err: ErrGameEnded}
	}

	s.touch()

	if s.index+1 < len(s.questions) {
		s.beginRound(s.index + 1)
		return reply{}
	}

	s.phase = PhaseEnded
	s.log.Info().Msg("game ended")
	s.broadcast(EventGameEnded, GameEndedPayload{Leaderboard: s.leaderboard(), Reason: EndCompleted})

	return reply{}
}

func (c snapshotCmd) apply(s *Session) reply {
	return reply{snap: s.snapshot(c.conn)}
}

func (c endCmd) apply(s *Session) reply {
	s.cancelTimer()
	if s.phase == PhaseEnded {
		return reply{}
	}

	s.phase = PhaseEnded
	s.log.Info().Str("reason", c.reason).Msg("session ended")
	s.broadcast(EventGameEnded, GameEndedPayload{Leaderboard: s.leaderboard(), Reason: c.reason})

	return reply{}
}

func (c tickCmd) apply(s *Session) reply {
	if s.phase != PhaseActiveQuestion || c.index != s.index || s.remaining <= 0 {
		return reply{}
	}

	s.touch()
	s.remaining--
	s.broadcast(EventTimerTick, TimerTickPayload{Seconds: s.remaining})

	if s.remaining == 0 {
		s.closeRound()
	}

	return reply{}
}

func (s *Session) beginRound(index int) {
	s.index = index
	s.phase = PhaseActiveQuestion
	s.remaining = s.seconds
	s.answered = make(map[ConnID]bool)

	s.startTimer(index)

	s.log.Debug().Int("question", index+1).Int("of", len(s.questions)).Msg("round started")

	s.broadcast(EventRoundStarted, RoundStartedPayload{
		Question:      s.questions[index].view(),
		QuestionIndex: index,
		QuestionCount: len(s.questions),
		Seconds:       s.seconds,
	})
}

func (s *Session) closeRound() {
	s.cancelTimer()
	s.phase = PhaseRoundResults

	q := s.questions[s.index]

	s.log.Debug().Int("question", s.index+1).Int("answered", len(s.answered)).Msg("round closed")

	s.broadcast(EventRoundResults, RoundResultsPayload{
		Leaderboard:   s.leaderboard(),
		CorrectIndex:  q.CorrectIndex,
		Explanation:   q.Explanation,
		QuestionIndex: s.index,
	})
}
