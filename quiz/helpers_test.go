/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package quiz

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

const waitTimeout = 2 * time.Second

type delivery struct {
	to []ConnID
	ev Event
}

type recorder struct {
	ch chan delivery
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan delivery, 4096)}
}

func (r *recorder) Deliver(to []ConnID, ev Event) {
	r.ch <- delivery{to: append([]ConnID(nil), to...), ev: ev}
}

// expect returns the next delivery and fails unless it has type want.
func (r *recorder) expect(t *testing.T, want EventType) delivery {
	t.Helper()

	select {
	case d := <-r.ch:
		if d.ev.Type != want {
			t.Fatalf("got event %s, want %s", d.ev.Type, want)
		}
		return d
	case <-time.After(waitTimeout):
		t.Fatalf("timed out waiting for %s", want)
	}
	return delivery{}
}

// quiet fails if any delivery is pending.
func (r *recorder) quiet(t *testing.T) {
	t.Helper()

	select {
	case d := <-r.ch:
		t.Fatalf("unexpected event %s to %v", d.ev.Type, d.to)
	default:
	}
}

func testQuestions(n int) []Question {
	qs := make([]Question, n)
	for i := range qs {
		qs[i] = Question{
			Prompt:       fmt.Sprintf("Question %d?", i+1),
			Options:      []string{"A", "B", "C", "D"},
			CorrectIndex: i % OptionCount,
			Explanation:  fmt.Sprintf("Because %d.", i+1),
		}
	}
	return qs
}

func newTestRegistry(t *testing.T) (*Registry, *recorder, *clockwork.FakeClock) {
	t.Helper()

	rec := newRecorder()
	clock := clockwork.NewFakeClock()

	opts := DefaultOptions()
	opts.Clock = clock
	opts.RoundDuration = 3 * time.Second

	r := NewRegistry(rec, opts)
	t.Cleanup(r.Close)

	return r, rec, clock
}

func testContext(t *testing.T) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	t.Cleanup(cancel)

	return ctx
}

// expireRound posts every tick of the round at index directly, skipping the
// clock, and consumes the resulting tick events.
func expireRound(t *testing.T, s *Session, rec *recorder, index int) delivery {
	t.Helper()

	ctx := testContext(t)
	for i := s.seconds - 1; i >= 0; i-- {
		if _, err := s.do(ctx, tickCmd{index: index}); err != nil {
			t.Fatalf("tick: %v", err)
		}
		d := rec.expect(t, EventTimerTick)
		if got := d.ev.Data.(TimerTickPayload).Seconds; got != i {
			t.Fatalf("tick seconds = %d, want %d", got, i)
		}
	}

	return rec.expect(t, EventRoundResults)
}

func mustSnapshot(t *testing.T, s *Session) Snapshot {
	t.Helper()

	snap, err := s.Snapshot(testContext(t), "")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	return snap
}
