/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package quiz

import (
	"context"
	"time"
)

// startTimer replaces any running countdown with a new one for the round at
// index. Must be called from the run goroutine.
func (s *Session) startTimer(index int) {
	s.cancelTimer()

	ctx, cancel := context.WithCancel(s.ctx)
	s.stopTimer = cancel

	go s.countdown(ctx, index)
}

func (s *Session) cancelTimer() {
	if s.stopTimer != nil {
		s.stopTimer()
		s.stopTimer = nil
	}
}

// countdown posts one tick per second until cancelled. It never touches
// session state itself; the run loop decides what a tick means.
func (s *Session) countdown(ctx context.Context, index int) {
	ticker := s.opts.Clock.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			select {
			case s.inbox <- envelope{cmd: tickCmd{index: index}}:
			case <-ctx.Done():
				return
			}
		}
	}
}
