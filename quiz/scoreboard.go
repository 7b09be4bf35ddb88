/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package quiz

import "sort"

// roster lists participants in join order, unranked.
func (s *Session) roster() []Standing {
	out := make([]Standing, 0, len(s.order))
	for _, id := range s.order {
		p := s.participants[id]
		out = append(out, Standing{ID: p.ID, Name: p.Name, Score: p.Score})
	}
	return out
}

// leaderboard ranks participants by descending score. Equal scores keep
// join order and share a rank.
func (s *Session) leaderboard() []Standing {
	return Rank(s.roster())
}

// Rank sorts standings by descending score, stable on input order, and
// assigns competition ranks (1, 2, 2, 4).
func Rank(standings []Standing) []Standing {
	out := append([]Standing(nil), standings...)

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})

	for i := range out {
		if i > 0 && out[i].Score == out[i-1].Score {
			out[i].Rank = out[i-1].Rank
			continue
		}
		out[i].Rank = i + 1
	}

	return out
}
