// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package scoring

import (
	"testing"

	"github.com/ChristopherJMiller/word-arena/internal/domain"
)

func statuses(t *testing.T, letters []domain.LetterResult) []domain.LetterStatus {
	t.Helper()
	out := make([]domain.LetterStatus, len(letters))
	for i, lr := range letters {
		out[i] = lr.Status
	}
	return out
}

func TestEvaluateSoloScoring(t *testing.T) {
	letters, points := Evaluate("WORLD", "HELLO", NewLedger())

	// WORLD[3] and HELLO[3] are both L, so that position is Correct:
	// O-present (1) + L-correct (2) = 3.
	want := []domain.LetterStatus{domain.Absent, domain.Present, domain.Absent, domain.Correct, domain.Absent}
	got := statuses(t, letters)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("letter %d: got %s want %s", i, got[i], want[i])
		}
	}
	if points != 3 {
		t.Fatalf("points = %d, want 3", points)
	}
}

func TestEvaluateUpgradePresentToCorrect(t *testing.T) {
	ledger := NewLedger()
	ledger.Record([]domain.LetterResult{
		{Letter: "o", Status: domain.Present, Position: 3},
		{Letter: "l", Status: domain.Present, Position: 2},
	})

	letters, points := Evaluate("HELLO", "HELLO", ledger)
	for i, lr := range letters {
		if lr.Status != domain.Correct {
			t.Fatalf("position %d: got %s want Correct", i, lr.Status)
		}
	}
	// Every position is a newly-fixed Correct: 5 * 2 = 10, plus the
	// exact-match bonus of 5.
	if points != 15 {
		t.Fatalf("points = %d, want 15", points)
	}
}

func TestEvaluateDuplicateLetters(t *testing.T) {
	// No position matches (EAGLE[4] is E, LEVEL[4] is L), so the two
	// target Es go to guess positions 0 and 4 and one target L to 3.
	letters, _ := Evaluate("EAGLE", "LEVEL", NewLedger())
	want := []domain.LetterStatus{domain.Present, domain.Absent, domain.Absent, domain.Present, domain.Present}
	got := statuses(t, letters)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("letter %d: got %s want %s", i, got[i], want[i])
		}
	}
}

func TestEvaluateExactMatchBonus(t *testing.T) {
	letters, points := Evaluate("HELLO", "HELLO", NewLedger())
	for _, lr := range letters {
		if lr.Status != domain.Correct {
			t.Fatalf("expected all Correct, got %v", letters)
		}
	}
	// 5 positions newly-correct at 2 each, plus the 5-point bonus.
	if points != 15 {
		t.Fatalf("points = %d, want 15", points)
	}
}

func TestEvaluateResubmissionScoresNothingNew(t *testing.T) {
	ledger := NewLedger()
	first, firstPoints := Evaluate("WORLD", "HELLO", ledger)
	ledger.Record(first)

	_, second := Evaluate("WORLD", "HELLO", ledger)
	if second != 0 {
		t.Fatalf("resubmission scored %d new points, want 0", second)
	}
	if firstPoints == 0 {
		t.Fatalf("sanity: first guess should have scored")
	}
}

func TestPointsMonotonicInLedgerGrowth(t *testing.T) {
	empty := NewLedger()
	grown := NewLedger()
	grown.Record([]domain.LetterResult{{Letter: "h", Status: domain.Correct, Position: 0}})

	_, pointsEmpty := Evaluate("HELLO", "HELLO", empty)
	_, pointsGrown := Evaluate("HELLO", "HELLO", grown)

	if pointsGrown > pointsEmpty {
		t.Fatalf("points not monotonic: empty=%d grown=%d", pointsEmpty, pointsGrown)
	}
}

func TestDetermineWinnerPrefersCorrectThenPresentThenEarliest(t *testing.T) {
	candidates := []RoundCandidate{
		{PlayerIndex: 0, Letters: []domain.LetterResult{{Status: domain.Present}, {Status: domain.Absent}}, Timestamp: 200},
		{PlayerIndex: 1, Letters: []domain.LetterResult{{Status: domain.Correct}, {Status: domain.Absent}}, Timestamp: 300},
		{PlayerIndex: 2, Letters: []domain.LetterResult{{Status: domain.Correct}, {Status: domain.Present}}, Timestamp: 100},
	}

	winner := DetermineWinner(candidates)
	if winner != 2 {
		t.Fatalf("winner index = %d, want 2", winner)
	}
}

func TestDetermineWinnerEmpty(t *testing.T) {
	if got := DetermineWinner(nil); got != -1 {
		t.Fatalf("got %d, want -1", got)
	}
}
