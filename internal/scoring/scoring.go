// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package scoring implements the pure, deterministic guess-evaluation
// and point-award rules. Nothing in this package touches a network,
// a clock, or a lock: given the same guess, target, and ledger it
// always returns the same result.
package scoring

import (
	"strings"

	"github.com/ChristopherJMiller/word-arena/internal/domain"
)

// Ledger is the set of (letter, position) -> status facts already
// revealed on a game's official board within the current
// word-completion episode. It is the "novel information" baseline
// that Evaluate scores new guesses against.
type Ledger struct {
	correct map[correctKey]struct{}
	known   map[string]struct{} // letters ever seen as Correct or Present, anywhere
}

type correctKey struct {
	letter   string
	position int
}

// NewLedger returns an empty ledger, as at the start of a word.
func NewLedger() *Ledger {
	return &Ledger{
		correct: make(map[correctKey]struct{}),
		known:   make(map[string]struct{}),
	}
}

// Record folds a winning guess's letter results into the ledger. Call
// this once per accepted guess on the official board, after scoring.
func (l *Ledger) Record(letters []domain.LetterResult) {
	for _, lr := range letters {
		switch lr.Status {
		case domain.Correct:
			l.correct[correctKey{lr.Letter, lr.Position}] = struct{}{}
			l.known[lr.Letter] = struct{}{}
		case domain.Present:
			l.known[lr.Letter] = struct{}{}
		}
	}
}

func (l *Ledger) hasCorrect(letter string, position int) bool {
	_, ok := l.correct[correctKey{letter, position}]
	return ok
}

func (l *Ledger) hasKnown(letter string) bool {
	_, ok := l.known[letter]
	return ok
}

// Evaluate scores a candidate guess against the target word given the
// ledger of previously revealed facts. word and target must be the
// same length; callers validate length and alphabetic content before
// calling Evaluate.
func Evaluate(word, target string, ledger *Ledger) ([]domain.LetterResult, int) {
	word = strings.ToLower(word)
	target = strings.ToLower(target)

	n := len(target)
	letters := make([]domain.LetterResult, n)
	points := 0

	// Tally target letters into a multiset for duplicate handling.
	remaining := make(map[byte]int, n)
	for i := 0; i < n; i++ {
		remaining[target[i]]++
	}

	correctAt := make([]bool, n)

	// First pass: exact positions.
	for i := 0; i < n; i++ {
		ch := word[i]
		if ch == target[i] {
			letter := string(ch)
			letters[i] = domain.LetterResult{Letter: letter, Status: domain.Correct, Position: i}
			correctAt[i] = true
			remaining[ch]--
			if !ledger.hasCorrect(letter, i) {
				points += 2
			}
		}
	}

	// Second pass: present/absent over the rest, consuming leftover
	// target occurrences left-to-right.
	for i := 0; i < n; i++ {
		if correctAt[i] {
			continue
		}
		ch := word[i]
		letter := string(ch)
		if remaining[ch] > 0 {
			letters[i] = domain.LetterResult{Letter: letter, Status: domain.Present, Position: i}
			remaining[ch]--
			if !ledger.hasKnown(letter) {
				points += 1
			}
		} else {
			letters[i] = domain.LetterResult{Letter: letter, Status: domain.Absent, Position: i}
		}
	}

	if word == target {
		points += 5
	}

	return letters, points
}

// RoundCandidate is one player's buffered submission awaiting round
// resolution.
type RoundCandidate struct {
	PlayerIndex int
	Word        string
	Letters     []domain.LetterResult
	Points      int
	Timestamp   int64 // unix nanos; caller supplies a monotonic source
}

// DetermineWinner picks the round winner among buffered candidates
// already evaluated against the same target: maximize Correct
// positions, then Present letters, then earliest timestamp. Returns
// -1 if candidates is empty.
func DetermineWinner(candidates []RoundCandidate) int {
	best := -1
	bestCorrect, bestPresent := -1, -1
	var bestTime int64

	for i, c := range candidates {
		correct, present := 0, 0
		for _, lr := range c.Letters {
			switch lr.Status {
			case domain.Correct:
				correct++
			case domain.Present:
				present++
			}
		}

		better := false
		switch {
		case best == -1:
			better = true
		case correct > bestCorrect:
			better = true
		case correct == bestCorrect && present > bestPresent:
			better = true
		case correct == bestCorrect && present == bestPresent && c.Timestamp < bestTime:
			better = true
		}

		if better {
			best = i
			bestCorrect, bestPresent, bestTime = correct, present, c.Timestamp
		}
	}

	return best
}
