// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package domain holds the types shared by every layer of Word Arena's
// real-time engine: the wire messages, the scoring engine, the game
// state machine, and the external Stats/WordProvider/TokenVerifier
// contracts all speak in these terms.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// LetterStatus is the outcome of comparing one guessed letter against
// the target word.
type LetterStatus string

const (
	Correct LetterStatus = "Correct"
	Present LetterStatus = "Present"
	Absent  LetterStatus = "Absent"
)

// LetterResult is one position's verdict within an evaluated guess.
// Letter is a single-character string, not a byte, so it renders as a
// character on the wire rather than a JSON integer.
type LetterResult struct {
	Letter   string       `json:"letter"`
	Status   LetterStatus `json:"status"`
	Position int          `json:"position"`
}

// GuessResult is a submitted guess as evaluated against the target,
// the shape recorded on a game's official board.
type GuessResult struct {
	Word         string         `json:"word"`
	PlayerID     uuid.UUID      `json:"player_id"`
	Letters      []LetterResult `json:"letters"`
	PointsEarned int            `json:"points_earned"`
	Round        int            `json:"round"`
	Timestamp    time.Time      `json:"timestamp"`
}

// PersonalGuess is what a non-winning player is shown about their own
// submission: no letter-level feedback, so players cannot reconstruct
// each other's boards by comparing notes.
type PersonalGuess struct {
	Word           string    `json:"word"`
	PointsEarned   int       `json:"points_earned"`
	WasWinningGuess bool     `json:"was_winning_guess"`
	Timestamp      time.Time `json:"timestamp"`
}

// User is the stable identity behind a player; aggregate counters
// live in Stats, not here.
type User struct {
	UserID      uuid.UUID `json:"user_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
}

// Player is one participant's in-game record.
type Player struct {
	UserID       uuid.UUID       `json:"user_id"`
	DisplayName  string          `json:"display_name"`
	Points       int             `json:"points"`
	GuessHistory []PersonalGuess `json:"guess_history"`
	IsConnected  bool            `json:"is_connected"`
}

// GameStatus is the coarse lifecycle state of a GameRoom.
type GameStatus string

const (
	StatusStarting  GameStatus = "Starting"
	StatusActive    GameStatus = "Active"
	StatusPaused    GameStatus = "Paused"
	StatusCompleted GameStatus = "Completed"
	StatusAbandoned GameStatus = "Abandoned"
	StatusTimedOut  GameStatus = "TimedOut"
)

// GamePhase is the fine-grained round phase within an Active game.
type GamePhase string

const (
	PhaseWaiting       GamePhase = "Waiting"
	PhaseCountdown     GamePhase = "Countdown"
	PhaseGuessing      GamePhase = "Guessing"
	PhaseIndividual    GamePhase = "IndividualGuess"
	PhaseGameOver      GamePhase = "GameOver"
)

// GameState is the authoritative per-match record. TargetWord is
// stripped before any client-facing serialization (see SafeGameState).
type GameState struct {
	ID                  uuid.UUID              `json:"id"`
	TargetWord          string                 `json:"-"`
	WordLength          int                    `json:"word_length"`
	CurrentRound        int                    `json:"current_round"`
	Status              GameStatus             `json:"status"`
	CurrentPhase        GamePhase              `json:"current_phase"`
	Players             []Player               `json:"players"`
	OfficialBoard       []GuessResult          `json:"official_board"`
	CurrentWinner       *uuid.UUID             `json:"current_winner,omitempty"`
	WordsAlreadyGuessed map[string]struct{}    `json:"-"`
	PointThreshold      int                    `json:"point_threshold"`
	CreatedAt           time.Time              `json:"created_at"`
}

// SafeGameState is GameState with TargetWord elided, the only shape
// ever handed to a client.
type SafeGameState struct {
	ID             uuid.UUID     `json:"id"`
	WordLength     int           `json:"word_length"`
	CurrentRound   int           `json:"current_round"`
	Status         GameStatus    `json:"status"`
	CurrentPhase   GamePhase     `json:"current_phase"`
	Players        []Player      `json:"players"`
	OfficialBoard  []GuessResult `json:"official_board"`
	CurrentWinner  *uuid.UUID    `json:"current_winner,omitempty"`
	PointThreshold int           `json:"point_threshold"`
	CreatedAt      time.Time     `json:"created_at"`
}

// Redact strips the target word and internal bookkeeping, producing
// the shape sent to clients.
func (g *GameState) Redact() SafeGameState {
	return SafeGameState{
		ID:             g.ID,
		WordLength:     g.WordLength,
		CurrentRound:   g.CurrentRound,
		Status:         g.Status,
		CurrentPhase:   g.CurrentPhase,
		Players:        g.Players,
		OfficialBoard:  g.OfficialBoard,
		CurrentWinner:  g.CurrentWinner,
		PointThreshold: g.PointThreshold,
		CreatedAt:      g.CreatedAt,
	}
}

// QueueEntry is one player waiting in the MatchmakingQueue.
type QueueEntry struct {
	UserID       uuid.UUID `json:"user_id"`
	DisplayName  string    `json:"display_name"`
	JoinedAt     time.Time `json:"joined_at"`
	ReadyToStart bool      `json:"ready_to_start"`
}

// LeaderboardEntry is one row of the Stats leaderboard.
type LeaderboardEntry struct {
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
	TotalPoints int       `json:"total_points"`
	TotalWins   int       `json:"total_wins"`
	TotalGames  int       `json:"total_games"`
	Rank        int       `json:"rank"`
}
