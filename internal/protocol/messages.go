// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package protocol defines the wire messages exchanged over the game
// socket and the externally-tagged JSON codec that (de)serializes
// them: a unit variant is a bare string ("Heartbeat"), a variant
// carrying a payload is a single-key object ({"SubmitGuess": {...}}).
package protocol

import (
	"time"

	"github.com/google/uuid"

	"github.com/ChristopherJMiller/word-arena/internal/domain"
)

// ClientMessage is any message a socket may send to the server.
type ClientMessage interface{ clientMessage() }

// ServerMessage is any message the server may send to a socket.
type ServerMessage interface{ serverMessage() }

// --- client -> server ---

type Authenticate struct {
	Token string `json:"token"`
	Force bool   `json:"force,omitempty"`
}

type JoinQueue struct{}
type LeaveQueue struct{}
type VoteStartGame struct{}

type SubmitGuess struct {
	Word string `json:"word"`
}

type RejoinGame struct {
	GameID string `json:"game_id"`
}

type LeaveGame struct{}
type Heartbeat struct{}

func (Authenticate) clientMessage()  {}
func (JoinQueue) clientMessage()     {}
func (LeaveQueue) clientMessage()    {}
func (VoteStartGame) clientMessage() {}
func (SubmitGuess) clientMessage()   {}
func (RejoinGame) clientMessage()    {}
func (LeaveGame) clientMessage()     {}
func (Heartbeat) clientMessage()     {}

// --- server -> client ---

type AuthenticationSuccess struct {
	User domain.User `json:"user"`
}

type AuthenticationFailed struct {
	Reason string `json:"reason"`
}

type SessionDisconnected struct{}

type QueueJoined struct {
	Position int `json:"position"`
}

type QueueLeft struct{}

type MatchmakingCountdown struct {
	SecondsRemaining int `json:"seconds_remaining"`
	PlayersReady     int `json:"players_ready"`
	TotalPlayers     int `json:"total_players"`
}

type MatchFound struct {
	GameID  string          `json:"game_id"`
	Players []domain.Player `json:"players"`
}

type GameStateUpdate struct {
	State domain.SafeGameState `json:"state"`
}

type CountdownStart struct {
	Seconds int `json:"seconds"`
}

type RoundResult struct {
	WinningGuess    domain.GuessResult     `json:"winning_guess"`
	YourGuess       *domain.PersonalGuess  `json:"your_guess,omitempty"`
	NextPhase       domain.GamePhase       `json:"next_phase"`
	IsWordCompleted bool                   `json:"is_word_completed"`
}

type GameOver struct {
	Winner       domain.Player   `json:"winner"`
	FinalScores  []domain.Player `json:"final_scores"`
}

type PlayerDisconnected struct {
	PlayerID uuid.UUID `json:"player_id"`
}

type PlayerReconnected struct {
	PlayerID uuid.UUID `json:"player_id"`
}

type GameLeft struct{}

type Error struct {
	Message string `json:"message"`
}

func (AuthenticationSuccess) serverMessage() {}
func (AuthenticationFailed) serverMessage()  {}
func (SessionDisconnected) serverMessage()   {}
func (QueueJoined) serverMessage()           {}
func (QueueLeft) serverMessage()             {}
func (MatchmakingCountdown) serverMessage()  {}
func (MatchFound) serverMessage()            {}
func (GameStateUpdate) serverMessage()       {}
func (CountdownStart) serverMessage()        {}
func (RoundResult) serverMessage()           {}
func (GameOver) serverMessage()              {}
func (PlayerDisconnected) serverMessage()    {}
func (PlayerReconnected) serverMessage()     {}
func (GameLeft) serverMessage()              {}
func (Error) serverMessage()                 {}

// ErrorMessage is a convenience constructor used throughout the
// coordinator/registry to build the wire Error variant from the
// error taxonomy in place.
func ErrorMessage(reason string) Error {
	return Error{Message: reason}
}

// NewGuessResultRound builds a GuessResult stamped with the round it
// was accepted in and the timestamp the caller passes as now.
func NewGuessResultRound(word string, playerID uuid.UUID, letters []domain.LetterResult, points, round int, now time.Time) domain.GuessResult {
	return domain.GuessResult{
		Word:         word,
		PlayerID:     playerID,
		Letters:      letters,
		PointsEarned: points,
		Round:        round,
		Timestamp:    now,
	}
}
