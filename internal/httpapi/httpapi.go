// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package httpapi implements the HTTP surface: health, leaderboard,
// per-user stats, and a polling fallback for game state, plus
// mounting the websocket upgrade handler. The router and middleware
// stack are grounded on robalobadob-wordle's httpserver.Server.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ChristopherJMiller/word-arena/internal/coordinator"
	"github.com/ChristopherJMiller/word-arena/internal/stats"
	"github.com/ChristopherJMiller/word-arena/internal/transport"
)

const defaultLeaderboardLimit = 20
const maxLeaderboardLimit = 100

// New builds the full HTTP router: diagnostics, leaderboard/stats
// endpoints backed by stats.Stats, a game-state polling fallback
// backed by the Coordinator, and the /ws upgrade handler.
func New(co *coordinator.Coordinator, statsRepo stats.Stats, wsHandler *transport.Handler, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(10 * time.Second))
	r.Use(jsonContentType)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, "ok")
	})

	r.Get("/leaderboard", handleLeaderboard(statsRepo))
	r.Get("/user/{id}/stats", handleUserStats(statsRepo))
	r.Get("/game/{id}/state", handleGameState(co))

	r.Handle("/ws", wsHandler)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found"})
	})

	return r
}

func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// handleLeaderboard serves GET /leaderboard?limit=N, capping N at
// maxLeaderboardLimit regardless of what the caller asks for.
func handleLeaderboard(statsRepo stats.Stats) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultLeaderboardLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_limit"})
				return
			}
			limit = n
		}
		if limit > maxLeaderboardLimit {
			limit = maxLeaderboardLimit
		}

		entries, err := statsRepo.GetLeaderboard(r.Context(), limit)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal"})
			return
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

// handleUserStats serves GET /user/{id}/stats.
func handleUserStats(statsRepo stats.Stats) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_user_id"})
			return
		}

		entry, err := statsRepo.GetUserStats(r.Context(), userID)
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found"})
			return
		}
		writeJSON(w, http.StatusOK, entry)
	}
}

// handleGameState serves GET /game/{id}/state, the polling fallback
// clients use to recover a redacted GameState if their websocket
// connection drops mid-game.
func handleGameState(co *coordinator.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gameID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_game_id"})
			return
		}

		state, ok := co.RoomState(gameID)
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "game_not_found"})
			return
		}
		writeJSON(w, http.StatusOK, state)
	}
}
