// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package game implements the GameRoom: one active match's state,
// letter ledger, per-player guess histories, phase timers, and the
// round state machine. Like every other stateful component here it
// is a serial actor.
package game

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/ChristopherJMiller/word-arena/internal/domain"
	"github.com/ChristopherJMiller/word-arena/internal/protocol"
	"github.com/ChristopherJMiller/word-arena/internal/scoring"
	"github.com/ChristopherJMiller/word-arena/internal/stats"
	"github.com/ChristopherJMiller/word-arena/internal/wordlist"
)

// Sender is the subset of ConnectionRegistry a room needs.
type Sender interface {
	SendToUser(userID uuid.UUID, msg protocol.ServerMessage)
	Broadcast(userIDs []uuid.UUID, msg protocol.ServerMessage)
}

// Config holds the room's timing and rule tunables.
type Config struct {
	WordLengths        []int
	PointThreshold     int
	StartGrace         time.Duration
	RoundCountdown     time.Duration
	GuessingDeadline   time.Duration
	IndividualDeadline time.Duration
	PauseTimeout       time.Duration
	MaxGameDuration    time.Duration
}

// DefaultConfig returns the tunables used in production.
func DefaultConfig() Config {
	return Config{
		WordLengths:        []int{5, 6, 7},
		PointThreshold:     25,
		StartGrace:         3 * time.Second,
		RoundCountdown:     5 * time.Second,
		GuessingDeadline:   45 * time.Second,
		IndividualDeadline: 30 * time.Second,
		PauseTimeout:       5 * time.Minute,
		MaxGameDuration:    2 * time.Hour,
	}
}

// TerminalFunc is invoked (from inside the actor loop) once the room
// reaches a terminal status, so the Coordinator can schedule removal.
type TerminalFunc func(gameID uuid.UUID)

type submission struct {
	word      string
	timestamp time.Time
}

// Room is the GameRoom actor.
type Room struct {
	id       uuid.UUID
	cfg      Config
	provider wordlist.Provider
	sender   Sender
	stats    stats.Stats
	onTerm   TerminalFunc

	state       domain.GameState
	playerIndex map[uuid.UUID]int
	ledger      *scoring.Ledger

	submissions map[uuid.UUID]submission

	thresholdCrossedAt map[uuid.UUID]time.Time

	pausedPhase    domain.GamePhase
	pauseRemaining time.Duration

	phaseEpoch int
	events     chan func(*Room)

	createdAt time.Time
}

// New constructs a Room for the given roster. The target word and
// length are chosen immediately so GameStateUpdate broadcasts have a
// consistent WordLength from the start.
func New(id uuid.UUID, roster []domain.QueueEntry, cfg Config, provider wordlist.Provider, sender Sender, statsRepo stats.Stats, onTerm TerminalFunc) (*Room, error) {
	length, err := wordlist.PickLength(cfg.WordLengths)
	if err != nil {
		return nil, err
	}
	target, err := provider.PickWord(length)
	if err != nil {
		return nil, err
	}

	players := make([]domain.Player, len(roster))
	index := make(map[uuid.UUID]int, len(roster))
	for i, e := range roster {
		players[i] = domain.Player{
			UserID:      e.UserID,
			DisplayName: e.DisplayName,
			IsConnected: true,
		}
		index[e.UserID] = i
	}

	now := time.Now()
	r := &Room{
		id:       id,
		cfg:      cfg,
		provider: provider,
		sender:   sender,
		stats:    statsRepo,
		onTerm:   onTerm,
		state: domain.GameState{
			ID:                  id,
			TargetWord:          target,
			WordLength:          length,
			Status:              domain.StatusStarting,
			CurrentPhase:        domain.PhaseWaiting,
			Players:             players,
			WordsAlreadyGuessed: make(map[string]struct{}),
			PointThreshold:      cfg.PointThreshold,
			CreatedAt:           now,
		},
		playerIndex:        index,
		ledger:             scoring.NewLedger(),
		submissions:        make(map[uuid.UUID]submission),
		thresholdCrossedAt: make(map[uuid.UUID]time.Time),
		events:             make(chan func(*Room), 256),
		createdAt:          now,
	}
	return r, nil
}

// ID returns the room's game id.
func (r *Room) ID() uuid.UUID { return r.id }

// Run is the actor loop.
func (r *Room) Run(done <-chan struct{}) {
	maxDuration := time.NewTimer(r.cfg.MaxGameDuration)
	defer maxDuration.Stop()

	for {
		select {
		case fn := <-r.events:
			fn(r)
		case <-maxDuration.C:
			// timeOut goes through r.do, which this loop must be free to serve.
			go r.timeOut()
		case <-done:
			return
		}
	}
}

func (r *Room) do(fn func(*Room)) {
	result := make(chan struct{})
	r.events <- func(room *Room) {
		fn(room)
		close(result)
	}
	<-result
}

// Start transitions the room out of Starting. Called once after Run
// begins.
func (r *Room) Start() {
	r.do(func(room *Room) {
		room.broadcastState()
		room.schedulePhase(room.cfg.StartGrace, func(rm *Room) {
			rm.enterCountdown()
		})
	})
}

func (r *Room) userIDs() []uuid.UUID {
	return lo.Map(r.state.Players, func(p domain.Player, _ int) uuid.UUID { return p.UserID })
}

func (r *Room) connectedUserIDs() []uuid.UUID {
	return lo.FilterMap(r.state.Players, func(p domain.Player, _ int) (uuid.UUID, bool) {
		return p.UserID, p.IsConnected
	})
}

func (r *Room) broadcastState() {
	r.sender.Broadcast(r.userIDs(), protocol.GameStateUpdate{State: r.state.Redact()})
}

// schedulePhase arms a cancel-on-transition timer: the callback only
// fires if the room hasn't moved to a different phase epoch by then,
// via per-phase timer tokens
// rather than "check current phase on fire").
func (r *Room) schedulePhase(d time.Duration, fn func(*Room)) {
	r.phaseEpoch++
	epoch := r.phaseEpoch
	time.AfterFunc(d, func() {
		r.events <- func(room *Room) {
			if room.phaseEpoch == epoch {
				fn(room)
			}
		}
	})
}

func (r *Room) cancelPhase() {
	r.phaseEpoch++
}

func (r *Room) enterCountdown() {
	if r.isTerminal() {
		return
	}
	r.cancelPhase()
	r.state.CurrentPhase = domain.PhaseCountdown
	r.state.CurrentWinner = nil
	r.sender.Broadcast(r.userIDs(), protocol.CountdownStart{Seconds: int(r.cfg.RoundCountdown.Seconds())})
	r.schedulePhase(r.cfg.RoundCountdown, func(rm *Room) {
		rm.enterGuessing()
	})
}

func (r *Room) enterGuessing() {
	if r.isTerminal() {
		return
	}
	r.state.Status = domain.StatusActive
	r.state.CurrentPhase = domain.PhaseGuessing
	r.state.CurrentWinner = nil
	r.submissions = make(map[uuid.UUID]submission)
	r.broadcastState()
	r.schedulePhase(r.cfg.GuessingDeadline, func(rm *Room) {
		rm.closeGuessingRound()
	})
}

func (r *Room) enterIndividual(winner uuid.UUID) {
	r.cancelPhase()
	r.state.CurrentPhase = domain.PhaseIndividual
	r.state.CurrentWinner = &winner
	r.submissions = make(map[uuid.UUID]submission)
	r.broadcastState()
	r.schedulePhase(r.cfg.IndividualDeadline, func(rm *Room) {
		rm.closeIndividualRound()
	})
}

func (r *Room) isTerminal() bool {
	switch r.state.Status {
	case domain.StatusCompleted, domain.StatusAbandoned, domain.StatusTimedOut:
		return true
	default:
		return false
	}
}

// SubmitGuess validates and buffers a guess, closing the round early
// when every connected player has answered.
func (r *Room) SubmitGuess(userID uuid.UUID, word string) {
	r.do(func(room *Room) {
		room.handleSubmitGuess(userID, word)
	})
}

func (r *Room) handleSubmitGuess(userID uuid.UUID, word string) {
	if r.isTerminal() {
		return
	}
	if _, ok := r.playerIndex[userID]; !ok {
		return
	}

	switch r.state.CurrentPhase {
	case domain.PhaseGuessing:
		if _, already := r.submissions[userID]; already {
			r.sender.SendToUser(userID, protocol.ErrorMessage("already_submitted"))
			return
		}
	case domain.PhaseIndividual:
		if r.state.CurrentWinner == nil || *r.state.CurrentWinner != userID {
			r.sender.SendToUser(userID, protocol.ErrorMessage("not_your_turn"))
			return
		}
	default:
		r.sender.SendToUser(userID, protocol.ErrorMessage("wrong_phase"))
		return
	}

	if reason, ok := r.validateWord(word); !ok {
		r.sender.SendToUser(userID, protocol.ErrorMessage(reason))
		return
	}

	r.submissions[userID] = submission{word: strings.ToLower(word), timestamp: time.Now()}

	switch r.state.CurrentPhase {
	case domain.PhaseIndividual:
		r.closeIndividualRound()
	case domain.PhaseGuessing:
		if len(r.submissions) >= len(r.connectedUserIDs()) {
			r.closeGuessingRound()
		}
	}
}

func (r *Room) validateWord(word string) (string, bool) {
	if len(word) != r.state.WordLength {
		return "wrong_length", false
	}
	lower := strings.ToLower(word)
	for _, c := range lower {
		if c < 'a' || c > 'z' {
			return "non_alphabetic", false
		}
	}
	if !r.provider.IsValid(lower) {
		return "invalid_word", false
	}
	if _, seen := r.state.WordsAlreadyGuessed[lower]; seen {
		return "already_guessed", false
	}
	return "", true
}

func (r *Room) closeGuessingRound() {
	if r.isTerminal() || r.state.CurrentPhase != domain.PhaseGuessing {
		return
	}
	r.cancelPhase()
	r.resolveRound()
}

func (r *Room) closeIndividualRound() {
	if r.isTerminal() || r.state.CurrentPhase != domain.PhaseIndividual {
		return
	}
	r.cancelPhase()
	r.resolveRound()
}

// resolveRound closes out a group or individual round:
// every buffered submission scores against the shared ledger, the
// single best submission becomes the round winner and advances the
// official board, and the resulting phase depends on whether that
// winning guess solved the word and whether any player has crossed
// the point threshold.
func (r *Room) resolveRound() {
	resolvingIndividual := r.state.CurrentPhase == domain.PhaseIndividual

	if len(r.submissions) == 0 {
		r.enterCountdown()
		return
	}

	type scored struct {
		userID  uuid.UUID
		word    string
		letters []domain.LetterResult
		points  int
		when    time.Time
	}

	scoredSubs := make([]scored, 0, len(r.submissions))
	for userID, sub := range r.submissions {
		letters, points := scoring.Evaluate(sub.word, r.state.TargetWord, r.ledger)
		scoredSubs = append(scoredSubs, scored{userID, sub.word, letters, points, sub.timestamp})
	}
	// Deterministic order before tie-breaking by timestamp.
	sort.Slice(scoredSubs, func(i, j int) bool { return scoredSubs[i].userID.String() < scoredSubs[j].userID.String() })

	candidates := make([]scoring.RoundCandidate, len(scoredSubs))
	for i, s := range scoredSubs {
		candidates[i] = scoring.RoundCandidate{PlayerIndex: i, Letters: s.letters, Timestamp: s.when.UnixNano()}
	}
	winnerPos := scoring.DetermineWinner(candidates)
	winner := scoredSubs[winnerPos]

	round := r.state.CurrentRound + 1
	now := time.Now()

	for _, s := range scoredSubs {
		idx := r.playerIndex[s.userID]
		p := &r.state.Players[idx]
		p.Points += s.points
		p.GuessHistory = append(p.GuessHistory, domain.PersonalGuess{
			Word:            s.word,
			PointsEarned:    s.points,
			WasWinningGuess: s.userID == winner.userID,
			Timestamp:       now,
		})
		if p.Points >= r.cfg.PointThreshold {
			if _, seen := r.thresholdCrossedAt[s.userID]; !seen {
				r.thresholdCrossedAt[s.userID] = now
			}
		}
	}

	winningGuess := protocol.NewGuessResultRound(winner.word, winner.userID, winner.letters, winner.points, round, now)
	r.state.OfficialBoard = append(r.state.OfficialBoard, winningGuess)
	r.state.WordsAlreadyGuessed[winner.word] = struct{}{}
	r.ledger.Record(winner.letters)
	r.state.CurrentRound = round

	isWordCompleted := winner.word == strings.ToLower(r.state.TargetWord)

	var yourGuessFor = func(userID uuid.UUID) *domain.PersonalGuess {
		idx := r.playerIndex[userID]
		history := r.state.Players[idx].GuessHistory
		if len(history) == 0 {
			return nil
		}
		pg := history[len(history)-1]
		return &pg
	}

	nextPhase := r.decideNextPhase(isWordCompleted, resolvingIndividual, winner.userID)

	for _, uid := range r.userIDs() {
		msg := protocol.RoundResult{
			WinningGuess:    winningGuess,
			NextPhase:       nextPhase,
			IsWordCompleted: isWordCompleted,
		}
		if _, submitted := r.submissions[uid]; submitted {
			msg.YourGuess = yourGuessFor(uid)
		}
		r.sender.SendToUser(uid, msg)
	}

	r.submissions = make(map[uuid.UUID]submission)
	r.transitionAfterRound(isWordCompleted, winner.userID, nextPhase)
}

// decideNextPhase picks the phase to enter once a round's winner is
// known. A solve always leaves IndividualGuess behind (either the game
// ends or the next group round starts); a non-solving guess only
// opens an individual follow-up when it was won out of Guessing — an
// individual round that fails to solve falls through to Countdown for
// the next group round rather than looping the same winner.
func (r *Room) decideNextPhase(isWordCompleted, resolvingIndividual bool, winner uuid.UUID) domain.GamePhase {
	if isWordCompleted {
		if r.gameWinner() != nil {
			return domain.PhaseGameOver
		}
		return domain.PhaseCountdown
	}
	if resolvingIndividual {
		return domain.PhaseCountdown
	}
	return domain.PhaseIndividual
}

func (r *Room) transitionAfterRound(isWordCompleted bool, winner uuid.UUID, nextPhase domain.GamePhase) {
	switch nextPhase {
	case domain.PhaseGameOver:
		r.finishGame()
	case domain.PhaseCountdown:
		if isWordCompleted {
			r.replaceWord()
		}
		r.enterCountdown()
	case domain.PhaseIndividual:
		r.enterIndividual(winner)
	}
}

// gameWinner returns the player who should end the game, if any
// player has crossed the point threshold: highest points, ties broken
// by earliest threshold-crossing time then by user_id ordering.
func (r *Room) gameWinner() *domain.Player {
	var best *domain.Player
	for i := range r.state.Players {
		p := &r.state.Players[i]
		if p.Points < r.cfg.PointThreshold {
			continue
		}
		if best == nil {
			best = p
			continue
		}
		if p.Points > best.Points {
			best = p
			continue
		}
		if p.Points == best.Points {
			bt, pt := r.thresholdCrossedAt[best.UserID], r.thresholdCrossedAt[p.UserID]
			if pt.Before(bt) || (pt.Equal(bt) && p.UserID.String() < best.UserID.String()) {
				best = p
			}
		}
	}
	return best
}

func (r *Room) replaceWord() {
	length, err := wordlist.PickLength(r.cfg.WordLengths)
	if err != nil {
		return
	}
	target, err := r.provider.PickWord(length)
	if err != nil {
		return
	}
	r.state.WordLength = length
	r.state.TargetWord = target
	r.state.WordsAlreadyGuessed = make(map[string]struct{})
	r.ledger = scoring.NewLedger()
}

func (r *Room) finishGame() {
	winner := r.gameWinner()
	r.state.Status = domain.StatusCompleted
	r.state.CurrentPhase = domain.PhaseGameOver

	if winner != nil {
		r.sender.Broadcast(r.userIDs(), protocol.GameOver{
			Winner:      *winner,
			FinalScores: append([]domain.Player{}, r.state.Players...),
		})
		r.recordStats(*winner)
	}
	r.markTerminal()
}

// recordStats persists the completed game's outcome. Best-effort: a
// Stats failure is not allowed to affect the in-memory room, since the
// game has already finished for every connected client.
func (r *Room) recordStats(winner domain.Player) {
	if r.stats == nil {
		return
	}
	ctx := context.Background()
	for _, p := range r.state.Players {
		_ = r.stats.AddPoints(ctx, p.UserID, p.DisplayName, p.Points)
		_ = r.stats.IncrementGames(ctx, p.UserID, p.DisplayName)
	}
	_ = r.stats.IncrementWins(ctx, winner.UserID, winner.DisplayName)
}

func (r *Room) markTerminal() {
	if r.onTerm != nil {
		r.onTerm(r.id)
	}
}

func (r *Room) timeOut() {
	r.do(func(room *Room) {
		if room.isTerminal() {
			return
		}
		room.cancelPhase()
		room.state.Status = domain.StatusTimedOut
		room.broadcastState()
		room.markTerminal()
	})
}

// PlayerDisconnected marks a player offline; if every player is now
// disconnected the room pauses.
func (r *Room) PlayerDisconnected(userID uuid.UUID) {
	r.do(func(room *Room) {
		idx, ok := room.playerIndex[userID]
		if !ok || room.isTerminal() {
			return
		}
		room.state.Players[idx].IsConnected = false
		room.sender.Broadcast(room.userIDs(), protocol.PlayerDisconnected{PlayerID: userID})

		if len(room.connectedUserIDs()) == 0 {
			room.pause()
		}
	})
}

// PlayerReconnected marks a player online and, if the room was
// paused, resumes it.
func (r *Room) PlayerReconnected(userID uuid.UUID) {
	r.do(func(room *Room) {
		idx, ok := room.playerIndex[userID]
		if !ok {
			return
		}
		room.state.Players[idx].IsConnected = true
		room.sender.Broadcast(room.userIDs(), protocol.PlayerReconnected{PlayerID: userID})

		if room.state.Status == domain.StatusPaused {
			room.resume()
		}
		room.sender.SendToUser(userID, protocol.GameStateUpdate{State: room.state.Redact()})
	})
}

func (r *Room) pause() {
	r.pausedPhase = r.state.CurrentPhase
	r.state.Status = domain.StatusPaused
	r.cancelPhase()
	r.schedulePhase(r.cfg.PauseTimeout, func(room *Room) {
		room.state.Status = domain.StatusAbandoned
		room.markTerminal()
	})
}

func (r *Room) resume() {
	r.cancelPhase()
	r.state.Status = domain.StatusActive
	switch r.pausedPhase {
	case domain.PhaseCountdown:
		r.schedulePhase(r.cfg.RoundCountdown, func(rm *Room) { rm.enterGuessing() })
	case domain.PhaseGuessing:
		r.schedulePhase(r.cfg.GuessingDeadline, func(rm *Room) { rm.closeGuessingRound() })
	case domain.PhaseIndividual:
		r.schedulePhase(r.cfg.IndividualDeadline, func(rm *Room) { rm.closeIndividualRound() })
	default:
		r.enterCountdown()
	}
}

// LeaveGame forfeits the player's spot; the game continues for the
// rest of the roster.
func (r *Room) LeaveGame(userID uuid.UUID) {
	r.do(func(room *Room) {
		idx, ok := room.playerIndex[userID]
		if !ok || room.isTerminal() {
			return
		}
		room.state.Players[idx].IsConnected = false
		delete(room.submissions, userID)
		room.sender.SendToUser(userID, protocol.GameLeft{})
		room.sender.Broadcast(room.userIDs(), protocol.PlayerDisconnected{PlayerID: userID})

		if len(room.connectedUserIDs()) == 0 {
			room.pause()
		}
	})
}

// Snapshot returns the redacted state for reconnection UIs and the
// HTTP read endpoint.
func (r *Room) Snapshot() domain.SafeGameState {
	var snap domain.SafeGameState
	r.do(func(room *Room) {
		snap = room.state.Redact()
	})
	return snap
}

// PlayerConnected reports the connection state of a roster member, for
// RejoinGame validation (an unknown game vs a normal rebind).
func (r *Room) PlayerConnected(userID uuid.UUID) (connected bool, err error) {
	r.do(func(room *Room) {
		idx, ok := room.playerIndex[userID]
		if !ok {
			err = fmt.Errorf("game: %s is not a player in %s", userID, room.id)
			return
		}
		connected = room.state.Players[idx].IsConnected
	})
	return connected, err
}

// IsTerminal reports whether the room has reached a terminal status.
// The Coordinator's reaper does not call it; it relies on the
// TerminalFunc callback instead.
func (r *Room) IsTerminal() bool {
	var terminal bool
	r.do(func(room *Room) { terminal = room.isTerminal() })
	return terminal
}
