// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package game

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ChristopherJMiller/word-arena/internal/domain"
	"github.com/ChristopherJMiller/word-arena/internal/protocol"
)

type fakeSender struct {
	mu   sync.Mutex
	sent map[uuid.UUID][]protocol.ServerMessage
}

func newFakeSender() *fakeSender {
	return &fakeSender{sent: make(map[uuid.UUID][]protocol.ServerMessage)}
}

func (f *fakeSender) SendToUser(userID uuid.UUID, msg protocol.ServerMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent[userID] = append(f.sent[userID], msg)
}

func (f *fakeSender) Broadcast(userIDs []uuid.UUID, msg protocol.ServerMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range userIDs {
		f.sent[id] = append(f.sent[id], msg)
	}
}

func (f *fakeSender) messagesFor(userID uuid.UUID) []protocol.ServerMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]protocol.ServerMessage{}, f.sent[userID]...)
}

func (f *fakeSender) latest(userID uuid.UUID) protocol.ServerMessage {
	msgs := f.messagesFor(userID)
	if len(msgs) == 0 {
		return nil
	}
	return msgs[len(msgs)-1]
}

// roundResultFor returns the first RoundResult sent to userID. A
// RoundResult is never the latest message once a round resolves: the
// room follows it at once with CountdownStart or GameOver.
func (f *fakeSender) roundResultFor(userID uuid.UUID) (protocol.RoundResult, bool) {
	for _, m := range f.messagesFor(userID) {
		if rr, ok := m.(protocol.RoundResult); ok {
			return rr, true
		}
	}
	return protocol.RoundResult{}, false
}

// fakeProvider hands out a scripted sequence of target words so tests
// can assert exact outcomes instead of racing crypto/rand.
type fakeProvider struct {
	mu      sync.Mutex
	targets []string
	next    int
	valid   map[string]struct{}
}

func newFakeProvider(valid []string, targets ...string) *fakeProvider {
	v := make(map[string]struct{}, len(valid))
	for _, w := range valid {
		v[w] = struct{}{}
	}
	return &fakeProvider{targets: targets, valid: v}
}

func (p *fakeProvider) IsValid(word string) bool {
	_, ok := p.valid[word]
	return ok
}

func (p *fakeProvider) PickWord(length int) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	w := p.targets[p.next%len(p.targets)]
	p.next++
	return w, nil
}

func (p *fakeProvider) Lengths() []int { return []int{5} }

func fastConfig() Config {
	return Config{
		WordLengths:        []int{5},
		PointThreshold:     25,
		StartGrace:         time.Millisecond,
		RoundCountdown:     time.Millisecond,
		GuessingDeadline:   time.Hour,
		IndividualDeadline: time.Hour,
		PauseTimeout:       50 * time.Millisecond,
		MaxGameDuration:    time.Hour,
	}
}

func startRoom(t *testing.T, cfg Config, provider *fakeProvider, roster []domain.QueueEntry, onTerm TerminalFunc) (*Room, *fakeSender, func()) {
	t.Helper()
	sender := newFakeSender()
	room, err := New(uuid.New(), roster, cfg, provider, sender, nil, onTerm)
	if err != nil {
		t.Fatal(err)
	}
	done := make(chan struct{})
	go room.Run(done)
	room.Start()

	// Wait for the room to reach Guessing before returning control.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if room.Snapshot().CurrentPhase == domain.PhaseGuessing {
			break
		}
		time.Sleep(time.Millisecond)
	}
	return room, sender, func() { close(done) }
}

func roster(n int) ([]domain.QueueEntry, []uuid.UUID) {
	entries := make([]domain.QueueEntry, n)
	ids := make([]uuid.UUID, n)
	for i := range entries {
		ids[i] = uuid.New()
		entries[i] = domain.QueueEntry{UserID: ids[i], DisplayName: "P"}
	}
	return entries, ids
}

func TestRoundClosesWhenAllConnectedPlayersSubmit(t *testing.T) {
	provider := newFakeProvider([]string{"crane", "loser"}, "crane")
	entries, ids := roster(2)
	room, sender, stop := startRoom(t, fastConfig(), provider, entries, nil)
	defer stop()

	room.SubmitGuess(ids[0], "loser")
	room.SubmitGuess(ids[1], "crane")

	deadline := time.Now().Add(time.Second)
	var result protocol.RoundResult
	var got bool
	for time.Now().Before(deadline) {
		if msg, ok := sender.roundResultFor(ids[1]); ok {
			result, got = msg, true
			break
		}
		time.Sleep(time.Millisecond)
	}
	if !got {
		t.Fatal("expected a RoundResult to be sent")
	}
	if result.WinningGuess.Word != "crane" {
		t.Fatalf("got winning word %q, want crane (the exact match)", result.WinningGuess.Word)
	}
	if !result.IsWordCompleted {
		t.Fatal("expected is_word_completed to be true")
	}
}

func TestNonWinnerSubmissionScoresZeroWinFlag(t *testing.T) {
	provider := newFakeProvider([]string{"crane", "loser"}, "crane")
	entries, ids := roster(2)
	room, sender, stop := startRoom(t, fastConfig(), provider, entries, nil)
	defer stop()

	room.SubmitGuess(ids[0], "loser")
	room.SubmitGuess(ids[1], "crane")

	deadline := time.Now().Add(time.Second)
	var result protocol.RoundResult
	for time.Now().Before(deadline) {
		if msg, ok := sender.roundResultFor(ids[0]); ok {
			result = msg
			break
		}
		time.Sleep(time.Millisecond)
	}
	if result.YourGuess == nil {
		t.Fatal("expected YourGuess to be populated for the non-winning submitter")
	}
	if result.YourGuess.WasWinningGuess {
		t.Fatal("non-winning submitter should not be flagged as the winning guess")
	}
}

func TestWordReplacedWhenSolvedBelowThreshold(t *testing.T) {
	provider := newFakeProvider([]string{"crane", "loser", "mount"}, "crane", "mount")
	cfg := fastConfig()
	cfg.PointThreshold = 1000 // unreachable in one round
	entries, ids := roster(1)
	room, _, stop := startRoom(t, cfg, provider, entries, nil)
	defer stop()

	room.SubmitGuess(ids[0], "crane")

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		snap := room.Snapshot()
		if snap.CurrentRound == 1 && snap.Status == domain.StatusActive && len(snap.OfficialBoard) == 1 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("expected the room to continue (not GameOver) with the word replaced after an under-threshold solve")
}

func TestIndividualGuessAfterPartialWinner(t *testing.T) {
	provider := newFakeProvider([]string{"crane", "cramp"}, "crane")
	entries, ids := roster(2)
	room, _, stop := startRoom(t, fastConfig(), provider, entries, nil)
	defer stop()

	// "cramp" matches c-r-a on crane but is not a full solve.
	room.SubmitGuess(ids[0], "cramp")
	room.SubmitGuess(ids[1], "cramp")

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		snap := room.Snapshot()
		if snap.CurrentPhase == domain.PhaseIndividual {
			if snap.CurrentWinner == nil {
				t.Fatal("expected a current_winner to be set")
			}
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("expected the room to enter IndividualGuess after a non-solving winner")
}

func TestIndividualGuessNonSolveReturnsToCountdown(t *testing.T) {
	provider := newFakeProvider([]string{"crane", "cramp", "loser"}, "crane")
	cfg := fastConfig()
	cfg.PointThreshold = 1000
	entries, ids := roster(2)
	room, _, stop := startRoom(t, cfg, provider, entries, nil)
	defer stop()

	// "cramp" matches c-r-a on crane but is not a full solve. Both
	// guesses tie, so the earlier submitter becomes current_winner and
	// the room enters IndividualGuess.
	room.SubmitGuess(ids[0], "cramp")
	room.SubmitGuess(ids[1], "cramp")

	var winner uuid.UUID
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if snap := room.Snapshot(); snap.CurrentPhase == domain.PhaseIndividual && snap.CurrentWinner != nil {
			winner = *snap.CurrentWinner
			break
		}
		time.Sleep(time.Millisecond)
	}
	if winner == uuid.Nil {
		t.Fatal("expected the room to enter IndividualGuess with a current_winner")
	}

	// The winner's next guess doesn't solve the word either; per the
	// round state machine this must return to Countdown for the next
	// group round, not loop back into another IndividualGuess.
	room.SubmitGuess(winner, "loser")

	deadline = time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		switch room.Snapshot().CurrentPhase {
		case domain.PhaseIndividual:
			t.Fatal("room looped back into IndividualGuess after a non-solving winner guess")
		case domain.PhaseCountdown, domain.PhaseGuessing:
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("expected the room to reach Countdown after the winner's non-solving guess")
}

func TestGameOverWhenThresholdCrossedOnExactSolve(t *testing.T) {
	provider := newFakeProvider([]string{"crane"}, "crane")
	cfg := fastConfig()
	cfg.PointThreshold = 1
	entries, ids := roster(1)

	var terminated uuid.UUID
	termCh := make(chan struct{})
	room, sender, stop := startRoom(t, cfg, provider, entries, func(gameID uuid.UUID) {
		terminated = gameID
		close(termCh)
	})
	defer stop()

	room.SubmitGuess(ids[0], "crane")

	select {
	case <-termCh:
	case <-time.After(time.Second):
		t.Fatal("expected the room to terminate once a player crossed the point threshold")
	}
	if terminated != room.ID() {
		t.Fatalf("got terminated id %v, want %v", terminated, room.ID())
	}
	if _, ok := sender.latest(ids[0]).(protocol.GameOver); !ok {
		t.Fatalf("expected the final broadcast to be GameOver, got %T", sender.latest(ids[0]))
	}
}

func TestDisconnectAllPlayersPausesRoom(t *testing.T) {
	provider := newFakeProvider([]string{"crane", "loser"}, "crane")
	entries, ids := roster(1)
	room, _, stop := startRoom(t, fastConfig(), provider, entries, nil)
	defer stop()

	room.PlayerDisconnected(ids[0])

	if room.Snapshot().Status != domain.StatusPaused {
		t.Fatalf("got status %v, want Paused", room.Snapshot().Status)
	}

	room.PlayerReconnected(ids[0])
	if room.Snapshot().Status != domain.StatusActive {
		t.Fatalf("got status %v, want Active after reconnect", room.Snapshot().Status)
	}
}

func TestAlreadyGuessedWordRejected(t *testing.T) {
	provider := newFakeProvider([]string{"crane", "loser", "mount"}, "mount")
	cfg := fastConfig()
	cfg.PointThreshold = 1000
	entries, ids := roster(2)
	room, sender, stop := startRoom(t, cfg, provider, entries, nil)
	defer stop()

	room.SubmitGuess(ids[0], "crane")
	room.SubmitGuess(ids[1], "loser")

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if room.Snapshot().CurrentPhase == domain.PhaseIndividual {
			break
		}
		time.Sleep(time.Millisecond)
	}

	winner := room.Snapshot().CurrentWinner
	if winner == nil {
		t.Fatal("expected a current winner going into IndividualGuess")
	}

	guessed := room.Snapshot().OfficialBoard[0].Word
	room.SubmitGuess(*winner, guessed)

	msgs := sender.messagesFor(*winner)
	found := false
	for _, m := range msgs {
		if e, ok := m.(protocol.Error); ok && e.Message == "already_guessed" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an already_guessed error, got %v", msgs)
	}
}
