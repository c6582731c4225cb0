// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package registry

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ChristopherJMiller/word-arena/internal/domain"
	"github.com/ChristopherJMiller/word-arena/internal/protocol"
)

type fakeSocket struct {
	mu     sync.Mutex
	sent   []protocol.ServerMessage
	closed bool
}

func (f *fakeSocket) Send(msg protocol.ServerMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
}

func (f *fakeSocket) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeSocket) wasClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func startRegistry(t *testing.T) (*Registry, func()) {
	t.Helper()
	r := New()
	done := make(chan struct{})
	go r.Run(done)
	return r, func() { close(done) }
}

func TestBindSuccess(t *testing.T) {
	r, stop := startRegistry(t)
	defer stop()

	sock := &fakeSocket{}
	connID := r.Accept(sock)
	user := domain.User{UserID: uuid.New(), DisplayName: "Ada"}

	outcome, err := r.Bind(connID, user, false)
	if err != nil {
		t.Fatal(err)
	}
	if outcome != BindSuccess {
		t.Fatalf("got %v, want BindSuccess", outcome)
	}
}

func TestBindSessionConflictWithoutForce(t *testing.T) {
	r, stop := startRegistry(t)
	defer stop()

	user := domain.User{UserID: uuid.New(), DisplayName: "Ada"}

	connA := r.Accept(&fakeSocket{})
	if _, err := r.Bind(connA, user, false); err != nil {
		t.Fatal(err)
	}

	connB := r.Accept(&fakeSocket{})
	outcome, err := r.Bind(connB, user, false)
	if err != nil {
		t.Fatal(err)
	}
	if outcome != BindSessionConflict {
		t.Fatalf("got %v, want BindSessionConflict", outcome)
	}
}

func TestBindForceTakesOverAndDisconnectsPrior(t *testing.T) {
	r, stop := startRegistry(t)
	defer stop()

	user := domain.User{UserID: uuid.New(), DisplayName: "Ada"}

	sockA := &fakeSocket{}
	connA := r.Accept(sockA)
	if _, err := r.Bind(connA, user, false); err != nil {
		t.Fatal(err)
	}

	connB := r.Accept(&fakeSocket{})
	outcome, err := r.Bind(connB, user, true)
	if err != nil {
		t.Fatal(err)
	}
	if outcome != BindTookOver {
		t.Fatalf("got %v, want BindTookOver", outcome)
	}

	time.Sleep(10 * time.Millisecond)
	if !sockA.wasClosed() {
		t.Fatal("expected prior connection's socket to be closed")
	}
	if len(sockA.sent) != 1 {
		t.Fatalf("expected SessionDisconnected sent to prior socket, got %v", sockA.sent)
	}
}

func TestOnlyOneConnectionPerUser(t *testing.T) {
	r, stop := startRegistry(t)
	defer stop()

	user := domain.User{UserID: uuid.New(), DisplayName: "Ada"}
	conn1 := r.Accept(&fakeSocket{})
	if _, err := r.Bind(conn1, user, false); err != nil {
		t.Fatal(err)
	}

	got, ok := r.UserFor(conn1)
	if !ok || got != user.UserID {
		t.Fatalf("got %v, %v", got, ok)
	}

	conn2 := r.Accept(&fakeSocket{})
	if _, err := r.Bind(conn2, user, false); err != nil {
		t.Fatal(err)
	}
	if _, ok := r.UserFor(conn2); ok {
		t.Fatal("expected a second connection for the same user to stay unbound")
	}
	if got, ok := r.UserFor(conn1); !ok || got != user.UserID {
		t.Fatalf("expected the first connection to keep the user, got %v, %v", got, ok)
	}
}

func TestCloseNotifiesDisconnect(t *testing.T) {
	r, stop := startRegistry(t)
	defer stop()

	var notified uuid.UUID
	notify := make(chan struct{})
	r.OnDisconnect = func(userID uuid.UUID) {
		notified = userID
		close(notify)
	}

	user := domain.User{UserID: uuid.New(), DisplayName: "Ada"}
	conn := r.Accept(&fakeSocket{})
	if _, err := r.Bind(conn, user, false); err != nil {
		t.Fatal(err)
	}

	r.Close(conn)

	select {
	case <-notify:
	case <-time.After(time.Second):
		t.Fatal("OnDisconnect was not called")
	}
	if notified != user.UserID {
		t.Fatalf("got %v, want %v", notified, user.UserID)
	}
}

// TestCloseDisconnectNotifierMayReenterRegistry reproduces the
// deadlock a synchronous OnDisconnect call used to cause: any
// notifier that calls back into the registry (as the coordinator's
// does, via SendToUser/Broadcast on the queue/room actors) must not
// block Close's own do() call.
func TestCloseDisconnectNotifierMayReenterRegistry(t *testing.T) {
	r, stop := startRegistry(t)
	defer stop()

	other := domain.User{UserID: uuid.New(), DisplayName: "Bea"}
	otherSock := &fakeSocket{}
	otherConn := r.Accept(otherSock)
	if _, err := r.Bind(otherConn, other, false); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	r.OnDisconnect = func(userID uuid.UUID) {
		r.SendToUser(other.UserID, protocol.ErrorMessage("peer_left"))
		close(done)
	}

	user := domain.User{UserID: uuid.New(), DisplayName: "Ada"}
	conn := r.Accept(&fakeSocket{})
	if _, err := r.Bind(conn, user, false); err != nil {
		t.Fatal(err)
	}

	closeDone := make(chan struct{})
	go func() {
		r.Close(conn)
		close(closeDone)
	}()

	select {
	case <-closeDone:
	case <-time.After(time.Second):
		t.Fatal("Close did not return; OnDisconnect re-entering the registry deadlocked it")
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("OnDisconnect's reentrant call never completed")
	}
}
