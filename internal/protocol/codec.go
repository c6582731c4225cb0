// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package protocol

import (
	"fmt"
	"reflect"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// registry maps a variant's wire tag to its Go type and back, for one
// direction (client or server) of the protocol. Built once at init
// time by newRegistry into clientRegistry/serverRegistry below,
// mirroring mk48's reflect-based type-registration idiom for its
// message envelope, but keyed by the exact PascalCase tag the wire
// format names rather than an uncapitalized one.
type registry struct {
	tagToType map[string]reflect.Type
	typeToTag map[reflect.Type]string
}

func newRegistry(values ...interface{}) *registry {
	r := &registry{
		tagToType: make(map[string]reflect.Type),
		typeToTag: make(map[reflect.Type]string),
	}
	for _, v := range values {
		t := reflect.TypeOf(v)
		tag := t.Name()
		r.tagToType[tag] = t
		r.typeToTag[t] = tag
	}
	return r
}

var clientRegistry = newRegistry(
	Authenticate{}, JoinQueue{}, LeaveQueue{}, VoteStartGame{},
	SubmitGuess{}, RejoinGame{}, LeaveGame{}, Heartbeat{},
)

var serverRegistry = newRegistry(
	AuthenticationSuccess{}, AuthenticationFailed{}, SessionDisconnected{},
	QueueJoined{}, QueueLeft{}, MatchmakingCountdown{}, MatchFound{},
	GameStateUpdate{}, CountdownStart{}, RoundResult{}, GameOver{},
	PlayerDisconnected{}, PlayerReconnected{}, GameLeft{}, Error{},
)

// isUnit reports whether t has no JSON-visible fields, and so
// serializes as a bare tag string rather than a single-key object.
func isUnit(t reflect.Type) bool {
	return t.NumField() == 0
}

// EncodeServer marshals a ServerMessage into the externally-tagged
// wire format.
func EncodeServer(msg ServerMessage) ([]byte, error) {
	return encode(serverRegistry, msg)
}

// EncodeClient marshals a ClientMessage into the externally-tagged
// wire format. Used by tests and any tooling that emulates a client.
func EncodeClient(msg ClientMessage) ([]byte, error) {
	return encode(clientRegistry, msg)
}

func encode(r *registry, msg interface{}) ([]byte, error) {
	t := reflect.TypeOf(msg)
	tag, ok := r.typeToTag[t]
	if !ok {
		return nil, fmt.Errorf("protocol: unregistered outbound type %s", t.Name())
	}
	if isUnit(t) {
		return json.Marshal(tag)
	}
	envelope := map[string]interface{}{tag: msg}
	return json.Marshal(envelope)
}

// DecodeClient unmarshals a client-sent frame into the concrete
// ClientMessage it names. Unknown or malformed tags return an error;
// callers surface this as a ProtocolError, never a silent drop.
func DecodeClient(data []byte) (ClientMessage, error) {
	v, err := decode(clientRegistry, data)
	if err != nil {
		return nil, err
	}
	return v.(ClientMessage), nil
}

// DecodeServer is the client-side mirror of DecodeClient, used by
// test harnesses that assert on server output.
func DecodeServer(data []byte) (ServerMessage, error) {
	v, err := decode(serverRegistry, data)
	if err != nil {
		return nil, err
	}
	return v.(ServerMessage), nil
}

func decode(r *registry, data []byte) (interface{}, error) {
	// Unit variants arrive as a bare JSON string.
	var tagOnly string
	if err := json.Unmarshal(data, &tagOnly); err == nil {
		t, ok := r.tagToType[tagOnly]
		if !ok {
			return nil, fmt.Errorf("protocol: unknown variant %q", tagOnly)
		}
		return reflect.New(t).Elem().Interface(), nil
	}

	var envelope map[string]jsoniter.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("protocol: malformed message: %w", err)
	}
	if len(envelope) != 1 {
		return nil, fmt.Errorf("protocol: expected single-key object, got %d keys", len(envelope))
	}

	for tag, payload := range envelope {
		t, ok := r.tagToType[tag]
		if !ok {
			return nil, fmt.Errorf("protocol: unknown variant %q", tag)
		}
		ptr := reflect.New(t)
		if err := json.Unmarshal(payload, ptr.Interface()); err != nil {
			return nil, fmt.Errorf("protocol: bad payload for %q: %w", tag, err)
		}
		return ptr.Elem().Interface(), nil
	}
	panic("unreachable")
}
