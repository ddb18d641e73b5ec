// Copyright (c) majsoul-match-stats Authors. All Rights Reserved.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pingcap/errors"

	"github.com/Sehouz/majsoul-match-stats/internal/log"
	"github.com/Sehouz/majsoul-match-stats/internal/packet"
	"github.com/Sehouz/majsoul-match-stats/internal/wire"
)

// State represents the session lifecycle.
type State int32

// Session states
const (
	Disconnected State = iota
	Connecting
	Connected
	Closed
)

// Errors that could be occurred in the RPC session
var (
	ErrClosed     = errors.New("session closed")
	ErrAuthFailed = errors.New("authentication failed")
)

// Conn is the transport surface the session needs from a websocket
// connection. *websocket.Conn satisfies it; tests substitute an in-memory
// pipe.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type callResult struct {
	data []byte // raw envelope bytes of the matched Response frame
	err  error
}

// pendingCall records one in-flight request: created when the request frame
// is sent, removed when its matching response arrives. At most one entry per
// sequence id.
type pendingCall struct {
	method       string
	responseType string
	ch           chan callResult
}

// Session drives the request/response protocol over one gateway connection.
// Calls are issued strictly sequentially by current callers, but the pending
// map is keyed by sequence id so pipelined calls need no redesign; the mutex
// already covers the insert/remove paths.
type Session struct {
	conn  Conn
	codec *wire.Codec

	version             string // resource version, sent in the login payload
	clientVersionString string

	wmu sync.Mutex // serializes frame writes

	mu      sync.Mutex
	state   State
	seq     uint16
	pending map[uint16]*pendingCall

	done      chan struct{}
	closeOnce sync.Once

	// login pacing, shortened in tests
	heartbeatGap time.Duration
	recheckGap   time.Duration
}

// New wraps an established connection and starts the frame pump.
func New(conn Conn, codec *wire.Codec, version, clientVersionString string) *Session {
	s := &Session{
		conn:                conn,
		codec:               codec,
		version:             version,
		clientVersionString: clientVersionString,
		state:               Connected,
		pending:             make(map[uint16]*pendingCall),
		done:                make(chan struct{}),
		heartbeatGap:        100 * time.Millisecond,
		recheckGap:          2 * time.Second,
	}
	go s.pump()
	return s
}

// State returns the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close shuts the session down. Idempotent; outstanding calls fail with
// ErrClosed.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = Closed
		s.mu.Unlock()
		close(s.done)
		err = s.conn.Close()
	})
	return err
}

// pump reads frames until the connection dies. Response frames are matched
// to their pending call by sequence id; Notify frames belong to layers this
// client does not implement and are discarded.
func (s *Session) pump() {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.fail(errors.Annotate(err, "read frame"))
			return
		}

		f, err := packet.Decode(data)
		if err != nil {
			log.Printf("discard unparseable frame: %v", err)
			continue
		}

		switch f.Kind {
		case packet.Notify:
			continue
		case packet.Response:
			s.mu.Lock()
			pc, ok := s.pending[f.Seq]
			if ok {
				delete(s.pending, f.Seq)
			}
			s.mu.Unlock()
			if !ok {
				log.Printf("discard response with unknown seq %d", f.Seq)
				continue
			}
			pc.ch <- callResult{data: f.Data}
		default:
			log.Printf("discard frame of kind %s", f.Kind)
		}
	}
}

// fail closes the session and reports the error to every outstanding call.
func (s *Session) fail(err error) {
	s.mu.Lock()
	if s.state != Closed {
		s.state = Disconnected
	}
	calls := s.pending
	s.pending = make(map[uint16]*pendingCall)
	s.mu.Unlock()

	for _, pc := range calls {
		pc.ch <- callResult{err: err}
	}
	s.Close()
}

// nextSeq allocates the next sequence id under s.mu. Ids are 16-bit,
// monotonic from 1, wrap around zero, and are never reused while their
// pending entry is outstanding.
func (s *Session) nextSeq() uint16 {
	for {
		s.seq++
		if s.seq == 0 {
			s.seq = 1
		}
		if _, busy := s.pending[s.seq]; !busy {
			return s.seq
		}
	}
}

// Call invokes a service method and waits for its response. The wait is
// bounded only by ctx; callers own the timeout policy.
func (s *Session) Call(ctx context.Context, method string, payload wire.Value) (wire.Value, error) {
	m, err := s.codec.Registry().ResolveMethod(method)
	if err != nil {
		return wire.Null(), errors.Trace(err)
	}

	reqBytes, err := s.codec.Encode(m.RequestType, payload)
	if err != nil {
		return wire.Null(), errors.Annotatef(err, "encode %s", method)
	}
	env := wire.Envelope{Name: method, Data: reqBytes}.Encode()

	s.mu.Lock()
	if s.state != Connected {
		st := s.state
		s.mu.Unlock()
		return wire.Null(), errors.Annotatef(ErrClosed, "state %d", st)
	}
	id := s.nextSeq()
	pc := &pendingCall{method: method, responseType: m.ResponseType, ch: make(chan callResult, 1)}
	s.pending[id] = pc
	s.mu.Unlock()

	frame, err := packet.Encode(packet.Request, id, env)
	if err != nil {
		s.abandon(id)
		return wire.Null(), errors.Trace(err)
	}

	s.wmu.Lock()
	err = s.conn.WriteMessage(websocket.BinaryMessage, frame)
	s.wmu.Unlock()
	if err != nil {
		s.abandon(id)
		return wire.Null(), errors.Annotatef(err, "send %s", method)
	}

	select {
	case res := <-pc.ch:
		if res.err != nil {
			return wire.Null(), errors.Trace(res.err)
		}
		respEnv, err := wire.DecodeEnvelope(res.data)
		if err != nil {
			return wire.Null(), errors.Annotatef(err, "decode %s response envelope", method)
		}
		v, err := s.codec.Decode(m.ResponseType, respEnv.Data)
		if err != nil {
			return wire.Null(), errors.Annotatef(err, "decode %s response", method)
		}
		return v, nil
	case <-ctx.Done():
		s.abandon(id)
		return wire.Null(), errors.Trace(ctx.Err())
	case <-s.done:
		return wire.Null(), errors.Trace(ErrClosed)
	}
}

func (s *Session) abandon(id uint16) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}

// Login performs the fixed three-step handshake: heartbeat, token check
// (retried once after a grace period, tolerating server-side eventual
// consistency), then the login call with a fresh per-session random key.
func (s *Session) Login(ctx context.Context, token string) (wire.Value, error) {
	_, err := s.Call(ctx, ".lq.Lobby.heatbeat", wire.Msg(
		wire.F("no_operation_counter", wire.Int(0)),
	))
	if err != nil {
		return wire.Null(), errors.Annotate(err, "heartbeat")
	}
	if err := sleepCtx(ctx, s.heartbeatGap); err != nil {
		return wire.Null(), errors.Trace(err)
	}

	check, err := s.oauth2Check(ctx, token)
	if err != nil {
		return wire.Null(), errors.Trace(err)
	}
	if !hasAccount(check) {
		if err := sleepCtx(ctx, s.recheckGap); err != nil {
			return wire.Null(), errors.Trace(err)
		}
		check, err = s.oauth2Check(ctx, token)
		if err != nil {
			return wire.Null(), errors.Trace(err)
		}
	}
	if !hasAccount(check) {
		return wire.Null(), errors.Annotate(ErrAuthFailed, "token invalid or no account associated")
	}

	result, err := s.Call(ctx, ".lq.Lobby.oauth2Login", wire.Msg(
		wire.F("type", wire.Int(0)),
		wire.F("access_token", wire.Str(token)),
		wire.F("reconnect", wire.Bool(false)),
		wire.F("device", wire.Msg(
			wire.F("platform", wire.Str("pc")),
			wire.F("hardware", wire.Str("pc")),
			wire.F("os", wire.Str("windows")),
			wire.F("os_version", wire.Str("win10")),
			wire.F("is_browser", wire.Bool(true)),
			wire.F("software", wire.Str("Chrome")),
			wire.F("sale_platform", wire.Str("web")),
		)),
		wire.F("random_key", wire.Str(uuid.NewString())),
		wire.F("client_version", wire.Msg(
			wire.F("resource", wire.Str(s.version)),
		)),
		wire.F("currency_platforms", wire.Arr()),
		wire.F("client_version_string", wire.Str(s.clientVersionString)),
	))
	if err != nil {
		return wire.Null(), errors.Annotate(err, "login")
	}

	if id, ok := result.Get("account_id"); !ok || id.IntOr(0) == 0 {
		return wire.Null(), errors.Annotate(ErrAuthFailed, "login response lacks account id")
	}
	return result, nil
}

func (s *Session) oauth2Check(ctx context.Context, token string) (wire.Value, error) {
	v, err := s.Call(ctx, ".lq.Lobby.oauth2Check", wire.Msg(
		wire.F("type", wire.Int(0)),
		wire.F("access_token", wire.Str(token)),
	))
	return v, errors.Annotate(err, "oauth2 check")
}

func hasAccount(check wire.Value) bool {
	v, _ := check.Get("has_account")
	return v.BoolOr(false)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
