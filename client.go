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

// Package majsoul retrieves game records from the Majsoul servers over their
// schema-driven binary RPC protocol and decodes them into structured action
// streams.
package majsoul

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pingcap/errors"

	"github.com/Sehouz/majsoul-match-stats/internal/locator"
	"github.com/Sehouz/majsoul-match-stats/internal/log"
	"github.com/Sehouz/majsoul-match-stats/internal/record"
	"github.com/Sehouz/majsoul-match-stats/internal/wire"
)

// ErrNotConnected reports an operation before Connect succeeded.
var ErrNotConnected = errors.New("client not connected")

// Client ties the locator, the RPC session and the record decoder together
// for one region and one bearer token.
type Client struct {
	token       string
	loc         *locator.Locator
	callTimeout time.Duration

	res     *locator.Result
	decoder *record.Decoder
}

// NewClient returns a client for the given region selector and access token.
func NewClient(server, token string, opts ...Option) *Client {
	c := &Client{
		token:       token,
		loc:         locator.New(server),
		callTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect resolves the gateway candidates and establishes a session against
// the first one that accepts.
func (c *Client) Connect(ctx context.Context) error {
	res, err := c.loc.Connect(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	c.res = res
	c.decoder = record.NewDecoder(res.Codec)
	log.Printf("connected to gateway %s (version %s)", res.Host, res.Version)
	return nil
}

// Login authenticates the session with the stored bearer token and returns
// the account id the server reports.
func (c *Client) Login(ctx context.Context) (int64, error) {
	if c.res == nil {
		return 0, errors.Trace(ErrNotConnected)
	}
	ctx, cancel := c.callCtx(ctx)
	defer cancel()

	result, err := c.res.Session.Login(ctx, c.token)
	if err != nil {
		return 0, errors.Trace(err)
	}
	id, _ := result.Get("account_id")
	log.Printf("logged in as account %d", id.IntOr(0))
	return id.IntOr(0), nil
}

// FetchRecordList fetches a page of the account's recent game records.
func (c *Client) FetchRecordList(ctx context.Context, start, count int) (wire.Value, error) {
	return c.call(ctx, ".lq.Lobby.fetchGameRecordList", wire.Msg(
		wire.F("start", wire.Int(int64(start))),
		wire.F("count", wire.Int(int64(count))),
		wire.F("type", wire.Int(0)),
	))
}

// FetchRecord fetches one game record by uuid and decodes it.
func (c *Client) FetchRecord(ctx context.Context, gameUUID string) (*record.GameRecord, error) {
	if c.res == nil {
		return nil, errors.Trace(ErrNotConnected)
	}
	resp, err := c.call(ctx, ".lq.Lobby.fetchGameRecord", wire.Msg(
		wire.F("game_uuid", wire.Str(gameUUID)),
		wire.F("client_version_string", wire.Str(c.res.ClientVersionString)),
	))
	if err != nil {
		return nil, errors.Trace(err)
	}
	rec, err := c.decoder.Decode(resp)
	if err != nil {
		return nil, errors.Annotatef(err, "decode record %s", gameUUID)
	}
	return rec, nil
}

// DownloadRecord fetches one record and persists it as {uuid}.json under
// outDir.
func (c *Client) DownloadRecord(ctx context.Context, gameUUID, outDir string) (*record.GameRecord, error) {
	rec, err := c.FetchRecord(ctx, gameUUID)
	if err != nil {
		return nil, errors.Trace(err)
	}

	raw, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, errors.Trace(err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, errors.Trace(err)
	}
	path := filepath.Join(outDir, gameUUID+".json")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return nil, errors.Annotatef(err, "write %s", path)
	}
	log.Printf("saved %s (%d actions)", path, len(rec.Actions))
	return rec, nil
}

// Close tears down the session.
func (c *Client) Close() error {
	if c.res == nil || c.res.Session == nil {
		return nil
	}
	return c.res.Session.Close()
}

func (c *Client) call(ctx context.Context, method string, payload wire.Value) (wire.Value, error) {
	if c.res == nil {
		return wire.Null(), errors.Trace(ErrNotConnected)
	}
	ctx, cancel := c.callCtx(ctx)
	defer cancel()
	return c.res.Session.Call(ctx, method, payload)
}

// callCtx bounds a single call. The protocol itself has no response
// deadline, so the bound lives here, at the caller-facing layer.
func (c *Client) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.callTimeout)
}
