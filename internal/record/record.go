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

// record unwraps the nested envelope layers of a fetched game record into an
// ordered action stream. Per-action failures degrade to opaque byte payloads;
// only an unparseable outer envelope aborts the record, and even then the raw
// payload is retained as a fallback artifact.
package record

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/pingcap/errors"

	"github.com/Sehouz/majsoul-match-stats/internal/wire"
)

// decodableActions enumerates the action type names this client decodes to
// structured fields. Anything else keeps its raw bytes, tagged with the type
// name discovered at runtime.
var decodableActions = map[string]bool{
	"RecordNewRound":      true,
	"RecordDealTile":      true,
	"RecordDiscardTile":   true,
	"RecordChiPengGang":   true,
	"RecordAnGangAddGang": true,
	"RecordBaBei":         true,
	"RecordLiuJu":         true,
	"RecordNoTile":        true,
	"RecordHule":          true,
}

// ActionEvent is one recorded game event. Exactly one of Data and Raw is
// set: Data for decoded actions, Raw (base64) for opaque ones.
type ActionEvent struct {
	Type string
	Data wire.Value
	Raw  string
}

// MarshalJSON emits {"type","data"} or {"type","raw"} per the output format.
func (a ActionEvent) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"type":`)
	name, err := wire.Str(a.Type).MarshalJSON()
	if err != nil {
		return nil, err
	}
	buf.Write(name)
	if a.Raw != "" {
		raw, err := wire.Str(a.Raw).MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.WriteString(`,"raw":`)
		buf.Write(raw)
	} else {
		data, err := a.Data.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.WriteString(`,"data":`)
		buf.Write(data)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads back an event written by MarshalJSON.
func (a *ActionEvent) UnmarshalJSON(data []byte) error {
	var aux struct {
		Type string     `json:"type"`
		Data wire.Value `json:"data"`
		Raw  string     `json:"raw"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return errors.Trace(err)
	}
	a.Type, a.Data, a.Raw = aux.Type, aux.Data, aux.Raw
	return nil
}

// GameRecord is the structured output for one game: header metadata plus the
// ordered action stream. Action order matches arrival order exactly; round
// boundaries and turn sequencing downstream depend on it.
type GameRecord struct {
	Head     wire.Value    `json:"head"`
	UUID     string        `json:"uuid,omitempty"`
	Version  int64         `json:"version,omitempty"`
	Actions  []ActionEvent `json:"actions"`
	ParseErr string        `json:"parse_error,omitempty"`
	RawData  string        `json:"raw_data,omitempty"`
	Err      string        `json:"error,omitempty"`
}

// Decoder turns fetched record responses into GameRecords.
type Decoder struct {
	codec *wire.Codec
}

// NewDecoder returns a decoder using the session's schema codec.
func NewDecoder(codec *wire.Codec) *Decoder {
	return &Decoder{codec: codec}
}

// Decode unwraps one fetchGameRecord response.
func (d *Decoder) Decode(resp wire.Value) (*GameRecord, error) {
	rec := &GameRecord{Actions: []ActionEvent{}}

	if head, ok := resp.Get("head"); ok {
		rec.Head = d.decodeHead(head)
		rec.UUID = uuidOf(rec.Head)
	}

	data, ok := resp.Get("data")
	raw, err := payloadBytes(data)
	if !ok || err != nil || len(raw) == 0 {
		rec.Err = "no game data"
		return rec, nil
	}

	if err := d.decodeDetail(rec, raw); err != nil {
		rec.ParseErr = err.Error()
		rec.RawData = base64.StdEncoding.EncodeToString(raw)
	}
	return rec, nil
}

// decodeHead re-decodes the header sub-fields that carry base64-embedded
// sub-messages against their known type names. Fields already structured are
// left as-is.
func (d *Decoder) decodeHead(head wire.Value) wire.Value {
	if accounts, ok := head.Get("accounts"); ok {
		if v, decoded := d.embedded(accounts, "PlayerGameView"); decoded {
			head.Set("accounts", v)
		}
	}
	if result, ok := head.Get("result"); ok {
		if players, ok := result.Get("players"); ok {
			if v, decoded := d.embedded(players, "RecordPlayerResult"); decoded {
				result.Set("players", v)
				head.Set("result", result)
			}
		}
	}
	return head
}

// embedded decodes a base64-string or raw-bytes field against typeName.
func (d *Decoder) embedded(v wire.Value, typeName string) (wire.Value, bool) {
	raw, err := payloadBytes(v)
	if err != nil || len(raw) == 0 {
		return wire.Null(), false
	}
	decoded, err := d.codec.Decode(typeName, raw)
	if err != nil {
		return wire.Null(), false
	}
	return decoded, true
}

// decodeDetail parses the primary payload: outer envelope, then the detail
// container with its action sequence. If the outer envelope does not parse,
// one retry through the legacy obfuscation layer is attempted before giving
// up.
func (d *Decoder) decodeDetail(rec *GameRecord, raw []byte) error {
	env, err := wire.DecodeEnvelope(raw)
	if err != nil || len(env.Data) == 0 {
		env, err = wire.DecodeEnvelope(Deobfuscate(raw))
		if err != nil {
			return errors.Annotate(err, "parse record envelope")
		}
		if len(env.Data) == 0 {
			return errors.New("record envelope carries no data")
		}
	}

	detail, err := d.codec.Decode("GameDetailRecords", env.Data)
	if err != nil {
		return errors.Annotate(err, "parse detail container")
	}
	if v, ok := detail.Get("version"); ok {
		rec.Version = v.IntOr(0)
	}

	actions, _ := detail.Get("actions")
	items, _ := actions.AsArray()
	for _, item := range items {
		result, _ := item.Get("result")
		payload, err := payloadBytes(result)
		if err != nil || len(payload) == 0 {
			continue
		}
		rec.Actions = append(rec.Actions, d.decodeAction(payload))
	}
	return nil
}

// decodeAction unwraps one action envelope. The envelope name's final dot
// segment names the concrete action type; without a registered decoder the
// payload stays opaque.
func (d *Decoder) decodeAction(payload []byte) ActionEvent {
	env, err := wire.DecodeEnvelope(payload)
	if err != nil {
		return ActionEvent{Raw: base64.StdEncoding.EncodeToString(payload)}
	}

	name := env.Name
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}

	if decodableActions[name] {
		if data, err := d.codec.Decode(name, env.Data); err == nil {
			return ActionEvent{Type: name, Data: data}
		}
	}
	return ActionEvent{Type: name, Raw: base64.StdEncoding.EncodeToString(env.Data)}
}

// payloadBytes extracts raw bytes from a value that may be opaque bytes or a
// base64 string, the two shapes embedded payloads arrive in.
func payloadBytes(v wire.Value) ([]byte, error) {
	if b, ok := v.AsBytes(); ok {
		return b, nil
	}
	if s, ok := v.AsStr(); ok {
		if s == "" {
			return nil, nil
		}
		raw, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			raw, err = base64.RawStdEncoding.DecodeString(s)
		}
		return raw, errors.Trace(err)
	}
	return nil, nil
}

func uuidOf(head wire.Value) string {
	v, _ := head.Get("uuid")
	return v.StrOr("")
}
