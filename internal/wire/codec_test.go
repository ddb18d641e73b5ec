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

package wire

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/pingcap/errors"

	"github.com/Sehouz/majsoul-match-stats/internal/schema"
)

const testSchema = `{
  "nested": {
    "lq": {
      "nested": {
        "Foo": {
          "fields": {
            "bar": {"id": 1, "type": "string"}
          }
        },
        "Mixed": {
          "fields": {
            "seat": {"id": 1, "type": "uint32"},
            "tile": {"id": 2, "type": "string"},
            "is_liqi": {"id": 3, "type": "bool"},
            "payload": {"id": 4, "type": "bytes"},
            "scores": {"id": 5, "rule": "repeated", "type": "int32"},
            "inner": {"id": 6, "type": "Foo"}
          }
        }
      }
    }
  }
}`

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	reg, err := schema.Parse([]byte(testSchema))
	if err != nil {
		t.Fatal(err.Error())
	}
	return NewCodec(reg)
}

func TestVarintRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 127, 128, 16383, 16384, 1<<31 - 1, 1<<32 - 1}
	for _, v := range values {
		buf := AppendVarint(nil, v)
		got, pos, err := ReadVarint(buf, 0)
		if err != nil {
			t.Fatalf("value %d: %v", v, err)
		}
		if got != v {
			t.Fatalf("value %d round-tripped to %d", v, got)
		}
		if pos != len(buf) {
			t.Fatalf("value %d: consumed %d of %d bytes", v, pos, len(buf))
		}
	}
}

func TestVarintTruncated(t *testing.T) {
	_, _, err := ReadVarint([]byte{0x80}, 0)
	if errors.Cause(err) != ErrTruncated {
		t.Fatalf("expect ErrTruncated, got %v", err)
	}
	_, _, err = ReadVarint(nil, 0)
	if errors.Cause(err) != ErrTruncated {
		t.Fatalf("expect ErrTruncated, got %v", err)
	}
}

func TestEncodeKnownBytes(t *testing.T) {
	c := newTestCodec(t)
	got, err := c.Encode("Foo", Msg(F("bar", Str("hi"))))
	if err != nil {
		t.Fatal(err.Error())
	}
	want := []byte{0x0a, 0x02, 0x68, 0x69}
	if !bytes.Equal(got, want) {
		t.Fatalf("expect % x, got % x", want, got)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	c := newTestCodec(t)
	// Fields in schema id order so the decoded rendering matches exactly.
	in := Msg(
		F("seat", Int(2)),
		F("tile", Str("5m")),
		F("is_liqi", Bool(true)),
		F("payload", Bytes([]byte{0x01, 0x02})),
		F("scores", Arr(Int(25000), Int(24000), Int(26000), Int(25000))),
		F("inner", Msg(F("bar", Str("nested")))),
	)

	raw, err := c.Encode("Mixed", in)
	if err != nil {
		t.Fatal(err.Error())
	}
	out, err := c.Decode("Mixed", raw)
	if err != nil {
		t.Fatal(err.Error())
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("expect %+v, got %+v", in, out)
	}
}

func TestDecodeSkipsUnknownFields(t *testing.T) {
	c := newTestCodec(t)

	// Known field 1, then unknown varint field 15, unknown bytes field 16,
	// unknown fixed32 field 17 and fixed64 field 18.
	buf := AppendVarint(nil, 1<<3|0)
	buf = AppendVarint(buf, 3)
	buf = AppendVarint(buf, 15<<3|0)
	buf = AppendVarint(buf, 99)
	buf = AppendVarint(buf, 16<<3|2)
	buf = AppendVarint(buf, 2)
	buf = append(buf, 0xde, 0xad)
	buf = AppendVarint(buf, 17<<3|5)
	buf = append(buf, 1, 2, 3, 4)
	buf = AppendVarint(buf, 18<<3|1)
	buf = append(buf, 1, 2, 3, 4, 5, 6, 7, 8)

	out, err := c.Decode("Mixed", buf)
	if err != nil {
		t.Fatal(err.Error())
	}
	want := Msg(F("seat", Int(3)))
	if !reflect.DeepEqual(want, out) {
		t.Fatalf("expect %+v, got %+v", want, out)
	}
}

func TestDecodeUnknownTypeKeepsRaw(t *testing.T) {
	c := newTestCodec(t)
	data := []byte{0x0a, 0x02, 0x68, 0x69}
	out, err := c.Decode("NoSuchType", data)
	if err != nil {
		t.Fatal(err.Error())
	}
	raw, ok := out.Get(RawFieldName)
	if !ok {
		t.Fatal("expect raw field marker")
	}
	b, _ := raw.AsBytes()
	if !bytes.Equal(b, data) {
		t.Fatalf("expect % x, got % x", data, b)
	}
}

func TestDecodeTruncatedPayload(t *testing.T) {
	c := newTestCodec(t)
	// Field 2 declares 10 payload bytes but only 2 follow.
	buf := AppendVarint(nil, 2<<3|2)
	buf = AppendVarint(buf, 10)
	buf = append(buf, 0x68, 0x69)
	_, err := c.Decode("Mixed", buf)
	if errors.Cause(err) != ErrTruncated {
		t.Fatalf("expect ErrTruncated, got %v", err)
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	env := Envelope{Name: ".lq.Lobby.fetchGameRecord", Data: []byte{0x0a, 0x01, 0x78}}
	raw := env.Encode()

	got, err := DecodeEnvelope(raw)
	if err != nil {
		t.Fatal(err.Error())
	}
	if got.Name != env.Name || !bytes.Equal(got.Data, env.Data) {
		t.Fatalf("expect %+v, got %+v", env, got)
	}

	// Trailing unknown varint field must not break the envelope.
	raw = AppendVarint(raw, 7<<3|0)
	raw = AppendVarint(raw, 42)
	got, err = DecodeEnvelope(raw)
	if err != nil {
		t.Fatal(err.Error())
	}
	if got.Name != env.Name || !bytes.Equal(got.Data, env.Data) {
		t.Fatalf("expect %+v, got %+v", env, got)
	}
}

func TestValueJSON(t *testing.T) {
	v := Msg(
		F("uuid", Str("200101-abcd")),
		F("seat", Int(3)),
		F("is_liqi", Bool(true)),
		F("blob", Bytes([]byte{0xff, 0x00})),
		F("scores", Arr(Int(25000), Int(-8000))),
		F("inner", Msg(F("bar", Str("x")))),
	)
	raw, err := v.MarshalJSON()
	if err != nil {
		t.Fatal(err.Error())
	}
	want := `{"uuid":"200101-abcd","seat":3,"is_liqi":true,"blob":"/wA=","scores":[25000,-8000],"inner":{"bar":"x"}}`
	if string(raw) != want {
		t.Fatalf("expect %s, got %s", want, raw)
	}

	var back Value
	if err := back.UnmarshalJSON(raw); err != nil {
		t.Fatal(err.Error())
	}
	// Bytes render as base64 and come back as plain strings.
	seat, _ := back.Get("seat")
	if seat.IntOr(0) != 3 {
		t.Fatalf("expect seat 3, got %+v", seat)
	}
	blob, _ := back.Get("blob")
	if blob.StrOr("") != "/wA=" {
		t.Fatalf("expect base64 string, got %+v", blob)
	}
	liqi, _ := back.Get("is_liqi")
	if !liqi.BoolOr(false) {
		t.Fatal("expect is_liqi true")
	}
	scores, _ := back.Get("scores")
	items, _ := scores.AsArray()
	if len(items) != 2 || items[1].IntOr(0) != -8000 {
		t.Fatalf("expect scores [25000 -8000], got %+v", items)
	}
}

func TestValueAccessors(t *testing.T) {
	if !Null().IsNull() {
		t.Fatal("zero value should be null")
	}
	if Int(1).BoolOr(false) != true {
		t.Fatal("varint-encoded bools read as integers")
	}
	if Int(0).BoolOr(true) != false {
		t.Fatal("integer zero is false")
	}
	if Str("x").IntOr(7) != 7 {
		t.Fatal("IntOr should fall back on non-integers")
	}

	var m Value
	m.Append("a", Int(1))
	m.Append("a", Int(2))
	arr, _ := m.Get("a")
	items, ok := arr.AsArray()
	if !ok || len(items) != 2 || items[0].IntOr(0) != 1 || items[1].IntOr(0) != 2 {
		t.Fatalf("expect accumulated [1 2], got %+v", items)
	}
}
