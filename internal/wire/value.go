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
	"encoding/base64"
	"encoding/json"
	"strconv"
)

// Kind enumerates the shapes a decoded wire value can take. Message shapes
// are known only at runtime, so values are a tagged sum rather than structs.
type Kind int

// Value kinds
const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindStr
	KindBytes
	KindMessage
	KindArray
)

var kindNames = map[Kind]string{
	KindNull:    "null",
	KindBool:    "bool",
	KindInt:     "int",
	KindStr:     "string",
	KindBytes:   "bytes",
	KindMessage: "message",
	KindArray:   "array",
}

func (k Kind) String() string {
	return kindNames[k]
}

// Value is a dynamically shaped recursive value: a scalar, an ordered
// field-name to Value map, or an array of Values for repeated fields.
// The zero Value is null.
type Value struct {
	kind  Kind
	b     bool
	num   int64
	str   string
	raw   []byte
	flds  []MsgField
	items []Value
}

// MsgField is one named field of a message Value. Field order is preserved
// exactly as built or decoded.
type MsgField struct {
	Name  string
	Value Value
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int returns an integer value.
func Int(i int64) Value { return Value{kind: KindInt, num: i} }

// Str returns a string value.
func Str(s string) Value { return Value{kind: KindStr, str: s} }

// Bytes returns an opaque bytes value. Bytes render as base64 in JSON.
func Bytes(b []byte) Value { return Value{kind: KindBytes, raw: b} }

// Arr returns an array value.
func Arr(items ...Value) Value { return Value{kind: KindArray, items: items} }

// Msg returns a message value with the given fields, in order.
func Msg(fields ...MsgField) Value { return Value{kind: KindMessage, flds: fields} }

// F builds one message field, for use with Msg.
func F(name string, v Value) MsgField { return MsgField{Name: name, Value: v} }

// Kind returns the value's kind.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean payload.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsInt returns the integer payload.
func (v Value) AsInt() (int64, bool) { return v.num, v.kind == KindInt }

// AsStr returns the string payload.
func (v Value) AsStr() (string, bool) { return v.str, v.kind == KindStr }

// AsBytes returns the raw bytes payload.
func (v Value) AsBytes() ([]byte, bool) { return v.raw, v.kind == KindBytes }

// AsArray returns the array elements.
func (v Value) AsArray() ([]Value, bool) { return v.items, v.kind == KindArray }

// Fields returns the message fields in order. Nil for non-message values.
func (v Value) Fields() []MsgField {
	if v.kind != KindMessage {
		return nil
	}
	return v.flds
}

// Get returns the named field of a message value.
func (v Value) Get(name string) (Value, bool) {
	if v.kind != KindMessage {
		return Value{}, false
	}
	for _, f := range v.flds {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Set appends the named field, replacing it if already present.
func (v *Value) Set(name string, val Value) {
	if v.kind != KindMessage {
		*v = Msg()
	}
	for i := range v.flds {
		if v.flds[i].Name == name {
			v.flds[i].Value = val
			return
		}
	}
	v.flds = append(v.flds, MsgField{Name: name, Value: val})
}

// Append adds an element to the named array field, creating it on first use.
// Used by the decoder to accumulate repeated fields in arrival order.
func (v *Value) Append(name string, elem Value) {
	if cur, ok := v.Get(name); ok {
		if items, isArr := cur.AsArray(); isArr {
			v.Set(name, Arr(append(items, elem)...))
			return
		}
	}
	v.Set(name, Arr(elem))
}

// IntOr returns the integer payload or def when the value is not an integer.
func (v Value) IntOr(def int64) int64 {
	if i, ok := v.AsInt(); ok {
		return i
	}
	return def
}

// StrOr returns the string payload or def when the value is not a string.
func (v Value) StrOr(def string) string {
	if s, ok := v.AsStr(); ok {
		return s
	}
	return def
}

// BoolOr returns the boolean payload or def. Servers encode optional bools as
// varints, so integer 1 also reads as true.
func (v Value) BoolOr(def bool) bool {
	if b, ok := v.AsBool(); ok {
		return b
	}
	if i, ok := v.AsInt(); ok {
		return i != 0
	}
	return def
}

// MarshalJSON renders the value as plain JSON: messages become objects with
// fields in order, bytes become base64 strings.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		return strconv.AppendBool(nil, v.b), nil
	case KindInt:
		return strconv.AppendInt(nil, v.num, 10), nil
	case KindStr:
		return json.Marshal(v.str)
	case KindBytes:
		return json.Marshal(base64.StdEncoding.EncodeToString(v.raw))
	case KindArray:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, it := range v.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := it.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case KindMessage:
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, f := range v.flds {
			if i > 0 {
				buf.WriteByte(',')
			}
			k, err := json.Marshal(f.Name)
			if err != nil {
				return nil, err
			}
			buf.Write(k)
			buf.WriteByte(':')
			b, err := f.Value.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(b)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	}
	return []byte("null"), nil
}
