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
	"unicode/utf8"

	"github.com/pingcap/errors"

	"github.com/Sehouz/majsoul-match-stats/internal/schema"
)

// Wire types used by this protocol surface. Fixed-width records never appear
// in encoded output but are skipped correctly on decode.
const (
	wireVarint  = 0
	wireFixed64 = 1
	wireBytes   = 2
	wireFixed32 = 5
)

// RawFieldName keys the opaque marker emitted when a payload's type is not
// registered; the raw bytes are retained under it instead of failing.
const RawFieldName = "_raw"

// ErrUnsupportedWireType reports a group-encoded field, which this protocol
// never emits and the codec cannot skip.
var ErrUnsupportedWireType = errors.New("unsupported wire type")

// Codec encodes and decodes Values against schema-registered message types.
type Codec struct {
	reg *schema.Registry
}

// NewCodec returns a codec bound to the given registry.
func NewCodec(reg *schema.Registry) *Codec {
	return &Codec{reg: reg}
}

// Registry returns the schema registry the codec was built with.
func (c *Codec) Registry() *schema.Registry {
	return c.reg
}

// Encode marshals a message value against the named type. Only fields the
// schema declares and the value carries are emitted; fields of types outside
// the supported subset are silently omitted.
func (c *Codec) Encode(typeName string, v Value) ([]byte, error) {
	mt, err := c.reg.LookupType(typeName)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return c.encodeMessage(mt, v)
}

func (c *Codec) encodeMessage(mt *schema.MessageType, v Value) ([]byte, error) {
	var buf []byte
	for _, f := range mt.OrderedFields() {
		fv, ok := v.Get(f.Name)
		if !ok || fv.IsNull() {
			continue
		}

		if f.Spec.Repeated {
			items, isArr := fv.AsArray()
			if !isArr {
				items = []Value{fv}
			}
			for _, item := range items {
				buf, _ = c.encodeField(buf, f.Spec, item)
			}
			continue
		}

		var err error
		buf, err = c.encodeField(buf, f.Spec, fv)
		if err != nil {
			return nil, errors.Trace(err)
		}
	}
	return buf, nil
}

// encodeField appends one tag/value pair. Unsupported field types append
// nothing, a deliberate lossy policy: only fields this client actually uses
// need round-trip fidelity.
func (c *Codec) encodeField(buf []byte, spec schema.FieldSpec, v Value) ([]byte, error) {
	switch spec.Type {
	case "string":
		if s, ok := v.AsStr(); ok {
			return appendBytesField(buf, spec.ID, []byte(s)), nil
		}
	case "bytes":
		if b, ok := v.AsBytes(); ok {
			return appendBytesField(buf, spec.ID, b), nil
		}
		if s, ok := v.AsStr(); ok {
			return appendBytesField(buf, spec.ID, []byte(s)), nil
		}
	case "int32", "int64", "uint32", "uint64":
		if i, ok := v.AsInt(); ok {
			buf = AppendVarint(buf, uint64(spec.ID)<<3|wireVarint)
			return AppendVarint(buf, uint64(i)), nil
		}
		if b, ok := v.AsBool(); ok {
			buf = AppendVarint(buf, uint64(spec.ID)<<3|wireVarint)
			return AppendVarint(buf, boolBit(b)), nil
		}
	case "bool":
		b := v.BoolOr(false)
		buf = AppendVarint(buf, uint64(spec.ID)<<3|wireVarint)
		return AppendVarint(buf, boolBit(b)), nil
	default:
		if mt, err := c.reg.LookupType(spec.Type); err == nil {
			if v.Kind() == KindMessage {
				inner, err := c.encodeMessage(mt, v)
				if err != nil {
					return buf, errors.Trace(err)
				}
				return appendBytesField(buf, spec.ID, inner), nil
			}
		}
	}
	return buf, nil
}

func appendBytesField(buf []byte, id int, data []byte) []byte {
	buf = AppendVarint(buf, uint64(id)<<3|wireBytes)
	buf = AppendVarint(buf, uint64(len(data)))
	return append(buf, data...)
}

func boolBit(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// Decode unmarshals bytes against the named type. If the type is not
// registered the raw bytes come back under RawFieldName instead of an error;
// the server evolves its schema independently of this client and an
// unrecognized payload must not poison the record it arrived in.
func (c *Codec) Decode(typeName string, data []byte) (Value, error) {
	mt, err := c.reg.LookupType(typeName)
	if err != nil {
		return Msg(F(RawFieldName, Bytes(data))), nil
	}
	return c.decodeMessage(mt, data)
}

func (c *Codec) decodeMessage(mt *schema.MessageType, data []byte) (Value, error) {
	result := Msg()
	pos := 0

	for pos < len(data) {
		tag, next, err := ReadVarint(data, pos)
		if err != nil {
			return result, errors.Trace(err)
		}
		pos = next
		fieldID := int(tag >> 3)
		wt := int(tag & 0x7)

		f, known := mt.FieldByID(fieldID)
		if !known {
			pos, err = skipField(data, pos, wt)
			if err != nil {
				return result, errors.Trace(err)
			}
			continue
		}

		switch wt {
		case wireVarint:
			raw, next, err := ReadVarint(data, pos)
			if err != nil {
				return result, errors.Trace(err)
			}
			pos = next
			v := Int(int64(raw))
			if f.Spec.Type == "bool" {
				v = Bool(raw != 0)
			}
			setOrAppend(&result, f, v)

		case wireBytes:
			length, next, err := ReadVarint(data, pos)
			if err != nil {
				return result, errors.Trace(err)
			}
			pos = next
			if pos+int(length) > len(data) {
				return result, errors.Trace(ErrTruncated)
			}
			payload := data[pos : pos+int(length)]
			pos += int(length)
			setOrAppend(&result, f, c.decodePayload(f.Spec, payload))

		default:
			// Declared as varint/bytes but sent fixed-width: treat like an
			// unrecognized field rather than failing the whole message.
			pos, err = skipField(data, pos, wt)
			if err != nil {
				return result, errors.Trace(err)
			}
		}
	}
	return result, nil
}

// decodePayload interprets one length-delimited payload per the declared
// field type, degrading to opaque bytes when it cannot.
func (c *Codec) decodePayload(spec schema.FieldSpec, payload []byte) Value {
	switch spec.Type {
	case "string":
		if utf8.Valid(payload) {
			return Str(string(payload))
		}
		return Bytes(append([]byte(nil), payload...))
	case "bytes":
		return Bytes(append([]byte(nil), payload...))
	default:
		if mt, err := c.reg.LookupType(spec.Type); err == nil {
			inner, derr := c.decodeMessage(mt, payload)
			if derr == nil {
				return inner
			}
		}
		return Bytes(append([]byte(nil), payload...))
	}
}

func setOrAppend(msg *Value, f schema.Field, v Value) {
	if f.Spec.Repeated {
		msg.Append(f.Name, v)
	} else {
		msg.Set(f.Name, v)
	}
}

func skipField(data []byte, pos, wt int) (int, error) {
	switch wt {
	case wireVarint:
		_, next, err := ReadVarint(data, pos)
		return next, errors.Trace(err)
	case wireBytes:
		length, next, err := ReadVarint(data, pos)
		if err != nil {
			return pos, errors.Trace(err)
		}
		if next+int(length) > len(data) {
			return pos, errors.Trace(ErrTruncated)
		}
		return next + int(length), nil
	case wireFixed64:
		if pos+8 > len(data) {
			return pos, errors.Trace(ErrTruncated)
		}
		return pos + 8, nil
	case wireFixed32:
		if pos+4 > len(data) {
			return pos, errors.Trace(ErrTruncated)
		}
		return pos + 4, nil
	default:
		return pos, errors.Annotatef(ErrUnsupportedWireType, "wire type %d", wt)
	}
}
