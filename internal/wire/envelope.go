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

import "github.com/pingcap/errors"

// Envelope is the outer message multiplexing heterogeneous payloads over one
// channel: field 1 carries a type or method name, field 2 the embedded bytes.
// Its layout is fixed by the protocol and independent of the fetched schema.
type Envelope struct {
	Name string
	Data []byte
}

// Encode marshals the envelope.
func (e Envelope) Encode() []byte {
	buf := appendBytesField(nil, 1, []byte(e.Name))
	return appendBytesField(buf, 2, e.Data)
}

// DecodeEnvelope unmarshals an envelope, tolerating unknown extra fields.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var e Envelope
	pos := 0
	for pos < len(data) {
		tag, next, err := ReadVarint(data, pos)
		if err != nil {
			return e, errors.Trace(err)
		}
		pos = next
		wt := int(tag & 0x7)

		if wt != wireBytes {
			pos, err = skipField(data, pos, wt)
			if err != nil {
				return e, errors.Trace(err)
			}
			continue
		}

		length, next, err := ReadVarint(data, pos)
		if err != nil {
			return e, errors.Trace(err)
		}
		pos = next
		if pos+int(length) > len(data) {
			return e, errors.Trace(ErrTruncated)
		}
		payload := data[pos : pos+int(length)]
		pos += int(length)

		switch tag >> 3 {
		case 1:
			e.Name = string(payload)
		case 2:
			e.Data = payload
		}
	}
	return e, nil
}
