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

package packet

import (
	"encoding/binary"
	"fmt"

	"github.com/pingcap/errors"
)

// Kind represents the gateway frame's kind: notify, request or response.
type Kind byte

const (
	_ Kind = iota
	// Notify is a server push; it carries no sequence id.
	Notify = 0x01

	// Request is a client call; bytes 1-2 carry its sequence id.
	Request = 0x02

	// Response answers a Request and echoes its sequence id.
	Response = 0x03
)

var kinds = map[Kind]string{
	Notify:   "Notify",
	Request:  "Request",
	Response: "Response",
}

func (k Kind) String() string {
	if s, ok := kinds[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", byte(k))
}

// Errors that could be occurred in the frame codec
var (
	ErrWrongFrameKind = errors.New("wrong frame kind")
	ErrShortFrame     = errors.New("frame too short")
)

// Frame represents one gateway frame.
type Frame struct {
	Kind Kind
	Seq  uint16 // zero for Notify
	Data []byte
}

// String represents the Frame's in text mode.
func (f *Frame) String() string {
	return fmt.Sprintf("Kind: %s, Seq: %d, Length: %d", f.Kind, f.Seq, len(f.Data))
}

// Frame layout:
//
// -<kind>-|-<sequence id>-|-<data>-
// --------|---------------|--------
// 1 byte frame kind, 2 bytes little-endian sequence id (Request/Response
// only), and the envelope bytes.
func Encode(kind Kind, seq uint16, data []byte) ([]byte, error) {
	switch kind {
	case Notify:
		buf := make([]byte, 1+len(data))
		buf[0] = byte(kind)
		copy(buf[1:], data)
		return buf, nil
	case Request, Response:
		buf := make([]byte, 3+len(data))
		buf[0] = byte(kind)
		binary.LittleEndian.PutUint16(buf[1:3], seq)
		copy(buf[3:], data)
		return buf, nil
	}
	return nil, errors.Annotatef(ErrWrongFrameKind, "kind %d", kind)
}

// Decode splits one received frame into kind, sequence id and payload.
func Decode(data []byte) (*Frame, error) {
	if len(data) < 1 {
		return nil, errors.Trace(ErrShortFrame)
	}

	kind := Kind(data[0])
	switch kind {
	case Notify:
		return &Frame{Kind: kind, Data: data[1:]}, nil
	case Request, Response:
		if len(data) < 3 {
			return nil, errors.Trace(ErrShortFrame)
		}
		return &Frame{
			Kind: kind,
			Seq:  binary.LittleEndian.Uint16(data[1:3]),
			Data: data[3:],
		}, nil
	}
	return nil, errors.Annotatef(ErrWrongFrameKind, "kind %d", data[0])
}
