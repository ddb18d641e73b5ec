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
	"encoding/json"

	"github.com/pingcap/errors"
)

// UnmarshalJSON reads a value back from its JSON rendering. The mapping is
// not a full inverse of MarshalJSON: base64 strings come back as strings, and
// non-integer numbers are out of this protocol's value range and rejected.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	parsed, err := decodeJSONValue(dec)
	if err != nil {
		return errors.Trace(err)
	}
	*v = parsed
	return nil
}

func decodeJSONValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, errors.Trace(err)
	}
	return decodeJSONToken(dec, tok)
}

func decodeJSONToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case string:
		return Str(t), nil
	case json.Number:
		i, err := t.Int64()
		if err != nil {
			return Value{}, errors.Annotatef(err, "non-integer number %s", t)
		}
		return Int(i), nil
	case json.Delim:
		switch t {
		case '[':
			arr := Arr()
			for dec.More() {
				item, err := decodeJSONValue(dec)
				if err != nil {
					return Value{}, err
				}
				arr.items = append(arr.items, item)
			}
			_, err := dec.Token() // closing ]
			return arr, errors.Trace(err)
		case '{':
			msg := Msg()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, errors.Trace(err)
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, errors.Errorf("unexpected object key %v", keyTok)
				}
				item, err := decodeJSONValue(dec)
				if err != nil {
					return Value{}, err
				}
				msg.Set(key, item)
			}
			_, err := dec.Token() // closing }
			return msg, errors.Trace(err)
		}
	}
	return Value{}, errors.Errorf("unexpected token %v", tok)
}
