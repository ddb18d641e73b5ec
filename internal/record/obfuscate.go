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

package record

// obfuscationTable is the fixed keystream table of the legacy record format.
var obfuscationTable = [9]byte{0x84, 0x5e, 0x4e, 0x42, 0x39, 0xa2, 0x1f, 0x60, 0x1c}

// Deobfuscate reverses the legacy payload obfuscation:
// key[i] = ((23 XOR totalLength) + 5*i + TABLE[i mod 9]) mod 256, XORed over
// every byte. The keystream depends only on the total length, so applying it
// twice restores the original buffer.
func Deobfuscate(data []byte) []byte {
	out := make([]byte, len(data))
	for i := range data {
		k := byte((23 ^ len(data)) + 5*i + int(obfuscationTable[i%len(obfuscationTable)]))
		out[i] = data[i] ^ k
	}
	return out
}
