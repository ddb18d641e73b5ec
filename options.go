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

package majsoul

import (
	"net/http"
	"time"

	"github.com/Sehouz/majsoul-match-stats/internal/locator"
	"github.com/Sehouz/majsoul-match-stats/internal/log"
)

// Option tweaks a Client at construction time.
type Option func(*Client)

// WithCallTimeout overrides the default per-call timeout. Zero disables the
// bound entirely; the awaiting side then relies on the caller's context.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.callTimeout = d
	}
}

// WithHTTPClient substitutes the http client used for the resource fetch
// chain.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.loc.Client = hc
	}
}

// WithDialer substitutes the gateway dial function.
func WithDialer(dial locator.DialFunc) Option {
	return func(c *Client) {
		c.loc.Dial = dial
	}
}

// WithLogger rewrites the package logger.
func WithLogger(l log.Logger) Option {
	return func(*Client) {
		log.SetLogger(l)
	}
}
