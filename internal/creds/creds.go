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

// creds reads and writes the persisted credential artifact. The token inside
// is an opaque bearer token produced by an external capture step; this
// package never interprets it.
package creds

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pingcap/errors"
)

// Credentials is the persisted credential artifact.
type Credentials struct {
	Server      string `json:"server"`
	AccessToken string `json:"access_token"`
	AccountID   int64  `json:"account_id,omitempty"`
	SavedAt     string `json:"saved_at,omitempty"`
}

// DefaultPath returns the conventional credential location relative to the
// working directory.
func DefaultPath() string {
	return filepath.Join(".config", "credentials.json")
}

// Load reads credentials from path.
func Load(path string) (*Credentials, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Annotatef(err, "load credentials from %s", path)
	}

	var c Credentials
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, errors.Annotatef(err, "parse credentials at %s", path)
	}
	if c.AccessToken == "" {
		return nil, errors.Errorf("credentials at %s carry no access token", path)
	}
	if c.Server == "" {
		c.Server = "cn"
	}
	return &c, nil
}

// Save writes credentials to path, stamping SavedAt and creating parent
// directories as needed. The file holds a bearer token, hence 0600.
func Save(path string, c *Credentials) error {
	c.SavedAt = time.Now().Format("2006-01-02 15:04:05")

	raw, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.Trace(err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Trace(err)
	}
	return errors.Annotatef(os.WriteFile(path, raw, 0o600), "save credentials to %s", path)
}
