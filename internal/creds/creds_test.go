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

package creds

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credentials.json")
	in := &Credentials{
		Server:      "jp",
		AccessToken: "token-xyz",
		AccountID:   101,
	}
	if err := Save(path, in); err != nil {
		t.Fatal(err.Error())
	}
	if in.SavedAt == "" {
		t.Fatal("save must stamp SavedAt")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err.Error())
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("token file must be private, got %o", perm)
	}

	out, err := Load(path)
	if err != nil {
		t.Fatal(err.Error())
	}
	if out.Server != "jp" || out.AccessToken != "token-xyz" || out.AccountID != 101 {
		t.Fatalf("unexpected credentials %+v", out)
	}
	if out.SavedAt != in.SavedAt {
		t.Fatalf("expect SavedAt %q, got %q", in.SavedAt, out.SavedAt)
	}
}

func TestLoadDefaultsServer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	if err := os.WriteFile(path, []byte(`{"access_token": "tok"}`), 0o600); err != nil {
		t.Fatal(err.Error())
	}
	c, err := Load(path)
	if err != nil {
		t.Fatal(err.Error())
	}
	if c.Server != "cn" {
		t.Fatalf("expect cn default, got %q", c.Server)
	}
}

func TestLoadRejectsMissingToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	if err := os.WriteFile(path, []byte(`{"server": "cn"}`), 0o600); err != nil {
		t.Fatal(err.Error())
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expect error for empty access token")
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expect error for a missing file")
	}
}
