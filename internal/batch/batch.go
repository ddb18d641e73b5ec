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

// batch iterates a CSV-provided list of record ids, fetching each with a
// pacing delay between requests. Rate limiting lives here, not in the RPC
// layer.
package batch

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pingcap/errors"
	"golang.org/x/time/rate"

	"github.com/Sehouz/majsoul-match-stats/internal/log"
)

// idColumns are the header names tried, in order, for the record id column.
var idColumns = []string{"牌谱链接", "paipu_id", "uuid"}

// LoadIDs reads the record ids out of a header-keyed CSV file.
func LoadIDs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, errors.Annotatef(err, "read CSV header from %s", path)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}

	var ids []string
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Annotatef(err, "read CSV row from %s", path)
		}
		for _, col := range idColumns {
			idx, ok := cols[col]
			if !ok || idx >= len(row) {
				continue
			}
			if id := strings.TrimSpace(row[idx]); id != "" {
				ids = append(ids, id)
				break
			}
		}
	}
	return ids, nil
}

// Report summarizes one batch run.
type Report struct {
	Succeeded int
	Skipped   int
	Failed    int
	FailedIDs []string
}

// Downloader drives a paced download loop. Fetch retrieves and persists one
// record; it is injected so the loop needs no knowledge of the client.
type Downloader struct {
	Fetch        func(ctx context.Context, id string) error
	OutDir       string
	Limiter      *rate.Limiter
	SkipExisting bool
}

// Run downloads every id in order. Individual failures are recorded and the
// loop continues; only context cancellation stops it early.
func (d *Downloader) Run(ctx context.Context, ids []string) (*Report, error) {
	rep := &Report{}
	for i, id := range ids {
		if d.SkipExisting {
			if _, err := os.Stat(filepath.Join(d.OutDir, id+".json")); err == nil {
				log.Printf("[%d/%d] skipped %s (already exists)", i+1, len(ids), id)
				rep.Skipped++
				continue
			}
		}

		if d.Limiter != nil {
			if err := d.Limiter.Wait(ctx); err != nil {
				return rep, errors.Trace(err)
			}
		}

		log.Printf("[%d/%d] downloading %s", i+1, len(ids), id)
		if err := d.Fetch(ctx, id); err != nil {
			if ctx.Err() != nil {
				return rep, errors.Trace(ctx.Err())
			}
			log.Printf("[%d/%d] %s failed: %v", i+1, len(ids), id, err)
			rep.Failed++
			rep.FailedIDs = append(rep.FailedIDs, id)
			continue
		}
		rep.Succeeded++
	}
	return rep, nil
}
