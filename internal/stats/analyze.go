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

// stats tabulates per-player counters (riichi, calls, wins, deal-ins, points)
// over already-decoded game records and matches seats back to roster players
// by final score.
package stats

import (
	"encoding/json"
	"os"

	"github.com/pingcap/errors"

	"github.com/Sehouz/majsoul-match-stats/internal/record"
	"github.com/Sehouz/majsoul-match-stats/internal/wire"
)

const seats = 4

// SeatStats collects one seat's counters over one game.
type SeatStats struct {
	Rounds       int
	Riichi       int
	FuroRounds   int
	Wins         int
	DealIns      int
	WinPoints    int64
	DealInPoints int64
}

// Analysis is the per-seat outcome of one game.
type Analysis struct {
	Seats       [seats]SeatStats
	FinalScores []int64
}

// Analyze walks one game's ordered action stream. The stream order carries
// the round structure: a RecordNewRound closes the previous round, so call
// flags fold into the finished round before resetting.
func Analyze(actions []record.ActionEvent) Analysis {
	var a Analysis
	var furoThisRound [seats]bool

	foldFuro := func() {
		for s := 0; s < seats; s++ {
			if furoThisRound[s] {
				a.Seats[s].FuroRounds++
			}
			furoThisRound[s] = false
		}
	}

	for _, act := range actions {
		data := act.Data
		switch act.Type {
		case "RecordNewRound":
			foldFuro()
			for s := 0; s < seats; s++ {
				a.Seats[s].Rounds++
			}

		case "RecordDiscardTile":
			if fieldBool(data, "is_liqi") {
				if s := seatOf(data); s >= 0 {
					a.Seats[s].Riichi++
				}
			}

		case "RecordChiPengGang":
			if s := seatOf(data); s >= 0 {
				furoThisRound[s] = true
			}

		case "RecordHule":
			deltas := fieldInts(data, "delta_scores")
			hules, _ := fieldArr(data, "hules")
			for _, h := range hules {
				winner := seatOf(h)
				if winner < 0 {
					winner = 0
				}
				dadian := fieldInt(h, "dadian")
				a.Seats[winner].Wins++
				a.Seats[winner].WinPoints += dadian

				if !fieldBool(h, "zimo") && len(deltas) > 0 {
					if s := dealInSeat(deltas, winner); s >= 0 {
						a.Seats[s].DealIns++
						a.Seats[s].DealInPoints += dadian
					}
				}
			}
		}

		switch act.Type {
		case "RecordHule", "RecordNoTile":
			if scores := fieldInts(data, "scores"); len(scores) > 0 {
				a.FinalScores = scores
			}
		}
	}

	foldFuro()
	return a
}

// dealInSeat finds who paid a direct win: the unique minimum negative score
// delta belonging to a seat other than the winner.
func dealInSeat(deltas []int64, winner int) int {
	min := deltas[0]
	for _, d := range deltas[1:] {
		if d < min {
			min = d
		}
	}
	for i, d := range deltas {
		if d == min && i != winner && d < 0 {
			return i
		}
	}
	return -1
}

// AnalyzeFile loads one downloaded record document and analyzes its actions.
func AnalyzeFile(path string) (Analysis, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Analysis{}, errors.Trace(err)
	}
	var rec record.GameRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Analysis{}, errors.Annotatef(err, "parse record %s", path)
	}
	return Analyze(rec.Actions), nil
}

func seatOf(v wire.Value) int {
	s, ok := v.Get("seat")
	if !ok {
		return 0
	}
	return int(s.IntOr(0))
}

func fieldInt(v wire.Value, name string) int64 {
	f, _ := v.Get(name)
	return f.IntOr(0)
}

func fieldBool(v wire.Value, name string) bool {
	f, _ := v.Get(name)
	return f.BoolOr(false)
}

func fieldArr(v wire.Value, name string) ([]wire.Value, bool) {
	f, _ := v.Get(name)
	return f.AsArray()
}

func fieldInts(v wire.Value, name string) []int64 {
	items, ok := fieldArr(v, name)
	if !ok {
		return nil
	}
	out := make([]int64, 0, len(items))
	for _, it := range items {
		out = append(out, it.IntOr(0))
	}
	return out
}
