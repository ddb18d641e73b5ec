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

package stats

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/pingcap/errors"

	"github.com/Sehouz/majsoul-match-stats/internal/log"
)

// PlayerStats accumulates one player's counters across games.
type PlayerStats struct {
	AccountID    string
	Nickname     string
	Games        int
	Rounds       int
	Riichi       int
	FuroRounds   int
	Wins         int
	DealIns      int
	WinPoints    int64
	DealInPoints int64
}

// Rates derives the percentage and average views of one player's counters.
type Rates struct {
	RiichiRate      float64
	FuroRate        float64
	WinRate         float64
	DealInRate      float64
	AvgWinPoints    float64
	AvgDealInPoints float64
}

// Rates computes per-round rates and per-event averages.
func (p *PlayerStats) Rates() Rates {
	rounds := float64(p.Rounds)
	if rounds == 0 {
		rounds = 1
	}
	r := Rates{
		RiichiRate: float64(p.Riichi) / rounds * 100,
		FuroRate:   float64(p.FuroRounds) / rounds * 100,
		WinRate:    float64(p.Wins) / rounds * 100,
		DealInRate: float64(p.DealIns) / rounds * 100,
	}
	if p.Wins > 0 {
		r.AvgWinPoints = float64(p.WinPoints) / float64(p.Wins)
	}
	if p.DealIns > 0 {
		r.AvgDealInPoints = float64(p.DealInPoints) / float64(p.DealIns)
	}
	return r
}

// Aggregator folds per-game seat analyses into per-player totals, keyed by
// roster account id.
type Aggregator struct {
	players map[string]*PlayerStats
}

// NewAggregator returns an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{players: make(map[string]*PlayerStats)}
}

// AddGame matches the game's seats to roster players and accumulates any
// matched seat; roster rows without an account id are skipped.
func (ag *Aggregator) AddGame(g RosterGame, a Analysis) {
	for seat, player := range MatchSeats(g.Players, a.FinalScores) {
		if player.AccountID == "" {
			continue
		}
		p, ok := ag.players[player.AccountID]
		if !ok {
			p = &PlayerStats{AccountID: player.AccountID}
			ag.players[player.AccountID] = p
		}
		p.Nickname = player.Nickname
		p.Games++

		s := a.Seats[seat]
		p.Rounds += s.Rounds
		p.Riichi += s.Riichi
		p.FuroRounds += s.FuroRounds
		p.Wins += s.Wins
		p.DealIns += s.DealIns
		p.WinPoints += s.WinPoints
		p.DealInPoints += s.DealInPoints
	}
}

// Results returns the accumulated players, most games first.
func (ag *Aggregator) Results() []*PlayerStats {
	out := make([]*PlayerStats, 0, len(ag.players))
	for _, p := range ag.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Games != out[j].Games {
			return out[i].Games > out[j].Games
		}
		return out[i].AccountID < out[j].AccountID
	})
	return out
}

// Run analyzes every roster game whose record document exists under outDir
// and returns the aggregated player statistics.
func Run(rosterPath, outDir string) ([]*PlayerStats, error) {
	games, err := LoadRoster(rosterPath)
	if err != nil {
		return nil, errors.Trace(err)
	}

	ag := NewAggregator()
	processed, skipped := 0, 0
	for _, g := range games {
		path := filepath.Join(outDir, g.ID+".json")
		if _, err := os.Stat(path); err != nil {
			skipped++
			continue
		}
		analysis, err := AnalyzeFile(path)
		if err != nil {
			log.Printf("skip %s: %v", g.ID, err)
			skipped++
			continue
		}
		ag.AddGame(g, analysis)
		processed++
	}
	log.Printf("analyzed %d games, skipped %d", processed, skipped)
	return ag.Results(), nil
}

// WriteTable renders the fixed-width summary table.
func WriteTable(w io.Writer, players []*PlayerStats) error {
	const format = "%-16s %5s %6s %6s %6s %5s %6s %5s %6s %7s %6s %8s %7s %8s %7s\n"
	if _, err := fmt.Fprintf(w, format,
		"Player", "Games", "Rounds",
		"Riichi", "R.Rate", "Furo", "F.Rate",
		"Wins", "W.Rate", "Deal-in", "D.Rate",
		"WinPts", "AvgWin", "DealPts", "AvgDeal"); err != nil {
		return errors.Trace(err)
	}
	for _, p := range players {
		r := p.Rates()
		_, err := fmt.Fprintf(w, format,
			p.Nickname,
			fmt.Sprintf("%d", p.Games),
			fmt.Sprintf("%d", p.Rounds),
			fmt.Sprintf("%d", p.Riichi),
			fmt.Sprintf("%.1f", r.RiichiRate),
			fmt.Sprintf("%d", p.FuroRounds),
			fmt.Sprintf("%.1f", r.FuroRate),
			fmt.Sprintf("%d", p.Wins),
			fmt.Sprintf("%.1f", r.WinRate),
			fmt.Sprintf("%d", p.DealIns),
			fmt.Sprintf("%.1f", r.DealInRate),
			fmt.Sprintf("%d", p.WinPoints),
			fmt.Sprintf("%.0f", r.AvgWinPoints),
			fmt.Sprintf("%d", p.DealInPoints),
			fmt.Sprintf("%.0f", r.AvgDealInPoints))
		if err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// WriteCSV exports the aggregated statistics with the roster's column
// vocabulary.
func WriteCSV(w io.Writer, players []*PlayerStats) error {
	cw := csv.NewWriter(w)
	header := []string{
		"玩家", "账号ID", "对局数", "总局数",
		"立直次数", "立直率",
		"副露局数", "副露率",
		"和牌次数", "和牌率",
		"放铳次数", "放铳率",
		"和牌总打点", "平均打点",
		"放铳总点数", "平均放铳打点",
	}
	if err := cw.Write(header); err != nil {
		return errors.Trace(err)
	}
	for _, p := range players {
		r := p.Rates()
		row := []string{
			p.Nickname,
			p.AccountID,
			fmt.Sprintf("%d", p.Games),
			fmt.Sprintf("%d", p.Rounds),
			fmt.Sprintf("%d", p.Riichi),
			fmt.Sprintf("%.2f%%", r.RiichiRate),
			fmt.Sprintf("%d", p.FuroRounds),
			fmt.Sprintf("%.2f%%", r.FuroRate),
			fmt.Sprintf("%d", p.Wins),
			fmt.Sprintf("%.2f%%", r.WinRate),
			fmt.Sprintf("%d", p.DealIns),
			fmt.Sprintf("%.2f%%", r.DealInRate),
			fmt.Sprintf("%d", p.WinPoints),
			fmt.Sprintf("%.0f", r.AvgWinPoints),
			fmt.Sprintf("%d", p.DealInPoints),
			fmt.Sprintf("%.0f", r.AvgDealInPoints),
		}
		if err := cw.Write(row); err != nil {
			return errors.Trace(err)
		}
	}
	cw.Flush()
	return errors.Trace(cw.Error())
}
