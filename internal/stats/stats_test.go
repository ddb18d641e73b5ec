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
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	check "github.com/pingcap/check"

	"github.com/Sehouz/majsoul-match-stats/internal/record"
	"github.com/Sehouz/majsoul-match-stats/internal/wire"
)

func TestStats(t *testing.T) {
	check.TestingT(t)
}

type statsSuite struct{}

var _ = check.Suite(&statsSuite{})

func action(name string, fields ...wire.MsgField) record.ActionEvent {
	return record.ActionEvent{Type: name, Data: wire.Msg(fields...)}
}

func ints(vs ...int64) wire.Value {
	items := make([]wire.Value, 0, len(vs))
	for _, v := range vs {
		items = append(items, wire.Int(v))
	}
	return wire.Arr(items...)
}

func (s *statsSuite) TestParsePlayer(c *check.C) {
	id, nick := ParsePlayer("[CN][123456]雀士甲")
	c.Assert(id, check.Equals, "123456")
	c.Assert(nick, check.Equals, "雀士甲")

	id, nick = ParsePlayer("plain nickname")
	c.Assert(id, check.Equals, "")
	c.Assert(nick, check.Equals, "plain nickname")
}

func (s *statsSuite) TestMatchSeats(c *check.C) {
	players := []RosterPlayer{
		{Rank: 1, AccountID: "1", Score: 41000},
		{Rank: 2, AccountID: "2", Score: 28000},
		{Rank: 3, AccountID: "3", Score: 19000},
		{Rank: 4, AccountID: "4", Score: 12000},
	}
	matched := MatchSeats(players, []int64{19000, 41000, 12000, 28000})
	c.Assert(matched, check.HasLen, 4)
	c.Assert(matched[0].AccountID, check.Equals, "3")
	c.Assert(matched[1].AccountID, check.Equals, "1")
	c.Assert(matched[2].AccountID, check.Equals, "4")
	c.Assert(matched[3].AccountID, check.Equals, "2")

	// A near miss within the tolerance still pairs.
	matched = MatchSeats(players, []int64{19050, 41000, 12000, 28000})
	c.Assert(matched[0].AccountID, check.Equals, "3")

	// Scores from a different game do not pair at all.
	matched = MatchSeats(players, []int64{5000, 6000, 7000, 8000})
	c.Assert(matched, check.HasLen, 0)

	// Anything but a full four-seat score vector is rejected.
	matched = MatchSeats(players, []int64{41000, 28000})
	c.Assert(matched, check.HasLen, 0)
}

func (s *statsSuite) TestAnalyze(c *check.C) {
	actions := []record.ActionEvent{
		action("RecordNewRound", wire.F("chang", wire.Int(0)), wire.F("ju", wire.Int(0))),
		action("RecordDiscardTile", wire.F("seat", wire.Int(0)), wire.F("is_liqi", wire.Bool(true))),
		action("RecordChiPengGang", wire.F("seat", wire.Int(1))),
		action("RecordHule",
			wire.F("hules", wire.Arr(wire.Msg(
				wire.F("seat", wire.Int(2)),
				wire.F("dadian", wire.Int(8000)),
				wire.F("zimo", wire.Bool(false)),
			))),
			wire.F("delta_scores", ints(-8000, 0, 8000, 0)),
			wire.F("scores", ints(17000, 25000, 33000, 25000)),
		),
		action("RecordNewRound", wire.F("chang", wire.Int(0)), wire.F("ju", wire.Int(1))),
		action("RecordChiPengGang", wire.F("seat", wire.Int(1))),
		action("RecordHule",
			wire.F("hules", wire.Arr(wire.Msg(
				wire.F("seat", wire.Int(1)),
				wire.F("dadian", wire.Int(2000)),
				wire.F("zimo", wire.Bool(true)),
			))),
			wire.F("delta_scores", ints(-700, 2600, -700, -700)),
			wire.F("scores", ints(16300, 27600, 32300, 24300)),
		),
	}

	a := Analyze(actions)

	c.Assert(a.Seats[0].Rounds, check.Equals, 2)
	c.Assert(a.Seats[0].Riichi, check.Equals, 1)
	c.Assert(a.Seats[0].DealIns, check.Equals, 1)
	c.Assert(a.Seats[0].DealInPoints, check.Equals, int64(8000))

	// Two calls in two rounds fold into two furo rounds, not two calls in
	// one.
	c.Assert(a.Seats[1].FuroRounds, check.Equals, 2)
	c.Assert(a.Seats[1].Wins, check.Equals, 1)
	c.Assert(a.Seats[1].WinPoints, check.Equals, int64(2000))

	c.Assert(a.Seats[2].Wins, check.Equals, 1)
	c.Assert(a.Seats[2].WinPoints, check.Equals, int64(8000))
	// A self-draw win charges nobody with a deal-in.
	total := 0
	for seat := 0; seat < 4; seat++ {
		total += a.Seats[seat].DealIns
	}
	c.Assert(total, check.Equals, 1)

	c.Assert(a.FinalScores, check.DeepEquals, []int64{16300, 27600, 32300, 24300})
}

func (s *statsSuite) TestAnalyzeSkipsOpaqueActions(c *check.C) {
	actions := []record.ActionEvent{
		action("RecordNewRound"),
		{Type: "RecordFutureType", Raw: "CAc="},
		action("RecordNoTile", wire.F("scores", ints(25000, 25000, 25000, 25000))),
	}
	a := Analyze(actions)
	c.Assert(a.Seats[0].Rounds, check.Equals, 1)
	c.Assert(a.FinalScores, check.DeepEquals, []int64{25000, 25000, 25000, 25000})
}

func (s *statsSuite) TestRates(c *check.C) {
	p := &PlayerStats{
		Rounds:       40,
		Riichi:       10,
		FuroRounds:   20,
		Wins:         10,
		DealIns:      5,
		WinPoints:    80000,
		DealInPoints: 30000,
	}
	r := p.Rates()
	c.Assert(r.RiichiRate, check.Equals, 25.0)
	c.Assert(r.FuroRate, check.Equals, 50.0)
	c.Assert(r.WinRate, check.Equals, 25.0)
	c.Assert(r.DealInRate, check.Equals, 12.5)
	c.Assert(r.AvgWinPoints, check.Equals, 8000.0)
	c.Assert(r.AvgDealInPoints, check.Equals, 6000.0)

	// Zero rounds must not divide by zero.
	empty := &PlayerStats{}
	c.Assert(empty.Rates().RiichiRate, check.Equals, 0.0)
}

func (s *statsSuite) TestAggregator(c *check.C) {
	g := RosterGame{
		ID: "200101-aaaa",
		Players: []RosterPlayer{
			{Rank: 1, AccountID: "11", Nickname: "first", Score: 33000},
			{Rank: 2, AccountID: "22", Nickname: "second", Score: 25000},
			{Rank: 3, AccountID: "33", Nickname: "third", Score: 25000},
			{Rank: 4, AccountID: "44", Nickname: "fourth", Score: 17000},
		},
	}
	var a Analysis
	a.FinalScores = []int64{17000, 25000, 33000, 25000}
	a.Seats[2] = SeatStats{Rounds: 8, Wins: 2, WinPoints: 16000}
	a.Seats[0] = SeatStats{Rounds: 8, DealIns: 2, DealInPoints: 16000}

	ag := NewAggregator()
	ag.AddGame(g, a)
	ag.AddGame(g, a)

	results := ag.Results()
	c.Assert(results, check.HasLen, 4)
	// Equal game counts order by account id.
	c.Assert(results[0].AccountID, check.Equals, "11")
	c.Assert(results[0].Nickname, check.Equals, "first")
	c.Assert(results[0].Games, check.Equals, 2)
	c.Assert(results[0].Wins, check.Equals, 4)
	c.Assert(results[0].WinPoints, check.Equals, int64(32000))

	c.Assert(results[3].AccountID, check.Equals, "44")
	c.Assert(results[3].DealIns, check.Equals, 4)
}

func (s *statsSuite) TestRosterRoundTrip(c *check.C) {
	dir := c.MkDir()
	path := filepath.Join(dir, "roster.csv")
	content := "牌谱链接,开始时间,结束时间," +
		"1位玩家,1位分数,2位玩家,2位分数,3位玩家,3位分数,4位玩家,4位分数\n" +
		"200101-aaaa,2020-01-01 19:00,2020-01-01 20:00," +
		"[CN][11]first,33000,[CN][22]second,25000,[CN][33]third,25000,[CN][44]fourth,17000\n"
	err := os.WriteFile(path, []byte(content), 0o644)
	c.Assert(err, check.IsNil)

	games, err := LoadRoster(path)
	c.Assert(err, check.IsNil)
	c.Assert(games, check.HasLen, 1)
	c.Assert(games[0].ID, check.Equals, "200101-aaaa")
	c.Assert(games[0].Players, check.HasLen, 4)
	c.Assert(games[0].Players[0].AccountID, check.Equals, "11")
	c.Assert(games[0].Players[0].Nickname, check.Equals, "first")
	c.Assert(games[0].Players[0].Score, check.Equals, int64(33000))
	c.Assert(games[0].Players[3].Rank, check.Equals, 4)
}

func (s *statsSuite) TestWriteCSV(c *check.C) {
	players := []*PlayerStats{{
		AccountID: "11",
		Nickname:  "first",
		Games:     2,
		Rounds:    16,
		Riichi:    4,
		Wins:      4,
		WinPoints: 32000,
	}}
	var buf bytes.Buffer
	c.Assert(WriteCSV(&buf, players), check.IsNil)

	rows, err := csv.NewReader(&buf).ReadAll()
	c.Assert(err, check.IsNil)
	c.Assert(rows, check.HasLen, 2)
	c.Assert(rows[0][0], check.Equals, "玩家")
	c.Assert(rows[1][0], check.Equals, "first")
	c.Assert(rows[1][2], check.Equals, "2")
	c.Assert(rows[1][5], check.Equals, "25.00%")
	c.Assert(rows[1][13], check.Equals, "8000")
}

func (s *statsSuite) TestWriteTable(c *check.C) {
	players := []*PlayerStats{{Nickname: "first", Games: 2, Rounds: 16}}
	var buf bytes.Buffer
	c.Assert(WriteTable(&buf, players), check.IsNil)
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	c.Assert(lines, check.HasLen, 2)
	c.Assert(bytes.HasPrefix(lines[0], []byte("Player")), check.Equals, true)
	c.Assert(bytes.Contains(lines[1], []byte("first")), check.Equals, true)
}
