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
	"regexp"
	"strconv"
	"strings"

	"github.com/pingcap/errors"
)

// playerPattern matches the roster's player format: [Server][AccountID]Nickname
var playerPattern = regexp.MustCompile(`\[([^\]]+)\]\[(\d+)\](.+)`)

// RosterPlayer is one player row of a roster game, ordered by finishing rank.
type RosterPlayer struct {
	Rank      int
	AccountID string
	Nickname  string
	Score     int64
}

// RosterGame pairs a record id with the players the roster lists for it.
type RosterGame struct {
	ID        string
	StartTime string
	EndTime   string
	Players   []RosterPlayer
}

// ParsePlayer splits a roster player string into account id and nickname.
// Strings outside the expected format keep the whole string as the nickname.
func ParsePlayer(s string) (accountID, nickname string) {
	if m := playerPattern.FindStringSubmatch(s); m != nil {
		return m[2], m[3]
	}
	return "", s
}

// LoadRoster reads the game roster CSV, preserving row order. Column names
// are tried in both the original and the translated form.
func LoadRoster(path string) ([]RosterGame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, errors.Annotatef(err, "read roster header from %s", path)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}

	cell := func(row []string, names ...string) string {
		for _, n := range names {
			if idx, ok := cols[n]; ok && idx < len(row) {
				if v := strings.TrimSpace(row[idx]); v != "" {
					return v
				}
			}
		}
		return ""
	}

	var games []RosterGame
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Annotatef(err, "read roster row from %s", path)
		}

		id := cell(row, "牌谱链接", "paipu_id", "uuid")
		if id == "" {
			continue
		}

		g := RosterGame{
			ID:        id,
			StartTime: cell(row, "开始时间", "start_time"),
			EndTime:   cell(row, "结束时间", "end_time"),
		}
		for rank := 1; rank <= 4; rank++ {
			player := cell(row, fmt.Sprintf("%d位玩家", rank), fmt.Sprintf("player_%d", rank))
			score, _ := strconv.ParseFloat(cell(row, fmt.Sprintf("%d位分数", rank), fmt.Sprintf("score_%d", rank)), 64)
			accountID, nickname := ParsePlayer(player)
			g.Players = append(g.Players, RosterPlayer{
				Rank:      rank,
				AccountID: accountID,
				Nickname:  nickname,
				Score:     int64(score),
			})
		}
		games = append(games, g)
	}
	return games, nil
}

// MatchSeats pairs roster players to game seats by closest final score.
// Greedy per seat; a pairing further than 100 points off is rejected, since
// that means the roster row describes a different game.
func MatchSeats(players []RosterPlayer, finalScores []int64) map[int]RosterPlayer {
	matched := make(map[int]RosterPlayer)
	if len(finalScores) != 4 {
		return matched
	}

	used := make(map[int]bool, len(players))
	for seat, score := range finalScores {
		best := -1
		bestDiff := int64(1<<63 - 1)
		for i, p := range players {
			if used[i] {
				continue
			}
			diff := score - p.Score
			if diff < 0 {
				diff = -diff
			}
			if diff < bestDiff {
				bestDiff = diff
				best = i
			}
		}
		if best >= 0 && bestDiff < 100 {
			used[best] = true
			matched[seat] = players[best]
		}
	}
	return matched
}
