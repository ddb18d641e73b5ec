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

// locator resolves candidate gateway hosts through the chained
// version/resource/schema/config fetch sequence and performs ordered failover
// connection. The gateway list changes independently of client versioning, so
// everything is fetched fresh per connection attempt and never cached.
package locator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pingcap/errors"

	"github.com/Sehouz/majsoul-match-stats/internal/log"
	"github.com/Sehouz/majsoul-match-stats/internal/schema"
	"github.com/Sehouz/majsoul-match-stats/internal/session"
	"github.com/Sehouz/majsoul-match-stats/internal/wire"
)

// Region is one known game server region.
type Region struct {
	Name    string
	BaseURL string
}

// Regions maps region selectors from the credential artifact to base URLs.
var Regions = map[string]Region{
	"cn": {Name: "China", BaseURL: "https://game.maj-soul.com/1/"},
	"jp": {Name: "Japan", BaseURL: "https://game.mahjongsoul.com/"},
	"en": {Name: "International", BaseURL: "https://mahjongsoul.game.yo-star.com/"},
}

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// ErrNoServerAvailable reports that every candidate gateway host failed; it
// carries the last underlying error.
var ErrNoServerAvailable = errors.New("no server available")

// DialFunc opens the secure websocket to one gateway. Tests substitute fakes
// to exercise the failover order without a network.
type DialFunc func(ctx context.Context, url string) (session.Conn, error)

// Locator fetches the connection-time resources for one region and dials the
// gateway candidates in server order.
type Locator struct {
	BaseURL string
	Client  *http.Client
	Dial    DialFunc

	now func() time.Time // cache-buster clock, fixed in tests
}

// New returns a locator for the given region selector; unknown selectors fall
// back to cn, matching the credential artifact's default.
func New(server string) *Locator {
	region, ok := Regions[server]
	if !ok {
		region = Regions["cn"]
	}
	return &Locator{
		BaseURL: region.BaseURL,
		Client:  &http.Client{Timeout: 15 * time.Second},
		Dial:    dialWebsocket,
		now:     time.Now,
	}
}

func dialWebsocket(ctx context.Context, url string) (session.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	header := http.Header{"User-Agent": []string{userAgent}}
	conn, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return conn, nil
}

// Result is an established gateway connection plus everything resolved on
// the way to it.
type Result struct {
	Session             *session.Session
	Host                string
	Version             string
	ClientVersionString string
	Codec               *wire.Codec
}

type versionInfo struct {
	Version string `json:"version"`
}

type resVersionInfo struct {
	Res map[string]struct {
		Prefix string `json:"prefix"`
	} `json:"res"`
}

type gatewayEntry struct {
	URL string `json:"url"`
}

type ipEntry struct {
	Name       string          `json:"name"`
	Gateways   []gatewayEntry  `json:"gateways"`
	RegionURLs json.RawMessage `json:"region_urls"`
}

type gameConfig struct {
	IP []ipEntry `json:"ip"`
}

type routeInfo struct {
	Data struct {
		Maintenance json.RawMessage `json:"maintenance"`
	} `json:"data"`
}

// Connect runs the full fetch chain, then attempts the candidates in order:
// maintenance probe (failures ignored), secure-socket upgrade, first success
// wins. Each attempt uses an independent socket; a failed host leaves no
// state behind for the next one.
func (l *Locator) Connect(ctx context.Context) (*Result, error) {
	res, hosts, err := l.resolve(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if len(hosts) == 0 {
		return nil, errors.Annotate(ErrNoServerAvailable, "empty gateway list")
	}

	var lastErr error
	for _, host := range hosts {
		if l.underMaintenance(ctx, host, res.Version) {
			log.Printf("gateway %s is under maintenance, skipping", host)
			continue
		}

		url := fmt.Sprintf("wss://%s/gateway", host)
		conn, err := l.Dial(ctx, url)
		if err != nil {
			lastErr = err
			log.Printf("connect %s failed: %v", host, err)
			continue
		}

		res.Host = host
		res.Session = session.New(conn, res.Codec, res.Version, res.ClientVersionString)
		return res, nil
	}

	if lastErr == nil {
		lastErr = errors.New("all gateways under maintenance")
	}
	return nil, errors.Annotatef(ErrNoServerAvailable, "last error: %v", lastErr)
}

// resolve performs the fetch chain: cache-busted version descriptor,
// version-keyed resource descriptor, schema resource, game configuration.
func (l *Locator) resolve(ctx context.Context) (*Result, []string, error) {
	var ver versionInfo
	if err := l.fetchJSON(ctx, l.BaseURL+"version.json", true, &ver); err != nil {
		return nil, nil, errors.Annotate(err, "fetch version descriptor")
	}
	if ver.Version == "" {
		return nil, nil, errors.New("version descriptor lacks a version")
	}

	var resVer resVersionInfo
	if err := l.fetchJSON(ctx, l.BaseURL+"resversion"+ver.Version+".json", false, &resVer); err != nil {
		return nil, nil, errors.Annotate(err, "fetch resource descriptor")
	}

	protoPrefix := resVer.Res["res/proto/liqi.json"].Prefix
	var rawSchema json.RawMessage
	if err := l.fetchJSON(ctx, l.BaseURL+protoPrefix+"/res/proto/liqi.json", false, &rawSchema); err != nil {
		return nil, nil, errors.Annotate(err, "fetch proto definition")
	}
	reg, err := schema.Parse(rawSchema)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}

	configPrefix := resVer.Res["config.json"].Prefix
	var cfg gameConfig
	if err := l.fetchJSON(ctx, l.BaseURL+configPrefix+"/config.json", false, &cfg); err != nil {
		return nil, nil, errors.Annotate(err, "fetch game configuration")
	}

	return &Result{
		Version:             ver.Version,
		ClientVersionString: "web-" + strings.ReplaceAll(ver.Version, ".w", ""),
		Codec:               wire.NewCodec(reg),
	}, extractHosts(cfg), nil
}

// extractHosts normalizes the gateway candidates to an ordered host list.
// The config presents them either as an explicit gateways array or as
// region_urls, which itself may be an array or a name-keyed mapping.
func extractHosts(cfg gameConfig) []string {
	var entry *ipEntry
	for i := range cfg.IP {
		if cfg.IP[i].Name == "player" {
			entry = &cfg.IP[i]
			break
		}
	}
	if entry == nil && len(cfg.IP) > 0 {
		entry = &cfg.IP[0]
	}
	if entry == nil {
		return nil
	}

	var hosts []string
	for _, gw := range entry.Gateways {
		if h := stripScheme(gw.URL); h != "" {
			hosts = append(hosts, h)
		}
	}
	if len(hosts) > 0 {
		return hosts
	}
	return regionURLHosts(entry.RegionURLs)
}

func regionURLHosts(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var hosts []string
	appendURL := func(v interface{}) {
		switch t := v.(type) {
		case string:
			if h := stripScheme(t); h != "" {
				hosts = append(hosts, h)
			}
		case map[string]interface{}:
			if u, ok := t["url"].(string); ok {
				if h := stripScheme(u); h != "" {
					hosts = append(hosts, h)
				}
			}
		}
	}

	var asList []interface{}
	if err := json.Unmarshal(raw, &asList); err == nil {
		for _, v := range asList {
			appendURL(v)
		}
		return hosts
	}

	// Name-keyed mapping: key order is not defined by JSON, so sort for a
	// deterministic attempt order.
	var asMap map[string]interface{}
	if err := json.Unmarshal(raw, &asMap); err == nil {
		keys := make([]string, 0, len(asMap))
		for k := range asMap {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			appendURL(asMap[k])
		}
	}
	return hosts
}

func stripScheme(url string) string {
	url = strings.TrimPrefix(url, "https://")
	url = strings.TrimPrefix(url, "http://")
	return strings.TrimSuffix(url, "/")
}

// underMaintenance probes the clientgate routes endpoint. Only an explicit
// maintenance marker skips the host; a probe failure never does.
func (l *Locator) underMaintenance(ctx context.Context, host, version string) bool {
	url := fmt.Sprintf("https://%s/api/clientgate/routes?platform=Web&version=%s", host, version)
	var info routeInfo
	if err := l.fetchJSON(ctx, url, true, &info); err != nil {
		return false
	}
	return truthyJSON(info.Data.Maintenance)
}

// truthyJSON mirrors the upstream client's loose check: any value other than
// absent/null/false/0/empty counts as maintenance.
func truthyJSON(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	switch s {
	case "", "null", "false", "0", `""`, "{}", "[]":
		return false
	}
	return true
}

func (l *Locator) fetchJSON(ctx context.Context, url string, bustCache bool, out interface{}) error {
	if bustCache {
		sep := "?"
		if strings.Contains(url, "?") {
			sep = "&"
		}
		url += fmt.Sprintf("%srandv=%d", sep, l.now().UnixMilli())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Trace(err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := l.Client.Do(req)
	if err != nil {
		return errors.Trace(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Annotatef(err, "GET %s", url)
	}
	return nil
}
