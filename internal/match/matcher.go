// Package match joins sportsbook events to Kalshi game markets by sport,
// date, and team codes. A game that cannot be keyed unambiguously on both
// sides is excluded; a missed join only costs an opportunity, a wrong join
// trades the wrong market.
package match

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/kalshiarb/engine/internal/kalshi"
	"github.com/kalshiarb/engine/internal/odds"
)

// JoinedMarket is one Kalshi market paired with its sportsbook consensus.
type JoinedMarket struct {
	Ticker         string
	EventID        string
	EventLabel     string // "Away @ Home"
	Side           odds.Side
	FairValueCents int
	Volatility     float64
	YesBid         int
	YesAsk         int
	OddsTime       time.Time
	CommenceTime   time.Time
}

// tickerInfo is the decoded structure of a Kalshi game ticker.
type tickerInfo struct {
	sport      Sport
	date       time.Time
	awayCode   string
	homeCode   string
	winnerCode string // team whose win pays YES
}

// eastern is the exchange's home timezone; game tickers carry the game
// date in ET.
var eastern = func() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.UTC
	}
	return loc
}()

// parseTicker decodes both game ticker conventions:
//
//	KXNBAGAME-26JAN19LACWAS-LAC      date+teams concatenated, winner suffix
//	KXNBAGAME-26JAN19-LAC-WAS        dash separated, away then home
//
// The dash form carries no winner suffix; those markets pay the home side.
func parseTicker(ticker string) (tickerInfo, bool) {
	parts := strings.Split(ticker, "-")
	if len(parts) < 3 {
		return tickerInfo{}, false
	}

	var sport Sport
	switch parts[0] {
	case "KXNBAGAME":
		sport = NBA
	case "KXNFLGAME":
		sport = NFL
	case "KXNHLGAME":
		sport = NHL
	default:
		return tickerInfo{}, false
	}

	switch len(parts) {
	case 3:
		// "26JAN19LACWAS" = 7-char date then away and home codes.
		body, winner := parts[1], parts[2]
		if len(body) < 11 {
			return tickerInfo{}, false
		}
		date, err := parseTickerDate(body[:7])
		if err != nil {
			return tickerInfo{}, false
		}
		away, home, ok := splitTeams(sport, body[7:])
		if !ok {
			return tickerInfo{}, false
		}
		return tickerInfo{sport: sport, date: date, awayCode: away, homeCode: home, winnerCode: winner}, true

	case 4:
		date, err := parseTickerDate(parts[1])
		if err != nil {
			return tickerInfo{}, false
		}
		away, home := parts[2], parts[3]
		return tickerInfo{sport: sport, date: date, awayCode: away, homeCode: home, winnerCode: home}, true
	}

	return tickerInfo{}, false
}

// splitTeams cuts a concatenated "LACWAS" or "KCBUF" pair into away and
// home codes. Codes vary between 2 and 3 characters, so the split point is
// found by checking both halves against the sport's known codes.
func splitTeams(sport Sport, teams string) (away, home string, ok bool) {
	known := make(map[string]bool, len(teamCodes[sport]))
	for _, code := range teamCodes[sport] {
		known[code] = true
	}

	for i := 2; i <= 3 && i < len(teams); i++ {
		a, h := teams[:i], teams[i:]
		if known[a] && known[h] {
			return a, h, true
		}
	}
	return "", "", false
}

// parseTickerDate decodes a "26JAN19" style date (year, month, day).
func parseTickerDate(s string) (time.Time, error) {
	return time.ParseInLocation("06Jan02", properCase(s), eastern)
}

// properCase turns "26JAN19" into "26Jan19" for time.Parse.
func properCase(s string) string {
	if len(s) != 7 {
		return s
	}
	return s[:2] + s[2:3] + strings.ToLower(s[3:5]) + s[5:]
}

// matchKey builds the join key: sport, ET game date, and the two team
// codes in sorted order so home/away orientation never affects the key.
func matchKey(sport Sport, date time.Time, codeA, codeB string) string {
	a, b := codeA, codeB
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("%s|%s|%s|%s", sport, date.Format("2006-01-02"), a, b)
}

// Join pairs odds events with Kalshi markets. Markets without a matching
// event, events with unmappable teams, and unparseable tickers are all
// dropped. Volatility is read from hist per event; fair values are the
// current de-vigged consensus for the side the market pays.
func Join(events []odds.Event, markets []kalshi.Market, hist *odds.History) []JoinedMarket {
	type keyedEvent struct {
		event    odds.Event
		homeCode string
		awayCode string
	}

	index := make(map[string]keyedEvent)
	for _, ev := range events {
		sport, ok := sportByOddsKey[ev.SportKey]
		if !ok {
			continue
		}
		homeCode := teamCode(sport, ev.HomeTeam)
		awayCode := teamCode(sport, ev.AwayTeam)
		if homeCode == "" || awayCode == "" {
			slog.Debug("event_teams_unmapped",
				"sport", ev.SportKey, "home", ev.HomeTeam, "away", ev.AwayTeam)
			continue
		}
		key := matchKey(sport, ev.CommenceTime.In(eastern), homeCode, awayCode)
		index[key] = keyedEvent{event: ev, homeCode: homeCode, awayCode: awayCode}
	}

	// Last write wins per ticker so duplicate rows in a markets snapshot
	// cannot produce duplicate joins.
	byTicker := make(map[string]JoinedMarket)
	for _, m := range markets {
		info, ok := parseTicker(m.Ticker)
		if !ok {
			continue
		}

		ke, ok := index[matchKey(info.sport, info.date, info.awayCode, info.homeCode)]
		if !ok {
			continue
		}

		var side odds.Side
		switch info.winnerCode {
		case ke.homeCode:
			side = odds.Home
		case ke.awayCode:
			side = odds.Away
		default:
			slog.Debug("winner_code_unmatched", "ticker", m.Ticker, "winner", info.winnerCode)
			continue
		}

		fv, err := odds.FairValueCents(ke.event, side)
		if err != nil {
			continue
		}

		byTicker[m.Ticker] = JoinedMarket{
			Ticker:         m.Ticker,
			EventID:        ke.event.ID,
			EventLabel:     ke.event.AwayTeam + " @ " + ke.event.HomeTeam,
			Side:           side,
			FairValueCents: fv,
			Volatility:     hist.Volatility(ke.event.ID),
			YesBid:         m.YesBid,
			YesAsk:         m.YesAsk,
			OddsTime:       latestQuoteTime(ke.event),
			CommenceTime:   ke.event.CommenceTime,
		}
	}

	joined := make([]JoinedMarket, 0, len(byTicker))
	for _, jm := range byTicker {
		joined = append(joined, jm)
	}
	sort.Slice(joined, func(i, j int) bool { return joined[i].Ticker < joined[j].Ticker })
	return joined
}

func latestQuoteTime(ev odds.Event) time.Time {
	var latest time.Time
	for _, q := range ev.Quotes {
		if q.LastUpdate.After(latest) {
			latest = q.LastUpdate
		}
	}
	return latest
}
