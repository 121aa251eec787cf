package match

import "strings"

// Sport identifies a league with both a Kalshi series and an odds feed.
type Sport string

const (
	NBA Sport = "nba"
	NFL Sport = "nfl"
	NHL Sport = "nhl"
)

// seriesBySport maps each league to its Kalshi game series ticker.
var seriesBySport = map[Sport]string{
	NBA: "KXNBAGAME",
	NFL: "KXNFLGAME",
	NHL: "KXNHLGAME",
}

// sportByOddsKey maps the odds provider's sport keys to leagues.
var sportByOddsKey = map[string]Sport{
	"basketball_nba":       NBA,
	"americanfootball_nfl": NFL,
	"icehockey_nhl":        NHL,
}

// SeriesTicker returns the Kalshi series for an odds-provider sport key,
// or "" when the sport is not supported.
func SeriesTicker(oddsKey string) string {
	sport, ok := sportByOddsKey[oddsKey]
	if !ok {
		return ""
	}
	return seriesBySport[sport]
}

// SupportedSportKeys lists the odds-provider keys this matcher understands.
func SupportedSportKeys() []string {
	keys := make([]string, 0, len(sportByOddsKey))
	for k := range sportByOddsKey {
		keys = append(keys, k)
	}
	return keys
}

// Full team name as the odds feed reports it, mapped to the code Kalshi
// embeds in game tickers.
var teamCodes = map[Sport]map[string]string{
	NBA: {
		"Atlanta Hawks":          "ATL",
		"Boston Celtics":         "BOS",
		"Brooklyn Nets":          "BKN",
		"Charlotte Hornets":      "CHA",
		"Chicago Bulls":          "CHI",
		"Cleveland Cavaliers":    "CLE",
		"Dallas Mavericks":       "DAL",
		"Denver Nuggets":         "DEN",
		"Detroit Pistons":        "DET",
		"Golden State Warriors":  "GSW",
		"Houston Rockets":        "HOU",
		"Indiana Pacers":         "IND",
		"Los Angeles Clippers":   "LAC",
		"Los Angeles Lakers":     "LAL",
		"Memphis Grizzlies":      "MEM",
		"Miami Heat":             "MIA",
		"Milwaukee Bucks":        "MIL",
		"Minnesota Timberwolves": "MIN",
		"New Orleans Pelicans":   "NOP",
		"New York Knicks":        "NYK",
		"Oklahoma City Thunder":  "OKC",
		"Orlando Magic":          "ORL",
		"Philadelphia 76ers":     "PHI",
		"Phoenix Suns":           "PHX",
		"Portland Trail Blazers": "POR",
		"Sacramento Kings":       "SAC",
		"San Antonio Spurs":      "SAS",
		"Toronto Raptors":        "TOR",
		"Utah Jazz":              "UTA",
		"Washington Wizards":     "WAS",
	},
	NFL: {
		"Arizona Cardinals":     "ARI",
		"Atlanta Falcons":       "ATL",
		"Baltimore Ravens":      "BAL",
		"Buffalo Bills":         "BUF",
		"Carolina Panthers":     "CAR",
		"Chicago Bears":         "CHI",
		"Cincinnati Bengals":    "CIN",
		"Cleveland Browns":      "CLE",
		"Dallas Cowboys":        "DAL",
		"Denver Broncos":        "DEN",
		"Detroit Lions":         "DET",
		"Green Bay Packers":     "GB",
		"Houston Texans":        "HOU",
		"Indianapolis Colts":    "IND",
		"Jacksonville Jaguars":  "JAX",
		"Kansas City Chiefs":    "KC",
		"Las Vegas Raiders":     "LV",
		"Los Angeles Chargers":  "LAC",
		"Los Angeles Rams":      "LAR",
		"Miami Dolphins":        "MIA",
		"Minnesota Vikings":     "MIN",
		"New England Patriots":  "NE",
		"New Orleans Saints":    "NO",
		"New York Giants":       "NYG",
		"New York Jets":         "NYJ",
		"Philadelphia Eagles":   "PHI",
		"Pittsburgh Steelers":   "PIT",
		"San Francisco 49ers":   "SF",
		"Seattle Seahawks":      "SEA",
		"Tampa Bay Buccaneers":  "TB",
		"Tennessee Titans":      "TEN",
		"Washington Commanders": "WAS",
	},
	NHL: {
		"Anaheim Ducks":         "ANA",
		"Boston Bruins":         "BOS",
		"Buffalo Sabres":        "BUF",
		"Calgary Flames":        "CGY",
		"Carolina Hurricanes":   "CAR",
		"Chicago Blackhawks":    "CHI",
		"Colorado Avalanche":    "COL",
		"Columbus Blue Jackets": "CBJ",
		"Dallas Stars":          "DAL",
		"Detroit Red Wings":     "DET",
		"Edmonton Oilers":       "EDM",
		"Florida Panthers":      "FLA",
		"Los Angeles Kings":     "LA",
		"Minnesota Wild":        "MIN",
		"Montreal Canadiens":    "MTL",
		"Montréal Canadiens":    "MTL",
		"Nashville Predators":   "NSH",
		"New Jersey Devils":     "NJ",
		"New York Islanders":    "NYI",
		"New York Rangers":      "NYR",
		"Ottawa Senators":       "OTT",
		"Philadelphia Flyers":   "PHI",
		"Pittsburgh Penguins":   "PIT",
		"San Jose Sharks":       "SJ",
		"Seattle Kraken":        "SEA",
		"St Louis Blues":        "STL",
		"St. Louis Blues":       "STL",
		"Tampa Bay Lightning":   "TB",
		"Toronto Maple Leafs":   "TOR",
		"Utah Mammoth":          "UTA",
		"Vancouver Canucks":     "VAN",
		"Vegas Golden Knights":  "VGK",
		"Washington Capitals":   "WSH",
		"Winnipeg Jets":         "WPG",
	},
}

// teamCode resolves a feed team name to its Kalshi code. Exact lookup
// first, then a fallback that strips the trailing mascot word and matches
// the remaining city against a unique table entry. Returns "" when no
// unambiguous match exists; an unmatched team excludes its game rather
// than risking a wrong join.
func teamCode(sport Sport, name string) string {
	table, ok := teamCodes[sport]
	if !ok {
		return ""
	}

	if code, ok := table[name]; ok {
		return code
	}

	// "Los Angeles Lakers" and "LA Lakers" style variants share a city
	// prefix with exactly one table entry once the mascot is dropped.
	words := strings.Fields(name)
	if len(words) < 2 {
		return ""
	}
	city := strings.Join(words[:len(words)-1], " ")

	var found string
	for full, code := range table {
		if strings.HasPrefix(full, city+" ") {
			if found != "" && found != code {
				return "" // ambiguous
			}
			found = code
		}
	}
	return found
}
