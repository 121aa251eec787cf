package odds

import "time"

// Quote is one bookmaker's two-sided moneyline on an event.
// Prices are American odds.
type Quote struct {
	Bookmaker  string
	LastUpdate time.Time
	HomePrice  float64
	AwayPrice  float64
}

// Event is a single game with the latest quote per bookmaker.
type Event struct {
	ID           string
	SportKey     string
	CommenceTime time.Time
	HomeTeam     string
	AwayTeam     string
	Quotes       []Quote
}

// Side selects which team's win probability a fair value is computed for.
type Side int

const (
	Home Side = iota
	Away
)

// Wire DTOs for the odds provider's v4 API.
type apiEvent struct {
	ID           string         `json:"id"`
	SportKey     string         `json:"sport_key"`
	CommenceTime time.Time      `json:"commence_time"`
	HomeTeam     string         `json:"home_team"`
	AwayTeam     string         `json:"away_team"`
	Bookmakers   []apiBookmaker `json:"bookmakers"`
}

type apiBookmaker struct {
	Key        string      `json:"key"`
	Title      string      `json:"title"`
	LastUpdate time.Time   `json:"last_update"`
	Markets    []apiMarket `json:"markets"`
}

type apiMarket struct {
	Key      string       `json:"key"` // "h2h"
	Outcomes []apiOutcome `json:"outcomes"`
}

type apiOutcome struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type apiSport struct {
	Key    string `json:"key"`
	Title  string `json:"title"`
	Active bool   `json:"active"`
}
