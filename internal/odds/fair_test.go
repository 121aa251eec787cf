package odds

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestImpliedProb(t *testing.T) {
	cases := []struct {
		price float64
		want  float64
	}{
		{-150, 0.6},
		{+130, 100.0 / 230.0},
		{-110, 110.0 / 210.0},
		{+100, 0.5},
	}
	for _, tc := range cases {
		got := impliedProb(tc.price)
		if math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("impliedProb(%v) = %v, want %v", tc.price, got, tc.want)
		}
	}
}

func TestDevigSumsToOne(t *testing.T) {
	home, away := devig(impliedProb(-150), impliedProb(+130))
	if math.Abs(home+away-1) > 1e-9 {
		t.Errorf("devigged probabilities sum to %v, want 1", home+away)
	}
	if home <= away {
		t.Errorf("favorite should carry the larger probability: home=%v away=%v", home, away)
	}
}

func TestFairValueSingleBook(t *testing.T) {
	ev := Event{
		ID:       "ev1",
		HomeTeam: "Los Angeles Lakers",
		AwayTeam: "Phoenix Suns",
		Quotes: []Quote{
			{Bookmaker: "draftkings", HomePrice: -150, AwayPrice: +130},
		},
	}

	cents, err := FairValueCents(ev, Home)
	if err != nil {
		t.Fatalf("FairValueCents: %v", err)
	}
	// -150/+130 de-vigs to roughly 58% for the favorite.
	if cents != 58 {
		t.Errorf("fair value = %d cents, want 58", cents)
	}

	awayCents, err := FairValueCents(ev, Away)
	if err != nil {
		t.Fatalf("FairValueCents away: %v", err)
	}
	if awayCents != 42 {
		t.Errorf("away fair value = %d cents, want 42", awayCents)
	}
}

func TestFairValueAveragesBooks(t *testing.T) {
	ev := Event{
		Quotes: []Quote{
			{Bookmaker: "a", HomePrice: -150, AwayPrice: +130},
			{Bookmaker: "b", HomePrice: -150, AwayPrice: +130},
			{Bookmaker: "c", HomePrice: -150, AwayPrice: +130},
		},
	}

	single, _ := FairValue(Event{Quotes: ev.Quotes[:1]}, Home)
	multi, err := FairValue(ev, Home)
	if err != nil {
		t.Fatalf("FairValue: %v", err)
	}
	if math.Abs(single-multi) > 1e-9 {
		t.Errorf("identical books should not move the mean: single=%v multi=%v", single, multi)
	}
}

func TestFairValueOrderInvariance(t *testing.T) {
	a := []Quote{
		{Bookmaker: "a", HomePrice: -200, AwayPrice: +170},
		{Bookmaker: "b", HomePrice: -140, AwayPrice: +120},
		{Bookmaker: "c", HomePrice: -160, AwayPrice: +135},
	}
	b := []Quote{a[2], a[0], a[1]}

	fv1, _ := FairValue(Event{Quotes: a}, Home)
	fv2, _ := FairValue(Event{Quotes: b}, Home)
	if math.Abs(fv1-fv2) > 1e-9 {
		t.Errorf("quote order changed the result: %v vs %v", fv1, fv2)
	}
}

func TestFairValueNoQuotes(t *testing.T) {
	_, err := FairValue(Event{ID: "empty"}, Home)
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("error = %v, want ErrNoData", err)
	}
}

func TestExtractQuoteDropsMalformed(t *testing.T) {
	bm := apiBookmaker{
		Key:        "badbook",
		LastUpdate: time.Now(),
		Markets: []apiMarket{{
			Key: "h2h",
			Outcomes: []apiOutcome{
				{Name: "Home FC", Price: 50}, // |odds| < 100 is not American
				{Name: "Away FC", Price: -150},
			},
		}},
	}
	if _, ok := extractQuote(bm, "Home FC", "Away FC"); ok {
		t.Error("quote with sub-100 magnitude price should be dropped")
	}

	bm.Markets[0].Outcomes[0].Price = math.NaN()
	if _, ok := extractQuote(bm, "Home FC", "Away FC"); ok {
		t.Error("quote with NaN price should be dropped")
	}
}

func TestExtractQuoteRequiresBothSides(t *testing.T) {
	bm := apiBookmaker{
		Key: "partial",
		Markets: []apiMarket{{
			Key:      "h2h",
			Outcomes: []apiOutcome{{Name: "Home FC", Price: -150}},
		}},
	}
	if _, ok := extractQuote(bm, "Home FC", "Away FC"); ok {
		t.Error("one-sided quote should be dropped")
	}
}
