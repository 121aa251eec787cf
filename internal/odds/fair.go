package odds

import (
	"errors"
	"math"
)

// ErrNoData indicates an event carried no usable quotes.
var ErrNoData = errors.New("odds: no usable quotes")

// impliedProb converts American odds to an implied win probability,
// vig included.
func impliedProb(price float64) float64 {
	if price < 0 {
		return -price / (-price + 100)
	}
	return 100 / (price + 100)
}

// devig normalizes one bookmaker's two implied probabilities so they sum
// to 1, removing that book's margin.
func devig(homeProb, awayProb float64) (float64, float64) {
	total := homeProb + awayProb
	return homeProb / total, awayProb / total
}

// FairValue returns the consensus win probability for one side of an
// event, in [0, 1]. Each bookmaker's moneyline pair is de-vigged
// independently, then the per-book probabilities are averaged with equal
// weight. Returns ErrNoData when the event has no quotes.
func FairValue(ev Event, side Side) (float64, error) {
	if len(ev.Quotes) == 0 {
		return 0, ErrNoData
	}

	var sum float64
	for _, q := range ev.Quotes {
		home, away := devig(impliedProb(q.HomePrice), impliedProb(q.AwayPrice))
		if side == Home {
			sum += home
		} else {
			sum += away
		}
	}

	return sum / float64(len(ev.Quotes)), nil
}

// FairValueCents returns the fair value as integer cents, rounded half up.
func FairValueCents(ev Event, side Side) (int, error) {
	fv, err := FairValue(ev, side)
	if err != nil {
		return 0, err
	}
	return int(math.Round(fv * 100)), nil
}
