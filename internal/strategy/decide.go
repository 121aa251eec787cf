// Package strategy holds the per-tick trading decisions. All prices are
// integer cents; margin arithmetic rounds half up.
package strategy

import (
	"math"
	"time"
)

// maxWillingToPay is the entry price cap: the fair value discounted by the
// bid margin plus current volatility.
func maxWillingToPay(fairValueCents int, bidMarginPercent, volatility float64) int {
	eff := bidMarginPercent + volatility
	return int(math.Round(float64(fairValueCents) * (1 - eff/100)))
}

// smartBid is one cent over the current best bid, capped at the maximum
// we are willing to pay.
func smartBid(yesBid, cap int) int {
	bid := yesBid + 1
	if bid > cap {
		bid = cap
	}
	return bid
}

// targetSell is the auto-close trigger: the entry cost marked up by the
// close margin plus current volatility.
func targetSell(avgPriceCents int, closeMarginPercent, volatility float64) int {
	eff := closeMarginPercent + volatility
	return int(math.Round(float64(avgPriceCents) * (1 + eff/100)))
}

// shouldBailOut reports whether a held position has aged past the trigger
// window while carrying an unrealized loss past the threshold. avgPrice
// must be positive; a zero bid is a total loss.
func shouldBailOut(avgPriceCents, yesBid int, placedAt, now time.Time, triggerWindow time.Duration, lossTriggerPercent float64) bool {
	if avgPriceCents <= 0 {
		return false
	}
	if now.Sub(placedAt) <= triggerWindow {
		return false
	}
	lossPercent := float64(avgPriceCents-yesBid) / float64(avgPriceCents) * 100
	return lossPercent > lossTriggerPercent
}
