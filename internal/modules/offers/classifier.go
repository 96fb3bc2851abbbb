// Package offers contains the decision side of the engine: classification
// of incoming offers, the accept/decline policy and the per-offer event
// dispatcher.
package offers

import "github.com/skinflow/tradebot/internal/domain"

// Classify maps an offer's item sets to a trade intent.
//
// A buy is the counterpart handing over exactly one item for money; a sell
// is the counterpart taking exactly one of our items. Every other shape,
// including empty and multi-item offers, is unknown and will be declined.
// Limiting accepted offers to a single item bounds the cost of a bad
// decision to one item per offer.
//
// Pure and total: no side effects, defined for every input.
func Classify(itemsGiven, itemsReceived []domain.OfferItem) domain.TradeIntent {
	switch {
	case len(itemsReceived) == 1 && len(itemsGiven) == 0:
		return domain.IntentBuy
	case len(itemsGiven) == 1 && len(itemsReceived) == 0:
		return domain.IntentSell
	default:
		return domain.IntentUnknown
	}
}
