package types

import "time"

// MatchResponse is returned by the match endpoint: the executed trades
// plus the taker's remaining quantity as a decimal string.
type MatchResponse struct {
	Order           *Order  `json:"order"`
	Trades          []Trade `json:"trades"`
	RemainingAmount string  `json:"remaining_amount"`
}

// PriceLevel is one aggregated level of an order book snapshot.
// Individual order identities are never exposed.
type PriceLevel struct {
	Price    string `json:"price"`
	Quantity string `json:"quantity"`
}

// OrderbookSnapshot is the top depth levels of both sides of a pair.
type OrderbookSnapshot struct {
	Pair      string       `json:"pair"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	Timestamp time.Time    `json:"timestamp"`
}

// BatchRequest is a collection of independent orders for concurrent
// ingestion.
type BatchRequest struct {
	Orders []Order `json:"orders"`
}

// BatchResponse aggregates one batch run.
type BatchResponse struct {
	Successful       int   `json:"successful"`
	Failed           int   `json:"failed"`
	TotalTrades      int   `json:"total_trades"`
	ProcessingTimeMs int64 `json:"processing_time_ms"`
}
