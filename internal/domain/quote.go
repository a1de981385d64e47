package domain

import "time"

// Quote represents a top-of-book bid/ask snapshot for an instrument.
type Quote struct {
	Symbol      string    // Instrument symbol
	Timestamp   time.Time // Quote time
	BidPrice    float64   // Best bid price
	BidSize     float64   // Size at the best bid
	BidExchange string    // Exchange posting the bid
	AskPrice    float64   // Best ask price
	AskSize     float64   // Size at the best ask
	AskExchange string    // Exchange posting the ask
}
