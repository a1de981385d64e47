package domain

import "time"

// Trade represents a single market print reported by an upstream provider.
type Trade struct {
	ID        int64     // Provider-assigned trade identifier
	Symbol    string    // Instrument symbol
	Timestamp time.Time // Execution time
	Price     float64   // Execution price
	Size      float64   // Executed size
	Exchange  string    // Reporting exchange code
	Tape      string    // SIP tape, when the provider reports one
}
