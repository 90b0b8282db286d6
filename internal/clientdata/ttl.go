package clientdata

import (
	"fmt"
	"time"
)

// Kind identifies the type of provider response stored in the cache.
type Kind string

const (
	KindQuote    Kind = "quote"    // underlying last/bid/ask
	KindChain    Kind = "chain"    // option chain for one expiration
	KindHistory  Kind = "history"  // daily close for a past date
	KindCalendar Kind = "calendar" // exchange calendar month
)

// AllKinds lists every cache kind for cleanup operations.
var AllKinds = []Kind{KindQuote, KindChain, KindHistory, KindCalendar}

func (k Kind) validate() error {
	for _, known := range AllKinds {
		if k == known {
			return nil
		}
	}
	return fmt.Errorf("invalid cache kind: %s", k)
}

// TTL constants for different data types.
const (
	TTLQuote    = time.Minute         // intraday marks, reused within one update pass
	TTLChain    = 5 * time.Minute     // one chain per ticker and expiration
	TTLHistory  = 30 * 24 * time.Hour // closes for past dates do not change
	TTLCalendar = 7 * 24 * time.Hour
)

// StaleGrace is how long expired entries are kept for stale fallback reads.
const StaleGrace = 7 * 24 * time.Hour
