package portfolios

import (
	"context"
	"errors"
	"fmt"

	"github.com/aristath/spreadbook/internal/units"
)

// Price source names, in the order expiration resolution consults them.
const (
	SourceCurrentQuote    = "current_quote"
	SourceExpirationClose = "expiration_close"
	SourceStoredPrice     = "stored_price"
)

// PriceSource is one way of obtaining an underlying price. Fetch returns an error
// (or a non-positive price) when the source has nothing.
type PriceSource struct {
	Name  string
	Fetch func(ctx context.Context) (units.Cents, error)
}

// FirstPrice returns the first positive price from sources and the name of the
// source that produced it. When every source comes up empty the returned error
// wraps ErrNoPrice and each source's failure.
func FirstPrice(ctx context.Context, sources []PriceSource) (units.Cents, string, error) {
	errs := []error{ErrNoPrice}
	for _, src := range sources {
		price, err := src.Fetch(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", src.Name, err))
			continue
		}
		if price <= 0 {
			errs = append(errs, fmt.Errorf("%s: empty", src.Name))
			continue
		}
		return price, src.Name, nil
	}
	return 0, "", errors.Join(errs...)
}

// storedPriceSource falls back to the last observed underlying price, then the
// entry price.
func storedPriceSource(t Trade) PriceSource {
	return PriceSource{
		Name: SourceStoredPrice,
		Fetch: func(context.Context) (units.Cents, error) {
			if t.CurrentStockPrice != nil && *t.CurrentStockPrice > 0 {
				return *t.CurrentStockPrice, nil
			}
			return t.EntryStockPrice, nil
		},
	}
}
