package portfolios

import "github.com/aristath/spreadbook/internal/units"

// Resolution is the settled state of an expired trade.
type Resolution struct {
	Status      TradeStatus
	SpreadValue units.Cents // per contract at settlement
	Pnl         units.Cents // whole position
	IsITM       bool
}

// ResolveExpiration settles a put credit spread at the underlying's final price.
//
//	stock >= sell: both legs worthless, full premium kept
//	stock <= buy:  spread at full width, max loss
//	in between:    spread worth its intrinsic value (sell - stock) x 100
func ResolveExpiration(t Trade, stock units.Cents) Resolution {
	switch {
	case stock >= t.SellStrike:
		return Resolution{
			Status:      TradeExpiredProfit,
			SpreadValue: 0,
			Pnl:         t.PremiumPerContract.Times(t.Contracts),
			IsITM:       false,
		}
	case stock <= t.BuyStrike:
		return Resolution{
			Status:      TradeExpiredLoss,
			SpreadValue: t.SpreadWidth,
			Pnl:         -(t.SpreadWidth - t.PremiumPerContract).Times(t.Contracts),
			IsITM:       true,
		}
	default:
		intrinsic := (t.SellStrike - stock) * units.SharesPerContract
		pnl := (t.PremiumPerContract - intrinsic).Times(t.Contracts)
		status := TradeExpiredProfit
		if pnl < 0 {
			status = TradeExpiredLoss
		}
		return Resolution{
			Status:      status,
			SpreadValue: intrinsic,
			Pnl:         pnl,
			IsITM:       true,
		}
	}
}

// MarkToMarket returns the position P&L of a spread currently worth spreadValue
// per contract.
func MarkToMarket(t Trade, spreadValue units.Cents) units.Cents {
	return (t.PremiumPerContract - spreadValue).Times(t.Contracts)
}

// Payoff is the expiry payoff profile of a trade.
type Payoff struct {
	Breakeven units.Cents // underlying price per share where P&L at expiry is zero
	MaxProfit units.Cents // whole position, stock at or above the sell strike
	MaxLoss   units.Cents // whole position, stock at or below the buy strike
}

// PayoffAtExpiry returns the breakeven and the P&L bounds of a put credit spread.
// The breakeven is the sell strike less the per-share credit.
func PayoffAtExpiry(t Trade) Payoff {
	return Payoff{
		Breakeven: t.SellStrike - t.PremiumPerContract/units.SharesPerContract,
		MaxProfit: t.PremiumPerContract.Times(t.Contracts),
		MaxLoss:   (t.SpreadWidth - t.PremiumPerContract).Times(t.Contracts),
	}
}

// newTrade derives the entry state of a trade from its strikes and premium.
func newTrade(position int, ticker string, entry, sell, buy units.Cents, expiration string, contracts int, premium units.Cents) Trade {
	width := (sell - buy) * units.SharesPerContract
	return Trade{
		Position:           position,
		Ticker:             ticker,
		EntryStockPrice:    entry,
		SellStrike:         sell,
		BuyStrike:          buy,
		ExpirationDate:     expiration,
		Contracts:          contracts,
		PremiumPerContract: premium,
		SpreadWidth:        width,
		MaxLossPerContract: width - premium,
		CurrentSpreadValue: premium,
		CurrentPnl:         0,
		Status:             TradeOpen,
	}
}
