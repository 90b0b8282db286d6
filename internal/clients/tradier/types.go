package tradier

import (
	"bytes"
	"encoding/json"
)

// oneOrMany decodes a field that Tradier sends as a single object when there is
// one element, an array when there are several, and null or "null" when empty.
type oneOrMany[T any] []T

func (o *oneOrMany[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte(`"null"`)) {
		*o = nil
		return nil
	}

	if trimmed[0] == '[' {
		var many []T
		if err := json.Unmarshal(trimmed, &many); err != nil {
			return err
		}
		*o = many
		return nil
	}

	var one T
	if err := json.Unmarshal(trimmed, &one); err != nil {
		return err
	}
	*o = []T{one}
	return nil
}

// nullableObject decodes an object that Tradier replaces with null or "null" when empty.
type nullableObject[T any] struct {
	Value *T
}

func (n *nullableObject[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte(`"null"`)) {
		n.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

// Quote is a market quote for an equity or option.
type Quote struct {
	Symbol    string  `json:"symbol" msgpack:"symbol"`
	Last      float64 `json:"last" msgpack:"last"`
	Bid       float64 `json:"bid" msgpack:"bid"`
	Ask       float64 `json:"ask" msgpack:"ask"`
	Close     float64 `json:"close" msgpack:"close"`
	PrevClose float64 `json:"prevclose" msgpack:"prevclose"`
}

type quotesResponse struct {
	Quotes nullableObject[struct {
		Quote     oneOrMany[Quote] `json:"quote"`
		Unmatched json.RawMessage  `json:"unmatched_symbols"`
	}] `json:"quotes"`
}

// OptionQuote is one contract from an option chain.
type OptionQuote struct {
	Symbol     string  `json:"symbol" msgpack:"symbol"`
	Strike     float64 `json:"strike" msgpack:"strike"`
	Bid        float64 `json:"bid" msgpack:"bid"`
	Ask        float64 `json:"ask" msgpack:"ask"`
	Last       float64 `json:"last" msgpack:"last"`
	OptionType string  `json:"option_type" msgpack:"option_type"`
	Expiration string  `json:"expiration_date" msgpack:"expiration_date"`
}

type chainResponse struct {
	Options nullableObject[struct {
		Option oneOrMany[OptionQuote] `json:"option"`
	}] `json:"options"`
}

// HistoryDay is one daily bar.
type HistoryDay struct {
	Date   string  `json:"date" msgpack:"date"`
	Open   float64 `json:"open" msgpack:"open"`
	High   float64 `json:"high" msgpack:"high"`
	Low    float64 `json:"low" msgpack:"low"`
	Close  float64 `json:"close" msgpack:"close"`
	Volume int64   `json:"volume" msgpack:"volume"`
}

type historyResponse struct {
	History nullableObject[struct {
		Day oneOrMany[HistoryDay] `json:"day"`
	}] `json:"history"`
}

// CalendarDay is one day of the exchange calendar.
type CalendarDay struct {
	Date   string `json:"date" msgpack:"date"`
	Status string `json:"status" msgpack:"status"` // "open" or "closed"
}

type calendarResponse struct {
	Calendar struct {
		Month int `json:"month"`
		Year  int `json:"year"`
		Days  nullableObject[struct {
			Day oneOrMany[CalendarDay] `json:"day"`
		}] `json:"days"`
	} `json:"calendar"`
}

// mid returns the bid/ask midpoint, falling back to last when the market is one-sided.
func mid(bid, ask, last float64) (float64, bool) {
	if bid > 0 && ask > 0 {
		return (bid + ask) / 2, true
	}
	if last > 0 {
		return last, true
	}
	return 0, false
}
