package tick

import (
	"encoding/json"
	"errors"
	"testing"
)

type mapResolver map[string]string

func (m mapResolver) LookupAlias(id string) (string, bool) {
	alias, ok := m[id]
	return alias, ok
}

func TestNormalizeQuote(t *testing.T) {
	raw := Raw{
		"stock_code":    "RELIANCE.NS",
		"exchange_code": "nse",
		"last":          2885.5,
		"close":         2870.0,
		"bPrice":        2885.0,
		"sPrice":        2886.0,
		"change":        0.54,
		"ltt":           "2025-02-13 10:15:00",
		"ttq":           float64(125000),
	}
	got, err := Normalize(raw, nil)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got.Kind != KindQuote {
		t.Errorf("kind = %v, want quote", got.Kind)
	}
	if got.Alias != "RELIANCE" {
		t.Errorf("alias = %q, want RELIANCE (.NS stripped, uppercased)", got.Alias)
	}
	if got.LTP != 2885.5 || got.Bid != 2885.0 || got.Ask != 2886.0 {
		t.Errorf("prices = %v/%v/%v, want 2885.5/2885/2886", got.LTP, got.Bid, got.Ask)
	}
	if got.ExchangeCode != "NSE" {
		t.Errorf("exchange = %q, want NSE", got.ExchangeCode)
	}
	if got.Volume != 125000 {
		t.Errorf("volume = %d, want 125000", got.Volume)
	}
}

func TestNormalizeDecodePriority(t *testing.T) {
	// "last" outranks "ltp" outranks "close"; "change" outranks "pChange".
	raw := Raw{
		"symbol":  "TCS",
		"last":    100.0,
		"ltp":     99.0,
		"close":   98.0,
		"change":  1.5,
		"pChange": 2.5,
	}
	got, err := Normalize(raw, nil)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got.LTP != 100.0 {
		t.Errorf("ltp = %v, want 100 (from last)", got.LTP)
	}
	if got.ChangePct != 1.5 {
		t.Errorf("change = %v, want 1.5 (from change)", got.ChangePct)
	}

	delete(raw, "last")
	got, _ = Normalize(raw, nil)
	if got.LTP != 99.0 {
		t.Errorf("ltp = %v, want 99 (fallback to ltp)", got.LTP)
	}
}

func TestNormalizeTokenLookup(t *testing.T) {
	res := mapResolver{"4.1!2885": "RELIANCE"}
	got, err := Normalize(Raw{"stock_token": "4.1!2885", "last": 2885.5}, res)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got.Alias != "RELIANCE" {
		t.Errorf("alias = %q, want RELIANCE via token lookup", got.Alias)
	}
}

func TestNormalizeOptionSynthesizesAlias(t *testing.T) {
	raw := Raw{
		"stock_code":   "NIFTY 50",
		"expiry_date":  "13-Feb-2025",
		"strike_price": "23600.0",
		"right_type":   "CE",
		"last":         145.3,
	}
	got, err := Normalize(raw, nil)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got.Kind != KindOptionQuote {
		t.Errorf("kind = %v, want option_quote", got.Kind)
	}
	if got.Alias != "NIFTY|2025-02-13|CALL|23600" {
		t.Errorf("alias = %q, want NIFTY|2025-02-13|CALL|23600", got.Alias)
	}
	if got.Strike != 23600 || got.Right != "CALL" || got.ExpiryISO != "2025-02-13" {
		t.Errorf("contract = %d/%s/%s", got.Strike, got.Right, got.ExpiryISO)
	}
}

func TestNormalizeOptionAliasSameAcrossSpellings(t *testing.T) {
	variants := []Raw{
		{"stock_code": "NIFTY", "expiry_date": "2025-02-13T06:00:00.000Z", "strike_price": "23600", "right_type": "call", "last": 1.0},
		{"symbol": "NIFTY 50", "expiry": "13-Feb-2025", "strike": 23600.0, "option_type": "CE", "ltp": 1.0},
	}
	var aliases []string
	for _, raw := range variants {
		got, err := Normalize(raw, nil)
		if err != nil {
			t.Fatalf("Normalize(%v): %v", raw, err)
		}
		aliases = append(aliases, got.Alias)
	}
	if aliases[0] != aliases[1] {
		t.Errorf("aliases differ across spellings: %q vs %q", aliases[0], aliases[1])
	}
}

func TestNormalizeDepthWithoutIdentity(t *testing.T) {
	raw := Raw{
		"BestBuyRate-1": 100.0, "BestBuyQty-1": 50.0,
		"BestSellRate-1": 101.0, "BestSellQty-1": 40.0,
	}
	got, err := Normalize(raw, nil)
	if err != nil {
		t.Fatalf("Normalize depth: %v", err)
	}
	if got.Kind != KindDepth {
		t.Errorf("kind = %v, want depth", got.Kind)
	}
	if got.Alias != "" {
		t.Errorf("alias = %q, want empty for anonymous depth", got.Alias)
	}
}

func TestNormalizeTokenFallbackAlias(t *testing.T) {
	// No symbol, no registry hit: the tick is still forwarded under the raw
	// token rather than dropped.
	got, err := Normalize(Raw{"stock_token": "4.1!999", "last": 10.5}, mapResolver{})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got.Alias != "4.1!999" {
		t.Errorf("alias = %q, want 4.1!999 (token fallback)", got.Alias)
	}
	if got.LTP != 10.5 {
		t.Errorf("ltp = %v, want 10.5", got.LTP)
	}
}

func TestNormalizeNoAlias(t *testing.T) {
	_, err := Normalize(Raw{"last": 1.0}, nil)
	if !errors.Is(err, ErrNoAlias) {
		t.Errorf("err = %v, want ErrNoAlias", err)
	}
}

func TestMarshalWire(t *testing.T) {
	data, err := Tick{
		Kind:  KindQuote,
		Alias: "RELIANCE",
		LTP:   2885.5,
		Bid:   2885.0,
	}.MarshalWire()
	if err != nil {
		t.Fatalf("MarshalWire: %v", err)
	}
	var frame map[string]any
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	if frame["type"] != "tick" {
		t.Errorf("type = %v, want tick", frame["type"])
	}
	if frame["symbol"] != "RELIANCE" {
		t.Errorf("symbol = %v, want RELIANCE", frame["symbol"])
	}
	if _, present := frame["strike_price"]; present {
		t.Error("zero strike_price must be omitted from the frame")
	}
}
