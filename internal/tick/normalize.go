package tick

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/marketdesk/tickstream/internal/subs"
)

// ErrNoAlias means the payload carried no resolvable instrument identity.
var ErrNoAlias = errors.New("payload has no resolvable alias")

// Resolver maps raw upstream identifiers (tokens, symbols) to aliases.
type Resolver interface {
	LookupAlias(id string) (string, bool)
}

// Decode priority tables. The first present key wins; later keys are
// fallbacks for older payload shapes the upstream still emits.
var (
	symbolKeys = []string{"stock_code", "symbol"}
	tokenKeys  = []string{"stock_token", "token"}
	ltpKeys    = []string{"last", "ltp", "close", "open"}
	closeKeys  = []string{"close"}
	bidKeys    = []string{"bPrice", "best_bid_price"}
	askKeys    = []string{"sPrice", "best_ask_price"}
	changeKeys = []string{"change", "pChange"}
	timeKeys   = []string{"ltt", "datetime", "timestamp"}
	expiryKeys = []string{"expiry_date", "expiry"}
	strikeKeys = []string{"strike_price", "strike"}
	rightKeys  = []string{"right_type", "right", "option_type"}
	volumeKeys = []string{"ttq", "volume", "total_quantity_traded"}
	oiKeys     = []string{"OI", "open_interest", "oi"}
)

// Normalize flattens one raw payload into a Tick and classifies it. The
// resolver is consulted for token and symbol aliases; payloads that resolve to
// no alias are rejected unless they carry depth ladders, which route on the
// client's pinned contract instead.
func Normalize(raw Raw, r Resolver) (Tick, error) {
	t := Tick{
		Symbol:       cleanSymbol(str(raw, symbolKeys)),
		Token:        str(raw, tokenKeys),
		ExchangeCode: strings.ToUpper(str(raw, []string{"exchange_code", "exchange"})),
		LTP:          num(raw, ltpKeys),
		Close:        num(raw, closeKeys),
		Bid:          num(raw, bidKeys),
		Ask:          num(raw, askKeys),
		ChangePct:    num(raw, changeKeys),
		Timestamp:    str(raw, timeKeys),
		Volume:       int64(num(raw, volumeKeys)),
		OpenInterest: int64(num(raw, oiKeys)),
	}
	t.Bids, t.Asks = parseDepth(raw)

	if expiry := str(raw, expiryKeys); expiry != "" {
		if iso, ok := subs.NormalizeExpiry(expiry); ok {
			t.ExpiryISO = iso
		}
	}
	if strikeRaw := str(raw, strikeKeys); strikeRaw != "" {
		if strike, ok := subs.NormalizeStrike(strikeRaw); ok && strike != 0 {
			t.Strike = strike
		}
	}
	if right := str(raw, rightKeys); right != "" {
		t.Right = subs.NormalizeRight(right)
	}

	t.Kind = classify(t)
	t.Alias = resolveAlias(t, r)
	if t.Alias == "" && t.Kind != KindDepth {
		return Tick{}, fmt.Errorf("%w: token=%q symbol=%q", ErrNoAlias, t.Token, t.Symbol)
	}
	return t, nil
}

// classify picks the routing kind from the fields present.
func classify(t Tick) Kind {
	switch {
	case t.Strike != 0 && t.Right != "":
		return KindOptionQuote
	case len(t.Bids) > 0 || len(t.Asks) > 0:
		return KindDepth
	default:
		return KindQuote
	}
}

// resolveAlias picks the routing alias, in priority order: contract identity
// carried by the payload itself, registry lookup by token, registry lookup by
// symbol, then the cleaned symbol, then the raw token. The last two are
// best-effort keys so an unregistered instrument is still forwarded.
func resolveAlias(t Tick, r Resolver) string {
	if t.Kind == KindOptionQuote && t.ExpiryISO != "" {
		return subs.OptionAlias(subs.FoldIndex(t.Symbol), t.ExpiryISO, t.Right, t.Strike)
	}
	if r != nil {
		if t.Token != "" {
			if alias, ok := r.LookupAlias(t.Token); ok {
				return alias
			}
		}
		if t.Symbol != "" {
			if alias, ok := r.LookupAlias(t.Symbol); ok {
				return alias
			}
		}
	}
	if t.Symbol != "" {
		return strings.ToUpper(t.Symbol)
	}
	return strings.ToUpper(t.Token)
}

// cleanSymbol strips the upstream's ".NS" venue suffix.
func cleanSymbol(s string) string {
	return strings.TrimSuffix(strings.TrimSpace(s), ".NS")
}

// str returns the first present non-empty string value among keys.
func str(raw Raw, keys []string) string {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok || v == nil {
			continue
		}
		switch s := v.(type) {
		case string:
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(s, 'f', -1, 64)
		case int:
			return strconv.Itoa(s)
		}
	}
	return ""
}

// num returns the first present numeric value among keys. String-encoded
// numbers are coerced; anything else counts as absent.
func num(raw Raw, keys []string) float64 {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok || v == nil {
			continue
		}
		if f, ok := toFloat(v); ok {
			return f
		}
	}
	return 0
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
