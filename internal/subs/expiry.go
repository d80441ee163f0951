package subs

import (
	"strconv"
	"strings"
	"time"
)

// expiryLayouts are the textual expiry forms the upstream is known to emit or
// accept, tried in order.
var expiryLayouts = []string{
	"2006-01-02T15:04:05.000Z07:00",
	time.RFC3339,
	"02-Jan-2006",
	"2006-01-02",
}

// wireExpiryLayout is the only form the upstream accepts on subscribe calls.
const wireExpiryLayout = "02-Jan-2006"

// NormalizeExpiry converts any accepted expiry form to the canonical bare ISO
// date (YYYY-MM-DD). Returns false if the input matches no known layout.
func NormalizeExpiry(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	for _, layout := range expiryLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}

// WireExpiry converts any accepted expiry form to the upstream's DD-Mon-YYYY
// form. Unparseable input is passed through unchanged so the upstream can
// reject it with its own error.
func WireExpiry(raw string) string {
	for _, layout := range expiryLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(raw)); err == nil {
			return t.Format(wireExpiryLayout)
		}
	}
	return raw
}

// NormalizeRight maps the upstream's right spellings to CALL or PUT.
// Unrecognized values are uppercased and passed through.
func NormalizeRight(raw string) string {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "CE", "CALL":
		return "CALL"
	case "PE", "PUT":
		return "PUT"
	default:
		return strings.ToUpper(strings.TrimSpace(raw))
	}
}

// NormalizeStrike truncates any fractional broker encoding ("23600.0") to an
// integer strike.
func NormalizeStrike(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return int(f), true
}

// OptionAlias builds the stable logical routing key for an option contract.
func OptionAlias(underlying, expiryISO, right string, strike int) string {
	return underlying + "|" + expiryISO + "|" + right + "|" + strconv.Itoa(strike)
}

// FoldIndex rewrites loose upstream spellings of the known index families to
// their canonical names so ticks arriving under different spellings still
// route to the same alias.
func FoldIndex(name string) string {
	u := strings.ToUpper(name)
	if !strings.Contains(u, "NIFTY") {
		return u
	}
	switch {
	case strings.Contains(u, "BANK"):
		return "BANKNIFTY"
	case strings.Contains(u, "FIN"):
		return "FINNIFTY"
	default:
		return "NIFTY"
	}
}
