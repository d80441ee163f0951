package subs

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
)

// Errors
var (
	ErrEmptyDescriptor = errors.New("descriptor has no stock code or token")
	ErrBadExpiry       = errors.New("unrecognized expiry date format")
	ErrBadStrike       = errors.New("unrecognized strike price")
)

// Upstream is the broker-level subscription surface the registry drives.
// The token form supports batching; the quote and option forms do not.
type Upstream interface {
	SubscribeTokens(tokens []string) error
	SubscribeQuote(exchangeCode, stockCode, productType string) error
	SubscribeOption(exchangeCode, stockCode, expiryDate, strikePrice, right, productType string, marketDepth bool) error
	UnsubscribeTokens(tokens []string) error
	UnsubscribeQuote(exchangeCode, stockCode, productType string) error
	UnsubscribeOption(exchangeCode, stockCode, expiryDate, strikePrice, right, productType string) error
}

// Registry maps upstream subscription keys to subscription metadata.
//
// Mutating calls are serialized on an operation mutex so concurrent REST/WS
// handlers cannot interleave upstream calls; lookups take a read lock only and
// never wait on upstream I/O.
type Registry struct {
	upstream Upstream
	logger   *slog.Logger

	opMu sync.Mutex // serializes subscribe/unsubscribe operations

	mu      sync.RWMutex
	records map[string]Record // key → record
	byToken map[string]string // bare token → key, for tick alias lookup
}

// NewRegistry creates a subscription registry backed by the given upstream.
func NewRegistry(upstream Upstream, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		upstream: upstream,
		logger:   logger,
		records:  make(map[string]Record),
		byToken:  make(map[string]string),
	}
}

// Subscribe records the descriptor and issues the matching upstream subscribe
// call. Re-subscribing an identical descriptor is a no-op that returns the
// existing record without a second upstream call.
func (r *Registry) Subscribe(d Descriptor) (Record, error) {
	r.opMu.Lock()
	defer r.opMu.Unlock()
	return r.subscribe(d)
}

// SubscribeBatch splits heterogeneous descriptors into one batched token
// subscribe, N quote subscribes, and N option subscribes. A failure in one
// partition never aborts the others; the caller gets one Result per item in
// input order.
func (r *Registry) SubscribeBatch(items []Descriptor) []Result {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	results := make([]Result, len(items))

	// Token descriptors are deferred and issued as a single upstream call.
	var tokenIdx []int
	var tokens []string

	for i, d := range items {
		if r.isTokenDescriptor(d) {
			key, fresh := r.recordToken(d)
			results[i] = Result{Key: key, Alias: r.aliasOf(key)}
			if fresh {
				tokenIdx = append(tokenIdx, i)
				tokens = append(tokens, key)
			}
			continue
		}

		rec, err := r.subscribe(d)
		results[i] = Result{Key: rec.Key, Alias: rec.Alias, Err: err}
		if err != nil {
			r.logger.Warn("batch subscribe item failed",
				"stock_code", d.StockCode,
				"error", err,
			)
		}
	}

	if len(tokens) > 0 {
		if err := r.upstream.SubscribeTokens(tokens); err != nil {
			r.logger.Warn("batch token subscribe failed", "count", len(tokens), "error", err)
			r.mu.Lock()
			for _, i := range tokenIdx {
				results[i].Err = err
				r.dropLocked(results[i].Key)
			}
			r.mu.Unlock()
		}
	}

	return results
}

// Unsubscribe removes the record for key and issues the upstream unsubscribe
// call. Unknown keys are a no-op.
func (r *Registry) Unsubscribe(key string) error {
	r.opMu.Lock()
	defer r.opMu.Unlock()
	return r.unsubscribe(strings.ToUpper(strings.TrimSpace(key)))
}

// UnsubscribeMany unsubscribes each key, continuing past individual failures.
func (r *Registry) UnsubscribeMany(keys []string) {
	r.opMu.Lock()
	defer r.opMu.Unlock()
	for _, key := range keys {
		if err := r.unsubscribe(strings.ToUpper(strings.TrimSpace(key))); err != nil {
			r.logger.Warn("unsubscribe failed", "key", key, "error", err)
		}
	}
}

// UnsubscribeAllOptions removes every option subscription. Returns the number
// of records swept.
func (r *Registry) UnsubscribeAllOptions() int {
	return r.sweepOptions(func(Record) bool { return true })
}

// UnsubscribeExceptExpiry removes every option subscription whose normalized
// expiry differs from keepDate. Used when a client changes its selected expiry
// so stale contract subscriptions are released.
func (r *Registry) UnsubscribeExceptExpiry(keepDate string) int {
	keep, ok := NormalizeExpiry(keepDate)
	if !ok {
		keep = strings.TrimSpace(keepDate)
	}
	return r.sweepOptions(func(rec Record) bool { return rec.ExpiryISO != keep })
}

// LookupAlias resolves a raw upstream token or symbol to the stored alias.
func (r *Registry) LookupAlias(id string) (string, bool) {
	id = strings.ToUpper(strings.TrimSpace(id))
	if id == "" {
		return "", false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if rec, ok := r.records[id]; ok {
		return rec.Alias, true
	}
	if key, ok := r.byToken[id]; ok {
		return r.records[key].Alias, true
	}
	return "", false
}

// Get returns the record stored under key.
func (r *Registry) Get(key string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[strings.ToUpper(strings.TrimSpace(key))]
	return rec, ok
}

// Records returns a snapshot of all active subscription records.
func (r *Registry) Records() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	return out
}

// Len returns the number of active subscriptions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// subscribe dispatches one descriptor. Caller holds opMu.
func (r *Registry) subscribe(d Descriptor) (Record, error) {
	if r.isTokenDescriptor(d) {
		key, fresh := r.recordToken(d)
		rec, _ := r.Get(key)
		if !fresh {
			return rec, nil
		}
		if err := r.upstream.SubscribeTokens([]string{key}); err != nil {
			r.mu.Lock()
			r.dropLocked(key)
			r.mu.Unlock()
			return Record{}, fmt.Errorf("subscribe token %s: %w", key, err)
		}
		return rec, nil
	}
	if isOptionDescriptor(d) {
		return r.subscribeOption(d)
	}
	return r.subscribeQuote(d)
}

// recordToken normalizes and stores a token subscription without issuing the
// upstream call. Returns the token key and whether the record is new.
func (r *Registry) recordToken(d Descriptor) (key string, fresh bool) {
	raw := d.Token
	if raw == "" {
		raw = d.StockCode
	}
	key = NormalizeTokenKey(raw, d.ExchangeCode)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[key]; ok {
		return key, false
	}

	alias := strings.ToUpper(strings.TrimSpace(d.Alias))
	if alias == "" {
		alias = strings.ToUpper(strings.TrimSpace(d.StockCode))
	}
	if alias == "" {
		alias = key
	}
	product := d.ProductType
	if product == "" {
		product = ProductCash
	}

	r.records[key] = Record{
		Key:          key,
		Alias:        alias,
		ExchangeCode: ExchangeToken,
		ProductType:  strings.ToLower(product),
	}
	if i := strings.IndexByte(key, '!'); i >= 0 {
		r.byToken[key[i+1:]] = key
	}
	return key, true
}

// subscribeOption handles the option-parameter form. Caller holds opMu.
func (r *Registry) subscribeOption(d Descriptor) (Record, error) {
	code := strings.ToUpper(strings.TrimSpace(d.StockCode))
	if code == "" {
		return Record{}, ErrEmptyDescriptor
	}

	iso, ok := NormalizeExpiry(d.ExpiryDate)
	if !ok {
		return Record{}, fmt.Errorf("%w: %q", ErrBadExpiry, d.ExpiryDate)
	}
	strike, ok := NormalizeStrike(d.StrikePrice)
	if !ok {
		return Record{}, fmt.Errorf("%w: %q", ErrBadStrike, d.StrikePrice)
	}
	right := NormalizeRight(d.Right)
	underlying := FoldIndex(code)

	alias := strings.TrimSpace(d.Alias)
	if alias == "" {
		alias = OptionAlias(underlying, iso, right, strike)
	}
	key := strings.ToUpper(alias)

	r.mu.Lock()
	if rec, ok := r.records[key]; ok {
		r.mu.Unlock()
		return rec, nil
	}
	exchange := strings.ToUpper(d.ExchangeCode)
	if exchange == "" {
		exchange = "NFO"
	}
	rec := Record{
		Key:          key,
		Alias:        alias,
		ExchangeCode: exchange,
		ProductType:  ProductOptions,
		Underlying:   underlying,
		WireCode:     code,
		ExpiryISO:    iso,
		ExpiryWire:   WireExpiry(d.ExpiryDate),
		Strike:       strike,
		Right:        right,
		Depth:        d.MarketDepth,
	}
	r.records[key] = rec
	r.mu.Unlock()

	err := r.upstream.SubscribeOption(
		exchange, code, rec.ExpiryWire, strconv.Itoa(strike),
		strings.ToLower(right), ProductOptions, d.MarketDepth,
	)
	if err != nil {
		r.mu.Lock()
		r.dropLocked(key)
		r.mu.Unlock()
		return Record{}, fmt.Errorf("subscribe option %s: %w", key, err)
	}
	return rec, nil
}

// subscribeQuote handles the plain exchange/stock-code form. Caller holds opMu.
func (r *Registry) subscribeQuote(d Descriptor) (Record, error) {
	code := strings.ToUpper(strings.TrimSpace(d.StockCode))
	if code == "" {
		return Record{}, ErrEmptyDescriptor
	}

	r.mu.Lock()
	if rec, ok := r.records[code]; ok {
		r.mu.Unlock()
		return rec, nil
	}
	exchange := strings.ToUpper(d.ExchangeCode)
	if exchange == "" {
		exchange = "NSE"
	}
	product := strings.ToLower(d.ProductType)
	if product == "" {
		product = ProductCash
	}
	alias := strings.TrimSpace(d.Alias)
	if alias == "" {
		alias = code
	}
	rec := Record{
		Key:          code,
		Alias:        alias,
		ExchangeCode: exchange,
		ProductType:  product,
	}
	r.records[code] = rec
	r.mu.Unlock()

	if err := r.upstream.SubscribeQuote(exchange, code, product); err != nil {
		r.mu.Lock()
		r.dropLocked(code)
		r.mu.Unlock()
		return Record{}, fmt.Errorf("subscribe quote %s: %w", code, err)
	}
	return rec, nil
}

// unsubscribe removes one record and issues the upstream call. Caller holds
// opMu.
func (r *Registry) unsubscribe(key string) error {
	r.mu.RLock()
	rec, ok := r.records[key]
	r.mu.RUnlock()
	if !ok {
		return nil
	}

	var err error
	switch {
	case rec.ExchangeCode == ExchangeToken || strings.ContainsRune(key, '!'):
		err = r.upstream.UnsubscribeTokens([]string{key})
	case rec.IsOption():
		err = r.upstream.UnsubscribeOption(
			rec.ExchangeCode, rec.WireCode, rec.ExpiryWire,
			strconv.Itoa(rec.Strike), strings.ToLower(rec.Right), ProductOptions,
		)
	default:
		err = r.upstream.UnsubscribeQuote(rec.ExchangeCode, rec.Key, rec.ProductType)
	}

	// The record is dropped even when the upstream call fails: the upstream
	// connection may already be gone, and keeping the record would block a
	// later re-subscribe.
	r.mu.Lock()
	r.dropLocked(key)
	r.mu.Unlock()

	if err != nil {
		return fmt.Errorf("unsubscribe %s: %w", key, err)
	}
	return nil
}

// sweepOptions unsubscribes every option record matching the predicate.
func (r *Registry) sweepOptions(match func(Record) bool) int {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	r.mu.RLock()
	var keys []string
	for key, rec := range r.records {
		if rec.IsOption() && match(rec) {
			keys = append(keys, key)
		}
	}
	r.mu.RUnlock()

	for _, key := range keys {
		if err := r.unsubscribe(key); err != nil {
			r.logger.Warn("option sweep unsubscribe failed", "key", key, "error", err)
		}
	}
	return len(keys)
}

// aliasOf returns the alias stored under key, or the key itself.
func (r *Registry) aliasOf(key string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if rec, ok := r.records[key]; ok {
		return rec.Alias
	}
	return key
}

// dropLocked removes a record and its token index entry. Caller holds mu.
func (r *Registry) dropLocked(key string) {
	delete(r.records, key)
	if i := strings.IndexByte(key, '!'); i >= 0 {
		delete(r.byToken, key[i+1:])
	}
}

// isTokenDescriptor reports whether the descriptor should use the token
// subscription form.
func (r *Registry) isTokenDescriptor(d Descriptor) bool {
	if t := strings.TrimSpace(d.Token); t != "" && t != "undefined" && t != "null" {
		return true
	}
	code := strings.ToUpper(strings.TrimSpace(d.StockCode))
	return isBareToken(code) || IsTokenKey(code)
}

// isOptionDescriptor reports whether the descriptor carries the full option
// parameter set.
func isOptionDescriptor(d Descriptor) bool {
	return strings.ToLower(d.ProductType) == ProductOptions &&
		d.ExpiryDate != "" && d.StrikePrice != "" && d.Right != ""
}
