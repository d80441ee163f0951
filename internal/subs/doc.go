// Package subs implements the Subscription Registry component.
//
// The Subscription Registry:
//   - Derives upstream subscription keys from instrument descriptors
//   - Rewrites bare numeric tokens into the broker's prefixed token form
//   - Tracks one SubscriptionRecord per active upstream subscription
//   - Splits batch subscriptions into token, quote, and option upstream calls
//   - Normalizes option expiry dates to a canonical bare ISO form
package subs
