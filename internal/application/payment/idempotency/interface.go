// Package idempotency defines the bounded-lifetime key store that lets a
// client re-submit an initiation request without double-charging.
package idempotency

import "context"

// Store maps an idempotency key to the checkout request ID of the attempt it
// first produced. Entries live for the configured retention window (around
// 24 hours) and are purged afterwards.
type Store interface {
	// Lookup returns the checkout request ID previously recorded for the
	// key, or ok=false when the key is unknown or has expired.
	Lookup(ctx context.Context, key string) (checkoutRequestID string, ok bool, err error)

	// Remember records key -> checkoutRequestID if the key is unseen.
	// When another attempt won the race, the winner's checkout request ID
	// is returned with stored=false.
	Remember(ctx context.Context, key, checkoutRequestID string) (existing string, stored bool, err error)
}
