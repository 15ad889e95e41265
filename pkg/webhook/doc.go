// Package webhook signs and verifies HMAC-SHA256 webhook envelopes.
//
// The signature covers "<unix timestamp>.<raw body>" so a captured request
// cannot be replayed outside the tolerance window. It is used by payment
// gateways that do not ship their own SDK verifier.
package webhook
