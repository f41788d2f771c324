// Package cache implements the interception and freshness-management engine
// for outbound HTTP calls: key derivation, cacheability and expiry policies,
// the stale-read-plus-background-refresh protocol, and response capture.
//
// The engine exposes two hookpoints the host wires around its HTTP pipeline:
//
//	res, ok := engine.OnBeforeRequest(ctx, url, args) // maybe short-circuit
//	...perform the real request when ok is false...
//	res = engine.OnAfterRequest(ctx, res, args, url)  // persist the exchange
//
// A fresh entry is served without a network call. A stale entry is flagged
// for background refresh and still served as a best-effort answer; the
// sweeper (package sweeper) replays flagged entries on an interval and
// drives the results back through Capture.
package cache
