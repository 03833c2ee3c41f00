// Package core provides the synchronization and query engine for the country
// snapshot.
//
// This package holds all domain logic independent of any transport or storage
// driver. The web layer, the background scheduler and tests all drive the same
// [Service].
//
// # Architecture
//
// The package is organized around a few key concepts:
//
//   - Service: the entry point for refresh cycles and reads.
//   - Store / RefreshTx: the persisted snapshot. [Store.WithRefreshTx] gives a
//     cycle one transaction holding the store-wide refresh lock.
//   - CountrySource / RateSource: the two upstream providers.
//   - RefreshGate: in-process admission for cycles, bounded by a wait limit.
//
// # Refresh Cycle
//
// [Service.Refresh] runs one reconciliation:
//
//  1. Acquire the gate, waiting at most the configured MaxWait
//  2. Fetch the attributes batch; failure aborts with [ErrUpstreamUnavailable]
//  3. Stage records: skip nameless or currency-less entries, resolve each
//     distinct currency once, estimate GDP
//  4. Write: an empty store is populated all-or-nothing; otherwise each record
//     is upserted in isolation and failures are reported per record
//
// The cycle is detached from the caller's cancellation so a dropped client
// never leaves a half-applied batch; the refresh timeout still bounds it.
//
// # Queries
//
// [BuildQueryPlan] picks exactly one filter by precedence: name, then
// currency_code, then region, then all. Only the region filter honours sort.
//
// # Error Handling
//
// Errors are mapped to client-facing messages using [MapError]. Each category
// has a stable code:
//
//   - VAL001: invalid parameter
//   - NF001: country not found
//   - UPS001: upstream provider unavailable
//   - REF001: refresh already in progress
//   - DB001-DB007, CTX001-CTX002: storage and context failures
package core
