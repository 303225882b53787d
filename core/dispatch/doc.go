// Package dispatch implements the dock scheduler. It pairs queued trucks with
// free docks, either on demand (manual assignment through the API) or on a
// fixed sweep, and releases each dock after its hold period.
//
// Both paths go through the same assignment procedure. Exclusive use of a
// dock is guaranteed by the store-level compare-and-set in the allocator;
// work on one appointment is additionally serialized in-process.
package dispatch
