// Package topology describes the zone-based shard layout applied by zonectl:
// shards, zone tags, the target namespace, the compound shard key and the
// zone key ranges over it.
//
// # Key ordering
//
// Range bounds and routed documents are compared as key tuples. Values are
// ordered by type first and by value second:
//
//	MinKey < null < numbers < strings < booleans < MaxKey
//
// Strings compare bytewise, so the conventional "EAST" .. "EAST~" range
// covers every value that starts with "EAST". A bound naming only the leading
// fields of the shard key is padded with MinKey for the remaining fields.
//
// # Errors
//
// Every error produced by this package, the coordinator catalog and the admin
// clients wraps one of ErrConnection, ErrAlreadyExists, ErrRangeOverlap,
// ErrOrderDependency or ErrInvalid.
package topology
