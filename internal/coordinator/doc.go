// Package coordinator implements the control plane behind the zonectl
// coordinator: the cluster metadata catalog and shard health monitoring.
//
// # Overview
//
// The coordinator holds the authoritative topology of a zone-sharded
// cluster. It does not store user documents; it records where they belong.
//
//	┌─────────────────────────────────────┐
//	│            COORDINATOR              │
//	├─────────────────────────────────────┤
//	│  Catalog                            │
//	│   - shards and their zone tags      │
//	│   - shardable databases, primaries  │
//	│   - sharded collections, keys       │
//	│   - zone key ranges per collection  │
//	├─────────────────────────────────────┤
//	│  HealthMonitor                      │
//	│   - periodic shard reachability     │
//	│   - consecutive failure threshold   │
//	└─────────────────────────────────────┘
//
// # Catalog
//
// Catalog implements the administrative operations applied by package
// initializer (it satisfies initializer.Admin):
//
//	AddShard → AddShardToZone → EnableSharding → ShardCollection → UpdateZoneKeyRange
//
// Each operation is idempotent for identical input. Prerequisites that have
// not been applied yield topology.ErrOrderDependency, contradicting input
// yields topology.ErrAlreadyExists and intersecting zone ranges yield
// topology.ErrRangeOverlap. Registering a shard probes its address first and
// reports topology.ErrConnection when it cannot be reached.
//
// Route answers placement questions:
//
//	{region: "EAST", id: 7} → key (EAST, 7) → range [EAST, EAST~) → zone EAST → shard A
//
// # Health Monitoring
//
// HealthMonitor probes registered shards on an interval and marks a shard
// unhealthy after three consecutive failures. Health is informational; it
// never changes the catalog.
//
// # Concurrency
//
// All types are safe for concurrent use. Metadata mutations are serialized
// by a single mutex; probes run without holding it.
package coordinator
