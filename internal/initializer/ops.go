package initializer

import (
	"context"
	"fmt"

	"github.com/dreamware/zonectl/internal/topology"
)

// Step names reported in logs and StepError.
const (
	StepRegisterShard   = "registerShard"
	StepTagShard        = "tagShard"
	StepEnableSharding  = "enableSharding"
	StepShardCollection = "shardCollection"
	StepAssignZoneRange = "assignZoneRange"
)

// Admin is the administrative interface of a cluster coordinator. Every
// method blocks until the coordinator has applied (or rejected) the change
// and returns an error wrapping one of the topology taxonomy errors.
type Admin interface {
	AddShard(ctx context.Context, shard topology.Shard) error
	AddShardToZone(ctx context.Context, shardID, zone string) error
	EnableSharding(ctx context.Context, database string) error
	ShardCollection(ctx context.Context, ns topology.Namespace, key topology.ShardKey) error
	UpdateZoneKeyRange(ctx context.Context, ns topology.Namespace, r topology.ZoneRange) error
}

// Op is one administrative operation of an initialization plan. The set of
// implementations is closed: RegisterShard, TagShard, EnableSharding,
// ShardCollection and AssignZoneRange.
type Op interface {
	// Step returns the step name, e.g. "registerShard".
	Step() string
	// Apply issues the operation against the coordinator.
	Apply(ctx context.Context, admin Admin) error
	fmt.Stringer

	isOp()
}

// RegisterShard adds a shard to the cluster.
type RegisterShard struct {
	Shard topology.Shard
}

// TagShard adds a shard to a zone.
type TagShard struct {
	ShardID string
	Zone    string
}

// EnableSharding marks a database as shardable.
type EnableSharding struct {
	Database string
}

// ShardCollection declares the shard key of a collection.
type ShardCollection struct {
	Namespace topology.Namespace
	Key       topology.ShardKey
}

// AssignZoneRange routes a key interval of a collection to a zone.
type AssignZoneRange struct {
	Namespace topology.Namespace
	Range     topology.ZoneRange
}

// Step returns StepRegisterShard.
func (RegisterShard) Step() string { return StepRegisterShard }

// Step returns StepTagShard.
func (TagShard) Step() string { return StepTagShard }

// Step returns StepEnableSharding.
func (EnableSharding) Step() string { return StepEnableSharding }

// Step returns StepShardCollection.
func (ShardCollection) Step() string { return StepShardCollection }

// Step returns StepAssignZoneRange.
func (AssignZoneRange) Step() string { return StepAssignZoneRange }

// Apply registers the shard through admin.
func (o RegisterShard) Apply(ctx context.Context, admin Admin) error {
	return admin.AddShard(ctx, o.Shard)
}

// Apply adds the shard to its zone through admin.
func (o TagShard) Apply(ctx context.Context, admin Admin) error {
	return admin.AddShardToZone(ctx, o.ShardID, o.Zone)
}

// Apply enables sharding on the database through admin.
func (o EnableSharding) Apply(ctx context.Context, admin Admin) error {
	return admin.EnableSharding(ctx, o.Database)
}

// Apply shards the collection on its key through admin.
func (o ShardCollection) Apply(ctx context.Context, admin Admin) error {
	return admin.ShardCollection(ctx, o.Namespace, o.Key)
}

// Apply assigns the key range to its zone through admin.
func (o AssignZoneRange) Apply(ctx context.Context, admin Admin) error {
	return admin.UpdateZoneKeyRange(ctx, o.Namespace, o.Range)
}

// String renders the operation as registerShard(id, address).
func (o RegisterShard) String() string {
	return fmt.Sprintf("%s(%s, %s)", StepRegisterShard, o.Shard.ID, o.Shard.Address)
}

// String renders the operation as tagShard(id, zone).
func (o TagShard) String() string {
	return fmt.Sprintf("%s(%s, %s)", StepTagShard, o.ShardID, o.Zone)
}

// String renders the operation as enableSharding(database).
func (o EnableSharding) String() string {
	return fmt.Sprintf("%s(%s)", StepEnableSharding, o.Database)
}

// String renders the operation as shardCollection(ns, key).
func (o ShardCollection) String() string {
	return fmt.Sprintf("%s(%s, %s)", StepShardCollection, o.Namespace, o.Key)
}

// String renders the operation as assignZoneRange(ns, min, max, zone).
func (o AssignZoneRange) String() string {
	return fmt.Sprintf("%s(%s, %s, %s, %s)", StepAssignZoneRange, o.Namespace, o.Range.Min, o.Range.Max, o.Range.Zone)
}

func (RegisterShard) isOp()   {}
func (TagShard) isOp()        {}
func (EnableSharding) isOp()  {}
func (ShardCollection) isOp() {}
func (AssignZoneRange) isOp() {}

// Plan builds the ordered operation list for cfg: every shard registration in
// config order, every zone tag in config order, enabling sharding on the
// database, sharding the collection and finally the zone ranges sorted by
// their min bound. Plan does not validate cfg; call cfg.Validate first.
func Plan(cfg *topology.Config) []Op {
	ops := make([]Op, 0, len(cfg.Shards)+len(cfg.Zones)+len(cfg.Ranges)+2)
	for _, s := range cfg.Shards {
		ops = append(ops, RegisterShard{Shard: s})
	}
	for _, z := range cfg.Zones {
		ops = append(ops, TagShard{ShardID: z.ShardID, Zone: z.Zone})
	}
	ops = append(ops,
		EnableSharding{Database: cfg.Namespace.Database},
		ShardCollection{Namespace: cfg.Namespace, Key: cfg.ShardKey},
	)
	for _, r := range cfg.SortedRanges() {
		ops = append(ops, AssignZoneRange{Namespace: cfg.Namespace, Range: r})
	}
	return ops
}
