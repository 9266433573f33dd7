// Package mongoadmin applies topology operations to a MongoDB sharded
// cluster by running admin commands against a mongos router.
package mongoadmin

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/dreamware/zonectl/internal/topology"
)

// Admin runs sharding admin commands through a mongos. It satisfies
// initializer.Admin.
type Admin struct {
	client *mongo.Client
	db     *mongo.Database
	logger *zap.Logger
}

// Connect dials the mongos at uri and pings it. Failures wrap
// topology.ErrConnection.
func Connect(ctx context.Context, uri string, logger *zap.Logger) (*Admin, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%w: connect %s: %v", topology.ErrConnection, redact(uri), err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("%w: ping %s: %v", topology.ErrConnection, redact(uri), err)
	}
	return &Admin{client: client, db: client.Database("admin"), logger: logger}, nil
}

// Close disconnects from the cluster.
func (a *Admin) Close(ctx context.Context) error {
	return a.client.Disconnect(ctx)
}

// AddShard runs addShard with the shard address as the seed and the shard
// id as its name. An existing shard with the same name and host is accepted
// by the server as a no-op.
func (a *Admin) AddShard(ctx context.Context, shard topology.Shard) error {
	return a.run(ctx, "addShard", bson.D{
		{Key: "addShard", Value: shard.Address},
		{Key: "name", Value: shard.ID},
	})
}

// AddShardToZone runs addShardToZone. ShardNotFound maps to
// topology.ErrOrderDependency.
func (a *Admin) AddShardToZone(ctx context.Context, shardID, zone string) error {
	return a.run(ctx, "addShardToZone", bson.D{
		{Key: "addShardToZone", Value: shardID},
		{Key: "zone", Value: zone},
	})
}

// EnableSharding runs enableSharding. A database that already has sharding
// enabled is not an error.
func (a *Admin) EnableSharding(ctx context.Context, database string) error {
	return a.run(ctx, "enableSharding", bson.D{{Key: "enableSharding", Value: database}})
}

// ShardCollection runs shardCollection with the key as an ordered key
// pattern document.
//
// Example command:
//
//	{shardCollection: "D.t", key: {region: 1, id: 1}}
func (a *Admin) ShardCollection(ctx context.Context, ns topology.Namespace, key topology.ShardKey) error {
	return a.run(ctx, "shardCollection", bson.D{
		{Key: "shardCollection", Value: ns.String()},
		{Key: "key", Value: KeyDocument(key)},
	})
}

// UpdateZoneKeyRange runs updateZoneKeyRange for [r.Min, r.Max). Bounds keep
// their field order; MinKey and MaxKey are sent as their BSON types.
func (a *Admin) UpdateZoneKeyRange(ctx context.Context, ns topology.Namespace, r topology.ZoneRange) error {
	return a.run(ctx, "updateZoneKeyRange", bson.D{
		{Key: "updateZoneKeyRange", Value: ns.String()},
		{Key: "min", Value: BoundDocument(r.Min)},
		{Key: "max", Value: BoundDocument(r.Max)},
		{Key: "zone", Value: r.Zone},
	})
}

func (a *Admin) run(ctx context.Context, command string, cmd bson.D) error {
	a.logger.Debug("running admin command", zap.String("command", command), zap.Stringer("body", commandString(cmd)))
	err := a.db.RunCommand(ctx, cmd).Err()
	return classify(command, err)
}

// KeyDocument renders a shard key as the ordered key pattern document.
func KeyDocument(key topology.ShardKey) bson.D {
	doc := make(bson.D, 0, len(key))
	for _, f := range key {
		doc = append(doc, bson.E{Key: f.Field, Value: int32(f.Direction)})
	}
	return doc
}

// BoundDocument renders a range bound as an ordered document, mapping
// MinKey and MaxKey to their BSON types.
func BoundDocument(b topology.Bound) bson.D {
	doc := make(bson.D, 0, len(b))
	for _, f := range b {
		var v any
		switch f.Value.(type) {
		case topology.MinKey:
			v = primitive.MinKey{}
		case topology.MaxKey:
			v = primitive.MaxKey{}
		default:
			v = f.Value
		}
		doc = append(doc, bson.E{Key: f.Field, Value: v})
	}
	return doc
}

// serverErrors maps MongoDB error code names to the topology taxonomy.
var serverErrors = map[string]error{
	"ShardNotFound":        topology.ErrOrderDependency,
	"ZoneNotFound":         topology.ErrOrderDependency,
	"NamespaceNotFound":    topology.ErrOrderDependency,
	"NamespaceNotSharded":  topology.ErrOrderDependency,
	"AlreadyInitialized":   topology.ErrAlreadyExists,
	"IllegalOperation":     topology.ErrAlreadyExists,
	"OperationFailed":      topology.ErrAlreadyExists,
	"DuplicateKey":         topology.ErrAlreadyExists,
	"RangeOverlapConflict": topology.ErrRangeOverlap,
	"BadValue":             topology.ErrInvalid,
	"InvalidOptions":       topology.ErrInvalid,
	"HostUnreachable":      topology.ErrConnection,
	"HostNotFound":         topology.ErrConnection,
	"NetworkTimeout":       topology.ErrConnection,
}

// classify converts a driver error into the topology taxonomy. Enabling
// sharding on a database that already has it is not an error.
func classify(command string, err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %v", topology.ErrConnection, command, err)
	}

	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		if command == "enableSharding" && cmdErr.Name == "AlreadyInitialized" {
			return nil
		}
		if sentinel, ok := serverErrors[cmdErr.Name]; ok {
			return fmt.Errorf("%w: %s: %s", sentinel, command, cmdErr.Message)
		}
	}
	return fmt.Errorf("%s: %w", command, err)
}

type commandString bson.D

func (c commandString) String() string {
	data, err := bson.MarshalExtJSON(bson.D(c), false, false)
	if err != nil {
		return fmt.Sprint(bson.D(c))
	}
	return string(data)
}
