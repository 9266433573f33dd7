// Package coordinator implements the cluster metadata catalog behind the
// zonectl coordinator. See doc.go for complete package documentation.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/exp/slices"

	"github.com/dreamware/zonectl/internal/topology"
)

// Prober checks that a shard endpoint is reachable.
type Prober func(ctx context.Context, addr string) error

// DialProber returns a Prober that opens and closes a TCP connection to the
// shard address within timeout. For a replica set seed list the shard is
// reachable when any member accepts a connection.
func DialProber(timeout time.Duration) Prober {
	return func(ctx context.Context, addr string) error {
		_, hosts, err := topology.SplitAddress(addr)
		if err != nil {
			return err
		}
		d := net.Dialer{Timeout: timeout}
		var errs []error
		for _, host := range hosts {
			conn, err := d.DialContext(ctx, "tcp", host)
			if err != nil {
				errs = append(errs, fmt.Errorf("dial %s: %w", host, err))
				continue
			}
			return conn.Close()
		}
		return errors.Join(errs...)
	}
}

type shardEntry struct {
	zones   map[string]bool
	id      string
	address string
}

type databaseEntry struct {
	name    string
	primary string
}

type collectionEntry struct {
	ns     topology.Namespace
	key    topology.ShardKey
	ranges []topology.ZoneRange // sorted by min bound
}

// Catalog is the authoritative store of cluster topology metadata: which
// shards exist, which zones they carry, which databases are shardable,
// which collections are sharded on which key and how key ranges map to
// zones.
//
// Every mutation follows the same rules:
//   - Re-applying an identical change is a no-op
//   - A change that contradicts existing metadata fails with ErrAlreadyExists
//   - A change whose prerequisite is missing fails with ErrOrderDependency
//   - Intersecting zone ranges fail with ErrRangeOverlap
//
// Nothing is ever deleted, so a partially applied topology can always be
// completed by re-running the same sequence.
//
// Concurrency Model:
//   - Read operations use RLock for parallel access
//   - Write operations use Lock for exclusive access
//   - All returned data is copied to prevent races
//   - No locks held while probing shard endpoints
//
// Catalog satisfies initializer.Admin.
type Catalog struct {
	shards      map[string]*shardEntry
	byAddress   map[string]string // address -> shard id
	databases   map[string]*databaseEntry
	collections map[string]*collectionEntry // keyed by namespace string
	probe       Prober
	logger      *zap.Logger
	mu          sync.RWMutex
}

// CatalogOption configures a Catalog.
type CatalogOption func(*Catalog)

// WithProber sets the reachability check run before a shard is registered.
// A nil prober disables probing.
func WithProber(p Prober) CatalogOption {
	return func(c *Catalog) { c.probe = p }
}

// WithLogger sets the catalog logger.
func WithLogger(logger *zap.Logger) CatalogOption {
	return func(c *Catalog) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCatalog creates an empty catalog. By default shards are probed with
// DialProber(2 * time.Second).
//
// Example:
//
//	catalog := NewCatalog(WithProber(nil))
//	err := catalog.AddShard(ctx, topology.Shard{ID: "A", Address: "a:27018"})
func NewCatalog(opts ...CatalogOption) *Catalog {
	c := &Catalog{
		shards:      make(map[string]*shardEntry),
		byAddress:   make(map[string]string),
		databases:   make(map[string]*databaseEntry),
		collections: make(map[string]*collectionEntry),
		probe:       DialProber(2 * time.Second),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddShard registers a shard after checking that its address is reachable.
//
// Registration rules:
//   - Same id and address as an existing shard: no-op, no probe
//   - Same id, different address: ErrAlreadyExists
//   - Different id, address already registered: ErrAlreadyExists
//   - Probe failure: ErrConnection
func (c *Catalog) AddShard(ctx context.Context, shard topology.Shard) error {
	if err := shard.Validate(); err != nil {
		return err
	}

	c.mu.RLock()
	done, err := c.checkShardLocked(shard)
	c.mu.RUnlock()
	if err != nil || done {
		return err
	}

	if c.probe != nil {
		if err := c.probe(ctx, shard.Address); err != nil {
			return fmt.Errorf("%w: shard %s at %s unreachable: %v", topology.ErrConnection, shard.ID, shard.Address, err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another registration may have won the race while probing.
	if done, err := c.checkShardLocked(shard); err != nil || done {
		return err
	}
	c.shards[shard.ID] = &shardEntry{
		id:      shard.ID,
		address: shard.Address,
		zones:   make(map[string]bool),
	}
	c.byAddress[shard.Address] = shard.ID
	c.logger.Info("shard registered", zap.String("shard", shard.ID), zap.String("address", shard.Address))
	return nil
}

// checkShardLocked reports whether shard is already registered as given.
func (c *Catalog) checkShardLocked(shard topology.Shard) (bool, error) {
	if existing, ok := c.shards[shard.ID]; ok {
		if existing.address == shard.Address {
			return true, nil
		}
		return false, fmt.Errorf("%w: shard %s already registered at %s", topology.ErrAlreadyExists, shard.ID, existing.address)
	}
	if owner, ok := c.byAddress[shard.Address]; ok {
		return false, fmt.Errorf("%w: address %s already registered as shard %s", topology.ErrAlreadyExists, shard.Address, owner)
	}
	return false, nil
}

// AddShardToZone tags a registered shard with a zone. A shard may carry
// several zones; re-tagging with the same zone is a no-op.
func (c *Catalog) AddShardToZone(_ context.Context, shardID, zone string) error {
	if zone == "" {
		return fmt.Errorf("%w: zone label cannot be empty", topology.ErrInvalid)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.shards[shardID]
	if !ok {
		return fmt.Errorf("%w: shard %q is not registered", topology.ErrOrderDependency, shardID)
	}
	if entry.zones[zone] {
		return nil
	}
	entry.zones[zone] = true
	c.logger.Info("shard tagged", zap.String("shard", shardID), zap.String("zone", zone))
	return nil
}

// EnableSharding marks a database as shardable and picks its primary shard,
// the registered shard with the smallest id. Enabling twice is a no-op.
func (c *Catalog) EnableSharding(_ context.Context, database string) error {
	if database == "" {
		return fmt.Errorf("%w: database name cannot be empty", topology.ErrInvalid)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.databases[database]; ok {
		return nil
	}
	if len(c.shards) == 0 {
		return fmt.Errorf("%w: no shards registered for database %s", topology.ErrOrderDependency, database)
	}
	primary := c.sortedShardIDsLocked()[0]
	c.databases[database] = &databaseEntry{name: database, primary: primary}
	c.logger.Info("sharding enabled", zap.String("database", database), zap.String("primary", primary))
	return nil
}

// ShardCollection declares the shard key of a collection in a shardable
// database. Sharding again on the same key is a no-op; on a different key it
// fails with ErrAlreadyExists.
func (c *Catalog) ShardCollection(_ context.Context, ns topology.Namespace, key topology.ShardKey) error {
	if err := ns.Validate(); err != nil {
		return err
	}
	if err := key.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.databases[ns.Database]; !ok {
		return fmt.Errorf("%w: sharding is not enabled on database %s", topology.ErrOrderDependency, ns.Database)
	}
	if existing, ok := c.collections[ns.String()]; ok {
		if existing.key.Equal(key) {
			return nil
		}
		return fmt.Errorf("%w: %s already sharded on %s, requested %s", topology.ErrAlreadyExists, ns, existing.key, key)
	}
	c.collections[ns.String()] = &collectionEntry{
		ns:  ns,
		key: append(topology.ShardKey(nil), key...),
	}
	c.logger.Info("collection sharded", zap.Stringer("namespace", ns), zap.Stringer("key", key))
	return nil
}

// UpdateZoneKeyRange maps [r.Min, r.Max) of a sharded collection to r.Zone.
//
// The zone must already be carried by at least one shard. A range covering
// the same interval for the same zone is a no-op, even when its bounds are
// spelled with more key fields. Any intersection with another range of the
// collection fails with ErrRangeOverlap.
func (c *Catalog) UpdateZoneKeyRange(_ context.Context, ns topology.Namespace, r topology.ZoneRange) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	coll, ok := c.collections[ns.String()]
	if !ok {
		return fmt.Errorf("%w: collection %s is not sharded", topology.ErrOrderDependency, ns)
	}
	if err := r.Validate(coll.key); err != nil {
		return err
	}
	if len(c.zoneShardsLocked(r.Zone)) == 0 {
		return fmt.Errorf("%w: zone %s has no shards", topology.ErrOrderDependency, r.Zone)
	}
	for _, existing := range coll.ranges {
		if existing.Equivalent(r, coll.key) {
			return nil
		}
		if existing.Overlaps(r, coll.key) {
			return fmt.Errorf("%w: %s intersects %s on %s", topology.ErrRangeOverlap, r, existing, ns)
		}
	}

	coll.ranges = append(coll.ranges, r)
	key := coll.key
	sort.SliceStable(coll.ranges, func(i, j int) bool {
		a, _ := coll.ranges[i].Min.Extend(key)
		b, _ := coll.ranges[j].Min.Extend(key)
		return topology.CompareKeys(key, a, b) < 0
	})
	c.logger.Info("zone range assigned", zap.Stringer("namespace", ns), zap.Stringer("range", r))
	return nil
}

// Route is the placement decision for a document.
type Route struct {
	ShardID string `json:"shard"`
	Address string `json:"address"`
	Zone    string `json:"zone,omitempty"` // empty when no zone range matched
}

// Route returns the shard that owns doc in a sharded collection.
//
// Routing process:
//   - Document → shard key values (missing fields are null)
//   - Key values → zone range containing them
//   - Zone → lowest-id shard carrying that zone
//
// Documents outside every zone range go to the database primary shard.
func (c *Catalog) Route(ns topology.Namespace, doc map[string]any) (Route, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	coll, ok := c.collections[ns.String()]
	if !ok {
		return Route{}, fmt.Errorf("%w: collection %s is not sharded", topology.ErrOrderDependency, ns)
	}
	values, err := coll.key.Extract(doc)
	if err != nil {
		return Route{}, fmt.Errorf("route %s: %w", ns, err)
	}

	for _, r := range coll.ranges {
		if !r.Contains(coll.key, values) {
			continue
		}
		ids := c.zoneShardsLocked(r.Zone)
		if len(ids) == 0 {
			return Route{}, fmt.Errorf("%w: zone %s has no shards", topology.ErrOrderDependency, r.Zone)
		}
		return Route{ShardID: ids[0], Address: c.shards[ids[0]].address, Zone: r.Zone}, nil
	}

	db := c.databases[ns.Database]
	return Route{ShardID: db.primary, Address: c.shards[db.primary].address}, nil
}

// Shards returns every registered shard sorted by id.
func (c *Catalog) Shards() []topology.Shard {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]topology.Shard, 0, len(c.shards))
	for _, id := range c.sortedShardIDsLocked() {
		out = append(out, topology.Shard{ID: id, Address: c.shards[id].address})
	}
	return out
}

// ShardState is a registered shard and its zones.
type ShardState struct {
	ID      string   `json:"id"`
	Address string   `json:"address"`
	Zones   []string `json:"zones"`
}

// DatabaseState is a shardable database.
type DatabaseState struct {
	Name    string `json:"name"`
	Primary string `json:"primary"`
}

// CollectionState is a sharded collection with its zone ranges.
type CollectionState struct {
	Namespace topology.Namespace   `json:"namespace"`
	Key       topology.ShardKey    `json:"key"`
	Ranges    []topology.ZoneRange `json:"ranges"`
}

// Snapshot is a deterministic copy of the whole catalog. Two catalogs that
// received the same effective changes produce equal snapshots.
type Snapshot struct {
	Shards      []ShardState      `json:"shards"`
	Databases   []DatabaseState   `json:"databases"`
	Collections []CollectionState `json:"collections"`
}

// Snapshot returns a sorted deep copy of the catalog.
func (c *Catalog) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := Snapshot{
		Shards:      make([]ShardState, 0, len(c.shards)),
		Databases:   make([]DatabaseState, 0, len(c.databases)),
		Collections: make([]CollectionState, 0, len(c.collections)),
	}
	for _, id := range c.sortedShardIDsLocked() {
		entry := c.shards[id]
		zones := make([]string, 0, len(entry.zones))
		for z := range entry.zones {
			zones = append(zones, z)
		}
		slices.Sort(zones)
		snap.Shards = append(snap.Shards, ShardState{ID: id, Address: entry.address, Zones: zones})
	}
	for _, db := range c.databases {
		snap.Databases = append(snap.Databases, DatabaseState{Name: db.name, Primary: db.primary})
	}
	slices.SortFunc(snap.Databases, func(a, b DatabaseState) int { return strings.Compare(a.Name, b.Name) })
	for _, coll := range c.collections {
		snap.Collections = append(snap.Collections, CollectionState{
			Namespace: coll.ns,
			Key:       append(topology.ShardKey(nil), coll.key...),
			Ranges:    append([]topology.ZoneRange{}, coll.ranges...),
		})
	}
	slices.SortFunc(snap.Collections, func(a, b CollectionState) int {
		return strings.Compare(a.Namespace.String(), b.Namespace.String())
	})
	return snap
}

func (c *Catalog) sortedShardIDsLocked() []string {
	ids := make([]string, 0, len(c.shards))
	for id := range c.shards {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// zoneShardsLocked returns the ids of shards carrying zone, sorted.
func (c *Catalog) zoneShardsLocked(zone string) []string {
	var ids []string
	for _, id := range c.sortedShardIDsLocked() {
		if c.shards[id].zones[zone] {
			ids = append(ids, id)
		}
	}
	return ids
}
