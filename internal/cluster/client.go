package cluster

import (
	"context"
	"net/url"
	"strings"

	"github.com/dreamware/zonectl/internal/coordinator"
	"github.com/dreamware/zonectl/internal/topology"
)

// Client talks to a zonectl coordinator over its HTTP/JSON admin protocol.
// It satisfies initializer.Admin.
type Client struct {
	baseURL string
}

// NewClient creates a client for the coordinator at addr, which is either a
// URL ("http://coord:8080") or a bare host:port.
func NewClient(addr string) *Client {
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "http://" + addr
	}
	return &Client{baseURL: strings.TrimRight(addr, "/")}
}

// BaseURL returns the coordinator URL requests are sent to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// AddShard registers shard with POST /admin/shards.
func (c *Client) AddShard(ctx context.Context, shard topology.Shard) error {
	return PostJSON(ctx, c.baseURL+"/admin/shards", AddShardRequest{Shard: shard}, nil)
}

// AddShardToZone tags shardID with zone via POST /admin/shards/{id}/zones.
// The shard id is path-escaped.
func (c *Client) AddShardToZone(ctx context.Context, shardID, zone string) error {
	u := c.baseURL + "/admin/shards/" + url.PathEscape(shardID) + "/zones"
	return PostJSON(ctx, u, AddShardToZoneRequest{Zone: zone}, nil)
}

// EnableSharding enables sharding on database via POST /admin/databases.
func (c *Client) EnableSharding(ctx context.Context, database string) error {
	return PostJSON(ctx, c.baseURL+"/admin/databases", EnableShardingRequest{Database: database}, nil)
}

// ShardCollection shards ns on key via POST /admin/collections.
func (c *Client) ShardCollection(ctx context.Context, ns topology.Namespace, key topology.ShardKey) error {
	return PostJSON(ctx, c.baseURL+"/admin/collections", ShardCollectionRequest{Namespace: ns, Key: key}, nil)
}

// UpdateZoneKeyRange assigns r to its zone via POST /admin/ranges. Bound
// field order is preserved on the wire.
func (c *Client) UpdateZoneKeyRange(ctx context.Context, ns topology.Namespace, r topology.ZoneRange) error {
	return PostJSON(ctx, c.baseURL+"/admin/ranges", UpdateZoneKeyRangeRequest{Namespace: ns, Range: r}, nil)
}

// Topology fetches the coordinator's catalog snapshot.
func (c *Client) Topology(ctx context.Context) (coordinator.Snapshot, error) {
	var snap coordinator.Snapshot
	err := GetJSON(ctx, c.baseURL+"/admin/topology", &snap)
	return snap, err
}

// Route asks the coordinator which shard owns doc.
func (c *Client) Route(ctx context.Context, ns topology.Namespace, doc map[string]any) (coordinator.Route, error) {
	var route coordinator.Route
	err := PostJSON(ctx, c.baseURL+"/route", RouteRequest{Namespace: ns, Document: doc}, &route)
	return route, err
}
