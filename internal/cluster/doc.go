// Package cluster implements the HTTP/JSON protocol spoken between zonectl
// and the coordinator.
//
// # Protocol
//
// Every administrative operation is a JSON POST:
//
//	POST /admin/shards             {"shard": {"id": "A", "address": "a:27018"}}
//	POST /admin/shards/{id}/zones  {"zone": "EAST"}
//	POST /admin/databases          {"database": "D"}
//	POST /admin/collections        {"namespace": {...}, "key": [{"field": "region", "direction": 1}]}
//	POST /admin/ranges             {"namespace": {...}, "range": {"zone": "EAST", "min": {...}, "max": {...}}}
//
// Reads:
//
//	GET  /admin/topology           catalog snapshot
//	POST /route                    {"namespace": {...}, "document": {...}}
//
// Success is any 2xx status. Failures carry an ErrorResponse whose code
// names the taxonomy error:
//
//	Invalid          400
//	AlreadyExists    409
//	RangeOverlap     409
//	OrderDependency  412
//	Connection       502
//
// PostJSON and GetJSON turn those responses back into errors wrapping the
// matching topology sentinel, so callers can use errors.Is regardless of
// whether they talk to the coordinator in-process or over HTTP. Transport
// failures wrap topology.ErrConnection.
//
// Range bounds are JSON objects whose key order is significant; see
// topology.Bound.
package cluster
