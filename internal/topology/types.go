package topology

import (
	"fmt"
	"net"
	"strings"
)

// Shard is an independent partition of the cluster. Address is either a
// single host:port or a replica set seed list "set/host:port[,host:port...]",
// the forms addShard accepts.
type Shard struct {
	ID      string `yaml:"id" json:"id"`
	Address string `yaml:"address" json:"address"`
}

// Validate checks that the shard has an id and a well-formed address.
func (s Shard) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("%w: shard id cannot be empty", ErrInvalid)
	}
	if _, _, err := SplitAddress(s.Address); err != nil {
		return fmt.Errorf("%w: shard %s: %v", ErrInvalid, s.ID, err)
	}
	return nil
}

// SplitAddress splits a shard address into its replica set name, empty for
// a single host, and its host:port members.
func SplitAddress(addr string) (string, []string, error) {
	set, list := "", addr
	if name, rest, ok := strings.Cut(addr, "/"); ok {
		if name == "" {
			return "", nil, fmt.Errorf("address %q has an empty replica set name", addr)
		}
		set, list = name, rest
	}
	hosts := strings.Split(list, ",")
	for _, h := range hosts {
		host, port, err := net.SplitHostPort(h)
		if err != nil || host == "" || port == "" {
			return "", nil, fmt.Errorf("address %q: member %q must be host:port", addr, h)
		}
	}
	return set, hosts, nil
}

// ZoneAssignment tags a shard with a zone label.
type ZoneAssignment struct {
	ShardID string `yaml:"shard" json:"shard"`
	Zone    string `yaml:"zone" json:"zone"`
}

// Namespace names a collection inside a database.
type Namespace struct {
	Database   string `yaml:"database" json:"database"`
	Collection string `yaml:"collection" json:"collection"`
}

func (n Namespace) String() string {
	return n.Database + "." + n.Collection
}

// Validate checks that both parts are set and the database name has no dot.
func (n Namespace) Validate() error {
	if n.Database == "" || n.Collection == "" {
		return fmt.Errorf("%w: namespace %q needs a database and a collection", ErrInvalid, n.String())
	}
	if strings.Contains(n.Database, ".") {
		return fmt.Errorf("%w: database name %q cannot contain '.'", ErrInvalid, n.Database)
	}
	return nil
}

// ParseNamespace splits "db.collection" at the first dot.
func ParseNamespace(s string) (Namespace, error) {
	db, coll, ok := strings.Cut(s, ".")
	ns := Namespace{Database: db, Collection: coll}
	if !ok {
		return ns, fmt.Errorf("%w: namespace %q must be database.collection", ErrInvalid, s)
	}
	return ns, ns.Validate()
}

// KeyField is one field of a compound shard key. Direction is 1 or -1.
type KeyField struct {
	Field     string `yaml:"field" json:"field"`
	Direction int    `yaml:"direction" json:"direction"`
}

// ShardKey is the ordered list of fields that routes documents to shards.
type ShardKey []KeyField

// Validate checks that the key is non-empty, fields are unique and every
// direction is 1 or -1.
func (k ShardKey) Validate() error {
	if len(k) == 0 {
		return fmt.Errorf("%w: shard key cannot be empty", ErrInvalid)
	}
	seen := make(map[string]bool, len(k))
	for _, f := range k {
		if f.Field == "" {
			return fmt.Errorf("%w: shard key field name cannot be empty", ErrInvalid)
		}
		if seen[f.Field] {
			return fmt.Errorf("%w: shard key field %q repeated", ErrInvalid, f.Field)
		}
		seen[f.Field] = true
		if f.Direction != 1 && f.Direction != -1 {
			return fmt.Errorf("%w: shard key field %q direction %d must be 1 or -1", ErrInvalid, f.Field, f.Direction)
		}
	}
	return nil
}

// Equal reports whether both keys name the same fields in the same order
// with the same directions.
func (k ShardKey) Equal(other ShardKey) bool {
	if len(k) != len(other) {
		return false
	}
	for i := range k {
		if k[i] != other[i] {
			return false
		}
	}
	return true
}

func (k ShardKey) String() string {
	parts := make([]string, len(k))
	for i, f := range k {
		parts[i] = fmt.Sprintf("%s: %d", f.Field, f.Direction)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Extract returns the document's values for every key field, in key order.
// Dotted field names walk nested documents. Missing fields yield nil, which
// orders like null.
func (k ShardKey) Extract(doc map[string]any) ([]any, error) {
	out := make([]any, len(k))
	for i, f := range k {
		raw := lookup(doc, f.Field)
		v, err := NormalizeValue(raw)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Field, err)
		}
		out[i] = v
	}
	return out, nil
}

func lookup(doc map[string]any, path string) any {
	var cur any = doc
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[part]
	}
	return cur
}

// ZoneRange maps the half-open key interval [Min, Max) to a zone.
type ZoneRange struct {
	Zone string `yaml:"zone" json:"zone"`
	Min  Bound  `yaml:"min" json:"min"`
	Max  Bound  `yaml:"max" json:"max"`
}

func (r ZoneRange) String() string {
	return fmt.Sprintf("%s:[%s, %s)", r.Zone, r.Min, r.Max)
}

// Validate checks that both bounds are prefixes of key and Min < Max.
func (r ZoneRange) Validate(key ShardKey) error {
	if r.Zone == "" {
		return fmt.Errorf("%w: zone range %s has no zone", ErrInvalid, r)
	}
	lo, err := r.Min.Extend(key)
	if err != nil {
		return fmt.Errorf("zone range %s min: %w", r, err)
	}
	hi, err := r.Max.Extend(key)
	if err != nil {
		return fmt.Errorf("zone range %s max: %w", r, err)
	}
	if CompareKeys(key, lo, hi) >= 0 {
		return fmt.Errorf("%w: zone range %s min must be below max", ErrInvalid, r)
	}
	return nil
}

// Equal reports whether both ranges have the same zone and bounds.
func (r ZoneRange) Equal(other ZoneRange) bool {
	return r.Zone == other.Zone && r.Min.Equal(other.Min) && r.Max.Equal(other.Max)
}

// Equivalent reports whether both ranges name the same zone and cover the
// same key interval once their bounds are padded to the full key, so
// {region: "EAST"} and {region: "EAST", id: MinKey} match on an ascending id.
func (r ZoneRange) Equivalent(other ZoneRange, key ShardKey) bool {
	if r.Zone != other.Zone {
		return false
	}
	aLo, errA := r.Min.Extend(key)
	bLo, errB := other.Min.Extend(key)
	if errA != nil || errB != nil || CompareKeys(key, aLo, bLo) != 0 {
		return false
	}
	aHi, errA := r.Max.Extend(key)
	bHi, errB := other.Max.Extend(key)
	return errA == nil && errB == nil && CompareKeys(key, aHi, bHi) == 0
}

// Overlaps reports whether the two ranges intersect under key ordering.
// Both ranges must already be valid for key.
func (r ZoneRange) Overlaps(other ZoneRange, key ShardKey) bool {
	aLo, _ := r.Min.Extend(key)
	aHi, _ := r.Max.Extend(key)
	bLo, _ := other.Min.Extend(key)
	bHi, _ := other.Max.Extend(key)
	return CompareKeys(key, aLo, bHi) < 0 && CompareKeys(key, bLo, aHi) < 0
}

// Contains reports whether the extracted key values fall inside [Min, Max).
func (r ZoneRange) Contains(key ShardKey, values []any) bool {
	lo, err := r.Min.Extend(key)
	if err != nil {
		return false
	}
	hi, err := r.Max.Extend(key)
	if err != nil {
		return false
	}
	return CompareKeys(key, lo, values) <= 0 && CompareKeys(key, values, hi) < 0
}
