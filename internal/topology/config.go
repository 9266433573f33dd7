package topology

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Config is the declarative cluster topology applied by the initializer.
type Config struct {
	Shards    []Shard          `yaml:"shards" json:"shards"`
	Zones     []ZoneAssignment `yaml:"zones" json:"zones"`
	Namespace Namespace        `yaml:"namespace" json:"namespace"`
	ShardKey  ShardKey         `yaml:"shardKey" json:"shardKey"`
	Ranges    []ZoneRange      `yaml:"ranges" json:"ranges"`
}

// LoadFile reads and parses a YAML topology file. The result is not validated.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read topology %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse topology %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a YAML topology document. Unknown fields are rejected.
func Parse(data []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return &cfg, nil
}

// Validate checks the whole topology before any cluster call is made and
// returns every violation joined into one error. Overlapping ranges wrap
// ErrRangeOverlap, ranges for untagged zones wrap ErrOrderDependency and
// everything else wraps ErrInvalid.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Shards) == 0 {
		errs = append(errs, fmt.Errorf("%w: no shards configured", ErrInvalid))
	}
	ids := make(map[string]bool, len(c.Shards))
	addrs := make(map[string]string, len(c.Shards))
	for _, s := range c.Shards {
		if err := s.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if ids[s.ID] {
			errs = append(errs, fmt.Errorf("%w: shard %s listed twice", ErrInvalid, s.ID))
			continue
		}
		if other, ok := addrs[s.Address]; ok {
			errs = append(errs, fmt.Errorf("%w: shards %s and %s share address %s", ErrInvalid, other, s.ID, s.Address))
		}
		ids[s.ID] = true
		addrs[s.Address] = s.ID
	}

	tagged := make(map[string]string, len(c.Zones))
	zones := make(map[string]bool)
	for _, z := range c.Zones {
		if z.Zone == "" {
			errs = append(errs, fmt.Errorf("%w: shard %s has an empty zone label", ErrInvalid, z.ShardID))
			continue
		}
		if !ids[z.ShardID] {
			errs = append(errs, fmt.Errorf("%w: zone %s references unknown shard %q", ErrOrderDependency, z.Zone, z.ShardID))
			continue
		}
		if prev, ok := tagged[z.ShardID]; ok {
			errs = append(errs, fmt.Errorf("%w: shard %s tagged with both %s and %s", ErrInvalid, z.ShardID, prev, z.Zone))
			continue
		}
		tagged[z.ShardID] = z.Zone
		zones[z.Zone] = true
	}
	for _, s := range c.Shards {
		if s.ID != "" && ids[s.ID] && tagged[s.ID] == "" {
			errs = append(errs, fmt.Errorf("%w: shard %s has no zone", ErrInvalid, s.ID))
		}
	}

	if err := c.Namespace.Validate(); err != nil {
		errs = append(errs, err)
	}
	keyErr := c.ShardKey.Validate()
	if keyErr != nil {
		errs = append(errs, keyErr)
	}

	if keyErr == nil {
		var valid []ZoneRange
		for _, r := range c.Ranges {
			if err := r.Validate(c.ShardKey); err != nil {
				errs = append(errs, err)
				continue
			}
			if !zones[r.Zone] {
				errs = append(errs, fmt.Errorf("%w: range %s references zone %s with no tagged shard", ErrOrderDependency, r, r.Zone))
			}
			for _, v := range valid {
				if r.Overlaps(v, c.ShardKey) {
					errs = append(errs, fmt.Errorf("%w: %s intersects %s", ErrRangeOverlap, r, v))
				}
			}
			valid = append(valid, r)
		}
	}

	return errors.Join(errs...)
}

// SortedRanges returns the ranges ordered by their min bound under the shard key.
// Ranges whose bounds do not fit the key keep their relative order at the end.
func (c *Config) SortedRanges() []ZoneRange {
	out := append([]ZoneRange(nil), c.Ranges...)
	sort.SliceStable(out, func(i, j int) bool {
		a, errA := out[i].Min.Extend(c.ShardKey)
		b, errB := out[j].Min.Extend(c.ShardKey)
		if errA != nil || errB != nil {
			return errA == nil && errB != nil
		}
		return CompareKeys(c.ShardKey, a, b) < 0
	})
	return out
}

// ZoneOf returns the zone the config tags shardID with.
func (c *Config) ZoneOf(shardID string) (string, bool) {
	for _, z := range c.Zones {
		if z.ShardID == shardID {
			return z.Zone, true
		}
	}
	return "", false
}
