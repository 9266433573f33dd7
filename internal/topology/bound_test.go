package topology

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var regionKey = ShardKey{{Field: "region", Direction: 1}, {Field: "id", Direction: 1}}

func TestCompareValues(t *testing.T) {
	tests := []struct {
		name string
		a, b any
		want int
	}{
		{"minkey below null", MinKey{}, nil, -1},
		{"null below number", nil, int64(0), -1},
		{"number below string", float64(1e9), "", -1},
		{"string below bool", "zzz", false, -1},
		{"bool below maxkey", true, MaxKey{}, -1},
		{"int and float equal", int64(3), float64(3), 0},
		{"int below float", int64(3), 3.5, -1},
		{"strings bytewise", "EAST", "EAST~", -1},
		{"prefix extension below tilde", "EASTERN", "EAST~", -1},
		{"false below true", false, true, -1},
		{"maxkey equal", MaxKey{}, MaxKey{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CompareValues(tt.a, tt.b))
			assert.Equal(t, -tt.want, CompareValues(tt.b, tt.a))
		})
	}
}

func TestCompareKeysDescending(t *testing.T) {
	key := ShardKey{{Field: "ts", Direction: -1}}
	assert.Equal(t, 1, CompareKeys(key, []any{int64(1)}, []any{int64(2)}))
	assert.Equal(t, -1, CompareKeys(key, []any{int64(2)}, []any{int64(1)}))
}

func TestBoundExtend(t *testing.T) {
	full, err := NewBound("region", "EAST").Extend(regionKey)
	require.NoError(t, err)
	assert.Equal(t, []any{"EAST", MinKey{}}, full)

	descending := ShardKey{{Field: "region", Direction: 1}, {Field: "id", Direction: -1}}
	full, err = NewBound("region", "EAST").Extend(descending)
	require.NoError(t, err)
	assert.Equal(t, []any{"EAST", MaxKey{}}, full, "padding sorts first under a descending field")

	_, err = NewBound("id", 1).Extend(regionKey)
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = Bound{}.Extend(regionKey)
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = NewBound("region", "a", "id", 1, "extra", 2).Extend(regionKey)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestZoneRangeContains(t *testing.T) {
	east := ZoneRange{Zone: "EAST", Min: NewBound("region", "EAST"), Max: NewBound("region", "EAST~")}

	tests := []struct {
		name   string
		values []any
		want   bool
	}{
		{"exact prefix", []any{"EAST", int64(1)}, true},
		{"null id", []any{"EAST", nil}, true},
		{"longer region", []any{"EASTERN", int64(1)}, true},
		{"below min", []any{"EAS", int64(1)}, false},
		{"at max", []any{"EAST~", MinKey{}}, false},
		{"other region", []any{"WEST", int64(1)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, east.Contains(regionKey, tt.values))
		})
	}
}

func TestZoneRangeOverlaps(t *testing.T) {
	east := ZoneRange{Zone: "EAST", Min: NewBound("region", "EAST"), Max: NewBound("region", "EAST~")}
	west := ZoneRange{Zone: "WEST", Min: NewBound("region", "WEST"), Max: NewBound("region", "WEST~")}
	adjacent := ZoneRange{Zone: "X", Min: NewBound("region", "EAST~"), Max: NewBound("region", "F")}
	inside := ZoneRange{Zone: "Y", Min: NewBound("region", "EASTERN"), Max: NewBound("region", "EASTERO")}

	assert.False(t, east.Overlaps(west, regionKey))
	assert.False(t, east.Overlaps(adjacent, regionKey), "half-open ranges sharing a boundary do not overlap")
	assert.True(t, east.Overlaps(inside, regionKey))
	assert.True(t, inside.Overlaps(east, regionKey))
	assert.True(t, east.Overlaps(east, regionKey))
}

func TestBoundJSONRoundTripKeepsOrder(t *testing.T) {
	b := NewBound("region", "EAST", "id", MinKey{})

	data, err := json.Marshal(b)
	require.NoError(t, err)
	assert.JSONEq(t, `{"region":"EAST","id":{"$minKey":1}}`, string(data))
	assert.Equal(t, `{"region":"EAST","id":{"$minKey":1}}`, string(data))

	var got Bound
	require.NoError(t, json.Unmarshal([]byte(`{"region":"EAST","id":{"$minKey":1}}`), &got))
	assert.True(t, b.Equal(got))
	assert.Equal(t, "region", got[0].Field)
	assert.Equal(t, "id", got[1].Field)
}

func TestBoundUnmarshalJSONNumbers(t *testing.T) {
	var got Bound
	require.NoError(t, json.Unmarshal([]byte(`{"id":42,"score":1.5}`), &got))
	assert.Equal(t, Bound{{Field: "id", Value: int64(42)}, {Field: "score", Value: 1.5}}, got)

	assert.Error(t, json.Unmarshal([]byte(`["id"]`), &got))
	assert.Error(t, json.Unmarshal([]byte(`{"id":[1,2]}`), &got))
}

func TestBoundString(t *testing.T) {
	assert.Equal(t, `{region: "EAST", id: MinKey}`, NewBound("region", "EAST", "id", MinKey{}).String())
}

func TestShardKeyExtract(t *testing.T) {
	key := ShardKey{{Field: "region", Direction: 1}, {Field: "meta.id", Direction: 1}}

	values, err := key.Extract(map[string]any{
		"region": "EAST",
		"meta":   map[string]any{"id": 7},
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"EAST", int64(7)}, values)

	values, err = key.Extract(map[string]any{"region": "EAST"})
	require.NoError(t, err)
	assert.Equal(t, []any{"EAST", nil}, values)

	_, err = key.Extract(map[string]any{"region": []any{"a"}})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestCodeRoundTrip(t *testing.T) {
	for _, sentinel := range []error{ErrConnection, ErrAlreadyExists, ErrRangeOverlap, ErrOrderDependency, ErrInvalid} {
		assert.Equal(t, sentinel, Sentinel(Code(sentinel)))
	}
	assert.Equal(t, CodeInternal, Code(assert.AnError))
	assert.Nil(t, Sentinel("Bogus"))
}

func TestZoneRangeContainsDescendingTrailingField(t *testing.T) {
	key := ShardKey{{Field: "region", Direction: 1}, {Field: "id", Direction: -1}}
	west := ZoneRange{Zone: "WEST", Min: NewBound("region", "WEST"), Max: NewBound("region", "WEST~")}

	assert.True(t, west.Contains(key, []any{"WEST", int64(5)}))
	assert.True(t, west.Contains(key, []any{"WEST", nil}))
	assert.True(t, west.Contains(key, []any{"WEST", MinKey{}}))
	assert.False(t, west.Contains(key, []any{"WEST~", int64(5)}))
	assert.False(t, west.Contains(key, []any{"WESS", int64(5)}))
}

func TestZoneRangeEquivalent(t *testing.T) {
	short := ZoneRange{Zone: "EAST", Min: NewBound("region", "EAST"), Max: NewBound("region", "EAST~")}
	long := ZoneRange{
		Zone: "EAST",
		Min:  NewBound("region", "EAST", "id", MinKey{}),
		Max:  NewBound("region", "EAST~", "id", MinKey{}),
	}
	assert.False(t, short.Equal(long))
	assert.True(t, short.Equivalent(long, regionKey))

	shifted := long
	shifted.Min = NewBound("region", "EAST", "id", 0)
	assert.False(t, short.Equivalent(shifted, regionKey))

	relabeled := long
	relabeled.Zone = "WEST"
	assert.False(t, short.Equivalent(relabeled, regionKey))
}
