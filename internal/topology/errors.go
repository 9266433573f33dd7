package topology

import "errors"

// Error taxonomy shared by validation, the coordinator catalog and every
// admin client. Callers match with errors.Is; concrete errors wrap one of
// these with context via fmt.Errorf("...: %w").
var (
	// ErrConnection is returned when the coordinator or a named shard
	// endpoint cannot be reached.
	ErrConnection = errors.New("connection error")

	// ErrAlreadyExists is returned when an entity exists with a configuration
	// that is incompatible with the requested one, e.g. a collection already
	// sharded on a different key.
	ErrAlreadyExists = errors.New("already exists with incompatible configuration")

	// ErrRangeOverlap is returned when two zone ranges of one collection intersect.
	ErrRangeOverlap = errors.New("zone range overlap")

	// ErrOrderDependency is returned when a prerequisite step has not been
	// applied, e.g. tagging a shard that is not registered.
	ErrOrderDependency = errors.New("order dependency not satisfied")

	// ErrInvalid is returned for malformed input.
	ErrInvalid = errors.New("invalid request")
)

// Error codes used on the coordinator wire protocol.
const (
	CodeConnection      = "Connection"
	CodeAlreadyExists   = "AlreadyExists"
	CodeRangeOverlap    = "RangeOverlap"
	CodeOrderDependency = "OrderDependency"
	CodeInvalid         = "Invalid"
	CodeInternal        = "Internal"
)

var codes = []struct {
	code string
	err  error
}{
	{CodeConnection, ErrConnection},
	{CodeAlreadyExists, ErrAlreadyExists},
	{CodeRangeOverlap, ErrRangeOverlap},
	{CodeOrderDependency, ErrOrderDependency},
	{CodeInvalid, ErrInvalid},
}

// Code returns the wire code of the taxonomy error err wraps, or CodeInternal.
func Code(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}

// Sentinel returns the taxonomy error for a wire code, or nil if the code is unknown.
func Sentinel(code string) error {
	for _, c := range codes {
		if c.code == code {
			return c.err
		}
	}
	return nil
}
