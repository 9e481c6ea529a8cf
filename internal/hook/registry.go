package hook

import (
	"fmt"
	"sort"
)

// Policy decides how a recorded call is matched during replay.
type Policy string

const (
	// Sequenced calls are matched positionally: each replayed call consumes
	// the next unconsumed record for its operation, in original order, and
	// the argument tuples must agree. Use this for operations that can
	// return different values across one event as state mutates under them.
	Sequenced Policy = "sequenced"

	// Keyed calls are matched purely on signature, regardless of call
	// order. Use this only for operations guaranteed to return consistent
	// results throughout a single event dispatch.
	Keyed Policy = "keyed"
)

// Spec describes how one operation behaves under record and replay.
type Spec struct {
	Policy Policy

	// Mutating marks operations that write agent state. During replay these
	// are diverted to the session scratch overlay or rejected outright,
	// depending on driver configuration.
	Mutating bool
}

// Registry is the set of operations the interceptor knows how to record and
// replay for one framework version. The agent's call surface evolves over
// time, so the registry is built per version and extended with Register
// rather than hard-coded into the interceptor.
type Registry struct {
	version string
	ops     map[Op]Spec
}

// NewRegistry returns an empty registry tagged with a version string.
func NewRegistry(version string) *Registry {
	return &Registry{version: version, ops: make(map[Op]Spec)}
}

// Version returns the framework version this registry was built for.
func (r *Registry) Version() string { return r.version }

// Register adds or replaces the spec for an operation.
func (r *Registry) Register(op Op, spec Spec) {
	r.ops[op] = spec
}

// Lookup returns the spec for op and whether the registry knows it.
func (r *Registry) Lookup(op Op) (Spec, bool) {
	spec, ok := r.ops[op]
	return spec, ok
}

// Ops returns all registered operation names, sorted.
func (r *Registry) Ops() []Op {
	ops := make([]Op, 0, len(r.ops))
	for op := range r.ops {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	return ops
}

// ForVersion builds the registry for a known framework version.
// Supported versions: "2" (pre-secrets surface) and "3" (adds the secret
// hook tools). Unknown versions fail rather than guessing, since a call
// surface mismatch silently corrupts recordings.
func ForVersion(version string) (*Registry, error) {
	switch version {
	case "2", "3":
	default:
		return nil, fmt.Errorf("unsupported framework version %q (supported: 2, 3)", version)
	}

	r := NewRegistry(version)

	// Operations whose results can change between two calls within one
	// event, so replay must preserve call order.
	for _, op := range []Op{RelationGet, StatusGet, ActionGet, IsLeader, PebbleRequest, StateGet} {
		r.Register(op, Spec{Policy: Sequenced})
	}
	for _, op := range []Op{RelationSet, ApplicationVersionSet, StateSet, StateDelete, StorageAdd} {
		r.Register(op, Spec{Policy: Sequenced, Mutating: true})
	}

	// Operations stable throughout one dispatch.
	for _, op := range []Op{
		RelationIDs, RelationList, RelationModelGet, ConfigGet, ResourceGet,
		StorageGet, StorageList, NetworkGet, PlannedUnits,
	} {
		r.Register(op, Spec{Policy: Keyed})
	}
	for _, op := range []Op{StatusSet, JujuLog, ActionSet, ActionFail, ActionLog} {
		r.Register(op, Spec{Policy: Keyed, Mutating: true})
	}

	if version == "3" {
		r.Register(SecretGet, Spec{Policy: Sequenced})
		for _, op := range []Op{SecretSet, SecretGrant, SecretRevoke} {
			r.Register(op, Spec{Policy: Sequenced, Mutating: true})
		}
	}

	return r, nil
}

// Default returns the registry for the newest supported framework version.
func Default() *Registry {
	r, err := ForVersion("3")
	if err != nil {
		// ForVersion cannot fail for a supported constant.
		panic(err)
	}
	return r
}
