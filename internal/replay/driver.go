package replay

import (
	"context"
	"log/slog"

	"github.com/blackwell-systems/unitreplay/internal/hook"
	"github.com/blackwell-systems/unitreplay/internal/intercept"
	"github.com/blackwell-systems/unitreplay/internal/store"
)

// Entrypoint is the framework entry point driven by a replay: it dispatches
// one event against the given environment, making every hook-tool call
// through backend. Implementations are either in-process Go handlers or an
// external dispatch executable (see ExecEntrypoint).
type Entrypoint interface {
	Dispatch(ctx context.Context, env map[string]string, backend hook.Backend) error
}

// EntrypointFunc adapts a function to the Entrypoint interface.
type EntrypointFunc func(ctx context.Context, env map[string]string, backend hook.Backend) error

// Dispatch calls f.
func (f EntrypointFunc) Dispatch(ctx context.Context, env map[string]string, backend hook.Backend) error {
	return f(ctx, env, backend)
}

// Result reports what one replayed invocation did.
type Result struct {
	SessionID string
	EventName string
	// Writes are the mutating calls the handler issued, diverted to the
	// session scratch (empty under WritesRejected unless none were issued).
	Writes []intercept.Write
	// Remaining counts sequenced call records the handler never consumed.
	// Non-zero is not an error, but it is worth surfacing: the handler
	// called fewer tools than the recorded execution did.
	Remaining int
}

// Driver replays committed event records from one store.
type Driver struct {
	store    *store.Store
	registry *hook.Registry
	logger   *slog.Logger
}

// NewDriver returns a Driver over st, classifying calls with registry.
func NewDriver(st *store.Store, registry *hook.Registry, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{store: st, registry: registry, logger: logger}
}

// Option adjusts one replay invocation.
type Option func(*options)

type options struct {
	eventName string
	policy    intercept.WritePolicy
}

// WithEventName substitutes a different event name than what was recorded,
// reusing the recorded call and environment data. An explicit escape hatch,
// not the default path.
func WithEventName(name string) Option {
	return func(o *options) { o.eventName = name }
}

// WithWritePolicy selects how mutating calls are handled during the replay.
func WithWritePolicy(policy intercept.WritePolicy) Option {
	return func(o *options) { o.policy = policy }
}

// Replay loads the record at index, builds a fresh session, and drives
// entry through it. The entry point's error is returned verbatim: a replay
// failure is the tool's whole point of existing, so nothing here retries or
// masks it. Store errors (NotFound, corruption) propagate unmodified.
func (d *Driver) Replay(ctx context.Context, index int, entry Entrypoint, opts ...Option) (*Result, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	rec, err := d.store.Get(index)
	if err != nil {
		return nil, err
	}

	sess := NewSession(rec, d.registry, o.policy, o.eventName)
	d.logger.Info("replaying event",
		slog.Int("index", index),
		slog.String("event", sess.EventName),
		slog.String("recorded_at", rec.RecordedAt.String()),
		slog.String("session", sess.ID),
	)

	if err := entry.Dispatch(ctx, sess.Env, sess.Backend); err != nil {
		return nil, err
	}

	res := &Result{
		SessionID: sess.ID,
		EventName: sess.EventName,
		Writes:    sess.Backend.Writes(),
		Remaining: sess.Backend.Table().Remaining(),
	}
	if res.Remaining > 0 {
		d.logger.Warn("replay left recorded calls unconsumed",
			slog.Int("remaining", res.Remaining),
			slog.String("session", sess.ID),
		)
	}
	return res, nil
}
