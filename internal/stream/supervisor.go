package stream

import (
	"context"
	"log/slog"

	"github.com/lumenhq/lumen/internal/upstream"
	"github.com/lumenhq/lumen/internal/variant"
)

// CallBuilder prepares the upstream call for one variant. The supervisor
// calls it again on fallback because the fallback variant carries its own
// model, system prompt and history window.
type CallBuilder func(ctx context.Context, v variant.Variant) (upstream.Call, error)

// Supervisor runs a stream and applies the at-most-once empty-response retry.
type Supervisor struct {
	mux    *Multiplexer
	logger *slog.Logger
}

// NewSupervisor creates a retry supervisor over the given multiplexer.
func NewSupervisor(log *slog.Logger, mux *Multiplexer) *Supervisor {
	if log == nil {
		log = slog.Default()
	}
	return &Supervisor{
		mux:    mux,
		logger: log.With(slog.String("service", "supervisor")),
	}
}

// Run streams the turn on v. If v is flagged RetryOnEmpty and the stream
// completed without visible output, it announces a retry event and re-issues
// the turn exactly once on the designated fallback, accepting that result
// whatever it is. Errors propagate without retry; terminal events are the
// caller's job so they happen exactly once.
//
// Returns the final outcome and the variant that produced it.
func (s *Supervisor) Run(ctx context.Context, build CallBuilder, v variant.Variant, userID string, sink Sink) (Outcome, variant.Variant, error) {
	call, err := build(ctx, v)
	if err != nil {
		return Outcome{}, v, err
	}
	outcome, err := s.mux.Run(ctx, call, userID, sink)
	if err != nil {
		return outcome, v, err
	}

	spec := variant.SpecFor(v)
	if !spec.RetryOnEmpty || !outcome.Empty() {
		return outcome, v, nil
	}

	fallback := spec.FallbackTo
	if fallback == "" || fallback == v {
		return outcome, v, nil
	}
	s.logger.Info("empty response, retrying on fallback",
		slog.String("variant", string(v)), slog.String("fallback", string(fallback)))
	if err := sink.Emit(RetryEvent(string(v), string(fallback))); err != nil {
		return outcome, v, err
	}

	call, err = build(ctx, fallback)
	if err != nil {
		return outcome, v, err
	}
	outcome, err = s.mux.Run(ctx, call, userID, sink)
	return outcome, fallback, err
}
