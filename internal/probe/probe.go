// Package probe answers one question for the supervisor: is the monitored
// opportunity available right now?
//
// Probes may do network I/O. Callers bound them with WithTimeout and treat
// any error as "not available".
package probe

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/xucongyong/slotwatch/internal/config"
	"github.com/xucongyong/slotwatch/internal/logging"
)

// ErrTimeout is returned by WithTimeout when the inner probe overruns.
var ErrTimeout = errors.New("probe timed out")

// Probe reports whether the opportunity currently exists.
type Probe interface {
	Check(ctx context.Context) (bool, error)
}

// Func adapts a function to Probe.
type Func func(ctx context.Context) (bool, error)

// Check calls f.
func (f Func) Check(ctx context.Context) (bool, error) { return f(ctx) }

// Stub never reports availability. It is used when no probe target is configured.
type Stub struct {
	Logger *zap.Logger
}

// Check logs and returns false.
func (s Stub) Check(context.Context) (bool, error) {
	if s.Logger != nil {
		s.Logger.Info("Checking availability (stub probe, no target configured)")
	}
	return false, nil
}

type forced struct {
	inner  Probe
	value  bool
	logger *zap.Logger
}

// Forced returns inner unchanged when value is nil. Otherwise the returned
// probe answers *value and never calls inner.
func Forced(inner Probe, value *bool, logger *zap.Logger) Probe {
	if value == nil {
		return inner
	}
	return &forced{inner: inner, value: *value, logger: logger}
}

func (f *forced) Check(context.Context) (bool, error) {
	if f.logger != nil {
		f.logger.Info("Using forced availability flag", zap.Bool(logging.FieldAvailable, f.value))
	}
	return f.value, nil
}

type bounded struct {
	inner   Probe
	timeout time.Duration
}

// WithTimeout bounds every Check of inner. A zero timeout returns inner.
func WithTimeout(inner Probe, timeout time.Duration) Probe {
	if timeout <= 0 {
		return inner
	}
	return &bounded{inner: inner, timeout: timeout}
}

func (b *bounded) Check(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	type result struct {
		ok  bool
		err error
	}
	done := make(chan result, 1)
	go func() {
		ok, err := b.inner.Check(ctx)
		done <- result{ok, err}
	}()

	select {
	case r := <-done:
		return r.ok, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return false, fmt.Errorf("%w after %v", ErrTimeout, b.timeout)
		}
		return false, ctx.Err()
	}
}

// FromSettings builds the probe chain for s: the target probe (stub, HTTP or
// browser), bounded by the probe timeout, behind the forced override.
func FromSettings(s *config.Settings, logger *zap.Logger) (Probe, error) {
	var target Probe

	ps := s.Probe
	var match *regexp.Regexp
	if ps.Match != "" {
		re, err := regexp.Compile(ps.Match)
		if err != nil {
			return nil, fmt.Errorf("compiling probe match: %w", err)
		}
		match = re
	}

	switch {
	case ps.URL == "":
		target = Stub{Logger: logger}
	case ps.Selector != "":
		target = &Browser{URL: ps.URL, Selector: ps.Selector, Match: match}
	default:
		target = &HTTP{URL: ps.URL, Match: match}
	}

	return Forced(WithTimeout(target, ps.Timeout.Duration), s.ForceAvailable, logger), nil
}
