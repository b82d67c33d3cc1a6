package detect

import (
	"context"
	"log/slog"
)

// Cascade tries a ranked list of detector backends in order until
// one succeeds. This is how the primary model backend degrades to
// the fallback without callers knowing.
type Cascade struct {
	backends []Detector
	logger   *slog.Logger
}

// NewCascade creates a detector cascade.
// At least one backend is required.
func NewCascade(backends ...Detector) (*Cascade, error) {
	if len(backends) == 0 {
		return nil, ErrNoDetectors
	}
	return &Cascade{
		backends: backends,
		logger:   slog.Default().With("component", "detect.cascade"),
	}, nil
}

// NewCascadeWithLogger creates a detector cascade with a custom logger.
func NewCascadeWithLogger(logger *slog.Logger, backends ...Detector) (*Cascade, error) {
	c, err := NewCascade(backends...)
	if err != nil {
		return nil, err
	}
	c.logger = logger.With("component", "detect.cascade")
	return c, nil
}

// Name implements Detector.
func (c *Cascade) Name() string { return "cascade" }

// LoadModels succeeds when any backend loads. Backend load failures
// are logged and remembered only until a later backend succeeds.
func (c *Cascade) LoadModels(ctx context.Context) error {
	var errs []error

	for i, b := range c.backends {
		err := b.LoadModels(ctx)
		if err == nil {
			if i > 0 {
				c.logger.Warn("primary models unavailable, running degraded",
					"backend", b.Name(),
				)
			}
			return nil
		}

		errs = append(errs, WrapError(b.Name(), err))
		c.logger.Warn("backend load failed, trying next",
			"backend", b.Name(),
			"error", err,
		)

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	return &CascadeError{Errors: errs}
}

// Detect tries each backend until one returns a result. An empty
// face list is a successful (no face) outcome, not a reason to fall
// through to the next backend.
func (c *Cascade) Detect(ctx context.Context, jpeg []byte) ([]Face, error) {
	var errs []error

	for i, b := range c.backends {
		faces, err := b.Detect(ctx, jpeg)
		if err == nil {
			if i > 0 {
				c.logger.Debug("fallback backend served detection",
					"backend", b.Name(),
				)
			}
			return faces, nil
		}

		errs = append(errs, WrapError(b.Name(), err))
		c.logger.Warn("backend detection failed, trying next",
			"backend", b.Name(),
			"error", err,
		)

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, &CascadeError{Errors: errs}
}

// Close closes all backends.
func (c *Cascade) Close() error {
	var lastErr error
	for _, b := range c.backends {
		if err := b.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Backends returns the ranked backend list.
func (c *Cascade) Backends() []Detector {
	return c.backends
}

// Verify Cascade implements Detector at compile time.
var _ Detector = (*Cascade)(nil)
