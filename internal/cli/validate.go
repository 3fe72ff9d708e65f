package cli

import (
	"context"
	"errors"
)

// Validate checks the named models, or every model in the workspace when
// none is named. Each report is printed; ErrInvalidModel is returned when
// any model has problems.
func Validate(ctx context.Context, opts Options, refs ...string) error {
	logger, err := createLogger(opts.LogLevel)
	if err != nil {
		return err
	}
	eng, err := createEngine(opts, logger)
	if err != nil {
		return err
	}

	if len(refs) == 0 {
		if refs, err = eng.Models(ctx); err != nil {
			return err
		}
		if len(refs) == 0 {
			printSystemMessage(opts.out(), "No models to validate.")
			return nil
		}
	}

	invalid := false
	for _, ref := range refs {
		m, err := resolveModel(ctx, eng, opts.Dir, ref)
		if err != nil {
			return err
		}
		err = writeValidation(opts, m, eng.Validate(m))
		switch {
		case errors.Is(err, ErrInvalidModel):
			invalid = true
		case err != nil:
			return err
		}
	}
	if invalid {
		return ErrInvalidModel
	}
	return nil
}
