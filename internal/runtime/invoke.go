package runtime

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/aretw0/mosaic/pkg/domain"
)

// invoke calls the handler function. Panics, returned errors and arity
// mismatches all come back as *domain.HandlerExecutionError.
func (e *Engine) invoke(ctx context.Context, spec domain.HandlerSpec, args domain.Args) (res domain.Result, err error) {
	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Debug("handler panic", "handler", spec.ID, "stack", string(debug.Stack()))
			res = domain.Result{}
			err = &domain.HandlerExecutionError{Handler: spec.ID, Err: fmt.Errorf("panic: %v", r), Panic: r}
		}
	}()

	res, err = spec.Fn(ctx, args)
	if err != nil {
		return domain.Result{}, &domain.HandlerExecutionError{Handler: spec.ID, Err: err}
	}
	if !res.Suppressed() && len(res.Values()) != len(spec.Outputs) {
		return domain.Result{}, &domain.HandlerExecutionError{
			Handler: spec.ID,
			Err:     fmt.Errorf("%w: got %d, want %d", domain.ErrOutputArity, len(res.Values()), len(spec.Outputs)),
		}
	}
	return res, nil
}
