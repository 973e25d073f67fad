package controllers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/vowmarket-backend/api/responses"
	pkgerrors "github.com/angelmondragon/vowmarket-backend/pkg/errors"
	"github.com/angelmondragon/vowmarket-backend/pkg/logger"
)

type JobRunner interface {
	RunJob(ctx context.Context, name string) error
}

// RunJob triggers a scheduled job immediately on behalf of an admin.
func RunJob(runner JobRunner, name string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if runner == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "job runner unavailable"))
			return
		}
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithField(ctx, "job", name)
		}

		start := time.Now()
		if err := runner.RunJob(ctx, name); err != nil {
			responses.WriteError(ctx, logg, w, jobError(err))
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"job":         name,
			"status":      "completed",
			"duration_ms": time.Since(start).Milliseconds(),
		})
	}
}

// jobError keeps every per-item failure visible when a batch partially fails.
func jobError(err error) error {
	errs := multierr.Errors(err)
	if len(errs) <= 1 {
		return err
	}
	messages := make([]string, 0, len(errs))
	for _, e := range errs {
		messages = append(messages, e.Error())
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "job finished with errors").
		WithDetails(map[string]any{"errors": messages})
}
