package timeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/feedkeep/internal/model"
)

type loadFunc func(ctx context.Context, log *slog.Logger) LoadResult

// run executes fn under the account gate inside one span. Panics in fn
// come back as Failure.
func (o *options) run(ctx context.Context, engine string, acct model.AccountScope, op, anchor string, fn loadFunc) LoadResult {
	ctx, span := o.tracer.Start(ctx, "timeline."+op, trace.WithAttributes(
		attribute.String("feedkeep.engine", engine),
		attribute.String("feedkeep.account", acct.Key()),
		attribute.String("feedkeep.op", op),
		attribute.String("feedkeep.anchor", anchor),
	))
	defer span.End()

	v, err, shared := o.gate.Do(ctx, acct, engine+"\x00"+op+"\x00"+anchor, func(ctx context.Context) (res any, _ error) {
		log := o.logger.With(
			"run_id", o.runIDs.Generate(),
			"engine", engine,
			"account", acct.Key(),
			"op", op,
		)
		defer func() {
			if p := recover(); p != nil {
				log.Error("load panicked", "panic", p)
				res = Failure{Err: fmt.Errorf("%s: panic: %v", op, p)}
			}
		}()

		start := time.Now()
		r := fn(ctx, log)
		switch r := r.(type) {
		case Success:
			log.Info("load finished",
				"end_of_pagination", r.EndOfPagination,
				"duration", time.Since(start))
		case Failure:
			log.Warn("load failed",
				"error", r.Err,
				"duration", time.Since(start))
		}
		return r, nil
	})

	var res LoadResult
	if err != nil {
		res = Failure{Err: fmt.Errorf("%s: %w", op, err)}
	} else {
		res = v.(LoadResult)
	}

	span.SetAttributes(attribute.Bool("feedkeep.shared", shared))
	if f, ok := res.(Failure); ok {
		span.RecordError(f.Err)
		span.SetStatus(codes.Error, f.Err.Error())
	}
	return res
}
