package generator

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/AntonStoeckl/order-lifecycle-streams/lifecycle"
	"github.com/AntonStoeckl/order-lifecycle-streams/streams"
)

func (g *Generator) logDebug(ctx context.Context, msg string, args ...any) {
	if g.logger != nil {
		g.logger.Debug(msg, args...)
	}

	if g.contextualLogger != nil {
		g.contextualLogger.DebugContext(ctx, msg, args...)
	}
}

func (g *Generator) logCorrupt(ctx context.Context, msg string, entityID int, err error) {
	args := []any{logAttrEntityID, entityID}

	var corrupt *lifecycle.CorruptValueError
	if errors.As(err, &corrupt) {
		args = append(args, logAttrKey, corrupt.Key, logAttrRaw, corrupt.Raw)
	}

	if g.logger != nil {
		g.logger.Warn(msg, args...)
	}

	if g.contextualLogger != nil {
		g.contextualLogger.WarnContext(ctx, msg, args...)
	}
}

func (g *Generator) logError(ctx context.Context, msg string, err error, args ...any) {
	allArgs := append([]any{logAttrError, err.Error()}, args...)

	if g.logger != nil {
		g.logger.Error(msg, allArgs...)
	}

	if g.contextualLogger != nil {
		g.contextualLogger.ErrorContext(ctx, msg, allArgs...)
	}
}

func (g *Generator) recordEmit(ctx context.Context, event lifecycle.Event, status string, duration time.Duration) {
	labels := map[string]string{labelStatus: status}
	if event.Label != "" {
		labels[labelStage] = event.Label
	}

	streams.RecordDuration(ctx, g.metricsCollector, metricEmitDuration, duration, labels)

	if status == streams.StatusSuccess {
		streams.IncrementCounter(ctx, g.metricsCollector, metricEventsEmitted, labels)
		return
	}

	streams.IncrementCounter(ctx, g.metricsCollector, metricEmitErrors, labels)
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
