package redisengine

import (
	"context"
	"math"
	"time"

	"github.com/AntonStoeckl/order-lifecycle-streams/streams"
)

const (
	logMsgCommandExecuted = "executed redis command: "
	logMsgCommandFailed   = "redis command failed"
	logMsgUnknownGroup    = "read against missing consumer group"
	logAttrError          = "error"
	logAttrCommand        = "command"
	logAttrLog            = "log"
	logAttrGroup          = "group"
	logAttrConsumer       = "consumer"
	logAttrKey            = "key"
	logAttrPath           = "path"
	logAttrDurationMS     = "duration_ms"
	metricCommandDuration = "redis_command_duration_seconds"
	metricCommandErrors   = "redis_command_errors_total"
	labelCommand          = "command"
	labelStatus           = "status"
	commandPing           = "ping"
	commandXAdd           = "xadd"
	commandXGroupCreate   = "xgroup_create"
	commandXReadGroup     = "xreadgroup"
	commandXAck           = "xack"
	commandXRevRange      = "xrevrange"
	commandGet            = "get"
	commandSet            = "set"
	commandIncr           = "incr"
	commandExists         = "exists"
	commandJSONGet        = "json_get"
	commandJSONSet        = "json_set"
	commandJSONArrAppend  = "json_arrappend"
	commandJSONDel        = "json_del"
)

// observe logs and records one command. A non-nil err marks the command as failed.
func (s Store) observe(ctx context.Context, command string, start time.Time, err error, args ...any) {
	duration := time.Since(start)
	status := streams.StatusSuccess

	if err != nil {
		status = streams.StatusError
	}

	labels := map[string]string{labelCommand: command, labelStatus: status}
	streams.RecordDuration(ctx, s.metricsCollector, metricCommandDuration, duration, labels)

	if err != nil {
		streams.IncrementCounter(ctx, s.metricsCollector, metricCommandErrors, labels)

		if s.logger != nil {
			s.logger.Error(logMsgCommandFailed, append([]any{logAttrError, err.Error(), logAttrCommand, command}, args...)...)
		}

		return
	}

	if s.logger != nil {
		s.logger.Debug(logMsgCommandExecuted+command, append([]any{logAttrDurationMS, toMilliseconds(duration)}, args...)...)
	}
}

func (s Store) logWarn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
