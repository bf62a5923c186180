package pipeline

import (
	"context"
	"strconv"
)

const (
	logMsgPipelineStarted   = "pipeline started"
	logMsgPipelineStopped   = "pipeline stopped"
	logMsgProducersFinished = "producers finished, consumers keep draining"
	logMsgSampled           = "latest log entry"
	logMsgSampleSkipped     = "sampled log has no entries yet"
	logMsgSampleFailed      = "sampling log failed"
	logAttrError            = "error"
	logAttrLog              = "log"
	logAttrEntryID          = "entry_id"
	logAttrShards           = "shards"
	logAttrEntities         = "entities"
	logAttrProducers        = "producers"
	logAttrWorkers          = "workers"
	logAttrEmitted          = "emitted"
	logAttrFailed           = "failed"
	logAttrElapsed          = "elapsed"
	producerNamePrefix      = "producer-"
)

func (p *Pipeline) logInfo(ctx context.Context, msg string, args ...any) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}

	if p.contextualLogger != nil {
		p.contextualLogger.InfoContext(ctx, msg, args...)
	}
}

func producerName(index int) string {
	return producerNamePrefix + strconv.Itoa(index)
}
