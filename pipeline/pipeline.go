// Package pipeline wires producers, consumer groups, materializers and the log monitor into one run.
//
// A run creates the consumer groups first (one Manager per shard over that shard's entity logs and one for the
// control logs), starts the consumer workers, then the producers and the monitor. Producers stop after their
// event budget; consumers keep draining until the run duration elapses or the context is cancelled.
package pipeline

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AntonStoeckl/order-lifecycle-streams/consumergroup"
	"github.com/AntonStoeckl/order-lifecycle-streams/generator"
	"github.com/AntonStoeckl/order-lifecycle-streams/lifecycle"
	"github.com/AntonStoeckl/order-lifecycle-streams/materializer"
	"github.com/AntonStoeckl/order-lifecycle-streams/routing"
	"github.com/AntonStoeckl/order-lifecycle-streams/streams"
)

var (
	// ErrNilLogClient is returned when a pipeline or monitor is built without a log client.
	ErrNilLogClient = errors.New("nil log client supplied")

	// ErrNilCounters is returned when a pipeline is built without a counter store.
	ErrNilCounters = errors.New("nil counter store supplied")

	// ErrNilDocuments is returned when a pipeline is built without a document store.
	ErrNilDocuments = errors.New("nil document store supplied")

	// ErrInvalidSettings wraps every settings validation failure.
	ErrInvalidSettings = errors.New("invalid pipeline settings")

	// ErrEmptyControlPrefix is returned when no control log prefix is configured.
	ErrEmptyControlPrefix = errors.New("empty control log prefix supplied")

	// ErrInvalidEntityCount is returned for fewer than one simulated entity.
	ErrInvalidEntityCount = errors.New("entities must be at least 1")

	// ErrInvalidProducerCount is returned for a negative producer count.
	ErrInvalidProducerCount = errors.New("producers must not be negative")

	// ErrInvalidRunDuration is returned for a negative run duration.
	ErrInvalidRunDuration = errors.New("run duration must not be negative")

	// ErrSetupFailed wraps failures while creating consumer groups or processors.
	ErrSetupFailed = errors.New("setting up the pipeline failed")
)

// Settings sizes one pipeline run.
type Settings struct {
	LogPrefix         string
	DocumentPrefix    string
	ControlPrefix     string
	Group             string
	Shards            int
	Entities          int
	Producers         int
	EventsPerProducer int
	ProducerDelay     time.Duration
	Workers           int
	WorkerOffset      int
	BatchSize         int
	BlockTimeout      time.Duration
	RunDuration       time.Duration
	MonitorInterval   time.Duration

	// Regions groups entities into region logs and region documents; empty keeps one log per entity.
	Regions []string

	// Seed makes producers deterministic; zero seeds from the clock.
	Seed uint64
}

// DefaultSettings returns the settings of a small demo run.
func DefaultSettings() Settings {
	return Settings{
		LogPrefix:         "X:orders",
		DocumentPrefix:    materializer.DefaultDocumentPrefix,
		ControlPrefix:     "X:order-updates",
		Group:             "order-histories",
		Shards:            2,
		Entities:          20,
		Producers:         1,
		EventsPerProducer: 100,
		ProducerDelay:     50 * time.Millisecond,
		Workers:           1,
		BatchSize:         10,
		BlockTimeout:      5 * time.Second,
		RunDuration:       20 * time.Second,
		MonitorInterval:   time.Second,
	}
}

func (s Settings) validate() error {
	var problems []error

	if s.Group == "" {
		problems = append(problems, streams.ErrEmptyGroupName)
	}

	if s.ControlPrefix == "" {
		problems = append(problems, ErrEmptyControlPrefix)
	}

	if s.Entities < 1 {
		problems = append(problems, ErrInvalidEntityCount)
	}

	if s.Producers < 0 {
		problems = append(problems, ErrInvalidProducerCount)
	}

	if s.Workers < 1 {
		problems = append(problems, consumergroup.ErrInvalidWorkerCount)
	}

	if s.RunDuration < 0 {
		problems = append(problems, ErrInvalidRunDuration)
	}

	if len(problems) > 0 {
		return errors.Join(append([]error{ErrInvalidSettings}, problems...)...)
	}

	return nil
}

// Report summarizes a finished run.
type Report struct {
	Emitted int
	Failed  int
	Elapsed time.Duration
}

// Pipeline runs the whole order lifecycle simulation against one set of stores.
type Pipeline struct {
	logs             streams.LogClient
	counters         streams.Counters
	docs             streams.Documents
	settings         Settings
	router           routing.Router
	logger           streams.Logger
	contextualLogger streams.ContextualLogger
	metricsCollector streams.MetricsCollector
	tracingCollector streams.TracingCollector
}

// NewPipeline validates settings and creates a Pipeline.
// Logs, counters and documents may be served by the same store or by different engines.
func NewPipeline(
	logs streams.LogClient,
	counters streams.Counters,
	docs streams.Documents,
	settings Settings,
	options ...Option,
) (*Pipeline, error) {
	switch {
	case logs == nil:
		return nil, ErrNilLogClient
	case counters == nil:
		return nil, ErrNilCounters
	case docs == nil:
		return nil, ErrNilDocuments
	}

	if err := settings.validate(); err != nil {
		return nil, err
	}

	var routerOptions []routing.Option
	if len(settings.Regions) > 0 {
		routerOptions = append(routerOptions, routing.WithRegions(settings.Regions...))
	}

	router, err := routing.NewRouter(settings.LogPrefix, settings.Shards, routerOptions...)
	if err != nil {
		return nil, errors.Join(ErrInvalidSettings, err)
	}

	p := &Pipeline{logs: logs, counters: counters, docs: docs, settings: settings, router: router}
	for _, option := range options {
		if err := option(p); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// Router returns the router the pipeline names its logs and keys with.
func (p *Pipeline) Router() routing.Router {
	return p.router
}

// EntityLogs returns the distinct log names of all simulated entities, ordered by the first entity writing to each.
func (p *Pipeline) EntityLogs() []string {
	names := make([]string, 0, p.settings.Entities)
	seen := make(map[string]struct{}, p.settings.Entities)
	for id := range p.settings.Entities {
		name := p.router.LogName(id)
		if _, dup := seen[name]; dup {
			continue
		}

		seen[name] = struct{}{}
		names = append(names, name)
	}

	return names
}

// ControlLogs returns the two side-channel logs the mutation processor consumes.
func (p *Pipeline) ControlLogs() []string {
	return []string{
		materializer.ControlLogName(p.settings.ControlPrefix, materializer.OperationReplace),
		materializer.ControlLogName(p.settings.ControlPrefix, materializer.OperationDelete),
	}
}

// Run executes one simulation and blocks until it is over.
// Cancelling ctx ends the run early; that is not an error.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	start := time.Now()

	runCtx, cancel := p.runContext(ctx)
	defer cancel()

	managers, err := p.setupConsumers(runCtx)
	if err != nil {
		return Report{}, err
	}

	processors, err := p.processors(len(managers) - 1)
	if err != nil {
		return Report{}, errors.Join(ErrSetupFailed, err)
	}

	producers, err := p.producers()
	if err != nil {
		return Report{}, errors.Join(ErrSetupFailed, err)
	}

	monitor, err := NewMonitor(p.logs, p.EntityLogs(), WithMonitorInterval(p.monitorInterval()), WithMonitorLogger(p.logger))
	if err != nil {
		return Report{}, errors.Join(ErrSetupFailed, err)
	}

	p.logInfo(
		runCtx,
		logMsgPipelineStarted,
		logAttrShards, p.settings.Shards,
		logAttrEntities, p.settings.Entities,
		logAttrProducers, len(producers),
		logAttrWorkers, p.settings.Workers,
	)

	for i, manager := range managers {
		if err := manager.Start(runCtx, p.settings.Workers, processors[i]); err != nil {
			cancel()
			waitAll(managers[:i])

			return Report{}, errors.Join(ErrSetupFailed, err)
		}
	}

	var monitorDone sync.WaitGroup
	monitorDone.Add(1)
	go func() {
		defer monitorDone.Done()
		monitor.Run(runCtx)
	}()

	produced, producersCtx := errgroup.WithContext(runCtx)
	for _, producer := range producers {
		produced.Go(func() error {
			if err := producer.Run(producersCtx); err != nil && !isStop(err) {
				return err
			}

			return nil
		})
	}

	producerErr := produced.Wait()
	report := p.report(producers, start)
	p.logInfo(runCtx, logMsgProducersFinished, logAttrEmitted, report.Emitted, logAttrFailed, report.Failed)

	// consumers keep draining until the run is over
	<-runCtx.Done()

	waitAll(managers)
	monitorDone.Wait()

	report.Elapsed = time.Since(start)
	p.logInfo(ctx, logMsgPipelineStopped, logAttrEmitted, report.Emitted, logAttrFailed, report.Failed, logAttrElapsed, report.Elapsed.Round(time.Millisecond).String())

	return report, producerErr
}

// setupConsumers creates one manager per shard and one for the control logs, then creates their groups.
// The entity managers come first, in shard order, the control manager last.
func (p *Pipeline) setupConsumers(ctx context.Context) ([]*consumergroup.Manager, error) {
	partitions := p.router.Partition(entityIDs(p.settings.Entities))
	shards := slices.Sorted(maps.Keys(partitions))

	managers := make([]*consumergroup.Manager, 0, len(shards)+1)
	for _, shard := range shards {
		manager, err := consumergroup.NewManager(p.logs, p.settings.Group, partitions[shard], p.managerOptions()...)
		if err != nil {
			return nil, errors.Join(ErrSetupFailed, err)
		}

		managers = append(managers, manager)
	}

	control, err := consumergroup.NewManager(p.logs, p.settings.Group, p.ControlLogs(), p.managerOptions()...)
	if err != nil {
		return nil, errors.Join(ErrSetupFailed, err)
	}

	managers = append(managers, control)

	var failures []error
	for _, manager := range managers {
		if err := manager.CreateGroup(ctx); err != nil {
			failures = append(failures, err)
		}
	}

	if len(failures) > 0 {
		return nil, errors.Join(append([]error{ErrSetupFailed}, failures...)...)
	}

	return managers, nil
}

// processors returns one processor per manager: the materializer for every shard and the mutation processor last.
func (p *Pipeline) processors(shards int) ([]consumergroup.Processor, error) {
	options := p.materializerOptions()

	events, err := materializer.NewMaterializer(p.docs, options...)
	if err != nil {
		return nil, err
	}

	mutations, err := materializer.NewMutationProcessor(p.docs, options...)
	if err != nil {
		return nil, err
	}

	processors := make([]consumergroup.Processor, 0, shards+1)
	for range shards {
		processors = append(processors, events)
	}

	return append(processors, mutations), nil
}

func (p *Pipeline) producers() ([]*generator.Producer, error) {
	states, err := lifecycle.NewStateStore(p.counters, p.router)
	if err != nil {
		return nil, err
	}

	producers := make([]*generator.Producer, 0, p.settings.Producers)
	for index := range p.settings.Producers {
		entities := generator.PartitionEntities(p.settings.Entities, p.settings.Producers, index)
		if len(entities) == 0 {
			continue
		}

		gen, err := generator.NewGenerator(p.logs, states, p.router, p.generatorOptions(index)...)
		if err != nil {
			return nil, err
		}

		producer, err := generator.NewProducer(
			gen,
			entities,
			generator.WithTotalEvents(p.settings.EventsPerProducer),
			generator.WithDelay(p.settings.ProducerDelay),
			generator.WithProducerName(producerName(index)),
			generator.WithProducerLogger(p.logger),
		)
		if err != nil {
			return nil, err
		}

		producers = append(producers, producer)
	}

	return producers, nil
}

func (p *Pipeline) managerOptions() []consumergroup.Option {
	options := []consumergroup.Option{
		consumergroup.WithConsumerOffset(p.settings.WorkerOffset),
		consumergroup.WithBlockTimeout(p.settings.BlockTimeout),
	}

	if p.settings.BatchSize > 0 {
		options = append(options, consumergroup.WithBatchSize(p.settings.BatchSize))
	}

	if p.logger != nil {
		options = append(options, consumergroup.WithLogger(p.logger))
	}

	if p.contextualLogger != nil {
		options = append(options, consumergroup.WithContextualLogger(p.contextualLogger))
	}

	if p.metricsCollector != nil {
		options = append(options, consumergroup.WithMetrics(p.metricsCollector))
	}

	if p.tracingCollector != nil {
		options = append(options, consumergroup.WithTracing(p.tracingCollector))
	}

	return options
}

func (p *Pipeline) materializerOptions() []materializer.Option {
	var options []materializer.Option

	if p.settings.DocumentPrefix != "" {
		options = append(options, materializer.WithDocumentPrefix(p.settings.DocumentPrefix))
	}

	if len(p.settings.Regions) > 0 {
		options = append(options, materializer.WithIdentity(materializer.RegionIdentity))
	}

	if p.logger != nil {
		options = append(options, materializer.WithLogger(p.logger))
	}

	if p.contextualLogger != nil {
		options = append(options, materializer.WithContextualLogger(p.contextualLogger))
	}

	if p.metricsCollector != nil {
		options = append(options, materializer.WithMetrics(p.metricsCollector))
	}

	return options
}

func (p *Pipeline) generatorOptions(index int) []generator.Option {
	var options []generator.Option

	if p.settings.Seed != 0 {
		options = append(options, generator.WithSeed(p.settings.Seed+uint64(index)))
	}

	if p.logger != nil {
		options = append(options, generator.WithLogger(p.logger))
	}

	if p.contextualLogger != nil {
		options = append(options, generator.WithContextualLogger(p.contextualLogger))
	}

	if p.metricsCollector != nil {
		options = append(options, generator.WithMetrics(p.metricsCollector))
	}

	return options
}

func (p *Pipeline) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.settings.RunDuration > 0 {
		return context.WithTimeout(ctx, p.settings.RunDuration)
	}

	return context.WithCancel(ctx)
}

func (p *Pipeline) monitorInterval() time.Duration {
	if p.settings.MonitorInterval > 0 {
		return p.settings.MonitorInterval
	}

	return defaultMonitorInterval
}

func (p *Pipeline) report(producers []*generator.Producer, start time.Time) Report {
	report := Report{Elapsed: time.Since(start)}
	for _, producer := range producers {
		stats := producer.Stats()
		report.Emitted += stats.Emitted
		report.Failed += stats.Failed
	}

	return report
}

func waitAll(managers []*consumergroup.Manager) {
	for _, manager := range managers {
		manager.Wait()
	}
}

func isStop(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func entityIDs(count int) []int {
	ids := make([]int, count)
	for i := range ids {
		ids[i] = i
	}

	return ids
}
