package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/cropmarket-backend/pkg/config"
	"github.com/angelmondragon/cropmarket-backend/pkg/db/models"
	"github.com/angelmondragon/cropmarket-backend/pkg/enums"
	"github.com/angelmondragon/cropmarket-backend/pkg/logger"
	"github.com/angelmondragon/cropmarket-backend/pkg/metrics"
	"github.com/angelmondragon/cropmarket-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	maxIdleBackoff        = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type ServiceParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         dbClient
	PubSub     pubSubClient
	Repository outboxRepository
	Registry   registryResolver
	DLQ        dlqRepository
	Metrics    *metrics.LifecycleMetrics
	// PublisherFactory overrides how a topic handle is opened. Defaults to the
	// Pub/Sub client.
	PublisherFactory func(topic string) publisher
}

// outcome is what happened to one outbox row in a batch.
type outcome string

const (
	outcomePublished  outcome = "published"
	outcomeRetry      outcome = "retry"
	outcomeDeadLetter outcome = "dlq"
)

type batchStats struct {
	published    int
	retried      int
	deadLettered int
}

func (b *batchStats) add(o outcome) {
	switch o {
	case outcomePublished:
		b.published++
	case outcomeRetry:
		b.retried++
	case outcomeDeadLetter:
		b.deadLettered++
	}
}

// progressed is true when at least one row left the pending set.
func (b batchStats) progressed() bool {
	return b.published+b.deadLettered > 0
}

func (b batchStats) empty() bool {
	return b.published+b.retried+b.deadLettered == 0
}

// Service drains outbox_events onto the lifecycle topic.
type Service struct {
	logg           *logger.Logger
	db             dbClient
	pubsub         pubSubClient
	repo           outboxRepository
	registry       registryResolver
	dlq            dlqRepository
	metrics        *metrics.LifecycleMetrics
	publishers     *topicPublishers
	batchSize      int
	maxAttempts    int
	pollInterval   time.Duration
	publishTimeout time.Duration
	now            func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Config == nil:
		return nil, errors.New("config is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	case params.DLQ == nil:
		return nil, errors.New("dlq repository is required")
	}

	open := params.PublisherFactory
	if open == nil {
		open = func(topic string) publisher {
			return newGCPPublisher(params.PubSub.Publisher(topic))
		}
	}

	cfg := params.Config.Outbox
	svc := &Service{
		logg:           params.Logger,
		db:             params.DB,
		pubsub:         params.PubSub,
		repo:           params.Repository,
		registry:       params.Registry,
		dlq:            params.DLQ,
		metrics:        params.Metrics,
		publishers:     newTopicPublishers(open),
		batchSize:      defaultBatchSize,
		maxAttempts:    defaultMaxAttempts,
		pollInterval:   defaultPollInterval,
		publishTimeout: defaultPublishTimeout,
		now:            time.Now,
	}
	if cfg.BatchSize > 0 {
		svc.batchSize = cfg.BatchSize
	}
	if cfg.MaxAttempts > 0 {
		svc.maxAttempts = cfg.MaxAttempts
	}
	if cfg.PollIntervalMS > 0 {
		svc.pollInterval = time.Duration(cfg.PollIntervalMS) * time.Millisecond
	}
	if cfg.PublishTimeout > 0 {
		svc.publishTimeout = cfg.PublishTimeout
	}
	return svc, nil
}

// Run polls until ctx is cancelled. A batch that moved rows out of the pending
// set is followed immediately by the next one; an empty batch, a batch of pure
// retries, or a failed transaction waits with exponential backoff and jitter.
func (s *Service) Run(ctx context.Context) error {
	defer s.publishers.stop()

	for _, dep := range []struct {
		name string
		ping func(context.Context) error
	}{
		{"database", s.db.Ping},
		{"pubsub", s.pubsub.Ping},
	} {
		if err := dep.ping(ctx); err != nil {
			s.logg.Error(ctx, dep.name+" ping failed", err)
			return fmt.Errorf("%s ping failed: %w", dep.name, err)
		}
	}

	wait := s.pollInterval
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		stats, err := s.processBatch(ctx)
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox batch failed", err)
			wait = nextBackoff(wait, s.pollInterval)
		case stats.progressed():
			s.logBatch(ctx, stats)
			wait = s.pollInterval
			continue
		case stats.empty():
			wait = s.pollInterval
		default:
			s.logBatch(ctx, stats)
			wait = nextBackoff(wait, s.pollInterval)
		}

		if err := sleepCtx(ctx, withJitter(wait)); err != nil {
			return err
		}
	}
}

func (s *Service) logBatch(ctx context.Context, stats batchStats) {
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"published":     stats.published,
		"retried":       stats.retried,
		"dead_lettered": stats.deadLettered,
		"batch_size":    s.batchSize,
	}), "outbox batch processed")
}

// processBatch claims up to batchSize rows and settles each one inside the
// same transaction. A failure to publish one row never stops the others; only
// a failure to record an outcome aborts the batch.
func (s *Service) processBatch(ctx context.Context) (batchStats, error) {
	var outcomes []outcome
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		outcomes = outcomes[:0]
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return fmt.Errorf("fetch outbox batch: %w", err)
		}
		for _, event := range events {
			result, err := s.settle(ctx, tx, event)
			if err != nil {
				return err
			}
			outcomes = append(outcomes, result)
		}
		return nil
	})
	if err != nil {
		return batchStats{}, err
	}

	var stats batchStats
	for _, o := range outcomes {
		stats.add(o)
		s.metrics.IncOutbox(string(o))
	}
	return stats, nil
}

func (s *Service) settle(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) (outcome, error) {
	fields := eventFields(event)

	resolved, err := s.registry.Resolve(event)
	if err != nil {
		return s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonUndecodable, err, fields)
	}
	fields["topic"] = resolved.Descriptor.Topic
	fields["event_id"] = resolved.Envelope.EventID

	err = s.publish(ctx, event, resolved)
	if err == nil {
		if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return "", fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.logg.Debug(s.logg.WithFields(ctx, fields), "outbox event published")
		return outcomePublished, nil
	}

	if registry.IsNonRetryable(err) {
		return s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, err, fields)
	}

	attempt := event.AttemptCount + 1
	fields["attempt_count"] = attempt
	if attempt >= s.maxAttempts {
		return s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonMaxAttempts,
			fmt.Errorf("gave up after %d attempts: %w", attempt, err), fields)
	}

	fields["error"] = err.Error()
	s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox publish failed, will retry")
	if err := s.repo.MarkFailedTx(tx, event.ID, err); err != nil {
		return "", fmt.Errorf("mark failed %s: %w", event.ID, err)
	}
	return outcomeRetry, nil
}

func (s *Service) deadLetter(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, fields map[string]any) (outcome, error) {
	fields["dlq_reason"] = reason
	fields["error"] = cause.Error()
	s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox event dead-lettered")

	msg := cause.Error()
	entry := models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  event.AttemptCount,
		FailedAt:      s.now().UTC(),
	}
	if err := s.dlq.InsertTx(tx, entry); err != nil {
		return "", fmt.Errorf("insert dlq %s: %w", event.ID, err)
	}
	if err := s.repo.MarkTerminalTx(tx, event.ID, cause, s.maxAttempts); err != nil {
		return "", fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	return outcomeDeadLetter, nil
}

// publish sends the stored envelope unchanged; consumers route on attributes.
func (s *Service) publish(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := s.publishers.get(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %q", topic))
	}

	msg := &gcppubsub.Message{
		Data: event.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"schema_version": strconv.Itoa(resolved.Envelope.Version),
			"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}

	publishCtx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	defer cancel()
	result := pub.Publish(publishCtx, msg)
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher for %q returned no result", topic))
	}
	_, err := result.Get(publishCtx)
	return err
}

func eventFields(event models.OutboxEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}

// topicPublishers keeps one handle per topic so batching and flow control
// in the Pub/Sub client work across events.
type topicPublishers struct {
	mu      sync.Mutex
	open    func(topic string) publisher
	byTopic map[string]publisher
}

func newTopicPublishers(open func(topic string) publisher) *topicPublishers {
	return &topicPublishers{open: open, byTopic: make(map[string]publisher)}
}

func (p *topicPublishers) get(topic string) publisher {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pub, ok := p.byTopic[topic]; ok {
		return pub
	}
	pub := p.open(topic)
	if pub != nil {
		p.byTopic[topic] = pub
	}
	return pub
}

// stop flushes and releases every handle that supports it.
func (p *topicPublishers) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for topic, pub := range p.byTopic {
		if s, ok := pub.(interface{ Stop() }); ok {
			s.Stop()
		}
		delete(p.byTopic, topic)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base time.Duration) time.Duration {
	if current < base {
		current = base
	}
	return min(current*2, maxIdleBackoff)
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + rand.N(jitterWindow)
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func newGCPPublisher(p *gcppubsub.Publisher) publisher {
	if p == nil {
		return nil
	}
	return &gcpPublisher{Publisher: p}
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return p.Publisher.Publish(ctx, msg)
}
