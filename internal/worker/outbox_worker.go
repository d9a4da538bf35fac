package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"venuebook/internal/database"
	"venuebook/internal/domain"
	"venuebook/internal/metrics"
	"venuebook/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// OutboxOptions tune the relay loop; zero values fall back to defaults.
type OutboxOptions struct {
	Retry         RetryPolicy
	PollInterval  time.Duration
	BatchSize     int
	QueueKey      string
	DeadLetterKey string
}

// OutboxWorker relays committed booking events to the broker.
// Delivery is at least once: an event published right before a crash is sent again.
type OutboxWorker struct {
	db            *database.DB
	publisher     domain.BrokerPublisher
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan models.OutboxEvent
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	logger        *zerolog.Logger
}

func NewOutboxWorker(db *database.DB, publisher domain.BrokerPublisher, redisClient *redis.Client, opts OutboxOptions, logger *zerolog.Logger) *OutboxWorker {
	retry := opts.Retry
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = 50
	}
	if opts.QueueKey == "" {
		opts.QueueKey = "venuebook:outbox"
	}
	if opts.DeadLetterKey == "" {
		opts.DeadLetterKey = "venuebook:outbox:dead"
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &OutboxWorker{
		db:            db,
		publisher:     publisher,
		redis:         redisClient,
		retryPolicy:   retry,
		queue:         make(chan models.OutboxEvent, models.OutboxQueueSize),
		redisQueueKey: opts.QueueKey,
		deadLetterKey: opts.DeadLetterKey,
		pollInterval:  opts.PollInterval,
		batchSize:     opts.BatchSize,
		logger:        logger,
	}
}

// Dispatch hands rows that are already committed to redis, or to the in-memory queue when
// redis is missing or failing. Anything that misses both is picked up by polling.
func (w *OutboxWorker) Dispatch(ctx context.Context, events []*models.OutboxEvent) {
	for _, event := range events {
		if event == nil || event.ID == 0 {
			continue
		}

		if w.redis != nil {
			if err := w.pushRedis(ctx, w.redisQueueKey, event); err != nil {
				w.logger.Warn().Err(err).Int64("event_id", event.ID).Msg("redis push failed, using memory queue")
			} else {
				continue
			}
		}

		select {
		case w.queue <- *event:
		default:
			w.logger.Warn().Int64("event_id", event.ID).Msg("outbox memory queue full, left to polling")
		}
	}
}

func (w *OutboxWorker) logBacklog(ctx context.Context) {
	counts, err := w.db.CountOutboxByStatus(ctx)
	if err != nil {
		w.logger.Error().Err(err).Msg("count outbox events")
		return
	}
	ev := w.logger.Info()
	if counts[models.OutboxFailed] > 0 {
		ev = w.logger.Warn()
	}
	ev.Int("pending", counts[models.OutboxPending]+counts[models.OutboxRetry]).
		Int("dead_lettered", counts[models.OutboxFailed]).
		Msg("outbox backlog")
}

// Start runs the relay loop until ctx is done.
func (w *OutboxWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("outbox worker started")
	defer w.logger.Info().Msg("outbox worker stopped")
	w.logBacklog(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if e, ok := w.tryLocalQueue(); ok {
			w.processEvent(ctx, &e)
			continue
		}

		if e, ok := w.tryRedis(ctx); ok {
			w.processEvent(ctx, &e)
			continue
		}

		if n := w.pollOnce(ctx); n == 0 {
			w.sleep(ctx)
		}
	}
}

// pollOnce relays due pending and retry events from the table and reports how many it saw.
func (w *OutboxWorker) pollOnce(ctx context.Context) int {
	pending, err := w.db.GetPendingOutboxEvents(ctx, w.batchSize)
	if err != nil {
		w.logger.Error().Err(err).Msg("fetch pending outbox events")
		return 0
	}
	for i := range pending {
		w.processEvent(ctx, &pending[i])
	}
	return len(pending)
}

func (w *OutboxWorker) sleep(ctx context.Context) {
	timer := time.NewTimer(w.pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (w *OutboxWorker) tryLocalQueue() (models.OutboxEvent, bool) {
	select {
	case e := <-w.queue:
		return e, true
	default:
		return models.OutboxEvent{}, false
	}
}

func (w *OutboxWorker) tryRedis(ctx context.Context) (models.OutboxEvent, bool) {
	if w.redis == nil {
		return models.OutboxEvent{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.Is(err, redis.Nil) {
			return models.OutboxEvent{}, false
		}
		w.logger.Error().Err(err).Msg("redis BRPOP")
		return models.OutboxEvent{}, false
	}
	if len(res) != 2 {
		return models.OutboxEvent{}, false
	}
	var event models.OutboxEvent
	if err := json.Unmarshal([]byte(res[1]), &event); err != nil {
		w.logger.Error().Err(err).Msg("decode redis outbox event")
		return models.OutboxEvent{}, false
	}
	return event, true
}

func (w *OutboxWorker) processEvent(ctx context.Context, event *models.OutboxEvent) {
	if !json.Valid([]byte(event.Payload)) {
		w.fail(ctx, event, errors.New("payload is not valid json"))
		return
	}

	if err := w.publisher.Publish(ctx, event.EventType, []byte(event.Payload)); err != nil {
		w.retryOrFail(ctx, event, err)
		return
	}

	if err := w.db.UpdateOutboxStatus(ctx, event.ID, models.OutboxCompleted, "", nil); err != nil {
		w.logger.Error().Err(err).Int64("event_id", event.ID).Msg("mark outbox event completed")
	}
	metrics.IncOutbox(models.OutboxCompleted)
	w.logger.Debug().Int64("event_id", event.ID).Str("event_type", event.EventType).Msg("outbox event relayed")
}

func (w *OutboxWorker) retryOrFail(ctx context.Context, event *models.OutboxEvent, cause error) {
	next, ok := w.retryPolicy.Schedule(time.Now(), event.RetryCount)
	if !ok {
		w.fail(ctx, event, cause)
		return
	}

	if err := w.db.UpdateOutboxStatus(ctx, event.ID, models.OutboxRetry, cause.Error(), &next); err != nil {
		w.logger.Error().Err(err).Int64("event_id", event.ID).Msg("mark outbox event for retry")
	}
	metrics.IncOutbox(models.OutboxRetry)
	w.logger.Warn().Err(cause).Int64("event_id", event.ID).Int("attempt", event.RetryCount+1).Time("next_retry_at", next).Msg("outbox publish failed")
}

func (w *OutboxWorker) fail(ctx context.Context, event *models.OutboxEvent, cause error) {
	if err := w.db.UpdateOutboxStatus(ctx, event.ID, models.OutboxFailed, cause.Error(), nil); err != nil {
		w.logger.Error().Err(err).Int64("event_id", event.ID).Msg("mark outbox event failed")
	}
	metrics.IncOutbox(models.OutboxFailed)
	w.logger.Error().Err(cause).Int64("event_id", event.ID).Str("event_type", event.EventType).Msg("outbox event dead-lettered")

	if w.redis == nil {
		return
	}
	if err := w.pushRedis(ctx, w.deadLetterKey, event); err != nil {
		w.logger.Error().Err(err).Int64("event_id", event.ID).Msg("dead letter push")
	}
}

func (w *OutboxWorker) pushRedis(ctx context.Context, key string, event *models.OutboxEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, key, data).Err()
}
