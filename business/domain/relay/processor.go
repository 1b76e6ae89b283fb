package relay

import (
	"context"
	"errors"
	"fmt"
	"github.com/qubic/go-crowdsensing/entities"
	"go.uber.org/zap"
	"time"
)

type EventSource interface {
	ID() string
	EventsSince(after uint64, limit int) []entities.Event
	LastSequence() uint64
}

type Publisher interface {
	PublishEvents(ctx context.Context, events []entities.Event) error
}

type checkpointStore interface {
	GetLastPublishedSequence(campaignID string) (uint64, error)
	SetLastPublishedSequence(campaignID string, sequence uint64) error
}

type processingMetrics interface {
	AddPublishedEvents(count int)
	SetPublishedSequence(sequence uint64)
	SetSourceSequence(sequence uint64)
}

type Processor struct {
	source         EventSource
	publisher      Publisher
	publishTimeout time.Duration
	store          checkpointStore
	batchSize      int
	pollInterval   time.Duration
	metrics        processingMetrics
	logger         *zap.SugaredLogger
}

func NewProcessor(
	source EventSource,
	publisher Publisher,
	publishTimeout time.Duration,
	store checkpointStore,
	batchSize int,
	pollInterval time.Duration,
	metrics processingMetrics,
	logger *zap.SugaredLogger,
) *Processor {
	return &Processor{
		source:         source,
		publisher:      publisher,
		publishTimeout: publishTimeout,
		store:          store,
		batchSize:      batchSize,
		pollInterval:   pollInterval,
		metrics:        metrics,
		logger:         logger,
	}
}

// Start relays events until the context is cancelled. Failed cycles are
// logged and retried on the next tick.
func (p *Processor) Start(ctx context.Context) error {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		err := p.runCycle(ctx)
		if err != nil {
			p.logger.Errorw("error running relay cycle", "campaign", p.source.ID(), "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// runCycle publishes batches until the checkpoint caught up with the event
// log.
func (p *Processor) runCycle(ctx context.Context) error {
	last, err := p.lastPublishedSequence()
	if err != nil {
		return fmt.Errorf("getting last published sequence: %w", err)
	}
	sourceSequence := p.source.LastSequence()
	p.metrics.SetSourceSequence(sourceSequence)

	// the event log is not persisted, a checkpoint ahead of it belongs to a
	// previous run of the same campaign id
	if last > sourceSequence {
		p.logger.Warnw("Checkpoint ahead of event log, republishing from the start", "campaign", p.source.ID(),
			"checkpoint", last, "lastSequence", sourceSequence)
		last = 0
	}

	for ctx.Err() == nil {
		published, err := p.processBatch(ctx, last)
		if err != nil {
			return fmt.Errorf("processing batch after sequence [%d]: %w", last, err)
		}
		if published == last {
			return nil
		}
		last = published
	}
	return nil
}

func (p *Processor) lastPublishedSequence() (uint64, error) {
	sequence, err := p.store.GetLastPublishedSequence(p.source.ID())
	if errors.Is(err, entities.ErrStoreEntityNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return sequence, nil
}

// processBatch returns the last published sequence, which is after if there
// was nothing to publish.
func (p *Processor) processBatch(ctx context.Context, after uint64) (uint64, error) {
	events := p.source.EventsSince(after, p.batchSize)
	if len(events) == 0 {
		return after, nil
	}
	last := events[len(events)-1].Sequence

	publishCtx, cancel := context.WithTimeout(ctx, p.publishTimeout)
	defer cancel()

	p.logger.Infow("Publishing events", "campaign", p.source.ID(), "nr_events", len(events),
		"from", events[0].Sequence, "to", last)
	err := p.publisher.PublishEvents(publishCtx, events)
	if err != nil {
		return 0, fmt.Errorf("publishing events: %w", err)
	}

	err = p.store.SetLastPublishedSequence(p.source.ID(), last)
	if err != nil {
		return 0, fmt.Errorf("setting last published sequence: %w", err)
	}
	p.metrics.AddPublishedEvents(len(events))
	p.metrics.SetPublishedSequence(last)

	return last, nil
}
