package emitter

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/wavecrest/music-shop-ledger/internal/chain"
	"github.com/wavecrest/music-shop-ledger/internal/domain"
	"github.com/wavecrest/music-shop-ledger/internal/logger"
	"github.com/wavecrest/music-shop-ledger/internal/messaging"
)

// Config holds the configuration for the event emitter
type Config struct {
	// SubscribeBuffer is the size of the chain event subscription buffer
	SubscribeBuffer int
}

// Emitter defines the interface for the event emitter
//
//go:generate mockgen -source=emitter.go -destination=../mocks/emitter.go -package=mocks -mock_names=Emitter=MockEmitter
type Emitter interface {
	// Run publishes every committed ledger event until the context is
	// canceled or the emitter is closed
	Run(ctx context.Context) error
	// Close cancels the chain subscription, ending Run
	Close()
}

// emitter bridges the chain event feed to the message broker
type emitter struct {
	publisher messaging.Publisher
	events    <-chan domain.LedgerEvent

	closeOnce sync.Once
	cancel    func()
}

// NewEmitter creates a new event emitter. The chain subscription is opened
// immediately so no event committed after this call is missed.
func NewEmitter(c *chain.Chain, pub messaging.Publisher, cfg Config) Emitter {
	if cfg.SubscribeBuffer <= 0 {
		cfg.SubscribeBuffer = 64
	}

	events, cancel := c.Subscribe(cfg.SubscribeBuffer)

	return &emitter{
		publisher: pub,
		events:    events,
		cancel:    cancel,
	}
}

// Run starts the event emitter
func (e *emitter) Run(ctx context.Context) error {
	logger.Info("Starting ledger event emitter")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-e.events:
			if !ok {
				return nil
			}
			e.emit(ctx, &event)
		}
	}
}

// emit publishes one event. Publish failures are logged rather than fatal so
// a broker hiccup does not stall the feed.
func (e *emitter) emit(ctx context.Context, event *domain.LedgerEvent) {
	if err := e.publisher.PublishEvent(ctx, event); err != nil {
		logger.Error(err,
			zap.String("event_id", event.EventID),
			zap.String("event_type", string(event.EventType)),
			zap.Uint64("order_id", event.OrderID),
		)
		return
	}

	logger.Debug("Published ledger event",
		zap.String("event_id", event.EventID),
		zap.String("event_type", string(event.EventType)),
		zap.Uint64("order_id", event.OrderID),
	)
}

// Close cancels the chain subscription
func (e *emitter) Close() {
	e.closeOnce.Do(e.cancel)
}
