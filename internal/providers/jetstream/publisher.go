package jetstream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/wavecrest/music-shop-ledger/internal/adapter"
	"github.com/wavecrest/music-shop-ledger/internal/domain"
	"github.com/wavecrest/music-shop-ledger/internal/logger"
	"github.com/wavecrest/music-shop-ledger/internal/messaging"
)

// Config holds the configuration for NATS JetStream connection
type Config struct {
	URL            string
	SubjectPrefix  string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectionName string
	ConnectTimeout time.Duration
}

type publisher struct {
	nc            adapter.NatsConn
	js            adapter.JetStream
	subjectPrefix string
	json          adapter.JSON

	closeOnce sync.Once
	closed    chan struct{}
}

// NewPublisher creates a new NATS JetStream publisher. The initial connection
// is retried with exponential backoff until the connect timeout elapses.
func NewPublisher(ctx context.Context, cfg Config, natsJS adapter.NatsJetStream, jsonAdapter adapter.JSON) (messaging.Publisher, error) {
	p := &publisher{
		subjectPrefix: cfg.SubjectPrefix,
		json:          jsonAdapter,
		closed:        make(chan struct{}),
	}

	opts := []nats.Option{
		nats.Name(cfg.ConnectionName),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Error(err, zap.String("message", "Disconnected from NATS"))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("Reconnected to NATS", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
			p.markClosed()
		}),
	}

	connect := func() error {
		nc, js, err := natsJS.Connect(cfg.URL, opts...)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS and create JetStream: %w", err)
		}
		p.nc = nc
		p.js = js
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = cfg.ConnectTimeout
	if cfg.ReconnectWait > 0 {
		bo.InitialInterval = cfg.ReconnectWait
	}
	if err := backoff.Retry(connect, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}

	return p, nil
}

// PublishEvent publishes a ledger event to NATS JetStream
func (p *publisher) PublishEvent(ctx context.Context, event *domain.LedgerEvent) error {
	logger.Debug("Publishing NATS event", zap.Any("event", event))

	data, err := p.json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	subject := p.buildSubject(event)

	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// buildSubject constructs the NATS subject based on the event.
// Format: {prefix}.{event_type}, e.g. shop.events.album_bought
func (p *publisher) buildSubject(event *domain.LedgerEvent) string {
	return fmt.Sprintf("%s.%s", p.subjectPrefix, event.EventType)
}

// Close closes the NATS connection
func (p *publisher) Close() {
	if p.nc != nil {
		p.nc.Close()
	}
	p.markClosed()
}

// CloseChan returns a channel that is closed once the connection is gone
func (p *publisher) CloseChan() <-chan struct{} {
	return p.closed
}

func (p *publisher) markClosed() {
	p.closeOnce.Do(func() {
		close(p.closed)
	})
}
