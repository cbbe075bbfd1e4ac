package jetstream_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	natsgo "github.com/nats-io/nats.go"
	natsjs "github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavecrest/music-shop-ledger/internal/adapter"
	"github.com/wavecrest/music-shop-ledger/internal/domain"
	"github.com/wavecrest/music-shop-ledger/internal/logger"
	"github.com/wavecrest/music-shop-ledger/internal/providers/jetstream"
)

func TestMain(m *testing.M) {
	// Initialize logger for tests
	err := logger.Initialize(logger.Config{
		Debug: false,
	})
	if err != nil {
		panic(err)
	}

	code := m.Run()
	os.Exit(code)
}

// fakeConn implements adapter.NatsConn
type fakeConn struct {
	closed bool
}

func (c *fakeConn) Close()               { c.closed = true }
func (c *fakeConn) LastError() error     { return nil }
func (c *fakeConn) ConnectedUrl() string { return "nats://localhost:4222" }

// fakeJetStream implements adapter.JetStream, recording published messages
type fakeJetStream struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (j *fakeJetStream) Publish(ctx context.Context, subject string, data []byte, opts ...natsjs.PublishOpt) (*natsjs.PubAck, error) {
	if j.err != nil {
		return nil, j.err
	}
	j.subjects = append(j.subjects, subject)
	j.payloads = append(j.payloads, data)
	return &natsjs.PubAck{Stream: "SHOP_EVENTS"}, nil
}

// fakeNatsJetStream implements adapter.NatsJetStream with scripted failures
type fakeNatsJetStream struct {
	conn     *fakeConn
	js       *fakeJetStream
	failures int
	attempts int
}

func (n *fakeNatsJetStream) Connect(url string, options ...natsgo.Option) (adapter.NatsConn, adapter.JetStream, error) {
	n.attempts++
	if n.failures > 0 {
		n.failures--
		return nil, nil, errors.New("connection refused")
	}
	return n.conn, n.js, nil
}

func testConfig() jetstream.Config {
	return jetstream.Config{
		URL:            "nats://localhost:4222",
		SubjectPrefix:  "shop.events",
		MaxReconnects:  10,
		ReconnectWait:  time.Millisecond,
		ConnectionName: "shopd-test",
		ConnectTimeout: time.Second,
	}
}

func TestNewPublisher_RetriesInitialConnect(t *testing.T) {
	natsJS := &fakeNatsJetStream{
		conn:     &fakeConn{},
		js:       &fakeJetStream{},
		failures: 2,
	}

	pub, err := jetstream.NewPublisher(context.Background(), testConfig(), natsJS, adapter.NewJSON())
	require.NoError(t, err)
	defer pub.Close()

	assert.Equal(t, 3, natsJS.attempts)
}

func TestNewPublisher_GivesUpAfterTimeout(t *testing.T) {
	natsJS := &fakeNatsJetStream{
		conn:     &fakeConn{},
		js:       &fakeJetStream{},
		failures: 1 << 30,
	}

	cfg := testConfig()
	cfg.ConnectTimeout = 10 * time.Millisecond

	_, err := jetstream.NewPublisher(context.Background(), cfg, natsJS, adapter.NewJSON())
	assert.Error(t, err)
}

func TestPublishEvent(t *testing.T) {
	js := &fakeJetStream{}
	natsJS := &fakeNatsJetStream{conn: &fakeConn{}, js: js}

	pub, err := jetstream.NewPublisher(context.Background(), testConfig(), natsJS, adapter.NewJSON())
	require.NoError(t, err)
	defer pub.Close()

	event := &domain.LedgerEvent{
		EventID:   "01JD0000000000000000000000",
		EventType: domain.EventTypeAlbumBought,
		AlbumUID:  domain.AlbumUID("Demo"),
		Customer:  common.HexToAddress("0x00000000000000000000000000000000000000bb"),
		OrderID:   0,
		Timestamp: time.Unix(1700000000, 0).UTC(),
	}

	require.NoError(t, pub.PublishEvent(context.Background(), event))

	require.Len(t, js.subjects, 1)
	assert.Equal(t, "shop.events.album_bought", js.subjects[0])

	var decoded domain.LedgerEvent
	require.NoError(t, json.Unmarshal(js.payloads[0], &decoded))
	assert.Equal(t, event.EventID, decoded.EventID)
	assert.Equal(t, event.AlbumUID, decoded.AlbumUID)
	assert.Equal(t, event.Customer, decoded.Customer)
}

func TestPublishEvent_BrokerError(t *testing.T) {
	js := &fakeJetStream{err: errors.New("no responders")}
	natsJS := &fakeNatsJetStream{conn: &fakeConn{}, js: js}

	pub, err := jetstream.NewPublisher(context.Background(), testConfig(), natsJS, adapter.NewJSON())
	require.NoError(t, err)
	defer pub.Close()

	err = pub.PublishEvent(context.Background(), &domain.LedgerEvent{
		EventType: domain.EventTypeOrderDelivered,
	})
	assert.Error(t, err)
}

func TestClose(t *testing.T) {
	conn := &fakeConn{}
	natsJS := &fakeNatsJetStream{conn: conn, js: &fakeJetStream{}}

	pub, err := jetstream.NewPublisher(context.Background(), testConfig(), natsJS, adapter.NewJSON())
	require.NoError(t, err)

	pub.Close()
	assert.True(t, conn.closed)

	select {
	case <-pub.CloseChan():
	default:
		t.Fatal("CloseChan should be closed after Close")
	}
}
