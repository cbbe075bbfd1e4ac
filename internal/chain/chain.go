package chain

import (
	"crypto/rand"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/wavecrest/music-shop-ledger/internal/adapter"
	"github.com/wavecrest/music-shop-ledger/internal/domain"
	"github.com/wavecrest/music-shop-ledger/internal/ledger"
	"github.com/wavecrest/music-shop-ledger/internal/logger"
)

// Config holds the host chain configuration
type Config struct {
	// Owner is the ledger owner identity, fixed at construction
	Owner common.Address
	// LedgerAddress is the account that custodies retained payments
	LedgerAddress common.Address
	// GenesisBalance is credited to every account on first touch so that
	// purchases have funds to move
	GenesisBalance *big.Int
}

// Receipt describes a committed transaction
type Receipt struct {
	TxID      string               `json:"tx_id"`
	TxIndex   uint64               `json:"tx_index"`
	Timestamp int64                `json:"timestamp"`
	Events    []domain.LedgerEvent `json:"events,omitempty"`
}

// Chain models the sequencing substrate the ledger runs on: transactions are
// applied one at a time to completion, each either committing fully or
// failing with no state change. It owns the native-value accounts, assigns
// transaction indexes and receipt ids, and fans committed events out to
// subscribers.
type Chain struct {
	mu       sync.Mutex
	clock    adapter.Clock
	config   Config
	ledger   *ledger.ShopLedger
	balances map[common.Address]*big.Int
	txIndex  uint64
	entropy  *ulid.MonotonicEntropy

	subMu   sync.Mutex
	subs    map[int]chan domain.LedgerEvent
	nextSub int
}

// New creates a chain hosting a fresh ledger instance
func New(cfg Config, clock adapter.Clock) *Chain {
	c := &Chain{
		clock:    clock,
		config:   cfg,
		ledger:   ledger.New(cfg.Owner),
		balances: make(map[common.Address]*big.Int),
		entropy:  ulid.Monotonic(rand.Reader, 0),
		subs:     make(map[int]chan domain.LedgerEvent),
	}

	// The ledger's own account starts empty; it only ever accumulates
	// retained payments.
	c.balances[cfg.LedgerAddress] = new(big.Int)

	return c
}

// Subscribe registers an event channel fed by committed transactions. The
// returned function cancels the subscription. Events are dropped for
// subscribers that fall behind the buffer.
func (c *Chain) Subscribe(buffer int) (<-chan domain.LedgerEvent, func()) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	id := c.nextSub
	c.nextSub++

	ch := make(chan domain.LedgerEvent, buffer)
	c.subs[id] = ch

	cancel := func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}

	return ch, cancel
}

// SubmitAddAlbum sequences an addAlbum transaction
func (c *Chain) SubmitAddAlbum(caller common.Address, uid common.Hash, title string, price *big.Int, quantity uint64) (domain.Album, *Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	album, err := c.ledger.AddAlbum(caller, uid, title, price, quantity)
	if err != nil {
		return domain.Album{}, nil, err
	}

	return album, c.commit(nil), nil
}

// SubmitBuy sequences a buy transaction carrying the attached value. The
// value moves from the buyer's account into the ledger's custody only if the
// purchase commits.
func (c *Chain) SubmitBuy(caller common.Address, albumIndex uint64, value *big.Int) (domain.Order, *Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if value == nil {
		value = new(big.Int)
	}

	from := c.account(caller)
	if from.Cmp(value) < 0 {
		return domain.Order{}, nil, domain.ErrInsufficientFunds
	}

	order, event, err := c.ledger.Buy(caller, albumIndex, value, c.clock.Now())
	if err != nil {
		return domain.Order{}, nil, err
	}

	from.Sub(from, value)
	c.account(c.config.LedgerAddress).Add(c.account(c.config.LedgerAddress), value)

	return order, c.commit([]domain.LedgerEvent{event}), nil
}

// SubmitDelivered sequences a delivery confirmation transaction
func (c *Chain) SubmitDelivered(caller common.Address, orderID uint64) (domain.Order, *Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	order, event, err := c.ledger.Delivered(caller, orderID)
	if err != nil {
		return domain.Order{}, nil, err
	}

	return order, c.commit([]domain.LedgerEvent{event}), nil
}

// SubmitTransfer sequences a bare value transfer to the ledger. It is
// unconditionally rejected: value only enters the ledger through buy.
func (c *Chain) SubmitTransfer(from common.Address, value *big.Int) (*Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return nil, domain.ErrDirectTransfer
}

// Owner returns the ledger owner identity
func (c *Chain) Owner() common.Address {
	return c.ledger.Owner()
}

// CurrentIndex returns the number of albums ever added
func (c *Chain) CurrentIndex() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ledger.CurrentIndex()
}

// CurrentOrderID returns the number of orders ever placed
func (c *Chain) CurrentOrderID() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ledger.CurrentOrderID()
}

// Album returns the album at the given index
func (c *Chain) Album(index uint64) (domain.Album, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ledger.Album(index)
}

// Albums returns all albums in insertion order
func (c *Chain) Albums() []domain.Album {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ledger.Albums()
}

// Order returns the order with the given id
func (c *Chain) Order(orderID uint64) (domain.Order, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ledger.Order(orderID)
}

// Orders returns all orders in placement order
func (c *Chain) Orders() []domain.Order {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ledger.Orders()
}

// LedgerBalance returns the payment value retained by the ledger
func (c *Chain) LedgerBalance() *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ledger.Balance()
}

// BalanceOf returns the native balance of an account
func (c *Chain) BalanceOf(addr common.Address) *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return new(big.Int).Set(c.account(addr))
}

// account returns the balance entry for an address, crediting the genesis
// balance on first touch. Caller must hold c.mu.
func (c *Chain) account(addr common.Address) *big.Int {
	if balance, ok := c.balances[addr]; ok {
		return balance
	}

	balance := new(big.Int)
	if c.config.GenesisBalance != nil {
		balance.Set(c.config.GenesisBalance)
	}
	c.balances[addr] = balance

	return balance
}

// commit stamps the receipt for a successful transaction and fans its events
// out to subscribers. Caller must hold c.mu.
func (c *Chain) commit(events []domain.LedgerEvent) *Receipt {
	now := c.clock.Now()

	receipt := &Receipt{
		TxID:      ulid.MustNew(ulid.Timestamp(now), c.entropy).String(),
		TxIndex:   c.txIndex,
		Timestamp: now.Unix(),
	}

	for i := range events {
		events[i].EventID = receipt.TxID
		events[i].TxIndex = receipt.TxIndex
	}
	receipt.Events = events

	c.txIndex++
	c.publish(events)

	return receipt
}

// publish delivers events to all subscribers without blocking the chain
func (c *Chain) publish(events []domain.LedgerEvent) {
	if len(events) == 0 {
		return
	}

	c.subMu.Lock()
	defer c.subMu.Unlock()

	for _, sub := range c.subs {
		for _, event := range events {
			select {
			case sub <- event:
			default:
				logger.Warn("dropping ledger event for slow subscriber",
					zap.String("event_type", string(event.EventType)),
					zap.Uint64("tx_index", event.TxIndex),
				)
			}
		}
	}
}
