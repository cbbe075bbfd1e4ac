package ledger

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/wavecrest/music-shop-ledger/internal/domain"
)

// ShopLedger is the catalog and order book of the music shop. It owns two
// append-only record collections (albums, orders), the two monotonic counters
// that index them, and the balance of payments it has retained.
//
// The ledger is not safe for concurrent use on its own: it relies on the
// single-writer guarantee provided by the host chain, which serializes every
// call. Each operation validates all of its preconditions before touching any
// state, so a failed call never leaves a partial mutation behind.
type ShopLedger struct {
	owner   common.Address
	albums  []domain.Album
	orders  []domain.Order
	balance *big.Int
}

// New creates a ledger owned by the given address. The owner identity is
// fixed for the lifetime of the instance.
func New(owner common.Address) *ShopLedger {
	return &ShopLedger{
		owner:   owner,
		balance: new(big.Int),
	}
}

// Owner returns the designated owner identity
func (l *ShopLedger) Owner() common.Address {
	return l.owner
}

// CurrentIndex returns the number of albums ever added
func (l *ShopLedger) CurrentIndex() uint64 {
	return uint64(len(l.albums))
}

// CurrentOrderID returns the number of orders ever placed
func (l *ShopLedger) CurrentOrderID() uint64 {
	return uint64(len(l.orders))
}

// Balance returns a copy of the total payment value the ledger has retained.
// There is no withdrawal path, so it only ever grows.
func (l *ShopLedger) Balance() *big.Int {
	return new(big.Int).Set(l.balance)
}

// Album returns the album at the given index
func (l *ShopLedger) Album(index uint64) (domain.Album, error) {
	if index >= uint64(len(l.albums)) {
		return domain.Album{}, domain.ErrAlbumNotFound
	}
	return copyAlbum(l.albums[index]), nil
}

// Albums returns all albums in insertion order
func (l *ShopLedger) Albums() []domain.Album {
	albums := make([]domain.Album, len(l.albums))
	for i, a := range l.albums {
		albums[i] = copyAlbum(a)
	}
	return albums
}

// Order returns the order with the given id
func (l *ShopLedger) Order(orderID uint64) (domain.Order, error) {
	if orderID >= uint64(len(l.orders)) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return l.orders[orderID], nil
}

// Orders returns all orders in placement order
func (l *ShopLedger) Orders() []domain.Order {
	orders := make([]domain.Order, len(l.orders))
	copy(orders, l.orders)
	return orders
}

// AddAlbum appends a new catalog entry and returns it. Only the owner may
// call it. The uid is caller-supplied and stored verbatim: the ledger neither
// recomputes the title hash nor enforces uniqueness, and zero prices or
// quantities are permitted.
func (l *ShopLedger) AddAlbum(caller common.Address, uid common.Hash, title string, price *big.Int, quantity uint64) (domain.Album, error) {
	if err := l.requireOwner(caller); err != nil {
		return domain.Album{}, err
	}

	album := domain.Album{
		Index:    uint64(len(l.albums)),
		UID:      uid,
		Title:    title,
		Price:    new(big.Int).Set(price),
		Quantity: quantity,
	}
	l.albums = append(l.albums, album)

	return copyAlbum(album), nil
}

// Buy purchases one unit of the album at the given index. The attached value
// must equal the album price exactly; there is no change-giving. On success
// the album quantity drops by one, the value is retained by the ledger, a new
// order is appended with status Ordered, and the AlbumBought event is
// returned for the host to emit.
func (l *ShopLedger) Buy(caller common.Address, albumIndex uint64, value *big.Int, now time.Time) (domain.Order, domain.LedgerEvent, error) {
	if albumIndex >= uint64(len(l.albums)) {
		return domain.Order{}, domain.LedgerEvent{}, domain.ErrAlbumNotFound
	}

	album := &l.albums[albumIndex]
	if album.Quantity == 0 {
		return domain.Order{}, domain.LedgerEvent{}, domain.ErrOutOfStock
	}
	if value == nil || value.Cmp(album.Price) != 0 {
		return domain.Order{}, domain.LedgerEvent{}, domain.ErrIncorrectPayment
	}

	// All preconditions hold, commit as a unit.
	album.Quantity--
	l.balance.Add(l.balance, value)

	order := domain.Order{
		OrderID:   uint64(len(l.orders)),
		AlbumUID:  album.UID,
		Customer:  caller,
		OrderedAt: now,
		Status:    domain.OrderStatusOrdered,
	}
	l.orders = append(l.orders, order)

	event := domain.LedgerEvent{
		EventType: domain.EventTypeAlbumBought,
		AlbumUID:  order.AlbumUID,
		Customer:  order.Customer,
		OrderID:   order.OrderID,
		Timestamp: order.OrderedAt,
	}

	return order, event, nil
}

// Delivered confirms delivery of an order, transitioning its status from
// Ordered to Delivered. Only the owner may call it, and the transition fires
// at most once per order. Orders are addressed by order id rather than album
// index so that multiple orders against the same album stay distinguishable.
func (l *ShopLedger) Delivered(caller common.Address, orderID uint64) (domain.Order, domain.LedgerEvent, error) {
	if err := l.requireOwner(caller); err != nil {
		return domain.Order{}, domain.LedgerEvent{}, err
	}
	if orderID >= uint64(len(l.orders)) {
		return domain.Order{}, domain.LedgerEvent{}, domain.ErrOrderNotFound
	}

	order := &l.orders[orderID]
	if order.Status == domain.OrderStatusDelivered {
		return domain.Order{}, domain.LedgerEvent{}, domain.ErrAlreadyDelivered
	}

	order.Status = domain.OrderStatusDelivered

	event := domain.LedgerEvent{
		EventType: domain.EventTypeOrderDelivered,
		AlbumUID:  order.AlbumUID,
		Customer:  order.Customer,
		OrderID:   order.OrderID,
	}

	return *order, event, nil
}

// requireOwner guards owner-gated operations
func (l *ShopLedger) requireOwner(caller common.Address) error {
	if caller != l.owner {
		return domain.ErrUnauthorized
	}
	return nil
}

// copyAlbum returns a deep copy so callers cannot mutate the stored price
func copyAlbum(a domain.Album) domain.Album {
	a.Price = new(big.Int).Set(a.Price)
	return a
}
