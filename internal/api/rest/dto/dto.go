package dto

import (
	"time"

	"github.com/wavecrest/music-shop-ledger/internal/chain"
	"github.com/wavecrest/music-shop-ledger/internal/domain"
)

// AddAlbumRequest is the payload for adding a catalog entry. UID is optional:
// when omitted the handler derives it as the keccak hash of the title, the
// same way a deploying client would. The ledger itself stores whatever uid it
// is handed.
type AddAlbumRequest struct {
	UID      string `json:"uid"`
	Title    string `json:"title" binding:"required"`
	Price    string `json:"price" binding:"required"`
	Quantity uint64 `json:"quantity"`
}

// BuyRequest carries the value attached to a purchase, as a decimal string
// in the smallest native unit
type BuyRequest struct {
	Value string `json:"value" binding:"required"`
}

// TransferRequest carries the value of a bare transfer attempt
type TransferRequest struct {
	Value string `json:"value" binding:"required"`
}

// Album is the wire representation of a catalog entry
type Album struct {
	Index    uint64 `json:"index"`
	UID      string `json:"uid"`
	Title    string `json:"title"`
	Price    string `json:"price"`
	Quantity uint64 `json:"quantity"`
}

// Order is the wire representation of a purchase record
type Order struct {
	OrderID   uint64    `json:"order_id"`
	AlbumUID  string    `json:"album_uid"`
	Customer  string    `json:"customer"`
	OrderedAt time.Time `json:"ordered_at"`
	Status    string    `json:"status"`
}

// Ledger is the wire representation of the public counters and balance
type Ledger struct {
	Owner          string `json:"owner"`
	CurrentIndex   uint64 `json:"current_index"`
	CurrentOrderID uint64 `json:"current_order_id"`
	Balance        string `json:"balance"`
}

// Receipt is the wire representation of a committed transaction receipt
type Receipt struct {
	TxID      string `json:"tx_id"`
	TxIndex   uint64 `json:"tx_index"`
	Timestamp int64  `json:"timestamp"`
}

// AlbumResult wraps a mutated album with its transaction receipt
type AlbumResult struct {
	Album   Album   `json:"album"`
	Receipt Receipt `json:"receipt"`
}

// OrderResult wraps a mutated order with its transaction receipt
type OrderResult struct {
	Order   Order   `json:"order"`
	Receipt Receipt `json:"receipt"`
}

// FromAlbum maps a domain album to its wire form
func FromAlbum(a domain.Album) Album {
	return Album{
		Index:    a.Index,
		UID:      a.UID.Hex(),
		Title:    a.Title,
		Price:    a.Price.String(),
		Quantity: a.Quantity,
	}
}

// FromAlbums maps a list of domain albums to wire form
func FromAlbums(albums []domain.Album) []Album {
	out := make([]Album, len(albums))
	for i, a := range albums {
		out[i] = FromAlbum(a)
	}
	return out
}

// FromOrder maps a domain order to its wire form
func FromOrder(o domain.Order) Order {
	return Order{
		OrderID:   o.OrderID,
		AlbumUID:  o.AlbumUID.Hex(),
		Customer:  o.Customer.Hex(),
		OrderedAt: o.OrderedAt,
		Status:    o.Status.String(),
	}
}

// FromOrders maps a list of domain orders to wire form
func FromOrders(orders []domain.Order) []Order {
	out := make([]Order, len(orders))
	for i, o := range orders {
		out[i] = FromOrder(o)
	}
	return out
}

// FromReceipt maps a chain receipt to its wire form
func FromReceipt(r *chain.Receipt) Receipt {
	return Receipt{
		TxID:      r.TxID,
		TxIndex:   r.TxIndex,
		Timestamp: r.Timestamp,
	}
}
