package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// OrderStatus represents the delivery state of an order
type OrderStatus uint8

const (
	OrderStatusOrdered   OrderStatus = iota // payment received, not yet delivered
	OrderStatusDelivered                    // delivery confirmed by the shop owner
)

// String returns the string representation of the OrderStatus
func (s OrderStatus) String() string {
	switch s {
	case OrderStatusOrdered:
		return "ordered"
	case OrderStatusDelivered:
		return "delivered"
	default:
		return "unknown"
	}
}

// Album represents a catalog entry with finite stock.
// Index is assigned sequentially starting at 0 and is the stable lookup key
// used by the purchase flow. Only Quantity mutates after creation.
type Album struct {
	Index    uint64      `json:"index"`
	UID      common.Hash `json:"uid"`
	Title    string      `json:"title"`
	Price    *big.Int    `json:"price"`
	Quantity uint64      `json:"quantity"`
}

// Order represents a purchase record.
// OrderID is assigned sequentially starting at 0. Only Status mutates after
// creation, and only once: Ordered -> Delivered.
type Order struct {
	OrderID   uint64         `json:"order_id"`
	AlbumUID  common.Hash    `json:"album_uid"`
	Customer  common.Address `json:"customer"`
	OrderedAt time.Time      `json:"ordered_at"`
	Status    OrderStatus    `json:"status"`
}

// LedgerEventType represents the type of ledger event
type LedgerEventType string

const (
	EventTypeAlbumBought    LedgerEventType = "album_bought"
	EventTypeOrderDelivered LedgerEventType = "order_delivered"
)

// LedgerEvent represents a notification emitted by a committed ledger
// transaction. This is the standard format published to NATS.
type LedgerEvent struct {
	EventID   string          `json:"event_id,omitempty"` // assigned by the host chain at commit time
	EventType LedgerEventType `json:"event_type"`
	AlbumUID  common.Hash     `json:"album_uid"`
	Customer  common.Address  `json:"customer"`
	OrderID   uint64          `json:"order_id"`
	Timestamp time.Time       `json:"timestamp,omitempty"` // purchase time, only set for album_bought
	TxIndex   uint64          `json:"tx_index"`            // position in the host transaction sequence
}

// AlbumUID derives the content-addressed album identifier from its title.
// Matches keccak256 over the raw title bytes.
func AlbumUID(title string) common.Hash {
	return crypto.Keccak256Hash([]byte(title))
}
