package domain

import "errors"

var (
	// ErrUnauthorized is returned when a caller other than the shop owner
	// invokes an owner-gated operation
	ErrUnauthorized = errors.New("caller is not the shop owner")

	// ErrAlbumNotFound is returned when an album index does not exist
	ErrAlbumNotFound = errors.New("album not found")

	// ErrOrderNotFound is returned when an order id does not exist
	ErrOrderNotFound = errors.New("order not found")

	// ErrOutOfStock is returned when buying an album with zero quantity
	ErrOutOfStock = errors.New("album is out of stock")

	// ErrIncorrectPayment is returned when the attached value is not exactly
	// the album price
	ErrIncorrectPayment = errors.New("payment must equal the album price exactly")

	// ErrAlreadyDelivered is returned when delivery is confirmed twice for
	// the same order
	ErrAlreadyDelivered = errors.New("order already delivered")

	// ErrDirectTransfer is returned for any bare value transfer that does not
	// go through the buy operation
	ErrDirectTransfer = errors.New("please use the buy function to purchase albums")

	// ErrInsufficientFunds is returned by the host chain when the sender
	// cannot cover the attached value
	ErrInsufficientFunds = errors.New("insufficient funds")
)
