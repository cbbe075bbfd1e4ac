package rest

import (
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"

	"github.com/wavecrest/music-shop-ledger/internal/api/middleware"
	"github.com/wavecrest/music-shop-ledger/internal/api/rest/dto"
	"github.com/wavecrest/music-shop-ledger/internal/chain"
	"github.com/wavecrest/music-shop-ledger/internal/domain"
)

// Handler defines the interface for REST API handlers
//
//go:generate mockgen -source=handler.go -destination=../mocks/api_handler.go -package=mocks -mock_names=Handler=MockAPIHandler
type Handler interface {
	// GetLedger returns the public counters, owner, and retained balance
	// GET /api/v1/ledger
	GetLedger(c *gin.Context)

	// ListAlbums returns the whole catalog in insertion order
	// GET /api/v1/albums
	ListAlbums(c *gin.Context)

	// GetAlbum returns a single album by index
	// GET /api/v1/albums/:index
	GetAlbum(c *gin.Context)

	// ListOrders returns all orders in placement order
	// GET /api/v1/orders
	ListOrders(c *gin.Context)

	// GetOrder returns a single order by id
	// GET /api/v1/orders/:id
	GetOrder(c *gin.Context)

	// AddAlbum appends a catalog entry (owner only)
	// POST /api/v1/albums
	AddAlbum(c *gin.Context)

	// BuyAlbum purchases one unit of an album with an exact attached value
	// POST /api/v1/albums/:index/buy
	BuyAlbum(c *gin.Context)

	// DeliverOrder confirms delivery of an order (owner only)
	// POST /api/v1/orders/:id/delivered
	DeliverOrder(c *gin.Context)

	// DirectTransfer is the bare value transfer path; always rejected
	// POST /api/v1/transfers
	DirectTransfer(c *gin.Context)

	// HealthCheck returns the health status of the API
	// GET /health
	HealthCheck(c *gin.Context)
}

// handler implements the Handler interface on top of the host chain
type handler struct {
	chain *chain.Chain
}

// NewHandler creates a new REST API handler
func NewHandler(c *chain.Chain) Handler {
	return &handler{chain: c}
}

// GetLedger returns the public read surface of the ledger
func (h *handler) GetLedger(c *gin.Context) {
	c.JSON(http.StatusOK, dto.Ledger{
		Owner:          h.chain.Owner().Hex(),
		CurrentIndex:   h.chain.CurrentIndex(),
		CurrentOrderID: h.chain.CurrentOrderID(),
		Balance:        h.chain.LedgerBalance().String(),
	})
}

// ListAlbums returns the whole catalog
func (h *handler) ListAlbums(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"albums": dto.FromAlbums(h.chain.Albums())})
}

// GetAlbum returns a single album by index
func (h *handler) GetAlbum(c *gin.Context) {
	index, ok := parseIndex(c, "index")
	if !ok {
		return
	}

	album, err := h.chain.Album(index)
	if err != nil {
		respondNotFound(c, "Album not found")
		return
	}

	c.JSON(http.StatusOK, dto.FromAlbum(album))
}

// ListOrders returns all orders
func (h *handler) ListOrders(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"orders": dto.FromOrders(h.chain.Orders())})
}

// GetOrder returns a single order by id
func (h *handler) GetOrder(c *gin.Context) {
	orderID, ok := parseIndex(c, "id")
	if !ok {
		return
	}

	order, err := h.chain.Order(orderID)
	if err != nil {
		respondNotFound(c, "Order not found")
		return
	}

	c.JSON(http.StatusOK, dto.FromOrder(order))
}

// AddAlbum appends a catalog entry (owner only)
func (h *handler) AddAlbum(c *gin.Context) {
	caller, ok := middleware.CallerAddress(c)
	if !ok {
		respondBadRequest(c, "Caller address is required")
		return
	}

	var req dto.AddAlbumRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body", err.Error())
		return
	}

	price, ok := parseValue(c, req.Price, "price")
	if !ok {
		return
	}

	// The ledger stores the uid verbatim; deriving it from the title here is
	// a convenience for clients that follow the keccak(title) convention.
	uid := domain.AlbumUID(req.Title)
	if req.UID != "" {
		raw, err := hexutil.Decode(req.UID)
		if err != nil || len(raw) != common.HashLength {
			respondBadRequest(c, "Invalid uid, expected a 32-byte hex string")
			return
		}
		uid = common.BytesToHash(raw)
	}

	album, receipt, err := h.chain.SubmitAddAlbum(caller, uid, req.Title, price, req.Quantity)
	if err != nil {
		respondLedgerError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.AlbumResult{
		Album:   dto.FromAlbum(album),
		Receipt: dto.FromReceipt(receipt),
	})
}

// BuyAlbum purchases one unit of an album
func (h *handler) BuyAlbum(c *gin.Context) {
	caller, ok := middleware.CallerAddress(c)
	if !ok {
		respondBadRequest(c, "Caller address is required")
		return
	}

	index, ok := parseIndex(c, "index")
	if !ok {
		return
	}

	var req dto.BuyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body", err.Error())
		return
	}

	value, ok := parseValue(c, req.Value, "value")
	if !ok {
		return
	}

	order, receipt, err := h.chain.SubmitBuy(caller, index, value)
	if err != nil {
		respondLedgerError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.OrderResult{
		Order:   dto.FromOrder(order),
		Receipt: dto.FromReceipt(receipt),
	})
}

// DeliverOrder confirms delivery of an order (owner only)
func (h *handler) DeliverOrder(c *gin.Context) {
	caller, ok := middleware.CallerAddress(c)
	if !ok {
		respondBadRequest(c, "Caller address is required")
		return
	}

	orderID, ok := parseIndex(c, "id")
	if !ok {
		return
	}

	order, receipt, err := h.chain.SubmitDelivered(caller, orderID)
	if err != nil {
		respondLedgerError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.OrderResult{
		Order:   dto.FromOrder(order),
		Receipt: dto.FromReceipt(receipt),
	})
}

// DirectTransfer is the bare value transfer path. The ledger takes value only
// through buy, so this always fails with the fixed rejection reason.
func (h *handler) DirectTransfer(c *gin.Context) {
	caller, ok := middleware.CallerAddress(c)
	if !ok {
		respondBadRequest(c, "Caller address is required")
		return
	}

	var req dto.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body", err.Error())
		return
	}

	value, ok := parseValue(c, req.Value, "value")
	if !ok {
		return
	}

	receipt, err := h.chain.SubmitTransfer(caller, value)
	if err != nil {
		respondLedgerError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"receipt": dto.FromReceipt(receipt)})
}

// HealthCheck returns the health status of the API
func (h *handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// parseIndex parses an unsigned integer path parameter, responding with 400
// on malformed input
func parseIndex(c *gin.Context, name string) (uint64, bool) {
	raw := c.Param(name)
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		respondBadRequest(c, "Invalid "+name, raw)
		return 0, false
	}
	return value, true
}

// parseValue parses a non-negative decimal amount in the smallest native unit
func parseValue(c *gin.Context, raw string, name string) (*big.Int, bool) {
	value, ok := new(big.Int).SetString(raw, 10)
	if !ok || value.Sign() < 0 {
		respondBadRequest(c, "Invalid "+name+", expected a non-negative decimal string", raw)
		return nil, false
	}
	return value, true
}
