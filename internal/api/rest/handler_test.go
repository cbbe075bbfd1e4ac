package rest_test

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavecrest/music-shop-ledger/internal/adapter"
	"github.com/wavecrest/music-shop-ledger/internal/api/middleware"
	"github.com/wavecrest/music-shop-ledger/internal/api/rest"
	"github.com/wavecrest/music-shop-ledger/internal/api/rest/dto"
	"github.com/wavecrest/music-shop-ledger/internal/chain"
	"github.com/wavecrest/music-shop-ledger/internal/domain"
	"github.com/wavecrest/music-shop-ledger/internal/logger"
)

var (
	owner      = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	buyer      = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	ledgerAddr = common.HexToAddress("0x0000000000000000000000000000000000000100")
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)

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

func newTestRouter() (*gin.Engine, *chain.Chain) {
	c := chain.New(chain.Config{
		Owner:          owner,
		LedgerAddress:  ledgerAddr,
		GenesisBalance: big.NewInt(1000),
	}, adapter.NewClock())

	router := gin.New()
	rest.SetupRoutes(router, rest.NewHandler(c))

	return router, c
}

func doRequest(router *gin.Engine, method, path string, caller *common.Address, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if caller != nil {
		req.Header.Set(middleware.CallerHeader, caller.Hex())
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func addDemoAlbum(t *testing.T, router *gin.Engine) dto.Album {
	t.Helper()

	w := doRequest(router, http.MethodPost, "/api/v1/albums", &owner, dto.AddAlbumRequest{
		Title:    "Demo",
		Price:    "100",
		Quantity: 5,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var result dto.AlbumResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	return result.Album
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error.Code
}

func TestHealthCheck(t *testing.T) {
	router, _ := newTestRouter()

	w := doRequest(router, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetLedger(t *testing.T) {
	router, _ := newTestRouter()
	addDemoAlbum(t, router)

	w := doRequest(router, http.MethodGet, "/api/v1/ledger", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var ledger dto.Ledger
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ledger))
	assert.Equal(t, owner.Hex(), ledger.Owner)
	assert.Equal(t, uint64(1), ledger.CurrentIndex)
	assert.Equal(t, uint64(0), ledger.CurrentOrderID)
	assert.Equal(t, "0", ledger.Balance)
}

func TestAddAlbum(t *testing.T) {
	router, _ := newTestRouter()

	album := addDemoAlbum(t, router)

	assert.Equal(t, uint64(0), album.Index)
	assert.Equal(t, domain.AlbumUID("Demo").Hex(), album.UID)
	assert.Equal(t, "Demo", album.Title)
	assert.Equal(t, "100", album.Price)
	assert.Equal(t, uint64(5), album.Quantity)
}

func TestAddAlbum_ExplicitUID(t *testing.T) {
	router, _ := newTestRouter()

	uid := common.HexToHash("0x1111111111111111111111111111111111111111111111111111111111111111")
	w := doRequest(router, http.MethodPost, "/api/v1/albums", &owner, dto.AddAlbumRequest{
		UID:      uid.Hex(),
		Title:    "Demo",
		Price:    "100",
		Quantity: 5,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var result dto.AlbumResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, uid.Hex(), result.Album.UID)
}

func TestAddAlbum_InvalidUID(t *testing.T) {
	router, _ := newTestRouter()

	w := doRequest(router, http.MethodPost, "/api/v1/albums", &owner, dto.AddAlbumRequest{
		UID:      "0x1234",
		Title:    "Demo",
		Price:    "100",
		Quantity: 5,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAddAlbum_MissingCaller(t *testing.T) {
	router, _ := newTestRouter()

	w := doRequest(router, http.MethodPost, "/api/v1/albums", nil, dto.AddAlbumRequest{
		Title:    "Demo",
		Price:    "100",
		Quantity: 5,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAddAlbum_NonOwner(t *testing.T) {
	router, _ := newTestRouter()

	w := doRequest(router, http.MethodPost, "/api/v1/albums", &buyer, dto.AddAlbumRequest{
		Title:    "Demo",
		Price:    "100",
		Quantity: 5,
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "unauthorized", errorCode(t, w))
}

func TestAddAlbum_InvalidPrice(t *testing.T) {
	router, _ := newTestRouter()

	w := doRequest(router, http.MethodPost, "/api/v1/albums", &owner, dto.AddAlbumRequest{
		Title:    "Demo",
		Price:    "a lot",
		Quantity: 5,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetAlbum(t *testing.T) {
	router, _ := newTestRouter()
	addDemoAlbum(t, router)

	w := doRequest(router, http.MethodGet, "/api/v1/albums/0", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodGet, "/api/v1/albums/7", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(router, http.MethodGet, "/api/v1/albums/abc", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBuyAlbum(t *testing.T) {
	router, c := newTestRouter()
	album := addDemoAlbum(t, router)

	w := doRequest(router, http.MethodPost, "/api/v1/albums/0/buy", &buyer, dto.BuyRequest{Value: "100"})
	require.Equal(t, http.StatusCreated, w.Code)

	var result dto.OrderResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, uint64(0), result.Order.OrderID)
	assert.Equal(t, album.UID, result.Order.AlbumUID)
	assert.Equal(t, buyer.Hex(), result.Order.Customer)
	assert.Equal(t, "ordered", result.Order.Status)
	assert.NotEmpty(t, result.Receipt.TxID)

	assert.Equal(t, big.NewInt(100), c.LedgerBalance())
	assert.Equal(t, big.NewInt(900), c.BalanceOf(buyer))
}

func TestBuyAlbum_IncorrectPayment(t *testing.T) {
	router, c := newTestRouter()
	addDemoAlbum(t, router)

	w := doRequest(router, http.MethodPost, "/api/v1/albums/0/buy", &buyer, dto.BuyRequest{Value: "99"})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Equal(t, "incorrect_payment", errorCode(t, w))

	assert.Equal(t, big.NewInt(0), c.LedgerBalance())
	assert.Equal(t, uint64(0), c.CurrentOrderID())
}

func TestBuyAlbum_OutOfStock(t *testing.T) {
	router, _ := newTestRouter()

	w := doRequest(router, http.MethodPost, "/api/v1/albums", &owner, dto.AddAlbumRequest{
		Title:    "Rare",
		Price:    "100",
		Quantity: 1,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doRequest(router, http.MethodPost, "/api/v1/albums/0/buy", &buyer, dto.BuyRequest{Value: "100"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doRequest(router, http.MethodPost, "/api/v1/albums/0/buy", &buyer, dto.BuyRequest{Value: "100"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "out_of_stock", errorCode(t, w))
}

func TestBuyAlbum_UnknownAlbum(t *testing.T) {
	router, _ := newTestRouter()

	w := doRequest(router, http.MethodPost, "/api/v1/albums/3/buy", &buyer, dto.BuyRequest{Value: "100"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeliverOrder(t *testing.T) {
	router, _ := newTestRouter()
	addDemoAlbum(t, router)

	w := doRequest(router, http.MethodPost, "/api/v1/albums/0/buy", &buyer, dto.BuyRequest{Value: "100"})
	require.Equal(t, http.StatusCreated, w.Code)

	// Only the owner may confirm delivery
	w = doRequest(router, http.MethodPost, "/api/v1/orders/0/delivered", &buyer, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doRequest(router, http.MethodPost, "/api/v1/orders/0/delivered", &owner, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var result dto.OrderResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "delivered", result.Order.Status)

	w = doRequest(router, http.MethodPost, "/api/v1/orders/0/delivered", &owner, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "already_delivered", errorCode(t, w))
}

func TestDirectTransfer_AlwaysRejected(t *testing.T) {
	router, c := newTestRouter()

	w := doRequest(router, http.MethodPost, "/api/v1/transfers", &buyer, dto.TransferRequest{Value: "100"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "direct_transfer_rejected", errorCode(t, w))

	assert.Equal(t, big.NewInt(1000), c.BalanceOf(buyer))
	assert.Equal(t, big.NewInt(0), c.BalanceOf(ledgerAddr))
}

func TestListAlbumsAndOrders(t *testing.T) {
	router, _ := newTestRouter()
	addDemoAlbum(t, router)

	w := doRequest(router, http.MethodPost, "/api/v1/albums/0/buy", &buyer, dto.BuyRequest{Value: "100"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doRequest(router, http.MethodGet, "/api/v1/albums", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var albums struct {
		Albums []dto.Album `json:"albums"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &albums))
	require.Len(t, albums.Albums, 1)
	assert.Equal(t, uint64(4), albums.Albums[0].Quantity)

	w = doRequest(router, http.MethodGet, "/api/v1/orders", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var orders struct {
		Orders []dto.Order `json:"orders"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &orders))
	require.Len(t, orders.Orders, 1)
	assert.Equal(t, buyer.Hex(), orders.Orders[0].Customer)
}
