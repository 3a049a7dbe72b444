package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"nftmarket-api/internal/cache"
	"nftmarket-api/internal/handler"
	"nftmarket-api/internal/repository"
	"nftmarket-api/internal/router"
	"nftmarket-api/internal/service"
	"nftmarket-api/pkg/derive"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiFixture struct {
	repo   repository.LedgerRepository
	server *httptest.Server
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	repo, err := repository.NewSQLiteLedgerRepository(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	items := service.NewItemService(repo)
	market := service.NewMarketService(repo, items, service.MarketOptions{})
	accounts := service.NewAccountService(repo)

	readCache := cache.NewMemoryCache()
	ttl := time.Minute

	r := router.New(router.Config{
		Handler:        handler.New(),
		MarketHandler:  handler.NewMarketHandler(market, readCache, ttl),
		ItemHandler:    handler.NewItemHandler(items, readCache, ttl),
		AccountHandler: handler.NewAccountHandler(accounts),
		AdminHandler:   handler.NewAdminHandler(repo, "sqlite"),
	})

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return &apiFixture{repo: repo, server: server}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (f *apiFixture) do(t *testing.T, method, path string, body interface{}) (int, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, f.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func (f *apiFixture) fund(t *testing.T, addr derive.Address, amount uint64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.repo.InTx(ctx, func(tx repository.Tx) error {
		return tx.Credit(ctx, addr, amount)
	}))
}

func TestHealthEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	code, env := f.do(t, http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)

	code, _ = f.do(t, http.MethodGet, "/api/v1/ready", nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = f.do(t, http.MethodGet, "/api/status", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestMarketplaceFlow(t *testing.T) {
	f := newAPIFixture(t)

	admin := derive.Random()
	f.fund(t, admin, 10_000_000)

	// Initialize the marketplace.
	code, env := f.do(t, http.MethodPost, "/api/v1/marketplaces", map[string]interface{}{
		"admin":   admin.String(),
		"name":    "api market",
		"fee_bps": 500,
	})
	require.Equal(t, http.StatusCreated, code)
	require.True(t, env.Success)

	var marketplace struct {
		Address  string `json:"address"`
		Treasury string `json:"treasury"`
		FeeBps   uint16 `json:"fee_bps"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &marketplace))
	assert.Equal(t, uint16(500), marketplace.FeeBps)

	// Read it back, through the cache.
	code, env = f.do(t, http.MethodGet, "/api/v1/marketplaces/"+marketplace.Address, nil)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)

	// Mint an item for the seller.
	seller := derive.Random()
	f.fund(t, seller, 10_000_000)

	code, env = f.do(t, http.MethodPost, "/api/v1/items", map[string]interface{}{
		"creator": seller.String(),
		"name":    "api item",
		"uri":     "https://example.com/api.json",
	})
	require.Equal(t, http.StatusCreated, code)

	var item struct {
		Address string `json:"address"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &item))

	// List it.
	listingsPath := "/api/v1/marketplaces/" + marketplace.Address + "/listings"
	code, env = f.do(t, http.MethodPost, listingsPath, map[string]interface{}{
		"seller": seller.String(),
		"item":   item.Address,
		"price":  1000,
	})
	require.Equal(t, http.StatusCreated, code)

	var listing struct {
		Escrow   string `json:"escrow"`
		IsActive bool   `json:"is_active"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &listing))
	assert.True(t, listing.IsActive)

	// The escrowed item reads with the escrow as owner.
	code, env = f.do(t, http.MethodGet, "/api/v1/items/"+item.Address, nil)
	require.Equal(t, http.StatusOK, code)
	var escrowedItem struct {
		Owner string `json:"owner"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &escrowedItem))
	assert.Equal(t, listing.Escrow, escrowedItem.Owner)

	// Purchase.
	buyer := derive.Random()
	f.fund(t, buyer, 10_000_000)

	code, env = f.do(t, http.MethodPost, listingsPath+"/"+item.Address+"/purchase", map[string]interface{}{
		"buyer": buyer.String(),
	})
	require.Equal(t, http.StatusOK, code)

	var receipt struct {
		Fee            uint64 `json:"fee"`
		SellerProceeds uint64 `json:"seller_proceeds"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &receipt))
	assert.Equal(t, uint64(50), receipt.Fee)
	assert.Equal(t, uint64(950), receipt.SellerProceeds)

	// The listing is gone; cache invalidation means the miss is visible
	// immediately.
	code, env = f.do(t, http.MethodGet, listingsPath+"/"+item.Address, nil)
	assert.Equal(t, http.StatusNotFound, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "LISTING_NOT_FOUND", env.Error.Code)

	// The buyer now owns the item.
	code, env = f.do(t, http.MethodGet, "/api/v1/items/"+item.Address, nil)
	require.Equal(t, http.StatusOK, code)
	var boughtItem struct {
		Owner string `json:"owner"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &boughtItem))
	assert.Equal(t, buyer.String(), boughtItem.Owner)

	// Balances are queryable over the API too.
	code, env = f.do(t, http.MethodGet, "/api/v1/accounts/"+seller.String(), nil)
	require.Equal(t, http.StatusOK, code)
	var account struct {
		Balance uint64 `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &account))
	assert.NotZero(t, account.Balance)
}

func TestRedeemFlow(t *testing.T) {
	f := newAPIFixture(t)

	admin := derive.Random()
	seller := derive.Random()
	f.fund(t, admin, 10_000_000)
	f.fund(t, seller, 10_000_000)

	_, env := f.do(t, http.MethodPost, "/api/v1/marketplaces", map[string]interface{}{
		"admin":   admin.String(),
		"name":    "redeem market",
		"fee_bps": 500,
	})
	var marketplace struct {
		Address string `json:"address"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &marketplace))

	_, env = f.do(t, http.MethodPost, "/api/v1/items", map[string]interface{}{
		"creator": seller.String(),
		"name":    "doomed item",
		"uri":     "uri",
	})
	var item struct {
		Address string `json:"address"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &item))

	listingsPath := "/api/v1/marketplaces/" + marketplace.Address + "/listings"
	code, _ := f.do(t, http.MethodPost, listingsPath, map[string]interface{}{
		"seller": seller.String(),
		"item":   item.Address,
		"price":  1000,
	})
	require.Equal(t, http.StatusCreated, code)

	// A stranger cannot redeem.
	code, env = f.do(t, http.MethodPost, listingsPath+"/"+item.Address+"/redeem", map[string]interface{}{
		"owner": derive.Random().String(),
	})
	assert.Equal(t, http.StatusForbidden, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "SELLER_MISMATCH", env.Error.Code)

	// The seller can.
	code, env = f.do(t, http.MethodPost, listingsPath+"/"+item.Address+"/redeem", map[string]interface{}{
		"owner": seller.String(),
	})
	require.Equal(t, http.StatusOK, code)

	var receipt struct {
		Fee uint64 `json:"fee"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &receipt))
	assert.Equal(t, uint64(25), receipt.Fee)

	// The item was burned with the listing.
	code, env = f.do(t, http.MethodGet, "/api/v1/items/"+item.Address, nil)
	assert.Equal(t, http.StatusNotFound, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "ITEM_NOT_FOUND", env.Error.Code)
}

func TestErrorResponses(t *testing.T) {
	f := newAPIFixture(t)

	admin := derive.Random()
	f.fund(t, admin, 10_000_000)

	// Invalid address in the path.
	code, env := f.do(t, http.MethodGet, "/api/v1/marketplaces/nothex", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_ADDRESS", env.Error.Code)

	// Validation failure on a fee above 100%.
	code, env = f.do(t, http.MethodPost, "/api/v1/marketplaces", map[string]interface{}{
		"admin":   admin.String(),
		"name":    "bad fee",
		"fee_bps": 10001,
	})
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_FEE_BPS", env.Error.Code)

	// Unknown marketplace.
	code, env = f.do(t, http.MethodGet, "/api/v1/marketplaces/"+derive.Random().String(), nil)
	assert.Equal(t, http.StatusNotFound, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "MARKETPLACE_NOT_FOUND", env.Error.Code)

	// An underfunded buyer maps to 402.
	seller := derive.Random()
	f.fund(t, seller, 10_000_000)

	_, env = f.do(t, http.MethodPost, "/api/v1/marketplaces", map[string]interface{}{
		"admin":   admin.String(),
		"name":    "err market",
		"fee_bps": 500,
	})
	var marketplace struct {
		Address string `json:"address"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &marketplace))

	_, env = f.do(t, http.MethodPost, "/api/v1/items", map[string]interface{}{
		"creator": seller.String(),
		"name":    "pricey",
		"uri":     "uri",
	})
	var item struct {
		Address string `json:"address"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &item))

	listingsPath := "/api/v1/marketplaces/" + marketplace.Address + "/listings"
	code, _ = f.do(t, http.MethodPost, listingsPath, map[string]interface{}{
		"seller": seller.String(),
		"item":   item.Address,
		"price":  1000,
	})
	require.Equal(t, http.StatusCreated, code)

	code, env = f.do(t, http.MethodPost, fmt.Sprintf("%s/%s/purchase", listingsPath, item.Address), map[string]interface{}{
		"buyer": derive.Random().String(),
	})
	assert.Equal(t, http.StatusPaymentRequired, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INSUFFICIENT_FUNDS", env.Error.Code)
}

func TestAdminStats(t *testing.T) {
	f := newAPIFixture(t)

	code, env := f.do(t, http.MethodGet, "/api/v1/admin/stats", nil)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)

	var stats map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, "sqlite", stats["db_type"])
	assert.Contains(t, stats, "ledger")
}

func TestFaucet(t *testing.T) {
	f := newAPIFixture(t)

	addr := derive.Random()
	code, env := f.do(t, http.MethodPost, "/api/v1/admin/accounts/"+addr.String()+"/credit", map[string]interface{}{
		"amount": 12345,
	})
	require.Equal(t, http.StatusOK, code)

	var account struct {
		Balance uint64 `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &account))
	assert.Equal(t, uint64(12345), account.Balance)
}
