package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"nftmarket-api/internal/cache"
	"nftmarket-api/internal/service"
	"nftmarket-api/pkg/response"

	"github.com/go-chi/chi/v5"
)

// MarketHandler handles marketplace, listing and settlement HTTP requests.
type MarketHandler struct {
	market *service.MarketService
	cache  cache.Cache
	ttl    time.Duration
}

// NewMarketHandler creates a new market handler. The cache is optional.
func NewMarketHandler(market *service.MarketService, c cache.Cache, ttl time.Duration) *MarketHandler {
	return &MarketHandler{
		market: market,
		cache:  c,
		ttl:    ttl,
	}
}

type initializeRequest struct {
	Admin  string `json:"admin"`
	Name   string `json:"name"`
	FeeBps uint16 `json:"fee_bps"`
}

// Initialize handles POST /api/v1/marketplaces
func (h *MarketHandler) Initialize(w http.ResponseWriter, r *http.Request) {
	var req initializeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, badJSON(err))
		return
	}

	admin, apiErr := parseAddressParam(req.Admin)
	if apiErr != nil {
		response.Error(w, apiErr)
		return
	}

	m, err := h.market.InitializeMarketplace(r.Context(), admin, req.Name, req.FeeBps)
	if err != nil {
		response.Error(w, mapError(err))
		return
	}

	response.Created(w, m)
}

// GetMarketplace handles GET /api/v1/marketplaces/{address}
func (h *MarketHandler) GetMarketplace(w http.ResponseWriter, r *http.Request) {
	addr, apiErr := parseAddressParam(chi.URLParam(r, "address"))
	if apiErr != nil {
		response.Error(w, apiErr)
		return
	}

	ctx := r.Context()
	key := "marketplace:" + addr.String()

	if h.cache != nil {
		data, err := h.cache.GetOrSet(ctx, key, h.ttl, func() ([]byte, error) {
			m, err := h.market.GetMarketplace(ctx, addr)
			if err != nil {
				return nil, err
			}
			return json.Marshal(m)
		})
		if err != nil {
			response.Error(w, mapError(err))
			return
		}
		response.OK(w, json.RawMessage(data))
		return
	}

	m, err := h.market.GetMarketplace(ctx, addr)
	if err != nil {
		response.Error(w, mapError(err))
		return
	}
	response.OK(w, m)
}

type listRequest struct {
	Seller  string `json:"seller"`
	Item    string `json:"item"`
	Price   uint64 `json:"price"`
	TokenID uint16 `json:"token_id"`
}

// List handles POST /api/v1/marketplaces/{address}/listings
func (h *MarketHandler) List(w http.ResponseWriter, r *http.Request) {
	marketplace, apiErr := parseAddressParam(chi.URLParam(r, "address"))
	if apiErr != nil {
		response.Error(w, apiErr)
		return
	}

	var req listRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, badJSON(err))
		return
	}
	seller, apiErr := parseAddressParam(req.Seller)
	if apiErr != nil {
		response.Error(w, apiErr)
		return
	}
	item, apiErr := parseAddressParam(req.Item)
	if apiErr != nil {
		response.Error(w, apiErr)
		return
	}

	listing, err := h.market.List(r.Context(), seller, marketplace, item, req.Price, req.TokenID)
	if err != nil {
		response.Error(w, mapError(err))
		return
	}

	h.invalidate(r, marketplace.String(), item.String())
	response.Created(w, listing)
}

// GetListing handles GET /api/v1/marketplaces/{address}/listings/{item}
func (h *MarketHandler) GetListing(w http.ResponseWriter, r *http.Request) {
	marketplace, apiErr := parseAddressParam(chi.URLParam(r, "address"))
	if apiErr != nil {
		response.Error(w, apiErr)
		return
	}
	item, apiErr := parseAddressParam(chi.URLParam(r, "item"))
	if apiErr != nil {
		response.Error(w, apiErr)
		return
	}

	ctx := r.Context()
	key := "listing:" + marketplace.String() + ":" + item.String()

	if h.cache != nil {
		data, err := h.cache.GetOrSet(ctx, key, h.ttl, func() ([]byte, error) {
			listing, err := h.market.GetListing(ctx, marketplace, item)
			if err != nil {
				return nil, err
			}
			return json.Marshal(listing)
		})
		if err != nil {
			response.Error(w, mapError(err))
			return
		}
		response.OK(w, json.RawMessage(data))
		return
	}

	listing, err := h.market.GetListing(ctx, marketplace, item)
	if err != nil {
		response.Error(w, mapError(err))
		return
	}
	response.OK(w, listing)
}

type purchaseRequest struct {
	Buyer string `json:"buyer"`
}

// Purchase handles POST /api/v1/marketplaces/{address}/listings/{item}/purchase
func (h *MarketHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	marketplace, apiErr := parseAddressParam(chi.URLParam(r, "address"))
	if apiErr != nil {
		response.Error(w, apiErr)
		return
	}
	item, apiErr := parseAddressParam(chi.URLParam(r, "item"))
	if apiErr != nil {
		response.Error(w, apiErr)
		return
	}

	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, badJSON(err))
		return
	}
	buyer, apiErr := parseAddressParam(req.Buyer)
	if apiErr != nil {
		response.Error(w, apiErr)
		return
	}

	receipt, err := h.market.Purchase(r.Context(), buyer, marketplace, item)
	if err != nil {
		response.Error(w, mapError(err))
		return
	}

	h.invalidate(r, marketplace.String(), item.String())
	response.OK(w, receipt)
}

type redeemRequest struct {
	Owner string `json:"owner"`
}

// Redeem handles POST /api/v1/marketplaces/{address}/listings/{item}/redeem
func (h *MarketHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	marketplace, apiErr := parseAddressParam(chi.URLParam(r, "address"))
	if apiErr != nil {
		response.Error(w, apiErr)
		return
	}
	item, apiErr := parseAddressParam(chi.URLParam(r, "item"))
	if apiErr != nil {
		response.Error(w, apiErr)
		return
	}

	var req redeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, badJSON(err))
		return
	}
	owner, apiErr := parseAddressParam(req.Owner)
	if apiErr != nil {
		response.Error(w, apiErr)
		return
	}

	receipt, err := h.market.Redeem(r.Context(), owner, marketplace, item)
	if err != nil {
		response.Error(w, mapError(err))
		return
	}

	h.invalidate(r, marketplace.String(), item.String())
	response.OK(w, receipt)
}

// invalidate drops cached reads touched by a successful write.
func (h *MarketHandler) invalidate(r *http.Request, marketplace, item string) {
	if h.cache == nil {
		return
	}
	ctx := r.Context()
	_ = h.cache.Delete(ctx, "listing:"+marketplace+":"+item)
	_ = h.cache.Delete(ctx, "item:"+item)
}
