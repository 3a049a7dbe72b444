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

// ItemHandler handles item creation, metadata updates and lookups.
type ItemHandler struct {
	items *service.ItemService
	cache cache.Cache
	ttl   time.Duration
}

// NewItemHandler creates a new item handler. The cache is optional.
func NewItemHandler(items *service.ItemService, c cache.Cache, ttl time.Duration) *ItemHandler {
	return &ItemHandler{
		items: items,
		cache: c,
		ttl:   ttl,
	}
}

type createItemRequest struct {
	Creator      string `json:"creator"`
	Collection   string `json:"collection,omitempty"`
	Name         string `json:"name"`
	URI          string `json:"uri"`
	IsCollection bool   `json:"is_collection"`
}

// Create handles POST /api/v1/items
func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, badJSON(err))
		return
	}

	creator, apiErr := parseAddressParam(req.Creator)
	if apiErr != nil {
		response.Error(w, apiErr)
		return
	}

	params := service.CreateItemParams{
		Creator:      creator,
		Name:         req.Name,
		URI:          req.URI,
		IsCollection: req.IsCollection,
	}
	if req.Collection != "" {
		collection, apiErr := parseAddressParam(req.Collection)
		if apiErr != nil {
			response.Error(w, apiErr)
			return
		}
		params.Collection = collection
	}

	item, err := h.items.CreateItem(r.Context(), params)
	if err != nil {
		response.Error(w, mapError(err))
		return
	}

	response.Created(w, item)
}

type updateItemRequest struct {
	Authority string  `json:"authority"`
	Name      *string `json:"name,omitempty"`
	URI       *string `json:"uri,omitempty"`
}

// Update handles PATCH /api/v1/items/{address}
func (h *ItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	addr, apiErr := parseAddressParam(chi.URLParam(r, "address"))
	if apiErr != nil {
		response.Error(w, apiErr)
		return
	}

	var req updateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, badJSON(err))
		return
	}
	authority, apiErr := parseAddressParam(req.Authority)
	if apiErr != nil {
		response.Error(w, apiErr)
		return
	}

	item, err := h.items.UpdateItem(r.Context(), authority, addr, req.Name, req.URI)
	if err != nil {
		response.Error(w, mapError(err))
		return
	}

	if h.cache != nil {
		_ = h.cache.Delete(r.Context(), "item:"+addr.String())
	}
	response.OK(w, item)
}

// Get handles GET /api/v1/items/{address}
func (h *ItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	addr, apiErr := parseAddressParam(chi.URLParam(r, "address"))
	if apiErr != nil {
		response.Error(w, apiErr)
		return
	}

	ctx := r.Context()

	if h.cache != nil {
		data, err := h.cache.GetOrSet(ctx, "item:"+addr.String(), h.ttl, func() ([]byte, error) {
			item, err := h.items.GetItem(ctx, addr)
			if err != nil {
				return nil, err
			}
			return json.Marshal(item)
		})
		if err != nil {
			response.Error(w, mapError(err))
			return
		}
		response.OK(w, json.RawMessage(data))
		return
	}

	item, err := h.items.GetItem(ctx, addr)
	if err != nil {
		response.Error(w, mapError(err))
		return
	}
	response.OK(w, item)
}
