package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/barter-backend/internal/model"
	"github.com/shinyyama/barter-backend/internal/repository"
	"github.com/shinyyama/barter-backend/internal/service"
)

type ItemHandler struct {
	svc service.ItemService
}

func NewItemHandler(svc service.ItemService) *ItemHandler {
	return &ItemHandler{svc: svc}
}

type ItemResponse struct {
	ID             uint64   `json:"id"`
	OwnerUID       string   `json:"ownerUid"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	EstimatedValue *float64 `json:"estimatedValue"`
	ImageURL       *string  `json:"imageUrl,omitempty"`
	DesiredItems   []string `json:"desiredItems"`
	CreatedAt      string   `json:"createdAt"`
	UpdatedAt      string   `json:"updatedAt"`
}

type ItemListResponse struct {
	Items []ItemResponse `json:"items"`
	Total int64          `json:"total"`
}

type CreateItemRequest struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	ImageURL       *string  `json:"imageUrl"`
	DesiredItems   []string `json:"desiredItems"`
	EstimatedValue *float64 `json:"estimatedValue"`
}

func (h *ItemHandler) Create(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return unauthorized(c)
	}
	var req CreateItemRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	item, err := h.svc.Create(c.Request().Context(), uid, service.CreateItemInput{
		Title:          req.Title,
		Description:    req.Description,
		ImageURL:       req.ImageURL,
		DesiredItems:   req.DesiredItems,
		EstimatedValue: req.EstimatedValue,
	})
	if err != nil {
		return writeServiceError(c, err, "failed to create item")
	}
	return c.JSON(http.StatusCreated, toItemResponse(item))
}

func (h *ItemHandler) Get(c echo.Context) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid id"))
	}
	item, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return writeServiceError(c, err, "failed to fetch item")
	}
	return c.JSON(http.StatusOK, toItemResponse(item))
}

func (h *ItemHandler) List(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	f := repository.ItemFilter{
		Query:      strings.TrimSpace(c.QueryParam("q")),
		ExcludeUID: currentUID(c),
		Limit:      limit,
		Offset:     offset,
	}
	var ok bool
	if f.MinValue, ok = parseFloatQuery(c, "min"); !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid min"))
	}
	if f.MaxValue, ok = parseFloatQuery(c, "max"); !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid max"))
	}
	items, total, err := h.svc.Explore(c.Request().Context(), f)
	if err != nil {
		return writeServiceError(c, err, "failed to fetch items")
	}
	return c.JSON(http.StatusOK, ItemListResponse{Items: toItemResponses(items), Total: total})
}

func (h *ItemHandler) ListMine(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return unauthorized(c)
	}
	items, err := h.svc.ListByOwner(c.Request().Context(), uid)
	if err != nil {
		return writeServiceError(c, err, "failed to fetch items")
	}
	return c.JSON(http.StatusOK, ItemListResponse{Items: toItemResponses(items), Total: int64(len(items))})
}

func (h *ItemHandler) Delete(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return unauthorized(c)
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid id"))
	}
	if err := h.svc.Delete(c.Request().Context(), id, uid); err != nil {
		return writeServiceError(c, err, "failed to delete item")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ItemHandler) Revalue(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return unauthorized(c)
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid id"))
	}
	item, err := h.svc.Revalue(c.Request().Context(), id, uid)
	if err != nil {
		return writeServiceError(c, err, "failed to revalue item")
	}
	return c.JSON(http.StatusOK, toItemResponse(item))
}

func parseFloatQuery(c echo.Context, name string) (*float64, bool) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, false
	}
	return &v, true
}

func toItemResponse(item *model.Item) ItemResponse {
	desired := item.DesiredItems
	if desired == nil {
		desired = []string{}
	}
	return ItemResponse{
		ID:             item.ID,
		OwnerUID:       item.OwnerUID,
		Title:          item.Title,
		Description:    item.Description,
		EstimatedValue: item.EstimatedValue,
		ImageURL:       item.ImageURL,
		DesiredItems:   desired,
		CreatedAt:      item.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      item.UpdatedAt.Format(time.RFC3339),
	}
}

func toItemResponses(items []model.Item) []ItemResponse {
	out := make([]ItemResponse, 0, len(items))
	for i := range items {
		out = append(out, toItemResponse(&items[i]))
	}
	return out
}
