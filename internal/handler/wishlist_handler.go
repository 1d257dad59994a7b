package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/barter-backend/internal/service"
)

type WishlistHandler struct {
	svc service.WishlistService
}

func NewWishlistHandler(svc service.WishlistService) *WishlistHandler {
	return &WishlistHandler{svc: svc}
}

func (h *WishlistHandler) List(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return unauthorized(c)
	}
	items, err := h.svc.List(c.Request().Context(), uid)
	if err != nil {
		return writeServiceError(c, err, "failed to fetch wishlist")
	}
	return c.JSON(http.StatusOK, ItemListResponse{Items: toItemResponses(items), Total: int64(len(items))})
}

func (h *WishlistHandler) Add(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return unauthorized(c)
	}
	id, ok := parseIDParam(c, "itemId")
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid item id"))
	}
	if err := h.svc.Add(c.Request().Context(), uid, id); err != nil {
		return writeServiceError(c, err, "failed to save item")
	}
	return c.JSON(http.StatusOK, map[string]bool{"saved": true})
}

func (h *WishlistHandler) Remove(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return unauthorized(c)
	}
	id, ok := parseIDParam(c, "itemId")
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid item id"))
	}
	if err := h.svc.Remove(c.Request().Context(), uid, id); err != nil {
		return writeServiceError(c, err, "failed to remove item")
	}
	return c.JSON(http.StatusOK, map[string]bool{"saved": false})
}

// Toggle flips the saved state of an item, as the heart button on the explore grid does.
func (h *WishlistHandler) Toggle(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return unauthorized(c)
	}
	id, ok := parseIDParam(c, "itemId")
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid item id"))
	}
	saved, err := h.svc.Toggle(c.Request().Context(), uid, id)
	if err != nil {
		return writeServiceError(c, err, "failed to toggle item")
	}
	return c.JSON(http.StatusOK, map[string]bool{"saved": saved})
}
