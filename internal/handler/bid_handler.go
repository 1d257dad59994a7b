package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/barter-backend/internal/model"
	"github.com/shinyyama/barter-backend/internal/service"
)

type BidHandler struct {
	svc service.BidService
}

func NewBidHandler(svc service.BidService) *BidHandler {
	return &BidHandler{svc: svc}
}

type BidResponse struct {
	ID            uint64  `json:"id"`
	OfferedItemID uint64  `json:"offeredItemId"`
	TargetItemID  uint64  `json:"targetItemId"`
	BidderUID     string  `json:"bidderUid"`
	Status        string  `json:"status"`
	CreatedAt     string  `json:"createdAt"`
	ResolvedAt    *string `json:"resolvedAt,omitempty"`
}

type BidViewResponse struct {
	BidResponse
	OfferedItem *ItemResponse `json:"offeredItem,omitempty"`
	TargetItem  *ItemResponse `json:"targetItem,omitempty"`
}

type placeBidRequest struct {
	OfferedItemIDs []uint64 `json:"offeredItemIds"`
}

type resolveBidRequest struct {
	Status string `json:"status"`
}

type PlaceBidResponse struct {
	Bids     []BidResponse `json:"bids"`
	Notified bool          `json:"notified"`
}

type ResolveBidResponse struct {
	Bid      BidResponse `json:"bid"`
	Notified bool        `json:"notified"`
}

func (h *BidHandler) Place(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return unauthorized(c)
	}
	target, ok := parseIDParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid id"))
	}
	var req placeBidRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	res, err := h.svc.PlaceBid(c.Request().Context(), uid, target, req.OfferedItemIDs)
	if err != nil {
		return writeServiceError(c, err, "failed to place bid")
	}
	resp := PlaceBidResponse{
		Bids:     make([]BidResponse, 0, len(res.Bids)),
		Notified: res.Notification != nil && res.NotifyErr == nil,
	}
	for i := range res.Bids {
		resp.Bids = append(resp.Bids, toBidResponse(&res.Bids[i]))
	}
	return c.JSON(http.StatusCreated, resp)
}

func (h *BidHandler) Resolve(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return unauthorized(c)
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid id"))
	}
	var req resolveBidRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	res, err := h.svc.ResolveBid(c.Request().Context(), id, req.Status, uid)
	if err != nil {
		return writeServiceError(c, err, "failed to resolve bid")
	}
	return c.JSON(http.StatusOK, ResolveBidResponse{Bid: toBidResponse(res.Bid), Notified: res.Notified()})
}

func (h *BidHandler) Incoming(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return unauthorized(c)
	}
	views, err := h.svc.ListIncoming(c.Request().Context(), uid)
	if err != nil {
		return writeServiceError(c, err, "failed to fetch bids")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"bids": toBidViews(views)})
}

func (h *BidHandler) Outgoing(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return unauthorized(c)
	}
	views, err := h.svc.ListOutgoing(c.Request().Context(), uid)
	if err != nil {
		return writeServiceError(c, err, "failed to fetch bids")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"bids": toBidViews(views)})
}

func toBidResponse(b *model.Bid) BidResponse {
	resp := BidResponse{
		ID:            b.ID,
		OfferedItemID: b.OfferedItemID,
		TargetItemID:  b.TargetItemID,
		BidderUID:     b.BidderUID,
		Status:        b.Status,
		CreatedAt:     b.CreatedAt.Format(time.RFC3339),
	}
	if b.ResolvedAt != nil {
		s := b.ResolvedAt.Format(time.RFC3339)
		resp.ResolvedAt = &s
	}
	return resp
}

func toBidViews(views []service.BidView) []BidViewResponse {
	out := make([]BidViewResponse, 0, len(views))
	for i := range views {
		out = append(out, BidViewResponse{
			BidResponse: toBidResponse(&views[i].Bid),
			OfferedItem: optionalItem(views[i].OfferedItem),
			TargetItem:  optionalItem(views[i].TargetItem),
		})
	}
	return out
}
