package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/barter-backend/internal/model"
	"github.com/shinyyama/barter-backend/internal/service"
)

type MatchHandler struct {
	svc service.MatchService
}

func NewMatchHandler(svc service.MatchService) *MatchHandler {
	return &MatchHandler{svc: svc}
}

type MatchResponse struct {
	ID        uint64  `json:"id"`
	ItemAID   uint64  `json:"itemAId"`
	ItemBID   uint64  `json:"itemBId"`
	Status    string  `json:"status"`
	MatchedAt string  `json:"matchedAt"`
	DecidedAt *string `json:"decidedAt,omitempty"`
}

type MatchViewResponse struct {
	MatchResponse
	MyItem    *ItemResponse `json:"myItem,omitempty"`
	TheirItem *ItemResponse `json:"theirItem,omitempty"`
	Incoming  bool          `json:"incoming"`
}

type setMatchStatusRequest struct {
	Status string `json:"status"`
}

func (h *MatchHandler) ListMine(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return unauthorized(c)
	}
	views, err := h.svc.ListForUser(c.Request().Context(), uid, c.QueryParam("status"))
	if err != nil {
		return writeServiceError(c, err, "failed to fetch matches")
	}
	resp := make([]MatchViewResponse, 0, len(views))
	for i := range views {
		v := views[i]
		resp = append(resp, MatchViewResponse{
			MatchResponse: toMatchResponse(&v.Match),
			MyItem:        optionalItem(v.MyItem),
			TheirItem:     optionalItem(v.TheirItem),
			Incoming:      v.Incoming,
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"matches": resp})
}

func (h *MatchHandler) SetStatus(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return unauthorized(c)
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid id"))
	}
	var req setMatchStatusRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	m, err := h.svc.SetMatchStatus(c.Request().Context(), id, req.Status, uid)
	if err != nil {
		return writeServiceError(c, err, "failed to update match")
	}
	return c.JSON(http.StatusOK, toMatchResponse(m))
}

func toMatchResponse(m *model.Match) MatchResponse {
	resp := MatchResponse{
		ID:        m.ID,
		ItemAID:   m.ItemAID,
		ItemBID:   m.ItemBID,
		Status:    m.Status,
		MatchedAt: m.MatchedAt.Format(time.RFC3339),
	}
	if m.DecidedAt != nil {
		s := m.DecidedAt.Format(time.RFC3339)
		resp.DecidedAt = &s
	}
	return resp
}

func optionalItem(item *model.Item) *ItemResponse {
	if item == nil {
		return nil
	}
	r := toItemResponse(item)
	return &r
}
