package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/barter-backend/internal/service"
)

type SwipeHandler struct {
	discovery service.DiscoveryService
	matches   service.MatchService
	wishlist  service.WishlistService
}

func NewSwipeHandler(discovery service.DiscoveryService, matches service.MatchService, wishlist service.WishlistService) *SwipeHandler {
	return &SwipeHandler{discovery: discovery, matches: matches, wishlist: wishlist}
}

type swipeRequest struct {
	CandidateID uint64 `json:"candidateId"`
	Direction   string `json:"direction"`
}

type SwipeResponse struct {
	Direction string         `json:"direction"`
	Match     *MatchResponse `json:"match,omitempty"`
	Created   bool           `json:"created"`
	Saved     bool           `json:"saved"`
	Notified  bool           `json:"notified"`
}

func (h *SwipeHandler) Candidates(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return unauthorized(c)
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid id"))
	}
	items, err := h.discovery.CandidatesForItem(c.Request().Context(), id, uid)
	if err != nil {
		return writeServiceError(c, err, "failed to find candidates")
	}
	return c.JSON(http.StatusOK, ItemListResponse{Items: toItemResponses(items), Total: int64(len(items))})
}

// Swipe records a right swipe as interest and saves the candidate; a left swipe is a no-op.
func (h *SwipeHandler) Swipe(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return unauthorized(c)
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid id"))
	}
	var req swipeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	direction := strings.ToLower(strings.TrimSpace(req.Direction))
	switch direction {
	case "left":
		return c.JSON(http.StatusOK, SwipeResponse{Direction: direction})
	case "right":
	default:
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "direction must be left or right"))
	}
	if req.CandidateID == 0 {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "candidateId is required"))
	}

	ctx := c.Request().Context()
	res, err := h.matches.RecordInterest(ctx, uid, id, req.CandidateID)
	if err != nil {
		return writeServiceError(c, err, "failed to record interest")
	}
	resp := SwipeResponse{Direction: direction, Created: res.Created, Notified: res.Notified()}
	m := toMatchResponse(res.Match)
	resp.Match = &m
	if err := h.wishlist.Add(ctx, uid, req.CandidateID); err != nil {
		requestLog(c).WithError(err).WithField("item_id", req.CandidateID).Warn("wishlist add after swipe failed")
	} else {
		resp.Saved = true
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	return c.JSON(status, resp)
}
