package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/barter-backend/internal/service"
)

type AIHandler struct {
	valuation service.ValuationService
}

func NewAIHandler(valuation service.ValuationService) *AIHandler {
	return &AIHandler{valuation: valuation}
}

type analyzeRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ImageURL    string `json:"imageUrl"`
}

type AnalyzeResponse struct {
	MinPrice       float64 `json:"minPrice"`
	MaxPrice       float64 `json:"maxPrice"`
	EstimatedValue float64 `json:"estimatedValue"`
	Justification  string  `json:"justification"`
}

// Analyze returns the oracle's raw price range without creating an item.
func (h *AIHandler) Analyze(c echo.Context) error {
	var req analyzeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	if strings.HasPrefix(strings.TrimSpace(req.ImageURL), "data:") {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "imageUrl must be a URL, not data URI"))
	}
	est, err := h.valuation.Analyze(c.Request().Context(), req.Title, req.Description, strings.TrimSpace(req.ImageURL))
	if err != nil {
		return writeServiceError(c, err, "valuation failed")
	}
	return c.JSON(http.StatusOK, AnalyzeResponse{
		MinPrice:       est.Min,
		MaxPrice:       est.Max,
		EstimatedValue: est.Midpoint(),
		Justification:  est.Justification,
	})
}
