package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/shinyyama/barter-backend/internal/ai"
	"github.com/sirupsen/logrus"
)

type Valuer interface {
	Estimate(ctx context.Context, in ai.ValuationInput) (*ai.PriceEstimate, error)
}

type ValuationService interface {
	// EstimateValue never fails; oracle problems yield the configured default.
	EstimateValue(ctx context.Context, title, description, imageRef string) float64
	Analyze(ctx context.Context, title, description, imageRef string) (*ai.PriceEstimate, error)
}

type ValuationConfig struct {
	Default   float64
	Timeout   time.Duration
	CacheSize int
}

type valuationService struct {
	valuer Valuer
	cfg    ValuationConfig
	cache  *lru.Cache
	log    logrus.FieldLogger
}

// NewValuationService accepts a nil valuer, in which case every estimate is the default.
func NewValuationService(valuer Valuer, cfg ValuationConfig, log logrus.FieldLogger) (ValuationService, error) {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 256
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	cache, err := lru.New(cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("valuation cache: %w", err)
	}
	return &valuationService{valuer: valuer, cfg: cfg, cache: cache, log: log}, nil
}

func (s *valuationService) EstimateValue(ctx context.Context, title, description, imageRef string) float64 {
	est, err := s.Analyze(ctx, title, description, imageRef)
	if err != nil {
		s.log.WithError(err).WithField("default", s.cfg.Default).Warn("valuation failed, using default")
		return s.cfg.Default
	}
	return est.Midpoint()
}

func (s *valuationService) Analyze(ctx context.Context, title, description, imageRef string) (*ai.PriceEstimate, error) {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	if title == "" && description == "" {
		return nil, validationf("title or description is required")
	}
	if s.valuer == nil {
		return nil, fmt.Errorf("%w: valuation oracle not configured", ErrUpstream)
	}
	key := cacheKey(title, description, imageRef)
	if v, ok := s.cache.Get(key); ok {
		est := v.(ai.PriceEstimate)
		return &est, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	est, err := s.valuer.Estimate(ctx, ai.ValuationInput{Title: title, Description: description, ImageRef: imageRef})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	if est.Min < 0 || est.Max < 0 {
		return nil, fmt.Errorf("%w: negative estimate", ErrUpstream)
	}
	s.cache.Add(key, *est)
	return est, nil
}

func cacheKey(title, description, imageRef string) string {
	return strings.ToLower(title) + "\x00" + strings.ToLower(description) + "\x00" + imageRef
}
