package service

import (
	"context"
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"
	"github.com/shinyyama/barter-backend/internal/model"
	"github.com/shinyyama/barter-backend/internal/reqctx"
	"github.com/shinyyama/barter-backend/internal/repository"
	"github.com/sirupsen/logrus"
)

type DiscoveryService interface {
	// FindCandidates lists other users' items valued within the band around reference.
	FindCandidates(ctx context.Context, reference *model.Item, excludeUID string) ([]model.Item, error)
	// CandidatesForItem values the viewer's item first when it has no estimate.
	CandidatesForItem(ctx context.Context, itemID uint64, viewerUID string) ([]model.Item, error)
}

type discoveryService struct {
	items       repository.ItemRepository
	valuation   ValuationService
	bandPercent float64
	log         logrus.FieldLogger
}

func NewDiscoveryService(items repository.ItemRepository, valuation ValuationService, bandPercent float64, log logrus.FieldLogger) DiscoveryService {
	if bandPercent <= 0 || bandPercent > 100 {
		bandPercent = 10
	}
	return &discoveryService{items: items, valuation: valuation, bandPercent: bandPercent, log: log}
}

func (s *discoveryService) FindCandidates(ctx context.Context, reference *model.Item, excludeUID string) ([]model.Item, error) {
	if reference == nil {
		return nil, validationf("reference item is required")
	}
	if !reference.HasValue() {
		return nil, validationf("item %d has no estimated value", reference.ID)
	}
	lo, hi := valueBand(*reference.EstimatedValue, s.bandPercent)
	items, err := s.items.FindInValueBand(ctx, repository.ValueBand{
		Min:             lo,
		Max:             hi,
		ExcludeOwnerUID: excludeUID,
		ExcludeItemID:   reference.ID,
	})
	if err != nil {
		return nil, err
	}
	return rankByDesired(reference.DesiredItems, items), nil
}

func (s *discoveryService) CandidatesForItem(ctx context.Context, itemID uint64, viewerUID string) ([]model.Item, error) {
	item, err := s.items.FindByID(ctx, itemID)
	if err != nil {
		return nil, storeErr(err, "item")
	}
	if item.OwnerUID != viewerUID {
		return nil, ErrForbidden
	}
	if !item.HasValue() {
		ref := ""
		if item.ImageURL != nil {
			ref = *item.ImageURL
		}
		v := s.valuation.EstimateValue(reqctx.WithItemID(ctx, item.ID), item.Title, item.Description, ref)
		if err := s.items.UpdateEstimatedValue(ctx, item.ID, v); err != nil {
			return nil, storeErr(err, "item")
		}
		item.EstimatedValue = &v
		s.log.WithFields(logrus.Fields{"item_id": item.ID, "value": v}).Info("valued item before discovery")
	}
	return s.FindCandidates(ctx, item, viewerUID)
}

func valueBand(v, percent float64) (float64, float64) {
	p := percent / 100
	return v * (1 - p), v * (1 + p)
}

// rankByDesired moves candidates matching more of the wanted tags to the front.
// The sort is stable so equal scores keep the incoming newest-first order.
func rankByDesired(desired []string, items []model.Item) []model.Item {
	tags := make([][]string, 0, len(desired))
	for _, d := range desired {
		if words := strings.Fields(strings.ToLower(d)); len(words) > 0 {
			tags = append(tags, words)
		}
	}
	if len(tags) == 0 || len(items) < 2 {
		return items
	}
	scores := make(map[uint64]int, len(items))
	for _, it := range items {
		words := strings.Fields(strings.ToLower(it.Title + " " + it.Description))
		scores[it.ID] = tagOverlap(tags, words)
	}
	ranked := make([]model.Item, len(items))
	copy(ranked, items)
	sort.SliceStable(ranked, func(i, j int) bool {
		return scores[ranked[i].ID] > scores[ranked[j].ID]
	})
	return ranked
}

// tagOverlap counts tags whose every word fuzzy-matches some word of the candidate.
func tagOverlap(tags [][]string, words []string) int {
	n := 0
	for _, tag := range tags {
		all := true
		for _, w := range tag {
			if len(fuzzy.Find(w, words)) == 0 {
				all = false
				break
			}
		}
		if all {
			n++
		}
	}
	return n
}
