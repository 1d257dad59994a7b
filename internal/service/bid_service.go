package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shinyyama/barter-backend/internal/model"
	"github.com/shinyyama/barter-backend/internal/repository"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// BidPlacement carries the stored bids and the outcome of the owner notification.
type BidPlacement struct {
	Bids         []model.Bid
	Notification *model.Notification
	NotifyErr    error
}

// BidResolution carries the decided bid and the outcome of the bidder notification.
// A failed notification never undoes the decision.
type BidResolution struct {
	Bid          *model.Bid
	Notification *model.Notification
	NotifyErr    error
}

func (r *BidResolution) Notified() bool {
	return r != nil && r.Notification != nil && r.NotifyErr == nil
}

type BidView struct {
	Bid         model.Bid
	OfferedItem *model.Item
	TargetItem  *model.Item
}

type BidService interface {
	PlaceBid(ctx context.Context, bidderUID string, targetItemID uint64, offeredItemIDs []uint64) (*BidPlacement, error)
	ResolveBid(ctx context.Context, bidID uint64, status, resolverUID string) (*BidResolution, error)
	ListIncoming(ctx context.Context, ownerUID string) ([]BidView, error)
	ListOutgoing(ctx context.Context, bidderUID string) ([]BidView, error)
}

type BidConfig struct {
	NotifyOnPlace bool
}

type bidService struct {
	bids     repository.BidRepository
	items    repository.ItemRepository
	notifier NotificationService
	cfg      BidConfig
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewBidService(bids repository.BidRepository, items repository.ItemRepository, notifier NotificationService, cfg BidConfig, log logrus.FieldLogger) BidService {
	return &bidService{bids: bids, items: items, notifier: notifier, cfg: cfg, log: log, now: time.Now}
}

func (s *bidService) PlaceBid(ctx context.Context, bidderUID string, targetItemID uint64, offeredItemIDs []uint64) (*BidPlacement, error) {
	if bidderUID == "" {
		return nil, validationf("bidder is required")
	}
	offered := dedupeIDs(offeredItemIDs)
	if len(offered) == 0 {
		return nil, validationf("at least one offered item is required")
	}
	for _, id := range offered {
		if id == targetItemID {
			return nil, validationf("an item cannot be offered for itself")
		}
	}

	var (
		target *model.Item
		items  []model.Item
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		target, err = s.items.FindByID(gctx, targetItemID)
		return storeErr(err, "target item")
	})
	g.Go(func() error {
		var err error
		items, err = s.items.FindByIDs(gctx, offered)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if missing := missingIDs(offered, items); len(missing) > 0 {
		return nil, fmt.Errorf("%w: offered items %v", ErrNotFound, missing)
	}
	if target.OwnerUID == bidderUID {
		return nil, validationf("cannot bid on your own item")
	}
	for _, it := range items {
		if it.OwnerUID != bidderUID {
			return nil, fmt.Errorf("%w: item %d is not yours", ErrForbidden, it.ID)
		}
	}

	stored, err := s.bids.UpsertPending(ctx, bidderUID, targetItemID, offered, s.now())
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: bid", ErrConflict)
		}
		return nil, fmt.Errorf("%w: place bid: %w", ErrUpstream, err)
	}
	s.log.WithFields(logrus.Fields{"target": targetItemID, "bidder": bidderUID, "offered": offered}).Info("bid placed")

	res := &BidPlacement{Bids: stored}
	if s.cfg.NotifyOnPlace && len(stored) > 0 {
		res.Notification, res.NotifyErr = s.notifier.Deliver(ctx, target.OwnerUID, model.NotificationTypeBid,
			"New Bid",
			fmt.Sprintf("%s offered for your %s.", offerSummary(items), target.Title),
			NotificationRefs{ItemID: uint64Ptr(target.ID), BidID: uint64Ptr(stored[0].ID)})
	}
	return res, nil
}

func (s *bidService) ResolveBid(ctx context.Context, bidID uint64, status, resolverUID string) (*BidResolution, error) {
	if status != model.BidStatusAccepted && status != model.BidStatusRejected {
		return nil, validationf("status must be %q or %q", model.BidStatusAccepted, model.BidStatusRejected)
	}
	bid, err := s.bids.FindByID(ctx, bidID)
	if err != nil {
		return nil, storeErr(err, "bid")
	}

	var target, offered *model.Item
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		target, err = s.items.FindByID(gctx, bid.TargetItemID)
		return storeErr(err, "target item")
	})
	g.Go(func() error {
		it, err := s.items.FindByID(gctx, bid.OfferedItemID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		offered = it
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if target.OwnerUID != resolverUID {
		return nil, ErrForbidden
	}
	if bid.Status != model.BidStatusPending {
		return nil, fmt.Errorf("%w: bid is %s", ErrInvalidState, bid.Status)
	}

	now := s.now()
	ok, err := s.bids.UpdateStatusIfPending(ctx, bidID, status, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: bid is no longer pending", ErrInvalidState)
	}
	bid.Status = status
	bid.ResolvedAt = &now
	log := s.log.WithFields(logrus.Fields{"bid_id": bidID, "status": status})
	log.Info("bid resolved")

	offeredName := "your item"
	if offered != nil {
		offeredName = offered.Title
	}
	typ, title, body := resolutionMessage(status, offeredName, target.Title)
	res := &BidResolution{Bid: bid}
	res.Notification, res.NotifyErr = s.notifier.Deliver(ctx, bid.BidderUID, typ, title, body,
		NotificationRefs{ItemID: uint64Ptr(target.ID), BidID: uint64Ptr(bid.ID)})
	if res.NotifyErr != nil {
		log.WithError(res.NotifyErr).Warn("bidder was not notified")
	}
	return res, nil
}

func resolutionMessage(status, offeredName, itemName string) (string, string, string) {
	if status == model.BidStatusAccepted {
		return model.NotificationTypeMatch, "Bid Accepted!",
			fmt.Sprintf("Your offer of %s for %s has been accepted!", offeredName, itemName)
	}
	return model.NotificationTypeBid, "Bid Rejected",
		fmt.Sprintf("Your offer of %s for %s has been rejected.", offeredName, itemName)
}

func (s *bidService) ListIncoming(ctx context.Context, ownerUID string) ([]BidView, error) {
	if ownerUID == "" {
		return nil, validationf("user is required")
	}
	mine, err := s.items.ListByOwner(ctx, ownerUID)
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(mine))
	for _, it := range mine {
		ids = append(ids, it.ID)
	}
	list, err := s.bids.ListByTargetItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, list)
}

func (s *bidService) ListOutgoing(ctx context.Context, bidderUID string) ([]BidView, error) {
	if bidderUID == "" {
		return nil, validationf("user is required")
	}
	list, err := s.bids.ListByBidder(ctx, bidderUID)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, list)
}

func (s *bidService) views(ctx context.Context, list []model.Bid) ([]BidView, error) {
	refs := make([]uint64, 0, len(list)*2)
	for _, b := range list {
		refs = append(refs, b.OfferedItemID, b.TargetItemID)
	}
	items, err := s.items.FindByIDs(ctx, dedupeIDs(refs))
	if err != nil {
		return nil, err
	}
	byID := make(map[uint64]*model.Item, len(items))
	for i := range items {
		byID[items[i].ID] = &items[i]
	}
	out := make([]BidView, 0, len(list))
	for _, b := range list {
		out = append(out, BidView{Bid: b, OfferedItem: byID[b.OfferedItemID], TargetItem: byID[b.TargetItemID]})
	}
	return out, nil
}

func dedupeIDs(ids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func missingIDs(want []uint64, got []model.Item) []uint64 {
	have := make(map[uint64]struct{}, len(got))
	for _, it := range got {
		have[it.ID] = struct{}{}
	}
	var missing []uint64
	for _, id := range want {
		if _, ok := have[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

func offerSummary(items []model.Item) string {
	names := make([]string, 0, len(items))
	for _, it := range items {
		names = append(names, it.Title)
	}
	sort.Strings(names)
	if len(names) == 1 {
		return names[0]
	}
	return fmt.Sprintf("%d items (%s)", len(names), strings.Join(names, ", "))
}
