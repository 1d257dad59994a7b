package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shinyyama/barter-backend/internal/model"
	"github.com/shinyyama/barter-backend/internal/repository"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// InterestResult carries the stored match. Notification and NotifyErr are set only
// when a new match triggered a match notification.
type InterestResult struct {
	Match        *model.Match
	Created      bool
	Notification *model.Notification
	NotifyErr    error
}

// MatchView is a match seen from one user's side.
type MatchView struct {
	Match     model.Match
	MyItem    *model.Item
	TheirItem *model.Item
	// Incoming is true when the user owns item B and may decide the match.
	Incoming bool
}

type MatchService interface {
	RecordInterest(ctx context.Context, actorUID string, viewerItemID, candidateItemID uint64) (*InterestResult, error)
	SetMatchStatus(ctx context.Context, matchID uint64, status, actingUID string) (*model.Match, error)
	ListForUser(ctx context.Context, uid, status string) ([]MatchView, error)
}

type MatchConfig struct {
	// RematchCooldown of zero keeps declined pairs declined.
	RematchCooldown time.Duration
	NotifyOnCreate  bool
}

type matchService struct {
	matches  repository.MatchRepository
	items    repository.ItemRepository
	notifier NotificationService
	cfg      MatchConfig
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewMatchService(matches repository.MatchRepository, items repository.ItemRepository, notifier NotificationService, cfg MatchConfig, log logrus.FieldLogger) MatchService {
	return &matchService{matches: matches, items: items, notifier: notifier, cfg: cfg, log: log, now: time.Now}
}

func (s *matchService) RecordInterest(ctx context.Context, actorUID string, viewerItemID, candidateItemID uint64) (*InterestResult, error) {
	if viewerItemID == 0 || candidateItemID == 0 {
		return nil, validationf("item ids are required")
	}
	if viewerItemID == candidateItemID {
		return nil, validationf("an item cannot match itself")
	}
	viewer, candidate, err := s.loadPair(ctx, viewerItemID, candidateItemID)
	if err != nil {
		return nil, err
	}
	if viewer.OwnerUID != actorUID {
		return nil, ErrForbidden
	}
	if viewer.OwnerUID == candidate.OwnerUID {
		return nil, validationf("cannot match two items of the same owner")
	}

	existing, err := s.matches.FindByPair(ctx, viewerItemID, candidateItemID)
	switch {
	case err == nil:
		return s.existingInterest(ctx, existing, viewer, candidate)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	m := model.NewMatch(viewerItemID, candidateItemID, s.now())
	created, err := s.matches.CreateIfAbsent(ctx, m)
	if err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, err
	}
	stored, err := s.matches.FindByPair(ctx, viewerItemID, candidateItemID)
	if err != nil {
		return nil, storeErr(err, "match")
	}
	res := &InterestResult{Match: stored, Created: created}
	if created {
		s.log.WithFields(logrus.Fields{"match_id": stored.ID, "item_a": viewerItemID, "item_b": candidateItemID}).Info("match created")
		s.notifyCreated(ctx, res, candidate)
	}
	return res, nil
}

func (s *matchService) existingInterest(ctx context.Context, m *model.Match, viewer, candidate *model.Item) (*InterestResult, error) {
	if m.Status != model.MatchStatusDeclined || s.cfg.RematchCooldown <= 0 || m.DecidedAt == nil {
		return &InterestResult{Match: m}, nil
	}
	now := s.now()
	reopened, err := s.matches.ReopenDeclined(ctx, m.ID, viewer.ID, candidate.ID, now.Add(-s.cfg.RematchCooldown), now)
	if err != nil {
		return nil, err
	}
	if !reopened {
		return &InterestResult{Match: m}, nil
	}
	stored, err := s.matches.FindByID(ctx, m.ID)
	if err != nil {
		return nil, storeErr(err, "match")
	}
	s.log.WithField("match_id", m.ID).Info("declined match reopened")
	res := &InterestResult{Match: stored, Created: true}
	s.notifyCreated(ctx, res, candidate)
	return res, nil
}

func (s *matchService) notifyCreated(ctx context.Context, res *InterestResult, candidate *model.Item) {
	if !s.cfg.NotifyOnCreate {
		return
	}
	res.Notification, res.NotifyErr = s.notifier.Deliver(ctx, candidate.OwnerUID, model.NotificationTypeMatch,
		"New Match",
		fmt.Sprintf("Someone wants to trade for your %s.", candidate.Title),
		NotificationRefs{ItemID: uint64Ptr(candidate.ID), MatchID: uint64Ptr(res.Match.ID)})
	if res.NotifyErr != nil {
		s.log.WithError(res.NotifyErr).WithField("match_id", res.Match.ID).Warn("match owner was not notified")
	}
}

// Notified reports whether the match notification was stored.
func (r *InterestResult) Notified() bool {
	return r != nil && r.Notification != nil && r.NotifyErr == nil
}

func (s *matchService) SetMatchStatus(ctx context.Context, matchID uint64, status, actingUID string) (*model.Match, error) {
	if status != model.MatchStatusAccepted && status != model.MatchStatusDeclined {
		return nil, validationf("status must be %q or %q", model.MatchStatusAccepted, model.MatchStatusDeclined)
	}
	m, err := s.matches.FindByID(ctx, matchID)
	if err != nil {
		return nil, storeErr(err, "match")
	}
	counterpart, err := s.items.FindByID(ctx, m.ItemBID)
	if err != nil {
		return nil, storeErr(err, "item")
	}
	if counterpart.OwnerUID != actingUID {
		return nil, ErrForbidden
	}
	if m.Status != model.MatchStatusPending {
		return nil, fmt.Errorf("%w: match is %s", ErrInvalidTransition, m.Status)
	}
	ok, err := s.matches.UpdateStatusIfPending(ctx, matchID, status, s.now())
	if err != nil {
		return nil, err
	}
	current, err := s.matches.FindByID(ctx, matchID)
	if err != nil {
		return nil, storeErr(err, "match")
	}
	if !ok {
		return nil, fmt.Errorf("%w: match is %s", ErrInvalidTransition, current.Status)
	}
	s.log.WithFields(logrus.Fields{"match_id": matchID, "status": status}).Info("match decided")
	return current, nil
}

func (s *matchService) ListForUser(ctx context.Context, uid, status string) ([]MatchView, error) {
	if uid == "" {
		return nil, validationf("user is required")
	}
	switch status {
	case "", model.MatchStatusPending, model.MatchStatusAccepted, model.MatchStatusDeclined:
	default:
		return nil, validationf("unknown status %q", status)
	}
	mine, err := s.items.ListByOwner(ctx, uid)
	if err != nil {
		return nil, err
	}
	if len(mine) == 0 {
		return []MatchView{}, nil
	}
	ids := make([]uint64, 0, len(mine))
	for _, it := range mine {
		ids = append(ids, it.ID)
	}
	list, err := s.matches.ListByItemIDs(ctx, ids, status)
	if err != nil {
		return nil, err
	}
	refs := make([]uint64, 0, len(list)*2)
	for _, m := range list {
		refs = append(refs, m.ItemAID, m.ItemBID)
	}
	items, err := s.items.FindByIDs(ctx, refs)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint64]*model.Item, len(items))
	for i := range items {
		byID[items[i].ID] = &items[i]
	}
	views := make([]MatchView, 0, len(list))
	for _, m := range list {
		a, b := byID[m.ItemAID], byID[m.ItemBID]
		v := MatchView{Match: m}
		if b != nil && b.OwnerUID == uid {
			v.MyItem, v.TheirItem, v.Incoming = b, a, true
		} else {
			v.MyItem, v.TheirItem = a, b
		}
		views = append(views, v)
	}
	return views, nil
}

func (s *matchService) loadPair(ctx context.Context, aID, bID uint64) (*model.Item, *model.Item, error) {
	var a, b *model.Item
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		a, err = s.items.FindByID(gctx, aID)
		return storeErr(err, fmt.Sprintf("item %d", aID))
	})
	g.Go(func() error {
		var err error
		b, err = s.items.FindByID(gctx, bID)
		return storeErr(err, fmt.Sprintf("item %d", bID))
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return a, b, nil
}
