package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shinyyama/barter-backend/internal/ai"
	"github.com/shinyyama/barter-backend/internal/model"
	"github.com/shinyyama/barter-backend/internal/repository"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"gorm.io/gorm"
)

var errStoreDown = errors.New("store unavailable")

var baseTime = time.Date(2025, 4, 5, 10, 0, 0, 0, time.UTC)

func nullLogger() logrus.FieldLogger {
	l, _ := test.NewNullLogger()
	return l
}

func float64Ptr(v float64) *float64 {
	return &v
}

// fakeItemRepo keeps items in memory. Each created item is one minute newer than the previous one.
type fakeItemRepo struct {
	mu     sync.Mutex
	items  map[uint64]model.Item
	nextID uint64
}

func newFakeItemRepo() *fakeItemRepo {
	return &fakeItemRepo{items: map[uint64]model.Item{}}
}

// add stores an item with an optional value and returns its id.
func (r *fakeItemRepo) add(owner, title string, value *float64, desired ...string) uint64 {
	it := &model.Item{OwnerUID: owner, Title: title, Description: "good condition", EstimatedValue: value, DesiredItems: desired}
	_ = r.Create(context.Background(), it)
	return it.ID
}

func (r *fakeItemRepo) Create(_ context.Context, item *model.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	item.ID = r.nextID
	item.CreatedAt = baseTime.Add(time.Duration(r.nextID) * time.Minute)
	item.UpdatedAt = item.CreatedAt
	r.items[item.ID] = *item
	return nil
}

func (r *fakeItemRepo) FindByID(_ context.Context, id uint64) (*model.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &it, nil
}

func (r *fakeItemRepo) FindByIDs(_ context.Context, ids []uint64) ([]model.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Item
	for _, id := range ids {
		if it, ok := r.items[id]; ok {
			out = append(out, it)
		}
	}
	return out, nil
}

func (r *fakeItemRepo) ListByOwner(_ context.Context, ownerUID string) ([]model.Item, error) {
	return r.filter(func(it model.Item) bool { return it.OwnerUID == ownerUID }), nil
}

func (r *fakeItemRepo) FindInValueBand(_ context.Context, band repository.ValueBand) ([]model.Item, error) {
	out := r.filter(func(it model.Item) bool {
		if it.EstimatedValue == nil {
			return false
		}
		v := *it.EstimatedValue
		return v >= band.Min && v <= band.Max &&
			(band.ExcludeOwnerUID == "" || it.OwnerUID != band.ExcludeOwnerUID) &&
			it.ID != band.ExcludeItemID
	})
	if band.Limit > 0 && len(out) > band.Limit {
		out = out[:band.Limit]
	}
	return out, nil
}

func (r *fakeItemRepo) Search(_ context.Context, f repository.ItemFilter) ([]model.Item, int64, error) {
	out := r.filter(func(it model.Item) bool {
		if f.MinValue != nil && (it.EstimatedValue == nil || *it.EstimatedValue < *f.MinValue) {
			return false
		}
		if f.MaxValue != nil && (it.EstimatedValue == nil || *it.EstimatedValue > *f.MaxValue) {
			return false
		}
		return f.ExcludeUID == "" || it.OwnerUID != f.ExcludeUID
	})
	total := int64(len(out))
	if f.Offset < len(out) {
		out = out[f.Offset:]
	} else {
		out = nil
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, total, nil
}

func (r *fakeItemRepo) UpdateEstimatedValue(_ context.Context, id uint64, value float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	it.EstimatedValue = &value
	r.items[id] = it
	return nil
}

func (r *fakeItemRepo) ListUnvalued(_ context.Context, limit int) ([]model.Item, error) {
	out := r.filter(func(it model.Item) bool { return it.EstimatedValue == nil })
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeItemRepo) Delete(_ context.Context, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.items, id)
	return nil
}

// filter returns matching items newest first.
func (r *fakeItemRepo) filter(keep func(model.Item) bool) []model.Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Item
	for _, it := range r.items {
		if keep(it) {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// fakeMatchRepo enforces the unordered-pair key the way the unique index does.
type fakeMatchRepo struct {
	mu     sync.Mutex
	rows   map[uint64]model.Match
	byPair map[[2]uint64]uint64
	nextID uint64
}

func newFakeMatchRepo() *fakeMatchRepo {
	return &fakeMatchRepo{rows: map[uint64]model.Match{}, byPair: map[[2]uint64]uint64{}}
}

func (r *fakeMatchRepo) FindByPair(_ context.Context, a, b uint64) (*model.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lo, hi := model.CanonicalPair(a, b)
	id, ok := r.byPair[[2]uint64{lo, hi}]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	m := r.rows[id]
	return &m, nil
}

func (r *fakeMatchRepo) CreateIfAbsent(_ context.Context, m *model.Match) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := [2]uint64{m.PairLow, m.PairHigh}
	if _, ok := r.byPair[key]; ok {
		return false, nil
	}
	r.nextID++
	m.ID = r.nextID
	m.CreatedAt = m.MatchedAt
	m.UpdatedAt = m.MatchedAt
	r.rows[m.ID] = *m
	r.byPair[key] = m.ID
	return true, nil
}

func (r *fakeMatchRepo) FindByID(_ context.Context, id uint64) (*model.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &m, nil
}

func (r *fakeMatchRepo) UpdateStatusIfPending(_ context.Context, id uint64, status string, decidedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.rows[id]
	if !ok || m.Status != model.MatchStatusPending {
		return false, nil
	}
	m.Status = status
	m.DecidedAt = &decidedAt
	r.rows[id] = m
	return true, nil
}

func (r *fakeMatchRepo) ReopenDeclined(_ context.Context, id, itemAID, itemBID uint64, decidedBefore, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.rows[id]
	if !ok || m.Status != model.MatchStatusDeclined || m.DecidedAt == nil || !m.DecidedAt.Before(decidedBefore) {
		return false, nil
	}
	m.ItemAID, m.ItemBID = itemAID, itemBID
	m.Status = model.MatchStatusPending
	m.MatchedAt = now
	m.DecidedAt = nil
	r.rows[id] = m
	return true, nil
}

func (r *fakeMatchRepo) ListByItemIDs(_ context.Context, itemIDs []uint64, status string) ([]model.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := map[uint64]bool{}
	for _, id := range itemIDs {
		want[id] = true
	}
	var out []model.Match
	for _, m := range r.rows {
		if (want[m.ItemAID] || want[m.ItemBID]) && (status == "" || m.Status == status) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *fakeMatchRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

type bidKey struct {
	bidder  string
	offered uint64
	target  uint64
}

// fakeBidRepo applies an upsert batch all-or-nothing. failOnOffered makes the batch fail
// when it reaches that offered item, after earlier rows were staged.
type fakeBidRepo struct {
	mu            sync.Mutex
	rows          map[uint64]model.Bid
	byKey         map[bidKey]uint64
	nextID        uint64
	failOnOffered uint64
}

func newFakeBidRepo() *fakeBidRepo {
	return &fakeBidRepo{rows: map[uint64]model.Bid{}, byKey: map[bidKey]uint64{}}
}

func (r *fakeBidRepo) UpsertPending(_ context.Context, bidderUID string, targetItemID uint64, offeredItemIDs []uint64, now time.Time) ([]model.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	staged := make(map[uint64]model.Bid, len(offeredItemIDs))
	stagedKeys := make(map[bidKey]uint64, len(offeredItemIDs))
	nextID := r.nextID
	for _, offered := range offeredItemIDs {
		if offered == r.failOnOffered {
			return nil, errStoreDown
		}
		k := bidKey{bidderUID, offered, targetItemID}
		b := model.Bid{OfferedItemID: offered, TargetItemID: targetItemID, BidderUID: bidderUID}
		if id, ok := r.byKey[k]; ok {
			b = r.rows[id]
		} else {
			nextID++
			b.ID = nextID
		}
		b.Status = model.BidStatusPending
		b.CreatedAt = now
		b.UpdatedAt = now
		b.ResolvedAt = nil
		staged[b.ID] = b
		stagedKeys[k] = b.ID
	}
	r.nextID = nextID
	for id, b := range staged {
		r.rows[id] = b
	}
	for k, id := range stagedKeys {
		r.byKey[k] = id
	}
	out := make([]model.Bid, 0, len(staged))
	for _, b := range staged {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OfferedItemID < out[j].OfferedItemID })
	return out, nil
}

func (r *fakeBidRepo) FindByID(_ context.Context, id uint64) (*model.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &b, nil
}

func (r *fakeBidRepo) UpdateStatusIfPending(_ context.Context, id uint64, status string, resolvedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.rows[id]
	if !ok || b.Status != model.BidStatusPending {
		return false, nil
	}
	b.Status = status
	b.ResolvedAt = &resolvedAt
	r.rows[id] = b
	return true, nil
}

func (r *fakeBidRepo) ListByTargetItems(_ context.Context, targetItemIDs []uint64) ([]model.Bid, error) {
	want := map[uint64]bool{}
	for _, id := range targetItemIDs {
		want[id] = true
	}
	return r.filter(func(b model.Bid) bool { return want[b.TargetItemID] }), nil
}

func (r *fakeBidRepo) ListByBidder(_ context.Context, bidderUID string) ([]model.Bid, error) {
	return r.filter(func(b model.Bid) bool { return b.BidderUID == bidderUID }), nil
}

func (r *fakeBidRepo) filter(keep func(model.Bid) bool) []model.Bid {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Bid
	for _, b := range r.rows {
		if keep(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (r *fakeBidRepo) byOffered(bidder string, offered, target uint64) (model.Bid, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byKey[bidKey{bidder, offered, target}]
	if !ok {
		return model.Bid{}, false
	}
	return r.rows[id], true
}

func (r *fakeBidRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

// fakeNotificationRepo fails the first failCreates Create calls.
type fakeNotificationRepo struct {
	mu          sync.Mutex
	rows        []model.Notification
	failCreates int
	creates     int
}

func (r *fakeNotificationRepo) Create(_ context.Context, n *model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creates++
	if r.creates <= r.failCreates {
		return errStoreDown
	}
	n.ID = uint64(len(r.rows) + 1)
	n.CreatedAt = baseTime
	r.rows = append(r.rows, *n)
	return nil
}

func (r *fakeNotificationRepo) ListByUser(_ context.Context, userUID string, unreadOnly bool, limit int) ([]model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Notification
	for i := len(r.rows) - 1; i >= 0; i-- {
		n := r.rows[i]
		if n.UserUID == userUID && (!unreadOnly || n.ReadAt == nil) {
			out = append(out, n)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeNotificationRepo) MarkRead(_ context.Context, userUID string, id uint64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rows {
		if r.rows[i].ID == id && r.rows[i].UserUID == userUID {
			now := baseTime
			r.rows[i].ReadAt = &now
			return true, nil
		}
	}
	return false, gorm.ErrRecordNotFound
}

func (r *fakeNotificationRepo) MarkAllRead(_ context.Context, userUID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := baseTime
	for i := range r.rows {
		if r.rows[i].UserUID == userUID && r.rows[i].ReadAt == nil {
			r.rows[i].ReadAt = &now
		}
	}
	return nil
}

func (r *fakeNotificationRepo) CountUnread(_ context.Context, userUID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, row := range r.rows {
		if row.UserUID == userUID && row.ReadAt == nil {
			n++
		}
	}
	return n, nil
}

func (r *fakeNotificationRepo) forUser(uid string) []model.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Notification
	for _, n := range r.rows {
		if n.UserUID == uid {
			out = append(out, n)
		}
	}
	return out
}

type fakeWishlistRepo struct {
	mu      sync.Mutex
	entries map[string][]uint64
	items   *fakeItemRepo
}

func newFakeWishlistRepo(items *fakeItemRepo) *fakeWishlistRepo {
	return &fakeWishlistRepo{entries: map[string][]uint64{}, items: items}
}

func (r *fakeWishlistRepo) Add(_ context.Context, userUID string, itemID uint64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.entries[userUID] {
		if id == itemID {
			return false, nil
		}
	}
	r.entries[userUID] = append(r.entries[userUID], itemID)
	return true, nil
}

func (r *fakeWishlistRepo) Remove(_ context.Context, userUID string, itemID uint64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := r.entries[userUID]
	for i, id := range ids {
		if id == itemID {
			r.entries[userUID] = append(ids[:i], ids[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeWishlistRepo) ListItems(ctx context.Context, userUID string) ([]model.Item, error) {
	r.mu.Lock()
	ids := append([]uint64(nil), r.entries[userUID]...)
	r.mu.Unlock()
	var out []model.Item
	for i := len(ids) - 1; i >= 0; i-- {
		if it, err := r.items.FindByID(ctx, ids[i]); err == nil {
			out = append(out, *it)
		}
	}
	return out, nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]model.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]model.User{}}
}

func (r *fakeUserRepo) Ensure(_ context.Context, uid string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[uid]
	if !ok {
		u = model.User{UID: uid, CreatedAt: baseTime, UpdatedAt: baseTime}
		r.users[uid] = u
	}
	return &u, nil
}

func (r *fakeUserRepo) FindByUID(_ context.Context, uid string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[uid]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &u, nil
}

type fakeValuer struct {
	mu    sync.Mutex
	est   *ai.PriceEstimate
	err   error
	calls int
	delay time.Duration
}

func (v *fakeValuer) Estimate(ctx context.Context, _ ai.ValuationInput) (*ai.PriceEstimate, error) {
	v.mu.Lock()
	v.calls++
	v.mu.Unlock()
	if v.delay > 0 {
		select {
		case <-time.After(v.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if v.err != nil {
		return nil, v.err
	}
	est := *v.est
	return &est, nil
}

func (v *fakeValuer) callCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls
}

func newTestNotifier(repo *fakeNotificationRepo) NotificationService {
	return NewNotificationService(repo, RetryPolicy{Attempts: 3, Backoff: time.Millisecond}, nullLogger())
}
