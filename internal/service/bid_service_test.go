package service

import (
	"context"
	"testing"
	"time"

	"github.com/shinyyama/barter-backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bidFixture struct {
	items *fakeItemRepo
	bids  *fakeBidRepo
	notes *fakeNotificationRepo
	svc   *bidService
}

func newBidFixture(cfg BidConfig) *bidFixture {
	f := &bidFixture{
		items: newFakeItemRepo(),
		bids:  newFakeBidRepo(),
		notes: &fakeNotificationRepo{},
	}
	f.svc = NewBidService(f.bids, f.items, newTestNotifier(f.notes), cfg, nullLogger()).(*bidService)
	f.svc.now = func() time.Time { return baseTime }
	return f
}

func TestBidRejectScenario(t *testing.T) {
	f := newBidFixture(BidConfig{})
	ctx := context.Background()
	i5 := f.items.add("U3", "Headphones", float64Ptr(60))
	i6 := f.items.add("U3", "Keyboard", float64Ptr(40))
	i7 := f.items.add("U4", "Monitor", float64Ptr(100))

	placed, err := f.svc.PlaceBid(ctx, "U3", i7, []uint64{i5, i6})
	require.NoError(t, err)
	require.Len(t, placed.Bids, 2)
	for _, b := range placed.Bids {
		assert.Equal(t, model.BidStatusPending, b.Status)
		assert.Equal(t, "U3", b.BidderUID)
		assert.Equal(t, i7, b.TargetItemID)
	}

	b5, ok := f.bids.byOffered("U3", i5, i7)
	require.True(t, ok)
	res, err := f.svc.ResolveBid(ctx, b5.ID, model.BidStatusRejected, "U4")
	require.NoError(t, err)
	assert.Equal(t, model.BidStatusRejected, res.Bid.Status)
	assert.True(t, res.Notified())

	stored5, _ := f.bids.byOffered("U3", i5, i7)
	stored6, _ := f.bids.byOffered("U3", i6, i7)
	assert.Equal(t, model.BidStatusRejected, stored5.Status)
	require.NotNil(t, stored5.ResolvedAt)
	assert.Equal(t, model.BidStatusPending, stored6.Status)

	notes := f.notes.forUser("U3")
	require.Len(t, notes, 1)
	assert.Equal(t, model.NotificationTypeBid, notes[0].Type)
	assert.Equal(t, "Bid Rejected", notes[0].Title)
	assert.Equal(t, "Your offer of Headphones for Monitor has been rejected.", notes[0].Body)
	assert.Equal(t, b5.ID, *notes[0].BidID)
}

func TestBidAcceptNotifiesAsMatch(t *testing.T) {
	f := newBidFixture(BidConfig{})
	ctx := context.Background()
	offered := f.items.add("U3", "Headphones", float64Ptr(60))
	target := f.items.add("U4", "Monitor", float64Ptr(100))

	placed, err := f.svc.PlaceBid(ctx, "U3", target, []uint64{offered})
	require.NoError(t, err)

	res, err := f.svc.ResolveBid(ctx, placed.Bids[0].ID, model.BidStatusAccepted, "U4")
	require.NoError(t, err)
	require.NotNil(t, res.Notification)
	assert.Equal(t, model.NotificationTypeMatch, res.Notification.Type)
	assert.Equal(t, "Bid Accepted!", res.Notification.Title)
	assert.Equal(t, "Your offer of Headphones for Monitor has been accepted!", res.Notification.Body)
}

func TestResolveBidGuards(t *testing.T) {
	f := newBidFixture(BidConfig{})
	ctx := context.Background()
	offered := f.items.add("U3", "Headphones", float64Ptr(60))
	target := f.items.add("U4", "Monitor", float64Ptr(100))
	placed, err := f.svc.PlaceBid(ctx, "U3", target, []uint64{offered})
	require.NoError(t, err)
	id := placed.Bids[0].ID

	_, err = f.svc.ResolveBid(ctx, id, "maybe", "U4")
	require.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.ResolveBid(ctx, id, model.BidStatusAccepted, "U3")
	require.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.ResolveBid(ctx, 999, model.BidStatusAccepted, "U4")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.ResolveBid(ctx, id, model.BidStatusAccepted, "U4")
	require.NoError(t, err)

	_, err = f.svc.ResolveBid(ctx, id, model.BidStatusRejected, "U4")
	require.ErrorIs(t, err, ErrInvalidState)
	stored, _ := f.bids.FindByID(ctx, id)
	assert.Equal(t, model.BidStatusAccepted, stored.Status)
}

func TestPlaceBidIsAtomic(t *testing.T) {
	f := newBidFixture(BidConfig{NotifyOnPlace: true})
	ctx := context.Background()
	i1 := f.items.add("U3", "Headphones", float64Ptr(60))
	i2 := f.items.add("U3", "Keyboard", float64Ptr(40))
	target := f.items.add("U4", "Monitor", float64Ptr(100))
	f.bids.failOnOffered = i2

	_, err := f.svc.PlaceBid(ctx, "U3", target, []uint64{i1, i2})
	require.ErrorIs(t, err, ErrUpstream)
	assert.Zero(t, f.bids.count())
	assert.Empty(t, f.notes.forUser("U4"))
}

func TestPlaceBidValidation(t *testing.T) {
	f := newBidFixture(BidConfig{})
	ctx := context.Background()
	mine := f.items.add("U3", "Headphones", float64Ptr(60))
	theirs := f.items.add("U5", "Lamp", float64Ptr(60))
	target := f.items.add("U4", "Monitor", float64Ptr(100))

	tests := []struct {
		name    string
		bidder  string
		target  uint64
		offered []uint64
		want    error
	}{
		{"empty offer", "U3", target, nil, ErrValidation},
		{"zero ids only", "U3", target, []uint64{0}, ErrValidation},
		{"target offered", "U4", target, []uint64{target}, ErrValidation},
		{"unknown offered only", "U3", target, []uint64{target + 100}, ErrNotFound},
		{"own target", "U3", mine, []uint64{theirs}, ErrValidation},
		{"missing target", "U3", 999, []uint64{mine}, ErrNotFound},
		{"missing offered", "U3", target, []uint64{mine, 888}, ErrNotFound},
		{"not owner of offered", "U3", target, []uint64{mine, theirs}, ErrForbidden},
		{"no bidder", "", target, []uint64{mine}, ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.PlaceBid(ctx, tt.bidder, tt.target, tt.offered)
			require.ErrorIs(t, err, tt.want)
		})
	}
	assert.Zero(t, f.bids.count())
}

func TestPlaceBidSelfBidRejected(t *testing.T) {
	f := newBidFixture(BidConfig{})
	own := f.items.add("U4", "Cable", float64Ptr(5))
	target := f.items.add("U4", "Monitor", float64Ptr(100))

	_, err := f.svc.PlaceBid(context.Background(), "U4", target, []uint64{own})
	require.ErrorIs(t, err, ErrValidation)
}

func TestPlaceBidResubmitResetsToPending(t *testing.T) {
	f := newBidFixture(BidConfig{})
	ctx := context.Background()
	i1 := f.items.add("U3", "Headphones", float64Ptr(60))
	i2 := f.items.add("U3", "Keyboard", float64Ptr(40))
	target := f.items.add("U4", "Monitor", float64Ptr(100))

	first, err := f.svc.PlaceBid(ctx, "U3", target, []uint64{i1, i1})
	require.NoError(t, err)
	require.Len(t, first.Bids, 1)
	_, err = f.svc.ResolveBid(ctx, first.Bids[0].ID, model.BidStatusRejected, "U4")
	require.NoError(t, err)

	f.svc.now = func() time.Time { return baseTime.Add(time.Hour) }
	again, err := f.svc.PlaceBid(ctx, "U3", target, []uint64{i2, i1})
	require.NoError(t, err)
	require.Len(t, again.Bids, 2)
	assert.Equal(t, 2, f.bids.count())

	b1, _ := f.bids.byOffered("U3", i1, target)
	assert.Equal(t, first.Bids[0].ID, b1.ID)
	assert.Equal(t, model.BidStatusPending, b1.Status)
	assert.Nil(t, b1.ResolvedAt)
	assert.Equal(t, baseTime.Add(time.Hour), b1.CreatedAt)
}

func TestPlaceBidNotifiesTargetOwner(t *testing.T) {
	f := newBidFixture(BidConfig{NotifyOnPlace: true})
	ctx := context.Background()
	i1 := f.items.add("U3", "Headphones", float64Ptr(60))
	i2 := f.items.add("U3", "Keyboard", float64Ptr(40))
	target := f.items.add("U4", "Monitor", float64Ptr(100))

	placed, err := f.svc.PlaceBid(ctx, "U3", target, []uint64{i1, i2})
	require.NoError(t, err)
	require.NoError(t, placed.NotifyErr)

	notes := f.notes.forUser("U4")
	require.Len(t, notes, 1)
	assert.Equal(t, "New Bid", notes[0].Title)
	assert.Equal(t, "2 items (Headphones, Keyboard) offered for your Monitor.", notes[0].Body)
}

func TestResolveBidKeepsDecisionWhenNotifyFails(t *testing.T) {
	f := newBidFixture(BidConfig{})
	ctx := context.Background()
	offered := f.items.add("U3", "Headphones", float64Ptr(60))
	target := f.items.add("U4", "Monitor", float64Ptr(100))
	placed, err := f.svc.PlaceBid(ctx, "U3", target, []uint64{offered})
	require.NoError(t, err)

	f.notes.failCreates = 100
	res, err := f.svc.ResolveBid(ctx, placed.Bids[0].ID, model.BidStatusRejected, "U4")
	require.NoError(t, err)
	assert.False(t, res.Notified())
	require.ErrorIs(t, res.NotifyErr, ErrUpstream)

	stored, _ := f.bids.FindByID(ctx, placed.Bids[0].ID)
	assert.Equal(t, model.BidStatusRejected, stored.Status)
}

func TestListIncomingAndOutgoing(t *testing.T) {
	f := newBidFixture(BidConfig{})
	ctx := context.Background()
	i1 := f.items.add("U3", "Headphones", float64Ptr(60))
	target := f.items.add("U4", "Monitor", float64Ptr(100))
	other := f.items.add("U5", "Lamp", float64Ptr(60))
	_, err := f.svc.PlaceBid(ctx, "U3", target, []uint64{i1})
	require.NoError(t, err)
	_, err = f.svc.PlaceBid(ctx, "U3", other, []uint64{i1})
	require.NoError(t, err)

	in, err := f.svc.ListIncoming(ctx, "U4")
	require.NoError(t, err)
	require.Len(t, in, 1)
	assert.Equal(t, "Headphones", in[0].OfferedItem.Title)
	assert.Equal(t, "Monitor", in[0].TargetItem.Title)

	out, err := f.svc.ListOutgoing(ctx, "U3")
	require.NoError(t, err)
	assert.Len(t, out, 2)

	none, err := f.svc.ListIncoming(ctx, "U3")
	require.NoError(t, err)
	assert.Empty(t, none)
}
