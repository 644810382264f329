package requests

import (
	"context"
	"io"
	"testing"
	"time"

	"redblood/internal/notify"
	"redblood/internal/store/memory"
	"redblood/internal/utils"
	"redblood/pkg/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time          { return c.now }
func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fixture struct {
	svc    *Service
	store  *memory.Store
	events *notify.Recorder
	clock  *clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	c := &clock{now: time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)}
	st := memory.New()
	rec := &notify.Recorder{}

	svc := NewService(st, notify.NewEmitter(rec, logger, nil), nil, logger, Options{
		DefaultRadiusKm: 50,
		Now:             c.Now,
	})
	return &fixture{svc: svc, store: st, events: rec, clock: c}
}

var (
	owner    = types.Actor{UserID: "owner", Role: types.RoleRecipient}
	stranger = types.Actor{UserID: "stranger", Role: types.RoleDonor}
	admin    = types.Actor{UserID: "admin", Role: types.RoleAdmin}
)

func input(bt types.BloodType, lon float64) types.CreateRequestInput {
	return types.CreateRequestInput{
		PatientName: "Jane",
		BloodType:   bt,
		Hospital:    "City Hospital",
		Urgency:     types.UrgencyHigh,
		Location:    &types.GeoPoint{Latitude: 0, Longitude: lon},
	}
}

func TestCreateStartsActiveAndAnnounces(t *testing.T) {
	f := newFixture(t)

	r, err := f.svc.Create(context.Background(), owner, input(types.BloodTypeAPos, 0))
	require.NoError(t, err)

	assert.NotEmpty(t, r.ID)
	assert.Equal(t, types.RequestStatusActive, r.Status)
	assert.Equal(t, 1, r.Units)
	assert.Equal(t, f.clock.now.Add(7*24*time.Hour), r.ExpiresAt)
	assert.Equal(t, []types.EventType{types.EventRequestCreated}, f.events.Types())
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, types.Actor{}, input(types.BloodTypeAPos, 0))
	assert.ErrorIs(t, err, types.ErrUnauthenticated)

	in := input("Z+", 0)
	_, err = f.svc.Create(ctx, owner, in)
	assert.Equal(t, types.KindInvalidBloodType, types.KindOf(err))

	in = input(types.BloodTypeAPos, 0)
	in.PatientName = ""
	_, err = f.svc.Create(ctx, owner, in)
	assert.Equal(t, types.KindValidation, types.KindOf(err))

	in = input(types.BloodTypeAPos, 0)
	in.Location = &types.GeoPoint{Latitude: 91}
	_, err = f.svc.Create(ctx, owner, in)
	assert.Equal(t, types.KindInvalidCoordinate, types.KindOf(err))

	assert.Empty(t, f.events.Types())
}

func TestDraftNeedsActivation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := input(types.BloodTypeOPos, 0)
	in.Draft = true
	r, err := f.svc.Create(ctx, owner, in)
	require.NoError(t, err)
	assert.Equal(t, types.RequestStatusPending, r.Status)
	assert.Empty(t, f.events.Types())

	_, err = f.svc.Activate(ctx, stranger, r.ID)
	assert.ErrorIs(t, err, types.ErrUnauthorized)

	r, err = f.svc.Activate(ctx, owner, r.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RequestStatusActive, r.Status)

	_, err = f.svc.Activate(ctx, owner, r.ID)
	assert.Equal(t, types.KindInvalidTransition, types.KindOf(err))
}

func TestLazyExpiryOnRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r, err := f.svc.Create(ctx, owner, input(types.BloodTypeAPos, 0))
	require.NoError(t, err)

	f.clock.Advance(8 * 24 * time.Hour)

	got, err := f.svc.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RequestStatusExpired, got.Status)

	stored, err := f.store.Request(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RequestStatusExpired, stored.Status)

	assert.Equal(t, []types.EventType{types.EventRequestCreated, types.EventRequestStatusChanged}, f.events.Types())

	matches, err := f.svc.Search(ctx, types.RequestQuery{})
	require.NoError(t, err)
	assert.Empty(t, matches)

	matches, err = f.svc.Search(ctx, types.RequestQuery{Status: types.RequestStatusExpired})
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestSearchExpiresOverdueCandidates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := input(types.BloodTypeAPos, 0)
	in.RequiredBy = utils.Ptr(f.clock.now.Add(time.Hour))
	soon, err := f.svc.Create(ctx, owner, in)
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, owner, input(types.BloodTypeAPos, 0))
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)

	matches, err := f.svc.Search(ctx, types.RequestQuery{})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.NotEqual(t, soon.ID, matches[0].Item.ID)

	stored, err := f.store.Request(ctx, soon.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RequestStatusExpired, stored.Status)
}

func TestNearbySortsByDistance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	far, err := f.svc.Create(ctx, owner, input(types.BloodTypeAPos, 0.3))
	require.NoError(t, err)
	near, err := f.svc.Create(ctx, owner, input(types.BloodTypeAPos, 0.01))
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, owner, input(types.BloodTypeAPos, 3))
	require.NoError(t, err)

	lat, lon := 0.0, 0.0
	matches, err := f.svc.Nearby(ctx, types.RequestQuery{Latitude: &lat, Longitude: &lon})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, near.ID, matches[0].Item.ID)
	assert.Equal(t, far.ID, matches[1].Item.ID)
	require.NotNil(t, matches[0].Distance)
	assert.Less(t, *matches[0].Distance, *matches[1].Distance)

	_, err = f.svc.Nearby(ctx, types.RequestQuery{})
	assert.Equal(t, types.KindValidation, types.KindOf(err))
}

func TestSearchByDonorCompatibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, bt := range []types.BloodType{types.BloodTypeAPos, types.BloodTypeBPos, types.BloodTypeABPos, types.BloodTypeONeg} {
		_, err := f.svc.Create(ctx, owner, input(bt, 0))
		require.NoError(t, err)
	}

	matches, err := f.svc.Search(ctx, types.RequestQuery{CompatibleWith: types.BloodTypeAPos})
	require.NoError(t, err)

	var got []types.BloodType
	for _, m := range matches {
		got = append(got, m.Item.BloodType)
	}
	assert.ElementsMatch(t, []types.BloodType{types.BloodTypeAPos, types.BloodTypeABPos}, got)
}

func TestSearchLimitIsClamped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		_, err := f.svc.Create(ctx, owner, input(types.BloodTypeAPos, 0))
		require.NoError(t, err)
	}

	matches, err := f.svc.Search(ctx, types.RequestQuery{})
	require.NoError(t, err)
	assert.Len(t, matches, 20)

	matches, err = f.svc.Search(ctx, types.RequestQuery{Limit: 5})
	require.NoError(t, err)
	assert.Len(t, matches, 5)
}

func TestUpdateRequiresOwnerAndActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r, err := f.svc.Create(ctx, owner, input(types.BloodTypeAPos, 0))
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, stranger, r.ID, types.RequestUpdate{Units: utils.Ptr(3)})
	assert.ErrorIs(t, err, types.ErrUnauthorized)

	due := f.clock.now.Add(24 * time.Hour)
	updated, err := f.svc.Update(ctx, owner, r.ID, types.RequestUpdate{Units: utils.Ptr(3), RequiredBy: &due})
	require.NoError(t, err)
	assert.Equal(t, 3, updated.Units)
	assert.Equal(t, due, updated.ExpiresAt)

	_, err = f.svc.Cancel(ctx, owner, r.ID)
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, admin, r.ID, types.RequestUpdate{Units: utils.Ptr(4)})
	assert.Equal(t, types.KindInvalidState, types.KindOf(err))
}

func TestCancelAndFulfill(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r, err := f.svc.Create(ctx, owner, input(types.BloodTypeAPos, 0))
	require.NoError(t, err)

	fulfilled, err := f.svc.Fulfill(ctx, owner, r.ID, "donor-1")
	require.NoError(t, err)
	assert.Equal(t, types.RequestStatusFulfilled, fulfilled.Status)
	require.NotNil(t, fulfilled.FulfilledBy)
	assert.Equal(t, "donor-1", *fulfilled.FulfilledBy)
	require.NotNil(t, fulfilled.FulfilledAt)

	_, err = f.svc.Cancel(ctx, owner, r.ID)
	assert.Equal(t, types.KindInvalidState, types.KindOf(err))

	_, err = f.svc.Fulfill(ctx, owner, r.ID, "donor-2")
	assert.Equal(t, types.KindInvalidTransition, types.KindOf(err))

	evts := f.events.Events()
	require.Len(t, evts, 2)
	assert.Equal(t, "active", evts[1].PreviousStatus)
	assert.Equal(t, "fulfilled", evts[1].Status)
}

func TestFulfillAfterDeadlineExpiresInstead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r, err := f.svc.Create(ctx, owner, input(types.BloodTypeAPos, 0))
	require.NoError(t, err)

	f.clock.Advance(8 * 24 * time.Hour)

	_, err = f.svc.Fulfill(ctx, owner, r.ID, "donor-1")
	assert.Equal(t, types.KindInvalidTransition, types.KindOf(err))

	stored, err := f.store.Request(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RequestStatusExpired, stored.Status)
}

func TestUpdateAfterDeadlineKeepsExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r, err := f.svc.Create(ctx, owner, input(types.BloodTypeAPos, 0))
	require.NoError(t, err)

	f.clock.Advance(8 * 24 * time.Hour)

	_, err = f.svc.Update(ctx, owner, r.ID, types.RequestUpdate{Units: utils.Ptr(2)})
	assert.Equal(t, types.KindInvalidState, types.KindOf(err))

	stored, err := f.store.Request(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RequestStatusExpired, stored.Status)
	assert.Equal(t, []types.EventType{types.EventRequestCreated, types.EventRequestStatusChanged}, f.events.Types())
}

func TestDeleteCascadesResponses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r, err := f.svc.Create(ctx, owner, input(types.BloodTypeAPos, 0))
	require.NoError(t, err)
	require.NoError(t, f.store.CreateResponse(ctx, &types.Response{RequestID: r.ID, UserID: "donor", Status: types.ResponseStatusPending}))

	assert.ErrorIs(t, f.svc.Delete(ctx, stranger, r.ID), types.ErrUnauthorized)
	require.NoError(t, f.svc.Delete(ctx, owner, r.ID))

	_, err = f.store.Request(ctx, r.ID)
	assert.ErrorIs(t, err, types.ErrRequestNotFound)

	left, err := f.store.Responses(ctx, types.ResponseFilter{RequestID: r.ID})
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestByUserAndDetail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mine, err := f.svc.Create(ctx, owner, input(types.BloodTypeAPos, 0))
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, stranger, input(types.BloodTypeAPos, 0))
	require.NoError(t, err)
	require.NoError(t, f.store.CreateResponse(ctx, &types.Response{RequestID: mine.ID, UserID: "donor", Status: types.ResponseStatusPending}))

	list, err := f.svc.ByUser(ctx, owner.UserID, "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, mine.ID, list[0].ID)

	list, err = f.svc.ByUser(ctx, owner.UserID, types.RequestStatusFulfilled)
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, f.store.CreateResponse(ctx, &types.Response{RequestID: mine.ID, UserID: stranger.UserID, Status: types.ResponseStatusPending}))

	detail, err := f.svc.Detail(ctx, owner, mine.ID)
	require.NoError(t, err)
	assert.Len(t, detail.ResponseDetails, 2)

	detail, err = f.svc.Detail(ctx, stranger, mine.ID)
	require.NoError(t, err)
	require.Len(t, detail.ResponseDetails, 1)
	assert.Equal(t, stranger.UserID, detail.ResponseDetails[0].UserID)

	_, err = f.svc.Detail(ctx, owner, "missing")
	assert.ErrorIs(t, err, types.ErrRequestNotFound)
}

func TestNearbyBloodTypeMeansDonorType(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, bt := range []types.BloodType{types.BloodTypeONeg, types.BloodTypeABPos} {
		_, err := f.svc.Create(ctx, owner, input(bt, 0.01))
		require.NoError(t, err)
	}

	lat, lon := 0.0, 0.0
	matches, err := f.svc.Nearby(ctx, types.RequestQuery{Latitude: &lat, Longitude: &lon, BloodType: types.BloodTypeONeg})
	require.NoError(t, err)
	assert.Len(t, matches, 2)

	matches, err = f.svc.Nearby(ctx, types.RequestQuery{Latitude: &lat, Longitude: &lon, BloodType: types.BloodTypeABPos})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, types.BloodTypeABPos, matches[0].Item.BloodType)
}
