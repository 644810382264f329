package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"redblood/internal/store"
	"redblood/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New()

	lat, lon := 12.5, 77.1
	in := &types.BloodRequest{
		UserID:      "owner",
		PatientName: "Sam",
		BloodType:   types.BloodTypeBNeg,
		Units:       3,
		Status:      types.RequestStatusActive,
		Coordinates: types.Coordinates{Latitude: &lat, Longitude: &lon},
	}
	require.NoError(t, s.CreateRequest(ctx, in))
	require.NotEmpty(t, in.ID)

	got, err := s.Request(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, in, got)

	// values handed out are copies
	got.PatientName = "changed"
	*got.Latitude = 0
	again, err := s.Request(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sam", again.PatientName)
	assert.Equal(t, 12.5, *again.Latitude)
}

func TestNotFound(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.Request(ctx, "nope")
	assert.ErrorIs(t, err, types.ErrRequestNotFound)

	_, err = s.User(ctx, "nope")
	assert.ErrorIs(t, err, types.ErrUserNotFound)

	err = s.UpdateDonation(ctx, &types.Donation{ID: "nope"})
	assert.ErrorIs(t, err, types.ErrDonationNotFound)
}

func TestRunInTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()

	request := &types.BloodRequest{UserID: "owner", Status: types.RequestStatusActive}
	require.NoError(t, s.CreateRequest(ctx, request))

	boom := errors.New("boom")
	err := s.RunInTx(ctx, func(q store.Queries) error {
		resp := &types.Response{RequestID: request.ID, UserID: "donor"}
		if err := q.CreateResponse(ctx, resp); err != nil {
			return err
		}
		r, err := q.LockRequest(ctx, request.ID)
		if err != nil {
			return err
		}
		r.ResponseIDs = append(r.ResponseIDs, resp.ID)
		if err := q.UpdateRequest(ctx, r); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.Request(ctx, request.ID)
	require.NoError(t, err)
	assert.Empty(t, got.ResponseIDs)

	responses, err := s.Responses(ctx, types.ResponseFilter{RequestID: request.ID})
	require.NoError(t, err)
	assert.Empty(t, responses)
}

func TestRunInTxCommits(t *testing.T) {
	ctx := context.Background()
	s := New()

	err := s.RunInTx(ctx, func(q store.Queries) error {
		return q.CreateUser(ctx, &types.User{ID: "u1", Role: types.RoleDonor})
	})
	require.NoError(t, err)

	_, err = s.User(ctx, "u1")
	assert.NoError(t, err)
}

func TestRequestsFilterAndOrder(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC)

	for i, bt := range []types.BloodType{types.BloodTypeAPos, types.BloodTypeONeg, types.BloodTypeAPos} {
		require.NoError(t, s.CreateRequest(ctx, &types.BloodRequest{
			ID:        string(rune('a' + i)),
			UserID:    "owner",
			BloodType: bt,
			Status:    types.RequestStatusActive,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	got, err := s.Requests(ctx, types.RequestFilter{BloodTypes: []types.BloodType{types.BloodTypeAPos}})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].ID)
	assert.Equal(t, "a", got[1].ID)

	got, err = s.Requests(ctx, types.RequestFilter{BloodTypes: []types.BloodType{}})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCreateUserTwiceFails(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.CreateUser(ctx, &types.User{ID: "u1"}))
	err := s.CreateUser(ctx, &types.User{ID: "u1"})
	assert.Equal(t, types.KindInvalidState, types.KindOf(err))
}

func TestCentersByService(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.CreateCenter(ctx, &types.DonationCenter{ID: "b", Name: "Beta", Active: true, Services: []string{"plasma"}}))
	require.NoError(t, s.CreateCenter(ctx, &types.DonationCenter{ID: "a", Name: "Alpha", Active: true, Services: []string{"whole_blood", "plasma"}}))
	require.NoError(t, s.CreateCenter(ctx, &types.DonationCenter{ID: "c", Name: "Closed", Active: false, Services: []string{"plasma"}}))

	got, err := s.Centers(ctx, types.CenterFilter{Services: []types.DonationType{types.DonationTypePlasma}, ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Alpha", got[0].Name)
	assert.Equal(t, "Beta", got[1].Name)
}
