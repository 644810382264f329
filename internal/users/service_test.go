package users

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"redblood/internal/eligibility"
	"redblood/internal/store/memory"
	"redblood/internal/utils"
	"redblood/pkg/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, time.May, 20, 10, 0, 0, 0, time.UTC)

type fakeIdentity struct {
	deleted []string
	err     error
}

func (f *fakeIdentity) DeleteUser(_ context.Context, username string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, username)
	return nil
}

type fakeAvatars struct {
	objects map[string]string
}

func (f *fakeAvatars) Put(_ context.Context, key, _ string, body io.Reader) error {
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.objects[key] = string(b)
	return nil
}

func (f *fakeAvatars) Delete(_ context.Context, key string) error {
	delete(f.objects, key)
	return nil
}

func (f *fakeAvatars) URL(_ context.Context, key string) (string, error) {
	return "https://cdn.test/" + key, nil
}

func newService(t *testing.T) (*Service, *memory.Store, *fakeIdentity, *fakeAvatars) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	st := memory.New()
	id := &fakeIdentity{}
	av := &fakeAvatars{objects: map[string]string{}}
	svc := NewService(st, id, av, nil, logger, Options{DefaultRadiusKm: 50, Now: func() time.Time { return now }})
	return svc, st, id, av
}

func TestCreateProfileDefaults(t *testing.T) {
	svc, _, _, _ := newService(t)
	ctx := context.Background()

	u, err := svc.CreateProfile(ctx, "u1", types.Registration{Email: " Jane@Example.com ", FullName: "Jane"})
	require.NoError(t, err)

	assert.Equal(t, types.RoleDonor, u.Role)
	assert.Equal(t, "jane@example.com", u.Email)
	assert.True(t, u.Active)
	assert.Equal(t, types.DefaultNotificationPreferences, u.NotificationPreferences)

	_, err = svc.CreateProfile(ctx, "u2", types.Registration{Email: "a@b.c", FullName: "A", Role: types.RoleAdmin})
	assert.Equal(t, types.KindValidation, types.KindOf(err))

	_, err = svc.CreateProfile(ctx, "u3", types.Registration{Email: "a@b.c", FullName: "A", BloodType: "X"})
	assert.Equal(t, types.KindInvalidBloodType, types.KindOf(err))

	_, err = svc.CreateProfile(ctx, "u1", types.Registration{Email: "a@b.c", FullName: "A"})
	assert.Equal(t, types.KindInvalidState, types.KindOf(err))
}

func TestUpdateProfileValidates(t *testing.T) {
	svc, _, _, _ := newService(t)
	ctx := context.Background()

	_, err := svc.CreateProfile(ctx, "u1", types.Registration{Email: "a@b.c", FullName: "A"})
	require.NoError(t, err)

	bad := types.BloodType("A")
	_, err = svc.UpdateProfile(ctx, "u1", types.ProfileUpdate{BloodType: &bad})
	assert.Equal(t, types.KindInvalidBloodType, types.KindOf(err))

	_, err = svc.UpdateProfile(ctx, "u1", types.ProfileUpdate{Location: &types.GeoPoint{Latitude: 10, Longitude: 181}})
	assert.Equal(t, types.KindInvalidCoordinate, types.KindOf(err))

	bt := types.BloodTypeOPos
	u, err := svc.UpdateProfile(ctx, "u1", types.ProfileUpdate{
		BloodType: &bt,
		Location:  &types.GeoPoint{Latitude: 51.5, Longitude: -0.12},
		WeightKg:  utils.Ptr(70.0),
	})
	require.NoError(t, err)
	assert.Equal(t, types.BloodTypeOPos, u.BloodType)
	p, ok := u.Coordinates.Point()
	require.True(t, ok)
	assert.Equal(t, 51.5, p.Latitude)

	_, err = svc.UpdateProfile(ctx, "missing", types.ProfileUpdate{})
	assert.ErrorIs(t, err, types.ErrUserNotFound)
}

func TestUpdateNotifications(t *testing.T) {
	svc, st, _, _ := newService(t)
	ctx := context.Background()

	_, err := svc.CreateProfile(ctx, "u1", types.Registration{Email: "a@b.c", FullName: "A"})
	require.NoError(t, err)

	_, err = svc.UpdateNotifications(ctx, "u1", types.NotificationPreferences{SMS: true})
	require.NoError(t, err)

	u, err := st.User(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, types.NotificationPreferences{SMS: true}, u.NotificationPreferences)
}

func seedDonor(t *testing.T, st *memory.Store, id string, bt types.BloodType, lon float64, last *time.Time) {
	t.Helper()
	require.NoError(t, st.CreateUser(context.Background(), &types.User{
		ID:               id,
		FullName:         "Donor " + id,
		Role:             types.RoleDonor,
		BloodType:        bt,
		Active:           true,
		LastDonationDate: last,
		Coordinates:      types.CoordinatesOf(types.GeoPoint{Latitude: 0, Longitude: lon}),
	}))
}

func TestEligibleDonors(t *testing.T) {
	svc, st, _, _ := newService(t)
	ctx := context.Background()

	recent := now.AddDate(0, 0, -10)
	seedDonor(t, st, "far", types.BloodTypeONeg, 0.4, nil)
	seedDonor(t, st, "near", types.BloodTypeANeg, 0.01, nil)
	seedDonor(t, st, "recent", types.BloodTypeAPos, 0.02, &recent)
	seedDonor(t, st, "wrong-type", types.BloodTypeBPos, 0.01, nil)
	seedDonor(t, st, "out-of-range", types.BloodTypeONeg, 2, nil)

	lat, lon := 0.0, 0.0
	got, err := svc.EligibleDonors(ctx, types.BloodTypeAPos, types.DonorQuery{Latitude: &lat, Longitude: &lon})
	require.NoError(t, err)

	ids := make([]string, len(got))
	for i, d := range got {
		ids[i] = d.ID
	}
	assert.Equal(t, []string{"near", "recent", "far"}, ids)
	require.NotNil(t, got[0].DistanceKm)

	got, err = svc.EligibleDonors(ctx, types.BloodTypeAPos, types.DonorQuery{Latitude: &lat, Longitude: &lon, EligibleOnly: true})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = svc.EligibleDonors(ctx, "Q-", types.DonorQuery{})
	assert.Equal(t, types.KindInvalidBloodType, types.KindOf(err))
}

func TestEligibleDonorsOrder(t *testing.T) {
	svc, st, _, _ := newService(t)
	ctx := context.Background()

	for i, id := range []string{"first", "second", "third"} {
		require.NoError(t, st.CreateUser(ctx, &types.User{
			ID:        id,
			Role:      types.RoleDonor,
			BloodType: types.BloodTypeONeg,
			Active:    true,
			CreatedAt: now.Add(time.Duration(i) * time.Hour),
		}))
	}

	ids := func(got []DonorMatch) []string {
		out := make([]string, len(got))
		for i, d := range got {
			out[i] = d.ID
		}
		return out
	}

	got, err := svc.EligibleDonors(ctx, types.BloodTypeONeg, types.DonorQuery{SortBy: types.SortByCreatedAt})
	require.NoError(t, err)
	assert.Equal(t, []string{"third", "second", "first"}, ids(got))

	got, err = svc.EligibleDonors(ctx, types.BloodTypeONeg, types.DonorQuery{SortBy: types.SortByCreatedAt, Order: types.OrderAsc})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, ids(got))

	_, err = svc.EligibleDonors(ctx, types.BloodTypeONeg, types.DonorQuery{Order: "sideways"})
	assert.Equal(t, types.KindValidation, types.KindOf(err))
}

func TestCheckEligibilityMergesStoredProfile(t *testing.T) {
	svc, st, _, _ := newService(t)
	ctx := context.Background()

	last := now.AddDate(0, 0, -30)
	require.NoError(t, st.CreateUser(ctx, &types.User{
		ID:               "u1",
		DateOfBirth:      utils.Ptr(now.AddDate(-30, 0, 0)),
		Gender:           types.GenderFemale,
		LastDonationDate: &last,
	}))

	res, err := svc.CheckEligibility(ctx, "u1", eligibility.Profile{
		WeightKg:   utils.Ptr(60.0),
		Hemoglobin: utils.Ptr(13.0),
	})
	require.NoError(t, err)

	assert.False(t, res.Eligible)
	require.Len(t, res.Reasons, 1)
	assert.Contains(t, res.Reasons[0], "26 days")
	require.NotNil(t, res.NextEligibleDate)
	assert.Equal(t, last.AddDate(0, 0, 56), *res.NextEligibleDate)
}

func TestListIsAdminOnly(t *testing.T) {
	svc, st, _, _ := newService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		seedDonor(t, st, string(rune('a'+i)), types.BloodTypeOPos, 0, nil)
	}

	_, err := svc.List(ctx, types.Actor{UserID: "a", Role: types.RoleDonor}, types.UserFilter{}, 0)
	assert.ErrorIs(t, err, types.ErrUnauthorized)

	got, err := svc.List(ctx, types.Actor{UserID: "root", Role: types.RoleAdmin}, types.UserFilter{Role: types.RoleDonor}, 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestDeleteAccountCascades(t *testing.T) {
	svc, st, id, av := newService(t)
	ctx := context.Background()

	_, err := svc.CreateProfile(ctx, "u1", types.Registration{Email: "u1@example.com", FullName: "U"})
	require.NoError(t, err)
	_, err = svc.SetAvatar(ctx, "u1", "image/png", strings.NewReader("png"))
	require.NoError(t, err)

	own := &types.BloodRequest{UserID: "u1", Status: types.RequestStatusActive}
	require.NoError(t, st.CreateRequest(ctx, own))
	other := &types.BloodRequest{UserID: "u2", Status: types.RequestStatusActive}
	require.NoError(t, st.CreateRequest(ctx, other))

	require.NoError(t, st.CreateResponse(ctx, &types.Response{RequestID: own.ID, UserID: "u3"}))
	require.NoError(t, st.CreateResponse(ctx, &types.Response{RequestID: other.ID, UserID: "u1"}))
	require.NoError(t, st.CreateDonation(ctx, &types.Donation{UserID: "u1"}))

	require.NoError(t, svc.DeleteAccount(ctx, types.Actor{UserID: "u1"}))

	assert.Equal(t, []string{"u1@example.com"}, id.deleted)
	assert.Empty(t, av.objects)

	_, err = st.User(ctx, "u1")
	assert.ErrorIs(t, err, types.ErrUserNotFound)
	_, err = st.Request(ctx, own.ID)
	assert.ErrorIs(t, err, types.ErrRequestNotFound)
	_, err = st.Request(ctx, other.ID)
	assert.NoError(t, err)

	responses, err := st.Responses(ctx, types.ResponseFilter{RequestID: other.ID})
	require.NoError(t, err)
	assert.Empty(t, responses)

	donations, err := st.Donations(ctx, types.DonationFilter{UserID: "u1"})
	require.NoError(t, err)
	assert.Empty(t, donations)
}

func TestDeleteAccountStopsWhenIdentityFails(t *testing.T) {
	svc, st, id, _ := newService(t)
	ctx := context.Background()

	_, err := svc.CreateProfile(ctx, "u1", types.Registration{Email: "u1@example.com", FullName: "U"})
	require.NoError(t, err)

	id.err = errors.New("provider down")
	require.Error(t, svc.DeleteAccount(ctx, types.Actor{UserID: "u1"}))

	_, err = st.User(ctx, "u1")
	assert.NoError(t, err)
}

func TestSetAvatarReplacesPrevious(t *testing.T) {
	svc, _, _, av := newService(t)
	ctx := context.Background()

	_, err := svc.CreateProfile(ctx, "u1", types.Registration{Email: "u1@example.com", FullName: "U"})
	require.NoError(t, err)

	_, err = svc.SetAvatar(ctx, "u1", "image/gif", strings.NewReader("gif"))
	assert.Equal(t, types.KindValidation, types.KindOf(err))

	url, err := svc.SetAvatar(ctx, "u1", "image/jpeg", strings.NewReader("one"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "https://cdn.test/avatars/u1/"))
	assert.Len(t, av.objects, 1)

	url, err = svc.SetAvatar(ctx, "u1", "image/png", strings.NewReader("two"))
	require.NoError(t, err)
	assert.Len(t, av.objects, 1)

	got, err := svc.AvatarURL(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, url, got)
}
