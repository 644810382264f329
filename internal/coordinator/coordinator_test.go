package coordinator

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"redblood/internal/notify"
	"redblood/internal/requests"
	"redblood/internal/store"
	"redblood/internal/store/memory"
	"redblood/internal/utils"
	"redblood/pkg/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type CoordinatorSuite struct {
	suite.Suite

	ctx      context.Context
	now      time.Time
	store    *memory.Store
	events   *notify.Recorder
	requests *requests.Service
	svc      *Service

	owner types.Actor
	donor types.Actor
}

func TestCoordinatorSuite(t *testing.T) {
	suite.Run(t, new(CoordinatorSuite))
}

func (s *CoordinatorSuite) SetupTest() {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	s.ctx = context.Background()
	s.now = time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)
	s.store = memory.New()
	s.events = &notify.Recorder{}

	clock := func() time.Time { return s.now }
	emitter := notify.NewEmitter(s.events, logger, nil)
	s.requests = requests.NewService(s.store, emitter, nil, logger, requests.Options{DefaultRadiusKm: 50, Now: clock})
	s.svc = NewService(s.store, s.requests, emitter, nil, logger, clock)

	s.owner = types.Actor{UserID: "owner", Role: types.RoleRecipient}
	s.donor = types.Actor{UserID: "donor", Role: types.RoleDonor}

	s.Require().NoError(s.store.CreateUser(s.ctx, &types.User{ID: "owner", Role: types.RoleRecipient, FullName: "Owner"}))
	s.addDonor("donor", types.BloodTypeONeg)
}

func (s *CoordinatorSuite) addDonor(id string, bt types.BloodType) {
	s.Require().NoError(s.store.CreateUser(s.ctx, &types.User{
		ID:          id,
		Role:        types.RoleDonor,
		BloodType:   bt,
		FullName:    "Donor " + id,
		PhoneNumber: "555-0100",
		Email:       id + "@example.com",
		Active:      true,
	}))
}

func (s *CoordinatorSuite) newRequest(bt types.BloodType) *types.BloodRequest {
	r, err := s.requests.Create(s.ctx, s.owner, types.CreateRequestInput{
		PatientName: "Patient",
		BloodType:   bt,
		Hospital:    "General",
	})
	s.Require().NoError(err)
	return r
}

func (s *CoordinatorSuite) TestRespondCreatesPendingAndLinksRequest() {
	r := s.newRequest(types.BloodTypeAPos)

	res, err := s.svc.Respond(s.ctx, s.donor, r.ID, types.RespondInput{Message: "on my way"})
	s.Require().NoError(err)

	s.Equal(types.ResponseStatusPending, res.Response.Status)
	s.Equal("Donor donor", res.Response.ContactInfo.Name)
	s.Equal([]string{res.Response.ID}, res.Request.ResponseIDs)

	stored, err := s.store.Request(s.ctx, r.ID)
	s.Require().NoError(err)
	s.Equal([]string{res.Response.ID}, stored.ResponseIDs)

	s.Equal(types.EventResponseCreated, s.events.Types()[len(s.events.Types())-1])
}

func (s *CoordinatorSuite) TestRespondRejectsIncompatibleDonor() {
	s.addDonor("b-pos", types.BloodTypeBPos)
	r := s.newRequest(types.BloodTypeANeg)

	_, err := s.svc.Respond(s.ctx, types.Actor{UserID: "b-pos", Role: types.RoleDonor}, r.ID, types.RespondInput{})
	s.Equal(types.KindIncompatibleBloodType, types.KindOf(err))

	left, err := s.store.Responses(s.ctx, types.ResponseFilter{RequestID: r.ID})
	s.Require().NoError(err)
	s.Empty(left)
}

func (s *CoordinatorSuite) TestRespondSkipsCompatibilityForUnknownType() {
	s.addDonor("untyped", "")
	r := s.newRequest(types.BloodTypeABNeg)

	_, err := s.svc.Respond(s.ctx, types.Actor{UserID: "untyped", Role: types.RoleDonor}, r.ID, types.RespondInput{})
	s.NoError(err)
}

func (s *CoordinatorSuite) TestRespondRequiresActiveRequest() {
	r := s.newRequest(types.BloodTypeAPos)
	_, err := s.requests.Cancel(s.ctx, s.owner, r.ID)
	s.Require().NoError(err)

	_, err = s.svc.Respond(s.ctx, s.donor, r.ID, types.RespondInput{})
	s.Equal(types.KindRequestNotActive, types.KindOf(err))
}

func (s *CoordinatorSuite) TestRespondToExpiredRequest() {
	r := s.newRequest(types.BloodTypeAPos)
	s.now = s.now.Add(8 * 24 * time.Hour)

	_, err := s.svc.Respond(s.ctx, s.donor, r.ID, types.RespondInput{})
	s.Equal(types.KindRequestNotActive, types.KindOf(err))

	stored, err := s.store.Request(s.ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(types.RequestStatusExpired, stored.Status)
}

func (s *CoordinatorSuite) TestRespondTwiceIsRefused() {
	r := s.newRequest(types.BloodTypeAPos)

	_, err := s.svc.Respond(s.ctx, s.donor, r.ID, types.RespondInput{})
	s.Require().NoError(err)

	_, err = s.svc.Respond(s.ctx, s.donor, r.ID, types.RespondInput{})
	s.Equal(types.KindInvalidState, types.KindOf(err))

	_, err = s.svc.Respond(s.ctx, s.owner, r.ID, types.RespondInput{})
	s.Equal(types.KindInvalidState, types.KindOf(err))
}

func (s *CoordinatorSuite) TestAcceptFulfillsRequest() {
	r := s.newRequest(types.BloodTypeAPos)
	res, err := s.svc.Respond(s.ctx, s.donor, r.ID, types.RespondInput{})
	s.Require().NoError(err)

	_, err = s.svc.AcceptResponse(s.ctx, s.donor, r.ID, res.Response.ID)
	s.ErrorIs(err, types.ErrUnauthorized)

	accepted, err := s.svc.AcceptResponse(s.ctx, s.owner, r.ID, res.Response.ID)
	s.Require().NoError(err)

	s.Equal(types.ResponseStatusAccepted, accepted.Response.Status)
	s.Equal(types.RequestStatusFulfilled, accepted.Request.Status)
	s.Require().NotNil(accepted.Request.FulfilledBy)
	s.Equal("donor", *accepted.Request.FulfilledBy)

	stored, err := s.store.Request(s.ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(types.RequestStatusFulfilled, stored.Status)

	evts := s.events.Types()
	s.Equal([]types.EventType{types.EventResponseUpdated, types.EventRequestStatusChanged}, evts[len(evts)-2:])
}

func (s *CoordinatorSuite) TestAcceptOnClosedRequestTouchesNothing() {
	r := s.newRequest(types.BloodTypeAPos)
	res, err := s.svc.Respond(s.ctx, s.donor, r.ID, types.RespondInput{})
	s.Require().NoError(err)

	_, err = s.requests.Fulfill(s.ctx, s.owner, r.ID, "someone-else")
	s.Require().NoError(err)

	_, err = s.svc.AcceptResponse(s.ctx, s.owner, r.ID, res.Response.ID)
	s.Equal(types.KindRequestNotActive, types.KindOf(err))

	resp, err := s.store.Response(s.ctx, res.Response.ID)
	s.Require().NoError(err)
	s.Equal(types.ResponseStatusPending, resp.Status)
}

func (s *CoordinatorSuite) TestResponderWithdrawsAndEdits() {
	r := s.newRequest(types.BloodTypeAPos)
	res, err := s.svc.Respond(s.ctx, s.donor, r.ID, types.RespondInput{})
	s.Require().NoError(err)

	when := s.now.Add(48 * time.Hour)
	edited, err := s.svc.UpdateResponse(s.ctx, s.donor, r.ID, res.Response.ID, types.ResponseUpdate{
		Message:       utils.Ptr("tomorrow morning"),
		ScheduledDate: &when,
	})
	s.Require().NoError(err)
	s.Equal("tomorrow morning", edited.Response.Message)
	s.Equal(types.ResponseStatusPending, edited.Response.Status)

	_, err = s.svc.UpdateResponse(s.ctx, s.owner, r.ID, res.Response.ID, types.ResponseUpdate{Status: types.ResponseStatusCancelled})
	s.ErrorIs(err, types.ErrUnauthorized)

	withdrawn, err := s.svc.UpdateResponse(s.ctx, s.donor, r.ID, res.Response.ID, types.ResponseUpdate{Status: types.ResponseStatusCancelled})
	s.Require().NoError(err)
	s.Equal(types.ResponseStatusCancelled, withdrawn.Response.Status)
	s.Equal(types.RequestStatusActive, withdrawn.Request.Status)

	_, err = s.svc.UpdateResponse(s.ctx, s.owner, r.ID, res.Response.ID, types.ResponseUpdate{Status: types.ResponseStatusRejected})
	s.Equal(types.KindInvalidTransition, types.KindOf(err))

	_, err = s.svc.Respond(s.ctx, s.donor, r.ID, types.RespondInput{})
	s.NoError(err, "a withdrawn response does not block a new one")
}

func (s *CoordinatorSuite) TestResponseMustBelongToRequest() {
	first := s.newRequest(types.BloodTypeAPos)
	second := s.newRequest(types.BloodTypeAPos)

	res, err := s.svc.Respond(s.ctx, s.donor, first.ID, types.RespondInput{})
	s.Require().NoError(err)

	_, err = s.svc.AcceptResponse(s.ctx, s.owner, second.ID, res.Response.ID)
	s.ErrorIs(err, types.ErrResponseNotFound)

	_, err = s.svc.UpdateResponse(s.ctx, types.Actor{UserID: "stranger"}, first.ID, res.Response.ID, types.ResponseUpdate{Status: types.ResponseStatusCancelled})
	s.ErrorIs(err, types.ErrUnauthorized)
}

func (s *CoordinatorSuite) TestListing() {
	s.addDonor("second", types.BloodTypeOPos)
	r := s.newRequest(types.BloodTypeAPos)

	_, err := s.svc.Respond(s.ctx, s.donor, r.ID, types.RespondInput{})
	s.Require().NoError(err)
	_, err = s.svc.Respond(s.ctx, types.Actor{UserID: "second"}, r.ID, types.RespondInput{})
	s.Require().NoError(err)

	all, err := s.svc.ForRequest(s.ctx, s.owner, r.ID)
	s.Require().NoError(err)
	s.Len(all, 2)

	own, err := s.svc.ForRequest(s.ctx, s.donor, r.ID)
	s.Require().NoError(err)
	s.Require().Len(own, 1)
	s.Equal("donor", own[0].UserID)

	mine, err := s.svc.ByUser(s.ctx, "second", types.ResponseStatusPending)
	s.Require().NoError(err)
	s.Len(mine, 1)
}

// failingStore fails the request write after the response insert, so both must roll back.
type failingStore struct {
	*memory.Store
}

type failingQueries struct {
	store.Queries
}

func (f failingQueries) UpdateRequest(context.Context, *types.BloodRequest) error {
	return errors.New("disk full")
}

func (f failingStore) RunInTx(ctx context.Context, fn func(q store.Queries) error) error {
	return f.Store.RunInTx(ctx, func(q store.Queries) error {
		return fn(failingQueries{Queries: q})
	})
}

func TestRespondIsAtomic(t *testing.T) {
	ctx := context.Background()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	mem := memory.New()
	require.NoError(t, mem.CreateUser(ctx, &types.User{ID: "donor", BloodType: types.BloodTypeONeg}))

	reqs := requests.NewService(mem, nil, nil, logger, requests.Options{})
	r, err := reqs.Create(ctx, types.Actor{UserID: "owner"}, types.CreateRequestInput{
		PatientName: "Patient",
		BloodType:   types.BloodTypeAPos,
		Hospital:    "General",
	})
	require.NoError(t, err)

	svc := NewService(failingStore{Store: mem}, reqs, nil, nil, logger, nil)
	_, err = svc.Respond(ctx, types.Actor{UserID: "donor"}, r.ID, types.RespondInput{})
	require.Error(t, err)

	stored, err := mem.Request(ctx, r.ID)
	require.NoError(t, err)
	require.Empty(t, stored.ResponseIDs)

	responses, err := mem.Responses(ctx, types.ResponseFilter{RequestID: r.ID})
	require.NoError(t, err)
	require.Empty(t, responses)
}
