package memory

import (
	"context"

	"redblood/pkg/types"
)

func (s *Store) User(ctx context.Context, userID string) (user *types.User, err error) {
	err = s.do(func(q *tx) error { user, err = q.User(ctx, userID); return err })
	return user, err
}

func (s *Store) Users(ctx context.Context, filter types.UserFilter) (users []*types.User, err error) {
	err = s.do(func(q *tx) error { users, err = q.Users(ctx, filter); return err })
	return users, err
}

func (s *Store) CreateUser(ctx context.Context, user *types.User) error {
	return s.do(func(q *tx) error { return q.CreateUser(ctx, user) })
}

func (s *Store) UpdateUser(ctx context.Context, user *types.User) error {
	return s.do(func(q *tx) error { return q.UpdateUser(ctx, user) })
}

func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	return s.do(func(q *tx) error { return q.DeleteUser(ctx, userID) })
}

func (s *Store) Request(ctx context.Context, requestID string) (request *types.BloodRequest, err error) {
	err = s.do(func(q *tx) error { request, err = q.Request(ctx, requestID); return err })
	return request, err
}

func (s *Store) LockRequest(ctx context.Context, requestID string) (*types.BloodRequest, error) {
	return s.Request(ctx, requestID)
}

func (s *Store) Requests(ctx context.Context, filter types.RequestFilter) (requests []*types.BloodRequest, err error) {
	err = s.do(func(q *tx) error { requests, err = q.Requests(ctx, filter); return err })
	return requests, err
}

func (s *Store) CreateRequest(ctx context.Context, request *types.BloodRequest) error {
	return s.do(func(q *tx) error { return q.CreateRequest(ctx, request) })
}

func (s *Store) UpdateRequest(ctx context.Context, request *types.BloodRequest) error {
	return s.do(func(q *tx) error { return q.UpdateRequest(ctx, request) })
}

func (s *Store) DeleteRequest(ctx context.Context, requestID string) error {
	return s.do(func(q *tx) error { return q.DeleteRequest(ctx, requestID) })
}

func (s *Store) Response(ctx context.Context, responseID string) (response *types.Response, err error) {
	err = s.do(func(q *tx) error { response, err = q.Response(ctx, responseID); return err })
	return response, err
}

func (s *Store) Responses(ctx context.Context, filter types.ResponseFilter) (responses []*types.Response, err error) {
	err = s.do(func(q *tx) error { responses, err = q.Responses(ctx, filter); return err })
	return responses, err
}

func (s *Store) CreateResponse(ctx context.Context, response *types.Response) error {
	return s.do(func(q *tx) error { return q.CreateResponse(ctx, response) })
}

func (s *Store) UpdateResponse(ctx context.Context, response *types.Response) error {
	return s.do(func(q *tx) error { return q.UpdateResponse(ctx, response) })
}

func (s *Store) DeleteResponses(ctx context.Context, filter types.ResponseFilter) error {
	return s.do(func(q *tx) error { return q.DeleteResponses(ctx, filter) })
}

func (s *Store) Donation(ctx context.Context, donationID string) (donation *types.Donation, err error) {
	err = s.do(func(q *tx) error { donation, err = q.Donation(ctx, donationID); return err })
	return donation, err
}

func (s *Store) Donations(ctx context.Context, filter types.DonationFilter) (donations []*types.Donation, err error) {
	err = s.do(func(q *tx) error { donations, err = q.Donations(ctx, filter); return err })
	return donations, err
}

func (s *Store) CreateDonation(ctx context.Context, donation *types.Donation) error {
	return s.do(func(q *tx) error { return q.CreateDonation(ctx, donation) })
}

func (s *Store) UpdateDonation(ctx context.Context, donation *types.Donation) error {
	return s.do(func(q *tx) error { return q.UpdateDonation(ctx, donation) })
}

func (s *Store) DeleteDonations(ctx context.Context, userID string) error {
	return s.do(func(q *tx) error { return q.DeleteDonations(ctx, userID) })
}

func (s *Store) Center(ctx context.Context, centerID string) (center *types.DonationCenter, err error) {
	err = s.do(func(q *tx) error { center, err = q.Center(ctx, centerID); return err })
	return center, err
}

func (s *Store) Centers(ctx context.Context, filter types.CenterFilter) (centers []*types.DonationCenter, err error) {
	err = s.do(func(q *tx) error { centers, err = q.Centers(ctx, filter); return err })
	return centers, err
}

func (s *Store) CreateCenter(ctx context.Context, center *types.DonationCenter) error {
	return s.do(func(q *tx) error { return q.CreateCenter(ctx, center) })
}

func (s *Store) UpdateCenter(ctx context.Context, center *types.DonationCenter) error {
	return s.do(func(q *tx) error { return q.UpdateCenter(ctx, center) })
}
