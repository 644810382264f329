package memory

import (
	"context"
	"time"

	"redblood/pkg/types"
)

// tx implements store.Queries over one state snapshot. Callers hold the store lock.
type tx struct {
	state *state
	now   func() time.Time
}

func (t *tx) User(_ context.Context, userID string) (*types.User, error) {
	r, ok := t.state.users[userID]
	if !ok {
		return nil, types.ErrUserNotFound
	}
	return r.item.Clone(), nil
}

func (t *tx) Users(_ context.Context, filter types.UserFilter) ([]*types.User, error) {
	keep := func(u *types.User) bool {
		if filter.Role != "" && u.Role != filter.Role {
			return false
		}
		if filter.BloodTypes != nil && !containsType(filter.BloodTypes, u.BloodType) {
			return false
		}
		if filter.Active != nil && u.Active != *filter.Active {
			return false
		}
		if filter.PushOnly && !u.NotificationPreferences.Push {
			return false
		}
		return true
	}
	newest := func(a, b *types.User) bool { return a.CreatedAt.After(b.CreatedAt) }
	return sorted(t.state.users, keep, newest, (*types.User).Clone), nil
}

func (t *tx) CreateUser(_ context.Context, user *types.User) error {
	stamp(&user.ID, &user.CreatedAt, &user.UpdatedAt, t.now())
	if _, ok := t.state.users[user.ID]; ok {
		return types.Errorf(types.KindInvalidState, "a profile already exists for user %s", user.ID)
	}
	t.state.users[user.ID] = record[*types.User]{seq: t.state.next(), item: user.Clone()}
	return nil
}

func (t *tx) UpdateUser(_ context.Context, user *types.User) error {
	r, ok := t.state.users[user.ID]
	if !ok {
		return types.ErrUserNotFound
	}
	user.CreatedAt = r.item.CreatedAt
	user.UpdatedAt = t.now()
	r.item = user.Clone()
	t.state.users[user.ID] = r
	return nil
}

func (t *tx) DeleteUser(_ context.Context, userID string) error {
	if _, ok := t.state.users[userID]; !ok {
		return types.ErrUserNotFound
	}
	delete(t.state.users, userID)
	return nil
}

func (t *tx) Request(_ context.Context, requestID string) (*types.BloodRequest, error) {
	r, ok := t.state.requests[requestID]
	if !ok {
		return nil, types.ErrRequestNotFound
	}
	return r.item.Clone(), nil
}

// LockRequest needs no row lock here because transactions are serialised.
func (t *tx) LockRequest(ctx context.Context, requestID string) (*types.BloodRequest, error) {
	return t.Request(ctx, requestID)
}

func (t *tx) Requests(_ context.Context, filter types.RequestFilter) ([]*types.BloodRequest, error) {
	keep := func(r *types.BloodRequest) bool {
		if filter.UserID != "" && r.UserID != filter.UserID {
			return false
		}
		if filter.BloodTypes != nil && !containsType(filter.BloodTypes, r.BloodType) {
			return false
		}
		if filter.Status != "" && r.Status != filter.Status {
			return false
		}
		if filter.Urgency != "" && r.Urgency != filter.Urgency {
			return false
		}
		return true
	}
	newest := func(a, b *types.BloodRequest) bool { return a.CreatedAt.After(b.CreatedAt) }
	return sorted(t.state.requests, keep, newest, (*types.BloodRequest).Clone), nil
}

func (t *tx) CreateRequest(_ context.Context, request *types.BloodRequest) error {
	stamp(&request.ID, &request.CreatedAt, &request.UpdatedAt, t.now())
	if request.ResponseIDs == nil {
		request.ResponseIDs = []string{}
	}
	t.state.requests[request.ID] = record[*types.BloodRequest]{seq: t.state.next(), item: request.Clone()}
	return nil
}

func (t *tx) UpdateRequest(_ context.Context, request *types.BloodRequest) error {
	r, ok := t.state.requests[request.ID]
	if !ok {
		return types.ErrRequestNotFound
	}
	if request.UpdatedAt.IsZero() {
		request.UpdatedAt = t.now()
	}
	request.CreatedAt = r.item.CreatedAt
	r.item = request.Clone()
	t.state.requests[request.ID] = r
	return nil
}

func (t *tx) DeleteRequest(_ context.Context, requestID string) error {
	if _, ok := t.state.requests[requestID]; !ok {
		return types.ErrRequestNotFound
	}
	delete(t.state.requests, requestID)
	return nil
}

func (t *tx) Response(_ context.Context, responseID string) (*types.Response, error) {
	r, ok := t.state.responses[responseID]
	if !ok {
		return nil, types.ErrResponseNotFound
	}
	return r.item.Clone(), nil
}

func matchesResponse(filter types.ResponseFilter, r *types.Response) bool {
	if filter.RequestID != "" && r.RequestID != filter.RequestID {
		return false
	}
	if filter.UserID != "" && r.UserID != filter.UserID {
		return false
	}
	if filter.Status != "" && r.Status != filter.Status {
		return false
	}
	return true
}

func (t *tx) Responses(_ context.Context, filter types.ResponseFilter) ([]*types.Response, error) {
	keep := func(r *types.Response) bool { return matchesResponse(filter, r) }
	oldest := func(a, b *types.Response) bool { return a.CreatedAt.Before(b.CreatedAt) }
	return sorted(t.state.responses, keep, oldest, (*types.Response).Clone), nil
}

func (t *tx) CreateResponse(_ context.Context, response *types.Response) error {
	stamp(&response.ID, &response.CreatedAt, &response.UpdatedAt, t.now())
	t.state.responses[response.ID] = record[*types.Response]{seq: t.state.next(), item: response.Clone()}
	return nil
}

func (t *tx) UpdateResponse(_ context.Context, response *types.Response) error {
	r, ok := t.state.responses[response.ID]
	if !ok {
		return types.ErrResponseNotFound
	}
	if response.UpdatedAt.IsZero() {
		response.UpdatedAt = t.now()
	}
	response.CreatedAt = r.item.CreatedAt
	r.item = response.Clone()
	t.state.responses[response.ID] = r
	return nil
}

func (t *tx) DeleteResponses(_ context.Context, filter types.ResponseFilter) error {
	for id, r := range t.state.responses {
		if matchesResponse(filter, r.item) {
			delete(t.state.responses, id)
		}
	}
	return nil
}

func (t *tx) Donation(_ context.Context, donationID string) (*types.Donation, error) {
	r, ok := t.state.donations[donationID]
	if !ok {
		return nil, types.ErrDonationNotFound
	}
	return r.item.Clone(), nil
}

func (t *tx) Donations(_ context.Context, filter types.DonationFilter) ([]*types.Donation, error) {
	keep := func(d *types.Donation) bool {
		if filter.UserID != "" && d.UserID != filter.UserID {
			return false
		}
		if filter.Status != "" && d.Status != filter.Status {
			return false
		}
		if filter.DonationType != "" && d.DonationType != filter.DonationType {
			return false
		}
		if filter.From != nil && d.AppointmentDate.Before(*filter.From) {
			return false
		}
		if filter.To != nil && !d.AppointmentDate.Before(*filter.To) {
			return false
		}
		return true
	}
	less := func(a, b *types.Donation) bool { return a.AppointmentDate.After(b.AppointmentDate) }
	if filter.Ascending {
		less = func(a, b *types.Donation) bool { return a.AppointmentDate.Before(b.AppointmentDate) }
	}
	return sorted(t.state.donations, keep, less, (*types.Donation).Clone), nil
}

func (t *tx) CreateDonation(_ context.Context, donation *types.Donation) error {
	stamp(&donation.ID, &donation.CreatedAt, &donation.UpdatedAt, t.now())
	t.state.donations[donation.ID] = record[*types.Donation]{seq: t.state.next(), item: donation.Clone()}
	return nil
}

func (t *tx) UpdateDonation(_ context.Context, donation *types.Donation) error {
	r, ok := t.state.donations[donation.ID]
	if !ok {
		return types.ErrDonationNotFound
	}
	if donation.UpdatedAt.IsZero() {
		donation.UpdatedAt = t.now()
	}
	donation.CreatedAt = r.item.CreatedAt
	r.item = donation.Clone()
	t.state.donations[donation.ID] = r
	return nil
}

func (t *tx) DeleteDonations(_ context.Context, userID string) error {
	for id, r := range t.state.donations {
		if r.item.UserID == userID {
			delete(t.state.donations, id)
		}
	}
	return nil
}

func (t *tx) Center(_ context.Context, centerID string) (*types.DonationCenter, error) {
	r, ok := t.state.centers[centerID]
	if !ok {
		return nil, types.ErrCenterNotFound
	}
	return r.item.Clone(), nil
}

func (t *tx) Centers(_ context.Context, filter types.CenterFilter) ([]*types.DonationCenter, error) {
	keep := func(c *types.DonationCenter) bool {
		if filter.ActiveOnly && !c.Active {
			return false
		}
		if len(filter.Services) > 0 && !offersAny(c, filter.Services) {
			return false
		}
		return true
	}
	byName := func(a, b *types.DonationCenter) bool { return a.Name < b.Name }
	return sorted(t.state.centers, keep, byName, (*types.DonationCenter).Clone), nil
}

// CreateCenter replaces any existing center with the same id.
func (t *tx) CreateCenter(_ context.Context, center *types.DonationCenter) error {
	now := t.now()
	stamp(&center.ID, &center.CreatedAt, &center.UpdatedAt, now)
	center.UpdatedAt = now

	seq := t.state.next()
	if existing, ok := t.state.centers[center.ID]; ok {
		seq = existing.seq
	}
	t.state.centers[center.ID] = record[*types.DonationCenter]{seq: seq, item: center.Clone()}
	return nil
}

func (t *tx) UpdateCenter(_ context.Context, center *types.DonationCenter) error {
	r, ok := t.state.centers[center.ID]
	if !ok {
		return types.ErrCenterNotFound
	}
	center.CreatedAt = r.item.CreatedAt
	center.UpdatedAt = t.now()
	r.item = center.Clone()
	t.state.centers[center.ID] = r
	return nil
}

func offersAny(c *types.DonationCenter, services []types.DonationType) bool {
	for _, s := range services {
		if c.Offers(s) {
			return true
		}
	}
	return false
}
