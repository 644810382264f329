// Package requests creates, searches and moves blood requests through their lifecycle.
package requests

import (
	"context"
	"fmt"
	"time"

	"redblood/internal/lifecycle"
	"redblood/internal/matching"
	"redblood/internal/metrics"
	"redblood/internal/notify"
	"redblood/internal/store"
	"redblood/pkg/types"

	"github.com/sirupsen/logrus"
)

type Options struct {
	DefaultRadiusKm float64
	DefaultLimit    int
	MaxLimit        int
	Now             func() time.Time
}

type Service struct {
	store   store.Store
	events  *notify.Emitter
	metrics *metrics.Metrics
	logger  logrus.FieldLogger
	opts    Options
}

func NewService(st store.Store, events *notify.Emitter, m *metrics.Metrics, logger logrus.FieldLogger, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.DefaultLimit == 0 {
		opts.DefaultLimit = 20
	}
	if opts.MaxLimit == 0 {
		opts.MaxLimit = 100
	}
	return &Service{store: st, events: events, metrics: m, logger: logger, opts: opts}
}

// Detail is a request together with the responses it has collected.
type Detail struct {
	*types.BloodRequest
	ResponseDetails []*types.Response `json:"responseDetails"`
}

func (s *Service) Create(ctx context.Context, actor types.Actor, in types.CreateRequestInput) (*types.BloodRequest, error) {
	if actor.UserID == "" {
		return nil, types.ErrUnauthenticated
	}

	r, err := lifecycle.NewRequest(actor.UserID, in, s.opts.Now())
	if err != nil {
		return nil, err
	}

	if err := s.store.CreateRequest(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	s.metrics.IncrementTransition(string(r.Status))
	if r.Status == types.RequestStatusActive {
		s.events.Emit(ctx, notify.RequestCreated(r))
	}

	s.logger.WithFields(logrus.Fields{
		"request_id": r.ID,
		"blood_type": r.BloodType,
		"urgency":    r.Urgency,
	}).Info("blood request created")

	return r, nil
}

// Get returns a request, expiring it first when its deadline has passed.
func (s *Service) Get(ctx context.Context, requestID string) (*types.BloodRequest, error) {
	r, err := s.store.Request(ctx, requestID)
	if err != nil {
		return nil, err
	}
	s.expireDue(ctx, []*types.BloodRequest{r})
	return r, nil
}

// Detail returns a request with its responses. Callers who cannot manage the request only see their own response.
func (s *Service) Detail(ctx context.Context, actor types.Actor, requestID string) (*Detail, error) {
	r, err := s.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}

	filter := types.ResponseFilter{RequestID: r.ID}
	if !actor.CanManage(r.UserID) {
		filter.UserID = actor.UserID
	}
	responses, err := s.store.Responses(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to load responses: %w", err)
	}

	return &Detail{BloodRequest: r, ResponseDetails: responses}, nil
}

// Search lists requests matching q. Without a status filter only active requests are returned.
func (s *Service) Search(ctx context.Context, q types.RequestQuery) ([]matching.Match[*types.BloodRequest], error) {
	f, err := s.filter(q)
	if err != nil {
		return nil, err
	}

	stored := types.RequestFilter{BloodTypes: f.BloodTypeIn, Urgency: f.Urgency}
	if f.BloodType != "" {
		stored.BloodTypes = []types.BloodType{f.BloodType}
	}
	// Overdue requests are still stored as active until something reads them.
	if f.Status != "" && f.Status != types.RequestStatusExpired {
		stored.Status = f.Status
	}

	candidates, err := s.store.Requests(ctx, stored)
	if err != nil {
		return nil, fmt.Errorf("failed to load requests: %w", err)
	}
	s.expireDue(ctx, candidates)

	matches, err := matching.Requests(candidates, f)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveMatches("requests", len(matches))
	return matches, nil
}

// Nearby is Search around a required location, nearest first unless another order is asked for.
// A bloodType here is the donor's own type, so it selects the requests that donor can serve.
func (s *Service) Nearby(ctx context.Context, q types.RequestQuery) ([]matching.Match[*types.BloodRequest], error) {
	if q.Latitude == nil || q.Longitude == nil {
		return nil, types.NewError(types.KindValidation, "latitude and longitude are required")
	}
	if q.BloodType != "" && q.CompatibleWith == "" {
		q.CompatibleWith, q.BloodType = q.BloodType, ""
	}
	if q.SortBy == "" {
		q.SortBy = types.SortByDistance
		if q.Order == "" {
			q.Order = types.OrderAsc
		}
	}
	return s.Search(ctx, q)
}

func (s *Service) filter(q types.RequestQuery) (matching.Filter, error) {
	f := matching.Filter{
		BloodType: q.BloodType,
		Status:    q.Status,
		Urgency:   q.Urgency,
		SortBy:    q.SortBy,
		Order:     q.Order,
	}

	if err := f.FromQuery(q.Geo(), s.opts.DefaultRadiusKm); err != nil {
		return f, err
	}
	if q.CompatibleWith != "" {
		if err := f.ServableBy(q.CompatibleWith); err != nil {
			return f, err
		}
	}

	limit, err := matching.Limit(q.Limit, s.opts.DefaultLimit, s.opts.MaxLimit)
	if err != nil {
		return f, err
	}
	f.Limit = limit
	return f, nil
}

// ByUser lists the requests an owner created, newest first. An empty status lists all of them.
func (s *Service) ByUser(ctx context.Context, userID string, status types.RequestStatus) ([]*types.BloodRequest, error) {
	if status != "" && !status.Valid() {
		return nil, types.Errorf(types.KindValidation, "invalid status %q", status)
	}

	all, err := s.store.Requests(ctx, types.RequestFilter{UserID: userID})
	if err != nil {
		return nil, fmt.Errorf("failed to load requests: %w", err)
	}
	s.expireDue(ctx, all)

	out := make([]*types.BloodRequest, 0, len(all))
	for _, r := range all {
		if status == "" || r.Status == status {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Service) Update(ctx context.Context, actor types.Actor, requestID string, u types.RequestUpdate) (*types.BloodRequest, error) {
	var updated, expired *types.BloodRequest
	err := s.store.RunInTx(ctx, func(q store.Queries) error {
		r, err := q.LockRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if !actor.CanManage(r.UserID) {
			return types.ErrUnauthorized
		}

		now := s.opts.Now()
		if lifecycle.ExpireIfDue(r, now) {
			expired = r.Clone()
			return types.NewError(types.KindInvalidState, "request has expired")
		}
		if err := lifecycle.Update(r, u, now); err != nil {
			return err
		}
		if err := q.UpdateRequest(ctx, r); err != nil {
			return err
		}
		updated = r
		return nil
	})
	if expired != nil {
		s.persistExpiry(ctx, expired)
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) Activate(ctx context.Context, actor types.Actor, requestID string) (*types.BloodRequest, error) {
	r, prev, err := s.transition(ctx, actor, requestID, func(r *types.BloodRequest, now time.Time) error {
		return lifecycle.Activate(r, now)
	})
	if err != nil {
		return nil, err
	}
	s.events.Emit(ctx, notify.RequestStatusChanged(r, prev))
	s.events.Emit(ctx, notify.RequestCreated(r))
	return r, nil
}

func (s *Service) Cancel(ctx context.Context, actor types.Actor, requestID string) (*types.BloodRequest, error) {
	r, prev, err := s.transition(ctx, actor, requestID, func(r *types.BloodRequest, now time.Time) error {
		return lifecycle.Cancel(r, now)
	})
	if err != nil {
		return nil, err
	}
	s.events.Emit(ctx, notify.RequestStatusChanged(r, prev))
	return r, nil
}

// Fulfill closes a request. fulfilledBy defaults to the acting user.
func (s *Service) Fulfill(ctx context.Context, actor types.Actor, requestID, fulfilledBy string) (*types.BloodRequest, error) {
	if fulfilledBy == "" {
		fulfilledBy = actor.UserID
	}
	r, prev, err := s.transition(ctx, actor, requestID, func(r *types.BloodRequest, now time.Time) error {
		return lifecycle.Fulfill(r, fulfilledBy, now)
	})
	if err != nil {
		return nil, err
	}
	s.events.Emit(ctx, notify.RequestStatusChanged(r, prev))
	return r, nil
}

// transition locks the request, checks ownership and applies move. An overdue request
// is expired and committed first so the move is judged against its real state.
func (s *Service) transition(ctx context.Context, actor types.Actor, requestID string, move func(*types.BloodRequest, time.Time) error) (*types.BloodRequest, types.RequestStatus, error) {
	var (
		result  *types.BloodRequest
		prev    types.RequestStatus
		expired *types.BloodRequest
	)

	err := s.store.RunInTx(ctx, func(q store.Queries) error {
		r, err := q.LockRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if !actor.CanManage(r.UserID) {
			return types.ErrUnauthorized
		}

		now := s.opts.Now()
		if lifecycle.ExpireIfDue(r, now) {
			if err := q.UpdateRequest(ctx, r); err != nil {
				return err
			}
			expired = r.Clone()
		}

		prev = r.Status
		if err := move(r, now); err != nil {
			return err
		}
		if err := q.UpdateRequest(ctx, r); err != nil {
			return err
		}
		result = r
		return nil
	})

	// An expired write is kept even when the requested move was refused.
	if err != nil && expired != nil {
		s.persistExpiry(ctx, expired)
	}
	if err != nil {
		return nil, "", err
	}

	if expired != nil {
		s.events.Emit(ctx, notify.RequestStatusChanged(expired, types.RequestStatusActive))
		s.metrics.IncrementTransition(string(types.RequestStatusExpired))
	}
	s.metrics.IncrementTransition(string(result.Status))
	s.logger.WithFields(logrus.Fields{
		"request_id": result.ID,
		"from":       prev,
		"to":         result.Status,
	}).Info("blood request transitioned")

	return result, prev, nil
}

// Delete removes a request and its responses.
func (s *Service) Delete(ctx context.Context, actor types.Actor, requestID string) error {
	return s.store.RunInTx(ctx, func(q store.Queries) error {
		r, err := q.LockRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if !actor.CanManage(r.UserID) {
			return types.ErrUnauthorized
		}
		if err := q.DeleteResponses(ctx, types.ResponseFilter{RequestID: r.ID}); err != nil {
			return err
		}
		return q.DeleteRequest(ctx, r.ID)
	})
}

// expireDue moves overdue active requests to expired in place and persists each change.
func (s *Service) expireDue(ctx context.Context, requests []*types.BloodRequest) {
	now := s.opts.Now()
	for _, r := range requests {
		if r.Status != types.RequestStatusActive || !now.After(r.ExpiresAt) {
			continue
		}

		var changed bool
		err := s.store.RunInTx(ctx, func(q store.Queries) error {
			locked, err := q.LockRequest(ctx, r.ID)
			if err != nil {
				return err
			}
			changed = lifecycle.ExpireIfDue(locked, now)
			if changed {
				if err := q.UpdateRequest(ctx, locked); err != nil {
					return err
				}
			}
			*r = *locked
			return nil
		})
		if err != nil {
			s.logger.WithError(err).WithField("request_id", r.ID).Warn("failed to persist request expiry")
			lifecycle.ExpireIfDue(r, now)
			continue
		}
		if changed {
			s.metrics.IncrementTransition(string(types.RequestStatusExpired))
			s.events.Emit(ctx, notify.RequestStatusChanged(r, types.RequestStatusActive))
		}
	}
}

func (s *Service) persistExpiry(ctx context.Context, r *types.BloodRequest) {
	s.expireDue(ctx, []*types.BloodRequest{{ID: r.ID, Status: types.RequestStatusActive, ExpiresAt: r.ExpiresAt}})
}
