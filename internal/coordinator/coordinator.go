// Package coordinator records donor responses to blood requests and settles them.
// Every operation that touches both a response and its request runs in one transaction.
package coordinator

import (
	"context"
	"fmt"
	"time"

	"redblood/internal/compat"
	"redblood/internal/lifecycle"
	"redblood/internal/metrics"
	"redblood/internal/notify"
	"redblood/internal/store"
	"redblood/pkg/types"

	"github.com/sirupsen/logrus"
)

// RequestReader loads a request, expiring it first when it is overdue.
type RequestReader interface {
	Get(ctx context.Context, requestID string) (*types.BloodRequest, error)
}

type Service struct {
	store    store.Store
	requests RequestReader
	events   *notify.Emitter
	metrics  *metrics.Metrics
	logger   logrus.FieldLogger
	now      func() time.Time
}

func NewService(st store.Store, requests RequestReader, events *notify.Emitter, m *metrics.Metrics, logger logrus.FieldLogger, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: st, requests: requests, events: events, metrics: m, logger: logger, now: now}
}

// Result is a settled response together with the request it belongs to.
type Result struct {
	Response *types.Response     `json:"response"`
	Request  *types.BloodRequest `json:"request"`
}

// Respond records a pending response from the acting donor. The request is re-read under
// lock so a request closed after the donor listed it is refused.
func (s *Service) Respond(ctx context.Context, actor types.Actor, requestID string, in types.RespondInput) (*Result, error) {
	if actor.UserID == "" {
		return nil, types.ErrUnauthenticated
	}
	if _, err := s.requests.Get(ctx, requestID); err != nil {
		return nil, err
	}

	now := s.now()
	if in.ScheduledDate != nil && !in.ScheduledDate.After(now) {
		return nil, types.NewError(types.KindValidation, "scheduledDate must be in the future")
	}

	var result Result
	err := s.store.RunInTx(ctx, func(q store.Queries) error {
		r, err := q.LockRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if !r.Open(now) {
			return types.Errorf(types.KindRequestNotActive, "request is %s and no longer accepts responses", r.Status)
		}
		if r.UserID == actor.UserID {
			return types.NewError(types.KindInvalidState, "cannot respond to your own request")
		}

		donor, err := q.User(ctx, actor.UserID)
		if err != nil {
			return err
		}
		if donor.BloodType != "" {
			ok, err := compat.IsCompatible(donor.BloodType, r.BloodType)
			if err != nil {
				return err
			}
			if !ok {
				return types.Errorf(types.KindIncompatibleBloodType,
					"blood type %s cannot donate to a %s request", donor.BloodType, r.BloodType)
			}
		}

		existing, err := q.Responses(ctx, types.ResponseFilter{RequestID: r.ID, UserID: actor.UserID})
		if err != nil {
			return err
		}
		for _, e := range existing {
			if e.Status == types.ResponseStatusPending || e.Status == types.ResponseStatusAccepted {
				return types.NewError(types.KindInvalidState, "you have already responded to this request")
			}
		}

		if in.ContactInfo == (types.ContactInfo{}) {
			in.ContactInfo = types.ContactInfo{Name: donor.FullName, Phone: donor.PhoneNumber, Email: donor.Email}
		}

		resp := lifecycle.NewResponse(r.ID, actor.UserID, in, now)
		if err := q.CreateResponse(ctx, resp); err != nil {
			return err
		}

		r.ResponseIDs = append(r.ResponseIDs, resp.ID)
		r.UpdatedAt = now
		if err := q.UpdateRequest(ctx, r); err != nil {
			return err
		}

		result = Result{Response: resp, Request: r}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementResponse(string(result.Response.Status))
	s.events.Emit(ctx, notify.ResponseCreated(result.Request, result.Response))
	s.logger.WithFields(logrus.Fields{
		"request_id":  result.Request.ID,
		"response_id": result.Response.ID,
		"user_id":     actor.UserID,
	}).Info("response recorded")

	return &result, nil
}

// UpdateResponse patches a response. Accepting and rejecting belong to the request owner,
// withdrawing and editing the message belong to the responder; admins may do either.
// Accepting fulfills the request in the same transaction.
func (s *Service) UpdateResponse(ctx context.Context, actor types.Actor, requestID, responseID string, u types.ResponseUpdate) (*Result, error) {
	if actor.UserID == "" {
		return nil, types.ErrUnauthenticated
	}
	if u.Status == types.ResponseStatusAccepted {
		if _, err := s.requests.Get(ctx, requestID); err != nil {
			return nil, err
		}
	}

	now := s.now()
	var (
		result     Result
		prevStatus types.ResponseStatus
		prevReq    types.RequestStatus
	)

	err := s.store.RunInTx(ctx, func(q store.Queries) error {
		r, err := q.LockRequest(ctx, requestID)
		if err != nil {
			return err
		}
		resp, err := q.Response(ctx, responseID)
		if err != nil {
			return err
		}
		if resp.RequestID != r.ID {
			return types.ErrResponseNotFound
		}

		isOwner := r.UserID == actor.UserID || actor.IsAdmin()
		isResponder := resp.UserID == actor.UserID || actor.IsAdmin()
		if !isOwner && !isResponder {
			return types.ErrUnauthorized
		}

		prevStatus, prevReq = resp.Status, r.Status

		if u.Message != nil || u.ScheduledDate != nil {
			if !isResponder {
				return types.ErrUnauthorized
			}
			if resp.Status != types.ResponseStatusPending {
				return types.Errorf(types.KindInvalidState, "response is already %s", resp.Status)
			}
			if u.ScheduledDate != nil && !u.ScheduledDate.After(now) {
				return types.NewError(types.KindValidation, "scheduledDate must be in the future")
			}
			if u.Message != nil {
				resp.Message = *u.Message
			}
			if u.ScheduledDate != nil {
				resp.ScheduledDate = u.ScheduledDate
			}
			resp.UpdatedAt = now
		}

		switch u.Status {
		case "":
		case types.ResponseStatusAccepted, types.ResponseStatusRejected:
			if !isOwner {
				return types.ErrUnauthorized
			}
		case types.ResponseStatusCancelled:
			if !isResponder {
				return types.ErrUnauthorized
			}
		default:
			return types.Errorf(types.KindValidation, "invalid response status %q", u.Status)
		}

		if u.Status != "" {
			if u.Status == types.ResponseStatusAccepted {
				if lifecycle.ExpireIfDue(r, now) || r.Status != types.RequestStatusActive {
					return types.Errorf(types.KindRequestNotActive, "request is %s and cannot be fulfilled", r.Status)
				}
			}
			if err := lifecycle.TransitionResponse(resp, u.Status, now); err != nil {
				return err
			}
			if u.Status == types.ResponseStatusAccepted {
				if err := lifecycle.Fulfill(r, resp.UserID, now); err != nil {
					return err
				}
				if err := q.UpdateRequest(ctx, r); err != nil {
					return err
				}
			}
		}

		if err := q.UpdateResponse(ctx, resp); err != nil {
			return err
		}

		result = Result{Response: resp, Request: r}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Response.Status != prevStatus {
		s.metrics.IncrementResponse(string(result.Response.Status))
		s.events.Emit(ctx, notify.ResponseUpdated(result.Request, result.Response, prevStatus))
	}
	if result.Request.Status != prevReq {
		s.metrics.IncrementTransition(string(result.Request.Status))
		s.events.Emit(ctx, notify.RequestStatusChanged(result.Request, prevReq))
	}

	s.logger.WithFields(logrus.Fields{
		"request_id":  result.Request.ID,
		"response_id": result.Response.ID,
		"status":      result.Response.Status,
	}).Info("response updated")

	return &result, nil
}

// AcceptResponse accepts one response and fulfills its request with the responder as fulfiller.
func (s *Service) AcceptResponse(ctx context.Context, actor types.Actor, requestID, responseID string) (*Result, error) {
	return s.UpdateResponse(ctx, actor, requestID, responseID, types.ResponseUpdate{Status: types.ResponseStatusAccepted})
}

// ForRequest lists a request's responses. The request owner and admins see all of them,
// anyone else sees only their own.
func (s *Service) ForRequest(ctx context.Context, actor types.Actor, requestID string) ([]*types.Response, error) {
	r, err := s.store.Request(ctx, requestID)
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
	return responses, nil
}

// ByUser lists the responses a donor has made, optionally only those in one status.
func (s *Service) ByUser(ctx context.Context, userID string, status types.ResponseStatus) ([]*types.Response, error) {
	if status != "" && !status.Valid() {
		return nil, types.Errorf(types.KindValidation, "invalid response status %q", status)
	}
	responses, err := s.store.Responses(ctx, types.ResponseFilter{UserID: userID, Status: status})
	if err != nil {
		return nil, fmt.Errorf("failed to load responses: %w", err)
	}
	return responses, nil
}
