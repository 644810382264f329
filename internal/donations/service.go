// Package donations schedules donation appointments and manages donation centers.
package donations

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"redblood/internal/geo"
	"redblood/internal/lifecycle"
	"redblood/internal/matching"
	"redblood/internal/metrics"
	"redblood/internal/store"
	"redblood/internal/utils"
	"redblood/pkg/types"

	"github.com/sirupsen/logrus"
)

// CenterCache holds center listings keyed by their store filter.
type CenterCache interface {
	Centers(ctx context.Context, key string) ([]*types.DonationCenter, bool)
	SetCenters(ctx context.Context, key string, centers []*types.DonationCenter)
	Invalidate(ctx context.Context)
}

type Options struct {
	DefaultRadiusKm float64
	DefaultLimit    int
	MaxLimit        int
	Now             func() time.Time
}

type Service struct {
	store   store.Store
	cache   CenterCache
	metrics *metrics.Metrics
	logger  logrus.FieldLogger
	opts    Options
}

// NewService builds the service. cache may be nil.
func NewService(st store.Store, cache CenterCache, m *metrics.Metrics, logger logrus.FieldLogger, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.DefaultLimit == 0 {
		opts.DefaultLimit = 20
	}
	if opts.MaxLimit == 0 {
		opts.MaxLimit = 100
	}
	return &Service{store: st, cache: cache, metrics: m, logger: logger, opts: opts}
}

// Centers lists centers offering any of the requested services, nearest first when a location is given.
func (s *Service) Centers(ctx context.Context, q types.CenterQuery) ([]matching.Match[*types.DonationCenter], error) {
	for _, t := range q.Services {
		if !t.Valid() {
			return nil, types.Errorf(types.KindValidation, "invalid service %q", t)
		}
	}

	var f matching.Filter
	if err := f.FromQuery(q.Geo(), s.opts.DefaultRadiusKm); err != nil {
		return nil, err
	}
	limit, err := matching.Limit(q.Limit, s.opts.DefaultLimit, s.opts.MaxLimit)
	if err != nil {
		return nil, err
	}
	f.Limit = limit

	filter := types.CenterFilter{Services: q.Services, ActiveOnly: q.Active == nil || *q.Active}
	candidates, err := s.loadCenters(ctx, filter)
	if err != nil {
		return nil, err
	}

	matches, err := matching.Centers(candidates, f)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveMatches("centers", len(matches))
	return matches, nil
}

func (s *Service) loadCenters(ctx context.Context, filter types.CenterFilter) ([]*types.DonationCenter, error) {
	key := cacheKey(filter)
	if s.cache != nil {
		if centers, ok := s.cache.Centers(ctx, key); ok {
			s.metrics.IncrementCacheLookup("hit")
			return centers, nil
		}
		s.metrics.IncrementCacheLookup("miss")
	}

	centers, err := s.store.Centers(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to load centers: %w", err)
	}

	if s.cache != nil {
		s.cache.SetCenters(ctx, key, centers)
	}
	return centers, nil
}

func cacheKey(filter types.CenterFilter) string {
	services := make([]string, len(filter.Services))
	for i, t := range filter.Services {
		services[i] = string(t)
	}
	sort.Strings(services)
	return fmt.Sprintf("active=%t:services=%s", filter.ActiveOnly, strings.Join(services, ","))
}

func (s *Service) Center(ctx context.Context, centerID string) (*types.DonationCenter, error) {
	return s.store.Center(ctx, centerID)
}

func validateCenter(c *types.DonationCenter) error {
	if strings.TrimSpace(c.Name) == "" {
		return types.NewError(types.KindValidation, "name is required")
	}
	if p, ok := c.Coordinates.Point(); ok {
		if err := geo.Validate(p.Latitude, p.Longitude); err != nil {
			return err
		}
	} else if c.Latitude != nil || c.Longitude != nil {
		return types.NewError(types.KindValidation, "latitude and longitude must be given together")
	}
	for _, svc := range c.Services {
		if !types.DonationType(svc).Valid() {
			return types.Errorf(types.KindValidation, "invalid service %q", svc)
		}
	}
	return nil
}

func (s *Service) CreateCenter(ctx context.Context, actor types.Actor, c *types.DonationCenter) (*types.DonationCenter, error) {
	if !actor.IsAdmin() {
		return nil, types.ErrUnauthorized
	}
	if err := validateCenter(c); err != nil {
		return nil, err
	}

	now := s.opts.Now()
	c.ID = ""
	c.CreatedAt, c.UpdatedAt = now, now
	if err := s.store.CreateCenter(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to create center: %w", err)
	}
	s.invalidate(ctx)

	s.logger.WithFields(logrus.Fields{"center_id": c.ID, "name": c.Name}).Info("donation center created")
	return c, nil
}

// UpdateCenter replaces a center's details, keeping its id and creation time.
func (s *Service) UpdateCenter(ctx context.Context, actor types.Actor, centerID string, c *types.DonationCenter) (*types.DonationCenter, error) {
	if !actor.IsAdmin() {
		return nil, types.ErrUnauthorized
	}
	if err := validateCenter(c); err != nil {
		return nil, err
	}

	err := s.store.RunInTx(ctx, func(q store.Queries) error {
		existing, err := q.Center(ctx, centerID)
		if err != nil {
			return err
		}
		c.ID = existing.ID
		c.CreatedAt = existing.CreatedAt
		c.UpdatedAt = s.opts.Now()
		return q.UpdateCenter(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return c, nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
}

// Schedule books an appointment at an active center that offers the donation type.
func (s *Service) Schedule(ctx context.Context, actor types.Actor, in types.ScheduleInput) (*types.Donation, error) {
	if actor.UserID == "" {
		return nil, types.ErrUnauthenticated
	}

	d, err := lifecycle.NewDonation(actor.UserID, in, s.opts.Now())
	if err != nil {
		return nil, err
	}

	center, err := s.store.Center(ctx, d.CenterID)
	if err != nil {
		return nil, err
	}
	if !center.Active {
		return nil, types.NewError(types.KindInvalidState, "donation center is not accepting appointments")
	}
	if !center.Offers(d.DonationType) {
		return nil, types.Errorf(types.KindValidation, "donation center does not offer %s", d.DonationType)
	}

	if err := s.store.CreateDonation(ctx, d); err != nil {
		return nil, fmt.Errorf("failed to schedule donation: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"donation_id": d.ID,
		"center_id":   d.CenterID,
		"user_id":     d.UserID,
	}).Info("donation scheduled")
	return d, nil
}

// Upcoming lists the user's scheduled appointments from now on, soonest first.
func (s *Service) Upcoming(ctx context.Context, userID string, limit int) ([]*types.Donation, error) {
	limit, err := matching.Limit(limit, s.opts.DefaultLimit, s.opts.MaxLimit)
	if err != nil {
		return nil, err
	}

	donations, err := s.store.Donations(ctx, types.DonationFilter{
		UserID:    userID,
		Status:    types.DonationStatusScheduled,
		From:      utils.TimePtr(s.opts.Now()),
		Ascending: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load donations: %w", err)
	}
	if len(donations) > limit {
		donations = donations[:limit]
	}
	return donations, nil
}

// History lists the user's donations, most recent appointment first unless order=asc.
func (s *Service) History(ctx context.Context, userID string, q types.DonationQuery) ([]*types.Donation, error) {
	if q.Status != "" && !q.Status.Valid() {
		return nil, types.Errorf(types.KindValidation, "invalid status %q", q.Status)
	}
	if q.DonationType != "" && !q.DonationType.Valid() {
		return nil, types.Errorf(types.KindValidation, "invalid donation type %q", q.DonationType)
	}
	if q.From != nil && q.To != nil && q.To.Before(*q.From) {
		return nil, types.NewError(types.KindValidation, "to must not be before from")
	}
	switch q.Order {
	case "", types.OrderAsc, types.OrderDesc:
	default:
		return nil, types.Errorf(types.KindValidation, "invalid order %q", q.Order)
	}

	limit, err := matching.Limit(q.Limit, s.opts.DefaultLimit, s.opts.MaxLimit)
	if err != nil {
		return nil, err
	}

	donations, err := s.store.Donations(ctx, types.DonationFilter{
		UserID:       userID,
		Status:       q.Status,
		DonationType: q.DonationType,
		From:         q.From,
		To:           q.To,
		Ascending:    q.Order == types.OrderAsc,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load donations: %w", err)
	}
	if len(donations) > limit {
		donations = donations[:limit]
	}
	return donations, nil
}

func (s *Service) Get(ctx context.Context, actor types.Actor, donationID string) (*types.Donation, error) {
	d, err := s.store.Donation(ctx, donationID)
	if err != nil {
		return nil, err
	}
	if !actor.CanManage(d.UserID) {
		return nil, types.ErrUnauthorized
	}
	return d, nil
}

func (s *Service) Reschedule(ctx context.Context, actor types.Actor, donationID string, at time.Time) (*types.Donation, error) {
	return s.modify(ctx, actor, donationID, false, func(q store.Queries, d *types.Donation, now time.Time) error {
		return lifecycle.Reschedule(d, at, now)
	})
}

func (s *Service) Cancel(ctx context.Context, actor types.Actor, donationID string) (*types.Donation, error) {
	return s.modify(ctx, actor, donationID, false, func(q store.Queries, d *types.Donation, now time.Time) error {
		if d.Status != types.DonationStatusScheduled {
			return types.Errorf(types.KindInvalidState, "only scheduled donations can be cancelled, donation is %s", d.Status)
		}
		return lifecycle.TransitionDonation(d, types.DonationStatusCancelled, now)
	})
}

// RecordOutcome closes an appointment. A completed donation moves the donor's
// lastDonationDate forward in the same transaction.
func (s *Service) RecordOutcome(ctx context.Context, actor types.Actor, donationID string, out types.DonationOutcome) (*types.Donation, error) {
	switch out.Status {
	case types.DonationStatusCompleted, types.DonationStatusNoShow, types.DonationStatusDeferred:
	default:
		return nil, types.Errorf(types.KindValidation, "outcome must be completed, no_show or deferred, got %q", out.Status)
	}
	if out.HemoglobinLevel != nil && *out.HemoglobinLevel <= 0 {
		return nil, types.NewError(types.KindValidation, "hemoglobinLevel must be positive")
	}

	d, err := s.modify(ctx, actor, donationID, true, func(q store.Queries, d *types.Donation, now time.Time) error {
		if err := lifecycle.TransitionDonation(d, out.Status, now); err != nil {
			return err
		}
		if out.HemoglobinLevel != nil {
			d.HemoglobinLevel = out.HemoglobinLevel
		}
		if out.Notes != nil {
			d.Notes = *out.Notes
		}
		if d.Status != types.DonationStatusCompleted {
			return nil
		}

		donor, err := q.User(ctx, d.UserID)
		if err != nil {
			return err
		}
		// The appointment date is the donation date, even when the outcome is recorded later.
		donor.LastDonationDate = utils.TimePtr(utils.LaterOf(donor.LastDonationDate, d.AppointmentDate))
		donor.UpdatedAt = now
		return q.UpdateUser(ctx, donor)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"donation_id": d.ID,
		"status":      d.Status,
	}).Info("donation outcome recorded")
	return d, nil
}

// modify loads a donation in a transaction, checks access and persists fn's changes.
func (s *Service) modify(ctx context.Context, actor types.Actor, donationID string, adminOnly bool, fn func(store.Queries, *types.Donation, time.Time) error) (*types.Donation, error) {
	var result *types.Donation
	err := s.store.RunInTx(ctx, func(q store.Queries) error {
		d, err := q.Donation(ctx, donationID)
		if err != nil {
			return err
		}
		if adminOnly && !actor.IsAdmin() {
			return types.ErrUnauthorized
		}
		if !actor.CanManage(d.UserID) {
			return types.ErrUnauthorized
		}
		if err := fn(q, d, s.opts.Now()); err != nil {
			return err
		}
		if err := q.UpdateDonation(ctx, d); err != nil {
			return err
		}
		result = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
