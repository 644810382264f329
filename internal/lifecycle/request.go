// Package lifecycle holds the state machines for blood requests, responses and donations.
package lifecycle

import (
	"strings"
	"time"

	"redblood/internal/geo"
	"redblood/pkg/types"
)

// RequestTTL is how long a request stays open when no earlier required-by date is set.
const RequestTTL = 7 * 24 * time.Hour

// MaxUnits caps how many units a single request may ask for.
const MaxUnits = 100

// ExpiresAt is the earlier of requiredBy and createdAt plus RequestTTL.
func ExpiresAt(createdAt time.Time, requiredBy *time.Time) time.Time {
	expires := createdAt.Add(RequestTTL)
	if requiredBy != nil && requiredBy.Before(expires) {
		return *requiredBy
	}
	return expires
}

var requestTransitions = map[types.RequestStatus][]types.RequestStatus{
	types.RequestStatusPending: {types.RequestStatusActive, types.RequestStatusCancelled},
	types.RequestStatusActive:  {types.RequestStatusFulfilled, types.RequestStatusCancelled, types.RequestStatusExpired},
}

func CanTransition(from, to types.RequestStatus) bool {
	for _, s := range requestTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func invalidTransition(from, to types.RequestStatus) error {
	return types.Errorf(types.KindInvalidTransition, "cannot move request from %s to %s", from, to)
}

// NewRequest validates input and builds a request. Requests are active immediately unless created as drafts.
func NewRequest(owner string, in types.CreateRequestInput, now time.Time) (*types.BloodRequest, error) {
	if err := validateCreate(in, now); err != nil {
		return nil, err
	}

	units := in.Units
	if units == 0 {
		units = 1
	}

	urgency := in.Urgency
	if urgency == "" {
		urgency = types.UrgencyMedium
	}

	r := &types.BloodRequest{
		UserID:      owner,
		PatientName: strings.TrimSpace(in.PatientName),
		BloodType:   in.BloodType,
		Units:       units,
		Hospital:    strings.TrimSpace(in.Hospital),
		Urgency:     urgency,
		Notes:       in.Notes,
		Status:      types.RequestStatusActive,
		RequiredBy:  in.RequiredBy,
		ResponseIDs: []string{},
		ContactInfo: in.Contact,
		Address:     in.Address,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.Draft {
		r.Status = types.RequestStatusPending
	}
	if in.Location != nil {
		r.Coordinates = types.CoordinatesOf(*in.Location)
	}
	r.ExpiresAt = ExpiresAt(r.CreatedAt, r.RequiredBy)

	return r, nil
}

func validateCreate(in types.CreateRequestInput, now time.Time) error {
	if strings.TrimSpace(in.PatientName) == "" {
		return types.NewError(types.KindValidation, "patientName is required")
	}
	if strings.TrimSpace(in.Hospital) == "" {
		return types.NewError(types.KindValidation, "hospital is required")
	}
	if in.BloodType == "" {
		return types.NewError(types.KindValidation, "bloodType is required")
	}
	if !in.BloodType.Valid() {
		return types.Errorf(types.KindInvalidBloodType, "invalid blood type %q", in.BloodType)
	}
	if in.Units < 0 || in.Units > MaxUnits {
		return types.Errorf(types.KindValidation, "units must be between 1 and %d", MaxUnits)
	}
	if in.Urgency != "" && !in.Urgency.Valid() {
		return types.Errorf(types.KindValidation, "invalid urgency %q", in.Urgency)
	}
	if in.RequiredBy != nil && !in.RequiredBy.After(now) {
		return types.NewError(types.KindValidation, "requiredBy must be in the future")
	}
	if in.Location != nil {
		if err := geo.Validate(in.Location.Latitude, in.Location.Longitude); err != nil {
			return err
		}
	}
	return nil
}

func Activate(r *types.BloodRequest, now time.Time) error {
	if r.Status != types.RequestStatusPending {
		return invalidTransition(r.Status, types.RequestStatusActive)
	}
	r.Status = types.RequestStatusActive
	r.UpdatedAt = now
	return nil
}

func Fulfill(r *types.BloodRequest, fulfilledBy string, now time.Time) error {
	if r.Status != types.RequestStatusActive {
		return invalidTransition(r.Status, types.RequestStatusFulfilled)
	}
	if fulfilledBy == "" {
		return types.NewError(types.KindValidation, "fulfilledBy is required")
	}
	r.Status = types.RequestStatusFulfilled
	r.FulfilledBy = &fulfilledBy
	r.FulfilledAt = &now
	r.UpdatedAt = now
	return nil
}

func Cancel(r *types.BloodRequest, now time.Time) error {
	if r.Status.Terminal() {
		return types.Errorf(types.KindInvalidState, "request is already %s", r.Status)
	}
	if !CanTransition(r.Status, types.RequestStatusCancelled) {
		return invalidTransition(r.Status, types.RequestStatusCancelled)
	}
	r.Status = types.RequestStatusCancelled
	r.UpdatedAt = now
	return nil
}

func Expire(r *types.BloodRequest, now time.Time) error {
	if r.Status != types.RequestStatusActive {
		return invalidTransition(r.Status, types.RequestStatusExpired)
	}
	r.Status = types.RequestStatusExpired
	r.UpdatedAt = now
	return nil
}

// ExpireIfDue expires an active request whose expiry has passed and reports whether it did.
func ExpireIfDue(r *types.BloodRequest, now time.Time) bool {
	if r.Status != types.RequestStatusActive || !now.After(r.ExpiresAt) {
		return false
	}
	return Expire(r, now) == nil
}

// Update applies a patch to an active request and recomputes expiresAt when requiredBy changes.
func Update(r *types.BloodRequest, u types.RequestUpdate, now time.Time) error {
	if r.Status != types.RequestStatusActive {
		return types.Errorf(types.KindInvalidState, "only active requests can be updated, request is %s", r.Status)
	}

	next := r.Clone()

	if u.PatientName != nil {
		if strings.TrimSpace(*u.PatientName) == "" {
			return types.NewError(types.KindValidation, "patientName cannot be empty")
		}
		next.PatientName = strings.TrimSpace(*u.PatientName)
	}
	if u.Units != nil {
		if *u.Units < 1 || *u.Units > MaxUnits {
			return types.Errorf(types.KindValidation, "units must be between 1 and %d", MaxUnits)
		}
		next.Units = *u.Units
	}
	if u.Hospital != nil {
		if strings.TrimSpace(*u.Hospital) == "" {
			return types.NewError(types.KindValidation, "hospital cannot be empty")
		}
		next.Hospital = strings.TrimSpace(*u.Hospital)
	}
	if u.Urgency != nil {
		if !u.Urgency.Valid() {
			return types.Errorf(types.KindValidation, "invalid urgency %q", *u.Urgency)
		}
		next.Urgency = *u.Urgency
	}
	if u.Notes != nil {
		next.Notes = *u.Notes
	}
	if u.Contact != nil {
		next.ContactInfo = *u.Contact
	}
	if u.Address != nil {
		next.Address = *u.Address
	}
	if u.Location != nil {
		if err := geo.Validate(u.Location.Latitude, u.Location.Longitude); err != nil {
			return err
		}
		next.Coordinates = types.CoordinatesOf(*u.Location)
	}
	if u.RequiredBy != nil {
		if !u.RequiredBy.After(now) {
			return types.NewError(types.KindValidation, "requiredBy must be in the future")
		}
		next.RequiredBy = u.RequiredBy
		next.ExpiresAt = ExpiresAt(next.CreatedAt, next.RequiredBy)
	}

	next.UpdatedAt = now
	*r = *next
	return nil
}
