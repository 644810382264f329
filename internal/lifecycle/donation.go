package lifecycle

import (
	"time"

	"redblood/pkg/types"
)

// A scheduled donation may be moved to any outcome; every outcome is final.
var donationTransitions = map[types.DonationStatus][]types.DonationStatus{
	types.DonationStatusScheduled: {
		types.DonationStatusCompleted,
		types.DonationStatusCancelled,
		types.DonationStatusNoShow,
		types.DonationStatusDeferred,
	},
}

func NewDonation(userID string, in types.ScheduleInput, now time.Time) (*types.Donation, error) {
	if in.CenterID == "" {
		return nil, types.NewError(types.KindValidation, "donationCenterId is required")
	}
	if in.AppointmentDate.IsZero() {
		return nil, types.NewError(types.KindValidation, "appointmentDate is required")
	}
	if !in.AppointmentDate.After(now) {
		return nil, types.NewError(types.KindValidation, "appointmentDate must be in the future")
	}

	donationType := in.DonationType
	if donationType == "" {
		donationType = types.DonationTypeWholeBlood
	}
	if !donationType.Valid() {
		return nil, types.Errorf(types.KindValidation, "invalid donation type %q", in.DonationType)
	}

	units := in.Units
	if units == 0 {
		units = 1
	}
	if units < 0 {
		return nil, types.NewError(types.KindValidation, "units must be a positive integer")
	}

	return &types.Donation{
		UserID:          userID,
		CenterID:        in.CenterID,
		AppointmentDate: in.AppointmentDate,
		DonationType:    donationType,
		Status:          types.DonationStatusScheduled,
		Units:           units,
		Notes:           in.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

func TransitionDonation(d *types.Donation, to types.DonationStatus, now time.Time) error {
	if !to.Valid() {
		return types.Errorf(types.KindValidation, "invalid donation status %q", to)
	}
	for _, s := range donationTransitions[d.Status] {
		if s != to {
			continue
		}
		d.Status = to
		d.UpdatedAt = now
		if to == types.DonationStatusCompleted {
			d.CompletedAt = &now
		}
		return nil
	}
	return types.Errorf(types.KindInvalidTransition, "cannot move donation from %s to %s", d.Status, to)
}

// Reschedule moves the appointment of a scheduled donation.
func Reschedule(d *types.Donation, at time.Time, now time.Time) error {
	if d.Status != types.DonationStatusScheduled {
		return types.Errorf(types.KindInvalidState, "only scheduled donations can be rescheduled, donation is %s", d.Status)
	}
	if !at.After(now) {
		return types.NewError(types.KindValidation, "appointmentDate must be in the future")
	}
	d.AppointmentDate = at
	d.UpdatedAt = now
	return nil
}
