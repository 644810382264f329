// Package eligibility applies blood donation eligibility rules to a donor profile.
package eligibility

import (
	"fmt"
	"time"

	"redblood/pkg/types"
)

const (
	MinAge                   = 18
	MaxAge                   = 65
	MinWeightKg              = 50.0
	MinHemoglobinMale        = 13.5
	MinHemoglobinFemale      = 12.5
	DonationIntervalDays     = 56
	postpartumDeferralWeeks  = 6
	reasonIllness            = "You cannot donate if you have been ill recently"
	reasonMedications        = "Some medications may disqualify you from donating blood"
	reasonTravel             = "Recent travel to certain areas may disqualify you from donating blood"
	reasonMinAge             = "You must be at least 18 years old to donate blood"
	reasonMaxAge             = "The maximum age for blood donation is 65 years"
	reasonWeight             = "You must weigh at least 50 kg to donate blood"
	reasonHemoglobinTemplate = "Your hemoglobin level must be at least %v g/dL to donate blood"
	reasonIntervalTemplate   = "You must wait at least %d days between whole blood donations. You can donate again in %d days."
)

var reasonPregnancy = fmt.Sprintf("You cannot donate blood during pregnancy or for %d weeks after giving birth", postpartumDeferralWeeks)

// Profile is the donor snapshot rules are evaluated against.
// Nil pointers mean the value is unknown and its rule is skipped.
type Profile struct {
	DateOfBirth      *time.Time   `json:"dateOfBirth"`
	WeightKg         *float64     `json:"weight"`
	Hemoglobin       *float64     `json:"hemoglobin"`
	Gender           types.Gender `json:"gender"`
	LastDonationDate *time.Time   `json:"lastDonationDate"`
	RecentIllness    bool         `json:"recentIllness"`
	Medications      []string     `json:"medications"`
	RecentTravel     bool         `json:"recentTravel"`
	Pregnant         bool         `json:"pregnant"`
}

type Result struct {
	Eligible         bool       `json:"isEligible"`
	Reasons          []string   `json:"reasons"`
	NextEligibleDate *time.Time `json:"nextEligibleDate"`
	Age              *int       `json:"age,omitempty"`
	DaysSinceLast    *int       `json:"daysSinceLastDonation,omitempty"`
}

// Evaluate runs every rule independently; a profile may fail several at once.
func Evaluate(p Profile, now time.Time) Result {
	res := Result{Reasons: make([]string, 0)}

	if p.DateOfBirth != nil {
		age := Age(*p.DateOfBirth, now)
		res.Age = &age
		if age < MinAge {
			res.Reasons = append(res.Reasons, reasonMinAge)
		}
		if age > MaxAge {
			res.Reasons = append(res.Reasons, reasonMaxAge)
		}
	}

	if p.WeightKg != nil && *p.WeightKg < MinWeightKg {
		res.Reasons = append(res.Reasons, reasonWeight)
	}

	if p.Hemoglobin != nil {
		threshold := MinHemoglobin(p.Gender)
		if *p.Hemoglobin < threshold {
			res.Reasons = append(res.Reasons, fmt.Sprintf(reasonHemoglobinTemplate, threshold))
		}
	}

	if p.LastDonationDate != nil {
		days := DaysSince(*p.LastDonationDate, now)
		res.DaysSinceLast = &days
		if days < DonationIntervalDays {
			next := NextEligibleDate(*p.LastDonationDate)
			res.NextEligibleDate = &next
			res.Reasons = append(res.Reasons, fmt.Sprintf(reasonIntervalTemplate, DonationIntervalDays, DonationIntervalDays-days))
		}
	}

	if p.RecentIllness {
		res.Reasons = append(res.Reasons, reasonIllness)
	}
	// any listed medication disqualifies; there is no allowlist
	if len(p.Medications) > 0 {
		res.Reasons = append(res.Reasons, reasonMedications)
	}
	if p.RecentTravel {
		res.Reasons = append(res.Reasons, reasonTravel)
	}
	if p.Pregnant {
		res.Reasons = append(res.Reasons, reasonPregnancy)
	}

	res.Eligible = len(res.Reasons) == 0
	return res
}

// MinHemoglobin returns the threshold in g/dL. Unspecified gender uses the female threshold.
func MinHemoglobin(g types.Gender) float64 {
	if g == types.GenderMale {
		return MinHemoglobinMale
	}
	return MinHemoglobinFemale
}

// Age is the number of whole calendar years between dob and now.
func Age(dob, now time.Time) int {
	dob = dob.UTC()
	now = now.UTC()

	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return age
}

// DaysSince counts calendar days between t and now, both taken in UTC.
func DaysSince(t, now time.Time) int {
	return int(midnight(now).Sub(midnight(t)).Hours() / 24)
}

func NextEligibleDate(last time.Time) time.Time {
	return last.AddDate(0, 0, DonationIntervalDays)
}

// CanDonateOn reports whether last leaves enough of a gap before the given day.
func CanDonateOn(last *time.Time, day time.Time) bool {
	return last == nil || DaysSince(*last, day) >= DonationIntervalDays
}

func midnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// FromUser builds a profile from the stored user fields.
func FromUser(u *types.User) Profile {
	return Profile{
		DateOfBirth:      u.DateOfBirth,
		WeightKg:         u.WeightKg,
		Gender:           u.Gender,
		LastDonationDate: u.LastDonationDate,
	}
}

// Merge fills unknown values in p from the stored profile.
func (p Profile) Merge(stored Profile) Profile {
	if p.DateOfBirth == nil {
		p.DateOfBirth = stored.DateOfBirth
	}
	if p.WeightKg == nil {
		p.WeightKg = stored.WeightKg
	}
	if p.Gender == types.GenderUnspecified {
		p.Gender = stored.Gender
	}
	if p.LastDonationDate == nil {
		p.LastDonationDate = stored.LastDonationDate
	}
	return p
}

// Criteria is the published summary of the rules Evaluate applies.
type Criteria struct {
	MinAge                  int      `json:"minAge"`
	MaxAge                  int      `json:"maxAge"`
	MinWeightKg             float64  `json:"minWeight"`
	MinHemoglobinMale       float64  `json:"minHemoglobinMale"`
	MinHemoglobinFemale     float64  `json:"minHemoglobinFemale"`
	DonationIntervalDays    int      `json:"donationIntervalDays"`
	PostpartumDeferralWeeks int      `json:"postpartumDeferralWeeks"`
	Disqualifiers           []string `json:"disqualifiers"`
}

func Published() Criteria {
	return Criteria{
		MinAge:                  MinAge,
		MaxAge:                  MaxAge,
		MinWeightKg:             MinWeightKg,
		MinHemoglobinMale:       MinHemoglobinMale,
		MinHemoglobinFemale:     MinHemoglobinFemale,
		DonationIntervalDays:    DonationIntervalDays,
		PostpartumDeferralWeeks: postpartumDeferralWeeks,
		Disqualifiers:           []string{reasonIllness, reasonMedications, reasonTravel, reasonPregnancy},
	}
}
