// Package matching filters, geo-restricts and ranks candidate requests, donors and centers.
package matching

import (
	"sort"
	"time"

	"redblood/internal/compat"
	"redblood/internal/geo"
	"redblood/pkg/types"
)

// Filter describes one query. Zero values mean "no constraint".
type Filter struct {
	// BloodType is an exact match on the candidate's blood type.
	BloodType types.BloodType
	// BloodTypeIn is a set-membership match, used for compatibility searches.
	BloodTypeIn []types.BloodType
	Status      types.RequestStatus
	Urgency     types.Urgency
	Origin      *types.GeoPoint
	RadiusKm    float64
	SortBy      types.SortKey
	Order       types.SortOrder
	Limit       int
}

// Match is a candidate that passed the filter, with its distance from the origin when one was given.
type Match[T any] struct {
	Item     T
	Distance *float64
}

type view struct {
	bloodType types.BloodType
	status    types.RequestStatus
	urgency   types.Urgency
	coords    types.Coordinates
	createdAt time.Time
}

// FromQuery validates a decoded geo query and applies it to f.
// The radius falls back to defaultRadiusKm when coordinates are given without one.
func (f *Filter) FromQuery(q types.GeoQuery, defaultRadiusKm float64) error {
	if q.Latitude == nil && q.Longitude == nil {
		if q.RadiusKm != nil {
			return types.NewError(types.KindValidation, "radius requires latitude and longitude")
		}
		return nil
	}
	if q.Latitude == nil || q.Longitude == nil {
		return types.NewError(types.KindValidation, "latitude and longitude must be given together")
	}

	p, err := geo.Point(*q.Latitude, *q.Longitude)
	if err != nil {
		return err
	}
	f.Origin = &p

	f.RadiusKm = defaultRadiusKm
	if q.RadiusKm != nil {
		f.RadiusKm = *q.RadiusKm
	}
	return nil
}

// CompatibleDonorsFor restricts candidates to donors who can give to recipient.
func (f *Filter) CompatibleDonorsFor(recipient types.BloodType) error {
	donors, err := compat.DonorsFor(recipient)
	if err != nil {
		return err
	}
	f.BloodTypeIn = donors
	return nil
}

// ServableBy restricts candidate requests to those a donor of the given type can serve.
func (f *Filter) ServableBy(donor types.BloodType) error {
	recipients, err := compat.RecipientsFor(donor)
	if err != nil {
		return err
	}
	f.BloodTypeIn = recipients
	return nil
}

func (f Filter) validate() error {
	if f.BloodType != "" && !f.BloodType.Valid() {
		return types.Errorf(types.KindInvalidBloodType, "invalid blood type %q", f.BloodType)
	}
	if f.Status != "" && !f.Status.Valid() {
		return types.Errorf(types.KindValidation, "invalid status %q", f.Status)
	}
	if f.Urgency != "" && !f.Urgency.Valid() {
		return types.Errorf(types.KindValidation, "invalid urgency %q", f.Urgency)
	}
	if f.RadiusKm < 0 {
		return types.NewError(types.KindValidation, "radius must not be negative")
	}
	if f.Origin != nil {
		if err := geo.Validate(f.Origin.Latitude, f.Origin.Longitude); err != nil {
			return err
		}
	}
	switch f.SortBy {
	case "", types.SortByCreatedAt, types.SortByUrgency:
	case types.SortByDistance:
		if f.Origin == nil || f.RadiusKm <= 0 {
			return types.NewError(types.KindValidation, "sorting by distance requires a location and radius")
		}
	default:
		return types.Errorf(types.KindValidation, "invalid sortBy %q", f.SortBy)
	}
	switch f.Order {
	case "", types.OrderAsc, types.OrderDesc:
	default:
		return types.Errorf(types.KindValidation, "invalid order %q", f.Order)
	}
	if f.Limit < 0 {
		return types.NewError(types.KindValidation, "limit must not be negative")
	}
	return nil
}

// run filters every candidate before sorting, and truncates only after sorting.
func run[T any](items []T, f Filter, see func(T) view) ([]Match[T], error) {
	if err := f.validate(); err != nil {
		return nil, err
	}

	var allowed map[types.BloodType]bool
	if f.BloodTypeIn != nil {
		allowed = make(map[types.BloodType]bool, len(f.BloodTypeIn))
		for _, b := range f.BloodTypeIn {
			allowed[b] = true
		}
	}

	type ranked struct {
		match     Match[T]
		view      view
		distance  float64
		hasCoords bool
	}

	out := make([]ranked, 0, len(items))
	for _, item := range items {
		v := see(item)

		if f.BloodType != "" && v.bloodType != f.BloodType {
			continue
		}
		if allowed != nil && !allowed[v.bloodType] {
			continue
		}
		if f.Status != "" && v.status != f.Status {
			continue
		}
		if f.Urgency != "" && v.urgency != f.Urgency {
			continue
		}

		r := ranked{match: Match[T]{Item: item}, view: v}
		if f.Origin != nil {
			if p, ok := v.coords.Point(); ok {
				d, err := geo.Distance(*f.Origin, p)
				if err == nil {
					r.distance = d
					r.hasCoords = true
					r.match.Distance = &d
				}
			}
			if f.RadiusKm > 0 && (!r.hasCoords || r.distance > f.RadiusKm) {
				continue
			}
		}

		out = append(out, r)
	}

	desc := f.Order != types.OrderAsc
	var less func(a, b ranked) bool
	switch f.SortBy {
	case types.SortByDistance:
		less = func(a, b ranked) bool { return a.distance < b.distance }
		if f.Order == types.OrderDesc {
			less = func(a, b ranked) bool { return a.distance > b.distance }
		}
	case types.SortByUrgency:
		less = func(a, b ranked) bool { return a.view.urgency.Rank() < b.view.urgency.Rank() }
		if f.Order == types.OrderDesc {
			less = func(a, b ranked) bool { return a.view.urgency.Rank() > b.view.urgency.Rank() }
		}
	default:
		less = func(a, b ranked) bool { return a.view.createdAt.Before(b.view.createdAt) }
		if desc {
			less = func(a, b ranked) bool { return a.view.createdAt.After(b.view.createdAt) }
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })

	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}

	matches := make([]Match[T], len(out))
	for i, r := range out {
		matches[i] = r.match
	}
	return matches, nil
}

// Requests ranks blood requests. An empty Status filter means active requests only.
func Requests(candidates []*types.BloodRequest, f Filter) ([]Match[*types.BloodRequest], error) {
	if f.Status == "" {
		f.Status = types.RequestStatusActive
	}
	return run(candidates, f, func(r *types.BloodRequest) view {
		return view{
			bloodType: r.BloodType,
			status:    r.Status,
			urgency:   r.Urgency,
			coords:    r.Coordinates,
			createdAt: r.CreatedAt,
		}
	})
}

// Donors ranks donor profiles. Status and urgency filters do not apply to users.
func Donors(candidates []*types.User, f Filter) ([]Match[*types.User], error) {
	f.Status, f.Urgency = "", ""
	if f.SortBy == types.SortByUrgency {
		return nil, types.NewError(types.KindValidation, "donors cannot be sorted by urgency")
	}
	return run(candidates, f, func(u *types.User) view {
		return view{
			bloodType: u.BloodType,
			coords:    u.Coordinates,
			createdAt: u.CreatedAt,
		}
	})
}

// Centers ranks donation centers by distance when an origin is given.
func Centers(candidates []*types.DonationCenter, f Filter) ([]Match[*types.DonationCenter], error) {
	f.BloodType, f.BloodTypeIn, f.Status, f.Urgency = "", nil, "", ""
	if f.SortBy == "" && f.Origin != nil && f.RadiusKm > 0 {
		f.SortBy = types.SortByDistance
		if f.Order == "" {
			f.Order = types.OrderAsc
		}
	}
	return run(candidates, f, func(c *types.DonationCenter) view {
		return view{coords: c.Coordinates, createdAt: c.CreatedAt}
	})
}

// Items drops the distance annotations.
func Items[T any](matches []Match[T]) []T {
	out := make([]T, len(matches))
	for i, m := range matches {
		out[i] = m.Item
	}
	return out
}

// Limit resolves a requested page size against the configured default and ceiling.
func Limit(requested, def, max int) (int, error) {
	if requested < 0 {
		return 0, types.NewError(types.KindValidation, "limit must not be negative")
	}
	if requested == 0 {
		requested = def
	}
	if max > 0 && requested > max {
		requested = max
	}
	return requested, nil
}
