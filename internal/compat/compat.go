// Package compat holds the ABO/Rh red cell compatibility chart.
package compat

import (
	"redblood/pkg/types"
)

var (
	aPos  = types.BloodTypeAPos
	aNeg  = types.BloodTypeANeg
	bPos  = types.BloodTypeBPos
	bNeg  = types.BloodTypeBNeg
	abPos = types.BloodTypeABPos
	abNeg = types.BloodTypeABNeg
	oPos  = types.BloodTypeOPos
	oNeg  = types.BloodTypeONeg
)

// donorsFor maps a recipient to the donor types it can receive from.
var donorsFor = map[types.BloodType][]types.BloodType{
	aPos:  {aPos, aNeg, oPos, oNeg},
	aNeg:  {aNeg, oNeg},
	bPos:  {bPos, bNeg, oPos, oNeg},
	bNeg:  {bNeg, oNeg},
	abPos: {aPos, aNeg, bPos, bNeg, abPos, abNeg, oPos, oNeg},
	abNeg: {aNeg, bNeg, abNeg, oNeg},
	oPos:  {oPos, oNeg},
	oNeg:  {oNeg},
}

// recipientsFor maps a donor to the recipient types it can give to.
// It must stay the exact inverse of donorsFor.
var recipientsFor = map[types.BloodType][]types.BloodType{
	aPos:  {aPos, abPos},
	aNeg:  {aPos, aNeg, abPos, abNeg},
	bPos:  {bPos, abPos},
	bNeg:  {bPos, bNeg, abPos, abNeg},
	abPos: {abPos},
	abNeg: {abPos, abNeg},
	oPos:  {aPos, bPos, abPos, oPos},
	oNeg:  {aPos, aNeg, bPos, bNeg, abPos, abNeg, oPos, oNeg},
}

// DonorsFor returns the donor types a recipient can safely receive from.
func DonorsFor(recipient types.BloodType) ([]types.BloodType, error) {
	return lookup(donorsFor, recipient)
}

// RecipientsFor returns the recipient types a donor can safely give to.
func RecipientsFor(donor types.BloodType) ([]types.BloodType, error) {
	return lookup(recipientsFor, donor)
}

func IsCompatible(donor, recipient types.BloodType) (bool, error) {
	if !donor.Valid() {
		return false, types.Errorf(types.KindInvalidBloodType, "invalid donor blood type %q", donor)
	}
	donors, err := DonorsFor(recipient)
	if err != nil {
		return false, err
	}
	return contains(donors, donor), nil
}

func lookup(chart map[types.BloodType][]types.BloodType, b types.BloodType) ([]types.BloodType, error) {
	set, ok := chart[b]
	if !ok {
		return nil, types.Errorf(types.KindInvalidBloodType, "invalid blood type %q", b)
	}
	return append(make([]types.BloodType, 0, len(set)), set...), nil
}

func contains(set []types.BloodType, b types.BloodType) bool {
	for _, t := range set {
		if t == b {
			return true
		}
	}
	return false
}
