package types

import "strings"

type BloodType string

const (
	BloodTypeAPos  BloodType = "A+"
	BloodTypeANeg  BloodType = "A-"
	BloodTypeBPos  BloodType = "B+"
	BloodTypeBNeg  BloodType = "B-"
	BloodTypeABPos BloodType = "AB+"
	BloodTypeABNeg BloodType = "AB-"
	BloodTypeOPos  BloodType = "O+"
	BloodTypeONeg  BloodType = "O-"
)

// AllBloodTypes is in canonical display order.
var AllBloodTypes = []BloodType{
	BloodTypeAPos, BloodTypeANeg,
	BloodTypeBPos, BloodTypeBNeg,
	BloodTypeABPos, BloodTypeABNeg,
	BloodTypeOPos, BloodTypeONeg,
}

func (b BloodType) Valid() bool {
	for _, t := range AllBloodTypes {
		if t == b {
			return true
		}
	}
	return false
}

func (b BloodType) String() string {
	return string(b)
}

// ParseBloodType accepts only the canonical spelling. A value whose sign was
// decoded from "+" to a space in a query string is repaired before matching.
func ParseBloodType(s string) (BloodType, error) {
	if strings.HasSuffix(s, " ") && len(strings.TrimSpace(s)) > 0 {
		s = strings.TrimRight(s, " ") + "+"
	}

	b := BloodType(s)
	if !b.Valid() {
		return "", Errorf(KindInvalidBloodType, "invalid blood type %q", s)
	}
	return b, nil
}
