package types

import "time"

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append(make([]string, 0, len(s)), s...)
}

func (c Coordinates) clone() Coordinates {
	return Coordinates{Latitude: cloneFloat(c.Latitude), Longitude: cloneFloat(c.Longitude)}
}
