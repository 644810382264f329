package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"redblood/internal/store"
	"redblood/pkg/types"

	"github.com/sirupsen/logrus"
)

var weekdayHours = []types.OperatingHours{
	{Day: "monday", Open: "08:00", Close: "18:00"},
	{Day: "tuesday", Open: "08:00", Close: "18:00"},
	{Day: "wednesday", Open: "08:00", Close: "18:00"},
	{Day: "thursday", Open: "08:00", Close: "20:00"},
	{Day: "friday", Open: "08:00", Close: "16:00"},
}

func point(lat, lon float64) types.Coordinates {
	return types.CoordinatesOf(types.GeoPoint{Latitude: lat, Longitude: lon})
}

// centers is the source of truth for seeded donation centers. Rows are matched on ID,
// so editing an entry here and re-running `redblood seed` updates it in place.
//
// To generate new IDs: `go run ./cmd/redblood nanoid`
var centers = []types.DonationCenter{
	{
		ID:                  "c3nTrLbL00dB4nkD0wnT0wn000000001",
		Name:                "Downtown Blood Bank",
		Phone:               "+14155550100",
		Email:               "downtown@redblood.example",
		OperatingHours:      weekdayHours,
		Services:            []string{string(types.DonationTypeWholeBlood), string(types.DonationTypePlasma), string(types.DonationTypePlatelets)},
		WalkInAllowed:       true,
		AppointmentRequired: false,
		Active:              true,
		Address:             types.Address{Street: "100 Market St", City: "San Francisco", State: "CA", ZipCode: "94105", Country: "US"},
		Coordinates:         point(37.7936, -122.3965),
	},
	{
		ID:                  "c3nTrM1ss10nD1str1ctPl4sm4000002",
		Name:                "Mission Plasma Center",
		Phone:               "+14155550101",
		OperatingHours:      weekdayHours,
		Services:            []string{string(types.DonationTypePlasma)},
		AppointmentRequired: true,
		Active:              true,
		Address:             types.Address{Street: "2300 Mission St", City: "San Francisco", State: "CA", ZipCode: "94110", Country: "US"},
		Coordinates:         point(37.7599, -122.4187),
	},
	{
		ID:                  "c3nTr0akl4ndG3n3r4lH0sp1t4l00003",
		Name:                "Oakland General Donor Room",
		Phone:               "+15105550102",
		OperatingHours:      weekdayHours,
		Services:            []string{string(types.DonationTypeWholeBlood), string(types.DonationTypeDoubleRedCells)},
		AppointmentRequired: true,
		Active:              true,
		Address:             types.Address{Street: "1411 E 31st St", City: "Oakland", State: "CA", ZipCode: "94602", Country: "US"},
		Coordinates:         point(37.7999, -122.2318),
	},
	{
		ID:          "c3nTrP4l0Alt0M0b1l3Dr1v3C10s3d04",
		Name:        "Palo Alto Mobile Drive",
		Services:    []string{string(types.DonationTypeWholeBlood)},
		Active:      false,
		Address:     types.Address{City: "Palo Alto", State: "CA", Country: "US"},
		Coordinates: point(37.4419, -122.1430),
	},
}

// SeedCenters inserts missing centers and updates the rest. Centers not listed are left alone.
func SeedCenters(ctx context.Context, st store.Store, logger logrus.FieldLogger) error {
	now := time.Now().UTC()
	created, updated := 0, 0

	for i := range centers {
		c := centers[i]

		err := st.RunInTx(ctx, func(q store.Queries) error {
			existing, err := q.Center(ctx, c.ID)
			if err != nil {
				if !errors.Is(err, types.ErrCenterNotFound) {
					return err
				}
				c.CreatedAt, c.UpdatedAt = now, now
				created++
				return q.CreateCenter(ctx, &c)
			}

			c.CreatedAt, c.UpdatedAt = existing.CreatedAt, now
			updated++
			return q.UpdateCenter(ctx, &c)
		})
		if err != nil {
			return fmt.Errorf("failed to seed center %s: %w", c.ID, err)
		}
	}

	logger.WithFields(logrus.Fields{"created": created, "updated": updated}).Info("centers seeded")
	return nil
}
