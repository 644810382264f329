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

type demoUser struct {
	ID        string
	Email     string
	FullName  string
	Role      types.Role
	BloodType types.BloodType
	Lat, Lon  float64
}

// Demo profiles have no identity account, so they can be found by searches but cannot log in.
var demoUsers = []demoUser{
	{ID: "11111111-1111-1111-1111-111111111111", Email: "ava.williams+seed1@example.com", FullName: "Ava Williams", Role: types.RoleDonor, BloodType: types.BloodTypeONeg, Lat: 37.7793, Lon: -122.4192},
	{ID: "22222222-2222-2222-2222-222222222222", Email: "liam.johnson+seed2@example.com", FullName: "Liam Johnson", Role: types.RoleDonor, BloodType: types.BloodTypeOPos, Lat: 37.7680, Lon: -122.4300},
	{ID: "33333333-3333-3333-3333-333333333333", Email: "noah.brown+seed3@example.com", FullName: "Noah Brown", Role: types.RoleDonor, BloodType: types.BloodTypeAPos, Lat: 37.8044, Lon: -122.2712},
	{ID: "44444444-4444-4444-4444-444444444444", Email: "mia.davis+seed4@example.com", FullName: "Mia Davis", Role: types.RoleDonor, BloodType: types.BloodTypeBNeg, Lat: 37.4419, Lon: -122.1430},
	{ID: "55555555-5555-5555-5555-555555555555", Email: "elijah.garcia+seed5@example.com", FullName: "Elijah Garcia", Role: types.RoleDonor, BloodType: types.BloodTypeABPos, Lat: 37.7749, Lon: -122.4194},
	{ID: "66666666-6666-6666-6666-666666666666", Email: "olivia.miller+seed6@example.com", FullName: "Olivia Miller", Role: types.RoleRecipient, BloodType: types.BloodTypeAPos, Lat: 37.7890, Lon: -122.4010},
	{ID: "77777777-7777-7777-7777-777777777777", Email: "intake+seed7@example.com", FullName: "SF General Intake", Role: types.RoleHospital, Lat: 37.7557, Lon: -122.4048},
}

// SeedUsers creates any demo profile that does not exist yet. Existing profiles are not touched.
func SeedUsers(ctx context.Context, st store.Store, logger logrus.FieldLogger) error {
	now := time.Now().UTC()
	seeded := 0

	for _, d := range demoUsers {
		_, err := st.User(ctx, d.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, types.ErrUserNotFound) {
			return fmt.Errorf("failed to fetch demo user %s: %w", d.ID, err)
		}

		u := &types.User{
			ID:                      d.ID,
			Email:                   d.Email,
			FullName:                d.FullName,
			Role:                    d.Role,
			BloodType:               d.BloodType,
			Active:                  true,
			Coordinates:             point(d.Lat, d.Lon),
			NotificationPreferences: types.DefaultNotificationPreferences,
			CreatedAt:               now,
			UpdatedAt:               now,
		}
		if err := st.CreateUser(ctx, u); err != nil {
			return fmt.Errorf("failed to create demo user %s: %w", d.ID, err)
		}
		seeded++
	}

	logger.WithField("created", seeded).Info("demo users seeded")
	return nil
}
