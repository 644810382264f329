package store

import (
	"context"
	"fmt"
	"time"

	"redblood/internal/utils"
	"redblood/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
)

const centerTableName = "redblood.donation_centers"

var centerColumns = utils.StructTagValues(types.DonationCenter{})

type CenterRepository struct {
	db querier
}

func NewCenterRepository(db querier) *CenterRepository {
	return &CenterRepository{db: db}
}

func (r *CenterRepository) Center(ctx context.Context, centerID string) (*types.DonationCenter, error) {
	query, args, err := psql().Select(centerColumns...).From(centerTableName).
		Where(sq.Eq{"id": centerID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate center query: %w", err)
	}

	var center = new(types.DonationCenter)
	err = pgxscan.Get(ctx, r.db, center, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrCenterNotFound
		}
		return nil, fmt.Errorf("failed to fetch center: %w", err)
	}

	return center, nil
}

func (r *CenterRepository) Centers(ctx context.Context, filter types.CenterFilter) ([]*types.DonationCenter, error) {
	builder := psql().Select(centerColumns...).From(centerTableName).OrderBy("name", "id")

	if filter.ActiveOnly {
		builder = builder.Where(sq.Eq{"active": true})
	}
	if len(filter.Services) > 0 {
		services := make([]string, len(filter.Services))
		for i, s := range filter.Services {
			services[i] = string(s)
		}
		builder = builder.Where(sq.Expr("services && ?", services))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate centers query: %w", err)
	}

	var centers = make([]*types.DonationCenter, 0)
	err = pgxscan.Select(ctx, r.db, &centers, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch centers: %w", err)
	}

	return centers, nil
}

// CreateCenter inserts a center, replacing any existing row with the same id.
func (r *CenterRepository) CreateCenter(ctx context.Context, center *types.DonationCenter) error {
	now := time.Now()
	if center.ID == "" {
		center.ID = utils.NanoID()
	}
	if center.CreatedAt.IsZero() {
		center.CreatedAt = now
	}
	center.UpdatedAt = now
	if center.Services == nil {
		center.Services = []string{}
	}
	if center.OperatingHours == nil {
		center.OperatingHours = []types.OperatingHours{}
	}

	query, args, err := psql().Insert(centerTableName).
		SetMap(utils.StructToMap(center)).
		Suffix("ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, phone = EXCLUDED.phone, email = EXCLUDED.email, website = EXCLUDED.website, operating_hours = EXCLUDED.operating_hours, services = EXCLUDED.services, walk_in_allowed = EXCLUDED.walk_in_allowed, appointment_required = EXCLUDED.appointment_required, active = EXCLUDED.active, street = EXCLUDED.street, city = EXCLUDED.city, state = EXCLUDED.state, zip_code = EXCLUDED.zip_code, country = EXCLUDED.country, latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate insert center query: %w", err)
	}

	_, err = r.db.Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to create center")
}

func (r *CenterRepository) UpdateCenter(ctx context.Context, center *types.DonationCenter) error {
	center.UpdatedAt = time.Now()

	values := utils.StructToMap(center)
	delete(values, "id")
	delete(values, "created_at")

	query, args, err := psql().Update(centerTableName).SetMap(values).Where(sq.Eq{"id": center.ID}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate update center query for center %s: %w", center.ID, err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update center: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrCenterNotFound
	}

	return nil
}
