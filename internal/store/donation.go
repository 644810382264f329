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

const donationTableName = "redblood.donations"

var donationColumns = utils.StructTagValues(types.Donation{})

type DonationRepository struct {
	db querier
}

func NewDonationRepository(db querier) *DonationRepository {
	return &DonationRepository{db: db}
}

func (r *DonationRepository) Donation(ctx context.Context, donationID string) (*types.Donation, error) {
	query, args, err := psql().Select(donationColumns...).From(donationTableName).
		Where(sq.Eq{"id": donationID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate donation query: %w", err)
	}

	var donation = new(types.Donation)
	err = pgxscan.Get(ctx, r.db, donation, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrDonationNotFound
		}
		return nil, fmt.Errorf("failed to fetch donation: %w", err)
	}

	return donation, nil
}

func (r *DonationRepository) Donations(ctx context.Context, filter types.DonationFilter) ([]*types.Donation, error) {
	order := "appointment_date desc"
	if filter.Ascending {
		order = "appointment_date asc"
	}

	builder := psql().Select(donationColumns...).From(donationTableName).OrderBy(order, "id")

	if filter.UserID != "" {
		builder = builder.Where(sq.Eq{"user_id": filter.UserID})
	}
	if filter.Status != "" {
		builder = builder.Where(sq.Eq{"status": string(filter.Status)})
	}
	if filter.DonationType != "" {
		builder = builder.Where(sq.Eq{"donation_type": string(filter.DonationType)})
	}
	if filter.From != nil {
		builder = builder.Where(sq.GtOrEq{"appointment_date": *filter.From})
	}
	if filter.To != nil {
		builder = builder.Where(sq.Lt{"appointment_date": *filter.To})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate donations query: %w", err)
	}

	var donations = make([]*types.Donation, 0)
	err = pgxscan.Select(ctx, r.db, &donations, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch donations: %w", err)
	}

	return donations, nil
}

func (r *DonationRepository) CreateDonation(ctx context.Context, donation *types.Donation) error {
	now := time.Now()
	if donation.ID == "" {
		donation.ID = utils.NanoID()
	}
	if donation.CreatedAt.IsZero() {
		donation.CreatedAt = now
	}
	if donation.UpdatedAt.IsZero() {
		donation.UpdatedAt = now
	}

	query, args, err := psql().Insert(donationTableName).SetMap(utils.StructToMap(donation)).ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate insert donation query: %w", err)
	}

	_, err = r.db.Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to create donation")
}

func (r *DonationRepository) UpdateDonation(ctx context.Context, donation *types.Donation) error {
	if donation.UpdatedAt.IsZero() {
		donation.UpdatedAt = time.Now()
	}

	values := utils.StructToMap(donation)
	delete(values, "id")
	delete(values, "created_at")

	query, args, err := psql().Update(donationTableName).SetMap(values).Where(sq.Eq{"id": donation.ID}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate update donation query for donation %s: %w", donation.ID, err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update donation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrDonationNotFound
	}

	return nil
}

func (r *DonationRepository) DeleteDonations(ctx context.Context, userID string) error {
	query, args, err := psql().Delete(donationTableName).Where(sq.Eq{"user_id": userID}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate delete donations query for user %s: %w", userID, err)
	}

	_, err = r.db.Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to delete donations")
}
