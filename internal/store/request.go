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

const requestTableName = "redblood.blood_requests"

var requestColumns = utils.StructTagValues(types.BloodRequest{})

type RequestRepository struct {
	db querier
}

func NewRequestRepository(db querier) *RequestRepository {
	return &RequestRepository{db: db}
}

func (r *RequestRepository) Request(ctx context.Context, requestID string) (*types.BloodRequest, error) {
	return r.request(ctx, requestID, "")
}

func (r *RequestRepository) LockRequest(ctx context.Context, requestID string) (*types.BloodRequest, error) {
	return r.request(ctx, requestID, "FOR UPDATE")
}

func (r *RequestRepository) request(ctx context.Context, requestID, suffix string) (*types.BloodRequest, error) {
	builder := psql().Select(requestColumns...).From(requestTableName).
		Where(sq.Eq{"id": requestID}).
		Limit(1)
	if suffix != "" {
		builder = builder.Suffix(suffix)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate request query: %w", err)
	}

	var request = new(types.BloodRequest)
	err = pgxscan.Get(ctx, r.db, request, query, args...)
	if err != nil && !pgxscan.NotFound(err) {
		return nil, fmt.Errorf("failed to fetch request %s: %w", requestID, err)
	}

	if err != nil {
		return nil, types.ErrRequestNotFound
	}

	if request.ResponseIDs == nil {
		request.ResponseIDs = []string{}
	}

	return request, nil
}

// Requests applies only equality and membership filters; geo filtering and ranking happen in matching.
func (r *RequestRepository) Requests(ctx context.Context, filter types.RequestFilter) ([]*types.BloodRequest, error) {
	builder := psql().Select(requestColumns...).From(requestTableName).
		OrderBy("created_at desc", "id")

	if filter.UserID != "" {
		builder = builder.Where(sq.Eq{"user_id": filter.UserID})
	}
	if filter.BloodTypes != nil {
		builder = builder.Where(sq.Eq{"blood_type": bloodTypeStrings(filter.BloodTypes)})
	}
	if filter.Status != "" {
		builder = builder.Where(sq.Eq{"status": string(filter.Status)})
	}
	if filter.Urgency != "" {
		builder = builder.Where(sq.Eq{"urgency": string(filter.Urgency)})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate requests query: %w", err)
	}

	var requests = make([]*types.BloodRequest, 0)
	err = pgxscan.Select(ctx, r.db, &requests, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch requests: %w", err)
	}

	for _, request := range requests {
		if request.ResponseIDs == nil {
			request.ResponseIDs = []string{}
		}
	}

	return requests, nil
}

func (r *RequestRepository) CreateRequest(ctx context.Context, request *types.BloodRequest) error {

	now := time.Now()
	if request.ID == "" {
		request.ID = utils.NanoID()
	}
	if request.CreatedAt.IsZero() {
		request.CreatedAt = now
	}
	if request.UpdatedAt.IsZero() {
		request.UpdatedAt = now
	}
	if request.ResponseIDs == nil {
		request.ResponseIDs = []string{}
	}

	query, args, err := psql().Insert(requestTableName).SetMap(utils.StructToMap(request)).ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate insert request query: %w", err)
	}

	_, err = r.db.Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to create request")

}

func (r *RequestRepository) UpdateRequest(ctx context.Context, request *types.BloodRequest) error {

	if request.UpdatedAt.IsZero() {
		request.UpdatedAt = time.Now()
	}

	values := utils.StructToMap(request)
	delete(values, "id")
	delete(values, "created_at")

	query, args, err := psql().Update(requestTableName).SetMap(values).Where(sq.Eq{"id": request.ID}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate update request query for request %s: %w", request.ID, err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrRequestNotFound
	}

	return nil

}

func (r *RequestRepository) DeleteRequest(ctx context.Context, requestID string) error {

	query, args, err := psql().Delete(requestTableName).Where(sq.Eq{"id": requestID}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate delete request query for request %s: %w", requestID, err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrRequestNotFound
	}

	return nil

}
