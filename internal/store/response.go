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

const responseTableName = "redblood.responses"

var responseColumns = utils.StructTagValues(types.Response{})

type ResponseRepository struct {
	db querier
}

func NewResponseRepository(db querier) *ResponseRepository {
	return &ResponseRepository{db: db}
}

func (r *ResponseRepository) Response(ctx context.Context, responseID string) (*types.Response, error) {
	query, args, err := psql().Select(responseColumns...).From(responseTableName).
		Where(sq.Eq{"id": responseID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate response query: %w", err)
	}

	var response = new(types.Response)
	err = pgxscan.Get(ctx, r.db, response, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrResponseNotFound
		}
		return nil, fmt.Errorf("failed to fetch response: %w", err)
	}

	return response, nil
}

func responseWhere(filter types.ResponseFilter) sq.Eq {
	where := sq.Eq{}
	if filter.RequestID != "" {
		where["request_id"] = filter.RequestID
	}
	if filter.UserID != "" {
		where["user_id"] = filter.UserID
	}
	if filter.Status != "" {
		where["status"] = string(filter.Status)
	}
	return where
}

func (r *ResponseRepository) Responses(ctx context.Context, filter types.ResponseFilter) ([]*types.Response, error) {
	builder := psql().Select(responseColumns...).From(responseTableName).
		OrderBy("created_at asc", "id")
	if where := responseWhere(filter); len(where) > 0 {
		builder = builder.Where(where)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate responses query: %w", err)
	}

	var responses = make([]*types.Response, 0)
	err = pgxscan.Select(ctx, r.db, &responses, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch responses: %w", err)
	}

	return responses, nil
}

func (r *ResponseRepository) CreateResponse(ctx context.Context, response *types.Response) error {
	now := time.Now()
	if response.ID == "" {
		response.ID = utils.NanoID()
	}
	if response.CreatedAt.IsZero() {
		response.CreatedAt = now
	}
	if response.UpdatedAt.IsZero() {
		response.UpdatedAt = now
	}

	query, args, err := psql().Insert(responseTableName).SetMap(utils.StructToMap(response)).ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate insert response query: %w", err)
	}

	_, err = r.db.Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to create response")
}

func (r *ResponseRepository) UpdateResponse(ctx context.Context, response *types.Response) error {
	if response.UpdatedAt.IsZero() {
		response.UpdatedAt = time.Now()
	}

	values := utils.StructToMap(response)
	delete(values, "id")
	delete(values, "created_at")

	query, args, err := psql().Update(responseTableName).SetMap(values).Where(sq.Eq{"id": response.ID}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate update response query for response %s: %w", response.ID, err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update response: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrResponseNotFound
	}

	return nil
}

func (r *ResponseRepository) DeleteResponses(ctx context.Context, filter types.ResponseFilter) error {
	where := responseWhere(filter)
	if len(where) == 0 {
		return fmt.Errorf("refusing to delete responses without a filter")
	}

	query, args, err := psql().Delete(responseTableName).Where(where).ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate delete responses query: %w", err)
	}

	_, err = r.db.Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to delete responses")
}
